package indexstore_test

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ethpandaops/toolchainbench/pkg/cargo"
	"github.com/ethpandaops/toolchainbench/pkg/config"
	"github.com/ethpandaops/toolchainbench/pkg/indexstore"
	"github.com/ethpandaops/toolchainbench/pkg/profile"
	"github.com/ethpandaops/toolchainbench/pkg/repo"
	"github.com/ethpandaops/toolchainbench/pkg/store"
	"github.com/ethpandaops/toolchainbench/pkg/toolchain"
)

func setupTestStore(t *testing.T) indexstore.Store {
	t.Helper()

	cfg := &config.DatabaseConfig{
		Driver: "sqlite",
		SQLite: config.SQLiteDatabaseConfig{Path: filepath.Join(t.TempDir(), "index.db")},
	}

	log := logrus.New()
	log.SetLevel(logrus.ErrorLevel)

	s := indexstore.NewStore(log, cfg)
	require.NoError(t, s.Start(context.Background()))

	t.Cleanup(func() { _ = s.Stop() })

	return s
}

func writeResults(t *testing.T, dir string, host store.HostIdentity, profiles profile.Profiles) string {
	t.Helper()

	log := logrus.New()
	log.SetLevel(logrus.ErrorLevel)

	s := store.New(log, &store.Config{
		Dir: dir,
		DetectHost: func(context.Context) (store.HostIdentity, error) {
			return host, nil
		},
	})

	path, err := s.Persist(context.Background(), profiles)
	require.NoError(t, err)

	return path
}

func TestStore_UnsupportedDriver(t *testing.T) {
	s := indexstore.NewStore(logrus.New(), &config.DatabaseConfig{Driver: "mysql"})
	require.Error(t, s.Start(context.Background()))
}

func TestSyncResultFile(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()
	dir := t.TempDir()

	host := store.HostIdentity{NumCores: 8, NumPhysicalCores: 4, CPUModel: "Test CPU"}

	record := profile.NewRecord(repo.Descriptor{Name: "helloworld", MinVersion: toolchain.V1_45})
	record.AddCompileTimes(toolchain.V1_45, profile.Samples{
		{CompilerMode: cargo.CompilerModeCheck, ProfileMode: cargo.ProfileModeClean}:       {860, 870, 880},
		{CompilerMode: cargo.CompilerModeDebug, ProfileMode: cargo.ProfileModeIncremental}: {120},
	})
	record.AddOutputSize(toolchain.V1_45, cargo.CompilerModeDebug, 4096)
	record.AddOutputSize(toolchain.V1_45, cargo.CompilerModeRelease, 2048)

	other := profile.NewRecord(repo.Descriptor{Name: "ripgrep"})
	other.AddCompileTimes(toolchain.V1_53, profile.Samples{
		{CompilerMode: cargo.CompilerModeRelease, ProfileMode: cargo.ProfileModeClean}: {99000},
	})

	path := writeResults(t, dir, host, profile.Profiles{"helloworld": record, "ripgrep": other})

	require.NoError(t, indexstore.SyncResultFile(ctx, s, path))

	hosts, err := s.ListHosts(ctx)
	require.NoError(t, err)
	require.Len(t, hosts, 1)
	assert.Equal(t, indexstore.HostHash(host), hosts[0].HostHash)
	assert.Equal(t, "Test CPU", hosts[0].CPUModel)
	assert.Equal(t, path, hosts[0].ResultFile)

	all, err := s.ListSamples(ctx, indexstore.Filter{})
	require.NoError(t, err)
	assert.Len(t, all, 5)

	check, err := s.ListSamples(ctx, indexstore.Filter{
		Repo:         "helloworld",
		CompilerMode: "Check",
		ProfileMode:  "Clean",
	})
	require.NoError(t, err)
	require.Len(t, check, 3)
	assert.Equal(t, uint64(860), check[0].DurationMs)
	assert.Equal(t, 0, check[0].Repetition)
	assert.Equal(t, uint64(880), check[2].DurationMs)
	assert.Equal(t, "1.45.0", check[0].Version)

	sizes, err := s.ListOutputSizes(ctx, indexstore.Filter{Repo: "helloworld"})
	require.NoError(t, err)
	require.Len(t, sizes, 2)
	assert.Equal(t, "Debug", sizes[0].CompilerMode)
	assert.Equal(t, uint64(4096), sizes[0].Bytes)

	repos, err := s.ListRepos(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"helloworld", "ripgrep"}, repos)

	t.Run("resync replaces rows", func(t *testing.T) {
		record.AddCompileTimes(toolchain.V1_45, profile.Samples{
			{CompilerMode: cargo.CompilerModeCheck, ProfileMode: cargo.ProfileModeClean}: {500},
		})
		delete(other.CompileTimes, profile.CompileTimeKey{
			Version: toolchain.V1_53, CompilerMode: cargo.CompilerModeRelease, ProfileMode: cargo.ProfileModeClean,
		})

		path := writeResults(t, dir, host, profile.Profiles{"helloworld": record, "ripgrep": other})
		require.NoError(t, indexstore.SyncResultFile(ctx, s, path))

		all, err := s.ListSamples(ctx, indexstore.Filter{})
		require.NoError(t, err)
		assert.Len(t, all, 2)

		hosts, err := s.ListHosts(ctx)
		require.NoError(t, err)
		assert.Len(t, hosts, 1)
	})

	t.Run("hosts are kept apart", func(t *testing.T) {
		second := store.HostIdentity{NumCores: 64, NumPhysicalCores: 32, CPUModel: "Big CPU"}
		path := writeResults(t, t.TempDir(), second, profile.Profiles{"ripgrep": other, "helloworld": record})
		require.NoError(t, indexstore.SyncResultFile(ctx, s, path))

		hosts, err := s.ListHosts(ctx)
		require.NoError(t, err)
		assert.Len(t, hosts, 2)

		mine, err := s.ListSamples(ctx, indexstore.Filter{HostHash: indexstore.HostHash(second)})
		require.NoError(t, err)
		assert.Len(t, mine, 2)
	})
}

func TestSyncResultFile_Missing(t *testing.T) {
	s := setupTestStore(t)
	require.Error(t, indexstore.SyncResultFile(context.Background(), s, filepath.Join(t.TempDir(), "nope.json")))
}
