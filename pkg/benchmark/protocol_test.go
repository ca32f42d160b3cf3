package benchmark

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/ethpandaops/toolchainbench/pkg/cargo"
	"github.com/ethpandaops/toolchainbench/pkg/profile"
	"github.com/ethpandaops/toolchainbench/pkg/repo"
	"github.com/ethpandaops/toolchainbench/pkg/toolchain"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() logrus.FieldLogger {
	log := logrus.New()
	log.SetLevel(logrus.ErrorLevel)

	return log
}

// fakeRunner returns increasing durations and fails on configured calls.
type fakeRunner struct {
	mu     sync.Mutex
	calls  []cargo.CompilerMode
	failOn func(mode cargo.CompilerMode, call int) error
	// onRun observes the workspace during each build.
	onRun func()
}

func (f *fakeRunner) Run(_ context.Context, _ string, mode cargo.CompilerMode) (cargo.Milliseconds, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.calls = append(f.calls, mode)

	if f.onRun != nil {
		f.onRun()
	}

	if f.failOn != nil {
		if err := f.failOn(mode, len(f.calls)); err != nil {
			return 0, err
		}
	}

	return cargo.Milliseconds(len(f.calls) * 10), nil
}

// fakeWorkspace keeps the touch file on disk and records stage events.
type fakeWorkspace struct {
	dir       string
	desc      repo.Descriptor
	events    []string
	revertErr error
	patched   bool
}

const pristine = "fn main() {}\n"

func newFakeWorkspace(t *testing.T) *fakeWorkspace {
	t.Helper()

	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "main.rs"), []byte(pristine), 0o644))

	return &fakeWorkspace{
		dir:  dir,
		desc: repo.Descriptor{Name: "demo", TouchFile: "main.rs", Output: "demo"},
	}
}

func (w *fakeWorkspace) Descriptor() repo.Descriptor { return w.desc }
func (w *fakeWorkspace) BaseDir() string             { return w.dir }

func (w *fakeWorkspace) RemoveBuildOutputDir() error {
	w.events = append(w.events, "clean")

	return nil
}

func (w *fakeWorkspace) TouchFile() error {
	w.events = append(w.events, "touch")

	return nil
}

func (w *fakeWorkspace) WithPatch(_ context.Context, fn func() error) error {
	w.events = append(w.events, "patch")

	path := filepath.Join(w.dir, "main.rs")
	if err := os.WriteFile(path, []byte("fn main() { println!(); }\n"), 0o644); err != nil {
		return err
	}

	w.patched = true
	err := fn()

	if w.revertErr != nil {
		return errors.Join(err, w.revertErr)
	}

	w.patched = false

	return errors.Join(err, os.WriteFile(path, []byte(pristine), 0o644))
}

func (w *fakeWorkspace) ArtifactPath(mode cargo.CompilerMode) (string, error) {
	if !mode.ProducesArtifact() {
		return "", errors.New("no artifact")
	}

	return filepath.Join(w.dir, "target", string(mode), w.desc.Output), nil
}

func (w *fakeWorkspace) touchFileContent(t *testing.T) string {
	t.Helper()

	data, err := os.ReadFile(filepath.Join(w.dir, "main.rs"))
	require.NoError(t, err)

	return string(data)
}

func TestProtocol_Run(t *testing.T) {
	ctx := context.Background()

	t.Run("collects every bucket", func(t *testing.T) {
		ws := newFakeWorkspace(t)
		runner := &fakeRunner{}

		samples, err := NewProtocol(testLogger(), runner, &Config{Repetitions: 2}).Run(ctx, ws, toolchain.V1_45)
		require.NoError(t, err)

		require.Len(t, samples, 9)

		for _, cm := range cargo.CompilerModes() {
			for _, pm := range cargo.ProfileModes() {
				assert.Len(t, samples[profile.SampleKey{CompilerMode: cm, ProfileMode: pm}], 2, "%s/%s", cm, pm)
			}
		}

		// Three modes, two repetitions, three stages.
		assert.Len(t, runner.calls, 18)
		assert.Equal(t, []string{"clean", "touch", "patch", "clean", "touch", "patch"}, ws.events[:6])
		assert.Equal(t, pristine, ws.touchFileContent(t))
	})

	t.Run("zero repetitions leaves empty buckets", func(t *testing.T) {
		ws := newFakeWorkspace(t)
		runner := &fakeRunner{}

		samples, err := NewProtocol(testLogger(), runner, &Config{Repetitions: 0}).Run(ctx, ws, toolchain.V1_45)
		require.NoError(t, err)

		require.Len(t, samples, 9)

		for key, values := range samples {
			assert.NotNil(t, values, "%v", key)
			assert.Empty(t, values, "%v", key)
		}

		assert.Empty(t, runner.calls)
	})

	t.Run("samples are recorded in stage order", func(t *testing.T) {
		ws := newFakeWorkspace(t)

		samples, err := NewProtocol(testLogger(), &fakeRunner{}, &Config{Repetitions: 1}).Run(ctx, ws, toolchain.V1_45)
		require.NoError(t, err)

		assert.Equal(t, []cargo.Milliseconds{10}, samples[profile.SampleKey{
			CompilerMode: cargo.CompilerModeCheck, ProfileMode: cargo.ProfileModeClean,
		}])
		assert.Equal(t, []cargo.Milliseconds{30}, samples[profile.SampleKey{
			CompilerMode: cargo.CompilerModeCheck, ProfileMode: cargo.ProfileModePatchIncremental,
		}])
		assert.Equal(t, []cargo.Milliseconds{40}, samples[profile.SampleKey{
			CompilerMode: cargo.CompilerModeDebug, ProfileMode: cargo.ProfileModeClean,
		}])
	})

	t.Run("warm-up is untimed", func(t *testing.T) {
		ws := newFakeWorkspace(t)
		runner := &fakeRunner{}

		samples, err := NewProtocol(testLogger(), runner, &Config{Repetitions: 1, Warmup: true}).Run(ctx, ws, toolchain.V1_45)
		require.NoError(t, err)

		assert.Len(t, runner.calls, 10)
		assert.Equal(t, cargo.CompilerModeCheck, runner.calls[0])
		assert.Equal(t, []cargo.Milliseconds{20}, samples[profile.SampleKey{
			CompilerMode: cargo.CompilerModeCheck, ProfileMode: cargo.ProfileModeClean,
		}])
	})

	t.Run("failed mode is discarded and other modes run", func(t *testing.T) {
		ws := newFakeWorkspace(t)
		runner := &fakeRunner{
			failOn: func(mode cargo.CompilerMode, _ int) error {
				if mode == cargo.CompilerModeDebug {
					return &cargo.BuildError{Mode: mode, ExitCode: 101}
				}

				return nil
			},
		}

		samples, err := NewProtocol(testLogger(), runner, &Config{Repetitions: 2}).Run(ctx, ws, toolchain.V1_45)
		require.Error(t, err)

		var buildErr *cargo.BuildError
		assert.True(t, errors.As(err, &buildErr))

		assert.Len(t, samples, 6)

		for _, pm := range cargo.ProfileModes() {
			assert.NotContains(t, samples, profile.SampleKey{CompilerMode: cargo.CompilerModeDebug, ProfileMode: pm})
			assert.Len(t, samples[profile.SampleKey{CompilerMode: cargo.CompilerModeRelease, ProfileMode: pm}], 2)
		}
	})

	t.Run("touch file is pristine after a failed patched build", func(t *testing.T) {
		ws := newFakeWorkspace(t)

		var sawPatch bool

		runner := &fakeRunner{}
		runner.onRun = func() { sawPatch = sawPatch || ws.patched }
		runner.failOn = func(_ cargo.CompilerMode, call int) error {
			if call == 3 {
				return &cargo.ParseError{Reason: "no summary"}
			}

			return nil
		}

		_, err := NewProtocol(testLogger(), runner, &Config{Repetitions: 1}).Run(ctx, ws, toolchain.V1_45)
		require.Error(t, err)

		var parseErr *cargo.ParseError
		assert.True(t, errors.As(err, &parseErr))
		assert.True(t, sawPatch)
		assert.Equal(t, pristine, ws.touchFileContent(t))
	})

	t.Run("revert failure stops remaining modes", func(t *testing.T) {
		ws := newFakeWorkspace(t)
		ws.revertErr = &repo.VcsError{Op: "reset", Err: errors.New("exit status 128")}
		runner := &fakeRunner{}

		samples, err := NewProtocol(testLogger(), runner, &Config{Repetitions: 1}).Run(ctx, ws, toolchain.V1_45)
		require.Error(t, err)

		var vcsErr *repo.VcsError
		assert.True(t, errors.As(err, &vcsErr))
		assert.Empty(t, samples)
		assert.Len(t, runner.calls, 3)
	})

	t.Run("cancelled context stops between stages", func(t *testing.T) {
		ws := newFakeWorkspace(t)
		cancelled, cancel := context.WithCancel(ctx)

		runner := &fakeRunner{}
		runner.onRun = cancel

		samples, err := NewProtocol(testLogger(), runner, &Config{Repetitions: 3}).Run(cancelled, ws, toolchain.V1_45)
		require.ErrorIs(t, err, context.Canceled)
		assert.Empty(t, samples)
		assert.Len(t, runner.calls, 1)
	})

	t.Run("warm-up failure", func(t *testing.T) {
		ws := newFakeWorkspace(t)
		runner := &fakeRunner{
			failOn: func(_ cargo.CompilerMode, call int) error {
				if call == 1 {
					return &cargo.BuildError{Mode: cargo.CompilerModeCheck, ExitCode: 101}
				}

				return nil
			},
		}

		samples, err := NewProtocol(testLogger(), runner, &Config{Repetitions: 1, Warmup: true}).Run(ctx, ws, toolchain.V1_45)
		require.Error(t, err)
		assert.Empty(t, samples)
		assert.Len(t, runner.calls, 1)
	})
}
