package indexstore

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/ethpandaops/toolchainbench/pkg/profile"
	"github.com/ethpandaops/toolchainbench/pkg/store"
)

// HostHash is the index key for a host identity.
func HostHash(host store.HostIdentity) string {
	return fmt.Sprintf("%016x", host.Hash())
}

// SyncResultFile loads a result file and replaces that host's rows.
func SyncResultFile(ctx context.Context, s Store, path string) error {
	result, err := store.ReadResultFile(path)
	if err != nil {
		return err
	}

	hostHash := HostHash(result.SystemInfo)

	if err := s.UpsertHost(ctx, &Host{
		HostHash:         hostHash,
		NumCores:         result.SystemInfo.NumCores,
		NumPhysicalCores: result.SystemInfo.NumPhysicalCores,
		CPUModel:         result.SystemInfo.CPUModel,
		ResultFile:       path,
		IndexedAt:        time.Now().UTC(),
	}); err != nil {
		return err
	}

	samples, sizes := flatten(hostHash, result.Profiles)

	if err := s.ReplaceHostData(ctx, hostHash, samples, sizes); err != nil {
		return fmt.Errorf("indexing %s: %w", path, err)
	}

	return nil
}

// flatten turns records into rows in a deterministic order.
func flatten(hostHash string, profiles profile.Profiles) ([]*Sample, []*OutputSize) {
	var (
		samples []*Sample
		sizes   []*OutputSize
	)

	for _, name := range profiles.Names() {
		record := profiles[name]

		keys := make([]profile.CompileTimeKey, 0, len(record.CompileTimes))
		for key := range record.CompileTimes {
			keys = append(keys, key)
		}

		sort.Slice(keys, func(i, j int) bool {
			return keys[i].String() < keys[j].String()
		})

		for _, key := range keys {
			for rep, ms := range record.CompileTimes[key] {
				samples = append(samples, &Sample{
					HostHash:     hostHash,
					Repo:         name,
					Version:      key.Version.String(),
					CompilerMode: string(key.CompilerMode),
					ProfileMode:  string(key.ProfileMode),
					Repetition:   rep,
					DurationMs:   uint64(ms),
				})
			}
		}

		sizeKeys := make([]profile.SizeKey, 0, len(record.OutputSizes))
		for key := range record.OutputSizes {
			sizeKeys = append(sizeKeys, key)
		}

		sort.Slice(sizeKeys, func(i, j int) bool {
			return sizeKeys[i].String() < sizeKeys[j].String()
		})

		for _, key := range sizeKeys {
			sizes = append(sizes, &OutputSize{
				HostHash:     hostHash,
				Repo:         name,
				Version:      key.Version.String(),
				CompilerMode: string(key.CompilerMode),
				Bytes:        uint64(record.OutputSizes[key]),
			})
		}
	}

	return samples, sizes
}
