package indexstore

import (
	"context"
	"os"
	"sync"
	"time"

	"github.com/ethpandaops/toolchainbench/pkg/store"
	"github.com/sirupsen/logrus"
)

// Indexer is a background service that periodically scans a results
// directory and syncs changed result files into the index store.
type Indexer interface {
	Start(ctx context.Context) error
	Stop() error
	// RunPass syncs every result file whose modification time changed
	// since the previous pass.
	RunPass(ctx context.Context) error
}

// Compile-time interface check.
var _ Indexer = (*indexer)(nil)

type indexer struct {
	log      logrus.FieldLogger
	store    Store
	dir      string
	interval time.Duration
	done     chan struct{}
	wg       sync.WaitGroup

	mu   sync.Mutex
	seen map[string]time.Time
}

// NewIndexer creates a new background indexer over dir.
func NewIndexer(
	log logrus.FieldLogger,
	s Store,
	dir string,
	interval time.Duration,
) Indexer {
	return &indexer{
		log:      log.WithField("component", "indexer"),
		store:    s,
		dir:      dir,
		interval: interval,
		done:     make(chan struct{}),
		seen:     make(map[string]time.Time, 4),
	}
}

// Start launches a goroutine that runs one pass immediately and then
// ticks at the configured interval.
func (idx *indexer) Start(ctx context.Context) error {
	idx.log.WithFields(logrus.Fields{
		"interval": idx.interval.String(),
		"dir":      idx.dir,
	}).Info("Starting indexer")

	idx.wg.Add(1)

	go func() {
		defer idx.wg.Done()

		idx.logPass(ctx)

		ticker := time.NewTicker(idx.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				idx.logPass(ctx)
			case <-idx.done:
				return
			case <-ctx.Done():
				return
			}
		}
	}()

	return nil
}

// Stop signals the indexer goroutine to stop and waits for it.
func (idx *indexer) Stop() error {
	close(idx.done)
	idx.wg.Wait()

	idx.log.Info("Indexer stopped")

	return nil
}

func (idx *indexer) logPass(ctx context.Context) {
	if err := idx.RunPass(ctx); err != nil {
		idx.log.WithError(err).Warn("Indexing pass failed")
	}
}

// RunPass syncs changed result files. A file that fails to sync is logged
// and retried on the next pass.
func (idx *indexer) RunPass(ctx context.Context) error {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	start := time.Now()

	paths, err := store.ListResultFiles(idx.dir)
	if err != nil {
		return err
	}

	var synced int

	for _, path := range paths {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		modTime, err := modificationTime(path)
		if err != nil {
			idx.log.WithError(err).WithField("file", path).Warn("Skipping result file")

			continue
		}

		if last, ok := idx.seen[path]; ok && last.Equal(modTime) {
			continue
		}

		if err := SyncResultFile(ctx, idx.store, path); err != nil {
			idx.log.WithError(err).WithField("file", path).Warn("Failed to index result file")

			continue
		}

		idx.seen[path] = modTime
		synced++
	}

	idx.log.WithFields(logrus.Fields{
		"files":    len(paths),
		"synced":   synced,
		"duration": time.Since(start).Round(time.Millisecond),
	}).Debug("Indexing pass completed")

	return nil
}

func modificationTime(path string) (time.Time, error) {
	info, err := os.Stat(path)
	if err != nil {
		return time.Time{}, err
	}

	return info.ModTime(), nil
}
