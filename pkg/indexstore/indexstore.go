// Package indexstore keeps a queryable SQL copy of the raw samples from
// result files.
package indexstore

import (
	"context"
	"fmt"

	"github.com/ethpandaops/toolchainbench/pkg/config"
	"github.com/glebarez/sqlite"
	"github.com/sirupsen/logrus"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Store provides persistence for the indexed samples.
type Store interface {
	Start(ctx context.Context) error
	Stop() error

	UpsertHost(ctx context.Context, host *Host) error
	ListHosts(ctx context.Context) ([]Host, error)

	// ReplaceHostData swaps all samples and sizes of a host in one
	// transaction.
	ReplaceHostData(
		ctx context.Context, hostHash string, samples []*Sample, sizes []*OutputSize,
	) error

	ListSamples(ctx context.Context, filter Filter) ([]Sample, error)
	ListOutputSizes(ctx context.Context, filter Filter) ([]OutputSize, error)
	ListRepos(ctx context.Context) ([]string, error)
}

// Compile-time interface check.
var _ Store = (*gormStore)(nil)

type gormStore struct {
	log logrus.FieldLogger
	cfg *config.DatabaseConfig
	db  *gorm.DB
}

// NewStore creates a new index Store backed by the configured database driver.
func NewStore(
	log logrus.FieldLogger,
	cfg *config.DatabaseConfig,
) Store {
	return &gormStore{
		log: log.WithField("component", "indexstore"),
		cfg: cfg,
	}
}

// Start opens the database connection and runs migrations.
func (s *gormStore) Start(ctx context.Context) error {
	var dialector gorm.Dialector

	gormCfg := &gorm.Config{
		Logger: logger.Discard,
	}

	switch s.cfg.Driver {
	case "sqlite":
		dialector = sqlite.Open(s.cfg.SQLite.Path)
	case "postgres":
		dsn := fmt.Sprintf(
			"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
			s.cfg.Postgres.Host,
			s.cfg.Postgres.Port,
			s.cfg.Postgres.User,
			s.cfg.Postgres.Password,
			s.cfg.Postgres.Database,
			s.cfg.Postgres.SSLMode,
		)
		dialector = postgres.Open(dsn)
	default:
		return fmt.Errorf("unsupported database driver: %s", s.cfg.Driver)
	}

	db, err := gorm.Open(dialector, gormCfg)
	if err != nil {
		return fmt.Errorf("opening index database: %w", err)
	}

	s.db = db

	if err := s.db.WithContext(ctx).AutoMigrate(
		&Host{},
		&Sample{},
		&OutputSize{},
	); err != nil {
		return fmt.Errorf("running index migrations: %w", err)
	}

	s.log.WithField("driver", s.cfg.Driver).
		Info("Index database connected")

	return nil
}

// Stop closes the underlying database connection.
func (s *gormStore) Stop() error {
	if s.db == nil {
		return nil
	}

	sqlDB, err := s.db.DB()
	if err != nil {
		return fmt.Errorf("getting underlying db: %w", err)
	}

	return sqlDB.Close()
}

// UpsertHost inserts or updates a host keyed by its hash.
func (s *gormStore) UpsertHost(ctx context.Context, host *Host) error {
	result := s.db.WithContext(ctx).
		Where("host_hash = ?", host.HostHash).
		Assign(host).
		FirstOrCreate(host)
	if result.Error != nil {
		return fmt.Errorf("upserting host: %w", result.Error)
	}

	return nil
}

// ListHosts returns all indexed hosts.
func (s *gormStore) ListHosts(ctx context.Context) ([]Host, error) {
	var hosts []Host
	if err := s.db.WithContext(ctx).
		Order("host_hash ASC").
		Find(&hosts).Error; err != nil {
		return nil, fmt.Errorf("listing hosts: %w", err)
	}

	return hosts, nil
}

// ReplaceHostData deletes the host's rows and inserts the new ones in
// batches inside a single transaction.
func (s *gormStore) ReplaceHostData(
	ctx context.Context, hostHash string, samples []*Sample, sizes []*OutputSize,
) error {
	const batchSize = 100

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("host_hash = ?", hostHash).
			Delete(&Sample{}).Error; err != nil {
			return fmt.Errorf("deleting samples: %w", err)
		}

		if err := tx.Where("host_hash = ?", hostHash).
			Delete(&OutputSize{}).Error; err != nil {
			return fmt.Errorf("deleting output sizes: %w", err)
		}

		if len(samples) > 0 {
			if err := tx.CreateInBatches(samples, batchSize).Error; err != nil {
				return fmt.Errorf("inserting samples: %w", err)
			}
		}

		if len(sizes) > 0 {
			if err := tx.CreateInBatches(sizes, batchSize).Error; err != nil {
				return fmt.Errorf("inserting output sizes: %w", err)
			}
		}

		return nil
	})
}

func applyFilter(db *gorm.DB, filter Filter, withProfileMode bool) *gorm.DB {
	if filter.HostHash != "" {
		db = db.Where("host_hash = ?", filter.HostHash)
	}

	if filter.Repo != "" {
		db = db.Where("repo = ?", filter.Repo)
	}

	if filter.Version != "" {
		db = db.Where("version = ?", filter.Version)
	}

	if filter.CompilerMode != "" {
		db = db.Where("compiler_mode = ?", filter.CompilerMode)
	}

	if withProfileMode && filter.ProfileMode != "" {
		db = db.Where("profile_mode = ?", filter.ProfileMode)
	}

	return db
}

// ListSamples returns the samples matching filter in a stable order.
func (s *gormStore) ListSamples(ctx context.Context, filter Filter) ([]Sample, error) {
	var samples []Sample
	if err := applyFilter(s.db.WithContext(ctx), filter, true).
		Order("host_hash, repo, version, compiler_mode, profile_mode, repetition").
		Find(&samples).Error; err != nil {
		return nil, fmt.Errorf("listing samples: %w", err)
	}

	return samples, nil
}

// ListOutputSizes returns the sizes matching filter. ProfileMode is ignored.
func (s *gormStore) ListOutputSizes(ctx context.Context, filter Filter) ([]OutputSize, error) {
	var sizes []OutputSize
	if err := applyFilter(s.db.WithContext(ctx), filter, false).
		Order("host_hash, repo, version, compiler_mode").
		Find(&sizes).Error; err != nil {
		return nil, fmt.Errorf("listing output sizes: %w", err)
	}

	return sizes, nil
}

// ListRepos returns the distinct repo names that have samples.
func (s *gormStore) ListRepos(ctx context.Context) ([]string, error) {
	var repos []string
	if err := s.db.WithContext(ctx).
		Model(&Sample{}).
		Distinct("repo").
		Order("repo").
		Pluck("repo", &repos).Error; err != nil {
		return nil, fmt.Errorf("listing repos: %w", err)
	}

	return repos, nil
}
