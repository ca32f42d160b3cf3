// Package store persists profile records to one JSON file per host.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/ethpandaops/toolchainbench/pkg/cargo"
	"github.com/ethpandaops/toolchainbench/pkg/fsutil"
	"github.com/ethpandaops/toolchainbench/pkg/profile"
	"github.com/ethpandaops/toolchainbench/pkg/repo"
	"github.com/ethpandaops/toolchainbench/pkg/toolchain"
	"github.com/sirupsen/logrus"
)

// ResultFilePattern matches result files in a results directory.
const ResultFilePattern = "results-*.json"

// ResultFile is the on-disk layout of a host's results.
type ResultFile struct {
	SystemInfo HostIdentity     `json:"system_info"`
	Profiles   profile.Profiles `json:"profiles"`
}

// Config configures a Store.
type Config struct {
	// Dir holds the result files.
	Dir string
	// Owner, when set, is applied to written files and directories.
	Owner *fsutil.OwnerConfig
	// DetectHost defaults to DetectHost.
	DetectHost HostDetector
}

// Store loads and persists the results of the current host.
type Store struct {
	log    logrus.FieldLogger
	dir    string
	owner  *fsutil.OwnerConfig
	detect HostDetector
}

// New creates a Store.
func New(log logrus.FieldLogger, cfg *Config) *Store {
	detect := cfg.DetectHost
	if detect == nil {
		detect = DetectHost
	}

	return &Store{
		log:    log.WithField("component", "store"),
		dir:    cfg.Dir,
		owner:  cfg.Owner,
		detect: detect,
	}
}

// Path returns the result file path for the current host.
func (s *Store) Path(ctx context.Context) (string, error) {
	host, err := s.detect(ctx)
	if err != nil {
		return "", fmt.Errorf("detecting host: %w", err)
	}

	return filepath.Join(s.dir, host.FileName()), nil
}

// Load reads this host's results and merges the catalog into them. A
// missing or undecodable file yields an empty set.
func (s *Store) Load(ctx context.Context, catalog []repo.Descriptor) (profile.Profiles, error) {
	path, err := s.Path(ctx)
	if err != nil {
		return nil, err
	}

	log := s.log.WithField("path", path)

	profiles := make(profile.Profiles)

	result, err := ReadResultFile(path)

	switch {
	case err == nil:
		profiles = result.Profiles
		log.WithField("repos", len(profiles)).Info("Loaded existing results")
	case errors.Is(err, os.ErrNotExist):
		log.Info("No existing results, starting fresh")
	case isDecodeError(err):
		log.WithError(err).Warn("Existing results unreadable, starting fresh")
	default:
		return nil, err
	}

	profiles.Merge(catalog)

	return profiles, nil
}

// Persist overwrites this host's result file with profiles and returns the
// written path.
func (s *Store) Persist(ctx context.Context, profiles profile.Profiles) (string, error) {
	host, err := s.detect(ctx)
	if err != nil {
		return "", fmt.Errorf("detecting host: %w", err)
	}

	if err := fsutil.MkdirAll(s.dir, 0o755, s.owner); err != nil {
		return "", fmt.Errorf("creating results directory: %w", err)
	}

	for name, record := range profiles {
		if record != nil {
			normalizeRecord(name, record)
		}
	}

	data, err := json.MarshalIndent(ResultFile{
		SystemInfo: host,
		Profiles:   profiles,
	}, "", "  ")
	if err != nil {
		return "", fmt.Errorf("encoding results: %w", err)
	}

	path := filepath.Join(s.dir, host.FileName())

	if err := fsutil.WriteFileAtomic(path, append(data, '\n'), 0o644, s.owner); err != nil {
		return "", fmt.Errorf("writing results: %w", err)
	}

	s.log.WithField("path", path).Debug("Persisted results")

	return path, nil
}

// decodeError marks a result file that exists but cannot be decoded.
type decodeError struct {
	path string
	err  error
}

func (e *decodeError) Error() string {
	return fmt.Sprintf("decoding %s: %v", e.path, e.err)
}

func (e *decodeError) Unwrap() error {
	return e.err
}

func isDecodeError(err error) bool {
	var de *decodeError

	return errors.As(err, &de)
}

// ReadResultFile reads any host's result file.
func ReadResultFile(path string) (*ResultFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading results: %w", err)
	}

	var result ResultFile
	if err := json.Unmarshal(data, &result); err != nil {
		return nil, &decodeError{path: path, err: err}
	}

	if result.Profiles == nil {
		result.Profiles = make(profile.Profiles)
	}

	for name, record := range result.Profiles {
		if record == nil {
			delete(result.Profiles, name)

			continue
		}

		normalizeRecord(name, record)

		if record.CompileTimes == nil {
			record.CompileTimes = make(map[profile.CompileTimeKey][]cargo.Milliseconds)
		}

		if record.OutputSizes == nil {
			record.OutputSizes = make(map[profile.SizeKey]cargo.Bytes)
		}
	}

	return &result, nil
}

// normalizeRecord fills descriptor fields that older or hand-written
// files leave unset, so every record can be encoded again.
func normalizeRecord(name string, record *profile.Record) {
	if record.Repo.Name == "" {
		record.Repo.Name = name
	}

	if !record.Repo.MinVersion.Valid() {
		record.Repo.MinVersion = toolchain.First
	}
}

// ListResultFiles returns the result files in dir, sorted by name.
func ListResultFiles(dir string) ([]string, error) {
	paths, err := filepath.Glob(filepath.Join(dir, ResultFilePattern))
	if err != nil {
		return nil, fmt.Errorf("listing result files: %w", err)
	}

	sort.Strings(paths)

	return paths, nil
}
