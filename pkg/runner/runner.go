package runner

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/ethpandaops/toolchainbench/pkg/benchmark"
	"github.com/ethpandaops/toolchainbench/pkg/cargo"
	"github.com/ethpandaops/toolchainbench/pkg/profile"
	"github.com/ethpandaops/toolchainbench/pkg/repo"
	"github.com/ethpandaops/toolchainbench/pkg/toolchain"
	"github.com/sirupsen/logrus"
)

// Runner drives the sweep over repos and toolchain versions.
type Runner interface {
	Start(ctx context.Context) error
	Stop() error

	// RunAll profiles every pending version of every selected repo,
	// persisting after each repo.
	RunAll(ctx context.Context) error
}

// ProfileStore loads and saves accumulated records.
type ProfileStore interface {
	Load(ctx context.Context, catalog []repo.Descriptor) (profile.Profiles, error)
	Persist(ctx context.Context, profiles profile.Profiles) (string, error)
}

// PersistHook is called with the result file path after every persist.
// Errors are logged and do not stop the sweep.
type PersistHook func(ctx context.Context, path string) error

// Config for the runner.
type Config struct {
	// WorkDir holds the repo checkouts.
	WorkDir string
	Catalog []repo.Descriptor
	// LimitRepos restricts the sweep to these repo names when non-empty.
	LimitRepos []string
	// MaxVersion caps the versions profiled. Zero means the newest.
	MaxVersion toolchain.Version
	GitBinary  string
}

// NewRunner creates a new runner instance.
func NewRunner(
	log logrus.FieldLogger,
	cfg *Config,
	store ProfileStore,
	switcher toolchain.Switcher,
	protocol *benchmark.Protocol,
	probe *benchmark.SizeProbe,
	hooks ...PersistHook,
) Runner {
	if cfg.MaxVersion == 0 {
		cfg.MaxVersion = toolchain.Last
	}

	return &runner{
		log:      log.WithField("component", "runner"),
		cfg:      cfg,
		store:    store,
		switcher: switcher,
		protocol: protocol,
		probe:    probe,
		hooks:    hooks,
	}
}

type runner struct {
	log      logrus.FieldLogger
	cfg      *Config
	store    ProfileStore
	switcher toolchain.Switcher
	protocol *benchmark.Protocol
	probe    *benchmark.SizeProbe
	hooks    []PersistHook
}

// Ensure interface compliance.
var _ Runner = (*runner)(nil)

// Start prepares the work directory and the toolchain manager.
func (r *runner) Start(ctx context.Context) error {
	if err := os.MkdirAll(r.cfg.WorkDir, 0o755); err != nil {
		return &SetupError{Op: "creating work directory", Err: err}
	}

	if err := r.switcher.SetProfileMinimal(ctx); err != nil {
		return &SetupError{Op: "configuring rustup", Err: err}
	}

	r.log.Debug("Runner started")

	return nil
}

// Stop cleans up the runner.
func (r *runner) Stop() error {
	r.log.Debug("Runner stopped")

	return nil
}

// RunAll runs the sweep. Per-repo and per-version failures are logged and
// skipped. Only setup and persistence failures are returned.
func (r *runner) RunAll(ctx context.Context) error {
	selected, err := r.selectRepos()
	if err != nil {
		return err
	}

	profiles, err := r.store.Load(ctx, r.cfg.Catalog)
	if err != nil {
		return &SetupError{Op: "loading results", Err: err}
	}

	for _, desc := range selected {
		if ctx.Err() != nil {
			break
		}

		record := profiles[desc.Name]

		r.runRepo(ctx, desc, record)

		if err := r.persist(ctx, profiles); err != nil {
			return err
		}
	}

	if ctx.Err() != nil {
		r.log.Warn("Sweep interrupted, results persisted up to the last completed stage")

		return nil
	}

	r.log.Info("Sweep complete")

	return nil
}

func (r *runner) selectRepos() ([]repo.Descriptor, error) {
	if len(r.cfg.LimitRepos) == 0 {
		return r.cfg.Catalog, nil
	}

	byName := make(map[string]repo.Descriptor, len(r.cfg.Catalog))
	for _, desc := range r.cfg.Catalog {
		byName[desc.Name] = desc
	}

	wanted := make(map[string]struct{}, len(r.cfg.LimitRepos))

	for _, name := range r.cfg.LimitRepos {
		if _, ok := byName[name]; !ok {
			return nil, &SetupError{Op: "filtering repos", Err: fmt.Errorf("unknown repo %q", name)}
		}

		wanted[name] = struct{}{}
	}

	selected := make([]repo.Descriptor, 0, len(wanted))

	for _, desc := range r.cfg.Catalog {
		if _, ok := wanted[desc.Name]; ok {
			selected = append(selected, desc)
		}
	}

	r.log.WithField("repos", len(selected)).Info("Filtered repos")

	return selected, nil
}

func (r *runner) pendingVersions(record *profile.Record) []toolchain.Version {
	var versions []toolchain.Version

	for _, v := range record.VersionsToProfile() {
		if v <= r.cfg.MaxVersion {
			versions = append(versions, v)
		}
	}

	return versions
}

func (r *runner) runRepo(ctx context.Context, desc repo.Descriptor, record *profile.Record) {
	log := r.log.WithField("repo", desc.Name)

	versions := r.pendingVersions(record)
	if len(versions) == 0 {
		log.Info("Repo fully profiled, skipping")

		return
	}

	log.WithField("versions", len(versions)).Info("Profiling repo")

	checkout := repo.NewCheckout(r.log, r.cfg.WorkDir, r.cfg.GitBinary, desc)

	if err := checkout.Clone(ctx); err != nil {
		log.WithError(err).Error("Failed to prepare checkout, skipping repo")

		return
	}

	for _, v := range versions {
		if ctx.Err() != nil {
			return
		}

		if err := r.runVersion(ctx, checkout, record, v); err != nil {
			var vcsErr *repo.VcsError
			if errors.As(err, &vcsErr) {
				log.WithError(err).Error("Working tree unusable, skipping rest of repo")

				return
			}
		}
	}
}

func (r *runner) runVersion(
	ctx context.Context,
	checkout *repo.Checkout,
	record *profile.Record,
	v toolchain.Version,
) error {
	log := r.log.WithFields(logrus.Fields{
		"repo":    checkout.Descriptor().Name,
		"version": v.String(),
	})

	if err := r.switcher.InstallAndActivate(ctx, v); err != nil {
		log.WithError(err).Error("Failed to switch toolchain, skipping version")

		return err
	}

	log.Info("Profiling version")

	samples, err := r.protocol.Run(ctx, checkout, v)
	record.AddCompileTimes(v, samples)

	if err != nil {
		log.WithError(err).Warn("Version profiled with failures")

		var vcsErr *repo.VcsError
		if errors.As(err, &vcsErr) || ctx.Err() != nil {
			return err
		}
	}

	for _, mode := range []cargo.CompilerMode{cargo.CompilerModeDebug, cargo.CompilerModeRelease} {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		size, sizeErr := r.probe.Measure(ctx, checkout, mode)
		if sizeErr != nil {
			log.WithError(sizeErr).WithField("compiler_mode", mode).Error("Failed to measure output size")

			err = errors.Join(err, sizeErr)

			continue
		}

		record.AddOutputSize(v, mode, size)
	}

	return err
}

func (r *runner) persist(ctx context.Context, profiles profile.Profiles) error {
	// Completed work is persisted even after cancellation.
	persistCtx := context.WithoutCancel(ctx)

	path, err := r.store.Persist(persistCtx, profiles)
	if err != nil {
		return fmt.Errorf("persisting results: %w", err)
	}

	if ctx.Err() != nil {
		return nil
	}

	for _, hook := range r.hooks {
		if err := hook(ctx, path); err != nil {
			r.log.WithError(err).WithField("path", path).Warn("Post-persist hook failed")
		}
	}

	return nil
}
