// Package benchmark runs the timed build stages against a prepared
// workspace.
package benchmark

import (
	"context"
	"errors"
	"fmt"

	"github.com/ethpandaops/toolchainbench/pkg/cargo"
	"github.com/ethpandaops/toolchainbench/pkg/profile"
	"github.com/ethpandaops/toolchainbench/pkg/repo"
	"github.com/ethpandaops/toolchainbench/pkg/toolchain"
	"github.com/sirupsen/logrus"
)

// Workspace is a checked-out repo the protocol can build and mutate.
type Workspace interface {
	Descriptor() repo.Descriptor
	BaseDir() string
	RemoveBuildOutputDir() error
	TouchFile() error
	WithPatch(ctx context.Context, fn func() error) error
	ArtifactPath(mode cargo.CompilerMode) (string, error)
}

// Ensure interface compliance.
var _ Workspace = (*repo.Checkout)(nil)

// Config configures a Protocol.
type Config struct {
	Repetitions int
	// Warmup runs an untimed cargo check first so dependency downloads do
	// not land in the first sample.
	Warmup bool
}

// Protocol collects duration samples for every compiler and profile mode.
type Protocol struct {
	log    logrus.FieldLogger
	runner cargo.Runner
	cfg    *Config
}

// NewProtocol creates a Protocol.
func NewProtocol(log logrus.FieldLogger, runner cargo.Runner, cfg *Config) *Protocol {
	return &Protocol{
		log:    log.WithField("component", "protocol"),
		runner: runner,
		cfg:    cfg,
	}
}

// Run measures ws under the active toolchain. Each compiler mode is
// independent: a failing mode contributes no buckets and the remaining
// modes still run. The returned error joins every mode failure. A version
// control failure stops all remaining modes since the working tree can no
// longer be trusted.
func (p *Protocol) Run(ctx context.Context, ws Workspace, version toolchain.Version) (profile.Samples, error) {
	log := p.log.WithFields(logrus.Fields{
		"repo":    ws.Descriptor().Name,
		"version": version.String(),
	})

	samples := make(profile.Samples)

	if p.cfg.Warmup {
		log.Debug("Warming up")

		if _, err := p.runner.Run(ctx, ws.BaseDir(), cargo.CompilerModeCheck); err != nil {
			return samples, fmt.Errorf("warm-up build: %w", err)
		}
	}

	var errs []error

	for _, mode := range cargo.CompilerModes() {
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)

			break
		}

		modeLog := log.WithField("compiler_mode", mode)

		modeSamples, err := p.runMode(ctx, modeLog, ws, mode)
		if err != nil {
			modeLog.WithError(err).Error("Compiler mode failed")

			errs = append(errs, fmt.Errorf("compiler mode %s: %w", mode, err))

			var vcsErr *repo.VcsError
			if errors.As(err, &vcsErr) {
				break
			}

			continue
		}

		for key, values := range modeSamples {
			samples[key] = values
		}
	}

	return samples, errors.Join(errs...)
}

func (p *Protocol) runMode(
	ctx context.Context,
	log logrus.FieldLogger,
	ws Workspace,
	mode cargo.CompilerMode,
) (profile.Samples, error) {
	samples := make(profile.Samples, len(cargo.ProfileModes()))
	for _, pm := range cargo.ProfileModes() {
		samples[profile.SampleKey{CompilerMode: mode, ProfileMode: pm}] = []cargo.Milliseconds{}
	}

	compile := func(pm cargo.ProfileMode, rep int) error {
		ms, err := p.runner.Run(ctx, ws.BaseDir(), mode)
		if err != nil {
			return fmt.Errorf("%s build: %w", pm, err)
		}

		samples.Add(profile.SampleKey{CompilerMode: mode, ProfileMode: pm}, ms)

		log.WithFields(logrus.Fields{
			"profile_mode": pm,
			"repetition":   rep,
			"duration_ms":  uint64(ms),
		}).Debug("Recorded sample")

		return nil
	}

	for rep := 1; rep <= p.cfg.Repetitions; rep++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		if err := ws.RemoveBuildOutputDir(); err != nil {
			return nil, err
		}

		if err := compile(cargo.ProfileModeClean, rep); err != nil {
			return nil, err
		}

		if err := ctx.Err(); err != nil {
			return nil, err
		}

		if err := ws.TouchFile(); err != nil {
			return nil, err
		}

		if err := compile(cargo.ProfileModeIncremental, rep); err != nil {
			return nil, err
		}

		if err := ctx.Err(); err != nil {
			return nil, err
		}

		if err := ws.WithPatch(ctx, func() error {
			return compile(cargo.ProfileModePatchIncremental, rep)
		}); err != nil {
			return nil, err
		}
	}

	return samples, nil
}
