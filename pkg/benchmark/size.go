package benchmark

import (
	"context"
	"fmt"
	"os"

	"github.com/ethpandaops/toolchainbench/pkg/cargo"
	"github.com/sirupsen/logrus"
)

// ArtifactNotFoundError is returned when the built artifact cannot be
// located or stat'ed.
type ArtifactNotFoundError struct {
	Mode cargo.CompilerMode
	Path string
	Err  error
}

func (e *ArtifactNotFoundError) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("resolving %s artifact: %v", e.Mode, e.Err)
	}

	return fmt.Sprintf("%s artifact %s: %v", e.Mode, e.Path, e.Err)
}

func (e *ArtifactNotFoundError) Unwrap() error {
	return e.Err
}

// SizeProbe builds a workspace and reports the artifact size.
type SizeProbe struct {
	log    logrus.FieldLogger
	runner cargo.Runner
}

// NewSizeProbe creates a SizeProbe.
func NewSizeProbe(log logrus.FieldLogger, runner cargo.Runner) *SizeProbe {
	return &SizeProbe{
		log:    log.WithField("component", "size_probe"),
		runner: runner,
	}
}

// Measure builds ws in mode and returns the size of the output artifact.
// Only Debug and Release produce artifacts.
func (s *SizeProbe) Measure(ctx context.Context, ws Workspace, mode cargo.CompilerMode) (cargo.Bytes, error) {
	path, err := ws.ArtifactPath(mode)
	if err != nil {
		return 0, &ArtifactNotFoundError{Mode: mode, Err: err}
	}

	if _, err := s.runner.Run(ctx, ws.BaseDir(), mode); err != nil {
		return 0, fmt.Errorf("building %s for size: %w", mode, err)
	}

	info, err := os.Stat(path)
	if err != nil {
		return 0, &ArtifactNotFoundError{Mode: mode, Path: path, Err: err}
	}

	if info.IsDir() {
		return 0, &ArtifactNotFoundError{Mode: mode, Path: path, Err: fmt.Errorf("is a directory")}
	}

	s.log.WithFields(logrus.Fields{
		"repo":          ws.Descriptor().Name,
		"compiler_mode": mode,
		"path":          path,
		"bytes":         info.Size(),
	}).Debug("Measured artifact size")

	return cargo.Bytes(info.Size()), nil
}
