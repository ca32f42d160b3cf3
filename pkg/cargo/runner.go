package cargo

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"

	"github.com/sirupsen/logrus"
)

// DefaultBinary is the cargo executable looked up on PATH.
const DefaultBinary = "cargo"

// Runner invokes cargo once and reports the duration cargo printed.
type Runner interface {
	// Run builds the crate in dir. A single call is one observation; it is
	// never retried.
	Run(ctx context.Context, dir string, mode CompilerMode) (Milliseconds, error)
}

// NewRunner creates a Runner that executes binary (cargo by default).
func NewRunner(log logrus.FieldLogger, binary string) Runner {
	if binary == "" {
		binary = DefaultBinary
	}

	return &runner{
		log:    log.WithField("component", "cargo"),
		binary: binary,
	}
}

type runner struct {
	log    logrus.FieldLogger
	binary string
}

// Ensure interface compliance.
var _ Runner = (*runner)(nil)

// Run executes cargo with the arguments for mode and parses its stderr.
func (r *runner) Run(ctx context.Context, dir string, mode CompilerMode) (Milliseconds, error) {
	args := mode.Args()
	if args == nil {
		return 0, fmt.Errorf("unknown compiler mode %q", mode)
	}

	log := r.log.WithFields(logrus.Fields{
		"compiler_mode": mode,
		"dir":           dir,
	})
	log.Debug("Running cargo")

	var stderr bytes.Buffer

	cmd := exec.CommandContext(ctx, r.binary, args...)
	cmd.Dir = dir
	cmd.Stdout = io.Discard
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		exitCode := -1

		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			exitCode = exitErr.ExitCode()
		}

		return 0, &BuildError{
			Mode:     mode,
			Dir:      dir,
			ExitCode: exitCode,
			Stderr:   stderr.String(),
			Err:      err,
		}
	}

	ms, err := ParseDuration(stderr.String())
	if err != nil {
		return 0, err
	}

	log.WithField("duration_ms", uint64(ms)).Debug("Cargo finished")

	return ms, nil
}
