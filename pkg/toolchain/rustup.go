package toolchain

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"

	"github.com/sirupsen/logrus"
)

// DefaultRustupBinary is the rustup executable looked up on PATH.
const DefaultRustupBinary = "rustup"

// Switcher installs and activates toolchains.
type Switcher interface {
	// SetProfileMinimal limits installs to rustc, cargo and rust-std.
	SetProfileMinimal(ctx context.Context) error
	// InstallAndActivate installs version if needed and makes it the default.
	InstallAndActivate(ctx context.Context, version Version) error
}

// NewRustup creates a Switcher backed by the rustup CLI.
func NewRustup(log logrus.FieldLogger, binary string) Switcher {
	if binary == "" {
		binary = DefaultRustupBinary
	}

	return &rustup{
		log:    log.WithField("component", "rustup"),
		binary: binary,
	}
}

type rustup struct {
	log    logrus.FieldLogger
	binary string
}

// Ensure interface compliance.
var _ Switcher = (*rustup)(nil)

// SetProfileMinimal runs `rustup set profile minimal`.
func (r *rustup) SetProfileMinimal(ctx context.Context) error {
	if err := r.run(ctx, "set", "profile", "minimal"); err != nil {
		return err
	}

	r.log.Info("Set rustup profile to minimal")

	return nil
}

// InstallAndActivate runs `rustup toolchain install` followed by `rustup default`.
func (r *rustup) InstallAndActivate(ctx context.Context, version Version) error {
	name := version.String()

	if err := r.run(ctx, "toolchain", "install", name); err != nil {
		return fmt.Errorf("installing toolchain %s: %w", name, err)
	}

	if err := r.run(ctx, "default", name); err != nil {
		return fmt.Errorf("activating toolchain %s: %w", name, err)
	}

	r.log.WithField("version", name).Info("Switched toolchain")

	return nil
}

func (r *rustup) run(ctx context.Context, args ...string) error {
	var stderr bytes.Buffer

	cmd := exec.CommandContext(ctx, r.binary, args...)
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return fmt.Errorf("%s %s: %w: %s",
			r.binary, strings.Join(args, " "), err, strings.TrimSpace(stderr.String()))
	}

	return nil
}
