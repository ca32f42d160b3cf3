package repo

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"time"

	"github.com/ethpandaops/toolchainbench/pkg/cargo"
	"github.com/sirupsen/logrus"
)

// DefaultGitBinary is the git executable looked up on PATH.
const DefaultGitBinary = "git"

// Checkout is a working copy of one catalog repo under a root directory.
// All paths derive from the root it was created with.
type Checkout struct {
	log  logrus.FieldLogger
	root string
	git  string
	desc Descriptor
}

// NewCheckout creates a Checkout for desc rooted at root. Nothing touches
// disk until Clone is called.
func NewCheckout(log logrus.FieldLogger, root, gitBinary string, desc Descriptor) *Checkout {
	if gitBinary == "" {
		gitBinary = DefaultGitBinary
	}

	return &Checkout{
		log: log.WithFields(logrus.Fields{
			"component": "checkout",
			"repo":      desc.Name,
		}),
		root: root,
		git:  gitBinary,
		desc: desc,
	}
}

// Descriptor returns the descriptor the checkout was created from.
func (c *Checkout) Descriptor() Descriptor {
	return c.desc
}

// RepoDir is the clone directory, <root>/<name>.
func (c *Checkout) RepoDir() string {
	return filepath.Join(c.root, c.desc.Name)
}

// BaseDir is where cargo runs, <root>/<name>/<sub_directory>.
func (c *Checkout) BaseDir() string {
	return filepath.Join(c.RepoDir(), c.desc.SubDirectory)
}

// TargetDir is the build output directory, <root>/<name>/target.
func (c *Checkout) TargetDir() string {
	return filepath.Join(c.RepoDir(), "target")
}

// TouchFilePath is the source file bumped and patched between builds.
func (c *Checkout) TouchFilePath() string {
	return filepath.Join(c.BaseDir(), c.desc.TouchFile)
}

// ArtifactPath resolves the built artifact for mode.
func (c *Checkout) ArtifactPath(mode cargo.CompilerMode) (string, error) {
	if c.desc.Output == "" {
		return "", fmt.Errorf("repo %s has no output configured", c.desc.Name)
	}

	switch mode {
	case cargo.CompilerModeDebug:
		return filepath.Join(c.TargetDir(), "debug", c.desc.Output), nil
	case cargo.CompilerModeRelease:
		return filepath.Join(c.TargetDir(), "release", c.desc.Output), nil
	default:
		return "", fmt.Errorf("compiler mode %s produces no artifact", mode)
	}
}

// Clone ensures the repo exists locally and is at the pinned commit.
// Existing clones are reused and reset.
func (c *Checkout) Clone(ctx context.Context) error {
	if _, err := os.Stat(filepath.Join(c.RepoDir(), ".git")); err == nil {
		c.log.Debug("Reusing existing clone")

		if err := c.DiscardLocalChanges(ctx); err != nil {
			return err
		}
	} else {
		if err := os.MkdirAll(c.root, 0o755); err != nil {
			return fmt.Errorf("creating checkout root: %w", err)
		}

		c.log.WithField("url", c.desc.URL).Info("Cloning repository")

		if err := c.runGit(ctx, c.root, "clone", "clone", c.desc.URL, c.desc.Name); err != nil {
			return err
		}
	}

	if c.desc.CommitHash == "" {
		return nil
	}

	c.log.WithField("commit", c.desc.CommitHash).Debug("Checking out commit")

	return c.runGit(ctx, c.RepoDir(), "checkout", "checkout", "--quiet", c.desc.CommitHash)
}

// DiscardLocalChanges restores tracked files to HEAD.
func (c *Checkout) DiscardLocalChanges(ctx context.Context) error {
	return c.runGit(ctx, c.RepoDir(), "reset", "reset", "--hard", "--quiet")
}

// RemoveBuildOutputDir deletes the target directory. A missing directory
// is not an error.
func (c *Checkout) RemoveBuildOutputDir() error {
	dir := c.TargetDir()

	if _, err := os.Stat(dir); errors.Is(err, os.ErrNotExist) {
		c.log.WithField("path", dir).Debug("Build output directory absent")

		return nil
	}

	if err := os.RemoveAll(dir); err != nil {
		return fmt.Errorf("removing build output directory: %w", err)
	}

	return nil
}

// TouchFile bumps the touch file's modification time without changing
// its content.
func (c *Checkout) TouchFile() error {
	path := c.TouchFilePath()

	if _, err := os.Stat(path); err != nil {
		return fmt.Errorf("stat touch file: %w", err)
	}

	now := time.Now()
	if err := os.Chtimes(path, now, now); err != nil {
		return fmt.Errorf("touching %s: %w", path, err)
	}

	return nil
}

func (c *Checkout) runGit(ctx context.Context, dir, op string, args ...string) error {
	var stderr bytes.Buffer

	cmd := exec.CommandContext(ctx, c.git, args...)
	cmd.Dir = dir
	cmd.Stdout = io.Discard
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return &VcsError{
			Op:     op,
			Dir:    dir,
			Stderr: stderr.String(),
			Err:    err,
		}
	}

	return nil
}
