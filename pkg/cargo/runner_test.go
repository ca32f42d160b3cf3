package cargo

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// writeScript creates an executable shell script standing in for cargo.
func writeScript(t *testing.T, body string) string {
	t.Helper()

	if runtime.GOOS == "windows" {
		t.Skip("shell scripts are not executable on windows")
	}

	path := filepath.Join(t.TempDir(), "fake-cargo")
	require.NoError(t, os.WriteFile(path, []byte("#!/bin/sh\n"+body), 0o755))

	return path
}

func TestRunner_Run(t *testing.T) {
	log := logrus.New()
	log.SetLevel(logrus.ErrorLevel)

	t.Run("parses summary from stderr", func(t *testing.T) {
		script := writeScript(t, `echo "   Compiling demo v0.1.0" >&2
echo "    Finished release [optimized] target(s) in 1.33s" >&2
`)

		ms, err := NewRunner(log, script).Run(context.Background(), t.TempDir(), CompilerModeRelease)
		require.NoError(t, err)
		assert.Equal(t, Milliseconds(1330), ms)
	})

	t.Run("passes mode arguments and working directory", func(t *testing.T) {
		dir := t.TempDir()
		script := writeScript(t, `echo "$@" > args.txt
echo "    Finished dev [unoptimized + debuginfo] target(s) in 0.10s" >&2
`)

		_, err := NewRunner(log, script).Run(context.Background(), dir, CompilerModeRelease)
		require.NoError(t, err)

		args, err := os.ReadFile(filepath.Join(dir, "args.txt"))
		require.NoError(t, err)
		assert.Equal(t, "build --release\n", string(args))
	})

	t.Run("non-zero exit is a build error", func(t *testing.T) {
		script := writeScript(t, `echo "error[E0425]: cannot find value" >&2
exit 101
`)

		_, err := NewRunner(log, script).Run(context.Background(), t.TempDir(), CompilerModeCheck)
		require.Error(t, err)

		var buildErr *BuildError
		require.True(t, errors.As(err, &buildErr))
		assert.Equal(t, 101, buildErr.ExitCode)
		assert.Equal(t, CompilerModeCheck, buildErr.Mode)
		assert.Contains(t, buildErr.Stderr, "cannot find value")
	})

	t.Run("missing summary is a parse error", func(t *testing.T) {
		script := writeScript(t, `echo "nothing useful" >&2
`)

		_, err := NewRunner(log, script).Run(context.Background(), t.TempDir(), CompilerModeDebug)

		var parseErr *ParseError
		require.True(t, errors.As(err, &parseErr))
	})

	t.Run("unknown mode", func(t *testing.T) {
		_, err := NewRunner(log, "cargo").Run(context.Background(), t.TempDir(), CompilerMode("Bench"))
		require.Error(t, err)
	})
}
