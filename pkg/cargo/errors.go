package cargo

import (
	"fmt"
	"strings"
)

// BuildError is returned when cargo exits non-zero.
type BuildError struct {
	Mode     CompilerMode
	Dir      string
	ExitCode int
	Stderr   string
	Err      error
}

func (e *BuildError) Error() string {
	return fmt.Sprintf("cargo %s in %s failed (exit %d): %s",
		strings.Join(e.Mode.Args(), " "), e.Dir, e.ExitCode, lastLines(e.Stderr, 5))
}

func (e *BuildError) Unwrap() error {
	return e.Err
}

// ParseError is returned when no build duration can be read from cargo output.
type ParseError struct {
	Line   string
	Reason string
}

func (e *ParseError) Error() string {
	if e.Line == "" {
		return "parsing build duration: " + e.Reason
	}

	return fmt.Sprintf("parsing build duration from %q: %s", e.Line, e.Reason)
}

// lastLines keeps error messages readable when cargo prints long diagnostics.
func lastLines(s string, n int) string {
	lines := strings.Split(strings.TrimRight(s, "\n"), "\n")
	if len(lines) > n {
		lines = lines[len(lines)-n:]
	}

	return strings.Join(lines, "\n")
}
