package repo

import (
	"context"
	"errors"
	"fmt"
	"os"
	"regexp"
	"strings"
)

// PatchStatement is inserted at the top of the patched function body.
const PatchStatement = `println!("toolchainbench: patched build");`

var (
	mainSignature = regexp.MustCompile(`^\s*fn\s+main\s*\(\s*\)`)

	// const fns are skipped since println! is not allowed in them.
	functionSignature = regexp.MustCompile(
		`^\s*(?:pub(?:\([^)]*\))?\s+)?(?:(?:async|unsafe|extern(?:\s+"[^"]*")?)\s+)*fn\s+\w+.*\{\s*$`,
	)
)

// PatchSource inserts PatchStatement after the entry point signature, or
// after the first function signature when there is no main.
func PatchSource(src []byte) ([]byte, error) {
	lines := strings.Split(string(src), "\n")

	target := -1

	for i, line := range lines {
		if !functionSignature.MatchString(strings.TrimRight(line, "\r")) {
			continue
		}

		if mainSignature.MatchString(line) {
			target = i

			break
		}

		if target == -1 {
			target = i
		}
	}

	if target == -1 {
		return nil, errors.New("no single-line function signature found")
	}

	signature := lines[target]
	indent := signature[:len(signature)-len(strings.TrimLeft(signature, " \t"))]

	lineEnd := ""
	if strings.HasSuffix(signature, "\r") {
		lineEnd = "\r"
	}

	patched := make([]string, 0, len(lines)+1)
	patched = append(patched, lines[:target+1]...)
	patched = append(patched, indent+"    "+PatchStatement+lineEnd)
	patched = append(patched, lines[target+1:]...)

	return []byte(strings.Join(patched, "\n")), nil
}

// ApplyPatch rewrites the touch file with PatchStatement inserted. The
// change stays until DiscardLocalChanges runs; prefer WithPatch.
func (c *Checkout) ApplyPatch() error {
	path := c.TouchFilePath()

	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("stat touch file: %w", err)
	}

	src, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading touch file: %w", err)
	}

	patched, err := PatchSource(src)
	if err != nil {
		return fmt.Errorf("patching %s: %w", path, err)
	}

	if err := os.WriteFile(path, patched, info.Mode().Perm()); err != nil {
		return fmt.Errorf("writing patched touch file: %w", err)
	}

	return nil
}

// WithPatch applies the source patch, runs fn and then discards local
// changes. The revert runs on every exit path, including cancellation and
// panics, and its error is joined with fn's.
func (c *Checkout) WithPatch(ctx context.Context, fn func() error) (err error) {
	revertCtx := context.WithoutCancel(ctx)

	defer func() {
		if revertErr := c.DiscardLocalChanges(revertCtx); revertErr != nil {
			c.log.WithError(revertErr).Error("Failed to revert source patch")

			err = errors.Join(err, revertErr)
		}
	}()

	if err := c.ApplyPatch(); err != nil {
		return err
	}

	return fn()
}
