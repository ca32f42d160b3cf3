package repo

import (
	"fmt"
	"strings"
)

// VcsError is returned when a git operation fails. A failed revert leaves
// the working tree in an unknown state, so callers abort the whole repo.
type VcsError struct {
	Op     string
	Dir    string
	Stderr string
	Err    error
}

func (e *VcsError) Error() string {
	msg := fmt.Sprintf("git %s in %s: %v", e.Op, e.Dir, e.Err)

	if stderr := strings.TrimSpace(e.Stderr); stderr != "" {
		msg += ": " + stderr
	}

	return msg
}

func (e *VcsError) Unwrap() error {
	return e.Err
}
