package runner

import "fmt"

// SetupError is a failure before any measurement can start, such as an
// unreadable catalog or a broken toolchain manager. The sweep does not run.
type SetupError struct {
	Op  string
	Err error
}

func (e *SetupError) Error() string {
	return fmt.Sprintf("setup: %s: %v", e.Op, e.Err)
}

func (e *SetupError) Unwrap() error {
	return e.Err
}
