// Package errtypes names the error taxonomy the dispatch core classifies
// every failure into. Each kind is a distinct Go type so callers can branch
// on it with errors.As instead of matching strings.
package errtypes

import "fmt"

// InvalidConfig marks a construction-time error: a nonsensical manager or
// job-spec configuration. It is always fatal to the caller.
type InvalidConfig struct {
	Reason string
}

func (e *InvalidConfig) Error() string { return "invalid config: " + e.Reason }

// NewInvalidConfig builds an InvalidConfig with a formatted reason.
func NewInvalidConfig(format string, args ...any) error {
	return &InvalidConfig{Reason: fmt.Sprintf(format, args...)}
}

// WrapperFailure marks a future that raised while being reaped: the
// submission or the executor itself failed, as opposed to the task process
// running and exiting non-zero.
type WrapperFailure struct {
	TaskID string
	Err    error
}

func (e *WrapperFailure) Error() string {
	return fmt.Sprintf("task %s: wrapper failure: %v", e.TaskID, e.Err)
}

func (e *WrapperFailure) Unwrap() error { return e.Err }

// NonzeroExit marks a task whose process ran to completion but returned a
// non-zero exit code.
type NonzeroExit struct {
	TaskID   string
	ExitCode int
}

func (e *NonzeroExit) Error() string {
	return fmt.Sprintf("task %s: nonzero exit %d", e.TaskID, e.ExitCode)
}

// Cancellation marks a future that resolved as cancelled rather than with an
// exit code or an exception.
type Cancellation struct {
	TaskID string
}

func (e *Cancellation) Error() string {
	return fmt.Sprintf("task %s: cancelled before completion", e.TaskID)
}

// RestartLoadFailure marks a malformed restart snapshot. The caller must
// decide whether to proceed with an empty task log or abort.
type RestartLoadFailure struct {
	Path string
	Err  error
}

func (e *RestartLoadFailure) Error() string {
	return fmt.Sprintf("failed to load restart file %s: %v", e.Path, e.Err)
}

func (e *RestartLoadFailure) Unwrap() error { return e.Err }
