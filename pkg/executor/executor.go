// Package executor names the two small interfaces the dispatch core
// consumes from an external cluster resource manager: a Future representing
// one in-flight job, and Scoped, for handles that must be released on every
// exit path. The Manager that accepts job specs and reports free capacity,
// and its concrete backends, live in pkg/resource.
package executor

import "context"

// Future is the executor's handle to one asynchronously-running job. Wait
// blocks (bounded by ctx) until the job resolves, returning either the
// process exit code or an error describing a wrapper-level failure (the
// submission itself, or the executor, failed rather than the task process
// running and exiting non-zero).
//
// Wait must be safe to call at most once to completion per Future; the
// dispatch core calls it exactly once per reaped future.
type Future interface {
	Wait(ctx context.Context) (exitCode int, err error)

	// Cancelled reports whether the job resolved as a cancellation rather
	// than an exit code or an exception. It is only meaningful after Wait
	// has returned.
	Cancelled() bool

	// ID returns an executor-assigned identifier for diagnostics; it is not
	// used to re-identify a task (that is the Submission record's job, see
	// pkg/types.Submission).
	ID() string
}

// Scoped is implemented by executor handles that hold resources (sockets,
// background goroutines) that must be released on every exit path from the
// dispatch loop.
type Scoped interface {
	Close() error
}
