// Package strategy implements the submission and future-processing
// algorithms the dispatch loop delegates to, following the Strategy pattern
// to keep the control loop free of nested conditionals: a deeply nested
// "super loop" factored into isolated, swappable strategy objects.
//
// Each strategy depends on a narrow accessor interface (StateAccessor)
// rather than holding a pointer back to the manager that owns it;
// pkg/dispatch.Manager satisfies it implicitly, and pkg/strategy never
// imports pkg/dispatch, so there is no import cycle.
package strategy

import (
	"context"
	"time"

	"github.com/matensemble/matensemble/pkg/types"
)

// Completion is one resolved future, as drained from the dispatch core's
// reaping channel.
type Completion struct {
	TaskID     string
	Submission types.Submission
	ExitCode   int
	Err        error
	Cancelled  bool
}

// Failed reports whether this completion should count as a failed task:
// either the future itself errored or was cancelled (per the open-question
// resolution promoting cancelled futures to Failed) or the wrapped command
// exited nonzero.
func (c Completion) Failed() bool {
	return c.Cancelled || c.Err != nil || c.ExitCode != 0
}

// StateAccessor is the slice of dispatch.Manager state and behavior a
// strategy needs. It exists so strategy implementations never hold a
// pointer back to the manager type itself.
type StateAccessor interface {
	FreeCores() int
	FreeGPUs() int
	CoresPerTask() int
	GPUsPerTask() int
	NNodes() int
	GPUsPerNode() int

	// PendingLen reports how many tasks remain in the pending deque.
	PendingLen() int
	// PopPending removes and returns the task at the front of the pending
	// deque. ok is false if the deque is empty.
	PopPending() (task types.Task, ok bool)

	// TasksPerJobFront peeks the tasks-per-job value that applies to the
	// task currently at the front of the pending deque, without consuming
	// it. ok is false once the tasks-per-job list is exhausted.
	TasksPerJobFront() (tasksPerJob int, ok bool)
	// PopTasksPerJobFront consumes the front tasks-per-job value.
	PopTasksPerJobFront()

	// SubmitTask builds a submission for task (using tasksPerJob sub-tasks
	// per job), submits it through the resource manager, and begins
	// tracking its future. It debits free capacity and adds task to the
	// running set.
	SubmitTask(ctx context.Context, task types.Task, tasksPerJob int) error

	// DrainCompletions blocks up to timeout collecting resolved futures,
	// mirroring concurrent.futures.wait(timeout=...). It never blocks
	// longer than timeout and never calls Wait twice on the same future.
	DrainCompletions(ctx context.Context, timeout time.Duration) []Completion

	MarkCompleted(taskID string)
	// MarkFailed records a completion that resolved as a wrapper failure,
	// a nonzero exit, or a cancellation. The implementation classifies
	// which of the three occurred from the Completion's own fields.
	MarkFailed(c Completion)
	RemoveRunning(taskID string)

	// CheckResources refreshes free-capacity counters from the resource
	// manager. The heterogeneous strategy calls it immediately before and
	// after a submission, bracketing the window in which capacity can change.
	CheckResources(ctx context.Context) error
	LogProgress()

	CompletedCount() int
	WriteRestartFreq() int
	CreateRestartFile() error
}

// SubmissionStrategy decides which pending tasks to submit and when.
type SubmissionStrategy interface {
	// SubmitUntilOutOfResources submits pending tasks until admission is
	// refused, sleeping bufferTime between submissions.
	SubmitUntilOutOfResources(ctx context.Context, bufferTime time.Duration) error
}

// ProcessingStrategy reaps resolved futures and updates task bookkeeping.
type ProcessingStrategy interface {
	// ProcessFutures waits up to bufferTime for futures to resolve and
	// updates the completed/failed/running buckets accordingly.
	ProcessFutures(ctx context.Context, bufferTime time.Duration) error
}

func sleepOrDone(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
