package strategy

import (
	"context"
	"time"
)

// NonAdaptiveStrategy drains resolved futures and updates bookkeeping but
// never submits a replacement task itself — the outer dispatch loop's next
// submission-strategy call does that instead. Includes the periodic
// restart-file write gated on WriteRestartFreq.
type NonAdaptiveStrategy struct {
	State StateAccessor
}

// ProcessFutures implements ProcessingStrategy.
func (s *NonAdaptiveStrategy) ProcessFutures(ctx context.Context, bufferTime time.Duration) error {
	completions := s.State.DrainCompletions(ctx, bufferTime)
	for _, c := range completions {
		s.State.RemoveRunning(c.TaskID)

		if c.Failed() {
			s.State.MarkFailed(c)
			continue
		}

		s.State.MarkCompleted(c.TaskID)

		freq := s.State.WriteRestartFreq()
		if freq > 0 && s.State.CompletedCount()%freq == 0 {
			if err := s.State.CreateRestartFile(); err != nil {
				return err
			}
		}
	}
	return nil
}

// AdaptiveStrategy drains resolved futures and, after each successful
// completion, immediately backfills the slot it frees, as long as a pending
// task and sufficient capacity remain. A failed completion is recorded and
// not backfilled.
type AdaptiveStrategy struct {
	State StateAccessor
}

// ProcessFutures implements ProcessingStrategy.
func (s *AdaptiveStrategy) ProcessFutures(ctx context.Context, bufferTime time.Duration) error {
	completions := s.State.DrainCompletions(ctx, bufferTime)
	for _, c := range completions {
		s.State.RemoveRunning(c.TaskID)

		if c.Failed() {
			s.State.MarkFailed(c)
			continue
		}

		s.State.MarkCompleted(c.TaskID)

		freq := s.State.WriteRestartFreq()
		if freq > 0 && s.State.CompletedCount()%freq == 0 {
			if err := s.State.CreateRestartFile(); err != nil {
				return err
			}
		}

		tasksPerJob, ok := s.State.TasksPerJobFront()
		if !ok || s.State.PendingLen() == 0 {
			continue
		}
		if s.State.FreeCores() < tasksPerJob*s.State.CoresPerTask() {
			continue
		}

		if err := s.State.CheckResources(ctx); err != nil {
			return err
		}
		s.State.LogProgress()

		task, ok := s.State.PopPending()
		if !ok {
			continue
		}
		s.State.PopTasksPerJobFront()

		if err := s.State.SubmitTask(ctx, task, tasksPerJob); err != nil {
			return err
		}

		if err := s.State.CheckResources(ctx); err != nil {
			return err
		}
		s.State.LogProgress()

		if err := sleepOrDone(ctx, bufferTime); err != nil {
			return err
		}
	}
	return nil
}

var (
	_ ProcessingStrategy = (*NonAdaptiveStrategy)(nil)
	_ ProcessingStrategy = (*AdaptiveStrategy)(nil)
)
