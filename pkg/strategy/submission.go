package strategy

import (
	"context"
	"time"
)

// CPUAffineStrategy is the default submission strategy: it admits the task
// at the front of the pending deque whenever its tasks-per-job footprint
// fits in free core capacity.
type CPUAffineStrategy struct {
	State StateAccessor
}

// SubmitUntilOutOfResources implements SubmissionStrategy.
func (s *CPUAffineStrategy) SubmitUntilOutOfResources(ctx context.Context, bufferTime time.Duration) error {
	for {
		tasksPerJob, ok := s.State.TasksPerJobFront()
		if !ok || s.State.PendingLen() == 0 {
			return nil
		}
		needed := tasksPerJob * s.State.CoresPerTask()
		if s.State.FreeCores() < needed {
			return nil
		}

		task, ok := s.State.PopPending()
		if !ok {
			return nil
		}
		s.State.PopTasksPerJobFront()

		if err := s.State.SubmitTask(ctx, task, tasksPerJob); err != nil {
			return err
		}

		if err := sleepOrDone(ctx, bufferTime); err != nil {
			return err
		}
	}
}

// GPUAffineStrategy additionally gates admission on free GPU capacity,
// following CPUAffineStrategy's shape with one extra predicate term.
type GPUAffineStrategy struct {
	State StateAccessor
}

// SubmitUntilOutOfResources implements SubmissionStrategy.
func (s *GPUAffineStrategy) SubmitUntilOutOfResources(ctx context.Context, bufferTime time.Duration) error {
	for {
		tasksPerJob, ok := s.State.TasksPerJobFront()
		if !ok || s.State.PendingLen() == 0 {
			return nil
		}
		neededCores := tasksPerJob * s.State.CoresPerTask()
		neededGPUs := tasksPerJob * s.State.GPUsPerTask()
		if s.State.FreeCores() < neededCores || s.State.FreeGPUs() < neededGPUs {
			return nil
		}

		task, ok := s.State.PopPending()
		if !ok {
			return nil
		}
		s.State.PopTasksPerJobFront()

		if err := s.State.SubmitTask(ctx, task, tasksPerJob); err != nil {
			return err
		}

		if err := sleepOrDone(ctx, bufferTime); err != nil {
			return err
		}
	}
}

// HeterogeneousStrategy submits per-resource jobs spanning a fixed
// node/GPU-per-node layout, bracketing each submission with extra
// CheckResources/LogProgress calls.
type HeterogeneousStrategy struct {
	State StateAccessor
}

// SubmitUntilOutOfResources implements SubmissionStrategy.
func (s *HeterogeneousStrategy) SubmitUntilOutOfResources(ctx context.Context, bufferTime time.Duration) error {
	for {
		tasksPerJob, ok := s.State.TasksPerJobFront()
		if !ok || s.State.PendingLen() == 0 {
			return nil
		}
		needed := tasksPerJob * s.State.CoresPerTask()
		if s.State.FreeCores() < needed {
			return nil
		}

		if err := s.State.CheckResources(ctx); err != nil {
			return err
		}
		s.State.LogProgress()

		task, ok := s.State.PopPending()
		if !ok {
			return nil
		}

		if err := s.State.SubmitTask(ctx, task, tasksPerJob); err != nil {
			return err
		}

		if err := s.State.CheckResources(ctx); err != nil {
			return err
		}
		s.State.LogProgress()
		s.State.PopTasksPerJobFront()

		if err := sleepOrDone(ctx, bufferTime); err != nil {
			return err
		}
	}
}

var (
	_ SubmissionStrategy = (*CPUAffineStrategy)(nil)
	_ SubmissionStrategy = (*GPUAffineStrategy)(nil)
	_ SubmissionStrategy = (*HeterogeneousStrategy)(nil)
)
