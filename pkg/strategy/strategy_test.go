package strategy

import (
	"context"
	"errors"
	"sort"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/matensemble/matensemble/pkg/types"
)

// fakeState is a minimal, deterministic StateAccessor used to exercise the
// submission and processing strategies without a real dispatch.Manager.
type fakeState struct {
	freeCores, freeGPUs           int
	coresPerTask, gpusPerTask     int
	nnodes, gpusPerNode           int
	pending                       []types.Task
	tasksPerJob                   []int
	submitted                     []types.Task
	completed                     []string
	failed                        []string
	running                       map[string]bool
	completions                   []Completion
	writeRestartFreq              int
	restartFileCount              int
	checkResourcesCalls, logCalls int
	submitErr                     error
}

func newFakeState() *fakeState {
	return &fakeState{running: make(map[string]bool), writeRestartFreq: 1}
}

func (f *fakeState) FreeCores() int    { return f.freeCores }
func (f *fakeState) FreeGPUs() int     { return f.freeGPUs }
func (f *fakeState) CoresPerTask() int { return f.coresPerTask }
func (f *fakeState) GPUsPerTask() int  { return f.gpusPerTask }
func (f *fakeState) NNodes() int       { return f.nnodes }
func (f *fakeState) GPUsPerNode() int  { return f.gpusPerNode }

func (f *fakeState) PendingLen() int { return len(f.pending) }

func (f *fakeState) PopPending() (types.Task, bool) {
	if len(f.pending) == 0 {
		return types.Task{}, false
	}
	t := f.pending[0]
	f.pending = f.pending[1:]
	return t, true
}

func (f *fakeState) TasksPerJobFront() (int, bool) {
	if len(f.tasksPerJob) == 0 {
		return 0, false
	}
	return f.tasksPerJob[0], true
}

func (f *fakeState) PopTasksPerJobFront() {
	if len(f.tasksPerJob) > 0 {
		f.tasksPerJob = f.tasksPerJob[1:]
	}
}

func (f *fakeState) SubmitTask(ctx context.Context, task types.Task, tasksPerJob int) error {
	if f.submitErr != nil {
		return f.submitErr
	}
	f.submitted = append(f.submitted, task)
	f.running[task.ID] = true
	f.freeCores -= tasksPerJob * f.coresPerTask
	f.freeGPUs -= tasksPerJob * f.gpusPerTask
	return nil
}

func (f *fakeState) DrainCompletions(ctx context.Context, timeout time.Duration) []Completion {
	out := f.completions
	f.completions = nil
	return out
}

func (f *fakeState) MarkCompleted(taskID string) { f.completed = append(f.completed, taskID) }
func (f *fakeState) MarkFailed(c Completion) {
	f.failed = append(f.failed, c.TaskID)
}
func (f *fakeState) RemoveRunning(taskID string) { delete(f.running, taskID) }

func (f *fakeState) CheckResources(ctx context.Context) error {
	f.checkResourcesCalls++
	return nil
}
func (f *fakeState) LogProgress() { f.logCalls++ }

func (f *fakeState) CompletedCount() int   { return len(f.completed) }
func (f *fakeState) WriteRestartFreq() int { return f.writeRestartFreq }
func (f *fakeState) CreateRestartFile() error {
	f.restartFileCount++
	return nil
}

var _ StateAccessor = (*fakeState)(nil)

func taskIDs(tasks []types.Task) []string {
	ids := make([]string, len(tasks))
	for i, t := range tasks {
		ids[i] = t.ID
	}
	sort.Strings(ids)
	return ids
}

func TestCPUAffineStrategySubmitsUntilOutOfCores(t *testing.T) {
	s := newFakeState()
	s.freeCores = 5
	s.coresPerTask = 2
	s.pending = []types.Task{{ID: "a"}, {ID: "b"}, {ID: "c"}}
	s.tasksPerJob = []int{1, 1, 1}

	strat := &CPUAffineStrategy{State: s}
	require.NoError(t, strat.SubmitUntilOutOfResources(context.Background(), 0))

	assert.Equal(t, []string{"a", "b"}, taskIDs(s.submitted))
	assert.Equal(t, 1, s.freeCores)
	assert.Equal(t, []types.Task{{ID: "c"}}, s.pending)
}

func TestCPUAffineStrategyStopsWhenTasksPerJobExhausted(t *testing.T) {
	s := newFakeState()
	s.freeCores = 100
	s.coresPerTask = 1
	s.pending = []types.Task{{ID: "a"}, {ID: "b"}}
	s.tasksPerJob = []int{1}

	strat := &CPUAffineStrategy{State: s}
	require.NoError(t, strat.SubmitUntilOutOfResources(context.Background(), 0))

	assert.Equal(t, []string{"a"}, taskIDs(s.submitted))
	assert.Len(t, s.pending, 1, "task b stays pending once tasks_per_job is exhausted")
}

func TestGPUAffineStrategyGatesOnGPUCapacity(t *testing.T) {
	s := newFakeState()
	s.freeCores = 100
	s.freeGPUs = 1
	s.coresPerTask = 1
	s.gpusPerTask = 1
	s.pending = []types.Task{{ID: "a"}, {ID: "b"}}
	s.tasksPerJob = []int{1, 1}

	strat := &GPUAffineStrategy{State: s}
	require.NoError(t, strat.SubmitUntilOutOfResources(context.Background(), 0))

	assert.Equal(t, []string{"a"}, taskIDs(s.submitted))
	assert.Equal(t, 0, s.freeGPUs)
}

func TestHeterogeneousStrategyBracketsWithCheckResourcesAndLog(t *testing.T) {
	s := newFakeState()
	s.freeCores = 10
	s.coresPerTask = 1
	s.pending = []types.Task{{ID: "a"}}
	s.tasksPerJob = []int{1}

	strat := &HeterogeneousStrategy{State: s}
	require.NoError(t, strat.SubmitUntilOutOfResources(context.Background(), 0))

	assert.Equal(t, 2, s.checkResourcesCalls)
	assert.Equal(t, 2, s.logCalls)
	assert.Equal(t, []string{"a"}, taskIDs(s.submitted))
}

func TestSubmissionStrategyPropagatesSubmitError(t *testing.T) {
	s := newFakeState()
	s.freeCores = 10
	s.coresPerTask = 1
	s.pending = []types.Task{{ID: "a"}}
	s.tasksPerJob = []int{1}
	s.submitErr = errors.New("submit boom")

	strat := &CPUAffineStrategy{State: s}
	err := strat.SubmitUntilOutOfResources(context.Background(), 0)
	assert.ErrorIs(t, err, s.submitErr)
}

func TestNonAdaptiveStrategyClassifiesCompletions(t *testing.T) {
	s := newFakeState()
	s.writeRestartFreq = 2
	s.running["ok1"] = true
	s.running["ok2"] = true
	s.running["bad"] = true
	s.completions = []Completion{
		{TaskID: "ok1", ExitCode: 0},
		{TaskID: "bad", ExitCode: 1},
		{TaskID: "ok2", ExitCode: 0},
	}

	strat := &NonAdaptiveStrategy{State: s}
	require.NoError(t, strat.ProcessFutures(context.Background(), 0))

	assert.ElementsMatch(t, []string{"ok1", "ok2"}, s.completed)
	assert.Equal(t, []string{"bad"}, s.failed)
	assert.Empty(t, s.running)
	assert.Equal(t, 1, s.restartFileCount, "the second successful completion crosses the write_restart_freq=2 cadence")
}

func TestNonAdaptiveStrategyNeverResubmits(t *testing.T) {
	s := newFakeState()
	s.pending = []types.Task{{ID: "next"}}
	s.tasksPerJob = []int{1}
	s.freeCores = 10
	s.coresPerTask = 1
	s.running["done"] = true
	s.completions = []Completion{{TaskID: "done", ExitCode: 0}}

	strat := &NonAdaptiveStrategy{State: s}
	require.NoError(t, strat.ProcessFutures(context.Background(), 0))

	assert.Empty(t, s.submitted)
	assert.Len(t, s.pending, 1)
}

func TestAdaptiveStrategyResubmitsOnCompletion(t *testing.T) {
	s := newFakeState()
	s.freeCores = 10
	s.coresPerTask = 1
	s.pending = []types.Task{{ID: "next"}}
	s.tasksPerJob = []int{1}
	s.running["done"] = true
	s.completions = []Completion{{TaskID: "done", ExitCode: 0}}

	strat := &AdaptiveStrategy{State: s}
	require.NoError(t, strat.ProcessFutures(context.Background(), 0))

	assert.Equal(t, []string{"done"}, s.completed)
	assert.Equal(t, []string{"next"}, taskIDs(s.submitted))
	assert.Empty(t, s.pending)
}

func TestAdaptiveStrategySkipsResubmitWhenOutOfResources(t *testing.T) {
	s := newFakeState()
	s.freeCores = 0
	s.coresPerTask = 1
	s.pending = []types.Task{{ID: "next"}}
	s.tasksPerJob = []int{1}
	s.running["done"] = true
	s.completions = []Completion{{TaskID: "done", ExitCode: 0}}

	strat := &AdaptiveStrategy{State: s}
	require.NoError(t, strat.ProcessFutures(context.Background(), 0))

	assert.Empty(t, s.submitted)
	assert.Len(t, s.pending, 1)
}

func TestAdaptiveStrategyDoesNotResubmitOnFailure(t *testing.T) {
	s := newFakeState()
	s.freeCores = 10
	s.coresPerTask = 1
	s.pending = []types.Task{{ID: "next"}}
	s.tasksPerJob = []int{1}
	s.running["bad"] = true
	s.completions = []Completion{{TaskID: "bad", Err: errors.New("wrapper failure")}}

	strat := &AdaptiveStrategy{State: s}
	require.NoError(t, strat.ProcessFutures(context.Background(), 0))

	assert.Equal(t, []string{"bad"}, s.failed)
	assert.Empty(t, s.submitted, "a failed completion does not trigger an opportunistic submission")
}

func TestCompletionFailedClassifiesCancellationAsFailure(t *testing.T) {
	c := Completion{TaskID: "x", Cancelled: true, Err: errors.New("cancelled")}
	assert.True(t, c.Failed())
}
