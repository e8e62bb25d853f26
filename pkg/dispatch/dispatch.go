// Package dispatch implements the single-threaded control loop that owns
// the pending/running/completed/failed task buckets, composes a submission
// strategy with a future-processing strategy, and drives a task list to
// completion: a single control goroutine with structured logging and
// metrics around the work it does.
package dispatch

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"

	"github.com/matensemble/matensemble/pkg/errtypes"
	"github.com/matensemble/matensemble/pkg/fluxlet"
	"github.com/matensemble/matensemble/pkg/log"
	"github.com/matensemble/matensemble/pkg/metrics"
	"github.com/matensemble/matensemble/pkg/resource"
	"github.com/matensemble/matensemble/pkg/restart"
	"github.com/matensemble/matensemble/pkg/status"
	"github.com/matensemble/matensemble/pkg/strategy"
	"github.com/matensemble/matensemble/pkg/types"
)

// ManagerConfig carries the dispatch manager's construction parameters.
type ManagerConfig struct {
	// Tasks is the initial task list. Each task's Args/Dir are normalized by
	// the caller (pkg/workflow does this); TasksPerJob is overwritten by
	// NewManager according to the TasksPerJob construction rule.
	Tasks []types.Task

	// Command is the shared executable every task's Args are appended to.
	Command string

	// TasksPerJob is nil, a number, or a list: nil defaults to a run of 1s,
	// a scalar repeats for every task, a list is copied verbatim. Any other
	// type is an InvalidConfig error.
	TasksPerJob any

	WriteRestartFreq int // 0 defaults to 100; negative is InvalidConfig

	Footprint types.ResourceFootprint

	DisableCPUAffinity bool
	MPI                bool

	BaseOutDir string
	LaunchDir  string
	RestartDir string // directory restart_<N>.dat files are written to

	RestartFilename string // if set and present, Load is called at construction

	ResourceManager resource.ScopedManager

	StatusPath string // defaults to <workflow dir>/status.log
}

// RunConfig carries the per-run parameters to Manager.Run.
type RunConfig struct {
	BufferTime    time.Duration
	Adaptive      bool
	Heterogeneous bool

	SubmissionOverride strategy.SubmissionStrategy
	ProcessingOverride strategy.ProcessingStrategy
}

// Manager owns the four task buckets, the in-flight set, and all resource
// counters, and is the sole mutator of that state — always from the single
// control goroutine that calls Run. It implements strategy.StateAccessor.
type Manager struct {
	resourceMgr resource.ScopedManager
	command     string
	footprint   types.ResourceFootprint
	cpuAffinity bool
	mpi         bool

	pending   []types.Task
	running   map[string]struct{}
	completed []string
	failed    []types.FailedTask

	submissions map[string]types.Submission

	completionCh chan strategy.Completion

	freeCores, freeGPUs int

	writeRestartFreq int
	baseOutDir       string
	launchDir        string
	restartDir       string
	statusPath       string

	heterogeneous bool

	logger zerolog.Logger
}

var _ strategy.StateAccessor = (*Manager)(nil)

// WorkflowDirName returns the directory name workflow artifacts are placed
// under, derived from SLURM_JOB_ID with a local fallback. Exported so
// cmd/matensemble can set up per-workflow log file output before
// constructing a Manager.
func WorkflowDirName() string {
	return workflowDirName()
}

func workflowDirName() string {
	if id := os.Getenv("SLURM_JOB_ID"); id != "" {
		return id + "_matensemble_workflow"
	}
	return fmt.Sprintf("local-%d_matensemble_workflow", os.Getpid())
}

// BuildTasksPerJob implements the tasks_per_job construction rule: nil -> a
// run of 1s, a real number -> that value repeated, a slice -> a copy,
// anything else -> InvalidConfig.
func BuildTasksPerJob(raw any, n int) ([]int, error) {
	switch v := raw.(type) {
	case nil:
		out := make([]int, n)
		for i := range out {
			out[i] = 1
		}
		return out, nil
	case int:
		out := make([]int, n)
		for i := range out {
			out[i] = v
		}
		return out, nil
	case float64:
		out := make([]int, n)
		for i := range out {
			out[i] = int(v)
		}
		return out, nil
	case []int:
		out := make([]int, len(v))
		copy(out, v)
		return out, nil
	case []any:
		out := make([]int, len(v))
		for i, item := range v {
			switch x := item.(type) {
			case int:
				out[i] = x
			case float64:
				out[i] = int(x)
			default:
				return nil, errtypes.NewInvalidConfig("tasks_per_job list entries must be numbers, got %T", item)
			}
		}
		return out, nil
	default:
		return nil, errtypes.NewInvalidConfig("tasks_per_job must be nil, a number, or a list of numbers, got %T", raw)
	}
}

// NewManager validates cfg and constructs a Manager ready to Run. It loads
// restart.TaskLog from cfg.RestartFilename if the file exists.
func NewManager(cfg ManagerConfig) (*Manager, error) {
	writeRestartFreq := cfg.WriteRestartFreq
	if writeRestartFreq == 0 {
		writeRestartFreq = 100
	}
	if writeRestartFreq < 1 {
		return nil, errtypes.NewInvalidConfig("write_restart_freq must be >= 1, got %d", cfg.WriteRestartFreq)
	}

	if cfg.ResourceManager == nil {
		return nil, errtypes.NewInvalidConfig("resource manager is required")
	}

	tasksPerJob, err := BuildTasksPerJob(cfg.TasksPerJob, len(cfg.Tasks))
	if err != nil {
		return nil, err
	}

	tasks := make([]types.Task, len(cfg.Tasks))
	copy(tasks, cfg.Tasks)
	for i := range tasks {
		if i < len(tasksPerJob) {
			tasks[i].TasksPerJob = tasksPerJob[i]
		} else {
			// tasks_per_job shorter than the pending list. These tasks carry
			// the zero sentinel, which TasksPerJobFront treats as "no
			// admission possible" so they're never considered for submission.
			tasks[i].TasksPerJob = 0
		}
	}

	restartDir := cfg.RestartDir
	if restartDir == "" {
		restartDir = "."
	}

	baseOutDir := cfg.BaseOutDir
	launchDir := cfg.LaunchDir
	if launchDir == "" {
		if wd, err := os.Getwd(); err == nil {
			launchDir = wd
		}
	}
	if baseOutDir == "" {
		baseOutDir = launchDir + "/" + workflowDirName() + "/out"
	}

	statusPath := cfg.StatusPath
	if statusPath == "" {
		statusPath = launchDir + "/" + workflowDirName() + "/status.log"
	}
	if err := os.MkdirAll(filepath.Dir(statusPath), 0o755); err != nil {
		return nil, fmt.Errorf("create workflow directory: %w", err)
	}

	m := &Manager{
		resourceMgr:      cfg.ResourceManager,
		command:          cfg.Command,
		footprint:        cfg.Footprint,
		cpuAffinity:      !cfg.DisableCPUAffinity,
		mpi:              cfg.MPI,
		pending:          tasks,
		running:          make(map[string]struct{}),
		submissions:      make(map[string]types.Submission),
		completionCh:     make(chan strategy.Completion, len(tasks)+1),
		writeRestartFreq: writeRestartFreq,
		baseOutDir:       baseOutDir,
		launchDir:        launchDir,
		restartDir:       restartDir,
		statusPath:       statusPath,
		logger:           log.WithComponent("dispatch"),
	}

	if cfg.RestartFilename != "" {
		if _, err := os.Stat(cfg.RestartFilename); err == nil {
			taskLog, err := restart.Load(cfg.RestartFilename)
			if err != nil {
				return nil, err
			}
			m.applyRestartLog(taskLog)
		}
	}

	return m, nil
}

// applyRestartLog replaces the manager's task buckets with a loaded
// snapshot. Pending task order is preserved from the log; tasks_per_job
// already travels with each Task so nothing needs re-zipping here beyond
// what NewManager already assigned before the overwrite.
func (m *Manager) applyRestartLog(taskLog restart.TaskLog) {
	byID := make(map[string]types.Task, len(m.pending))
	for _, t := range m.pending {
		byID[t.ID] = t
	}

	pending := make([]types.Task, 0, len(taskLog.Pending))
	for _, id := range taskLog.Pending {
		if t, ok := byID[id]; ok {
			pending = append(pending, t)
		}
	}
	m.pending = pending
	m.completed = append([]string{}, taskLog.Completed...)
	m.failed = append([]types.FailedTask{}, taskLog.Failed...)

	m.logger.Info().
		Int("pending", len(m.pending)).
		Int("completed", len(m.completed)).
		Int("failed", len(m.failed)).
		Msg("restored from restart snapshot")
}

// Run drives the task list to completion.
func (m *Manager) Run(ctx context.Context, cfg RunConfig) (err error) {
	m.heterogeneous = cfg.Heterogeneous

	submissionStrategy := cfg.SubmissionOverride
	if submissionStrategy == nil {
		switch {
		case cfg.Heterogeneous:
			submissionStrategy = &strategy.HeterogeneousStrategy{State: m}
		case m.footprint.GPUsPerTask > 0:
			submissionStrategy = &strategy.GPUAffineStrategy{State: m}
		default:
			submissionStrategy = &strategy.CPUAffineStrategy{State: m}
		}
	}

	processingStrategy := cfg.ProcessingOverride
	if processingStrategy == nil {
		if cfg.Adaptive {
			processingStrategy = &strategy.AdaptiveStrategy{State: m}
		} else {
			processingStrategy = &strategy.NonAdaptiveStrategy{State: m}
		}
	}

	if err := m.resourceMgr.Undrain(ctx, "0"); err != nil {
		return fmt.Errorf("undrain target 0: %w", err)
	}
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("dispatch loop panic: %v", r)
		}
		if closeErr := m.resourceMgr.Close(); closeErr != nil {
			m.logger.Warn().Err(closeErr).Msg("error closing resource manager")
		}
	}()

	m.logger.Info().Int("tasks", len(m.pending)).Msg("entering workflow environment")
	start := time.Now()

	for len(m.pending) > 0 || len(m.running) > 0 {
		if err := m.CheckResources(ctx); err != nil {
			return err
		}
		m.emitStatus()

		if err := submissionStrategy.SubmitUntilOutOfResources(ctx, cfg.BufferTime); err != nil {
			return err
		}
		if err := processingStrategy.ProcessFutures(ctx, cfg.BufferTime); err != nil {
			return err
		}
	}

	m.logger.Info().Dur("elapsed", time.Since(start)).Msg("exiting workflow environment")
	return nil
}

func (m *Manager) emitStatus() {
	snap := status.Snapshot{
		Pending:   len(m.pending),
		Running:   len(m.running),
		Completed: len(m.completed),
		Failed:    len(m.failed),
		FreeCores: m.freeCores,
		FreeGPUs:  m.freeGPUs,
		UpdatedAt: time.Now(),
	}
	if err := status.Write(m.statusPath, snap); err != nil {
		m.logger.Warn().Err(err).Msg("failed to write status file")
	}
	metrics.SetQueueState(snap.Pending, snap.Running, snap.Completed, snap.Failed)
	metrics.SetFreeResources(snap.FreeCores, snap.FreeGPUs)
}

// --- strategy.StateAccessor ---

func (m *Manager) FreeCores() int    { return m.freeCores }
func (m *Manager) FreeGPUs() int     { return m.freeGPUs }
func (m *Manager) CoresPerTask() int { return m.footprint.CoresPerTask }
func (m *Manager) GPUsPerTask() int  { return m.footprint.GPUsPerTask }
func (m *Manager) NNodes() int       { return m.footprint.NNodes }
func (m *Manager) GPUsPerNode() int  { return m.footprint.GPUsPerNode }

func (m *Manager) PendingLen() int { return len(m.pending) }

func (m *Manager) PopPending() (types.Task, bool) {
	if len(m.pending) == 0 {
		return types.Task{}, false
	}
	t := m.pending[0]
	m.pending = m.pending[1:]
	return t, true
}

// TasksPerJobFront reports the tasks-per-job value carried by the task at
// the front of pending. A zero value is the sentinel meaning no entry was
// left for this task, and is treated as "inadmissible" — the task is never
// considered for submission.
func (m *Manager) TasksPerJobFront() (int, bool) {
	if len(m.pending) == 0 {
		return 0, false
	}
	tpj := m.pending[0].TasksPerJob
	if tpj <= 0 {
		return 0, false
	}
	return tpj, true
}

// PopTasksPerJobFront is a deliberate no-op: tasksPerJob already travels
// embedded in each Task, so popping the task in PopPending already advances
// it. The method exists only so strategy code keeps the same
// submit-then-advance call shape a separate tasks-per-job queue would need.
func (m *Manager) PopTasksPerJobFront() {}

func (m *Manager) SubmitTask(ctx context.Context, task types.Task, tasksPerJob int) error {
	defer metrics.NewTimer().ObserveDuration(metrics.SubmissionDuration)

	opts := fluxlet.Options{
		TaskID:      task.ID,
		Command:     m.command,
		Args:        task.Args,
		Dir:         task.Dir,
		BaseOutDir:  m.baseOutDir,
		LaunchDir:   m.launchDir,
		TasksPerJob: tasksPerJob,
		Footprint:   m.footprint,
		MPI:         m.mpi,
		CPUAffinity: m.cpuAffinity,
		GPUAffinity: true,
	}

	var spec types.JobSpec
	var workdir string
	var err error
	if m.heterogeneous {
		spec, workdir, err = fluxlet.BuildHeterogeneous(opts)
	} else {
		spec, workdir, err = fluxlet.BuildHomogeneous(opts)
	}
	if err != nil {
		return err
	}

	future, err := m.resourceMgr.Submit(ctx, spec)
	if err != nil {
		return fmt.Errorf("submit task %s: %w", task.ID, err)
	}

	sub := types.Submission{TaskID: task.ID, JobSpec: spec, Workdir: workdir}
	m.submissions[task.ID] = sub
	m.running[task.ID] = struct{}{}

	m.freeCores -= tasksPerJob * m.footprint.CoresPerTask
	if m.footprint.GPUsPerTask > 0 {
		m.freeGPUs -= tasksPerJob * m.footprint.GPUsPerTask
	}

	go func() {
		code, waitErr := future.Wait(ctx)
		m.completionCh <- strategy.Completion{
			TaskID:     task.ID,
			Submission: sub,
			ExitCode:   code,
			Err:        waitErr,
			Cancelled:  future.Cancelled(),
		}
	}()

	return nil
}

// DrainCompletions blocks up to timeout waiting for the first resolved
// future, then opportunistically drains any others already waiting on the
// channel without blocking further — mirroring
// concurrent.futures.wait(timeout=...) without ever calling Wait twice on
// the same future.
func (m *Manager) DrainCompletions(ctx context.Context, timeout time.Duration) []strategy.Completion {
	var out []strategy.Completion
	if len(m.running) == 0 {
		return out
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case c := <-m.completionCh:
		out = append(out, c)
	case <-timer.C:
		return out
	case <-ctx.Done():
		return out
	}

	for {
		select {
		case c := <-m.completionCh:
			out = append(out, c)
		default:
			return out
		}
	}
}

func (m *Manager) MarkCompleted(taskID string) {
	m.completed = append(m.completed, taskID)
}

// MarkFailed records c as terminally failed and appends a diagnostic to the
// task's stderr file: a timestamped block with the full error for a
// wrapper failure, a short exit-code marker for a nonzero exit, per
// spec.md §4.3 steps 3-4.
func (m *Manager) MarkFailed(c strategy.Completion) {
	m.failed = append(m.failed, types.FailedTask{TaskID: c.TaskID, JobSpec: c.Submission.JobSpec})
	m.appendFailureDiagnostic(c)
}

func (m *Manager) appendFailureDiagnostic(c strategy.Completion) {
	var classified error
	var marker string
	now := time.Now().Format(time.RFC3339)

	switch {
	case c.Cancelled:
		classified = &errtypes.Cancellation{TaskID: c.TaskID}
		marker = fmt.Sprintf("\n--- %s matensemble: task cancelled before completion ---\n", now)
	case c.Err != nil:
		classified = &errtypes.WrapperFailure{TaskID: c.TaskID, Err: c.Err}
		marker = fmt.Sprintf("\n--- %s matensemble: wrapper failure ---\ncwd: %s\n%v\n",
			now, c.Submission.JobSpec.Cwd, c.Err)
	default:
		classified = &errtypes.NonzeroExit{TaskID: c.TaskID, ExitCode: c.ExitCode}
		marker = fmt.Sprintf("\n--- %s matensemble: exited %d ---\n", now, c.ExitCode)
	}

	logEvent := m.logger.Error().Err(classified).Str("task_id", c.TaskID)

	stderrPath := c.Submission.JobSpec.Stderr
	if stderrPath == "" {
		logEvent.Msg("task failed (no stderr path recorded)")
		return
	}

	f, err := os.OpenFile(stderrPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		logEvent.Str("stderr", stderrPath).Msg("task failed (stderr unavailable for diagnostic)")
		return
	}
	defer f.Close()

	if _, err := f.WriteString(marker); err != nil {
		m.logger.Warn().Err(err).Str("task_id", c.TaskID).Msg("failed to append diagnostic to stderr")
	}

	logEvent.Str("stderr", stderrPath).Msg("task failed")
}

func (m *Manager) RemoveRunning(taskID string) {
	delete(m.running, taskID)
	delete(m.submissions, taskID)
}

func (m *Manager) CheckResources(ctx context.Context) error {
	st, err := m.resourceMgr.CheckResources(ctx)
	if err != nil {
		return fmt.Errorf("check resources: %w", err)
	}
	m.freeCores = st.FreeCores
	m.freeGPUs = st.FreeGPUs
	return nil
}

func (m *Manager) LogProgress() {
	m.logger.Info().
		Int("pending", len(m.pending)).
		Int("running", len(m.running)).
		Int("completed", len(m.completed)).
		Int("failed", len(m.failed)).
		Int("free_cores", m.freeCores).
		Int("free_gpus", m.freeGPUs).
		Msg("progress")
}

func (m *Manager) CompletedCount() int   { return len(m.completed) }
func (m *Manager) WriteRestartFreq() int { return m.writeRestartFreq }

// RunningLen and FailedLen round out pkg/metrics.Source; StateAccessor has
// no need for them since strategies only ever append to failed and only
// ever remove (never count) from running.
func (m *Manager) RunningLen() int { return len(m.running) }
func (m *Manager) FailedLen() int  { return len(m.failed) }

func (m *Manager) CreateRestartFile() error {
	log_ := restart.TaskLog{
		Completed: append([]string{}, m.completed...),
		Running:   runningIDs(m.running),
		Pending:   pendingIDs(m.pending),
		Failed:    append([]types.FailedTask{}, m.failed...),
	}
	path, err := restart.Create(m.restartDir, log_)
	if err != nil {
		return err
	}
	metrics.RestartSnapshotsTotal.Inc()
	m.logger.Info().Str("path", path).Msg("wrote restart snapshot")
	return nil
}

func runningIDs(running map[string]struct{}) []string {
	out := make([]string, 0, len(running))
	for id := range running {
		out = append(out, id)
	}
	return out
}

func pendingIDs(pending []types.Task) []string {
	out := make([]string, len(pending))
	for i, t := range pending {
		out[i] = t.ID
	}
	return out
}
