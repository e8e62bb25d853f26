package types

// Task is one unit of work driven through the dispatch loop. ID is opaque
// and user-chosen; it must be stable across a restart round trip.
type Task struct {
	ID          string
	Args        []string
	Dir         string
	TasksPerJob int
}

// ResourceFootprint is the constant-for-the-run resource shape of every task
// submitted by one Manager. Heterogeneous (dynopro) submission additionally
// needs NNodes and GPUsPerNode.
type ResourceFootprint struct {
	CoresPerTask int
	GPUsPerTask  int
	NNodes       int
	GPUsPerNode  int
}

// Heterogeneous reports whether the footprint carries enough information for
// the per-resource/per-node job-spec builder.
func (f ResourceFootprint) Heterogeneous() bool {
	return f.NNodes > 0 && f.GPUsPerNode > 0
}

// JobSpec is the descriptor handed to the external resource manager's
// executor. It never carries process-specific state (pids, futures); the
// per-submission bookkeeping record is this package's Submission type.
type JobSpec struct {
	Command []string

	// Homogeneous resource request.
	NumTasks     int
	CoresPerTask int
	GPUsPerTask  int

	// Heterogeneous (per-resource) request. Zero values mean "not used".
	NCores          int
	NNodes          int
	GPUsPerNode     int
	PerResourceType string
	PerResourceCnt  int

	Cwd    string
	Stdout string
	Stderr string
	Env    map[string]string

	MPI         bool
	CPUAffinity bool
	GPUAffinity bool
}

// Submission is the non-monkey-patched stand-in for "future annotation": the
// dispatch manager keeps one of these per in-flight future, keyed by the
// task ID, instead of attaching fields to the future object.
type Submission struct {
	TaskID  string
	JobSpec JobSpec
	Workdir string
}

// FailedTask pairs a terminally-failed task id with the job spec that was
// used to submit it, for diagnostics and restart-file inspection.
type FailedTask struct {
	TaskID  string
	JobSpec JobSpec
}

// ResourceStatus is a point-in-time snapshot returned by a resource probe.
type ResourceStatus struct {
	FreeCores int
	FreeGPUs  int
}
