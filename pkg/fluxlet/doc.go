/*
Package fluxlet builds one submission descriptor per task: command
assembly, working-directory resolution, resource request shape, affinity
flags, and environment. It has no notion of a pending queue or a running
set — those belong to pkg/dispatch — so it can be exercised directly in
tests without constructing a Manager.

Two builders cover the two submission shapes: BuildHomogeneous
(num-tasks/cores-per-task/gpus-per-task, used by the CPU-affine and
GPU-affine strategies) and BuildHeterogeneous (per-resource, used by the
heterogeneous strategy).

Options.CPUAffinity defaults to Go's zero value (false); callers that want
CPU affinity on by default must set it explicitly — pkg/dispatch does this
when building Options for every strategy.
*/
package fluxlet
