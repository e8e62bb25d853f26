/*
Package types defines the data model shared by every package in the
dispatch core: the Task a caller submits, the ResourceFootprint fixed for a
run, the JobSpec handed to the external resource manager, and the Submission
record that tracks an in-flight future's identity.

These types intentionally hold no behavior beyond small derived predicates
(ResourceFootprint.Heterogeneous). Construction validation — rejecting a
malformed tasks_per_job shape, requiring NNodes/GPUsPerNode for heterogeneous
submission — lives in the packages that build these values (pkg/dispatch,
pkg/fluxlet), not here, so this package imports nothing else from the
module.
*/
package types
