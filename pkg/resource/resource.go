// Package resource names the consumed interface to the external cluster
// resource manager: the probe for free capacity, job submission, and the
// undrain RPC the dispatch loop issues once before entering its loop.
//
// The cluster resource manager itself is out of scope for this repo; this
// package only fixes the shape the dispatch core depends on. Concrete
// backends (pkg/resource/containerdbackend for a real, production-
// representative executor; pkg/resource/fake for deterministic tests)
// implement Manager.
package resource

import (
	"context"

	"github.com/matensemble/matensemble/pkg/executor"
	"github.com/matensemble/matensemble/pkg/types"
)

// Manager is the single collaborator the dispatch core requires of a
// cluster resource manager.
type Manager interface {
	// CheckResources returns a point-in-time snapshot of free capacity.
	// The dispatch core treats this as authoritative: it is called at the
	// start of every outer loop pass, and the heterogeneous submission
	// strategy and the adaptive processing strategy call it again around
	// each submission they make.
	CheckResources(ctx context.Context) (types.ResourceStatus, error)

	// Submit launches one job spec and returns a handle to its future.
	Submit(ctx context.Context, spec types.JobSpec) (executor.Future, error)

	// Undrain enables the named target so jobs can be scheduled onto it.
	// The dispatch loop calls this exactly once, for target "0", before
	// entering its loop.
	Undrain(ctx context.Context, target string) error
}

// ScopedManager is a Manager acquired as a scoped resource: Close must
// release every handle the dispatch loop acquired, on every exit path.
type ScopedManager interface {
	Manager
	executor.Scoped
}
