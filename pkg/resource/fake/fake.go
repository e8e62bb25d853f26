// Package fake provides an in-memory resource.Manager and executor.Future
// used to drive pkg/dispatch and pkg/strategy tests deterministically,
// without a real cluster or containerd daemon: plain scripted structs in
// place of mocks of an external system.
package fake

import (
	"context"
	"fmt"
	"sync"

	"github.com/matensemble/matensemble/pkg/executor"
	"github.com/matensemble/matensemble/pkg/resource"
	"github.com/matensemble/matensemble/pkg/types"
)

// Outcome describes how a fake future resolves.
type Outcome struct {
	ExitCode  int
	Err       error
	Cancelled bool
}

// Future is a pre-resolved executor.Future: Wait returns immediately with
// the configured Outcome.
type Future struct {
	id      string
	outcome Outcome
}

func (f *Future) Wait(ctx context.Context) (int, error) { return f.outcome.ExitCode, f.outcome.Err }
func (f *Future) Cancelled() bool                       { return f.outcome.Cancelled }
func (f *Future) ID() string                            { return f.id }

// Manager is a fake resource.Manager with mutable free capacity and a
// scripted outcome per submitted command. By default every submission
// succeeds with exit code 0.
type Manager struct {
	mu sync.Mutex

	FreeCores int
	FreeGPUs  int

	// Script maps a job's first command token to the Outcome its future
	// resolves with. Missing entries default to Outcome{ExitCode: 0}.
	Script map[string]Outcome

	submitted []types.JobSpec
	nextID    int64
}

// NewManager builds a fake manager with the given starting capacity.
func NewManager(freeCores, freeGPUs int) *Manager {
	return &Manager{FreeCores: freeCores, FreeGPUs: freeGPUs, Script: map[string]Outcome{}}
}

func (m *Manager) CheckResources(ctx context.Context) (types.ResourceStatus, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return types.ResourceStatus{FreeCores: m.FreeCores, FreeGPUs: m.FreeGPUs}, nil
}

func (m *Manager) Submit(ctx context.Context, spec types.JobSpec) (executor.Future, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	outcome := Outcome{ExitCode: 0}
	if len(spec.Command) > 0 {
		if scripted, ok := m.Script[spec.Command[0]]; ok {
			outcome = scripted
		}
	}

	m.submitted = append(m.submitted, spec)
	m.nextID++
	return &Future{id: fmt.Sprintf("fake-%d", m.nextID), outcome: outcome}, nil
}

func (m *Manager) Undrain(ctx context.Context, target string) error { return nil }

func (m *Manager) Close() error { return nil }

var _ resource.ScopedManager = (*Manager)(nil)

// Submitted returns every job spec submitted so far, in submission order.
func (m *Manager) Submitted() []types.JobSpec {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]types.JobSpec, len(m.submitted))
	copy(out, m.submitted)
	return out
}

// SetFree atomically updates the advertised free capacity, simulating jobs
// finishing elsewhere and returning resources to the pool.
func (m *Manager) SetFree(cores, gpus int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.FreeCores, m.FreeGPUs = cores, gpus
}
