// Package containerdbackend is a concrete, production-representative
// resource.Manager that runs each task to completion as a containerd task.
// It is not part of the dispatch core's required surface — the cluster
// resource manager itself is out of scope — it is this repo's demonstration
// backend, adapted from "run a long-lived service container" to "run one
// task to completion and resolve its exit code".
package containerdbackend

import (
	"context"
	"fmt"
	"os"
	"sync"
	"syscall"

	"github.com/containerd/containerd"
	"github.com/containerd/containerd/cio"
	"github.com/containerd/containerd/namespaces"
	"github.com/containerd/containerd/oci"
	"github.com/google/uuid"
	specs "github.com/opencontainers/runtime-spec/specs-go"
	"github.com/rs/zerolog"

	"github.com/matensemble/matensemble/pkg/executor"
	"github.com/matensemble/matensemble/pkg/log"
	"github.com/matensemble/matensemble/pkg/resource"
	"github.com/matensemble/matensemble/pkg/types"
)

const (
	// DefaultNamespace is the containerd namespace MatEnsemble jobs run in.
	DefaultNamespace = "matensemble"

	// DefaultSocketPath is the default containerd socket.
	DefaultSocketPath = "/run/containerd/containerd.sock"
)

// Runtime runs tasks as containerd tasks inside a fixed base image. The
// image must already contain whatever a task's Command expects to find on
// PATH; MatEnsemble does not build or pull images per task.
type Runtime struct {
	client    *containerd.Client
	namespace string
	image     string
	logger    zerolog.Logger

	mu        sync.Mutex
	freeCores int
	freeGPUs  int
}

// Config configures a Runtime.
type Config struct {
	SocketPath string
	Image      string
	FreeCores  int
	FreeGPUs   int
}

// NewRuntime connects to containerd and prepares the namespace used for
// MatEnsemble task containers.
func NewRuntime(cfg Config) (*Runtime, error) {
	socketPath := cfg.SocketPath
	if socketPath == "" {
		socketPath = DefaultSocketPath
	}
	image := cfg.Image
	if image == "" {
		image = "docker.io/library/busybox:latest"
	}

	logger := log.WithComponent("containerdbackend")

	client, err := containerd.New(socketPath)
	if err != nil {
		logger.Error().Err(err).Str("socket", socketPath).Msg("failed to connect to containerd")
		return nil, fmt.Errorf("connect to containerd: %w", err)
	}
	logger.Info().Str("socket", socketPath).Str("image", image).Msg("connected to containerd")

	return &Runtime{
		client:    client,
		namespace: DefaultNamespace,
		image:     image,
		logger:    logger,
		freeCores: cfg.FreeCores,
		freeGPUs:  cfg.FreeGPUs,
	}, nil
}

// Close releases the containerd client connection.
func (r *Runtime) Close() error {
	if r.client == nil {
		return nil
	}
	if err := r.client.Close(); err != nil {
		r.logger.Warn().Err(err).Msg("error closing containerd client")
		return err
	}
	r.logger.Info().Msg("containerd client closed")
	return nil
}

// CheckResources reports the statically-configured capacity. A real backend
// would derive this from cgroup accounting or a cluster-wide allocator; this
// demonstration backend reports a fixed pool. Submit does not debit it and
// a finished task does not credit it; it changes only when the caller calls
// SetFree.
func (r *Runtime) CheckResources(ctx context.Context) (types.ResourceStatus, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return types.ResourceStatus{FreeCores: r.freeCores, FreeGPUs: r.freeGPUs}, nil
}

// SetFree updates the advertised free capacity, e.g. from an external node
// exporter poll.
func (r *Runtime) SetFree(cores, gpus int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.freeCores, r.freeGPUs = cores, gpus
}

// Undrain is a no-op for this backend: containerd has no notion of a
// drained node to re-enable.
func (r *Runtime) Undrain(ctx context.Context, target string) error { return nil }

// Submit creates and starts one containerd task from spec and returns a
// Future resolving to its exit code.
func (r *Runtime) Submit(ctx context.Context, spec types.JobSpec) (executor.Future, error) {
	nsCtx := namespaces.WithNamespace(ctx, r.namespace)

	image, err := r.client.GetImage(nsCtx, r.image)
	if err != nil {
		r.logger.Info().Str("image", r.image).Msg("image not present locally, pulling")
		image, err = r.client.Pull(nsCtx, r.image, containerd.WithPullUnpack)
		if err != nil {
			r.logger.Error().Err(err).Str("image", r.image).Msg("failed to pull image")
			return nil, fmt.Errorf("pull image %s: %w", r.image, err)
		}
	}

	containerID := "matensemble-" + uuid.NewString()
	logger := r.logger.With().Str("container_id", containerID).Logger()

	envSlice := make([]string, 0, len(spec.Env))
	for k, v := range spec.Env {
		envSlice = append(envSlice, k+"="+v)
	}

	opts := []oci.SpecOpts{
		oci.WithImageConfig(image),
		oci.WithProcessArgs(spec.Command...),
		oci.WithEnv(envSlice),
		oci.WithProcessCwd("/workspace"),
		oci.WithMounts([]specs.Mount{workspaceMount(spec.Cwd)}),
	}

	ctr, err := r.client.NewContainer(
		nsCtx,
		containerID,
		containerd.WithImage(image),
		containerd.WithNewSnapshot(containerID+"-snapshot", image),
		containerd.WithNewSpec(opts...),
	)
	if err != nil {
		logger.Error().Err(err).Msg("failed to create container")
		return nil, fmt.Errorf("create container: %w", err)
	}
	logger.Debug().Msg("container created")

	stdoutFile, err := os.Create(spec.Stdout)
	if err != nil {
		logger.Error().Err(err).Str("path", spec.Stdout).Msg("failed to open stdout, cleaning up container")
		ctr.Delete(nsCtx)
		return nil, fmt.Errorf("open stdout %s: %w", spec.Stdout, err)
	}
	stderrFile, err := os.Create(spec.Stderr)
	if err != nil {
		logger.Error().Err(err).Str("path", spec.Stderr).Msg("failed to open stderr, cleaning up container")
		stdoutFile.Close()
		ctr.Delete(nsCtx)
		return nil, fmt.Errorf("open stderr %s: %w", spec.Stderr, err)
	}

	task, err := ctr.NewTask(nsCtx, cio.NewCreator(cio.WithStreams(nil, stdoutFile, stderrFile)))
	if err != nil {
		logger.Error().Err(err).Msg("failed to create task, cleaning up container")
		stdoutFile.Close()
		stderrFile.Close()
		ctr.Delete(nsCtx)
		return nil, fmt.Errorf("create task: %w", err)
	}

	statusC, err := task.Wait(nsCtx)
	if err != nil {
		logger.Error().Err(err).Msg("failed to attach wait on task, cleaning up")
		task.Delete(nsCtx)
		stdoutFile.Close()
		stderrFile.Close()
		ctr.Delete(nsCtx)
		return nil, fmt.Errorf("wait on task: %w", err)
	}

	if err := task.Start(nsCtx); err != nil {
		logger.Error().Err(err).Msg("failed to start task, cleaning up")
		task.Delete(nsCtx)
		stdoutFile.Close()
		stderrFile.Close()
		ctr.Delete(nsCtx)
		return nil, fmt.Errorf("start task: %w", err)
	}
	logger.Info().Msg("task started")

	return &future{
		id:        containerID,
		namespace: r.namespace,
		container: ctr,
		task:      task,
		statusC:   statusC,
		logger:    logger,
		cleanup:   func() { stdoutFile.Close(); stderrFile.Close() },
	}, nil
}

func workspaceMount(hostCwd string) specs.Mount {
	return specs.Mount{
		Destination: "/workspace",
		Type:        "bind",
		Source:      hostCwd,
		Options:     []string{"rbind"},
	}
}

// future is an executor.Future backed by a containerd task.
type future struct {
	id        string
	namespace string
	container containerd.Container
	task      containerd.Task
	statusC   <-chan containerd.ExitStatus
	logger    zerolog.Logger
	cleanup   func()

	cancelled bool
}

func (f *future) ID() string { return f.id }

func (f *future) Cancelled() bool { return f.cancelled }

func (f *future) Wait(ctx context.Context) (int, error) {
	nsCtx := namespaces.WithNamespace(ctx, f.namespace)
	defer f.cleanup()

	select {
	case status := <-f.statusC:
		code, _, err := status.Result()
		f.task.Delete(nsCtx, containerd.WithProcessKill)
		f.container.Delete(nsCtx, containerd.WithSnapshotCleanup)
		if err != nil {
			f.logger.Error().Err(err).Msg("task wait resolved with an error")
			return 0, err
		}
		f.logger.Info().Uint32("exit_code", code).Msg("task exited")
		return int(code), nil
	case <-ctx.Done():
		f.cancelled = true
		f.logger.Warn().Msg("context done before task exited, killing container")
		f.task.Kill(nsCtx, syscall.SIGKILL)
		f.task.Delete(nsCtx, containerd.WithProcessKill)
		f.container.Delete(nsCtx, containerd.WithSnapshotCleanup)
		return 0, ctx.Err()
	}
}

var (
	_ resource.ScopedManager = (*Runtime)(nil)
	_ executor.Future        = (*future)(nil)
)
