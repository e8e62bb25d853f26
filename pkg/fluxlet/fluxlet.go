package fluxlet

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/matensemble/matensemble/pkg/errtypes"
	"github.com/matensemble/matensemble/pkg/types"
)

// NormalizeArgs converts the permitted argument shapes — a list of scalars,
// a single scalar (string, int, float, or a map rendered as its string
// form), or nil — into an ordered list of strings. Any other shape is a
// typed InvalidConfig error.
func NormalizeArgs(raw any) ([]string, error) {
	switch v := raw.(type) {
	case nil:
		return []string{}, nil
	case []string:
		out := make([]string, len(v))
		copy(out, v)
		return out, nil
	case []any:
		out := make([]string, 0, len(v))
		for _, item := range v {
			s, err := scalarToString(item)
			if err != nil {
				return nil, err
			}
			out = append(out, s)
		}
		return out, nil
	default:
		s, err := scalarToString(v)
		if err != nil {
			return nil, err
		}
		return []string{s}, nil
	}
}

func scalarToString(v any) (string, error) {
	switch x := v.(type) {
	case string:
		return x, nil
	case int:
		return strconv.Itoa(x), nil
	case int32:
		return strconv.FormatInt(int64(x), 10), nil
	case int64:
		return strconv.FormatInt(x, 10), nil
	case float32:
		return strconv.FormatFloat(float64(x), 'g', -1, 32), nil
	case float64:
		return strconv.FormatFloat(x, 'g', -1, 64), nil
	case map[string]any:
		return fmt.Sprintf("%v", x), nil
	default:
		return "", errtypes.NewInvalidConfig(
			"task argument can not be %T; supports list, string, int, float, and map", v)
	}
}

// ResolveWorkdir decides where a task runs and returns an absolute,
// existing path. It never changes the calling process's working directory.
func ResolveWorkdir(taskID, dir, baseOutDir, launchDir string) (string, error) {
	if launchDir == "" {
		wd, err := os.Getwd()
		if err != nil {
			return "", fmt.Errorf("resolve launch dir: %w", err)
		}
		launchDir = wd
	}

	var p string
	switch {
	case dir != "" && filepath.IsAbs(dir):
		p = dir
	case dir != "":
		root := baseOutDir
		if root == "" {
			root = launchDir
		}
		p = filepath.Join(root, dir)
	default:
		root := baseOutDir
		if root == "" {
			root = launchDir
		}
		p = filepath.Join(root, taskID)
	}

	if err := os.MkdirAll(p, 0o755); err != nil {
		return "", fmt.Errorf("create workdir %s: %w", p, err)
	}

	abs, err := filepath.Abs(p)
	if err != nil {
		return "", fmt.Errorf("resolve absolute workdir: %w", err)
	}
	return abs, nil
}

// Options configures one job-spec build. Command and TaskID are required.
type Options struct {
	TaskID     string
	Command    string
	Args       []string
	Dir        string
	BaseOutDir string
	LaunchDir  string

	TasksPerJob int
	Footprint   types.ResourceFootprint

	MPI         bool
	CPUAffinity bool // zero value is off; pkg/dispatch sets it unless DisableCPUAffinity
	GPUAffinity bool

	Env map[string]string
}

func snapshotEnv(override map[string]string) map[string]string {
	env := make(map[string]string, len(override)+16)
	if override != nil {
		for k, v := range override {
			env[k] = v
		}
		return env
	}
	for _, kv := range os.Environ() {
		for i := 0; i < len(kv); i++ {
			if kv[i] == '=' {
				env[kv[:i]] = kv[i+1:]
				break
			}
		}
	}
	return env
}

func applyShellOptions(spec *types.JobSpec, opts Options) {
	spec.MPI = opts.MPI
	spec.CPUAffinity = opts.CPUAffinity
	spec.GPUAffinity = opts.GPUAffinity && opts.Footprint.GPUsPerTask > 0
}

// BuildHomogeneous builds the num-tasks/cores-per-task/gpus-per-task job
// spec used by the CPU-affine and GPU-affine submission strategies.
func BuildHomogeneous(opts Options) (types.JobSpec, string, error) {
	workdir, err := ResolveWorkdir(opts.TaskID, opts.Dir, opts.BaseOutDir, opts.LaunchDir)
	if err != nil {
		return types.JobSpec{}, "", err
	}

	tokens, err := splitCommand(opts.Command)
	if err != nil {
		return types.JobSpec{}, "", err
	}
	cmd := append(tokens, opts.Args...)

	spec := types.JobSpec{
		Command:      cmd,
		NumTasks:     opts.TasksPerJob,
		CoresPerTask: opts.Footprint.CoresPerTask,
		GPUsPerTask:  opts.Footprint.GPUsPerTask,
		Cwd:          workdir,
		Stdout:       filepath.Join(workdir, "stdout"),
		Stderr:       filepath.Join(workdir, "stderr"),
		Env:          snapshotEnv(opts.Env),
	}
	applyShellOptions(&spec, opts)

	return spec, workdir, nil
}

// BuildHeterogeneous builds the per-resource (dynopro) job spec. It fails
// with InvalidConfig when NNodes or GPUsPerNode is absent, since the
// per-resource layout cannot be expressed without both.
func BuildHeterogeneous(opts Options) (types.JobSpec, string, error) {
	if !opts.Footprint.Heterogeneous() {
		return types.JobSpec{}, "", errtypes.NewInvalidConfig(
			"heterogeneous submission requires NNodes and GPUsPerNode, got NNodes=%d GPUsPerNode=%d",
			opts.Footprint.NNodes, opts.Footprint.GPUsPerNode)
	}

	workdir, err := ResolveWorkdir(opts.TaskID, opts.Dir, opts.BaseOutDir, opts.LaunchDir)
	if err != nil {
		return types.JobSpec{}, "", err
	}

	tokens, err := splitCommand(opts.Command)
	if err != nil {
		return types.JobSpec{}, "", err
	}
	cmd := append(tokens, opts.Args...)

	env := snapshotEnv(opts.Env)
	env["SLURM_GPUS_PER_NODE"] = strconv.Itoa(opts.Footprint.GPUsPerNode)

	spec := types.JobSpec{
		Command:         cmd,
		NCores:          opts.TasksPerJob,
		NNodes:          opts.Footprint.NNodes,
		GPUsPerNode:     opts.Footprint.GPUsPerNode,
		PerResourceType: "core",
		PerResourceCnt:  1,
		Cwd:             workdir,
		Stdout:          filepath.Join(workdir, "stdout"),
		Stderr:          filepath.Join(workdir, "stderr"),
		Env:             env,
	}
	applyShellOptions(&spec, opts)

	return spec, workdir, nil
}
