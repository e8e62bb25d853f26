// Package workflow parses the YAML or JSON task-list file a caller hands to
// cmd/matensemble into the pieces dispatch.NewManager needs: a []types.Task,
// the shared command, the raw tasks_per_job value (passed through unchanged
// so dispatch.BuildTasksPerJob applies its construction rule), and the
// resource footprint for the run.
//
// The underlying task-dispatch model originally took these as direct
// constructor arguments; this package exists to give cmd/matensemble a file
// format to read instead, following the same read-unmarshal-validate shape
// as a YAML-manifest subcommand.
package workflow

import (
	"fmt"
	"os"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"

	"github.com/matensemble/matensemble/pkg/errtypes"
	"github.com/matensemble/matensemble/pkg/fluxlet"
	"github.com/matensemble/matensemble/pkg/types"
)

// TaskSpec is one entry in a workflow file's task list. ID is optional: a
// blank ID is assigned a synthetic uuid at load time so the dispatch core
// always has a stable, comparable identity to key its buckets on.
type TaskSpec struct {
	ID   string `yaml:"id" json:"id"`
	Args any    `yaml:"args" json:"args"`
	Dir  string `yaml:"dir" json:"dir"`
}

// FootprintSpec mirrors types.ResourceFootprint for YAML/JSON decoding.
type FootprintSpec struct {
	CoresPerTask int `yaml:"cores_per_task" json:"cores_per_task"`
	GPUsPerTask  int `yaml:"gpus_per_task" json:"gpus_per_task"`
	NNodes       int `yaml:"nnodes" json:"nnodes"`
	GPUsPerNode  int `yaml:"gpus_per_node" json:"gpus_per_node"`
}

// File is the on-disk shape of a workflow file.
type File struct {
	Command            string        `yaml:"command" json:"command"`
	Tasks              []TaskSpec    `yaml:"tasks" json:"tasks"`
	TasksPerJob        any           `yaml:"tasks_per_job" json:"tasks_per_job"`
	Footprint          FootprintSpec `yaml:"footprint" json:"footprint"`
	WriteRestartFreq   int           `yaml:"write_restart_freq" json:"write_restart_freq"`
	DisableCPUAffinity bool          `yaml:"disable_cpu_affinity" json:"disable_cpu_affinity"`
	MPI                bool          `yaml:"mpi" json:"mpi"`
	BaseOutDir         string        `yaml:"base_out_dir" json:"base_out_dir"`
	LaunchDir          string        `yaml:"launch_dir" json:"launch_dir"`
}

// Workflow is a File decoded into the shapes dispatch.NewManager consumes.
type Workflow struct {
	Command            string
	Tasks              []types.Task
	TasksPerJob        any
	Footprint          types.ResourceFootprint
	WriteRestartFreq   int
	DisableCPUAffinity bool
	MPI                bool
	BaseOutDir         string
	LaunchDir          string
}

// Load reads and parses a workflow file. YAML and JSON are both accepted
// since JSON is a subset of YAML 1.2 — gopkg.in/yaml.v3 decodes either.
func Load(path string) (Workflow, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return Workflow{}, fmt.Errorf("read workflow file %s: %w", path, err)
	}

	var f File
	if err := yaml.Unmarshal(raw, &f); err != nil {
		return Workflow{}, errtypes.NewInvalidConfig("parse workflow file %s: %v", path, err)
	}

	if f.Command == "" {
		return Workflow{}, errtypes.NewInvalidConfig("workflow file %s: command is required", path)
	}
	if len(f.Tasks) == 0 {
		return Workflow{}, errtypes.NewInvalidConfig("workflow file %s: tasks list is empty", path)
	}

	tasks := make([]types.Task, 0, len(f.Tasks))
	for i, ts := range f.Tasks {
		args, err := fluxlet.NormalizeArgs(ts.Args)
		if err != nil {
			return Workflow{}, fmt.Errorf("task %d: %w", i, err)
		}

		id := ts.ID
		if id == "" {
			id = uuid.NewString()
		}

		tasks = append(tasks, types.Task{ID: id, Args: args, Dir: ts.Dir})
	}

	return Workflow{
		Command:      f.Command,
		Tasks:        tasks,
		TasksPerJob:  f.TasksPerJob,
		Footprint: types.ResourceFootprint{
			CoresPerTask: f.Footprint.CoresPerTask,
			GPUsPerTask:  f.Footprint.GPUsPerTask,
			NNodes:       f.Footprint.NNodes,
			GPUsPerNode:  f.Footprint.GPUsPerNode,
		},
		WriteRestartFreq:   f.WriteRestartFreq,
		DisableCPUAffinity: f.DisableCPUAffinity,
		MPI:                f.MPI,
		BaseOutDir:         f.BaseOutDir,
		LaunchDir:          f.LaunchDir,
	}, nil
}
