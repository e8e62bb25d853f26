package workflow

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeWorkflow(t *testing.T, contents string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "workflow.yaml")
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o644))
	return path
}

func TestLoadHomogeneous(t *testing.T) {
	path := writeWorkflow(t, `
command: ./run.sh
tasks_per_job: 2
footprint:
  cores_per_task: 4
  gpus_per_task: 0
tasks:
  - id: task-1
    args: ["--seed", "1"]
    dir: run1
  - id: task-2
    args: "--seed=2"
`)

	wf, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "./run.sh", wf.Command)
	require.Len(t, wf.Tasks, 2)
	assert.Equal(t, "task-1", wf.Tasks[0].ID)
	assert.Equal(t, []string{"--seed", "1"}, wf.Tasks[0].Args)
	assert.Equal(t, "run1", wf.Tasks[0].Dir)
	assert.Equal(t, []string{"--seed=2"}, wf.Tasks[1].Args)
	assert.Equal(t, 4, wf.Footprint.CoresPerTask)
	assert.Equal(t, 2, wf.TasksPerJob)
}

func TestLoadAssignsSyntheticID(t *testing.T) {
	path := writeWorkflow(t, `
command: ./run.sh
tasks:
  - args: []
`)

	wf, err := Load(path)
	require.NoError(t, err)
	require.Len(t, wf.Tasks, 1)
	assert.NotEmpty(t, wf.Tasks[0].ID)
}

func TestLoadRequiresCommand(t *testing.T) {
	path := writeWorkflow(t, `
tasks:
  - id: task-1
`)

	_, err := Load(path)
	assert.Error(t, err)
}

func TestLoadRequiresTasks(t *testing.T) {
	path := writeWorkflow(t, `
command: ./run.sh
tasks: []
`)

	_, err := Load(path)
	assert.Error(t, err)
}

func TestLoadRejectsMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestLoadRejectsInvalidArgShape(t *testing.T) {
	path := writeWorkflow(t, `
command: ./run.sh
tasks:
  - id: task-1
    args: true
`)

	_, err := Load(path)
	assert.Error(t, err)
}
