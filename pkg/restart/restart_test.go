package restart

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/matensemble/matensemble/pkg/errtypes"
	"github.com/matensemble/matensemble/pkg/types"
)

func TestCreateThenLoadRoundTrips(t *testing.T) {
	dir := t.TempDir()
	log_ := TaskLog{
		Completed: []string{"t1", "t2"},
		Pending:   []string{"t3"},
		Failed:    []types.FailedTask{{TaskID: "t4", JobSpec: types.JobSpec{Command: []string{"./run.sh"}}}},
	}

	path, err := Create(dir, log_)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "restart_2.dat"), path)

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, log_.Completed, loaded.Completed)
	assert.Equal(t, log_.Pending, loaded.Pending)
	assert.Equal(t, log_.Failed, loaded.Failed)
	assert.Empty(t, loaded.Running)
}

func TestLoadPromotesRunningToPending(t *testing.T) {
	dir := t.TempDir()
	path, err := Create(dir, TaskLog{
		Completed: []string{"t1"},
		Running:   []string{"t2", "t3"},
		Pending:   []string{"t4"},
	})
	require.NoError(t, err)

	loaded, err := Load(path)
	require.NoError(t, err)

	assert.Empty(t, loaded.Running)
	assert.ElementsMatch(t, []string{"t4", "t2", "t3"}, loaded.Pending)
}

func TestLoadMissingFileReturnsRestartLoadFailure(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.dat"))
	require.Error(t, err)
	var failure *errtypes.RestartLoadFailure
	assert.ErrorAs(t, err, &failure)
}

func TestFileName(t *testing.T) {
	assert.Equal(t, "restart_0.dat", FileName(0))
	assert.Equal(t, "restart_100.dat", FileName(100))
}
