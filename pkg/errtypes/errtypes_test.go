package errtypes

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestWrapperFailureUnwraps(t *testing.T) {
	cause := errors.New("executor exploded")
	err := &WrapperFailure{TaskID: "t1", Err: cause}

	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "t1")
}

func TestRestartLoadFailureUnwraps(t *testing.T) {
	cause := errors.New("bad bucket")
	err := &RestartLoadFailure{Path: "/tmp/restart_0.dat", Err: cause}

	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "/tmp/restart_0.dat")
}

func TestNewInvalidConfigFormats(t *testing.T) {
	err := NewInvalidConfig("tasks_per_job must be nil, a number, or a list, got %T", "bad")
	var invalid *InvalidConfig
	assert.ErrorAs(t, err, &invalid)
	assert.Contains(t, invalid.Reason, "got string")
}

func TestNonzeroExitAndCancellationMessages(t *testing.T) {
	nz := &NonzeroExit{TaskID: "t2", ExitCode: 7}
	assert.Contains(t, nz.Error(), "7")

	c := &Cancellation{TaskID: "t3"}
	assert.Contains(t, c.Error(), "t3")
}
