package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestSetQueueState(t *testing.T) {
	SetQueueState(3, 2, 10, 1)

	if got := testutil.ToFloat64(TasksPending); got != 3 {
		t.Errorf("TasksPending = %v, want 3", got)
	}
	if got := testutil.ToFloat64(TasksRunning); got != 2 {
		t.Errorf("TasksRunning = %v, want 2", got)
	}
	if got := testutil.ToFloat64(TasksCompleted); got != 10 {
		t.Errorf("TasksCompleted = %v, want 10", got)
	}
	if got := testutil.ToFloat64(TasksFailed); got != 1 {
		t.Errorf("TasksFailed = %v, want 1", got)
	}
}

func TestSetFreeResources(t *testing.T) {
	SetFreeResources(48, 4)

	if got := testutil.ToFloat64(FreeCores); got != 48 {
		t.Errorf("FreeCores = %v, want 48", got)
	}
	if got := testutil.ToFloat64(FreeGPUs); got != 4 {
		t.Errorf("FreeGPUs = %v, want 4", got)
	}
}

func TestHandlerNotNil(t *testing.T) {
	if Handler() == nil {
		t.Fatal("Handler() returned nil")
	}
}
