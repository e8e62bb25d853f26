package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

type fakeSource struct {
	pending, running, completed, failed int
	freeCores, freeGPUs                 int
}

func (f fakeSource) PendingLen() int      { return f.pending }
func (f fakeSource) RunningLen() int      { return f.running }
func (f fakeSource) CompletedCount() int  { return f.completed }
func (f fakeSource) FailedLen() int       { return f.failed }
func (f fakeSource) FreeCores() int       { return f.freeCores }
func (f fakeSource) FreeGPUs() int        { return f.freeGPUs }

func TestCollectorCollect(t *testing.T) {
	src := fakeSource{pending: 5, running: 1, completed: 7, failed: 2, freeCores: 16, freeGPUs: 1}
	c := NewCollector(src)

	c.collect()

	if got := testutil.ToFloat64(TasksPending); got != 5 {
		t.Errorf("TasksPending = %v, want 5", got)
	}
	if got := testutil.ToFloat64(FreeGPUs); got != 1 {
		t.Errorf("FreeGPUs = %v, want 1", got)
	}
}

func TestCollectorStartStop(t *testing.T) {
	src := fakeSource{}
	c := NewCollector(src)
	c.Start()
	time.Sleep(10 * time.Millisecond)
	c.Stop()
}
