package metrics

import "time"

// Source is the slice of dispatch.Manager state Collector polls. It is
// defined here, not imported from pkg/dispatch, so pkg/metrics has no
// dependency on pkg/dispatch — dispatch.Manager already exposes all six
// methods and satisfies this interface structurally.
type Source interface {
	PendingLen() int
	RunningLen() int
	CompletedCount() int
	FailedLen() int
	FreeCores() int
	FreeGPUs() int
}

// Collector periodically snapshots a Source into the package's gauges, as
// a pull-based complement to the push updates dispatch.Manager makes once
// per loop iteration — useful when buffer_time is large enough that the
// inline push lags behind what an external scraper expects. Adapted from
// a ticker-driven Collector (Start/Stop, collect-immediately-then-tick).
type Collector struct {
	source Source
	stopCh chan struct{}
}

// NewCollector creates a new metrics collector over source.
func NewCollector(source Source) *Collector {
	return &Collector{source: source, stopCh: make(chan struct{})}
}

// Start begins collecting metrics on a background goroutine.
func (c *Collector) Start() {
	ticker := time.NewTicker(15 * time.Second)
	go func() {
		c.collect()
		for {
			select {
			case <-ticker.C:
				c.collect()
			case <-c.stopCh:
				ticker.Stop()
				return
			}
		}
	}()
}

// Stop stops the collector.
func (c *Collector) Stop() {
	close(c.stopCh)
}

func (c *Collector) collect() {
	SetQueueState(c.source.PendingLen(), c.source.RunningLen(), c.source.CompletedCount(), c.source.FailedLen())
	SetFreeResources(c.source.FreeCores(), c.source.FreeGPUs())
}
