package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	TasksPending = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "matensemble_tasks_pending",
			Help: "Number of tasks waiting to be submitted",
		},
	)

	TasksRunning = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "matensemble_tasks_running",
			Help: "Number of tasks currently in flight",
		},
	)

	TasksCompleted = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "matensemble_tasks_completed",
			Help: "Number of tasks that exited zero",
		},
	)

	TasksFailed = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "matensemble_tasks_failed",
			Help: "Number of tasks that failed (wrapper failure, nonzero exit, or cancellation)",
		},
	)

	FreeCores = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "matensemble_free_cores",
			Help: "Free cores last reported by the resource manager",
		},
	)

	FreeGPUs = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "matensemble_free_gpus",
			Help: "Free GPUs last reported by the resource manager",
		},
	)

	RestartSnapshotsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "matensemble_restart_snapshots_total",
			Help: "Total number of restart snapshots written",
		},
	)

	SubmissionDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "matensemble_submission_duration_seconds",
			Help:    "Time taken to build and submit one task",
			Buckets: prometheus.DefBuckets,
		},
	)
)

func init() {
	prometheus.MustRegister(TasksPending)
	prometheus.MustRegister(TasksRunning)
	prometheus.MustRegister(TasksCompleted)
	prometheus.MustRegister(TasksFailed)
	prometheus.MustRegister(FreeCores)
	prometheus.MustRegister(FreeGPUs)
	prometheus.MustRegister(RestartSnapshotsTotal)
	prometheus.MustRegister(SubmissionDuration)
}

// SetQueueState updates the four task-bucket gauges in one call, as
// dispatch.Manager does once per loop iteration alongside the status file.
func SetQueueState(pending, running, completed, failed int) {
	TasksPending.Set(float64(pending))
	TasksRunning.Set(float64(running))
	TasksCompleted.Set(float64(completed))
	TasksFailed.Set(float64(failed))
}

// SetFreeResources updates the free-capacity gauges.
func SetFreeResources(freeCores, freeGPUs int) {
	FreeCores.Set(float64(freeCores))
	FreeGPUs.Set(float64(freeGPUs))
}

// Handler returns the Prometheus HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Timer is a helper for timing operations.
type Timer struct {
	start time.Time
}

// NewTimer creates a new timer.
func NewTimer() *Timer {
	return &Timer{start: time.Now()}
}

// ObserveDuration records the duration to a histogram.
func (t *Timer) ObserveDuration(histogram prometheus.Histogram) {
	histogram.Observe(time.Since(t.start).Seconds())
}

// Duration returns the elapsed time since the timer started.
func (t *Timer) Duration() time.Duration {
	return time.Since(t.start)
}
