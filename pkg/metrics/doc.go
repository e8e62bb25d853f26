/*
Package metrics exposes the dispatch loop's task-bucket counts and free
resource counts as Prometheus gauges, plus a restart-snapshot counter and a
submission-duration histogram. Metrics are registered at init and served
over HTTP via Handler().

dispatch.Manager pushes updates once per loop iteration via SetQueueState
and SetFreeResources; Collector offers a pull-based alternative for callers
that want an independent polling cadence instead.
*/
package metrics
