/*
Package log provides MatEnsemble's structured logging, a thin wrap around
zerolog.

Init configures the global Logger once at process start from a Config
(level, JSON vs console, output writer). InitWorkflow additionally tees
output to a per-run log file under the workflow directory, giving every run
a dual stdout-plus-file log sink.

WithComponent, WithTaskID, and WithWorkflow return child loggers carrying a
single structured field ("component", "task_id", or "workflow"), so call
sites need not re-type the field name. pkg/dispatch and
pkg/resource/containerdbackend take their loggers from WithComponent.
*/
package log
