package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/matensemble/matensemble/pkg/dispatch"
	"github.com/matensemble/matensemble/pkg/log"
	"github.com/matensemble/matensemble/pkg/metrics"
	"github.com/matensemble/matensemble/pkg/resource/containerdbackend"
	"github.com/matensemble/matensemble/pkg/workflow"
)

var runCmd = &cobra.Command{
	Use:   "run WORKFLOW_FILE",
	Short: "Submit a workflow's task list and drive it to completion",
	Long: `Run parses a YAML or JSON workflow file into a task list and drives it
to completion through the dispatch core, checkpointing a restart snapshot
every write-restart-freq completions.

Example:
  matensemble run workflow.yaml --adaptive --buffer-time 5s`,
	Args: cobra.ExactArgs(1),
	RunE: runRun,
}

var resumeCmd = &cobra.Command{
	Use:   "resume WORKFLOW_FILE RESTART_FILE",
	Short: "Resume a workflow from a restart snapshot",
	Long: `Resume re-parses the workflow file for its command/footprint/tasks_per_job
configuration, then restores the pending/completed/failed buckets from an
existing restart_<N>.dat snapshot instead of starting every task pending.`,
	Args: cobra.ExactArgs(2),
	RunE: runResume,
}

func init() {
	for _, cmd := range []*cobra.Command{runCmd, resumeCmd} {
		cmd.Flags().Duration("buffer-time", 2*time.Second, "Bounded wait for future reaping per loop iteration")
		cmd.Flags().Bool("adaptive", false, "Use the adaptive processing strategy (resubmit inline on completion)")
		cmd.Flags().Bool("heterogeneous", false, "Use the heterogeneous (dynopro) per-resource submission strategy")
		cmd.Flags().String("restart-dir", "", "Directory restart snapshots are written to (defaults to the current working directory)")
		cmd.Flags().String("containerd-socket", "", "containerd socket path (defaults to "+containerdbackend.DefaultSocketPath+")")
		cmd.Flags().String("containerd-image", "", "Image used to run each task's command")
		cmd.Flags().Int("free-cores", 0, "Cores advertised as free by the demonstration containerd backend")
		cmd.Flags().Int("free-gpus", 0, "GPUs advertised as free by the demonstration containerd backend")
		cmd.Flags().String("metrics-addr", "", "If set, serve /metrics on this address while the run is in flight")
	}
}

func runRun(cmd *cobra.Command, args []string) error {
	return runWorkflow(cmd, args[0], "")
}

func runResume(cmd *cobra.Command, args []string) error {
	return runWorkflow(cmd, args[0], args[1])
}

func runWorkflow(cmd *cobra.Command, workflowPath, restartFilename string) error {
	wf, err := workflow.Load(workflowPath)
	if err != nil {
		return err
	}

	if err := initWorkflowFileLogging(cmd, wf.LaunchDir); err != nil {
		return fmt.Errorf("set up workflow log file: %w", err)
	}

	socketPath, _ := cmd.Flags().GetString("containerd-socket")
	image, _ := cmd.Flags().GetString("containerd-image")
	freeCores, _ := cmd.Flags().GetInt("free-cores")
	freeGPUs, _ := cmd.Flags().GetInt("free-gpus")

	runtime, err := containerdbackend.NewRuntime(containerdbackend.Config{
		SocketPath: socketPath,
		Image:      image,
		FreeCores:  freeCores,
		FreeGPUs:   freeGPUs,
	})
	if err != nil {
		return fmt.Errorf("connect to containerd: %w", err)
	}
	defer runtime.Close()

	restartDir, _ := cmd.Flags().GetString("restart-dir")

	mgr, err := dispatch.NewManager(dispatch.ManagerConfig{
		Tasks:              wf.Tasks,
		Command:            wf.Command,
		TasksPerJob:        wf.TasksPerJob,
		WriteRestartFreq:   wf.WriteRestartFreq,
		Footprint:          wf.Footprint,
		DisableCPUAffinity: wf.DisableCPUAffinity,
		MPI:                wf.MPI,
		BaseOutDir:         wf.BaseOutDir,
		LaunchDir:          wf.LaunchDir,
		RestartDir:         restartDir,
		RestartFilename:    restartFilename,
		ResourceManager:    runtime,
	})
	if err != nil {
		return fmt.Errorf("build dispatch manager: %w", err)
	}

	metricsAddr, _ := cmd.Flags().GetString("metrics-addr")
	if metricsAddr != "" {
		collector := metrics.NewCollector(mgr)
		collector.Start()
		defer collector.Stop()

		mux := http.NewServeMux()
		mux.Handle("/metrics", metrics.Handler())
		server := &http.Server{Addr: metricsAddr, Handler: mux}
		go func() {
			if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				fmt.Fprintf(os.Stderr, "metrics server error: %v\n", err)
			}
		}()
		defer server.Close()
	}

	bufferTime, _ := cmd.Flags().GetDuration("buffer-time")
	adaptive, _ := cmd.Flags().GetBool("adaptive")
	heterogeneous, _ := cmd.Flags().GetBool("heterogeneous")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return mgr.Run(ctx, dispatch.RunConfig{
		BufferTime:    bufferTime,
		Adaptive:      adaptive,
		Heterogeneous: heterogeneous,
	})
}

// initWorkflowFileLogging upgrades the global logger from stdout-only to
// stdout+file, writing to <workflow dir>/logs/<timestamp>_matensemble_workflow.log
// per the persisted state layout. It re-reads the root command's
// log-level/log-json flags rather than assuming initLogging's defaults.
func initWorkflowFileLogging(cmd *cobra.Command, launchDir string) error {
	if launchDir == "" {
		wd, err := os.Getwd()
		if err != nil {
			return err
		}
		launchDir = wd
	}

	logsDir := filepath.Join(launchDir, dispatch.WorkflowDirName(), "logs")
	if err := os.MkdirAll(logsDir, 0o755); err != nil {
		return err
	}

	logPath := filepath.Join(logsDir, time.Now().Format("2006-01-02_15-04-05")+"_matensemble_workflow.log")
	logFile, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return err
	}

	root := cmd.Root()
	logLevel, _ := root.PersistentFlags().GetString("log-level")
	logJSON, _ := root.PersistentFlags().GetBool("log-json")

	log.InitWorkflow(log.Config{
		Level:      log.Level(logLevel),
		JSONOutput: logJSON,
	}, logFile)

	return nil
}
