package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"github.com/maxkimambo/shed/internal/config"
	"github.com/maxkimambo/shed/internal/dag"
	"github.com/maxkimambo/shed/internal/logger"
	"github.com/maxkimambo/shed/internal/progress"
	"github.com/maxkimambo/shed/internal/report"
)

var (
	runShowNodes bool
	runDOTFile   string
	runJSONFile  string
)

var runCmd = &cobra.Command{
	Use:   "run PLAN",
	Short: "Run a plan file for a number of frames",
	Long: `Run a YAML plan on the scheduler. Every frame submits the whole graph, channels
are assigned, dependencies attached and root nodes readied. Workers drain each
channel's ready queue until the frame's last node finishes.

A node that fails cancels every node that depends on it for the rest of that frame.
Up to --max-in-flight frames may overlap, bounded by the scheduler's capacity.

PLAN FORMAT:
name: pipeline
nodes:
  - id: input
    task: {kind: spin, iterations: 2000}
  - id: physics
    task: {kind: spin, iterations: 20000}
    depends_on: [input]
  - id: streaming
    task: {kind: sleep, duration: 200us}
    channel: 1
    yields: 1

EXAMPLES:
# Run a plan for 100 frames with 8 workers on channel 0 and 2 on channel 1
shed run pipeline.yaml --channels 2 --workers 8,2 --frames 100

# Export the graph with per-node timings after the run
shed run pipeline.yaml --frames 50 --dot pipeline.dot --nodes
`,
	Args: cobra.ExactArgs(1),
	RunE: runPlan,
}

func init() {
	addSchedulerFlags(runCmd.Flags())
	addRunFlags(runCmd.Flags())
	runCmd.Flags().BoolVar(&runShowNodes, "nodes", false, "Print a per-node result table")
	runCmd.Flags().StringVar(&runDOTFile, "dot", "", "Write the graph with run results to this Graphviz DOT file")
	runCmd.Flags().StringVar(&runJSONFile, "export-json", "", "Write the graph with run results to this JSON file")
}

func runPlan(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	plan, graph, err := loadGraph(args[0], cfg.Scheduler.Channels)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rep, err := executePlan(ctx, cfg, plan.Name, graph)
	if rep == nil {
		return err
	}

	if exportErr := exportGraph(graph, plan.Name); exportErr != nil && err == nil {
		err = exportErr
	}
	if !quiet {
		printRunReport(cmd.OutOrStdout(), plan.Name, rep)
	}
	if err != nil {
		return err
	}
	if !rep.Execution.Success {
		if rep.Execution.Error != nil {
			return rep.Execution.Error
		}
		return fmt.Errorf("%d of %d frames failed", rep.Execution.FailedFrames(), len(rep.Execution.Frames))
	}
	return nil
}

// executePlan runs graph and reports phase progress. The returned report is
// nil only when the run could not start.
func executePlan(ctx context.Context, cfg *config.Config, name string, graph *dag.DAG) (*dag.RunReport, error) {
	runner := dag.NewRunner(cfg)
	reporter := progress.NewReporter(cfg.Run.ProgressInterval)

	logger.User.Starting(reporter.ReportPhaseStart(progress.PhaseRun,
		fmt.Sprintf("%d frames of %s (run %s)", cfg.Run.Frames, name, runner.RunID())))

	start := time.Now()
	rep, err := runner.Run(ctx, graph, func(fr dag.FrameResult) {
		logger.Op.Debug(reporter.ReportFrameComplete(fr.Frame, fr.Completed+fr.Failed+fr.Cancelled, fr.Duration, fr.Success()))
	})
	if rep == nil {
		logger.User.Error(reporter.ReportError(progress.PhasePrepare, "scheduler setup", err))
		return nil, err
	}

	success := err == nil && rep.Execution.Success
	if success {
		logger.User.Success(reporter.ReportPhaseComplete(progress.PhaseRun, time.Since(start), true))
	} else {
		logger.User.Warn(reporter.ReportPhaseComplete(progress.PhaseRun, time.Since(start), false))
	}
	if err != nil {
		logger.User.Error(reporter.ReportError(progress.PhaseRun, "frame execution", err))
	}
	return rep, err
}

func exportGraph(graph *dag.DAG, name string) error {
	viz := dag.NewDAGVisualization(graph, name)
	if runDOTFile != "" {
		if err := viz.ExportToDOT(runDOTFile); err != nil {
			return err
		}
		logger.User.Infof("Graph written to %s", runDOTFile)
	}
	if runJSONFile != "" {
		if err := viz.ExportToJSON(runJSONFile); err != nil {
			return err
		}
		logger.User.Infof("Graph written to %s", runJSONFile)
	}
	return nil
}

func printRunReport(w io.Writer, name string, rep *dag.RunReport) {
	logger.User.Summary("Run summary")
	if isatty.IsTerminal(os.Stdout.Fd()) {
		fmt.Fprintln(w, report.RunSummary(name, rep).Render())
	} else {
		fmt.Fprintln(w, report.RunSummaryText(name, rep))
	}
	if runShowNodes {
		fmt.Fprintln(w, report.NodeTable(rep.Execution).String())
	}
}
