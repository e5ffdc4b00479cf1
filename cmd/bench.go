package cmd

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/maxkimambo/shed/internal/config"
	"github.com/maxkimambo/shed/internal/dag"
	"github.com/maxkimambo/shed/internal/logger"
	"github.com/maxkimambo/shed/internal/report"
)

var (
	benchWidth        int
	benchDepth        int
	benchIterations   int
	benchWorkerCounts []int
)

var benchCmd = &cobra.Command{
	Use:   "bench",
	Short: "Measure scheduler throughput on a generated layered graph",
	Long: `Generate a layered graph and run it once per worker count.

The graph has a single root, --depth layers of --width spin tasks and a single sink.
Each task depends on two tasks of the layer before it, so every layer fans in and
out. The scheduler is sized so that --max-in-flight frames fit at once.

EXAMPLES:
shed bench --width 32 --depth 8 --frames 500 --worker-counts 1,2,4,8
`,
	Args: cobra.NoArgs,
	RunE: runBench,
}

func init() {
	addSchedulerFlags(benchCmd.Flags())
	addRunFlags(benchCmd.Flags())
	benchCmd.Flags().IntVar(&benchWidth, "width", 16, "Tasks per layer")
	benchCmd.Flags().IntVar(&benchDepth, "depth", 4, "Number of layers")
	benchCmd.Flags().IntVar(&benchIterations, "iterations", 1000, "Spin iterations per task")
	benchCmd.Flags().IntSliceVar(&benchWorkerCounts, "worker-counts", []int{1, 2, 4}, "Worker counts to compare")
}

func runBench(cmd *cobra.Command, args []string) error {
	if benchWidth < 1 || benchDepth < 1 || len(benchWorkerCounts) == 0 {
		return fmt.Errorf("bench needs --width and --depth of at least 1 and one worker count")
	}

	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	plan := benchPlan(benchWidth, benchDepth, benchIterations)
	graph, err := plan.Build(1)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var rows []report.BenchRow
	for _, workers := range benchWorkerCounts {
		runCfg, err := benchConfig(cfg, graph, workers)
		if err != nil {
			return err
		}

		logger.User.Starting(fmt.Sprintf("Benchmark with %d workers", workers))
		rep, err := dag.NewRunner(runCfg).Run(ctx, graph, nil)
		if err != nil {
			return err
		}
		rows = append(rows, report.BenchRow{
			Workers:  workers,
			Frames:   len(rep.Execution.Frames),
			Tasks:    rep.Execution.TasksExecuted,
			Duration: rep.Execution.ExecutionTime,
			Wakeups:  rep.Workers.Wakeups,
			Idle:     rep.Workers.IdleWaits,
		})
	}

	if !quiet {
		fmt.Fprintln(cmd.OutOrStdout(), report.BenchTable(rows).String())
	}
	return nil
}

// benchPlan builds a root, depth layers of width spin tasks and a sink.
// Every layered task depends on two tasks of the previous layer.
func benchPlan(width, depth, iterations int) *dag.Plan {
	spin := dag.TaskSpec{Kind: dag.TaskKindSpin, Iterations: iterations}
	plan := &dag.Plan{
		Name:  fmt.Sprintf("bench-%dx%d", width, depth),
		Nodes: []dag.NodeSpec{{ID: "root", Task: spin}},
	}

	prev := []string{"root"}
	for layer := 0; layer < depth; layer++ {
		current := make([]string, width)
		for i := range current {
			current[i] = fmt.Sprintf("l%d-%d", layer, i)
			deps := []string{prev[i%len(prev)]}
			if other := prev[(i+1)%len(prev)]; other != deps[0] {
				deps = append(deps, other)
			}
			plan.Nodes = append(plan.Nodes, dag.NodeSpec{ID: current[i], Task: spin, DependsOn: deps})
		}
		prev = current
	}
	plan.Nodes = append(plan.Nodes, dag.NodeSpec{ID: "sink", Task: dag.TaskSpec{Kind: dag.TaskKindNoop}, DependsOn: prev})
	return plan
}

// benchConfig returns a single-channel copy of cfg with the given worker
// count, grown so that every in-flight frame fits.
func benchConfig(cfg *config.Config, graph *dag.DAG, workers int) (*config.Config, error) {
	runCfg := *cfg
	runCfg.Scheduler.Channels = 1
	runCfg.Workers.PerChannel = []int{workers}

	inFlight := uint32(runCfg.Run.MaxInFlight)
	runCfg.Scheduler.MaxTasks = max(runCfg.Scheduler.MaxTasks, uint32(graph.Size())*inFlight)
	runCfg.Scheduler.MaxDependencies = max(runCfg.Scheduler.MaxDependencies, uint32(graph.EdgeCount())*inFlight)

	if errs := runCfg.Validate(); len(errs) > 0 {
		return nil, errs
	}
	return &runCfg, nil
}
