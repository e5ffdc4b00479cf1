package cmd

import (
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/maxkimambo/shed/internal/config"
	"github.com/maxkimambo/shed/internal/dag"
	"github.com/maxkimambo/shed/internal/logger"
)

// configFlags maps configuration keys to the command flags that override them.
var configFlags = map[string]string{
	"scheduler.max_tasks":        "max-tasks",
	"scheduler.max_dependencies": "max-dependencies",
	"scheduler.channels":         "channels",
	"workers.per_channel":        "workers",
	"run.frames":                 "frames",
	"run.max_in_flight":          "max-in-flight",
	"run.frame_timeout":          "frame-timeout",
}

// addSchedulerFlags registers the capacity flags shared by every command.
func addSchedulerFlags(flags *pflag.FlagSet) {
	flags.Uint32("max-tasks", 0, "Maximum number of live tasks (default from config)")
	flags.Uint32("max-dependencies", 0, "Maximum number of live dependency edges (default from config)")
	flags.Int("channels", 0, "Number of scheduler channels (default from config)")
}

// addRunFlags registers the flags of commands that execute plans.
func addRunFlags(flags *pflag.FlagSet) {
	flags.IntSlice("workers", nil, "Workers per channel, e.g. 4,1 (default from config)")
	flags.Int("frames", 0, "Number of frames to run (default from config)")
	flags.Int("max-in-flight", 0, "Frames submitted before the oldest one finishes (default from config)")
	flags.Duration("frame-timeout", 0, "Maximum time a single frame may take (default from config)")
}

// loadConfig builds the configuration from defaults, the --config file,
// SHED_* environment variables and any flags set on cmd, in rising priority.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	v := config.New()
	for key, name := range configFlags {
		flag := cmd.Flags().Lookup(name)
		if flag == nil || !flag.Changed {
			continue
		}
		if err := v.BindPFlag(key, flag); err != nil {
			return nil, err
		}
	}

	cfg, err := config.Load(v, configFile)
	if err != nil {
		return nil, err
	}
	logger.Op.WithFields(map[string]interface{}{
		"configFile":      configFile,
		"maxTasks":        cfg.Scheduler.MaxTasks,
		"maxDependencies": cfg.Scheduler.MaxDependencies,
		"channels":        cfg.Scheduler.Channels,
		"workers":         cfg.WorkerCounts(),
	}).Debug("Configuration loaded")
	return cfg, nil
}

// loadGraph reads a plan file and builds its graph for the configured
// channel count.
func loadGraph(path string, channels int) (*dag.Plan, *dag.DAG, error) {
	plan, err := dag.LoadPlan(path)
	if err != nil {
		return nil, nil, err
	}
	if plan.Name == "" {
		plan.Name = path
	}
	graph, err := plan.Build(channels)
	if err != nil {
		return nil, nil, err
	}
	logger.User.Planf("Loaded plan %s: %d nodes, %d edges", plan.Name, graph.Size(), graph.EdgeCount())
	return plan, graph, nil
}
