package cmd

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/maxkimambo/shed/internal/dag"
	shederrors "github.com/maxkimambo/shed/internal/errors"
)

var (
	graphFormat string
	graphOutput string
)

var graphCmd = &cobra.Command{
	Use:   "graph PLAN",
	Short: "Validate a plan and print its graph",
	Long: `Validate a plan file and print its graph without running it.

FORMATS:
• text: topological listing with dependencies (default)
• dot:  Graphviz source, one cluster per channel
• json: nodes, edges and graph statistics

EXAMPLES:
shed graph pipeline.yaml
shed graph pipeline.yaml --format dot --output pipeline.dot
`,
	Args: cobra.ExactArgs(1),
	RunE: runGraph,
}

func init() {
	addSchedulerFlags(graphCmd.Flags())
	graphCmd.Flags().StringVarP(&graphFormat, "format", "f", "text", "Output format: text, dot or json")
	graphCmd.Flags().StringVarP(&graphOutput, "output", "o", "", "Write to this file instead of stdout")
}

func runGraph(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	plan, graph, err := loadGraph(args[0], cfg.Scheduler.Channels)
	if err != nil {
		return err
	}

	out, err := renderGraph(dag.NewDAGVisualization(graph, plan.Name), graphFormat)
	if err != nil {
		return err
	}
	if graphOutput != "" {
		return os.WriteFile(graphOutput, []byte(out), 0644)
	}
	fmt.Fprint(cmd.OutOrStdout(), out)
	return nil
}

func renderGraph(viz *dag.DAGVisualization, format string) (string, error) {
	switch format {
	case "text":
		return viz.GenerateTextSummary()
	case "dot":
		return viz.GenerateDOTGraph()
	case "json":
		info, err := viz.GenerateDAGInfo()
		if err != nil {
			return "", err
		}
		data, err := json.MarshalIndent(info, "", "  ")
		if err != nil {
			return "", err
		}
		return string(data) + "\n", nil
	}
	return "", shederrors.NewValidationError(shederrors.CodeValidationInput,
		fmt.Sprintf("unknown graph format %q", format), "Graph rendering").
		WithTroubleshooting("Use --format text, dot or json")
}
