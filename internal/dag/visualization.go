package dag

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strings"
)

// DAGVisualization renders a plan graph and its accumulated results
type DAGVisualization struct {
	dag  *DAG
	name string
}

// NewDAGVisualization creates a new visualization helper
func NewDAGVisualization(dag *DAG, name string) *DAGVisualization {
	if name == "" {
		name = "plan"
	}
	return &DAGVisualization{
		dag:  dag,
		name: name,
	}
}

// NodeInfo contains information about a node for visualization
type NodeInfo struct {
	ID           string     `json:"id"`
	Type         string     `json:"type"`
	Description  string     `json:"description"`
	Channel      uint8      `json:"channel"`
	Yields       int        `json:"yields,omitempty"`
	Dependencies int        `json:"dependencies"`
	Status       NodeStatus `json:"status"`
	Runs         int        `json:"runs"`
	Failures     int        `json:"failures,omitempty"`
	Cancelled    int        `json:"cancelled,omitempty"`
	AvgDuration  string     `json:"avgDuration,omitempty"`
	Error        string     `json:"error,omitempty"`
}

// EdgeInfo contains information about an edge for visualization
type EdgeInfo struct {
	From string `json:"from"`
	To   string `json:"to"`
}

// DAGInfo contains the full DAG structure for visualization
type DAGInfo struct {
	Name  string     `json:"name"`
	Nodes []NodeInfo `json:"nodes"`
	Edges []EdgeInfo `json:"edges"`
	Stats DAGStats   `json:"stats"`
}

// DAGStats contains aggregate figures about the graph. Depth is the number
// of nodes on the longest dependency chain.
type DAGStats struct {
	TotalNodes    int `json:"totalNodes"`
	TotalEdges    int `json:"totalEdges"`
	RootNodes     int `json:"rootNodes"`
	Channels      int `json:"channels"`
	Depth         int `json:"depth"`
	CompletedRuns int `json:"completedRuns"`
	FailedRuns    int `json:"failedRuns"`
	CancelledRuns int `json:"cancelledRuns"`
}

// GenerateDAGInfo creates a representation of the DAG for visualization.
// Nodes are listed in topological order.
func (v *DAGVisualization) GenerateDAGInfo() (*DAGInfo, error) {
	order, err := v.dag.TopologicalOrder()
	if err != nil {
		return nil, err
	}

	info := &DAGInfo{
		Name:  v.name,
		Nodes: make([]NodeInfo, 0, len(order)),
		Edges: make([]EdgeInfo, 0, v.dag.EdgeCount()),
	}

	depth := make(map[string]int, len(order))
	channels := make(map[uint8]bool)
	for _, id := range order {
		node, err := v.dag.GetNode(id)
		if err != nil {
			return nil, err
		}
		deps, err := v.dag.GetDependencies(id)
		if err != nil {
			return nil, err
		}

		d := 1
		for _, dep := range deps {
			info.Edges = append(info.Edges, EdgeInfo{From: dep, To: id})
			if depth[dep]+1 > d {
				d = depth[dep] + 1
			}
		}
		depth[id] = d
		if d > info.Stats.Depth {
			info.Stats.Depth = d
		}
		if len(deps) == 0 {
			info.Stats.RootNodes++
		}
		channels[node.Channel()] = true

		stats := node.Stats()
		task := node.GetTask()
		ni := NodeInfo{
			ID:           id,
			Type:         KindOf(task),
			Channel:      node.Channel(),
			Yields:       node.Yields(),
			Dependencies: len(deps),
			Status:       node.GetStatus(),
			Runs:         stats.Runs(),
			Failures:     stats.Failed,
			Cancelled:    stats.Cancelled,
		}
		if task != nil {
			ni.Description = task.Description()
		}
		if stats.Runs() > 0 {
			ni.AvgDuration = stats.AverageDuration().String()
		}
		if err := node.GetError(); err != nil {
			ni.Error = err.Error()
		}
		info.Nodes = append(info.Nodes, ni)

		info.Stats.CompletedRuns += stats.Completed
		info.Stats.FailedRuns += stats.Failed
		info.Stats.CancelledRuns += stats.Cancelled
	}

	info.Stats.TotalNodes = len(order)
	info.Stats.TotalEdges = len(info.Edges)
	info.Stats.Channels = len(channels)
	return info, nil
}

// ExportToJSON exports the DAG visualization to a JSON file
func (v *DAGVisualization) ExportToJSON(filename string) error {
	dagInfo, err := v.GenerateDAGInfo()
	if err != nil {
		return err
	}

	data, err := json.MarshalIndent(dagInfo, "", "  ")
	if err != nil {
		return err
	}

	return os.WriteFile(filename, data, 0644)
}

// statusColor maps a node status to a Graphviz fill color
func statusColor(status NodeStatus) string {
	switch status {
	case StatusRunning:
		return "lightblue"
	case StatusYielded:
		return "khaki"
	case StatusCompleted:
		return "lightgreen"
	case StatusFailed:
		return "salmon"
	case StatusCancelled:
		return "orange"
	default:
		return "lightgrey"
	}
}

// GenerateDOTGraph creates a DOT format graph for visualization with
// Graphviz. Nodes are grouped into one cluster per channel.
func (v *DAGVisualization) GenerateDOTGraph() (string, error) {
	dagInfo, err := v.GenerateDAGInfo()
	if err != nil {
		return "", err
	}

	var sb strings.Builder
	sb.WriteString("digraph Plan {\n")
	sb.WriteString("  rankdir=LR;\n")
	sb.WriteString("  node [shape=box, style=filled];\n")
	sb.WriteString(fmt.Sprintf("  label=%q;\n", dagInfo.Name))
	sb.WriteString("  labelloc=\"t\";\n\n")

	byChannel := make(map[uint8][]NodeInfo)
	var channels []int
	for _, node := range dagInfo.Nodes {
		if _, seen := byChannel[node.Channel]; !seen {
			channels = append(channels, int(node.Channel))
		}
		byChannel[node.Channel] = append(byChannel[node.Channel], node)
	}
	sort.Ints(channels)

	for _, ch := range channels {
		sb.WriteString(fmt.Sprintf("  subgraph cluster_channel_%d {\n", ch))
		sb.WriteString(fmt.Sprintf("    label=\"channel %d\";\n", ch))
		sb.WriteString("    style=dashed;\n")
		for _, node := range byChannel[uint8(ch)] {
			label := fmt.Sprintf("%s\\n%s", node.ID, node.Type)
			if node.Yields > 0 {
				label += fmt.Sprintf("\\nyields %d", node.Yields)
			}
			if node.AvgDuration != "" {
				label += fmt.Sprintf("\\navg %s", node.AvgDuration)
			}
			if node.Error != "" {
				errorMsg := node.Error
				if len(errorMsg) > 50 {
					errorMsg = errorMsg[:47] + "..."
				}
				label += fmt.Sprintf("\\nError: %s", strings.ReplaceAll(errorMsg, "\"", "'"))
			}
			sb.WriteString(fmt.Sprintf("    \"%s\" [label=\"%s\", fillcolor=\"%s\"];\n",
				node.ID, label, statusColor(node.Status)))
		}
		sb.WriteString("  }\n")
	}

	sb.WriteString("\n")
	for _, edge := range dagInfo.Edges {
		sb.WriteString(fmt.Sprintf("  \"%s\" -> \"%s\";\n", edge.From, edge.To))
	}

	sb.WriteString("}\n")
	return sb.String(), nil
}

// ExportToDOT exports the DAG visualization to a DOT file
func (v *DAGVisualization) ExportToDOT(filename string) error {
	dot, err := v.GenerateDOTGraph()
	if err != nil {
		return err
	}

	return os.WriteFile(filename, []byte(dot), 0644)
}

// GenerateTextSummary creates a human-readable text summary of the graph
func (v *DAGVisualization) GenerateTextSummary() (string, error) {
	dagInfo, err := v.GenerateDAGInfo()
	if err != nil {
		return "", err
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("=== Plan %s ===\n\n", dagInfo.Name))

	sb.WriteString("Graph:\n")
	sb.WriteString(fmt.Sprintf("  Nodes: %d\n", dagInfo.Stats.TotalNodes))
	sb.WriteString(fmt.Sprintf("  Edges: %d\n", dagInfo.Stats.TotalEdges))
	sb.WriteString(fmt.Sprintf("  Roots: %d\n", dagInfo.Stats.RootNodes))
	sb.WriteString(fmt.Sprintf("  Depth: %d\n", dagInfo.Stats.Depth))
	sb.WriteString(fmt.Sprintf("  Channels: %d\n", dagInfo.Stats.Channels))

	if runs := dagInfo.Stats.CompletedRuns + dagInfo.Stats.FailedRuns + dagInfo.Stats.CancelledRuns; runs > 0 {
		sb.WriteString("\nRuns:\n")
		sb.WriteString(fmt.Sprintf("  Completed: %d\n", dagInfo.Stats.CompletedRuns))
		sb.WriteString(fmt.Sprintf("  Failed: %d\n", dagInfo.Stats.FailedRuns))
		sb.WriteString(fmt.Sprintf("  Cancelled: %d\n", dagInfo.Stats.CancelledRuns))
	}

	sb.WriteString("\nNodes (topological order):\n")
	deps := make(map[string][]string)
	for _, edge := range dagInfo.Edges {
		deps[edge.To] = append(deps[edge.To], edge.From)
	}
	for _, node := range dagInfo.Nodes {
		sb.WriteString(fmt.Sprintf("  - %s (%s, ch%d)", node.ID, node.Type, node.Channel))
		if d := deps[node.ID]; len(d) > 0 {
			sb.WriteString(fmt.Sprintf(" <- %s", strings.Join(d, ", ")))
		}
		if node.AvgDuration != "" {
			sb.WriteString(fmt.Sprintf(" - avg %s over %d runs", node.AvgDuration, node.Runs))
		}
		if node.Error != "" {
			sb.WriteString(fmt.Sprintf(" - Error: %s", node.Error))
		}
		sb.WriteString("\n")
	}

	return sb.String(), nil
}

// ExportToText exports the DAG summary to a text file
func (v *DAGVisualization) ExportToText(filename string) error {
	summary, err := v.GenerateTextSummary()
	if err != nil {
		return err
	}

	return os.WriteFile(filename, []byte(summary), 0644)
}
