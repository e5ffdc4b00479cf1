package integration

import (
	"os"
	"strconv"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/maxkimambo/shed/integration_tests/internal/testutil"
	"github.com/maxkimambo/shed/internal/shed"
)

const pipelinePlan = `name: pipeline
nodes:
  - id: input
    task: {kind: spin, iterations: 2000}
  - id: physics
    task: {kind: spin, iterations: 20000}
    depends_on: [input]
  - id: animation
    task: {kind: spin, iterations: 10000}
    depends_on: [input]
  - id: streaming
    task: {kind: sleep, duration: 200us}
    channel: 1
    yields: 1
  - id: render
    task: {kind: noop}
    depends_on: [physics, animation, streaming]
`

const failingPlan = `name: failing
nodes:
  - id: load
    task: {kind: noop}
  - id: broken
    task: {kind: fail, message: asset missing}
    depends_on: [load]
  - id: draw
    task: {kind: noop}
    depends_on: [broken]
`

const cyclicPlan = `name: cyclic
nodes:
  - id: a
    task: {kind: noop}
    depends_on: [b]
  - id: b
    task: {kind: noop}
    depends_on: [a]
`

const twoChannelConfig = `scheduler:
  max_tasks: 64
  max_dependencies: 128
  channels: 2
workers:
  per_channel: [3, 1]
run:
  frames: 20
  max_in_flight: 2
  frame_timeout: 10s
  progress_interval: 0s
`

func workspace(t *testing.T, files map[string]string) *testutil.Workspace {
	t.Helper()
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}
	return testutil.SetupWorkspace(t, shedBinary, files, keepWorkspace)
}

func TestSizeCommand(t *testing.T) {
	ws := workspace(t, nil)

	res := ws.Run(t, "size", "--bytes", "--max-tasks", "1024", "--max-dependencies", "4096", "--channels", "3")
	require.Equal(t, 0, res.ExitCode, res.Output())

	got, err := strconv.Atoi(strings.TrimSpace(res.Stdout))
	require.NoError(t, err)
	assert.Equal(t, shed.RequiredSize(1024, 4096, 3), got)

	res = ws.Run(t, "size", "--scale", "2")
	require.Equal(t, 0, res.ExitCode, res.Output())
	assert.Contains(t, res.Stdout, "4,096")
}

func TestRunPipeline(t *testing.T) {
	ws := workspace(t, map[string]string{
		"pipeline.yaml": pipelinePlan,
		"shed.yaml":     twoChannelConfig,
	})

	res := ws.Run(t, "run", "pipeline.yaml", "--config", "shed.yaml", "--nodes", "--dot", "pipeline.dot")
	require.Equal(t, 0, res.ExitCode, res.Output())
	assert.Contains(t, res.Stdout, "Plan pipeline finished")
	assert.Contains(t, res.Stdout, "20 (0 failed)")
	assert.Contains(t, res.Stdout, "streaming")

	dot, err := os.ReadFile(ws.Path("pipeline.dot"))
	require.NoError(t, err)
	assert.Contains(t, string(dot), "cluster_channel_1")
	assert.Contains(t, string(dot), `"streaming" -> "render"`)
}

func TestRunFlagsOverrideConfig(t *testing.T) {
	ws := workspace(t, map[string]string{
		"pipeline.yaml": pipelinePlan,
		"shed.yaml":     twoChannelConfig,
	})

	res := ws.Run(t, "run", "pipeline.yaml", "--config", "shed.yaml", "--frames", "3", "--workers", "1,1")
	require.Equal(t, 0, res.ExitCode, res.Output())
	assert.Contains(t, res.Stdout, "3 (0 failed)")
}

func TestRunEnvironmentOverride(t *testing.T) {
	ws := workspace(t, map[string]string{
		"pipeline.yaml": pipelinePlan,
		"shed.yaml":     twoChannelConfig,
	})

	t.Setenv("SHED_RUN_FRAMES", "4")
	res := ws.Run(t, "run", "pipeline.yaml", "--config", "shed.yaml")
	require.Equal(t, 0, res.ExitCode, res.Output())
	assert.Contains(t, res.Stdout, "4 (0 failed)")
}

func TestRunFailingPlan(t *testing.T) {
	ws := workspace(t, map[string]string{"failing.yaml": failingPlan})

	res := ws.Run(t, "run", "failing.yaml", "--frames", "2")
	assert.Equal(t, 1, res.ExitCode)
	assert.Contains(t, res.Stdout, "finished with failures")
	assert.Contains(t, res.Stderr, "EXECUTION-001")
	assert.Contains(t, res.Stderr, "asset missing")
}

func TestErrorHandling(t *testing.T) {
	ws := workspace(t, map[string]string{
		"pipeline.yaml": pipelinePlan,
		"cyclic.yaml":   cyclicPlan,
	})

	tests := []struct {
		name          string
		args          []string
		expectedError string
	}{
		{
			name:          "missing_plan",
			args:          []string{"run", "absent.yaml"},
			expectedError: "PLAN-001",
		},
		{
			name:          "cyclic_plan",
			args:          []string{"graph", "cyclic.yaml"},
			expectedError: "PLAN-004",
		},
		{
			name:          "channel_out_of_range",
			args:          []string{"run", "pipeline.yaml", "--channels", "1"},
			expectedError: "PLAN-005",
		},
		{
			name:          "too_few_task_slots",
			args:          []string{"run", "pipeline.yaml", "--channels", "2", "--max-tasks", "3"},
			expectedError: "CAPACITY-001",
		},
		{
			name:          "zero_frames",
			args:          []string{"run", "pipeline.yaml", "--frames", "0"},
			expectedError: "VALIDATION-001",
		},
		{
			name:          "missing_config",
			args:          []string{"size", "--config", "absent.yaml"},
			expectedError: "CONFIGURATION-001",
		},
		{
			name:          "unknown_graph_format",
			args:          []string{"graph", "pipeline.yaml", "--channels", "2", "--format", "svg"},
			expectedError: "VALIDATION-001",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := ws.Run(t, tt.args...)
			assert.NotEqual(t, 0, res.ExitCode)
			assert.Contains(t, res.Stderr, tt.expectedError)
		})
	}
}

func TestGraphCommand(t *testing.T) {
	ws := workspace(t, map[string]string{"pipeline.yaml": pipelinePlan})

	res := ws.Run(t, "graph", "pipeline.yaml", "--channels", "2")
	require.Equal(t, 0, res.ExitCode, res.Output())
	assert.Contains(t, res.Stdout, "=== Plan pipeline ===")
	assert.Contains(t, res.Stdout, "Depth: 3")

	res = ws.Run(t, "graph", "pipeline.yaml", "--channels", "2", "--format", "json", "--output", "graph.json")
	require.Equal(t, 0, res.ExitCode, res.Output())
	data, err := os.ReadFile(ws.Path("graph.json"))
	require.NoError(t, err)
	assert.Contains(t, string(data), `"totalEdges": 5`)
}

func TestBenchCommand(t *testing.T) {
	ws := workspace(t, nil)

	res := ws.Run(t, "bench", "--width", "4", "--depth", "2", "--frames", "10", "--worker-counts", "1,2", "--iterations", "10")
	require.Equal(t, 0, res.ExitCode, res.Output())
	assert.Contains(t, res.Stdout, "Workers")
	assert.Contains(t, res.Stdout, "tasks/s")
}
