package report

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/maxkimambo/shed/internal/dag"
	"github.com/maxkimambo/shed/internal/shed"
	"github.com/maxkimambo/shed/internal/worker"
)

func TestBoxRendersTitleAndLines(t *testing.T) {
	out := NewBox(SuccessMessage, "Done").
		WithWidth(60).
		AddLine("first line").
		AddBullet("a bullet").
		AddKeyValue("Key", "value").
		Render()

	assert.Contains(t, out, successPrefix+" Done")
	assert.Contains(t, out, "first line")
	assert.Contains(t, out, "• a bullet")
	assert.Contains(t, out, "Key:")
	assert.Contains(t, out, "value")
}

func TestConvenienceBoxes(t *testing.T) {
	assert.Contains(t, Info("i", "x"), infoPrefix)
	assert.Contains(t, Success("s"), successPrefix)
	assert.Contains(t, Warning("w"), warningPrefix)
	assert.Contains(t, Error("e"), errorPrefix)
}

func TestWrapText(t *testing.T) {
	assert.Equal(t, []string{"aaa bbb", "ccc"}, wrapText("aaa bbb ccc", 7))
	assert.Equal(t, []string{""}, wrapText("   ", 10))
}

func TestTable(t *testing.T) {
	tbl := NewTable("A", "B").AddRow("1", "2").AddRow("only-one")
	assert.Equal(t, 1, tbl.Len())

	out := tbl.String()
	assert.Contains(t, out, "A")
	assert.Contains(t, out, "B")
	assert.Contains(t, out, "1")
	assert.Contains(t, out, "2")
	assert.NotContains(t, out, "only-one")
}

func TestBuilder(t *testing.T) {
	out := NewBuilder().WithSeparator("-").WithWidth(5).
		Header("Title").
		Section("Part").
		AddKeyValue("k", "v").
		AddBullet("b").
		AddLine("end").
		Build()

	assert.Equal(t, strings.Join([]string{"Title", "-----", "", "Part", "  k: v", "  • b", "end"}, "\n"), out)
}

func TestThroughput(t *testing.T) {
	assert.Equal(t, "1,500 tasks/s", Throughput(3000, 2*time.Second))
	assert.Equal(t, "-", Throughput(10, 0))
}

func TestSizeTableMatchesRequiredSize(t *testing.T) {
	row := SizeRow{MaxTasks: 1024, MaxDependencies: 4096, Channels: 2}
	assert.Equal(t, shed.RequiredSize(1024, 4096, 2), row.Bytes())

	out := SizeTable([]SizeRow{row}).String()
	assert.Contains(t, out, "1,024")
	assert.Contains(t, out, "4,096")
}

func TestRunSummary(t *testing.T) {
	report := &dag.RunReport{
		RunID: "run-1",
		Execution: &dag.ExecutionResult{
			Success: false,
			Frames: []dag.FrameResult{
				{Frame: 1, Completed: 2, Duration: time.Millisecond},
				{Frame: 2, Completed: 1, Failed: 1, Duration: 3 * time.Millisecond},
			},
			NodeResults: map[string]*dag.NodeResult{
				"b": {NodeID: "b", Stats: dag.NodeStats{Completed: 2, TotalDuration: 2 * time.Millisecond}},
				"a": {NodeID: "a", Channel: 1, Stats: dag.NodeStats{Completed: 1, Failed: 1}},
			},
			TasksExecuted: 4,
			ExecutionTime: time.Second,
			Error:         errors.New("node a failed"),
		},
		Workers:     worker.Snapshot{Wakeups: 7},
		MemoryBytes: 2048,
	}

	out := RunSummary("demo", report).WithWidth(100).Render()
	assert.Contains(t, out, "Plan demo finished with failures")
	assert.Contains(t, out, "run-1")
	assert.Contains(t, out, "2 (1 failed)")
	assert.Contains(t, out, "#2")
	assert.Contains(t, out, "2.0 KiB")
	assert.Contains(t, out, "node a failed")

	text := RunSummaryText("demo", report)
	assert.True(t, strings.HasPrefix(text, "Plan demo finished with failures\n"))
	assert.Contains(t, text, "  Frames: 2 (1 failed)")
	assert.Contains(t, text, "  • node a failed")

	table := NodeTable(report.Execution).String()
	rowA, rowB := strings.Index(table, "│ a "), strings.Index(table, "│ b ")
	require.NotEqual(t, -1, rowA)
	require.NotEqual(t, -1, rowB)
	assert.Less(t, rowA, rowB)
	assert.Contains(t, table, "1ms")
}

func TestBenchTable(t *testing.T) {
	out := BenchTable([]BenchRow{{Workers: 4, Frames: 100, Tasks: 12000, Duration: 2 * time.Second}}).String()
	assert.Contains(t, out, "12,000")
	assert.Contains(t, out, "6,000 tasks/s")
	assert.Contains(t, out, "20ms")
}
