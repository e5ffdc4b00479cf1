package report

import (
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/maxkimambo/shed/internal/dag"
	"github.com/maxkimambo/shed/internal/progress"
	"github.com/maxkimambo/shed/internal/shed"
)

type keyValue struct{ key, value string }

func runTitle(name string, r *dag.RunReport) string {
	if !r.Execution.Success {
		return fmt.Sprintf("Plan %s finished with failures", name)
	}
	return fmt.Sprintf("Plan %s finished", name)
}

func runFields(r *dag.RunReport) []keyValue {
	exec := r.Execution
	fields := []keyValue{
		{"Run ID", r.RunID},
		{"Frames", fmt.Sprintf("%d (%d failed)", len(exec.Frames), exec.FailedFrames())},
		{"Tasks executed", humanize.Comma(exec.TasksExecuted)},
		{"Throughput", Throughput(exec.TasksExecuted, exec.ExecutionTime)},
		{"Duration", progress.FormatDuration(exec.ExecutionTime)},
	}
	if frame := slowestFrame(exec.Frames); frame != nil {
		fields = append(fields, keyValue{"Slowest frame", fmt.Sprintf("#%d in %v", frame.Frame, frame.Duration.Round(time.Microsecond))})
	}
	return append(fields,
		keyValue{"Capacity waits", humanize.Comma(exec.CapacityWaits)},
		keyValue{"Worker wake-ups", humanize.Comma(r.Workers.Wakeups)},
		keyValue{"Idle polls", humanize.Comma(r.Workers.IdleWaits)},
		keyValue{"Scheduler memory", humanize.IBytes(uint64(r.MemoryBytes))},
	)
}

// RunSummary renders the end-of-run box for a plan run.
func RunSummary(name string, r *dag.RunReport) *Box {
	kind := SuccessMessage
	if !r.Execution.Success {
		kind = WarningMessage
	}

	box := NewBox(kind, runTitle(name, r))
	for _, f := range runFields(r) {
		box.AddKeyValue(f.key, f.value)
	}
	if r.Execution.Error != nil {
		box.AddLine("").AddLine("First failure: " + r.Execution.Error.Error())
	}
	return box
}

// RunSummaryText is RunSummary without styling, for output that is not a
// terminal.
func RunSummaryText(name string, r *dag.RunReport) string {
	b := NewBuilder().Header(runTitle(name, r))
	for _, f := range runFields(r) {
		b.AddKeyValue(f.key, f.value)
	}
	if r.Execution.Error != nil {
		b.Section("First failure:").AddBullet(r.Execution.Error.Error())
	}
	return b.Build()
}

// Throughput formats tasks per second.
func Throughput(tasks int64, elapsed time.Duration) string {
	if elapsed <= 0 {
		return "-"
	}
	return humanize.Comma(int64(float64(tasks)/elapsed.Seconds())) + " tasks/s"
}

func slowestFrame(frames []dag.FrameResult) *dag.FrameResult {
	var slowest *dag.FrameResult
	for i := range frames {
		if slowest == nil || frames[i].Duration > slowest.Duration {
			slowest = &frames[i]
		}
	}
	return slowest
}

// NodeTable lists per-node outcomes, sorted by node id.
func NodeTable(result *dag.ExecutionResult) *Table {
	ids := make([]string, 0, len(result.NodeResults))
	for id := range result.NodeResults {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	t := NewTable("Node", "Channel", "Runs", "Failed", "Cancelled", "Yields", "Avg", "Max")
	for _, id := range ids {
		nr := result.NodeResults[id]
		t.AddRow(
			id,
			strconv.Itoa(int(nr.Channel)),
			humanize.Comma(int64(nr.Stats.Runs())),
			strconv.Itoa(nr.Stats.Failed),
			strconv.Itoa(nr.Stats.Cancelled),
			strconv.Itoa(nr.Stats.Yields),
			formatDuration(nr.Stats.AverageDuration()),
			formatDuration(nr.Stats.MaxDuration),
		)
	}
	return t
}

func formatDuration(d time.Duration) string {
	if d <= 0 {
		return "-"
	}
	if d < time.Microsecond {
		return d.String()
	}
	return d.Round(time.Microsecond).String()
}

// SizeRow is one scheduler capacity whose memory requirement is reported.
type SizeRow struct {
	MaxTasks        uint32
	MaxDependencies uint32
	Channels        uint8
}

// Bytes returns the memory block size the row needs.
func (r SizeRow) Bytes() int {
	return shed.RequiredSize(r.MaxTasks, r.MaxDependencies, r.Channels)
}

// SizeTable renders required memory for each capacity.
func SizeTable(rows []SizeRow) *Table {
	t := NewTable("Max tasks", "Max dependencies", "Channels", "Bytes", "Size")
	for _, r := range rows {
		b := r.Bytes()
		t.AddRow(
			humanize.Comma(int64(r.MaxTasks)),
			humanize.Comma(int64(r.MaxDependencies)),
			strconv.Itoa(int(r.Channels)),
			humanize.Comma(int64(b)),
			humanize.IBytes(uint64(b)),
		)
	}
	return t
}

// BenchRow is the outcome of one benchmark configuration.
type BenchRow struct {
	Workers  int
	Frames   int
	Tasks    int64
	Duration time.Duration
	Wakeups  int64
	Idle     int64
}

// BenchTable renders benchmark results, one row per worker count.
func BenchTable(rows []BenchRow) *Table {
	t := NewTable("Workers", "Frames", "Tasks", "Duration", "Throughput", "Frame avg", "Wake-ups", "Idle polls")
	for _, r := range rows {
		avg := time.Duration(0)
		if r.Frames > 0 {
			avg = r.Duration / time.Duration(r.Frames)
		}
		t.AddRow(
			strconv.Itoa(r.Workers),
			humanize.Comma(int64(r.Frames)),
			humanize.Comma(r.Tasks),
			progress.FormatDuration(r.Duration),
			Throughput(r.Tasks, r.Duration),
			formatDuration(avg),
			humanize.Comma(r.Wakeups),
			humanize.Comma(r.Idle),
		)
	}
	return t
}
