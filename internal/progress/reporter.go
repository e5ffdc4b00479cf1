package progress

import (
	"fmt"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
)

// Phase represents a phase of a plan run
type Phase string

const (
	PhasePrepare Phase = "Prepare"
	PhaseRun     Phase = "Run"
	PhaseDrain   Phase = "Drain"
)

// ProgressInfo is a point-in-time view of a run
type ProgressInfo struct {
	CurrentPhase      Phase
	TotalFrames       int
	CompletedFrames   int
	FailedFrames      int
	InFlightFrames    int
	TasksExecuted     int64
	ElapsedTime       time.Duration
	EstimatedTimeLeft time.Duration
	Pool              PoolUsage
	// Queued holds the ready-queue length of each channel
	Queued []int
}

// PoolUsage reports how full the scheduler's fixed pools are
type PoolUsage struct {
	UsedTasks        int
	MaxTasks         int
	UsedDependencies int
	MaxDependencies  int
}

// Reporter formats progress for the user log
type Reporter struct {
	startTime      time.Time
	lastReportTime time.Time
	reportInterval time.Duration
}

// NewReporter creates a reporter that reports at most once per interval
func NewReporter(interval time.Duration) *Reporter {
	if interval <= 0 {
		interval = time.Second
	}
	return &Reporter{
		startTime:      time.Now(),
		lastReportTime: time.Now(),
		reportInterval: interval,
	}
}

// ShouldReport returns true if it's time to report progress
func (r *Reporter) ShouldReport() bool {
	return time.Since(r.lastReportTime) >= r.reportInterval
}

// Elapsed returns the time since the reporter was created
func (r *Reporter) Elapsed() time.Duration {
	return time.Since(r.startTime)
}

// Report generates a formatted progress report
func (r *Reporter) Report(info ProgressInfo) string {
	r.lastReportTime = time.Now()

	var sb strings.Builder

	percentage := 0.0
	if info.TotalFrames > 0 {
		percentage = float64(info.CompletedFrames) / float64(info.TotalFrames) * 100
	}

	sb.WriteString(fmt.Sprintf("Progress: %d/%d frames (%.1f%%)",
		info.CompletedFrames, info.TotalFrames, percentage))

	if info.CurrentPhase != "" {
		sb.WriteString(fmt.Sprintf(" | Phase: %s", info.CurrentPhase))
	}
	sb.WriteString(fmt.Sprintf(" | Elapsed: %s", FormatDuration(info.ElapsedTime)))
	if info.EstimatedTimeLeft > 0 {
		sb.WriteString(fmt.Sprintf(" | ETA: %s", FormatDuration(info.EstimatedTimeLeft)))
	}

	sb.WriteString(fmt.Sprintf("\n   Tasks executed: %s", humanize.Comma(info.TasksExecuted)))
	if secs := info.ElapsedTime.Seconds(); secs > 0 {
		sb.WriteString(fmt.Sprintf(" (%s/s)", humanize.Comma(int64(float64(info.TasksExecuted)/secs))))
	}
	if info.FailedFrames > 0 {
		sb.WriteString(fmt.Sprintf("\n   Failed frames: %d", info.FailedFrames))
	}
	if info.InFlightFrames > 0 {
		sb.WriteString(fmt.Sprintf("\n   In flight: %d frames", info.InFlightFrames))
	}

	if info.Pool.MaxTasks > 0 {
		sb.WriteString(fmt.Sprintf("\n   Task slots: %d/%d", info.Pool.UsedTasks, info.Pool.MaxTasks))
		if info.Pool.MaxDependencies > 0 {
			sb.WriteString(fmt.Sprintf(", dependency slots: %d/%d",
				info.Pool.UsedDependencies, info.Pool.MaxDependencies))
		}
	}

	if len(info.Queued) > 0 {
		queued := make([]string, len(info.Queued))
		for ch, n := range info.Queued {
			queued[ch] = fmt.Sprintf("ch%d=%d", ch, n)
		}
		sb.WriteString(fmt.Sprintf("\n   Ready queues: %s", strings.Join(queued, " ")))
	}

	return sb.String()
}

// ReportPhaseStart reports the beginning of a new phase
func (r *Reporter) ReportPhaseStart(phase Phase, description string) string {
	return fmt.Sprintf("Starting %s phase: %s", phase, description)
}

// ReportPhaseComplete reports completion of a phase
func (r *Reporter) ReportPhaseComplete(phase Phase, duration time.Duration, success bool) string {
	status := "COMPLETED"
	if !success {
		status = "FAILED"
	}
	return fmt.Sprintf("%s phase %s in %s", phase, status, FormatDuration(duration))
}

// ReportFrameComplete reports the end of one frame
func (r *Reporter) ReportFrameComplete(frame, nodes int, duration time.Duration, success bool) string {
	status := "completed"
	if !success {
		status = "failed"
	}
	return fmt.Sprintf("Frame %d %s: %d nodes in %v", frame, status, nodes, duration.Round(time.Microsecond))
}

// ReportError formats an error for display
func (r *Reporter) ReportError(phase Phase, operation string, err error) string {
	return fmt.Sprintf("ERROR in %s phase during %s: %v", phase, operation, err)
}

// CalculateETA estimates time remaining based on current progress
func CalculateETA(completed, total int, elapsed time.Duration) time.Duration {
	if completed <= 0 || total <= 0 || completed >= total {
		return 0
	}

	perFrame := elapsed / time.Duration(completed)
	return perFrame * time.Duration(total-completed)
}

// FormatDuration formats a duration in a user-friendly way
func FormatDuration(d time.Duration) string {
	switch {
	case d < time.Second:
		return fmt.Sprintf("%dms", d.Milliseconds())
	case d < time.Minute:
		return fmt.Sprintf("%.1fs", d.Seconds())
	case d < time.Hour:
		return fmt.Sprintf("%dm %ds", int(d.Minutes()), int(d.Seconds())%60)
	}
	return fmt.Sprintf("%dh %dm", int(d.Hours()), int(d.Minutes())%60)
}
