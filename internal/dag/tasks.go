package dag

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"
)

// Task kinds understood by plan files
const (
	TaskKindNoop  = "noop"
	TaskKindSpin  = "spin"
	TaskKindSleep = "sleep"
	TaskKindFail  = "fail"
)

// NoopTask does nothing; useful for join points
type NoopTask struct {
	*BaseTask
}

func NewNoopTask(id string) *NoopTask {
	return &NoopTask{BaseTask: NewBaseTask(id, TaskKindNoop, "No-op join point")}
}

func (t *NoopTask) Execute(ctx context.Context) error {
	return nil
}

// SpinTask burns CPU for a fixed number of iterations. Overlapping frames
// may run the same task concurrently.
type SpinTask struct {
	*BaseTask
	iterations int
	checksum   atomic.Uint64
}

func NewSpinTask(id string, iterations int) *SpinTask {
	return &SpinTask{
		BaseTask:   NewBaseTask(id, TaskKindSpin, fmt.Sprintf("Spin for %d iterations", iterations)),
		iterations: iterations,
	}
}

func (t *SpinTask) Validate() error {
	if t.iterations < 0 {
		return fmt.Errorf("iterations must not be negative, got %d", t.iterations)
	}
	return nil
}

func (t *SpinTask) Execute(ctx context.Context) error {
	// xorshift keeps the loop from being optimised away
	x := uint64(len(t.ID())) | 1
	for i := 0; i < t.iterations; i++ {
		x ^= x << 13
		x ^= x >> 7
		x ^= x << 17
	}
	t.checksum.Store(x)
	return nil
}

// SleepTask waits for a fixed duration, standing in for I/O
type SleepTask struct {
	*BaseTask
	duration time.Duration
}

func NewSleepTask(id string, duration time.Duration) *SleepTask {
	return &SleepTask{
		BaseTask: NewBaseTask(id, TaskKindSleep, fmt.Sprintf("Sleep for %v", duration)),
		duration: duration,
	}
}

func (t *SleepTask) Validate() error {
	if t.duration < 0 {
		return fmt.Errorf("duration must not be negative, got %v", t.duration)
	}
	return nil
}

func (t *SleepTask) Execute(ctx context.Context) error {
	timer := time.NewTimer(t.duration)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// FailTask always fails; used to exercise failure propagation
type FailTask struct {
	*BaseTask
	message string
}

func NewFailTask(id, message string) *FailTask {
	if message == "" {
		message = "task failed"
	}
	return &FailTask{
		BaseTask: NewBaseTask(id, TaskKindFail, "Always fails"),
		message:  message,
	}
}

func (t *FailTask) Execute(ctx context.Context) error {
	return fmt.Errorf("%s: %s", t.ID(), t.message)
}

// TaskSpec is the plan-file description of a task
type TaskSpec struct {
	Kind       string        `yaml:"kind"`
	Iterations int           `yaml:"iterations,omitempty"`
	Duration   time.Duration `yaml:"duration,omitempty"`
	Message    string        `yaml:"message,omitempty"`
}

// NewTask builds the task described by spec
func NewTask(id string, spec TaskSpec) (Task, error) {
	var task Task
	switch spec.Kind {
	case TaskKindNoop, "":
		task = NewNoopTask(id)
	case TaskKindSpin:
		task = NewSpinTask(id, spec.Iterations)
	case TaskKindSleep:
		task = NewSleepTask(id, spec.Duration)
	case TaskKindFail:
		task = NewFailTask(id, spec.Message)
	default:
		return nil, fmt.Errorf("unknown task kind %q", spec.Kind)
	}
	if err := task.Validate(); err != nil {
		return nil, err
	}
	return task, nil
}
