package dag

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/maxkimambo/shed/internal/config"
	shederrors "github.com/maxkimambo/shed/internal/errors"
	"github.com/maxkimambo/shed/internal/logger"
	"github.com/maxkimambo/shed/internal/shed"
	"github.com/maxkimambo/shed/internal/worker"
)

// shutdownTimeout bounds how long workers get to finish their current task
const shutdownTimeout = 5 * time.Second

// RunReport is everything a run produced
type RunReport struct {
	RunID     string
	Execution *ExecutionResult
	Workers   worker.Snapshot
	// Readied is the total count passed to the ready notifier
	Readied int64
	// Signals counts ready notifications
	Signals   int64
	Scheduler shed.Stats
	// MemoryBytes is the size of the scheduler memory block
	MemoryBytes int
}

// Runner owns the scheduler and worker pool that execute a plan
type Runner struct {
	cfg   *config.Config
	runID string
}

// NewRunner creates a runner for a validated configuration
func NewRunner(cfg *config.Config) *Runner {
	return &Runner{cfg: cfg, runID: uuid.NewString()}
}

// RunID identifies this runner's log lines
func (r *Runner) RunID() string {
	return r.runID
}

// Run executes d for the configured number of frames. onFrame may be nil.
func (r *Runner) Run(ctx context.Context, d *DAG, onFrame func(FrameResult)) (*RunReport, error) {
	cfg := r.cfg
	logger.L().SetBaseField("run_id", r.runID)
	defer logger.L().ClearBaseFields()

	waker := worker.NewWaker(cfg.WorkerCounts())
	mem := shed.AlignedBuffer(cfg.RequiredBytes())
	sched, err := shed.New(mem, cfg.Scheduler.MaxTasks, cfg.Scheduler.MaxDependencies, cfg.ChannelCount(), waker)
	if err != nil {
		return nil, shederrors.NewInvariantViolationError("scheduler initialisation", err)
	}

	logger.Op.WithFields(map[string]interface{}{
		"maxTasks":        cfg.Scheduler.MaxTasks,
		"maxDependencies": cfg.Scheduler.MaxDependencies,
		"channels":        cfg.Scheduler.Channels,
		"bytes":           sched.Size(),
	}).Debug("Scheduler initialised")

	exec, err := NewExecutor(d, sched, &ExecutorConfig{
		Frames:               cfg.Run.Frames,
		MaxInFlight:          cfg.Run.MaxInFlight,
		FrameTimeout:         cfg.Run.FrameTimeout,
		SubmitBackoffInitial: cfg.Workers.IdleBackoffInitial,
		SubmitBackoffMax:     cfg.Workers.IdleBackoffMax,
		ProgressInterval:     cfg.Run.ProgressInterval,
		OnFrame:              onFrame,
	})
	if err != nil {
		return nil, err
	}

	pool := worker.NewPool(sched, waker, worker.Config{
		WorkersPerChannel:  cfg.WorkerCounts(),
		IdleBackoffInitial: cfg.Workers.IdleBackoffInitial,
		IdleBackoffMax:     cfg.Workers.IdleBackoffMax,
	})

	poolCtx, cancelPool := context.WithCancel(ctx)
	defer cancelPool()
	if err := pool.Start(poolCtx); err != nil {
		return nil, err
	}

	// A worker that hits a scheduler error stops the run.
	runCtx, cancelRun := context.WithCancel(ctx)
	defer cancelRun()
	go func() {
		if err := pool.Wait(); err != nil {
			cancelRun()
		}
	}()

	result, runErr := exec.Run(runCtx)

	if err := pool.Shutdown(shutdownTimeout); err != nil {
		if errors.Is(err, shed.ErrInvariant) {
			err = shederrors.NewInvariantViolationError("ExecuteOne", err)
		}
		if runErr == nil || (errors.Is(runErr, context.Canceled) && ctx.Err() == nil) {
			runErr = err
		}
	}

	report := &RunReport{
		RunID:       r.runID,
		Execution:   result,
		Workers:     pool.GetMetrics().Snapshot(),
		Readied:     waker.Readied(),
		Signals:     waker.Signals(),
		Scheduler:   sched.Stats(),
		MemoryBytes: sched.Size(),
	}
	if runErr != nil && errors.Is(runErr, context.Canceled) && ctx.Err() != nil {
		logger.User.Warn("Run interrupted")
	}
	return report, runErr
}
