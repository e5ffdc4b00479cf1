package dag

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cenkalti/backoff/v4"
	"golang.org/x/sync/errgroup"

	shederrors "github.com/maxkimambo/shed/internal/errors"
	"github.com/maxkimambo/shed/internal/logger"
	"github.com/maxkimambo/shed/internal/progress"
	"github.com/maxkimambo/shed/internal/shed"
)

// ExecutorConfig contains configuration for the frame executor
type ExecutorConfig struct {
	// Frames is how many times the whole graph is submitted
	Frames int

	// MaxInFlight bounds how many frames are submitted but unfinished
	MaxInFlight int

	// FrameTimeout bounds both a single frame and the time a submission
	// waits for scheduler capacity
	FrameTimeout time.Duration

	// SubmitBackoffInitial and SubmitBackoffMax pace retries while the
	// scheduler's pools are exhausted
	SubmitBackoffInitial time.Duration
	SubmitBackoffMax     time.Duration

	// ProgressInterval is how often progress is logged; zero disables it
	ProgressInterval time.Duration

	// OnFrame, if set, is called from the run goroutine after every frame
	OnFrame func(FrameResult)
}

// DefaultExecutorConfig returns a default configuration
func DefaultExecutorConfig() *ExecutorConfig {
	return &ExecutorConfig{
		Frames:               1,
		MaxInFlight:          1,
		FrameTimeout:         30 * time.Second,
		SubmitBackoffInitial: 50 * time.Microsecond,
		SubmitBackoffMax:     5 * time.Millisecond,
	}
}

// FrameResult summarises one submission of the graph
type FrameResult struct {
	Frame     int
	Completed int
	Failed    int
	Cancelled int
	Yields    int
	Duration  time.Duration

	// Err is the first node failure of the frame
	Err error
}

// Success reports whether every node of the frame completed
func (r FrameResult) Success() bool {
	return r.Failed == 0 && r.Cancelled == 0
}

// ExecutionResult contains the results of a run
type ExecutionResult struct {
	// Success indicates if every node of every frame completed
	Success bool

	// Frames holds one entry per finished frame, in order
	Frames []FrameResult

	// NodeResults maps node IDs to their accumulated results
	NodeResults map[string]*NodeResult

	// TasksExecuted counts task bodies that ran, excluding yields
	TasksExecuted int64

	// CapacityWaits counts submissions that found a scheduler pool full
	CapacityWaits int64

	// ExecutionTime is the total time taken for execution
	ExecutionTime time.Duration

	// Error is the first node failure encountered
	Error error
}

// FailedFrames returns the number of frames with a failed or cancelled node
func (r *ExecutionResult) FailedFrames() int {
	n := 0
	for _, f := range r.Frames {
		if !f.Success() {
			n++
		}
	}
	return n
}

// NodeResult contains the accumulated result of one node
type NodeResult struct {
	NodeID  string
	Channel uint8
	Status  NodeStatus
	Stats   NodeStats
	Error   error
}

// slot is a node's fixed position in the executor's tables. Positions
// follow topological order.
type slot struct {
	node Node
	deps []int
}

type channelGroup struct {
	channel uint8
	slots   []int
}

// Executor submits a DAG to a scheduler frame after frame. Workers draining
// the scheduler must be running for frames to finish.
type Executor struct {
	dag    *DAG
	sched  *shed.Scheduler
	config *ExecutorConfig

	slots    []slot
	roots    []int
	channels []channelGroup
	fns      []shed.TaskFunc

	revive chan shed.TaskID
	spare  chan *frameState

	executed      atomic.Int64
	capacityWaits atomic.Int64

	mutex           sync.RWMutex
	frames          []FrameResult
	inFlight        int
	completedFrames int
	failedFrames    int
	firstErr        error
}

// NewExecutor prepares dag for repeated submission to sched. It fails when a
// single frame can never fit the scheduler's pools.
func NewExecutor(dag *DAG, sched *shed.Scheduler, config *ExecutorConfig) (*Executor, error) {
	if config == nil {
		config = DefaultExecutorConfig()
	}
	if config.MaxInFlight < 1 {
		config.MaxInFlight = 1
	}
	if config.SubmitBackoffInitial <= 0 {
		config.SubmitBackoffInitial = 50 * time.Microsecond
	}
	if config.SubmitBackoffMax < config.SubmitBackoffInitial {
		config.SubmitBackoffMax = config.SubmitBackoffInitial
	}

	order, err := dag.TopologicalOrder()
	if err != nil {
		return nil, err
	}
	if len(order) == 0 {
		return nil, fmt.Errorf("plan has no nodes")
	}

	maxTasks, maxDependencies, channels := sched.Capacity()
	if len(order) > int(maxTasks) {
		return nil, shederrors.NewTaskCapacityError(len(order), maxTasks)
	}
	if edges := dag.EdgeCount(); edges > int(maxDependencies) {
		return nil, shederrors.NewDependencyCapacityError(edges, maxDependencies)
	}

	e := &Executor{
		dag:    dag,
		sched:  sched,
		config: config,
		slots:  make([]slot, len(order)),
		fns:    make([]shed.TaskFunc, len(order)),
		revive: make(chan shed.TaskID, len(order)*config.MaxInFlight),
		spare:  make(chan *frameState, config.MaxInFlight),
	}

	position := make(map[string]int, len(order))
	for i, id := range order {
		position[id] = i
	}
	groups := make(map[uint8]int)
	for i, id := range order {
		node, err := dag.GetNode(id)
		if err != nil {
			return nil, err
		}
		if node.Channel() >= channels {
			return nil, shederrors.NewPlanChannelError(id, int(node.Channel()), int(channels))
		}
		deps, err := dag.GetDependencies(id)
		if err != nil {
			return nil, err
		}

		s := slot{node: node, deps: make([]int, len(deps))}
		for j, dep := range deps {
			s.deps[j] = position[dep]
		}
		e.slots[i] = s
		e.fns[i] = runNode
		if len(deps) == 0 {
			e.roots = append(e.roots, i)
		}

		g, ok := groups[node.Channel()]
		if !ok {
			g = len(e.channels)
			groups[node.Channel()] = g
			e.channels = append(e.channels, channelGroup{channel: node.Channel()})
		}
		e.channels[g].slots = append(e.channels[g].slots, i)
	}

	return e, nil
}

// Run executes the configured number of frames. Node failures are recorded
// in the result; the returned error reports a run that could not finish.
func (e *Executor) Run(ctx context.Context) (*ExecutionResult, error) {
	start := time.Now()
	e.reset()

	logger.Op.WithFields(map[string]interface{}{
		"nodes":       len(e.slots),
		"frames":      e.config.Frames,
		"maxInFlight": e.config.MaxInFlight,
	}).Info("Starting frame execution")

	g, gctx := errgroup.WithContext(ctx)
	runCtx, stop := context.WithCancel(gctx)
	defer stop()

	g.Go(func() error { return e.reviveBlocked(runCtx) })
	if e.config.ProgressInterval > 0 {
		g.Go(func() error {
			e.logProgress(runCtx, start)
			return nil
		})
	}
	g.Go(func() error {
		defer stop()
		return e.runFrames(runCtx)
	})

	err := g.Wait()
	return e.buildResult(time.Since(start)), err
}

func (e *Executor) reset() {
	e.mutex.Lock()
	defer e.mutex.Unlock()
	e.frames = make([]FrameResult, 0, e.config.Frames)
	e.inFlight = 0
	e.completedFrames = 0
	e.failedFrames = 0
	e.firstErr = nil
	e.executed.Store(0)
	e.capacityWaits.Store(0)
}

func (e *Executor) runFrames(ctx context.Context) error {
	pending := make([]*frameState, 0, e.config.MaxInFlight)

	for n := 1; n <= e.config.Frames; n++ {
		if len(pending) == e.config.MaxInFlight {
			if err := e.await(ctx, pending[0]); err != nil {
				return err
			}
			pending = pending[1:]
		}

		f := e.acquireFrame(ctx, n)
		if err := e.submit(ctx, f); err != nil {
			return err
		}
		e.mutex.Lock()
		e.inFlight++
		e.mutex.Unlock()
		pending = append(pending, f)
	}

	for _, f := range pending {
		if err := e.await(ctx, f); err != nil {
			return err
		}
	}
	return nil
}

// submit turns every node into a scheduler task, wires the dependencies
// and readies the roots.
func (e *Executor) submit(ctx context.Context, f *frameState) error {
	for _, s := range e.slots {
		s.node.Reset()
	}

	err := e.retry(ctx, "CreateTasks", shed.ErrTaskCapacity, func() error {
		return e.sched.CreateTasks(e.fns, f.contexts, f.ids)
	})
	if err != nil {
		return err
	}

	for _, g := range e.channels {
		if g.channel == 0 {
			continue
		}
		f.scratch = f.scratch[:0]
		for _, i := range g.slots {
			f.scratch = append(f.scratch, f.ids[i])
		}
		if err := e.sched.SetTasksChannel(g.channel, f.scratch...); err != nil {
			return shederrors.NewInvariantViolationError("SetTasksChannel", err)
		}
	}

	for i, s := range e.slots {
		if len(s.deps) == 0 {
			continue
		}
		f.scratch = f.scratch[:0]
		for _, d := range s.deps {
			f.scratch = append(f.scratch, f.ids[d])
		}
		task := f.ids[i]
		err := e.retry(ctx, "AddDependencies", shed.ErrDependencyCapacity, func() error {
			return e.sched.AddDependencies(task, f.scratch...)
		})
		if err != nil {
			return err
		}
	}

	f.scratch = f.scratch[:0]
	for _, i := range e.roots {
		f.scratch = append(f.scratch, f.ids[i])
	}
	f.started = time.Now()
	if err := e.sched.ReadyTasks(f.scratch...); err != nil {
		return shederrors.NewInvariantViolationError("ReadyTasks", err)
	}
	return nil
}

// retry repeats call while it fails with capacityErr. Capacity frees up as
// earlier frames finish.
func (e *Executor) retry(ctx context.Context, op string, capacityErr error, call func() error) error {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = e.config.SubmitBackoffInitial
	bo.MaxInterval = e.config.SubmitBackoffMax
	bo.MaxElapsedTime = e.config.FrameTimeout

	err := backoff.Retry(func() error {
		err := call()
		if err == nil {
			return nil
		}
		if errors.Is(err, capacityErr) {
			e.capacityWaits.Add(1)
			return err
		}
		return backoff.Permanent(err)
	}, backoff.WithContext(bo, ctx))

	switch {
	case err == nil:
		return nil
	case ctx.Err() != nil:
		return ctx.Err()
	case errors.Is(err, capacityErr):
		return fmt.Errorf("%s: scheduler stayed full for %v: %w", op, e.config.FrameTimeout, err)
	default:
		return shederrors.NewInvariantViolationError(op, err)
	}
}

// await blocks until f finishes, records its result and recycles it
func (e *Executor) await(ctx context.Context, f *frameState) error {
	wait := e.config.FrameTimeout - time.Since(f.started)
	if wait < 0 {
		wait = 0
	}
	timer := time.NewTimer(wait)
	defer timer.Stop()

	select {
	case <-f.done:
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		select {
		case <-f.done:
		default:
			return shederrors.NewFrameTimeoutError(f.number, f.remaining.Load(), context.DeadlineExceeded)
		}
	}

	res := f.result()
	e.record(res)
	if e.config.OnFrame != nil {
		e.config.OnFrame(res)
	}
	e.releaseFrame(f)
	return nil
}

func (e *Executor) record(res FrameResult) {
	e.mutex.Lock()
	defer e.mutex.Unlock()

	e.frames = append(e.frames, res)
	e.inFlight--
	e.completedFrames++
	if res.Success() {
		logger.Op.WithFields(map[string]interface{}{
			"frame":    res.Frame,
			"duration": res.Duration.String(),
			"yields":   res.Yields,
		}).Debug("Frame completed")
		return
	}

	e.failedFrames++
	if e.firstErr == nil {
		e.firstErr = res.Err
	}
	logger.User.Framef("Frame %d: %d failed, %d cancelled", res.Frame, res.Failed, res.Cancelled)
	if res.Err != nil {
		logger.Op.WithFields(map[string]interface{}{
			"frame": res.Frame,
			"error": res.Err.Error(),
		}).Warn("Frame had failures")
	}
}

// reviveBlocked re-readies tasks that yielded. A yielding task announces
// itself before returning, so its slot may still be executing for a moment.
func (e *Executor) reviveBlocked(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case id := <-e.revive:
			for e.sched.State(id) != shed.StateBlocked {
				if ctx.Err() != nil {
					return nil
				}
				runtime.Gosched()
			}
			if err := e.sched.ReadyTasks(id); err != nil {
				return shederrors.NewInvariantViolationError("ReadyTasks", err)
			}
		}
	}
}

func (e *Executor) logProgress(ctx context.Context, start time.Time) {
	reporter := progress.NewReporter(e.config.ProgressInterval)
	ticker := time.NewTicker(e.config.ProgressInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			logger.User.Info(reporter.Report(e.Progress(start)))
		}
	}
}

// Progress returns a point-in-time view of the run. Scheduler occupancy is
// sampled while workers run and is approximate.
func (e *Executor) Progress(start time.Time) progress.ProgressInfo {
	e.mutex.RLock()
	info := progress.ProgressInfo{
		CurrentPhase:    progress.PhaseRun,
		TotalFrames:     e.config.Frames,
		CompletedFrames: e.completedFrames,
		FailedFrames:    e.failedFrames,
		InFlightFrames:  e.inFlight,
	}
	e.mutex.RUnlock()

	if info.CompletedFrames == info.TotalFrames {
		info.CurrentPhase = progress.PhaseDrain
	}
	info.TasksExecuted = e.executed.Load()
	info.ElapsedTime = time.Since(start)
	info.EstimatedTimeLeft = progress.CalculateETA(info.CompletedFrames, info.TotalFrames, info.ElapsedTime)

	stats := e.sched.Stats()
	info.Pool = progress.PoolUsage{
		UsedTasks:        int(stats.MaxTasks) - max(stats.AvailableTasks, 0),
		MaxTasks:         int(stats.MaxTasks),
		UsedDependencies: int(stats.MaxDependencies) - max(stats.AvailableDependencies, 0),
		MaxDependencies:  int(stats.MaxDependencies),
	}
	info.Queued = stats.Queued
	return info
}

func (e *Executor) buildResult(elapsed time.Duration) *ExecutionResult {
	e.mutex.RLock()
	defer e.mutex.RUnlock()

	result := &ExecutionResult{
		Success:       e.failedFrames == 0 && e.completedFrames == e.config.Frames,
		Frames:        append([]FrameResult(nil), e.frames...),
		NodeResults:   make(map[string]*NodeResult, len(e.slots)),
		TasksExecuted: e.executed.Load(),
		CapacityWaits: e.capacityWaits.Load(),
		ExecutionTime: elapsed,
		Error:         e.firstErr,
	}
	for _, s := range e.slots {
		result.NodeResults[s.node.ID()] = &NodeResult{
			NodeID:  s.node.ID(),
			Channel: s.node.Channel(),
			Status:  s.node.GetStatus(),
			Stats:   s.node.Stats(),
			Error:   s.node.GetError(),
		}
	}
	return result
}

// frameState is the per-submission bookkeeping shared by a frame's tasks.
// It is recycled once the frame finishes.
type frameState struct {
	exec   *Executor
	ctx    context.Context
	number int

	runs     []taskRun
	contexts []any
	ids      []shed.TaskID
	failed   []atomic.Bool
	scratch  []shed.TaskID

	started   time.Time
	remaining atomic.Int64
	done      chan struct{}

	completed atomic.Int32
	failures  atomic.Int32
	cancelled atomic.Int32
	yields    atomic.Int32

	errMu sync.Mutex
	err   error
}

// taskRun is the context handed to the scheduler for one task
type taskRun struct {
	frame      *frameState
	slot       int
	yieldsLeft int
}

func (e *Executor) acquireFrame(ctx context.Context, number int) *frameState {
	var f *frameState
	select {
	case f = <-e.spare:
	default:
		n := len(e.slots)
		f = &frameState{
			exec:     e,
			runs:     make([]taskRun, n),
			contexts: make([]any, n),
			ids:      make([]shed.TaskID, n),
			failed:   make([]atomic.Bool, n),
			scratch:  make([]shed.TaskID, 0, n),
		}
	}

	f.ctx = ctx
	f.number = number
	f.err = nil
	f.done = make(chan struct{})
	f.remaining.Store(int64(len(e.slots)))
	f.completed.Store(0)
	f.failures.Store(0)
	f.cancelled.Store(0)
	f.yields.Store(0)
	for i := range f.runs {
		f.runs[i] = taskRun{frame: f, slot: i, yieldsLeft: e.slots[i].node.Yields()}
		f.contexts[i] = &f.runs[i]
		f.failed[i].Store(false)
	}
	return f
}

func (e *Executor) releaseFrame(f *frameState) {
	select {
	case e.spare <- f:
	default:
	}
}

func (f *frameState) result() FrameResult {
	f.errMu.Lock()
	defer f.errMu.Unlock()
	return FrameResult{
		Frame:     f.number,
		Completed: int(f.completed.Load()),
		Failed:    int(f.failures.Load()),
		Cancelled: int(f.cancelled.Load()),
		Yields:    int(f.yields.Load()),
		Duration:  time.Since(f.started),
		Err:       f.err,
	}
}

func (f *frameState) setErr(err error) {
	f.errMu.Lock()
	defer f.errMu.Unlock()
	if f.err == nil {
		f.err = err
	}
}

// finish must be the task body's last access to f
func (f *frameState) finish() {
	if f.remaining.Add(-1) == 0 {
		close(f.done)
	}
}

func (f *frameState) cancelCause(s *slot) error {
	if err := f.ctx.Err(); err != nil {
		return err
	}
	for _, d := range s.deps {
		if f.failed[d].Load() {
			return fmt.Errorf("dependency %s did not complete", f.exec.slots[d].node.ID())
		}
	}
	return nil
}

func (f *frameState) cancel(run *taskRun, s *slot, cause error) shed.TaskResult {
	s.node.Cancel(cause)
	f.failed[run.slot].Store(true)
	f.cancelled.Add(1)
	f.finish()
	return shed.Complete
}

// runNode is the scheduler body of every plan node
func runNode(_ *shed.Scheduler, id shed.TaskID, _ uint8, ctx any) shed.TaskResult {
	run := ctx.(*taskRun)
	f := run.frame
	s := &f.exec.slots[run.slot]

	if cause := f.cancelCause(s); cause != nil {
		return f.cancel(run, s, cause)
	}

	if run.yieldsLeft > 0 {
		run.yieldsLeft--
		select {
		case f.exec.revive <- id:
			s.node.Yield()
			f.yields.Add(1)
			return shed.Blocked
		case <-f.ctx.Done():
			return f.cancel(run, s, f.ctx.Err())
		}
	}

	err := s.node.Execute(f.ctx)
	f.exec.executed.Add(1)
	if err != nil {
		f.failed[run.slot].Store(true)
		f.failures.Add(1)
		f.setErr(shederrors.NewNodeFailedError(s.node.ID(), f.number, err))
	} else {
		f.completed.Add(1)
	}
	f.finish()
	return shed.Complete
}
