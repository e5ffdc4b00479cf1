package dag

import (
	"context"
	"sync"
	"time"
)

// BaseNode is the Node implementation used for plan nodes
type BaseNode struct {
	task    Task
	channel uint8
	yields  int

	status NodeStatus
	err    error
	stats  NodeStats
	mutex  sync.RWMutex
}

// NodeOption customises a BaseNode
type NodeOption func(*BaseNode)

// WithChannel places the node's tasks on a scheduler channel
func WithChannel(channel uint8) NodeOption {
	return func(b *BaseNode) { b.channel = channel }
}

// WithYields makes the node return blocked n times per frame before running
func WithYields(n int) NodeOption {
	return func(b *BaseNode) {
		if n > 0 {
			b.yields = n
		}
	}
}

// NewBaseNode creates a new BaseNode with the given task
func NewBaseNode(task Task, opts ...NodeOption) *BaseNode {
	b := &BaseNode{
		task:   task,
		status: StatusPending,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// ID returns the unique identifier for this node
func (b *BaseNode) ID() string {
	return b.task.ID()
}

func (b *BaseNode) GetTask() Task {
	return b.task
}

func (b *BaseNode) Channel() uint8 {
	return b.channel
}

func (b *BaseNode) Yields() int {
	return b.yields
}

// Execute runs the node's task and records the outcome
func (b *BaseNode) Execute(ctx context.Context) error {
	b.SetStatus(StatusRunning)

	start := time.Now()
	err := b.task.Execute(ctx)
	elapsed := time.Since(start)

	b.mutex.Lock()
	defer b.mutex.Unlock()
	b.stats.TotalDuration += elapsed
	if elapsed > b.stats.MaxDuration {
		b.stats.MaxDuration = elapsed
	}
	b.err = err
	if err != nil {
		b.status = StatusFailed
		b.stats.Failed++
	} else {
		b.status = StatusCompleted
		b.stats.Completed++
	}
	return err
}

// Yield records one blocked return
func (b *BaseNode) Yield() {
	b.mutex.Lock()
	defer b.mutex.Unlock()
	b.status = StatusYielded
	b.stats.Yields++
}

// Cancel marks the node skipped for the current frame
func (b *BaseNode) Cancel(cause error) {
	b.mutex.Lock()
	defer b.mutex.Unlock()
	b.status = StatusCancelled
	b.err = cause
	b.stats.Cancelled++
}

// Reset prepares the node for a new frame, keeping accumulated stats
func (b *BaseNode) Reset() {
	b.mutex.Lock()
	defer b.mutex.Unlock()
	b.status = StatusPending
	b.err = nil
}

// GetStatus returns the current execution status of the node
func (b *BaseNode) GetStatus() NodeStatus {
	b.mutex.RLock()
	defer b.mutex.RUnlock()
	return b.status
}

// SetStatus updates the execution status of the node
func (b *BaseNode) SetStatus(status NodeStatus) {
	b.mutex.Lock()
	defer b.mutex.Unlock()
	b.status = status
}

// GetError returns any error from the last execution
func (b *BaseNode) GetError() error {
	b.mutex.RLock()
	defer b.mutex.RUnlock()
	return b.err
}

// SetError sets an error from execution
func (b *BaseNode) SetError(err error) {
	b.mutex.Lock()
	defer b.mutex.Unlock()
	b.err = err
}

// Stats returns counters accumulated across frames
func (b *BaseNode) Stats() NodeStats {
	b.mutex.RLock()
	defer b.mutex.RUnlock()
	return b.stats
}
