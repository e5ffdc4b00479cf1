package dag

import (
	"context"
	"time"
)

// Node represents a single node in the plan graph. Every frame the executor
// turns each node into one scheduler task.
type Node interface {
	// ID returns the unique identifier for this node
	ID() string

	// Execute runs the node's task once
	Execute(ctx context.Context) error

	// GetTask returns the underlying task
	GetTask() Task

	// Channel returns the scheduler channel the node's tasks run on
	Channel() uint8

	// Yields returns how many times the node re-queues itself as blocked
	// before running its task in a frame
	Yields() int

	// GetStatus returns the status reached in the most recent frame
	GetStatus() NodeStatus

	// SetStatus updates the execution status of the node
	SetStatus(status NodeStatus)

	// GetError returns any error from the last execution
	GetError() error

	// SetError sets an error from execution
	SetError(err error)

	// Yield records one blocked return
	Yield()

	// Cancel marks the node skipped because a dependency failed
	Cancel(cause error)

	// Reset clears per-frame status, keeping accumulated stats
	Reset()

	// Stats returns counters accumulated across frames
	Stats() NodeStats
}

// NodeStatus represents the execution status of a node within a frame
type NodeStatus int

const (
	// StatusPending indicates the node is waiting on dependencies
	StatusPending NodeStatus = iota
	// StatusRunning indicates the node's task is executing
	StatusRunning
	// StatusYielded indicates the node returned blocked and awaits re-queueing
	StatusYielded
	// StatusCompleted indicates the node has completed successfully
	StatusCompleted
	// StatusFailed indicates the node's task returned an error
	StatusFailed
	// StatusCancelled indicates a dependency failed so the task was skipped
	StatusCancelled
)

// String returns a string representation of the NodeStatus
func (s NodeStatus) String() string {
	switch s {
	case StatusPending:
		return "pending"
	case StatusRunning:
		return "running"
	case StatusYielded:
		return "yielded"
	case StatusCompleted:
		return "completed"
	case StatusFailed:
		return "failed"
	case StatusCancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// NodeStats aggregates a node's outcomes over a run
type NodeStats struct {
	Completed     int
	Failed        int
	Cancelled     int
	Yields        int
	TotalDuration time.Duration
	MaxDuration   time.Duration
}

// Runs is the number of frames in which the task actually executed
func (s NodeStats) Runs() int {
	return s.Completed + s.Failed
}

// AverageDuration is the mean task duration over executed frames
func (s NodeStats) AverageDuration() time.Duration {
	if s.Runs() == 0 {
		return 0
	}
	return s.TotalDuration / time.Duration(s.Runs())
}
