package shed

// TaskState is the lifecycle position of a task slot.
type TaskState uint32

const (
	// StateFree slots are on the free list and have no valid TaskID.
	StateFree TaskState = iota
	// StateReserved tasks are created but not yet queued. Dependencies and
	// the channel may still change.
	StateReserved
	// StateReady tasks sit on their channel's ready queue.
	StateReady
	// StateExecuting tasks are running inside ExecuteOne.
	StateExecuting
	// StateBlocked tasks returned Blocked and wait to be readied again.
	StateBlocked
)

func (s TaskState) String() string {
	switch s {
	case StateFree:
		return "free"
	case StateReserved:
		return "reserved"
	case StateReady:
		return "ready"
	case StateExecuting:
		return "executing"
	case StateBlocked:
		return "blocked"
	default:
		return "unknown"
	}
}

// editable reports whether dependencies and channel may still be changed.
func (s TaskState) editable() bool {
	return s == StateReserved || s == StateBlocked
}

// TaskResult is returned by a TaskFunc.
type TaskResult uint8

const (
	// Complete releases the task and resolves its dependents.
	Complete TaskResult = iota
	// Blocked keeps the task reserved. The caller must ready it again once
	// whatever it waits on is available.
	Blocked
)

func (r TaskResult) String() string {
	switch r {
	case Complete:
		return "complete"
	case Blocked:
		return "blocked"
	default:
		return "invalid"
	}
}
