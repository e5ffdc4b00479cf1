package shed

import "sync/atomic"

// State returns the lifecycle state of id, or StateFree when id no longer
// names a live task.
func (s *Scheduler) State(id TaskID) TaskState {
	index := id.Index()
	if index == 0 || index > s.maxTasks || atomic.LoadUint32(s.taskWord(index, taskID)) != uint32(id) {
		return StateFree
	}
	return s.state(index)
}

// PendingDependencies returns how many dependencies of id are unresolved.
func (s *Scheduler) PendingDependencies(id TaskID) int {
	if s.State(id) == StateFree {
		return 0
	}
	return int(int32(atomic.LoadUint32(s.taskWord(id.Index(), taskPending))))
}

// Channel returns the channel id will be queued on.
func (s *Scheduler) Channel(id TaskID) uint8 {
	if s.State(id) == StateFree {
		return 0
	}
	return uint8(atomic.LoadUint32(s.taskWord(id.Index(), taskChannel)))
}

// Capacity returns the limits the scheduler was created with.
func (s *Scheduler) Capacity() (maxTasks, maxDependencies uint32, channelCount uint8) {
	return s.maxTasks, s.maxDependencies, s.channels
}

// Size returns the number of bytes of the memory block in use.
func (s *Scheduler) Size() int {
	return len(s.mem)
}

// The counters below walk free lists and queues. They are exact only while
// no other goroutine mutates the scheduler.

// AvailableTasks returns the number of free task slots.
func (s *Scheduler) AvailableTasks() int {
	return s.taskPool.available()
}

// AvailableDependencies returns the number of free dependency edges.
func (s *Scheduler) AvailableDependencies() int {
	return s.edgePool.available()
}

// QueuedTasks returns the number of ready tasks waiting on channel.
func (s *Scheduler) QueuedTasks(channel uint8) int {
	if channel >= s.channels {
		return 0
	}
	return s.readyQueue(channel).len()
}

// Stats is a point-in-time summary of pool and queue occupancy.
type Stats struct {
	MaxTasks              uint32
	MaxDependencies       uint32
	AvailableTasks        int
	AvailableDependencies int
	Queued                []int
}

// Stats collects the quiescent counters in one pass.
func (s *Scheduler) Stats() Stats {
	st := Stats{
		MaxTasks:              s.maxTasks,
		MaxDependencies:       s.maxDependencies,
		AvailableTasks:        s.AvailableTasks(),
		AvailableDependencies: s.AvailableDependencies(),
		Queued:                make([]int, s.channels),
	}
	for ch := range st.Queued {
		st.Queued[ch] = s.QueuedTasks(uint8(ch))
	}
	return st
}
