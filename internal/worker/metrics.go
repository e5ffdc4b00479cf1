package worker

import "sync/atomic"

// Metrics tracks pool activity
type Metrics struct {
	executed  int64
	idleWaits int64
	wakeups   int64
	failures  int64
}

func NewMetrics() *Metrics {
	return &Metrics{}
}

// GetExecuted returns the number of tasks run by the pool
func (m *Metrics) GetExecuted() int64 {
	return atomic.LoadInt64(&m.executed)
}

// GetIdleWaits returns how often a worker found its queue empty
func (m *Metrics) GetIdleWaits() int64 {
	return atomic.LoadInt64(&m.idleWaits)
}

// GetWakeups returns how many idle waits ended with a ready notification
// rather than a back-off timeout
func (m *Metrics) GetWakeups() int64 {
	return atomic.LoadInt64(&m.wakeups)
}

// GetFailures returns the number of workers stopped by a scheduler error
func (m *Metrics) GetFailures() int64 {
	return atomic.LoadInt64(&m.failures)
}

// Snapshot is a copy of the counters at one point in time
type Snapshot struct {
	Executed  int64
	IdleWaits int64
	Wakeups   int64
	Failures  int64
}

func (m *Metrics) Snapshot() Snapshot {
	return Snapshot{
		Executed:  m.GetExecuted(),
		IdleWaits: m.GetIdleWaits(),
		Wakeups:   m.GetWakeups(),
		Failures:  m.GetFailures(),
	}
}

func (m *Metrics) addExecuted() { atomic.AddInt64(&m.executed, 1) }
func (m *Metrics) addIdleWait() { atomic.AddInt64(&m.idleWaits, 1) }
func (m *Metrics) addWakeup()   { atomic.AddInt64(&m.wakeups, 1) }
func (m *Metrics) addFailure()  { atomic.AddInt64(&m.failures, 1) }
