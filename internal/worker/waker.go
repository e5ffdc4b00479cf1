package worker

import (
	"sync/atomic"
)

// Waker turns scheduler ready notifications into wake-ups for idle workers.
// Each channel has a token buffer sized to its worker count; a notification
// deposits up to count tokens without blocking, so at most one idle worker
// per newly ready task is woken.
type Waker struct {
	tokens  []chan struct{}
	readied atomic.Int64
	signals atomic.Int64
}

// NewWaker creates a waker for len(workersPerChannel) channels.
func NewWaker(workersPerChannel []int) *Waker {
	w := &Waker{tokens: make([]chan struct{}, len(workersPerChannel))}
	for ch, n := range workersPerChannel {
		if n < 1 {
			n = 1
		}
		w.tokens[ch] = make(chan struct{}, n)
	}
	return w
}

// SignalReady records one readying call.
func (w *Waker) SignalReady(count uint32) {
	w.signals.Add(1)
	w.readied.Add(int64(count))
}

// SignalChannelReady wakes up to count idle workers of channel.
func (w *Waker) SignalChannelReady(channel uint8, count uint32) {
	if int(channel) >= len(w.tokens) {
		return
	}
	tokens := w.tokens[channel]
	for i := uint32(0); i < count; i++ {
		select {
		case tokens <- struct{}{}:
		default:
			return
		}
	}
}

// Wait returns the channel an idle worker of channel blocks on.
func (w *Waker) Wait(channel uint8) <-chan struct{} {
	return w.tokens[channel]
}

// Readied returns the number of tasks reported ready so far.
func (w *Waker) Readied() int64 {
	return w.readied.Load()
}

// Signals returns the number of ready notifications received so far.
func (w *Waker) Signals() int64 {
	return w.signals.Load()
}
