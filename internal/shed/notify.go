package shed

// ReadyNotifier is told how many tasks became ready. It is invoked at most
// once per ReadyTasks call and once per completion that readied dependents,
// always with the total count for that call. Implementations must be safe
// for concurrent use and must not block; typically they wake idle workers.
type ReadyNotifier interface {
	SignalReady(count uint32)
}

// ReadyNotifierFunc adapts a function to ReadyNotifier.
type ReadyNotifierFunc func(count uint32)

func (f ReadyNotifierFunc) SignalReady(count uint32) {
	f(count)
}

// ChannelNotifier is an optional extension of ReadyNotifier. When the
// notifier passed to New implements it, SignalChannelReady is invoked once
// for every run of same-channel tasks spliced onto a ready queue, before the
// SignalReady call that reports the total.
type ChannelNotifier interface {
	SignalChannelReady(channel uint8, count uint32)
}

type nopNotifier struct{}

func (nopNotifier) SignalReady(uint32) {}
