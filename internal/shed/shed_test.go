package shed

import (
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// recorder captures notifications and execution order.
type recorder struct {
	mu       sync.Mutex
	signals  []uint32
	channels []channelSignal
	executed []string
}

type channelSignal struct {
	channel uint8
	count   uint32
}

func (r *recorder) SignalReady(count uint32) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.signals = append(r.signals, count)
}

func (r *recorder) SignalChannelReady(channel uint8, count uint32) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.channels = append(r.channels, channelSignal{channel, count})
}

func (r *recorder) run(name string) TaskFunc {
	return func(*Scheduler, TaskID, uint8, any) TaskResult {
		r.mu.Lock()
		r.executed = append(r.executed, name)
		r.mu.Unlock()
		return Complete
	}
}

func (r *recorder) reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.signals = nil
	r.channels = nil
	r.executed = nil
}

func newTestScheduler(t *testing.T, maxTasks, maxDependencies uint32, channels uint8, notifier ReadyNotifier) *Scheduler {
	t.Helper()
	mem := AlignedBuffer(RequiredSize(maxTasks, maxDependencies, channels))
	s, err := New(mem, maxTasks, maxDependencies, channels, notifier)
	require.NoError(t, err)
	return s
}

// createNamed creates one task per name and returns their ids in order.
func createNamed(t *testing.T, s *Scheduler, r *recorder, names ...string) []TaskID {
	t.Helper()
	fns := make([]TaskFunc, len(names))
	contexts := make([]any, len(names))
	for i, name := range names {
		fns[i] = r.run(name)
		contexts[i] = name
	}
	ids := make([]TaskID, len(names))
	require.NoError(t, s.CreateTasks(fns, contexts, ids))
	return ids
}

func drain(t *testing.T, s *Scheduler, channel uint8) int {
	t.Helper()
	n := 0
	for {
		ran, err := s.ExecuteOne(channel)
		require.NoError(t, err)
		if !ran {
			return n
		}
		n++
	}
}

func captureAsserts(t *testing.T) *[]string {
	t.Helper()
	var expressions []string
	SetAssert(func(expression, file string, line int) {
		expressions = append(expressions, expression)
	})
	t.Cleanup(func() { SetAssert(nil) })
	return &expressions
}

func TestRequiredSize(t *testing.T) {
	small := RequiredSize(1, 0, 1)
	assert.Positive(t, small)
	assert.Zero(t, small%8, "size keeps 8-byte alignment")
	assert.Equal(t, small, RequiredSize(1, 0, 1), "pure function")
	assert.Greater(t, RequiredSize(2, 0, 1), small)
	assert.Greater(t, RequiredSize(1, 1, 1), small)
	assert.GreaterOrEqual(t, RequiredSize(1, 0, 3), small)
}

func TestNewRejectsInvalidConfiguration(t *testing.T) {
	tests := []struct {
		name            string
		maxTasks        uint32
		maxDependencies uint32
		channels        uint8
	}{
		{"zero tasks", 0, 4, 1},
		{"too many tasks", MaxCapacity + 1, 4, 1},
		{"too many dependencies", 4, MaxCapacity + 1, 1},
		{"zero channels", 4, 4, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mem := AlignedBuffer(RequiredSize(4, 4, 1))
			s, err := New(mem, tt.maxTasks, tt.maxDependencies, tt.channels, nil)
			assert.Nil(t, s)
			assert.ErrorIs(t, err, ErrInvalidConfig)
		})
	}
}

func TestNewRejectsUnusableMemory(t *testing.T) {
	size := RequiredSize(4, 4, 1)

	_, err := New(AlignedBuffer(size-8), 4, 4, 1, nil)
	assert.ErrorIs(t, err, ErrInvalidConfig, "short block")

	mem := AlignedBuffer(size + 8)
	_, err = New(mem[4:], 4, 4, 1, nil)
	assert.ErrorIs(t, err, ErrInvalidConfig, "misaligned block")
}

func TestNewInitialState(t *testing.T) {
	s := newTestScheduler(t, 8, 16, 3, nil)

	maxTasks, maxDependencies, channels := s.Capacity()
	assert.Equal(t, uint32(8), maxTasks)
	assert.Equal(t, uint32(16), maxDependencies)
	assert.Equal(t, uint8(3), channels)
	assert.Equal(t, RequiredSize(8, 16, 3), s.Size())
	assert.Equal(t, 8, s.AvailableTasks())
	assert.Equal(t, 16, s.AvailableDependencies())
	for ch := uint8(0); ch < 3; ch++ {
		assert.Zero(t, s.QueuedTasks(ch))
	}

	ran, err := s.ExecuteOne(0)
	assert.NoError(t, err)
	assert.False(t, ran)
}

func TestNewReinitializesDirtyMemory(t *testing.T) {
	size := RequiredSize(4, 4, 1)
	mem := AlignedBuffer(size)
	for i := range mem {
		mem[i] = 0xff
	}

	s, err := New(mem, 4, 4, 1, nil)
	require.NoError(t, err)
	assert.Equal(t, 4, s.AvailableTasks())
	assert.Equal(t, 4, s.AvailableDependencies())
	assert.Zero(t, s.QueuedTasks(0))
}

func TestCreateTasksBatchSharesGeneration(t *testing.T) {
	r := &recorder{}
	s := newTestScheduler(t, 8, 0, 1, r)

	ids := createNamed(t, s, r, "a", "b", "c")
	for _, id := range ids {
		assert.NotZero(t, id.Index())
		assert.Equal(t, ids[0].Generation(), id.Generation())
		assert.Equal(t, StateReserved, s.State(id))
		assert.Equal(t, uint8(0), s.Channel(id))
	}
	assert.Equal(t, 5, s.AvailableTasks())

	next := createNamed(t, s, r, "d")
	assert.NotEqual(t, ids[0].Generation(), next[0].Generation())
}

func TestCreateTasksExhaustionIsAllOrNothing(t *testing.T) {
	r := &recorder{}
	s := newTestScheduler(t, 4, 0, 1, r)

	createNamed(t, s, r, "a", "b", "c")

	ids := make([]TaskID, 2)
	err := s.CreateTasks([]TaskFunc{r.run("d"), r.run("e")}, []any{nil, nil}, ids)
	assert.ErrorIs(t, err, ErrTaskCapacity)
	assert.Equal(t, []TaskID{0, 0}, ids)
	assert.Equal(t, 1, s.AvailableTasks(), "partial batch must be returned")

	createNamed(t, s, r, "d")
	assert.Zero(t, s.AvailableTasks())
}

func TestCreateTasksValidatesArguments(t *testing.T) {
	asserts := captureAsserts(t)
	r := &recorder{}
	s := newTestScheduler(t, 4, 0, 1, r)

	err := s.CreateTasks(nil, nil, nil)
	assert.ErrorIs(t, err, ErrInvariant)

	err = s.CreateTasks([]TaskFunc{r.run("a")}, nil, make([]TaskID, 1))
	assert.ErrorIs(t, err, ErrInvariant)

	err = s.CreateTasks([]TaskFunc{nil}, []any{nil}, make([]TaskID, 1))
	assert.ErrorIs(t, err, ErrInvariant)

	assert.Len(t, *asserts, 3)
	assert.Equal(t, 4, s.AvailableTasks())
}

// A waits on B: only B is readied, running B readies A.
func TestChainExecutesDependencyFirst(t *testing.T) {
	r := &recorder{}
	s := newTestScheduler(t, 4, 4, 1, r)

	ids := createNamed(t, s, r, "T1", "T2")
	require.NoError(t, s.AddDependencies(ids[0], ids[1]))
	assert.Equal(t, 1, s.PendingDependencies(ids[0]))

	require.NoError(t, s.ReadyTasks(ids[1]))

	ran, err := s.ExecuteOne(0)
	require.NoError(t, err)
	assert.True(t, ran)
	assert.Equal(t, StateReady, s.State(ids[0]))
	assert.Equal(t, StateFree, s.State(ids[1]))

	ran, err = s.ExecuteOne(0)
	require.NoError(t, err)
	assert.True(t, ran)

	ran, err = s.ExecuteOne(0)
	require.NoError(t, err)
	assert.False(t, ran)

	assert.Equal(t, []string{"T2", "T1"}, r.executed)
	assert.Equal(t, []uint32{1, 1}, r.signals)
	assert.Equal(t, 4, s.AvailableTasks())
	assert.Equal(t, 4, s.AvailableDependencies())
}

func TestFanInReadiesAfterLastDependency(t *testing.T) {
	r := &recorder{}
	s := newTestScheduler(t, 8, 8, 1, r)

	ids := createNamed(t, s, r, "T", "D1", "D2", "D3")
	require.NoError(t, s.AddDependencies(ids[0], ids[1:]...))
	assert.Equal(t, 3, s.PendingDependencies(ids[0]))
	require.NoError(t, s.ReadyTasks(ids[1:]...))
	assert.Equal(t, 3, s.QueuedTasks(0))

	for i := 0; i < 2; i++ {
		ran, err := s.ExecuteOne(0)
		require.NoError(t, err)
		require.True(t, ran)
		assert.Equal(t, StateReserved, s.State(ids[0]))
	}
	assert.Equal(t, 1, s.PendingDependencies(ids[0]))

	ran, err := s.ExecuteOne(0)
	require.NoError(t, err)
	require.True(t, ran)
	assert.Equal(t, StateReady, s.State(ids[0]))
	assert.Equal(t, 0, s.PendingDependencies(ids[0]))

	assert.Equal(t, 1, drain(t, s, 0))
	assert.Equal(t, "T", r.executed[len(r.executed)-1])
}

func TestCompletionNotifiesOncePerChannelRun(t *testing.T) {
	r := &recorder{}
	s := newTestScheduler(t, 4, 4, 2, r)

	ids := createNamed(t, s, r, "P1", "P2", "C")
	require.NoError(t, s.SetTasksChannel(1, ids[1]))
	require.NoError(t, s.AddDependencies(ids[0], ids[2]))
	require.NoError(t, s.AddDependencies(ids[1], ids[2]))
	require.NoError(t, s.ReadyTasks(ids[2]))
	r.reset()

	ran, err := s.ExecuteOne(0)
	require.NoError(t, err)
	require.True(t, ran)

	assert.Equal(t, []uint32{2}, r.signals, "one notification with the total")
	require.Len(t, r.channels, 2, "one notification per channel run")
	var total uint32
	seen := map[uint8]bool{}
	for _, sig := range r.channels {
		total += sig.count
		seen[sig.channel] = true
	}
	assert.Equal(t, uint32(2), total)
	assert.True(t, seen[0])
	assert.True(t, seen[1])

	assert.Equal(t, 1, s.QueuedTasks(0))
	assert.Equal(t, 1, s.QueuedTasks(1))
	assert.Equal(t, 1, drain(t, s, 0))
	assert.Equal(t, 1, drain(t, s, 1))
}

func TestReadyTasksSplicesChannelRuns(t *testing.T) {
	r := &recorder{}
	s := newTestScheduler(t, 8, 0, 2, r)

	ids := createNamed(t, s, r, "a", "b", "c", "d", "e")
	require.NoError(t, s.SetTasksChannel(1, ids[2], ids[3]))
	r.reset()

	require.NoError(t, s.ReadyTasks(ids...))

	assert.Equal(t, []uint32{5}, r.signals)
	assert.Equal(t, []channelSignal{{0, 2}, {1, 2}, {0, 1}}, r.channels)
	assert.Equal(t, 3, s.QueuedTasks(0))
	assert.Equal(t, 2, s.QueuedTasks(1))

	assert.Equal(t, 3, drain(t, s, 0))
	assert.Equal(t, 2, drain(t, s, 1))
	assert.Equal(t, 8, s.AvailableTasks())
}

func TestReadyTasksEmptyBatchDoesNotNotify(t *testing.T) {
	r := &recorder{}
	s := newTestScheduler(t, 2, 0, 1, r)
	require.NoError(t, s.ReadyTasks())
	assert.Empty(t, r.signals)
}

func TestZeroDependencyCapacity(t *testing.T) {
	r := &recorder{}
	s := newTestScheduler(t, 4, 0, 1, r)

	ids := createNamed(t, s, r, "a", "b")
	assert.ErrorIs(t, s.AddDependencies(ids[0], ids[1]), ErrDependencyCapacity)
	assert.Equal(t, 0, s.PendingDependencies(ids[0]))
	assert.NoError(t, s.AddDependencies(ids[0]), "empty list always succeeds")
}

func TestAddDependenciesExhaustionRollsBack(t *testing.T) {
	r := &recorder{}
	s := newTestScheduler(t, 8, 2, 1, r)

	ids := createNamed(t, s, r, "T", "A", "B", "C")
	err := s.AddDependencies(ids[0], ids[1], ids[2], ids[3])
	assert.ErrorIs(t, err, ErrDependencyCapacity)
	assert.Equal(t, 2, s.AvailableDependencies())
	assert.Equal(t, 0, s.PendingDependencies(ids[0]))

	// A carries no edge, so finishing it must not touch T.
	require.NoError(t, s.ReadyTasks(ids[1]))
	assert.Equal(t, 1, drain(t, s, 0))
	assert.Equal(t, StateReserved, s.State(ids[0]))
}

func TestAddDependenciesAccumulates(t *testing.T) {
	r := &recorder{}
	s := newTestScheduler(t, 8, 8, 1, r)

	ids := createNamed(t, s, r, "T", "A", "B")
	require.NoError(t, s.AddDependencies(ids[0], ids[1]))
	require.NoError(t, s.AddDependencies(ids[0], ids[2]))
	assert.Equal(t, 2, s.PendingDependencies(ids[0]))

	require.NoError(t, s.ReadyTasks(ids[1], ids[2]))
	assert.Equal(t, 3, drain(t, s, 0))
	assert.Equal(t, "T", r.executed[2])
}

func TestSharedDependencyReadiesEveryParent(t *testing.T) {
	r := &recorder{}
	s := newTestScheduler(t, 8, 8, 1, r)

	ids := createNamed(t, s, r, "P1", "P2", "P3", "D")
	for _, parent := range ids[:3] {
		require.NoError(t, s.AddDependencies(parent, ids[3]))
	}
	require.NoError(t, s.ReadyTasks(ids[3]))
	r.reset()

	ran, err := s.ExecuteOne(0)
	require.NoError(t, err)
	require.True(t, ran)
	assert.Equal(t, []uint32{3}, r.signals)
	assert.Equal(t, []channelSignal{{0, 3}}, r.channels)
	assert.Equal(t, 3, drain(t, s, 0))
}

func TestBlockedTaskStaysAllocated(t *testing.T) {
	r := &recorder{}
	s := newTestScheduler(t, 4, 4, 1, r)

	runs := 0
	blockOnce := func(*Scheduler, TaskID, uint8, any) TaskResult {
		runs++
		if runs == 1 {
			return Blocked
		}
		return Complete
	}
	ids := make([]TaskID, 1)
	require.NoError(t, s.CreateTasks([]TaskFunc{blockOnce}, []any{nil}, ids))
	parent := createNamed(t, s, r, "parent")
	require.NoError(t, s.AddDependencies(parent[0], ids[0]))
	require.NoError(t, s.ReadyTasks(ids[0]))

	ran, err := s.ExecuteOne(0)
	require.NoError(t, err)
	require.True(t, ran)
	assert.Equal(t, StateBlocked, s.State(ids[0]))
	assert.Equal(t, StateReserved, s.State(parent[0]), "blocked task does not resolve")
	assert.Equal(t, 2, s.AvailableTasks())

	ran, err = s.ExecuteOne(0)
	require.NoError(t, err)
	assert.False(t, ran, "blocked task is not requeued automatically")

	require.NoError(t, s.ReadyTasks(ids[0]))
	assert.Equal(t, 2, drain(t, s, 0))
	assert.Equal(t, 2, runs)
	assert.Equal(t, []string{"parent"}, r.executed)
	assert.Equal(t, 4, s.AvailableTasks())
}

func TestTaskReceivesIdentityAndContext(t *testing.T) {
	s := newTestScheduler(t, 2, 0, 2, nil)

	type call struct {
		scheduler *Scheduler
		id        TaskID
		channel   uint8
		ctx       any
	}
	var got call
	fn := func(sched *Scheduler, id TaskID, channel uint8, ctx any) TaskResult {
		got = call{sched, id, channel, ctx}
		return Complete
	}
	ids := make([]TaskID, 1)
	require.NoError(t, s.CreateTasks([]TaskFunc{fn}, []any{"payload"}, ids))
	require.NoError(t, s.SetTasksChannel(1, ids[0]))
	assert.Equal(t, uint8(1), s.Channel(ids[0]))
	require.NoError(t, s.ReadyTasks(ids[0]))

	ran, err := s.ExecuteOne(0)
	require.NoError(t, err)
	assert.False(t, ran, "task lives on channel 1")

	ran, err = s.ExecuteOne(1)
	require.NoError(t, err)
	require.True(t, ran)
	assert.Equal(t, call{s, ids[0], 1, "payload"}, got)
}

func TestTaskMayScheduleFollowUpWork(t *testing.T) {
	r := &recorder{}
	s := newTestScheduler(t, 4, 4, 1, r)

	spawn := func(sched *Scheduler, _ TaskID, _ uint8, _ any) TaskResult {
		child := make([]TaskID, 1)
		if err := sched.CreateTasks([]TaskFunc{r.run("child")}, []any{nil}, child); err != nil {
			return Blocked
		}
		if err := sched.ReadyTasks(child...); err != nil {
			return Blocked
		}
		return Complete
	}
	ids := make([]TaskID, 1)
	require.NoError(t, s.CreateTasks([]TaskFunc{spawn}, []any{nil}, ids))
	require.NoError(t, s.ReadyTasks(ids...))

	assert.Equal(t, 2, drain(t, s, 0))
	assert.Equal(t, []string{"child"}, r.executed)
}

func TestStaleTaskIDIsRejected(t *testing.T) {
	asserts := captureAsserts(t)
	r := &recorder{}
	s := newTestScheduler(t, 2, 2, 1, r)

	ids := createNamed(t, s, r, "a")
	require.NoError(t, s.ReadyTasks(ids...))
	require.Equal(t, 1, drain(t, s, 0))

	err := s.ReadyTasks(ids[0])
	require.ErrorIs(t, err, ErrInvariant)
	var inv *InvariantError
	require.True(t, errors.As(err, &inv))
	assert.Equal(t, "task id is current", inv.Expression)
	assert.NotEmpty(t, inv.File)
	assert.Positive(t, inv.Line)
	assert.Equal(t, []string{"task id is current"}, *asserts)

	reused := createNamed(t, s, r, "b")
	assert.Equal(t, ids[0].Index(), reused[0].Index())
	assert.NotEqual(t, ids[0], reused[0])
	assert.Equal(t, StateFree, s.State(ids[0]))
	assert.ErrorIs(t, s.AddDependencies(ids[0]), ErrInvariant)
}

func TestOutOfRangeTaskIDIsRejected(t *testing.T) {
	captureAsserts(t)
	s := newTestScheduler(t, 2, 2, 1, nil)

	assert.ErrorIs(t, s.ReadyTasks(0), ErrInvariant)
	assert.ErrorIs(t, s.ReadyTasks(makeTaskID(3, 0)), ErrInvariant)
	assert.Equal(t, StateFree, s.State(makeTaskID(3, 0)))
}

func TestReadyTwiceIsRejected(t *testing.T) {
	asserts := captureAsserts(t)
	r := &recorder{}
	s := newTestScheduler(t, 2, 0, 1, r)

	ids := createNamed(t, s, r, "a")
	require.NoError(t, s.ReadyTasks(ids...))
	assert.ErrorIs(t, s.ReadyTasks(ids...), ErrInvariant)
	assert.Equal(t, []string{"task is reserved or blocked"}, *asserts)
	assert.Equal(t, 1, s.QueuedTasks(0))
}

func TestReadyWithPendingDependenciesIsRejected(t *testing.T) {
	captureAsserts(t)
	r := &recorder{}
	s := newTestScheduler(t, 4, 4, 1, r)

	ids := createNamed(t, s, r, "T", "D")
	require.NoError(t, s.AddDependencies(ids[0], ids[1]))
	assert.ErrorIs(t, s.ReadyTasks(ids[1], ids[0]), ErrInvariant)
	assert.Zero(t, s.QueuedTasks(0), "batch is validated before anything is queued")
	assert.Equal(t, StateReserved, s.State(ids[1]))
}

func TestLinkingReadyTaskIsRejected(t *testing.T) {
	captureAsserts(t)
	r := &recorder{}
	s := newTestScheduler(t, 4, 4, 2, r)

	ids := createNamed(t, s, r, "T", "D")
	require.NoError(t, s.ReadyTasks(ids[1]))

	assert.ErrorIs(t, s.AddDependencies(ids[0], ids[1]), ErrInvariant)
	assert.ErrorIs(t, s.AddDependencies(ids[1], ids[0]), ErrInvariant)
	assert.ErrorIs(t, s.AddDependencies(ids[0], ids[0]), ErrInvariant)
	assert.ErrorIs(t, s.SetTasksChannel(1, ids[1]), ErrInvariant)
	assert.ErrorIs(t, s.SetTasksChannel(2, ids[0]), ErrInvariant)
	assert.Equal(t, 4, s.AvailableDependencies())
}

func TestExecuteOneRejectsUnknownChannel(t *testing.T) {
	captureAsserts(t)
	s := newTestScheduler(t, 2, 0, 1, nil)
	ran, err := s.ExecuteOne(1)
	assert.False(t, ran)
	assert.ErrorIs(t, err, ErrInvariant)
}

func TestInvalidTaskResultIsReported(t *testing.T) {
	captureAsserts(t)
	s := newTestScheduler(t, 2, 0, 1, nil)

	bad := func(*Scheduler, TaskID, uint8, any) TaskResult { return TaskResult(9) }
	ids := make([]TaskID, 1)
	require.NoError(t, s.CreateTasks([]TaskFunc{bad}, []any{nil}, ids))
	require.NoError(t, s.ReadyTasks(ids...))

	ran, err := s.ExecuteOne(0)
	assert.True(t, ran)
	assert.ErrorIs(t, err, ErrInvariant)
	assert.Equal(t, StateBlocked, s.State(ids[0]))
}

func TestStatsSnapshot(t *testing.T) {
	r := &recorder{}
	s := newTestScheduler(t, 6, 4, 2, r)

	ids := createNamed(t, s, r, "a", "b", "c")
	require.NoError(t, s.AddDependencies(ids[0], ids[1]))
	require.NoError(t, s.SetTasksChannel(1, ids[2]))
	require.NoError(t, s.ReadyTasks(ids[1], ids[2]))

	st := s.Stats()
	assert.Equal(t, uint32(6), st.MaxTasks)
	assert.Equal(t, uint32(4), st.MaxDependencies)
	assert.Equal(t, 3, st.AvailableTasks)
	assert.Equal(t, 3, st.AvailableDependencies)
	assert.Equal(t, []int{1, 1}, st.Queued)
}

func TestReadyNotifierFunc(t *testing.T) {
	var total uint32
	s := newTestScheduler(t, 4, 0, 1, ReadyNotifierFunc(func(count uint32) { total += count }))

	ids := make([]TaskID, 2)
	noop := func(*Scheduler, TaskID, uint8, any) TaskResult { return Complete }
	require.NoError(t, s.CreateTasks([]TaskFunc{noop, noop}, []any{nil, nil}, ids))
	require.NoError(t, s.ReadyTasks(ids...))
	assert.Equal(t, uint32(2), total)
}
