package shed

import (
	"fmt"
	"sync/atomic"
)

// TaskFunc is the body of a task. It runs on the goroutine that called
// ExecuteOne and receives the scheduler, its own id, the channel it was
// dequeued from and the context value given to CreateTasks. It may create,
// link and ready other tasks, but must not ready or link itself.
type TaskFunc func(s *Scheduler, id TaskID, channel uint8, ctx any) TaskResult

type taskBody struct {
	fn  TaskFunc
	ctx any
}

// Scheduler is a handle onto scheduling state stored in a caller-owned
// memory block. All methods are safe for concurrent use, subject to the
// per-task ordering rules documented on each method.
type Scheduler struct {
	mem   []byte
	words []uint32

	header     []uint32
	tasks      []uint32
	edges      []uint32
	readyHeads []uint32
	readyLinks []uint32

	taskPool    indexPool
	edgePool    indexPool
	readyStamps stampSource

	// Function values and contexts hold Go pointers and cannot live in the
	// untyped block, so they sit beside it, one entry per task slot.
	bodies []taskBody

	notifier        ReadyNotifier
	channelNotifier ChannelNotifier

	maxTasks        uint32
	maxDependencies uint32
	channels        uint8
}

func validateCapacity(maxTasks, maxDependencies uint32, channelCount uint8) error {
	switch {
	case maxTasks == 0:
		return fmt.Errorf("%w: max tasks must be at least 1", ErrInvalidConfig)
	case maxTasks > MaxCapacity:
		return fmt.Errorf("%w: max tasks %d exceeds %d", ErrInvalidConfig, maxTasks, MaxCapacity)
	case maxDependencies > MaxCapacity:
		return fmt.Errorf("%w: max dependencies %d exceeds %d", ErrInvalidConfig, maxDependencies, MaxCapacity)
	case channelCount == 0:
		return fmt.Errorf("%w: channel count must be at least 1", ErrInvalidConfig)
	}
	return nil
}

// bind builds a handle whose views point into mem. It does not touch the
// contents of mem.
func bind(mem []byte, maxTasks, maxDependencies uint32, channelCount uint8) (*Scheduler, error) {
	l := computeLayout(maxTasks, maxDependencies, channelCount)
	words, err := wordView(mem, l.words)
	if err != nil {
		return nil, err
	}

	s := &Scheduler{
		mem:             mem[:l.words*wordSize],
		words:           words,
		header:          words[:headerWords],
		tasks:           words[l.tasks : l.tasks+int(maxTasks)*taskWords],
		edges:           words[l.edges : l.edges+int(maxDependencies)*edgeWords],
		readyHeads:      words[l.readyHeads : l.readyHeads+int(channelCount)],
		readyLinks:      words[l.readyLinks : l.readyLinks+int(maxTasks)],
		maxTasks:        maxTasks,
		maxDependencies: maxDependencies,
		channels:        channelCount,
		bodies:          make([]taskBody, maxTasks),
	}
	s.taskPool = indexPool{
		stack:  indexStack{head: &s.header[hdrTaskPoolHead], links: words[l.taskLinks : l.taskLinks+int(maxTasks)]},
		stamps: stampSource{counter: &s.header[hdrTaskPoolStamp]},
	}
	s.edgePool = indexPool{
		stack:  indexStack{head: &s.header[hdrDependencyPoolHead], links: words[l.edgeLinks : l.edgeLinks+int(maxDependencies)]},
		stamps: stampSource{counter: &s.header[hdrDependencyPoolStamp]},
	}
	s.readyStamps = stampSource{counter: &s.header[hdrReadyStamp]}
	return s, nil
}

func (s *Scheduler) setNotifier(notifier ReadyNotifier) {
	if notifier == nil {
		notifier = nopNotifier{}
	}
	s.notifier = notifier
	s.channelNotifier, _ = notifier.(ChannelNotifier)
}

// New initializes a scheduler inside mem, which must be 8-byte aligned and
// at least RequiredSize(maxTasks, maxDependencies, channelCount) bytes long.
// The block is owned by the returned Scheduler until the caller stops using
// it; the caller keeps it alive. notifier may be nil.
func New(mem []byte, maxTasks, maxDependencies uint32, channelCount uint8, notifier ReadyNotifier) (*Scheduler, error) {
	if err := validateCapacity(maxTasks, maxDependencies, channelCount); err != nil {
		return nil, err
	}
	s, err := bind(mem, maxTasks, maxDependencies, channelCount)
	if err != nil {
		return nil, err
	}

	clear(s.words)
	s.header[hdrTaskGeneration] = 1
	s.header[hdrMaxTasks] = maxTasks
	s.header[hdrMaxDependencies] = maxDependencies
	s.header[hdrChannels] = uint32(channelCount)
	s.taskPool.reset(maxTasks)
	s.edgePool.reset(maxDependencies)
	s.setNotifier(notifier)
	return s, nil
}

// Clone copies the state of original into mem and returns an independent
// scheduler with the same capacities, tasks and notifier. No goroutine may
// mutate original while Clone runs.
func Clone(mem []byte, original *Scheduler) (*Scheduler, error) {
	if original == nil {
		return nil, fmt.Errorf("%w: nil scheduler", ErrInvalidConfig)
	}
	s, err := bind(mem, original.maxTasks, original.maxDependencies, original.channels)
	if err != nil {
		return nil, err
	}
	copy(s.mem, original.mem)
	copy(s.bodies, original.bodies)
	s.setNotifier(original.notifier)
	return s, nil
}

func (s *Scheduler) taskWord(index uint32, field int) *uint32 {
	return &s.tasks[int(index-1)*taskWords+field]
}

func (s *Scheduler) edgeWord(edge uint32, field int) *uint32 {
	return &s.edges[int(edge-1)*edgeWords+field]
}

func (s *Scheduler) state(index uint32) TaskState {
	return TaskState(atomic.LoadUint32(s.taskWord(index, taskState)))
}

func (s *Scheduler) transition(index uint32, from, to TaskState) bool {
	return atomic.CompareAndSwapUint32(s.taskWord(index, taskState), uint32(from), uint32(to))
}

func (s *Scheduler) readyQueue(channel uint8) indexStack {
	return indexStack{head: &s.readyHeads[channel], links: s.readyLinks}
}

// lookup maps a TaskID to its slot, rejecting stale or forged ids.
func (s *Scheduler) lookup(id TaskID) (uint32, error) {
	index := id.Index()
	if err := check(index != 0 && index <= s.maxTasks, "task index in range"); err != nil {
		return 0, err
	}
	if err := check(atomic.LoadUint32(s.taskWord(index, taskID)) == uint32(id), "task id is current"); err != nil {
		return 0, err
	}
	return index, nil
}

// lookupEditable is lookup plus a check that the task is Reserved or Blocked.
func (s *Scheduler) lookupEditable(id TaskID) (uint32, error) {
	index, err := s.lookup(id)
	if err != nil {
		return 0, err
	}
	if err := check(s.state(index).editable(), "task is reserved or blocked"); err != nil {
		return 0, err
	}
	return index, nil
}

// CreateTasks reserves len(fns) task slots, writing their ids to out.
// contexts must be as long as fns and out at least as long. All ids of one
// batch share a generation. When the pool cannot satisfy the whole batch,
// every slot taken so far is returned and ErrTaskCapacity is reported.
func (s *Scheduler) CreateTasks(fns []TaskFunc, contexts []any, out []TaskID) error {
	if err := check(len(fns) > 0, "len(fns) > 0"); err != nil {
		return err
	}
	if err := check(len(contexts) == len(fns) && len(out) >= len(fns), "len(contexts) == len(fns) && len(out) >= len(fns)"); err != nil {
		return err
	}
	for _, fn := range fns {
		if err := check(fn != nil, "fn != nil"); err != nil {
			return err
		}
	}

	generation := atomic.AddUint32(&s.header[hdrTaskGeneration], 1)
	for i, fn := range fns {
		index := s.taskPool.alloc()
		if index == 0 {
			s.release(out[:i])
			return ErrTaskCapacity
		}
		id := makeTaskID(index, generation)
		s.bodies[index-1] = taskBody{fn: fn, ctx: contexts[i]}
		atomic.StoreUint32(s.taskWord(index, taskPending), 0)
		atomic.StoreUint32(s.taskWord(index, taskChannel), 0)
		atomic.StoreUint32(s.taskWord(index, taskFirstDependency), 0)
		atomic.StoreUint32(s.taskWord(index, taskState), uint32(StateReserved))
		atomic.StoreUint32(s.taskWord(index, taskID), uint32(id))
		out[i] = id
	}
	return nil
}

// release undoes a partial CreateTasks batch in reverse order so the free
// list ends up as it was.
func (s *Scheduler) release(ids []TaskID) {
	for i := len(ids) - 1; i >= 0; i-- {
		index := ids[i].Index()
		atomic.StoreUint32(s.taskWord(index, taskID), 0)
		atomic.StoreUint32(s.taskWord(index, taskState), uint32(StateFree))
		s.bodies[index-1] = taskBody{}
		s.taskPool.free(index)
		ids[i] = 0
	}
}

// SetTasksChannel moves the given tasks to channel. Tasks start on channel
// 0 and may only be moved while Reserved or Blocked.
func (s *Scheduler) SetTasksChannel(channel uint8, ids ...TaskID) error {
	if err := check(channel < s.channels, "channel < channel count"); err != nil {
		return err
	}
	for _, id := range ids {
		if _, err := s.lookupEditable(id); err != nil {
			return err
		}
	}
	for _, id := range ids {
		atomic.StoreUint32(s.taskWord(id.Index(), taskChannel), uint32(channel))
	}
	return nil
}

// AddDependencies makes task wait for every task in dependencies. Each
// dependency gets an edge pointing back at task, and task's pending count
// grows by len(dependencies). All tasks involved must be Reserved or Blocked,
// and no other goroutine may link the same dependency tasks concurrently.
// When the dependency pool runs dry, every edge attached by this call is
// removed and ErrDependencyCapacity is reported.
func (s *Scheduler) AddDependencies(task TaskID, dependencies ...TaskID) error {
	parent, err := s.lookupEditable(task)
	if err != nil {
		return err
	}
	if len(dependencies) == 0 {
		return nil
	}
	for _, dependency := range dependencies {
		index, err := s.lookupEditable(dependency)
		if err != nil {
			return err
		}
		if err := check(index != parent, "task does not depend on itself"); err != nil {
			return err
		}
	}

	for i, dependency := range dependencies {
		child := dependency.Index()
		edge := s.edgePool.alloc()
		if edge == 0 {
			s.detach(dependencies[:i])
			return ErrDependencyCapacity
		}
		first := s.taskWord(child, taskFirstDependency)
		atomic.StoreUint32(s.edgeWord(edge, edgeParent), parent)
		atomic.StoreUint32(s.edgeWord(edge, edgeNext), atomic.LoadUint32(first))
		atomic.StoreUint32(first, edge)
	}
	atomic.AddUint32(s.taskWord(parent, taskPending), uint32(len(dependencies)))
	return nil
}

// detach pops the edges a failed AddDependencies pushed, newest first.
func (s *Scheduler) detach(dependencies []TaskID) {
	for i := len(dependencies) - 1; i >= 0; i-- {
		first := s.taskWord(dependencies[i].Index(), taskFirstDependency)
		edge := atomic.LoadUint32(first)
		atomic.StoreUint32(first, atomic.LoadUint32(s.edgeWord(edge, edgeNext)))
		s.edgePool.free(edge)
	}
}

// readyBatch gathers consecutive same-channel tasks into one chain so each
// run costs a single CAS on the channel's queue head.
type readyBatch struct {
	s       *Scheduler
	head    uint32
	tail    uint32
	channel uint8
	count   uint32
	total   uint32
}

func (b *readyBatch) add(index uint32, channel uint8) {
	if b.count > 0 && channel == b.channel {
		b.s.readyQueue(channel).link(b.tail, index)
		b.tail = index
		b.count++
		return
	}
	b.flush()
	b.head, b.tail, b.channel, b.count = index, index, channel, 1
}

func (b *readyBatch) flush() {
	if b.count == 0 {
		return
	}
	b.s.readyQueue(b.channel).pushChain(b.s.readyStamps.next(), b.head, b.tail)
	if b.s.channelNotifier != nil {
		b.s.channelNotifier.SignalChannelReady(b.channel, b.count)
	}
	b.total += b.count
	b.count = 0
}

func (b *readyBatch) finish() {
	b.flush()
	if b.total > 0 {
		b.s.notifier.SignalReady(b.total)
	}
}

// ReadyTasks queues the given tasks on their channels. Every task must be
// Reserved or Blocked with no outstanding dependencies. Runs of consecutive
// same-channel ids are pushed as one chain, and the notifier is signalled
// once with the total.
func (s *Scheduler) ReadyTasks(ids ...TaskID) error {
	for _, id := range ids {
		index, err := s.lookupEditable(id)
		if err != nil {
			return err
		}
		if err := check(atomic.LoadUint32(s.taskWord(index, taskPending)) == 0, "task has no pending dependencies"); err != nil {
			return err
		}
	}

	batch := readyBatch{s: s}
	var failure error
	for _, id := range ids {
		index := id.Index()
		if !s.transition(index, StateReserved, StateReady) && !s.transition(index, StateBlocked, StateReady) {
			failure = check(false, "task readied exactly once")
			break
		}
		batch.add(index, uint8(atomic.LoadUint32(s.taskWord(index, taskChannel))))
	}
	batch.finish()
	return failure
}

// ExecuteOne dequeues one ready task from channel and runs it on the calling
// goroutine. It reports false when the queue was empty. A Complete task
// readies every dependent whose last dependency it was and then releases its
// slot and edges; a Blocked task stays allocated until readied again.
func (s *Scheduler) ExecuteOne(channel uint8) (bool, error) {
	if err := check(channel < s.channels, "channel < channel count"); err != nil {
		return false, err
	}
	index := s.readyQueue(channel).pop()
	if index == 0 {
		return false, nil
	}
	if err := check(s.transition(index, StateReady, StateExecuting), "dequeued task is ready"); err != nil {
		return true, err
	}

	id := TaskID(atomic.LoadUint32(s.taskWord(index, taskID)))
	body := s.bodies[index-1]
	result := body.fn(s, id, channel, body.ctx)

	switch result {
	case Complete:
		err := s.resolve(index)
		s.free(index)
		return true, err
	case Blocked:
		atomic.StoreUint32(s.taskWord(index, taskState), uint32(StateBlocked))
		return true, nil
	default:
		atomic.StoreUint32(s.taskWord(index, taskState), uint32(StateBlocked))
		return true, check(false, "task result is Complete or Blocked")
	}
}

// resolve walks the edges of a completed task, decrementing each parent's
// pending count and readying the parents that reach zero.
func (s *Scheduler) resolve(index uint32) error {
	edge := atomic.LoadUint32(s.taskWord(index, taskFirstDependency))
	if edge == 0 {
		return nil
	}

	batch := readyBatch{s: s}
	var failure error
	for ; edge != 0; edge = atomic.LoadUint32(s.edgeWord(edge, edgeNext)) {
		parent := atomic.LoadUint32(s.edgeWord(edge, edgeParent))
		remaining := atomic.AddUint32(s.taskWord(parent, taskPending), ^uint32(0))
		if err := check(int32(remaining) >= 0, "pending dependency count >= 0"); err != nil {
			failure = err
			continue
		}
		if remaining != 0 {
			continue
		}
		if !s.transition(parent, StateReserved, StateReady) && !s.transition(parent, StateBlocked, StateReady) {
			failure = check(false, "resolved dependent is reserved or blocked")
			continue
		}
		batch.add(parent, uint8(atomic.LoadUint32(s.taskWord(parent, taskChannel))))
	}
	batch.finish()
	return failure
}

// free returns a finished task's edges and slot to their pools.
func (s *Scheduler) free(index uint32) {
	first := s.taskWord(index, taskFirstDependency)
	edge := atomic.LoadUint32(first)
	atomic.StoreUint32(first, 0)
	for edge != 0 {
		next := atomic.LoadUint32(s.edgeWord(edge, edgeNext))
		s.edgePool.free(edge)
		edge = next
	}

	s.bodies[index-1] = taskBody{}
	atomic.StoreUint32(s.taskWord(index, taskID), 0)
	atomic.StoreUint32(s.taskWord(index, taskChannel), 0)
	atomic.StoreUint32(s.taskWord(index, taskState), uint32(StateFree))
	s.taskPool.free(index)
}
