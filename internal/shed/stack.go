package shed

import "sync/atomic"

// indexStack is an intrusive Treiber stack of 1-based slot indexes.
//
// head packs the index of the top entry (low bits) with a generation stamp
// (high bits). links[i-1] holds the index of the entry below slot i; zero
// terminates the chain. Every push installs a fresh stamp, so a CAS against a
// head that was popped and pushed back in between fails.
type indexStack struct {
	head  *uint32
	links []uint32
}

// pop removes the top entry and returns its index, or 0 when empty.
func (s indexStack) pop() uint32 {
	for {
		current := atomic.LoadUint32(s.head)
		index := current & indexMask
		if index == 0 {
			return 0
		}
		next := atomic.LoadUint32(&s.links[index-1])
		if atomic.CompareAndSwapUint32(s.head, current, current&generationMask|next) {
			return index
		}
	}
}

// pushChain pushes the pre-linked chain first..last in a single CAS. The
// caller must already have linked first through to last via links.
func (s indexStack) pushChain(generation, first, last uint32) {
	for {
		current := atomic.LoadUint32(s.head)
		atomic.StoreUint32(&s.links[last-1], current&indexMask)
		if atomic.CompareAndSwapUint32(s.head, current, generation|first) {
			return
		}
	}
}

func (s indexStack) push(generation, index uint32) {
	s.pushChain(generation, index, index)
}

// link makes next follow index inside a chain that is still private to the
// caller.
func (s indexStack) link(index, next uint32) {
	atomic.StoreUint32(&s.links[index-1], next)
}

// len walks the stack. Only meaningful while no other goroutine mutates it.
func (s indexStack) len() int {
	n := 0
	for index := atomic.LoadUint32(s.head) & indexMask; index != 0; index = atomic.LoadUint32(&s.links[index-1]) {
		n++
		if n > len(s.links) {
			// A cycle here means the links were corrupted by a concurrent writer.
			return -1
		}
	}
	return n
}

// stampSource hands out head generation stamps from a shared counter.
type stampSource struct {
	counter *uint32
}

func (g stampSource) next() uint32 {
	return (atomic.AddUint32(g.counter, 1) << generationShift) & generationMask
}

// indexPool is a free list of slots 1..capacity.
type indexPool struct {
	stack  indexStack
	stamps stampSource
}

// reset threads every slot onto the free list: slot 1 on top, slot capacity
// at the bottom.
func (p indexPool) reset(capacity uint32) {
	if capacity == 0 {
		atomic.StoreUint32(p.stack.head, 0)
		return
	}
	for i := uint32(0); i < capacity-1; i++ {
		atomic.StoreUint32(&p.stack.links[i], i+2)
	}
	atomic.StoreUint32(&p.stack.links[capacity-1], 0)
	atomic.StoreUint32(p.stack.head, 1)
}

func (p indexPool) alloc() uint32 {
	return p.stack.pop()
}

func (p indexPool) free(index uint32) {
	p.stack.push(p.stamps.next(), index)
}

func (p indexPool) available() int {
	return p.stack.len()
}
