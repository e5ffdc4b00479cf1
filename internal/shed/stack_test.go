package shed

import (
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestPool(capacity uint32) indexPool {
	var head, stamp uint32
	p := indexPool{
		stack:  indexStack{head: &head, links: make([]uint32, capacity)},
		stamps: stampSource{counter: &stamp},
	}
	p.reset(capacity)
	return p
}

func TestIndexPoolHandsOutAscendingSlots(t *testing.T) {
	p := newTestPool(4)
	assert.Equal(t, 4, p.available())

	for want := uint32(1); want <= 4; want++ {
		assert.Equal(t, want, p.alloc())
	}
	assert.Equal(t, uint32(0), p.alloc(), "exhausted pool returns the none index")
	assert.Equal(t, 0, p.available())
}

func TestIndexPoolIsLIFO(t *testing.T) {
	p := newTestPool(3)
	a := p.alloc()
	b := p.alloc()
	p.free(a)
	p.free(b)
	assert.Equal(t, b, p.alloc())
	assert.Equal(t, a, p.alloc())
}

func TestIndexPoolZeroCapacity(t *testing.T) {
	var head, stamp uint32
	p := indexPool{stack: indexStack{head: &head}, stamps: stampSource{counter: &stamp}}
	p.reset(0)
	assert.Equal(t, uint32(0), p.alloc())
	assert.Equal(t, 0, p.available())
}

func TestIndexPoolFreeChangesHeadStamp(t *testing.T) {
	p := newTestPool(2)
	before := atomic.LoadUint32(p.stack.head)
	index := p.alloc()
	p.free(index)
	after := atomic.LoadUint32(p.stack.head)

	assert.Equal(t, before&indexMask, after&indexMask, "same slot back on top")
	assert.NotEqual(t, before, after, "head must carry a new stamp")
}

func TestIndexStackPushChain(t *testing.T) {
	var head, stamp uint32
	s := indexStack{head: &head, links: make([]uint32, 5)}
	stamps := stampSource{counter: &stamp}

	s.push(stamps.next(), 5)
	s.link(1, 2)
	s.link(2, 3)
	s.pushChain(stamps.next(), 1, 3)

	assert.Equal(t, 4, s.len())
	for _, want := range []uint32{1, 2, 3, 5} {
		assert.Equal(t, want, s.pop())
	}
	assert.Equal(t, uint32(0), s.pop())
}

func TestIndexPoolConcurrentOwnership(t *testing.T) {
	const (
		capacity   = 64
		goroutines = 8
		rounds     = 5000
	)
	p := newTestPool(capacity)
	owned := make([]atomic.Bool, capacity)
	var duplicates atomic.Int32

	var wg sync.WaitGroup
	for g := 0; g < goroutines; g++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			held := make([]uint32, 0, 4)
			for i := 0; i < rounds; i++ {
				if index := p.alloc(); index != 0 {
					if !owned[index-1].CompareAndSwap(false, true) {
						duplicates.Add(1)
					}
					held = append(held, index)
				}
				if len(held) == cap(held) || i%3 == 0 {
					for _, index := range held {
						owned[index-1].Store(false)
						p.free(index)
					}
					held = held[:0]
				}
			}
			for _, index := range held {
				owned[index-1].Store(false)
				p.free(index)
			}
		}()
	}
	wg.Wait()

	require.Zero(t, duplicates.Load(), "a slot was handed out twice")
	assert.Equal(t, capacity, p.available())
}
