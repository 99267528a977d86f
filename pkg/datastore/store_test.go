package datastore

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAcquireReleaseSwap(t *testing.T) {
	first := &Entry{}
	second := &Entry{}
	s := New(first)

	// A reader sees the initial generation.
	e := s.Acquire()
	assert.Same(t, first, e)

	// The swap must wait for the reader to finish.
	swapped := make(chan *Entry)
	go func() { swapped <- s.Swap(second) }()

	select {
	case <-swapped:
		t.Fatal("swap completed with a query in flight")
	case <-time.After(20 * time.Millisecond):
	}

	s.Release()
	old := <-swapped
	assert.Same(t, first, old)
	assert.Same(t, second, s.Acquire())
	s.Release()
}

func TestReadersDoNotBlockEachOther(t *testing.T) {
	s := New(&Entry{})

	const readers = 32
	var wg sync.WaitGroup
	var concurrent, peak atomic.Int32

	for i := 0; i < readers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.Acquire()
			cur := concurrent.Add(1)
			for {
				p := peak.Load()
				if cur <= p || peak.CompareAndSwap(p, cur) {
					break
				}
			}
			time.Sleep(5 * time.Millisecond)
			concurrent.Add(-1)
			s.Release()
		}()
	}
	wg.Wait()

	assert.Greater(t, peak.Load(), int32(1), "readers must overlap")
}

func TestSwapUnderLoad(t *testing.T) {
	gen1 := &Entry{}
	gen2 := &Entry{}
	s := New(gen1)

	stop := make(chan struct{})
	var wg sync.WaitGroup
	var sawNil atomic.Bool

	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-stop:
					return
				default:
				}
				e := s.Acquire()
				if e == nil {
					sawNil.Store(true)
				}
				s.Release()
			}
		}()
	}

	old := s.Swap(gen2)
	require.Same(t, gen1, old)
	close(stop)
	wg.Wait()

	assert.False(t, sawNil.Load(), "readers always observe a generation")
	assert.Same(t, gen2, s.Acquire())
	s.Release()
}
