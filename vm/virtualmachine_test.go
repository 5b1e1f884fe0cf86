package vm

import (
	"runtime"
	"sync"
	"testing"
	"unsafe"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fmstephe/gc-core/internal/header"
	"github.com/fmstephe/gc-core/internal/memblock"
	"github.com/fmstephe/gc-core/internal/reftable"
)

type demoValue struct {
	N int
}

func (demoValue) Trace(_ header.TraceContext) {}

func newTestVM(t *testing.T, opts ...Option) *VirtualMachine {
	t.Helper()
	opts = append([]Option{WithBlockAllocator(memblock.SystemAllocator{})}, opts...)
	machine, err := New(opts...)
	require.NoError(t, err)
	t.Cleanup(func() { require.NoError(t, machine.Destroy()) })
	return machine
}

func TestMakeAllocatorAndAllocateRoundTrip(t *testing.T) {
	machine := newTestVM(t)

	ta, err := machine.MakeAllocator()
	require.NoError(t, err)

	h, ok := Allocate[demoValue](machine, ta, demoValue{N: 9})
	require.True(t, ok)
	assert.Equal(t, 9, h.Direct().N)
}

func TestEachThreadGetsADistinctThreadID(t *testing.T) {
	machine := newTestVM(t)

	ta1, err := machine.MakeAllocator()
	require.NoError(t, err)
	ta2, err := machine.MakeAllocator()
	require.NoError(t, err)

	assert.NotEqual(t, ta1.ThreadID(), ta2.ThreadID())
}

// TestThinLockInflatesToMonitorAcrossThreadAllocators mirrors spec
// section 8's scenario 4: a second thread contending on an
// already-thin-locked object observes and drives the lock through
// unlocked -> locked(T1) -> inflating -> monitor -> monitor(T2).
func TestThinLockInflatesToMonitorAcrossThreadAllocators(t *testing.T) {
	machine := newTestVM(t)

	ta1, err := machine.MakeAllocator()
	require.NoError(t, err)
	ta2, err := machine.MakeAllocator()
	require.NoError(t, err)

	h, ok := Allocate[demoValue](machine, ta1, demoValue{N: 1})
	require.True(t, ok)
	direct := unsafe.Pointer(h.Direct())

	require.NoError(t, ta1.Lock(direct))

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		require.NoError(t, ta2.Lock(direct))
		require.NoError(t, ta2.Unlock(direct))
	}()

	// Wait for ta2 to inflate the thin lock: low two bits 0b10 = monitor.
	for header.MarkWord(direct).Bits().Load()&0b11 != 0b10 {
		runtime.Gosched()
	}

	require.NoError(t, ta1.Unlock(direct))
	wg.Wait()
	assert.Equal(t, uint64(0b10), header.MarkWord(direct).Bits().Load()&0b11)
}

// TestTLABExhaustionStillAllocatesAfterAFreshTLAB mirrors spec section
// 8's scenario 6: a tiny slab exhausts almost immediately, and the VM
// transparently supplies a fresh TLAB so allocation still succeeds.
func TestTLABExhaustionStillAllocatesAfterAFreshTLAB(t *testing.T) {
	machine := newTestVM(t, WithSlabSize(64))

	ta, err := machine.MakeAllocator()
	require.NoError(t, err)

	var lastHandle interface{ IsNil() bool }
	for i := 0; i < 64; i++ {
		h, ok := Allocate[demoValue](machine, ta, demoValue{N: i})
		require.True(t, ok)
		lastHandle = h
	}
	assert.False(t, lastHandle.IsNil())
}

// TestHandlesSurviveASafepointRoundTrip mirrors spec section 8's scenario
// 1: ten objects are allocated, every mutator is brought to a safepoint
// and released again, and every handle taken before the round trip still
// resolves to its original value afterwards.
func TestHandlesSurviveASafepointRoundTrip(t *testing.T) {
	machine := newTestVM(t)

	ta, err := machine.MakeAllocator()
	require.NoError(t, err)

	handles := make([]reftable.Handle[demoValue], 0, 10)
	for i := 0; i < 10; i++ {
		h, ok := Allocate[demoValue](machine, ta, demoValue{N: i})
		require.True(t, ok)
		handles = append(handles, h)
	}

	guards := machine.CloseAllSafepoints()
	ReleaseSafepoints(guards)

	for i, h := range handles {
		require.False(t, h.IsNil())
		assert.Equal(t, i, h.Direct().N)
	}
}

func TestCloseAllSafepointsWaitsForActiveAllocator(t *testing.T) {
	machine := newTestVM(t)

	ta, err := machine.MakeAllocator()
	require.NoError(t, err)

	guard := ta.AccessCounter().IncrementOrSavepoint()

	closed := make(chan struct{})
	go func() {
		guards := machine.CloseAllSafepoints()
		close(closed)
		ReleaseSafepoints(guards)
	}()

	select {
	case <-closed:
		t.Fatal("safepoint closed while a mutator guard was still held")
	default:
	}

	guard.Release()
	<-closed
}
