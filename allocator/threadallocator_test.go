package allocator

import (
	"testing"
	"unsafe"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fmstephe/gc-core/internal/header"
	"github.com/fmstephe/gc-core/internal/heapregion"
	"github.com/fmstephe/gc-core/internal/markword"
	"github.com/fmstephe/gc-core/internal/memblock"
	"github.com/fmstephe/gc-core/internal/reftable"
	"github.com/fmstephe/gc-core/safepoint"
)

type demoValue struct {
	N int
}

func (demoValue) Trace(_ header.TraceContext) {}

// fixedTLABSource hands out the same pre-built replacement region on every
// request and records that it was asked, so tests can exercise the
// exhaustion retry path deterministically.
type fixedTLABSource struct {
	replacement *heapregion.Region
	used        bool
}

func (f *fixedTLABSource) NewTLAB() (*heapregion.Region, error) {
	f.used = true
	return f.replacement, nil
}

func newTestSetup(t *testing.T, tlabSize uintptr) (*ThreadAllocator, *fixedTLABSource) {
	t.Helper()

	block, err := memblock.New(tlabSize, memblock.SystemAllocator{})
	require.NoError(t, err)
	tlab := heapregion.New(block)

	replacementBlock, err := memblock.New(4096, memblock.SystemAllocator{})
	require.NoError(t, err)
	source := &fixedTLABSource{replacement: heapregion.New(replacementBlock)}

	refTable, err := reftable.New(memblock.SystemAllocator{})
	require.NoError(t, err)

	lockRecord, err := markword.NewLockRecord(0, memblock.SystemAllocator{})
	require.NoError(t, err)

	access := &safepoint.AccessCounter{}
	monitors := markword.NewMonitorRegistry()

	ta := New(1, tlab, source, refTable, lockRecord, monitors, access)
	return ta, source
}

func TestAllocateSucceedsWithRoom(t *testing.T) {
	ta, _ := newTestSetup(t, 4096)
	vt := header.VTableFor[demoValue](false)

	h, ok := Allocate[demoValue](ta, demoValue{N: 7}, vt, markword.HotspotDefault)
	require.True(t, ok)
	assert.Equal(t, 7, h.Direct().N)
}

func TestAllocateRequestsFreshTLABOnExhaustion(t *testing.T) {
	ta, source := newTestSetup(t, 8)
	vt := header.VTableFor[demoValue](false)

	_, ok := Allocate[demoValue](ta, demoValue{N: 1}, vt, markword.HotspotDefault)
	require.True(t, ok)
	assert.True(t, source.used)
}

func TestLockAndUnlockRoundTrip(t *testing.T) {
	ta, _ := newTestSetup(t, 4096)
	vt := header.VTableFor[demoValue](false)

	h, ok := Allocate[demoValue](ta, demoValue{N: 1}, vt, markword.HotspotDefault)
	require.True(t, ok)

	direct := h.Direct()
	require.NoError(t, ta.Lock(unsafe.Pointer(direct)))
	require.NoError(t, ta.Unlock(unsafe.Pointer(direct)))
}
