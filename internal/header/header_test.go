package header

import (
	"testing"
	"unsafe"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fmstephe/gc-core/internal/heapregion"
	"github.com/fmstephe/gc-core/internal/markword"
	"github.com/fmstephe/gc-core/internal/memblock"
)

type traceCounter struct{}

func (t traceCounter) Trace(ctx TraceContext) {
	counter := ctx.(*int)
	*counter++
}

func newTestRegion(t *testing.T) *heapregion.Region {
	t.Helper()
	b, err := memblock.New(4096, memblock.SystemAllocator{})
	require.NoError(t, err)
	return heapregion.New(b)
}

func TestVTableForIsASingletonPerType(t *testing.T) {
	a := VTableFor[traceCounter](false)
	b := VTableFor[traceCounter](false)
	assert.Same(t, a, b)
}

func TestAllocInstallsHeaderAndReturnsDataPointer(t *testing.T) {
	region := newTestRegion(t)
	vt := VTableFor[traceCounter](false)

	obj, ok := Alloc[traceCounter](region, vt, markword.HotspotDefault)
	require.True(t, ok)
	require.NotNil(t, obj)

	h := FromDirect(unsafe.Pointer(obj))
	assert.Equal(t, vt, h.VTable)
	assert.Equal(t, markword.HotspotDefault, h.Mark.Bits().Load())
}

func TestTraceObjectDispatchesThroughVTable(t *testing.T) {
	region := newTestRegion(t)
	vt := VTableFor[traceCounter](false)

	obj, ok := Alloc[traceCounter](region, vt, markword.HotspotDefault)
	require.True(t, ok)

	visits := 0
	TraceObject(unsafe.Pointer(obj), &visits)
	assert.Equal(t, 1, visits)
}

func TestDropObjectIsNoopWithoutDropHeap(t *testing.T) {
	region := newTestRegion(t)
	vt := VTableFor[traceCounter](false)

	obj, ok := Alloc[traceCounter](region, vt, markword.HotspotDefault)
	require.True(t, ok)

	assert.NotPanics(t, func() { DropObject(unsafe.Pointer(obj)) })
}

func TestAllocReturnsFalseWhenRegionExhausted(t *testing.T) {
	b, err := memblock.New(8, memblock.SystemAllocator{})
	require.NoError(t, err)
	region := heapregion.New(b)
	vt := VTableFor[traceCounter](false)

	_, ok := Alloc[traceCounter](region, vt, markword.HotspotDefault)
	assert.False(t, ok)
}
