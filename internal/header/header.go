// Package header implements the fixed-layout prefix ("annotation")
// stored immediately before every object's data: its allocation Layout,
// its MarkWord, and a pointer to its per-type ObjectVTable. Given only a
// direct pointer to an object's data, this package recovers all of that
// type-erased information.
package header

import (
	"fmt"
	"reflect"
	"sync"
	"unsafe"

	"github.com/fmstephe/gc-core/internal/heapregion"
	"github.com/fmstephe/gc-core/internal/markword"
)

// TraceContext is opaque from the core's perspective; the concrete
// collector defines and passes its own.
type TraceContext = any

// Trace must be implemented by every type allocated into the heap. For
// every handle a value transitively owns, Trace must invoke ctx.Visit in
// whatever way the concrete TraceContext defines.
type Trace interface {
	Trace(ctx TraceContext)
}

// Layout is the full allocation layout recorded in a Header: the size and
// alignment of the entire annotated allocation (header + data), not just
// the data.
type Layout struct {
	Size  uint64
	Align uint64
}

// VTable is generated once per concrete type T and drop setting, and is
// shared by every object of that type allocated with that setting. It is a process-wide singleton (see VTableFor), so
// a raw *VTable stored in off-heap memory is always safe to dereference.
type VTable struct {
	typeName string
	trace    func(direct unsafe.Pointer, ctx TraceContext)
	drop     func(direct unsafe.Pointer) // nil unless drop-heap is enabled
}

// Header is the fixed-size prefix stored immediately before every
// object's data. Its size must not exceed MinAlignment-friendly packing:
// every field is pointer/uint64 sized so unsafe.Sizeof(Header{}) is
// itself a multiple of heapregion.MinAlignment, which is what lets
// FromDirect below recover the header with a single constant subtraction.
type Header struct {
	Layout Layout
	Mark   markword.Word
	VTable *VTable
}

// HeaderSize is the fixed offset from an object's header to its data,
// valid for any T with alignment <= heapregion.MinAlignment (checked in
// VTableFor).
var HeaderSize = unsafe.Sizeof(Header{})

func init() {
	if HeaderSize%heapregion.MinAlignment != 0 {
		panic(fmt.Errorf("header: Header size %d is not a multiple of the region minimum alignment %d", HeaderSize, heapregion.MinAlignment))
	}
}

// annotated is the concrete, per-T layout: header immediately followed by
// data. Go lays this out with zero padding between the two fields
// whenever alignof(T) <= alignof(Header), which VTableFor enforces.
type annotated[T any] struct {
	hdr  Header
	data T
}

// vtableKey identifies one VTable singleton: a type plus whether its
// vtable carries a drop function.
type vtableKey struct {
	rt   reflect.Type
	drop bool
}

var vtableRegistry sync.Map // vtableKey -> *VTable

// VTableFor returns the process-wide VTable singleton for T and
// dropEnabled, creating it on first use. dropEnabled selects whether the vtable carries a drop
// function (spec section 6, "drop_heap" option); T is required to be
// trivially destructible (no finalization logic) when it is false, which
// this core does not attempt to enforce beyond documenting it -- Go has
// no destructors to accidentally skip.
func VTableFor[T Trace](dropEnabled bool) *VTable {
	var zero T
	if align := unsafe.Alignof(annotated[T]{}); align > heapregion.MinAlignment {
		panic(fmt.Errorf("header: type %T requires alignment %d, which exceeds the heap's minimum alignment %d", zero, align, heapregion.MinAlignment))
	}

	rt := reflect.TypeOf(zero)
	key := vtableKey{rt: rt, drop: dropEnabled}
	if v, ok := vtableRegistry.Load(key); ok {
		return v.(*VTable)
	}

	vt := &VTable{
		typeName: rt.String(),
		trace: func(direct unsafe.Pointer, ctx TraceContext) {
			(*T)(direct).Trace(ctx)
		},
	}
	if dropEnabled {
		vt.drop = func(direct unsafe.Pointer) {
			*(*T)(direct) = zero
		}
	}

	actual, _ := vtableRegistry.LoadOrStore(key, vt)
	return actual.(*VTable)
}

// Alloc bump-allocates an annotated[T] from region, installs its header
// (layout, default mark word, vtable), and returns a pointer to the data
// field. Returns (nil, false) if region has no room.
func Alloc[T Trace](region *heapregion.Region, vtable *VTable, markDefault uint64) (*T, bool) {
	var zero annotated[T]
	size := unsafe.Sizeof(zero)
	align := unsafe.Alignof(zero)

	raw, ok := region.AllocLayout(size, align)
	if !ok {
		return nil, false
	}

	obj := (*annotated[T])(raw)
	obj.hdr.Layout = Layout{Size: uint64(size), Align: uint64(align)}
	obj.hdr.Mark = markword.New(markDefault)
	obj.hdr.VTable = vtable

	return &obj.data, true
}

// FromDirect recovers the Header for an object given only a direct
// pointer to its data.
func FromDirect(direct unsafe.Pointer) *Header {
	return (*Header)(unsafe.Pointer(uintptr(direct) - HeaderSize))
}

// GetLayout returns the full allocation layout for the object at direct.
func GetLayout(direct unsafe.Pointer) Layout {
	return FromDirect(direct).Layout
}

// TraceObject dispatches to the object's vtable trace function.
func TraceObject(direct unsafe.Pointer, ctx TraceContext) {
	h := FromDirect(direct)
	h.VTable.trace(direct, ctx)
}

// DropObject dispatches to the object's vtable drop function, if any.
// Does nothing when the heap was configured without drop support.
func DropObject(direct unsafe.Pointer) {
	h := FromDirect(direct)
	if h.VTable.drop != nil {
		h.VTable.drop(direct)
	}
}

// MarkWord returns a pointer to the mark word for the object at direct,
// for a collector to mark/unmark regardless of which MarkWord variant the
// VM is configured with.
func MarkWord(direct unsafe.Pointer) *markword.Word {
	return &FromDirect(direct).Mark
}
