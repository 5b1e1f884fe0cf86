// Package collector defines the contract between this core and an
// external mark-sweep algorithm (spec section 4.8): root/entry
// enumeration, mark/unmark, and type-erased layout/trace/drop dispatch.
// The concrete worklist algorithm is an external collaborator -- this
// package supplies only the primitives it is built from.
package collector

import (
	"unsafe"

	"github.com/fmstephe/gc-core/internal/header"
	"github.com/fmstephe/gc-core/internal/markword"
)

// VisitHeap is implemented by anything a collector can enumerate direct
// pointers from: a single HeapRegion (TLAB) or the whole reference table.
type VisitHeap interface {
	// IterEntries returns the direct pointer to every live object this
	// source currently holds.
	IterEntries() []unsafe.Pointer
}

// UnmarkHeap clears the mark bit on every entry a VisitHeap exposes. Used
// between collection cycles, or to reset state before a fresh mark phase.
func UnmarkHeap(h VisitHeap, markKind MarkWordKind) {
	for _, entry := range h.IterEntries() {
		Unmark(entry, markKind)
	}
}

// MarkWordKind selects which of the two MarkWord variants (spec section
// 3) this VM's objects carry, and therefore which operations are valid on
// their mark word.
type MarkWordKind int

const (
	// TestMarkWord is a single mark bit, for exercising the core without
	// the full lock state machine.
	TestMarkWord MarkWordKind = iota
	// HotspotMarkWord is the full lock/unlocked/monitor/marked state
	// machine described in spec section 4.5.
	HotspotMarkWord
)

// Mark sets the collector's mark bit/state for the object at direct,
// returning whether it was already marked. For HotspotMarkWord this loses
// the displaced lock state needed to restore it later; a collector
// running over hotspot-locked objects that also need their lock state
// preserved across the mark phase should call Word.HotspotSetMarked
// directly (via header.MarkWord) and hold on to the returned value
// itself, rather than go through this free function.
func Mark(direct unsafe.Pointer, kind MarkWordKind) bool {
	w := header.MarkWord(direct)
	if kind == TestMarkWord {
		return w.TestSetMark()
	}
	wasMarked := w.HotspotIsMarked()
	w.HotspotSetMarked()
	return wasMarked
}

// Unmark clears the collector's mark bit/state for the object at direct,
// restoring it to HotspotDefault (unlocked) for the hotspot variant. This
// is only correct when nothing held a lock or monitor on direct before
// the mark phase began -- see the caveat on Mark.
func Unmark(direct unsafe.Pointer, kind MarkWordKind) {
	w := header.MarkWord(direct)
	if kind == TestMarkWord {
		w.TestUnmark()
		return
	}
	w.HotspotClearMarked(markword.HotspotDefault)
}

// Layout returns the full allocation layout recorded for the object at
// direct, without needing a vtable call.
func Layout(direct unsafe.Pointer) header.Layout {
	return header.GetLayout(direct)
}

// Trace dispatches to the object's vtable trace function.
func Trace(direct unsafe.Pointer, ctx header.TraceContext) {
	header.TraceObject(direct, ctx)
}

// Drop dispatches to the object's vtable drop function, a no-op when the
// VM was configured without drop support.
func Drop(direct unsafe.Pointer) {
	header.DropObject(direct)
}
