package reftable

import "sync/atomic"

// WeakHandle is a generational weak reference: a handle paired with the
// generation its slot had when the weak handle was created. Resolving it
// after the slot has been freed and reused reports failure rather than
// returning a pointer into an unrelated object.
//
// This supplements spec.md's data model rather than replacing it: strong
// Handle[T] values remain exactly as specified (ungenerationed, slot
// identity only). The generation counters live alongside each block,
// parallel to its slots, so Slot itself stays exactly one pointer wide.
//
// Modeled on original_source's ptr.rs WeakGcPtr<T>, which the original
// left as an unimplemented TODO.
type WeakHandle[T any] struct {
	slot     *Slot
	gen      *atomic.Uint32
	observed uint32
}

// NewWeakHandle captures a weak reference to h's current allocation.
func NewWeakHandle[T any](t *Table, h Handle[T]) WeakHandle[T] {
	genPtr := t.generationFor(h.slot)
	return WeakHandle[T]{
		slot:     h.slot,
		gen:      genPtr,
		observed: genPtr.Load(),
	}
}

// Resolve returns the strong handle if the slot has not been freed since
// the weak handle was created, or (zero, false) once it has been freed,
// whether or not it has been reused since.
func (w WeakHandle[T]) Resolve() (Handle[T], bool) {
	if w.gen.Load() != w.observed {
		return Handle[T]{}, false
	}
	return Handle[T]{slot: w.slot}, true
}
