package reftable

import "unsafe"

// Handle is a stable pointer-to-slot: the only thing a mutator ever sees
// for an allocated object (spec section 3, "Handle (GcPtr<T>)"). It never
// aliases raw object memory directly, is copyable, and compares equal to
// another Handle iff both point at the same slot.
type Handle[T any] struct {
	slot *Slot
}

// AssignHandle completes a claim by writing direct into the slot and
// wrapping it as a typed Handle. At-most-once per OpenSlot.
func AssignHandle[T any](o OpenSlot, direct *T) Handle[T] {
	o.Assign(unsafe.Pointer(direct))
	return Handle[T]{slot: o.slot}
}

// IsNil reports whether this is the zero Handle.
func (h Handle[T]) IsNil() bool {
	return h.slot == nil
}

// Direct returns the object's current direct address. Only valid while
// the caller holds an AccessCounter guard, or otherwise knows no
// collection can be relocating this object concurrently (spec section 6).
func (h Handle[T]) Direct() *T {
	return (*T)(unsafe.Pointer(uintptr(h.slot.value.Load())))
}

// Slot exposes the underlying slot, e.g. for a collector enumerating
// roots or rewriting slot contents during relocation.
func (h Handle[T]) Slot() *Slot {
	return h.slot
}

// Rewrite overwrites the slot's direct pointer -- used only by a
// collector relocating a survivor during a safepoint.
func (h Handle[T]) Rewrite(direct *T) {
	h.slot.value.Store(uintptr(unsafe.Pointer(direct)))
}
