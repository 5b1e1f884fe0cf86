// Package allocator implements the per-mutator-thread allocation path
// (spec section 4.4): a TLAB-backed bump allocator that falls back to
// requesting a fresh TLAB from the owning VM on exhaustion, a private
// lock record for thin-lock acquisitions, and a private AccessCounter
// for safepoint coordination.
package allocator

import (
	"fmt"
	"unsafe"

	"github.com/fmstephe/gc-core/internal/header"
	"github.com/fmstephe/gc-core/internal/heapregion"
	"github.com/fmstephe/gc-core/internal/markword"
	"github.com/fmstephe/gc-core/internal/reftable"
	"github.com/fmstephe/gc-core/safepoint"
)

// TLABSource is implemented by the owning VirtualMachine: it hands out
// fresh TLAB regions on demand, decoupling this package from vm to avoid
// an import cycle.
type TLABSource interface {
	NewTLAB() (*heapregion.Region, error)
}

// ThreadAllocator is the per-thread allocation and locking context handed
// out by VirtualMachine.MakeAllocator (spec section 4.9). It is not safe
// for concurrent use by more than one goroutine -- that is the entire
// point of a thread-local allocation buffer.
type ThreadAllocator struct {
	threadID uint64

	tlab   *heapregion.Region
	source TLABSource

	refTable *reftable.Table

	lockRecord *markword.LockRecord
	monitors   *markword.MonitorRegistry

	access *safepoint.AccessCounter
}

// New constructs a ThreadAllocator. tlab is its initial TLAB; source
// supplies replacements once the current TLAB is exhausted.
func New(threadID uint64, tlab *heapregion.Region, source TLABSource, refTable *reftable.Table, lockRecord *markword.LockRecord, monitors *markword.MonitorRegistry, access *safepoint.AccessCounter) *ThreadAllocator {
	return &ThreadAllocator{
		threadID:   threadID,
		tlab:       tlab,
		source:     source,
		refTable:   refTable,
		lockRecord: lockRecord,
		monitors:   monitors,
		access:     access,
	}
}

// ThreadID returns the numeric identity this allocator uses as a lock
// owner and as the safepoint-registry key.
func (a *ThreadAllocator) ThreadID() uint64 {
	return a.threadID
}

// TLAB exposes the current thread-local allocation buffer, e.g. for a
// collector enumerating this thread's live entries during a sweep.
func (a *ThreadAllocator) TLAB() *heapregion.Region {
	return a.tlab
}

// LockRecord exposes the thread's private lock record, e.g. for a
// Monitor-related test asserting recursion depth.
func (a *ThreadAllocator) LockRecord() *markword.LockRecord {
	return a.lockRecord
}

// AccessCounter exposes this thread's safepoint gate.
func (a *ThreadAllocator) AccessCounter() *safepoint.AccessCounter {
	return a.access
}

// Lock acquires the thin lock (or inflated monitor) on the object at
// direct, as this thread.
func (a *ThreadAllocator) Lock(direct unsafe.Pointer) error {
	return header.MarkWord(direct).HotspotLock(a.monitors, a.lockRecord, a.threadID)
}

// Unlock releases the most recently acquired lock on direct held by this
// thread.
func (a *ThreadAllocator) Unlock(direct unsafe.Pointer) error {
	return header.MarkWord(direct).HotspotUnlock(a.monitors, a.lockRecord, a.threadID)
}

// Allocate implements spec section 4.4's allocation algorithm: enter the
// access counter (blocking at a safepoint if one is in progress), attempt
// a bump allocation from the current TLAB, request and install a fresh
// TLAB on a single retry if the first attempt failed, claim a ref-table
// slot, and assign it.
//
// Returns (Handle[T]{}, false) if even a fresh TLAB could not satisfy the
// allocation -- the caller retains value and may retry later with a
// larger TLAB policy or treat it as an allocation failure (spec section
// 7). Go's by-value parameter passing means the caller already holds its
// own copy of value on failure, so there is nothing further to hand back,
// unlike Rust's Result<GcPtr<T>, T>.
func Allocate[T header.Trace](a *ThreadAllocator, value T, vtable *header.VTable, markDefault uint64) (reftable.Handle[T], bool) {
	guard := a.access.IncrementOrSavepoint()
	defer guard.Release()

	direct, ok := header.Alloc[T](a.tlab, vtable, markDefault)
	if !ok {
		fresh, err := a.source.NewTLAB()
		if err != nil {
			panic(fmt.Errorf("allocator: requesting a fresh TLAB: %w", err))
		}
		a.tlab = fresh

		direct, ok = header.Alloc[T](a.tlab, vtable, markDefault)
		if !ok {
			return reftable.Handle[T]{}, false
		}
	}

	*direct = value

	open := a.refTable.ClaimSlot()
	handle := reftable.AssignHandle[T](open, direct)

	return handle, true
}
