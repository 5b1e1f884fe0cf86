package markword

import (
	"fmt"
	"unsafe"

	"github.com/fmstephe/gc-core/internal/memblock"
)

// LockRecordEntry is a single displaced-mark-word slot. Entries live in
// off-heap memory (see LockRecord) so that a mark word can safely hold a
// raw pointer to one: the memory is never moved and never scanned by the
// Go collector, so there is no risk of the entry's address changing out
// from under a CAS, and no risk of Go mistaking the low two bits of its
// address for something else -- LockRecord guarantees every entry is
// aligned to at least 8 bytes, as spec section 3 requires.
type LockRecordEntry struct {
	displaced uint64
	owner     uint64
	indicator bool
	_         [7]byte // pad to a multiple of 8 so entry addresses stay 8-aligned
}

// LockRecord is a per-thread stack of displaced mark-word values, used by
// thin-lock acquisition (spec section 3, "Lock record"). Backed by a
// fixed-capacity off-heap block rather than a Go slice, because a Go
// slice's backing array can move on growth -- which would invalidate any
// mark word already pointing at one of its entries.
type LockRecord struct {
	mem     *memblock.Block
	entries []LockRecordEntry
	top     int
}

// DefaultLockRecordCapacity bounds the thin-lock nesting depth a single
// thread may hold concurrently across all objects. It is generous for
// realistic nesting but not unbounded, matching a real lock record's
// fixed-size native-stack allocation.
const DefaultLockRecordCapacity = 1024

// NewLockRecord allocates a LockRecord with room for capacity entries.
func NewLockRecord(capacity int, allocator memblock.Allocator) (*LockRecord, error) {
	if capacity <= 0 {
		capacity = DefaultLockRecordCapacity
	}
	size := uintptr(capacity) * unsafe.Sizeof(LockRecordEntry{})
	mem, err := memblock.New(size, allocator)
	if err != nil {
		return nil, fmt.Errorf("markword: allocating lock record: %w", err)
	}
	entries := unsafe.Slice((*LockRecordEntry)(mem.Start()), capacity)
	return &LockRecord{mem: mem, entries: entries, top: 0}, nil
}

// Destroy releases the lock record's backing memory. Must only be called
// once the owning thread holds no outstanding thin locks.
func (lr *LockRecord) Destroy() error {
	return lr.mem.Destroy()
}

func (lr *LockRecord) push(displaced uint64, owner uint64, indicator bool) (*LockRecordEntry, error) {
	if lr.top >= len(lr.entries) {
		return nil, fmt.Errorf("markword: lock record exhausted (capacity %d)", len(lr.entries))
	}
	e := &lr.entries[lr.top]
	e.displaced = displaced
	e.owner = owner
	e.indicator = indicator
	lr.top++
	return e, nil
}

func (lr *LockRecord) pop() {
	if lr.top > 0 {
		lr.top--
	}
}

func (lr *LockRecord) peek() (*LockRecordEntry, error) {
	if lr.top == 0 {
		return nil, fmt.Errorf("markword: unlock called with an empty lock record")
	}
	return &lr.entries[lr.top-1], nil
}

func (lr *LockRecord) contains(addr uintptr) bool {
	for i := 0; i < lr.top; i++ {
		if uintptr(unsafe.Pointer(&lr.entries[i])) == addr {
			return true
		}
	}
	return false
}

// entryOwner reads the owning thread id recorded in the lock record entry
// at addr. addr must be a pointer a HotspotLock call previously installed
// into a mark word's upper bits.
func entryOwner(addr uintptr) uint64 {
	return (*LockRecordEntry)(unsafe.Pointer(addr)).owner
}
