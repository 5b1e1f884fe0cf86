// Package reftable implements the lock-free handle indirection table
// (spec section 4.1): an append-only sequence of fixed-capacity blocks
// plus a lock-free free-list, decoupling mutator-visible handles from the
// physical addresses a moving collector may rewrite.
package reftable

import (
	"fmt"
	"sync"
	"sync/atomic"
	"unsafe"

	"github.com/fmstephe/gc-core/internal/memblock"
)

// BlockSize is the number of slots per block, matching the teacher's and
// the original Rust ref_table's 4096.
const BlockSize = 4096

// Slot is a single pointer-sized cell: either the direct address of a
// live object, or a link to the next free slot. Which one it is, is
// determined entirely by free-list reachability -- the bit pattern itself
// is identical in both states (spec section 3).
type Slot struct {
	value atomic.Uintptr
}

// OpenSlot is a Slot that has been claimed from the free list but not yet
// assigned a direct pointer. It may be assigned at most once.
type OpenSlot struct {
	slot *Slot
}

// Assign writes direct into the slot, completing the claim. Must be
// called at most once per OpenSlot.
func (o OpenSlot) Assign(direct unsafe.Pointer) *Slot {
	o.slot.value.Store(uintptr(direct))
	return o.slot
}

type block struct {
	mem   *memblock.Block
	slots []Slot
	// gens parallels slots 1:1 and is bumped every time the slot at the
	// same index is freed, so a WeakHandle can detect reuse. It is kept
	// separate from Slot itself so Slot stays exactly one pointer wide,
	// per spec section 3's Slot invariant.
	gens []atomic.Uint32
}

// Table is the shared, append-only sequence of blocks plus the lock-free
// free-list head.
type Table struct {
	allocator memblock.Allocator

	blockMu sync.Mutex
	blocks  []*block

	head atomic.Pointer[Slot]
}

// New creates a Table with one initial block.
func New(allocator memblock.Allocator) (*Table, error) {
	t := &Table{allocator: allocator}
	if err := t.growLocked(); err != nil {
		return nil, err
	}
	return t, nil
}

// ClaimSlot pops the free-list head, growing the table with a new block
// if it is empty. Lock-free under contention except for the rare path
// where a new block must be mmap'd.
func (t *Table) ClaimSlot() OpenSlot {
	for {
		cur := t.head.Load()
		if cur == nil {
			t.tryGrow()
			continue
		}

		next := (*Slot)(unsafe.Pointer(uintptr(cur.value.Load())))
		if t.head.CompareAndSwap(cur, next) {
			return OpenSlot{slot: cur}
		}
	}
}

// FreeSlots links the given slots back into the free list as a single
// CAS-prepended segment. Unsafe contract: slots must have been provided
// by this table, must not be in use, and this must only be called by the
// collector while holding a safepoint (spec section 4.1).
func (t *Table) FreeSlots(slots []*Slot) {
	if len(slots) == 0 {
		return
	}

	for i := 0; i < len(slots)-1; i++ {
		slots[i].value.Store(uintptr(unsafe.Pointer(slots[i+1])))
	}
	first := slots[0]
	last := slots[len(slots)-1]

	for _, s := range slots {
		t.bumpGeneration(s)
	}

	for {
		cur := t.head.Load()
		last.value.Store(uintptr(unsafe.Pointer(cur)))
		if t.head.CompareAndSwap(cur, first) {
			return
		}
	}
}

func (t *Table) tryGrow() {
	if !t.blockMu.TryLock() {
		// Someone else is already growing; loop back around to
		// ClaimSlot and retry once they finish.
		return
	}
	defer t.blockMu.Unlock()

	// Re-check: another grower may have finished just before we took the
	// lock.
	if t.head.Load() != nil {
		return
	}
	if err := t.growLocked(); err != nil {
		// Out-of-memory on block growth is unrecoverable (spec section 7).
		panic(fmt.Errorf("reftable: failed to grow reference table: %w", err))
	}
}

func (t *Table) growLocked() error {
	size := uintptr(BlockSize) * unsafe.Sizeof(Slot{})
	mem, err := memblock.New(size, t.allocator)
	if err != nil {
		return fmt.Errorf("reftable: allocating block: %w", err)
	}

	slots := unsafe.Slice((*Slot)(mem.Start()), BlockSize)
	for i := 0; i < BlockSize-1; i++ {
		slots[i].value.Store(uintptr(unsafe.Pointer(&slots[i+1])))
	}

	b := &block{mem: mem, slots: slots, gens: make([]atomic.Uint32, BlockSize)}

	for {
		cur := t.head.Load()
		slots[BlockSize-1].value.Store(uintptr(unsafe.Pointer(cur)))
		if t.head.CompareAndSwap(cur, &slots[0]) {
			t.blocks = append(t.blocks, b)
			return nil
		}
	}
}

func (t *Table) bumpGeneration(s *Slot) {
	t.blockMu.Lock()
	blocks := t.blocks
	t.blockMu.Unlock()

	for _, b := range blocks {
		base := uintptr(unsafe.Pointer(&b.slots[0]))
		end := base + uintptr(len(b.slots))*unsafe.Sizeof(Slot{})
		addr := uintptr(unsafe.Pointer(s))
		if addr >= base && addr < end {
			idx := (addr - base) / unsafe.Sizeof(Slot{})
			b.gens[idx].Add(1)
			return
		}
	}
}

func (t *Table) generationFor(s *Slot) *atomic.Uint32 {
	t.blockMu.Lock()
	blocks := t.blocks
	t.blockMu.Unlock()

	for _, b := range blocks {
		base := uintptr(unsafe.Pointer(&b.slots[0]))
		end := base + uintptr(len(b.slots))*unsafe.Sizeof(Slot{})
		addr := uintptr(unsafe.Pointer(s))
		if addr >= base && addr < end {
			idx := (addr - base) / unsafe.Sizeof(Slot{})
			return &b.gens[idx]
		}
	}
	panic("reftable: slot does not belong to this table")
}

// BlockCount reports how many blocks the table currently owns -- used by
// tests exercising the growth boundary (spec section 8).
func (t *Table) BlockCount() int {
	t.blockMu.Lock()
	defer t.blockMu.Unlock()
	return len(t.blocks)
}

// Destroy releases every block's backing memory. Must only be called
// once no mutator or collector holds any outstanding handle into this
// table.
func (t *Table) Destroy() error {
	t.blockMu.Lock()
	defer t.blockMu.Unlock()
	for _, b := range t.blocks {
		if err := b.mem.Destroy(); err != nil {
			return err
		}
	}
	return nil
}
