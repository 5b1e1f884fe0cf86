// Package heapregion implements a bump allocator over a memblock.Block,
// with a fixed minimum alignment. It underlies the TLAB owned by each
// ThreadAllocator; the shared reftable blocks sit directly on memblock.
package heapregion

import (
	"unsafe"

	"github.com/fmstephe/gc-core/internal/memblock"
)

// MinAlignment is the region's minimum alignment: the larger of pointer
// alignment and 8, as required by spec section 4.2.
const MinAlignment = 8

// Region is a bump allocator over a single MemoryBlock.
type Region struct {
	block *memblock.Block

	start  uintptr
	end    uintptr
	cursor uintptr

	// objects records the start address of every successful allocation,
	// so a sweep can walk them without needing a separate index.
	objects []uintptr
}

// New creates a Region over block, with the cursor initialized to the
// first address >= block start satisfying MinAlignment.
func New(block *memblock.Block) *Region {
	start := alignUp(uintptr(block.Start()), MinAlignment)
	end := uintptr(block.Start()) + block.Len()
	return &Region{
		block:  block,
		start:  start,
		end:    end,
		cursor: start,
	}
}

// RemainingSpace returns the number of bytes left between the cursor and
// the end of the region.
func (r *Region) RemainingSpace() uintptr {
	if r.cursor >= r.end {
		return 0
	}
	return r.end - r.cursor
}

// Objects returns the start address of every object successfully
// allocated from this region, in allocation order. Used by a collector to
// sweep a TLAB once its owner's access counter is closed.
func (r *Region) Objects() []uintptr {
	return r.objects
}

// Block returns the underlying memory block, e.g. so a collector can
// release it once the region is fully reclaimed.
func (r *Region) Block() *memblock.Block {
	return r.block
}

// AllocLayout raises align to at least MinAlignment, rounds size up to a
// multiple of align (a zero size stays zero), pads the current cursor to
// satisfy align, and bumps the cursor. Returns
// (nil, false) if the region does not have enough remaining space.
func (r *Region) AllocLayout(size, align uintptr) (unsafe.Pointer, bool) {
	if align < MinAlignment {
		align = MinAlignment
	}
	size = alignUp(size, align)

	padding := offsetForAlign(r.cursor, align)
	if padding+size > r.RemainingSpace() {
		return nil, false
	}

	target := r.cursor + padding
	r.cursor = target + size
	r.objects = append(r.objects, target)

	return unsafe.Pointer(target), true
}

func alignUp(ptr, align uintptr) uintptr {
	return (ptr + align - 1) &^ (align - 1)
}

// offsetForAlign returns the number of padding bytes needed so that
// ptr+offset is a multiple of align.
func offsetForAlign(ptr, align uintptr) uintptr {
	rem := ptr % align
	if rem == 0 {
		return 0
	}
	return align - rem
}
