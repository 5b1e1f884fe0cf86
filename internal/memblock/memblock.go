// Package memblock owns raw, page-backed memory regions used as the
// backing store for both reference-table blocks and TLAB regions.
//
// Blocks allocated here are never scanned or moved by the Go collector --
// that's the entire point of the heap this module builds. Every pointer
// this module hides inside a Block must be kept alive some other way (see
// internal/header and internal/markword for how vtables and monitors are
// rooted).
package memblock

import (
	"fmt"
	"unsafe"

	"github.com/fmstephe/flib/fmath"
	"golang.org/x/sys/unix"
)

// Allocator is the pluggable backing-memory provider. The default is
// MmapAllocator; SystemAllocator is available for environments where
// anonymous mmap isn't available and a plain Go-heap-backed block is an
// acceptable (GC-visible) substitute.
type Allocator interface {
	Allocate(size uintptr) ([]byte, error)
	Release(b []byte) error
}

// MmapAllocator backs blocks with an anonymous, private mmap region. This
// is the default allocator and the one used by the teacher's pointerstore
// package for its slabs.
type MmapAllocator struct{}

func (MmapAllocator) Allocate(size uintptr) ([]byte, error) {
	b, err := unix.Mmap(-1, 0, int(size), unix.PROT_READ|unix.PROT_WRITE, unix.MAP_ANON|unix.MAP_PRIVATE)
	if err != nil {
		return nil, fmt.Errorf("memblock: mmap %d bytes: %w", size, err)
	}
	return b, nil
}

func (MmapAllocator) Release(b []byte) error {
	if err := unix.Munmap(b); err != nil {
		return fmt.Errorf("memblock: munmap %d bytes: %w", len(b), err)
	}
	return nil
}

// SystemAllocator backs blocks with an ordinary Go-heap byte slice. Memory
// allocated this way *is* visible to the Go collector (it just won't be
// scanned for the unsafe pointers this module hides in it, since byte
// slices carry no pointer bits), so it is only ever released by letting Go
// collect it -- Release is a no-op.
type SystemAllocator struct{}

func (SystemAllocator) Allocate(size uintptr) ([]byte, error) {
	return make([]byte, size), nil
}

func (SystemAllocator) Release([]byte) error {
	return nil
}

// Block is an owned, contiguous byte range obtained from an Allocator. It
// is exclusively owned by whichever HeapRegion or reftable block sits atop
// it; Destroy releases it back to the allocator.
type Block struct {
	data      []byte
	allocator Allocator
}

// New allocates a block of at least size bytes, rounded up to the next
// power of two the same way the teacher rounds slab sizes
// (pointerstore.AllocationConfig).
func New(size uintptr, allocator Allocator) (*Block, error) {
	rounded := uintptr(fmath.NxtPowerOfTwo(int64(size)))
	data, err := allocator.Allocate(rounded)
	if err != nil {
		return nil, err
	}
	return &Block{data: data, allocator: allocator}, nil
}

// Start returns a pointer to the first byte of the block.
func (b *Block) Start() unsafe.Pointer {
	return unsafe.Pointer(unsafe.SliceData(b.data))
}

// Len returns the number of bytes owned by this block.
func (b *Block) Len() uintptr {
	return uintptr(len(b.data))
}

// Destroy releases the block's memory back to its allocator. The block
// must not be used again afterwards.
func (b *Block) Destroy() error {
	return b.allocator.Release(b.data)
}
