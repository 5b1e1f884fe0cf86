package vm

import (
	"github.com/fmstephe/flib/fmath"

	"github.com/fmstephe/gc-core/collector"
	"github.com/fmstephe/gc-core/internal/markword"
	"github.com/fmstephe/gc-core/internal/memblock"
)

// DefaultSlabSize is used when no WithSlabSize option is supplied,
// matching the teacher's own default TLAB-like slab size.
const DefaultSlabSize = 1 << 16 // 64KiB

// DefaultLockRecordCapacity mirrors markword.DefaultLockRecordCapacity so
// callers of vm don't need to import internal/markword directly.
const DefaultLockRecordCapacity = markword.DefaultLockRecordCapacity

// Config configures a VirtualMachine. Build one with NewConfig, customized by
// Option values, the same functional-options-over-a-plain-struct shape
// the teacher uses for AllocationConfig's two constructors (by object
// count vs. by raw size).
type Config struct {
	MarkWordKind       collector.MarkWordKind
	DropHeap           bool
	BlockAllocator     memblock.Allocator
	SlabSize           uint64
	LockRecordCapacity int
}

// Option customizes a Config.
type Option func(*Config)

// WithMarkWordKind selects which MarkWord variant allocated objects
// carry. Defaults to collector.HotspotMarkWord.
func WithMarkWordKind(kind collector.MarkWordKind) Option {
	return func(c *Config) { c.MarkWordKind = kind }
}

// WithDropHeap enables the per-object drop/finalization vtable entry
// (spec section 6, "drop_heap"). Defaults to false.
func WithDropHeap(enabled bool) Option {
	return func(c *Config) { c.DropHeap = enabled }
}

// WithBlockAllocator overrides the allocator backing every MemoryBlock
// (ref-table blocks and TLABs). Defaults to memblock.MmapAllocator.
func WithBlockAllocator(allocator memblock.Allocator) Option {
	return func(c *Config) { c.BlockAllocator = allocator }
}

// WithSlabSize sets the requested byte size of each new TLAB, rounded up
// to a power of two the same way the teacher rounds slab sizes.
func WithSlabSize(size uint64) Option {
	return func(c *Config) { c.SlabSize = size }
}

// WithLockRecordCapacity overrides the per-thread lock record depth.
func WithLockRecordCapacity(capacity int) Option {
	return func(c *Config) { c.LockRecordCapacity = capacity }
}

// NewConfig builds a Config from defaults plus the given options,
// mirroring NewAllocationConfigBySize's "start from requested, round to
// actual" shape.
func NewConfig(opts ...Option) Config {
	c := Config{
		MarkWordKind:       collector.HotspotMarkWord,
		DropHeap:           false,
		BlockAllocator:     memblock.MmapAllocator{},
		SlabSize:           DefaultSlabSize,
		LockRecordCapacity: DefaultLockRecordCapacity,
	}
	for _, opt := range opts {
		opt(&c)
	}
	c.SlabSize = uint64(fmath.NxtPowerOfTwo(int64(c.SlabSize)))
	return c
}

func (c Config) markDefault() uint64 {
	if c.MarkWordKind == collector.TestMarkWord {
		return markword.TestDefault
	}
	return markword.HotspotDefault
}
