// Package vm ties the heap core together: the shared reference table, the
// shared monitor registry, and a registry of per-thread AccessCounters,
// all parameterized by a Config (spec section 4.9).
package vm

import (
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/fmstephe/gc-core/allocator"
	"github.com/fmstephe/gc-core/internal/heapregion"
	"github.com/fmstephe/gc-core/internal/markword"
	"github.com/fmstephe/gc-core/internal/memblock"
	"github.com/fmstephe/gc-core/internal/reftable"
	"github.com/fmstephe/gc-core/safepoint"
)

// VirtualMachine owns every piece of state shared across mutator threads:
// the indirection table, the monitor registry backing inflated locks, and
// the set of AccessCounters a collector must close to reach a safepoint.
type VirtualMachine struct {
	config Config

	refTable *reftable.Table
	monitors *markword.MonitorRegistry

	nextThreadID atomic.Uint64

	mu       sync.Mutex
	counters map[uint64]*safepoint.AccessCounter
}

// New constructs a VirtualMachine from the given options.
func New(opts ...Option) (*VirtualMachine, error) {
	cfg := NewConfig(opts...)

	rt, err := reftable.New(cfg.BlockAllocator)
	if err != nil {
		return nil, fmt.Errorf("vm: constructing reference table: %w", err)
	}

	return &VirtualMachine{
		config:   cfg,
		refTable: rt,
		monitors: markword.NewMonitorRegistry(),
		counters: make(map[uint64]*safepoint.AccessCounter),
	}, nil
}

// Config returns the configuration this VM was constructed with.
func (vm *VirtualMachine) Config() Config {
	return vm.config
}

// RefTable exposes the shared reference table, e.g. for a collector
// enumerating roots or freeing dead slots.
func (vm *VirtualMachine) RefTable() *reftable.Table {
	return vm.refTable
}

// NewTLAB allocates a fresh heap region of the VM's configured slab size,
// implementing allocator.TLABSource.
func (vm *VirtualMachine) NewTLAB() (*heapregion.Region, error) {
	block, err := memblock.New(uintptr(vm.config.SlabSize), vm.config.BlockAllocator)
	if err != nil {
		return nil, fmt.Errorf("vm: allocating a TLAB: %w", err)
	}
	return heapregion.New(block), nil
}

// MakeAllocator registers a new mutator thread with the VM and returns
// its ThreadAllocator: a fresh TLAB, a private lock record, and a
// registered AccessCounter a collector can find and close (spec section
// 4.9).
func (vm *VirtualMachine) MakeAllocator() (*allocator.ThreadAllocator, error) {
	tlab, err := vm.NewTLAB()
	if err != nil {
		return nil, err
	}

	lockRecord, err := markword.NewLockRecord(vm.config.LockRecordCapacity, vm.config.BlockAllocator)
	if err != nil {
		return nil, fmt.Errorf("vm: constructing lock record: %w", err)
	}

	threadID := vm.nextThreadID.Add(1)
	access := &safepoint.AccessCounter{}

	vm.mu.Lock()
	vm.counters[threadID] = access
	vm.mu.Unlock()

	return allocator.New(threadID, tlab, vm, vm.refTable, lockRecord, vm.monitors, access), nil
}

// CloseAllSafepoints requests a close on every registered thread's
// AccessCounter and blocks until all of them have drained, giving a
// collector exclusive access to the heap. Callers must Release every
// returned guard once the safepoint-dependent work is complete.
func (vm *VirtualMachine) CloseAllSafepoints() []safepoint.CloseGuard {
	vm.mu.Lock()
	guards := make([]safepoint.CloseGuard, 0, len(vm.counters))
	for _, c := range vm.counters {
		guards = append(guards, c.CloseCounter())
	}
	vm.mu.Unlock()

	for _, g := range guards {
		g.BlockUntilClosed()
	}
	return guards
}

// ReleaseSafepoints reopens every guard obtained from CloseAllSafepoints.
func ReleaseSafepoints(guards []safepoint.CloseGuard) {
	for _, g := range guards {
		g.Release()
	}
}

// Destroy releases the shared reference table's backing memory. Must
// only be called once no mutator or collector holds any outstanding
// handle into this VM.
func (vm *VirtualMachine) Destroy() error {
	return vm.refTable.Destroy()
}
