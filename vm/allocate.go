package vm

import (
	"github.com/fmstephe/gc-core/allocator"
	"github.com/fmstephe/gc-core/internal/header"
	"github.com/fmstephe/gc-core/internal/reftable"
)

// Allocate is the mutator-facing entry point for allocating a T through
// ta, using vm's configured drop-heap and mark-word-kind settings to
// build T's vtable and initial mark word. It is a thin convenience
// wrapper over allocator.Allocate -- callers who already hold a *VTable
// (e.g. to avoid the registry lookup in a hot loop) may call
// allocator.Allocate directly.
func Allocate[T header.Trace](vm *VirtualMachine, ta *allocator.ThreadAllocator, value T) (reftable.Handle[T], bool) {
	vtable := header.VTableFor[T](vm.config.DropHeap)
	return allocator.Allocate[T](ta, value, vtable, vm.config.markDefault())
}
