// Command gcdemo is a thin, single-binary exercise of the full heap core:
// it constructs a VirtualMachine, allocates a handful of traced objects
// from a mutator thread, takes a thin lock and inflates it to a monitor
// under contention, and closes a safepoint before reporting what it saw.
package main

import (
	"flag"
	"fmt"
	"log"
	"sync"
	"unsafe"

	"github.com/fmstephe/flib/funsafe"

	"github.com/fmstephe/gc-core/internal/header"
	"github.com/fmstephe/gc-core/vm"
)

var (
	slabSizeFlag = flag.Uint64("slab-size", vm.DefaultSlabSize, "Requested TLAB size in bytes")
	contendFlag  = flag.Int("contend", 4, "Number of goroutines contending for the demo lock")
	dropHeapFlag = flag.Bool("drop-heap", false, "Enable the drop/finalization vtable entry")
)

// demoRecord is the payload allocated into the heap by this demo. Payload
// is a byte blob viewed back out as a string with funsafe.BytesToString,
// the same zero-copy pattern the teacher's stringstore package uses.
type demoRecord struct {
	Payload []byte
	Next    *demoRecord // not itself traced through Handle; illustrative only
}

// Trace satisfies header.Trace. demoRecord holds no outgoing Handles in
// this demo, so there is nothing to visit. Defined with a value receiver
// so demoRecord itself (not *demoRecord) satisfies header.Trace, as
// header.VTableFor[T] requires.
func (d demoRecord) Trace(_ header.TraceContext) {}

func (d demoRecord) String() string {
	return funsafe.BytesToString(d.Payload)
}

func main() {
	flag.Parse()

	machine, err := vm.New(
		vm.WithSlabSize(*slabSizeFlag),
		vm.WithDropHeap(*dropHeapFlag),
	)
	if err != nil {
		log.Fatalf("gcdemo: constructing virtual machine: %s", err)
	}
	defer func() {
		if err := machine.Destroy(); err != nil {
			log.Fatalf("gcdemo: tearing down virtual machine: %s", err)
		}
	}()

	ta, err := machine.MakeAllocator()
	if err != nil {
		log.Fatalf("gcdemo: registering mutator thread: %s", err)
	}

	handle, ok := vm.Allocate[demoRecord](machine, ta, demoRecord{Payload: []byte("hello, gc-core")})
	if !ok {
		log.Fatalf("gcdemo: allocation failed")
	}
	fmt.Printf("allocated record: %q\n", handle.Direct().String())

	runLockDemo(machine, handle.Direct())

	guards := machine.CloseAllSafepoints()
	fmt.Printf("safepoint reached, TLAB holds %d live object(s)\n", len(ta.TLAB().Objects()))
	vm.ReleaseSafepoints(guards)
}

// runLockDemo has several goroutines lock and unlock the same record
// concurrently. A goroutine that finds the record thin-locked by another
// inflates the mark word into a monitor (spec section 4.5); whether that
// happens on a given run depends on scheduling.
func runLockDemo(machine *vm.VirtualMachine, direct *demoRecord) {
	var wg sync.WaitGroup
	for i := 0; i < *contendFlag; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()

			ta, err := machine.MakeAllocator()
			if err != nil {
				log.Fatalf("gcdemo: registering contender %d: %s", i, err)
			}

			if err := ta.Lock(unsafe.Pointer(direct)); err != nil {
				log.Fatalf("gcdemo: contender %d locking: %s", i, err)
			}
			if err := ta.Unlock(unsafe.Pointer(direct)); err != nil {
				log.Fatalf("gcdemo: contender %d unlocking: %s", i, err)
			}
		}(i)
	}
	wg.Wait()
}
