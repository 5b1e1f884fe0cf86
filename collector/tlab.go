package collector

import (
	"unsafe"

	"github.com/fmstephe/gc-core/internal/header"
	"github.com/fmstephe/gc-core/internal/heapregion"
)

// TLABView adapts a heapregion.Region to VisitHeap, translating each
// recorded allocation's header address into the direct data pointer
// every other API in this core expects.
type TLABView struct {
	Region *heapregion.Region
}

func (v TLABView) IterEntries() []unsafe.Pointer {
	objects := v.Region.Objects()
	entries := make([]unsafe.Pointer, len(objects))
	for i, headerAddr := range objects {
		entries[i] = unsafe.Pointer(headerAddr + header.HeaderSize)
	}
	return entries
}
