package markword

import (
	"fmt"
	"sync"

	"github.com/fmstephe/gc-core/internal/monitor"
)

// MonitorRegistry keeps every inflated Monitor reachable for the life of
// the VM. A mark word in the "monitor" state stores an index into this
// registry rather than a raw *Monitor pointer: mark words live in
// off-heap memory the Go collector never scans, so a *Monitor hidden
// there as a bare uintptr would be invisible to the collector and could
// be freed out from under a live lock. Keeping the actual pointer in this
// GC-visible slice, and only ever growing it, keeps every inflated
// monitor alive for as long as the VM exists -- matching spec section
// 4.5's "Inflation is irreversible in this core".
type MonitorRegistry struct {
	mu   sync.Mutex
	mons []*monitor.Monitor
}

// NewMonitorRegistry creates an empty registry.
func NewMonitorRegistry() *MonitorRegistry {
	return &MonitorRegistry{}
}

// register adds mon to the registry and returns its 1-based id (0 is
// reserved so a zero-valued id is never mistaken for a real monitor).
func (r *MonitorRegistry) register(mon *monitor.Monitor) uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.mons = append(r.mons, mon)
	return uint64(len(r.mons))
}

func (r *MonitorRegistry) lookup(id uint64) (*monitor.Monitor, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if id == 0 || id > uint64(len(r.mons)) {
		return nil, fmt.Errorf("markword: monitor id %d out of range", id)
	}
	return r.mons[id-1], nil
}

// newMonitorFromDisplacedOwner builds the Monitor a thin-lock inflation
// installs, preserving the original thin-lock holder's ownership so the
// transition is invisible to whichever thread already held the lock.
func newMonitorFromDisplacedOwner(owner uint64) *monitor.Monitor {
	return monitor.NewWithOwner(owner, 1)
}
