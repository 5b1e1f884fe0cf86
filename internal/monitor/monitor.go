// Package monitor implements the inflated recursive lock a HotSpot-style
// mark word escalates to when a thin lock contends (spec section 4.6).
package monitor

import "sync"

// Monitor holds an owning thread id, a recursion count, a mutex, and a
// condition variable, matching the shape of the original Rust
// implementation's parking_lot Mutex<Option<(ThreadId, u64)>> + Condvar.
type Monitor struct {
	mu   sync.Mutex
	cond *sync.Cond

	hasOwner  bool
	owner     uint64
	recursion uint64
}

// New creates an unowned Monitor.
func New() *Monitor {
	m := &Monitor{}
	m.cond = sync.NewCond(&m.mu)
	return m
}

// NewWithOwner creates a Monitor that starts out already owned -- used
// when a thin lock inflates, to preserve the existing owner's
// acquisition across the transition (see internal/markword).
func NewWithOwner(owner uint64, recursion uint64) *Monitor {
	m := New()
	m.hasOwner = true
	m.owner = owner
	m.recursion = recursion
	return m
}

// Lock acquires the monitor for threadID, blocking if another thread
// holds it. Recursive acquisition by the current owner increments the
// recursion count instead of blocking.
func (m *Monitor) Lock(threadID uint64) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for m.hasOwner && m.owner != threadID {
		m.cond.Wait()
	}

	if m.hasOwner && m.owner == threadID {
		m.recursion++
		return
	}

	m.hasOwner = true
	m.owner = threadID
	m.recursion = 1
}

// TryLock attempts to acquire the monitor without blocking.
func (m *Monitor) TryLock(threadID uint64) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.hasOwner {
		m.hasOwner = true
		m.owner = threadID
		m.recursion = 1
		return true
	}
	if m.owner == threadID {
		m.recursion++
		return true
	}
	return false
}

// Unlock decrements the recursion count for threadID; once it reaches
// zero the owner is cleared and one waiter is notified. Unlocking a
// monitor not owned by threadID is a no-op (the caller is expected to
// track its own acquisitions via a lock record).
func (m *Monitor) Unlock(threadID uint64) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.hasOwner || m.owner != threadID {
		return
	}

	m.recursion--
	if m.recursion == 0 {
		m.hasOwner = false
		m.owner = 0
		m.cond.Signal()
	}
}

// Recursion returns the current recursion count (0 if unowned).
func (m *Monitor) Recursion() uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.recursion
}

// Owner returns the current owner and whether the monitor is held.
func (m *Monitor) Owner() (uint64, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.owner, m.hasOwner
}
