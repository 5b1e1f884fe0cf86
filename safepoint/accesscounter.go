// Package safepoint implements the access-counter gate a collector uses
// to quiesce mutators before marking and sweeping (spec section 4.7).
package safepoint

import (
	"fmt"
	"runtime"
	"sync/atomic"
)

// AccessCounter packs a close-requested flag into the top bit of a single
// atomic word, with the remaining bits holding the active-reader count.
type AccessCounter struct {
	counter atomic.Uint64
}

const (
	closeMask = uint64(1) << 63
	countMask = ^closeMask
)

// IncrementGuard decrements the counter when released. Obtained from
// IncrementOrSavepoint or Increment.
type IncrementGuard struct {
	inner *AccessCounter
}

// Release decrements the counter. Must be called exactly once.
func (g IncrementGuard) Release() {
	g.inner.exit()
}

// CloseGuard reopens the counter when released. Obtained from
// CloseCounter.
type CloseGuard struct {
	inner *AccessCounter
}

// BlockUntilClosed busy-waits until every reader that was active when the
// close was requested has released its guard.
func (g CloseGuard) BlockUntilClosed() {
	g.inner.blockUntilClosed()
}

// Release reopens the counter. Must be called exactly once.
func (g CloseGuard) Release() {
	g.inner.releaseClose()
}

// IncrementOrSavepoint is the entry point mutators should use to enter the
// counter: it blocks if the counter is closed, then increments. Must not
// be called twice, unreleased, from the same thread -- use Increment for
// any re-entrant second call (spec section 4.7, "Deadlock avoidance").
func (c *AccessCounter) IncrementOrSavepoint() IncrementGuard {
	c.blockingEnter()
	return IncrementGuard{inner: c}
}

// Increment is the forced entry point for re-entrant callers: it always
// increments unless the counter is already fully closed (count zero, close
// requested), in which case it falls through to blocking like
// IncrementOrSavepoint.
func (c *AccessCounter) Increment() IncrementGuard {
	c.forcedEntry()
	return IncrementGuard{inner: c}
}

// CloseCounter requests that this counter be closed, blocking until any
// other closer releases its own close request first. The caller must then
// call BlockUntilClosed to wait out active readers.
func (c *AccessCounter) CloseCounter() CloseGuard {
	c.requestClose()
	return CloseGuard{inner: c}
}

func (c *AccessCounter) requestClose() {
	prev := c.counter.Load()
	for {
		if prev&closeMask != 0 {
			runtime.Gosched()
			prev = c.counter.Load()
			continue
		}
		// Set the close bit while preserving the current reader count;
		// BlockUntilClosed then waits for that count to drain to zero.
		next := prev | closeMask
		if c.counter.CompareAndSwap(prev, next) {
			return
		}
		prev = c.counter.Load()
	}
}

func (c *AccessCounter) blockUntilClosed() {
	for {
		if c.counter.Load() == closeMask {
			return
		}
		runtime.Gosched()
	}
}

func (c *AccessCounter) releaseClose() {
	for {
		cur := c.counter.Load()
		if cur&closeMask != closeMask {
			panic(fmt.Errorf("safepoint: releaseClose called without an outstanding close request"))
		}
		if c.counter.CompareAndSwap(cur, cur&countMask) {
			return
		}
	}
}

func (c *AccessCounter) forcedEntry() {
	for {
		cur := c.counter.Load()
		if cur == closeMask {
			// Count is already zero and close is requested: we must
			// respect the close request rather than sneak past it.
			c.blockingEnter()
			return
		}
		next := cur + 1
		if c.counter.CompareAndSwap(cur, next) {
			return
		}
	}
}

func (c *AccessCounter) blockingEnter() {
	for {
		cur := c.counter.Load()
		if cur&closeMask != 0 {
			runtime.Gosched()
			continue
		}
		next := cur + 1
		if c.counter.CompareAndSwap(cur, next) {
			return
		}
	}
}

func (c *AccessCounter) exit() {
	for {
		cur := c.counter.Load()
		if cur&countMask == 0 {
			panic(fmt.Errorf("safepoint: exit called on an access counter with zero readers"))
		}
		next := cur - 1
		if c.counter.CompareAndSwap(cur, next) {
			return
		}
	}
}

// Count returns the current active-reader count, ignoring the close bit.
// Exposed for tests (spec section 8 scenario 3).
func (c *AccessCounter) Count() uint64 {
	return c.counter.Load() & countMask
}

// CloseRequested reports whether a close is currently in effect.
func (c *AccessCounter) CloseRequested() bool {
	return c.counter.Load()&closeMask != 0
}
