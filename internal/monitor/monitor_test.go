package monitor

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTryLockSucceedsWhenUnownedThenFailsForOtherThread(t *testing.T) {
	m := New()

	assert.True(t, m.TryLock(1))
	assert.False(t, m.TryLock(2))

	owner, held := m.Owner()
	require.True(t, held)
	assert.Equal(t, uint64(1), owner)
}

func TestLockIsRecursiveForSameOwner(t *testing.T) {
	m := New()

	m.Lock(1)
	m.Lock(1)
	assert.Equal(t, uint64(2), m.Recursion())

	m.Unlock(1)
	_, held := m.Owner()
	assert.True(t, held)

	m.Unlock(1)
	_, held = m.Owner()
	assert.False(t, held)
}

func TestLockBlocksUntilOwnerUnlocks(t *testing.T) {
	m := New()
	m.Lock(1)

	acquired := make(chan struct{})
	go func() {
		m.Lock(2)
		close(acquired)
	}()

	select {
	case <-acquired:
		t.Fatal("second thread acquired the lock while thread 1 still held it")
	case <-time.After(20 * time.Millisecond):
	}

	m.Unlock(1)

	select {
	case <-acquired:
	case <-time.After(time.Second):
		t.Fatal("second thread never acquired the lock after the owner released it")
	}

	owner, _ := m.Owner()
	assert.Equal(t, uint64(2), owner)
}

func TestNewWithOwnerPreservesOriginalAcquisition(t *testing.T) {
	m := NewWithOwner(7, 3)

	owner, held := m.Owner()
	require.True(t, held)
	assert.Equal(t, uint64(7), owner)
	assert.Equal(t, uint64(3), m.Recursion())
}

func TestUnlockByNonOwnerIsNoop(t *testing.T) {
	m := New()
	m.Lock(1)

	m.Unlock(2)

	owner, held := m.Owner()
	require.True(t, held)
	assert.Equal(t, uint64(1), owner)
}

func TestConcurrentLockUnlockDoesNotDeadlock(t *testing.T) {
	m := New()
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(id uint64) {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				m.Lock(id)
				m.Unlock(id)
			}
		}(uint64(i + 1))
	}
	wg.Wait()
}
