package markword

import (
	"testing"
	"unsafe"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fmstephe/gc-core/internal/memblock"
)

func TestLockRecordPushPopPeek(t *testing.T) {
	lr, err := NewLockRecord(4, memblock.SystemAllocator{})
	require.NoError(t, err)

	e1, err := lr.push(10, 1, false)
	require.NoError(t, err)

	top, err := lr.peek()
	require.NoError(t, err)
	assert.Same(t, e1, top)

	lr.pop()
	_, err = lr.peek()
	assert.Error(t, err)
}

func TestLockRecordExhaustionErrors(t *testing.T) {
	lr, err := NewLockRecord(1, memblock.SystemAllocator{})
	require.NoError(t, err)

	_, err = lr.push(0, 1, false)
	require.NoError(t, err)

	_, err = lr.push(0, 1, false)
	assert.Error(t, err)
}

func TestLockRecordContains(t *testing.T) {
	lr, err := NewLockRecord(4, memblock.SystemAllocator{})
	require.NoError(t, err)

	e, err := lr.push(0, 1, false)
	require.NoError(t, err)

	require.True(t, lr.contains(uintptr(unsafe.Pointer(e))))
	assert.False(t, lr.contains(0))
}
