package memblock

import (
	"testing"
	"unsafe"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRoundsUpToPowerOfTwo(t *testing.T) {
	b, err := New(100, MmapAllocator{})
	require.NoError(t, err)
	defer b.Destroy()

	assert.Equal(t, uintptr(128), b.Len())
}

func TestStartIsNonNilAndWritable(t *testing.T) {
	b, err := New(64, MmapAllocator{})
	require.NoError(t, err)
	defer b.Destroy()

	assert.NotEqual(t, unsafe.Pointer(nil), b.Start())

	*(*byte)(b.Start()) = 0x42
	assert.Equal(t, byte(0x42), *(*byte)(b.Start()))
}

func TestSystemAllocatorDestroyIsNoop(t *testing.T) {
	b, err := New(64, SystemAllocator{})
	require.NoError(t, err)

	assert.NoError(t, b.Destroy())
}
