package markword

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fmstephe/gc-core/internal/monitor"
)

func TestMonitorRegistryRegisterAndLookup(t *testing.T) {
	r := NewMonitorRegistry()
	m := monitor.New()

	id := r.register(m)
	assert.Equal(t, uint64(1), id)

	got, err := r.lookup(id)
	require.NoError(t, err)
	assert.Same(t, m, got)
}

func TestMonitorRegistryLookupOutOfRangeErrors(t *testing.T) {
	r := NewMonitorRegistry()

	_, err := r.lookup(0)
	assert.Error(t, err)

	_, err = r.lookup(1)
	assert.Error(t, err)
}

func TestNewMonitorFromDisplacedOwnerPreservesOwner(t *testing.T) {
	m := newMonitorFromDisplacedOwner(42)
	owner, held := m.Owner()
	require.True(t, held)
	assert.Equal(t, uint64(42), owner)
	assert.Equal(t, uint64(1), m.Recursion())
}
