package idgen

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSonyflakeGenerator_Unique(t *testing.T) {
	gen, err := NewSonyflakeGenerator(7)
	require.NoError(t, err)

	seen := make(map[string]struct{}, 1000)
	for i := 0; i < 1000; i++ {
		id, err := gen.NextID()
		require.NoError(t, err)
		_, dup := seen[id]
		assert.False(t, dup, "duplicate id %s", id)
		seen[id] = struct{}{}
	}
}

func TestUUIDGenerator(t *testing.T) {
	id, err := NewUUIDGenerator().NextID()
	require.NoError(t, err)

	parsed, err := uuid.Parse(id)
	require.NoError(t, err)
	assert.Equal(t, uuid.Version(4), parsed.Version())
}

func TestNextID_DefaultGenerator(t *testing.T) {
	a, err := NextID()
	require.NoError(t, err)
	b, err := NextID()
	require.NoError(t, err)
	assert.NotEqual(t, a, b)
}
