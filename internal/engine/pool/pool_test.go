package pool

import (
	"math/rand"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Aidin1998/trailex/internal/engine/model"
)

func TestAddRemoveBasics(t *testing.T) {
	ix := NewIndex(0)
	a, b, c := uuid.New(), uuid.New(), uuid.New()

	require.NoError(t, ix.Add(a))
	require.NoError(t, ix.Add(b))
	require.NoError(t, ix.Add(c))
	require.Equal(t, 3, ix.Len())
	assert.True(t, ix.Contains(b))

	// Removing the head swaps the tail into its slot.
	require.True(t, ix.Remove(a))
	assert.Equal(t, 2, ix.Len())
	assert.False(t, ix.Contains(a))
	assert.Equal(t, c, ix.At(0))
	assert.Equal(t, b, ix.At(1))

	// Removing a non-member is a no-op.
	assert.False(t, ix.Remove(a))
	assert.Equal(t, 2, ix.Len())
}

func TestAddIdempotent(t *testing.T) {
	ix := NewIndex(0)
	id := uuid.New()
	require.NoError(t, ix.Add(id))
	require.NoError(t, ix.Add(id))
	assert.Equal(t, 1, ix.Len())
}

func TestCapacity(t *testing.T) {
	ix := NewIndex(2)
	require.NoError(t, ix.Add(uuid.New()))
	require.NoError(t, ix.Add(uuid.New()))
	err := ix.Add(uuid.New())
	require.ErrorIs(t, err, model.ErrPoolAtCapacity)

	// Removal frees a slot.
	require.True(t, ix.Remove(ix.At(0)))
	require.NoError(t, ix.Add(uuid.New()))
}

// TestPositionMapAfterRandomChurn drives repeated random insert/remove
// sequences and checks the id→position map stays consistent with the arena.
func TestPositionMapAfterRandomChurn(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	ix := NewIndex(0)
	live := make([]uuid.UUID, 0, 256)

	for step := 0; step < 5000; step++ {
		if len(live) == 0 || rng.Intn(2) == 0 {
			id := uuid.New()
			require.NoError(t, ix.Add(id))
			live = append(live, id)
		} else {
			i := rng.Intn(len(live))
			require.True(t, ix.Remove(live[i]))
			live[i] = live[len(live)-1]
			live = live[:len(live)-1]
		}
	}

	require.Equal(t, len(live), ix.Len())
	for _, id := range live {
		require.True(t, ix.Contains(id))
	}
	// Every arena slot round-trips through the position map.
	for i := 0; i < ix.Len(); i++ {
		id := ix.At(i)
		require.True(t, ix.Contains(id))
		require.True(t, ix.Remove(id))
		require.NoError(t, ix.Add(id))
	}
}

func TestCursorNormalization(t *testing.T) {
	ix := NewIndex(0)
	assert.Equal(t, 0, ix.Cursor())

	for i := 0; i < 4; i++ {
		require.NoError(t, ix.Add(uuid.New()))
	}
	ix.SetCursor(3)
	assert.Equal(t, 3, ix.Cursor())

	// Shrinking below the cursor wraps it.
	require.True(t, ix.Remove(ix.At(3)))
	require.True(t, ix.Remove(ix.At(2)))
	assert.Equal(t, 1, ix.Cursor())

	require.True(t, ix.Remove(ix.At(0)))
	require.True(t, ix.Remove(ix.At(0)))
	assert.Equal(t, 0, ix.Cursor())
}
