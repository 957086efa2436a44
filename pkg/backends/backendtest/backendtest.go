// Package backendtest holds the behavior every common.Backend must show.
// Driver packages run it against an opened backend from their tests.
package backendtest

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chmenegatti/typeprefs/pkg/backends/common"
)

// Run exercises an opened, empty backend. It leaves the backend open.
func Run(t *testing.T, b common.Backend) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	t.Run("Ping", func(t *testing.T) {
		require.NoError(t, b.Ping(ctx))
	})

	t.Run("MissingKey", func(t *testing.T) {
		v, found, err := b.GetInt(ctx, "absent.key")
		require.NoError(t, err)
		assert.False(t, found)
		assert.Zero(t, v)
	})

	t.Run("PutGetOverwrite", func(t *testing.T) {
		require.NoError(t, b.PutInt(ctx, "robot.speed", 42))
		v, found, err := b.GetInt(ctx, "robot.speed")
		require.NoError(t, err)
		assert.True(t, found)
		assert.Equal(t, 42, v)

		require.NoError(t, b.PutInt(ctx, "robot.speed", -7))
		v, _, err = b.GetInt(ctx, "robot.speed")
		require.NoError(t, err)
		assert.Equal(t, -7, v)
	})

	t.Run("StoredZeroIsFound", func(t *testing.T) {
		require.NoError(t, b.PutInt(ctx, "robot.zero", 0))
		v, found, err := b.GetInt(ctx, "robot.zero")
		require.NoError(t, err)
		assert.True(t, found, "a stored zero must be distinguishable from an absent key")
		assert.Zero(t, v)
	})

	t.Run("Keys", func(t *testing.T) {
		require.NoError(t, b.PutInt(ctx, "audio.volume", 80))
		keys, err := b.Keys(ctx)
		require.NoError(t, err)
		assert.Equal(t, []string{"audio.volume", "robot.speed", "robot.zero"}, keys)
	})

	t.Run("Delete", func(t *testing.T) {
		require.NoError(t, b.Delete(ctx, "robot.speed"))
		_, found, err := b.GetInt(ctx, "robot.speed")
		require.NoError(t, err)
		assert.False(t, found)

		require.NoError(t, b.Delete(ctx, "robot.speed"), "deleting an absent key is not an error")

		// Other keys are untouched.
		v, found, err := b.GetInt(ctx, "audio.volume")
		require.NoError(t, err)
		assert.True(t, found)
		assert.Equal(t, 80, v)
	})

	t.Run("ConcurrentWriters", func(t *testing.T) {
		var wg sync.WaitGroup
		for i := 0; i < 8; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				assert.NoError(t, b.PutInt(ctx, "robot.counter", i))
			}(i)
		}
		wg.Wait()
		v, found, err := b.GetInt(ctx, "robot.counter")
		require.NoError(t, err)
		assert.True(t, found)
		assert.GreaterOrEqual(t, v, 0)
		assert.Less(t, v, 8)
	})
}

// RunClosed checks the behavior of a backend that was never opened or was closed.
func RunClosed(t *testing.T, b common.Backend) {
	t.Helper()
	ctx := context.Background()

	assert.ErrorIs(t, b.Ping(ctx), common.ErrNotOpen)
	_, _, err := b.GetInt(ctx, "k")
	assert.ErrorIs(t, err, common.ErrNotOpen)
	assert.ErrorIs(t, b.PutInt(ctx, "k", 1), common.ErrNotOpen)
	assert.ErrorIs(t, b.Delete(ctx, "k"), common.ErrNotOpen)
	_, err = b.Keys(ctx)
	assert.ErrorIs(t, err, common.ErrNotOpen)
	assert.ErrorIs(t, b.Close(), common.ErrNotOpen)
}
