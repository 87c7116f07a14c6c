package webhook

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryDeduper(t *testing.T) {
	ctx := context.Background()

	t.Run("unmarked events are not seen", func(t *testing.T) {
		d := NewMemoryDeduper(time.Hour)

		seen, err := d.Seen(ctx, "evt_1")
		require.NoError(t, err)
		assert.False(t, seen)
	})

	t.Run("marked events are seen", func(t *testing.T) {
		d := NewMemoryDeduper(time.Hour)

		require.NoError(t, d.MarkProcessed(ctx, "evt_1"))

		seen, err := d.Seen(ctx, "evt_1")
		require.NoError(t, err)
		assert.True(t, seen)
	})

	t.Run("distinct events are independent", func(t *testing.T) {
		d := NewMemoryDeduper(time.Hour)
		require.NoError(t, d.MarkProcessed(ctx, "evt_a"))

		for _, id := range []string{"evt_b", "evt_c"} {
			seen, err := d.Seen(ctx, id)
			require.NoError(t, err)
			assert.False(t, seen, id)
		}
	})

	t.Run("empty event IDs always pass", func(t *testing.T) {
		d := NewMemoryDeduper(time.Hour)
		require.NoError(t, d.MarkProcessed(ctx, ""))

		seen, err := d.Seen(ctx, "")
		require.NoError(t, err)
		assert.False(t, seen)
	})

	t.Run("marks lapse after retention", func(t *testing.T) {
		d := NewMemoryDeduper(time.Minute)
		now := time.Unix(1_700_000_000, 0)
		d.now = func() time.Time { return now }

		require.NoError(t, d.MarkProcessed(ctx, "evt_ttl"))

		now = now.Add(30 * time.Second)
		seen, err := d.Seen(ctx, "evt_ttl")
		require.NoError(t, err)
		assert.True(t, seen)

		now = now.Add(31 * time.Second)
		lapsed, err := d.Seen(ctx, "evt_ttl")
		require.NoError(t, err)
		assert.False(t, lapsed)
	})

	t.Run("concurrent marks and reads are safe", func(t *testing.T) {
		d := NewMemoryDeduper(time.Hour)

		var wg sync.WaitGroup
		for i := 0; i < 32; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				assert.NoError(t, d.MarkProcessed(ctx, "evt_race"))
				_, err := d.Seen(ctx, "evt_race")
				assert.NoError(t, err)
			}()
		}
		wg.Wait()

		seen, err := d.Seen(ctx, "evt_race")
		require.NoError(t, err)
		assert.True(t, seen)
	})
}
