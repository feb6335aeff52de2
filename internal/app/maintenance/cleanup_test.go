package maintenance

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/charlesng35/linker/internal/database/testutil"
	"github.com/charlesng35/linker/internal/models"
	"github.com/charlesng35/linker/internal/store"
)

func newTestCleaner(t *testing.T, opts ...Option) (*Cleaner, *store.LinkStore) {
	t.Helper()

	links, err := store.NewLinkStore(testutil.MustOpenTestDB(t))
	require.NoError(t, err)

	return NewCleaner(links, opts...), links
}

func TestCleanerPurgesExpiredTombstones(t *testing.T) {
	ctx := context.Background()

	// The fake clock sits far in the future so every tombstone created now is
	// already past retention.
	future := time.Now().Add(365 * 24 * time.Hour)
	cleaner, links := newTestCleaner(t,
		WithRetention(30*24*time.Hour),
		WithNow(func() time.Time { return future }),
	)

	for _, code := range []string{"dead0001", "dead0002", "live0001"} {
		_, err := links.Insert(ctx, code, "https://example.com", false)
		require.NoError(t, err)
	}
	for _, code := range []string{"dead0001", "dead0002"} {
		_, err := links.MarkDeleted(ctx, code)
		require.NoError(t, err)
	}

	require.NoError(t, cleaner.RunOnce(ctx))

	counts, err := links.CountByStatus(ctx)
	require.NoError(t, err)
	require.Equal(t, int64(1), counts[models.LinkStatusActive])
	require.Zero(t, counts[models.LinkStatusDeleted])
}

func TestCleanerKeepsRecentTombstones(t *testing.T) {
	ctx := context.Background()
	cleaner, links := newTestCleaner(t, WithRetention(30*24*time.Hour))

	_, err := links.Insert(ctx, "dead0001", "https://example.com", false)
	require.NoError(t, err)
	_, err = links.MarkDeleted(ctx, "dead0001")
	require.NoError(t, err)

	require.NoError(t, cleaner.RunOnce(ctx))

	// The tombstone is younger than retention and must survive.
	counts, err := links.CountByStatus(ctx)
	require.NoError(t, err)
	require.Equal(t, int64(1), counts[models.LinkStatusDeleted])
}

func TestCleanerRequiresStore(t *testing.T) {
	cleaner := NewCleaner(nil)
	require.Error(t, cleaner.RunOnce(context.Background()))
}

func TestCleanerStartAndStop(t *testing.T) {
	cleaner, _ := newTestCleaner(t)

	require.NoError(t, cleaner.Start())
	done := cleaner.Stop()

	select {
	case <-done.Done():
	case <-time.After(time.Second):
		t.Fatal("scheduler did not stop in time")
	}
}
