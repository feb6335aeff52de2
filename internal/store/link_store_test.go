package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/charlesng35/linker/internal/database/testutil"
	"github.com/charlesng35/linker/internal/models"
)

func newTestStore(t *testing.T) *LinkStore {
	t.Helper()

	links, err := NewLinkStore(testutil.MustOpenTestDB(t))
	require.NoError(t, err)
	return links
}

func TestLinkStoreInsert(t *testing.T) {
	links := newTestStore(t)
	ctx := context.Background()

	link, err := links.Insert(ctx, "abc12345", "https://example.com", false)
	require.NoError(t, err)
	require.NotEmpty(t, link.ID)
	require.Equal(t, models.LinkStatusActive, link.Status)
	require.False(t, link.Hidden)
}

func TestLinkStoreInsertDuplicateCode(t *testing.T) {
	links := newTestStore(t)
	ctx := context.Background()

	_, err := links.Insert(ctx, "abc12345", "https://example.com", false)
	require.NoError(t, err)

	_, err = links.Insert(ctx, "abc12345", "https://other.example.com", false)
	require.ErrorIs(t, err, ErrCodeTaken)

	// Tombstoned rows hold their code: the unique index does not distinguish
	// lifecycle status, so a dead code still collides.
	transitioned, err := links.MarkDeleted(ctx, "abc12345")
	require.NoError(t, err)
	require.True(t, transitioned)

	_, err = links.Insert(ctx, "abc12345", "https://other.example.com", false)
	require.ErrorIs(t, err, ErrCodeTaken)
}

func TestLinkStoreFetchActive(t *testing.T) {
	links := newTestStore(t)
	ctx := context.Background()

	_, err := links.Insert(ctx, "abc12345", "https://example.com", true)
	require.NoError(t, err)

	link, err := links.FetchActive(ctx, "abc12345")
	require.NoError(t, err)
	require.NotNil(t, link)
	require.Equal(t, "https://example.com", link.Destination)
	require.True(t, link.Hidden)

	link, err = links.FetchActive(ctx, "missing")
	require.NoError(t, err)
	require.Nil(t, link)

	// Deleted links read the same as absent ones.
	_, err = links.MarkDeleted(ctx, "abc12345")
	require.NoError(t, err)

	link, err = links.FetchActive(ctx, "abc12345")
	require.NoError(t, err)
	require.Nil(t, link)
}

func TestLinkStoreFetchStatus(t *testing.T) {
	links := newTestStore(t)
	ctx := context.Background()

	_, found, err := links.FetchStatus(ctx, "missing")
	require.NoError(t, err)
	require.False(t, found)

	_, err = links.Insert(ctx, "abc12345", "https://example.com", false)
	require.NoError(t, err)

	status, found, err := links.FetchStatus(ctx, "abc12345")
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, models.LinkStatusActive, status)

	_, err = links.MarkDeleted(ctx, "abc12345")
	require.NoError(t, err)

	status, found, err = links.FetchStatus(ctx, "abc12345")
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, models.LinkStatusDeleted, status)
}

func TestLinkStoreMarkDeleted(t *testing.T) {
	links := newTestStore(t)
	ctx := context.Background()

	_, err := links.Insert(ctx, "abc12345", "https://example.com", false)
	require.NoError(t, err)

	transitioned, err := links.MarkDeleted(ctx, "abc12345")
	require.NoError(t, err)
	require.True(t, transitioned)

	// The transition fires exactly once.
	transitioned, err = links.MarkDeleted(ctx, "abc12345")
	require.NoError(t, err)
	require.False(t, transitioned)

	transitioned, err = links.MarkDeleted(ctx, "missing")
	require.NoError(t, err)
	require.False(t, transitioned)
}

func TestLinkStoreFindActiveByDestination(t *testing.T) {
	links := newTestStore(t)
	ctx := context.Background()

	first, err := links.Insert(ctx, "first000", "https://example.com/page", false)
	require.NoError(t, err)
	time.Sleep(5 * time.Millisecond) // distinct created_at ordering
	second, err := links.Insert(ctx, "second00", "https://example.com/page", false)
	require.NoError(t, err)

	found, err := links.FindActiveByDestination(ctx, "https://example.com/page")
	require.NoError(t, err)
	require.NotNil(t, found)
	require.Equal(t, second.Code, found.Code)

	_, err = links.MarkDeleted(ctx, second.Code)
	require.NoError(t, err)

	found, err = links.FindActiveByDestination(ctx, "https://example.com/page")
	require.NoError(t, err)
	require.NotNil(t, found)
	require.Equal(t, first.Code, found.Code)

	found, err = links.FindActiveByDestination(ctx, "https://example.com/absent")
	require.NoError(t, err)
	require.Nil(t, found)
}

func TestLinkStoreList(t *testing.T) {
	links := newTestStore(t)
	ctx := context.Background()

	codes := []string{"code0001", "code0002", "code0003", "code0004", "code0005"}
	for _, code := range codes {
		_, err := links.Insert(ctx, code, "https://example.com", false)
		require.NoError(t, err)
	}

	page, total, err := links.List(ctx, 0, 3)
	require.NoError(t, err)
	require.Equal(t, int64(5), total)
	require.Len(t, page, 3)

	page, total, err = links.List(ctx, 3, 3)
	require.NoError(t, err)
	require.Equal(t, int64(5), total)
	require.Len(t, page, 2)

	page, total, err = links.List(ctx, 10, 3)
	require.NoError(t, err)
	require.Equal(t, int64(5), total)
	require.Empty(t, page)
}

func TestLinkStoreCountByStatus(t *testing.T) {
	links := newTestStore(t)
	ctx := context.Background()

	for _, code := range []string{"code0001", "code0002", "code0003"} {
		_, err := links.Insert(ctx, code, "https://example.com", false)
		require.NoError(t, err)
	}
	_, err := links.MarkDeleted(ctx, "code0003")
	require.NoError(t, err)

	counts, err := links.CountByStatus(ctx)
	require.NoError(t, err)
	require.Equal(t, int64(2), counts[models.LinkStatusActive])
	require.Equal(t, int64(1), counts[models.LinkStatusDeleted])
}

func TestLinkStorePurgeDeleted(t *testing.T) {
	links := newTestStore(t)
	ctx := context.Background()

	for _, code := range []string{"old00001", "new00001", "live0001"} {
		_, err := links.Insert(ctx, code, "https://example.com", false)
		require.NoError(t, err)
	}
	for _, code := range []string{"old00001", "new00001"} {
		_, err := links.MarkDeleted(ctx, code)
		require.NoError(t, err)
	}

	// Backdate one tombstone past the cutoff.
	stale := time.Now().UTC().Add(-48 * time.Hour)
	err := links.db.Model(&models.Link{}).
		Where("code = ?", "old00001").
		Update("deleted_at", stale).Error
	require.NoError(t, err)

	removed, err := links.PurgeDeleted(ctx, time.Now().UTC().Add(-24*time.Hour))
	require.NoError(t, err)
	require.Equal(t, int64(1), removed)

	// The fresh tombstone and the live link both survive.
	_, found, err := links.FetchStatus(ctx, "old00001")
	require.NoError(t, err)
	require.False(t, found)

	status, found, err := links.FetchStatus(ctx, "new00001")
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, models.LinkStatusDeleted, status)

	live, err := links.FetchActive(ctx, "live0001")
	require.NoError(t, err)
	require.NotNil(t, live)
}
