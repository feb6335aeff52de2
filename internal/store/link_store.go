package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/charlesng35/linker/internal/models"
	"github.com/charlesng35/linker/pkg/metrics"
)

var (
	// ErrCodeTaken indicates an insert hit the unique index on code.
	ErrCodeTaken = errors.New("link store: code already taken")
)

// LinkStore persists link records. The database is the single serialization
// point for durable state; every method is safe under concurrent invocation
// from multiple engine instances.
type LinkStore struct {
	db *gorm.DB
}

// NewLinkStore constructs a link store once a database handle is supplied.
func NewLinkStore(db *gorm.DB) (*LinkStore, error) {
	if db == nil {
		return nil, errors.New("link store: db is required")
	}
	return &LinkStore{db: db}, nil
}

func ensuredContext(ctx context.Context) context.Context {
	if ctx == nil {
		return context.Background()
	}
	return ctx
}

func observe(operation string, start time.Time) {
	metrics.StoreLatency.WithLabelValues(operation).Observe(time.Since(start).Seconds())
}

// Insert atomically creates an active link row. The unique index on code is
// the collision detector: a duplicate key surfaces as ErrCodeTaken regardless
// of the existing row's status.
func (s *LinkStore) Insert(ctx context.Context, code, destination string, hidden bool) (*models.Link, error) {
	ctx = ensuredContext(ctx)
	defer observe("insert", time.Now())

	link := models.Link{
		Code:        code,
		Destination: destination,
		Hidden:      hidden,
		Status:      models.LinkStatusActive,
	}

	if err := s.db.WithContext(ctx).Create(&link).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, fmt.Errorf("%w: %s", ErrCodeTaken, code)
		}
		return nil, fmt.Errorf("link store: insert %s: %w", code, err)
	}

	return &link, nil
}

// FetchActive returns the link for code when it is active, or nil when the
// code is absent or deleted. The caller decides how to represent the latter.
func (s *LinkStore) FetchActive(ctx context.Context, code string) (*models.Link, error) {
	ctx = ensuredContext(ctx)
	defer observe("fetch_active", time.Now())

	var link models.Link
	err := s.db.WithContext(ctx).
		Where("code = ? AND status = ?", code, models.LinkStatusActive).
		Take(&link).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("link store: fetch %s: %w", code, err)
	}

	return &link, nil
}

// FetchStatus reports the lifecycle status for code. The boolean is false when
// no row exists for the code at all.
func (s *LinkStore) FetchStatus(ctx context.Context, code string) (models.LinkStatus, bool, error) {
	ctx = ensuredContext(ctx)
	defer observe("fetch_status", time.Now())

	var link models.Link
	err := s.db.WithContext(ctx).
		Select("status").
		Where("code = ?", code).
		Take(&link).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("link store: fetch status %s: %w", code, err)
	}

	return link.Status, true, nil
}

// MarkDeleted transitions a link from active to deleted. It reports whether a
// row was actually transitioned; false means the code was absent or already
// deleted. The WHERE clause makes the transition atomic under concurrent
// deletes.
func (s *LinkStore) MarkDeleted(ctx context.Context, code string) (bool, error) {
	ctx = ensuredContext(ctx)
	defer observe("mark_deleted", time.Now())

	now := time.Now().UTC()
	result := s.db.WithContext(ctx).
		Model(&models.Link{}).
		Where("code = ? AND status = ?", code, models.LinkStatusActive).
		Updates(map[string]interface{}{
			"status":     models.LinkStatusDeleted,
			"deleted_at": now,
			"updated_at": now,
		})
	if result.Error != nil {
		return false, fmt.Errorf("link store: mark deleted %s: %w", code, result.Error)
	}

	return result.RowsAffected > 0, nil
}

// FindActiveByDestination returns the most recently created active link for a
// destination, or nil when none exists.
func (s *LinkStore) FindActiveByDestination(ctx context.Context, destination string) (*models.Link, error) {
	ctx = ensuredContext(ctx)
	defer observe("reverse", time.Now())

	var link models.Link
	err := s.db.WithContext(ctx).
		Where("destination = ? AND status = ?", destination, models.LinkStatusActive).
		Order("created_at DESC").
		Take(&link).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("link store: reverse lookup: %w", err)
	}

	return &link, nil
}

// List returns one page of links ordered by creation time, newest first,
// along with the total row count.
func (s *LinkStore) List(ctx context.Context, offset, limit int) ([]models.Link, int64, error) {
	ctx = ensuredContext(ctx)
	defer observe("list", time.Now())

	if limit <= 0 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}

	var total int64
	if err := s.db.WithContext(ctx).Model(&models.Link{}).Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("link store: count: %w", err)
	}

	var links []models.Link
	err := s.db.WithContext(ctx).
		Order("created_at DESC").
		Offset(offset).
		Limit(limit).
		Find(&links).Error
	if err != nil {
		return nil, 0, fmt.Errorf("link store: list: %w", err)
	}

	return links, total, nil
}

// CountByStatus returns the number of rows per lifecycle status.
func (s *LinkStore) CountByStatus(ctx context.Context) (map[models.LinkStatus]int64, error) {
	ctx = ensuredContext(ctx)
	defer observe("count_by_status", time.Now())

	var rows []struct {
		Status models.LinkStatus
		Total  int64
	}
	err := s.db.WithContext(ctx).
		Model(&models.Link{}).
		Select("status, COUNT(*) AS total").
		Group("status").
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("link store: count by status: %w", err)
	}

	counts := make(map[models.LinkStatus]int64, len(rows))
	for _, row := range rows {
		counts[row.Status] = row.Total
	}
	return counts, nil
}

// PurgeDeleted permanently removes tombstoned rows whose deletion happened
// before the cutoff. It returns the number of rows removed.
func (s *LinkStore) PurgeDeleted(ctx context.Context, cutoff time.Time) (int64, error) {
	ctx = ensuredContext(ctx)
	defer observe("purge", time.Now())

	result := s.db.WithContext(ctx).
		Where("status = ? AND deleted_at < ?", models.LinkStatusDeleted, cutoff).
		Delete(&models.Link{})
	if result.Error != nil {
		return 0, fmt.Errorf("link store: purge deleted: %w", result.Error)
	}

	return result.RowsAffected, nil
}
