package maintenance

import (
	"context"
	"errors"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/charlesng35/linker/internal/models"
	"github.com/charlesng35/linker/internal/store"
	"github.com/charlesng35/linker/pkg/logger"
	"github.com/charlesng35/linker/pkg/metrics"
)

const (
	defaultRetention = 30 * 24 * time.Hour
	defaultPurgeSpec = "@daily"
	defaultStatsSpec = "@hourly"
)

// Cleaner coordinates background maintenance: purging tombstoned links past
// their retention window and refreshing the stored-link gauges. Tombstone
// rows must outlive the cache TTL by a wide margin so racing readers keep
// observing a definitive tombstone; retention enforces the upper bound.
type Cleaner struct {
	links     *store.LinkStore
	cron      *cron.Cron
	now       func() time.Time
	log       *zap.Logger
	retention time.Duration

	purgeSchedule string
	statsSchedule string
}

// Option customises the Cleaner.
type Option func(*Cleaner)

// WithCron injects a preconfigured cron instance, primarily for testing.
func WithCron(c *cron.Cron) Option {
	return func(cleaner *Cleaner) {
		if c != nil {
			cleaner.cron = c
		}
	}
}

// WithNow overrides the clock used for retention comparisons.
func WithNow(now func() time.Time) Option {
	return func(cleaner *Cleaner) {
		if now != nil {
			cleaner.now = now
		}
	}
}

// WithRetention adjusts how long tombstoned rows are kept before purging.
func WithRetention(retention time.Duration) Option {
	return func(cleaner *Cleaner) {
		if retention > 0 {
			cleaner.retention = retention
		}
	}
}

// WithPurgeSchedule overrides the cron specification for the purge job.
func WithPurgeSchedule(spec string) Option {
	return func(cleaner *Cleaner) {
		if spec != "" {
			cleaner.purgeSchedule = spec
		}
	}
}

// NewCleaner constructs a Cleaner with sensible defaults.
func NewCleaner(links *store.LinkStore, opts ...Option) *Cleaner {
	cleaner := &Cleaner{
		links:         links,
		now:           time.Now,
		retention:     defaultRetention,
		purgeSchedule: defaultPurgeSpec,
		statsSchedule: defaultStatsSpec,
		log:           logger.WithModule("maintenance"),
	}

	for _, opt := range opts {
		opt(cleaner)
	}

	if cleaner.cron == nil {
		cleaner.cron = cron.New(cron.WithLogger(cron.DiscardLogger))
	}

	return cleaner
}

// Start registers the maintenance jobs with the cron scheduler and launches it.
func (c *Cleaner) Start() error {
	if c.links == nil {
		return nil
	}

	if _, err := c.cron.AddFunc(c.purgeSchedule, func() {
		if _, err := c.purge(context.Background()); err != nil {
			c.log.Warn("tombstone purge failed", zap.Error(err))
		}
	}); err != nil {
		return err
	}

	if _, err := c.cron.AddFunc(c.statsSchedule, func() {
		if err := c.refreshStats(context.Background()); err != nil {
			c.log.Warn("stats refresh failed", zap.Error(err))
		}
	}); err != nil {
		return err
	}

	c.cron.Start()
	return nil
}

// Stop halts the underlying scheduler, waiting for any running jobs to complete.
func (c *Cleaner) Stop() context.Context {
	if c.cron == nil {
		return context.Background()
	}
	return c.cron.Stop()
}

// RunOnce executes all maintenance routines sequentially. Primarily used in
// tests and during graceful shutdown.
func (c *Cleaner) RunOnce(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	if c.links == nil {
		return errors.New("maintenance: link store is required")
	}

	var errs error

	if _, err := c.purge(ctx); err != nil {
		errs = multierr.Append(errs, err)
	}
	if err := c.refreshStats(ctx); err != nil {
		errs = multierr.Append(errs, err)
	}

	return errs
}

func (c *Cleaner) purge(ctx context.Context) (int64, error) {
	cutoff := c.now().Add(-c.retention)
	removed, err := c.links.PurgeDeleted(ctx, cutoff)
	if err != nil {
		return 0, err
	}
	if removed > 0 {
		c.log.Info("purged tombstoned links", zap.Int64("removed", removed))
	}
	return removed, nil
}

func (c *Cleaner) refreshStats(ctx context.Context) error {
	counts, err := c.links.CountByStatus(ctx)
	if err != nil {
		return err
	}

	for _, status := range []models.LinkStatus{models.LinkStatusActive, models.LinkStatusDeleted} {
		metrics.Links.WithLabelValues(string(status)).Set(float64(counts[status]))
	}
	return nil
}
