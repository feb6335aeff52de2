package resolver

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/charlesng35/linker/internal/models"
	"github.com/charlesng35/linker/internal/store"
	"github.com/charlesng35/linker/pkg/logger"
	"github.com/charlesng35/linker/pkg/metrics"
)

var (
	// ErrNotFound indicates the code does not resolve. Deleted and
	// never-registered codes are deliberately indistinguishable to callers,
	// matching the cache's tombstone semantics.
	ErrNotFound = errors.New("resolver: code not found")

	// ErrExhausted indicates the create retry bound was hit without finding a
	// free code. The engine never retries past the bound; callers may retry
	// the whole create.
	ErrExhausted = errors.New("resolver: code space exhausted")

	// ErrInvalidDestination indicates the destination is not an absolute
	// http(s) URL.
	ErrInvalidDestination = errors.New("resolver: invalid destination")
)

// Store is the persistent source of truth consumed by the engine.
// *store.LinkStore is the production implementation.
type Store interface {
	Insert(ctx context.Context, code, destination string, hidden bool) (*models.Link, error)
	FetchActive(ctx context.Context, code string) (*models.Link, error)
	FetchStatus(ctx context.Context, code string) (models.LinkStatus, bool, error)
	MarkDeleted(ctx context.Context, code string) (bool, error)
	FindActiveByDestination(ctx context.Context, destination string) (*models.Link, error)
	List(ctx context.Context, offset, limit int) ([]models.Link, int64, error)
}

// Resolution is the outcome of a successful resolve.
type Resolution struct {
	Destination string
	Hidden      bool
}

// Config tunes the engine.
type Config struct {
	// MaxAttempts bounds generate+insert attempts per create.
	MaxAttempts int
	// StoreTimeout caps each store round trip. Zero disables the deadline.
	StoreTimeout time.Duration
	// Cache bounds the resolution cache.
	Cache CacheConfig
}

// Engine orchestrates generator, cache, and store to implement create,
// resolve, and delete. It holds no durable state of its own: the store owns
// truth, the cache holds a time-bounded projection.
type Engine struct {
	store        Store
	gen          *Generator
	cache        *Cache
	maxAttempts  int
	storeTimeout time.Duration
	log          *zap.Logger
}

// NewEngine constructs a resolution engine. Each engine owns its cache, so
// tests get isolated cache state from a fresh engine.
func NewEngine(s Store, gen *Generator, cfg Config) (*Engine, error) {
	if s == nil {
		return nil, errors.New("resolver: store is required")
	}
	if gen == nil {
		gen = NewGenerator(DefaultAlphabet, DefaultCodeLength)
	}

	maxAttempts := cfg.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = 5
	}

	return &Engine{
		store:        s,
		gen:          gen,
		cache:        NewCache(cfg.Cache),
		maxAttempts:  maxAttempts,
		storeTimeout: cfg.StoreTimeout,
		log:          logger.WithModule("resolver"),
	}, nil
}

// Cache exposes the engine's resolution cache for inspection in tests.
func (e *Engine) Cache() *Cache {
	return e.cache
}

// Create registers a destination and returns the newly assigned link. It
// retries only on code collisions, up to the configured bound.
func (e *Engine) Create(ctx context.Context, destination string, hidden bool) (*models.Link, error) {
	normalized, err := normalizeDestination(destination)
	if err != nil {
		metrics.Creates.WithLabelValues("invalid").Inc()
		return nil, err
	}

	for attempt := 1; attempt <= e.maxAttempts; attempt++ {
		code := e.gen.Generate()
		metrics.CreateAttempts.Inc()

		sctx, cancel := e.storeContext(ctx)
		link, err := e.store.Insert(sctx, code, normalized, hidden)
		cancel()

		if errors.Is(err, store.ErrCodeTaken) {
			e.log.Debug("code collision, retrying",
				zap.String("code", code),
				zap.Int("attempt", attempt),
			)
			continue
		}
		if err != nil {
			metrics.Creates.WithLabelValues("error").Inc()
			return nil, err
		}

		// Write through so reads immediately after create hit the cache.
		e.cache.Put(code, Value{Destination: normalized, Hidden: hidden})
		metrics.Creates.WithLabelValues("success").Inc()
		e.log.Debug("link created", zap.String("code", code), zap.Int("attempts", attempt))
		return link, nil
	}

	metrics.Creates.WithLabelValues("exhausted").Inc()
	return nil, fmt.Errorf("%w after %d attempts", ErrExhausted, e.maxAttempts)
}

// Resolve returns the destination for code. The cache absorbs repeat lookups,
// including lookups of dead codes via tombstones; misses are populated from
// the store with at most one query in flight per code.
func (e *Engine) Resolve(ctx context.Context, code string) (Resolution, error) {
	value, hit, err := e.cache.GetOrPopulate(ctx, code, func(ctx context.Context) (Value, error) {
		return e.populate(ctx, code)
	})

	if hit {
		metrics.CacheLookups.WithLabelValues("hit").Inc()
	} else {
		metrics.CacheLookups.WithLabelValues("miss").Inc()
	}

	if err != nil {
		metrics.Resolves.WithLabelValues("error").Inc()
		return Resolution{}, err
	}
	if value.Tombstone {
		metrics.Resolves.WithLabelValues("not_found").Inc()
		return Resolution{}, fmt.Errorf("%w: %s", ErrNotFound, code)
	}

	metrics.Resolves.WithLabelValues("success").Inc()
	return Resolution{Destination: value.Destination, Hidden: value.Hidden}, nil
}

// populate is the cache-miss path: one store query per in-flight code.
func (e *Engine) populate(ctx context.Context, code string) (Value, error) {
	sctx, cancel := e.storeContext(ctx)
	defer cancel()

	link, err := e.store.FetchActive(sctx, code)
	if err != nil {
		return Value{}, err
	}
	if link != nil {
		return Value{Destination: link.Destination, Hidden: link.Hidden}, nil
	}

	// Absent and deleted both cache as a tombstone; the status lookup only
	// feeds observability.
	status, found, err := e.store.FetchStatus(sctx, code)
	if err != nil {
		return Value{}, err
	}

	reason := "unknown"
	if found && status == models.LinkStatusDeleted {
		reason = "deleted"
	}
	metrics.Tombstones.WithLabelValues(reason).Inc()
	e.log.Debug("caching tombstone", zap.String("code", code), zap.String("reason", reason))

	return Value{Tombstone: true}, nil
}

// Delete tombstones a code. Deleting an absent or already-deleted code returns
// ErrNotFound, so the second of two identical deletes fails while the first
// succeeds. The cache entry is overwritten with a tombstone, not merely
// invalidated: a racing populate that read the store before the transition
// would otherwise win the cache back with a stale value. The residual
// staleness window is one store round trip, between the populate's read and
// this write-through.
func (e *Engine) Delete(ctx context.Context, code string) error {
	sctx, cancel := e.storeContext(ctx)
	transitioned, err := e.store.MarkDeleted(sctx, code)
	cancel()

	if err != nil {
		metrics.Deletes.WithLabelValues("error").Inc()
		return err
	}
	if !transitioned {
		metrics.Deletes.WithLabelValues("not_found").Inc()
		return fmt.Errorf("%w: %s", ErrNotFound, code)
	}

	e.cache.Put(code, Value{Tombstone: true})
	metrics.Deletes.WithLabelValues("success").Inc()
	e.log.Debug("link deleted", zap.String("code", code))
	return nil
}

// Reverse returns the most recent active link for a destination.
func (e *Engine) Reverse(ctx context.Context, destination string) (*models.Link, error) {
	normalized, err := normalizeDestination(destination)
	if err != nil {
		return nil, err
	}

	sctx, cancel := e.storeContext(ctx)
	defer cancel()

	link, err := e.store.FindActiveByDestination(sctx, normalized)
	if err != nil {
		return nil, err
	}
	if link == nil {
		return nil, fmt.Errorf("%w: destination not registered", ErrNotFound)
	}

	return link, nil
}

// List returns one page of registered links and the total count.
func (e *Engine) List(ctx context.Context, page, perPage int) ([]models.Link, int64, error) {
	if page <= 0 {
		page = 1
	}
	if perPage <= 0 {
		perPage = 20
	}

	sctx, cancel := e.storeContext(ctx)
	defer cancel()

	return e.store.List(sctx, (page-1)*perPage, perPage)
}

func (e *Engine) storeContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if ctx == nil {
		ctx = context.Background()
	}
	if e.storeTimeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, e.storeTimeout)
}

// normalizeDestination validates that the destination is an absolute http(s)
// URL and returns its canonical string form.
func normalizeDestination(destination string) (string, error) {
	destination = strings.TrimSpace(destination)
	if destination == "" {
		return "", fmt.Errorf("%w: empty", ErrInvalidDestination)
	}

	parsed, err := url.Parse(destination)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidDestination, err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return "", fmt.Errorf("%w: scheme %q not allowed", ErrInvalidDestination, parsed.Scheme)
	}
	if parsed.Host == "" {
		return "", fmt.Errorf("%w: missing host", ErrInvalidDestination)
	}

	return parsed.String(), nil
}
