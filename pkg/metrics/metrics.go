package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// CreateAttempts counts individual code generation + insert attempts,
	// including collision retries.
	CreateAttempts = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "linker_create_attempts_total",
			Help: "Total number of short code insert attempts",
		},
	)

	// Creates records link creations by outcome (success|invalid|exhausted|error).
	Creates = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "linker_creates_total",
			Help: "Total number of link create operations",
		},
		[]string{"result"},
	)

	// CacheLookups counts resolution cache lookups by outcome (hit|miss).
	CacheLookups = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "linker_cache_lookups_total",
			Help: "Total number of resolution cache lookups",
		},
		[]string{"result"},
	)

	// Resolves records resolution outcomes (success|not_found|error).
	Resolves = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "linker_resolves_total",
			Help: "Total number of resolve operations",
		},
		[]string{"result"},
	)

	// Deletes records delete outcomes (success|not_found|error).
	Deletes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "linker_deletes_total",
			Help: "Total number of delete operations",
		},
		[]string{"result"},
	)

	// Tombstones counts tombstone cache population by reason (deleted|unknown).
	Tombstones = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "linker_tombstones_total",
			Help: "Total number of tombstone cache entries populated",
		},
		[]string{"reason"},
	)

	// Links tracks the number of stored link rows per lifecycle status.
	// Refreshed by the maintenance stats job.
	Links = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "linker_links",
			Help: "Number of stored link rows by status",
		},
		[]string{"status"},
	)

	// StoreLatency measures persistent store call latencies per operation.
	StoreLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "linker_store_latency_seconds",
			Help:    "Persistent store call latency",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"operation"},
	)

	// APILatency measures HTTP request latencies.
	APILatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "linker_api_latency_seconds",
			Help:    "API endpoint latency",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)
)
