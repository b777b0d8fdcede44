package metrics

import (
	"sync"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	RequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "mgnrega_request_duration_seconds",
			Help:    "Read path duration in seconds",
			Buckets: []float64{0.005, 0.01, 0.05, 0.1, 0.5, 1, 2, 5},
		},
		[]string{"operation"},
	)

	TierResolutions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mgnrega_tier_resolutions_total",
			Help: "Read requests by the tier that answered them",
		},
		[]string{"operation", "tier"},
	)

	TierOutcomes = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mgnrega_tier_outcomes_total",
			Help: "Lookups per data source by outcome (ok, empty, unavailable)",
		},
		[]string{"tier", "outcome"},
	)

	CacheHits = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mgnrega_cache_hits_total",
			Help: "Total cache hits",
		},
		[]string{"kind"},
	)

	CacheMisses = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mgnrega_cache_misses_total",
			Help: "Total cache misses",
		},
		[]string{"kind"},
	)

	CacheErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mgnrega_cache_errors_total",
			Help: "Cache backend failures swallowed on the read path",
		},
		[]string{"op"},
	)

	SnapshotFilesScanned = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "mgnrega_snapshot_files_scanned_total",
			Help: "Snapshot files opened by the archive reader",
		},
	)

	IngestionRuns = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mgnrega_ingestion_runs_total",
			Help: "Ingestion runs by result",
		},
		[]string{"status"},
	)

	IngestionRecords = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mgnrega_ingestion_records_total",
			Help: "Upstream records by ingestion result (created, updated, skipped)",
		},
		[]string{"result"},
	)

	IngestionDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "mgnrega_ingestion_duration_seconds",
			Help:    "Ingestion run duration in seconds",
			Buckets: []float64{1, 5, 10, 30, 60, 120, 300},
		},
	)

	GeocodeRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mgnrega_geocode_requests_total",
			Help: "Reverse geocode lookups by outcome",
		},
		[]string{"outcome"},
	)
)

var registerOnce sync.Once

func Init() {
	registerOnce.Do(func() {
		prometheus.MustRegister(RequestDuration)
		prometheus.MustRegister(TierResolutions)
		prometheus.MustRegister(TierOutcomes)
		prometheus.MustRegister(CacheHits)
		prometheus.MustRegister(CacheMisses)
		prometheus.MustRegister(CacheErrors)
		prometheus.MustRegister(SnapshotFilesScanned)
		prometheus.MustRegister(IngestionRuns)
		prometheus.MustRegister(IngestionRecords)
		prometheus.MustRegister(IngestionDuration)
		prometheus.MustRegister(GeocodeRequests)
	})
}

func MetricsHandler() fiber.Handler {
	return adaptor.HTTPHandler(promhttp.Handler())
}
