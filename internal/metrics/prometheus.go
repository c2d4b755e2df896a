package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Prometheus metrics for the odds collection core

var (
	// Cycle metrics
	CyclesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "odds_cycles_total",
			Help: "Total number of collection cycles",
		},
		[]string{"status"},
	)

	CycleDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "odds_cycle_duration_seconds",
			Help:    "Duration of collection cycles in seconds",
			Buckets: []float64{.05, .1, .25, .5, 1, 2.5, 5, 10, 30},
		},
	)

	// Ingestion metrics
	RecordsIngested = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "odds_records_ingested_total",
			Help: "Total match records read from source files",
		},
		[]string{"source"},
	)

	RecordsSkipped = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "odds_records_skipped_total",
			Help: "Records skipped because required fields were missing",
		},
		[]string{"source"},
	)

	SourceLoadFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "odds_source_load_failures_total",
			Help: "Source files that were missing or failed to parse",
		},
		[]string{"source"},
	)

	// Linkage metrics
	MatchGroupsFormed = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "odds_match_groups_formed",
			Help: "Match groups produced by the last linkage run",
		},
	)

	MultiSourceGroups = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "odds_multi_source_groups",
			Help: "Match groups with records from more than one source",
		},
	)

	SameSourceCollisions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "odds_same_source_collisions_total",
			Help: "Clusters that held two records from one source and were repaired",
		},
		[]string{"source"},
	)

	// Canonical cache metrics
	CacheEntitiesCreated = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "odds_cache_entities_created_total",
			Help: "New canonical entities registered",
		},
		[]string{"kind"},
	)

	AliasConflictsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "odds_alias_conflicts_total",
			Help: "Aliases seen under a second canonical entity",
		},
		[]string{"kind"},
	)

	CacheSports = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "odds_cache_sports",
			Help: "Canonical sports currently in the cache",
		},
	)

	CacheTeams = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "odds_cache_teams",
			Help: "Canonical teams currently in the cache",
		},
	)

	CacheAliases = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "odds_cache_aliases",
			Help: "Alias index entries currently in the cache",
		},
	)

	// Persistence metrics
	SnapshotWrites = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "odds_snapshot_writes_total",
			Help: "Snapshot write attempts",
		},
		[]string{"file", "status"},
	)

	SnapshotRecoveries = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "odds_snapshot_recoveries_total",
			Help: "Reads that fell back to a backup after a corrupt primary file",
		},
		[]string{"file"},
	)

	LockWaitDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "odds_lock_wait_duration_seconds",
			Help:    "Time spent waiting for the cross-process file lock",
			Buckets: []float64{.001, .01, .05, .1, .5, 1, 2.5, 5, 10},
		},
	)

	LockTimeouts = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "odds_lock_timeouts_total",
			Help: "Lock acquisitions that timed out and proceeded unlocked",
		},
	)

	// Error metrics
	ErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "odds_errors_total",
			Help: "Total number of errors",
		},
		[]string{"component", "error_type"},
	)

	// System metrics
	SystemUptime = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "odds_system_uptime_seconds",
			Help: "Collector uptime in seconds",
		},
	)

	LastSuccessfulCycle = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "odds_last_successful_cycle_timestamp",
			Help: "Timestamp of the last successful collection cycle",
		},
	)
)

// RecordCycle records one collection cycle outcome.
func RecordCycle(status string, duration float64) {
	CyclesTotal.WithLabelValues(status).Inc()
	CycleDuration.Observe(duration)

	if status == "success" {
		LastSuccessfulCycle.SetToCurrentTime()
	}
}

// RecordError records an error
func RecordError(component, errorType string) {
	ErrorsTotal.WithLabelValues(component, errorType).Inc()
}

// UpdateCacheStats updates the canonical cache gauges.
func UpdateCacheStats(sports, teams, aliases int) {
	CacheSports.Set(float64(sports))
	CacheTeams.Set(float64(teams))
	CacheAliases.Set(float64(aliases))
}
