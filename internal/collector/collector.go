// Package collector orchestrates one collection cycle: load the per-source
// files, grow the canonical cache from whatever names appear, link the
// records across sources and write the unified artifact.
package collector

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/joypciu/unified-odds-system-sub000/internal/canonical"
	"github.com/joypciu/unified-odds-system-sub000/internal/ingest"
	"github.com/joypciu/unified-odds-system-sub000/internal/linker"
	"github.com/joypciu/unified-odds-system-sub000/internal/metrics"
	"github.com/joypciu/unified-odds-system-sub000/internal/models"
	"github.com/joypciu/unified-odds-system-sub000/internal/persist"
)

// Publisher pushes a finished artifact to an external fan-out channel.
// Publication failures never fail the cycle.
type Publisher interface {
	Publish(ctx context.Context, artifact *models.UnifiedArtifact) error
}

// HistorySink records cycle summaries for later analysis. Sink failures
// never fail the cycle.
type HistorySink interface {
	SaveCycle(ctx context.Context, startedAt time.Time, stats models.CycleStats, artifact *models.UnifiedArtifact) error
}

// Options configures a collector.
type Options struct {
	Sources []ingest.Source
	// SourcePriority orders primary selection. Defaults to the order of
	// Sources.
	SourcePriority []string
	Threshold      float64
	Extractors     map[string]linker.OddsExtractor

	// Optional sinks.
	Publisher Publisher
	History   HistorySink
}

// Collector runs collection cycles over a fixed set of sources.
type Collector struct {
	cache    *canonical.Cache
	linker   *linker.Linker
	artifact *persist.Store
	opts     Options
}

// New creates a collector writing artifacts through the given store.
func New(cache *canonical.Cache, artifact *persist.Store, opts Options) *Collector {
	if len(opts.SourcePriority) == 0 {
		for _, src := range opts.Sources {
			opts.SourcePriority = append(opts.SourcePriority, src.Name)
		}
	}
	lk := linker.New(cache, linker.Config{
		Threshold:      opts.Threshold,
		SourcePriority: opts.SourcePriority,
		Extractors:     opts.Extractors,
	})
	return &Collector{cache: cache, linker: lk, artifact: artifact, opts: opts}
}

// RunCycle executes one full collection cycle. A source that fails to load
// is treated as empty; the cycle itself fails only when the artifact cannot
// be written or the cache snapshot cannot be saved.
func (c *Collector) RunCycle(ctx context.Context) (*models.UnifiedArtifact, models.CycleStats, error) {
	start := time.Now()
	var stats models.CycleStats

	pregame := make(map[string][]models.RawMatchRecord)
	live := make(map[string][]models.RawMatchRecord)

	for _, src := range c.opts.Sources {
		failed := false
		for _, phase := range []ingest.Phase{ingest.PhasePregame, ingest.PhaseLive} {
			records, skipped, err := ingest.Load(src, phase)
			if err != nil {
				log.Error().Err(err).
					Str("source", src.Name).
					Str("phase", string(phase)).
					Msg("Source load failed, treating as empty")
				metrics.SourceLoadFailures.WithLabelValues(src.Name).Inc()
				failed = true
				continue
			}
			stats.RecordsIngested += len(records)
			stats.RecordsSkipped += skipped
			if phase == ingest.PhasePregame {
				pregame[src.Name] = records
			} else {
				live[src.Name] = records
			}
		}
		if failed {
			stats.SourcesFailed++
		} else {
			stats.SourcesLoaded++
		}
	}

	stats.CacheAdditions = c.updateCache(pregame) + c.updateCache(live)

	pregameUnified := c.linker.Link(pregame)
	liveUnified := c.linker.Link(live)
	stats.PregameMatches = len(pregameUnified)
	stats.LiveMatches = len(liveUnified)

	// Both phases count toward the linkage gauges.
	metrics.MatchGroupsFormed.Set(float64(len(pregameUnified) + len(liveUnified)))
	metrics.MultiSourceGroups.Set(float64(multiSourceCount(pregameUnified) + multiSourceCount(liveUnified)))

	artifact := &models.UnifiedArtifact{
		Metadata: models.ArtifactMetadata{
			GeneratedAt:         time.Now().UTC(),
			Sources:             c.opts.SourcePriority,
			TotalPregameMatches: len(pregameUnified),
			TotalLiveMatches:    len(liveUnified),
		},
		PregameMatches: pregameUnified,
		LiveMatches:    liveUnified,
	}

	if err := c.artifact.WriteJSON(artifact); err != nil {
		stats.Duration = time.Since(start)
		metrics.RecordCycle("error", stats.Duration.Seconds())
		return nil, stats, fmt.Errorf("failed to write unified artifact: %w", err)
	}

	if stats.CacheAdditions > 0 {
		if err := c.cache.Save(); err != nil {
			stats.Duration = time.Since(start)
			metrics.RecordCycle("error", stats.Duration.Seconds())
			return nil, stats, fmt.Errorf("failed to save cache snapshot: %w", err)
		}
	}

	cacheStats := c.cache.Stats()
	metrics.UpdateCacheStats(cacheStats.TotalSports, cacheStats.TotalTeams, cacheStats.TotalAliases)

	stats.Duration = time.Since(start)
	c.runSinks(ctx, start, stats, artifact)
	metrics.RecordCycle("success", stats.Duration.Seconds())

	log.Info().
		Int("sources_loaded", stats.SourcesLoaded).
		Int("sources_failed", stats.SourcesFailed).
		Int("records", stats.RecordsIngested).
		Int("skipped", stats.RecordsSkipped).
		Int("cache_additions", stats.CacheAdditions).
		Int("pregame", stats.PregameMatches).
		Int("live", stats.LiveMatches).
		Dur("duration", stats.Duration).
		Msg("Collection cycle complete")

	return artifact, stats, nil
}

// multiSourceCount counts unified records carrying odds from more than one
// source.
func multiSourceCount(records []models.UnifiedMatchRecord) int {
	count := 0
	for i := range records {
		available := 0
		for _, block := range records[i].Sources {
			if block.Available {
				available++
			}
		}
		if available > 1 {
			count++
		}
	}
	return count
}

// updateCache grows the canonical cache from every sport and team name in
// the loaded records. Merge-only: existing entries are never changed.
func (c *Collector) updateCache(records map[string][]models.RawMatchRecord) int {
	additions := 0
	for source, recs := range records {
		for i := range recs {
			rec := &recs[i]
			if c.cache.AddSport(rec.Sport, nil, source) {
				additions++
			}
			if c.cache.AddTeam(rec.Sport, rec.HomeTeam, nil, source) {
				additions++
			}
			if c.cache.AddTeam(rec.Sport, rec.AwayTeam, nil, source) {
				additions++
			}
		}
	}
	return additions
}

// runSinks pushes the artifact to the optional sinks. Their failures are
// logged and counted but never fail the cycle.
func (c *Collector) runSinks(ctx context.Context, startedAt time.Time, stats models.CycleStats, artifact *models.UnifiedArtifact) {
	if c.opts.Publisher != nil {
		if err := c.opts.Publisher.Publish(ctx, artifact); err != nil {
			log.Warn().Err(err).Msg("Artifact publication failed, continuing")
			metrics.RecordError("publish", "publish_failed")
		}
	}
	if c.opts.History != nil {
		if err := c.opts.History.SaveCycle(ctx, startedAt, stats, artifact); err != nil {
			log.Warn().Err(err).Msg("Cycle history write failed, continuing")
			metrics.RecordError("repository", "history_failed")
		}
	}
}
