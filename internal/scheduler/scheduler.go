package scheduler

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog/log"

	"github.com/joypciu/unified-odds-system-sub000/internal/canonical"
	"github.com/joypciu/unified-odds-system-sub000/internal/collector"
	"github.com/joypciu/unified-odds-system-sub000/internal/config"
	"github.com/joypciu/unified-odds-system-sub000/internal/ingest"
	"github.com/joypciu/unified-odds-system-sub000/internal/metrics"
	"github.com/joypciu/unified-odds-system-sub000/internal/persist"
)

// Scheduler drives collection cycles:
// - Poll the source files and run a cycle when any of them changed
// - Force a cycle after ForceCycleInterval even without changes
// - Nightly maintenance that logs cache stats and sweeps stale temp files
type Scheduler struct {
	cfg       *config.Config
	coll      *collector.Collector
	cache     *canonical.Cache
	stores    []*persist.Store
	sources   []ingest.Source
	cron      *cron.Cron
	ticker    *time.Ticker
	stopChan  chan struct{}
	lastCycle time.Time
	lastSeen  map[string]time.Time
}

// NewScheduler creates a new scheduler instance
func NewScheduler(cfg *config.Config, coll *collector.Collector, cache *canonical.Cache, sources []ingest.Source, stores ...*persist.Store) *Scheduler {
	return &Scheduler{
		cfg:      cfg,
		coll:     coll,
		cache:    cache,
		stores:   stores,
		sources:  sources,
		cron:     cron.New(),
		stopChan: make(chan struct{}),
		lastSeen: make(map[string]time.Time),
	}
}

// Start starts the scheduler
func (s *Scheduler) Start(ctx context.Context) error {
	log.Info().Msg("Scheduler starting...")

	// Setup nightly maintenance cron job
	if _, err := s.cron.AddFunc(s.cfg.MaintenanceCron, func() {
		log.Info().Msg("Running nightly maintenance...")
		s.runMaintenance()
	}); err != nil {
		return fmt.Errorf("failed to schedule nightly maintenance: %w", err)
	}

	// Start cron scheduler
	s.cron.Start()
	log.Info().
		Str("schedule", s.cfg.MaintenanceCron).
		Msg("Nightly maintenance scheduled")

	// Start source file polling ticker
	s.ticker = time.NewTicker(s.cfg.PollInterval)
	log.Info().
		Dur("interval", s.cfg.PollInterval).
		Msg("Source file polling started")

	go s.pollSources(ctx)

	return nil
}

// Stop stops the scheduler
func (s *Scheduler) Stop() {
	log.Info().Msg("Stopping scheduler...")

	if s.cron != nil {
		s.cron.Stop()
	}

	if s.ticker != nil {
		s.ticker.Stop()
	}

	close(s.stopChan)
	log.Info().Msg("Scheduler stopped")
}

// pollSources runs a cycle whenever a source file changed, or when the
// force interval elapsed without one.
func (s *Scheduler) pollSources(ctx context.Context) {
	// Run an initial cycle so the artifact exists before the first tick.
	s.runCycle(ctx)

	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("Context cancelled, stopping source polling")
			return
		case <-s.stopChan:
			log.Info().Msg("Stop signal received, stopping source polling")
			return
		case <-s.ticker.C:
			changed := s.sourcesChanged()
			forced := time.Since(s.lastCycle) >= s.cfg.ForceCycleInterval
			if !changed && !forced {
				log.Debug().Msg("No source changes, skipping cycle")
				continue
			}
			if !changed {
				log.Debug().
					Dur("since_last", time.Since(s.lastCycle)).
					Msg("Force interval elapsed, running cycle")
			}
			s.runCycle(ctx)
		}
	}
}

func (s *Scheduler) runCycle(ctx context.Context) {
	if _, _, err := s.coll.RunCycle(ctx); err != nil {
		log.Error().Err(err).Msg("Collection cycle failed")
	}
	s.lastCycle = time.Now()
}

// sourcesChanged compares source file modification times against the last
// observed set. A vanished file also counts as a change.
func (s *Scheduler) sourcesChanged() bool {
	changed := false
	for _, src := range s.sources {
		for _, phase := range []ingest.Phase{ingest.PhasePregame, ingest.PhaseLive} {
			path := src.File(phase)
			if path == "" {
				continue
			}
			info, err := os.Stat(path)
			if err != nil {
				if _, seen := s.lastSeen[path]; seen {
					delete(s.lastSeen, path)
					changed = true
				}
				continue
			}
			if prev, seen := s.lastSeen[path]; !seen || !info.ModTime().Equal(prev) {
				s.lastSeen[path] = info.ModTime()
				changed = true
			}
		}
	}
	return changed
}

// runMaintenance logs cache stats, refreshes the cache gauges and removes
// stale temp files left by interrupted writers.
func (s *Scheduler) runMaintenance() {
	stats := s.cache.Stats()
	metrics.UpdateCacheStats(stats.TotalSports, stats.TotalTeams, stats.TotalAliases)

	for _, store := range s.stores {
		store.CleanupTemp()
	}

	log.Info().
		Int("sports", stats.TotalSports).
		Int("teams", stats.TotalTeams).
		Int("aliases", stats.TotalAliases).
		Time("last_updated", stats.LastUpdated).
		Msg("Nightly maintenance complete")
}
