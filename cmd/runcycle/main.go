// Command runcycle executes a single collection cycle and exits. Useful for
// cron-driven deployments and for inspecting a cycle's results by hand.
package main

import (
	"context"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/joypciu/unified-odds-system-sub000/internal/canonical"
	"github.com/joypciu/unified-odds-system-sub000/internal/collector"
	"github.com/joypciu/unified-odds-system-sub000/internal/config"
	"github.com/joypciu/unified-odds-system-sub000/internal/ingest"
	"github.com/joypciu/unified-odds-system-sub000/internal/persist"
)

func main() {
	if os.Getenv("APP_ENV") == "development" {
		log.Logger = log.Output(zerolog.ConsoleWriter{
			Out:        os.Stdout,
			TimeFormat: time.RFC3339,
		})
	}

	ctx := context.Background()
	cfg := config.MustLoad()

	snapStore := persist.NewStore(cfg.SnapshotPath, persist.Options{
		Backups:     cfg.SnapshotBackups,
		LockTimeout: cfg.LockTimeout,
		LockPoll:    cfg.LockPoll,
	})

	policy := canonical.ConflictFirstWins
	if cfg.AliasConflictPolicy == "last_wins" {
		policy = canonical.ConflictLastWins
	}

	cache := canonical.New(snapStore, policy)
	if err := cache.Load(); err != nil {
		log.Fatal().Err(err).Msg("Failed to load canonical cache snapshot")
	}

	artifactStore := persist.NewStore(cfg.ArtifactPath, persist.Options{
		Backups:     1,
		LockTimeout: cfg.LockTimeout,
		LockPoll:    cfg.LockPoll,
	})

	var sources []ingest.Source
	for _, name := range cfg.SourcePriority() {
		src := ingest.DefaultSource(cfg.DataDir, name)
		src.MatchesPath = cfg.MatchPath(name)
		sources = append(sources, src)
	}

	coll := collector.New(cache, artifactStore, collector.Options{
		Sources:        sources,
		SourcePriority: cfg.SourcePriority(),
		Threshold:      cfg.MatchThreshold,
	})

	artifact, stats, err := coll.RunCycle(ctx)
	if err != nil {
		log.Fatal().Err(err).Msg("Collection cycle failed")
	}

	log.Info().
		Int("sources_loaded", stats.SourcesLoaded).
		Int("sources_failed", stats.SourcesFailed).
		Int("records_ingested", stats.RecordsIngested).
		Int("records_skipped", stats.RecordsSkipped).
		Int("cache_additions", stats.CacheAdditions).
		Int("pregame_matches", stats.PregameMatches).
		Int("live_matches", stats.LiveMatches).
		Dur("duration", stats.Duration).
		Time("generated_at", artifact.Metadata.GeneratedAt).
		Str("artifact", artifactStore.Path()).
		Msg("Cycle complete")
}
