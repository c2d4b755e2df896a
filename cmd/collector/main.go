package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/joypciu/unified-odds-system-sub000/internal/canonical"
	"github.com/joypciu/unified-odds-system-sub000/internal/collector"
	"github.com/joypciu/unified-odds-system-sub000/internal/config"
	"github.com/joypciu/unified-odds-system-sub000/internal/ingest"
	"github.com/joypciu/unified-odds-system-sub000/internal/metrics"
	"github.com/joypciu/unified-odds-system-sub000/internal/persist"
	"github.com/joypciu/unified-odds-system-sub000/internal/publish"
	"github.com/joypciu/unified-odds-system-sub000/internal/repository"
	"github.com/joypciu/unified-odds-system-sub000/internal/scheduler"
)

func main() {
	// Setup logger
	setupLogger()

	log.Info().Msg("Starting Unified Odds Collector")

	// Load configuration
	cfg := config.MustLoad()
	log.Info().
		Str("env", cfg.AppEnv).
		Str("log_level", cfg.LogLevel).
		Strs("sources", cfg.SourcePriority()).
		Msg("Configuration loaded")

	// Create context that listens for cancellation
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Setup graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		<-sigChan
		log.Info().Msg("Received shutdown signal, gracefully shutting down...")
		cancel()
	}()

	// Initialize the canonical cache from its snapshot
	snapStore := persist.NewStore(cfg.SnapshotPath, persist.Options{
		Backups:     cfg.SnapshotBackups,
		LockTimeout: cfg.LockTimeout,
		LockPoll:    cfg.LockPoll,
	})
	cache := canonical.New(snapStore, aliasPolicy(cfg))
	if err := cache.Load(); err != nil {
		log.Fatal().Err(err).Msg("Failed to load canonical cache snapshot")
	}

	// Artifact store keeps one backup of the prior version
	artifactStore := persist.NewStore(cfg.ArtifactPath, persist.Options{
		Backups:     1,
		LockTimeout: cfg.LockTimeout,
		LockPoll:    cfg.LockPoll,
	})

	// Describe the source files
	var sources []ingest.Source
	for _, name := range cfg.SourcePriority() {
		src := ingest.DefaultSource(cfg.DataDir, name)
		src.MatchesPath = cfg.MatchPath(name)
		sources = append(sources, src)
	}

	opts := collector.Options{
		Sources:        sources,
		SourcePriority: cfg.SourcePriority(),
		Threshold:      cfg.MatchThreshold,
	}

	// Initialize optional cycle history sink
	if cfg.DatabaseEnabled {
		db, err := repository.NewDatabase(ctx, cfg.DatabaseDSN())
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to connect to database")
		}
		defer db.Close()
		opts.History = db.Cycles
		log.Info().Msg("Database connection established")
	}

	// Initialize optional Redis publication
	if cfg.RedisEnabled {
		pub, err := publish.NewPublisher(publish.Config{
			Addr:     cfg.RedisAddr(),
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
			Key:      cfg.RedisKey,
			Channel:  cfg.RedisChannel,
		})
		if err != nil {
			log.Warn().Err(err).Msg("Failed to connect to Redis - continuing without publication")
		} else {
			defer pub.Close()
			opts.Publisher = pub
			log.Info().Msg("Redis publisher connected")
		}
	}

	coll := collector.New(cache, artifactStore, opts)

	// Start metrics HTTP server
	if cfg.EnableMetrics {
		go startMetricsServer(cfg.MetricsPort)
	}

	// Update system uptime metric
	startTime := time.Now()
	go func() {
		ticker := time.NewTicker(10 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				metrics.SystemUptime.Set(time.Since(startTime).Seconds())
			case <-ctx.Done():
				return
			}
		}
	}()

	// Create and start scheduler
	sched := scheduler.NewScheduler(cfg, coll, cache, sources, snapStore, artifactStore)

	if cfg.EnableScheduler {
		log.Info().Msg("Starting scheduler...")
		if err := sched.Start(ctx); err != nil {
			log.Fatal().Err(err).Msg("Failed to start scheduler")
		}
	}

	// Keep running until context is cancelled
	<-ctx.Done()

	// Graceful shutdown
	log.Info().Msg("Shutting down scheduler...")
	sched.Stop()

	log.Info().Msg("Collector shutdown complete")
}

// setupLogger configures the zerolog logger
func setupLogger() {
	// Pretty console logging in development
	if os.Getenv("APP_ENV") == "development" {
		log.Logger = log.Output(zerolog.ConsoleWriter{
			Out:        os.Stdout,
			TimeFormat: time.RFC3339,
		})
	}

	// Set log level
	level := zerolog.InfoLevel
	if lvl := os.Getenv("LOG_LEVEL"); lvl != "" {
		parsedLevel, err := zerolog.ParseLevel(lvl)
		if err == nil {
			level = parsedLevel
		}
	}
	zerolog.SetGlobalLevel(level)

	log.Info().
		Str("level", level.String()).
		Msg("Logger initialized")
}

func aliasPolicy(cfg *config.Config) canonical.AliasConflictPolicy {
	if cfg.AliasConflictPolicy == "last_wins" {
		return canonical.ConflictLastWins
	}
	return canonical.ConflictFirstWins
}

// startMetricsServer starts the Prometheus metrics HTTP server
func startMetricsServer(port int) {
	http.Handle("/metrics", promhttp.Handler())

	// Health check endpoint
	http.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"healthy"}`))
	})

	addr := fmt.Sprintf(":%d", port)
	log.Info().Int("port", port).Msg("Starting metrics server")

	if err := http.ListenAndServe(addr, nil); err != nil {
		log.Error().Err(err).Msg("Metrics server failed")
	}
}
