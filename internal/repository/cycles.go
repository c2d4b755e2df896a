package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/joypciu/unified-odds-system-sub000/internal/models"
)

// CycleRepository records collection-cycle history and the unified match
// rows each cycle produced.
type CycleRepository struct {
	db *Database
}

// CycleRow is one persisted collection cycle.
type CycleRow struct {
	ID              int       `json:"id"`
	StartedAt       time.Time `json:"started_at"`
	SourcesLoaded   int       `json:"sources_loaded"`
	SourcesFailed   int       `json:"sources_failed"`
	RecordsIngested int       `json:"records_ingested"`
	RecordsSkipped  int       `json:"records_skipped"`
	CacheAdditions  int       `json:"cache_additions"`
	PregameMatches  int       `json:"pregame_matches"`
	LiveMatches     int       `json:"live_matches"`
	DurationMs      int64     `json:"duration_ms"`
}

// CreateCycle inserts one cycle summary row and returns its id.
func (r *CycleRepository) CreateCycle(ctx context.Context, startedAt time.Time, stats models.CycleStats) (int, error) {
	query := `
		INSERT INTO collection_cycles (
			started_at, sources_loaded, sources_failed,
			records_ingested, records_skipped, cache_additions,
			pregame_matches, live_matches, duration_ms
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING id
	`

	var id int
	err := r.db.Pool.QueryRow(
		ctx, query,
		startedAt, stats.SourcesLoaded, stats.SourcesFailed,
		stats.RecordsIngested, stats.RecordsSkipped, stats.CacheAdditions,
		stats.PregameMatches, stats.LiveMatches, stats.Duration.Milliseconds(),
	).Scan(&id)

	if err != nil {
		return 0, fmt.Errorf("failed to create cycle: %w", err)
	}

	return id, nil
}

// CreateUnifiedMatches inserts the unified match rows produced by a cycle.
// The odds blocks are stored as JSONB keyed by source.
func (r *CycleRepository) CreateUnifiedMatches(ctx context.Context, cycleID int, matches []models.UnifiedMatchRecord) error {
	query := `
		INSERT INTO unified_matches (
			cycle_id, sport, home_team, away_team,
			scheduled_time, is_live, primary_source, sources
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`

	for i := range matches {
		m := &matches[i]
		sources, err := json.Marshal(m.Sources)
		if err != nil {
			return fmt.Errorf("failed to marshal source blocks: %w", err)
		}
		_, err = r.db.Pool.Exec(
			ctx, query,
			cycleID, m.Sport, m.HomeTeam, m.AwayTeam,
			m.ScheduledTime, m.IsLive, m.PrimarySource, sources,
		)
		if err != nil {
			return fmt.Errorf("failed to create unified match: %w", err)
		}
	}

	return nil
}

// SaveCycle records one cycle summary plus every unified match it produced.
func (r *CycleRepository) SaveCycle(ctx context.Context, startedAt time.Time, stats models.CycleStats, artifact *models.UnifiedArtifact) error {
	id, err := r.CreateCycle(ctx, startedAt, stats)
	if err != nil {
		return err
	}
	if err := r.CreateUnifiedMatches(ctx, id, artifact.PregameMatches); err != nil {
		return err
	}
	return r.CreateUnifiedMatches(ctx, id, artifact.LiveMatches)
}

// GetRecentCycles retrieves the most recent cycle summaries, newest first.
func (r *CycleRepository) GetRecentCycles(ctx context.Context, limit int) ([]*CycleRow, error) {
	query := `
		SELECT id, started_at, sources_loaded, sources_failed,
		       records_ingested, records_skipped, cache_additions,
		       pregame_matches, live_matches, duration_ms
		FROM collection_cycles
		ORDER BY started_at DESC
		LIMIT $1
	`

	rows, err := r.db.Pool.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to get recent cycles: %w", err)
	}
	defer rows.Close()

	var cycles []*CycleRow
	for rows.Next() {
		var c CycleRow
		err := rows.Scan(
			&c.ID, &c.StartedAt, &c.SourcesLoaded, &c.SourcesFailed,
			&c.RecordsIngested, &c.RecordsSkipped, &c.CacheAdditions,
			&c.PregameMatches, &c.LiveMatches, &c.DurationMs,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan cycle: %w", err)
		}
		cycles = append(cycles, &c)
	}

	return cycles, rows.Err()
}
