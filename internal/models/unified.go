package models

import (
	"encoding/json"
	"time"
)

// SourceOdds is one source's contribution to a unified record. Sources absent
// from the match group are emitted with Available=false so consumers see the
// full configured source list on every record.
type SourceOdds struct {
	Available   bool              `json:"available"`
	Odds        json.RawMessage   `json:"odds,omitempty"`
	ExternalIDs map[string]string `json:"external_ids,omitempty"`
}

// UnifiedMatchRecord is the single multi-source view of one real-world event.
// Canonical sport/team names and the scheduled time come from the group's
// primary source (first configured source present in the group).
type UnifiedMatchRecord struct {
	Sport         string                `json:"sport"`
	HomeTeam      string                `json:"home_team"`
	AwayTeam      string                `json:"away_team"`
	ScheduledTime string                `json:"scheduled_time"`
	IsLive        bool                  `json:"is_live"`
	PrimarySource string                `json:"primary_source"`
	Sources       map[string]SourceOdds `json:"sources"`
}

// ArtifactMetadata describes one collection cycle's output.
type ArtifactMetadata struct {
	GeneratedAt         time.Time `json:"generated_at"`
	Sources             []string  `json:"sources"`
	TotalPregameMatches int       `json:"total_pregame_matches"`
	TotalLiveMatches    int       `json:"total_live_matches"`
}

// UnifiedArtifact is the unified-output file consumed by the serving layer.
type UnifiedArtifact struct {
	Metadata       ArtifactMetadata     `json:"metadata"`
	PregameMatches []UnifiedMatchRecord `json:"pregame_matches"`
	LiveMatches    []UnifiedMatchRecord `json:"live_matches"`
}

// CycleStats summarizes one collection cycle for logging and the one-shot CLI.
type CycleStats struct {
	SourcesLoaded   int           `json:"sources_loaded"`
	SourcesFailed   int           `json:"sources_failed"`
	RecordsIngested int           `json:"records_ingested"`
	RecordsSkipped  int           `json:"records_skipped"`
	CacheAdditions  int           `json:"cache_additions"`
	PregameMatches  int           `json:"pregame_matches"`
	LiveMatches     int           `json:"live_matches"`
	Duration        time.Duration `json:"duration"`
}
