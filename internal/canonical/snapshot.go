package canonical

import (
	"errors"
	"fmt"
	"io/fs"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/joypciu/unified-odds-system-sub000/internal/persist"
)

const snapshotVersion = 1

// SnapshotLookups are the two alias indices in their persisted form.
type SnapshotLookups struct {
	TeamAliasToCanonical  map[string]string `json:"team_alias_to_canonical"`
	SportAliasToCanonical map[string]string `json:"sport_alias_to_canonical"`
}

// SnapshotMetadata carries snapshot bookkeeping.
type SnapshotMetadata struct {
	Version      int       `json:"version"`
	TotalSports  int       `json:"total_sports"`
	TotalTeams   int       `json:"total_teams"`
	TotalAliases int       `json:"total_aliases"`
	UpdateCount  int       `json:"update_count"`
	LastUpdated  time.Time `json:"last_updated"`
}

// Snapshot is the on-disk form of the cache.
type Snapshot struct {
	Sports      map[string]*SportEntity `json:"sports"`
	TeamsGlobal map[string]TeamRef      `json:"teams_global"`
	Lookups     SnapshotLookups         `json:"lookups"`
	Metadata    SnapshotMetadata        `json:"metadata"`
}

// Snapshot renders the current cache state for persistence. The returned
// value shares memory with the live cache; callers must not mutate it.
func (c *Cache) Snapshot() *Snapshot {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.snapshotLocked()
}

func (c *Cache) snapshotLocked() *Snapshot {
	return &Snapshot{
		Sports:      c.sports,
		TeamsGlobal: c.teamsGlobal,
		Lookups: SnapshotLookups{
			TeamAliasToCanonical:  c.teamAlias,
			SportAliasToCanonical: c.sportAlias,
		},
		Metadata: SnapshotMetadata{
			Version:      snapshotVersion,
			TotalSports:  len(c.sports),
			TotalTeams:   len(c.teamsGlobal),
			TotalAliases: len(c.sportAlias) + len(c.teamAlias),
			UpdateCount:  c.updateCount,
			LastUpdated:  c.lastUpdated,
		},
	}
}

// Load restores cache state from the persistence backend. A missing snapshot
// is a clean first run. ID counters restart above the highest persisted id so
// ids never collide across restarts.
func (c *Cache) Load() error {
	if c.backend == nil {
		return nil
	}

	var snap Snapshot
	if err := c.backend.ReadJSON(&snap); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			log.Info().Msg("No cache snapshot found, starting empty")
			return nil
		}
		if errors.Is(err, persist.ErrCorrupt) {
			// Snapshot and every backup are unparseable. Losing discovered
			// aliases is recoverable; refusing to start is not.
			log.Warn().Err(err).Msg("Cache snapshot and backups corrupt, starting empty")
			return nil
		}
		return fmt.Errorf("failed to load cache snapshot: %w", err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.sports = snap.Sports
	if c.sports == nil {
		c.sports = make(map[string]*SportEntity)
	}
	c.teamsGlobal = snap.TeamsGlobal
	if c.teamsGlobal == nil {
		c.teamsGlobal = make(map[string]TeamRef)
	}
	c.sportAlias = snap.Lookups.SportAliasToCanonical
	if c.sportAlias == nil {
		c.sportAlias = make(map[string]string)
	}
	c.teamAlias = snap.Lookups.TeamAliasToCanonical
	if c.teamAlias == nil {
		c.teamAlias = make(map[string]string)
	}
	c.updateCount = snap.Metadata.UpdateCount
	c.lastUpdated = snap.Metadata.LastUpdated

	c.nextSportID = 1
	c.nextTeamID = 1
	for _, sport := range c.sports {
		if sport.ID >= c.nextSportID {
			c.nextSportID = sport.ID + 1
		}
		if sport.Teams == nil {
			sport.Teams = make(map[string]*TeamEntity)
		}
		for _, team := range sport.Teams {
			if team.ID >= c.nextTeamID {
				c.nextTeamID = team.ID + 1
			}
		}
	}

	log.Info().
		Int("sports", len(c.sports)).
		Int("teams", len(c.teamsGlobal)).
		Int("aliases", len(c.sportAlias)+len(c.teamAlias)).
		Msg("Cache snapshot loaded")
	return nil
}

// Save writes the current snapshot through the persistence backend. The read
// lock is held across serialization so writers cannot mutate entities while
// they are being marshaled.
func (c *Cache) Save() error {
	if c.backend == nil {
		return nil
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	if err := c.backend.WriteJSON(c.snapshotLocked()); err != nil {
		return fmt.Errorf("failed to save cache snapshot: %w", err)
	}
	return nil
}
