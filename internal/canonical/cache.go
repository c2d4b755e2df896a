// Package canonical implements the merge-only cache that maps every observed
// spelling of a sport or team to one canonical name. The cache is the ground
// truth for record linkage: entries are added, never renamed or evicted.
package canonical

import (
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/joypciu/unified-odds-system-sub000/internal/metrics"
	"github.com/joypciu/unified-odds-system-sub000/internal/normalize"
)

// AliasConflictPolicy decides what happens when an alias that already resolves
// to one canonical entity is registered under a different one.
type AliasConflictPolicy string

const (
	// ConflictFirstWins keeps the existing mapping and logs the conflict.
	ConflictFirstWins AliasConflictPolicy = "first-wins"
	// ConflictLastWins overwrites the mapping (the historical behavior of the
	// system this core replaces; known to flap between canonical names).
	ConflictLastWins AliasConflictPolicy = "last-wins"
)

// Backend persists cache snapshots. Implemented by persist.Store.
type Backend interface {
	ReadJSON(v any) error
	WriteJSON(v any) error
}

// Stats is a point-in-time summary of cache contents.
type Stats struct {
	TotalSports  int       `json:"total_sports"`
	TotalTeams   int       `json:"total_teams"`
	TotalAliases int       `json:"total_aliases"`
	LastUpdated  time.Time `json:"last_updated"`
}

// Cache is the canonical sports/teams store with O(1) alias lookup. All
// public methods are safe for concurrent use.
type Cache struct {
	mu      sync.RWMutex
	backend Backend
	policy  AliasConflictPolicy

	sports      map[string]*SportEntity // canonical sport name -> entity
	teamsGlobal map[string]TeamRef      // "sport/team" -> flat ref

	sportAlias map[string]string // normalized alias -> canonical sport name
	teamAlias  map[string]string // normalized alias -> canonical team name

	nextSportID int
	nextTeamID  int
	updateCount int
	lastUpdated time.Time
}

// New creates an empty cache. The backend may be nil for in-memory use
// (tests, the linker's pure-function path).
func New(backend Backend, policy AliasConflictPolicy) *Cache {
	if policy == "" {
		policy = ConflictFirstWins
	}
	return &Cache{
		backend:     backend,
		policy:      policy,
		sports:      make(map[string]*SportEntity),
		teamsGlobal: make(map[string]TeamRef),
		sportAlias:  make(map[string]string),
		teamAlias:   make(map[string]string),
		nextSportID: 1,
		nextTeamID:  1,
	}
}

// AddSport registers a sport under its canonical name together with any
// aliases, tagged with the contributing source. Existing entities are merged
// into, never replaced. Returns true when anything changed (new entity, new
// alias or new source) so callers can decide whether a persistence write is
// warranted.
func (c *Cache) AddSport(canonical string, aliases []string, source string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.addSportLocked(canonical, aliases, source)
}

func (c *Cache) addSportLocked(canonical string, aliases []string, source string) bool {
	canonical = strings.TrimSpace(canonical)
	if canonical == "" {
		return false
	}

	norm := normalize.Normalize(canonical)
	sport, changed := c.resolveOrCreateSport(canonical, norm)

	if registered := c.registerSportAlias(norm, sport); registered {
		changed = true
	}
	for _, alias := range aliases {
		an := normalize.Normalize(alias)
		if an == "" {
			continue
		}
		if registered := c.registerSportAlias(an, sport); registered {
			changed = true
		}
	}

	if source != "" {
		var grew bool
		sport.Metadata.Sources, grew = addString(sport.Metadata.Sources, source)
		if grew {
			changed = true
		}
	}

	if changed {
		c.touch(sport, nil)
	}
	return changed
}

// AddTeam registers a team under a sport, creating the sport first when it is
// unknown (sports are thus created from team traffic too). Same merge-only
// contract as AddSport.
func (c *Cache) AddTeam(sportCanonical, teamCanonical string, aliases []string, source string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	teamCanonical = strings.TrimSpace(teamCanonical)
	sportCanonical = strings.TrimSpace(sportCanonical)
	if teamCanonical == "" || sportCanonical == "" {
		return false
	}

	changed := c.addSportLocked(sportCanonical, nil, source)

	sportNorm := normalize.Normalize(sportCanonical)
	sportName, ok := c.sportAlias[sportNorm]
	if !ok {
		sportName = sportCanonical
	}
	sport := c.sports[sportName]
	if sport == nil {
		return changed
	}

	teamNorm := normalize.Normalize(teamCanonical)
	team, created := c.resolveOrCreateTeam(sport, teamCanonical, teamNorm)
	if created {
		changed = true
	}

	if registered := c.registerTeamAlias(teamNorm, team); registered {
		changed = true
	}
	for _, alias := range aliases {
		an := normalize.Normalize(alias)
		if an == "" {
			continue
		}
		if registered := c.registerTeamAlias(an, team); registered {
			changed = true
		}
	}

	if source != "" {
		var grew bool
		team.Metadata.Sources, grew = addString(team.Metadata.Sources, source)
		if grew {
			changed = true
		}
	}

	// Seen-counts move on every call; they do not count as a structural
	// change for the caller's write decision.
	team.Metadata.MatchCount++
	sport.Metadata.MatchCount++

	if changed {
		c.touch(sport, team)
	}
	return changed
}

// CanonicalSport resolves a raw sport spelling through the alias index.
// On a miss the raw input comes back with found=false; misses are expected
// and handled by the caller's fuzzy fallback, never an error.
func (c *Cache) CanonicalSport(raw string) (string, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if name, ok := c.sportAlias[normalize.Normalize(raw)]; ok {
		return name, true
	}
	return raw, false
}

// CanonicalTeam resolves a raw team spelling, sport-agnostic.
func (c *Cache) CanonicalTeam(raw string) (string, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if name, ok := c.teamAlias[normalize.Normalize(raw)]; ok {
		return name, true
	}
	return raw, false
}

// Stats returns current cache counters.
func (c *Cache) Stats() Stats {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return Stats{
		TotalSports:  len(c.sports),
		TotalTeams:   len(c.teamsGlobal),
		TotalAliases: len(c.sportAlias) + len(c.teamAlias),
		LastUpdated:  c.lastUpdated,
	}
}

func (c *Cache) resolveOrCreateSport(canonical, norm string) (*SportEntity, bool) {
	if name, ok := c.sportAlias[norm]; ok {
		return c.sports[name], false
	}
	if sport, ok := c.sports[canonical]; ok {
		return sport, false
	}

	now := time.Now().UTC()
	sport := &SportEntity{
		ID:             c.nextSportID,
		CanonicalName:  canonical,
		NormalizedName: norm,
		Teams:          make(map[string]*TeamEntity),
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	c.nextSportID++
	c.sports[canonical] = sport
	metrics.CacheEntitiesCreated.WithLabelValues("sport").Inc()
	log.Debug().Str("sport", canonical).Int("id", sport.ID).Msg("New canonical sport registered")
	return sport, true
}

// resolveOrCreateTeam resolves within the given sport only. The same team
// name under two sports yields two entities; the flat index keys them by
// sport so neither shadows the other.
func (c *Cache) resolveOrCreateTeam(sport *SportEntity, canonical, norm string) (*TeamEntity, bool) {
	if name, ok := c.teamAlias[norm]; ok {
		if team, ok := sport.Teams[name]; ok {
			return team, false
		}
	}
	if team, ok := sport.Teams[canonical]; ok {
		return team, false
	}

	now := time.Now().UTC()
	team := &TeamEntity{
		ID:             c.nextTeamID,
		CanonicalName:  canonical,
		NormalizedName: norm,
		SportID:        sport.ID,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	c.nextTeamID++
	sport.Teams[canonical] = team
	c.teamsGlobal[teamKey(sport.CanonicalName, canonical)] = TeamRef{ID: team.ID, Sport: sport.CanonicalName, Normalized: norm}
	metrics.CacheEntitiesCreated.WithLabelValues("team").Inc()
	log.Debug().
		Str("team", canonical).
		Str("sport", sport.CanonicalName).
		Int("id", team.ID).
		Msg("New canonical team registered")
	return team, true
}

// teamKey builds the flat-index key for a team scoped to its sport.
func teamKey(sport, team string) string {
	return sport + "/" + team
}

func (c *Cache) registerSportAlias(alias string, sport *SportEntity) bool {
	if alias == "" {
		return false
	}
	existing, ok := c.sportAlias[alias]
	if ok && existing == sport.CanonicalName {
		return false
	}
	if ok {
		c.reportConflict("sport", alias, existing, sport.CanonicalName)
		if c.policy == ConflictFirstWins {
			return false
		}
	}
	c.sportAlias[alias] = sport.CanonicalName
	sport.Aliases, _ = addString(sport.Aliases, alias)
	return true
}

func (c *Cache) registerTeamAlias(alias string, team *TeamEntity) bool {
	if alias == "" {
		return false
	}
	existing, ok := c.teamAlias[alias]
	if ok && existing == team.CanonicalName {
		return false
	}
	if ok {
		c.reportConflict("team", alias, existing, team.CanonicalName)
		if c.policy == ConflictFirstWins {
			return false
		}
	}
	c.teamAlias[alias] = team.CanonicalName
	team.Aliases, _ = addString(team.Aliases, alias)
	return true
}

func (c *Cache) reportConflict(kind, alias, existing, incoming string) {
	metrics.AliasConflictsTotal.WithLabelValues(kind).Inc()
	log.Warn().
		Str("kind", kind).
		Str("alias", alias).
		Str("existing", existing).
		Str("incoming", incoming).
		Str("policy", string(c.policy)).
		Msg("Alias already mapped to a different canonical name")
}

func (c *Cache) touch(sport *SportEntity, team *TeamEntity) {
	now := time.Now().UTC()
	sport.UpdatedAt = now
	if team != nil {
		team.UpdatedAt = now
	}
	c.updateCount++
	c.lastUpdated = now
}
