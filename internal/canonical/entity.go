package canonical

import "time"

// EntityMetadata tracks which producers contributed an entity and how many
// match records it has appeared in.
type EntityMetadata struct {
	Sources    []string `json:"sources"`
	MatchCount int      `json:"match_count"`
}

// TeamEntity is one canonical team. Aliases only grow; the entity is never
// renamed or removed once created.
type TeamEntity struct {
	ID             int            `json:"id"`
	CanonicalName  string         `json:"canonical_name"`
	NormalizedName string         `json:"normalized_name"`
	SportID        int            `json:"sport_id"`
	Aliases        []string       `json:"aliases"`
	Metadata       EntityMetadata `json:"metadata"`
	CreatedAt      time.Time      `json:"created_at"`
	UpdatedAt      time.Time      `json:"updated_at"`
}

// SportEntity is one canonical sport together with the teams known under it.
type SportEntity struct {
	ID             int                    `json:"id"`
	CanonicalName  string                 `json:"canonical_name"`
	NormalizedName string                 `json:"normalized_name"`
	Aliases        []string               `json:"aliases"`
	Teams          map[string]*TeamEntity `json:"teams"`
	Metadata       EntityMetadata         `json:"metadata"`
	CreatedAt      time.Time              `json:"created_at"`
	UpdatedAt      time.Time              `json:"updated_at"`
}

// TeamRef is the flat sport-agnostic team index entry.
type TeamRef struct {
	ID         int    `json:"id"`
	Sport      string `json:"sport"`
	Normalized string `json:"normalized"`
}

// addString appends v to set if absent, keeping insertion order. Returns the
// updated slice and whether it grew.
func addString(set []string, v string) ([]string, bool) {
	for _, s := range set {
		if s == v {
			return set, false
		}
	}
	return append(set, v), true
}
