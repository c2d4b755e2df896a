package canonical

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joypciu/unified-odds-system-sub000/internal/persist"
)

func TestCache_AddSport(t *testing.T) {
	c := New(nil, ConflictFirstWins)

	added := c.AddSport("Basketball", []string{"NBA", "basket"}, "sourceA")
	assert.True(t, added, "First registration should report a change")

	name, found := c.CanonicalSport("nba")
	assert.True(t, found)
	assert.Equal(t, "Basketball", name)

	name, found = c.CanonicalSport("BASKET")
	assert.True(t, found)
	assert.Equal(t, "Basketball", name)

	// Re-adding the same data is a no-op.
	added = c.AddSport("Basketball", []string{"NBA"}, "sourceA")
	assert.False(t, added, "Identical registration should not report a change")

	// A new source on an existing sport is a change.
	added = c.AddSport("NBA", nil, "sourceB")
	assert.True(t, added, "New source tag should report a change")
}

func TestCache_AddSportRejectsEmpty(t *testing.T) {
	c := New(nil, ConflictFirstWins)

	assert.False(t, c.AddSport("", nil, "sourceA"))
	assert.False(t, c.AddSport("   ", nil, "sourceA"))
	assert.Equal(t, 0, c.Stats().TotalSports, "Empty canonical name must not mutate the cache")
}

func TestCache_AddTeamCreatesSport(t *testing.T) {
	c := New(nil, ConflictFirstWins)

	added := c.AddTeam("Football", "FC Newtown", nil, "sourceA")
	assert.True(t, added)

	_, found := c.CanonicalSport("football")
	assert.True(t, found, "AddTeam should create the sport when absent")

	name, found := c.CanonicalTeam("fc newtown")
	assert.True(t, found)
	assert.Equal(t, "FC Newtown", name)

	stats := c.Stats()
	assert.Equal(t, 1, stats.TotalTeams, "Exactly one team should exist")
}

func TestCache_CanonicalMissReturnsRaw(t *testing.T) {
	c := New(nil, ConflictFirstWins)

	name, found := c.CanonicalTeam("Unknown City FC")
	assert.False(t, found)
	assert.Equal(t, "Unknown City FC", name, "Miss should echo the raw input")
}

// Merge-only growth: counts never decrease and a resolved alias never flips
// to a different canonical name under the first-wins policy.
func TestCache_MergeOnlyGrowth(t *testing.T) {
	c := New(nil, ConflictFirstWins)

	c.AddTeam("Basketball", "Los Angeles Lakers", []string{"LAL", "Lakers"}, "sourceA")
	first, found := c.CanonicalTeam("lakers")
	require.True(t, found)

	prevStats := c.Stats()

	// A different source tries to claim the same alias for another entity.
	c.AddTeam("Basketball", "Lakeside Lakers", []string{"Lakers"}, "sourceB")

	again, found := c.CanonicalTeam("lakers")
	require.True(t, found)
	assert.Equal(t, first, again, "Resolved alias must stay with its first canonical name")

	stats := c.Stats()
	assert.GreaterOrEqual(t, stats.TotalTeams, prevStats.TotalTeams, "Team count never decreases")
	assert.GreaterOrEqual(t, stats.TotalAliases, prevStats.TotalAliases, "Alias count never decreases")
}

func TestCache_LastWinsOverwrites(t *testing.T) {
	c := New(nil, ConflictLastWins)

	c.AddTeam("Basketball", "Los Angeles Lakers", []string{"Lakers"}, "sourceA")
	c.AddTeam("Basketball", "Lakeside Lakers", []string{"Lakers"}, "sourceB")

	name, found := c.CanonicalTeam("lakers")
	require.True(t, found)
	assert.Equal(t, "Lakeside Lakers", name, "Last-wins policy overwrites the lookup entry")
}

func TestCache_NewTeamScenario(t *testing.T) {
	c := New(nil, ConflictFirstWins)
	before := c.Stats().TotalTeams

	c.AddTeam("Football", "FC Newtown", nil, "sourceA")

	name, found := c.CanonicalTeam("fc newtown")
	assert.True(t, found)
	assert.Equal(t, "FC Newtown", name)
	assert.Equal(t, before+1, c.Stats().TotalTeams, "Exactly one team should have been added")
}

func TestCache_SnapshotRoundTrip(t *testing.T) {
	dir := t.TempDir()
	store := persist.NewStore(filepath.Join(dir, "cache.json"), persist.DefaultOptions())

	c := New(store, ConflictFirstWins)
	c.AddSport("Basketball", []string{"NBA"}, "sourceA")
	c.AddTeam("Basketball", "Golden State Warriors", []string{"GSW"}, "sourceA")
	c.AddTeam("Football", "FC Newtown", nil, "sourceB")
	require.NoError(t, c.Save())

	restored := New(store, ConflictFirstWins)
	require.NoError(t, restored.Load())

	name, found := restored.CanonicalTeam("gsw")
	assert.True(t, found)
	assert.Equal(t, "Golden State Warriors", name)

	name, found = restored.CanonicalSport("nba")
	assert.True(t, found)
	assert.Equal(t, "Basketball", name)

	assert.Equal(t, c.Stats().TotalTeams, restored.Stats().TotalTeams)
	assert.Equal(t, c.Stats().TotalAliases, restored.Stats().TotalAliases)
}

// IDs keep increasing across a save/load cycle so they never collide.
func TestCache_IDsMonotonicAcrossReload(t *testing.T) {
	dir := t.TempDir()
	store := persist.NewStore(filepath.Join(dir, "cache.json"), persist.DefaultOptions())

	c := New(store, ConflictFirstWins)
	c.AddTeam("Basketball", "Team One", nil, "sourceA")
	c.AddTeam("Basketball", "Team Two", nil, "sourceA")
	require.NoError(t, c.Save())

	restored := New(store, ConflictFirstWins)
	require.NoError(t, restored.Load())
	restored.AddTeam("Basketball", "Team Three", nil, "sourceA")

	snap := restored.Snapshot()
	seen := map[int]string{}
	for _, sport := range snap.Sports {
		for name, team := range sport.Teams {
			prev, dup := seen[team.ID]
			require.False(t, dup, "Team id %d reused by %q and %q", team.ID, prev, name)
			seen[team.ID] = name
		}
	}
	assert.Len(t, seen, 3)
}

func TestCache_LoadMissingSnapshotStartsEmpty(t *testing.T) {
	dir := t.TempDir()
	store := persist.NewStore(filepath.Join(dir, "cache.json"), persist.DefaultOptions())

	c := New(store, ConflictFirstWins)
	require.NoError(t, c.Load(), "Missing snapshot is a clean first run")
	assert.Equal(t, 0, c.Stats().TotalSports)
}

func TestCache_SameTeamNameUnderTwoSports(t *testing.T) {
	c := New(nil, ConflictFirstWins)

	assert.True(t, c.AddTeam("Football", "Barcelona", nil, "sourceA"))
	assert.True(t, c.AddTeam("Basketball", "Barcelona", nil, "sourceA"),
		"Same name in a second sport is a distinct entity")

	stats := c.Stats()
	assert.Equal(t, 2, stats.TotalSports)
	assert.Equal(t, 2, stats.TotalTeams, "Flat index must hold both entities")

	// Repeat registrations merge into the existing per-sport entities.
	assert.False(t, c.AddTeam("Football", "Barcelona", nil, "sourceA"))
	assert.False(t, c.AddTeam("Basketball", "Barcelona", nil, "sourceA"))
	assert.Equal(t, 2, c.Stats().TotalTeams)
}

func TestCache_LoadCorruptSnapshotStartsEmpty(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "cache.json")
	require.NoError(t, os.WriteFile(path, []byte(`{not json`), 0o644))

	store := persist.NewStore(path, persist.DefaultOptions())
	c := New(store, ConflictFirstWins)
	require.NoError(t, c.Load(), "Unrecoverable snapshot must not block startup")
	assert.Equal(t, 0, c.Stats().TotalSports)

	// The cache stays usable and the next save replaces the bad file.
	assert.True(t, c.AddSport("Tennis", nil, "sourceA"))
	require.NoError(t, c.Save())

	reloaded := New(store, ConflictFirstWins)
	require.NoError(t, reloaded.Load())
	assert.Equal(t, 1, reloaded.Stats().TotalSports)
}

func TestCache_ConcurrentAdds(t *testing.T) {
	c := New(nil, ConflictFirstWins)

	done := make(chan struct{})
	for i := 0; i < 8; i++ {
		go func(n int) {
			defer func() { done <- struct{}{} }()
			teams := []string{"Alpha", "Beta", "Gamma", "Delta"}
			for _, team := range teams {
				c.AddTeam("Basketball", team, nil, "source")
				c.CanonicalTeam(team)
			}
		}(i)
	}
	for i := 0; i < 8; i++ {
		<-done
	}

	assert.Equal(t, 4, c.Stats().TotalTeams, "Duplicate concurrent adds must merge, not multiply")
}
