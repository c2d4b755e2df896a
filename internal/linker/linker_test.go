package linker

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joypciu/unified-odds-system-sub000/internal/canonical"
	"github.com/joypciu/unified-odds-system-sub000/internal/models"
)

func rec(sport, home, away string) models.RawMatchRecord {
	return models.RawMatchRecord{Sport: sport, HomeTeam: home, AwayTeam: away}
}

func newTestLinker(cache *canonical.Cache, sources ...string) *Linker {
	if cache == nil {
		cache = canonical.New(nil, canonical.ConflictFirstWins)
	}
	return New(cache, Config{
		Threshold:      DefaultThreshold,
		SourcePriority: sources,
	})
}

func TestSameMatch_Symmetric(t *testing.T) {
	l := newTestLinker(nil, "a", "b")

	pairs := [][2]models.RawMatchRecord{
		{rec("Football", "Arsenal", "Chelsea"), rec("Football", "Arsenal FC", "Chelsea FC")},
		{rec("Football", "Arsenal", "Chelsea"), rec("Basketball", "Arsenal", "Chelsea")},
		{rec("Tennis", "Alpha", "Beta"), rec("Tennis", "Gamma", "Delta")},
	}

	for _, p := range pairs {
		a, b := l.Resolve(p[0]), l.Resolve(p[1])
		assert.Equal(t, l.SameMatch(a, b), l.SameMatch(b, a),
			"SameMatch must be symmetric for %q/%q", p[0].HomeTeam, p[1].HomeTeam)
	}
}

func TestSameMatch_SportMustAgree(t *testing.T) {
	l := newTestLinker(nil, "a", "b")

	a := l.Resolve(rec("Football", "Arsenal", "Chelsea"))
	b := l.Resolve(rec("Basketball", "Arsenal", "Chelsea"))
	assert.False(t, l.SameMatch(a, b), "Different sports never match")
}

func TestSameMatch_SwapTolerance(t *testing.T) {
	l := newTestLinker(nil, "a", "b")

	a := l.Resolve(rec("Football", "Arsenal", "Chelsea"))
	b := l.Resolve(rec("Football", "Chelsea", "Arsenal"))
	assert.True(t, l.SameMatch(a, b), "Home/away swap must still match")
}

// When all four team fields are cache-resolved, only exact canonical equality
// counts: the fuzzy fallback is deliberately refused.
func TestSameMatch_ResolvedDemandsExactEquality(t *testing.T) {
	cache := canonical.New(nil, canonical.ConflictFirstWins)
	cache.AddTeam("Basketball", "Los Angeles Lakers", nil, "a")
	cache.AddTeam("Basketball", "Los Angeles Clippers", nil, "a")
	cache.AddTeam("Basketball", "Golden State Warriors", []string{"GSW"}, "a")
	l := newTestLinker(cache, "a", "b")

	a := l.Resolve(rec("Basketball", "Los Angeles Lakers", "Golden State Warriors"))
	b := l.Resolve(rec("Basketball", "Los Angeles Clippers", "Golden State Warriors"))
	require.True(t, a.HomeResolved && a.AwayResolved && b.HomeResolved && b.AwayResolved)

	assert.False(t, l.SameMatch(a, b),
		"Distinct canonical teams must not fuzzy-match even when similar")

	c := l.Resolve(rec("Basketball", "LA Lakers", "GSW"))
	require.True(t, c.HomeResolved && c.AwayResolved, "Aliases should resolve through the cache")
	assert.True(t, l.SameMatch(a, c), "Same canonical teams match exactly")
}

func TestSimilarity_ThresholdBoundary(t *testing.T) {
	// "alpha" vs "alpxy": distance 2 over length 5 is exactly 0.6.
	assert.InDelta(t, 0.6, Similarity("alpha", "alpxy"), 1e-9)

	l := newTestLinker(nil, "a", "b")
	a := l.Resolve(rec("Football", "alpha", "bravo"))
	b := l.Resolve(rec("Football", "alpxy", "brqqq"))

	// (0.6 + 0.4) / 2 = 0.5 < 0.6: no match.
	assert.False(t, l.SameMatch(a, b), "Average below threshold must not match")

	c := l.Resolve(rec("Football", "alpxy", "bravo"))
	// (0.6 + 1.0) / 2 = 0.8 >= 0.6: match.
	assert.True(t, l.SameMatch(a, c), "Average at or above threshold must match")

	exact := New(canonical.New(nil, canonical.ConflictFirstWins), Config{
		Threshold:      0.6,
		SourcePriority: []string{"a", "b"},
	})
	d := exact.Resolve(rec("Football", "alpha", "alpha"))
	e := exact.Resolve(rec("Football", "alpxy", "alpxy"))
	// Both pairs score exactly 0.6: >= threshold matches.
	assert.True(t, exact.SameMatch(d, e), "Score exactly at the threshold matches")

	strict := New(canonical.New(nil, canonical.ConflictFirstWins), Config{
		Threshold:      0.61,
		SourcePriority: []string{"a", "b"},
	})
	assert.False(t, strict.SameMatch(d, e), "Score just below the threshold does not match")
}

// Two sources spelling the same Lakers game differently link through cache
// aliases into one record.
func TestLink_CrossSourceScenario(t *testing.T) {
	cache := canonical.New(nil, canonical.ConflictFirstWins)
	cache.AddSport("Basketball", []string{"NBA"}, "seed")
	cache.AddTeam("Basketball", "Los Angeles Lakers", []string{"LAL"}, "seed")
	cache.AddTeam("Basketball", "Golden State Warriors", nil, "seed")

	l := newTestLinker(cache, "sourceA", "sourceB")

	unified := l.Link(map[string][]models.RawMatchRecord{
		"sourceA": {{
			Source:   "sourceA",
			Sport:    "Basketball",
			HomeTeam: "LA Lakers",
			AwayTeam: "Golden State Warriors",
			Odds:     json.RawMessage(`{"spread":-3.5}`),
		}},
		"sourceB": {{
			Source:   "sourceB",
			Sport:    "NBA",
			HomeTeam: "Los Angeles Lakers",
			AwayTeam: "Golden State Warriors",
			Odds:     json.RawMessage(`{"spread":-4.0}`),
		}},
	})

	require.Len(t, unified, 1, "Both sources describe one event")
	got := unified[0]
	assert.Equal(t, "Basketball", got.Sport)
	assert.Equal(t, "Los Angeles Lakers", got.HomeTeam)
	assert.Equal(t, "sourceA", got.PrimarySource)
	assert.True(t, got.Sources["sourceA"].Available)
	assert.True(t, got.Sources["sourceB"].Available)
	assert.JSONEq(t, `{"spread":-3.5}`, string(got.Sources["sourceA"].Odds))
	assert.JSONEq(t, `{"spread":-4.0}`, string(got.Sources["sourceB"].Odds))
}

// Teams the cache has never seen still link through the fuzzy fallback; this
// is what keeps a bootstrapping cache from blocking linkage.
func TestLink_FuzzyFallbackForUnknownTeams(t *testing.T) {
	l := newTestLinker(nil, "sourceA", "sourceB")

	unified := l.Link(map[string][]models.RawMatchRecord{
		"sourceA": {rec("Football", "FC Newtown", "Oldcastle United")},
		"sourceB": {rec("Football", "Newtown", "Oldcastle Utd")},
	})

	require.Len(t, unified, 1, "Fuzzy fallback should link unknown teams")
	assert.True(t, unified[0].Sources["sourceA"].Available)
	assert.True(t, unified[0].Sources["sourceB"].Available)
}

func TestLink_SingleSourceRecordsEmitted(t *testing.T) {
	l := newTestLinker(nil, "sourceA", "sourceB")

	unified := l.Link(map[string][]models.RawMatchRecord{
		"sourceA": {rec("Tennis", "Player One", "Player Two")},
	})

	require.Len(t, unified, 1)
	got := unified[0]
	assert.Equal(t, "sourceA", got.PrimarySource)
	assert.True(t, got.Sources["sourceA"].Available)
	assert.False(t, got.Sources["sourceB"].Available,
		"Absent sources appear with available=false")
}

// A producer emitting the same match twice must not collapse both copies into
// one group: the invariant is at most one record per source per group.
func TestLink_SameSourceCollisionRepair(t *testing.T) {
	l := newTestLinker(nil, "sourceA", "sourceB")

	unified := l.Link(map[string][]models.RawMatchRecord{
		"sourceA": {
			rec("Football", "Arsenal", "Chelsea"),
			rec("Football", "Arsenal FC", "Chelsea FC"),
		},
		"sourceB": {rec("Football", "Arsenal", "Chelsea")},
	})

	require.Len(t, unified, 2, "Duplicate should be split into its own record")
	for _, u := range unified {
		available := 0
		for _, s := range u.Sources {
			if s.Available {
				available++
			}
		}
		assert.GreaterOrEqual(t, available, 1)
	}
}

func TestLink_Deterministic(t *testing.T) {
	l := newTestLinker(nil, "sourceA", "sourceB")

	records := map[string][]models.RawMatchRecord{
		"sourceA": {
			rec("Football", "Zeta", "Eta"),
			rec("Football", "Alpha", "Beta"),
			rec("Basketball", "Gamma", "Delta"),
		},
		"sourceB": {
			rec("Football", "Alpha", "Beta"),
		},
	}

	first := l.Link(records)
	for i := 0; i < 5; i++ {
		assert.Equal(t, first, l.Link(records), "Link output must be deterministic")
	}
}

type stubExtractor struct{ out string }

func (s stubExtractor) Extract(models.RawMatchRecord) (json.RawMessage, error) {
	return json.RawMessage(s.out), nil
}

func TestLink_UsesRegisteredExtractor(t *testing.T) {
	cache := canonical.New(nil, canonical.ConflictFirstWins)
	l := New(cache, Config{
		SourcePriority: []string{"sourceA"},
		Extractors: map[string]OddsExtractor{
			"sourceA": stubExtractor{out: `{"ml":150}`},
		},
	})

	unified := l.Link(map[string][]models.RawMatchRecord{
		"sourceA": {rec("Tennis", "One", "Two")},
	})

	require.Len(t, unified, 1)
	assert.JSONEq(t, `{"ml":150}`, string(unified[0].Sources["sourceA"].Odds))
}

func TestResolve_MissKeepsRawValue(t *testing.T) {
	l := newTestLinker(nil, "a")

	n := l.Resolve(rec("Quidditch", "Chudley Cannons", "Holyhead Harpies"))
	assert.False(t, n.SportResolved)
	assert.False(t, n.HomeResolved)
	assert.Equal(t, "Quidditch", n.Sport, "Unresolved fields keep the raw value")
	assert.Equal(t, "Chudley Cannons", n.HomeTeam)
}
