// Package linker clusters per-source match records into unified multi-source
// records. Linkage is a pure function of the raw records, the canonical cache
// state, the similarity threshold and the source priority order: it has no
// side effects on any of them.
package linker

import (
	"sort"

	"github.com/rs/zerolog/log"

	"github.com/joypciu/unified-odds-system-sub000/internal/canonical"
	"github.com/joypciu/unified-odds-system-sub000/internal/metrics"
	"github.com/joypciu/unified-odds-system-sub000/internal/models"
	"github.com/joypciu/unified-odds-system-sub000/internal/normalize"
)

// DefaultThreshold is the similarity cutoff for the fuzzy fallback. 0.6 keeps
// cross-source reconciliation permissive enough that teams unknown to the
// cache do not block linkage.
const DefaultThreshold = 0.6

// Config tunes the linker.
type Config struct {
	// Threshold is the minimum pair score for a fuzzy match.
	Threshold float64
	// SourcePriority is the fixed order used to pick a group's primary
	// source and to order the per-source blocks of the unified record.
	SourcePriority []string
	// Extractors maps source id to its odds extractor. Missing entries fall
	// back to PassthroughExtractor.
	Extractors map[string]OddsExtractor
}

// Linker resolves records through the canonical cache and clusters them.
type Linker struct {
	cache *canonical.Cache
	cfg   Config
}

// node is one record's position in the flat linkage slice.
type node struct {
	source string
	index  int
	rank   int // position of source in the priority order
	rec    models.NormalizedMatchRecord
}

// New creates a linker over the given cache.
func New(cache *canonical.Cache, cfg Config) *Linker {
	if cfg.Threshold <= 0 {
		cfg.Threshold = DefaultThreshold
	}
	return &Linker{cache: cache, cfg: cfg}
}

// Resolve maps one raw record through the cache. Unresolved fields keep their
// raw value with the corresponding flag false.
func (l *Linker) Resolve(rec models.RawMatchRecord) models.NormalizedMatchRecord {
	out := models.NormalizedMatchRecord{Raw: rec}
	out.Sport, out.SportResolved = l.cache.CanonicalSport(rec.Sport)
	out.HomeTeam, out.HomeResolved = l.cache.CanonicalTeam(rec.HomeTeam)
	out.AwayTeam, out.AwayResolved = l.cache.CanonicalTeam(rec.AwayTeam)
	return out
}

// sportKey buckets records for the pairwise scan: the cache-resolved
// canonical sport, or the normalized raw name when unresolved.
func sportKey(rec models.NormalizedMatchRecord) string {
	return normalize.Normalize(rec.Sport)
}

// SameMatch decides whether two records describe the same real-world event.
// Symmetric by construction: every comparison is an unordered pair score.
func (l *Linker) SameMatch(a, b models.NormalizedMatchRecord) bool {
	if sportKey(a) != sportKey(b) {
		return false
	}

	// When every team field resolved through the cache, canonical names are
	// ground truth: only exact equality (straight or home/away swapped)
	// counts, fuzzy matching is deliberately refused.
	if a.HomeResolved && a.AwayResolved && b.HomeResolved && b.AwayResolved {
		straight := a.HomeTeam == b.HomeTeam && a.AwayTeam == b.AwayTeam
		swapped := a.HomeTeam == b.AwayTeam && a.AwayTeam == b.HomeTeam
		return straight || swapped
	}

	return l.score(a, b) >= l.cfg.Threshold
}

// score is the fuzzy pair score over normalized team names.
func (l *Linker) score(a, b models.NormalizedMatchRecord) float64 {
	return pairScore(
		normalize.Normalize(a.HomeTeam),
		normalize.Normalize(a.AwayTeam),
		normalize.Normalize(b.HomeTeam),
		normalize.Normalize(b.AwayTeam),
	)
}

// Link clusters records from all sources into unified records. The input is
// keyed by source id; every record ends up in exactly one unified record,
// single-source records included.
func (l *Linker) Link(records map[string][]models.RawMatchRecord) []models.UnifiedMatchRecord {
	nodes := l.buildNodes(records)
	if len(nodes) == 0 {
		return nil
	}

	groups := l.cluster(nodes)
	groups = l.repairCollisions(groups)

	unified := make([]models.UnifiedMatchRecord, 0, len(groups))
	for _, group := range groups {
		unified = append(unified, l.assemble(group))
	}

	sort.Slice(unified, func(i, j int) bool {
		a, b := unified[i], unified[j]
		if a.Sport != b.Sport {
			return a.Sport < b.Sport
		}
		if a.HomeTeam != b.HomeTeam {
			return a.HomeTeam < b.HomeTeam
		}
		if a.AwayTeam != b.AwayTeam {
			return a.AwayTeam < b.AwayTeam
		}
		return a.ScheduledTime < b.ScheduledTime
	})
	return unified
}

func (l *Linker) buildNodes(records map[string][]models.RawMatchRecord) []node {
	var nodes []node
	for rank, source := range l.cfg.SourcePriority {
		for i, rec := range records[source] {
			nodes = append(nodes, node{
				source: source,
				index:  i,
				rank:   rank,
				rec:    l.Resolve(rec),
			})
		}
	}
	return nodes
}

// cluster buckets nodes by normalized sport, runs the pairwise scan inside
// each bucket and returns the connected components. Bucketing keeps the
// O(|Si|*|Sj|) comparisons bounded per sport.
func (l *Linker) cluster(nodes []node) [][]node {
	uf := newUnionFind(len(nodes))

	buckets := make(map[string][]int)
	for i, n := range nodes {
		key := sportKey(n.rec)
		buckets[key] = append(buckets[key], i)
	}

	for _, bucket := range buckets {
		for x := 0; x < len(bucket); x++ {
			for y := x + 1; y < len(bucket); y++ {
				i, j := bucket[x], bucket[y]
				if nodes[i].source == nodes[j].source {
					continue
				}
				if l.SameMatch(nodes[i].rec, nodes[j].rec) {
					uf.union(i, j)
				}
			}
		}
	}

	byRoot := make(map[int][]node)
	var roots []int
	for i, n := range nodes {
		root := uf.find(i)
		if _, seen := byRoot[root]; !seen {
			roots = append(roots, root)
		}
		byRoot[root] = append(byRoot[root], n)
	}
	sort.Ints(roots)

	groups := make([][]node, 0, len(byRoot))
	for _, root := range roots {
		group := byRoot[root]
		sort.Slice(group, func(i, j int) bool {
			if group[i].rank != group[j].rank {
				return group[i].rank < group[j].rank
			}
			return group[i].index < group[j].index
		})
		groups = append(groups, group)
	}
	return groups
}

// repairCollisions enforces the at-most-one-record-per-source invariant.
// Producers occasionally emit duplicates; when a cluster holds two records
// from the same source, the one scoring best against the group's primary
// record stays and the rest are re-emitted as single-source groups.
func (l *Linker) repairCollisions(groups [][]node) [][]node {
	var out [][]node
	for _, group := range groups {
		perSource := make(map[string]int)
		for _, n := range group {
			perSource[n.source]++
		}

		collision := false
		for _, count := range perSource {
			if count > 1 {
				collision = true
				break
			}
		}
		if !collision {
			out = append(out, group)
			continue
		}

		primary := group[0]
		bestPerSource := make(map[string]int) // source -> index into group
		for i, n := range group {
			cur, ok := bestPerSource[n.source]
			if !ok || l.score(primary.rec, n.rec) > l.score(primary.rec, group[cur].rec) {
				bestPerSource[n.source] = i
			}
		}

		kept := make([]node, 0, len(bestPerSource))
		var evicted []node
		for i, n := range group {
			if bestPerSource[n.source] == i {
				kept = append(kept, n)
			} else {
				evicted = append(evicted, n)
			}
		}

		for _, n := range evicted {
			metrics.SameSourceCollisions.WithLabelValues(n.source).Inc()
			log.Warn().
				Str("source", n.source).
				Str("home", n.rec.HomeTeam).
				Str("away", n.rec.AwayTeam).
				Msg("Duplicate record from one source in a match group, splitting")
		}

		out = append(out, kept)
		for _, n := range evicted {
			out = append(out, []node{n})
		}
	}
	return out
}

// assemble builds the unified record for one group. The primary source (first
// configured source present) supplies the canonical fields; every configured
// source gets a block, with Available=false for sources absent from the group.
func (l *Linker) assemble(group []node) models.UnifiedMatchRecord {
	primary := group[0]

	bySource := make(map[string]node, len(group))
	for _, n := range group {
		if _, ok := bySource[n.source]; !ok {
			bySource[n.source] = n
		}
	}

	sources := make(map[string]models.SourceOdds, len(l.cfg.SourcePriority))
	for _, source := range l.cfg.SourcePriority {
		n, ok := bySource[source]
		if !ok {
			sources[source] = models.SourceOdds{Available: false}
			continue
		}

		extractor := l.extractor(source)
		odds, err := extractor.Extract(n.rec.Raw)
		if err != nil {
			log.Warn().
				Str("source", source).
				Str("home", n.rec.HomeTeam).
				Err(err).
				Msg("Odds extraction failed, passing payload through")
			odds = n.rec.Raw.Odds
		}
		sources[source] = models.SourceOdds{
			Available:   true,
			Odds:        odds,
			ExternalIDs: n.rec.Raw.ExternalIDs,
		}
	}

	return models.UnifiedMatchRecord{
		Sport:         primary.rec.Sport,
		HomeTeam:      primary.rec.HomeTeam,
		AwayTeam:      primary.rec.AwayTeam,
		ScheduledTime: primary.rec.Raw.ScheduledTime,
		IsLive:        primary.rec.Raw.IsLive,
		PrimarySource: primary.source,
		Sources:       sources,
	}
}

func (l *Linker) extractor(source string) OddsExtractor {
	if ex, ok := l.cfg.Extractors[source]; ok && ex != nil {
		return ex
	}
	return PassthroughExtractor{}
}
