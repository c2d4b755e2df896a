package linker

import "github.com/agnivade/levenshtein"

// Similarity returns a normalized edit-distance ratio in [0,1]: 1 for equal
// strings, 0 for nothing in common. Inputs are expected to be normalized
// already; two empty strings count as identical.
func Similarity(a, b string) float64 {
	if a == b {
		return 1
	}
	if a == "" || b == "" {
		return 0
	}

	longest := len([]rune(a))
	if l := len([]rune(b)); l > longest {
		longest = l
	}

	dist := levenshtein.ComputeDistance(a, b)
	return 1 - float64(dist)/float64(longest)
}

// pairScore scores two home/away pairs as the better of the straight and
// swapped orderings' averages. Swap tolerance matters because sources do not
// agree on which team is listed as home.
func pairScore(homeA, awayA, homeB, awayB string) float64 {
	straight := (Similarity(homeA, homeB) + Similarity(awayA, awayB)) / 2
	swapped := (Similarity(homeA, awayB) + Similarity(awayA, homeB)) / 2
	if swapped > straight {
		return swapped
	}
	return straight
}
