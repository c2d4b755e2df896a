// Package normalize provides the team/sport name normalization used by the
// canonical cache and the record linker. Normalization is total, deterministic
// and idempotent: Normalize(Normalize(s)) == Normalize(s) for every input.
package normalize

import (
	"regexp"
	"strings"
)

// parenthetical matches suffixes like "(W)", "(Youth)" or "(THREAT)" which mark
// women's/esports/youth variants of a team. They must not affect matching of
// the base name.
var parenthetical = regexp.MustCompile(`\([^)]*\)`)

var nonAlnum = regexp.MustCompile(`[^a-z0-9]+`)

// expansions maps common city/abbreviation tokens to their full spelling.
// Expansion output must never contain a token that is itself expandable or a
// stop token, otherwise idempotence breaks.
var expansions = map[string]string{
	"la":   "los angeles",
	"lal":  "los angeles",
	"ny":   "new york",
	"gs":   "golden state",
	"gsw":  "golden state",
	"sa":   "san antonio",
	"sf":   "san francisco",
	"man":  "manchester",
	"utd":  "united",
	"intl": "international",
}

// stopTokens are club-type suffixes that carry no discriminating information.
// "united" is deliberately absent: it distinguishes real clubs (Manchester
// United vs Manchester City) and must survive normalization.
var stopTokens = map[string]struct{}{
	"fc":  {},
	"cf":  {},
	"sc":  {},
	"afc": {},
	"cfc": {},
	"ssc": {},
	"ac":  {},
	"fk":  {},
	"bk":  {},
	"rc":  {},
	"nk":  {},
}

// Normalize lowercases, strips parenthetical suffixes, replaces punctuation
// with whitespace, expands known abbreviation tokens, drops club-type stop
// tokens and collapses whitespace. It never fails; empty input yields "".
func Normalize(s string) string {
	s = strings.ToLower(s)
	s = parenthetical.ReplaceAllString(s, " ")
	s = nonAlnum.ReplaceAllString(s, " ")

	fields := strings.Fields(s)
	if len(fields) == 0 {
		return ""
	}

	out := make([]string, 0, len(fields))
	for _, tok := range fields {
		if full, ok := expansions[tok]; ok {
			out = append(out, strings.Fields(full)...)
			continue
		}
		if _, drop := stopTokens[tok]; drop {
			continue
		}
		out = append(out, tok)
	}

	// A name made entirely of stop tokens keeps its raw tokens: dropping
	// everything would collapse distinct inputs onto the empty alias.
	if len(out) == 0 {
		return strings.Join(fields, " ")
	}

	return strings.Join(out, " ")
}
