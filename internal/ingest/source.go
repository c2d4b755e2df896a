// Package ingest reads the per-source match files that producer scrapers
// emit. Each source owns its file shape; the loader only needs to know where
// the match array lives and tolerates the field-name variants producers use.
package ingest

import "path/filepath"

// Phase selects which of a source's files to read.
type Phase string

const (
	PhasePregame Phase = "pregame"
	PhaseLive    Phase = "live"
)

// Source describes one producer's output files.
type Source struct {
	// Name is the producer identifier used throughout the unified artifact.
	Name string
	// PregamePath and LivePath are the JSON files the producer writes.
	PregamePath string
	LivePath    string
	// MatchesPath is the dot path to the match array inside the file, e.g.
	// "matches", "data.matches" or "sports_data.*.games". A "*" segment
	// descends into every value of an object; for the sports_data layout the
	// object key doubles as the sport name when elements omit their own.
	MatchesPath string
}

// File returns the path for a phase.
func (s Source) File(phase Phase) string {
	if phase == PhaseLive {
		return s.LivePath
	}
	return s.PregamePath
}

// DefaultSource builds a source following the repository's file convention:
// <dir>/<name>_pregame.json and <dir>/<name>_live.json with a top-level
// "matches" array.
func DefaultSource(dir, name string) Source {
	return Source{
		Name:        name,
		PregamePath: filepath.Join(dir, name+"_pregame.json"),
		LivePath:    filepath.Join(dir, name+"_live.json"),
		MatchesPath: "matches",
	}
}
