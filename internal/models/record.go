package models

import "encoding/json"

// RawMatchRecord is one match as emitted by a producer (scraper) file. The
// odds payload is opaque to the core: it is carried through untouched and
// handed to the source's odds extractor at assembly time.
type RawMatchRecord struct {
	Source        string            `json:"source"`
	Sport         string            `json:"sport"`
	HomeTeam      string            `json:"home_team"`
	AwayTeam      string            `json:"away_team"`
	ScheduledTime string            `json:"scheduled_time"`
	IsLive        bool              `json:"is_live"`
	ExternalIDs   map[string]string `json:"external_ids,omitempty"`
	Odds          json.RawMessage   `json:"odds,omitempty"`
}

// Valid reports whether the record carries the fields linkage requires.
// Records failing this are skipped, never fatal.
func (r *RawMatchRecord) Valid() bool {
	return r.Sport != "" && r.HomeTeam != "" && r.AwayTeam != ""
}

// NormalizedMatchRecord is a RawMatchRecord whose sport/home/away fields have
// been resolved through the canonical cache. Unresolved fields keep the raw
// value with the matching flag false; the raw record is retained for audit.
type NormalizedMatchRecord struct {
	Raw RawMatchRecord

	Sport    string
	HomeTeam string
	AwayTeam string

	SportResolved bool
	HomeResolved  bool
	AwayResolved  bool
}
