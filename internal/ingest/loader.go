package ingest

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/joypciu/unified-odds-system-sub000/internal/metrics"
	"github.com/joypciu/unified-odds-system-sub000/internal/models"
)

// ErrBadShape is returned when a source file parses as JSON but the
// configured matches path does not lead to an array.
var ErrBadShape = errors.New("source file shape mismatch")

// element is one raw match object plus context picked up while walking the
// file (the sports_data layout carries the sport in the enclosing key).
type element struct {
	obj       map[string]any
	sportHint string
}

// Load reads one phase of a source file into raw match records. A missing
// file is not an error: producers may not have written yet, the cycle
// proceeds with the source treated as empty. Records missing required fields
// are skipped and counted, never fatal.
func Load(src Source, phase Phase) (records []models.RawMatchRecord, skipped int, err error) {
	path := src.File(phase)

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			log.Debug().Str("source", src.Name).Str("file", path).Msg("Source file absent, treating as empty")
			return nil, 0, nil
		}
		return nil, 0, fmt.Errorf("failed to read %s: %w", path, err)
	}

	var doc any
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, 0, fmt.Errorf("failed to parse %s: %w", path, err)
	}

	elements, err := walk(doc, strings.Split(src.MatchesPath, "."), "")
	if err != nil {
		return nil, 0, fmt.Errorf("%s: %w", path, err)
	}

	for _, el := range elements {
		rec, ok := mapRecord(src.Name, el, phase)
		if !ok {
			skipped++
			metrics.RecordsSkipped.WithLabelValues(src.Name).Inc()
			log.Warn().
				Str("source", src.Name).
				Str("file", path).
				Msg("Record missing required fields, skipped")
			continue
		}
		records = append(records, rec)
	}

	metrics.RecordsIngested.WithLabelValues(src.Name).Add(float64(len(records)))
	return records, skipped, nil
}

// walk follows the dot path into the decoded document. A "*" segment fans
// out over every value of an object, carrying the key along as a sport hint.
func walk(doc any, path []string, sportHint string) ([]element, error) {
	if len(path) == 0 {
		arr, ok := doc.([]any)
		if !ok {
			return nil, fmt.Errorf("%w: expected array at matches path", ErrBadShape)
		}
		out := make([]element, 0, len(arr))
		for _, item := range arr {
			obj, ok := item.(map[string]any)
			if !ok {
				continue
			}
			out = append(out, element{obj: obj, sportHint: sportHint})
		}
		return out, nil
	}

	obj, ok := doc.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("%w: expected object at %q", ErrBadShape, path[0])
	}

	if path[0] == "*" {
		var out []element
		for key, value := range obj {
			els, err := walk(value, path[1:], key)
			if err != nil {
				continue
			}
			out = append(out, els...)
		}
		return out, nil
	}

	child, ok := obj[path[0]]
	if !ok {
		return nil, fmt.Errorf("%w: missing key %q", ErrBadShape, path[0])
	}
	return walk(child, path[1:], sportHint)
}

// mapRecord converts one raw object, tolerating the producer field variants
// (sport|sport_name, home_team|team1, away_team|team2).
func mapRecord(source string, el element, phase Phase) (models.RawMatchRecord, bool) {
	obj := el.obj

	rec := models.RawMatchRecord{
		Source:        source,
		Sport:         getString(obj, "sport", "sport_name"),
		HomeTeam:      getString(obj, "home_team", "team1"),
		AwayTeam:      getString(obj, "away_team", "team2"),
		ScheduledTime: getString(obj, "scheduled_time", "start_time"),
		IsLive:        phase == PhaseLive,
	}

	if rec.Sport == "" {
		rec.Sport = el.sportHint
	}
	if rec.ScheduledTime == "" {
		date, tm := getString(obj, "date"), getString(obj, "time")
		rec.ScheduledTime = strings.TrimSpace(date + " " + tm)
	}
	if live, ok := obj["is_live"].(bool); ok {
		rec.IsLive = live
	}

	if ids, ok := obj["external_ids"].(map[string]any); ok {
		rec.ExternalIDs = make(map[string]string, len(ids))
		for k, v := range ids {
			if s, ok := v.(string); ok {
				rec.ExternalIDs[k] = s
			}
		}
	}
	if id := getString(obj, "id", "match_id", "event_id"); id != "" {
		if rec.ExternalIDs == nil {
			rec.ExternalIDs = make(map[string]string, 1)
		}
		rec.ExternalIDs[source] = id
	}

	for _, key := range []string{"odds", "odds_payload", "markets"} {
		if raw, ok := obj[key]; ok {
			if data, err := json.Marshal(raw); err == nil {
				rec.Odds = data
			}
			break
		}
	}

	if !rec.Valid() {
		return models.RawMatchRecord{}, false
	}
	return rec, true
}

func getString(obj map[string]any, keys ...string) string {
	for _, key := range keys {
		if v, ok := obj[key].(string); ok && strings.TrimSpace(v) != "" {
			return strings.TrimSpace(v)
		}
	}
	return ""
}
