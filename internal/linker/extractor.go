package linker

import (
	"encoding/json"

	"github.com/joypciu/unified-odds-system-sub000/internal/models"
)

// OddsExtractor adapts one source's opaque odds payload for the unified
// record. Implementations live with the per-source glue; the core never
// interprets odds semantics.
type OddsExtractor interface {
	Extract(rec models.RawMatchRecord) (json.RawMessage, error)
}

// PassthroughExtractor emits the source payload unchanged. It is the default
// when no source-specific extractor is registered.
type PassthroughExtractor struct{}

// Extract returns the record's odds payload as-is.
func (PassthroughExtractor) Extract(rec models.RawMatchRecord) (json.RawMessage, error) {
	return rec.Odds, nil
}
