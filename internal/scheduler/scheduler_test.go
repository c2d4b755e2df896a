package scheduler

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joypciu/unified-odds-system-sub000/internal/ingest"
)

func TestSourcesChanged(t *testing.T) {
	dir := t.TempDir()
	src := ingest.DefaultSource(dir, "alpha")
	s := &Scheduler{sources: []ingest.Source{src}, lastSeen: map[string]time.Time{}}

	assert.False(t, s.sourcesChanged(), "Nothing on disk, nothing changed")

	path := filepath.Join(dir, "alpha_pregame.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"matches": []}`), 0o644))
	assert.True(t, s.sourcesChanged(), "New file counts as a change")
	assert.False(t, s.sourcesChanged(), "No rewrite since last poll")

	// Backdate then rewrite to guarantee a different mtime.
	past := time.Now().Add(-time.Hour)
	require.NoError(t, os.Chtimes(path, past, past))
	assert.True(t, s.sourcesChanged(), "Touched file counts as a change")

	require.NoError(t, os.Remove(path))
	assert.True(t, s.sourcesChanged(), "Removed file counts as a change")
	assert.False(t, s.sourcesChanged(), "Absence is stable afterwards")
}
