package persist

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type payload struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}

func newTestStore(t *testing.T, backups int) *Store {
	t.Helper()
	dir := t.TempDir()
	opts := DefaultOptions()
	opts.Backups = backups
	return NewStore(filepath.Join(dir, "snapshot.json"), opts)
}

func TestStore_WriteReadRoundTrip(t *testing.T) {
	store := newTestStore(t, 3)

	in := payload{Name: "basketball", Count: 42}
	require.NoError(t, store.WriteJSON(in), "Should write snapshot")

	var out payload
	require.NoError(t, store.ReadJSON(&out), "Should read snapshot back")
	assert.Equal(t, in, out, "Round trip should preserve content")
}

func TestStore_ReadMissingFile(t *testing.T) {
	store := newTestStore(t, 3)

	var out payload
	err := store.ReadJSON(&out)
	assert.ErrorIs(t, err, os.ErrNotExist, "Missing file should surface ErrNotExist")
}

func TestStore_CorruptPrimaryRecoversFromBackup(t *testing.T) {
	store := newTestStore(t, 3)

	require.NoError(t, store.WriteJSON(payload{Name: "v1", Count: 1}))
	require.NoError(t, store.WriteJSON(payload{Name: "v2", Count: 2}), "Second write creates a backup of v1")

	// Corrupt the primary file in place.
	require.NoError(t, os.WriteFile(store.Path(), []byte("{truncated"), 0o644))

	var out payload
	require.NoError(t, store.ReadJSON(&out), "Read should fall back to backup")
	assert.Equal(t, "v1", out.Name, "Most recent backup holds the pre-corruption state")
}

func TestStore_CorruptEverythingReturnsErrCorrupt(t *testing.T) {
	store := newTestStore(t, 3)

	require.NoError(t, store.WriteJSON(payload{Name: "v1"}))
	require.NoError(t, store.WriteJSON(payload{Name: "v2"}))

	require.NoError(t, os.WriteFile(store.Path(), []byte("not json"), 0o644))
	for _, backup := range store.listBackups() {
		require.NoError(t, os.WriteFile(backup, []byte("also not json"), 0o644))
	}

	var out payload
	err := store.ReadJSON(&out)
	assert.ErrorIs(t, err, ErrCorrupt, "Should report corruption when nothing parses")
}

func TestStore_BackupRotationKeepsK(t *testing.T) {
	store := newTestStore(t, 2)

	for i := 0; i < 6; i++ {
		require.NoError(t, store.WriteJSON(payload{Count: i}))
	}

	assert.LessOrEqual(t, len(store.listBackups()), 2, "Rotation should keep at most K backups")
}

func TestStore_CorruptPreviousNotBackedUp(t *testing.T) {
	store := newTestStore(t, 3)

	require.NoError(t, store.WriteJSON(payload{Name: "good"}))
	require.NoError(t, os.WriteFile(store.Path(), []byte("garbage"), 0o644))

	// The corrupt primary must not enter the backup rotation.
	require.NoError(t, store.WriteJSON(payload{Name: "next"}))

	for _, backup := range store.listBackups() {
		data, err := os.ReadFile(backup)
		require.NoError(t, err)
		assert.NotContains(t, string(data), "garbage", "Corrupt content should never be backed up")
	}
}

// Simulates a crash between temp-file write and rename: the stale temp file
// must not affect reads, and the primary keeps its pre-crash content.
func TestStore_StaleTempFileIgnored(t *testing.T) {
	store := newTestStore(t, 3)

	require.NoError(t, store.WriteJSON(payload{Name: "durable", Count: 7}))
	require.NoError(t, os.WriteFile(store.Path()+".tmp-crash", []byte(`{"name":"half"`), 0o644))

	var out payload
	require.NoError(t, store.ReadJSON(&out))
	assert.Equal(t, "durable", out.Name, "Primary should be exactly the pre-crash version")

	store.CleanupTemp()
	_, err := os.Stat(store.Path() + ".tmp-crash")
	assert.ErrorIs(t, err, os.ErrNotExist, "Cleanup should remove stale temp files")
}

func TestStore_ConcurrentWriters(t *testing.T) {
	store := newTestStore(t, 2)

	done := make(chan struct{})
	for i := 0; i < 4; i++ {
		go func(n int) {
			defer func() { done <- struct{}{} }()
			for j := 0; j < 10; j++ {
				_ = store.WriteJSON(payload{Name: "writer", Count: n*100 + j})
			}
		}(i)
	}
	for i := 0; i < 4; i++ {
		<-done
	}

	var out payload
	require.NoError(t, store.ReadJSON(&out), "File must parse after concurrent writes")
	assert.Equal(t, "writer", out.Name)
}
