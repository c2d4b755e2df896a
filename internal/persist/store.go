// Package persist provides crash-safe JSON file storage for the cache
// snapshot and the unified artifact: atomic replace via temp file + rename,
// two-tier locking (in-process mutex plus an OS advisory file lock), content
// validation before every write and timestamped backup rotation with
// corruption recovery on read.
package persist

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/gofrs/flock"
	"github.com/rs/zerolog/log"

	"github.com/joypciu/unified-odds-system-sub000/internal/metrics"
)

// ErrCorrupt is returned when neither the primary file nor any backup parses.
var ErrCorrupt = errors.New("stored file corrupt")

const backupTimeFormat = "20060102T150405.000000000"

// Options tune locking and backup behavior.
type Options struct {
	// Backups is how many timestamped backups to keep. Zero disables backups.
	Backups int
	// LockTimeout bounds the wait for the cross-process lock. On timeout the
	// writer proceeds unlocked: losing the race only risks a redundant
	// write, never corruption, because every write is an atomic replace.
	LockTimeout time.Duration
	// LockPoll is the lock retry interval.
	LockPoll time.Duration
}

// DefaultOptions matches the documented 100ms poll / 10s timeout discipline.
func DefaultOptions() Options {
	return Options{
		Backups:     10,
		LockTimeout: 10 * time.Second,
		LockPoll:    100 * time.Millisecond,
	}
}

// Store reads and writes one JSON file with atomic-replace semantics.
type Store struct {
	path string
	opts Options

	mu  sync.Mutex // serializes writers within this process
	flk *flock.Flock
}

// NewStore creates a store for path. The advisory lock lives next to the
// data file so the atomic rename never replaces the lock itself.
func NewStore(path string, opts Options) *Store {
	if opts.LockPoll <= 0 {
		opts.LockPoll = 100 * time.Millisecond
	}
	if opts.LockTimeout <= 0 {
		opts.LockTimeout = 10 * time.Second
	}
	return &Store{
		path: path,
		opts: opts,
		flk:  flock.New(path + ".lock"),
	}
}

// Path returns the primary file path.
func (s *Store) Path() string {
	return s.path
}

// WriteJSON serializes v, validates the result by re-parsing it, backs up the
// previous file (only if that file itself still parses), then atomically
// replaces the primary file. The on-disk file is always either the old or the
// new complete version, never a partial write.
func (s *Store) WriteJSON(v any) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	unlock := s.acquireFileLock()
	defer unlock()

	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		metrics.SnapshotWrites.WithLabelValues(filepath.Base(s.path), "error").Inc()
		return fmt.Errorf("failed to serialize %s: %w", s.path, err)
	}

	// Round-trip validation: never let an unparseable artifact reach disk.
	var check any
	if err := json.Unmarshal(data, &check); err != nil {
		metrics.SnapshotWrites.WithLabelValues(filepath.Base(s.path), "error").Inc()
		return fmt.Errorf("serialized %s does not re-parse: %w", s.path, err)
	}

	if s.opts.Backups > 0 {
		s.backupPrevious()
	}

	if err := s.atomicReplace(data); err != nil {
		metrics.SnapshotWrites.WithLabelValues(filepath.Base(s.path), "error").Inc()
		return err
	}

	if s.opts.Backups > 0 {
		s.rotateBackups()
	}

	metrics.SnapshotWrites.WithLabelValues(filepath.Base(s.path), "success").Inc()
	return nil
}

// ReadJSON loads the primary file into v. A corrupt primary falls back to the
// most recent backup that parses; only when every candidate fails does it
// return ErrCorrupt. A missing file (and no backups) surfaces fs.ErrNotExist.
func (s *Store) ReadJSON(v any) error {
	data, err := os.ReadFile(s.path)
	switch {
	case err == nil:
		jsonErr := json.Unmarshal(data, v)
		if jsonErr == nil {
			return nil
		}
		log.Warn().
			Str("file", s.path).
			Err(jsonErr).
			Msg("Primary file corrupt, trying backups")
	case errors.Is(err, fs.ErrNotExist):
		if len(s.listBackups()) == 0 {
			return fmt.Errorf("read %s: %w", s.path, fs.ErrNotExist)
		}
	default:
		return fmt.Errorf("failed to read %s: %w", s.path, err)
	}

	for _, backup := range s.listBackups() {
		data, err := os.ReadFile(backup)
		if err != nil {
			continue
		}
		if err := json.Unmarshal(data, v); err != nil {
			log.Warn().Str("backup", backup).Err(err).Msg("Backup corrupt, trying older one")
			continue
		}
		metrics.SnapshotRecoveries.WithLabelValues(filepath.Base(s.path)).Inc()
		log.Warn().
			Str("file", s.path).
			Str("backup", backup).
			Msg("Recovered from backup")
		return nil
	}

	return fmt.Errorf("%s and all backups failed to parse: %w", s.path, ErrCorrupt)
}

// acquireFileLock takes the OS advisory lock with bounded polling. On timeout
// the writer proceeds anyway; that trades strict cross-process serialization
// for availability, which is safe here because all cache mutations are
// additive and every write is a complete atomic replace.
func (s *Store) acquireFileLock() (unlock func()) {
	ctx, cancel := context.WithTimeout(context.Background(), s.opts.LockTimeout)
	defer cancel()

	start := time.Now()
	locked, err := s.flk.TryLockContext(ctx, s.opts.LockPoll)
	metrics.LockWaitDuration.Observe(time.Since(start).Seconds())

	if err != nil || !locked {
		metrics.LockTimeouts.Inc()
		log.Warn().
			Str("file", s.path).
			Dur("waited", time.Since(start)).
			Err(err).
			Msg("File lock not acquired in time, proceeding without it")
		return func() {}
	}
	return func() {
		if err := s.flk.Unlock(); err != nil {
			log.Warn().Str("file", s.path).Err(err).Msg("Failed to release file lock")
		}
	}
}

func (s *Store) atomicReplace(data []byte) error {
	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create %s: %w", dir, err)
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(s.path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("failed to write temp file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("failed to sync temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to close temp file: %w", err)
	}

	if err := os.Rename(tmpName, s.path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to replace %s: %w", s.path, err)
	}
	return nil
}

// backupPrevious copies the current primary to a timestamped .bak, but only
// when the current content parses: a corrupt file must not displace the most
// recent good backup in the rotation.
func (s *Store) backupPrevious() {
	data, err := os.ReadFile(s.path)
	if err != nil {
		return
	}
	if !json.Valid(data) {
		log.Warn().Str("file", s.path).Msg("Previous file corrupt, skipping backup")
		return
	}

	name := fmt.Sprintf("%s.%s.bak", s.path, time.Now().UTC().Format(backupTimeFormat))
	if err := os.WriteFile(name, data, 0o644); err != nil {
		log.Warn().Str("backup", name).Err(err).Msg("Failed to write backup")
	}
}

// listBackups returns backups newest first.
func (s *Store) listBackups() []string {
	matches, err := filepath.Glob(s.path + ".*.bak")
	if err != nil {
		return nil
	}
	sort.Sort(sort.Reverse(sort.StringSlice(matches)))
	return matches
}

func (s *Store) rotateBackups() {
	backups := s.listBackups()
	for _, old := range backups[min(len(backups), s.opts.Backups):] {
		if err := os.Remove(old); err != nil {
			log.Warn().Str("backup", old).Err(err).Msg("Failed to delete old backup")
		}
	}
}

// CleanupTemp removes stale temp files left behind by a crash mid-write.
func (s *Store) CleanupTemp() {
	matches, _ := filepath.Glob(s.path + ".tmp-*")
	for _, stale := range matches {
		if err := os.Remove(stale); err == nil {
			log.Info().Str("file", stale).Msg("Removed stale temp file")
		}
	}
}
