package checkpoint

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"jellyfin-migrator/core/migerr"
	"jellyfin-migrator/feature/ids"

	"github.com/gofrs/flock"
)

// Store owns one checkpoint. All methods are safe for concurrent use; writes
// are serialized.
type Store struct {
	path string
	lock *flock.Flock

	mu      sync.Mutex
	state   *State
	items   map[string]struct{}
	journal *os.File
	now     func() time.Time
}

// Open locks the checkpoint at path. It fails with migerr.ErrCheckpointLocked
// when another process holds it.
func Open(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create checkpoint directory: %w", err)
	}
	lock := flock.New(path + ".lock")
	ok, err := lock.TryLock()
	if err != nil {
		return nil, fmt.Errorf("acquire checkpoint lock: %w", err)
	}
	if !ok {
		return nil, fmt.Errorf("%w: %s", migerr.ErrCheckpointLocked, path)
	}
	return &Store{
		path:  path,
		lock:  lock,
		items: make(map[string]struct{}),
		now:   func() time.Time { return time.Now().UTC() },
	}, nil
}

// Path returns the snapshot location.
func (s *Store) Path() string {
	return s.path
}

func (s *Store) journalPath() string {
	return s.path + ".journal"
}

// Begin loads the checkpoint or creates a new one. With reset the existing
// checkpoint is discarded first. Resuming against a different fingerprint
// fails with migerr.ErrConfigFingerprintMismatch.
func (s *Store) Begin(runID, fingerprint string, reset bool) (resumed bool, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if reset {
		if err := s.removeLocked(); err != nil {
			return false, err
		}
	}

	st, err := Load(s.path)
	switch {
	case err == nil:
		if st.ConfigFingerprint != fingerprint {
			return false, fmt.Errorf("%w: checkpoint %s was created with fingerprint %s, configuration now has %s",
				migerr.ErrConfigFingerprintMismatch, s.path, short(st.ConfigFingerprint), short(fingerprint))
		}
		resumed = true
	case errors.Is(err, os.ErrNotExist):
		st = newState(runID, fingerprint, s.now())
	default:
		return false, err
	}

	s.state = st
	s.items = make(map[string]struct{}, len(st.CompletedItems))
	for _, k := range st.CompletedItems {
		s.items[k] = struct{}{}
	}

	// Folding the journal into a fresh snapshot also drops a torn tail.
	if err := s.writeSnapshotLocked(); err != nil {
		return false, err
	}
	if err := s.openJournalLocked(); err != nil {
		return false, err
	}
	return resumed, nil
}

// Reset discards the checkpoint on disk and in memory.
func (s *Store) Reset() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.removeLocked()
}

func (s *Store) removeLocked() error {
	if s.journal != nil {
		_ = s.journal.Close()
		s.journal = nil
	}
	s.state = nil
	s.items = make(map[string]struct{})
	for _, p := range []string{s.path, s.journalPath()} {
		if err := os.Remove(p); err != nil && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("remove %s: %w", p, err)
		}
	}
	return nil
}

// Close flushes a final snapshot and releases the lock.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var firstErr error
	if s.state != nil {
		firstErr = s.writeSnapshotLocked()
	}
	if s.journal != nil {
		if err := s.journal.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
		s.journal = nil
	}
	if err := s.lock.Unlock(); err != nil && firstErr == nil {
		firstErr = err
	}
	return firstErr
}

// CurrentStage returns the stage that has not completed yet.
func (s *Store) CurrentStage() Stage {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == nil {
		return Stages[0]
	}
	return s.state.CurrentStage
}

// IsStageComplete reports whether st has been recorded complete.
func (s *Store) IsStageComplete(st Stage) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state != nil && st.Index() >= 0 && st.Index() < s.state.CurrentStage.Index()
}

// CompleteStage records st as complete and advances to the next stage. A
// non-nil registry replaces the persisted registry snapshot.
func (s *Store) CompleteStage(st Stage, registry []ids.Pair) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.requireLocked(); err != nil {
		return err
	}
	if s.state.CurrentStage != st {
		return fmt.Errorf("%w: cannot complete %s while %s is current", migerr.ErrStageOrder, st, s.state.CurrentStage)
	}
	s.state.CompletedStages = append(s.state.CompletedStages, st)
	s.state.CurrentStage = st.Next()
	if registry != nil {
		s.state.Registry = registry
	}
	return s.writeSnapshotLocked()
}

// Registry returns the persisted registry snapshot.
func (s *Store) Registry() []ids.Pair {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == nil {
		return nil
	}
	return append([]ids.Pair(nil), s.state.Registry...)
}

// IsDone reports whether a work item was recorded complete.
func (s *Store) IsDone(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.items[key]
	return ok
}

// MarkDone durably records a work item as complete.
func (s *Store) MarkDone(key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.requireLocked(); err != nil {
		return err
	}
	if _, ok := s.items[key]; ok {
		return nil
	}
	if err := s.appendLocked(journalRecord{Op: opItem, Key: key}); err != nil {
		return err
	}
	s.items[key] = struct{}{}
	return nil
}

// Cursor returns the last committed position of a table unit.
func (s *Store) Cursor(key string) (int64, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == nil {
		return 0, false
	}
	v, ok := s.state.Cursors[key]
	return v, ok
}

// SetCursor durably records the last committed position of a table unit.
func (s *Store) SetCursor(key string, value int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.requireLocked(); err != nil {
		return err
	}
	if err := s.appendLocked(journalRecord{Op: opCursor, Key: key, Value: value}); err != nil {
		return err
	}
	s.state.Cursors[key] = value
	return nil
}

// Snapshot returns a copy of the current state.
func (s *Store) Snapshot() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == nil {
		return State{}
	}
	out := *s.state
	out.CompletedItems = s.sortedItemsLocked()
	out.CompletedStages = append([]Stage(nil), s.state.CompletedStages...)
	out.Cursors = make(map[string]int64, len(s.state.Cursors))
	for k, v := range s.state.Cursors {
		out.Cursors[k] = v
	}
	out.Registry = append([]ids.Pair(nil), s.state.Registry...)
	return out
}

func (s *Store) requireLocked() error {
	if s.state == nil {
		return errors.New("checkpoint not started, call Begin first")
	}
	return nil
}

func (s *Store) sortedItemsLocked() []string {
	keys := make([]string, 0, len(s.items))
	for k := range s.items {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func (s *Store) appendLocked(rec journalRecord) error {
	if s.journal == nil {
		return errors.New("checkpoint journal is not open")
	}
	line, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	line = append(line, '\n')
	if _, err := s.journal.Write(line); err != nil {
		return fmt.Errorf("append checkpoint journal: %w", err)
	}
	if err := s.journal.Sync(); err != nil {
		return fmt.Errorf("sync checkpoint journal: %w", err)
	}
	return nil
}

func (s *Store) openJournalLocked() error {
	f, err := os.OpenFile(s.journalPath(), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("open checkpoint journal: %w", err)
	}
	if err := f.Truncate(0); err != nil {
		_ = f.Close()
		return fmt.Errorf("truncate checkpoint journal: %w", err)
	}
	s.journal = f
	return nil
}

// writeSnapshotLocked replaces the snapshot atomically and empties the journal.
func (s *Store) writeSnapshotLocked() error {
	s.state.UpdatedAt = s.now()
	s.state.CompletedItems = s.sortedItemsLocked()

	raw, err := json.Marshal(s.state)
	if err != nil {
		return fmt.Errorf("encode checkpoint: %w", err)
	}
	sum := sha256.Sum256(raw)
	data, err := json.Marshal(envelope{
		Version:  FormatVersion,
		Checksum: hex.EncodeToString(sum[:]),
		State:    raw,
	})
	if err != nil {
		return fmt.Errorf("encode checkpoint envelope: %w", err)
	}

	if err := writeFileAtomic(s.path, data); err != nil {
		return err
	}
	if s.journal != nil {
		if err := s.journal.Truncate(0); err != nil {
			return fmt.Errorf("truncate checkpoint journal: %w", err)
		}
		if err := s.journal.Sync(); err != nil {
			return fmt.Errorf("sync checkpoint journal: %w", err)
		}
	}
	return nil
}

func writeFileAtomic(path string, data []byte) error {
	tmp := path + ".tmp"
	f, err := os.OpenFile(tmp, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return fmt.Errorf("create %s: %w", tmp, err)
	}
	if _, err := f.Write(data); err != nil {
		_ = f.Close()
		return fmt.Errorf("write %s: %w", tmp, err)
	}
	if err := f.Sync(); err != nil {
		_ = f.Close()
		return fmt.Errorf("sync %s: %w", tmp, err)
	}
	if err := f.Close(); err != nil {
		return err
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("replace %s: %w", path, err)
	}
	if dir, err := os.Open(filepath.Dir(path)); err == nil {
		_ = dir.Sync()
		_ = dir.Close()
	}
	return nil
}

// Load reads the snapshot at path and replays its journal. It does not take
// the lock. A missing snapshot yields an error matching os.ErrNotExist.
func Load(path string) (*State, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			if info, jerr := os.Stat(path + ".journal"); jerr == nil && info.Size() > 0 {
				return nil, fmt.Errorf("%w: journal %s.journal has no snapshot", migerr.ErrCheckpointCorruption, path)
			}
		}
		return nil, err
	}

	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", migerr.ErrCheckpointCorruption, path, err)
	}
	if env.Version != FormatVersion {
		return nil, fmt.Errorf("%w: %s has format version %d, expected %d", migerr.ErrCheckpointCorruption, path, env.Version, FormatVersion)
	}
	sum := sha256.Sum256(env.State)
	if hex.EncodeToString(sum[:]) != env.Checksum {
		return nil, fmt.Errorf("%w: %s checksum mismatch", migerr.ErrCheckpointCorruption, path)
	}

	var st State
	if err := json.Unmarshal(env.State, &st); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", migerr.ErrCheckpointCorruption, path, err)
	}
	if err := st.validate(); err != nil {
		return nil, err
	}
	if err := replayJournal(path+".journal", &st); err != nil {
		return nil, err
	}
	return &st, nil
}

func replayJournal(path string, st *State) error {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("read checkpoint journal: %w", err)
	}

	items := make(map[string]struct{}, len(st.CompletedItems))
	for _, k := range st.CompletedItems {
		items[k] = struct{}{}
	}

	lines := bytes.Split(data, []byte("\n"))
	// The segment after the last newline is either empty or a torn write.
	lines = lines[:len(lines)-1]
	for i, line := range lines {
		var rec journalRecord
		if err := json.Unmarshal(line, &rec); err != nil {
			return fmt.Errorf("%w: journal line %d: %v", migerr.ErrCheckpointCorruption, i+1, err)
		}
		switch rec.Op {
		case opItem:
			items[rec.Key] = struct{}{}
		case opCursor:
			st.Cursors[rec.Key] = rec.Value
		default:
			return fmt.Errorf("%w: journal line %d has unknown op %q", migerr.ErrCheckpointCorruption, i+1, rec.Op)
		}
	}

	st.CompletedItems = make([]string, 0, len(items))
	for k := range items {
		st.CompletedItems = append(st.CompletedItems, k)
	}
	sort.Strings(st.CompletedItems)
	return nil
}

func short(fp string) string {
	if len(fp) > 12 {
		return fp[:12]
	}
	return fp
}
