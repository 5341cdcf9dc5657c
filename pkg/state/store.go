// Package state persists the pipeline's idempotency ledger: the last
// successful fetch boundary, every processed meeting, and run statistics.
// One JSON file backs the whole ledger; the Store serializes access so the
// pipeline can process meetings concurrently.
package state

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	mserrors "github.com/otherjamesbrown/meetsync/pkg/errors"
	"github.com/otherjamesbrown/meetsync/pkg/logging"
)

// RunStatus classifies the outcome of one pipeline run.
type RunStatus string

const (
	StatusSuccess RunStatus = "success"
	StatusPartial RunStatus = "partial"
	StatusFailure RunStatus = "failure"
)

// ProcessedEntry records one archived meeting. Entries are append-only and
// never overwritten; they drive duplicate suppression and auditing.
type ProcessedEntry struct {
	UUID           string    `json:"uuid"`
	NumericID      int64     `json:"numeric_id"`
	ProcessedAt    time.Time `json:"processed_at"`
	OutputLocation string    `json:"output_location"`
	ContentHash    string    `json:"content_hash"`
}

// Statistics aggregates run outcomes across the archive's lifetime.
type Statistics struct {
	TotalProcessed      int       `json:"total_processed"`
	LastRunStatus       RunStatus `json:"last_run_status,omitempty"`
	LastRunAt           time.Time `json:"last_run_at,omitempty"`
	ConsecutiveFailures int       `json:"consecutive_failures"`
}

// RunState is the full persisted ledger.
type RunState struct {
	LastFetchTimestamp time.Time                 `json:"last_fetch_timestamp"`
	ProcessedEntries   map[string]ProcessedEntry `json:"processed_entries"`
	Statistics         Statistics                `json:"statistics"`
}

// Store owns a RunState backed by one JSON file.
type Store struct {
	path     string
	lookback time.Duration
	logger   logging.Logger
	now      func() time.Time

	mu    sync.Mutex
	state RunState
}

// NewStore creates a Store for the given file path. lookback bounds how far
// back the very first run may fetch, so a fresh archive doesn't request a
// window outside the upstream's retention.
func NewStore(path string, lookback time.Duration, logger logging.Logger) *Store {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	return &Store{
		path:     path,
		lookback: lookback,
		logger:   logger.With(logging.F("component", "state")),
		now:      time.Now,
	}
}

// Load reads the persisted ledger. A missing file initializes a fresh state
// whose fetch boundary sits lookback in the past; a corrupt file is logged
// and treated the same way rather than failing the run.
func (s *Store) Load() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.path)
	if os.IsNotExist(err) {
		s.state = s.freshState()
		s.logger.Info("no state file, starting fresh",
			logging.F("path", s.path),
			logging.F("boundary", s.state.LastFetchTimestamp))
		return nil
	}
	if err != nil {
		s.logger.Warn("state file unreadable, starting fresh",
			logging.F("path", s.path), logging.Err(err))
		s.state = s.freshState()
		return nil
	}

	var loaded RunState
	if err := json.Unmarshal(data, &loaded); err != nil {
		s.logger.Warn("state file corrupt, starting fresh",
			logging.F("path", s.path), logging.Err(err))
		s.state = s.freshState()
		return nil
	}
	if loaded.ProcessedEntries == nil {
		loaded.ProcessedEntries = make(map[string]ProcessedEntry)
	}
	s.state = loaded
	return nil
}

func (s *Store) freshState() RunState {
	return RunState{
		LastFetchTimestamp: s.now().Add(-s.lookback),
		ProcessedEntries:   make(map[string]ProcessedEntry),
	}
}

// IsProcessed reports whether the meeting uuid is already in the ledger.
func (s *Store) IsProcessed(uuid string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.state.ProcessedEntries[uuid]
	return ok
}

// RecordProcessed appends one entry. Recording a uuid twice is an internal
// invariant violation and fails with a duplicate-key error.
func (s *Store) RecordProcessed(entry ProcessedEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.state.ProcessedEntries[entry.UUID]; ok {
		return fmt.Errorf("uuid %s already recorded: %w", entry.UUID, mserrors.ErrDuplicateKey)
	}
	s.state.ProcessedEntries[entry.UUID] = entry
	s.state.Statistics.TotalProcessed++
	return nil
}

// AdvanceFetchBoundary moves the fetch boundary forward. Earlier timestamps
// are ignored so the boundary stays monotonic.
func (s *Store) AdvanceFetchBoundary(ts time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if ts.Before(s.state.LastFetchTimestamp) {
		s.logger.Warn("refusing to move fetch boundary backwards",
			logging.F("current", s.state.LastFetchTimestamp),
			logging.F("requested", ts))
		return
	}
	s.state.LastFetchTimestamp = ts
}

// LastFetchTimestamp returns the current fetch boundary.
func (s *Store) LastFetchTimestamp() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.LastFetchTimestamp
}

// RecordRunOutcome records the status of a finished run. A failure bumps the
// consecutive-failure counter; anything else resets it.
func (s *Store) RecordRunOutcome(status RunStatus) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.state.Statistics.LastRunStatus = status
	s.state.Statistics.LastRunAt = s.now()
	if status == StatusFailure {
		s.state.Statistics.ConsecutiveFailures++
	} else {
		s.state.Statistics.ConsecutiveFailures = 0
	}
}

// Snapshot returns a copy of the current ledger for reporting.
func (s *Store) Snapshot() RunState {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries := make(map[string]ProcessedEntry, len(s.state.ProcessedEntries))
	for k, v := range s.state.ProcessedEntries {
		entries[k] = v
	}
	out := s.state
	out.ProcessedEntries = entries
	return out
}

// Save atomically persists the full ledger: write to a temp file in the same
// directory, then rename over the target. A failed save is fatal for the run,
// since losing the boundary or the processed set permits duplicates.
func (s *Store) Save() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := json.MarshalIndent(s.state, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding state: %w: %v", mserrors.ErrPersistence, err)
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating state directory: %w: %v", mserrors.ErrPersistence, err)
	}

	tmp, err := os.CreateTemp(dir, ".state-*.json")
	if err != nil {
		return fmt.Errorf("creating temp state file: %w: %v", mserrors.ErrPersistence, err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("writing state: %w: %v", mserrors.ErrPersistence, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("closing state file: %w: %v", mserrors.ErrPersistence, err)
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("replacing state file: %w: %v", mserrors.ErrPersistence, err)
	}

	s.logger.Debug("state saved",
		logging.F("path", s.path),
		logging.F("processed", len(s.state.ProcessedEntries)))
	return nil
}
