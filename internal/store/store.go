// Package store persists the recipient registry as a single JSON document.
// The whole document is rewritten on every mutation; there is no in-memory
// cache, so every read reflects the file as it is on disk.
package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/rs/zerolog"

	"github.com/mkrause/beacon/internal/models"
)

// Store reads and writes the recipients file. Writes within one process are
// serialized by a mutex; concurrent processes race last-write-wins, which is
// acceptable at installation-event volume.
type Store struct {
	path string
	log  zerolog.Logger
	mu   sync.Mutex
}

// Opts holds parameters for creating a Store.
type Opts struct {
	Path string
	Log  zerolog.Logger
}

// New creates a Store for the given recipients file path.
func New(opts Opts) (*Store, error) {
	if opts.Path == "" {
		return nil, fmt.Errorf("store: path is required")
	}
	return &Store{path: opts.Path, log: opts.Log}, nil
}

// Path returns the backing file path.
func (s *Store) Path() string { return s.path }

// Load reads the recipients file. A missing or unreadable file is a valid
// empty registry, not an error: the relay must keep serving when no bot has
// been installed yet or the file was hand-edited into garbage.
func (s *Store) Load() map[string]models.RecipientRecord {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			s.log.Warn().Err(err).Str("path", s.path).Msg("recipients file unreadable, treating as empty")
		}
		return map[string]models.RecipientRecord{}
	}
	var recipients map[string]models.RecipientRecord
	if err := json.Unmarshal(data, &recipients); err != nil {
		s.log.Warn().Err(err).Str("path", s.path).Msg("recipients file corrupt, treating as empty")
		return map[string]models.RecipientRecord{}
	}
	if recipients == nil {
		recipients = map[string]models.RecipientRecord{}
	}
	return recipients
}

// Save atomically replaces the recipients file with the given mapping. The
// document is written to a temp file in the same directory and renamed over
// the target, so a crash mid-write leaves the prior state intact.
func (s *Store) Save(recipients map[string]models.RecipientRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.saveLocked(recipients)
}

func (s *Store) saveLocked(recipients map[string]models.RecipientRecord) error {
	data, err := json.MarshalIndent(recipients, "", "  ")
	if err != nil {
		return fmt.Errorf("store: marshal recipients: %w", err)
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("store: create dir %s: %w", dir, err)
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(s.path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("store: create temp file: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("store: write temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("store: close temp file: %w", err)
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("store: rename temp file: %w", err)
	}

	s.log.Debug().Int("count", len(recipients)).Str("path", s.path).Msg("recipients saved")
	return nil
}

// Upsert stores one record, replacing any existing record for the same
// conversation id. Whole-mapping load-mutate-save round trip.
func (s *Store) Upsert(id string, rec models.RecipientRecord) error {
	if id == "" {
		return fmt.Errorf("store: upsert: conversation id is required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	recipients := s.Load()
	recipients[id] = rec
	return s.saveLocked(recipients)
}

// Remove deletes the record for the conversation id, returning the removed
// record when one existed. Removing an unknown id is a no-op.
func (s *Store) Remove(id string) (models.RecipientRecord, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	recipients := s.Load()
	rec, ok := recipients[id]
	if !ok {
		return models.RecipientRecord{}, false, nil
	}
	delete(recipients, id)
	if err := s.saveLocked(recipients); err != nil {
		return models.RecipientRecord{}, false, err
	}
	return rec, true, nil
}
