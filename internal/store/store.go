// Package store owns the canonical list of voice notes and the managed
// directory holding their audio files.
//
// The list is kept in memory and written through to the key-value store
// as a single JSON blob after every mutation, so memory and disk are
// identical whenever a mutation returns. The list is always sorted
// newest-first.
package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/voicenotelab/voicenote/internal/keyvalue"
)

// ErrFileMoveFailed is returned when a freshly recorded file could not be
// moved into the managed directory, even after falling back to
// copy-then-delete. The note is not added in that case.
var ErrFileMoveFailed = errors.New("failed to move recording into notes directory")

const (
	notesKey = "notes"

	// DefaultTitle is used when a note is created without a title.
	DefaultTitle = "Untitled Recording"

	// reversedSuffix is inserted before the extension to locate a
	// pre-rendered reversed sibling file. The system never reverses
	// audio itself; it only substitutes such a file when present.
	reversedSuffix = "_reversed"
)

// Note is one persisted voice recording's metadata record.
type Note struct {
	ID        string `json:"id"`
	Title     string `json:"title"`
	URI       string `json:"uri"`
	CreatedAt int64  `json:"createdAt"` // epoch milliseconds, sole sort key
	Duration  int64  `json:"duration"`  // milliseconds, best effort, 0 if unknown
}

// Store holds the in-memory note list and persists it through kv.
type Store struct {
	mutex    sync.RWMutex
	kv       *keyvalue.Store
	notesDir string
	notes    []Note

	// now is swappable in tests so CreatedAt ordering is deterministic.
	now func() time.Time
}

// New creates a note store persisting through kv, with audio files owned
// by notesDir. The directory is created if it does not exist.
func New(kv *keyvalue.Store, notesDir string) (*Store, error) {
	if err := os.MkdirAll(notesDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create notes directory: %w", err)
	}
	return &Store{
		kv:       kv,
		notesDir: notesDir,
		now:      time.Now,
	}, nil
}

// Load reads the persisted collection into memory. A missing blob yields
// an empty list. A malformed blob also yields an empty list: the store
// fails soft with a logged warning rather than refusing to start, so a
// corrupted metadata file never locks the user out of recording.
func (s *Store) Load() error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	data, err := s.kv.Get(notesKey)
	if err != nil {
		return fmt.Errorf("failed to load notes: %w", err)
	}
	if data == nil {
		s.notes = nil
		return nil
	}

	var notes []Note
	if err := json.Unmarshal(data, &notes); err != nil {
		slog.Warn("Persisted notes are unreadable, starting with an empty list", "error", err)
		s.notes = nil
		return nil
	}

	sortNotes(notes)
	s.notes = notes
	return nil
}

// Save sorts the given list newest-first, persists it, and replaces the
// in-memory collection. The in-memory list only changes once the write
// succeeded, so memory always mirrors the last successful persist.
func (s *Store) Save(notes []Note) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	return s.saveLocked(notes)
}

func (s *Store) saveLocked(notes []Note) error {
	sorted := make([]Note, len(notes))
	copy(sorted, notes)
	sortNotes(sorted)

	data, err := json.Marshal(sorted)
	if err != nil {
		return fmt.Errorf("failed to serialize notes: %w", err)
	}
	if err := s.kv.Set(notesKey, data); err != nil {
		return fmt.Errorf("failed to persist notes: %w", err)
	}

	s.notes = sorted
	return nil
}

// Add moves the temporary recording at tempURI into the managed
// directory under a fresh id, constructs a Note and prepends it to the
// list. If the move fails a copy-then-delete is attempted; if both fail
// the note is not added and ErrFileMoveFailed is returned. The temporary
// file may be left behind in that branch.
func (s *Store) Add(tempURI string, durationMs int64, title string) (*Note, error) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	if title == "" {
		title = DefaultTitle
	}

	id := uuid.NewString()
	dest := filepath.Join(s.notesDir, id+filepath.Ext(tempURI))

	if err := moveFile(tempURI, dest); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrFileMoveFailed, err)
	}

	note := Note{
		ID:        id,
		Title:     title,
		URI:       dest,
		CreatedAt: s.now().UnixMilli(),
		Duration:  durationMs,
	}

	if err := s.saveLocked(append([]Note{note}, s.notes...)); err != nil {
		return nil, err
	}

	slog.Info("Note added", "id", note.ID, "title", note.Title, "duration_ms", note.Duration)
	return &note, nil
}

// Rename replaces the title of the note with the given id. Absent ids
// are a no-op. The id, uri and creation time never change.
func (s *Store) Rename(id, newTitle string) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	updated := make([]Note, len(s.notes))
	copy(updated, s.notes)
	found := false
	for i := range updated {
		if updated[i].ID == id {
			updated[i].Title = newTitle
			found = true
			break
		}
	}
	if !found {
		return nil
	}
	return s.saveLocked(updated)
}

// Remove deletes the note's audio file and drops its record. A missing
// file is not an error: deletion is idempotent. Callers that might have
// the note loaded in a playback session must stop that session first.
func (s *Store) Remove(id string) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	remaining := make([]Note, 0, len(s.notes))
	for _, n := range s.notes {
		if n.ID != id {
			remaining = append(remaining, n)
			continue
		}
		if err := os.Remove(n.URI); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("failed to delete audio file for note %s: %w", id, err)
		}
	}
	if len(remaining) == len(s.notes) {
		return nil
	}
	return s.saveLocked(remaining)
}

// Get returns the note with the given id, or nil if absent.
func (s *Store) Get(id string) *Note {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	for _, n := range s.notes {
		if n.ID == id {
			note := n
			return &note
		}
	}
	return nil
}

// List returns a copy of the current collection, newest-first.
func (s *Store) List() []Note {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	out := make([]Note, len(s.notes))
	copy(out, s.notes)
	return out
}

// Search returns notes whose title contains query, case-insensitively.
// An empty query returns the full list.
func (s *Store) Search(query string) []Note {
	if query == "" {
		return s.List()
	}

	s.mutex.RLock()
	defer s.mutex.RUnlock()

	q := strings.ToLower(query)
	var out []Note
	for _, n := range s.notes {
		if strings.Contains(strings.ToLower(n.Title), q) {
			out = append(out, n)
		}
	}
	return out
}

// NotesDir returns the managed directory owning the audio files.
func (s *Store) NotesDir() string {
	return s.notesDir
}

// ReversedSibling resolves the conventionally named reversed variant of
// the given audio file: the same path with "_reversed" inserted before
// the extension. The second return reports whether the file exists.
func ReversedSibling(uri string) (string, bool) {
	ext := filepath.Ext(uri)
	sibling := strings.TrimSuffix(uri, ext) + reversedSuffix + ext
	if _, err := os.Stat(sibling); err != nil {
		return sibling, false
	}
	return sibling, true
}

func sortNotes(notes []Note) {
	sort.SliceStable(notes, func(i, j int) bool {
		return notes[i].CreatedAt > notes[j].CreatedAt
	})
}

// moveFile renames src to dest, falling back to copy-then-delete when
// the rename fails (typically because temp and notes directories live on
// different filesystems).
func moveFile(src, dest string) error {
	if err := os.Rename(src, dest); err == nil {
		return nil
	}

	data, err := os.ReadFile(src)
	if err != nil {
		return fmt.Errorf("copy fallback failed to read source: %w", err)
	}
	if err := os.WriteFile(dest, data, 0o644); err != nil {
		return fmt.Errorf("copy fallback failed to write destination: %w", err)
	}
	if err := os.Remove(src); err != nil {
		slog.Warn("Failed to remove temporary recording after copy", "path", src, "error", err)
	}
	return nil
}
