// Package feedback holds user feedback entries, persisted independently
// from notes. The list is prepend-only and never reordered.
package feedback

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/voicenotelab/voicenote/internal/keyvalue"
)

const feedbackKey = "feedback"

// Entry is one piece of user feedback. Name and email are optional;
// the message is not.
type Entry struct {
	ID      string `json:"id"`
	Name    string `json:"name,omitempty"`
	Email   string `json:"email,omitempty" validate:"omitempty,email"`
	Message string `json:"message" validate:"required"`
	TS      int64  `json:"ts"` // epoch milliseconds
}

// Store persists feedback entries through the key-value store.
type Store struct {
	mutex    sync.Mutex
	kv       *keyvalue.Store
	entries  []Entry
	validate *validator.Validate
}

// New creates a feedback store persisting through kv.
func New(kv *keyvalue.Store) *Store {
	return &Store{
		kv:       kv,
		validate: validator.New(),
	}
}

// Load reads the persisted entries. Missing or unreadable blobs yield an
// empty list, same policy as the note store.
func (s *Store) Load() error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	data, err := s.kv.Get(feedbackKey)
	if err != nil {
		return fmt.Errorf("failed to load feedback: %w", err)
	}
	if data == nil {
		s.entries = nil
		return nil
	}

	var entries []Entry
	if err := json.Unmarshal(data, &entries); err != nil {
		slog.Warn("Persisted feedback is unreadable, starting with an empty list", "error", err)
		s.entries = nil
		return nil
	}
	s.entries = entries
	return nil
}

// Add validates and prepends a new entry. The stored order is insertion
// order, newest first, and is never re-sorted.
func (s *Store) Add(name, email, message string) (*Entry, error) {
	entry := Entry{
		ID:      uuid.NewString(),
		Name:    name,
		Email:   email,
		Message: message,
		TS:      time.Now().UnixMilli(),
	}
	if err := s.validate.Struct(entry); err != nil {
		return nil, fmt.Errorf("invalid feedback entry: %w", err)
	}

	s.mutex.Lock()
	defer s.mutex.Unlock()

	entries := append([]Entry{entry}, s.entries...)
	data, err := json.Marshal(entries)
	if err != nil {
		return nil, fmt.Errorf("failed to serialize feedback: %w", err)
	}
	if err := s.kv.Set(feedbackKey, data); err != nil {
		return nil, fmt.Errorf("failed to persist feedback: %w", err)
	}

	s.entries = entries
	return &entry, nil
}

// List returns a copy of the entries, newest first.
func (s *Store) List() []Entry {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	out := make([]Entry, len(s.entries))
	copy(out, s.entries)
	return out
}
