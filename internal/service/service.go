// Package service composes the note store, recorder session, playback
// session and backup into the operations the CLI exposes. It owns the
// cross-component invariants: there is exactly one recorder and one
// playback session, and deleting the note currently being played stops
// that playback first.
package service

import (
	"fmt"
	"log/slog"
	"sync"

	"github.com/voicenotelab/voicenote/internal/audio"
	"github.com/voicenotelab/voicenote/internal/backup"
	"github.com/voicenotelab/voicenote/internal/config"
	"github.com/voicenotelab/voicenote/internal/feedback"
	"github.com/voicenotelab/voicenote/internal/keyvalue"
	"github.com/voicenotelab/voicenote/internal/playback"
	"github.com/voicenotelab/voicenote/internal/store"
)

// Service is the application-facing surface of voicenote.
type Service interface {
	// Recording operations
	StartRecording() error
	StopRecording(title string) (*store.Note, error)
	DiscardRecording() error
	RecordingState() audio.State

	// Note operations
	List(query string) []store.Note
	Get(id string) *store.Note
	Rename(id, newTitle string) error
	Delete(id string) error

	// Playback operations
	Play(id string, opts playback.Options) error
	Pause()
	Resume()
	SetRate(rate float64) error
	StopPlayback()
	Playback() *playback.Session

	// Backup operations
	Export() (string, error)
	Import(path string) (int, error)

	// Feedback operations
	AddFeedback(name, email, message string) (*feedback.Entry, error)
	Feedback() []feedback.Entry
	ExportFeedback() (string, error)
}

// VoiceNoteService is the default Service implementation.
type VoiceNoteService struct {
	cfg      *config.Config
	notes    *store.Store
	recorder *audio.Recorder
	session  *playback.Session
	feedback *feedback.Store

	// Conflicting mutations are serialized; each operation completes,
	// including its persisted write, before the next one starts.
	mutex sync.Mutex
}

// New wires a service from configuration: key-value persistence under
// the data directory, ffmpeg capture and an mpv-driven playback session.
func New(cfg *config.Config) (Service, error) {
	kv, err := keyvalue.New(cfg.Storage.DataDirectory)
	if err != nil {
		return nil, fmt.Errorf("failed to open data directory: %w", err)
	}

	notes, err := store.New(kv, cfg.NotesDirectory())
	if err != nil {
		return nil, err
	}
	if err := notes.Load(); err != nil {
		return nil, err
	}

	fb := feedback.New(kv)
	if err := fb.Load(); err != nil {
		return nil, err
	}

	capture := audio.NewFFmpegCapture(cfg.Recording.Source, cfg.Recording.SampleRate)
	player := cfg.Playback.Player
	session := playback.NewSession(func() playback.Transport {
		return playback.NewMPVTransport(player)
	}, cfg.Playback.DefaultRate)

	return &VoiceNoteService{
		cfg:      cfg,
		notes:    notes,
		recorder: audio.NewRecorder(capture, cfg.Recording.Format),
		session:  session,
		feedback: fb,
	}, nil
}

// newWith assembles a service from pre-built parts; tests use it to
// substitute fake capture and transport.
func newWith(cfg *config.Config, notes *store.Store, recorder *audio.Recorder, session *playback.Session, fb *feedback.Store) *VoiceNoteService {
	return &VoiceNoteService{
		cfg:      cfg,
		notes:    notes,
		recorder: recorder,
		session:  session,
		feedback: fb,
	}
}

// StartRecording begins a capture. Only one may be in flight.
func (s *VoiceNoteService) StartRecording() error {
	return s.recorder.Start()
}

// StopRecording finalizes the in-flight capture and adds the result as a
// new note. Stopping with no recording in flight is a no-op returning a
// nil note.
func (s *VoiceNoteService) StopRecording(title string) (*store.Note, error) {
	result, err := s.recorder.Stop()
	if err != nil {
		return nil, err
	}
	if result == nil {
		return nil, nil
	}

	s.mutex.Lock()
	defer s.mutex.Unlock()
	return s.notes.Add(result.URI, result.DurationMs, title)
}

// DiscardRecording tears down an in-flight capture without keeping it.
func (s *VoiceNoteService) DiscardRecording() error {
	return s.recorder.Discard()
}

func (s *VoiceNoteService) RecordingState() audio.State {
	return s.recorder.State()
}

// List returns notes newest-first, filtered by query when non-empty.
func (s *VoiceNoteService) List(query string) []store.Note {
	return s.notes.Search(query)
}

func (s *VoiceNoteService) Get(id string) *store.Note {
	return s.notes.Get(id)
}

func (s *VoiceNoteService) Rename(id, newTitle string) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	return s.notes.Rename(id, newTitle)
}

// Delete removes a note and its audio file. If that note is currently
// loaded in the playback session, the session is stopped and released
// first so no dangling playback handle survives the delete.
func (s *VoiceNoteService) Delete(id string) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	if s.session.CurrentID() == id {
		slog.Debug("Stopping playback of note being deleted", "id", id)
		s.session.Stop()
	}
	return s.notes.Remove(id)
}

// Play starts playback of the note with the given id.
func (s *VoiceNoteService) Play(id string, opts playback.Options) error {
	note := s.notes.Get(id)
	if note == nil {
		return fmt.Errorf("no note with id %s", id)
	}
	return s.session.Play(*note, opts)
}

func (s *VoiceNoteService) Pause()  { s.session.Pause() }
func (s *VoiceNoteService) Resume() { s.session.Resume() }

func (s *VoiceNoteService) SetRate(rate float64) error {
	return s.session.SetRate(rate)
}

func (s *VoiceNoteService) StopPlayback() {
	s.session.Stop()
}

// Playback exposes the session for progress display and waiting.
func (s *VoiceNoteService) Playback() *playback.Session {
	return s.session
}

// Export writes the current note collection to a timestamped file in the
// configured export directory.
func (s *VoiceNoteService) Export() (string, error) {
	return backup.Export(s.notes.List(), s.cfg.Export.Directory)
}

// Import merges notes from a previously exported file. Accepted entries
// are prepended ahead of the existing list without id de-duplication,
// and only metadata is restored: the audio files must already exist
// under the managed directory. Returns the number of merged entries.
func (s *VoiceNoteService) Import(path string) (int, error) {
	accepted, err := backup.Import(path)
	if err != nil {
		return 0, err
	}
	if len(accepted) == 0 {
		return 0, nil
	}

	s.mutex.Lock()
	defer s.mutex.Unlock()

	merged := append(accepted, s.notes.List()...)
	if err := s.notes.Save(merged); err != nil {
		return 0, err
	}
	return len(accepted), nil
}

func (s *VoiceNoteService) AddFeedback(name, email, message string) (*feedback.Entry, error) {
	return s.feedback.Add(name, email, message)
}

func (s *VoiceNoteService) Feedback() []feedback.Entry {
	return s.feedback.List()
}

func (s *VoiceNoteService) ExportFeedback() (string, error) {
	return backup.ExportFeedback(s.feedback.List(), s.cfg.Export.Directory)
}
