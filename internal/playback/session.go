// Package playback implements the single playback session: the one
// handle controlling whichever note is currently audible.
//
// At most one transport is ever live. Starting playback of a new note
// fully stops and releases the previous transport before the new source
// is loaded, so two decoders never run concurrently, even transiently.
package playback

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/voicenotelab/voicenote/internal/store"
)

// State represents the playback session's current state.
type State string

const (
	StateIdle    State = "IDLE"
	StateLoading State = "LOADING"
	StatePlaying State = "PLAYING"
	StatePaused  State = "PAUSED"
)

var (
	// ErrPlaybackFailed is returned when a source cannot be loaded or
	// played. The session is back in Idle when it is returned.
	ErrPlaybackFailed = errors.New("playback failed")

	// ErrReversedAssetMissing signals that reverse playback was requested
	// but no pre-rendered reversed sibling file exists. It is soft:
	// forward playback of the original file has already started when it
	// is returned.
	ErrReversedAssetMissing = errors.New("no reversed audio file for this note")
)

// Options configures a single Play call.
type Options struct {
	// Reverse substitutes the note's pre-rendered reversed sibling file
	// when it exists. Audio is never reversed by the session itself.
	Reverse bool
	// Rate is the speed multiplier. Zero means "use the session's
	// current rate" (the last SetRate, or the configured default).
	Rate float64
}

// Transport is the device-facing side of a single playback. One
// transport plays one source and is released afterwards.
type Transport interface {
	// Load opens the source and starts playing it at the given rate
	// with pitch correction.
	Load(path string, rate float64) error
	Pause() error
	Resume() error
	// SetRate re-applies the speed multiplier live, without reloading.
	SetRate(rate float64) error
	// Stop releases the underlying resource. Always safe to call.
	Stop() error
	// Position reports the current position and total duration in
	// milliseconds.
	Position() (positionMs, durationMs int64, err error)
	// Done is closed when the source finishes playing naturally or the
	// transport dies.
	Done() <-chan struct{}
}

// Session is the single-slot playback handle.
type Session struct {
	mutex        sync.Mutex
	newTransport func() Transport

	state     State
	transport Transport
	currentID string
	progress  float64
	rate      float64

	pollInterval time.Duration
}

// NewSession creates an idle session. defaultRate is the speed used
// until SetRate or a Play option overrides it.
func NewSession(newTransport func() Transport, defaultRate float64) *Session {
	if defaultRate <= 0 {
		defaultRate = 1.0
	}
	return &Session{
		newTransport: newTransport,
		state:        StateIdle,
		rate:         defaultRate,
		pollInterval: 200 * time.Millisecond,
	}
}

// Play starts playback of the given note. Any active session is stopped
// and released first. With Options.Reverse set and no reversed sibling
// file present, forward playback starts anyway and the returned error is
// ErrReversedAssetMissing, which callers should treat as a notice.
func (s *Session) Play(note store.Note, opts Options) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	// Whatever is playing must be fully released before the new target
	// is even loaded.
	s.stopLocked()

	source := note.URI
	var softErr error
	if opts.Reverse {
		if sibling, ok := store.ReversedSibling(note.URI); ok {
			source = sibling
		} else {
			softErr = ErrReversedAssetMissing
		}
	}

	rate := opts.Rate
	if rate == 0 {
		rate = s.rate
	}
	s.rate = rate

	s.state = StateLoading
	transport := s.newTransport()
	if err := transport.Load(source, rate); err != nil {
		transport.Stop()
		s.state = StateIdle
		return fmt.Errorf("%w: %v", ErrPlaybackFailed, err)
	}

	s.transport = transport
	s.currentID = note.ID
	s.progress = 0
	s.state = StatePlaying

	go s.watch(transport)

	slog.Info("Playback started", "note", note.ID, "rate", rate, "reverse", opts.Reverse && softErr == nil)
	return softErr
}

// watch drives the progress observer for one transport. It exits when
// the transport finishes or is replaced.
func (s *Session) watch(transport Transport) {
	ticker := time.NewTicker(s.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-transport.Done():
			s.complete(transport)
			return
		case <-ticker.C:
			if !s.isCurrent(transport) {
				return
			}
			pos, total, err := transport.Position()
			if err != nil {
				continue
			}
			s.updateProgress(transport, pos, total)
		}
	}
}

func (s *Session) isCurrent(transport Transport) bool {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	return s.transport == transport
}

func (s *Session) updateProgress(transport Transport, positionMs, durationMs int64) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	if s.transport != transport || durationMs <= 0 {
		return
	}
	p := float64(positionMs) / float64(durationMs)
	if p < 0 {
		p = 0
	}
	if p > 1 {
		p = 1
	}
	s.progress = p
}

// complete handles natural end of playback: release everything and
// reset, with no caller action required.
func (s *Session) complete(transport Transport) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	if s.transport != transport {
		// A newer Play already replaced and released this transport.
		return
	}

	transport.Stop()
	s.transport = nil
	s.currentID = ""
	s.progress = 0
	s.state = StateIdle
	slog.Debug("Playback finished")
}

// Pause is valid only while playing; otherwise it is ignored.
func (s *Session) Pause() {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	if s.state != StatePlaying || s.transport == nil {
		return
	}
	if err := s.transport.Pause(); err != nil {
		slog.Warn("Pause failed", "error", err)
		return
	}
	s.state = StatePaused
}

// Resume is valid only while paused; otherwise it is ignored.
func (s *Session) Resume() {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	if s.state != StatePaused || s.transport == nil {
		return
	}
	if err := s.transport.Resume(); err != nil {
		slog.Warn("Resume failed", "error", err)
		return
	}
	s.state = StatePlaying
}

// SetRate changes the speed multiplier. While a source is loaded the new
// rate is applied live; otherwise it only takes effect on the next Play.
func (s *Session) SetRate(rate float64) error {
	if rate <= 0 {
		return fmt.Errorf("playback rate must be positive, got %.2f", rate)
	}

	s.mutex.Lock()
	defer s.mutex.Unlock()

	s.rate = rate
	if s.transport != nil {
		if err := s.transport.SetRate(rate); err != nil {
			return fmt.Errorf("%w: %v", ErrPlaybackFailed, err)
		}
	}
	return nil
}

// Stop releases the active transport, resets progress to zero and clears
// the current note. Valid from any state; stopping an idle session is a
// no-op.
func (s *Session) Stop() {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	s.stopLocked()
}

func (s *Session) stopLocked() {
	if s.transport != nil {
		s.transport.Stop()
		s.transport = nil
	}
	s.currentID = ""
	s.progress = 0
	s.state = StateIdle
}

// State returns the session's current state.
func (s *Session) State() State {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	return s.state
}

// CurrentID returns the id of the note being played, or "" when idle.
func (s *Session) CurrentID() string {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	return s.currentID
}

// Progress returns the normalized playback position in [0, 1].
func (s *Session) Progress() float64 {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	return s.progress
}

// Rate returns the speed multiplier the next Play will use.
func (s *Session) Rate() float64 {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	return s.rate
}

// Wait blocks until the session returns to idle, or the done channel is
// closed. It lets a CLI command sit until playback finishes naturally.
func (s *Session) Wait(done <-chan struct{}) {
	ticker := time.NewTicker(s.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			if s.State() == StateIdle {
				return
			}
		}
	}
}
