// Package audio implements the recorder session: a single capture
// lifecycle producing a temporary audio file and its duration.
package audio

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
)

// State represents the current state of the recorder session.
type State string

const (
	StateIdle      State = "IDLE"
	StateRecording State = "RECORDING"
	StateStopped   State = "STOPPED"
)

var (
	// ErrPermissionDenied is returned when the capture source cannot be
	// opened. Recording never silently starts without access.
	ErrPermissionDenied = errors.New("capture permission denied")

	// ErrRecordingFailed covers capture failures after access was granted.
	ErrRecordingFailed = errors.New("recording failed")
)

// Result is what a finalized recording hands to the note store.
type Result struct {
	URI        string
	DurationMs int64
}

// Capture abstracts the device-facing transport so the session state
// machine can be exercised without real hardware.
type Capture interface {
	// Check verifies the capture source is accessible before any
	// recording begins.
	Check() error
	// Start begins writing captured audio to dest.
	Start(dest string) error
	// Stop finalizes the file being written.
	Stop() error
	// Probe reads back the actual duration of a finalized file, in
	// milliseconds. Best effort: 0 with no error means unknown.
	Probe(path string) (int64, error)
}

// Recorder drives one capture lifecycle: Idle -> Recording -> Stopped -> Idle.
// Only one recording may be in flight per Recorder, and callers are
// expected to hold a single Recorder for the whole app.
type Recorder struct {
	mutex   sync.Mutex
	capture Capture
	format  string

	state     State
	tempFile  string
	startedAt time.Time
}

// NewRecorder creates an idle recorder writing captures in the given
// container format ("m4a", "ogg", "wav").
func NewRecorder(capture Capture, format string) *Recorder {
	return &Recorder{
		capture: capture,
		format:  format,
		state:   StateIdle,
	}
}

// State returns the session's current state.
func (r *Recorder) State() State {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	return r.state
}

// Start checks capture access and begins writing to a fresh temporary
// location. Starting while a recording is already in flight is an error.
func (r *Recorder) Start() error {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	if r.state == StateRecording {
		return fmt.Errorf("%w: a recording is already in progress", ErrRecordingFailed)
	}

	if err := r.capture.Check(); err != nil {
		return fmt.Errorf("%w: %v", ErrPermissionDenied, err)
	}

	dest := filepath.Join(os.TempDir(), "voicenote-"+uuid.NewString()+"."+r.format)
	if err := r.capture.Start(dest); err != nil {
		return fmt.Errorf("%w: %v", ErrRecordingFailed, err)
	}

	r.tempFile = dest
	r.startedAt = time.Now()
	r.state = StateRecording

	slog.Info("Recording started", "temp_file", dest)
	return nil
}

// Stop finalizes the in-flight capture and returns the temporary file
// URI and its measured duration. Stopping an idle recorder is an
// explicit no-op returning a nil result.
func (r *Recorder) Stop() (*Result, error) {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	if r.state != StateRecording {
		return nil, nil
	}

	if err := r.capture.Stop(); err != nil {
		r.state = StateIdle
		return nil, fmt.Errorf("%w: %v", ErrRecordingFailed, err)
	}
	r.state = StateStopped

	duration, err := r.capture.Probe(r.tempFile)
	if err != nil || duration == 0 {
		// Duration is best effort; fall back to wall-clock elapsed.
		duration = time.Since(r.startedAt).Milliseconds()
	}

	result := &Result{URI: r.tempFile, DurationMs: duration}
	r.tempFile = ""
	r.state = StateIdle

	slog.Info("Recording stopped", "uri", result.URI, "duration_ms", result.DurationMs)
	return result, nil
}

// Discard is the teardown path: if a capture is in flight it is
// finalized and its file deleted, never leaked. Safe to call from any
// state.
func (r *Recorder) Discard() error {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	if r.state != StateRecording {
		return nil
	}

	if err := r.capture.Stop(); err != nil {
		slog.Warn("Failed to finalize discarded recording", "error", err)
	}
	if r.tempFile != "" {
		if err := os.Remove(r.tempFile); err != nil && !os.IsNotExist(err) {
			slog.Warn("Failed to remove discarded recording", "path", r.tempFile, "error", err)
		}
	}

	r.tempFile = ""
	r.state = StateIdle
	slog.Info("Recording discarded")
	return nil
}
