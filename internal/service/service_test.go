package service

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/voicenotelab/voicenote/internal/audio"
	"github.com/voicenotelab/voicenote/internal/config"
	"github.com/voicenotelab/voicenote/internal/feedback"
	"github.com/voicenotelab/voicenote/internal/keyvalue"
	"github.com/voicenotelab/voicenote/internal/playback"
	"github.com/voicenotelab/voicenote/internal/store"
)

// stubCapture fakes the recording transport by writing a small file.
type stubCapture struct {
	duration int64
	dest     string
}

func (c *stubCapture) Check() error { return nil }

func (c *stubCapture) Start(dest string) error {
	c.dest = dest
	return os.WriteFile(dest, []byte("audio"), 0o644)
}

func (c *stubCapture) Stop() error { return nil }

func (c *stubCapture) Probe(string) (int64, error) { return c.duration, nil }

// stubTransport fakes the playback transport.
type stubTransport struct {
	stopped int
	done    chan struct{}
}

func newStubTransport() *stubTransport {
	return &stubTransport{done: make(chan struct{})}
}

func (t *stubTransport) Load(string, float64) error { return nil }
func (t *stubTransport) Pause() error               { return nil }
func (t *stubTransport) Resume() error              { return nil }
func (t *stubTransport) SetRate(float64) error      { return nil }
func (t *stubTransport) Stop() error                { t.stopped++; return nil }
func (t *stubTransport) Position() (int64, int64, error) {
	return 0, 1000, nil
}
func (t *stubTransport) Done() <-chan struct{} { return t.done }

func newTestService(t *testing.T) (*VoiceNoteService, *stubTransport) {
	t.Helper()

	cfg := config.Default()
	cfg.Storage.DataDirectory = t.TempDir()
	cfg.Export.Directory = cfg.Storage.DataDirectory

	kv, err := keyvalue.New(cfg.Storage.DataDirectory)
	require.NoError(t, err)
	notes, err := store.New(kv, cfg.NotesDirectory())
	require.NoError(t, err)
	require.NoError(t, notes.Load())
	fb := feedback.New(kv)
	require.NoError(t, fb.Load())

	transport := newStubTransport()
	session := playback.NewSession(func() playback.Transport { return transport }, 1.0)
	recorder := audio.NewRecorder(&stubCapture{duration: 4200}, "m4a")

	svc := newWith(cfg, notes, recorder, session, fb)
	t.Cleanup(session.Stop)
	return svc, transport
}

func TestRecordLifecycleCreatesNote(t *testing.T) {
	svc, _ := newTestService(t)

	require.NoError(t, svc.StartRecording())
	assert.Equal(t, audio.StateRecording, svc.RecordingState())

	note, err := svc.StopRecording("")
	require.NoError(t, err)
	require.NotNil(t, note)
	assert.Equal(t, store.DefaultTitle, note.Title)
	assert.Equal(t, int64(4200), note.Duration)
	assert.Equal(t, audio.StateIdle, svc.RecordingState())

	listed := svc.List("")
	require.Len(t, listed, 1)
	assert.Equal(t, note.ID, listed[0].ID)
}

func TestStopRecordingWhileIdleIsNoop(t *testing.T) {
	svc, _ := newTestService(t)

	note, err := svc.StopRecording("x")
	require.NoError(t, err)
	assert.Nil(t, note)
	assert.Empty(t, svc.List(""))
}

func TestDeleteStopsPlaybackOfDeletedNote(t *testing.T) {
	svc, transport := newTestService(t)

	require.NoError(t, svc.StartRecording())
	note, err := svc.StopRecording("playing")
	require.NoError(t, err)

	require.NoError(t, svc.Play(note.ID, playback.Options{}))
	require.Equal(t, note.ID, svc.Playback().CurrentID())

	require.NoError(t, svc.Delete(note.ID))

	assert.Equal(t, playback.StateIdle, svc.Playback().State())
	assert.Empty(t, svc.Playback().CurrentID())
	assert.GreaterOrEqual(t, transport.stopped, 1, "playback must be released before the note is removed")
	assert.Nil(t, svc.Get(note.ID))
	_, statErr := os.Stat(note.URI)
	assert.True(t, os.IsNotExist(statErr))
}

func TestDeleteOtherNoteLeavesPlaybackAlone(t *testing.T) {
	svc, _ := newTestService(t)

	require.NoError(t, svc.StartRecording())
	first, err := svc.StopRecording("first")
	require.NoError(t, err)
	require.NoError(t, svc.StartRecording())
	second, err := svc.StopRecording("second")
	require.NoError(t, err)

	require.NoError(t, svc.Play(first.ID, playback.Options{}))
	require.NoError(t, svc.Delete(second.ID))

	assert.Equal(t, first.ID, svc.Playback().CurrentID())
	assert.Equal(t, playback.StatePlaying, svc.Playback().State())
}

func TestPlayUnknownNoteFails(t *testing.T) {
	svc, _ := newTestService(t)
	assert.Error(t, svc.Play("missing", playback.Options{}))
}

func TestExportImportRoundTrip(t *testing.T) {
	svc, _ := newTestService(t)

	require.NoError(t, svc.StartRecording())
	note, err := svc.StopRecording("exported")
	require.NoError(t, err)

	path, err := svc.Export()
	require.NoError(t, err)

	merged, err := svc.Import(path)
	require.NoError(t, err)
	assert.Equal(t, 1, merged)

	// No de-duplication: the id now appears twice.
	listed := svc.List("")
	count := 0
	for _, n := range listed {
		if n.ID == note.ID {
			count++
		}
	}
	assert.Equal(t, 2, count, "import must not de-duplicate colliding ids")
}

func TestImportCancelledPickIsNoop(t *testing.T) {
	svc, _ := newTestService(t)

	merged, err := svc.Import("")
	require.NoError(t, err)
	assert.Zero(t, merged)
}

func TestImportFiltersForeignURIs(t *testing.T) {
	svc, _ := newTestService(t)

	path := filepath.Join(t.TempDir(), "backup.json")
	payload := `[
		{"id":"in","title":"ok","uri":"/data/voiceNotes/abc.m4a","createdAt":99,"duration":1},
		{"id":"out","title":"no","uri":"/tmp/other.m4a","createdAt":98,"duration":1}
	]`
	require.NoError(t, os.WriteFile(path, []byte(payload), 0o644))

	merged, err := svc.Import(path)
	require.NoError(t, err)
	assert.Equal(t, 1, merged)

	listed := svc.List("")
	require.Len(t, listed, 1)
	assert.Equal(t, "in", listed[0].ID)
}

func TestFeedbackRoundTrip(t *testing.T) {
	svc, _ := newTestService(t)

	_, err := svc.AddFeedback("dana", "dana@example.com", "more speeds please")
	require.NoError(t, err)

	entries := svc.Feedback()
	require.Len(t, entries, 1)
	assert.Equal(t, "more speeds please", entries[0].Message)

	path, err := svc.ExportFeedback()
	require.NoError(t, err)
	_, err = os.Stat(path)
	assert.NoError(t, err)
}
