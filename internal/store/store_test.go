package store

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/voicenotelab/voicenote/internal/keyvalue"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	dir := t.TempDir()
	kv, err := keyvalue.New(filepath.Join(dir, "data"))
	require.NoError(t, err)
	s, err := New(kv, filepath.Join(dir, "data", "voiceNotes"))
	require.NoError(t, err)
	require.NoError(t, s.Load())
	return s
}

func writeTempRecording(t *testing.T, name string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte("audio-bytes"), 0o644))
	return path
}

func TestAdd_DefaultsAndFilePlacement(t *testing.T) {
	s := newTestStore(t)
	tmp := writeTempRecording(t, "rec1.m4a")

	note, err := s.Add(tmp, 4200, "")
	require.NoError(t, err)

	assert.Equal(t, int64(4200), note.Duration)
	assert.Equal(t, DefaultTitle, note.Title)
	assert.NotEmpty(t, note.ID)
	assert.True(t, strings.HasPrefix(note.URI, s.NotesDir()), "uri must be inside the managed directory")
	assert.True(t, strings.HasSuffix(note.URI, ".m4a"), "uri must keep the original extension")

	// The temp file was moved, not copied
	_, err = os.Stat(tmp)
	assert.True(t, os.IsNotExist(err))
	_, err = os.Stat(note.URI)
	assert.NoError(t, err)
}

func TestAdd_MissingTempFileFails(t *testing.T) {
	s := newTestStore(t)

	_, err := s.Add(filepath.Join(t.TempDir(), "gone.m4a"), 1000, "x")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrFileMoveFailed)
	assert.Empty(t, s.List(), "failed add must not create a record")
}

func TestList_AlwaysSortedNewestFirst(t *testing.T) {
	s := newTestStore(t)

	// Feed creation times out of order through Save directly.
	notes := []Note{
		{ID: "b", Title: "middle", URI: filepath.Join(s.NotesDir(), "b.m4a"), CreatedAt: 200},
		{ID: "a", Title: "oldest", URI: filepath.Join(s.NotesDir(), "a.m4a"), CreatedAt: 100},
		{ID: "c", Title: "newest", URI: filepath.Join(s.NotesDir(), "c.m4a"), CreatedAt: 300},
	}
	require.NoError(t, s.Save(notes))

	got := s.List()
	require.Len(t, got, 3)
	assert.Equal(t, []string{"c", "b", "a"}, []string{got[0].ID, got[1].ID, got[2].ID})
}

func TestAdd_SequencePreservesSortInvariant(t *testing.T) {
	s := newTestStore(t)
	clock := time.UnixMilli(1000)
	s.now = func() time.Time {
		clock = clock.Add(time.Second)
		return clock
	}

	for i := 0; i < 5; i++ {
		tmp := writeTempRecording(t, "rec.m4a")
		_, err := s.Add(tmp, int64(i), "take")
		require.NoError(t, err)
	}

	got := s.List()
	require.Len(t, got, 5)
	for i := 1; i < len(got); i++ {
		assert.GreaterOrEqual(t, got[i-1].CreatedAt, got[i].CreatedAt,
			"list must be sorted by createdAt descending")
	}
}

func TestRename_TouchesOnlyTitle(t *testing.T) {
	s := newTestStore(t)
	tmp := writeTempRecording(t, "rec.m4a")
	note, err := s.Add(tmp, 1000, "before")
	require.NoError(t, err)

	require.NoError(t, s.Rename(note.ID, "after"))

	got := s.Get(note.ID)
	require.NotNil(t, got)
	assert.Equal(t, "after", got.Title)
	assert.Equal(t, note.ID, got.ID)
	assert.Equal(t, note.URI, got.URI)
	assert.Equal(t, note.CreatedAt, got.CreatedAt)
}

func TestRename_AbsentIDIsNoop(t *testing.T) {
	s := newTestStore(t)
	tmp := writeTempRecording(t, "rec.m4a")
	note, err := s.Add(tmp, 1000, "keep")
	require.NoError(t, err)

	require.NoError(t, s.Rename("no-such-id", "changed"))

	got := s.Get(note.ID)
	require.NotNil(t, got)
	assert.Equal(t, "keep", got.Title)
}

func TestRemove_DeletesRecordAndFile(t *testing.T) {
	s := newTestStore(t)
	tmp := writeTempRecording(t, "rec.m4a")
	note, err := s.Add(tmp, 1000, "x")
	require.NoError(t, err)

	require.NoError(t, s.Remove(note.ID))

	assert.Nil(t, s.Get(note.ID))
	_, err = os.Stat(note.URI)
	assert.True(t, os.IsNotExist(err), "audio file must be gone")

	// Survives a reload from disk too
	require.NoError(t, s.Load())
	assert.Nil(t, s.Get(note.ID))
}

func TestRemove_MissingFileIsIdempotent(t *testing.T) {
	s := newTestStore(t)
	tmp := writeTempRecording(t, "rec.m4a")
	note, err := s.Add(tmp, 1000, "x")
	require.NoError(t, err)

	require.NoError(t, os.Remove(note.URI))
	require.NoError(t, s.Remove(note.ID))
	assert.Nil(t, s.Get(note.ID))
}

func TestLoad_RoundTrip(t *testing.T) {
	dir := t.TempDir()
	kv, err := keyvalue.New(dir)
	require.NoError(t, err)
	s, err := New(kv, filepath.Join(dir, "voiceNotes"))
	require.NoError(t, err)
	require.NoError(t, s.Load())

	tmp := writeTempRecording(t, "rec.m4a")
	note, err := s.Add(tmp, 7000, "persisted")
	require.NoError(t, err)

	// A fresh store over the same blob sees the same data.
	s2, err := New(kv, filepath.Join(dir, "voiceNotes"))
	require.NoError(t, err)
	require.NoError(t, s2.Load())

	got := s2.Get(note.ID)
	require.NotNil(t, got)
	assert.Equal(t, "persisted", got.Title)
	assert.Equal(t, int64(7000), got.Duration)
}

func TestLoad_CorruptedBlobFailsEmpty(t *testing.T) {
	dir := t.TempDir()
	kv, err := keyvalue.New(dir)
	require.NoError(t, err)
	require.NoError(t, kv.Set("notes", []byte("{not json")))

	s, err := New(kv, filepath.Join(dir, "voiceNotes"))
	require.NoError(t, err)
	require.NoError(t, s.Load())
	assert.Empty(t, s.List())
}

func TestSearch_CaseInsensitiveTitleSubstring(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.Save([]Note{
		{ID: "1", Title: "Morning standup", CreatedAt: 3},
		{ID: "2", Title: "Grocery list", CreatedAt: 2},
		{ID: "3", Title: "standUP retro", CreatedAt: 1},
	}))

	got := s.Search("standup")
	require.Len(t, got, 2)
	assert.Equal(t, "1", got[0].ID)
	assert.Equal(t, "3", got[1].ID)

	assert.Len(t, s.Search(""), 3)
	assert.Empty(t, s.Search("zzz"))
}

func TestReversedSibling(t *testing.T) {
	dir := t.TempDir()
	original := filepath.Join(dir, "abc.m4a")
	require.NoError(t, os.WriteFile(original, []byte("fwd"), 0o644))

	sibling, ok := ReversedSibling(original)
	assert.False(t, ok)
	assert.Equal(t, filepath.Join(dir, "abc_reversed.m4a"), sibling)

	require.NoError(t, os.WriteFile(sibling, []byte("rev"), 0o644))
	got, ok := ReversedSibling(original)
	assert.True(t, ok)
	assert.Equal(t, sibling, got)
}
