package feedback

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/voicenotelab/voicenote/internal/keyvalue"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	kv, err := keyvalue.New(t.TempDir())
	require.NoError(t, err)
	s := New(kv)
	require.NoError(t, s.Load())
	return s
}

func TestAdd_RequiresMessage(t *testing.T) {
	s := newTestStore(t)

	_, err := s.Add("alice", "alice@example.com", "")
	require.Error(t, err)
	assert.Empty(t, s.List())
}

func TestAdd_OptionalFieldsMayBeEmpty(t *testing.T) {
	s := newTestStore(t)

	entry, err := s.Add("", "", "love the app")
	require.NoError(t, err)
	assert.NotEmpty(t, entry.ID)
	assert.NotZero(t, entry.TS)
}

func TestAdd_RejectsMalformedEmail(t *testing.T) {
	s := newTestStore(t)

	_, err := s.Add("bob", "not-an-email", "hi")
	require.Error(t, err)

	_, err = s.Add("bob", "bob@example.com", "hi")
	require.NoError(t, err)
}

func TestAdd_PrependsWithoutReordering(t *testing.T) {
	s := newTestStore(t)

	first, err := s.Add("", "", "first")
	require.NoError(t, err)
	second, err := s.Add("", "", "second")
	require.NoError(t, err)

	got := s.List()
	require.Len(t, got, 2)
	assert.Equal(t, second.ID, got[0].ID)
	assert.Equal(t, first.ID, got[1].ID)
}

func TestLoad_RoundTrip(t *testing.T) {
	kv, err := keyvalue.New(t.TempDir())
	require.NoError(t, err)

	s := New(kv)
	require.NoError(t, s.Load())
	_, err = s.Add("carol", "", "persisted")
	require.NoError(t, err)

	s2 := New(kv)
	require.NoError(t, s2.Load())
	got := s2.List()
	require.Len(t, got, 1)
	assert.Equal(t, "persisted", got[0].Message)
}

func TestLoad_CorruptedBlobFailsEmpty(t *testing.T) {
	kv, err := keyvalue.New(t.TempDir())
	require.NoError(t, err)
	require.NoError(t, kv.Set("feedback", []byte("not json")))

	s := New(kv)
	require.NoError(t, s.Load())
	assert.Empty(t, s.List())
}
