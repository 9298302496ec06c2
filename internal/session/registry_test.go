package session

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistry_CreateAndGet(t *testing.T) {
	r := NewRegistry()

	s, err := r.Create("conn-1", "en-US")
	require.NoError(t, err)
	require.NotNil(t, s)

	assert.Equal(t, "conn-1", s.ID)
	assert.Equal(t, "en-US", s.LanguageCode)
	assert.True(t, s.IsActive())
	assert.Empty(t, s.Segments())
	assert.Empty(t, s.Interim())

	assert.Same(t, s, r.Get("conn-1"))
	assert.Nil(t, r.Get("conn-2"))
}

func TestRegistry_DuplicateCreate(t *testing.T) {
	r := NewRegistry()

	_, err := r.Create("conn-1", "en-US")
	require.NoError(t, err)

	_, err = r.Create("conn-1", "ta-IN")
	assert.ErrorIs(t, err, ErrDuplicateSession)

	// Exactly one session remains, with the original language
	assert.Equal(t, 1, r.Len())
	assert.Equal(t, "en-US", r.Get("conn-1").LanguageCode)
}

func TestRegistry_SessionDeactivate(t *testing.T) {
	r := NewRegistry()

	s, err := r.Create("conn-1", "en-US")
	require.NoError(t, err)
	require.True(t, s.IsActive())

	s.Deactivate()
	assert.False(t, s.IsActive())

	// Deactivating again is a no-op
	s.Deactivate()
	assert.False(t, s.IsActive())
}

func TestRegistry_RemoveIdempotent(t *testing.T) {
	r := NewRegistry()

	_, err := r.Create("conn-1", "en-US")
	require.NoError(t, err)

	r.Remove("conn-1")
	assert.Nil(t, r.Get("conn-1"))

	// Removing again must not panic or error
	r.Remove("conn-1")
	r.Remove("never-existed")
	assert.Equal(t, 0, r.Len())
}

func TestRegistry_RestartAfterRemove(t *testing.T) {
	r := NewRegistry()

	_, err := r.Create("conn-1", "en-US")
	require.NoError(t, err)

	// Disconnect cleanup removes the entry; a later start with the same
	// connection id must succeed.
	r.Remove("conn-1")

	s, err := r.Create("conn-1", "ta-IN")
	require.NoError(t, err)
	assert.Equal(t, "ta-IN", s.LanguageCode)
}

func TestRegistry_ConcurrentCreate(t *testing.T) {
	r := NewRegistry()

	const workers = 32
	var wg sync.WaitGroup
	created := make(chan struct{}, workers)

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := r.Create("conn-1", "en-US"); err == nil {
				created <- struct{}{}
			}
		}()
	}
	wg.Wait()
	close(created)

	// A reconnect race must yield exactly one session
	assert.Equal(t, 1, len(created))
	assert.Equal(t, 1, r.Len())
}

func TestSession_FinalAndInterim(t *testing.T) {
	r := NewRegistry()
	s, err := r.Create("conn-1", "en-US")
	require.NoError(t, err)

	s.SetInterim("patient")
	s.SetInterim("patient reports")
	assert.Equal(t, "patient reports", s.Interim())
	assert.Empty(t, s.Segments())

	s.AppendFinal("patient reports fever")
	assert.Empty(t, s.Interim(), "final event must clear interim text")
	assert.Equal(t, []string{"patient reports fever"}, s.Segments())

	s.SetInterim("also some")
	s.AppendFinal("also some chills")
	assert.Equal(t, "patient reports fever also some chills", s.Transcript())
}

func TestSession_TranscriptDiscardsInterim(t *testing.T) {
	r := NewRegistry()
	s, err := r.Create("conn-1", "en-US")
	require.NoError(t, err)

	s.AppendFinal("patient reports fever")
	s.SetInterim("never finali")

	// Unterminated interim text is not part of the committed transcript
	assert.Equal(t, "patient reports fever", s.Transcript())
}

func TestSession_EmptyTranscript(t *testing.T) {
	r := NewRegistry()
	s, err := r.Create("conn-1", "en-US")
	require.NoError(t, err)

	assert.Equal(t, "", s.Transcript())
}
