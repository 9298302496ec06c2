package dictation

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecorderWritesArtifact(t *testing.T) {
	dir := t.TempDir()
	rec, err := NewRecorder(dir, "f47ac10b-58cc-4372-a567-0e02b2c3d479", 16000, 4096)
	require.NoError(t, err)

	chunk := make([]byte, 640)
	for i := 0; i < 20; i++ {
		require.NoError(t, rec.Write(chunk))
	}

	path, err := rec.Finalize()
	require.NoError(t, err)
	require.NotEmpty(t, path)

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, int64(44+20*640), info.Size())
	assert.Contains(t, path, "live_")
	assert.Contains(t, path, "f47ac10b")
}

func TestRecorderEmptySessionLeavesNoFile(t *testing.T) {
	dir := t.TempDir()
	rec, err := NewRecorder(dir, "f47ac10b-58cc-4372-a567-0e02b2c3d479", 16000, 4096)
	require.NoError(t, err)

	path, err := rec.Finalize()
	require.NoError(t, err)
	assert.Empty(t, path)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries, "a session with no audio must not leave an artifact")
}

func TestRecorderChunkLargerThanRing(t *testing.T) {
	dir := t.TempDir()
	rec, err := NewRecorder(dir, "abc", 16000, 256)
	require.NoError(t, err)

	big := make([]byte, 1024)
	require.NoError(t, rec.Write(big))
	require.NoError(t, rec.Write([]byte{1, 2, 3, 4}))

	path, err := rec.Finalize()
	require.NoError(t, err)

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, int64(44+1024+4), info.Size())
}
