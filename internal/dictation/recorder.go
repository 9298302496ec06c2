package dictation

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/kmch/dictation-gateway/internal/audio"
)

// flushThreshold is how many buffered PCM bytes trigger a disk write
const flushThreshold = 8192

// Recorder captures a session's PCM stream into a WAV artifact. Chunks
// are staged in a ring buffer so disk writes happen in larger batches
// than the browser's chunk cadence.
type Recorder struct {
	path    string
	ring    *audio.RingBuffer
	writer  *audio.WAVWriter
	scratch []byte
}

// NewRecorder creates the recordings directory if needed and opens the
// WAV artifact for this session
func NewRecorder(dir, sessionID string, sampleRate, bufferSize int) (*Recorder, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create recordings dir: %w", err)
	}

	name := fmt.Sprintf("live_%s_%s.wav", time.Now().Format("20060102_150405"), shortID(sessionID))
	path := filepath.Join(dir, name)

	writer, err := audio.NewWAVWriter(path, sampleRate, 1)
	if err != nil {
		return nil, err
	}

	return &Recorder{
		path:    path,
		ring:    audio.NewRingBuffer(bufferSize),
		writer:  writer,
		scratch: make([]byte, flushThreshold),
	}, nil
}

// Write stages one PCM chunk, flushing to disk when enough has accumulated
func (r *Recorder) Write(chunk []byte) error {
	if len(chunk) > r.ring.Space() {
		if err := r.flush(); err != nil {
			return err
		}
	}
	if len(chunk) > r.ring.Space() {
		// Chunk larger than the whole ring: write straight through
		_, err := r.writer.Write(chunk)
		return err
	}

	r.ring.Write(chunk)
	if r.ring.Available() >= flushThreshold {
		return r.flush()
	}
	return nil
}

// Finalize drains the ring buffer, patches the WAV header, and returns
// the artifact path. A session that never produced audio leaves no file
// behind; the empty path is returned instead.
func (r *Recorder) Finalize() (string, error) {
	if err := r.flush(); err != nil {
		r.writer.Close()
		return r.path, err
	}

	if r.writer.DataBytes() == 0 {
		r.writer.Close()
		os.Remove(r.path)
		return "", nil
	}

	if err := r.writer.Close(); err != nil {
		return r.path, err
	}
	return r.path, nil
}

// Path returns the artifact path
func (r *Recorder) Path() string {
	return r.path
}

// flush drains everything staged in the ring buffer to disk
func (r *Recorder) flush() error {
	for !r.ring.IsEmpty() {
		n := r.ring.Read(r.scratch)
		if _, err := r.writer.Write(r.scratch[:n]); err != nil {
			return fmt.Errorf("failed to flush recording: %w", err)
		}
	}
	return nil
}

// shortID returns a compact prefix of the session id for file names
func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
