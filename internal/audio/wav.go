package audio

import (
	"encoding/binary"
	"fmt"
	"os"
)

// wavHeaderSize is the size of a canonical PCM RIFF/WAVE header
const wavHeaderSize = 44

// WAVWriter writes a linear PCM stream to a RIFF/WAVE file.
// The header is written up front with placeholder sizes and patched on Close,
// so a stream of unknown length can be recorded chunk by chunk.
type WAVWriter struct {
	file       *os.File
	sampleRate int
	channels   int
	dataBytes  int
	closed     bool
}

// NewWAVWriter creates a WAV file for 16-bit PCM at the given rate and
// channel count and writes the provisional header
func NewWAVWriter(path string, sampleRate, channels int) (*WAVWriter, error) {
	if sampleRate <= 0 {
		return nil, fmt.Errorf("invalid sample rate %d", sampleRate)
	}
	if channels <= 0 {
		return nil, fmt.Errorf("invalid channel count %d", channels)
	}

	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("failed to create WAV file: %w", err)
	}

	w := &WAVWriter{
		file:       f,
		sampleRate: sampleRate,
		channels:   channels,
	}

	if _, err := f.Write(encodeWAVHeader(0, sampleRate, channels)); err != nil {
		f.Close()
		os.Remove(path)
		return nil, fmt.Errorf("failed to write WAV header: %w", err)
	}

	return w, nil
}

// Write appends raw 16-bit little-endian PCM samples to the file
func (w *WAVWriter) Write(pcm []byte) (int, error) {
	if w.closed {
		return 0, fmt.Errorf("WAV writer is closed")
	}

	n, err := w.file.Write(pcm)
	w.dataBytes += n
	if err != nil {
		return n, fmt.Errorf("failed to write PCM data: %w", err)
	}
	return n, nil
}

// DataBytes returns the number of PCM bytes written so far
func (w *WAVWriter) DataBytes() int {
	return w.dataBytes
}

// Close patches the RIFF and data chunk sizes and closes the file.
// Safe to call once; a file with zero samples is still a valid WAV.
func (w *WAVWriter) Close() error {
	if w.closed {
		return nil
	}
	w.closed = true

	if _, err := w.file.Seek(0, 0); err != nil {
		w.file.Close()
		return fmt.Errorf("failed to seek WAV header: %w", err)
	}
	if _, err := w.file.Write(encodeWAVHeader(w.dataBytes, w.sampleRate, w.channels)); err != nil {
		w.file.Close()
		return fmt.Errorf("failed to patch WAV header: %w", err)
	}

	return w.file.Close()
}

// encodeWAVHeader builds the 44-byte canonical header for 16-bit PCM
func encodeWAVHeader(dataBytes, sampleRate, channels int) []byte {
	const bitsPerSample = 16

	byteRate := sampleRate * channels * bitsPerSample / 8
	blockAlign := channels * bitsPerSample / 8

	h := make([]byte, wavHeaderSize)
	copy(h[0:4], "RIFF")
	binary.LittleEndian.PutUint32(h[4:8], uint32(36+dataBytes))
	copy(h[8:12], "WAVE")
	copy(h[12:16], "fmt ")
	binary.LittleEndian.PutUint32(h[16:20], 16) // fmt chunk size
	binary.LittleEndian.PutUint16(h[20:22], 1)  // PCM format
	binary.LittleEndian.PutUint16(h[22:24], uint16(channels))
	binary.LittleEndian.PutUint32(h[24:28], uint32(sampleRate))
	binary.LittleEndian.PutUint32(h[28:32], uint32(byteRate))
	binary.LittleEndian.PutUint16(h[32:34], uint16(blockAlign))
	binary.LittleEndian.PutUint16(h[34:36], uint16(bitsPerSample))
	copy(h[36:40], "data")
	binary.LittleEndian.PutUint32(h[40:44], uint32(dataBytes))
	return h
}
