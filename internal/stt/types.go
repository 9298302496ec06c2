package stt

import (
	"context"
	"errors"
)

// ErrUpstreamUnavailable indicates the streaming STT service could not be
// reached or rejected the credentials. Fatal to session start; the caller
// reports it to the client instead of silently degrading.
var ErrUpstreamUnavailable = errors.New("transcription upstream unavailable")

// Result represents one transcription update from the streaming upstream
type Result struct {
	// Text is the transcribed text
	Text string

	// IsFinal indicates if this is a final transcription (true) or interim (false)
	IsFinal bool

	// Confidence is the confidence score (0.0 to 1.0) if available
	Confidence float64

	// StartTime is the start time of the utterance in seconds
	StartTime float64

	// Duration is the duration of the utterance in seconds
	Duration float64
}

// LiveTranscriber is the interface for streaming speech-to-text clients.
// One transcriber serves exactly one dictation session. Results are
// delivered in upstream order; interim results for an utterance always
// precede the final result for that utterance.
type LiveTranscriber interface {
	// Start establishes the upstream streaming connection.
	// Returns an error wrapping ErrUpstreamUnavailable if the service
	// cannot be reached or authentication fails.
	Start(ctx context.Context) error

	// SendAudio forwards one chunk of raw audio to the open connection.
	// Transient failures are returned so the caller can log and continue;
	// a single failed chunk does not terminate the session.
	SendAudio(audioData []byte) error

	// Results returns the channel of transcription updates. The channel
	// is closed after Close has drained trailing finals.
	Results() <-chan *Result

	// Close signals end-of-audio, waits (bounded by ctx) for trailing
	// final results, and returns the accumulated final transcript text.
	// Safe to call when no audio was ever sent; returns an empty string.
	Close(ctx context.Context) (string, error)
}
