package dictation

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/kmch/dictation-gateway/internal/config"
	"github.com/kmch/dictation-gateway/internal/observability"
	"github.com/kmch/dictation-gateway/internal/session"
	"github.com/kmch/dictation-gateway/internal/store"
	"github.com/kmch/dictation-gateway/internal/stt"
	"github.com/kmch/dictation-gateway/internal/summary"
)

// State is the lifecycle state of one dictation session
type State int

const (
	StateIdle State = iota
	StateStarting
	StateActive
	StateStopping
	StateDone
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateStarting:
		return "starting"
	case StateActive:
		return "active"
	case StateStopping:
		return "stopping"
	case StateDone:
		return "done"
	case StateFailed:
		return "failed"
	}
	return "unknown"
}

// TranscriberFactory creates one streaming transcriber per session
type TranscriberFactory func(languageCode string, logger zerolog.Logger) stt.LiveTranscriber

// Deps are the collaborators a session actor needs. Store may be nil,
// in which case results are delivered but not persisted.
type Deps struct {
	Config         *config.Config
	Registry       *session.Registry
	Summarizer     summary.Summarizer
	Store          store.Store
	NewTranscriber TranscriberFactory
}

// Actor owns all state for one websocket connection. Client events and
// transcript events funnel through Run's single select loop, so two
// events for the same connection are never processed concurrently.
// Blocking calls (transcriber start/close, summary, persistence) happen
// inside this actor and never stall other sessions.
type Actor struct {
	id      string
	deps    *Deps
	logger  zerolog.Logger
	metrics *observability.Metrics

	inbound  chan clientEvent
	outbound chan any
	done     chan struct{}

	// Actor-owned; only Run's goroutine touches these
	state       State
	sess        *session.Session
	patientID   string
	doctorID    string
	transcriber stt.LiveTranscriber
	recorder    *Recorder
	results     <-chan *stt.Result
}

// NewActor creates the actor for one connection. Run must be started by
// the caller.
func NewActor(id string, deps *Deps, logger zerolog.Logger) *Actor {
	return &Actor{
		id:       id,
		deps:     deps,
		logger:   logger,
		metrics:  observability.NewSessionMetrics(id),
		inbound:  make(chan clientEvent, 64),
		outbound: make(chan any, 256),
		done:     make(chan struct{}),
		state:    StateIdle,
	}
}

// Run processes events until the inbound channel closes (client
// disconnect). It owns the outbound channel and closes it on exit.
func (a *Actor) Run() {
	defer close(a.done)
	defer close(a.outbound)

	a.emit(newConnectionStatus())

	for {
		select {
		case ev, ok := <-a.inbound:
			if !ok {
				a.cleanup()
				return
			}
			a.handleClientEvent(ev)

		case res, ok := <-a.results:
			if !ok {
				a.results = nil
				continue
			}
			a.handleTranscript(res, true)
		}
	}
}

// Done is closed once Run has finished cleanup
func (a *Actor) Done() <-chan struct{} {
	return a.done
}

// handleClientEvent dispatches one decoded client event
func (a *Actor) handleClientEvent(ev clientEvent) {
	switch ev.Event {
	case eventStartTranscription:
		a.handleStart(ev)
	case eventAudioChunk:
		a.handleAudio(ev.Audio)
	case eventStopTranscription:
		a.handleStop()
	default:
		a.logger.Warn().Str("event", ev.Event).Msg("Unknown client event")
	}
}

// handleStart moves IDLE -> STARTING -> ACTIVE, or rejects
func (a *Actor) handleStart(ev clientEvent) {
	languageCode := ev.LanguageCode
	if languageCode == "" {
		languageCode = a.deps.Config.DeepgramLanguage
	}

	if a.state != StateIdle {
		a.metrics.RecordError("duplicate_session", "dictation")
		a.emit(newTranscriptionError("Live transcription already active for this connection"))
		return
	}

	sess, err := a.deps.Registry.Create(a.id, languageCode)
	if err != nil {
		if errors.Is(err, session.ErrDuplicateSession) {
			a.metrics.RecordError("duplicate_session", "dictation")
			a.emit(newTranscriptionError("Live transcription already active for this connection"))
			return
		}
		a.emit(newTranscriptionError(err.Error()))
		return
	}

	a.state = StateStarting
	a.logger.Info().Str("language", languageCode).Msg("Starting live transcription")

	transcriber := a.deps.NewTranscriber(languageCode, a.logger)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := transcriber.Start(ctx); err != nil {
		// No automatic retry: the client is told and retries start explicitly
		a.deps.Registry.Remove(a.id)
		a.state = StateFailed
		a.metrics.RecordSTTStart(false)
		a.metrics.RecordError("upstream_unavailable", "stt")
		a.logger.Error().Err(err).Msg("Failed to start live transcription")
		a.emit(newTranscriptionError(fmt.Sprintf("Live transcription unavailable: %v", err)))
		a.reset()
		return
	}

	recorder, err := NewRecorder(a.deps.Config.RecordingsDir, a.id, a.deps.Config.AudioSampleRate, a.deps.Config.AudioBufferSize)
	if err != nil {
		// The session is still useful without an audio artifact
		a.logger.Error().Err(err).Msg("Failed to open recording artifact")
		a.metrics.RecordError("recorder_error", "dictation")
		recorder = nil
	}

	a.sess = sess
	a.patientID = ev.PatientID
	a.doctorID = ev.DoctorID
	a.transcriber = transcriber
	a.recorder = recorder
	a.results = transcriber.Results()
	a.state = StateActive

	a.metrics.RecordSessionStart()
	a.metrics.RecordSTTStart(true)
	a.emit(newTranscriptionStarted())
}

// handleAudio forwards one base64 chunk to the transcriber and recorder
func (a *Actor) handleAudio(audioB64 string) {
	if a.state != StateActive {
		// Tolerated: real speech rarely starts in the first tens of
		// milliseconds, dropping early chunks is acceptable
		a.logger.Warn().Str("state", a.state.String()).Msg("Dropping audio chunk outside active session")
		return
	}

	audioBytes, err := base64.StdEncoding.DecodeString(audioB64)
	if err != nil {
		a.logger.Error().Err(err).Msg("Failed to decode base64 audio")
		a.metrics.RecordError("audio_decode_error", "dictation")
		return
	}

	a.metrics.RecordAudioBytes(int64(len(audioBytes)))

	if a.recorder != nil {
		if err := a.recorder.Write(audioBytes); err != nil {
			a.logger.Warn().Err(err).Msg("Failed to record audio chunk")
		}
	}

	// A single failed chunk must not terminate the session
	if err := a.transcriber.SendAudio(audioBytes); err != nil {
		a.logger.Error().Err(err).Msg("Error sending audio to transcriber")
		a.metrics.RecordError("stt_send_error", "stt")
	}
}

// handleTranscript applies one transcript update to the session buffers
// and optionally forwards it to the client verbatim
func (a *Actor) handleTranscript(res *stt.Result, forward bool) {
	if a.state != StateActive && a.state != StateStopping {
		return
	}

	a.metrics.RecordTranscriptEvent(res.IsFinal)

	if res.IsFinal {
		a.sess.AppendFinal(res.Text)
	} else {
		a.sess.SetInterim(res.Text)
	}

	if forward {
		a.emit(newLiveTranscript(res.Text, res.IsFinal, res.Confidence))
	}
}

// handleStop moves ACTIVE -> STOPPING -> DONE and delivers the final result
func (a *Actor) handleStop() {
	if a.state != StateActive || a.sess == nil || !a.sess.IsActive() {
		a.metrics.RecordError("no_active_session", "dictation")
		a.emit(newTranscriptionError("No active transcription session"))
		return
	}

	a.state = StateStopping
	a.sess.Deactivate()
	a.logger.Info().Msg("Stopping live transcription")

	transcript, data, recordingFile, recordID, persistErr := a.finalize(true)

	if persistErr != nil {
		// The transcript must not be lost: attach the computed result
		a.emit(transcriptionErrorEvent{
			Event:              "live_transcription_error",
			Error:              fmt.Sprintf("result computed but not saved: %v", persistErr),
			OriginalTranscript: transcript,
			SummaryData:        &data,
			RecordingFile:      recordingFile,
		})
	} else {
		a.emit(transcriptionCompleteEvent{
			Event:              "live_transcription_complete",
			Success:            true,
			OriginalTranscript: transcript,
			EnglishTranscript:  transcript,
			SummaryData:        data,
			RecordingFile:      recordingFile,
			RecordID:           recordID,
		})
	}

	a.state = StateDone
	a.metrics.RecordSessionEnd()
	a.deps.Registry.Remove(a.id)
	a.reset()
}

// finalize closes the transcriber with a bounded wait, drains trailing
// finals, generates the summary, finalizes the artifact, and persists the
// record. Summary failures are absorbed with placeholders; only the
// persistence error is returned.
func (a *Actor) finalize(forward bool) (transcript string, data summary.Data, recordingFile, recordID string, persistErr error) {
	ctx, cancel := context.WithTimeout(context.Background(), a.deps.Config.StopFlushTimeout())
	defer cancel()

	upstreamTranscript, err := a.transcriber.Close(ctx)
	if err != nil {
		// Force-finalize with whatever segments accumulated
		a.logger.Warn().Err(err).Msg("Transcriber close did not complete cleanly")
		a.metrics.RecordError("stt_close_timeout", "stt")
	}

	// Trailing finals already delivered to the channel are still applied
	// (and shown live) before the result is built
	if a.results != nil {
		for res := range a.results {
			a.handleTranscript(res, forward)
		}
		a.results = nil
	}

	transcript = a.sess.Transcript()
	if transcript == "" {
		transcript = upstreamTranscript
	}

	if transcript == "" {
		// Nothing was dictated: no LLM round trip, placeholders only
		data = summary.Placeholder("")
	} else {
		data = a.generateSummary(transcript)
	}

	if a.recorder != nil {
		recordingFile, err = a.recorder.Finalize()
		if err != nil {
			a.logger.Warn().Err(err).Msg("Failed to finalize recording artifact")
			a.metrics.RecordError("recorder_error", "dictation")
		}
	}

	recordID, persistErr = a.persist(transcript, data, recordingFile)
	return transcript, data, recordingFile, recordID, persistErr
}

// generateSummary invokes the summarizer; failures are absorbed and the
// placeholder fields from the Summarizer contract are used
func (a *Actor) generateSummary(transcript string) summary.Data {
	a.metrics.RecordSummaryStart()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	data, err := a.deps.Summarizer.Summarize(ctx, transcript)
	if err != nil {
		a.logger.Warn().Err(err).Msg("Summary generation failed, using placeholders")
		a.metrics.RecordSummaryEnd(false)
		a.metrics.RecordError("summary_error", "summary")
		return data
	}

	a.metrics.RecordSummaryEnd(true)
	return data
}

// persist writes the final record to the document store
func (a *Actor) persist(transcript string, data summary.Data, recordingFile string) (string, error) {
	if a.deps.Store == nil {
		return "", nil
	}

	a.metrics.RecordPersistStart()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	recordID, err := a.deps.Store.SaveRecord(ctx, &store.Record{
		PatientID:     a.patientID,
		DoctorID:      a.doctorID,
		SessionID:     a.sess.ID,
		LanguageCode:  a.sess.LanguageCode,
		RecordingFile: recordingFile,
		Transcript:    transcript,
		Translation:   transcript,
		SummaryData:   data,
		Timestamp:     time.Now().UTC(),
		Tests:         map[string]any{},
	})
	if err != nil {
		a.metrics.RecordPersistEnd(false)
		a.metrics.RecordError("persistence_error", "store")
		return "", err
	}

	a.metrics.RecordPersistEnd(true)
	return recordID, nil
}

// cleanup handles client disconnect: the same finalization as stop, but
// with no delivery guarantee to the (gone) client. The upstream connection
// is always closed and the registry entry removed unconditionally.
func (a *Actor) cleanup() {
	if a.state == StateActive || a.state == StateStarting {
		a.logger.Info().Msg("Client disconnected mid-session, cleaning up")
		a.state = StateStopping
		if a.sess != nil {
			a.sess.Deactivate()
		}

		transcript, _, _, _, persistErr := a.finalize(false)
		if persistErr != nil {
			a.logger.Error().Err(persistErr).Msg("Failed to persist result after disconnect")
		}
		if transcript != "" {
			a.logger.Info().Int("chars", len(transcript)).Msg("Salvaged transcript from disconnected session")
		}
		a.metrics.RecordSessionEnd()
	}

	a.deps.Registry.Remove(a.id)
	a.reset()
}

// reset returns the actor to IDLE so the client can start a new session
// on the same connection
func (a *Actor) reset() {
	a.state = StateIdle
	a.sess = nil
	a.patientID = ""
	a.doctorID = ""
	a.transcriber = nil
	a.recorder = nil
	a.results = nil
}

// emit queues one event for the write pump. The pump always drains until
// the outbound channel closes, so this cannot deadlock.
func (a *Actor) emit(ev any) {
	a.outbound <- ev
}
