package dictation

import "github.com/kmch/dictation-gateway/internal/summary"

// Client event names accepted over the dictation websocket
const (
	eventStartTranscription = "start_live_transcription"
	eventAudioChunk         = "audio_chunk"
	eventStopTranscription  = "stop_live_transcription"
)

// clientEvent is the inbound JSON envelope from the browser
type clientEvent struct {
	Event        string `json:"event"`
	LanguageCode string `json:"language_code,omitempty"`
	PatientID    string `json:"patient_id,omitempty"`
	DoctorID     string `json:"doctor_id,omitempty"`
	Audio        string `json:"audio,omitempty"` // Base64 encoded linear16 PCM
}

// connectionStatusEvent acknowledges the websocket connection
type connectionStatusEvent struct {
	Event   string `json:"event"`
	Status  string `json:"status"`
	Message string `json:"message"`
}

// transcriptionStartedEvent confirms live transcription is ready
type transcriptionStartedEvent struct {
	Event   string `json:"event"`
	Status  string `json:"status"`
	Message string `json:"message"`
}

// liveTranscriptEvent relays one interim or final transcript update
type liveTranscriptEvent struct {
	Event      string  `json:"event"`
	Transcript string  `json:"transcript"`
	IsFinal    bool    `json:"is_final"`
	Confidence float64 `json:"confidence"`
}

// transcriptionCompleteEvent delivers the final result of a session
type transcriptionCompleteEvent struct {
	Event              string       `json:"event"`
	Success            bool         `json:"success"`
	OriginalTranscript string       `json:"original_transcript"`
	EnglishTranscript  string       `json:"english_transcript"`
	SummaryData        summary.Data `json:"summary_data"`
	RecordingFile      string       `json:"recording_file"`
	RecordID           string       `json:"record_id,omitempty"`
}

// transcriptionErrorEvent reports a failure. When a result was computed
// but could not be saved, the result fields carry it so the transcript
// is not lost.
type transcriptionErrorEvent struct {
	Event              string        `json:"event"`
	Error              string        `json:"error"`
	OriginalTranscript string        `json:"original_transcript,omitempty"`
	SummaryData        *summary.Data `json:"summary_data,omitempty"`
	RecordingFile      string        `json:"recording_file,omitempty"`
}

func newConnectionStatus() connectionStatusEvent {
	return connectionStatusEvent{
		Event:   "connection_status",
		Status:  "connected",
		Message: "Connected to server",
	}
}

func newTranscriptionStarted() transcriptionStartedEvent {
	return transcriptionStartedEvent{
		Event:   "transcription_started",
		Status:  "success",
		Message: "Live transcription started",
	}
}

func newLiveTranscript(text string, isFinal bool, confidence float64) liveTranscriptEvent {
	return liveTranscriptEvent{
		Event:      "live_transcript",
		Transcript: text,
		IsFinal:    isFinal,
		Confidence: confidence,
	}
}

func newTranscriptionError(msg string) transcriptionErrorEvent {
	return transcriptionErrorEvent{
		Event: "live_transcription_error",
		Error: msg,
	}
}
