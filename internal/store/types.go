package store

import (
	"context"
	"errors"
	"time"

	"github.com/kmch/dictation-gateway/internal/summary"
)

// ErrUnavailable indicates the document store is not configured or not
// reachable. Callers surface this rather than dropping the computed result.
var ErrUnavailable = errors.New("document store unavailable")

// Record is one final dictation result document, shaped after the records
// collection. Created once at session stop and never mutated.
type Record struct {
	PatientID     string         `json:"patient_id" bson:"patient_id"`
	DoctorID      string         `json:"doctor_id" bson:"doctor_id"`
	SessionID     string         `json:"session_id,omitempty" bson:"session_id,omitempty"`
	LanguageCode  string         `json:"language_code,omitempty" bson:"language_code,omitempty"`
	RecordingFile string         `json:"recording_file" bson:"recording_file"`
	Transcript    string         `json:"transcript" bson:"transcript"`
	Translation   string         `json:"translation" bson:"translation"`
	SummaryData   summary.Data   `json:"summary_data" bson:"summary_data"`
	Timestamp     time.Time      `json:"timestamp" bson:"timestamp"`
	Tests         map[string]any `json:"tests" bson:"tests"`
}

// PatientStats summarizes the records collection for the patient listing
type PatientStats struct {
	TotalPatients int   `json:"total_patients"`
	TotalRecords  int64 `json:"total_records"`
}

// Store is the persistence adapter for final dictation results
type Store interface {
	// SaveRecord inserts one record and returns its identifier
	SaveRecord(ctx context.Context, rec *Record) (string, error)

	// PatientRecords returns a patient's records, newest first
	PatientRecords(ctx context.Context, patientID string) ([]Record, error)

	// PatientIDs returns the distinct patient identifiers
	PatientIDs(ctx context.Context) ([]string, error)

	// Stats returns collection-level counts
	Stats(ctx context.Context) (PatientStats, error)

	// Ping verifies connectivity
	Ping(ctx context.Context) error

	// Close releases the underlying connections
	Close(ctx context.Context) error
}
