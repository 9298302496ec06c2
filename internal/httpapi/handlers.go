package httpapi

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gorilla/mux"

	"github.com/kmch/dictation-gateway/internal/store"
	"github.com/kmch/dictation-gateway/internal/summary"
)

const maxUploadBytes = 32 << 20

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]any{"success": false, "message": message})
}

// handleTranscribe accepts an uploaded audio file, transcribes and
// translates it, and returns the structured summary. Nothing is
// persisted; the client decides whether to save via /api/records.
func (s *Server) handleTranscribe(w http.ResponseWriter, r *http.Request) {
	if s.transcriber == nil {
		writeError(w, http.StatusServiceUnavailable, "Transcription service not available")
		return
	}

	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid multipart form")
		return
	}

	file, header, err := r.FormFile("audio")
	if err != nil {
		writeError(w, http.StatusBadRequest, "Missing audio file")
		return
	}
	defer file.Close()

	audio, err := io.ReadAll(io.LimitReader(file, maxUploadBytes))
	if err != nil {
		writeError(w, http.StatusBadRequest, "Failed to read audio file")
		return
	}

	mimeType := header.Header.Get("Content-Type")
	if mimeType == "" {
		mimeType = "audio/wav"
	}

	result, err := s.transcriber.TranscribeFile(r.Context(), audio, mimeType)
	if err != nil {
		s.logger.Error().Err(err).Msg("File transcription failed")
		writeError(w, http.StatusBadGateway, fmt.Sprintf("Transcription failed: %v", err))
		return
	}

	summaryData, err := s.summarizer.Summarize(r.Context(), result.Translation)
	if err != nil {
		// Placeholder fields are still delivered
		s.logger.Warn().Err(err).Msg("Summary generation failed for uploaded audio")
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"success":             true,
		"patient_id":          r.FormValue("patient_id"),
		"doctor_id":           r.FormValue("doctor_id"),
		"original_transcript": result.Transcript,
		"english_transcript":  result.Translation,
		"summary_data":        summaryData,
	})
}

// saveRecordRequest mirrors the document shape the UI posts after a
// completed dictation
type saveRecordRequest struct {
	PatientID     string       `json:"patient_id"`
	DoctorID      string       `json:"doctor_id"`
	RecordingFile string       `json:"recording_file"`
	Transcript    string       `json:"transcript"`
	Translation   string       `json:"translation"`
	SummaryData   summary.Data `json:"summary_data"`
}

func (s *Server) handleSaveRecord(w http.ResponseWriter, r *http.Request) {
	if s.store == nil {
		writeJSON(w, http.StatusInternalServerError, map[string]any{
			"success": false,
			"error":   "MongoDB not available",
		})
		return
	}

	var req saveRecordRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{
			"success": false,
			"error":   "Invalid JSON body",
		})
		return
	}

	recordID, err := s.store.SaveRecord(r.Context(), &store.Record{
		PatientID:     req.PatientID,
		DoctorID:      req.DoctorID,
		RecordingFile: req.RecordingFile,
		Transcript:    req.Transcript,
		Translation:   req.Translation,
		SummaryData:   req.SummaryData,
		Timestamp:     time.Now().UTC(),
		Tests:         map[string]any{},
	})
	if err != nil {
		s.logger.Error().Err(err).Msg("Failed to save record")
		writeJSON(w, http.StatusInternalServerError, map[string]any{
			"success": false,
			"error":   err.Error(),
		})
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"success":   true,
		"message":   "Saved to MongoDB successfully",
		"record_id": recordID,
	})
}

func (s *Server) handleListPatients(w http.ResponseWriter, r *http.Request) {
	if s.store == nil {
		writeError(w, http.StatusInternalServerError, "MongoDB not available")
		return
	}

	patientIDs, err := s.store.PatientIDs(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	stats, err := s.store.Stats(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"success":  true,
		"patients": patientIDs,
		"stats":    stats,
	})
}

// flattenedRecord adds the top-level convenience fields the patient
// dashboard reads, alongside the raw record
type flattenedRecord struct {
	store.Record
	Timestamp          string `json:"timestamp"`
	MedicalCondition   string `json:"medical_condition"`
	TreatmentPlan      string `json:"treatment_plan"`
	FollowupDate       string `json:"followup_date"`
	RecordingPath      string `json:"recording_path"`
	OriginalTranscript string `json:"original_transcript"`
	EnglishTranscript  string `json:"english_transcript"`
}

func flattenRecord(rec store.Record) flattenedRecord {
	return flattenedRecord{
		Record:             rec,
		Timestamp:          rec.Timestamp.Format("2006-01-02 15:04:05"),
		MedicalCondition:   rec.SummaryData.MedicalCondition,
		TreatmentPlan:      rec.SummaryData.TreatmentPlan,
		FollowupDate:       rec.SummaryData.FollowupDate,
		RecordingPath:      rec.RecordingFile,
		OriginalTranscript: rec.Transcript,
		EnglishTranscript:  rec.Translation,
	}
}

// handlePatientRecords returns a patient's records newest first, with
// summary fields flattened to the top level
func (s *Server) handlePatientRecords(w http.ResponseWriter, r *http.Request) {
	if s.store == nil {
		writeError(w, http.StatusInternalServerError, "MongoDB not available")
		return
	}

	patientID := mux.Vars(r)["patient_id"]
	records, err := s.store.PatientRecords(r.Context(), patientID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	flattened := make([]flattenedRecord, 0, len(records))
	for _, rec := range records {
		flattened = append(flattened, flattenRecord(rec))
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"success":    true,
		"patient_id": patientID,
		"records":    flattened,
	})
}

// handleRawRecords returns the unflattened record documents
func (s *Server) handleRawRecords(w http.ResponseWriter, r *http.Request) {
	if s.store == nil {
		writeJSON(w, http.StatusInternalServerError, map[string]any{"error": "MongoDB not available"})
		return
	}

	records, err := s.store.PatientRecords(r.Context(), mux.Vars(r)["patient_id"])
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]any{"error": err.Error()})
		return
	}
	if records == nil {
		records = []store.Record{}
	}

	writeJSON(w, http.StatusOK, records)
}

// handleRecordingDownload serves one audio artifact from the recordings
// directory. Only base filenames are accepted.
func (s *Server) handleRecordingDownload(w http.ResponseWriter, r *http.Request) {
	filename := mux.Vars(r)["filename"]
	if filename == "" || strings.Contains(filename, "..") || filename != filepath.Base(filename) {
		writeJSON(w, http.StatusNotFound, map[string]any{"error": "File not found"})
		return
	}

	path := filepath.Join(s.cfg.RecordingsDir, filename)
	if _, err := os.Stat(path); err != nil {
		writeJSON(w, http.StatusNotFound, map[string]any{"error": "File not found"})
		return
	}

	http.ServeFile(w, r, path)
}
