package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kmch/dictation-gateway/internal/config"
	"github.com/kmch/dictation-gateway/internal/store"
	"github.com/kmch/dictation-gateway/internal/summary"
	"github.com/kmch/dictation-gateway/internal/transcribe"
)

type memStore struct {
	records []store.Record
	saveErr error
}

func (m *memStore) SaveRecord(ctx context.Context, rec *store.Record) (string, error) {
	if m.saveErr != nil {
		return "", m.saveErr
	}
	m.records = append(m.records, *rec)
	return "abc123", nil
}

func (m *memStore) PatientRecords(ctx context.Context, patientID string) ([]store.Record, error) {
	var out []store.Record
	for i := len(m.records) - 1; i >= 0; i-- {
		if m.records[i].PatientID == patientID {
			out = append(out, m.records[i])
		}
	}
	return out, nil
}

func (m *memStore) PatientIDs(ctx context.Context) ([]string, error) {
	seen := map[string]bool{}
	var ids []string
	for _, rec := range m.records {
		if !seen[rec.PatientID] {
			seen[rec.PatientID] = true
			ids = append(ids, rec.PatientID)
		}
	}
	return ids, nil
}

func (m *memStore) Stats(ctx context.Context) (store.PatientStats, error) {
	ids, _ := m.PatientIDs(ctx)
	return store.PatientStats{TotalPatients: len(ids), TotalRecords: int64(len(m.records))}, nil
}

func (m *memStore) Ping(ctx context.Context) error  { return nil }
func (m *memStore) Close(ctx context.Context) error { return nil }

type stubTranscriber struct {
	result transcribe.Result
	err    error
}

func (s *stubTranscriber) TranscribeFile(ctx context.Context, audio []byte, mimeType string) (transcribe.Result, error) {
	return s.result, s.err
}

type stubSummarizer struct{}

func (stubSummarizer) Summarize(ctx context.Context, transcript string) (summary.Data, error) {
	return summary.Data{
		Summary:          "Visit summary",
		MedicalCondition: "Hypertension",
		TreatmentPlan:    "Medication review",
		FollowupDate:     "2026-10-01",
	}, nil
}

func noopHandler(w http.ResponseWriter, r *http.Request) {}

func newTestServer(t *testing.T, st store.Store, tr transcribe.FileTranscriber) *Server {
	return NewServer(Options{
		Config: &config.Config{
			CORSOrigins:   []string{"*"},
			RecordingsDir: t.TempDir(),
		},
		Store:       st,
		Transcriber: tr,
		Summarizer:  stubSummarizer{},
		Dictation:   noopHandler,
		Readiness:   noopHandler,
	})
}

func decodeBody(t *testing.T, resp *httptest.ResponseRecorder) map[string]any {
	var body map[string]any
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &body))
	return body
}

func TestSaveRecordAndRetrieve(t *testing.T) {
	st := &memStore{}
	srv := newTestServer(t, st, nil)

	payload := `{
		"patient_id": "P001",
		"doctor_id": "D042",
		"recording_file": "live_20260826_101500_abcd1234.wav",
		"transcript": "patient reports fever",
		"translation": "patient reports fever",
		"summary_data": {
			"summary": "Fever consult",
			"medical_condition": "Fever",
			"treatment_plan": "Paracetamol",
			"followup_date": "2026-09-02"
		}
	}`

	resp := httptest.NewRecorder()
	srv.Handler().ServeHTTP(resp, httptest.NewRequest("POST", "/api/records", strings.NewReader(payload)))

	require.Equal(t, http.StatusOK, resp.Code)
	body := decodeBody(t, resp)
	assert.Equal(t, true, body["success"])
	assert.Equal(t, "abc123", body["record_id"])

	require.Len(t, st.records, 1)
	assert.Equal(t, "P001", st.records[0].PatientID)
	assert.NotNil(t, st.records[0].Tests)
	assert.False(t, st.records[0].Timestamp.IsZero())
}

func TestSaveRecordInvalidJSON(t *testing.T) {
	srv := newTestServer(t, &memStore{}, nil)

	resp := httptest.NewRecorder()
	srv.Handler().ServeHTTP(resp, httptest.NewRequest("POST", "/api/records", strings.NewReader("{not json")))

	assert.Equal(t, http.StatusBadRequest, resp.Code)
	assert.Equal(t, false, decodeBody(t, resp)["success"])
}

func TestSaveRecordStoreUnavailable(t *testing.T) {
	srv := newTestServer(t, nil, nil)

	resp := httptest.NewRecorder()
	srv.Handler().ServeHTTP(resp, httptest.NewRequest("POST", "/api/records", strings.NewReader("{}")))

	assert.Equal(t, http.StatusInternalServerError, resp.Code)
	assert.Contains(t, decodeBody(t, resp)["error"], "MongoDB not available")
}

func TestListPatients(t *testing.T) {
	st := &memStore{records: []store.Record{
		{PatientID: "P001"},
		{PatientID: "P002"},
		{PatientID: "P001"},
	}}
	srv := newTestServer(t, st, nil)

	resp := httptest.NewRecorder()
	srv.Handler().ServeHTTP(resp, httptest.NewRequest("GET", "/api/patients", nil))

	require.Equal(t, http.StatusOK, resp.Code)
	body := decodeBody(t, resp)
	assert.Equal(t, true, body["success"])
	assert.Len(t, body["patients"], 2)

	stats := body["stats"].(map[string]any)
	assert.Equal(t, float64(2), stats["total_patients"])
	assert.Equal(t, float64(3), stats["total_records"])
}

func TestPatientRecordsFlattened(t *testing.T) {
	older := store.Record{
		PatientID:     "P001",
		RecordingFile: "a.wav",
		Transcript:    "first visit",
		Translation:   "first visit",
		SummaryData:   summary.Data{MedicalCondition: "Cold", TreatmentPlan: "Rest", FollowupDate: "2026-09-01"},
		Timestamp:     time.Date(2026, 8, 20, 9, 0, 0, 0, time.UTC),
	}
	newer := store.Record{
		PatientID:     "P001",
		RecordingFile: "b.wav",
		Transcript:    "second visit",
		Translation:   "second visit",
		SummaryData:   summary.Data{MedicalCondition: "Flu", TreatmentPlan: "Fluids", FollowupDate: "2026-09-10"},
		Timestamp:     time.Date(2026, 8, 25, 9, 0, 0, 0, time.UTC),
	}
	st := &memStore{records: []store.Record{older, newer}}
	srv := newTestServer(t, st, nil)

	resp := httptest.NewRecorder()
	srv.Handler().ServeHTTP(resp, httptest.NewRequest("GET", "/api/patients/P001", nil))

	require.Equal(t, http.StatusOK, resp.Code)
	body := decodeBody(t, resp)
	assert.Equal(t, "P001", body["patient_id"])

	records := body["records"].([]any)
	require.Len(t, records, 2)

	first := records[0].(map[string]any)
	assert.Equal(t, "Flu", first["medical_condition"])
	assert.Equal(t, "Fluids", first["treatment_plan"])
	assert.Equal(t, "2026-09-10", first["followup_date"])
	assert.Equal(t, "b.wav", first["recording_path"])
	assert.Equal(t, "second visit", first["original_transcript"])
	assert.Equal(t, "2026-08-25 09:00:00", first["timestamp"])
}

func TestPatientRecordsUnknownPatient(t *testing.T) {
	srv := newTestServer(t, &memStore{}, nil)

	resp := httptest.NewRecorder()
	srv.Handler().ServeHTTP(resp, httptest.NewRequest("GET", "/api/patients/NOPE", nil))

	require.Equal(t, http.StatusOK, resp.Code)
	body := decodeBody(t, resp)
	assert.Equal(t, true, body["success"])
	assert.Len(t, body["records"], 0)
}

func TestTranscribeUpload(t *testing.T) {
	tr := &stubTranscriber{result: transcribe.Result{
		Transcript:  "காய்ச்சல் இருக்கிறது",
		Translation: "patient has fever",
	}}
	srv := newTestServer(t, nil, tr)

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("audio", "note.wav")
	require.NoError(t, err)
	_, err = fw.Write([]byte("RIFFfakeaudio"))
	require.NoError(t, err)
	require.NoError(t, mw.WriteField("patient_id", "P001"))
	require.NoError(t, mw.Close())

	req := httptest.NewRequest("POST", "/api/transcribe", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	resp := httptest.NewRecorder()
	srv.Handler().ServeHTTP(resp, req)

	require.Equal(t, http.StatusOK, resp.Code)
	body := decodeBody(t, resp)
	assert.Equal(t, true, body["success"])
	assert.Equal(t, "P001", body["patient_id"])
	assert.Equal(t, "patient has fever", body["english_transcript"])

	summaryData := body["summary_data"].(map[string]any)
	assert.Equal(t, "Hypertension", summaryData["medical_condition"])
}

func TestTranscribeUpstreamFailure(t *testing.T) {
	tr := &stubTranscriber{err: errors.New("gemini unreachable")}
	srv := newTestServer(t, nil, tr)

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, _ := mw.CreateFormFile("audio", "note.wav")
	_, _ = fw.Write([]byte("RIFF"))
	require.NoError(t, mw.Close())

	req := httptest.NewRequest("POST", "/api/transcribe", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	resp := httptest.NewRecorder()
	srv.Handler().ServeHTTP(resp, req)

	assert.Equal(t, http.StatusBadGateway, resp.Code)
}

func TestTranscribeMissingFile(t *testing.T) {
	srv := newTestServer(t, nil, &stubTranscriber{})

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	require.NoError(t, mw.WriteField("patient_id", "P001"))
	require.NoError(t, mw.Close())

	req := httptest.NewRequest("POST", "/api/transcribe", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	resp := httptest.NewRecorder()
	srv.Handler().ServeHTTP(resp, req)

	assert.Equal(t, http.StatusBadRequest, resp.Code)
}

func TestRecordingDownload(t *testing.T) {
	srv := newTestServer(t, nil, nil)
	require.NoError(t, os.WriteFile(filepath.Join(srv.cfg.RecordingsDir, "note.wav"), []byte("RIFFdata"), 0o644))

	resp := httptest.NewRecorder()
	srv.Handler().ServeHTTP(resp, httptest.NewRequest("GET", "/recordings/note.wav", nil))

	require.Equal(t, http.StatusOK, resp.Code)
	assert.Equal(t, "RIFFdata", resp.Body.String())
}

func TestRecordingDownloadMissing(t *testing.T) {
	srv := newTestServer(t, nil, nil)

	resp := httptest.NewRecorder()
	srv.Handler().ServeHTTP(resp, httptest.NewRequest("GET", "/recordings/nope.wav", nil))

	assert.Equal(t, http.StatusNotFound, resp.Code)
}

func TestRecordingDownloadRejectsTraversal(t *testing.T) {
	srv := newTestServer(t, nil, nil)
	outside := filepath.Join(filepath.Dir(srv.cfg.RecordingsDir), "secret.wav")
	require.NoError(t, os.WriteFile(outside, []byte("confidential"), 0o644))

	// The router is configured to pass the encoded path through, so the
	// filename guard answers 404 instead of a path-cleaning redirect
	resp := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/recordings/..%2Fsecret.wav", nil)
	srv.Handler().ServeHTTP(resp, req)

	assert.Equal(t, http.StatusNotFound, resp.Code)
	assert.NotContains(t, resp.Body.String(), "confidential")

	// The decoded form hits the same guard when routing is bypassed
	direct := httptest.NewRecorder()
	dreq := mux.SetURLVars(httptest.NewRequest("GET", "/recordings/x", nil),
		map[string]string{"filename": "../secret.wav"})
	srv.handleRecordingDownload(direct, dreq)
	assert.Equal(t, http.StatusNotFound, direct.Code)
}

func TestHealthEndpoint(t *testing.T) {
	srv := newTestServer(t, nil, nil)

	resp := httptest.NewRecorder()
	srv.Handler().ServeHTTP(resp, httptest.NewRequest("GET", "/health", nil))

	require.Equal(t, http.StatusOK, resp.Code)
	assert.Equal(t, "dictation-gateway", decodeBody(t, resp)["service"])
}
