package httpapi

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/cors"
	"github.com/rs/zerolog"

	"github.com/kmch/dictation-gateway/internal/config"
	"github.com/kmch/dictation-gateway/internal/observability"
	"github.com/kmch/dictation-gateway/internal/store"
	"github.com/kmch/dictation-gateway/internal/summary"
	"github.com/kmch/dictation-gateway/internal/transcribe"
)

// Server owns the REST surface of the gateway: record persistence and
// retrieval, batch transcription, recording downloads, plus the health
// and metrics endpoints. The dictation websocket is mounted alongside.
type Server struct {
	cfg         *config.Config
	store       store.Store
	transcriber transcribe.FileTranscriber
	summarizer  summary.Summarizer
	logger      zerolog.Logger
	router      *mux.Router
	handler     http.Handler
}

// Options bundles the collaborators the server routes to. Store and
// Transcriber may be nil; the affected endpoints then report the
// dependency as unavailable instead of failing at startup.
type Options struct {
	Config      *config.Config
	Store       store.Store
	Transcriber transcribe.FileTranscriber
	Summarizer  summary.Summarizer
	Dictation   http.HandlerFunc
	Readiness   http.HandlerFunc
}

func NewServer(opts Options) *Server {
	s := &Server{
		cfg:         opts.Config,
		store:       opts.Store,
		transcriber: opts.Transcriber,
		summarizer:  opts.Summarizer,
		logger:      observability.GetLogger().With().Str("component", "httpapi").Logger(),
		router:      mux.NewRouter(),
	}

	// Percent-encoded traversal attempts against /recordings must reach the
	// filename guard in handleRecordingDownload rather than being rewritten
	// into a redirect by the router's path cleaning.
	s.router.SkipClean(true)
	s.router.UseEncodedPath()

	s.router.HandleFunc("/health", observability.HealthCheckHandler()).Methods("GET")
	s.router.HandleFunc("/ready", opts.Readiness).Methods("GET")
	s.router.Handle("/metrics", promhttp.Handler()).Methods("GET")

	s.router.HandleFunc("/ws/dictation", opts.Dictation)

	s.router.HandleFunc("/api/transcribe", s.handleTranscribe).Methods("POST")
	s.router.HandleFunc("/api/records", s.handleSaveRecord).Methods("POST")
	s.router.HandleFunc("/api/patients", s.handleListPatients).Methods("GET")
	s.router.HandleFunc("/api/patients/{patient_id}", s.handlePatientRecords).Methods("GET")
	s.router.HandleFunc("/records/{patient_id}", s.handleRawRecords).Methods("GET")
	s.router.HandleFunc("/recordings/{filename}", s.handleRecordingDownload).Methods("GET")

	c := cors.New(cors.Options{
		AllowedOrigins:   s.cfg.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"*"},
		AllowCredentials: true,
	})
	s.handler = c.Handler(s.router)

	return s
}

// Handler returns the full middleware-wrapped handler for http.Server
func (s *Server) Handler() http.Handler {
	return s.handler
}
