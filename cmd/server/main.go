package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/generative-ai-go/genai"
	"github.com/rs/zerolog"
	"google.golang.org/api/option"

	"github.com/kmch/dictation-gateway/internal/config"
	"github.com/kmch/dictation-gateway/internal/dictation"
	"github.com/kmch/dictation-gateway/internal/httpapi"
	"github.com/kmch/dictation-gateway/internal/observability"
	"github.com/kmch/dictation-gateway/internal/session"
	"github.com/kmch/dictation-gateway/internal/store"
	"github.com/kmch/dictation-gateway/internal/stt"
	"github.com/kmch/dictation-gateway/internal/summary"
	"github.com/kmch/dictation-gateway/internal/transcribe"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		// Use fmt for fatal errors before logger is initialized
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// Initialize structured logger
	observability.InitLogger(cfg.LogLevel, cfg.LogPretty)
	logger := observability.GetLogger()

	logger.Info().
		Str("port", cfg.Port).
		Str("stt_model", cfg.DeepgramModel).
		Str("summary_model", cfg.GeminiModel).
		Str("log_level", cfg.LogLevel).
		Bool("metrics_enabled", cfg.MetricsEnabled).
		Msg("Dictation Gateway starting")

	ctx := context.Background()

	// Gemini client is shared by the summarizer and the file transcriber
	genaiClient, err := genai.NewClient(ctx, option.WithAPIKey(cfg.GeminiAPIKey))
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to create Gemini client")
	}
	defer genaiClient.Close()

	summarizer := summary.NewGeminiSummarizer(genaiClient, cfg, logger)
	fileTranscriber := transcribe.NewGeminiTranscriber(genaiClient, cfg, logger)

	// MongoDB is optional: the gateway still transcribes and summarizes
	// without it, results just are not persisted
	var docStore store.Store
	if cfg.MongoURI != "" {
		mongoStore, err := store.NewMongoStore(ctx, cfg, logger)
		if err != nil {
			logger.Warn().Err(err).Msg("MongoDB unavailable, running without persistence")
		} else {
			docStore = mongoStore
			defer mongoStore.Close(context.Background())
			logger.Info().Str("database", cfg.MongoDatabase).Msg("MongoDB connected")
		}
	} else {
		logger.Warn().Msg("MONGO_URI not set, running without persistence")
	}

	deps := &dictation.Deps{
		Config:     cfg,
		Registry:   session.NewRegistry(),
		Summarizer: summarizer,
		Store:      docStore,
		NewTranscriber: func(languageCode string, sessionLogger zerolog.Logger) stt.LiveTranscriber {
			return stt.NewDeepgramTranscriber(cfg, languageCode, sessionLogger)
		},
	}

	// Readiness checks are closures so the observability package stays free
	// of dependency imports
	checks := map[string]observability.HealthCheckFunc{
		"deepgram": func(ctx context.Context) (bool, error) {
			if cfg.DeepgramAPIKey == "" {
				return false, fmt.Errorf("DEEPGRAM_API_KEY not configured")
			}
			return true, nil
		},
		"gemini": func(ctx context.Context) (bool, error) {
			if cfg.GeminiAPIKey == "" {
				return false, fmt.Errorf("GEMINI_API_KEY not configured")
			}
			return true, nil
		},
		"mongodb": func(ctx context.Context) (bool, error) {
			if docStore == nil {
				return false, fmt.Errorf("document store not connected")
			}
			if err := docStore.Ping(ctx); err != nil {
				return false, err
			}
			return true, nil
		},
	}

	api := httpapi.NewServer(httpapi.Options{
		Config:      cfg,
		Store:       docStore,
		Transcriber: fileTranscriber,
		Summarizer:  summarizer,
		Dictation:   dictation.Handler(deps),
		Readiness:   observability.ReadinessHandler(checks),
	})

	server := &http.Server{
		Addr:        fmt.Sprintf(":%s", cfg.Port),
		Handler:     api.Handler(),
		ReadTimeout: 15 * time.Second,
		IdleTimeout: 60 * time.Second,
	}

	go func() {
		logger.Info().
			Str("port", cfg.Port).
			Str("endpoint", fmt.Sprintf("ws://localhost:%s/ws/dictation", cfg.Port)).
			Msg("Server listening")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("Server failed to start")
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info().Msg("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Fatal().Err(err).Msg("Server forced to shutdown")
	}

	logger.Info().Msg("Server exited gracefully")
}
