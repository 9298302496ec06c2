package config

import (
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// Config holds all configuration for the dictation gateway service
type Config struct {
	// Server configuration
	Port string `envconfig:"PORT" default:"8080"`

	// Allowed CORS origins (comma separated). "*" allows all origins,
	// matching the original development deployment.
	CORSOrigins []string `envconfig:"CORS_ORIGINS" default:"*"`

	// Deepgram STT API configuration
	DeepgramAPIKey   string `envconfig:"DEEPGRAM_API_KEY" required:"true"`
	DeepgramModel    string `envconfig:"DEEPGRAM_MODEL" default:"nova-2-medical"` // nova-2-medical, nova-2, enhanced
	DeepgramLanguage string `envconfig:"DEEPGRAM_LANGUAGE" default:"en"`          // Fallback when the client sends no language

	// Gemini API configuration (summaries and file transcription)
	GeminiAPIKey string `envconfig:"GEMINI_API_KEY" required:"true"`
	GeminiModel  string `envconfig:"GEMINI_MODEL" default:"gemini-2.0-flash-exp"`

	// MongoDB document store
	MongoURI       string `envconfig:"MONGO_URI" default:"mongodb://127.0.0.1:27017/"`
	MongoDatabase  string `envconfig:"DB_NAME" default:"hospital_voice_db"`
	MongoTimeoutMS int    `envconfig:"MONGO_TIMEOUT_MS" default:"5000"` // Server selection timeout

	// Audio configuration. Browsers stream linear16 PCM at this rate;
	// it is also the rate negotiated with Deepgram and written to WAV artifacts.
	AudioSampleRate int    `envconfig:"AUDIO_SAMPLE_RATE" default:"16000"`
	RecordingsDir   string `envconfig:"RECORDINGS_DIR" default:"recordings"`
	AudioBufferSize int    `envconfig:"AUDIO_BUFFER_SIZE" default:"65536"` // Recorder ring buffer size in bytes

	// Bounded wait when closing the upstream STT connection at stop.
	// After this the session force-finalizes with whatever segments arrived.
	StopFlushTimeoutMS int `envconfig:"STOP_FLUSH_TIMEOUT_MS" default:"5000"`

	// Resilience configuration
	CircuitBreakerMaxFailures  int `envconfig:"CIRCUIT_BREAKER_MAX_FAILURES" default:"5"`   // Failures before opening circuit
	CircuitBreakerResetTimeout int `envconfig:"CIRCUIT_BREAKER_RESET_TIMEOUT" default:"30"` // Seconds before attempting recovery
	RetryMaxAttempts           int `envconfig:"RETRY_MAX_ATTEMPTS" default:"3"`             // Maximum retry attempts (Mongo writes)
	RetryInitialBackoff        int `envconfig:"RETRY_INITIAL_BACKOFF" default:"100"`        // Initial backoff in milliseconds
	ReconnectMaxAttempts       int `envconfig:"RECONNECT_MAX_ATTEMPTS" default:"5"`         // Maximum STT reconnection attempts
	ReconnectBackoff           int `envconfig:"RECONNECT_BACKOFF" default:"1000"`           // Reconnection backoff in milliseconds

	// Observability configuration
	LogLevel       string `envconfig:"LOG_LEVEL" default:"info"`       // Log level: debug, info, warn, error
	LogPretty      bool   `envconfig:"LOG_PRETTY" default:"false"`     // Pretty print logs (for development)
	MetricsEnabled bool   `envconfig:"METRICS_ENABLED" default:"true"` // Enable Prometheus metrics
}

// StopFlushTimeout returns the stop flush bound as a duration
func (c *Config) StopFlushTimeout() time.Duration {
	return time.Duration(c.StopFlushTimeoutMS) * time.Millisecond
}

// MongoTimeout returns the Mongo server selection timeout as a duration
func (c *Config) MongoTimeout() time.Duration {
	return time.Duration(c.MongoTimeoutMS) * time.Millisecond
}

// Load reads configuration from environment variables
// It first attempts to load from .env file if it exists, then from environment
func Load() (*Config, error) {
	// Try to load the env file (ignore error if it doesn't exist);
	// ENV_FILE overrides the default path
	_ = godotenv.Load(GetEnv("ENV_FILE", ".env"))

	return LoadFromEnv()
}

// LoadFromEnv loads configuration directly from environment variables
// without attempting to load .env file (useful for containerized deployments)
func LoadFromEnv() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	// Validate required fields
	if cfg.DeepgramAPIKey == "" {
		return nil, fmt.Errorf("DEEPGRAM_API_KEY is required")
	}
	if cfg.GeminiAPIKey == "" {
		return nil, fmt.Errorf("GEMINI_API_KEY is required")
	}
	if cfg.AudioSampleRate <= 0 {
		return nil, fmt.Errorf("AUDIO_SAMPLE_RATE must be positive")
	}

	return &cfg, nil
}

// GetEnv returns the value of an environment variable or a default value
func GetEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
