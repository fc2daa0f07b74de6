package config

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// Recognition provider names accepted in RECOGNIZER_PROVIDER. An empty value
// means no backend is configured: the server still starts and serves the
// enhancement API, but streaming sessions report a configuration error.
const (
	ProviderGoogle   = "google"
	ProviderDeepgram = "deepgram"
	ProviderMock     = "mock"
)

// Config holds all configuration for the dictation gateway service
type Config struct {
	// Server configuration
	Port string `envconfig:"PORT" default:"8080"`

	// Recognition backend selection
	RecognizerProvider string `envconfig:"RECOGNIZER_PROVIDER" default:""` // google, deepgram, mock, or empty

	// Deepgram configuration
	DeepgramAPIKey string `envconfig:"DEEPGRAM_API_KEY" default:""`

	// Google Cloud Speech configuration; the client library reads the
	// credentials file itself, this is only checked for presence
	GoogleCredentialsFile string `envconfig:"GOOGLE_APPLICATION_CREDENTIALS" default:""`

	// Streaming defaults applied when the client omits them
	DefaultLanguageCode string `envconfig:"DEFAULT_LANGUAGE_CODE" default:"en-US"`
	DefaultSampleRate   int    `envconfig:"DEFAULT_SAMPLE_RATE" default:"16000"` // Hz, LINEAR16 mono

	// Enhancement configuration
	EnhanceFinals bool `envconfig:"ENHANCE_FINALS" default:"false"` // run the pipeline on final transcripts server-side

	// Observability configuration
	LogLevel       string `envconfig:"LOG_LEVEL" default:"info"`       // Log level: debug, info, warn, error
	LogPretty      bool   `envconfig:"LOG_PRETTY" default:"false"`     // Pretty print logs (for development)
	MetricsEnabled bool   `envconfig:"METRICS_ENABLED" default:"true"` // Enable Prometheus metrics
}

// Load reads configuration from environment variables
// It first attempts to load from .env file if it exists, then from environment
func Load() (*Config, error) {
	// Try to load .env file (ignore error if it doesn't exist)
	_ = godotenv.Load()

	return LoadFromEnv()
}

// LoadFromEnv loads configuration directly from environment variables
// without attempting to load .env file (useful for containerized deployments)
func LoadFromEnv() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	switch cfg.RecognizerProvider {
	case "", ProviderGoogle, ProviderDeepgram, ProviderMock:
	default:
		return nil, fmt.Errorf("unknown RECOGNIZER_PROVIDER %q", cfg.RecognizerProvider)
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
