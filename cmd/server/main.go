package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/sonoscribe/dictation-gateway/internal/config"
	"github.com/sonoscribe/dictation-gateway/internal/gateway"
	"github.com/sonoscribe/dictation-gateway/internal/observability"
	"github.com/sonoscribe/dictation-gateway/internal/recognizer"
	"github.com/sonoscribe/dictation-gateway/internal/recognizer/deepgram"
	"github.com/sonoscribe/dictation-gateway/internal/recognizer/google"
	"github.com/sonoscribe/dictation-gateway/internal/recognizer/mock"
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
		Str("recognizer_provider", cfg.RecognizerProvider).
		Str("log_level", cfg.LogLevel).
		Bool("metrics_enabled", cfg.MetricsEnabled).
		Msg("Dictation Gateway Service starting")

	// Build the recognition backend. A missing or unconfigured provider is
	// not fatal: the enhancement API still works, and streaming sessions
	// report a configuration error the client can act on.
	backend := buildBackend(cfg)

	handler := gateway.New(cfg, backend)

	mux := http.NewServeMux()
	mux.HandleFunc("/ws/dictation", handler.DictationWS())
	mux.HandleFunc("/api/enhance", handler.EnhanceTranscript())
	mux.HandleFunc("/health", observability.HealthCheckHandler())

	recognizerCheck := func(ctx context.Context) (bool, error) {
		if backend == nil {
			return false, recognizer.ErrNotConfigured
		}
		return true, nil
	}
	mux.HandleFunc("/ready", observability.ReadinessHandler(map[string]observability.HealthCheckFunc{
		"recognizer": recognizerCheck,
	}))

	// Metrics endpoint (Prometheus)
	if cfg.MetricsEnabled {
		mux.Handle("/metrics", promhttp.Handler())
		logger.Info().Msg("Prometheus metrics enabled at /metrics")
	}

	// Create HTTP server with timeouts
	server := &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.Port),
		Handler:      mux,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in a goroutine
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

	// Graceful shutdown with timeout
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logger.Fatal().Err(err).Msg("Server forced to shutdown")
	}

	logger.Info().Msg("Server exited gracefully")
}

// buildBackend selects the recognition provider from config. It returns nil
// when no provider is configured or its credentials are missing.
func buildBackend(cfg *config.Config) recognizer.Backend {
	logger := observability.GetLogger()

	switch cfg.RecognizerProvider {
	case config.ProviderGoogle:
		if cfg.GoogleCredentialsFile == "" {
			logger.Warn().Msg("google provider selected but GOOGLE_APPLICATION_CREDENTIALS is unset")
			return nil
		}
		backend, err := google.New(context.Background())
		if err != nil {
			logger.Warn().Err(err).Msg("failed to initialize google speech backend")
			return nil
		}
		return backend

	case config.ProviderDeepgram:
		backend, err := deepgram.New(cfg.DeepgramAPIKey)
		if err != nil {
			logger.Warn().Err(err).Msg("failed to initialize deepgram backend")
			return nil
		}
		return backend

	case config.ProviderMock:
		logger.Warn().Msg("using mock recognition backend; transcripts are scripted")
		return mock.New()

	default:
		logger.Warn().Msg("no recognition provider configured; streaming is disabled")
		return nil
	}
}
