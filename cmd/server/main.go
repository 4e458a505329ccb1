package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/skypro1111/summary-chat/internal/audio"
	"github.com/skypro1111/summary-chat/internal/chat"
	"github.com/skypro1111/summary-chat/internal/config"
	"github.com/skypro1111/summary-chat/internal/metrics"
	"github.com/skypro1111/summary-chat/internal/server"
	"github.com/skypro1111/summary-chat/internal/summarizer"
)

const (
	defaultConfigPath = "configs/config.yaml"
	defaultEnvPath    = ".env"
	serviceName       = "summary-chat"
	serviceVersion    = "1.0.0"
)

func main() {
	configPath := flag.String("config", defaultConfigPath, "Path to configuration file")
	envPath := flag.String("env", defaultEnvPath, "Path to .env file with secrets (optional)")
	flag.Parse()

	// Secrets from .env must be in the environment before the config overlay
	if err := config.LoadDotEnv(*envPath); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load env file: %v\n", err)
		os.Exit(1)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	logger := initLogger(cfg.Logging)

	logger.Info("Service starting",
		slog.String("service", serviceName),
		slog.String("version", serviceVersion),
		slog.String("config_path", *configPath),
	)

	// Configuration summary without secrets
	logger.Info("Configuration loaded",
		slog.Int("http_port", cfg.HTTP.Port),
		slog.String("http_address", cfg.HTTP.Address),
		slog.String("summarizer_provider", cfg.Summarizer.Provider),
		slog.String("summarizer_endpoint", cfg.Summarizer.Endpoint),
		slog.String("default_language", cfg.Summarizer.DefaultLanguage),
		slog.Int("max_audio_handles", cfg.Audio.MaxHandles),
		slog.Int("session_audio_limit", cfg.Audio.SessionAudioLimit),
		slog.Int("max_sessions", cfg.Chat.MaxSessions),
		slog.String("log_level", cfg.Logging.Level),
	)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	appMetrics := metrics.NewMetrics()
	logger.Info("Prometheus metrics initialized")

	store := audio.NewStore(audio.StoreConfig{
		MaxHandles:    cfg.Audio.MaxHandles,
		TTL:           cfg.Audio.GetHandleTTLDuration(),
		SweepInterval: cfg.Audio.GetSweepIntervalDuration(),
	}, logger.With(slog.String("component", "audio_store")), appMetrics)
	assembler := audio.NewAssembler(logger.With(slog.String("component", "assembler")), appMetrics)

	sum, err := newSummarizer(cfg, logger.With(slog.String("component", "summarizer")), appMetrics)
	if err != nil {
		logger.Error("Failed to create summarizer", slog.String("error", err.Error()))
		os.Exit(1)
	}
	logger.Info("Summarizer initialized", slog.String("provider", cfg.Summarizer.Provider))

	sessions := chat.NewManager(logger.With(slog.String("component", "chat")), chat.ManagerConfig{
		SessionTimeout:  cfg.Chat.GetSessionTimeoutDuration(),
		MaxSessions:     cfg.Chat.MaxSessions,
		AudioLimit:      cfg.Audio.SessionAudioLimit,
		DefaultLanguage: cfg.Summarizer.DefaultLanguage,
	}, sum, assembler, store, appMetrics)

	httpServer := server.NewHTTPServer(cfg, logger, sessions, sum, assembler, store, appMetrics)
	if err := httpServer.Start(); err != nil {
		logger.Error("Failed to start HTTP server", slog.String("error", err.Error()))
		os.Exit(1)
	}

	logger.Info("Service started successfully, waiting for signals...",
		slog.String("http_address", fmt.Sprintf("%s:%d", cfg.HTTP.Address, cfg.HTTP.Port)),
	)

	<-ctx.Done()
	logger.Info("Received shutdown signal, starting graceful shutdown...")

	// Stop accepting requests first, then end sessions and release audio
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.HTTP.GetShutdownTimeoutDuration())
	defer shutdownCancel()

	if err := httpServer.Stop(shutdownCtx); err != nil {
		logger.Error("Error stopping HTTP server", slog.String("error", err.Error()))
	}

	sessions.Stop()

	if err := sum.Close(); err != nil {
		logger.Error("Error closing summarizer", slog.String("error", err.Error()))
	}

	storeStats := store.Stats()
	store.Stop()

	logger.Info("Final audio statistics",
		slog.Uint64("handles_created", storeStats.Created),
		slog.Uint64("handles_released", storeStats.Released),
		slog.Uint64("handles_expired", storeStats.Expired),
		slog.Int("handles_live", storeStats.LiveHandles),
	)

	logger.Info("Service stopped")
}

// newSummarizer builds the client for the configured provider
func newSummarizer(cfg *config.Config, logger *slog.Logger, m *metrics.Metrics) (summarizer.Summarizer, error) {
	switch cfg.Summarizer.Provider {
	case config.ProviderOpenAI:
		client, err := summarizer.NewOpenAIClient(summarizer.OpenAIConfig{
			BaseURL:         cfg.OpenAI.BaseURL,
			APIKey:          cfg.OpenAI.APIKey,
			Model:           cfg.OpenAI.Model,
			MaxTokens:       cfg.OpenAI.MaxTokens,
			Temperature:     cfg.OpenAI.Temperature,
			Timeout:         cfg.Summarizer.GetTimeoutDuration(),
			MaxConcurrent:   cfg.Summarizer.MaxConcurrent,
			DefaultLanguage: cfg.Summarizer.DefaultLanguage,
		}, logger, m)
		if err != nil {
			return nil, err
		}
		return client, nil
	default:
		client, err := summarizer.NewAPIClient(summarizer.Config{
			Endpoint:        cfg.Summarizer.Endpoint,
			APIKey:          cfg.Summarizer.APIKey,
			Timeout:         cfg.Summarizer.GetTimeoutDuration(),
			MaxRetries:      cfg.Summarizer.MaxRetries,
			MaxConcurrent:   cfg.Summarizer.MaxConcurrent,
			DefaultLanguage: cfg.Summarizer.DefaultLanguage,
		}, logger, m)
		if err != nil {
			return nil, err
		}
		return client, nil
	}
}

// initLogger creates the structured logger described by the configuration
func initLogger(cfg config.LoggingConfig) *slog.Logger {
	var level slog.Level
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{
		Level:     level,
		AddSource: level == slog.LevelDebug,
	}

	var output *os.File
	switch cfg.Output {
	case "stderr":
		output = os.Stderr
	case "stdout", "":
		output = os.Stdout
	default:
		file, err := os.OpenFile(cfg.Output, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to open log file %s: %v, falling back to stdout\n", cfg.Output, err)
			output = os.Stdout
		} else {
			output = file
		}
	}

	if cfg.Format == "json" {
		return slog.New(slog.NewJSONHandler(output, opts))
	}
	return slog.New(slog.NewTextHandler(output, opts))
}
