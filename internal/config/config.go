package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Environment variables that override secrets from the config file
const (
	EnvSummarizerAPIKey   = "SUMMARIZER_API_KEY"
	EnvSummarizerEndpoint = "SUMMARIZER_ENDPOINT"
	EnvOpenAIAPIKey       = "OPENAI_API_KEY"
	EnvOpenAIBaseURL      = "OPENAI_BASE_URL"
)

// Summarizer providers
const (
	ProviderAPI    = "api"
	ProviderOpenAI = "openai"
)

// Config represents the complete service configuration
type Config struct {
	HTTP       HTTPConfig       `yaml:"http"`
	Summarizer SummarizerConfig `yaml:"summarizer"`
	OpenAI     OpenAIConfig     `yaml:"openai"`
	Audio      AudioConfig      `yaml:"audio"`
	Chat       ChatConfig       `yaml:"chat"`
	Logging    LoggingConfig    `yaml:"logging"`
}

// HTTPConfig contains HTTP API server configuration
type HTTPConfig struct {
	Port            int      `yaml:"port"`
	Address         string   `yaml:"address"`
	ReadTimeout     int      `yaml:"read_timeout"`     // seconds
	WriteTimeout    int      `yaml:"write_timeout"`    // seconds
	ShutdownTimeout int      `yaml:"shutdown_timeout"` // seconds
	AllowedOrigins  []string `yaml:"allowed_origins"`  // websocket origins, empty allows same host only
}

// SummarizerConfig contains summarization backend configuration
type SummarizerConfig struct {
	Provider        string `yaml:"provider"` // api or openai
	Endpoint        string `yaml:"endpoint"`
	APIKey          string `yaml:"api_key"`
	Timeout         int    `yaml:"timeout"` // seconds
	MaxRetries      int    `yaml:"max_retries"`
	MaxConcurrent   int    `yaml:"max_concurrent"`
	DefaultLanguage string `yaml:"default_language"`
}

// OpenAIConfig contains configuration for the OpenAI-compatible provider
type OpenAIConfig struct {
	BaseURL     string  `yaml:"base_url"`
	APIKey      string  `yaml:"api_key"`
	Model       string  `yaml:"model"`
	MaxTokens   int     `yaml:"max_tokens"`
	Temperature float32 `yaml:"temperature"`
}

// AudioConfig contains audio handle store parameters
type AudioConfig struct {
	MaxHandles        int `yaml:"max_handles"`
	HandleTTL         int `yaml:"handle_ttl"`     // seconds
	SweepInterval     int `yaml:"sweep_interval"` // seconds
	SessionAudioLimit int `yaml:"session_audio_limit"`
}

// ChatConfig contains chat session parameters
type ChatConfig struct {
	SessionTimeout int `yaml:"session_timeout"` // seconds
	MaxSessions    int `yaml:"max_sessions"`
	MaxUploadMB    int `yaml:"max_upload_mb"`
}

// LoggingConfig contains logging configuration
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// Default returns a configuration with every field set to its default
func Default() *Config {
	c := &Config{}
	c.ApplyDefaults()
	return c
}

// Load reads and parses the configuration file, applies defaults and the
// environment overlay, then validates the result
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}

	config.ApplyDefaults()
	config.ApplyEnv()

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &config, nil
}

// LoadDotEnv loads variables from a .env file into the process environment.
// A missing file is not an error; variables already set are kept.
func LoadDotEnv(path string) error {
	if path == "" {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("failed to load env file %s: %w", path, err)
	}
	return nil
}

// ApplyEnv overrides secrets and endpoints from the environment
func (c *Config) ApplyEnv() {
	if v := os.Getenv(EnvSummarizerAPIKey); v != "" {
		c.Summarizer.APIKey = v
	}
	if v := os.Getenv(EnvSummarizerEndpoint); v != "" {
		c.Summarizer.Endpoint = v
	}
	if v := os.Getenv(EnvOpenAIAPIKey); v != "" {
		c.OpenAI.APIKey = v
	}
	if v := os.Getenv(EnvOpenAIBaseURL); v != "" {
		c.OpenAI.BaseURL = v
	}
}

// ApplyDefaults fills zero values with defaults
func (c *Config) ApplyDefaults() {
	if c.HTTP.Port == 0 {
		c.HTTP.Port = 8080
	}
	if c.HTTP.Address == "" {
		c.HTTP.Address = "0.0.0.0"
	}
	if c.HTTP.ReadTimeout == 0 {
		c.HTTP.ReadTimeout = 30
	}
	if c.HTTP.WriteTimeout == 0 {
		c.HTTP.WriteTimeout = 120
	}
	if c.HTTP.ShutdownTimeout == 0 {
		c.HTTP.ShutdownTimeout = 10
	}

	if c.Summarizer.Provider == "" {
		c.Summarizer.Provider = ProviderAPI
	}
	if c.Summarizer.Timeout == 0 {
		c.Summarizer.Timeout = 90
	}
	if c.Summarizer.MaxConcurrent == 0 {
		c.Summarizer.MaxConcurrent = 4
	}
	if c.Summarizer.DefaultLanguage == "" {
		c.Summarizer.DefaultLanguage = "te"
	}

	if c.OpenAI.Model == "" {
		c.OpenAI.Model = "gpt-4o-mini"
	}
	if c.OpenAI.MaxTokens == 0 {
		c.OpenAI.MaxTokens = 1024
	}

	if c.Audio.MaxHandles == 0 {
		c.Audio.MaxHandles = 1000
	}
	if c.Audio.HandleTTL == 0 {
		c.Audio.HandleTTL = 3600
	}
	if c.Audio.SweepInterval == 0 {
		c.Audio.SweepInterval = 60
	}
	if c.Audio.SessionAudioLimit == 0 {
		c.Audio.SessionAudioLimit = 10
	}

	if c.Chat.SessionTimeout == 0 {
		c.Chat.SessionTimeout = 1800
	}
	if c.Chat.MaxSessions == 0 {
		c.Chat.MaxSessions = 500
	}
	if c.Chat.MaxUploadMB == 0 {
		c.Chat.MaxUploadMB = 20
	}

	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Logging.Format == "" {
		c.Logging.Format = "json"
	}
	if c.Logging.Output == "" {
		c.Logging.Output = "stdout"
	}
}

// Validate performs comprehensive validation of the configuration
func (c *Config) Validate() error {
	if err := c.HTTP.Validate(); err != nil {
		return fmt.Errorf("http config: %w", err)
	}

	if err := c.Summarizer.Validate(); err != nil {
		return fmt.Errorf("summarizer config: %w", err)
	}

	if c.Summarizer.Provider == ProviderOpenAI {
		if err := c.OpenAI.Validate(); err != nil {
			return fmt.Errorf("openai config: %w", err)
		}
	}

	if err := c.Audio.Validate(); err != nil {
		return fmt.Errorf("audio config: %w", err)
	}

	if err := c.Chat.Validate(); err != nil {
		return fmt.Errorf("chat config: %w", err)
	}

	if err := c.Logging.Validate(); err != nil {
		return fmt.Errorf("logging config: %w", err)
	}

	return nil
}

// Validate validates HTTP configuration
func (h *HTTPConfig) Validate() error {
	if h.Port < 1 || h.Port > 65535 {
		return fmt.Errorf("port must be between 1 and 65535, got %d", h.Port)
	}

	if h.Address == "" {
		return fmt.Errorf("address cannot be empty")
	}

	if h.ReadTimeout < 1 || h.WriteTimeout < 1 {
		return fmt.Errorf("read_timeout and write_timeout must be at least 1 second")
	}

	if h.ShutdownTimeout < 1 {
		return fmt.Errorf("shutdown_timeout must be at least 1 second, got %d", h.ShutdownTimeout)
	}

	return nil
}

// Validate validates summarizer configuration
func (s *SummarizerConfig) Validate() error {
	switch s.Provider {
	case ProviderAPI:
		if s.Endpoint == "" {
			return fmt.Errorf("endpoint cannot be empty for provider %q", ProviderAPI)
		}
	case ProviderOpenAI:
	default:
		return fmt.Errorf("provider must be 'api' or 'openai', got '%s'", s.Provider)
	}

	if s.Timeout < 1 {
		return fmt.Errorf("timeout must be at least 1 second, got %d", s.Timeout)
	}

	if s.MaxRetries < 0 {
		return fmt.Errorf("max_retries cannot be negative, got %d", s.MaxRetries)
	}

	if s.MaxConcurrent < 1 {
		return fmt.Errorf("max_concurrent must be at least 1, got %d", s.MaxConcurrent)
	}

	if s.DefaultLanguage == "" {
		return fmt.Errorf("default_language cannot be empty")
	}

	return nil
}

// Validate validates OpenAI configuration
func (o *OpenAIConfig) Validate() error {
	if o.APIKey == "" {
		return fmt.Errorf("api_key cannot be empty (set %s)", EnvOpenAIAPIKey)
	}

	if o.Model == "" {
		return fmt.Errorf("model cannot be empty")
	}

	if o.MaxTokens < 1 {
		return fmt.Errorf("max_tokens must be at least 1, got %d", o.MaxTokens)
	}

	if o.Temperature < 0 || o.Temperature > 2 {
		return fmt.Errorf("temperature must be between 0 and 2, got %f", o.Temperature)
	}

	return nil
}

// Validate validates audio configuration
func (a *AudioConfig) Validate() error {
	if a.MaxHandles < 1 {
		return fmt.Errorf("max_handles must be at least 1, got %d", a.MaxHandles)
	}

	if a.HandleTTL < 1 {
		return fmt.Errorf("handle_ttl must be at least 1 second, got %d", a.HandleTTL)
	}

	if a.SweepInterval < 1 || a.SweepInterval > a.HandleTTL {
		return fmt.Errorf("sweep_interval must be between 1 and handle_ttl (%d), got %d", a.HandleTTL, a.SweepInterval)
	}

	if a.SessionAudioLimit < 1 {
		return fmt.Errorf("session_audio_limit must be at least 1, got %d", a.SessionAudioLimit)
	}

	return nil
}

// Validate validates chat configuration
func (c *ChatConfig) Validate() error {
	if c.SessionTimeout < 1 {
		return fmt.Errorf("session_timeout must be at least 1 second, got %d", c.SessionTimeout)
	}

	if c.MaxSessions < 1 {
		return fmt.Errorf("max_sessions must be at least 1, got %d", c.MaxSessions)
	}

	if c.MaxUploadMB < 1 || c.MaxUploadMB > 100 {
		return fmt.Errorf("max_upload_mb must be between 1 and 100, got %d", c.MaxUploadMB)
	}

	return nil
}

// Validate validates logging configuration
func (l *LoggingConfig) Validate() error {
	validLevels := map[string]bool{
		"debug": true, "info": true, "warn": true, "error": true,
	}
	if !validLevels[l.Level] {
		return fmt.Errorf("level must be one of [debug, info, warn, error], got '%s'", l.Level)
	}

	validFormats := map[string]bool{"json": true, "text": true}
	if !validFormats[l.Format] {
		return fmt.Errorf("format must be 'json' or 'text', got '%s'", l.Format)
	}

	// Output is stdout, stderr or a file path
	if l.Output == "" {
		return fmt.Errorf("output cannot be empty")
	}

	return nil
}

// GetReadTimeoutDuration returns the HTTP read timeout as a time.Duration
func (h *HTTPConfig) GetReadTimeoutDuration() time.Duration {
	return time.Duration(h.ReadTimeout) * time.Second
}

// GetWriteTimeoutDuration returns the HTTP write timeout as a time.Duration
func (h *HTTPConfig) GetWriteTimeoutDuration() time.Duration {
	return time.Duration(h.WriteTimeout) * time.Second
}

// GetShutdownTimeoutDuration returns the graceful shutdown timeout as a time.Duration
func (h *HTTPConfig) GetShutdownTimeoutDuration() time.Duration {
	return time.Duration(h.ShutdownTimeout) * time.Second
}

// GetTimeoutDuration returns the summarizer timeout as a time.Duration
func (s *SummarizerConfig) GetTimeoutDuration() time.Duration {
	return time.Duration(s.Timeout) * time.Second
}

// GetHandleTTLDuration returns the audio handle TTL as a time.Duration
func (a *AudioConfig) GetHandleTTLDuration() time.Duration {
	return time.Duration(a.HandleTTL) * time.Second
}

// GetSweepIntervalDuration returns the audio sweep interval as a time.Duration
func (a *AudioConfig) GetSweepIntervalDuration() time.Duration {
	return time.Duration(a.SweepInterval) * time.Second
}

// GetSessionTimeoutDuration returns the chat session idle timeout as a time.Duration
func (c *ChatConfig) GetSessionTimeoutDuration() time.Duration {
	return time.Duration(c.SessionTimeout) * time.Second
}

// GetMaxUploadBytes returns the upload limit in bytes
func (c *ChatConfig) GetMaxUploadBytes() int64 {
	return int64(c.MaxUploadMB) << 20
}
