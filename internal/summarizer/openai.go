package summarizer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/sashabaranov/go-openai"
)

const systemPrompt = "You are a helpful assistant that summarizes texts succinctly."

// OpenAIConfig contains configuration for the OpenAI-compatible summarizer
type OpenAIConfig struct {
	BaseURL         string // empty uses the public OpenAI endpoint
	APIKey          string
	Model           string
	MaxTokens       int
	Temperature     float32
	Timeout         time.Duration
	MaxConcurrent   int
	DefaultLanguage string
}

// OpenAIClient summarizes text with a chat completion model. It produces no
// speech and cannot fetch URLs or read binary documents.
type OpenAIClient struct {
	config    OpenAIConfig
	client    *openai.Client
	semaphore chan struct{}
	logger    *slog.Logger
	recorder  Recorder

	stats clientStats
}

// NewOpenAIClient creates an OpenAI-compatible summarizer. recorder may be nil.
func NewOpenAIClient(config OpenAIConfig, logger *slog.Logger, recorder Recorder) (*OpenAIClient, error) {
	if config.APIKey == "" {
		return nil, fmt.Errorf("API key cannot be empty")
	}

	if config.Model == "" {
		config.Model = openai.GPT4oMini
	}

	if config.Timeout <= 0 {
		config.Timeout = 90 * time.Second
	}

	if config.MaxConcurrent <= 0 {
		config.MaxConcurrent = 4
	}

	if _, err := ParseLanguage(config.DefaultLanguage); err != nil {
		return nil, fmt.Errorf("default language: %w", err)
	}

	if recorder == nil {
		recorder = noopRecorder{}
	}

	clientConfig := openai.DefaultConfig(config.APIKey)
	if config.BaseURL != "" {
		clientConfig.BaseURL = strings.TrimRight(config.BaseURL, "/")
	}
	clientConfig.HTTPClient = &http.Client{Timeout: config.Timeout}

	return &OpenAIClient{
		config:    config,
		client:    openai.NewClientWithConfig(clientConfig),
		semaphore: make(chan struct{}, config.MaxConcurrent),
		logger:    logger,
		recorder:  recorder,
	}, nil
}

// Summarize asks the model for a summary of the request text
func (c *OpenAIClient) Summarize(ctx context.Context, req *Request) (*Response, error) {
	text, err := c.inputText(req)
	if err != nil {
		return nil, err
	}

	code := req.Language
	if strings.TrimSpace(code) == "" {
		code = c.config.DefaultLanguage
	}
	lang, err := ParseLanguage(code)
	if err != nil {
		return nil, err
	}

	select {
	case c.semaphore <- struct{}{}:
		defer func() { <-c.semaphore }()
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	startTime := time.Now()
	c.stats.incrementTotalRequests()
	c.recorder.RecordSummarizerRequest()

	completion, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: c.config.Model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: systemPrompt + " Write the summary in " + lang.Name() + "."},
			{Role: openai.ChatMessageRoleUser, Content: text},
		},
		MaxTokens:   c.config.MaxTokens,
		Temperature: c.config.Temperature,
	})
	if err != nil {
		c.stats.incrementFailedRequests()
		c.recorder.RecordSummarizerFailure(time.Since(startTime).Seconds())

		var apiErr *openai.APIError
		if errors.As(err, &apiErr) {
			return nil, fmt.Errorf("chat completion failed: %w", &APIError{StatusCode: apiErr.HTTPStatusCode, Detail: apiErr.Message})
		}
		return nil, fmt.Errorf("chat completion failed: %w", err)
	}

	if len(completion.Choices) == 0 || strings.TrimSpace(completion.Choices[0].Message.Content) == "" {
		c.stats.incrementFailedRequests()
		c.recorder.RecordSummarizerFailure(time.Since(startTime).Seconds())
		return nil, ErrEmptySummary
	}

	elapsed := time.Since(startTime)
	c.stats.recordSuccess(elapsed)
	c.recorder.RecordSummarizerSuccess(elapsed.Seconds())

	c.logger.Info("Summary received",
		slog.String("provider", "openai"),
		slog.String("model", completion.Model),
		slog.Int("prompt_tokens", completion.Usage.PromptTokens),
		slog.Int("completion_tokens", completion.Usage.CompletionTokens),
		slog.Duration("elapsed", elapsed),
	)

	return &Response{
		Summary:  strings.TrimSpace(completion.Choices[0].Message.Content),
		Language: lang.Code(),
	}, nil
}

// inputText extracts summarizable text: direct text, or an uploaded plain
// text file
func (c *OpenAIClient) inputText(req *Request) (string, error) {
	switch req.Source() {
	case SourceText:
		return req.Text, nil
	case SourceURL:
		return "", fmt.Errorf("%w: URL input requires the api provider", ErrUnsupportedInput)
	case SourceFile:
		fileType, _ := NormalizeFileType(req.FileType)
		if fileType == "" {
			fileType = DetectFileType(req.File.Filename)
		}
		if fileType != FileTypeText {
			return "", fmt.Errorf("%w: %q files require the api provider", ErrUnsupportedInput, fileType)
		}
		return string(req.File.Data), nil
	default:
		return "", ErrNoContent
	}
}

// Stats returns current client statistics
func (c *OpenAIClient) Stats() ClientStats {
	return c.stats.snapshot("openai", len(c.semaphore))
}

// Close waits for in-flight requests to finish
func (c *OpenAIClient) Close() error {
	for i := 0; i < c.config.MaxConcurrent; i++ {
		c.semaphore <- struct{}{}
	}
	return nil
}
