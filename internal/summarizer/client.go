package summarizer

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"mime/multipart"
	"net"
	"net/http"
	"net/textproto"
	"strings"
	"time"

	"github.com/google/uuid"
)

const userAgent = "Summary-Chat/1.0"

// maxResponseBytes bounds a backend answer; speech for a long summary is
// several megabytes of base64.
const maxResponseBytes = 64 << 20

// Config contains summarization API client configuration
type Config struct {
	Endpoint        string // base URL; /summarize and /summarize-file are appended
	APIKey          string // optional bearer token
	Timeout         time.Duration
	MaxRetries      int
	MaxConcurrent   int
	RetryBackoff    time.Duration // first retry delay, doubled per attempt
	DefaultLanguage string
}

// APIClient sends summarization requests to the backend
type APIClient struct {
	config     Config
	httpClient *http.Client
	semaphore  chan struct{}
	logger     *slog.Logger
	recorder   Recorder

	stats clientStats
}

type summarizeRequest struct {
	Text               string `json:"text,omitempty"`
	URL                string `json:"url,omitempty"`
	FileType           string `json:"file_type,omitempty"`
	Language           string `json:"language"`
	TargetLanguageCode string `json:"target_language_code"`
	RequestID          string `json:"request_id"`
}

// NewAPIClient creates a new summarization API client. recorder may be nil.
func NewAPIClient(config Config, logger *slog.Logger, recorder Recorder) (*APIClient, error) {
	if config.Endpoint == "" {
		return nil, fmt.Errorf("endpoint cannot be empty")
	}
	config.Endpoint = strings.TrimRight(config.Endpoint, "/")

	if config.Timeout <= 0 {
		config.Timeout = 90 * time.Second
	}

	if config.MaxRetries < 0 {
		config.MaxRetries = 0
	}

	if config.MaxConcurrent <= 0 {
		config.MaxConcurrent = 4
	}

	if config.RetryBackoff <= 0 {
		config.RetryBackoff = time.Second
	}

	if _, err := ParseLanguage(config.DefaultLanguage); err != nil {
		return nil, fmt.Errorf("default language: %w", err)
	}

	if recorder == nil {
		recorder = noopRecorder{}
	}

	httpClient := &http.Client{
		Timeout: config.Timeout,
		Transport: &http.Transport{
			MaxIdleConns:        100,
			MaxIdleConnsPerHost: 10,
			IdleConnTimeout:     90 * time.Second,
		},
	}

	return &APIClient{
		config:     config,
		httpClient: httpClient,
		semaphore:  make(chan struct{}, config.MaxConcurrent),
		logger:     logger,
		recorder:   recorder,
	}, nil
}

// Summarize sends the request to the backend, retrying transient failures
func (c *APIClient) Summarize(ctx context.Context, req *Request) (*Response, error) {
	source := req.Source()
	if source == SourceNone {
		return nil, ErrNoContent
	}

	lang, err := c.resolveLanguage(req.Language)
	if err != nil {
		return nil, err
	}

	fileType, ok := NormalizeFileType(req.FileType)
	if !ok {
		return nil, fmt.Errorf("%w: file type %q", ErrUnsupportedInput, req.FileType)
	}
	if source == SourceFile && fileType == "" {
		fileType = DetectFileType(req.File.Filename)
	}

	select {
	case c.semaphore <- struct{}{}:
		defer func() { <-c.semaphore }()
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	requestID := uuid.NewString()
	startTime := time.Now()
	c.stats.incrementTotalRequests()
	c.recorder.RecordSummarizerRequest()

	c.logger.Debug("Sending summarization request",
		slog.String("request_id", requestID),
		slog.String("source", source.String()),
		slog.String("file_type", fileType),
		slog.String("language", lang.Code()),
	)

	var lastErr error
	attempts := 0

	for attempt := 0; attempt <= c.config.MaxRetries; attempt++ {
		if attempt > 0 {
			c.stats.incrementTotalRetries()
			c.recorder.RecordSummarizerRetry()

			backoffTime := time.Duration(math.Pow(2, float64(attempt-1))) * c.config.RetryBackoff
			if backoffTime > 30*time.Second {
				backoffTime = 30 * time.Second
			}

			c.logger.Warn("Retrying summarization request",
				slog.String("request_id", requestID),
				slog.Int("attempt", attempt),
				slog.Duration("backoff", backoffTime),
				slog.String("error", lastErr.Error()),
			)

			select {
			case <-time.After(backoffTime):
			case <-ctx.Done():
				c.fail(startTime)
				return nil, ctx.Err()
			}
		}

		attempts++
		var resp *Response
		if source == SourceFile {
			resp, err = c.doFileRequest(ctx, requestID, req.File, fileType, lang)
		} else {
			resp, err = c.doJSONRequest(ctx, requestID, req, source, fileType, lang)
		}
		if err == nil {
			elapsed := time.Since(startTime)
			c.stats.recordSuccess(elapsed)
			c.recorder.RecordSummarizerSuccess(elapsed.Seconds())
			if resp.Language == "" {
				resp.Language = lang.Code()
			}
			c.logger.Info("Summary received",
				slog.String("request_id", requestID),
				slog.Int("summary_length", len(resp.Summary)),
				slog.String("audio_payload", resp.Audio.Kind().String()),
				slog.Duration("elapsed", elapsed),
			)
			return resp, nil
		}

		lastErr = err

		if ctx.Err() != nil || !isRetryableError(err) {
			break
		}
	}

	c.fail(startTime)
	return nil, fmt.Errorf("summarization failed after %d attempts: %w", attempts, lastErr)
}

func (c *APIClient) fail(startTime time.Time) {
	c.stats.incrementFailedRequests()
	c.recorder.RecordSummarizerFailure(time.Since(startTime).Seconds())
}

func (c *APIClient) resolveLanguage(code string) (Language, error) {
	if strings.TrimSpace(code) == "" {
		code = c.config.DefaultLanguage
	}
	return ParseLanguage(code)
}

// doJSONRequest performs a single request for text or URL input
func (c *APIClient) doJSONRequest(ctx context.Context, requestID string, req *Request, source Source, fileType string, lang Language) (*Response, error) {
	payload := summarizeRequest{
		Language:           lang.Code(),
		TargetLanguageCode: lang.TargetCode(),
		RequestID:          requestID,
	}
	if source == SourceText {
		payload.Text = req.Text
	} else {
		payload.URL = strings.TrimSpace(req.URL)
		payload.FileType = fileType
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to encode request: %w", err)
	}

	return c.post(ctx, requestID, c.config.Endpoint+"/summarize", bytes.NewReader(body), "application/json")
}

// doFileRequest performs a single multipart request for an uploaded file
func (c *APIClient) doFileRequest(ctx context.Context, requestID string, file *Upload, fileType string, lang Language) (*Response, error) {
	body, contentType, err := createMultipartRequest(requestID, file, fileType, lang)
	if err != nil {
		return nil, fmt.Errorf("failed to create multipart request: %w", err)
	}

	return c.post(ctx, requestID, c.config.Endpoint+"/summarize-file", body, contentType)
}

func (c *APIClient) post(ctx context.Context, requestID, url string, body io.Reader, contentType string) (*Response, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, body)
	if err != nil {
		return nil, fmt.Errorf("failed to create HTTP request: %w", err)
	}

	httpReq.Header.Set("Content-Type", contentType)
	httpReq.Header.Set("Accept", "application/json")
	httpReq.Header.Set("User-Agent", userAgent)
	httpReq.Header.Set("X-Request-ID", requestID)
	if c.config.APIKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.config.APIKey)
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("HTTP request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &APIError{StatusCode: resp.StatusCode, Detail: parseErrorDetail(respBody)}
	}

	var out Response
	if err := json.Unmarshal(respBody, &out); err != nil {
		return nil, fmt.Errorf("failed to parse response JSON: %w", err)
	}

	if strings.TrimSpace(out.Summary) == "" {
		return nil, ErrEmptySummary
	}

	return &out, nil
}

// createMultipartRequest creates a multipart/form-data request body
func createMultipartRequest(requestID string, file *Upload, fileType string, lang Language) (io.Reader, string, error) {
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)

	filename := file.Filename
	if filename == "" {
		filename = "upload"
	}
	partContentType := file.ContentType
	if partContentType == "" {
		partContentType = "application/octet-stream"
	}

	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename=%q`, filename))
	header.Set("Content-Type", partContentType)

	fileWriter, err := writer.CreatePart(header)
	if err != nil {
		return nil, "", fmt.Errorf("failed to create form file: %w", err)
	}
	if _, err := fileWriter.Write(file.Data); err != nil {
		return nil, "", fmt.Errorf("failed to write file data: %w", err)
	}

	fields := [][2]string{
		{"file_type", fileType},
		{"language", lang.Code()},
		{"target_language_code", lang.TargetCode()},
		{"request_id", requestID},
	}
	for _, f := range fields {
		if f[1] == "" {
			continue
		}
		if err := writer.WriteField(f[0], f[1]); err != nil {
			return nil, "", fmt.Errorf("failed to write field %s: %w", f[0], err)
		}
	}

	if err := writer.Close(); err != nil {
		return nil, "", fmt.Errorf("failed to close multipart writer: %w", err)
	}

	return &buf, writer.FormDataContentType(), nil
}

// isRetryableError reports whether a failed attempt is worth repeating:
// 5xx and 429 answers, timeouts and connection failures
func isRetryableError(err error) bool {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Retryable()
	}

	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, io.ErrUnexpectedEOF) {
		return true
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}

	var opErr *net.OpError
	return errors.As(err, &opErr)
}

// Stats returns current client statistics
func (c *APIClient) Stats() ClientStats {
	return c.stats.snapshot("api", len(c.semaphore))
}

// Close waits for in-flight requests to finish
func (c *APIClient) Close() error {
	for i := 0; i < c.config.MaxConcurrent; i++ {
		c.semaphore <- struct{}{}
	}
	return nil
}
