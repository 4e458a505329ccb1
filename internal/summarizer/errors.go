package summarizer

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
)

var (
	// ErrNoContent is returned when a request carries no text, URL or file
	ErrNoContent = errors.New("no text, url or file to summarize")

	// ErrUnsupportedInput is returned when a provider cannot handle the input kind
	ErrUnsupportedInput = errors.New("input not supported by this summarizer")

	// ErrUnsupportedLanguage is returned for languages outside the supported set
	ErrUnsupportedLanguage = errors.New("unsupported language")

	// ErrEmptySummary is returned when the backend answers without a summary
	ErrEmptySummary = errors.New("summarizer returned an empty summary")
)

// APIError is a non-2xx answer from a summarization backend
type APIError struct {
	StatusCode int
	Detail     string
}

func (e *APIError) Error() string {
	if e.Detail == "" {
		return fmt.Sprintf("HTTP error %d", e.StatusCode)
	}
	return fmt.Sprintf("HTTP error %d: %s", e.StatusCode, e.Detail)
}

// Retryable reports whether the request may succeed when sent again
func (e *APIError) Retryable() bool {
	return e.StatusCode >= 500 || e.StatusCode == http.StatusTooManyRequests
}

// parseErrorDetail extracts the message of a FastAPI style error body.
// detail is either a string or a list of validation errors.
func parseErrorDetail(body []byte) string {
	var envelope struct {
		Detail json.RawMessage `json:"detail"`
		Error  string          `json:"error"`
	}
	if err := json.Unmarshal(body, &envelope); err != nil {
		return truncate(strings.TrimSpace(string(body)), 512)
	}

	if len(envelope.Detail) > 0 {
		var s string
		if err := json.Unmarshal(envelope.Detail, &s); err == nil {
			return s
		}

		var items []struct {
			Loc []any  `json:"loc"`
			Msg string `json:"msg"`
		}
		if err := json.Unmarshal(envelope.Detail, &items); err == nil {
			msgs := make([]string, 0, len(items))
			for _, item := range items {
				if item.Msg != "" {
					msgs = append(msgs, item.Msg)
				}
			}
			if len(msgs) > 0 {
				return strings.Join(msgs, "; ")
			}
		}
		return truncate(string(envelope.Detail), 512)
	}

	if envelope.Error != "" {
		return envelope.Error
	}
	return truncate(strings.TrimSpace(string(body)), 512)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
