package summarizer

import (
	"context"
	"strings"

	"github.com/skypro1111/summary-chat/internal/audio"
)

// Source is the input a request is summarized from
type Source int

const (
	SourceNone Source = iota
	SourceText
	SourceURL
	SourceFile
)

// String returns the source name
func (s Source) String() string {
	switch s {
	case SourceText:
		return "text"
	case SourceURL:
		return "url"
	case SourceFile:
		return "file"
	default:
		return "none"
	}
}

// Upload is a file submitted for summarization
type Upload struct {
	Filename    string
	ContentType string
	Data        []byte
}

// Request describes what to summarize. Text wins over URL, URL over File.
type Request struct {
	Text     string
	URL      string
	FileType string
	Language string
	File     *Upload
}

// Source returns the input that will be summarized
func (r *Request) Source() Source {
	switch {
	case strings.TrimSpace(r.Text) != "":
		return SourceText
	case strings.TrimSpace(r.URL) != "":
		return SourceURL
	case r.File != nil && len(r.File.Data) > 0:
		return SourceFile
	default:
		return SourceNone
	}
}

// Response is a generated summary with optional synthesized speech
type Response struct {
	Summary  string        `json:"summary"`
	Audio    audio.Payload `json:"audio"`
	Language string        `json:"language,omitempty"`
}

// Summarizer produces summaries
type Summarizer interface {
	Summarize(ctx context.Context, req *Request) (*Response, error)
	Stats() ClientStats
	Close() error
}

// Recorder receives request outcomes for metrics
type Recorder interface {
	RecordSummarizerRequest()
	RecordSummarizerSuccess(durationSeconds float64)
	RecordSummarizerFailure(durationSeconds float64)
	RecordSummarizerRetry()
}

type noopRecorder struct{}

func (noopRecorder) RecordSummarizerRequest()        {}
func (noopRecorder) RecordSummarizerSuccess(float64) {}
func (noopRecorder) RecordSummarizerFailure(float64) {}
func (noopRecorder) RecordSummarizerRetry()          {}
