package chat

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReduceInputEvents(t *testing.T) {
	s := NewState("te")
	s.Error = "Please enter a URL"

	s = Reduce(s, InputChanged{Text: "hello"})
	assert.Equal(t, "hello", s.Input)
	assert.Empty(t, s.Error, "typing clears the validation error")

	s = Reduce(s, FileSourceChanged{Source: FileSourceURL})
	s = Reduce(s, FilePathChanged{Path: "https://example.com"})
	s = Reduce(s, FileTypeChanged{FileType: "article"})
	s = Reduce(s, LanguageChanged{Language: "hi"})

	assert.Equal(t, FileSourceURL, s.FileSource)
	assert.Equal(t, "https://example.com", s.FilePath)
	assert.Equal(t, "article", s.FileType)
	assert.Equal(t, "hi", s.Language)
}

func TestReduceFileSelection(t *testing.T) {
	s := NewState("te")

	s = Reduce(s, FileSelectorToggled{})
	assert.True(t, s.ShowFileSelector)

	s = Reduce(s, FileSelected{File: &FileInfo{Name: "report.pdf", Size: 10}})
	require.NotNil(t, s.SelectedFile)
	assert.Equal(t, "report.pdf", s.SelectedFile.Name)
	assert.Equal(t, FileSourceUpload, s.FileSource)
	assert.Equal(t, "pdf", s.FileType, "type detected from the name")
	assert.False(t, s.ShowFileSelector, "selecting a file closes the selector")

	// Picking another file detects its type again
	s = Reduce(s, FileSelected{File: &FileInfo{Name: "photo.png"}})
	assert.Equal(t, "image", s.FileType)
	assert.Equal(t, "image", s.Request().FileType)

	// An explicit type is kept across selections
	s = Reduce(s, FileTypeChanged{FileType: "pdf"})
	assert.True(t, s.FileTypeOverride)
	s = Reduce(s, FileSelected{File: &FileInfo{Name: "notes.txt"}})
	assert.Equal(t, "pdf", s.FileType)

	// Clearing the type goes back to detection
	s = Reduce(s, FileTypeChanged{FileType: ""})
	assert.False(t, s.FileTypeOverride)
	assert.Equal(t, "text", s.FileType)

	s = Reduce(s, FileSelected{})
	assert.Nil(t, s.SelectedFile)
}

func TestReduceDoesNotMutateInput(t *testing.T) {
	file := &FileInfo{Name: "a.txt"}
	s := NewState("te")
	s = Reduce(s, FileSelected{File: file})
	s = Reduce(s, InputChanged{Text: "x"})
	s = Reduce(s, SubmitStarted{MessageID: "m1", Time: time.Now()})

	before := s
	beforeLen := len(before.Messages)

	after := Reduce(before, SummaryReceived{MessageID: "m2", Summary: "sum"})
	assert.Len(t, before.Messages, beforeLen)
	assert.Len(t, after.Messages, beforeLen+1)

	selected := Reduce(NewState("te"), FileSelected{File: file})
	file.Name = "changed"
	assert.Equal(t, "a.txt", selected.SelectedFile.Name)
}

func TestReduceSubmitResetsFileTypeOverride(t *testing.T) {
	s := NewState("te")
	s = Reduce(s, FileTypeChanged{FileType: "article"})
	s = Reduce(s, FileSelected{File: &FileInfo{Name: "report.pdf"}})
	assert.Equal(t, "article", s.FileType)

	s = Reduce(s, SubmitStarted{MessageID: "u1"})
	assert.False(t, s.FileTypeOverride)
	assert.Empty(t, s.FileType)

	s = Reduce(s, FileSelected{File: &FileInfo{Name: "scan.jpg"}})
	assert.Equal(t, "image", s.FileType)
}

func TestReduceSubmitLifecycle(t *testing.T) {
	now := time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)
	s := NewState("te")
	s = Reduce(s, InputChanged{Text: "summarize this"})

	s = Reduce(s, SubmitStarted{MessageID: "u1", Time: now})
	assert.True(t, s.Loading)
	assert.Empty(t, s.Input)
	require.Len(t, s.Messages, 1)
	assert.Equal(t, Message{ID: "u1", Sender: SenderUser, Text: "summarize this", Timestamp: now}, s.Messages[0])

	s = Reduce(s, SummaryReceived{
		MessageID: "b1",
		Summary:   "**short**",
		HTML:      "<p><strong>short</strong></p>",
		AudioID:   "a1",
		AudioURL:  "/audio/a1",
		Language:  "te",
		Time:      now,
	})
	assert.False(t, s.Loading)
	require.Len(t, s.Messages, 2)
	bot := s.Messages[1]
	assert.Equal(t, SenderBot, bot.Sender)
	assert.Equal(t, "<p><strong>short</strong></p>", bot.HTML)
	assert.Equal(t, "/audio/a1", bot.AudioURL)

	s = Reduce(s, AudioReleased{AudioID: "a1", Reason: AudioExpired})
	bot = s.Messages[1]
	assert.Empty(t, bot.AudioURL)
	assert.Empty(t, bot.AudioID)
	assert.Equal(t, AudioExpired, bot.AudioError)
	assert.Equal(t, "**short**", bot.Text)
}

func TestReduceRequestFailed(t *testing.T) {
	s := Reduce(NewState("te"), InputChanged{Text: "x"})
	s = Reduce(s, SubmitStarted{MessageID: "u1"})
	s = Reduce(s, RequestFailed{MessageID: "b1", Message: "Server error: 500 - boom"})

	assert.False(t, s.Loading)
	last, ok := s.LastMessage()
	require.True(t, ok)
	assert.True(t, last.Error)
	assert.Equal(t, "Server error: 500 - boom", last.Text)
	assert.Empty(t, last.HTML, "error text is never rendered")
}

func TestReduceUserMessageText(t *testing.T) {
	s := NewState("te")
	s = Reduce(s, FileSourceChanged{Source: FileSourceURL})
	s = Reduce(s, FilePathChanged{Path: " https://example.com/a "})
	s = Reduce(s, SubmitStarted{MessageID: "u1"})
	assert.Equal(t, "https://example.com/a", s.Messages[0].Text)
	assert.Equal(t, FileSourceNone, s.FileSource)

	s = Reduce(s, FileSelected{File: &FileInfo{Name: "scan.png"}})
	s = Reduce(s, SubmitStarted{MessageID: "u2"})
	assert.Equal(t, "File: scan.png", s.Messages[1].Text)
	assert.Nil(t, s.SelectedFile)
}

func TestReduceCleared(t *testing.T) {
	s := Reduce(NewState("hi"), InputChanged{Text: "x"})
	s = Reduce(s, SubmitStarted{MessageID: "u1"})
	s = Reduce(s, Cleared{})

	assert.Empty(t, s.Messages)
	assert.NotNil(t, s.Messages)
	assert.Equal(t, "hi", s.Language)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		events []Event
		want   error
	}{
		{"nothing", nil, ErrNothingToSend},
		{"whitespace only", []Event{InputChanged{Text: "  \n"}}, ErrNothingToSend},
		{"text", []Event{InputChanged{Text: "x"}}, nil},
		{"upload without file", []Event{FileSourceChanged{Source: FileSourceUpload}}, ErrNoFileSelected},
		{"upload with file", []Event{FileSelected{File: &FileInfo{Name: "a.pdf"}}}, nil},
		{"url without path", []Event{FileSourceChanged{Source: FileSourceURL}}, ErrNoURL},
		{"url with path", []Event{FileSourceChanged{Source: FileSourceURL}, FilePathChanged{Path: "http://x"}}, nil},
		{"text wins over missing url", []Event{FileSourceChanged{Source: FileSourceURL}, InputChanged{Text: "x"}}, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := NewState("te")
			for _, ev := range tt.events {
				s = Reduce(s, ev)
			}
			assert.Equal(t, tt.want, s.Validate())
		})
	}

	assert.Equal(t, "Please select a file", DisplayMessage(ErrNoFileSelected))
	assert.Equal(t, "Please enter a URL", DisplayMessage(fmt.Errorf("submit: %w", ErrNoURL)))
	assert.Equal(t, "boom", DisplayMessage(errors.New("boom")))
}

func TestStateRequest(t *testing.T) {
	s := NewState("ta")
	s = Reduce(s, FileSourceChanged{Source: FileSourceURL})
	s = Reduce(s, FilePathChanged{Path: "https://example.com/doc.pdf"})
	s = Reduce(s, FileTypeChanged{FileType: "pdf"})

	req := s.Request()
	assert.Equal(t, "https://example.com/doc.pdf", req.URL)
	assert.Equal(t, "pdf", req.FileType)
	assert.Equal(t, "ta", req.Language)
	assert.Empty(t, req.Text)

	s = Reduce(s, InputChanged{Text: "direct"})
	req = s.Request()
	assert.Equal(t, "direct", req.Text)
	assert.Empty(t, req.URL)
}

func TestEventName(t *testing.T) {
	assert.Equal(t, "input_changed", EventName(InputChanged{}))
	assert.Equal(t, "audio_released", EventName(AudioReleased{}))
}
