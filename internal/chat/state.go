package chat

import (
	"errors"
	"strings"
	"time"

	"github.com/skypro1111/summary-chat/internal/summarizer"
)

// Sender identifies who wrote a message
type Sender string

const (
	SenderUser Sender = "user"
	SenderBot  Sender = "bot"
)

// FileSource is where a file to summarize comes from
type FileSource string

const (
	FileSourceNone   FileSource = ""
	FileSourceUpload FileSource = "upload"
	FileSourceURL    FileSource = "url"
)

// Submission validation errors
var (
	ErrNothingToSend  = errors.New("nothing to send")
	ErrNoFileSelected = errors.New("no file selected")
	ErrNoURL          = errors.New("no url entered")
)

var displayText = map[error]string{
	ErrNothingToSend:        "Please provide text, a URL or a file.",
	ErrNoFileSelected:       "Please select a file",
	ErrNoURL:                "Please enter a URL",
	summarizer.ErrNoContent: "Please provide either direct text or a URL.",
}

// DisplayMessage returns the text shown to the user for err
func DisplayMessage(err error) string {
	for target, text := range displayText {
		if errors.Is(err, target) {
			return text
		}
	}
	return err.Error()
}

// Message is one entry of the conversation. HTML is set only on bot
// summaries; user text and error text are never rendered as markup.
type Message struct {
	ID         string    `json:"id"`
	Sender     Sender    `json:"sender"`
	Text       string    `json:"text"`
	HTML       string    `json:"html,omitempty"`
	Error      bool      `json:"error,omitempty"`
	AudioID    string    `json:"audio_id,omitempty"`
	AudioURL   string    `json:"audio_url,omitempty"`
	AudioError string    `json:"audio_error,omitempty"`
	Language   string    `json:"language,omitempty"`
	Timestamp  time.Time `json:"timestamp"`
}

// FileInfo describes a selected file without its contents
type FileInfo struct {
	Name        string `json:"name"`
	Size        int64  `json:"size"`
	ContentType string `json:"content_type,omitempty"`
}

// State is the complete chat state
type State struct {
	Messages         []Message  `json:"messages"`
	Input            string     `json:"input"`
	FileSource       FileSource `json:"file_source"`
	FilePath         string     `json:"file_path"`
	SelectedFile     *FileInfo  `json:"selected_file,omitempty"`
	FileType         string     `json:"file_type"`
	FileTypeOverride bool       `json:"file_type_override"`
	Language         string     `json:"language"`
	ShowFileSelector bool       `json:"show_file_selector"`
	Loading          bool       `json:"loading"`
	Error            string     `json:"error,omitempty"`
}

// NewState returns the initial state for a language
func NewState(language string) State {
	return State{Messages: []Message{}, Language: language}
}

// Event is a state transition
type Event interface {
	eventName() string
}

type (
	// InputChanged replaces the text input
	InputChanged struct{ Text string }

	// FilePathChanged replaces the URL input
	FilePathChanged struct{ Path string }

	// FileSourceChanged switches between upload and URL input
	FileSourceChanged struct{ Source FileSource }

	// FileSelected sets or, with a nil File, clears the selected file
	FileSelected struct{ File *FileInfo }

	// FileTypeChanged overrides the detected file type. An empty type goes
	// back to detecting it from the file name.
	FileTypeChanged struct{ FileType string }

	// LanguageChanged selects the summary language
	LanguageChanged struct{ Language string }

	// FileSelectorToggled opens or closes the file selector
	FileSelectorToggled struct{}

	// SubmitRejected records a submission that failed validation
	SubmitRejected struct{ Reason string }

	// SubmitStarted records the user message and clears the inputs
	SubmitStarted struct {
		MessageID string
		Time      time.Time
	}

	// SummaryReceived appends the bot summary
	SummaryReceived struct {
		MessageID  string
		Summary    string
		HTML       string
		AudioID    string
		AudioURL   string
		AudioError string
		Language   string
		Time       time.Time
	}

	// RequestFailed appends a bot error message
	RequestFailed struct {
		MessageID string
		Message   string
		Time      time.Time
	}

	// AudioReleased detaches a released audio handle from its message
	AudioReleased struct {
		AudioID string
		Reason  string
	}

	// Cleared empties the conversation
	Cleared struct{}
)

func (InputChanged) eventName() string        { return "input_changed" }
func (FilePathChanged) eventName() string     { return "file_path_changed" }
func (FileSourceChanged) eventName() string   { return "file_source_changed" }
func (FileSelected) eventName() string        { return "file_selected" }
func (FileTypeChanged) eventName() string     { return "file_type_changed" }
func (LanguageChanged) eventName() string     { return "language_changed" }
func (FileSelectorToggled) eventName() string { return "file_selector_toggled" }
func (SubmitRejected) eventName() string      { return "submit_rejected" }
func (SubmitStarted) eventName() string       { return "submit_started" }
func (SummaryReceived) eventName() string     { return "summary_received" }
func (RequestFailed) eventName() string       { return "request_failed" }
func (AudioReleased) eventName() string       { return "audio_released" }
func (Cleared) eventName() string             { return "cleared" }

// EventName returns the wire name of an event
func EventName(ev Event) string {
	return ev.eventName()
}

// Reduce returns the state that follows s after ev. It never mutates s.
func Reduce(s State, ev Event) State {
	next := s.clone()

	switch e := ev.(type) {
	case InputChanged:
		next.Input = e.Text
		next.Error = ""

	case FilePathChanged:
		next.FilePath = e.Path
		next.Error = ""

	case FileSourceChanged:
		next.FileSource = e.Source
		next.Error = ""

	case FileSelected:
		if e.File == nil {
			next.SelectedFile = nil
			break
		}
		f := *e.File
		next.SelectedFile = &f
		next.FileSource = FileSourceUpload
		next.ShowFileSelector = false
		if !next.FileTypeOverride {
			next.FileType = summarizer.DetectFileType(f.Name)
		}
		next.Error = ""

	case FileTypeChanged:
		next.FileType = e.FileType
		next.FileTypeOverride = e.FileType != ""
		if !next.FileTypeOverride && next.SelectedFile != nil {
			next.FileType = summarizer.DetectFileType(next.SelectedFile.Name)
		}

	case LanguageChanged:
		next.Language = e.Language

	case FileSelectorToggled:
		next.ShowFileSelector = !next.ShowFileSelector

	case SubmitRejected:
		next.Error = e.Reason

	case SubmitStarted:
		next.Messages = append(next.Messages, Message{
			ID:        e.MessageID,
			Sender:    SenderUser,
			Text:      s.describeInput(),
			Timestamp: e.Time,
		})
		next.Input = ""
		next.FilePath = ""
		next.SelectedFile = nil
		next.FileSource = FileSourceNone
		next.FileType = ""
		next.FileTypeOverride = false
		next.ShowFileSelector = false
		next.Loading = true
		next.Error = ""

	case SummaryReceived:
		next.Messages = append(next.Messages, Message{
			ID:         e.MessageID,
			Sender:     SenderBot,
			Text:       e.Summary,
			HTML:       e.HTML,
			AudioID:    e.AudioID,
			AudioURL:   e.AudioURL,
			AudioError: e.AudioError,
			Language:   e.Language,
			Timestamp:  e.Time,
		})
		next.Loading = false

	case RequestFailed:
		next.Messages = append(next.Messages, Message{
			ID:        e.MessageID,
			Sender:    SenderBot,
			Text:      e.Message,
			Error:     true,
			Timestamp: e.Time,
		})
		next.Loading = false

	case AudioReleased:
		for i := range next.Messages {
			if next.Messages[i].AudioID == e.AudioID && e.AudioID != "" {
				next.Messages[i].AudioID = ""
				next.Messages[i].AudioURL = ""
				next.Messages[i].AudioError = e.Reason
			}
		}

	case Cleared:
		next.Messages = []Message{}
		next.Error = ""
	}

	return next
}

// Validate checks that the state holds something to submit
func (s State) Validate() error {
	if strings.TrimSpace(s.Input) != "" {
		return nil
	}

	switch s.FileSource {
	case FileSourceUpload:
		if s.SelectedFile == nil {
			return ErrNoFileSelected
		}
		return nil
	case FileSourceURL:
		if strings.TrimSpace(s.FilePath) == "" {
			return ErrNoURL
		}
		return nil
	default:
		return ErrNothingToSend
	}
}

// Request builds the summarization request for the current input. Text
// takes priority over a URL, a URL over a file. File contents are not part
// of the state and are attached by the caller.
func (s State) Request() summarizer.Request {
	req := summarizer.Request{Language: s.Language}
	switch {
	case strings.TrimSpace(s.Input) != "":
		req.Text = s.Input
	case s.FileSource == FileSourceURL:
		req.URL = strings.TrimSpace(s.FilePath)
		req.FileType = s.FileType
	case s.FileSource == FileSourceUpload:
		req.FileType = s.FileType
	}
	return req
}

// LastMessage returns the most recent message
func (s State) LastMessage() (Message, bool) {
	if len(s.Messages) == 0 {
		return Message{}, false
	}
	return s.Messages[len(s.Messages)-1], true
}

// describeInput is the user message text for a submission
func (s State) describeInput() string {
	switch {
	case strings.TrimSpace(s.Input) != "":
		return s.Input
	case s.FileSource == FileSourceURL:
		return strings.TrimSpace(s.FilePath)
	case s.SelectedFile != nil:
		return "File: " + s.SelectedFile.Name
	default:
		return ""
	}
}

// clone copies s so the copy can be changed without touching s
func (s State) clone() State {
	next := s
	next.Messages = make([]Message, len(s.Messages), len(s.Messages)+1)
	copy(next.Messages, s.Messages)
	if s.SelectedFile != nil {
		f := *s.SelectedFile
		next.SelectedFile = &f
	}
	return next
}
