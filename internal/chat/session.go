package chat

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/skypro1111/summary-chat/internal/audio"
	"github.com/skypro1111/summary-chat/internal/markup"
	"github.com/skypro1111/summary-chat/internal/summarizer"
)

var (
	// ErrBusy is returned when a submission is already in flight
	ErrBusy = errors.New("a summary is already being generated")

	// ErrSessionClosed is returned by operations on a closed session
	ErrSessionClosed = errors.New("session is closed")
)

// Audio error texts shown next to a message
const (
	AudioUnavailable = "audio unavailable"
	AudioExpired     = "expired"
)

// Session is one conversation
type Session struct {
	ID        string
	CreatedAt time.Time

	state        State
	upload       *summarizer.Upload
	handles      []string // audio handle ids, oldest first
	lastActivity time.Time
	closed       bool

	subscribers map[int]chan State
	nextSubID   int

	summarizer summarizer.Summarizer
	assembler  *audio.Assembler
	store      *audio.Store
	audioLimit int
	logger     *slog.Logger
	recorder   Recorder

	mu sync.RWMutex
}

func newSession(id, language string, m *Manager) *Session {
	now := time.Now()
	return &Session{
		ID:           id,
		CreatedAt:    now,
		state:        NewState(language),
		lastActivity: now,
		subscribers:  make(map[int]chan State),
		summarizer:   m.summarizer,
		assembler:    m.assembler,
		store:        m.store,
		audioLimit:   m.config.AudioLimit,
		logger:       m.logger.With(slog.String("session_id", id)),
		recorder:     m.recorder,
	}
}

// State returns a snapshot of the session state
func (s *Session) State() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.clone()
}

// LastActivity returns the time of the last state change or read by a client
func (s *Session) LastActivity() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastActivity
}

// Touch marks the session as active
func (s *Session) Touch() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastActivity = time.Now()
}

// Apply reduces a client event into the session state
func (s *Session) Apply(ev Event) (State, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return State{}, ErrSessionClosed
	}

	switch e := ev.(type) {
	case FileSelected:
		if e.File == nil {
			s.upload = nil
		}
	case LanguageChanged:
		if _, err := summarizer.ParseLanguage(e.Language); err != nil {
			return s.state.clone(), err
		}
	case FileTypeChanged:
		if _, ok := summarizer.NormalizeFileType(e.FileType); !ok {
			return s.state.clone(), fmt.Errorf("%w: file type %q", summarizer.ErrUnsupportedInput, e.FileType)
		}
	case Cleared:
		s.releaseAllLocked()
	}

	s.reduceLocked(ev)
	return s.state.clone(), nil
}

// SelectFile attaches an uploaded file to the next submission
func (s *Session) SelectFile(upload *summarizer.Upload) (State, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return State{}, ErrSessionClosed
	}

	s.upload = upload
	s.reduceLocked(FileSelected{File: &FileInfo{
		Name:        upload.Filename,
		Size:        int64(len(upload.Data)),
		ContentType: upload.ContentType,
	}})
	return s.state.clone(), nil
}

// Submit validates the current input, sends it to the summarizer and
// appends the outcome to the conversation. A validation failure is
// returned as an error and recorded in State.Error; a summarizer failure
// becomes a bot error message and is not returned.
func (s *Session) Submit(ctx context.Context) (State, error) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return State{}, ErrSessionClosed
	}
	if s.state.Loading {
		s.mu.Unlock()
		return s.State(), ErrBusy
	}
	if err := s.state.Validate(); err != nil {
		s.reduceLocked(SubmitRejected{Reason: DisplayMessage(err)})
		snapshot := s.state.clone()
		s.mu.Unlock()
		return snapshot, err
	}

	req := s.state.Request()
	if s.state.FileSource == FileSourceUpload && req.Text == "" {
		req.File = s.upload
	}
	s.upload = nil
	s.reduceLocked(SubmitStarted{MessageID: uuid.NewString(), Time: time.Now()})
	s.mu.Unlock()

	s.logger.Info("Submitting summary request",
		slog.String("source", req.Source().String()),
		slog.String("language", req.Language),
	)

	resp, err := s.summarizer.Summarize(ctx, &req)
	if err != nil {
		s.logger.Warn("Summary request failed", slog.String("error", err.Error()))

		s.mu.Lock()
		defer s.mu.Unlock()
		s.reduceLocked(RequestFailed{MessageID: uuid.NewString(), Message: userMessage(err), Time: time.Now()})
		return s.state.clone(), nil
	}

	received := s.buildSummary(resp)

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		// Closed while the request was in flight
		if received.AudioID != "" {
			s.store.Release(received.AudioID)
		}
		return s.state.clone(), ErrSessionClosed
	}

	s.reduceLocked(received)
	if received.AudioID != "" {
		s.handles = append(s.handles, received.AudioID)
		s.enforceAudioLimitLocked()
	}
	return s.state.clone(), nil
}

// buildSummary renders the summary and assembles its audio
func (s *Session) buildSummary(resp *summarizer.Response) SummaryReceived {
	start := time.Now()
	html := markup.Format(resp.Summary, true)
	s.recorder.RecordMarkupRender(time.Since(start).Seconds())

	out := SummaryReceived{
		MessageID: uuid.NewString(),
		Summary:   resp.Summary,
		HTML:      html,
		Language:  resp.Language,
		Time:      time.Now(),
	}

	if resp.Audio.IsEmpty() {
		return out
	}

	assembled, err := s.assembler.AssemblePayload(resp.Audio)
	if err != nil {
		s.logger.Warn("Summary audio unavailable", slog.String("error", err.Error()))
		out.AudioError = AudioUnavailable
		return out
	}

	handle, err := s.store.Put(assembled)
	if err != nil {
		s.logger.Warn("Could not register summary audio", slog.String("error", err.Error()))
		out.AudioError = AudioUnavailable
		return out
	}

	out.AudioID = handle.ID
	out.AudioURL = handle.URL
	return out
}

// enforceAudioLimitLocked releases the oldest handles above the limit
func (s *Session) enforceAudioLimitLocked() {
	for s.audioLimit > 0 && len(s.handles) > s.audioLimit {
		oldest := s.handles[0]
		s.handles = s.handles[1:]
		s.store.Release(oldest)
		s.reduceLocked(AudioReleased{AudioID: oldest, Reason: AudioExpired})

		s.logger.Debug("Released superseded audio", slog.String("audio_id", oldest))
	}
}

func (s *Session) releaseAllLocked() {
	for _, id := range s.handles {
		s.store.Release(id)
	}
	s.handles = nil
}

// AudioHandles returns the live audio handle ids, oldest first
func (s *Session) AudioHandles() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]string(nil), s.handles...)
}

// Subscribe returns a channel receiving the latest state after each change.
// Slow readers only see the most recent state.
func (s *Session) Subscribe() (<-chan State, func()) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ch := make(chan State, 1)
	if s.closed {
		close(ch)
		return ch, func() {}
	}

	id := s.nextSubID
	s.nextSubID++
	s.subscribers[id] = ch

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			s.mu.Lock()
			defer s.mu.Unlock()
			if sub, ok := s.subscribers[id]; ok {
				delete(s.subscribers, id)
				close(sub)
			}
		})
	}
}

// Close releases every audio handle and ends all subscriptions
func (s *Session) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return
	}
	s.closed = true
	s.releaseAllLocked()

	for id, ch := range s.subscribers {
		delete(s.subscribers, id)
		close(ch)
	}
}

func (s *Session) reduceLocked(ev Event) {
	s.state = Reduce(s.state, ev)
	s.lastActivity = time.Now()

	for _, ch := range s.subscribers {
		snapshot := s.state.clone()
		select {
		case ch <- snapshot:
		default:
			// Replace the unread state
			select {
			case <-ch:
			default:
			}
			ch <- snapshot
		}
	}
}

// userMessage turns a summarizer error into message text
func userMessage(err error) string {
	var apiErr *summarizer.APIError
	switch {
	case errors.As(err, &apiErr):
		detail := apiErr.Detail
		if detail == "" {
			detail = "Unknown error"
		}
		return fmt.Sprintf("Server error: %d - %s", apiErr.StatusCode, detail)
	case errors.Is(err, summarizer.ErrNoContent):
		return DisplayMessage(err)
	case errors.Is(err, summarizer.ErrUnsupportedInput), errors.Is(err, summarizer.ErrUnsupportedLanguage):
		return err.Error()
	case errors.Is(err, summarizer.ErrEmptySummary):
		return "The summarization service returned no summary."
	case errors.Is(err, context.Canceled):
		return "Request cancelled."
	default:
		return "No response from server. Check if the backend is running."
	}
}
