package chat

import (
	"context"
	"encoding/base64"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/skypro1111/summary-chat/internal/audio"
	"github.com/skypro1111/summary-chat/internal/summarizer"
)

type fakeSummarizer struct {
	mu       sync.Mutex
	requests []summarizer.Request
	resp     *summarizer.Response
	err      error
	block    chan struct{}
}

func (f *fakeSummarizer) Summarize(ctx context.Context, req *summarizer.Request) (*summarizer.Response, error) {
	f.mu.Lock()
	f.requests = append(f.requests, *req)
	resp, err, block := f.resp, f.err, f.block
	f.mu.Unlock()

	if block != nil {
		select {
		case <-block:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if err != nil {
		return nil, err
	}
	out := *resp
	return &out, nil
}

func (f *fakeSummarizer) Stats() summarizer.ClientStats { return summarizer.ClientStats{Provider: "fake"} }
func (f *fakeSummarizer) Close() error                  { return nil }

func (f *fakeSummarizer) lastRequest() summarizer.Request {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.requests[len(f.requests)-1]
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func wavChunk(t *testing.T) string {
	t.Helper()
	data, err := audio.EncodeWAV(make([]int16, 80), 8000, 1)
	require.NoError(t, err)
	return base64.StdEncoding.EncodeToString(data)
}

type testEnv struct {
	sum     *fakeSummarizer
	store   *audio.Store
	manager *Manager
}

func newTestEnv(t *testing.T, audioLimit int) *testEnv {
	t.Helper()
	logger := testLogger()
	sum := &fakeSummarizer{resp: &summarizer.Response{Summary: "# Title\n**bold**", Language: "te"}}
	store := audio.NewStore(audio.StoreConfig{}, logger, nil)
	mgr := NewManager(logger, ManagerConfig{
		SessionTimeout: time.Minute,
		SweepInterval:  time.Hour,
		AudioLimit:     audioLimit,
	}, sum, audio.NewAssembler(logger, nil), store, nil)

	t.Cleanup(func() {
		mgr.Stop()
		store.Stop()
	})
	return &testEnv{sum: sum, store: store, manager: mgr}
}

func (e *testEnv) session(t *testing.T) *Session {
	t.Helper()
	s, err := e.manager.CreateSession()
	require.NoError(t, err)
	return s
}

func TestSessionSubmitText(t *testing.T) {
	env := newTestEnv(t, 5)
	env.sum.resp.Audio = audio.MultiChunk([]string{wavChunk(t), wavChunk(t)})
	s := env.session(t)

	_, err := s.Apply(InputChanged{Text: "a long article"})
	require.NoError(t, err)

	state, err := s.Submit(context.Background())
	require.NoError(t, err)

	assert.Equal(t, "a long article", env.sum.lastRequest().Text)
	assert.Equal(t, "te", env.sum.lastRequest().Language)

	require.Len(t, state.Messages, 2)
	user, bot := state.Messages[0], state.Messages[1]
	assert.Equal(t, SenderUser, user.Sender)
	assert.Empty(t, user.HTML)

	assert.Equal(t, SenderBot, bot.Sender)
	assert.Equal(t, "<h1>Title</h1><p><strong>bold</strong></p>", bot.HTML)
	assert.Equal(t, "# Title\n**bold**", bot.Text)
	require.NotEmpty(t, bot.AudioID)
	assert.Equal(t, "/audio/"+bot.AudioID, bot.AudioURL)
	assert.False(t, state.Loading)

	assembled, ok := env.store.Get(bot.AudioID)
	require.True(t, ok)
	assert.Equal(t, 2, assembled.Decoded)
	assert.Equal(t, []string{bot.AudioID}, s.AudioHandles())
}

func TestSessionSubmitValidation(t *testing.T) {
	env := newTestEnv(t, 5)
	s := env.session(t)

	state, err := s.Submit(context.Background())
	assert.ErrorIs(t, err, ErrNothingToSend)
	assert.Equal(t, "Please provide text, a URL or a file.", state.Error)
	assert.Empty(t, state.Messages)

	_, err = s.Apply(FileSourceChanged{Source: FileSourceURL})
	require.NoError(t, err)
	state, err = s.Submit(context.Background())
	assert.ErrorIs(t, err, ErrNoURL)
	assert.Equal(t, "Please enter a URL", state.Error)

	_, err = s.Apply(FileSourceChanged{Source: FileSourceUpload})
	require.NoError(t, err)
	_, err = s.Submit(context.Background())
	assert.ErrorIs(t, err, ErrNoFileSelected)

	env.sum.mu.Lock()
	assert.Empty(t, env.sum.requests)
	env.sum.mu.Unlock()
}

func TestSessionSubmitFile(t *testing.T) {
	env := newTestEnv(t, 5)
	s := env.session(t)

	upload := &summarizer.Upload{Filename: "scan.jpg", ContentType: "image/jpeg", Data: []byte{1, 2, 3}}
	state, err := s.SelectFile(upload)
	require.NoError(t, err)
	assert.Equal(t, "image", state.FileType)
	require.NotNil(t, state.SelectedFile)
	assert.Equal(t, int64(3), state.SelectedFile.Size)

	_, err = s.Submit(context.Background())
	require.NoError(t, err)

	req := env.sum.lastRequest()
	assert.Same(t, upload, req.File)
	assert.Equal(t, "image", req.FileType)
	assert.Equal(t, summarizer.SourceFile, req.Source())
}

func TestSessionReselectFileUpdatesType(t *testing.T) {
	env := newTestEnv(t, 5)
	s := env.session(t)

	_, err := s.SelectFile(&summarizer.Upload{Filename: "report.pdf", Data: []byte("%PDF")})
	require.NoError(t, err)
	photo := &summarizer.Upload{Filename: "photo.png", ContentType: "image/png", Data: []byte{0x89}}
	state, err := s.SelectFile(photo)
	require.NoError(t, err)
	assert.Equal(t, "image", state.FileType)

	_, err = s.Submit(context.Background())
	require.NoError(t, err)

	req := env.sum.lastRequest()
	assert.Same(t, photo, req.File)
	assert.Equal(t, "image", req.FileType)
}

func TestSessionSummarizerFailure(t *testing.T) {
	env := newTestEnv(t, 5)
	env.sum.err = &summarizer.APIError{StatusCode: 500, Detail: "Server error: boom"}
	s := env.session(t)

	_, err := s.Apply(InputChanged{Text: "x"})
	require.NoError(t, err)

	state, err := s.Submit(context.Background())
	require.NoError(t, err, "backend failures become messages")

	last, ok := state.LastMessage()
	require.True(t, ok)
	assert.True(t, last.Error)
	assert.Equal(t, "Server error: 500 - Server error: boom", last.Text)
	assert.Empty(t, last.HTML)
	assert.False(t, state.Loading)
}

func TestSessionAudioUnavailable(t *testing.T) {
	env := newTestEnv(t, 5)
	env.sum.resp.Audio = audio.MultiChunk([]string{"***", "%%%"})
	s := env.session(t)

	_, err := s.Apply(InputChanged{Text: "x"})
	require.NoError(t, err)
	state, err := s.Submit(context.Background())
	require.NoError(t, err)

	last, _ := state.LastMessage()
	assert.Equal(t, AudioUnavailable, last.AudioError)
	assert.Empty(t, last.AudioURL)
	assert.NotEmpty(t, last.HTML, "summary still shown without audio")
	assert.Equal(t, 0, env.store.Len())
}

func TestSessionAudioLimitReleasesOldest(t *testing.T) {
	env := newTestEnv(t, 2)
	env.sum.resp.Audio = audio.SingleChunk(wavChunk(t))
	s := env.session(t)

	var audioIDs []string
	for i := 0; i < 3; i++ {
		_, err := s.Apply(InputChanged{Text: "x"})
		require.NoError(t, err)
		state, err := s.Submit(context.Background())
		require.NoError(t, err)
		last, _ := state.LastMessage()
		audioIDs = append(audioIDs, last.AudioID)
	}

	assert.Equal(t, audioIDs[1:], s.AudioHandles())
	assert.Equal(t, 2, env.store.Len())
	_, ok := env.store.Get(audioIDs[0])
	assert.False(t, ok, "oldest handle released")

	state := s.State()
	first := state.Messages[1]
	assert.Equal(t, AudioExpired, first.AudioError)
	assert.Empty(t, first.AudioURL)
}

func TestSessionCloseReleasesAudio(t *testing.T) {
	env := newTestEnv(t, 5)
	env.sum.resp.Audio = audio.SingleChunk(wavChunk(t))
	s := env.session(t)

	_, err := s.Apply(InputChanged{Text: "x"})
	require.NoError(t, err)
	_, err = s.Submit(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1, env.store.Len())

	assert.True(t, env.manager.RemoveSession(s.ID))
	assert.Equal(t, 0, env.store.Len())

	_, err = s.Apply(InputChanged{Text: "y"})
	assert.ErrorIs(t, err, ErrSessionClosed)
	_, err = s.Submit(context.Background())
	assert.ErrorIs(t, err, ErrSessionClosed)
}

func TestSessionClearedReleasesAudio(t *testing.T) {
	env := newTestEnv(t, 5)
	env.sum.resp.Audio = audio.SingleChunk(wavChunk(t))
	s := env.session(t)

	_, err := s.Apply(InputChanged{Text: "x"})
	require.NoError(t, err)
	_, err = s.Submit(context.Background())
	require.NoError(t, err)

	state, err := s.Apply(Cleared{})
	require.NoError(t, err)
	assert.Empty(t, state.Messages)
	assert.Empty(t, s.AudioHandles())
	assert.Equal(t, 0, env.store.Len())
}

func TestSessionBusy(t *testing.T) {
	env := newTestEnv(t, 5)
	env.sum.block = make(chan struct{})
	s := env.session(t)

	_, err := s.Apply(InputChanged{Text: "x"})
	require.NoError(t, err)

	done := make(chan error, 1)
	go func() {
		_, err := s.Submit(context.Background())
		done <- err
	}()

	require.Eventually(t, func() bool { return s.State().Loading }, time.Second, time.Millisecond)

	_, err = s.Apply(InputChanged{Text: "y"})
	require.NoError(t, err)
	_, err = s.Submit(context.Background())
	assert.ErrorIs(t, err, ErrBusy)

	close(env.sum.block)
	require.NoError(t, <-done)
	assert.False(t, s.State().Loading)
}

func TestSessionApplyRejectsUnknownValues(t *testing.T) {
	env := newTestEnv(t, 5)
	s := env.session(t)

	_, err := s.Apply(LanguageChanged{Language: "fr"})
	assert.ErrorIs(t, err, summarizer.ErrUnsupportedLanguage)
	assert.Equal(t, "te", s.State().Language)

	_, err = s.Apply(FileTypeChanged{FileType: "video"})
	assert.ErrorIs(t, err, summarizer.ErrUnsupportedInput)
}

func TestSessionSubscribe(t *testing.T) {
	env := newTestEnv(t, 5)
	s := env.session(t)

	updates, cancel := s.Subscribe()

	_, err := s.Apply(InputChanged{Text: "a"})
	require.NoError(t, err)
	_, err = s.Apply(InputChanged{Text: "ab"})
	require.NoError(t, err)

	// Only the latest state is kept for a slow reader
	select {
	case state := <-updates:
		assert.Equal(t, "ab", state.Input)
	case <-time.After(time.Second):
		t.Fatal("no state update")
	}

	cancel()
	_, open := <-updates
	assert.False(t, open)
	cancel()
}

func TestUserMessage(t *testing.T) {
	assert.Equal(t, "Server error: 404 - Unknown error", userMessage(&summarizer.APIError{StatusCode: 404}))
	assert.Equal(t, "Please provide either direct text or a URL.", userMessage(summarizer.ErrNoContent))
	assert.Equal(t, "Request cancelled.", userMessage(context.Canceled))
	assert.Equal(t, "No response from server. Check if the backend is running.", userMessage(errors.New("dial tcp: refused")))
}
