package chat

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/skypro1111/summary-chat/internal/audio"
	"github.com/skypro1111/summary-chat/internal/summarizer"
)

type sessionCounter struct {
	mu      sync.Mutex
	created int
	removed map[string]int
	active  int
	renders int
}

func (c *sessionCounter) RecordSessionCreated() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.created++
}

func (c *sessionCounter) RecordSessionRemoved(reason string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.removed == nil {
		c.removed = make(map[string]int)
	}
	c.removed[reason]++
}

func (c *sessionCounter) SetActiveSessions(count int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.active = count
}

func (c *sessionCounter) RecordMarkupRender(float64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.renders++
}

func newTestManager(t *testing.T, config ManagerConfig, rec Recorder) *Manager {
	t.Helper()
	logger := testLogger()
	store := audio.NewStore(audio.StoreConfig{}, logger, nil)
	sum := &fakeSummarizer{resp: &summarizer.Response{Summary: "ok"}}
	mgr := NewManager(logger, config, sum, audio.NewAssembler(logger, nil), store, rec)
	t.Cleanup(store.Stop)
	return mgr
}

func TestManagerCreateAndGet(t *testing.T) {
	rec := &sessionCounter{}
	mgr := newTestManager(t, ManagerConfig{DefaultLanguage: "hi"}, rec)
	defer mgr.Stop()

	s, err := mgr.CreateSession()
	require.NoError(t, err)
	assert.NotEmpty(t, s.ID)
	assert.Equal(t, "hi", s.State().Language)

	got, ok := mgr.GetSession(s.ID)
	require.True(t, ok)
	assert.Same(t, s, got)

	_, ok = mgr.GetSession("missing")
	assert.False(t, ok)

	assert.Equal(t, 1, mgr.GetActiveSessionCount())
	infos := mgr.GetAllSessions()
	require.Len(t, infos, 1)
	assert.Equal(t, s.ID, infos[0].ID)

	assert.Equal(t, 1, rec.created)
	assert.Equal(t, 1, rec.active)
}

func TestManagerDefaultLanguage(t *testing.T) {
	mgr := newTestManager(t, ManagerConfig{}, nil)
	defer mgr.Stop()

	s, err := mgr.CreateSession()
	require.NoError(t, err)
	assert.Equal(t, "te", s.State().Language)
}

func TestManagerMaxSessions(t *testing.T) {
	mgr := newTestManager(t, ManagerConfig{MaxSessions: 1}, nil)
	defer mgr.Stop()

	s, err := mgr.CreateSession()
	require.NoError(t, err)

	_, err = mgr.CreateSession()
	assert.ErrorIs(t, err, ErrTooManySessions)

	require.True(t, mgr.RemoveSession(s.ID))
	assert.False(t, mgr.RemoveSession(s.ID))

	_, err = mgr.CreateSession()
	assert.NoError(t, err)
}

func TestManagerCleanupExpiredSessions(t *testing.T) {
	rec := &sessionCounter{}
	mgr := newTestManager(t, ManagerConfig{SessionTimeout: time.Minute, SweepInterval: time.Hour}, rec)
	defer mgr.Stop()

	idle, err := mgr.CreateSession()
	require.NoError(t, err)

	assert.Equal(t, 0, mgr.cleanupExpiredSessions(time.Now()))
	assert.Equal(t, 1, mgr.cleanupExpiredSessions(time.Now().Add(2*time.Minute)))

	_, ok := mgr.GetSession(idle.ID)
	assert.False(t, ok)
	assert.Equal(t, 1, rec.removed[RemovedExpired])
	assert.Equal(t, 0, rec.active)
}

func TestManagerCleanupKeepsLoadingSessions(t *testing.T) {
	mgr := newTestManager(t, ManagerConfig{SessionTimeout: time.Minute, SweepInterval: time.Hour}, nil)
	defer mgr.Stop()

	s, err := mgr.CreateSession()
	require.NoError(t, err)
	_, err = s.Apply(InputChanged{Text: "x"})
	require.NoError(t, err)

	s.mu.Lock()
	s.reduceLocked(SubmitStarted{MessageID: "u1"})
	s.mu.Unlock()

	assert.Equal(t, 0, mgr.cleanupExpiredSessions(time.Now().Add(time.Hour)))
}

func TestManagerCleanupRoutine(t *testing.T) {
	mgr := newTestManager(t, ManagerConfig{SessionTimeout: 10 * time.Millisecond, SweepInterval: 5 * time.Millisecond}, nil)
	defer mgr.Stop()

	_, err := mgr.CreateSession()
	require.NoError(t, err)

	assert.Eventually(t, func() bool { return mgr.GetActiveSessionCount() == 0 }, time.Second, 5*time.Millisecond)
}

func TestManagerStopClosesSessions(t *testing.T) {
	rec := &sessionCounter{}
	mgr := newTestManager(t, ManagerConfig{}, rec)

	s, err := mgr.CreateSession()
	require.NoError(t, err)

	mgr.Stop()
	assert.Equal(t, 0, mgr.GetActiveSessionCount())
	assert.Equal(t, 1, rec.removed[RemovedShutdown])

	_, err = s.Apply(InputChanged{Text: "x"})
	assert.ErrorIs(t, err, ErrSessionClosed)
}

func TestManagerRecordsRenders(t *testing.T) {
	rec := &sessionCounter{}
	mgr := newTestManager(t, ManagerConfig{}, rec)
	defer mgr.Stop()

	s, err := mgr.CreateSession()
	require.NoError(t, err)
	_, err = s.Apply(InputChanged{Text: "x"})
	require.NoError(t, err)
	_, err = s.Submit(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, rec.renders)
}
