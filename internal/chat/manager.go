package chat

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/skypro1111/summary-chat/internal/audio"
	"github.com/skypro1111/summary-chat/internal/summarizer"
)

var (
	// ErrSessionNotFound is returned for unknown session ids
	ErrSessionNotFound = errors.New("session not found")

	// ErrTooManySessions is returned when MaxSessions sessions exist
	ErrTooManySessions = errors.New("too many active sessions")
)

// Reasons a session is removed
const (
	RemovedClosed   = "closed"
	RemovedExpired  = "expired"
	RemovedShutdown = "shutdown"
)

// Recorder receives session and rendering metrics
type Recorder interface {
	RecordSessionCreated()
	RecordSessionRemoved(reason string)
	SetActiveSessions(count int)
	RecordMarkupRender(durationSeconds float64)
}

type noopRecorder struct{}

func (noopRecorder) RecordSessionCreated()       {}
func (noopRecorder) RecordSessionRemoved(string) {}
func (noopRecorder) SetActiveSessions(int)       {}
func (noopRecorder) RecordMarkupRender(float64)  {}

// ManagerConfig contains session manager configuration
type ManagerConfig struct {
	SessionTimeout  time.Duration
	SweepInterval   time.Duration
	MaxSessions     int // 0 means unlimited
	AudioLimit      int // live audio handles per session, 0 means unlimited
	DefaultLanguage string
}

// SessionInfo contains session information for monitoring
type SessionInfo struct {
	ID           string    `json:"id"`
	CreatedAt    time.Time `json:"created_at"`
	LastActivity time.Time `json:"last_activity"`
	Messages     int       `json:"messages"`
	AudioHandles int       `json:"audio_handles"`
	Loading      bool      `json:"loading"`
}

// Manager manages chat sessions
type Manager struct {
	sessions map[string]*Session
	mu       sync.RWMutex

	config     ManagerConfig
	logger     *slog.Logger
	summarizer summarizer.Summarizer
	assembler  *audio.Assembler
	store      *audio.Store
	recorder   Recorder

	ctx     context.Context
	cancel  context.CancelFunc
	cleanup chan struct{}
}

// NewManager creates a session manager and starts its cleanup routine.
// recorder may be nil.
func NewManager(logger *slog.Logger, config ManagerConfig, sum summarizer.Summarizer, assembler *audio.Assembler, store *audio.Store, recorder Recorder) *Manager {
	if config.SessionTimeout <= 0 {
		config.SessionTimeout = 30 * time.Minute
	}
	if config.SweepInterval <= 0 {
		config.SweepInterval = 30 * time.Second
	}
	if config.DefaultLanguage == "" {
		config.DefaultLanguage = summarizer.DefaultLanguage
	}
	if recorder == nil {
		recorder = noopRecorder{}
	}

	ctx, cancel := context.WithCancel(context.Background())

	mgr := &Manager{
		sessions:   make(map[string]*Session),
		config:     config,
		logger:     logger,
		summarizer: sum,
		assembler:  assembler,
		store:      store,
		recorder:   recorder,
		ctx:        ctx,
		cancel:     cancel,
		cleanup:    make(chan struct{}),
	}

	go mgr.startCleanupRoutine()

	return mgr
}

// CreateSession creates a new session
func (m *Manager) CreateSession() (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.config.MaxSessions > 0 && len(m.sessions) >= m.config.MaxSessions {
		return nil, ErrTooManySessions
	}

	session := newSession(uuid.NewString(), m.config.DefaultLanguage, m)
	m.sessions[session.ID] = session

	m.recorder.RecordSessionCreated()
	m.recorder.SetActiveSessions(len(m.sessions))

	m.logger.Info("Created chat session",
		slog.String("session_id", session.ID),
		slog.Int("active_sessions", len(m.sessions)),
	)

	return session, nil
}

// GetSession retrieves a session by id
func (m *Manager) GetSession(id string) (*Session, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	session, exists := m.sessions[id]
	return session, exists
}

// GetActiveSessionCount returns the number of sessions
func (m *Manager) GetActiveSessionCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

// GetAllSessions returns information about every session
func (m *Manager) GetAllSessions() []SessionInfo {
	m.mu.RLock()
	sessions := make([]*Session, 0, len(m.sessions))
	for _, session := range m.sessions {
		sessions = append(sessions, session)
	}
	m.mu.RUnlock()

	infos := make([]SessionInfo, 0, len(sessions))
	for _, session := range sessions {
		infos = append(infos, session.Info())
	}
	return infos
}

// Info returns monitoring information for the session
func (s *Session) Info() SessionInfo {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return SessionInfo{
		ID:           s.ID,
		CreatedAt:    s.CreatedAt,
		LastActivity: s.lastActivity,
		Messages:     len(s.state.Messages),
		AudioHandles: len(s.handles),
		Loading:      s.state.Loading,
	}
}

// RemoveSession closes and removes a session
func (m *Manager) RemoveSession(id string) bool {
	return m.removeSession(id, RemovedClosed)
}

func (m *Manager) removeSession(id, reason string) bool {
	m.mu.Lock()
	session, exists := m.sessions[id]
	if exists {
		delete(m.sessions, id)
	}
	remaining := len(m.sessions)
	m.mu.Unlock()

	if !exists {
		return false
	}

	session.Close()

	m.recorder.RecordSessionRemoved(reason)
	m.recorder.SetActiveSessions(remaining)

	m.logger.Info("Removed chat session",
		slog.String("session_id", id),
		slog.String("reason", reason),
		slog.Duration("duration", time.Since(session.CreatedAt)),
		slog.Int("active_sessions", remaining),
	)

	return true
}

// Stop stops the cleanup routine and closes every session
func (m *Manager) Stop() {
	m.logger.Info("Stopping chat session manager...")

	m.cancel()
	<-m.cleanup

	m.mu.RLock()
	ids := make([]string, 0, len(m.sessions))
	for id := range m.sessions {
		ids = append(ids, id)
	}
	m.mu.RUnlock()

	for _, id := range ids {
		m.removeSession(id, RemovedShutdown)
	}

	stats := m.summarizer.Stats()
	m.logger.Info("Chat session manager stopped",
		slog.Int("closed_sessions", len(ids)),
		slog.Uint64("total_summary_requests", stats.TotalRequests),
		slog.Uint64("successful_summaries", stats.SuccessRequests),
		slog.Float64("summary_success_rate", stats.SuccessRate),
	)
}

// startCleanupRoutine runs in a separate goroutine to expire idle sessions
func (m *Manager) startCleanupRoutine() {
	defer close(m.cleanup)

	ticker := time.NewTicker(m.config.SweepInterval)
	defer ticker.Stop()

	m.logger.Info("Session cleanup routine started",
		slog.Duration("timeout", m.config.SessionTimeout),
		slog.Duration("check_interval", m.config.SweepInterval),
	)

	for {
		select {
		case <-m.ctx.Done():
			m.logger.Info("Session cleanup routine stopping")
			return

		case now := <-ticker.C:
			m.cleanupExpiredSessions(now)
		}
	}
}

// cleanupExpiredSessions removes sessions idle longer than the timeout.
// Sessions waiting on a summary are kept.
func (m *Manager) cleanupExpiredSessions(now time.Time) int {
	expired := make([]string, 0)

	m.mu.RLock()
	for id, session := range m.sessions {
		info := session.Info()
		if !info.Loading && now.Sub(info.LastActivity) > m.config.SessionTimeout {
			expired = append(expired, id)
		}
	}
	m.mu.RUnlock()

	if len(expired) > 0 {
		m.logger.Info("Cleaning up expired sessions",
			slog.Int("expired_count", len(expired)),
		)

		for _, id := range expired {
			m.removeSession(id, RemovedExpired)
		}
	}
	return len(expired)
}
