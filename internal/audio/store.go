package audio

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// ErrStoreFull is returned by Put when the store holds MaxHandles resources
var ErrStoreFull = errors.New("audio store is full")

// Handle addresses an assembled resource until it is released
type Handle struct {
	ID        string    `json:"id"`
	URL       string    `json:"url"`
	Size      int       `json:"size_bytes"`
	CreatedAt time.Time `json:"created_at"`
}

// StoreConfig contains configuration for the handle store
type StoreConfig struct {
	URLPrefix     string        // e.g. "/audio/"
	MaxHandles    int           // 0 means unlimited
	TTL           time.Duration // 0 disables expiry
	SweepInterval time.Duration
}

// StoreStats represents store statistics
type StoreStats struct {
	LiveHandles int    `json:"live_handles"`
	LiveBytes   int    `json:"live_bytes"`
	Created     uint64 `json:"created"`
	Released    uint64 `json:"released"`
	Expired     uint64 `json:"expired"`
}

type storeEntry struct {
	handle Handle
	audio  *Assembled
}

// Store keeps assembled resources addressable by handle. Releasing a
// handle is the caller's job; expiry after TTL only bounds what forgotten
// handles can hold.
type Store struct {
	config   StoreConfig
	logger   *slog.Logger
	observer Observer

	entries  map[string]*storeEntry
	bytes    int
	created  uint64
	released uint64
	expired  uint64
	mu       sync.RWMutex

	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}
}

// NewStore creates a handle store and starts its expiry routine when a TTL
// is configured. observer may be nil.
func NewStore(config StoreConfig, logger *slog.Logger, observer Observer) *Store {
	if config.URLPrefix == "" {
		config.URLPrefix = "/audio/"
	}
	if !strings.HasSuffix(config.URLPrefix, "/") {
		config.URLPrefix += "/"
	}
	if config.SweepInterval <= 0 {
		config.SweepInterval = 30 * time.Second
	}

	ctx, cancel := context.WithCancel(context.Background())
	s := &Store{
		config:   config,
		logger:   logger,
		observer: observer,
		entries:  make(map[string]*storeEntry),
		ctx:      ctx,
		cancel:   cancel,
		done:     make(chan struct{}),
	}

	if config.TTL > 0 {
		go s.startExpiryRoutine()
	} else {
		close(s.done)
	}

	return s
}

// Put registers a resource and returns its handle
func (s *Store) Put(a *Assembled) (Handle, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.config.MaxHandles > 0 && len(s.entries) >= s.config.MaxHandles {
		return Handle{}, ErrStoreFull
	}

	id := uuid.NewString()
	h := Handle{
		ID:        id,
		URL:       s.config.URLPrefix + id,
		Size:      a.Size(),
		CreatedAt: time.Now(),
	}
	s.entries[id] = &storeEntry{handle: h, audio: a}
	s.bytes += a.Size()
	s.created++
	s.publishLocked()

	return h, nil
}

// Get returns the resource behind a handle id
func (s *Store) Get(id string) (*Assembled, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	e, ok := s.entries[id]
	if !ok {
		return nil, false
	}
	return e.audio, true
}

// Release frees a handle. It reports whether the handle was live.
func (s *Store) Release(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.removeLocked(id) {
		return false
	}
	s.released++
	return true
}

// Len returns the number of live handles
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

// Stats returns current store statistics
func (s *Store) Stats() StoreStats {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return StoreStats{
		LiveHandles: len(s.entries),
		LiveBytes:   s.bytes,
		Created:     s.created,
		Released:    s.released,
		Expired:     s.expired,
	}
}

// Stop stops the expiry routine and drops every remaining resource
func (s *Store) Stop() {
	s.cancel()
	<-s.done

	s.mu.Lock()
	defer s.mu.Unlock()

	remaining := len(s.entries)
	for id := range s.entries {
		s.removeLocked(id)
	}

	s.logger.Info("Audio store stopped",
		slog.Int("dropped_handles", remaining),
		slog.Uint64("created", s.created),
		slog.Uint64("released", s.released),
		slog.Uint64("expired", s.expired),
	)
}

func (s *Store) removeLocked(id string) bool {
	e, ok := s.entries[id]
	if !ok {
		return false
	}
	delete(s.entries, id)
	s.bytes -= e.audio.Size()
	s.publishLocked()
	return true
}

func (s *Store) publishLocked() {
	if s.observer != nil {
		s.observer.SetLiveHandles(len(s.entries))
	}
}

// startExpiryRoutine runs in a separate goroutine to drop expired handles
func (s *Store) startExpiryRoutine() {
	defer close(s.done)

	ticker := time.NewTicker(s.config.SweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.ctx.Done():
			return
		case now := <-ticker.C:
			s.expire(now)
		}
	}
}

// expire drops handles created more than TTL before now
func (s *Store) expire(now time.Time) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	count := 0
	for id, e := range s.entries {
		if now.Sub(e.handle.CreatedAt) > s.config.TTL {
			s.removeLocked(id)
			count++
		}
	}

	if count > 0 {
		s.expired += uint64(count)
		s.logger.Warn("Expired unreleased audio handles",
			slog.Int("expired_count", count),
			slog.Duration("ttl", s.config.TTL),
		)
	}
	return count
}
