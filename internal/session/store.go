// Package session keeps per-user conversation state between stateless
// consult requests.
//
// A Store maps opaque session IDs to Contexts. Entries idle for longer than
// the configured timeout are evicted lazily on lookup and in bulk by
// CleanupExpired. The Store runs no background goroutine; callers decide when
// to clean up (the HTTP health probe does it on every call).
package session

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// DefaultTimeout is the idle time after which a session expires.
const DefaultTimeout = 30 * time.Minute

// Store holds the sessions of one process. It is safe for concurrent use.
type Store struct {
	timeout time.Duration
	now     func() time.Time
	newID   func() string
	logger  *zap.Logger
	metrics *Metrics

	mu       sync.Mutex
	sessions map[string]*Context
}

// Option configures a Store.
type Option func(*Store)

// WithClock replaces time.Now, mainly for tests.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		if now != nil {
			s.now = now
		}
	}
}

// WithIDGenerator replaces the random UUID session ID generator.
func WithIDGenerator(fn func() string) Option {
	return func(s *Store) {
		if fn != nil {
			s.newID = fn
		}
	}
}

// WithLogger sets the logger used for session lifecycle events.
func WithLogger(logger *zap.Logger) Option {
	return func(s *Store) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithMetrics records session lifecycle metrics in m.
func WithMetrics(m *Metrics) Option {
	return func(s *Store) {
		s.metrics = m
	}
}

// NewStore creates an empty Store. A non-positive timeout selects
// DefaultTimeout.
func NewStore(timeout time.Duration, opts ...Option) *Store {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	s := &Store{
		timeout:  timeout,
		now:      time.Now,
		newID:    uuid.NewString,
		logger:   zap.NewNop(),
		sessions: make(map[string]*Context),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Timeout returns the idle timeout.
func (s *Store) Timeout() time.Duration {
	return s.timeout
}

// Create registers a new, empty session with a freshly generated ID.
func (s *Store) Create() *Context {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := s.newID()
	for _, taken := s.sessions[id]; taken; _, taken = s.sessions[id] {
		id = s.newID()
	}

	ctx := newContext(id, s.now)
	s.sessions[id] = ctx

	s.metrics.created(len(s.sessions))
	s.logger.Debug("session created", zap.String("session.id", id))
	return ctx
}

// Get returns the session with the given ID. A session idle for longer than
// the timeout is evicted and reported as missing.
func (s *Store) Get(id string) (*Context, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ctx, ok := s.sessions[id]
	if !ok {
		return nil, false
	}
	if s.expired(ctx, s.now()) {
		delete(s.sessions, id)
		s.metrics.expired(reasonLookup, 1, len(s.sessions))
		s.logger.Debug("session expired on lookup", zap.String("session.id", id))
		return nil, false
	}
	return ctx, true
}

// GetOrCreate returns the live session with the given ID or, when id is empty,
// unknown or expired, a new session. A supplied ID is never reused for the
// new session.
func (s *Store) GetOrCreate(id string) *Context {
	if id != "" {
		if ctx, ok := s.Get(id); ok {
			return ctx
		}
	}
	return s.Create()
}

// CleanupExpired evicts every session idle for longer than the timeout and
// returns how many were removed.
func (s *Store) CleanupExpired() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	removed := 0
	for id, ctx := range s.sessions {
		if s.expired(ctx, now) {
			delete(s.sessions, id)
			removed++
		}
	}

	if removed > 0 {
		s.metrics.expired(reasonCleanup, removed, len(s.sessions))
		s.logger.Debug("expired sessions removed",
			zap.Int("removed", removed),
			zap.Int("remaining", len(s.sessions)),
		)
	}
	return removed
}

// Count returns the number of sessions held, including expired sessions not
// yet cleaned up.
func (s *Store) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

func (s *Store) expired(ctx *Context, now time.Time) bool {
	return now.Sub(ctx.LastUpdated()) > s.timeout
}
