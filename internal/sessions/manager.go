// Package sessions owns per-sender conversation identity. Each sender has
// exactly one Session holding the opaque backend session ID, the model in
// effect, and a run lock that serializes backend round-trips for that
// sender while leaving every other sender fully parallel.
package sessions

import (
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Session is the record of one ongoing conversation with one sender.
// State fields are guarded by mu; the run lock is separate so reading or
// touching metadata never blocks behind an in-flight backend call.
type Session struct {
	run sync.Mutex

	mu           sync.Mutex
	id           string
	model        string
	lastActivity time.Time
	truncated    bool
}

// Acquire blocks until this session's backend slot is free. It must be
// held for the full backend round-trip and released on every exit path.
func (s *Session) Acquire() { s.run.Lock() }

// Release frees the session's backend slot.
func (s *Session) Release() { s.run.Unlock() }

// Snapshot returns the backend session ID and model to use for the next
// invocation.
func (s *Session) Snapshot() (id, model string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.id, s.model
}

// SetModel changes the model selector without resetting the session ID.
func (s *Session) SetModel(model string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.model = model
}

// MarkTruncated flags that the last backend reply looked cut short.
// Advisory only, surfaced in logs and metrics.
func (s *Session) MarkTruncated(v bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.truncated = v
}

// Truncated reports the truncation marker.
func (s *Session) Truncated() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.truncated
}

func (s *Session) touch() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastActivity = time.Now()
}

func (s *Session) idleSince() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastActivity
}

// Manager maps sender IDs to sessions. All state is in-memory and
// rebuilt from scratch on restart.
type Manager struct {
	sessions     sync.Map // sender id → *Session
	defaultModel string
	ttl          time.Duration
}

// NewManager creates a Manager. ttl bounds idle session lifetime; zero
// disables expiry.
func NewManager(defaultModel string, ttl time.Duration) *Manager {
	return &Manager{defaultModel: defaultModel, ttl: ttl}
}

// GetOrCreate returns the sender's session, creating it on first contact.
// Creation is idempotent: concurrent first messages race through
// LoadOrStore and every caller observes the same instance, with isNew
// true for exactly the winner. Last activity is touched on every call.
func (m *Manager) GetOrCreate(sender string) (sess *Session, isNew bool) {
	if v, ok := m.sessions.Load(sender); ok {
		s := v.(*Session)
		s.touch()
		return s, false
	}
	fresh := &Session{
		id:           uuid.NewString(),
		model:        m.defaultModel,
		lastActivity: time.Now(),
	}
	v, loaded := m.sessions.LoadOrStore(sender, fresh)
	s := v.(*Session)
	if loaded {
		s.touch()
		return s, false
	}
	slog.Info("new session", "sender", sender, "session_id", fresh.id)
	return s, true
}

// Reset removes the sender's session entirely. The next message recreates
// it with a fresh session ID, discarding backend-side context.
func (m *Manager) Reset(sender string) bool {
	_, ok := m.sessions.LoadAndDelete(sender)
	return ok
}

// SwitchModel sets the model for the sender's session, creating the
// session lazily if absent. The session ID is never reset by this.
func (m *Manager) SwitchModel(sender, model string) {
	s, _ := m.GetOrCreate(sender)
	s.SetModel(model)
}

// Len returns the number of live sessions.
func (m *Manager) Len() int {
	n := 0
	m.sessions.Range(func(_, _ any) bool { n++; return true })
	return n
}

// SweepIdle removes sessions idle past the TTL and returns how many were
// dropped. No-op when TTL is zero.
func (m *Manager) SweepIdle() int {
	if m.ttl <= 0 {
		return 0
	}
	cutoff := time.Now().Add(-m.ttl)
	removed := 0
	m.sessions.Range(func(k, v any) bool {
		if v.(*Session).idleSince().Before(cutoff) {
			m.sessions.Delete(k)
			removed++
		}
		return true
	})
	if removed > 0 {
		slog.Info("idle sessions expired", "count", removed)
	}
	return removed
}
