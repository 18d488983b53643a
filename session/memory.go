package session

import (
	"context"
	"sync"
	"time"

	"newsrag/types"
)

type memorySession struct {
	messages  []types.Message
	expiresAt time.Time
}

// MemoryStore is an in-process Store. Expired sessions read as absent and
// are dropped on the next access.
type MemoryStore struct {
	mu       sync.Mutex
	sessions map[string]*memorySession
	ttl      time.Duration
	now      Clock
}

func NewMemoryStore(ttl time.Duration, clock Clock) *MemoryStore {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if clock == nil {
		clock = time.Now
	}
	return &MemoryStore{
		sessions: make(map[string]*memorySession),
		ttl:      ttl,
		now:      clock,
	}
}

func (s *MemoryStore) Append(_ context.Context, sessionID string, msg types.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = now.UTC()
	}

	sess := s.live(sessionID, now)
	if sess == nil {
		sess = &memorySession{}
		s.sessions[sessionID] = sess
	}
	sess.messages = append(sess.messages, msg)
	sess.expiresAt = now.Add(s.ttl)
	return nil
}

func (s *MemoryStore) Recent(_ context.Context, sessionID string, count int) ([]types.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess := s.live(sessionID, s.now())
	if sess == nil {
		return []types.Message{}, nil
	}

	msgs := sess.messages
	if count > 0 && len(msgs) > count {
		msgs = msgs[len(msgs)-count:]
	}
	out := make([]types.Message, len(msgs))
	copy(out, msgs)
	return out, nil
}

func (s *MemoryStore) Clear(_ context.Context, sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.sessions, sessionID)
	return nil
}

// live returns the session if it has not expired, reclaiming it otherwise.
// Callers hold s.mu.
func (s *MemoryStore) live(sessionID string, now time.Time) *memorySession {
	sess, ok := s.sessions[sessionID]
	if !ok {
		return nil
	}
	if !now.Before(sess.expiresAt) {
		delete(s.sessions, sessionID)
		return nil
	}
	return sess
}
