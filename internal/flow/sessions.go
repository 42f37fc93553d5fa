package flow

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/gostudy/bookbot/internal/domain"
)

// SessionStore keeps conversation sessions in memory, one per chat
// identity. Sessions are intentionally not persisted: a restart simply
// asks users to /start again, while stored credentials survive in sqlite.
type SessionStore struct {
	mu       sync.Mutex
	sessions map[string]*domain.Session
}

// NewSessionStore creates an empty in-memory session store.
func NewSessionStore() *SessionStore {
	return &SessionStore{sessions: make(map[string]*domain.Session)}
}

// Get returns the session for an identity, or nil if none exists.
func (s *SessionStore) Get(identity string) *domain.Session {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sessions[identity]
}

// Reset creates a fresh session for the identity, discarding any
// previous conversation state.
func (s *SessionStore) Reset(identity, channelID, chatID string) *domain.Session {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().UTC()
	session := &domain.Session{
		ID:        uuid.New().String(),
		Identity:  identity,
		ChannelID: channelID,
		ChatID:    chatID,
		State:     domain.StateAwaitingLanguage,
		CreatedAt: now,
		UpdatedAt: now,
	}
	s.sessions[identity] = session
	return session
}

// Update applies a mutation to the identity's session under the store
// lock and bumps its update time. No-op when the session does not exist.
func (s *SessionStore) Update(identity string, fn func(*domain.Session)) {
	s.mu.Lock()
	defer s.mu.Unlock()

	session, ok := s.sessions[identity]
	if !ok {
		return
	}
	fn(session)
	session.UpdatedAt = time.Now().UTC()
}

// Count returns the number of live sessions.
func (s *SessionStore) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}
