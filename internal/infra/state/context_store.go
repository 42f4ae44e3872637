package state

import (
	"sync"

	"ai-buddy-chat/internal/domain/model"
	"ai-buddy-chat/internal/domain/ports/repository"
)

// Compile-time check
var _ repository.ContextStore = (*ContextStore)(nil)

// ContextStore keeps one bounded Conversation per live connection.
// Conversations are created on the first user turn and dropped on
// disconnect, so memory stays proportional to the connection count.
type ContextStore struct {
	mu            sync.Mutex
	conversations map[string]*model.Conversation
	limit         int
}

func NewContextStore(limit int) *ContextStore {
	if limit <= 0 {
		limit = 10
	}
	return &ContextStore{
		conversations: make(map[string]*model.Conversation),
		limit:         limit,
	}
}

func (s *ContextStore) AppendUser(connID, text string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.conversations[connID]
	if !ok {
		c = model.NewConversation(s.limit)
		s.conversations[connID] = c
	}
	c.Append(model.RoleUser, text)
}

func (s *ContextStore) AppendAssistant(connID, text string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.conversations[connID]
	if !ok {
		// A conversation only meaningfully exists after a user turn.
		return
	}
	c.Append(model.RoleAssistant, text)
}

func (s *ContextStore) Render(connID string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.conversations[connID]
	if !ok {
		return ""
	}
	return c.Render()
}

func (s *ContextStore) Remove(connID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.conversations, connID)
}

// Len reports the turn count for one connection. Used by tests.
func (s *ContextStore) Len(connID string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.conversations[connID]
	if !ok {
		return 0
	}
	return c.Len()
}
