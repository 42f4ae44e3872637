package state

import (
	"sync"

	"ai-buddy-chat/internal/domain"
	"ai-buddy-chat/internal/domain/model"
	"ai-buddy-chat/internal/domain/ports/repository"
)

// Compile-time check
var _ repository.SessionRegistry = (*SessionRegistry)(nil)

// SessionRegistry is the in-memory participant registry. The whole chat
// lives in a single process, so a mutex-guarded map is all the storage
// this needs.
type SessionRegistry struct {
	mu           sync.RWMutex
	participants map[string]*model.Participant
}

func NewSessionRegistry() *SessionRegistry {
	return &SessionRegistry{participants: make(map[string]*model.Participant)}
}

func (r *SessionRegistry) Join(connID, username string) *model.Participant {
	p := model.NewParticipant(connID, username)
	r.mu.Lock()
	r.participants[connID] = p
	r.mu.Unlock()
	return p
}

func (r *SessionRegistry) Lookup(connID string) (*model.Participant, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.participants[connID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return p, nil
}

func (r *SessionRegistry) Remove(connID string) (*model.Participant, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.participants[connID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	delete(r.participants, connID)
	return p, nil
}

func (r *SessionRegistry) Size() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.participants)
}

func (r *SessionRegistry) List() []*model.Participant {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*model.Participant, 0, len(r.participants))
	for _, p := range r.participants {
		out = append(out, p)
	}
	return out
}
