package repository

import "ai-buddy-chat/internal/domain/model"

// SessionRegistry owns the live Participant set, keyed by connection id.
type SessionRegistry interface {
	// Join stores a Participant for connID, replacing any existing entry.
	Join(connID, username string) *model.Participant
	// Lookup returns domain.ErrNotFound when connID is absent.
	Lookup(connID string) (*model.Participant, error)
	// Remove deletes and returns the entry; domain.ErrNotFound when absent.
	Remove(connID string) (*model.Participant, error)
	Size() int
	List() []*model.Participant
}

// ContextStore owns each connection's bounded rolling conversation,
// keyed by connection id. Never shared across participants.
type ContextStore interface {
	// AppendUser lazily creates the conversation and appends a user turn.
	AppendUser(connID, text string)
	// AppendAssistant appends to an existing conversation; no-op when
	// the connection has no conversation yet.
	AppendAssistant(connID, text string)
	// Render returns the prompt-context string, oldest turn first.
	Render(connID string) string
	// Remove drops the conversation. Idempotent.
	Remove(connID string)
}
