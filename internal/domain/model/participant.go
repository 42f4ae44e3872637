package model

import "time"

// Participant is one connected, identified chat user. It is immutable
// once created; replacing an identity means creating a new Participant
// under the same connection id.
type Participant struct {
	ConnID   string
	Username string
	JoinedAt time.Time
}

func NewParticipant(connID, username string) *Participant {
	return &Participant{
		ConnID:   connID,
		Username: username,
		JoinedAt: time.Now(),
	}
}
