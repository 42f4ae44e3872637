package model

import "strings"

type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Turn is a single exchange entry in a conversation.
type Turn struct {
	Role    Role
	Content string
}

// Conversation is the bounded rolling history of one participant's
// exchange with the assistant. When appending would exceed the limit
// the oldest turn is evicted first.
type Conversation struct {
	Turns []Turn
	limit int
}

func NewConversation(limit int) *Conversation {
	if limit <= 0 {
		limit = 10
	}
	return &Conversation{
		Turns: make([]Turn, 0, limit),
		limit: limit,
	}
}

func (c *Conversation) Append(role Role, content string) {
	c.Turns = append(c.Turns, Turn{Role: role, Content: content})
	if len(c.Turns) > c.limit {
		c.Turns = c.Turns[len(c.Turns)-c.limit:]
	}
}

func (c *Conversation) Len() int { return len(c.Turns) }

// Render produces the prompt-context string, oldest turn first, one
// "<Role>: <content>" line per turn. Assistant turns are labeled
// "Buddy" to match the persona the model is prompted with.
func (c *Conversation) Render() string {
	lines := make([]string, 0, len(c.Turns))
	for _, t := range c.Turns {
		label := "User"
		if t.Role == RoleAssistant {
			label = "Buddy"
		}
		lines = append(lines, label+": "+t.Content)
	}
	return strings.Join(lines, "\n")
}
