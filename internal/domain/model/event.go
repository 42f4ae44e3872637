package model

// EventName identifies one inbound or outbound chat event on the wire.
type EventName string

const (
	// Inbound
	EventUserJoin EventName = "user_join"
	EventMessage  EventName = "message"
	EventTyping   EventName = "typing"

	// Outbound
	EventUserJoined  EventName = "user_joined"
	EventUserMessage EventName = "user_message"
	EventAIMessage   EventName = "ai_message"
	EventUserLeft    EventName = "user_left"
	EventUserCount   EventName = "user_count"
	EventUserTyping  EventName = "user_typing"
	EventError       EventName = "error"
)

// Inbound payloads. Exactly one of the pointer fields of InboundEvent
// is set, matching Name; the transport validates this at the boundary.

type JoinPayload struct {
	Username string `json:"username"`
}

type MessagePayload struct {
	Message  string `json:"message"`
	Username string `json:"username"`
}

type TypingPayload struct {
	IsTyping bool `json:"isTyping"`
}

type InboundEvent struct {
	Name    EventName
	Join    *JoinPayload
	Message *MessagePayload
	Typing  *TypingPayload
}

// Outbound payloads.

// PresencePayload carries user_joined and user_left notifications.
type PresencePayload struct {
	Username  string `json:"username"`
	Message   string `json:"message"`
	Timestamp string `json:"timestamp"`
}

// ChatPayload carries user_message and ai_message broadcasts. Type is
// "user" for participant messages, "ai" for assistant replies and
// "ai_error" for the degraded reply emitted when generation fails.
type ChatPayload struct {
	ID        int64  `json:"id"`
	Username  string `json:"username"`
	Message   string `json:"message"`
	Timestamp string `json:"timestamp"`
	Type      string `json:"type"`
}

type CountPayload struct {
	Count int `json:"count"`
}

type TypingNoticePayload struct {
	Username string `json:"username"`
	IsTyping bool   `json:"isTyping"`
}

type ErrorPayload struct {
	Message string `json:"message"`
}
