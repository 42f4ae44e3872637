package ws

import (
	"encoding/json"
	"fmt"
	"strings"

	"ai-buddy-chat/internal/domain"
	"ai-buddy-chat/internal/domain/model"
)

// Envelope is the wire frame for both directions:
// {"event": "<name>", "data": {...}}.
type Envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

func encodeOutbound(event model.EventName, payload any) ([]byte, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return json.Marshal(Envelope{Event: string(event), Data: data})
}

// decodeInbound validates a raw frame into the inbound event union.
// Unknown event names and malformed payloads are rejected here so the
// coordinator only ever sees well-formed events.
func decodeInbound(raw []byte) (model.InboundEvent, error) {
	var env Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return model.InboundEvent{}, fmt.Errorf("%w: malformed frame", domain.ErrInvalidArgument)
	}

	switch model.EventName(env.Event) {
	case model.EventUserJoin:
		var p model.JoinPayload
		if err := json.Unmarshal(env.Data, &p); err != nil {
			return model.InboundEvent{}, fmt.Errorf("%w: user_join payload", domain.ErrInvalidArgument)
		}
		p.Username = strings.TrimSpace(p.Username)
		if p.Username == "" {
			return model.InboundEvent{}, fmt.Errorf("%w: username required", domain.ErrInvalidArgument)
		}
		return model.InboundEvent{Name: model.EventUserJoin, Join: &p}, nil

	case model.EventMessage:
		var p model.MessagePayload
		if err := json.Unmarshal(env.Data, &p); err != nil {
			return model.InboundEvent{}, fmt.Errorf("%w: message payload", domain.ErrInvalidArgument)
		}
		if strings.TrimSpace(p.Message) == "" {
			return model.InboundEvent{}, fmt.Errorf("%w: message required", domain.ErrInvalidArgument)
		}
		return model.InboundEvent{Name: model.EventMessage, Message: &p}, nil

	case model.EventTyping:
		var p model.TypingPayload
		if err := json.Unmarshal(env.Data, &p); err != nil {
			return model.InboundEvent{}, fmt.Errorf("%w: typing payload", domain.ErrInvalidArgument)
		}
		return model.InboundEvent{Name: model.EventTyping, Typing: &p}, nil

	default:
		return model.InboundEvent{}, fmt.Errorf("%w: unknown event %q", domain.ErrInvalidArgument, env.Event)
	}
}
