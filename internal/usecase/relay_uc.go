// File: internal/usecase/relay_uc.go
package usecase

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"ai-buddy-chat/internal/domain/model"
	"ai-buddy-chat/internal/domain/ports/repository"
	"ai-buddy-chat/internal/infra/metrics"
)

const aiUsername = "AI Assistant"

// Emitter is the outbound side of the connection transport. Broadcast
// reaches every open connection, BroadcastExcept everyone but one, and
// EmitTo exactly one. Each call is atomic with respect to interleaving.
type Emitter interface {
	EmitTo(connID string, event model.EventName, payload any)
	Broadcast(event model.EventName, payload any)
	BroadcastExcept(connID string, event model.EventName, payload any)
}

// Runner executes generation work off the event path so one slow AI
// call never stalls other connections' events.
type Runner interface {
	Submit(task func(ctx context.Context) error) error
}

// RelayUseCase is the broadcast coordinator: it drives the per-connection
// lifecycle (connected -> joined -> closed), owns the session registry
// and context store, and fans chat events out through the Emitter.
type RelayUseCase interface {
	HandleJoin(ctx context.Context, connID, username string)
	HandleMessage(ctx context.Context, connID, text string)
	HandleTyping(ctx context.Context, connID string, isTyping bool)
	HandleDisconnect(ctx context.Context, connID string)

	ConnectedCount() int
	Participants() []*model.Participant
}

// Compile-time check
var _ RelayUseCase = (*relayUC)(nil)

type relayUC struct {
	registry  repository.SessionRegistry
	contexts  repository.ContextStore
	responder ResponderUseCase
	runner    Runner
	emit      Emitter
	log       *zerolog.Logger

	// One mutation lock per connection id: serializes the async AI
	// completion against later events from the same connection.
	locksMu sync.Mutex
	locks   map[string]*sync.Mutex

	now func() time.Time
}

func NewRelayUseCase(
	registry repository.SessionRegistry,
	contexts repository.ContextStore,
	responder ResponderUseCase,
	runner Runner,
	emit Emitter,
	logger *zerolog.Logger,
) *relayUC {
	return &relayUC{
		registry:  registry,
		contexts:  contexts,
		responder: responder,
		runner:    runner,
		emit:      emit,
		log:       logger,
		locks:     make(map[string]*sync.Mutex),
		now:       time.Now,
	}
}

func (r *relayUC) HandleJoin(ctx context.Context, connID, username string) {
	metrics.ObserveEvent(string(model.EventUserJoin))

	p := r.registry.Join(connID, username)
	r.log.Info().Str("conn_id", connID).Str("username", username).Msg("user joined")

	r.emit.BroadcastExcept(connID, model.EventUserJoined, model.PresencePayload{
		Username:  p.Username,
		Message:   p.Username + " joined the chat",
		Timestamp: r.timestamp(),
	})
	r.emit.Broadcast(model.EventUserCount, model.CountPayload{Count: r.registry.Size()})
}

func (r *relayUC) HandleMessage(ctx context.Context, connID, text string) {
	metrics.ObserveEvent(string(model.EventMessage))

	p, err := r.registry.Lookup(connID)
	if err != nil {
		// Message without a completed join: tell only the sender.
		r.emit.EmitTo(connID, model.EventError, model.ErrorPayload{
			Message: "Please join the chat before sending messages",
		})
		return
	}

	msgID := r.now().UnixMilli()
	// Echo to everyone, sender included, before any AI work so the chat
	// is never blocked behind generation latency.
	r.emit.Broadcast(model.EventUserMessage, model.ChatPayload{
		ID:        msgID,
		Username:  p.Username,
		Message:   text,
		Timestamp: r.timestamp(),
		Type:      "user",
	})

	lock := r.connLock(connID)
	lock.Lock()
	r.contexts.AppendUser(connID, text)
	prompt := r.contexts.Render(connID)
	lock.Unlock()

	task := func(taskCtx context.Context) error {
		r.deliverReply(taskCtx, connID, msgID, prompt, text)
		return nil
	}
	if err := r.runner.Submit(task); err != nil {
		// Saturated pool counts as a failed generation; the chat goes on.
		r.log.Warn().Err(err).Str("conn_id", connID).Msg("generation task rejected")
		r.broadcastFallback(msgID)
	}
}

func (r *relayUC) HandleTyping(ctx context.Context, connID string, isTyping bool) {
	metrics.ObserveEvent(string(model.EventTyping))

	p, err := r.registry.Lookup(connID)
	if err != nil {
		// Typing before join is silently ignored.
		return
	}
	r.emit.BroadcastExcept(connID, model.EventUserTyping, model.TypingNoticePayload{
		Username: p.Username,
		IsTyping: isTyping,
	})
}

func (r *relayUC) HandleDisconnect(ctx context.Context, connID string) {
	metrics.ObserveEvent("disconnect")

	p, err := r.registry.Remove(connID)
	r.contexts.Remove(connID)
	r.forgetLock(connID)
	if err != nil {
		// Never joined; nothing to announce.
		return
	}

	r.log.Info().Str("conn_id", connID).Str("username", p.Username).Msg("user left")
	r.emit.BroadcastExcept(connID, model.EventUserLeft, model.PresencePayload{
		Username:  p.Username,
		Message:   p.Username + " left the chat",
		Timestamp: r.timestamp(),
	})
	r.emit.Broadcast(model.EventUserCount, model.CountPayload{Count: r.registry.Size()})
}

func (r *relayUC) ConnectedCount() int { return r.registry.Size() }

func (r *relayUC) Participants() []*model.Participant { return r.registry.List() }

// deliverReply runs on the worker pool: one generation attempt, then
// either the assistant reply or the degraded fallback, always to all
// connections. Failure never closes the connection.
func (r *relayUC) deliverReply(ctx context.Context, connID string, msgID int64, prompt, latest string) {
	reply, err := r.responder.Respond(ctx, prompt, latest)
	if err != nil {
		r.broadcastFallback(msgID)
		return
	}

	// The sender may have disconnected while the reply was generated.
	// Its lock and context are gone then and must not be recreated;
	// the reply still goes out, everyone saw the question.
	if lock := r.lockIfPresent(connID); lock != nil {
		lock.Lock()
		r.contexts.AppendAssistant(connID, reply)
		lock.Unlock()
	}

	r.emit.Broadcast(model.EventAIMessage, model.ChatPayload{
		ID:        msgID + 1, // offset avoids colliding with the user message in the same tick
		Username:  aiUsername,
		Message:   reply,
		Timestamp: r.timestamp(),
		Type:      "ai",
	})
}

func (r *relayUC) broadcastFallback(msgID int64) {
	r.emit.Broadcast(model.EventAIMessage, model.ChatPayload{
		ID:        msgID + 1,
		Username:  aiUsername,
		Message:   r.responder.FallbackReply(),
		Timestamp: r.timestamp(),
		Type:      "ai_error",
	})
}

func (r *relayUC) timestamp() string {
	return r.now().UTC().Format(time.RFC3339)
}

func (r *relayUC) connLock(connID string) *sync.Mutex {
	r.locksMu.Lock()
	defer r.locksMu.Unlock()
	l, ok := r.locks[connID]
	if !ok {
		l = &sync.Mutex{}
		r.locks[connID] = l
	}
	return l
}

// lockIfPresent returns the connection's lock only if one still
// exists; the async completion path must not resurrect state for a
// connection that already disconnected.
func (r *relayUC) lockIfPresent(connID string) *sync.Mutex {
	r.locksMu.Lock()
	defer r.locksMu.Unlock()
	return r.locks[connID]
}

func (r *relayUC) forgetLock(connID string) {
	r.locksMu.Lock()
	delete(r.locks, connID)
	r.locksMu.Unlock()
}
