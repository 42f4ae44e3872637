package usecase

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"ai-buddy-chat/internal/domain"
	"ai-buddy-chat/internal/domain/model"
	"ai-buddy-chat/internal/domain/ports/adapter"
	"ai-buddy-chat/internal/infra/state"
)

// ---- Fakes ----

type emission struct {
	event   model.EventName
	target  string // "" for broadcast, "!id" for broadcast-except, id for direct
	payload any
}

type recordingEmitter struct {
	mu        sync.Mutex
	emissions []emission
}

func (e *recordingEmitter) EmitTo(connID string, event model.EventName, payload any) {
	e.record(emission{event: event, target: connID, payload: payload})
}

func (e *recordingEmitter) Broadcast(event model.EventName, payload any) {
	e.record(emission{event: event, target: "", payload: payload})
}

func (e *recordingEmitter) BroadcastExcept(connID string, event model.EventName, payload any) {
	e.record(emission{event: event, target: "!" + connID, payload: payload})
}

func (e *recordingEmitter) record(em emission) {
	e.mu.Lock()
	e.emissions = append(e.emissions, em)
	e.mu.Unlock()
}

func (e *recordingEmitter) all() []emission {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]emission, len(e.emissions))
	copy(out, e.emissions)
	return out
}

func (e *recordingEmitter) byEvent(name model.EventName) []emission {
	var out []emission
	for _, em := range e.all() {
		if em.event == name {
			out = append(out, em)
		}
	}
	return out
}

// inlineRunner executes tasks synchronously so tests are deterministic.
type inlineRunner struct{ reject bool }

func (r *inlineRunner) Submit(task func(ctx context.Context) error) error {
	if r.reject {
		return domain.ErrQueueFull
	}
	return task(context.Background())
}

type fakeResponder struct {
	mu      sync.Mutex
	err     error
	reply   string
	prompts []string
}

func (f *fakeResponder) Respond(ctx context.Context, contextPrompt, latest string) (string, error) {
	f.mu.Lock()
	f.prompts = append(f.prompts, contextPrompt)
	f.mu.Unlock()
	if f.err != nil {
		return "", f.err
	}
	if f.reply != "" {
		return f.reply, nil
	}
	return "sounds good!", nil
}

func (f *fakeResponder) OneShot(ctx context.Context, history []adapter.Message, message string) (string, error) {
	return "", nil
}

func (f *fakeResponder) FallbackReply() string { return "fallback" }

func nopLogger() *zerolog.Logger {
	l := zerolog.Nop()
	return &l
}

func newTestRelay(responder ResponderUseCase, runner Runner) (*relayUC, *recordingEmitter, *state.ContextStore) {
	emitter := &recordingEmitter{}
	contexts := state.NewContextStore(10)
	relay := NewRelayUseCase(state.NewSessionRegistry(), contexts, responder, runner, emitter, nopLogger())
	return relay, emitter, contexts
}

// ---- Tests ----

func TestJoinBroadcasts(t *testing.T) {
	relay, emitter, _ := newTestRelay(&fakeResponder{}, &inlineRunner{})
	ctx := context.Background()

	relay.HandleJoin(ctx, "a", "Alice")

	joined := emitter.byEvent(model.EventUserJoined)
	if len(joined) != 1 {
		t.Fatalf("user_joined emissions = %d, want 1", len(joined))
	}
	if joined[0].target != "!a" {
		t.Fatalf("user_joined target = %q, want broadcast-except sender", joined[0].target)
	}
	pp := joined[0].payload.(model.PresencePayload)
	if pp.Username != "Alice" {
		t.Fatalf("username = %q", pp.Username)
	}

	counts := emitter.byEvent(model.EventUserCount)
	if len(counts) != 1 {
		t.Fatalf("user_count emissions = %d, want 1", len(counts))
	}
	if counts[0].target != "" {
		t.Fatal("user_count must reach everyone, including the joiner")
	}
	if counts[0].payload.(model.CountPayload).Count != 1 {
		t.Fatalf("count = %d, want 1", counts[0].payload.(model.CountPayload).Count)
	}

	relay.HandleJoin(ctx, "b", "Bob")
	counts = emitter.byEvent(model.EventUserCount)
	if got := counts[len(counts)-1].payload.(model.CountPayload).Count; got != 2 {
		t.Fatalf("count after second join = %d, want 2", got)
	}
}

func TestMessageEchoBeforeAIReply(t *testing.T) {
	relay, emitter, _ := newTestRelay(&fakeResponder{reply: "hi Alice!"}, &inlineRunner{})
	ctx := context.Background()

	relay.HandleJoin(ctx, "a", "Alice")
	relay.HandleMessage(ctx, "a", "hi")

	var userIdx, aiIdx = -1, -1
	for i, em := range emitter.all() {
		switch em.event {
		case model.EventUserMessage:
			userIdx = i
		case model.EventAIMessage:
			aiIdx = i
		}
	}
	if userIdx == -1 || aiIdx == -1 {
		t.Fatalf("missing emissions: user=%d ai=%d", userIdx, aiIdx)
	}
	if userIdx > aiIdx {
		t.Fatal("user_message must be emitted before ai_message")
	}

	um := emitter.byEvent(model.EventUserMessage)[0]
	if um.target != "" {
		t.Fatal("user_message must reach everyone, sender included")
	}
	up := um.payload.(model.ChatPayload)
	if up.Username != "Alice" || up.Message != "hi" || up.Type != "user" {
		t.Fatalf("user payload = %+v", up)
	}

	am := emitter.byEvent(model.EventAIMessage)[0]
	ap := am.payload.(model.ChatPayload)
	if ap.Username != "AI Assistant" || ap.Type != "ai" || ap.Message != "hi Alice!" {
		t.Fatalf("ai payload = %+v", ap)
	}
	if ap.ID != up.ID+1 {
		t.Fatalf("ai id = %d, want user id %d + 1", ap.ID, up.ID)
	}
}

func TestMessageFromUnregisteredConnection(t *testing.T) {
	relay, emitter, _ := newTestRelay(&fakeResponder{}, &inlineRunner{})

	relay.HandleMessage(context.Background(), "ghost", "hello?")

	errs := emitter.byEvent(model.EventError)
	if len(errs) != 1 {
		t.Fatalf("error emissions = %d, want 1", len(errs))
	}
	if errs[0].target != "ghost" {
		t.Fatalf("error target = %q, want the sender only", errs[0].target)
	}
	if got := len(emitter.byEvent(model.EventUserMessage)); got != 0 {
		t.Fatalf("user_message emissions = %d, want 0", got)
	}
	if got := len(emitter.byEvent(model.EventAIMessage)); got != 0 {
		t.Fatalf("ai_message emissions = %d, want 0", got)
	}
}

func TestGenerationFailureKeepsConnectionJoined(t *testing.T) {
	responder := &fakeResponder{err: fmt.Errorf("%w: boom", domain.ErrGenerationFailed)}
	relay, emitter, _ := newTestRelay(responder, &inlineRunner{})
	ctx := context.Background()

	relay.HandleJoin(ctx, "a", "Alice")
	relay.HandleMessage(ctx, "a", "hi")

	ai := emitter.byEvent(model.EventAIMessage)
	if len(ai) != 1 {
		t.Fatalf("ai_message emissions = %d, want exactly 1", len(ai))
	}
	ap := ai[0].payload.(model.ChatPayload)
	if ap.Type != "ai_error" {
		t.Fatalf("type = %q, want ai_error", ap.Type)
	}
	if ap.Message != "fallback" {
		t.Fatalf("message = %q", ap.Message)
	}

	// Still joined: the next message is echoed normally, no error event.
	relay.HandleMessage(ctx, "a", "still here?")
	if got := len(emitter.byEvent(model.EventUserMessage)); got != 2 {
		t.Fatalf("user_message emissions = %d, want 2", got)
	}
	if got := len(emitter.byEvent(model.EventError)); got != 0 {
		t.Fatalf("error emissions = %d, want 0", got)
	}
}

func TestQueueFullFallsBackToErrorReply(t *testing.T) {
	relay, emitter, _ := newTestRelay(&fakeResponder{}, &inlineRunner{reject: true})
	ctx := context.Background()

	relay.HandleJoin(ctx, "a", "Alice")
	relay.HandleMessage(ctx, "a", "hi")

	ai := emitter.byEvent(model.EventAIMessage)
	if len(ai) != 1 {
		t.Fatalf("ai_message emissions = %d, want 1", len(ai))
	}
	if ai[0].payload.(model.ChatPayload).Type != "ai_error" {
		t.Fatal("saturated pool must degrade to ai_error")
	}
}

func TestTypingRelayedToOthersOnly(t *testing.T) {
	relay, emitter, _ := newTestRelay(&fakeResponder{}, &inlineRunner{})
	ctx := context.Background()

	relay.HandleJoin(ctx, "a", "Alice")
	relay.HandleTyping(ctx, "a", true)

	typ := emitter.byEvent(model.EventUserTyping)
	if len(typ) != 1 {
		t.Fatalf("user_typing emissions = %d, want 1", len(typ))
	}
	if typ[0].target != "!a" {
		t.Fatal("user_typing must exclude the sender")
	}
	tp := typ[0].payload.(model.TypingNoticePayload)
	if tp.Username != "Alice" || !tp.IsTyping {
		t.Fatalf("payload = %+v", tp)
	}
}

func TestTypingFromUnregisteredIsSilent(t *testing.T) {
	relay, emitter, _ := newTestRelay(&fakeResponder{}, &inlineRunner{})

	relay.HandleTyping(context.Background(), "ghost", true)

	if got := len(emitter.all()); got != 0 {
		t.Fatalf("emissions = %d, want none", got)
	}
}

func TestDisconnectAnnouncesAndCounts(t *testing.T) {
	relay, emitter, _ := newTestRelay(&fakeResponder{}, &inlineRunner{})
	ctx := context.Background()

	relay.HandleJoin(ctx, "a", "Alice")
	relay.HandleJoin(ctx, "b", "Bob")
	relay.HandleDisconnect(ctx, "a")

	left := emitter.byEvent(model.EventUserLeft)
	if len(left) != 1 {
		t.Fatalf("user_left emissions = %d, want 1", len(left))
	}
	if left[0].target != "!a" {
		t.Fatal("user_left must exclude the leaver")
	}
	if left[0].payload.(model.PresencePayload).Username != "Alice" {
		t.Fatalf("payload = %+v", left[0].payload)
	}

	counts := emitter.byEvent(model.EventUserCount)
	if got := counts[len(counts)-1].payload.(model.CountPayload).Count; got != 1 {
		t.Fatalf("count after disconnect = %d, want 1", got)
	}
	if relay.ConnectedCount() != 1 {
		t.Fatalf("ConnectedCount = %d, want 1", relay.ConnectedCount())
	}
}

func TestDisconnectBeforeJoinIsSilent(t *testing.T) {
	relay, emitter, _ := newTestRelay(&fakeResponder{}, &inlineRunner{})

	relay.HandleDisconnect(context.Background(), "ghost")
	relay.HandleDisconnect(context.Background(), "ghost")

	if got := len(emitter.all()); got != 0 {
		t.Fatalf("emissions = %d, want none", got)
	}
}

func TestContextBoundedAcrossManyMessages(t *testing.T) {
	relay, _, contexts := newTestRelay(&fakeResponder{}, &inlineRunner{})
	ctx := context.Background()

	relay.HandleJoin(ctx, "a", "Alice")
	for i := 0; i < 30; i++ {
		relay.HandleMessage(ctx, "a", fmt.Sprintf("msg-%d", i))
	}

	if n := contexts.Len("a"); n > 10 {
		t.Fatalf("context length = %d, exceeds cap", n)
	}

	relay.HandleDisconnect(ctx, "a")
	if n := contexts.Len("a"); n != 0 {
		t.Fatalf("context length after disconnect = %d, want 0", n)
	}
}

func TestPromptReflectsRollingHistory(t *testing.T) {
	responder := &fakeResponder{reply: "yep"}
	relay, _, _ := newTestRelay(responder, &inlineRunner{})
	ctx := context.Background()

	relay.HandleJoin(ctx, "a", "Alice")
	relay.HandleMessage(ctx, "a", "first")
	relay.HandleMessage(ctx, "a", "second")

	responder.mu.Lock()
	defer responder.mu.Unlock()
	if len(responder.prompts) != 2 {
		t.Fatalf("prompts = %d, want 2", len(responder.prompts))
	}
	if responder.prompts[0] != "User: first" {
		t.Fatalf("first prompt = %q", responder.prompts[0])
	}
	want := "User: first\nBuddy: yep\nUser: second"
	if responder.prompts[1] != want {
		t.Fatalf("second prompt = %q, want %q", responder.prompts[1], want)
	}
}

func TestScenarioTwoUsers(t *testing.T) {
	relay, emitter, _ := newTestRelay(&fakeResponder{reply: "hey!"}, &inlineRunner{})
	ctx := context.Background()

	relay.HandleJoin(ctx, "a", "Alice")
	relay.HandleJoin(ctx, "b", "Bob")
	relay.HandleMessage(ctx, "a", "hi")
	relay.HandleDisconnect(ctx, "a")

	joined := emitter.byEvent(model.EventUserJoined)
	if len(joined) != 2 {
		t.Fatalf("user_joined = %d, want 2", len(joined))
	}
	if joined[0].payload.(model.PresencePayload).Username != "Alice" {
		t.Fatal("first join should announce Alice")
	}

	um := emitter.byEvent(model.EventUserMessage)
	if len(um) != 1 || um[0].payload.(model.ChatPayload).Message != "hi" {
		t.Fatalf("user_message = %+v", um)
	}
	am := emitter.byEvent(model.EventAIMessage)
	if len(am) != 1 || am[0].payload.(model.ChatPayload).Type != "ai" {
		t.Fatalf("ai_message = %+v", am)
	}

	left := emitter.byEvent(model.EventUserLeft)
	if len(left) != 1 || left[0].payload.(model.PresencePayload).Username != "Alice" {
		t.Fatalf("user_left = %+v", left)
	}

	counts := emitter.byEvent(model.EventUserCount)
	wantCounts := []int{1, 2, 1}
	if len(counts) != len(wantCounts) {
		t.Fatalf("user_count emissions = %d, want %d", len(counts), len(wantCounts))
	}
	for i, w := range wantCounts {
		if got := counts[i].payload.(model.CountPayload).Count; got != w {
			t.Fatalf("count[%d] = %d, want %d", i, got, w)
		}
	}
}

func TestTimestampsAreRFC3339(t *testing.T) {
	relay, emitter, _ := newTestRelay(&fakeResponder{}, &inlineRunner{})

	relay.HandleJoin(context.Background(), "a", "Alice")

	pp := emitter.byEvent(model.EventUserJoined)[0].payload.(model.PresencePayload)
	if _, err := time.Parse(time.RFC3339, pp.Timestamp); err != nil {
		t.Fatalf("timestamp %q not RFC3339: %v", pp.Timestamp, err)
	}
}

func TestSlowGenerationDoesNotBlockOthers(t *testing.T) {
	// A runner that queues tasks without running them stands in for a
	// pool busy with a slow generation.
	type heldTask struct{ run func(ctx context.Context) error }
	var held []heldTask
	runner := submitFunc(func(task func(ctx context.Context) error) error {
		held = append(held, heldTask{run: task})
		return nil
	})

	relay, emitter, _ := newTestRelay(&fakeResponder{reply: "later!"}, runner)
	ctx := context.Background()

	relay.HandleJoin(ctx, "a", "Alice")
	relay.HandleJoin(ctx, "b", "Bob")
	relay.HandleMessage(ctx, "a", "slow one")

	// Bob's events keep flowing while Alice's generation is pending.
	relay.HandleMessage(ctx, "b", "quick one")
	relay.HandleTyping(ctx, "b", true)

	if got := len(emitter.byEvent(model.EventUserMessage)); got != 2 {
		t.Fatalf("user_message emissions = %d, want 2", got)
	}
	if got := len(emitter.byEvent(model.EventAIMessage)); got != 0 {
		t.Fatal("no ai_message should be emitted before the task runs")
	}

	for _, h := range held {
		_ = h.run(ctx)
	}
	if got := len(emitter.byEvent(model.EventAIMessage)); got != 2 {
		t.Fatalf("ai_message emissions after drain = %d, want 2", got)
	}
}

func TestReplyAfterDisconnectLeavesNoState(t *testing.T) {
	var held []func(ctx context.Context) error
	runner := submitFunc(func(task func(ctx context.Context) error) error {
		held = append(held, task)
		return nil
	})

	relay, emitter, contexts := newTestRelay(&fakeResponder{reply: "too late"}, runner)
	ctx := context.Background()

	relay.HandleJoin(ctx, "a", "Alice")
	relay.HandleJoin(ctx, "b", "Bob")
	relay.HandleMessage(ctx, "a", "bye")
	relay.HandleDisconnect(ctx, "a")

	for _, task := range held {
		_ = task(ctx)
	}

	// The reply still reaches the remaining participants.
	if got := len(emitter.byEvent(model.EventAIMessage)); got != 1 {
		t.Fatalf("ai_message emissions = %d, want 1", got)
	}
	// The completion must not resurrect the lock or the context that
	// the disconnect already tore down.
	relay.locksMu.Lock()
	locks := len(relay.locks)
	relay.locksMu.Unlock()
	if locks != 0 {
		t.Fatalf("locks = %d after disconnect, want 0", locks)
	}
	if got := contexts.Len("a"); got != 0 {
		t.Fatalf("context turns = %d after disconnect, want 0", got)
	}
}

type submitFunc func(task func(ctx context.Context) error) error

func (f submitFunc) Submit(task func(ctx context.Context) error) error { return f(task) }

func TestLookupErrorIsNotFound(t *testing.T) {
	relay, _, _ := newTestRelay(&fakeResponder{}, &inlineRunner{})
	_, err := relay.registry.Lookup("missing")
	if !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}
