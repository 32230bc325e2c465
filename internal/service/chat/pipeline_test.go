package chat

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/zhouzirui/z-chat/backend/internal/model/chat"
	"github.com/zhouzirui/z-chat/backend/internal/model/personality"
	"github.com/zhouzirui/z-chat/backend/internal/service/ai"
	"github.com/zhouzirui/z-chat/backend/internal/service/bot"
	"github.com/zhouzirui/z-chat/backend/internal/store"
)

// journal records persistence and broadcast steps in the order they happen.
type journal struct {
	mu    sync.Mutex
	steps []string
}

func (j *journal) add(step string) {
	j.mu.Lock()
	j.steps = append(j.steps, step)
	j.mu.Unlock()
}

type emitted struct {
	except  string
	event   string
	payload any
}

type recordingBroadcaster struct {
	j      *journal
	mu     sync.Mutex
	events []emitted
}

func (r *recordingBroadcaster) EmitAll(event string, payload any) {
	r.record(emitted{event: event, payload: payload})
}

func (r *recordingBroadcaster) EmitExcept(exceptID, event string, payload any) {
	r.record(emitted{except: exceptID, event: event, payload: payload})
}

func (r *recordingBroadcaster) record(e emitted) {
	r.mu.Lock()
	r.events = append(r.events, e)
	r.mu.Unlock()

	step := "emit:" + e.event
	switch p := e.payload.(type) {
	case chat.ChatMessage:
		step += ":" + p.Name
	case chat.FeedbackPayload:
		step += ":" + p.Feedback
	}
	r.j.add(step)
}

func (r *recordingBroadcaster) chatMessages() []emitted {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []emitted
	for _, e := range r.events {
		if e.event == chat.EventChatMessage {
			out = append(out, e)
		}
	}
	return out
}

// journaledStore wraps the memory store and can fail selected authors.
type journaledStore struct {
	*store.Memory
	j      *journal
	failOn string
}

func (s *journaledStore) Create(ctx context.Context, msg chat.Message) (chat.Message, error) {
	if s.failOn != "" && msg.Username == s.failOn {
		s.j.add("persist-failed:" + msg.Username)
		return chat.Message{}, errors.New("store unreachable")
	}
	saved, err := s.Memory.Create(ctx, msg)
	if err == nil {
		s.j.add("persist:" + saved.Username)
	}
	return saved, err
}

type fakeCompleter struct {
	j     *journal
	reply string
	err   error
	calls int
}

func (f *fakeCompleter) Complete(_ context.Context, req ai.Request) (string, error) {
	f.calls++
	f.j.add("complete")
	return f.reply, f.err
}

type fixture struct {
	j         *journal
	store     *journaledStore
	out       *recordingBroadcaster
	completer *fakeCompleter
	engine    *bot.Engine
	pipeline  *Pipeline
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	j := &journal{}
	f := &fixture{
		j:         j,
		store:     &journaledStore{Memory: store.NewMemory(), j: j},
		out:       &recordingBroadcaster{j: j},
		completer: &fakeCompleter{j: j, reply: "Hi Alice!"},
	}

	engine, err := bot.New(f.completer, personality.NewMemoryCatalog(personality.Seed()), bot.Options{}, zap.NewNop())
	require.NoError(t, err)
	f.engine = engine
	f.pipeline = NewPipeline(f.store, engine, f.out, nil, zap.NewNop())
	return f
}

func TestHandleMessageFullSequence(t *testing.T) {
	f := newFixture(t)

	err := f.pipeline.HandleMessage(context.Background(), "sess-alice", chat.MessagePayload{Name: "Alice", Message: "hello"})
	require.NoError(t, err)

	assert.Equal(t, []string{
		"persist:Alice",
		"emit:chat-message:Alice",
		"emit:feedback:" + bot.ThinkingStatus,
		"complete",
		"emit:feedback:",
		"persist:" + bot.Name,
		"emit:chat-message:" + bot.Name,
	}, f.j.steps)

	msgs := f.out.chatMessages()
	require.Len(t, msgs, 2)
	assert.Equal(t, "sess-alice", msgs[0].except)
	assert.Equal(t, "hello", msgs[0].payload.(chat.ChatMessage).Message)
	assert.Empty(t, msgs[1].except, "bot reply goes to everyone, sender included")
	assert.Equal(t, "Hi Alice!", msgs[1].payload.(chat.ChatMessage).Message)

	stored, err := f.store.Recent(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, stored, 2)
	assert.Equal(t, "Alice", stored[1].Username)
	assert.Equal(t, "hello", stored[1].Body)
	assert.Equal(t, bot.Name, stored[0].Username)
}

func TestHandleMessageCommandSkipsCompletion(t *testing.T) {
	f := newFixture(t)

	err := f.pipeline.HandleMessage(context.Background(), "s1", chat.MessagePayload{Name: "Alice", Message: "@bot /help"})
	require.NoError(t, err)

	assert.Zero(t, f.completer.calls)
	assert.Equal(t, []string{
		"persist:Alice",
		"emit:chat-message:Alice",
		"persist:" + bot.Name,
		"emit:chat-message:" + bot.Name,
	}, f.j.steps)

	reply := f.out.chatMessages()[1].payload.(chat.ChatMessage)
	assert.Contains(t, reply.Message, "friendly")
}

func TestHandleMessagePersistFailureDropsSilently(t *testing.T) {
	f := newFixture(t)
	f.store.failOn = "Alice"

	err := f.pipeline.HandleMessage(context.Background(), "s1", chat.MessagePayload{Name: "Alice", Message: "hello"})

	var stepErr *StepError
	require.ErrorAs(t, err, &stepErr)
	assert.Equal(t, StagePersist, stepErr.Stage)
	assert.Empty(t, f.out.events)
	assert.Zero(t, f.completer.calls)
}

func TestHandleMessageInvalidPayload(t *testing.T) {
	f := newFixture(t)

	err := f.pipeline.HandleMessage(context.Background(), "s1", chat.MessagePayload{Name: "", Message: "hello"})
	require.ErrorIs(t, err, chat.ErrInvalidMessage)
	assert.Empty(t, f.out.events)
}

func TestHandleMessageCompletionFailureBroadcastsFallback(t *testing.T) {
	f := newFixture(t)
	f.completer.err = errors.New("503")

	err := f.pipeline.HandleMessage(context.Background(), "s1", chat.MessagePayload{Name: "Alice", Message: "hello"})
	require.NoError(t, err)

	msgs := f.out.chatMessages()
	require.Len(t, msgs, 2)
	assert.Equal(t, bot.FallbackReply, msgs[1].payload.(chat.ChatMessage).Message)

	history := f.engine.History()
	require.Len(t, history, 1)
	assert.Equal(t, ai.RoleUser, history[0].Role)
}

func TestHandleMessageBotPersistFailure(t *testing.T) {
	f := newFixture(t)
	f.store.failOn = bot.Name

	err := f.pipeline.HandleMessage(context.Background(), "s1", chat.MessagePayload{Name: "Alice", Message: "hello"})

	var stepErr *StepError
	require.ErrorAs(t, err, &stepErr)
	assert.Equal(t, StageBotPersist, stepErr.Stage)
	assert.Len(t, f.out.chatMessages(), 1, "bot reply must not be broadcast without persistence")
	assert.Equal(t, "emit:feedback:", f.j.steps[len(f.j.steps)-2], "thinking status cleared before the failed reply")
}

func TestHandleMessagePredicateDeclines(t *testing.T) {
	f := newFixture(t)
	f.pipeline = NewPipeline(f.store, f.engine, f.out, bot.MentionOrCommand, zap.NewNop())

	require.NoError(t, f.pipeline.HandleMessage(context.Background(), "s1", chat.MessagePayload{Name: "Alice", Message: "just chatting"}))
	assert.Zero(t, f.completer.calls)
	assert.Len(t, f.out.chatMessages(), 1)

	require.NoError(t, f.pipeline.HandleMessage(context.Background(), "s1", chat.MessagePayload{Name: "Alice", Message: "hey bot what's new"}))
	assert.Equal(t, 1, f.completer.calls)
}

func TestHandleMessageKeepsReplySnapshot(t *testing.T) {
	f := newFixture(t)
	f.pipeline = NewPipeline(f.store, nil, f.out, nil, zap.NewNop())

	reply := &chat.ReplyTo{Username: "Bob", Message: "original"}
	require.NoError(t, f.pipeline.HandleMessage(context.Background(), "s1", chat.MessagePayload{Name: "Alice", Message: "agreed", ReplyTo: reply}))
	reply.Message = "edited later"

	stored, err := f.store.Recent(context.Background(), 1)
	require.NoError(t, err)
	require.NotNil(t, stored[0].ReplyTo)
	assert.Equal(t, "original", stored[0].ReplyTo.Message)
	assert.Equal(t, "original", f.out.chatMessages()[0].payload.(chat.ChatMessage).ReplyTo.Message)
}

func TestLongBotReplyIsCutToFit(t *testing.T) {
	f := newFixture(t)
	f.completer.reply = strings.Repeat("x", chat.MaxBodyLength+200)

	require.NoError(t, f.pipeline.HandleMessage(context.Background(), "s1", chat.MessagePayload{Name: "Alice", Message: "essay please"}))

	msgs := f.out.chatMessages()
	require.Len(t, msgs, 2)
	assert.Equal(t, chat.MaxBodyLength, len([]rune(msgs[1].payload.(chat.ChatMessage).Message)))
}

func TestHandleFeedbackRelaysToOthers(t *testing.T) {
	f := newFixture(t)

	f.pipeline.HandleFeedback("s1", chat.FeedbackPayload{Feedback: "Alice is typing..."})

	require.Len(t, f.out.events, 1)
	assert.Equal(t, "s1", f.out.events[0].except)
	assert.Equal(t, chat.FeedbackPayload{Feedback: "Alice is typing..."}, f.out.events[0].payload)
}
