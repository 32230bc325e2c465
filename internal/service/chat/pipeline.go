// Package chat runs the per-message pipeline: persist, fan out, involve the bot.
package chat

import (
	"context"
	"fmt"
	"time"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/zhouzirui/z-chat/backend/internal/logging"
	"github.com/zhouzirui/z-chat/backend/internal/model/chat"
	"github.com/zhouzirui/z-chat/backend/internal/service/bot"
	"github.com/zhouzirui/z-chat/backend/internal/store"
)

// Pipeline stages reported in StepError.
const (
	StagePersist    = "persist"
	StageBotPersist = "bot-persist"
)

// StepError reports which pipeline stage failed.
type StepError struct {
	Stage string
	Err   error
}

func (e *StepError) Error() string {
	return fmt.Sprintf("%s: %v", e.Stage, e.Err)
}

func (e *StepError) Unwrap() error {
	return e.Err
}

// Broadcaster delivers events to connected sessions without blocking.
type Broadcaster interface {
	EmitAll(event string, payload any)
	EmitExcept(exceptID, event string, payload any)
}

// Bot is the part of the bot engine the pipeline drives.
type Bot interface {
	HandleCommand(text string) (string, bool)
	Respond(ctx context.Context, userMessage, userName string) string
}

// Pipeline handles inbound chat and typing events.
type Pipeline struct {
	store         store.MessageStore
	bot           Bot
	out           Broadcaster
	shouldRespond bot.Predicate
	logger        *zap.Logger
	now           func() time.Time
}

// NewPipeline builds a pipeline. A nil predicate means bot.AlwaysRespond; a nil bot disables bot replies.
func NewPipeline(messages store.MessageStore, assistant Bot, out Broadcaster, shouldRespond bot.Predicate, logger *zap.Logger) *Pipeline {
	if shouldRespond == nil {
		shouldRespond = bot.AlwaysRespond
	}
	return &Pipeline{
		store:         messages,
		bot:           assistant,
		out:           out,
		shouldRespond: shouldRespond,
		logger:        logger.With(zap.String("component", "pipeline")),
		now:           func() time.Time { return time.Now().UTC() },
	}
}

// HandleMessage persists the submission, broadcasts it to everyone but the sender,
// then lets the bot answer. Delivery is best effort: on a persistence failure nothing is broadcast.
func (p *Pipeline) HandleMessage(ctx context.Context, senderID string, in chat.MessagePayload) error {
	saved, err := p.store.Create(ctx, chat.Message{
		Username:  in.Name,
		Body:      in.Message,
		CreatedAt: p.now(),
		ReplyTo:   in.ReplyTo,
	})
	if err != nil {
		return &StepError{Stage: StagePersist, Err: err}
	}

	p.logger.Info("message saved", zap.String("session", senderID), zap.String("username", saved.Username))
	p.out.EmitExcept(senderID, chat.EventChatMessage, saved.ToChatMessage())

	if p.bot == nil || !p.shouldRespond(in.Message) {
		return nil
	}

	cleaned := bot.CleanMessage(in.Message)
	if reply, ok := p.bot.HandleCommand(cleaned); ok {
		p.logger.Info("bot executed command", zap.String("command", logging.Truncate(cleaned, 30)))
		return p.publishBotReply(ctx, reply)
	}

	p.out.EmitAll(chat.EventFeedback, chat.FeedbackPayload{Feedback: bot.ThinkingStatus})
	reply := p.bot.Respond(ctx, cleaned, saved.Username)
	p.out.EmitAll(chat.EventFeedback, chat.FeedbackPayload{Feedback: ""})

	return p.publishBotReply(ctx, reply)
}

// HandleFeedback relays a typing indicator to every other session.
func (p *Pipeline) HandleFeedback(senderID string, in chat.FeedbackPayload) {
	p.out.EmitExcept(senderID, chat.EventFeedback, in)
}

func (p *Pipeline) publishBotReply(ctx context.Context, reply string) error {
	saved, err := p.store.Create(ctx, chat.Message{
		Username:  bot.Name,
		Body:      fitBody(reply),
		CreatedAt: p.now(),
	})
	if err != nil {
		return &StepError{Stage: StageBotPersist, Err: err}
	}

	p.out.EmitAll(chat.EventChatMessage, saved.ToChatMessage())
	return nil
}

// fitBody cuts bot text to the persisted length limit.
func fitBody(text string) string {
	if utf8.RuneCountInString(text) <= chat.MaxBodyLength {
		return text
	}
	r := []rune(text)
	return string(r[:chat.MaxBodyLength-1]) + "…"
}
