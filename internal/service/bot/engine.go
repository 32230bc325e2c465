// Package bot owns the assistant's conversation window and personality.
package bot

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/zhouzirui/z-chat/backend/internal/logging"
	"github.com/zhouzirui/z-chat/backend/internal/model/personality"
	"github.com/zhouzirui/z-chat/backend/internal/service/ai"
)

const (
	// Name authors every bot message.
	Name = "AI Assistant 🤖"
	// ThinkingStatus is broadcast as feedback while a completion runs.
	ThinkingStatus = "AI Assistant is thinking..."
	// FallbackReply replaces the answer when the completion call fails.
	FallbackReply = "Sorry, I'm having trouble connecting right now. Please try again later."
	// EmptyReply replaces a successful but blank completion.
	EmptyReply = "I apologize, but I couldn't generate a response."

	DefaultHistoryLimit = 10
)

// Options tunes a new Engine.
type Options struct {
	HistoryLimit int
	Timeout      time.Duration
	Personality  personality.Mode
}

// Engine is one shared conversational context. Create one per chat room; the zero value is not usable.
type Engine struct {
	completer ai.Completer
	catalog   personality.Catalog
	logger    *zap.Logger
	limit     int
	timeout   time.Duration

	// seq serializes every sequence that rewrites the window so history stays sequentially consistent.
	seq sync.Mutex

	mu      sync.RWMutex
	mode    personality.Mode
	window  []ai.Turn
	calls   int64
	latency time.Duration
}

// New creates an Engine starting in opts.Personality (friendly when empty).
func New(completer ai.Completer, catalog personality.Catalog, opts Options, logger *zap.Logger) (*Engine, error) {
	if completer == nil {
		return nil, errors.New("bot: completer is required")
	}
	if catalog == nil {
		return nil, errors.New("bot: personality catalog is required")
	}

	mode := opts.Personality
	if mode == "" {
		mode = personality.Friendly
	}
	if _, ok := catalog.Find(mode); !ok {
		return nil, fmt.Errorf("bot: unknown personality %q", mode)
	}

	limit := opts.HistoryLimit
	if limit <= 0 {
		limit = DefaultHistoryLimit
	}

	return &Engine{
		completer: completer,
		catalog:   catalog,
		logger:    logger.With(zap.String("component", "bot")),
		limit:     limit,
		timeout:   opts.Timeout,
		mode:      mode,
		window:    make([]ai.Turn, 0, limit+1),
	}, nil
}

// Respond records the user's turn, asks the completer for a reply and records that too.
// On failure it returns FallbackReply and leaves only the user turn in the window.
func (e *Engine) Respond(ctx context.Context, userMessage, userName string) string {
	e.seq.Lock()
	defer e.seq.Unlock()

	e.mu.Lock()
	e.push(ai.Turn{Role: ai.RoleUser, Content: fmt.Sprintf("%s: %s", userName, userMessage)})
	mode := e.mode
	history := slices.Clone(e.window)
	e.mu.Unlock()

	profile, _ := e.catalog.Find(mode)

	if e.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.timeout)
		defer cancel()
	}

	started := time.Now()
	text, err := e.completer.Complete(ctx, ai.Request{
		SystemPrompt: profile.Prompt,
		Temperature:  profile.Temperature,
		MaxTokens:    profile.MaxTokens,
		History:      history,
	})
	elapsed := time.Since(started)

	if err != nil {
		e.logger.Error("completion failed", zap.String("personality", string(mode)), zap.Duration("elapsed", elapsed), zap.Error(err))
		return FallbackReply
	}

	if strings.TrimSpace(text) == "" {
		text = EmptyReply
	}

	e.mu.Lock()
	e.push(ai.Turn{Role: ai.RoleAssistant, Content: text})
	e.calls++
	e.latency += elapsed
	e.mu.Unlock()

	e.logger.Info("bot responded", zap.String("personality", string(mode)), zap.Duration("elapsed", elapsed), zap.String("reply", logging.Truncate(text, 50)))
	return text
}

// HandleCommand executes text when it is a bot command. ok is false for anything else.
func (e *Engine) HandleCommand(text string) (reply string, ok bool) {
	cmd := strings.ToLower(strings.TrimSpace(text))

	switch {
	case cmd == "/help" || cmd == "!help":
		e.mu.RLock()
		mode := e.mode
		e.mu.RUnlock()
		return helpText(personality.Names(e.catalog), mode), true

	case cmd == "/clear":
		e.seq.Lock()
		e.mu.Lock()
		e.window = e.window[:0]
		e.mu.Unlock()
		e.seq.Unlock()
		return "✅ Conversation history cleared! Starting fresh.", true

	case strings.HasPrefix(cmd, "/personality"):
		return e.switchPersonality(cmd), true
	}

	return "", false
}

func (e *Engine) switchPersonality(cmd string) string {
	var requested string
	if parts := strings.Fields(cmd); len(parts) > 1 {
		requested = parts[1]
	}

	mode, valid := personality.ParseMode(requested)
	var profile personality.Profile
	if valid {
		profile, valid = e.catalog.Find(mode)
	}

	e.seq.Lock()
	defer e.seq.Unlock()
	e.mu.Lock()
	defer e.mu.Unlock()

	if !valid {
		return fmt.Sprintf("❌ Invalid personality. Choose from: %s\nCurrent: **%s**", personality.Names(e.catalog), e.mode)
	}

	e.mode = mode
	e.window = e.window[:0]
	return fmt.Sprintf("✅ Personality changed to **%s**! %s", mode, profile.Emoji)
}

// push appends turn and evicts the oldest entries beyond the limit. Callers hold mu.
func (e *Engine) push(turn ai.Turn) {
	e.window = append(e.window, turn)
	if excess := len(e.window) - e.limit; excess > 0 {
		e.window = slices.Clone(e.window[excess:])
	}
}

// Mode returns the current personality.
func (e *Engine) Mode() personality.Mode {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.mode
}

// History returns a copy of the turn window, oldest first.
func (e *Engine) History() []ai.Turn {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return slices.Clone(e.window)
}

// AverageLatency is the mean duration of successful completions, zero before the first.
func (e *Engine) AverageLatency() time.Duration {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if e.calls == 0 {
		return 0
	}
	return e.latency / time.Duration(e.calls)
}

func helpText(names string, mode personality.Mode) string {
	return fmt.Sprintf(`**🤖 Bot Commands:**
• Mention me: @bot, @ai, hey bot, hi ai
• /personality [mode] - Change my personality
• /clear - Clear conversation history
• /help - Show this help

**Personalities:** %s
Current: **%s** 🎭`, names, mode)
}
