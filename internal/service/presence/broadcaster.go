package presence

import (
	"sync"

	"go.uber.org/zap"

	"github.com/zhouzirui/z-chat/backend/internal/model/chat"
)

// Emitter delivers an event to every connected session. It must not block.
type Emitter interface {
	EmitAll(event string, payload any)
}

// Broadcaster keeps the registry current and announces the count after each change.
type Broadcaster struct {
	// mu orders each mutation with its announcement.
	mu       sync.Mutex
	registry *Registry
	out      Emitter
	logger   *zap.Logger
}

// NewBroadcaster wires a registry to an emitter.
func NewBroadcaster(registry *Registry, out Emitter, logger *zap.Logger) *Broadcaster {
	return &Broadcaster{
		registry: registry,
		out:      out,
		logger:   logger.With(zap.String("component", "presence")),
	}
}

// Connect registers id and broadcasts the new total to everyone, id included.
func (b *Broadcaster) Connect(id string) int {
	b.mu.Lock()
	defer b.mu.Unlock()

	if !b.registry.Add(id) {
		return b.registry.Count()
	}
	total := b.registry.Count()
	b.logger.Info("session connected", zap.String("session", id), zap.Int("total", total))
	b.out.EmitAll(chat.EventClientsTotal, total)
	return total
}

// Disconnect removes id and broadcasts the new total to the remaining sessions.
func (b *Broadcaster) Disconnect(id string) int {
	b.mu.Lock()
	defer b.mu.Unlock()

	if !b.registry.Remove(id) {
		return b.registry.Count()
	}
	total := b.registry.Count()
	b.logger.Info("session disconnected", zap.String("session", id), zap.Int("total", total))
	b.out.EmitAll(chat.EventClientsTotal, total)
	return total
}

// Count returns the number of live sessions.
func (b *Broadcaster) Count() int {
	return b.registry.Count()
}
