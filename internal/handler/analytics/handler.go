package analytics

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/zhouzirui/z-chat/backend/internal/model/analytics"
	"github.com/zhouzirui/z-chat/backend/internal/model/chat"
	"github.com/zhouzirui/z-chat/backend/internal/model/personality"
	"github.com/zhouzirui/z-chat/backend/internal/store"
	"github.com/zhouzirui/z-chat/backend/pkg/utils"
)

// aiConfidence is a fixed dashboard figure.
const aiConfidence = 0.98

// SessionCounter reports live websocket sessions.
type SessionCounter interface {
	Count() int
}

// LatencySource reports the bot's mean completion latency.
type LatencySource interface {
	AverageLatency() time.Duration
}

// Handler 分析接口的HTTP处理器
type Handler struct {
	messages store.MessageStore
	events   store.EventStore
	sessions SessionCounter
	latency  LatencySource
	logger   *zap.Logger
	now      func() time.Time
}

// New 创建分析处理器
func New(messages store.MessageStore, events store.EventStore, sessions SessionCounter, latency LatencySource, logger *zap.Logger) *Handler {
	return &Handler{
		messages: messages,
		events:   events,
		sessions: sessions,
		latency:  latency,
		logger:   logger.With(zap.String("component", "analytics")),
		now:      time.Now,
	}
}

// RegisterRoutes 注册分析相关的路由
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/analytics/stats", h.handleStats)
	r.Post("/analytics/track", h.handleTrack)
}

func (h *Handler) handleStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.collect(r.Context())
	if err != nil {
		h.logger.Error("collect stats", zap.Error(err))
		utils.RespondError(w, http.StatusInternalServerError, "failed to load stats")
		return
	}
	utils.RespondJSON(w, http.StatusOK, stats)
}

func (h *Handler) collect(ctx context.Context) (analytics.Stats, error) {
	now := h.now()
	midnight := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())

	var stats analytics.Stats
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		n, err := h.messages.Count(gctx, chat.Filter{Since: midnight})
		stats.InteractionsToday = n
		return err
	})
	g.Go(func() error {
		n, err := h.messages.Count(gctx, chat.Filter{UsernameContains: personality.BotName})
		stats.AIInteractions = n
		return err
	})
	if err := g.Wait(); err != nil {
		return analytics.Stats{}, err
	}

	if h.sessions != nil {
		stats.ActiveSessions = h.sessions.Count()
	}
	if h.latency != nil {
		stats.AIResponseTime = h.latency.AverageLatency().Milliseconds()
	}
	stats.AIConfidence = aiConfidence
	return stats, nil
}

func (h *Handler) handleTrack(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		EventType string         `json:"eventType"`
		Metadata  map[string]any `json:"metadata"`
	}

	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	event, err := h.events.Track(r.Context(), analytics.Event{
		EventType: payload.EventType,
		Metadata:  payload.Metadata,
	})
	if errors.Is(err, store.ErrInvalidEvent) {
		utils.RespondError(w, http.StatusBadRequest, "eventType is required")
		return
	}
	if err != nil {
		h.logger.Error("track event", zap.String("eventType", payload.EventType), zap.Error(err))
		utils.RespondError(w, http.StatusInternalServerError, "failed to track event")
		return
	}

	h.logger.Debug("event tracked", zap.String("eventType", event.EventType), zap.String("id", event.ID))
	utils.RespondSuccess(w, http.StatusCreated, nil)
}
