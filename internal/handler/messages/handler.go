package messages

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/zhouzirui/z-chat/backend/internal/model/chat"
	"github.com/zhouzirui/z-chat/backend/internal/store"
	"github.com/zhouzirui/z-chat/backend/pkg/utils"
)

const (
	defaultLimit = 50
	maxLimit     = 200
)

// Handler serves chat history to clients that join late.
type Handler struct {
	messages store.MessageStore
	logger   *zap.Logger
}

// New 创建历史消息处理器
func New(messages store.MessageStore, logger *zap.Logger) *Handler {
	return &Handler{
		messages: messages,
		logger:   logger.With(zap.String("component", "messages")),
	}
}

// RegisterRoutes 注册消息相关的路由
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/messages", h.handleRecent)
}

// handleRecent returns persisted records ({username, message, timestamp, replyTo}) newest first;
// clients reverse them for display.
func (h *Handler) handleRecent(w http.ResponseWriter, r *http.Request) {
	limit := defaultLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			utils.RespondError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = min(n, maxLimit)
	}

	recent, err := h.messages.Recent(r.Context(), limit)
	if err != nil {
		h.logger.Error("load recent messages", zap.Int("limit", limit), zap.Error(err))
		utils.RespondError(w, http.StatusInternalServerError, "failed to load messages")
		return
	}

	if recent == nil {
		recent = []chat.Message{}
	}
	utils.RespondSuccess(w, http.StatusOK, recent)
}
