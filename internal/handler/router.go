package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/zhouzirui/z-chat/backend/internal/config"
	"github.com/zhouzirui/z-chat/backend/internal/handler/analytics"
	"github.com/zhouzirui/z-chat/backend/internal/handler/messages"
	middlewarePkg "github.com/zhouzirui/z-chat/backend/internal/middleware"
	"github.com/zhouzirui/z-chat/backend/pkg/utils"
)

// Dependencies 汇总路由需要的处理器。
type Dependencies struct {
	Server    config.ServerConfig
	Socket    http.Handler
	Analytics *analytics.Handler
	Messages  *messages.Handler
}

// NewRouter wires HTTP routes to core services.
func NewRouter(deps Dependencies) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middlewarePkg.CORS)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		utils.RespondJSON(w, http.StatusOK, map[string]string{
			"status":      "ok",
			"environment": deps.Server.Environment,
		})
	})

	if deps.Socket != nil {
		r.Get("/ws", deps.Socket.ServeHTTP)
	}

	r.Route("/api", func(api chi.Router) {
		if deps.Analytics != nil {
			deps.Analytics.RegisterRoutes(api)
		}
		if deps.Messages != nil {
			deps.Messages.RegisterRoutes(api)
		}
	})

	if deps.Server.Production() {
		r.Get("/*", spaHandler(deps.Server.StaticDir))
	}

	return r
}
