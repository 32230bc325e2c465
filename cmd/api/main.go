package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/zhouzirui/z-chat/backend/internal/config"
	"github.com/zhouzirui/z-chat/backend/internal/handler"
	"github.com/zhouzirui/z-chat/backend/internal/handler/analytics"
	"github.com/zhouzirui/z-chat/backend/internal/handler/messages"
	"github.com/zhouzirui/z-chat/backend/internal/handler/socket"
	"github.com/zhouzirui/z-chat/backend/internal/logging"
	"github.com/zhouzirui/z-chat/backend/internal/model/personality"
	"github.com/zhouzirui/z-chat/backend/internal/service/ai"
	"github.com/zhouzirui/z-chat/backend/internal/service/bot"
	"github.com/zhouzirui/z-chat/backend/internal/service/chat"
	"github.com/zhouzirui/z-chat/backend/internal/service/presence"
	"github.com/zhouzirui/z-chat/backend/internal/store"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "z-chat: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	// Load .env file
	envErr := godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load configuration: %w", err)
	}

	logger, err := logging.New(cfg.Log.Level, cfg.Server.Environment)
	if err != nil {
		return fmt.Errorf("build logger: %w", err)
	}
	defer logger.Sync()

	if envErr != nil {
		logger.Warn("no .env file loaded, continuing with system environment variables only", zap.Error(envErr))
	}

	st, err := openStore(ctx, cfg.Store)
	if err != nil {
		return err
	}
	logger.Info("message store ready", zap.String("driver", cfg.Store.Driver))

	catalog, err := personality.LoadCatalog(cfg.Bot.PersonalityFile)
	if err != nil {
		st.Close()
		return err
	}

	mode, ok := personality.ParseMode(cfg.Bot.Personality)
	if !ok {
		st.Close()
		return fmt.Errorf("unknown BOT_PERSONALITY %q, choose from: %s", cfg.Bot.Personality, personality.Names(catalog))
	}

	engine, err := bot.New(newCompleter(ctx, cfg.Bot, logger), catalog, bot.Options{
		HistoryLimit: cfg.Bot.HistoryLimit,
		Timeout:      cfg.Bot.Timeout,
		Personality:  mode,
	}, logger)
	if err != nil {
		st.Close()
		return err
	}

	shouldRespond := bot.AlwaysRespond
	if !cfg.Bot.AlwaysRespond {
		shouldRespond = bot.MentionOrCommand
	}

	hub := socket.NewHub(logger)
	presenceSvc := presence.NewBroadcaster(presence.NewRegistry(), hub, logger)
	pipeline := chat.NewPipeline(st, engine, hub, shouldRespond, logger)
	hub.Bind(pipeline, presenceSvc)

	router := handler.NewRouter(handler.Dependencies{
		Server:    cfg.Server,
		Socket:    hub,
		Analytics: analytics.New(st, st, presenceSvc, engine, logger),
		Messages:  messages.New(st, logger),
	})

	srv := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	logger.Info("z-chat backend listening",
		zap.String("addr", cfg.Server.Addr),
		zap.String("environment", cfg.Server.Environment),
		zap.String("personality", string(mode)))

	serveErr := runServer(ctx, srv)

	// hijacked websocket connections are not closed by srv.Shutdown
	hub.Close()
	if err := st.Close(); err != nil {
		logger.Error("close store", zap.Error(err))
	}
	logger.Info("shutdown complete")
	return serveErr
}

func openStore(ctx context.Context, cfg config.StoreConfig) (store.Store, error) {
	if cfg.Driver == config.StoreDriverMemory {
		return store.NewMemory(), nil
	}
	st, err := store.OpenSQLite(ctx, cfg.SQLitePath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite store: %w", err)
	}
	return st, nil
}

// newCompleter picks the completion backend. The server keeps running without one;
// the bot then answers every message with its fallback apology.
func newCompleter(ctx context.Context, cfg config.BotConfig, logger *zap.Logger) ai.Completer {
	if !cfg.Enabled() {
		logger.Warn("bot provider not configured, bot replies will fall back", zap.String("provider", cfg.Provider))
		return ai.Unavailable{}
	}

	switch cfg.Provider {
	case config.ProviderArk:
		chatModel, err := cfg.NewChatModel(ctx)
		if err != nil {
			logger.Warn("failed to create Ark chat model", zap.Error(err))
			return ai.Unavailable{}
		}
		svc, err := ai.NewService(ctx, chatModel, logger)
		if err != nil {
			logger.Warn("failed to build completion chain", zap.Error(err))
			return ai.Unavailable{}
		}
		logger.Info("completion service initialized", zap.String("provider", cfg.Provider), zap.String("model", cfg.Model))
		return svc

	case config.ProviderGemini:
		g, err := ai.NewGemini(ctx, cfg.GeminiAPIKey, cfg.GeminiModel, logger)
		if err != nil {
			logger.Warn("failed to create Gemini client", zap.Error(err))
			return ai.Unavailable{}
		}
		logger.Info("completion service initialized", zap.String("provider", cfg.Provider), zap.String("model", cfg.GeminiModel))
		return g
	}

	return ai.Unavailable{}
}

func runServer(ctx context.Context, srv *http.Server) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
		err := <-errCh
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}
