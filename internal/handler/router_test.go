package handler

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"go.uber.org/zap"

	"github.com/zhouzirui/z-chat/backend/internal/config"
	"github.com/zhouzirui/z-chat/backend/internal/handler/analytics"
	"github.com/zhouzirui/z-chat/backend/internal/handler/messages"
	"github.com/zhouzirui/z-chat/backend/internal/handler/socket"
	"github.com/zhouzirui/z-chat/backend/internal/store"
)

func newTestRouter(t *testing.T, server config.ServerConfig) http.Handler {
	t.Helper()
	logger := zap.NewNop()
	mem := store.NewMemory()
	hub := socket.NewHub(logger)
	t.Cleanup(hub.Close)

	return NewRouter(Dependencies{
		Server:    server,
		Socket:    hub,
		Analytics: analytics.New(mem, mem, hub, nil, logger),
		Messages:  messages.New(mem, logger),
	})
}

func TestHealth(t *testing.T) {
	r := newTestRouter(t, config.ServerConfig{Environment: "development"})

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var body map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body["status"] != "ok" || body["environment"] != "development" {
		t.Fatalf("unexpected body %v", body)
	}
}

func TestAPIRoutesMounted(t *testing.T) {
	r := newTestRouter(t, config.ServerConfig{Environment: "development"})

	for _, target := range []string{"/api/messages", "/api/analytics/stats"} {
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, target, nil))
		if rec.Code != http.StatusOK {
			t.Fatalf("%s: expected 200, got %d", target, rec.Code)
		}
		if rec.Header().Get("Access-Control-Allow-Origin") == "" {
			t.Fatalf("%s: missing CORS header", target)
		}
	}
}

func TestSocketUnavailableUntilBound(t *testing.T) {
	r := newTestRouter(t, config.ServerConfig{})

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/ws", nil))
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", rec.Code)
	}
}

func TestStaticClientOnlyInProduction(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "index.html"), []byte("<html>chat</html>"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.MkdirAll(filepath.Join(dir, "assets"), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "assets", "app.js"), []byte("console.log(1)"), 0o644); err != nil {
		t.Fatal(err)
	}

	dev := newTestRouter(t, config.ServerConfig{Environment: "development", StaticDir: dir})
	rec := httptest.NewRecorder()
	dev.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/rooms/general", nil))
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 outside production, got %d", rec.Code)
	}

	prod := newTestRouter(t, config.ServerConfig{Environment: "production", StaticDir: dir})
	cases := map[string]string{
		"/":              "<html>chat</html>",
		"/rooms/general": "<html>chat</html>",
		"/assets/app.js": "console.log(1)",
	}
	for target, want := range cases {
		rec := httptest.NewRecorder()
		prod.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, target, nil))
		got, _ := io.ReadAll(rec.Body)
		if rec.Code != http.StatusOK || !strings.Contains(string(got), want) {
			t.Fatalf("%s: expected %q, got %d %q", target, want, rec.Code, got)
		}
	}

	rec = httptest.NewRecorder()
	prod.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), "production") {
		t.Fatalf("health must win over the static fallback")
	}
}
