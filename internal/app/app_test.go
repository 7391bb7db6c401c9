package app

import (
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/gin-gonic/gin"

	"github.com/abhisek/opoplan/internal/config"
)

func TestNewWiresServiceAndRouter(t *testing.T) {
	gin.SetMode(gin.TestMode)
	cfg := config.DefaultConfig()
	cfg.DBPath = filepath.Join(t.TempDir(), "nested", "opoplan.db")

	a, err := New(context.Background(), cfg, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer a.Close()

	if a.Plans == nil || a.Store == nil {
		t.Fatal("service or store not wired")
	}
	w := a.StartWorker()
	if w != a.StartWorker() {
		t.Fatal("StartWorker must return the same pool")
	}

	rec := httptest.NewRecorder()
	a.Router().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthcheck", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("healthcheck: got=%d", rec.Code)
	}
}

func TestNewFailsOnBadRedisURL(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.DBPath = filepath.Join(t.TempDir(), "opoplan.db")
	cfg.RedisURL = "not-a-url://"

	if _, err := New(context.Background(), cfg, nil); err == nil {
		t.Fatal("expected an error for a malformed redis url")
	}
}

func TestServeStopsOnCancel(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.DBPath = filepath.Join(t.TempDir(), "opoplan.db")
	cfg.HTTPAddr = "127.0.0.1:0"

	a, err := New(context.Background(), cfg, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer a.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := a.Serve(ctx); err != nil {
		t.Fatalf("Serve after cancel: %v", err)
	}
}
