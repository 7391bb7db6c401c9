// Package httpapi exposes the plan service over HTTP.
package httpapi

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/abhisek/opoplan/internal/logger"
)

type RouterConfig struct {
	PlanHandler   *PlanHandler
	HealthHandler *HealthHandler
	Logger        *logger.Logger
	AllowOrigins  []string
}

func NewRouter(cfg RouterConfig) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(RequestLogger(cfg.Logger))
	r.Use(CORS(cfg.AllowOrigins))

	// Health
	if cfg.HealthHandler != nil {
		r.GET("/healthcheck", cfg.HealthHandler.HealthCheck)
	}

	api := r.Group("/api")
	api.Use(RequireUser())
	if h := cfg.PlanHandler; h != nil {
		// Plans
		api.GET("/plans", h.ListPlans)
		api.POST("/plans", h.CreatePlan)
		api.POST("/plans/custom", h.CreateCustomPlan)
		api.GET("/plans/active", h.ActivePlan)
		api.GET("/plans/:id", h.GetPlan)
		api.PATCH("/plans/:id/status", h.SetStatus)
		api.POST("/plans/:id/regenerate", h.Regenerate)

		// Sessions
		api.GET("/plans/:id/sessions", h.ListSessions)
		api.PATCH("/sessions/:id", h.UpdateSession)

		// Analysis
		api.GET("/plans/:id/progress", h.Progress)
		api.GET("/plans/:id/theme-stats", h.ThemeStats)
		api.GET("/plans/:id/generation-status", h.GenerationStatus)
		api.GET("/plans/:id/equity", h.Equity)
		api.GET("/plans/:id/parts", h.Parts)

		// Custom-block drafts
		api.GET("/blocks/draft", h.GetDraft)
		api.PUT("/blocks/draft", h.PutDraft)

		// Catalog
		api.GET("/themes", h.ListThemes)
	}
	return r
}

// DefaultShutdownTimeout bounds graceful shutdown of the HTTP server.
const DefaultShutdownTimeout = 10 * time.Second

type Server struct {
	srv *http.Server
	log *logger.Logger
}

func NewServer(addr string, h http.Handler, log *logger.Logger) *Server {
	return &Server{
		srv: &http.Server{
			Addr:              addr,
			Handler:           h,
			ReadHeaderTimeout: 10 * time.Second,
		},
		log: logger.OrNop(log),
	}
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- s.srv.ListenAndServe()
	}()
	s.log.Info("http server listening", "addr", s.srv.Addr)

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), DefaultShutdownTimeout)
		defer cancel()
		if err := s.srv.Shutdown(shutdownCtx); err != nil {
			return err
		}
		s.log.Info("http server stopped")
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}
