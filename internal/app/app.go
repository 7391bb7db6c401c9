// Package app wires the store, plan service, generation worker and HTTP API
// into one runnable unit.
package app

import (
	"context"
	"fmt"

	"github.com/gin-gonic/gin"
	"golang.org/x/sync/errgroup"

	"github.com/abhisek/opoplan/internal/config"
	"github.com/abhisek/opoplan/internal/httpapi"
	"github.com/abhisek/opoplan/internal/logger"
	"github.com/abhisek/opoplan/internal/plans"
	"github.com/abhisek/opoplan/internal/store"
)

type App struct {
	Log   *logger.Logger
	Cfg   config.Config
	Store *store.Store
	Plans *plans.Service

	worker *plans.Worker
	redis  *plans.RedisLocker
}

// New opens the database and builds the plan service. Generation runs
// inline until StartWorker is called.
func New(ctx context.Context, cfg config.Config, log *logger.Logger) (*App, error) {
	log = logger.OrNop(log)

	dbPath := cfg.DBPath
	if dbPath == "" {
		p, err := store.DefaultDBPath()
		if err != nil {
			return nil, fmt.Errorf("resolve DB path: %w", err)
		}
		dbPath = p
	} else if err := store.EnsureDir(dbPath); err != nil {
		return nil, fmt.Errorf("create DB dir: %w", err)
	}
	st, err := store.Open(dbPath, store.WithBatchSize(cfg.BatchSize))
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}
	log.Debug("store opened", "path", dbPath)

	a := &App{Log: log, Cfg: cfg, Store: st}

	var locker plans.Locker
	if cfg.RedisURL != "" {
		rl, err := plans.NewRedisLocker(ctx, cfg.RedisURL, plans.DefaultLockTTL)
		if err != nil {
			st.Close()
			return nil, fmt.Errorf("init generation lock: %w", err)
		}
		a.redis = rl
		locker = rl
		log.Info("using redis generation lock")
	}

	a.Plans = plans.NewService(plans.Deps{
		Themes:          st.ThemeRepo(),
		Plans:           st.PlanRepo(),
		Sessions:        st.SessionRepo(),
		Drafts:          st.DraftRepo(),
		Config:          cfg.Schedule,
		EquityThreshold: cfg.EquityThreshold,
		Logger:          log,
		Locker:          locker,
	})
	return a, nil
}

// StartWorker attaches a generation worker pool to the service. The pool
// processes tasks once Serve (or the worker's Run) is called.
func (a *App) StartWorker() *plans.Worker {
	if a.worker == nil {
		a.worker = plans.NewWorker(a.Plans, a.Store.PlanRepo(), a.Cfg.Workers, a.Log)
		a.Plans.SetQueue(a.worker)
	}
	return a.worker
}

// Router builds the HTTP handler.
func (a *App) Router() *gin.Engine {
	return httpapi.NewRouter(httpapi.RouterConfig{
		PlanHandler:   httpapi.NewPlanHandler(a.Plans),
		HealthHandler: httpapi.NewHealthHandler(a.Store),
		Logger:        a.Log,
	})
}

// Serve runs the worker pool and the HTTP server until ctx is cancelled or
// either of them fails.
func (a *App) Serve(ctx context.Context) error {
	w := a.StartWorker()
	srv := httpapi.NewServer(a.Cfg.HTTPAddr, a.Router(), a.Log)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return w.Run(gctx) })
	g.Go(func() error { return srv.Run(gctx) })
	return g.Wait()
}

func (a *App) Close() {
	if a == nil {
		return
	}
	if a.redis != nil {
		_ = a.redis.Close()
	}
	if a.Store != nil {
		_ = a.Store.Close()
	}
	a.Log.Sync()
}
