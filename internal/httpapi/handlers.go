package httpapi

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/abhisek/opoplan/internal/plans"
	"github.com/abhisek/opoplan/internal/schedule"
	"github.com/abhisek/opoplan/internal/store"
)

// MaxSessionPage caps the limit query parameter of session listings.
const MaxSessionPage = 1000

type PlanHandler struct {
	plans *plans.Service
}

func NewPlanHandler(svc *plans.Service) *PlanHandler {
	return &PlanHandler{plans: svc}
}

// POST /api/plans
func (h *PlanHandler) CreatePlan(c *gin.Context) {
	var req plans.CreateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_body", err)
		return
	}
	res, err := h.plans.Create(c.Request.Context(), userID(c), req)
	if err != nil {
		RespondServiceError(c, err)
		return
	}
	c.JSON(http.StatusCreated, res)
}

// POST /api/plans/custom
func (h *PlanHandler) CreateCustomPlan(c *gin.Context) {
	var req plans.CustomRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_body", err)
		return
	}
	res, err := h.plans.CreateCustom(c.Request.Context(), userID(c), req)
	if err != nil {
		RespondServiceError(c, err)
		return
	}
	c.JSON(http.StatusCreated, res)
}

// GET /api/plans
func (h *PlanHandler) ListPlans(c *gin.Context) {
	list, err := h.plans.Plans(c.Request.Context(), userID(c))
	if err != nil {
		RespondServiceError(c, err)
		return
	}
	if list == nil {
		list = []store.Plan{}
	}
	RespondOK(c, gin.H{"plans": list})
}

// GET /api/plans/active
func (h *PlanHandler) ActivePlan(c *gin.Context) {
	p, err := h.plans.ActivePlan(c.Request.Context(), userID(c))
	if err != nil {
		RespondServiceError(c, err)
		return
	}
	RespondOK(c, gin.H{"plan": p})
}

// GET /api/plans/:id
func (h *PlanHandler) GetPlan(c *gin.Context) {
	p, err := h.plans.Plan(c.Request.Context(), userID(c), c.Param("id"))
	if err != nil {
		RespondServiceError(c, err)
		return
	}
	RespondOK(c, gin.H{"plan": p})
}

// PATCH /api/plans/:id/status
func (h *PlanHandler) SetStatus(c *gin.Context) {
	var req plans.StatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_body", err)
		return
	}
	p, err := h.plans.SetStatus(c.Request.Context(), userID(c), c.Param("id"), req)
	if err != nil {
		RespondServiceError(c, err)
		return
	}
	RespondOK(c, gin.H{"plan": p})
}

// POST /api/plans/:id/regenerate
func (h *PlanHandler) Regenerate(c *gin.Context) {
	p, err := h.plans.Regenerate(c.Request.Context(), userID(c), c.Param("id"))
	if err != nil {
		RespondServiceError(c, err)
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"plan": p})
}

// GET /api/plans/:id/sessions?from=&to=&type=&status=&limit=&offset=
func (h *PlanHandler) ListSessions(c *gin.Context) {
	f, err := sessionFilter(c)
	if err != nil {
		RespondServiceError(c, err)
		return
	}
	sessions, err := h.plans.Sessions(c.Request.Context(), userID(c), c.Param("id"), f)
	if err != nil {
		RespondServiceError(c, err)
		return
	}
	if sessions == nil {
		sessions = []schedule.Session{}
	}
	RespondOK(c, gin.H{"sessions": sessions, "count": len(sessions)})
}

// PATCH /api/sessions/:id
func (h *PlanHandler) UpdateSession(c *gin.Context) {
	var req plans.UpdateSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_body", err)
		return
	}
	s, err := h.plans.UpdateSession(c.Request.Context(), userID(c), c.Param("id"), req)
	if err != nil {
		RespondServiceError(c, err)
		return
	}
	RespondOK(c, gin.H{"session": s})
}

// GET /api/plans/:id/progress
func (h *PlanHandler) Progress(c *gin.Context) {
	report(c, "progress", func(ctx context.Context, uid, id string) (any, error) {
		return h.plans.Progress(ctx, uid, id)
	})
}

// GET /api/plans/:id/theme-stats
func (h *PlanHandler) ThemeStats(c *gin.Context) {
	report(c, "themes", func(ctx context.Context, uid, id string) (any, error) {
		return h.plans.ThemeStats(ctx, uid, id)
	})
}

// GET /api/plans/:id/generation-status
func (h *PlanHandler) GenerationStatus(c *gin.Context) {
	report(c, "generation", func(ctx context.Context, uid, id string) (any, error) {
		return h.plans.GenerationStatus(ctx, uid, id)
	})
}

// GET /api/plans/:id/equity
func (h *PlanHandler) Equity(c *gin.Context) {
	report(c, "equity", func(ctx context.Context, uid, id string) (any, error) {
		return h.plans.Equity(ctx, uid, id)
	})
}

// GET /api/plans/:id/parts
func (h *PlanHandler) Parts(c *gin.Context) {
	report(c, "parts", func(ctx context.Context, uid, id string) (any, error) {
		return h.plans.Parts(ctx, uid, id)
	})
}

// report answers a read-only plan query under the given key.
func report(c *gin.Context, key string, fn func(ctx context.Context, uid, planID string) (any, error)) {
	v, err := fn(c.Request.Context(), userID(c), c.Param("id"))
	if err != nil {
		RespondServiceError(c, err)
		return
	}
	RespondOK(c, gin.H{key: v})
}

// GET /api/blocks/draft
func (h *PlanHandler) GetDraft(c *gin.Context) {
	d, updated, err := h.plans.LoadDraft(c.Request.Context(), userID(c))
	if err != nil {
		RespondServiceError(c, err)
		return
	}
	RespondOK(c, gin.H{"draft": d, "updatedAt": updated.UTC().Format(time.RFC3339)})
}

// PUT /api/blocks/draft
func (h *PlanHandler) PutDraft(c *gin.Context) {
	raw, err := c.GetRawData()
	if err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_body", err)
		return
	}
	d, err := h.plans.SaveDraft(c.Request.Context(), userID(c), raw)
	if err != nil {
		RespondServiceError(c, err)
		return
	}
	RespondOK(c, gin.H{"draft": d})
}

// GET /api/themes
func (h *PlanHandler) ListThemes(c *gin.Context) {
	themes, err := h.plans.Themes(c.Request.Context())
	if err != nil {
		RespondServiceError(c, err)
		return
	}
	RespondOK(c, gin.H{"themes": themes, "count": len(themes)})
}

func sessionFilter(c *gin.Context) (store.SessionFilter, error) {
	var (
		f        store.SessionFilter
		problems []string
	)
	if v := c.Query("from"); v != "" {
		d, err := schedule.ParseDate(v)
		if err != nil {
			problems = append(problems, "from: "+err.Error())
		}
		f.From = d.Time
	}
	if v := c.Query("to"); v != "" {
		d, err := schedule.ParseDate(v)
		if err != nil {
			problems = append(problems, "to: "+err.Error())
		}
		f.To = d.Time
	}
	if v := c.Query("type"); v != "" {
		t := schedule.SessionType(strings.ToUpper(strings.TrimSpace(v)))
		if !t.Valid() {
			problems = append(problems, fmt.Sprintf("type: unknown session type %q", v))
		}
		f.Type = t
	}
	if v := c.Query("status"); v != "" {
		st, err := schedule.ParseSessionStatus(v)
		if err != nil {
			problems = append(problems, "status: "+err.Error())
		}
		f.Status = st
	}
	for key, dst := range map[string]*int{"limit": &f.Limit, "offset": &f.Offset} {
		v := c.Query(key)
		if v == "" {
			continue
		}
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			problems = append(problems, fmt.Sprintf("%s: must be a non-negative integer", key))
			continue
		}
		*dst = n
	}
	if f.Limit > MaxSessionPage {
		f.Limit = MaxSessionPage
	}
	if !f.From.IsZero() && !f.To.IsZero() && f.To.Before(f.From) {
		problems = append(problems, "to must not be before from")
	}
	if len(problems) > 0 {
		return f, schedule.NewValidationError(problems...)
	}
	return f, nil
}

type Pinger interface {
	Ping(ctx context.Context) error
}

type HealthHandler struct {
	db Pinger
}

func NewHealthHandler(db Pinger) *HealthHandler { return &HealthHandler{db: db} }

// GET /healthcheck
func (h *HealthHandler) HealthCheck(c *gin.Context) {
	if h.db != nil {
		if err := h.db.Ping(c.Request.Context()); err != nil {
			RespondError(c, http.StatusServiceUnavailable, "db_unavailable", err)
			return
		}
	}
	c.String(http.StatusOK, "ok")
}
