// Package plans creates study plans, runs their generation and answers the
// status and analysis queries over their sessions.
package plans

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/abhisek/opoplan/internal/logger"
	"github.com/abhisek/opoplan/internal/schedule"
	"github.com/abhisek/opoplan/internal/store"
	"github.com/abhisek/opoplan/internal/theme"
)

// DefaultTopicsPerDay is used when a request leaves topicsPerDay unset.
const DefaultTopicsPerDay = 3

// Enqueuer schedules a plan's generation task.
type Enqueuer interface {
	Enqueue(planID string) bool
}

// Deps are the collaborators of a Service.
type Deps struct {
	Themes   store.ThemeRepo
	Plans    store.PlanRepo
	Sessions store.SessionRepo
	Drafts   store.DraftRepo

	Config          schedule.Config
	EquityThreshold int
	Logger          *logger.Logger
	Locker          Locker

	// Now overrides the clock; nil means time.Now.
	Now func() time.Time
}

// Service is the application layer over the scheduling engine.
type Service struct {
	themes   store.ThemeRepo
	plans    store.PlanRepo
	sessions store.SessionRepo
	drafts   store.DraftRepo

	cfg             schedule.Config
	equityThreshold int
	log             *logger.Logger
	locker          Locker
	validate        *validator.Validate
	now             func() time.Time
	queue           Enqueuer
}

// NewService creates a plan service. Generation runs inline until a queue
// is attached with SetQueue.
func NewService(d Deps) *Service {
	s := &Service{
		themes:          d.Themes,
		plans:           d.Plans,
		sessions:        d.Sessions,
		drafts:          d.Drafts,
		cfg:             d.Config,
		equityThreshold: d.EquityThreshold,
		log:             logger.OrNop(d.Logger).With("component", "plans"),
		locker:          d.Locker,
		validate:        newValidator(),
		now:             d.Now,
	}
	if s.cfg.MaxSessionHours == 0 {
		s.cfg = schedule.DefaultConfig()
	}
	if s.locker == nil {
		s.locker = NewLocalLocker()
	}
	if s.now == nil {
		s.now = time.Now
	}
	return s
}

// SetQueue attaches the worker that runs generation tasks.
func (s *Service) SetQueue(q Enqueuer) {
	s.queue = q
}

// BufferAdvisory describes the free-preparation window before the exam.
type BufferAdvisory struct {
	BufferStartDate schedule.Date `json:"bufferStartDate"`
	ExamDate        schedule.Date `json:"examDate"`
	BufferDays      int           `json:"bufferDays"`
}

// CreateResult is returned by plan creation.
type CreateResult struct {
	Plan        *store.Plan        `json:"plan"`
	Buffer      BufferAdvisory     `json:"buffer"`
	Feasibility *schedule.Estimate `json:"feasibility,omitempty"`
	Warnings    []string           `json:"warnings,omitempty"`
	Cancelled   []string           `json:"cancelledPlans,omitempty"`
}

// Create validates a rotation request, checks feasibility and stores the
// plan as the user's only ACTIVE plan. Sessions are generated afterwards.
func (s *Service) Create(ctx context.Context, userID string, req CreateRequest) (*CreateResult, error) {
	if err := requireUser(userID); err != nil {
		return nil, err
	}
	week, err := req.validate(s.validate)
	if err != nil {
		return nil, err
	}

	topics, warnings, err := s.resolveTopics(ctx, req.Themes)
	if err != nil {
		return nil, err
	}

	bufferDays := s.bufferDays(req.BufferDays)
	est, err := schedule.EstimateFeasibility(topics, req.StartDate.Time, req.ExamDate.Time, week, bufferDays)
	if err != nil {
		return nil, err
	}

	p := &store.Plan{
		ID:           uuid.NewString(),
		UserID:       userID,
		StartDate:    req.StartDate.Time,
		ExamDate:     req.ExamDate.Time,
		Methodology:  req.methodology(),
		TopicsPerDay: req.topicsPerDay(),
		Status:       store.PlanActive,
		BufferDays:   bufferDays,
		Week:         week,
		Topics:       topics,
		Warnings:     warnings,
	}
	res, err := s.store(ctx, p)
	if err != nil {
		return nil, err
	}
	res.Feasibility = &est
	return res, nil
}

// CreateCustom validates a custom-blocks request synchronously and stores
// the plan. Nothing is written when any block is invalid.
func (s *Service) CreateCustom(ctx context.Context, userID string, req CustomRequest) (*CreateResult, error) {
	if err := requireUser(userID); err != nil {
		return nil, err
	}
	if err := req.validate(s.validate); err != nil {
		return nil, err
	}
	blocks, err := ParseBlocks(req.BlocksConfig)
	if err != nil {
		return nil, err
	}

	topics, warnings, err := s.resolveTopics(ctx, req.Themes)
	if err != nil {
		return nil, err
	}
	known := make(map[theme.Ref]bool, len(topics))
	for _, t := range topics {
		known[t.Ref] = true
	}
	if err := schedule.ValidateBlocks(blocks, req.AvailableDailyMinutes, s.cfg.MaxActivitiesPerDay, known); err != nil {
		return nil, err
	}

	if total := float64(req.TotalHours); total > 0 {
		if planned := blockHours(blocks); planned+1e-9 < total {
			warnings = append(warnings, fmt.Sprintf("blocks plan %.1f h, below the requested total of %.1f h", planned, total))
		}
	}

	p := &store.Plan{
		ID:                    uuid.NewString(),
		UserID:                userID,
		StartDate:             req.StartDate.Time,
		ExamDate:              req.ExamDate.Time,
		Methodology:           store.MethodologyCustomBlocks,
		TopicsPerDay:          DefaultTopicsPerDay,
		Status:                store.PlanActive,
		BufferDays:            s.bufferDays(req.BufferDays),
		Topics:                topics,
		Blocks:                blocks,
		AvailableDailyMinutes: req.AvailableDailyMinutes,
		Warnings:              warnings,
	}
	return s.store(ctx, p)
}

// store runs the demote-then-create transaction and queues generation.
func (s *Service) store(ctx context.Context, p *store.Plan) (*CreateResult, error) {
	p.GenerationState = store.GenerationQueued
	cancelled, err := s.plans.CreateExclusive(ctx, p)
	if err != nil {
		return nil, fmt.Errorf("create plan: %w", err)
	}
	s.log.Info("plan created",
		"plan_id", p.ID, "methodology", p.Methodology, "topics", len(p.Topics), "cancelled", len(cancelled))
	s.enqueue(p.ID)

	return &CreateResult{
		Plan: p,
		Buffer: BufferAdvisory{
			BufferStartDate: schedule.NewDate(schedule.Cutoff(p.ExamDate, p.BufferDays)),
			ExamDate:        schedule.NewDate(p.ExamDate),
			BufferDays:      p.BufferDays,
		},
		Warnings:  p.Warnings,
		Cancelled: cancelled,
	}, nil
}

func (s *Service) enqueue(planID string) {
	if s.queue == nil {
		return
	}
	if !s.queue.Enqueue(planID) {
		s.log.Debug("generation already queued", "plan_id", planID)
	}
}

func (s *Service) bufferDays(override *int) int {
	if override != nil {
		return *override
	}
	return s.cfg.BufferDays
}

// resolveTopics maps requested themes onto the catalog. Unresolved themes
// become warnings unless none resolve at all.
func (s *Service) resolveTopics(ctx context.Context, reqs []ThemeRequest) ([]schedule.Topic, []string, error) {
	themes, err := s.themes.List(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("load theme catalog: %w", err)
	}
	cat := theme.NewCatalog(themes)

	var (
		topics     []schedule.Topic
		warnings   []string
		unresolved []string
		seen       = make(map[theme.Ref]bool)
	)
	for _, r := range reqs {
		t, err := cat.Resolve(theme.Requested{Ref: r.ID, Name: r.Name})
		if err != nil {
			var re *theme.ResolutionError
			if !errors.As(err, &re) {
				return nil, nil, err
			}
			unresolved = append(unresolved, re.Unresolved...)
			continue
		}

		ref := r.ID
		if ref.BaseID != t.ID {
			ref = theme.Ref{BaseID: t.ID, Part: ref.Part}
		}
		if seen[ref] {
			warnings = append(warnings, fmt.Sprintf("theme %s listed more than once; kept the first entry", ref))
			continue
		}
		seen[ref] = true

		hours := float64(r.Hours)
		if hours <= 0 {
			hours = t.EstimatedHours
			if ref.IsPart() && t.PartCount > 1 {
				hours /= float64(t.PartCount)
			}
		}
		complexity := t.Complexity
		if r.Complexity != "" {
			complexity = theme.ParseComplexity(r.Complexity)
		}
		name := strings.TrimSpace(r.Name)
		if name == "" {
			name = t.Title
		}
		topics = append(topics, schedule.Topic{
			Ref:        ref,
			Name:       name,
			Hours:      hours,
			Priority:   r.Priority,
			Complexity: complexity,
			BlockID:    t.BlockID,
		})
	}

	if len(topics) == 0 {
		return nil, nil, &theme.ResolutionError{Unresolved: unresolved}
	}
	if len(unresolved) > 0 {
		warnings = append(warnings, "themes not found in the catalog: "+strings.Join(unresolved, ", "))
	}
	return topics, warnings, nil
}

func blockHours(blocks []schedule.BlockConfig) float64 {
	total := 0
	for _, b := range blocks {
		for _, d := range schedule.DaysBetween(b.StartDate.Time, b.EndDate.Time) {
			for _, a := range b.WeeklyPattern.For(d.Weekday()) {
				total += a.DurationMinutes
			}
		}
	}
	return float64(total) / 60
}

func requireUser(userID string) error {
	if strings.TrimSpace(userID) == "" {
		return schedule.NewValidationError("user id is required")
	}
	return nil
}

// Themes returns the catalog.
func (s *Service) Themes(ctx context.Context) ([]theme.Theme, error) {
	return s.themes.List(ctx)
}

// ImportThemes upserts catalog themes.
func (s *Service) ImportThemes(ctx context.Context, themes []theme.Theme) error {
	if err := s.themes.Upsert(ctx, themes); err != nil {
		return err
	}
	s.log.Info("themes imported", "count", len(themes))
	return nil
}

// SaveDraft validates and stores the user's custom-block draft.
func (s *Service) SaveDraft(ctx context.Context, userID string, raw []byte) (*Draft, error) {
	if err := requireUser(userID); err != nil {
		return nil, err
	}
	d, err := parseDraft(raw)
	if err != nil {
		return nil, err
	}
	// Store the normalized form so loads round-trip cleanly.
	data, err := json.Marshal(d)
	if err != nil {
		return nil, fmt.Errorf("encode draft: %w", err)
	}
	if err := s.drafts.Save(ctx, userID, data); err != nil {
		return nil, err
	}
	return d, nil
}

// LoadDraft returns the user's draft and when it was saved.
func (s *Service) LoadDraft(ctx context.Context, userID string) (*Draft, time.Time, error) {
	data, updated, err := s.drafts.Load(ctx, userID)
	if err != nil {
		return nil, time.Time{}, err
	}
	var d Draft
	if err := json.Unmarshal(data, &d); err != nil {
		return nil, time.Time{}, fmt.Errorf("decode draft: %w", err)
	}
	return &d, updated, nil
}
