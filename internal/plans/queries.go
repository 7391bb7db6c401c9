package plans

import (
	"context"
	"fmt"
	"strings"

	"github.com/abhisek/opoplan/internal/analysis"
	"github.com/abhisek/opoplan/internal/schedule"
	"github.com/abhisek/opoplan/internal/store"
	"github.com/abhisek/opoplan/internal/theme"
)

// ActivePlan returns the user's ACTIVE plan.
func (s *Service) ActivePlan(ctx context.Context, userID string) (*store.Plan, error) {
	return s.plans.Active(ctx, userID)
}

// Plans lists the user's plans, newest first.
func (s *Service) Plans(ctx context.Context, userID string) ([]store.Plan, error) {
	return s.plans.ListByUser(ctx, userID)
}

// Plan returns a plan owned by userID. An empty userID skips the ownership
// check; plans of other users are reported as not found.
func (s *Service) Plan(ctx context.Context, userID, planID string) (*store.Plan, error) {
	p, err := s.plans.Get(ctx, planID)
	if err != nil {
		return nil, err
	}
	if userID != "" && p.UserID != userID {
		return nil, store.ErrNotFound
	}
	return p, nil
}

// Sessions lists a plan's sessions.
func (s *Service) Sessions(ctx context.Context, userID, planID string, f store.SessionFilter) ([]schedule.Session, error) {
	if _, err := s.Plan(ctx, userID, planID); err != nil {
		return nil, err
	}
	return s.sessions.ListByPlan(ctx, planID, f)
}

func (s *Service) allSessions(ctx context.Context, userID, planID string) (*store.Plan, []schedule.Session, error) {
	p, err := s.Plan(ctx, userID, planID)
	if err != nil {
		return nil, nil, err
	}
	sessions, err := s.sessions.ListByPlan(ctx, planID, store.SessionFilter{})
	if err != nil {
		return nil, nil, err
	}
	return p, sessions, nil
}

// Progress rolls up completion of a plan.
func (s *Service) Progress(ctx context.Context, userID, planID string) (analysis.Progress, error) {
	p, sessions, err := s.allSessions(ctx, userID, planID)
	if err != nil {
		return analysis.Progress{}, err
	}
	return analysis.ComputeProgress(sessions, p.ExamDate, s.now()), nil
}

// ThemeStats reports per-theme distribution of a plan.
func (s *Service) ThemeStats(ctx context.Context, userID, planID string) ([]analysis.ThemeStat, error) {
	_, sessions, err := s.allSessions(ctx, userID, planID)
	if err != nil {
		return nil, err
	}
	return analysis.ThemeStats(sessions), nil
}

// Equity reports the per-block equity verdicts of a plan.
func (s *Service) Equity(ctx context.Context, userID, planID string) (analysis.EquityReport, error) {
	_, sessions, err := s.allSessions(ctx, userID, planID)
	if err != nil {
		return analysis.EquityReport{}, err
	}
	return analysis.Equity(sessions, theme.DefaultBlocks, s.equityThreshold), nil
}

// Parts reports per-part breakdowns of multi-part themes.
func (s *Service) Parts(ctx context.Context, userID, planID string) ([]analysis.ThemeParts, error) {
	_, sessions, err := s.allSessions(ctx, userID, planID)
	if err != nil {
		return nil, err
	}
	return analysis.PartsReport(sessions), nil
}

// GenerationStatus answers whether a plan's sessions are ready.
func (s *Service) GenerationStatus(ctx context.Context, userID, planID string) (analysis.GenerationReport, error) {
	p, err := s.Plan(ctx, userID, planID)
	if err != nil {
		return analysis.GenerationReport{}, err
	}
	b, err := s.sessions.Bounds(ctx, planID)
	if err != nil {
		return analysis.GenerationReport{}, err
	}
	return analysis.GenerationStatus(analysis.GenerationInput{
		Active:       p.Status == store.PlanActive,
		TaskFailed:   p.GenerationState == store.GenerationFailed,
		TaskError:    p.GenerationError,
		SessionCount: b.Count,
		First:        b.First,
		Last:         b.Last,
	}), nil
}

// UpdateSession applies a user edit to a session of one of the user's plans.
func (s *Service) UpdateSession(ctx context.Context, userID, sessionID string, req UpdateSessionRequest) (*schedule.Session, error) {
	u, err := req.toUpdate(s.validate)
	if err != nil {
		return nil, err
	}
	cur, err := s.sessions.Get(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if _, err := s.Plan(ctx, userID, cur.PlanID); err != nil {
		return nil, err
	}
	if u.CompletedHours != nil && *u.CompletedHours > cur.Hours*2 {
		return nil, schedule.NewValidationError(
			fmt.Sprintf("completedHours %.2f is more than twice the scheduled %.2f", *u.CompletedHours, cur.Hours))
	}
	return s.sessions.Update(ctx, sessionID, u)
}

// SetStatus changes a plan's lifecycle status. Resuming a plan pauses the
// user's other ACTIVE plan; resuming a plan that has no sessions queues its
// generation again.
func (s *Service) SetStatus(ctx context.Context, userID, planID string, req StatusRequest) (*store.Plan, error) {
	req.Status = strings.ToUpper(strings.TrimSpace(req.Status))
	if problems := structProblems(s.validate, req); len(problems) > 0 {
		return nil, schedule.NewValidationError(problems...)
	}
	p, err := s.Plan(ctx, userID, planID)
	if err != nil {
		return nil, err
	}
	status := store.PlanStatus(req.Status)
	if p.Status == store.PlanCancelled && status != store.PlanCancelled {
		return nil, schedule.NewValidationError("a cancelled plan cannot change status")
	}

	if status == store.PlanActive {
		if err := s.plans.Activate(ctx, planID); err != nil {
			return nil, err
		}
		b, err := s.sessions.Bounds(ctx, planID)
		if err != nil {
			return nil, err
		}
		if b.Count == 0 {
			if err := s.requeue(ctx, p); err != nil {
				return nil, err
			}
		}
	} else if err := s.plans.SetStatus(ctx, planID, status); err != nil {
		return nil, err
	}
	s.log.Info("plan status changed", "plan_id", planID, "from", p.Status, "to", status)
	return s.plans.Get(ctx, planID)
}

// Regenerate recomputes a plan's sessions from its frozen inputs. A paused
// plan is resumed first.
func (s *Service) Regenerate(ctx context.Context, userID, planID string) (*store.Plan, error) {
	p, err := s.Plan(ctx, userID, planID)
	if err != nil {
		return nil, err
	}
	switch p.Status {
	case store.PlanActive:
	case store.PlanPaused, store.PlanDraft:
		if err := s.plans.Activate(ctx, planID); err != nil {
			return nil, err
		}
	default:
		return nil, schedule.NewValidationError(fmt.Sprintf("a %s plan cannot be regenerated", p.Status))
	}
	if err := s.requeue(ctx, p); err != nil {
		return nil, err
	}
	return s.plans.Get(ctx, planID)
}

func (s *Service) requeue(ctx context.Context, p *store.Plan) error {
	err := s.plans.SetGeneration(ctx, p.ID, store.GenerationUpdate{
		State:    store.GenerationQueued,
		Strategy: p.Strategy,
		Warnings: p.Warnings,
	})
	if err != nil {
		return err
	}
	s.enqueue(p.ID)
	return nil
}
