package plans

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/abhisek/opoplan/internal/schedule"
	"github.com/abhisek/opoplan/internal/store"
)

// Generate runs the generation task of one plan: it computes the schedule
// from the plan's frozen inputs and replaces the plan's sessions. Failures
// are recorded on the plan, which is paused; the error is also returned.
func (s *Service) Generate(ctx context.Context, planID string) error {
	release, err := s.locker.Acquire(ctx, planID)
	if errors.Is(err, ErrLocked) {
		s.log.Info("generation skipped, another task holds the plan", "plan_id", planID)
		return nil
	}
	if err != nil {
		return err
	}
	defer release()

	p, err := s.plans.Get(ctx, planID)
	if err != nil {
		return fmt.Errorf("load plan %s: %w", planID, err)
	}
	log := s.log.With("plan_id", p.ID, "methodology", p.Methodology)

	if p.Status != store.PlanActive {
		log.Info("generation skipped, plan not active", "status", p.Status)
		return s.plans.SetGeneration(ctx, p.ID, store.GenerationUpdate{
			State:    store.GenerationFailed,
			Error:    fmt.Sprintf("plan is %s; generation skipped", p.Status),
			Warnings: p.Warnings,
		})
	}

	if err := s.plans.SetGeneration(ctx, p.ID, store.GenerationUpdate{
		State:    store.GenerationRunning,
		Warnings: p.Warnings,
	}); err != nil {
		return err
	}

	start := time.Now()
	strategy := s.strategyFor(p)
	res, err := strategy.Generate(ctx, inputFor(p))
	if err != nil {
		if ctx.Err() != nil {
			// Shutdown: leave the task running so the next start resumes it.
			return err
		}
		return s.Fail(ctx, p.ID, err)
	}

	// The plan may have been cancelled or paused while computing.
	cur, err := s.plans.Get(ctx, p.ID)
	if err != nil {
		return fmt.Errorf("reload plan %s: %w", p.ID, err)
	}
	if cur.Status != store.PlanActive {
		log.Info("sessions discarded, plan changed status during generation", "status", cur.Status)
		return s.plans.SetGeneration(ctx, p.ID, store.GenerationUpdate{
			State:    store.GenerationFailed,
			Error:    fmt.Sprintf("plan became %s during generation; sessions discarded", cur.Status),
			Warnings: p.Warnings,
		})
	}

	if err := s.sessions.ReplaceForPlan(ctx, p.ID, res.Sessions); err != nil {
		if ctx.Err() != nil {
			return err
		}
		return s.Fail(ctx, p.ID, fmt.Errorf("write sessions: %w", err))
	}

	warnings := mergeWarnings(p.Warnings, res.Warnings)
	if err := s.plans.SetGeneration(ctx, p.ID, store.GenerationUpdate{
		State:    store.GenerationSucceeded,
		Strategy: string(res.Strategy),
		Warnings: warnings,
	}); err != nil {
		return err
	}
	log.Info("plan generated",
		"strategy", res.Strategy,
		"sessions", len(res.Sessions),
		"hours", res.Hours(),
		"warnings", len(res.Warnings),
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return nil
}

// Fail records a generation failure and pauses the plan. It returns cause
// so callers can propagate it.
func (s *Service) Fail(ctx context.Context, planID string, cause error) error {
	s.log.Error("generation failed", "plan_id", planID, "error", cause)
	err := s.plans.SetGeneration(context.WithoutCancel(ctx), planID, store.GenerationUpdate{
		State:  store.GenerationFailed,
		Error:  cause.Error(),
		Status: store.PlanPaused,
	})
	if err != nil {
		return errors.Join(cause, fmt.Errorf("record failure: %w", err))
	}
	return cause
}

// strategyFor picks the generator for a plan's methodology.
func (s *Service) strategyFor(p *store.Plan) schedule.Strategy {
	cfg := s.cfg
	cfg.BufferDays = p.BufferDays
	if p.Methodology == store.MethodologyCustomBlocks {
		return schedule.NewCustomBlocks(cfg)
	}
	return schedule.WithFallback(schedule.NewRotation(cfg), schedule.NewLinear(cfg))
}

func inputFor(p *store.Plan) schedule.Input {
	return schedule.Input{
		PlanID:                p.ID,
		Start:                 p.StartDate,
		Exam:                  p.ExamDate,
		Week:                  p.Week,
		Topics:                p.Topics,
		TopicsPerDay:          p.TopicsPerDay,
		OrderByBlock:          p.Methodology == store.MethodologyMonthlyBlocks,
		Blocks:                p.Blocks,
		AvailableDailyMinutes: p.AvailableDailyMinutes,
	}
}

// mergeWarnings appends b to a, dropping repeats.
func mergeWarnings(a, b []string) []string {
	seen := make(map[string]bool, len(a)+len(b))
	var out []string
	for _, list := range [][]string{a, b} {
		for _, w := range list {
			if !seen[w] {
				seen[w] = true
				out = append(out, w)
			}
		}
	}
	return out
}
