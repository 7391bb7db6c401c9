package schedule

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Kind names a generation strategy.
type Kind string

const (
	KindRotation     Kind = "ROTATION"
	KindLinear       Kind = "LINEAR"
	KindCustomBlocks Kind = "CUSTOM_BLOCKS"
)

// Config tunes the generators.
type Config struct {
	// BufferDays is the free-preparation window before the exam.
	BufferDays int
	// MaxSessionHours caps the length of a single session.
	MaxSessionHours float64
	// ReviewOffsets are the spaced-repetition gaps in days. The last offset
	// repeats once the list is exhausted.
	ReviewOffsets []int
	// RebalancePasses bounds the passes run after strict rotation.
	RebalancePasses int
	// LinearReviewGap is the fixed review gap of the linear fallback.
	LinearReviewGap int
	// MaxActivitiesPerDay caps a custom-block weekday.
	MaxActivitiesPerDay int
}

// DefaultConfig returns the production tuning.
func DefaultConfig() Config {
	return Config{
		BufferDays:          30,
		MaxSessionHours:     2,
		ReviewOffsets:       []int{2, 5, 10, 20},
		RebalancePasses:     3,
		LinearReviewGap:     3,
		MaxActivitiesPerDay: 10,
	}
}

// Validate checks the config for errors.
func (c Config) Validate() error {
	if c.BufferDays < 0 {
		return fmt.Errorf("buffer days must not be negative, got %d", c.BufferDays)
	}
	if c.MaxSessionHours <= 0 {
		return fmt.Errorf("max session hours must be positive, got %v", c.MaxSessionHours)
	}
	if len(c.ReviewOffsets) == 0 {
		return errors.New("at least one review offset is required")
	}
	for _, o := range c.ReviewOffsets {
		if o <= 0 {
			return fmt.Errorf("review offsets must be positive, got %d", o)
		}
	}
	if c.RebalancePasses < 0 {
		return fmt.Errorf("rebalance passes must not be negative, got %d", c.RebalancePasses)
	}
	return nil
}

// Input carries the frozen inputs of one generation run.
type Input struct {
	PlanID       string
	Start        time.Time
	Exam         time.Time
	Week         WeeklyAvailability
	Topics       []Topic
	TopicsPerDay int
	// OrderByBlock rotates syllabus block by syllabus block instead of
	// interleaving every theme.
	OrderByBlock bool

	Blocks                []BlockConfig
	AvailableDailyMinutes int
}

// Result is a generated schedule.
type Result struct {
	Strategy Kind
	Sessions []Session
	Warnings []string
}

// Hours sums the hours of every generated session.
func (r *Result) Hours() float64 {
	total := 0.0
	for _, s := range r.Sessions {
		total += s.Hours
	}
	return total
}

// Strategy generates a schedule from frozen inputs.
type Strategy interface {
	Kind() Kind
	Generate(ctx context.Context, in Input) (*Result, error)
}

// ForKind returns the strategy registered for k.
func ForKind(k Kind, cfg Config) (Strategy, error) {
	switch k {
	case KindRotation:
		return NewRotation(cfg), nil
	case KindLinear:
		return NewLinear(cfg), nil
	case KindCustomBlocks:
		return NewCustomBlocks(cfg), nil
	}
	return nil, fmt.Errorf("unknown strategy %q", k)
}

type fallback struct {
	primary, secondary Strategy
}

// WithFallback runs secondary when primary fails with a *SchedulingFailure.
// Other errors, including context cancellation, are returned as is.
func WithFallback(primary, secondary Strategy) Strategy {
	return &fallback{primary: primary, secondary: secondary}
}

func (f *fallback) Kind() Kind { return f.primary.Kind() }

func (f *fallback) Generate(ctx context.Context, in Input) (*Result, error) {
	res, err := f.primary.Generate(ctx, in)
	if err == nil {
		return res, nil
	}
	var sf *SchedulingFailure
	if !errors.As(err, &sf) {
		return nil, err
	}
	res, err2 := f.secondary.Generate(ctx, in)
	if err2 != nil {
		return nil, fmt.Errorf("%w (after %v)", err2, err)
	}
	res.Warnings = append(res.Warnings, fmt.Sprintf("%s: used %s fallback", err.Error(), f.secondary.Kind()))
	return res, nil
}

// sessionCap returns the effective max session length for the input.
func sessionCap(cfg Config, week WeeklyAvailability) float64 {
	limit := cfg.MaxSessionHours
	if m := week.MaxDaily(); m > 0 && (limit <= 0 || m < limit) {
		limit = m
	}
	return limit
}
