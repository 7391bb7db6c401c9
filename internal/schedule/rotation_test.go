package schedule

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/abhisek/opoplan/internal/theme"
)

const testPlanID = "0b7c6f1e-4a43-4c55-9a4b-1f1d3f0c2a10"

func scenarioInput() Input {
	return Input{
		PlanID: testPlanID,
		Start:  date("2025-01-01"),
		Exam:   date("2025-06-01"),
		Week:   weekdays2h(),
		Topics: []Topic{
			{Ref: theme.Ref{BaseID: 1}, Name: "Constitución", Hours: 10, Priority: 1},
			{Ref: theme.Ref{BaseID: 2}, Name: "Organización", Hours: 10, Priority: 1},
		},
		TopicsPerDay: 2,
	}
}

// checkInvariants asserts capacity, buffer and coverage for a generated
// schedule and that every required hour was placed.
func checkInvariants(t *testing.T, in Input, res *Result) {
	t.Helper()
	cutoff := Cutoff(in.Exam, DefaultConfig().BufferDays)

	perDay := make(map[time.Time]float64)
	seen := make(map[theme.Ref]bool)
	for _, s := range res.Sessions {
		perDay[s.Date] += s.Hours
		seen[s.Ref] = true
		assert.False(t, s.Date.After(cutoff), "session on %s after cutoff", s.Date.Format(DateLayout))
		assert.False(t, s.Date.Before(Day(in.Start)), "session on %s before start", s.Date.Format(DateLayout))
		assert.NotEmpty(t, s.ID)
		assert.Equal(t, in.PlanID, s.PlanID)
		assert.Equal(t, StatusPending, s.Status)
	}
	for d, h := range perDay {
		assert.LessOrEqual(t, h, in.Week.For(d.Weekday())+1e-9, "day %s over capacity", d.Format(DateLayout))
	}
	for _, topic := range in.Topics {
		assert.True(t, seen[topic.Ref], "theme %s has no sessions", topic.Ref)
	}
	assert.InDelta(t, TotalRequired(in.Topics), res.Hours(), 1e-6)
}

func TestRotation_Scenario(t *testing.T) {
	in := scenarioInput()
	res, err := NewRotation(DefaultConfig()).Generate(context.Background(), in)
	require.NoError(t, err)
	assert.Equal(t, KindRotation, res.Strategy)
	checkInvariants(t, in, res)

	last := res.Sessions[len(res.Sessions)-1].Date
	assert.False(t, last.After(date("2025-05-02")), "last session %s", last.Format(DateLayout))
}

func TestRotation_Deterministic(t *testing.T) {
	in := scenarioInput()
	in.Topics = append(in.Topics,
		Topic{Ref: theme.Ref{BaseID: 3}, Hours: 7, Priority: 2, Complexity: theme.ComplexityHigh},
		Topic{Ref: theme.Ref{BaseID: 4}, Hours: 4, Priority: 2, Complexity: theme.ComplexityLow},
	)
	a, err := NewRotation(DefaultConfig()).Generate(context.Background(), in)
	require.NoError(t, err)
	b, err := NewRotation(DefaultConfig()).Generate(context.Background(), in)
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestRotation_ReviewsFollowStudy(t *testing.T) {
	in := scenarioInput()
	res, err := NewRotation(DefaultConfig()).Generate(context.Background(), in)
	require.NoError(t, err)

	firstStudy := make(map[int]time.Time)
	for _, s := range res.Sessions {
		if s.Type == TypeStudy {
			if _, ok := firstStudy[s.Ref.BaseID]; !ok {
				firstStudy[s.Ref.BaseID] = s.Date
			}
		}
	}
	for _, s := range res.Sessions {
		if s.Type == TypeStudy {
			continue
		}
		first, ok := firstStudy[s.Ref.BaseID]
		require.True(t, ok)
		assert.True(t, s.Date.After(first), "%s of theme %d on %s, first study %s",
			s.Type, s.Ref.BaseID, s.Date.Format(DateLayout), first.Format(DateLayout))
	}
}

func TestRotation_TopicsPerDay(t *testing.T) {
	every := WeeklyAvailability{Monday: 6, Tuesday: 6, Wednesday: 6, Thursday: 6, Friday: 6, Saturday: 6, Sunday: 6}
	in := Input{
		PlanID:       testPlanID,
		Start:        date("2025-01-01"),
		Exam:         date("2025-04-01"),
		Week:         every,
		TopicsPerDay: 1,
	}
	for id := 1; id <= 4; id++ {
		in.Topics = append(in.Topics, Topic{Ref: theme.Ref{BaseID: id}, Hours: 4, Priority: 1})
	}
	res, err := NewRotation(DefaultConfig()).Generate(context.Background(), in)
	require.NoError(t, err)
	checkInvariants(t, in, res)

	studied := make(map[time.Time]map[int]bool)
	for _, s := range res.Sessions {
		if s.Type != TypeStudy {
			continue
		}
		if studied[s.Date] == nil {
			studied[s.Date] = make(map[int]bool)
		}
		studied[s.Date][s.Ref.BaseID] = true
	}
	for d, themes := range studied {
		assert.LessOrEqual(t, len(themes), 1, "day %s studies %v", d.Format(DateLayout), themes)
	}
}

func TestRotation_PartsShareRotationSlot(t *testing.T) {
	in := Input{
		PlanID: testPlanID,
		Start:  date("2025-01-06"),
		Exam:   date("2025-06-01"),
		Week:   weekdays2h(),
		Topics: []Topic{
			{Ref: theme.Ref{BaseID: 6, Part: 1}, Name: "Primera parte", Hours: 2, Priority: 1},
			{Ref: theme.Ref{BaseID: 6, Part: 2}, Name: "Segunda parte", Hours: 2, Priority: 1},
			{Ref: theme.Ref{BaseID: 6, Part: 3}, Name: "Tercera parte", Hours: 2, Priority: 1},
			{Ref: theme.Ref{BaseID: 7}, Name: "Carrera militar", Hours: 6, Priority: 1},
		},
		TopicsPerDay: 2,
	}
	res, err := NewRotation(DefaultConfig()).Generate(context.Background(), in)
	require.NoError(t, err)
	checkInvariants(t, in, res)

	firstStudy := make(map[theme.Ref]time.Time)
	for _, s := range res.Sessions {
		if s.Type != TypeStudy {
			continue
		}
		if _, ok := firstStudy[s.Ref]; !ok {
			firstStudy[s.Ref] = s.Date
		}
		if s.Ref.IsPart() {
			assert.NotEmpty(t, s.PartLabel)
			assert.Contains(t, s.Notes, "Tema 6. Parte")
		}
	}
	assert.True(t, firstStudy[theme.Ref{BaseID: 7}].Before(firstStudy[theme.Ref{BaseID: 6, Part: 2}]),
		"theme 7 should be studied before the second part of theme 6")
}

func TestRotation_OrderByBlock(t *testing.T) {
	every := WeeklyAvailability{Monday: 4, Tuesday: 4, Wednesday: 4, Thursday: 4, Friday: 4, Saturday: 4, Sunday: 4}
	in := Input{
		PlanID: testPlanID,
		Start:  date("2025-01-01"),
		Exam:   date("2025-05-01"),
		Week:   every,
		Topics: []Topic{
			{Ref: theme.Ref{BaseID: 8}, Hours: 10, Priority: 1, BlockID: 2},
			{Ref: theme.Ref{BaseID: 1}, Hours: 10, Priority: 1, BlockID: 1},
		},
		TopicsPerDay: 2,
		OrderByBlock: true,
	}
	res, err := NewRotation(DefaultConfig()).Generate(context.Background(), in)
	require.NoError(t, err)
	checkInvariants(t, in, res)

	var lastBlock1, firstBlock2 time.Time
	for _, s := range res.Sessions {
		if s.Type != TypeStudy {
			continue
		}
		if s.Ref.BaseID == 1 {
			lastBlock1 = s.Date
		} else if firstBlock2.IsZero() {
			firstBlock2 = s.Date
		}
	}
	assert.False(t, lastBlock1.After(firstBlock2))
}

func TestRotation_Failures(t *testing.T) {
	r := NewRotation(DefaultConfig())

	in := scenarioInput()
	in.Week = WeeklyAvailability{}
	_, err := r.Generate(context.Background(), in)
	var sf *SchedulingFailure
	require.True(t, errors.As(err, &sf), "got %v", err)
	assert.Equal(t, KindRotation, sf.Strategy)

	in = scenarioInput()
	in.Start, in.Exam = date("2025-01-06"), date("2025-02-11")
	in.Topics = []Topic{{Ref: theme.Ref{BaseID: 1}, Hours: 1000}}
	_, err = r.Generate(context.Background(), in)
	require.True(t, errors.As(err, &sf), "got %v", err)
	assert.Greater(t, sf.UnplacedHours, 1500.0)

	in = scenarioInput()
	in.Topics = nil
	_, err = r.Generate(context.Background(), in)
	assert.True(t, errors.As(err, &sf))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = r.Generate(ctx, scenarioInput())
	assert.ErrorIs(t, err, context.Canceled)
}

func TestWithFallback(t *testing.T) {
	cfg := DefaultConfig()
	in := Input{
		PlanID:       testPlanID,
		Start:        date("2025-01-06"),
		Exam:         date("2025-04-06"),
		Week:         WeeklyAvailability{Monday: 1.5, Wednesday: 1.5, Friday: 1.5},
		TopicsPerDay: 2,
	}
	for id := 1; id <= 3; id++ {
		in.Topics = append(in.Topics, Topic{Ref: theme.Ref{BaseID: id}, Hours: 6, Priority: 1})
	}
	res, err := WithFallback(NewRotation(cfg), NewLinear(cfg)).Generate(context.Background(), in)
	require.NoError(t, err)
	checkInvariants(t, in, res)

	res, err = WithFallback(failing{err: &SchedulingFailure{Strategy: KindRotation}}, NewLinear(cfg)).
		Generate(context.Background(), scenarioInput())
	require.NoError(t, err)
	assert.Equal(t, KindLinear, res.Strategy)
	require.NotEmpty(t, res.Warnings)
	assert.Contains(t, res.Warnings[len(res.Warnings)-1], "LINEAR fallback")

	boom := errors.New("boom")
	_, err = WithFallback(failing{err: boom}, NewLinear(cfg)).Generate(context.Background(), scenarioInput())
	assert.ErrorIs(t, err, boom)
}

type failing struct{ err error }

func (f failing) Kind() Kind { return KindRotation }

func (f failing) Generate(context.Context, Input) (*Result, error) { return nil, f.err }

func TestAssignIDsStable(t *testing.T) {
	mk := func() []Session {
		return []Session{
			{Ref: theme.Ref{BaseID: 2}, Date: date("2025-01-02"), Hours: 1, Type: TypeStudy},
			{Ref: theme.Ref{BaseID: 1}, Date: date("2025-01-01"), Hours: 1, Type: TypeStudy},
		}
	}
	a, b := mk(), mk()
	AssignIDs(testPlanID, a)
	AssignIDs(testPlanID, b)
	assert.Equal(t, a, b)
	assert.Equal(t, 1, a[0].Ref.BaseID)
	assert.NotEqual(t, a[0].ID, a[1].ID)

	c := mk()
	AssignIDs("another-plan", c)
	assert.NotEqual(t, a[0].ID, c[0].ID)
}
