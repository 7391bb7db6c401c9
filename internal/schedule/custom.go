package schedule

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/abhisek/opoplan/internal/theme"
)

// Activity is one entry of a weekday template.
type Activity struct {
	ThemeID         theme.Ref   `json:"themeId"`
	ActivityType    SessionType `json:"activityType"`
	DurationMinutes int         `json:"durationMinutes"`
}

// WeeklyPattern is a 7-day activity template.
type WeeklyPattern struct {
	Monday    []Activity `json:"monday,omitempty"`
	Tuesday   []Activity `json:"tuesday,omitempty"`
	Wednesday []Activity `json:"wednesday,omitempty"`
	Thursday  []Activity `json:"thursday,omitempty"`
	Friday    []Activity `json:"friday,omitempty"`
	Saturday  []Activity `json:"saturday,omitempty"`
	Sunday    []Activity `json:"sunday,omitempty"`
}

// For returns the activities of a weekday.
func (p WeeklyPattern) For(day time.Weekday) []Activity {
	switch day {
	case time.Monday:
		return p.Monday
	case time.Tuesday:
		return p.Tuesday
	case time.Wednesday:
		return p.Wednesday
	case time.Thursday:
		return p.Thursday
	case time.Friday:
		return p.Friday
	case time.Saturday:
		return p.Saturday
	default:
		return p.Sunday
	}
}

// BlockConfig replicates a weekly pattern across [StartDate, EndDate].
type BlockConfig struct {
	BlockNumber   int           `json:"blockNumber"`
	StartDate     Date          `json:"startDate"`
	EndDate       Date          `json:"endDate"`
	WeeklyPattern WeeklyPattern `json:"weeklyPattern"`
}

var weekdays = []time.Weekday{
	time.Monday, time.Tuesday, time.Wednesday, time.Thursday, time.Friday, time.Saturday, time.Sunday,
}

// MinutesPerDay bounds the daily budget of a custom block.
const MinutesPerDay = 24 * 60

// ValidateBlocks checks every block and reports all problems at once.
// dailyMinutes is the per-day minute budget; a non-positive or larger value
// means a whole day. known lists the themes a plan may reference, and a nil
// set skips that check.
func ValidateBlocks(blocks []BlockConfig, dailyMinutes, maxActivities int, known map[theme.Ref]bool) error {
	if dailyMinutes <= 0 || dailyMinutes > MinutesPerDay {
		dailyMinutes = MinutesPerDay
	}
	var problems []BlockProblem
	add := func(block int, day, format string, args ...any) {
		problems = append(problems, BlockProblem{Block: block, Day: day, Message: fmt.Sprintf(format, args...)})
	}

	if len(blocks) == 0 {
		add(0, "", "at least one block is required")
	}
	seen := make(map[int]bool)
	for _, b := range blocks {
		if seen[b.BlockNumber] {
			add(b.BlockNumber, "", "duplicate block number")
		}
		seen[b.BlockNumber] = true
		if b.StartDate.IsZero() || b.EndDate.IsZero() {
			add(b.BlockNumber, "", "start and end dates are required")
		} else if b.EndDate.Before(b.StartDate.Time) {
			add(b.BlockNumber, "", "end date %s is before start date %s", b.EndDate, b.StartDate)
		}

		for _, wd := range weekdays {
			day := strings.ToLower(wd.String())
			acts := b.WeeklyPattern.For(wd)
			if maxActivities > 0 && len(acts) > maxActivities {
				add(b.BlockNumber, day, "%d activities exceed the limit of %d", len(acts), maxActivities)
			}
			total := 0
			for i, a := range acts {
				if a.DurationMinutes <= 0 {
					add(b.BlockNumber, day, "activity %d: duration must be positive", i+1)
				}
				if !a.ActivityType.Valid() {
					add(b.BlockNumber, day, "activity %d: unknown activity type %q", i+1, a.ActivityType)
				}
				if a.ThemeID.BaseID <= 0 {
					add(b.BlockNumber, day, "activity %d: theme is required", i+1)
				} else if known != nil && !known[a.ThemeID] && !known[theme.Ref{BaseID: a.ThemeID.BaseID}] {
					add(b.BlockNumber, day, "activity %d: theme %s is not part of the plan", i+1, a.ThemeID)
				}
				total += a.DurationMinutes
			}
			if total > dailyMinutes {
				add(b.BlockNumber, day, "%d minutes exceed the daily budget of %d", total, dailyMinutes)
			}
		}
	}

	ordered := make([]BlockConfig, 0, len(blocks))
	for _, b := range blocks {
		if !b.StartDate.IsZero() && !b.EndDate.IsZero() && !b.EndDate.Before(b.StartDate.Time) {
			ordered = append(ordered, b)
		}
	}
	sort.SliceStable(ordered, func(i, j int) bool { return ordered[i].StartDate.Before(ordered[j].StartDate.Time) })
	for i := 1; i < len(ordered); i++ {
		if !ordered[i].StartDate.After(ordered[i-1].EndDate.Time) {
			add(ordered[i].BlockNumber, "", "overlaps block %d", ordered[i-1].BlockNumber)
		}
	}

	if len(problems) > 0 {
		return &BlockValidationError{Problems: problems}
	}
	return nil
}

// CustomBlocks transcribes user-authored block patterns into sessions.
// It does not rotate or space anything.
type CustomBlocks struct {
	cfg Config
}

// NewCustomBlocks creates a custom-block scheduler.
func NewCustomBlocks(cfg Config) *CustomBlocks {
	return &CustomBlocks{cfg: cfg}
}

func (c *CustomBlocks) Kind() Kind { return KindCustomBlocks }

// Generate validates the blocks, then emits one session per activity for
// every day of every block whose weekday matches. Days past the buffer
// cutoff are dropped with a warning; themes never assigned are reported as
// warnings too.
func (c *CustomBlocks) Generate(ctx context.Context, in Input) (*Result, error) {
	var known map[theme.Ref]bool
	names := make(map[theme.Ref]Topic, len(in.Topics))
	if len(in.Topics) > 0 {
		known = make(map[theme.Ref]bool, len(in.Topics))
		for _, t := range in.Topics {
			known[t.Ref] = true
			names[t.Ref] = t
		}
	}
	if err := ValidateBlocks(in.Blocks, in.AvailableDailyMinutes, c.cfg.MaxActivitiesPerDay, known); err != nil {
		return nil, err
	}

	blocks := make([]BlockConfig, len(in.Blocks))
	copy(blocks, in.Blocks)
	sort.SliceStable(blocks, func(i, j int) bool { return blocks[i].StartDate.Before(blocks[j].StartDate.Time) })

	cutoff := Cutoff(in.Exam, c.cfg.BufferDays)
	used := make(map[theme.Ref]bool)
	var sessions []Session
	var warnings []string
	for _, b := range blocks {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		clipped := 0
		for _, d := range DaysBetween(b.StartDate.Time, b.EndDate.Time) {
			acts := b.WeeklyPattern.For(d.Weekday())
			if len(acts) == 0 {
				continue
			}
			if d.After(cutoff) {
				clipped++
				continue
			}
			for _, a := range acts {
				t, ok := names[a.ThemeID]
				if !ok {
					t = Topic{Ref: a.ThemeID}
				}
				used[a.ThemeID] = true
				sessions = append(sessions, Session{
					Ref:       a.ThemeID,
					PartLabel: partLabel(t),
					Date:      d,
					Hours:     float64(a.DurationMinutes) / 60,
					Type:      a.ActivityType,
					Status:    StatusPending,
					Notes:     partNote(t),
				})
			}
		}
		if clipped > 0 {
			warnings = append(warnings, fmt.Sprintf("block %d: %d days after the buffer cutoff %s were skipped",
				b.BlockNumber, clipped, cutoff.Format(DateLayout)))
		}
	}

	var unassigned []string
	for _, t := range in.Topics {
		if !used[t.Ref] && !used[theme.Ref{BaseID: t.Ref.BaseID}] {
			unassigned = append(unassigned, t.Ref.String())
		}
	}
	if len(unassigned) > 0 {
		warnings = append(warnings, "themes without sessions: "+strings.Join(unassigned, ", "))
	}
	if len(sessions) == 0 {
		return nil, &SchedulingFailure{Strategy: KindCustomBlocks, Reason: "blocks produced no sessions before the buffer cutoff"}
	}

	AssignIDs(in.PlanID, sessions)
	return &Result{Strategy: KindCustomBlocks, Sessions: sessions, Warnings: warnings}, nil
}
