package plans

import (
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"sort"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/abhisek/opoplan/internal/schedule"
	"github.com/abhisek/opoplan/internal/store"
	"github.com/abhisek/opoplan/internal/theme"
)

// ThemeRequest names one theme (or theme part) of a plan request.
type ThemeRequest struct {
	ID         theme.Ref          `json:"id"`
	Name       string             `json:"name" validate:"max=300"`
	Hours      schedule.FlexHours `json:"hours" validate:"gte=0,lte=5000"`
	Priority   int                `json:"priority" validate:"gte=0,lte=1000"`
	Complexity string             `json:"complexity,omitempty"`
}

// CreateRequest is the input of an automatic (rotation) plan.
type CreateRequest struct {
	StartDate      schedule.Date                 `json:"startDate"`
	ExamDate       schedule.Date                 `json:"examDate"`
	WeeklySchedule map[string]schedule.FlexHours `json:"weeklySchedule"`
	Themes         []ThemeRequest                `json:"themes" validate:"dive"`
	Methodology    string                        `json:"methodology" validate:"omitempty,oneof=rotation monthly-blocks ROTATION MONTHLY_BLOCKS"`
	TopicsPerDay   int                           `json:"topicsPerDay" validate:"omitempty,min=1,max=6"`
	BufferDays     *int                          `json:"bufferDays,omitempty" validate:"omitempty,gte=0,lte=365"`
}

// CustomRequest is the input of a custom-blocks plan.
type CustomRequest struct {
	StartDate             schedule.Date      `json:"startDate"`
	ExamDate              schedule.Date      `json:"examDate"`
	BlocksConfig          json.RawMessage    `json:"blocksConfig"`
	TotalHours            schedule.FlexHours `json:"totalHours" validate:"gte=0"`
	AvailableDailyMinutes int                `json:"availableDailyMinutes,omitempty" validate:"gte=0,lte=1440"`
	Themes                []ThemeRequest     `json:"themes" validate:"dive"`
	BufferDays            *int               `json:"bufferDays,omitempty" validate:"omitempty,gte=0,lte=365"`
}

// UpdateSessionRequest is a user edit of one session.
type UpdateSessionRequest struct {
	Status         string              `json:"status,omitempty"`
	CompletedHours *schedule.FlexHours `json:"completedHours,omitempty"`
	Notes          *string             `json:"notes,omitempty" validate:"omitempty,max=2000"`
}

// StatusRequest changes a plan's lifecycle status.
type StatusRequest struct {
	Status string `json:"status" validate:"required,oneof=ACTIVE PAUSED CANCELLED COMPLETED"`
}

var dayAliases = map[string]string{
	"mon": "monday", "lun": "monday", "lunes": "monday",
	"tue": "tuesday", "mar": "tuesday", "martes": "tuesday",
	"wed": "wednesday", "mie": "wednesday", "miercoles": "wednesday", "miércoles": "wednesday",
	"thu": "thursday", "jue": "thursday", "jueves": "thursday",
	"fri": "friday", "vie": "friday", "viernes": "friday",
	"sat": "saturday", "sab": "saturday", "sábado": "saturday", "sabado": "saturday",
	"sun": "sunday", "dom": "sunday", "domingo": "sunday",
}

// weekFromMap converts a weekday-keyed map into availability. English and
// Spanish day names and their short forms are accepted.
func weekFromMap(m map[string]schedule.FlexHours) (schedule.WeeklyAvailability, []string) {
	var (
		w        schedule.WeeklyAvailability
		problems []string
	)
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		h := float64(m[k])
		day := strings.ToLower(strings.TrimSpace(k))
		if alias, ok := dayAliases[day]; ok {
			day = alias
		}
		switch day {
		case "monday":
			w.Monday = h
		case "tuesday":
			w.Tuesday = h
		case "wednesday":
			w.Wednesday = h
		case "thursday":
			w.Thursday = h
		case "friday":
			w.Friday = h
		case "saturday":
			w.Saturday = h
		case "sunday":
			w.Sunday = h
		default:
			problems = append(problems, fmt.Sprintf("weeklySchedule: unknown day %q", k))
		}
	}
	return w, problems
}

// newValidator returns a validator that reports JSON field names.
func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		if name == "" {
			return f.Name
		}
		return name
	})
	return v
}

// structProblems runs struct validation and renders failures as problems.
func structProblems(v *validator.Validate, s any) []string {
	err := v.Struct(s)
	if err == nil {
		return nil
	}
	var ve validator.ValidationErrors
	if !errors.As(err, &ve) {
		return []string{err.Error()}
	}
	out := make([]string, 0, len(ve))
	for _, fe := range ve {
		field := fe.Namespace()
		if _, rest, ok := strings.Cut(field, "."); ok {
			field = rest
		}
		if fe.Param() != "" {
			out = append(out, fmt.Sprintf("%s: must satisfy %s=%s", field, fe.Tag(), fe.Param()))
		} else {
			out = append(out, fmt.Sprintf("%s: must satisfy %s", field, fe.Tag()))
		}
	}
	return out
}

// checkDates validates the plan window.
func checkDates(start, exam schedule.Date) []string {
	var problems []string
	if start.IsZero() {
		problems = append(problems, "startDate is required")
	}
	if exam.IsZero() {
		problems = append(problems, "examDate is required")
	}
	if !start.IsZero() && !exam.IsZero() && !start.Before(exam.Time) {
		problems = append(problems, "startDate must be before examDate")
	}
	return problems
}

func checkThemes(themes []ThemeRequest) []string {
	if len(themes) == 0 {
		return []string{"themes: at least one theme is required"}
	}
	var problems []string
	for i, t := range themes {
		if t.ID.BaseID <= 0 && strings.TrimSpace(t.Name) == "" {
			problems = append(problems, fmt.Sprintf("themes[%d]: id or name is required", i))
		}
	}
	return problems
}

// validate checks a rotation request and returns the parsed availability.
func (r *CreateRequest) validate(v *validator.Validate) (schedule.WeeklyAvailability, error) {
	problems := structProblems(v, r)
	problems = append(problems, checkDates(r.StartDate, r.ExamDate)...)
	problems = append(problems, checkThemes(r.Themes)...)

	week, dayProblems := weekFromMap(r.WeeklySchedule)
	problems = append(problems, dayProblems...)
	problems = append(problems, structProblems(v, week)...)
	if week.Total() <= 0 {
		problems = append(problems, "weeklySchedule: at least one day must have available hours")
	}

	if len(problems) > 0 {
		return week, schedule.NewValidationError(problems...)
	}
	return week, nil
}

func (r *CustomRequest) validate(v *validator.Validate) error {
	problems := structProblems(v, r)
	problems = append(problems, checkDates(r.StartDate, r.ExamDate)...)
	problems = append(problems, checkThemes(r.Themes)...)
	if len(r.BlocksConfig) == 0 || string(r.BlocksConfig) == "null" {
		problems = append(problems, "blocksConfig: at least one block is required")
	}
	if len(problems) > 0 {
		return schedule.NewValidationError(problems...)
	}
	return nil
}

// methodology maps request spellings onto the stored methodology.
func (r *CreateRequest) methodology() store.Methodology {
	switch strings.ToLower(strings.ReplaceAll(r.Methodology, "_", "-")) {
	case "monthly-blocks":
		return store.MethodologyMonthlyBlocks
	default:
		return store.MethodologyRotation
	}
}

func (r *CreateRequest) topicsPerDay() int {
	if r.TopicsPerDay == 0 {
		return DefaultTopicsPerDay
	}
	return r.TopicsPerDay
}

func (r *UpdateSessionRequest) toUpdate(v *validator.Validate) (store.SessionUpdate, error) {
	var (
		u        store.SessionUpdate
		problems = structProblems(v, r)
	)
	if r.Status != "" {
		st, err := schedule.ParseSessionStatus(r.Status)
		if err != nil {
			problems = append(problems, err.Error())
		} else {
			u.Status = &st
		}
	}
	if r.CompletedHours != nil {
		h := float64(*r.CompletedHours)
		u.CompletedHours = &h
	}
	u.Notes = r.Notes
	if len(problems) > 0 {
		return u, schedule.NewValidationError(problems...)
	}
	if u.Status == nil && u.CompletedHours == nil && u.Notes == nil {
		return u, schedule.NewValidationError("nothing to update")
	}
	return u, nil
}
