package theme

import (
	"image/color"

	"charm.land/lipgloss/v2"

	"github.com/abhisek/opoplan/internal/schedule"
	"github.com/abhisek/opoplan/internal/store"
)

// Color palette
var (
	Primary   = lipgloss.Color("#8B5CF6") // Purple
	Secondary = lipgloss.Color("#14B8A6") // Teal
	Accent    = lipgloss.Color("#F97316") // Orange
	Success   = lipgloss.Color("#22C55E") // Green
	Warning   = lipgloss.Color("#EAB308") // Amber
	Error     = lipgloss.Color("#F43F5E") // Rose
	Text      = lipgloss.Color("#F8FAFC") // White
	TextDim   = lipgloss.Color("#94A3B8") // Slate
	Border    = lipgloss.Color("#334155") // Slate
)

// Typography
var (
	Title = lipgloss.NewStyle().
		Bold(true).
		Foreground(Primary)

	Label = lipgloss.NewStyle().
		Foreground(TextDim)

	Body = lipgloss.NewStyle().
		Foreground(Text)

	Hint = lipgloss.NewStyle().
		Foreground(TextDim).
		Italic(true)

	Warn = lipgloss.NewStyle().
		Foreground(Warning)

	Good = lipgloss.NewStyle().
		Foreground(Success).
		Bold(true)

	Bad = lipgloss.NewStyle().
		Foreground(Error).
		Bold(true)
)

// Tables
var (
	TableHeader = lipgloss.NewStyle().
			Foreground(Primary).
			Bold(true).
			Padding(0, 1)

	TableCell = lipgloss.NewStyle().
			Padding(0, 1)

	TableBorder = lipgloss.NewStyle().
			Foreground(Border)
)

// SessionTypeColor colors a session by its type.
func SessionTypeColor(t schedule.SessionType) color.Color {
	switch t {
	case schedule.TypeStudy:
		return Secondary
	case schedule.TypeReview, schedule.TypeFlashReview:
		return Primary
	case schedule.TypeTest, schedule.TypeSimulation:
		return Accent
	default:
		return Text
	}
}

// PlanStatus renders a plan status with its color.
func PlanStatus(s store.PlanStatus) string {
	st := Body
	switch s {
	case store.PlanActive, store.PlanCompleted:
		st = Good
	case store.PlanPaused:
		st = Warn
	case store.PlanCancelled:
		st = Bad
	}
	return st.Render(string(s))
}

// GenerationState renders a generation state with its color.
func GenerationState(s store.GenerationState) string {
	st := Hint
	switch s {
	case store.GenerationSucceeded:
		st = Good
	case store.GenerationFailed:
		st = Bad
	}
	return st.Render(string(s))
}
