// Package analysis computes read-only reports over generated sessions.
// Every function is pure: the same sessions always yield the same report.
package analysis

import (
	"sort"
	"time"

	"github.com/abhisek/opoplan/internal/schedule"
)

// ThemeStat summarizes the sessions of one theme.
type ThemeStat struct {
	ThemeID           int                          `json:"themeId"`
	Sessions          int                          `json:"sessions"`
	ByType            map[schedule.SessionType]int `json:"byType"`
	ScheduledHours    float64                      `json:"scheduledHours"`
	CompletedHours    float64                      `json:"completedHours"`
	CompletedSessions int                          `json:"completedSessions"`
	CompletionRate    float64                      `json:"completionRate"` // CompletedSessions / Sessions
	FirstDate         schedule.Date                `json:"firstDate"`
	LastDate          schedule.Date                `json:"lastDate"`
}

// completedHours is the effective hours done for a session: the recorded
// value when present, else the full session when it is COMPLETED.
func completedHours(s schedule.Session) float64 {
	if s.CompletedHours != nil {
		return schedule.ParseHours(s.CompletedHours)
	}
	if s.Status == schedule.StatusCompleted {
		return schedule.ParseHours(s.Hours)
	}
	return 0
}

// ThemeStats groups sessions by base theme id, ordered by id.
func ThemeStats(sessions []schedule.Session) []ThemeStat {
	byID := make(map[int]*ThemeStat)
	for _, s := range sessions {
		id := s.Ref.BaseID
		st, ok := byID[id]
		if !ok {
			st = &ThemeStat{ThemeID: id, ByType: make(map[schedule.SessionType]int)}
			byID[id] = st
		}
		st.Sessions++
		st.ByType[s.Type]++
		st.ScheduledHours += schedule.ParseHours(s.Hours)
		st.CompletedHours += completedHours(s)
		if s.Status == schedule.StatusCompleted {
			st.CompletedSessions++
		}
		d := schedule.NewDate(s.Date)
		if st.FirstDate.IsZero() || d.Before(st.FirstDate.Time) {
			st.FirstDate = d
		}
		if d.After(st.LastDate.Time) {
			st.LastDate = d
		}
	}

	out := make([]ThemeStat, 0, len(byID))
	for _, st := range byID {
		if st.Sessions > 0 {
			st.CompletionRate = float64(st.CompletedSessions) / float64(st.Sessions)
		}
		out = append(out, *st)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ThemeID < out[j].ThemeID })
	return out
}

// Progress is the completion rollup of a plan.
type Progress struct {
	Total          int     `json:"total"`
	Pending        int     `json:"pending"`
	InProgress     int     `json:"inProgress"`
	Completed      int     `json:"completed"`
	Skipped        int     `json:"skipped"`
	Percentage     float64 `json:"percentage"`
	ScheduledHours float64 `json:"scheduledHours"`
	CompletedHours float64 `json:"completedHours"`
	DaysRemaining  int     `json:"daysRemaining"`
}

// ComputeProgress counts sessions by status. DaysRemaining counts whole
// days from now until the exam and never goes negative.
func ComputeProgress(sessions []schedule.Session, exam, now time.Time) Progress {
	var p Progress
	for _, s := range sessions {
		p.Total++
		switch s.Status {
		case schedule.StatusCompleted:
			p.Completed++
		case schedule.StatusInProgress:
			p.InProgress++
		case schedule.StatusSkipped:
			p.Skipped++
		default:
			p.Pending++
		}
		p.ScheduledHours += schedule.ParseHours(s.Hours)
		p.CompletedHours += completedHours(s)
	}
	if p.Total > 0 {
		p.Percentage = float64(p.Completed) * 100 / float64(p.Total)
	}
	if days := int(schedule.Day(exam).Sub(schedule.Day(now)).Hours() / 24); days > 0 {
		p.DaysRemaining = days
	}
	return p
}
