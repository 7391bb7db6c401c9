package schedule

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/abhisek/opoplan/internal/theme"
)

// SessionType is the kind of work a session holds.
type SessionType string

const (
	TypeStudy       SessionType = "STUDY"
	TypeReview      SessionType = "REVIEW"
	TypeFlashReview SessionType = "FLASH_REVIEW"
	TypeTest        SessionType = "TEST"
	TypeSimulation  SessionType = "SIMULATION"
)

// SessionTypes lists every session type in mix-table order.
var SessionTypes = []SessionType{TypeStudy, TypeReview, TypeFlashReview, TypeTest, TypeSimulation}

// Valid reports whether t is a known session type.
func (t SessionType) Valid() bool {
	switch t {
	case TypeStudy, TypeReview, TypeFlashReview, TypeTest, TypeSimulation:
		return true
	}
	return false
}

// UnmarshalText normalizes case and separators ("flash-review" → FLASH_REVIEW).
// Unknown values are kept so validation can report them.
func (t *SessionType) UnmarshalText(b []byte) error {
	s := strings.ToUpper(strings.TrimSpace(string(b)))
	s = strings.NewReplacer("-", "_", " ", "_").Replace(s)
	*t = SessionType(s)
	return nil
}

// SessionStatus tracks user progress on a session.
type SessionStatus string

const (
	StatusPending    SessionStatus = "PENDING"
	StatusInProgress SessionStatus = "IN_PROGRESS"
	StatusCompleted  SessionStatus = "COMPLETED"
	StatusSkipped    SessionStatus = "SKIPPED"
)

// ParseSessionStatus parses a status case-insensitively.
func ParseSessionStatus(s string) (SessionStatus, error) {
	st := SessionStatus(strings.ToUpper(strings.TrimSpace(s)))
	switch st {
	case StatusPending, StatusInProgress, StatusCompleted, StatusSkipped:
		return st, nil
	}
	return "", fmt.Errorf("unknown session status %q", s)
}

// Session is one scheduled unit of work on a date.
type Session struct {
	ID             string
	PlanID         string
	Ref            theme.Ref
	PartLabel      string
	Date           time.Time
	Hours          float64
	Type           SessionType
	Status         SessionStatus
	CompletedHours *float64
	Notes          string
}

type sessionJSON struct {
	ID             string        `json:"id"`
	PlanID         string        `json:"planId"`
	ThemeID        int           `json:"themeId"`
	PartIndex      int           `json:"partIndex,omitempty"`
	PartLabel      string        `json:"partLabel,omitempty"`
	Date           Date          `json:"date"`
	Hours          float64       `json:"hours"`
	Type           SessionType   `json:"type"`
	Status         SessionStatus `json:"status"`
	CompletedHours *float64      `json:"completedHours,omitempty"`
	Notes          string        `json:"notes,omitempty"`
}

// MarshalJSON flattens the theme reference and renders the date as a day.
func (s Session) MarshalJSON() ([]byte, error) {
	return json.Marshal(sessionJSON{
		ID:             s.ID,
		PlanID:         s.PlanID,
		ThemeID:        s.Ref.BaseID,
		PartIndex:      s.Ref.Part,
		PartLabel:      s.PartLabel,
		Date:           NewDate(s.Date),
		Hours:          s.Hours,
		Type:           s.Type,
		Status:         s.Status,
		CompletedHours: s.CompletedHours,
		Notes:          s.Notes,
	})
}

func (s *Session) UnmarshalJSON(b []byte) error {
	var v sessionJSON
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}
	*s = Session{
		ID:             v.ID,
		PlanID:         v.PlanID,
		Ref:            theme.Ref{BaseID: v.ThemeID, Part: v.PartIndex},
		PartLabel:      v.PartLabel,
		Date:           v.Date.Time,
		Hours:          v.Hours,
		Type:           v.Type,
		Status:         v.Status,
		CompletedHours: v.CompletedHours,
		Notes:          v.Notes,
	}
	return nil
}

// Topic is a schedulable unit: a whole theme or one part of it.
type Topic struct {
	Ref        theme.Ref        `json:"themeId"`
	Name       string           `json:"name"`
	Hours      float64          `json:"hours"`
	Priority   int              `json:"priority"`
	Complexity theme.Complexity `json:"complexity"`
	BlockID    int              `json:"blockId,omitempty"`
}

// partNote renders the note attached to part sessions. The analysis
// package parses the same shape back.
func partNote(t Topic) string {
	if !t.Ref.IsPart() {
		return ""
	}
	return fmt.Sprintf("Tema %d. Parte %d: %s", t.Ref.BaseID, t.Ref.Part, t.Name)
}

func partLabel(t Topic) string {
	if !t.Ref.IsPart() {
		return ""
	}
	return t.Name
}

// SortSessions orders sessions by date, keeping placement order within a day.
func SortSessions(sessions []Session) {
	sort.SliceStable(sessions, func(i, j int) bool {
		return sessions[i].Date.Before(sessions[j].Date)
	})
}

// AssignIDs sorts sessions and gives each a deterministic id derived from
// the plan id and its position, so regenerating from the same inputs yields
// the same rows.
func AssignIDs(planID string, sessions []Session) {
	SortSessions(sessions)
	ns, err := uuid.Parse(planID)
	if err != nil {
		ns = uuid.NewSHA1(uuid.NameSpaceOID, []byte(planID))
	}
	for i := range sessions {
		sessions[i].ID = uuid.NewSHA1(ns, []byte(fmt.Sprintf("%d", i))).String()
		sessions[i].PlanID = planID
		if sessions[i].Status == "" {
			sessions[i].Status = StatusPending
		}
	}
}
