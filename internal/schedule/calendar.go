package schedule

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// DateLayout is the wire and storage format of calendar days.
const DateLayout = "2006-01-02"

// Day truncates t to midnight UTC of its calendar date.
func Day(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// Cutoff returns the last day on which sessions may be scheduled: the exam
// date minus the free-preparation buffer.
func Cutoff(exam time.Time, bufferDays int) time.Time {
	return Day(exam).AddDate(0, 0, -bufferDays)
}

// DaysBetween returns every calendar day in [from, to], inclusive.
// Returns nil when to is before from.
func DaysBetween(from, to time.Time) []time.Time {
	from, to = Day(from), Day(to)
	if to.Before(from) {
		return nil
	}
	var days []time.Time
	for d := from; !d.After(to); d = d.AddDate(0, 0, 1) {
		days = append(days, d)
	}
	return days
}

// WeeklyAvailability is the study budget in hours for each weekday.
type WeeklyAvailability struct {
	Monday    float64 `json:"monday" validate:"gte=0,lte=24"`
	Tuesday   float64 `json:"tuesday" validate:"gte=0,lte=24"`
	Wednesday float64 `json:"wednesday" validate:"gte=0,lte=24"`
	Thursday  float64 `json:"thursday" validate:"gte=0,lte=24"`
	Friday    float64 `json:"friday" validate:"gte=0,lte=24"`
	Saturday  float64 `json:"saturday" validate:"gte=0,lte=24"`
	Sunday    float64 `json:"sunday" validate:"gte=0,lte=24"`
}

// For returns the hours available on the given weekday.
func (w WeeklyAvailability) For(day time.Weekday) float64 {
	switch day {
	case time.Monday:
		return w.Monday
	case time.Tuesday:
		return w.Tuesday
	case time.Wednesday:
		return w.Wednesday
	case time.Thursday:
		return w.Thursday
	case time.Friday:
		return w.Friday
	case time.Saturday:
		return w.Saturday
	default:
		return w.Sunday
	}
}

// Total returns the weekly hour budget.
func (w WeeklyAvailability) Total() float64 {
	return w.Monday + w.Tuesday + w.Wednesday + w.Thursday + w.Friday + w.Saturday + w.Sunday
}

// MaxDaily returns the largest single-day budget.
func (w WeeklyAvailability) MaxDaily() float64 {
	max := 0.0
	for d := time.Sunday; d <= time.Saturday; d++ {
		if h := w.For(d); h > max {
			max = h
		}
	}
	return max
}

// Date is a calendar day that travels as "YYYY-MM-DD" in JSON.
type Date struct {
	time.Time
}

// NewDate wraps t truncated to its calendar day.
func NewDate(t time.Time) Date { return Date{Day(t)} }

// ParseDate parses "YYYY-MM-DD". Full RFC 3339 timestamps are accepted and
// truncated to their date.
func ParseDate(s string) (Date, error) {
	s = strings.TrimSpace(s)
	if t, err := time.Parse(DateLayout, s); err == nil {
		return Date{t}, nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return Date{}, fmt.Errorf("invalid date %q: want YYYY-MM-DD", s)
	}
	return NewDate(t), nil
}

// String renders the date as YYYY-MM-DD.
func (d Date) String() string {
	if d.IsZero() {
		return ""
	}
	return d.Format(DateLayout)
}

func (d Date) MarshalJSON() ([]byte, error) {
	if d.IsZero() {
		return []byte("null"), nil
	}
	return json.Marshal(d.String())
}

func (d *Date) UnmarshalJSON(b []byte) error {
	if string(b) == "null" {
		*d = Date{}
		return nil
	}
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return fmt.Errorf("date must be a string: %w", err)
	}
	parsed, err := ParseDate(s)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}
