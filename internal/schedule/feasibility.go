package schedule

import "time"

// Estimate is the outcome of a feasibility check.
type Estimate struct {
	RequiredHours  float64   `json:"requiredHours"`
	AvailableHours float64   `json:"availableHours"`
	Slack          float64   `json:"slack"`
	Cutoff         time.Time `json:"-"`
	StudyDays      int       `json:"studyDays"`
}

// AvailableHours sums the weekly budget of every day in [start, cutoff].
// It also returns the number of days with a positive budget.
func AvailableHours(start, cutoff time.Time, week WeeklyAvailability) (float64, int) {
	total := 0.0
	days := 0
	for _, d := range DaysBetween(start, cutoff) {
		if h := week.For(d.Weekday()); h > 0 {
			total += h
			days++
		}
	}
	return total, days
}

// TotalRequired sums RequiredHours over the topics.
func TotalRequired(topics []Topic) float64 {
	total := 0.0
	for _, t := range topics {
		total += RequiredHours(t.Hours)
	}
	return total
}

// EstimateFeasibility compares the hours the topics need with the hours the
// calendar offers before the buffer cutoff. It returns the estimate in both
// cases and an *InfeasiblePlanError when there is a deficit.
func EstimateFeasibility(topics []Topic, start, exam time.Time, week WeeklyAvailability, bufferDays int) (Estimate, error) {
	cutoff := Cutoff(exam, bufferDays)
	available, days := AvailableHours(start, cutoff, week)
	required := TotalRequired(topics)

	est := Estimate{
		RequiredHours:  required,
		AvailableHours: available,
		Slack:          available - required,
		Cutoff:         cutoff,
		StudyDays:      days,
	}
	if required > available {
		return est, &InfeasiblePlanError{
			RequiredHours:  required,
			AvailableHours: available,
			Deficit:        required - available,
		}
	}
	return est, nil
}
