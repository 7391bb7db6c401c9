package schedule

import (
	"math"

	"github.com/abhisek/opoplan/internal/theme"
)

// MixEntry sizes one session type relative to a theme's study hours.
type MixEntry struct {
	Type     SessionType
	Factor   float64
	MinHours float64
}

// SessionMix is the fixed mix table shared by feasibility and generation.
var SessionMix = []MixEntry{
	{Type: TypeStudy, Factor: 1.00, MinHours: 0},
	{Type: TypeReview, Factor: 0.25, MinHours: 0.5},
	{Type: TypeFlashReview, Factor: 0.15, MinHours: 0.5},
	{Type: TypeTest, Factor: 0.10, MinHours: 0.5},
	{Type: TypeSimulation, Factor: 0.10, MinHours: 0.5},
}

// minPiece is the smallest session the splitter produces on purpose.
const minPiece = 0.25

// tier holds the per-complexity session shape.
type tier struct {
	maxPiece   float64
	reviewReps int
}

func tierFor(c theme.Complexity) tier {
	switch c {
	case theme.ComplexityHigh:
		return tier{maxPiece: 1.5, reviewReps: 4}
	case theme.ComplexityLow:
		return tier{maxPiece: 2.5, reviewReps: 2}
	default:
		return tier{maxPiece: 2, reviewReps: 3}
	}
}

func typeHours(hours float64, e MixEntry) float64 {
	return math.Max(hours*e.Factor, e.MinHours)
}

// RequiredHours is the total a topic of the given study hours needs across
// every session type.
func RequiredHours(hours float64) float64 {
	total := 0.0
	for _, e := range SessionMix {
		total += typeHours(hours, e)
	}
	return total
}

// Allocation is the share of one session type for a topic, already split
// into session-sized pieces.
type Allocation struct {
	Type   SessionType
	Hours  float64
	Pieces []float64
}

// MixFor derives the per-type allocation for a topic. maxSession caps every
// piece on top of the complexity tier; non-positive means no extra cap.
// The allocation hours add up to RequiredHours(t.Hours).
func MixFor(t Topic, maxSession float64) []Allocation {
	tr := tierFor(t.Complexity)
	limit := tr.maxPiece
	if maxSession > 0 && maxSession < limit {
		limit = maxSession
	}

	out := make([]Allocation, 0, len(SessionMix))
	for _, e := range SessionMix {
		h := typeHours(t.Hours, e)
		if h <= epsilon {
			continue
		}
		n := int(math.Ceil(h/limit - epsilon))
		if e.Type == TypeReview || e.Type == TypeFlashReview {
			reps := tr.reviewReps
			if maxReps := int(math.Floor(h/minPiece + epsilon)); reps > maxReps {
				reps = maxReps
			}
			if reps > n {
				n = reps
			}
		}
		out = append(out, Allocation{Type: e.Type, Hours: h, Pieces: SplitHours(h, n)})
	}
	return out
}

// SplitHours divides hours into n near-equal pieces whose sum is exactly
// hours; the last piece takes the remainder.
func SplitHours(hours float64, n int) []float64 {
	if n < 1 {
		n = 1
	}
	pieces := make([]float64, n)
	base := hours / float64(n)
	rest := hours
	for i := 0; i < n-1; i++ {
		pieces[i] = base
		rest -= base
	}
	pieces[n-1] = rest
	return pieces
}

// chunk splits hours into pieces no larger than size.
func chunk(hours, size float64) []float64 {
	if size <= 0 || hours <= size+epsilon {
		return []float64{hours}
	}
	n := int(math.Ceil(hours/size - epsilon))
	out := make([]float64, 0, n)
	rest := hours
	for rest > size+epsilon {
		out = append(out, size)
		rest -= size
	}
	if rest > epsilon {
		out = append(out, rest)
	}
	return out
}
