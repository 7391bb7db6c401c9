package schedule

import (
	"fmt"
	"strings"
)

// ValidationError reports request problems the user can correct. It is
// raised before anything is written.
type ValidationError struct {
	Problems []string
}

func (e *ValidationError) Error() string {
	return "invalid plan request: " + strings.Join(e.Problems, "; ")
}

// NewValidationError builds a ValidationError from one or more problems.
func NewValidationError(problems ...string) *ValidationError {
	return &ValidationError{Problems: problems}
}

// InfeasiblePlanError reports that the themes need more hours than the
// calendar offers before the buffer cutoff. Deficit is exact.
type InfeasiblePlanError struct {
	RequiredHours  float64
	AvailableHours float64
	Deficit        float64
}

func (e *InfeasiblePlanError) Error() string {
	return fmt.Sprintf("plan is infeasible: %.2f hours required, %.2f available (deficit %.2f hours)",
		e.RequiredHours, e.AvailableHours, e.Deficit)
}

// SchedulingFailure reports that a strategy could not place every required
// hour within the daily caps.
type SchedulingFailure struct {
	Strategy      Kind
	UnplacedHours float64
	Reason        string
}

func (e *SchedulingFailure) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("%s scheduling failed: %s", e.Strategy, e.Reason)
	}
	return fmt.Sprintf("%s scheduling failed: %.2f hours could not be placed", e.Strategy, e.UnplacedHours)
}

// BlockProblem is a single custom-block validation finding.
type BlockProblem struct {
	Block   int    `json:"block"`
	Day     string `json:"day,omitempty"`
	Message string `json:"message"`
}

func (p BlockProblem) String() string {
	if p.Day != "" {
		return fmt.Sprintf("block %d (%s): %s", p.Block, p.Day, p.Message)
	}
	return fmt.Sprintf("block %d: %s", p.Block, p.Message)
}

// BlockValidationError lists every problem found across custom blocks.
type BlockValidationError struct {
	Problems []BlockProblem
}

func (e *BlockValidationError) Error() string {
	parts := make([]string, len(e.Problems))
	for i, p := range e.Problems {
		parts[i] = p.String()
	}
	return "invalid custom blocks: " + strings.Join(parts, "; ")
}

// ByBlock groups the problems by block number.
func (e *BlockValidationError) ByBlock() map[int][]BlockProblem {
	out := make(map[int][]BlockProblem)
	for _, p := range e.Problems {
		out[p.Block] = append(out[p.Block], p)
	}
	return out
}
