package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"github.com/abhisek/opoplan/internal/schedule"
	"github.com/abhisek/opoplan/internal/theme"
)

// ErrNotFound is returned when a record does not exist.
var ErrNotFound = errors.New("not found")

// PlanStatus is the lifecycle state of a plan.
type PlanStatus string

const (
	PlanActive    PlanStatus = "ACTIVE"
	PlanPaused    PlanStatus = "PAUSED"
	PlanCancelled PlanStatus = "CANCELLED"
	PlanCompleted PlanStatus = "COMPLETED"
	PlanDraft     PlanStatus = "DRAFT"
)

// Methodology is how a plan's calendar is produced.
type Methodology string

const (
	MethodologyRotation      Methodology = "ROTATION"
	MethodologyMonthlyBlocks Methodology = "MONTHLY_BLOCKS"
	MethodologyCustomBlocks  Methodology = "CUSTOM_BLOCKS"
)

// GenerationState is the durable state of a plan's generation task.
type GenerationState string

const (
	GenerationQueued    GenerationState = "queued"
	GenerationRunning   GenerationState = "running"
	GenerationSucceeded GenerationState = "succeeded"
	GenerationFailed    GenerationState = "failed"
)

// Plan is a study plan with its frozen generation inputs.
type Plan struct {
	ID                    string                      `json:"id"`
	UserID                string                      `json:"userId"`
	StartDate             time.Time                   `json:"-"`
	ExamDate              time.Time                   `json:"-"`
	Methodology           Methodology                 `json:"methodology"`
	TopicsPerDay          int                         `json:"topicsPerDay"`
	Status                PlanStatus                  `json:"status"`
	BufferDays            int                         `json:"bufferDays"`
	Week                  schedule.WeeklyAvailability `json:"weeklySchedule"`
	Topics                []schedule.Topic            `json:"themes"`
	Blocks                []schedule.BlockConfig      `json:"blocksConfig,omitempty"`
	AvailableDailyMinutes int                         `json:"availableDailyMinutes,omitempty"`
	GenerationState       GenerationState             `json:"generationState"`
	GenerationError       string                      `json:"generationError,omitempty"`
	Strategy              string                      `json:"strategy,omitempty"`
	Warnings              []string                    `json:"warnings,omitempty"`
	CreatedAt             time.Time                   `json:"createdAt"`
	UpdatedAt             time.Time                   `json:"updatedAt"`
}

// MarshalJSON renders the plan window as calendar dates.
func (p Plan) MarshalJSON() ([]byte, error) {
	type plan Plan
	return json.Marshal(struct {
		plan
		StartDate schedule.Date `json:"startDate"`
		ExamDate  schedule.Date `json:"examDate"`
	}{plan(p), schedule.NewDate(p.StartDate), schedule.NewDate(p.ExamDate)})
}

// ThemeRepo persists the theme catalog.
type ThemeRepo interface {
	// Upsert inserts or replaces themes by id.
	Upsert(ctx context.Context, themes []theme.Theme) error

	// List returns every theme ordered by id.
	List(ctx context.Context) ([]theme.Theme, error)

	// Get returns one theme or ErrNotFound.
	Get(ctx context.Context, id int) (*theme.Theme, error)
}

// PlanRepo persists plans.
type PlanRepo interface {
	// CreateExclusive cancels the user's ACTIVE plans and inserts p in one
	// transaction. It returns the ids of the cancelled plans.
	CreateExclusive(ctx context.Context, p *Plan) ([]string, error)

	// Get returns a plan or ErrNotFound.
	Get(ctx context.Context, id string) (*Plan, error)

	// Active returns the user's ACTIVE plan or ErrNotFound.
	Active(ctx context.Context, userID string) (*Plan, error)

	// ListByUser returns the user's plans, newest first.
	ListByUser(ctx context.Context, userID string) ([]Plan, error)

	// SetStatus changes the plan status.
	SetStatus(ctx context.Context, id string, status PlanStatus) error

	// Activate makes the plan ACTIVE and pauses every other ACTIVE plan of
	// the same user in one transaction.
	Activate(ctx context.Context, id string) error

	// SetGeneration records the generation task state.
	SetGeneration(ctx context.Context, id string, g GenerationUpdate) error

	// Delete removes a plan and its sessions.
	Delete(ctx context.Context, id string) error

	// Pending returns ids of plans whose generation is queued or running.
	Pending(ctx context.Context) ([]string, error)
}

// GenerationUpdate is a generation state transition. A non-empty Status
// changes the plan status in the same statement.
type GenerationUpdate struct {
	State    GenerationState
	Error    string
	Strategy string
	Warnings []string
	Status   PlanStatus
}

// SessionFilter narrows session listings. Zero values mean no filter.
type SessionFilter struct {
	From   time.Time
	To     time.Time
	Type   schedule.SessionType
	Status schedule.SessionStatus
	Limit  int
	Offset int
}

// SessionUpdate carries the user-editable fields of a session. Nil fields
// are left unchanged.
type SessionUpdate struct {
	Status         *schedule.SessionStatus
	CompletedHours *float64
	Notes          *string
}

// SessionBounds summarizes a plan's sessions for polling.
type SessionBounds struct {
	Count int
	First time.Time
	Last  time.Time
}

// SessionRepo persists scheduled sessions.
type SessionRepo interface {
	// ReplaceForPlan deletes the plan's sessions and inserts the new ones in
	// fixed-size chunks. When a chunk fails the remaining chunks are skipped
	// and the rows already written are removed.
	ReplaceForPlan(ctx context.Context, planID string, sessions []schedule.Session) error

	// ListByPlan returns sessions ordered by date.
	ListByPlan(ctx context.Context, planID string, f SessionFilter) ([]schedule.Session, error)

	// Bounds returns the count and date range of the plan's sessions.
	Bounds(ctx context.Context, planID string) (SessionBounds, error)

	// Get returns one session or ErrNotFound.
	Get(ctx context.Context, id string) (*schedule.Session, error)

	// Update applies a user edit and returns the updated session.
	Update(ctx context.Context, id string, u SessionUpdate) (*schedule.Session, error)
}

// DraftRepo persists one custom-block draft per user.
type DraftRepo interface {
	// Save inserts or replaces the user's draft.
	Save(ctx context.Context, userID string, data []byte) error

	// Load returns the draft and when it was saved, or ErrNotFound.
	Load(ctx context.Context, userID string) ([]byte, time.Time, error)
}

// execer is satisfied by *sql.DB and *sql.Tx.
type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// withTx runs fn in a transaction, committing on success.
func withTx(ctx context.Context, db *sql.DB, fn func(tx *sql.Tx) error) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	if err := fn(tx); err != nil {
		tx.Rollback()
		return err
	}
	return tx.Commit()
}
