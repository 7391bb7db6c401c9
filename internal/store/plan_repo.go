package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"entgo.io/ent/dialect"
	entsql "entgo.io/ent/dialect/sql"

	"github.com/abhisek/opoplan/internal/schedule"
)

// planRepo implements PlanRepo on SQLite.
type planRepo struct {
	db *sql.DB
}

var planColumns = []string{
	"id", "user_id", "start_date", "exam_date", "methodology", "topics_per_day", "status",
	"buffer_days", "weekly_schedule", "topics", "blocks", "available_daily_minutes",
	"generation_state", "generation_error", "strategy", "warnings", "created_at", "updated_at",
}

func (r *planRepo) CreateExclusive(ctx context.Context, p *Plan) ([]string, error) {
	now := time.Now().UTC()
	if p.CreatedAt.IsZero() {
		p.CreatedAt = now
	}
	p.UpdatedAt = now
	if p.GenerationState == "" {
		p.GenerationState = GenerationQueued
	}
	values, err := planValues(p)
	if err != nil {
		return nil, err
	}

	var demoted []string
	err = withTx(ctx, r.db, func(tx *sql.Tx) error {
		ids, err := r.activeIDs(ctx, tx, p.UserID)
		if err != nil {
			return err
		}
		if len(ids) > 0 {
			if err := setStatusIn(ctx, tx, ids, PlanCancelled, now); err != nil {
				return fmt.Errorf("cancel active plans: %w", err)
			}
		}
		demoted = ids

		query, args := entsql.Dialect(dialect.SQLite).
			Insert(tablePlans).
			Columns(planColumns...).
			Values(values...).
			Query()
		if _, err := tx.ExecContext(ctx, query, args...); err != nil {
			return fmt.Errorf("insert plan: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return demoted, nil
}

func (r *planRepo) activeIDs(ctx context.Context, ex execer, userID string) ([]string, error) {
	query, args := entsql.Dialect(dialect.SQLite).
		Select("id").
		From(entsql.Table(tablePlans)).
		Where(entsql.And(entsql.EQ("user_id", userID), entsql.EQ("status", string(PlanActive)))).
		Query()
	return queryIDs(ctx, ex, query, args)
}

func queryIDs(ctx context.Context, ex execer, query string, args []any) ([]string, error) {
	rows, err := ex.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query plan ids: %w", err)
	}
	defer rows.Close()
	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan plan id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func setStatusIn(ctx context.Context, ex execer, ids []string, status PlanStatus, now time.Time) error {
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	query, qargs := entsql.Dialect(dialect.SQLite).
		Update(tablePlans).
		Set("status", string(status)).
		Set("updated_at", now).
		Where(entsql.In("id", args...)).
		Query()
	_, err := ex.ExecContext(ctx, query, qargs...)
	return err
}

func (r *planRepo) Get(ctx context.Context, id string) (*Plan, error) {
	query, args := entsql.Dialect(dialect.SQLite).
		Select(planColumns...).
		From(entsql.Table(tablePlans)).
		Where(entsql.EQ("id", id)).
		Query()
	return scanPlan(r.db.QueryRowContext(ctx, query, args...))
}

func (r *planRepo) Active(ctx context.Context, userID string) (*Plan, error) {
	query, args := entsql.Dialect(dialect.SQLite).
		Select(planColumns...).
		From(entsql.Table(tablePlans)).
		Where(entsql.And(entsql.EQ("user_id", userID), entsql.EQ("status", string(PlanActive)))).
		OrderBy(entsql.Desc("created_at")).
		Limit(1).
		Query()
	return scanPlan(r.db.QueryRowContext(ctx, query, args...))
}

func (r *planRepo) ListByUser(ctx context.Context, userID string) ([]Plan, error) {
	query, args := entsql.Dialect(dialect.SQLite).
		Select(planColumns...).
		From(entsql.Table(tablePlans)).
		Where(entsql.EQ("user_id", userID)).
		OrderBy(entsql.Desc("created_at")).
		Query()
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query plans: %w", err)
	}
	defer rows.Close()

	var out []Plan
	for rows.Next() {
		p, err := scanPlan(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *p)
	}
	return out, rows.Err()
}

func (r *planRepo) SetStatus(ctx context.Context, id string, status PlanStatus) error {
	query, args := entsql.Dialect(dialect.SQLite).
		Update(tablePlans).
		Set("status", string(status)).
		Set("updated_at", time.Now().UTC()).
		Where(entsql.EQ("id", id)).
		Query()
	return execOne(ctx, r.db, query, args, "set plan status")
}

func (r *planRepo) Activate(ctx context.Context, id string) error {
	now := time.Now().UTC()
	return withTx(ctx, r.db, func(tx *sql.Tx) error {
		var userID string
		query, args := entsql.Dialect(dialect.SQLite).
			Select("user_id").
			From(entsql.Table(tablePlans)).
			Where(entsql.EQ("id", id)).
			Query()
		if err := tx.QueryRowContext(ctx, query, args...).Scan(&userID); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return ErrNotFound
			}
			return fmt.Errorf("load plan owner: %w", err)
		}

		ids, err := r.activeIDs(ctx, tx, userID)
		if err != nil {
			return err
		}
		var others []string
		for _, other := range ids {
			if other != id {
				others = append(others, other)
			}
		}
		if len(others) > 0 {
			if err := setStatusIn(ctx, tx, others, PlanPaused, now); err != nil {
				return fmt.Errorf("pause active plans: %w", err)
			}
		}
		return setStatusIn(ctx, tx, []string{id}, PlanActive, now)
	})
}

func (r *planRepo) SetGeneration(ctx context.Context, id string, g GenerationUpdate) error {
	warnings, err := marshalNullable(g.Warnings)
	if err != nil {
		return err
	}
	upd := entsql.Dialect(dialect.SQLite).
		Update(tablePlans).
		Set("generation_state", string(g.State)).
		Set("generation_error", g.Error).
		Set("strategy", g.Strategy).
		Set("updated_at", time.Now().UTC())
	if warnings == nil {
		upd.SetNull("warnings")
	} else {
		upd.Set("warnings", warnings)
	}
	if g.Status != "" {
		upd.Set("status", string(g.Status))
	}
	query, args := upd.Where(entsql.EQ("id", id)).Query()
	return execOne(ctx, r.db, query, args, "set generation state")
}

func (r *planRepo) Delete(ctx context.Context, id string) error {
	return withTx(ctx, r.db, func(tx *sql.Tx) error {
		query, args := entsql.Dialect(dialect.SQLite).
			Delete(tableSessions).
			Where(entsql.EQ("plan_id", id)).
			Query()
		if _, err := tx.ExecContext(ctx, query, args...); err != nil {
			return fmt.Errorf("delete plan sessions: %w", err)
		}
		query, args = entsql.Dialect(dialect.SQLite).
			Delete(tablePlans).
			Where(entsql.EQ("id", id)).
			Query()
		return execOne(ctx, tx, query, args, "delete plan")
	})
}

func (r *planRepo) Pending(ctx context.Context) ([]string, error) {
	query, args := entsql.Dialect(dialect.SQLite).
		Select("id").
		From(entsql.Table(tablePlans)).
		Where(entsql.In("generation_state", string(GenerationQueued), string(GenerationRunning))).
		OrderBy(entsql.Asc("created_at")).
		Query()
	return queryIDs(ctx, r.db, query, args)
}

// execOne runs a statement that must touch exactly one row.
func execOne(ctx context.Context, ex execer, query string, args []any, op string) error {
	res, err := ex.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func planValues(p *Plan) ([]any, error) {
	week, err := json.Marshal(p.Week)
	if err != nil {
		return nil, fmt.Errorf("marshal weekly schedule: %w", err)
	}
	topics, err := json.Marshal(p.Topics)
	if err != nil {
		return nil, fmt.Errorf("marshal topics: %w", err)
	}
	blocks, err := marshalNullable(p.Blocks)
	if err != nil {
		return nil, err
	}
	warnings, err := marshalNullable(p.Warnings)
	if err != nil {
		return nil, err
	}
	return []any{
		p.ID, p.UserID,
		p.StartDate.Format(schedule.DateLayout), p.ExamDate.Format(schedule.DateLayout),
		string(p.Methodology), p.TopicsPerDay, string(p.Status), p.BufferDays,
		string(week), string(topics), blocks, p.AvailableDailyMinutes,
		string(p.GenerationState), p.GenerationError, p.Strategy, warnings,
		p.CreatedAt, p.UpdatedAt,
	}, nil
}

// marshalNullable encodes empty slices as SQL NULL.
func marshalNullable[T any](v []T) (any, error) {
	if len(v) == 0 {
		return nil, nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("marshal json column: %w", err)
	}
	return string(b), nil
}

func scanPlan(row rowScanner) (*Plan, error) {
	var (
		p                             Plan
		start, exam                   string
		methodology, status, genState string
		week, topics, blocks, warns   []byte
	)
	err := row.Scan(
		&p.ID, &p.UserID, &start, &exam, &methodology, &p.TopicsPerDay, &status,
		&p.BufferDays, &week, &topics, &blocks, &p.AvailableDailyMinutes,
		&genState, &p.GenerationError, &p.Strategy, &warns, &p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("scan plan: %w", err)
	}
	p.Methodology = Methodology(methodology)
	p.Status = PlanStatus(status)
	p.GenerationState = GenerationState(genState)

	if p.StartDate, err = time.Parse(schedule.DateLayout, start); err != nil {
		return nil, fmt.Errorf("plan %s start date: %w", p.ID, err)
	}
	if p.ExamDate, err = time.Parse(schedule.DateLayout, exam); err != nil {
		return nil, fmt.Errorf("plan %s exam date: %w", p.ID, err)
	}
	if err := json.Unmarshal(week, &p.Week); err != nil {
		return nil, fmt.Errorf("plan %s weekly schedule: %w", p.ID, err)
	}
	if err := json.Unmarshal(topics, &p.Topics); err != nil {
		return nil, fmt.Errorf("plan %s topics: %w", p.ID, err)
	}
	if len(blocks) > 0 {
		if err := json.Unmarshal(blocks, &p.Blocks); err != nil {
			return nil, fmt.Errorf("plan %s blocks: %w", p.ID, err)
		}
	}
	if len(warns) > 0 {
		if err := json.Unmarshal(warns, &p.Warnings); err != nil {
			return nil, fmt.Errorf("plan %s warnings: %w", p.ID, err)
		}
	}
	return &p, nil
}
