package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"entgo.io/ent/dialect"
	entsql "entgo.io/ent/dialect/sql"

	"github.com/abhisek/opoplan/internal/schedule"
	"github.com/abhisek/opoplan/internal/theme"
)

// sessionRepo implements SessionRepo on SQLite.
type sessionRepo struct {
	db        *sql.DB
	batchSize int
}

var sessionColumns = []string{
	"id", "plan_id", "seq", "theme_id", "part_index", "part_label", "date",
	"hours", "type", "status", "completed_hours", "notes",
}

func (r *sessionRepo) ReplaceForPlan(ctx context.Context, planID string, sessions []schedule.Session) error {
	if err := r.deleteForPlan(ctx, r.db, planID); err != nil {
		return err
	}

	size := r.batchSize
	if size <= 0 {
		size = DefaultBatchSize
	}
	chunks := (len(sessions) + size - 1) / size
	for c := 0; c < chunks; c++ {
		lo := c * size
		hi := min(lo+size, len(sessions))
		err := withTx(ctx, r.db, func(tx *sql.Tx) error {
			return insertSessions(ctx, tx, planID, lo, sessions[lo:hi])
		})
		if err != nil {
			// Leave no partial schedule behind.
			if cleanupErr := r.deleteForPlan(context.WithoutCancel(ctx), r.db, planID); cleanupErr != nil {
				err = errors.Join(err, cleanupErr)
			}
			return fmt.Errorf("insert session chunk %d/%d: %w", c+1, chunks, err)
		}
	}
	return nil
}

func (r *sessionRepo) deleteForPlan(ctx context.Context, ex execer, planID string) error {
	query, args := entsql.Dialect(dialect.SQLite).
		Delete(tableSessions).
		Where(entsql.EQ("plan_id", planID)).
		Query()
	if _, err := ex.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("delete sessions: %w", err)
	}
	return nil
}

func insertSessions(ctx context.Context, ex execer, planID string, offset int, sessions []schedule.Session) error {
	if len(sessions) == 0 {
		return nil
	}
	ins := entsql.Dialect(dialect.SQLite).Insert(tableSessions).Columns(sessionColumns...)
	for i, s := range sessions {
		status := s.Status
		if status == "" {
			status = schedule.StatusPending
		}
		var completed any
		if s.CompletedHours != nil {
			completed = *s.CompletedHours
		}
		ins.Values(
			s.ID, planID, offset+i, s.Ref.BaseID, s.Ref.Part, s.PartLabel,
			s.Date.Format(schedule.DateLayout), s.Hours, string(s.Type), string(status),
			completed, s.Notes,
		)
	}
	query, args := ins.Query()
	_, err := ex.ExecContext(ctx, query, args...)
	return err
}

func (r *sessionRepo) ListByPlan(ctx context.Context, planID string, f SessionFilter) ([]schedule.Session, error) {
	sel := entsql.Dialect(dialect.SQLite).
		Select(sessionColumns...).
		From(entsql.Table(tableSessions)).
		Where(entsql.EQ("plan_id", planID))
	if !f.From.IsZero() {
		sel.Where(entsql.GTE("date", f.From.Format(schedule.DateLayout)))
	}
	if !f.To.IsZero() {
		sel.Where(entsql.LTE("date", f.To.Format(schedule.DateLayout)))
	}
	if f.Type != "" {
		sel.Where(entsql.EQ("type", string(f.Type)))
	}
	if f.Status != "" {
		sel.Where(entsql.EQ("status", string(f.Status)))
	}
	sel.OrderBy(entsql.Asc("date"), entsql.Asc("seq"))
	if f.Limit > 0 {
		sel.Limit(f.Limit)
		if f.Offset > 0 {
			sel.Offset(f.Offset)
		}
	}

	query, args := sel.Query()
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query sessions: %w", err)
	}
	defer rows.Close()

	var out []schedule.Session
	for rows.Next() {
		s, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *s)
	}
	return out, rows.Err()
}

func (r *sessionRepo) Bounds(ctx context.Context, planID string) (SessionBounds, error) {
	query, args := entsql.Dialect(dialect.SQLite).
		Select(entsql.Count("*"), entsql.Min("date"), entsql.Max("date")).
		From(entsql.Table(tableSessions)).
		Where(entsql.EQ("plan_id", planID)).
		Query()

	var (
		b           SessionBounds
		first, last sql.NullString
	)
	if err := r.db.QueryRowContext(ctx, query, args...).Scan(&b.Count, &first, &last); err != nil {
		return b, fmt.Errorf("query session bounds: %w", err)
	}
	var err error
	if first.Valid {
		if b.First, err = time.Parse(schedule.DateLayout, first.String); err != nil {
			return b, fmt.Errorf("parse first date: %w", err)
		}
	}
	if last.Valid {
		if b.Last, err = time.Parse(schedule.DateLayout, last.String); err != nil {
			return b, fmt.Errorf("parse last date: %w", err)
		}
	}
	return b, nil
}

func (r *sessionRepo) Get(ctx context.Context, id string) (*schedule.Session, error) {
	query, args := entsql.Dialect(dialect.SQLite).
		Select(sessionColumns...).
		From(entsql.Table(tableSessions)).
		Where(entsql.EQ("id", id)).
		Query()
	return scanSession(r.db.QueryRowContext(ctx, query, args...))
}

func (r *sessionRepo) Update(ctx context.Context, id string, u SessionUpdate) (*schedule.Session, error) {
	if u.Status != nil || u.CompletedHours != nil || u.Notes != nil {
		upd := entsql.Dialect(dialect.SQLite).Update(tableSessions)
		if u.Status != nil {
			upd.Set("status", string(*u.Status))
		}
		if u.CompletedHours != nil {
			upd.Set("completed_hours", *u.CompletedHours)
		}
		if u.Notes != nil {
			upd.Set("notes", *u.Notes)
		}
		query, args := upd.Where(entsql.EQ("id", id)).Query()
		if err := execOne(ctx, r.db, query, args, "update session"); err != nil {
			return nil, err
		}
	}
	return r.Get(ctx, id)
}

// scanSession reads a session row. Hours are parsed leniently so rows
// written by other tools with textual hours still load.
func scanSession(row rowScanner) (*schedule.Session, error) {
	var (
		s                  schedule.Session
		seq, themeID, part int
		date, typ, status  string
		hours, completed   any
	)
	err := row.Scan(&s.ID, &s.PlanID, &seq, &themeID, &part, &s.PartLabel, &date,
		&hours, &typ, &status, &completed, &s.Notes)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("scan session: %w", err)
	}
	if s.Date, err = time.Parse(schedule.DateLayout, date); err != nil {
		return nil, fmt.Errorf("session %s date: %w", s.ID, err)
	}
	s.Ref = theme.Ref{BaseID: themeID, Part: part}
	s.Hours = schedule.ParseHours(hours)
	s.Type = schedule.SessionType(typ)
	s.Status = schedule.SessionStatus(status)
	if completed != nil {
		h := schedule.ParseHours(completed)
		s.CompletedHours = &h
	}
	return &s, nil
}
