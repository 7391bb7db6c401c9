package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"entgo.io/ent/dialect"
	entsql "entgo.io/ent/dialect/sql"

	"github.com/abhisek/opoplan/internal/theme"
)

// themeRepo implements ThemeRepo on SQLite.
type themeRepo struct {
	db *sql.DB
}

var themeColumns = []string{"id", "title", "estimated_hours", "complexity", "part_count", "block_id"}

func (r *themeRepo) Upsert(ctx context.Context, themes []theme.Theme) error {
	if len(themes) == 0 {
		return nil
	}
	ins := entsql.Dialect(dialect.SQLite).Insert(tableThemes).Columns(themeColumns...)
	for _, t := range themes {
		if t.BlockID == 0 {
			t.BlockID = theme.BlockFor(theme.DefaultBlocks, t.ID)
		}
		if t.PartCount < 1 {
			t.PartCount = 1
		}
		ins.Values(t.ID, t.Title, t.EstimatedHours, string(theme.ParseComplexity(string(t.Complexity))), t.PartCount, t.BlockID)
	}
	query, args := ins.OnConflict(entsql.ConflictColumns("id"), entsql.ResolveWithNewValues()).Query()
	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("upsert themes: %w", err)
	}
	return nil
}

func (r *themeRepo) List(ctx context.Context) ([]theme.Theme, error) {
	query, args := entsql.Dialect(dialect.SQLite).
		Select(themeColumns...).
		From(entsql.Table(tableThemes)).
		OrderBy(entsql.Asc("id")).
		Query()
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query themes: %w", err)
	}
	defer rows.Close()

	var out []theme.Theme
	for rows.Next() {
		t, err := scanTheme(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *t)
	}
	return out, rows.Err()
}

func (r *themeRepo) Get(ctx context.Context, id int) (*theme.Theme, error) {
	query, args := entsql.Dialect(dialect.SQLite).
		Select(themeColumns...).
		From(entsql.Table(tableThemes)).
		Where(entsql.EQ("id", id)).
		Query()
	t, err := scanTheme(r.db.QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return t, err
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTheme(row rowScanner) (*theme.Theme, error) {
	var (
		t          theme.Theme
		complexity string
	)
	if err := row.Scan(&t.ID, &t.Title, &t.EstimatedHours, &complexity, &t.PartCount, &t.BlockID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scan theme: %w", err)
	}
	t.Complexity = theme.ParseComplexity(complexity)
	return &t, nil
}
