package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"entgo.io/ent/dialect"
	entsql "entgo.io/ent/dialect/sql"
)

// draftRepo implements DraftRepo on SQLite.
type draftRepo struct {
	db *sql.DB
}

func (r *draftRepo) Save(ctx context.Context, userID string, data []byte) error {
	query, args := entsql.Dialect(dialect.SQLite).
		Insert(tableDrafts).
		Columns("user_id", "data", "updated_at").
		Values(userID, string(data), time.Now().UTC()).
		OnConflict(entsql.ConflictColumns("user_id"), entsql.ResolveWithNewValues()).
		Query()
	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("save draft: %w", err)
	}
	return nil
}

func (r *draftRepo) Load(ctx context.Context, userID string) ([]byte, time.Time, error) {
	query, args := entsql.Dialect(dialect.SQLite).
		Select("data", "updated_at").
		From(entsql.Table(tableDrafts)).
		Where(entsql.EQ("user_id", userID)).
		Query()

	var (
		data    []byte
		updated time.Time
	)
	if err := r.db.QueryRowContext(ctx, query, args...).Scan(&data, &updated); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, time.Time{}, ErrNotFound
		}
		return nil, time.Time{}, fmt.Errorf("load draft: %w", err)
	}
	return data, updated, nil
}
