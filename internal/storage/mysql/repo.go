package mysql

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"review_analysis/internal/adapters/observability"
	"review_analysis/internal/domain"
)

func valTime(t time.Time) any {
	if t.IsZero() {
		return nil
	}
	return t
}

// Repo is the MySQL-backed session store.
type Repo struct {
	db  *sql.DB
	ttl time.Duration
	now func() time.Time
}

func New(db *sql.DB, ttl time.Duration) *Repo {
	return &Repo{db: db, ttl: ttl, now: time.Now}
}

func (r *Repo) Put(ctx context.Context, id string, set domain.ReviewSet) error {
	payload, err := json.Marshal(set)
	if err != nil {
		return fmt.Errorf("encode session: %w", err)
	}
	var expires time.Time
	if r.ttl > 0 {
		expires = r.now().UTC().Add(r.ttl)
	}
	if _, err := r.db.ExecContext(ctx, upsertSessionSQL, id, string(payload), len(set.Reviews), valTime(expires)); err != nil {
		observability.ObserveSession("mysql", "error")
		return fmt.Errorf("upsert session %s: %w", id, err)
	}
	observability.ObserveSession("mysql", "set")
	return nil
}

func (r *Repo) Get(ctx context.Context, id string) (domain.ReviewSet, bool, error) {
	var payload []byte
	err := r.db.QueryRowContext(ctx, getSessionSQL, id, r.now().UTC()).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		observability.ObserveSession("mysql", "miss")
		return domain.ReviewSet{}, false, nil
	}
	if err != nil {
		observability.ObserveSession("mysql", "error")
		return domain.ReviewSet{}, false, err
	}

	var set domain.ReviewSet
	if err := json.Unmarshal(payload, &set); err != nil {
		observability.ObserveSession("mysql", "error")
		return domain.ReviewSet{}, false, fmt.Errorf("decode session %s: %w", id, err)
	}
	observability.ObserveSession("mysql", "hit")
	return set, true, nil
}

// DeleteExpired removes sessions past their expiry and returns how many went.
func (r *Repo) DeleteExpired(ctx context.Context) (int64, error) {
	res, err := r.db.ExecContext(ctx, deleteExpiredSQL, r.now().UTC())
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
