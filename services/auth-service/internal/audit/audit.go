// Package audit records security-relevant auth actions (registration, login,
// credential failures) for later review.
package audit

import (
	"context"
	"encoding/json"
	"time"

	"github.com/serenio-health/serenio/libs/db"
)

type Repository struct {
	pool *db.Pool
}

func NewRepository(pool *db.Pool) *Repository {
	return &Repository{pool: pool}
}

// Record writes one audit row. Callers treat failures as non-fatal; an audit
// miss must never block a login.
func (r *Repository) Record(ctx context.Context, action string, userID string, detail map[string]any) error {
	raw, err := json.Marshal(detail)
	if err != nil {
		return err
	}
	_, err = r.pool.Exec(ctx, `
		INSERT INTO audit_events (user_id, action, detail)
		VALUES (NULLIF($1, '')::uuid, $2, $3)
	`, userID, action, raw)
	return err
}

type Event struct {
	ID         int64           `json:"id"`
	UserID     string          `json:"user_id,omitempty"`
	Action     string          `json:"action"`
	Detail     json.RawMessage `json:"detail"`
	OccurredAt string          `json:"occurred_at"`
}

func (r *Repository) ListRecent(ctx context.Context, limit int) ([]Event, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	rows, err := r.pool.Query(ctx, `
		SELECT id, COALESCE(user_id::text, ''), action, detail, occurred_at
		FROM audit_events
		ORDER BY id DESC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []Event
	for rows.Next() {
		var e Event
		var occurredAt time.Time
		if err := rows.Scan(&e.ID, &e.UserID, &e.Action, &e.Detail, &occurredAt); err != nil {
			return nil, err
		}
		e.OccurredAt = occurredAt.UTC().Format(time.RFC3339)
		events = append(events, e)
	}
	return events, rows.Err()
}
