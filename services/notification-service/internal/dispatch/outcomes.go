package dispatch

import (
	"context"
	"encoding/json"
	"time"

	"github.com/serenio-health/serenio/libs/db"
	"github.com/serenio-health/serenio/libs/outbox"
)

// OutboxOutcomes publishes delivery results through the transactional outbox.
type OutboxOutcomes struct {
	pool *db.Pool
	repo *outbox.Repository
}

func NewOutboxOutcomes(pool *db.Pool, repo *outbox.Repository) *OutboxOutcomes {
	return &OutboxOutcomes{pool: pool, repo: repo}
}

func (o *OutboxOutcomes) Sent(ctx context.Context, appointmentID, kind string) error {
	return o.stage(ctx, appointmentID, "notification.sent.v1", map[string]any{
		"appointment_id": appointmentID,
		"kind":           kind,
		"sent_at":        time.Now().UTC().Format(time.RFC3339),
	})
}

func (o *OutboxOutcomes) Failed(ctx context.Context, appointmentID, kind, reason string) error {
	return o.stage(ctx, appointmentID, "notification.failed.v1", map[string]any{
		"appointment_id": appointmentID,
		"kind":           kind,
		"error_reason":   reason,
		"failed_at":      time.Now().UTC().Format(time.RFC3339),
	})
}

func (o *OutboxOutcomes) stage(ctx context.Context, appointmentID, eventType string, payload map[string]any) error {
	raw, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	tx, err := o.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if err := o.repo.Insert(ctx, tx, outbox.Event{
		AggregateType: "notification",
		AggregateID:   appointmentID,
		EventType:     eventType,
		Payload:       raw,
	}); err != nil {
		return err
	}
	return tx.Commit(ctx)
}
