// Package storage holds payment records and the provider-event idempotency
// ledger for webhook replays.
package storage

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/serenio-health/serenio/libs/db"
)

var (
	ErrNotFound               = errors.New("payment not found")
	ErrDuplicateProviderEvent = errors.New("duplicate provider event")
)

type Payment struct {
	ID                string
	AppointmentID     string
	UserID            string
	AmountCents       int64
	Currency          string
	ProviderSessionID string
	Status            string
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

type ProviderEvent struct {
	Provider        string
	ProviderEventID string
	EventType       string
	Payload         []byte
}

type Repository struct {
	pool *db.Pool
}

func NewRepository(pool *db.Pool) *Repository {
	return &Repository{pool: pool}
}

func (r *Repository) Begin(ctx context.Context) (pgx.Tx, error) {
	return r.pool.Begin(ctx)
}

func (r *Repository) Create(ctx context.Context, p Payment) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO payments (id, appointment_id, user_id, amount_cents, currency, provider_session_id, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, p.ID, p.AppointmentID, p.UserID, p.AmountCents, p.Currency, p.ProviderSessionID, p.Status)
	return err
}

// MarkCompletedBySession flips the payment for a checkout session to
// completed and returns it. Runs inside the webhook transaction.
func (r *Repository) MarkCompletedBySession(ctx context.Context, tx pgx.Tx, sessionID string) (Payment, error) {
	var p Payment
	err := tx.QueryRow(ctx, `
		UPDATE payments
		SET status = 'completed', updated_at = now()
		WHERE provider_session_id = $1
		RETURNING id, appointment_id, user_id, amount_cents, currency, provider_session_id, status, created_at, updated_at
	`, sessionID).Scan(&p.ID, &p.AppointmentID, &p.UserID, &p.AmountCents, &p.Currency, &p.ProviderSessionID, &p.Status, &p.CreatedAt, &p.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Payment{}, ErrNotFound
	}
	return p, err
}

func (r *Repository) MarkFailedBySession(ctx context.Context, tx pgx.Tx, sessionID string) error {
	_, err := tx.Exec(ctx, `
		UPDATE payments
		SET status = 'failed', updated_at = now()
		WHERE provider_session_id = $1 AND status = 'pending'
	`, sessionID)
	return err
}

func (r *Repository) GetByAppointment(ctx context.Context, appointmentID string) (Payment, error) {
	var p Payment
	err := r.pool.QueryRow(ctx, `
		SELECT id, appointment_id, user_id, amount_cents, currency, provider_session_id, status, created_at, updated_at
		FROM payments
		WHERE appointment_id = $1
		ORDER BY created_at DESC
		LIMIT 1
	`, appointmentID).Scan(&p.ID, &p.AppointmentID, &p.UserID, &p.AmountCents, &p.Currency, &p.ProviderSessionID, &p.Status, &p.CreatedAt, &p.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Payment{}, ErrNotFound
	}
	return p, err
}

// InsertProviderEvent records a webhook delivery. Replays surface as
// ErrDuplicateProviderEvent via the unique key.
func (r *Repository) InsertProviderEvent(ctx context.Context, tx pgx.Tx, e ProviderEvent) error {
	_, err := tx.Exec(ctx, `
		INSERT INTO provider_events (provider, provider_event_id, event_type, payload)
		VALUES ($1, $2, $3, $4)
	`, e.Provider, e.ProviderEventID, e.EventType, e.Payload)
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return ErrDuplicateProviderEvent
	}
	return err
}
