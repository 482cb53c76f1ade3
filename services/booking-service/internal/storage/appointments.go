// Package storage is the pgx-backed appointment ledger. All booking writes
// run inside a caller-owned transaction so quota and conflict checks commit
// atomically with the insert they guard.
package storage

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/serenio-health/serenio/libs/db"
	"github.com/serenio-health/serenio/services/booking-service/internal/model"
)

var ErrNotFound = errors.New("appointment not found")

// slotUniqueIndex is the partial unique index backing double-booking
// prevention; its violation is the authoritative conflict signal under races.
const slotUniqueIndex = "appointments_slot_active_uniq"

type AppointmentRepository struct {
	pool *db.Pool
}

func NewAppointmentRepository(pool *db.Pool) *AppointmentRepository {
	return &AppointmentRepository{pool: pool}
}

func (r *AppointmentRepository) Begin(ctx context.Context) (pgx.Tx, error) {
	return r.pool.Begin(ctx)
}

// LockUser serializes concurrent bookings by the same user for the duration
// of the transaction, so the quota count cannot be read stale by a racing
// request. The lock is advisory and released automatically at commit or
// rollback.
func (r *AppointmentRepository) LockUser(ctx context.Context, tx pgx.Tx, userID string) error {
	_, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtextextended($1, 0))`, userID)
	return err
}

// CountActive returns the number of the user's Booked appointments. Only
// Booked rows count against the quota; Completed and Cancelled ones are
// history and must never block a new booking.
func (r *AppointmentRepository) CountActive(ctx context.Context, tx pgx.Tx, userID string) (int, error) {
	var n int
	err := tx.QueryRow(ctx,
		`SELECT count(*) FROM appointments WHERE user_id = $1 AND status = $2`,
		userID, model.StatusBooked,
	).Scan(&n)
	return n, err
}

// SlotTaken reports whether an active appointment already occupies the slot.
// The partial unique index remains the backstop for races that slip past
// this pre-check.
func (r *AppointmentRepository) SlotTaken(ctx context.Context, tx pgx.Tx, professionalID, date, timeSlot string) (bool, error) {
	var exists bool
	err := tx.QueryRow(ctx,
		`SELECT EXISTS (
		    SELECT 1 FROM appointments
		    WHERE professional_id = $1 AND date = $2 AND time_slot = $3
		      AND status IN ($4, $5)
		 )`,
		professionalID, date, timeSlot, model.StatusBooked, model.StatusCompleted,
	).Scan(&exists)
	return exists, err
}

func (r *AppointmentRepository) Insert(ctx context.Context, tx pgx.Tx, appt *model.Appointment) error {
	return tx.QueryRow(ctx,
		`INSERT INTO appointments (user_id, professional_id, date, time_slot, status)
		 VALUES ($1, $2, $3, $4, $5)
		 RETURNING id, created_at, updated_at`,
		appt.UserID, appt.ProfessionalID, appt.Date, appt.TimeSlot, appt.Status,
	).Scan(&appt.ID, &appt.CreatedAt, &appt.UpdatedAt)
}

// GetForUpdate loads the user's appointment under a row lock. A row owned by
// another user is reported as not found so ownership cannot be probed.
func (r *AppointmentRepository) GetForUpdate(ctx context.Context, tx pgx.Tx, id, userID string) (model.Appointment, error) {
	var a model.Appointment
	err := tx.QueryRow(ctx,
		`SELECT id, user_id, professional_id, date, time_slot, status, created_at, updated_at
		 FROM appointments
		 WHERE id = $1 AND user_id = $2
		 FOR UPDATE`,
		id, userID,
	).Scan(&a.ID, &a.UserID, &a.ProfessionalID, &a.Date, &a.TimeSlot, &a.Status, &a.CreatedAt, &a.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return model.Appointment{}, ErrNotFound
	}
	return a, err
}

func (r *AppointmentRepository) MarkCancelled(ctx context.Context, tx pgx.Tx, id string) (model.Appointment, error) {
	var a model.Appointment
	err := tx.QueryRow(ctx,
		`UPDATE appointments
		 SET status = $2, updated_at = now()
		 WHERE id = $1
		 RETURNING id, user_id, professional_id, date, time_slot, status, created_at, updated_at`,
		id, model.StatusCancelled,
	).Scan(&a.ID, &a.UserID, &a.ProfessionalID, &a.Date, &a.TimeSlot, &a.Status, &a.CreatedAt, &a.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return model.Appointment{}, ErrNotFound
	}
	return a, err
}

// ListByUser returns all of the user's appointments, newest slot first.
func (r *AppointmentRepository) ListByUser(ctx context.Context, userID string) ([]model.Appointment, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, user_id, professional_id, date, time_slot, status, created_at, updated_at
		 FROM appointments
		 WHERE user_id = $1
		 ORDER BY date DESC, time_slot DESC`,
		userID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	appts := make([]model.Appointment, 0)
	for rows.Next() {
		var a model.Appointment
		if err := rows.Scan(&a.ID, &a.UserID, &a.ProfessionalID, &a.Date, &a.TimeSlot, &a.Status, &a.CreatedAt, &a.UpdatedAt); err != nil {
			return nil, err
		}
		appts = append(appts, a)
	}
	return appts, rows.Err()
}

// Upcoming is a booked appointment due to start soon, joined with the
// recipient details from the local users projection.
type Upcoming struct {
	Appointment    model.Appointment
	RecipientEmail string
	RecipientName  string
}

// FindUpcoming returns Booked appointments whose slot starts inside
// [from, until). Date and time_slot are canonical strings, so the slot start
// is reconstructed with a cast; the supporting index keeps the scan narrow.
func (r *AppointmentRepository) FindUpcoming(ctx context.Context, from, until time.Time) ([]Upcoming, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT a.id, a.user_id, a.professional_id, a.date, a.time_slot, a.status, a.created_at, a.updated_at,
		        COALESCE(u.email, ''), COALESCE(u.name, '')
		 FROM appointments a
		 LEFT JOIN booking_users u ON u.id::text = a.user_id
		 WHERE a.status = $1
		   AND (a.date || ' ' || a.time_slot)::timestamp >= $2
		   AND (a.date || ' ' || a.time_slot)::timestamp < $3
		 ORDER BY a.date, a.time_slot`,
		model.StatusBooked, from.UTC(), until.UTC(),
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Upcoming
	for rows.Next() {
		var u Upcoming
		a := &u.Appointment
		if err := rows.Scan(&a.ID, &a.UserID, &a.ProfessionalID, &a.Date, &a.TimeSlot, &a.Status, &a.CreatedAt, &a.UpdatedAt,
			&u.RecipientEmail, &u.RecipientName); err != nil {
			return nil, err
		}
		out = append(out, u)
	}
	return out, rows.Err()
}

// IsSlotConflict reports whether err is the unique-index violation raised
// when two transactions race for the same active slot.
func IsSlotConflict(err error) bool {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return false
	}
	return pgErr.Code == "23505" && pgErr.ConstraintName == slotUniqueIndex
}
