package booking

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/serenio-health/serenio/libs/outbox"
	"github.com/serenio-health/serenio/services/booking-service/internal/model"
	"github.com/serenio-health/serenio/services/booking-service/internal/storage"
)

// PgStore adapts the pgx appointment repository and the outbox to the Store
// interface the coordinator runs against.
type PgStore struct {
	repo   *storage.AppointmentRepository
	outbox *outbox.Repository
}

func NewPgStore(repo *storage.AppointmentRepository, ob *outbox.Repository) *PgStore {
	return &PgStore{repo: repo, outbox: ob}
}

func (s *PgStore) Begin(ctx context.Context) (Tx, error) {
	return s.repo.Begin(ctx)
}

func (s *PgStore) LockUser(ctx context.Context, tx Tx, userID string) error {
	ptx, err := pgxTx(tx)
	if err != nil {
		return err
	}
	return s.repo.LockUser(ctx, ptx, userID)
}

func (s *PgStore) CountActive(ctx context.Context, tx Tx, userID string) (int, error) {
	ptx, err := pgxTx(tx)
	if err != nil {
		return 0, err
	}
	return s.repo.CountActive(ctx, ptx, userID)
}

func (s *PgStore) SlotTaken(ctx context.Context, tx Tx, professionalID, date, timeSlot string) (bool, error) {
	ptx, err := pgxTx(tx)
	if err != nil {
		return false, err
	}
	return s.repo.SlotTaken(ctx, ptx, professionalID, date, timeSlot)
}

func (s *PgStore) Insert(ctx context.Context, tx Tx, appt *model.Appointment) error {
	ptx, err := pgxTx(tx)
	if err != nil {
		return err
	}
	return s.repo.Insert(ctx, ptx, appt)
}

func (s *PgStore) GetForUpdate(ctx context.Context, tx Tx, id, userID string) (model.Appointment, error) {
	ptx, err := pgxTx(tx)
	if err != nil {
		return model.Appointment{}, err
	}
	return s.repo.GetForUpdate(ctx, ptx, id, userID)
}

func (s *PgStore) MarkCancelled(ctx context.Context, tx Tx, id string) (model.Appointment, error) {
	ptx, err := pgxTx(tx)
	if err != nil {
		return model.Appointment{}, err
	}
	return s.repo.MarkCancelled(ctx, ptx, id)
}

func (s *PgStore) ListByUser(ctx context.Context, userID string) ([]model.Appointment, error) {
	return s.repo.ListByUser(ctx, userID)
}

func (s *PgStore) StageEvent(ctx context.Context, tx Tx, evt outbox.Event) error {
	ptx, err := pgxTx(tx)
	if err != nil {
		return err
	}
	return s.outbox.Insert(ctx, ptx, evt)
}

func pgxTx(tx Tx) (pgx.Tx, error) {
	ptx, ok := tx.(pgx.Tx)
	if !ok {
		return nil, fmt.Errorf("unexpected transaction type %T", tx)
	}
	return ptx, nil
}
