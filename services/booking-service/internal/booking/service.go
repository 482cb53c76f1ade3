package booking

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/serenio-health/serenio/libs/outbox"
	"github.com/serenio-health/serenio/services/booking-service/internal/model"
	"github.com/serenio-health/serenio/services/booking-service/internal/storage"
)

const defaultQuota = 3

// Tx is the slice of a database transaction the coordinator drives.
type Tx interface {
	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
}

// Store is the appointment ledger the coordinator runs its transactions
// against. StageEvent writes an outbox event inside the same transaction as
// the ledger change it announces.
type Store interface {
	Begin(ctx context.Context) (Tx, error)
	LockUser(ctx context.Context, tx Tx, userID string) error
	CountActive(ctx context.Context, tx Tx, userID string) (int, error)
	SlotTaken(ctx context.Context, tx Tx, professionalID, date, timeSlot string) (bool, error)
	Insert(ctx context.Context, tx Tx, appt *model.Appointment) error
	GetForUpdate(ctx context.Context, tx Tx, id, userID string) (model.Appointment, error)
	MarkCancelled(ctx context.Context, tx Tx, id string) (model.Appointment, error)
	ListByUser(ctx context.Context, userID string) ([]model.Appointment, error)
	StageEvent(ctx context.Context, tx Tx, evt outbox.Event) error
}

// UserSource resolves a user id to recipient details for outgoing events.
type UserSource interface {
	Get(ctx context.Context, id string) (storage.User, bool, error)
}

type ServiceConfig struct {
	// Quota is the maximum number of Booked appointments per user.
	Quota int
	// OpTimeout bounds each ledger operation.
	OpTimeout time.Duration
}

// Service runs the booking transactions. Every write is a single Postgres
// transaction: checks, insert or update, and the outbox event commit or roll
// back together.
type Service struct {
	logger *slog.Logger
	store  Store
	users  UserSource
	cfg    ServiceConfig
}

func NewService(logger *slog.Logger, store Store, users UserSource, cfg ServiceConfig) *Service {
	if cfg.Quota <= 0 {
		cfg.Quota = defaultQuota
	}
	if cfg.OpTimeout <= 0 {
		cfg.OpTimeout = 5 * time.Second
	}
	return &Service{logger: logger, store: store, users: users, cfg: cfg}
}

// Book inserts an already-validated slot for the user. The advisory lock on
// the user serializes quota checks; the partial unique index on active slots
// is the final word on conflicts when two transactions race for the same
// slot.
func (s *Service) Book(ctx context.Context, userID, professionalID, date, timeSlot string) (model.Appointment, error) {
	ctx, cancel := context.WithTimeout(ctx, s.cfg.OpTimeout)
	defer cancel()

	tx, err := s.store.Begin(ctx)
	if err != nil {
		return model.Appointment{}, err
	}
	defer tx.Rollback(ctx)

	if err := s.store.LockUser(ctx, tx, userID); err != nil {
		return model.Appointment{}, err
	}

	active, err := s.store.CountActive(ctx, tx, userID)
	if err != nil {
		return model.Appointment{}, err
	}
	if active >= s.cfg.Quota {
		return model.Appointment{}, NewError(KindQuotaExceeded, "active appointment limit reached")
	}

	taken, err := s.store.SlotTaken(ctx, tx, professionalID, date, timeSlot)
	if err != nil {
		return model.Appointment{}, err
	}
	if taken {
		return model.Appointment{}, NewError(KindSlotConflict, "slot is already booked")
	}

	appt := model.Appointment{
		UserID:         userID,
		ProfessionalID: professionalID,
		Date:           date,
		TimeSlot:       timeSlot,
		Status:         model.StatusBooked,
	}
	if err := s.store.Insert(ctx, tx, &appt); err != nil {
		if storage.IsSlotConflict(err) {
			return model.Appointment{}, NewError(KindSlotConflict, "slot is already booked")
		}
		return model.Appointment{}, err
	}

	if err := s.stageEvent(ctx, tx, EventAppointmentBooked, appt); err != nil {
		return model.Appointment{}, err
	}

	if err := tx.Commit(ctx); err != nil {
		if storage.IsSlotConflict(err) {
			return model.Appointment{}, NewError(KindSlotConflict, "slot is already booked")
		}
		return model.Appointment{}, err
	}
	return appt, nil
}

// Cancel moves the user's appointment to Cancelled, freeing its slot for
// rebooking. A row owned by someone else reads the same as a missing one.
func (s *Service) Cancel(ctx context.Context, userID, id string) (model.Appointment, error) {
	ctx, cancel := context.WithTimeout(ctx, s.cfg.OpTimeout)
	defer cancel()

	tx, err := s.store.Begin(ctx)
	if err != nil {
		return model.Appointment{}, err
	}
	defer tx.Rollback(ctx)

	appt, err := s.store.GetForUpdate(ctx, tx, id, userID)
	if errors.Is(err, storage.ErrNotFound) {
		return model.Appointment{}, NewError(KindNotFound, "appointment not found")
	}
	if err != nil {
		return model.Appointment{}, err
	}

	switch appt.Status {
	case model.StatusCancelled:
		return model.Appointment{}, NewError(KindAlreadyCancelled, "appointment is already cancelled")
	case model.StatusCompleted:
		return model.Appointment{}, Validation("completed appointment cannot be cancelled")
	}

	appt, err = s.store.MarkCancelled(ctx, tx, appt.ID)
	if err != nil {
		return model.Appointment{}, err
	}

	if err := s.stageEvent(ctx, tx, EventAppointmentCancelled, appt); err != nil {
		return model.Appointment{}, err
	}

	if err := tx.Commit(ctx); err != nil {
		return model.Appointment{}, err
	}
	return appt, nil
}

func (s *Service) ListByUser(ctx context.Context, userID string) ([]model.Appointment, error) {
	ctx, cancel := context.WithTimeout(ctx, s.cfg.OpTimeout)
	defer cancel()
	return s.store.ListByUser(ctx, userID)
}

func (s *Service) stageEvent(ctx context.Context, tx Tx, eventType string, appt model.Appointment) error {
	evt := AppointmentEvent{
		AppointmentID:  appt.ID,
		UserID:         appt.UserID,
		ProfessionalID: appt.ProfessionalID,
		Date:           appt.Date,
		TimeSlot:       appt.TimeSlot,
	}
	if u, ok, err := s.users.Get(ctx, appt.UserID); err == nil && ok {
		evt.RecipientEmail = u.Email
		evt.RecipientName = u.Name
	} else if err != nil {
		s.logger.Warn("users projection lookup failed", "err", err, "user_id", appt.UserID)
	}

	payload, err := json.Marshal(evt)
	if err != nil {
		return err
	}
	return s.store.StageEvent(ctx, tx, outbox.Event{
		AggregateType: "appointment",
		AggregateID:   appt.ID,
		EventType:     eventType,
		Payload:       payload,
	})
}
