package reminder

import (
	"context"
	"encoding/json"

	"github.com/serenio-health/serenio/libs/outbox"
	"github.com/serenio-health/serenio/services/booking-service/internal/booking"
	"github.com/serenio-health/serenio/services/booking-service/internal/storage"
)

// OutboxStager writes reminder-due events through the transactional outbox.
// One transaction per batch; a failed batch is retried whole on a later
// sweep.
type OutboxStager struct {
	repo   *storage.AppointmentRepository
	outbox *outbox.Repository
}

func NewOutboxStager(repo *storage.AppointmentRepository, ob *outbox.Repository) *OutboxStager {
	return &OutboxStager{repo: repo, outbox: ob}
}

func (s *OutboxStager) StageReminders(ctx context.Context, upcoming []storage.Upcoming) error {
	tx, err := s.repo.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	for _, u := range upcoming {
		a := u.Appointment
		payload, err := json.Marshal(booking.AppointmentEvent{
			AppointmentID:  a.ID,
			UserID:         a.UserID,
			ProfessionalID: a.ProfessionalID,
			Date:           a.Date,
			TimeSlot:       a.TimeSlot,
			RecipientEmail: u.RecipientEmail,
			RecipientName:  u.RecipientName,
		})
		if err != nil {
			return err
		}
		evt := outbox.Event{
			AggregateType: "appointment",
			AggregateID:   a.ID,
			EventType:     booking.EventReminderDue,
			Payload:       payload,
		}
		if err := s.outbox.Insert(ctx, tx, evt); err != nil {
			return err
		}
	}
	return tx.Commit(ctx)
}
