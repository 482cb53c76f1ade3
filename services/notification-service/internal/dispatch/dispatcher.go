// Package dispatch turns booking events into outgoing notifications. Each
// event produces one email attempt, one notifications row, and one
// notification.sent/failed outbox event.
package dispatch

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/serenio-health/serenio/services/notification-service/internal/storage"
)

const (
	KindConfirmation = "confirmation"
	KindCancellation = "cancellation"
	KindReminder     = "reminder"
)

// appointmentEvent mirrors the payload published by the booking service.
type appointmentEvent struct {
	AppointmentID  string `json:"appointment_id"`
	UserID         string `json:"user_id"`
	ProfessionalID string `json:"professional_id"`
	Date           string `json:"date"`
	TimeSlot       string `json:"time_slot"`
	RecipientEmail string `json:"recipient_email"`
	RecipientName  string `json:"recipient_name"`
}

type Store interface {
	Insert(ctx context.Context, n storage.Notification) error
}

type EmailSender interface {
	Send(to string, subject string, body string) error
}

// Outcomes records the notification.sent/failed events for downstream
// consumers.
type Outcomes interface {
	Sent(ctx context.Context, appointmentID, kind string) error
	Failed(ctx context.Context, appointmentID, kind, reason string) error
}

type Dispatcher struct {
	logger   *slog.Logger
	store    Store
	sender   EmailSender
	outcomes Outcomes
}

func NewDispatcher(logger *slog.Logger, store Store, sender EmailSender, outcomes Outcomes) *Dispatcher {
	return &Dispatcher{logger: logger, store: store, sender: sender, outcomes: outcomes}
}

// Handle processes one raw event of the given kind. Malformed payloads are
// dropped; send failures are recorded and reported, not retried here.
func (d *Dispatcher) Handle(ctx context.Context, kind string, raw []byte) error {
	var evt appointmentEvent
	if err := json.Unmarshal(raw, &evt); err != nil {
		d.logger.Error("invalid event payload", "err", err, "kind", kind)
		return nil
	}
	if evt.AppointmentID == "" || evt.Date == "" || evt.TimeSlot == "" {
		d.logger.Error("missing required event fields", "kind", kind)
		return nil
	}

	status := "sent"
	reason := ""
	if evt.RecipientEmail == "" {
		status = "failed"
		reason = "no recipient email on event"
	} else {
		subject, body := Compose(kind, evt)
		if err := d.sender.Send(evt.RecipientEmail, subject, body); err != nil {
			status = "failed"
			reason = err.Error()
			d.logger.Error("email send failed", "err", err, "recipient", evt.RecipientEmail)
		}
	}

	if err := d.store.Insert(ctx, storage.Notification{
		AppointmentID: evt.AppointmentID,
		UserID:        evt.UserID,
		Kind:          kind,
		Recipient:     evt.RecipientEmail,
		Payload: map[string]any{
			"professional_id": evt.ProfessionalID,
			"date":            evt.Date,
			"time_slot":       evt.TimeSlot,
		},
		Status: status,
	}); err != nil {
		d.logger.Error("failed to persist notification", "err", err)
		return err
	}

	if status == "failed" {
		if err := d.outcomes.Failed(ctx, evt.AppointmentID, kind, reason); err != nil {
			d.logger.Error("failed to enqueue notification.failed", "err", err)
			return err
		}
	} else {
		if err := d.outcomes.Sent(ctx, evt.AppointmentID, kind); err != nil {
			d.logger.Error("failed to enqueue notification.sent", "err", err)
			return err
		}
	}

	d.logger.Info("notification processed",
		"appointment_id", evt.AppointmentID, "kind", kind, "status", status)
	return nil
}

// Compose builds the subject and body for a notification kind.
func Compose(kind string, evt appointmentEvent) (subject string, body string) {
	name := evt.RecipientName
	if name == "" {
		name = "there"
	}
	when := evt.Date + " at " + evt.TimeSlot

	switch kind {
	case KindCancellation:
		subject = "Your appointment was cancelled"
		body = fmt.Sprintf("Hi %s,\n\nYour appointment on %s has been cancelled. The slot is now free to rebook.\n", name, when)
	case KindReminder:
		subject = "Appointment reminder"
		body = fmt.Sprintf("Hi %s,\n\nThis is a reminder of your appointment on %s.\n", name, when)
	default:
		subject = "Your appointment is confirmed"
		body = fmt.Sprintf("Hi %s,\n\nYour appointment on %s is confirmed.\n", name, when)
	}
	return subject, body
}
