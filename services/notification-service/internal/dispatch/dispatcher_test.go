package dispatch

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"testing"

	"github.com/serenio-health/serenio/services/notification-service/internal/storage"
)

type fakeStore struct {
	rows []storage.Notification
}

func (f *fakeStore) Insert(ctx context.Context, n storage.Notification) error {
	f.rows = append(f.rows, n)
	return nil
}

type fakeSender struct {
	err  error
	sent []string
	subj string
	body string
}

func (f *fakeSender) Send(to, subject, body string) error {
	if f.err != nil {
		return f.err
	}
	f.sent = append(f.sent, to)
	f.subj = subject
	f.body = body
	return nil
}

type fakeOutcomes struct {
	sent   []string
	failed []string
	reason string
}

func (f *fakeOutcomes) Sent(ctx context.Context, appointmentID, kind string) error {
	f.sent = append(f.sent, appointmentID)
	return nil
}

func (f *fakeOutcomes) Failed(ctx context.Context, appointmentID, kind, reason string) error {
	f.failed = append(f.failed, appointmentID)
	f.reason = reason
	return nil
}

const bookedEvent = `{
	"appointment_id": "appt-1",
	"user_id": "user-1",
	"professional_id": "pro-1",
	"date": "2026-03-15",
	"time_slot": "10:00",
	"recipient_email": "user@example.com",
	"recipient_name": "Ada"
}`

func newDispatcher(sender *fakeSender) (*Dispatcher, *fakeStore, *fakeOutcomes) {
	store := &fakeStore{}
	outcomes := &fakeOutcomes{}
	return NewDispatcher(slog.New(slog.DiscardHandler), store, sender, outcomes), store, outcomes
}

func TestHandleConfirmation(t *testing.T) {
	sender := &fakeSender{}
	d, store, outcomes := newDispatcher(sender)

	if err := d.Handle(context.Background(), KindConfirmation, []byte(bookedEvent)); err != nil {
		t.Fatalf("handle: %v", err)
	}
	if len(sender.sent) != 1 || sender.sent[0] != "user@example.com" {
		t.Fatalf("sent to %v, want user@example.com", sender.sent)
	}
	if !strings.Contains(sender.subj, "confirmed") {
		t.Fatalf("subject %q should mention confirmation", sender.subj)
	}
	if !strings.Contains(sender.body, "2026-03-15 at 10:00") {
		t.Fatalf("body %q should carry the slot", sender.body)
	}
	if len(store.rows) != 1 || store.rows[0].Status != "sent" || store.rows[0].Kind != KindConfirmation {
		t.Fatalf("unexpected stored notification: %+v", store.rows)
	}
	if len(outcomes.sent) != 1 || len(outcomes.failed) != 0 {
		t.Fatalf("unexpected outcomes: %+v", outcomes)
	}
}

func TestHandleReminderSubject(t *testing.T) {
	sender := &fakeSender{}
	d, _, _ := newDispatcher(sender)

	if err := d.Handle(context.Background(), KindReminder, []byte(bookedEvent)); err != nil {
		t.Fatalf("handle: %v", err)
	}
	if !strings.Contains(strings.ToLower(sender.subj), "reminder") {
		t.Fatalf("subject %q should mention reminder", sender.subj)
	}
}

func TestHandleSendFailure(t *testing.T) {
	sender := &fakeSender{err: errors.New("smtp refused")}
	d, store, outcomes := newDispatcher(sender)

	if err := d.Handle(context.Background(), KindConfirmation, []byte(bookedEvent)); err != nil {
		t.Fatalf("handle: %v", err)
	}
	if len(store.rows) != 1 || store.rows[0].Status != "failed" {
		t.Fatalf("failure should still be recorded: %+v", store.rows)
	}
	if len(outcomes.failed) != 1 || outcomes.reason != "smtp refused" {
		t.Fatalf("unexpected outcomes: %+v", outcomes)
	}
}

func TestHandleMissingRecipient(t *testing.T) {
	sender := &fakeSender{}
	d, store, outcomes := newDispatcher(sender)

	evt := strings.Replace(bookedEvent, `"user@example.com"`, `""`, 1)
	if err := d.Handle(context.Background(), KindConfirmation, []byte(evt)); err != nil {
		t.Fatalf("handle: %v", err)
	}
	if len(sender.sent) != 0 {
		t.Fatal("nothing should be sent without a recipient")
	}
	if len(store.rows) != 1 || store.rows[0].Status != "failed" {
		t.Fatalf("missing recipient should record a failed row: %+v", store.rows)
	}
	if len(outcomes.failed) != 1 {
		t.Fatalf("missing recipient should report failure: %+v", outcomes)
	}
}

func TestHandleMalformedPayloadDropped(t *testing.T) {
	sender := &fakeSender{}
	d, store, _ := newDispatcher(sender)

	if err := d.Handle(context.Background(), KindConfirmation, []byte(`{"appointment_id":`)); err != nil {
		t.Fatalf("malformed payload should be dropped, not retried: %v", err)
	}
	if len(store.rows) != 0 {
		t.Fatalf("malformed payload should not be stored: %+v", store.rows)
	}
}
