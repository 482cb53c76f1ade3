package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/serenio-health/serenio/services/booking-service/internal/booking"
	"github.com/serenio-health/serenio/services/booking-service/internal/model"
)

type fakeLedger struct {
	bookErr   error
	cancelErr error
	listErr   error
	booked    []model.Appointment
	lastBook  struct {
		userID, professionalID, date, timeSlot string
	}
}

func (f *fakeLedger) Book(ctx context.Context, userID, professionalID, date, timeSlot string) (model.Appointment, error) {
	f.lastBook.userID = userID
	f.lastBook.professionalID = professionalID
	f.lastBook.date = date
	f.lastBook.timeSlot = timeSlot
	if f.bookErr != nil {
		return model.Appointment{}, f.bookErr
	}
	return model.Appointment{
		ID:             "appt-1",
		UserID:         userID,
		ProfessionalID: professionalID,
		Date:           date,
		TimeSlot:       timeSlot,
		Status:         model.StatusBooked,
		CreatedAt:      time.Now(),
		UpdatedAt:      time.Now(),
	}, nil
}

func (f *fakeLedger) Cancel(ctx context.Context, userID, id string) (model.Appointment, error) {
	if f.cancelErr != nil {
		return model.Appointment{}, f.cancelErr
	}
	return model.Appointment{
		ID:     id,
		UserID: userID,
		Status: model.StatusCancelled,
	}, nil
}

func (f *fakeLedger) ListByUser(ctx context.Context, userID string) ([]model.Appointment, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	return f.booked, nil
}

type fakeProvider struct {
	exists bool
	err    error
}

func (f *fakeProvider) ProfessionalExists(ctx context.Context, id string) (bool, error) {
	return f.exists, f.err
}

func newTestServer(ledger *fakeLedger, provider *fakeProvider) *httptest.Server {
	h := NewAppointmentHandler(slog.New(slog.DiscardHandler), ledger, provider)
	h.now = func() time.Time {
		return time.Date(2026, time.March, 10, 12, 0, 0, 0, time.UTC)
	}
	mux := http.NewServeMux()
	h.Register(mux)
	return httptest.NewServer(mux)
}

func doJSON(t *testing.T, method, url, userID, body string) (*http.Response, map[string]any) {
	t.Helper()
	req, err := http.NewRequest(method, url, strings.NewReader(body))
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	if userID != "" {
		req.Header.Set("X-User-Id", userID)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("do request: %v", err)
	}
	defer resp.Body.Close()
	var parsed map[string]any
	_ = json.NewDecoder(resp.Body).Decode(&parsed)
	return resp, parsed
}

func errorKind(t *testing.T, body map[string]any) string {
	t.Helper()
	e, ok := body["error"].(map[string]any)
	if !ok {
		t.Fatalf("response has no error object: %v", body)
	}
	kind, _ := e["kind"].(string)
	return kind
}

const validBook = `{"professionalId":"pro-1","date":"2026-03-15","timeSlot":"10:00"}`

func TestBookHappyPath(t *testing.T) {
	ledger := &fakeLedger{}
	srv := newTestServer(ledger, &fakeProvider{exists: true})
	defer srv.Close()

	resp, body := doJSON(t, http.MethodPost, srv.URL+"/api/v1/appointments", "user-1", validBook)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("status = %d, want 201; body %v", resp.StatusCode, body)
	}
	if body["status"] != "Booked" {
		t.Fatalf("status field = %v, want Booked", body["status"])
	}
	if body["professionalId"] != "pro-1" || body["date"] != "2026-03-15" || body["timeSlot"] != "10:00" {
		t.Fatalf("unexpected appointment body: %v", body)
	}
	if ledger.lastBook.userID != "user-1" {
		t.Fatalf("ledger saw user %q, want user-1", ledger.lastBook.userID)
	}
}

func TestBookNormalizesSlot(t *testing.T) {
	ledger := &fakeLedger{}
	srv := newTestServer(ledger, &fakeProvider{exists: true})
	defer srv.Close()

	resp, _ := doJSON(t, http.MethodPost, srv.URL+"/api/v1/appointments", "user-1",
		`{"professionalId":"pro-1","date":"2026-03-15","timeSlot":"9:05"}`)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("status = %d, want 201", resp.StatusCode)
	}
	if ledger.lastBook.timeSlot != "09:05" {
		t.Fatalf("ledger saw timeSlot %q, want normalized 09:05", ledger.lastBook.timeSlot)
	}
}

func TestBookRequiresIdentity(t *testing.T) {
	srv := newTestServer(&fakeLedger{}, &fakeProvider{exists: true})
	defer srv.Close()

	resp, body := doJSON(t, http.MethodPost, srv.URL+"/api/v1/appointments", "", validBook)
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", resp.StatusCode)
	}
	if kind := errorKind(t, body); kind != "unauthenticated" {
		t.Fatalf("kind = %q, want unauthenticated", kind)
	}
}

func TestBookValidationFailures(t *testing.T) {
	srv := newTestServer(&fakeLedger{}, &fakeProvider{exists: true})
	defer srv.Close()

	cases := []struct {
		name string
		body string
	}{
		{"malformed json", `{"professionalId":`},
		{"missing professional", `{"date":"2026-03-15","timeSlot":"10:00"}`},
		{"past date", `{"professionalId":"pro-1","date":"2026-03-09","timeSlot":"10:00"}`},
		{"bad date format", `{"professionalId":"pro-1","date":"15/03/2026","timeSlot":"10:00"}`},
		{"before opening", `{"professionalId":"pro-1","date":"2026-03-15","timeSlot":"08:59"}`},
		{"after last slot", `{"professionalId":"pro-1","date":"2026-03-15","timeSlot":"17:01"}`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			resp, body := doJSON(t, http.MethodPost, srv.URL+"/api/v1/appointments", "user-1", tc.body)
			if resp.StatusCode != http.StatusBadRequest {
				t.Fatalf("status = %d, want 400; body %v", resp.StatusCode, body)
			}
			if kind := errorKind(t, body); kind != "validation" {
				t.Fatalf("kind = %q, want validation", kind)
			}
		})
	}
}

func TestBookUnknownProfessional(t *testing.T) {
	srv := newTestServer(&fakeLedger{}, &fakeProvider{exists: false})
	defer srv.Close()

	resp, body := doJSON(t, http.MethodPost, srv.URL+"/api/v1/appointments", "user-1", validBook)
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", resp.StatusCode)
	}
	if kind := errorKind(t, body); kind != "validation" {
		t.Fatalf("kind = %q, want validation", kind)
	}
}

func TestBookDirectoryOutage(t *testing.T) {
	srv := newTestServer(&fakeLedger{}, &fakeProvider{err: errors.New("connection refused")})
	defer srv.Close()

	resp, body := doJSON(t, http.MethodPost, srv.URL+"/api/v1/appointments", "user-1", validBook)
	if resp.StatusCode != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want 503", resp.StatusCode)
	}
	if kind := errorKind(t, body); kind != "service_unavailable" {
		t.Fatalf("kind = %q, want service_unavailable", kind)
	}
}

func TestBookLedgerErrors(t *testing.T) {
	cases := []struct {
		name       string
		err        error
		wantStatus int
		wantKind   string
	}{
		{"quota exceeded", booking.NewError(booking.KindQuotaExceeded, "active appointment limit reached"), http.StatusBadRequest, "quota_exceeded"},
		{"slot conflict", booking.NewError(booking.KindSlotConflict, "slot is already booked"), http.StatusBadRequest, "slot_conflict"},
		{"timeout", context.DeadlineExceeded, http.StatusServiceUnavailable, "service_unavailable"},
		{"storage failure", errors.New("connection reset"), http.StatusInternalServerError, "internal"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			srv := newTestServer(&fakeLedger{bookErr: tc.err}, &fakeProvider{exists: true})
			defer srv.Close()

			resp, body := doJSON(t, http.MethodPost, srv.URL+"/api/v1/appointments", "user-1", validBook)
			if resp.StatusCode != tc.wantStatus {
				t.Fatalf("status = %d, want %d; body %v", resp.StatusCode, tc.wantStatus, body)
			}
			if kind := errorKind(t, body); kind != tc.wantKind {
				t.Fatalf("kind = %q, want %q", kind, tc.wantKind)
			}
		})
	}
}

func TestListMine(t *testing.T) {
	ledger := &fakeLedger{booked: []model.Appointment{
		{ID: "a-1", UserID: "user-1", ProfessionalID: "pro-1", Date: "2026-03-15", TimeSlot: "10:00", Status: model.StatusBooked},
		{ID: "a-2", UserID: "user-1", ProfessionalID: "pro-2", Date: "2026-03-12", TimeSlot: "11:00", Status: model.StatusCancelled},
	}}
	srv := newTestServer(ledger, &fakeProvider{exists: true})
	defer srv.Close()

	req, _ := http.NewRequest(http.MethodGet, srv.URL+"/api/v1/appointments/mine", nil)
	req.Header.Set("X-User-Id", "user-1")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("do request: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	var list []map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&list); err != nil {
		t.Fatalf("decode list: %v", err)
	}
	if len(list) != 2 {
		t.Fatalf("got %d appointments, want 2", len(list))
	}
	if list[1]["status"] != "Cancelled" {
		t.Fatalf("second entry status = %v, want Cancelled", list[1]["status"])
	}
}

func TestListMineEmpty(t *testing.T) {
	srv := newTestServer(&fakeLedger{}, &fakeProvider{exists: true})
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/api/v1/appointments/mine")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("status without identity = %d, want 401", resp.StatusCode)
	}

	req, _ := http.NewRequest(http.MethodGet, srv.URL+"/api/v1/appointments/mine", nil)
	req.Header.Set("X-User-Id", "user-1")
	resp, err = http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("do request: %v", err)
	}
	defer resp.Body.Close()
	var list []map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&list); err != nil {
		t.Fatalf("decode list: %v", err)
	}
	if list == nil || len(list) != 0 {
		t.Fatalf("empty list should encode as [], got %v", list)
	}
}

func TestCancel(t *testing.T) {
	cases := []struct {
		name       string
		err        error
		wantStatus int
		wantKind   string
	}{
		{"success", nil, http.StatusOK, ""},
		{"not found", booking.NewError(booking.KindNotFound, "appointment not found"), http.StatusNotFound, "not_found"},
		{"already cancelled", booking.NewError(booking.KindAlreadyCancelled, "appointment is already cancelled"), http.StatusBadRequest, "already_cancelled"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			srv := newTestServer(&fakeLedger{cancelErr: tc.err}, &fakeProvider{exists: true})
			defer srv.Close()

			resp, body := doJSON(t, http.MethodDelete, srv.URL+"/api/v1/appointments/appt-9", "user-1", "")
			if resp.StatusCode != tc.wantStatus {
				t.Fatalf("status = %d, want %d; body %v", resp.StatusCode, tc.wantStatus, body)
			}
			if tc.wantKind == "" {
				if body["status"] != "Cancelled" {
					t.Fatalf("status field = %v, want Cancelled", body["status"])
				}
				return
			}
			if kind := errorKind(t, body); kind != tc.wantKind {
				t.Fatalf("kind = %q, want %q", kind, tc.wantKind)
			}
		})
	}
}
