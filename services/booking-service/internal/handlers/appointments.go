// Package handlers implements the booking HTTP API: slot validation, the
// directory existence check, and the taxonomy-to-status mapping. The actual
// ledger transactions live behind the Ledger interface.
package handlers

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/serenio-health/serenio/services/booking-service/internal/booking"
	"github.com/serenio-health/serenio/services/booking-service/internal/directory"
	"github.com/serenio-health/serenio/services/booking-service/internal/model"
	"github.com/serenio-health/serenio/services/booking-service/internal/slot"
)

// userIDHeader is set by the gateway after verifying the caller's token.
// The service trusts it because only the gateway can reach this port.
const userIDHeader = "X-User-Id"

// Ledger is the booking transaction surface, implemented by booking.Service.
type Ledger interface {
	Book(ctx context.Context, userID, professionalID, date, timeSlot string) (model.Appointment, error)
	Cancel(ctx context.Context, userID, id string) (model.Appointment, error)
	ListByUser(ctx context.Context, userID string) ([]model.Appointment, error)
}

type AppointmentHandler struct {
	logger   *slog.Logger
	ledger   Ledger
	provider directory.Provider
	now      func() time.Time
}

func NewAppointmentHandler(logger *slog.Logger, ledger Ledger, provider directory.Provider) *AppointmentHandler {
	return &AppointmentHandler{
		logger:   logger,
		ledger:   ledger,
		provider: provider,
		now:      time.Now,
	}
}

func (h *AppointmentHandler) Register(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/v1/appointments", h.Book)
	mux.HandleFunc("GET /api/v1/appointments/mine", h.ListMine)
	mux.HandleFunc("DELETE /api/v1/appointments/{id}", h.Cancel)
}

func (h *AppointmentHandler) userID(r *http.Request) (string, bool) {
	id := r.Header.Get(userIDHeader)
	return id, id != ""
}

type bookRequest struct {
	ProfessionalID string `json:"professionalId"`
	Date           string `json:"date"`
	TimeSlot       string `json:"timeSlot"`
}

func (h *AppointmentHandler) Book(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.userID(r)
	if !ok {
		writeKind(w, booking.KindUnauthenticated, "missing user identity")
		return
	}

	var req bookRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeKind(w, booking.KindValidation, "invalid JSON body")
		return
	}
	if req.ProfessionalID == "" {
		writeKind(w, booking.KindValidation, "professionalId is required")
		return
	}
	s, err := slot.Validate(req.Date, req.TimeSlot, h.now())
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	// Directory failure is an outage, never a conflict: the caller retries.
	exists, err := h.provider.ProfessionalExists(r.Context(), req.ProfessionalID)
	if err != nil {
		h.logger.Error("directory lookup failed", "err", err, "professional_id", req.ProfessionalID)
		writeKind(w, booking.KindServiceUnavailable, "directory unavailable, retry later")
		return
	}
	if !exists {
		writeKind(w, booking.KindValidation, "unknown professional")
		return
	}

	appt, err := h.ledger.Book(r.Context(), userID, req.ProfessionalID, s.Date, s.Time)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	h.logger.Info("appointment booked",
		"appointment_id", appt.ID, "user_id", userID,
		"professional_id", appt.ProfessionalID, "date", appt.Date, "time_slot", appt.TimeSlot)
	writeJSON(w, http.StatusCreated, toJSON(appt))
}

func (h *AppointmentHandler) ListMine(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.userID(r)
	if !ok {
		writeKind(w, booking.KindUnauthenticated, "missing user identity")
		return
	}

	appts, err := h.ledger.ListByUser(r.Context(), userID)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	out := make([]appointmentJSON, 0, len(appts))
	for _, a := range appts {
		out = append(out, toJSON(a))
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *AppointmentHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.userID(r)
	if !ok {
		writeKind(w, booking.KindUnauthenticated, "missing user identity")
		return
	}
	id := r.PathValue("id")
	if id == "" {
		writeKind(w, booking.KindValidation, "appointment id is required")
		return
	}

	appt, err := h.ledger.Cancel(r.Context(), userID, id)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	h.logger.Info("appointment cancelled", "appointment_id", appt.ID, "user_id", userID)
	writeJSON(w, http.StatusOK, toJSON(appt))
}
