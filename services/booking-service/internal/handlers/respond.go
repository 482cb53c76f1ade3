package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/serenio-health/serenio/services/booking-service/internal/booking"
	"github.com/serenio-health/serenio/services/booking-service/internal/model"
)

// appointmentJSON is the wire form of an appointment. Field names follow the
// public API contract.
type appointmentJSON struct {
	ID             string `json:"id"`
	UserID         string `json:"userId"`
	ProfessionalID string `json:"professionalId"`
	Date           string `json:"date"`
	TimeSlot       string `json:"timeSlot"`
	Status         string `json:"status"`
	CreatedAt      string `json:"createdAt"`
	UpdatedAt      string `json:"updatedAt"`
}

func toJSON(a model.Appointment) appointmentJSON {
	return appointmentJSON{
		ID:             a.ID,
		UserID:         a.UserID,
		ProfessionalID: a.ProfessionalID,
		Date:           a.Date,
		TimeSlot:       a.TimeSlot,
		Status:         a.Status,
		CreatedAt:      a.CreatedAt.UTC().Format("2006-01-02T15:04:05Z07:00"),
		UpdatedAt:      a.UpdatedAt.UTC().Format("2006-01-02T15:04:05Z07:00"),
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

type errorBody struct {
	Error errorDetail `json:"error"`
}

type errorDetail struct {
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

func writeKind(w http.ResponseWriter, kind booking.Kind, message string) {
	writeJSON(w, booking.HTTPStatus(kind), errorBody{Error: errorDetail{Kind: string(kind), Message: message}})
}

// writeError maps err onto the public taxonomy. Anything outside the
// taxonomy is logged and reported as a bare 500 so storage details never
// reach clients.
func writeError(w http.ResponseWriter, logger *slog.Logger, err error) {
	var be *booking.Error
	if errors.As(err, &be) {
		writeKind(w, be.Kind, be.Message)
		return
	}
	if errors.Is(err, context.DeadlineExceeded) {
		writeKind(w, booking.KindServiceUnavailable, "operation timed out, retry later")
		return
	}
	logger.Error("internal error", "err", err)
	writeJSON(w, http.StatusInternalServerError, errorBody{Error: errorDetail{Kind: "internal", Message: "internal error"}})
}
