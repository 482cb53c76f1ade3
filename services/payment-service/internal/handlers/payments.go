// Package handlers exposes checkout-session creation and the Stripe webhook
// endpoint for session payments.
package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/stripe/stripe-go/v79"
	checkoutsession "github.com/stripe/stripe-go/v79/checkout/session"
	"github.com/stripe/stripe-go/v79/webhook"

	"github.com/serenio-health/serenio/libs/outbox"
	"github.com/serenio-health/serenio/services/payment-service/internal/storage"
)

const (
	userIDHeader = "X-User-Id"
	maxBodyBytes = 1 << 20

	EventPaymentCompleted = "payment.completed.v1"
	EventPaymentFailed    = "payment.failed.v1"
)

type Config struct {
	SecretKey        string
	WebhookSecret    string
	WebhookTolerance time.Duration
	SuccessURL       string
	CancelURL        string
	SessionPrice     int64 // cents
	Currency         string
}

type PaymentHandler struct {
	logger *slog.Logger
	repo   *storage.Repository
	outbox *outbox.Repository
	cfg    Config
}

func NewPaymentHandler(logger *slog.Logger, repo *storage.Repository, outboxRepo *outbox.Repository, cfg Config) *PaymentHandler {
	if cfg.WebhookTolerance <= 0 {
		cfg.WebhookTolerance = 5 * time.Minute
	}
	if cfg.Currency == "" {
		cfg.Currency = "usd"
	}
	if cfg.SessionPrice <= 0 {
		cfg.SessionPrice = 7500
	}
	stripe.Key = cfg.SecretKey
	return &PaymentHandler{logger: logger, repo: repo, outbox: outboxRepo, cfg: cfg}
}

func (h *PaymentHandler) Register(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/v1/payments/checkout", h.CreateCheckout)
	mux.HandleFunc("GET /api/v1/payments/appointments/{id}", h.GetByAppointment)
	mux.HandleFunc("POST /api/v1/payments/webhook/stripe", h.StripeWebhook)
}

type checkoutRequest struct {
	AppointmentID string `json:"appointmentId"`
}

type checkoutResponse struct {
	SessionID string `json:"sessionId"`
	URL       string `json:"url"`
}

// CreateCheckout opens a one-time Stripe checkout session for an appointment
// and records a pending payment keyed by the session id.
func (h *PaymentHandler) CreateCheckout(w http.ResponseWriter, r *http.Request) {
	userID := r.Header.Get(userIDHeader)
	if userID == "" {
		http.Error(w, "missing user identity", http.StatusUnauthorized)
		return
	}
	if h.cfg.SecretKey == "" {
		http.Error(w, "payments are not configured", http.StatusNotImplemented)
		return
	}

	var req checkoutRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes)).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if req.AppointmentID == "" {
		http.Error(w, "appointmentId is required", http.StatusBadRequest)
		return
	}

	idempotencyKey := r.Header.Get("Idempotency-Key")
	if idempotencyKey == "" {
		idempotencyKey = fmt.Sprintf("checkout:%s:%s", req.AppointmentID, userID)
	}

	params := &stripe.CheckoutSessionParams{
		Mode:              stripe.String(string(stripe.CheckoutSessionModePayment)),
		SuccessURL:        stripe.String(h.cfg.SuccessURL),
		CancelURL:         stripe.String(h.cfg.CancelURL),
		ClientReferenceID: stripe.String(userID),
		LineItems: []*stripe.CheckoutSessionLineItemParams{{
			Quantity: stripe.Int64(1),
			PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
				Currency:   stripe.String(h.cfg.Currency),
				UnitAmount: stripe.Int64(h.cfg.SessionPrice),
				ProductData: &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
					Name: stripe.String("Therapy session"),
				},
			},
		}},
	}
	params.AddMetadata("appointment_id", req.AppointmentID)
	params.AddMetadata("user_id", userID)
	params.AddExpand("url")
	params.SetIdempotencyKey(idempotencyKey)

	sess, err := checkoutsession.New(params)
	if err != nil {
		h.logger.Error("stripe checkout session creation failed", "err", err, "appointment_id", req.AppointmentID)
		http.Error(w, "payment provider unavailable", http.StatusBadGateway)
		return
	}

	if err := h.repo.Create(r.Context(), storage.Payment{
		ID:                uuid.NewString(),
		AppointmentID:     req.AppointmentID,
		UserID:            userID,
		AmountCents:       h.cfg.SessionPrice,
		Currency:          h.cfg.Currency,
		ProviderSessionID: sess.ID,
		Status:            "pending",
	}); err != nil {
		h.logger.Error("failed to record pending payment", "err", err, "session_id", sess.ID)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	h.logger.Info("checkout session created", "session_id", sess.ID, "appointment_id", req.AppointmentID)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	_ = json.NewEncoder(w).Encode(checkoutResponse{SessionID: sess.ID, URL: sess.URL})
}

func (h *PaymentHandler) GetByAppointment(w http.ResponseWriter, r *http.Request) {
	userID := r.Header.Get(userIDHeader)
	if userID == "" {
		http.Error(w, "missing user identity", http.StatusUnauthorized)
		return
	}

	p, err := h.repo.GetByAppointment(r.Context(), r.PathValue("id"))
	if errors.Is(err, storage.ErrNotFound) {
		http.Error(w, "payment not found", http.StatusNotFound)
		return
	}
	if err != nil {
		h.logger.Error("payment lookup failed", "err", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	if p.UserID != userID {
		http.Error(w, "payment not found", http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{
		"id":            p.ID,
		"appointmentId": p.AppointmentID,
		"amountCents":   p.AmountCents,
		"currency":      p.Currency,
		"status":        p.Status,
		"createdAt":     p.CreatedAt,
	})
}

// StripeWebhook verifies the signature, records the delivery for idempotency,
// and applies the session outcome. Replayed events return 200 without
// reapplying.
func (h *PaymentHandler) StripeWebhook(w http.ResponseWriter, r *http.Request) {
	if h.cfg.WebhookSecret == "" {
		http.Error(w, "webhook is not configured", http.StatusNotImplemented)
		return
	}
	sigHeader := r.Header.Get("Stripe-Signature")
	if sigHeader == "" {
		http.Error(w, "missing Stripe-Signature header", http.StatusBadRequest)
		return
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		http.Error(w, "unable to read request body", http.StatusBadRequest)
		return
	}

	event, err := webhook.ConstructEventWithTolerance(body, sigHeader, h.cfg.WebhookSecret, h.cfg.WebhookTolerance)
	if err != nil {
		h.logger.Warn("webhook signature verification failed", "err", err)
		http.Error(w, "invalid signature", http.StatusBadRequest)
		return
	}

	ctx := r.Context()
	tx, err := h.repo.Begin(ctx)
	if err != nil {
		h.logger.Error("failed to begin webhook transaction", "err", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if err := h.repo.InsertProviderEvent(ctx, tx, storage.ProviderEvent{
		Provider:        "stripe",
		ProviderEventID: event.ID,
		EventType:       string(event.Type),
		Payload:         event.Data.Raw,
	}); err != nil {
		if errors.Is(err, storage.ErrDuplicateProviderEvent) {
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{"status":"duplicate"}`))
			return
		}
		h.logger.Error("failed to record provider event", "err", err, "event_id", event.ID)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	switch event.Type {
	case "checkout.session.completed":
		if err := h.applyCompleted(ctx, tx, event.Data.Raw); err != nil {
			h.logger.Error("failed to apply checkout completion", "err", err, "event_id", event.ID)
			http.Error(w, "internal error", http.StatusInternalServerError)
			return
		}
	case "checkout.session.expired":
		if err := h.applyExpired(ctx, tx, event.Data.Raw); err != nil {
			h.logger.Error("failed to apply checkout expiry", "err", err, "event_id", event.ID)
			http.Error(w, "internal error", http.StatusInternalServerError)
			return
		}
	default:
		h.logger.Info("ignoring webhook event", "type", event.Type, "event_id", event.ID)
	}

	if err := tx.Commit(ctx); err != nil {
		h.logger.Error("failed to commit webhook transaction", "err", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write([]byte(`{"status":"processed"}`))
}

func (h *PaymentHandler) applyCompleted(ctx context.Context, tx pgx.Tx, raw json.RawMessage) error {
	var sess stripe.CheckoutSession
	if err := json.Unmarshal(raw, &sess); err != nil {
		return fmt.Errorf("unmarshal checkout session: %w", err)
	}

	p, err := h.repo.MarkCompletedBySession(ctx, tx, sess.ID)
	if errors.Is(err, storage.ErrNotFound) {
		// Session was created outside this service. Keep the event record.
		h.logger.Warn("completed session has no payment row", "session_id", sess.ID)
		return nil
	}
	if err != nil {
		return err
	}

	payload, err := json.Marshal(map[string]any{
		"payment_id":     p.ID,
		"appointment_id": p.AppointmentID,
		"user_id":        p.UserID,
		"amount_cents":   p.AmountCents,
		"currency":       p.Currency,
		"completed_at":   time.Now().UTC().Format(time.RFC3339),
	})
	if err != nil {
		return err
	}
	return h.outbox.Insert(ctx, tx, outbox.Event{
		AggregateType: "payment",
		AggregateID:   p.ID,
		EventType:     EventPaymentCompleted,
		Payload:       payload,
	})
}

func (h *PaymentHandler) applyExpired(ctx context.Context, tx pgx.Tx, raw json.RawMessage) error {
	var sess stripe.CheckoutSession
	if err := json.Unmarshal(raw, &sess); err != nil {
		return fmt.Errorf("unmarshal checkout session: %w", err)
	}
	return h.repo.MarkFailedBySession(ctx, tx, sess.ID)
}
