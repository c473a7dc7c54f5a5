package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/md-rashed-zaman/apptdesk/libs/apperr"
	"github.com/md-rashed-zaman/apptdesk/libs/httpx"
	"github.com/md-rashed-zaman/apptdesk/services/booking-service/internal/model"
	"github.com/md-rashed-zaman/apptdesk/services/booking-service/internal/payments"
	"github.com/md-rashed-zaman/apptdesk/services/booking-service/internal/storage"
	"github.com/stripe/stripe-go/v79"
	"github.com/stripe/stripe-go/v79/webhook"
)

// PaymentApplier records the intent and the event id in one write. A repeat of an
// applied event returns storage.ErrDuplicateEvent; a failed apply records nothing.
type PaymentApplier interface {
	ApplyPaymentIntent(ctx context.Context, event storage.InboundEvent, intent payments.Intent) (model.Appointment, error)
}

// StripeWebhook receives payment_intent events. The Stripe signature is the only
// authentication, so the gateway exposes this path publicly.
type StripeWebhook struct {
	secret    string
	tolerance time.Duration
	payments  PaymentApplier
	logger    *slog.Logger
}

func NewStripeWebhook(secret string, tolerance time.Duration, applier PaymentApplier, logger *slog.Logger) *StripeWebhook {
	if tolerance <= 0 {
		tolerance = webhook.DefaultTolerance
	}
	return &StripeWebhook{
		secret:    strings.TrimSpace(secret),
		tolerance: tolerance,
		payments:  applier,
		logger:    logger,
	}
}

func (h *StripeWebhook) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if h.secret == "" {
		httpx.WriteJSON(w, http.StatusServiceUnavailable, httpx.ErrorBody{Error: "stripe webhook not configured"})
		return
	}
	sigHeader := r.Header.Get("Stripe-Signature")
	if strings.TrimSpace(sigHeader) == "" {
		httpx.WriteJSON(w, http.StatusBadRequest, httpx.ErrorBody{Error: "missing Stripe-Signature header"})
		return
	}
	body, err := io.ReadAll(io.LimitReader(r.Body, 1<<20))
	if err != nil {
		httpx.WriteJSON(w, http.StatusBadRequest, httpx.ErrorBody{Error: "failed to read request body"})
		return
	}
	evt, err := webhook.ConstructEventWithTolerance(body, sigHeader, h.secret, h.tolerance)
	if err != nil {
		h.logger.Warn("stripe webhook rejected", "err", err)
		httpx.WriteJSON(w, http.StatusBadRequest, httpx.ErrorBody{Error: "invalid signature"})
		return
	}

	evtType := string(evt.Type)
	h.logger.Info("stripe event received", "provider_event_id", evt.ID, "event_type", evtType)
	if !strings.HasPrefix(evtType, "payment_intent.") {
		httpx.WriteJSON(w, http.StatusOK, map[string]any{"status": "ignored"})
		return
	}

	var pi stripe.PaymentIntent
	if err := json.Unmarshal(evt.Data.Raw, &pi); err != nil {
		h.logger.Error("stripe: invalid payment intent payload", "err", err)
		httpx.WriteJSON(w, http.StatusOK, map[string]any{"status": "ignored"})
		return
	}
	intent := payments.FromStripe(&pi)
	if intent.AppointmentID == "" {
		h.logger.Warn("stripe: payment intent without appointment_id metadata", "payment_intent_id", pi.ID)
		httpx.WriteJSON(w, http.StatusOK, map[string]any{"status": "ignored"})
		return
	}

	event := storage.InboundEvent{ID: "stripe:" + evt.ID, Type: "stripe." + evtType}
	appt, err := h.payments.ApplyPaymentIntent(r.Context(), event, intent)
	switch {
	case errors.Is(err, storage.ErrDuplicateEvent):
		h.logger.Info("stripe event duplicate ignored", "provider_event_id", evt.ID, "event_type", evtType)
		httpx.WriteJSON(w, http.StatusOK, map[string]any{"status": "duplicate"})
		return
	case apperr.Is(err, apperr.KindNotFound):
		h.logger.Warn("stripe: payment for unknown appointment", "payment_intent_id", pi.ID, "appointment_id", intent.AppointmentID)
		httpx.WriteJSON(w, http.StatusOK, map[string]any{"status": "ignored"})
		return
	case err != nil:
		h.logger.Error("stripe: apply payment intent failed", "payment_intent_id", pi.ID, "err", err)
		httpx.WriteJSON(w, http.StatusInternalServerError, httpx.ErrorBody{Error: "failed to apply payment"})
		return
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]any{"status": "ok", "payment_status": appt.PaymentStatus})
}
