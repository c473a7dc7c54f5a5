package lifecycle

import (
	"context"
	"errors"

	"github.com/md-rashed-zaman/apptdesk/libs/apperr"
	"github.com/md-rashed-zaman/apptdesk/services/booking-service/internal/access"
	"github.com/md-rashed-zaman/apptdesk/services/booking-service/internal/model"
	"github.com/md-rashed-zaman/apptdesk/services/booking-service/internal/outbox"
	"github.com/md-rashed-zaman/apptdesk/services/booking-service/internal/payments"
	"github.com/md-rashed-zaman/apptdesk/services/booking-service/internal/storage"
)

type PaymentOutcome struct {
	Appointment      model.Appointment
	Intent           payments.Intent
	PlatformFeeCents int64
	ProviderNetCents int64
}

// ReconcilePayment pulls a payment intent from the gateway and records its status and
// amount on the caller's appointment.
func (s *Service) ReconcilePayment(ctx context.Context, caller, id, intentID string) (PaymentOutcome, error) {
	if id == "" || intentID == "" {
		return PaymentOutcome{}, apperr.Validation("appointment_id and payment_intent_id are required")
	}
	if _, err := s.Get(ctx, caller, id); err != nil {
		return PaymentOutcome{}, err
	}
	if s.payments == nil {
		return PaymentOutcome{}, apperr.Dependency("payment gateway not configured", payments.ErrNotConfigured)
	}
	intent, err := s.payments.PaymentIntent(ctx, intentID)
	if err != nil {
		if errors.Is(err, payments.ErrNotConfigured) {
			return PaymentOutcome{}, apperr.Dependency("payment gateway not configured", err)
		}
		return PaymentOutcome{}, apperr.Dependency("payment gateway unavailable", err)
	}
	if intent.AppointmentID != "" && intent.AppointmentID != id {
		return PaymentOutcome{}, apperr.Validation("payment intent belongs to another appointment")
	}
	appt, err := s.recordPayment(ctx, id, intent, func(a model.Appointment) error {
		return access.Require(a.ProviderID, caller)
	})
	if err != nil {
		return PaymentOutcome{}, err
	}
	fee, net := s.cfg.Fees.Split(intent.AmountCents)
	return PaymentOutcome{Appointment: appt, Intent: intent, PlatformFeeCents: fee, ProviderNetCents: net}, nil
}

// ApplyPaymentIntent records a gateway-pushed intent on the appointment named in its
// metadata, at most once per event. Only the signature-verified Stripe webhook and the
// Kafka payment consumer may call it: it performs no provider check.
func (s *Service) ApplyPaymentIntent(ctx context.Context, event storage.InboundEvent, intent payments.Intent) (model.Appointment, error) {
	if intent.AppointmentID == "" {
		return model.Appointment{}, apperr.Validation("payment intent has no appointment_id metadata")
	}
	if event.ID == "" {
		return model.Appointment{}, apperr.Validation("payment event has no id")
	}
	appt, err := s.store.ApplyEvent(ctx, event, intent.AppointmentID, s.paymentMutation(intent, nil))
	if errors.Is(err, storage.ErrDuplicateEvent) {
		return model.Appointment{}, err
	}
	if err != nil {
		return model.Appointment{}, storeError(err, "appointment")
	}
	s.logPayment(appt, intent)
	return appt, nil
}

func (s *Service) recordPayment(ctx context.Context, id string, intent payments.Intent, check func(model.Appointment) error) (model.Appointment, error) {
	appt, err := s.store.MutateAppointment(ctx, id, s.paymentMutation(intent, check))
	if err != nil {
		return model.Appointment{}, storeError(err, "appointment")
	}
	s.logPayment(appt, intent)
	return appt, nil
}

func (s *Service) paymentMutation(intent payments.Intent, check func(model.Appointment) error) storage.Mutation {
	status := payments.StatusFor(intent.Status)
	return func(a *model.Appointment) (*outbox.Event, error) {
		if check != nil {
			if err := check(*a); err != nil {
				return nil, err
			}
		}
		a.PaymentStatus = status
		a.PaymentIntentID = intent.ID
		if intent.AmountCents > 0 {
			amount := intent.AmountCents
			a.TotalAmountCents = &amount
		}
		return nil, nil
	}
}

func (s *Service) logPayment(appt model.Appointment, intent payments.Intent) {
	s.logger.Info("payment recorded",
		"appointment_id", appt.ID,
		"payment_intent_id", intent.ID,
		"payment_status", string(appt.PaymentStatus),
	)
}
