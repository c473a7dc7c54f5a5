// Package payments reads payment-intent state from the payment gateway.
package payments

import (
	"context"
	"errors"
	"math"
	"strings"

	"github.com/md-rashed-zaman/apptdesk/services/booking-service/internal/model"
	"github.com/stripe/stripe-go/v79"
	"github.com/stripe/stripe-go/v79/paymentintent"
)

// MetadataAppointmentID is the payment-intent metadata key naming the appointment paid for.
const MetadataAppointmentID = "appointment_id"

var ErrNotConfigured = errors.New("payment gateway not configured")

// Intent is the part of a payment intent the booking flow cares about.
type Intent struct {
	ID            string
	Status        string
	AmountCents   int64
	Currency      string
	AppointmentID string
}

type Gateway interface {
	PaymentIntent(ctx context.Context, id string) (Intent, error)
}

// StatusFor maps a gateway intent status to an appointment payment status.
func StatusFor(status string) model.PaymentStatus {
	switch stripe.PaymentIntentStatus(status) {
	case stripe.PaymentIntentStatusSucceeded:
		return model.PaymentPaid
	case stripe.PaymentIntentStatusCanceled, stripe.PaymentIntentStatusRequiresPaymentMethod:
		return model.PaymentFailed
	default:
		return model.PaymentPending
	}
}

// FromStripe converts a Stripe payment intent.
func FromStripe(pi *stripe.PaymentIntent) Intent {
	in := Intent{
		ID:          pi.ID,
		Status:      string(pi.Status),
		AmountCents: pi.Amount,
		Currency:    string(pi.Currency),
	}
	if pi.Metadata != nil {
		in.AppointmentID = strings.TrimSpace(pi.Metadata[MetadataAppointmentID])
	}
	return in
}

// StripeGateway looks payment intents up with its own API key rather than the
// package-level stripe.Key.
type StripeGateway struct {
	client paymentintent.Client
}

func NewStripeGateway(secretKey string) *StripeGateway {
	return &StripeGateway{client: paymentintent.Client{
		B:   stripe.GetBackend(stripe.APIBackend),
		Key: strings.TrimSpace(secretKey),
	}}
}

func (g *StripeGateway) PaymentIntent(ctx context.Context, id string) (Intent, error) {
	if g == nil || g.client.Key == "" {
		return Intent{}, ErrNotConfigured
	}
	params := &stripe.PaymentIntentParams{}
	params.Context = ctx
	pi, err := g.client.Get(id, params)
	if err != nil {
		return Intent{}, err
	}
	return FromStripe(pi), nil
}

// FeePolicy splits a payment between the platform and the provider.
type FeePolicy struct {
	Percent float64
}

// Split returns the platform fee (rounded half up) and the provider's share.
func (f FeePolicy) Split(amountCents int64) (feeCents, netCents int64) {
	if amountCents <= 0 || f.Percent <= 0 {
		return 0, amountCents
	}
	fee := int64(math.Round(float64(amountCents) * f.Percent / 100))
	fee = min(fee, amountCents)
	return fee, amountCents - fee
}
