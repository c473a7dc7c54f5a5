package lifecycle

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/md-rashed-zaman/apptdesk/libs/apperr"
	"github.com/md-rashed-zaman/apptdesk/services/booking-service/internal/access"
	"github.com/md-rashed-zaman/apptdesk/services/booking-service/internal/model"
	"github.com/md-rashed-zaman/apptdesk/services/booking-service/internal/outbox"
)

// Update is one field edit of the generic update path.
type Update interface {
	Field() string
	apply(a *model.Appointment)
}

type SetNotes struct{ Notes string }
type SetServiceType struct{ ServiceType string }
type SetStatus struct{ Status model.AppointmentStatus }
type SetPaymentStatus struct{ PaymentStatus model.PaymentStatus }

// SetTotalAmount with a nil Cents clears the amount.
type SetTotalAmount struct{ Cents *int64 }

func (SetNotes) Field() string         { return "notes" }
func (SetServiceType) Field() string   { return "service_type" }
func (SetStatus) Field() string        { return "status" }
func (SetPaymentStatus) Field() string { return "payment_status" }
func (SetTotalAmount) Field() string   { return "total_amount_cents" }

func (u SetNotes) apply(a *model.Appointment)         { a.Notes = u.Notes }
func (u SetServiceType) apply(a *model.Appointment)   { a.ServiceType = u.ServiceType }
func (u SetStatus) apply(a *model.Appointment)        { a.Status = u.Status }
func (u SetPaymentStatus) apply(a *model.Appointment) { a.PaymentStatus = u.PaymentStatus }
func (u SetTotalAmount) apply(a *model.Appointment)   { a.TotalAmountCents = u.Cents }

// updateRequest is the wire form of a generic update. Absent fields are left alone;
// total_amount_cents: null clears the amount.
type updateRequest struct {
	AppointmentID string       `json:"appointment_id"`
	Updates       updateFields `json:"updates"`
}

type updateFields struct {
	Notes            *string        `json:"notes"`
	ServiceType      *string        `json:"service_type"`
	Status           *string        `json:"status"`
	PaymentStatus    *string        `json:"payment_status"`
	TotalAmountCents presentAmount `json:"total_amount_cents"`
}

// presentAmount keeps the raw value and whether the key appeared at all, so an
// explicit null can be told apart from an absent field.
type presentAmount struct {
	set bool
	raw json.RawMessage
}

func (p *presentAmount) UnmarshalJSON(b []byte) error {
	p.set = true
	p.raw = append(p.raw[:0], b...)
	return nil
}

// DecodeUpdateRequest parses body strictly and validates every field before anything
// is written.
func DecodeUpdateRequest(body io.Reader) (string, []Update, error) {
	dec := json.NewDecoder(body)
	dec.DisallowUnknownFields()
	var req updateRequest
	if err := dec.Decode(&req); err != nil {
		return "", nil, apperr.Validationf("invalid update request: %v", err)
	}
	if req.AppointmentID == "" {
		return "", nil, apperr.Validation("appointment_id is required")
	}
	updates, err := req.Updates.updates()
	if err != nil {
		return "", nil, err
	}
	return req.AppointmentID, updates, nil
}

func (f updateFields) updates() ([]Update, error) {
	var out []Update
	if f.Notes != nil {
		out = append(out, SetNotes{Notes: *f.Notes})
	}
	if f.ServiceType != nil {
		out = append(out, SetServiceType{ServiceType: *f.ServiceType})
	}
	if f.Status != nil {
		st := model.AppointmentStatus(*f.Status)
		if !st.Valid() {
			return nil, apperr.Validationf("invalid status %q", *f.Status)
		}
		out = append(out, SetStatus{Status: st})
	}
	if f.PaymentStatus != nil {
		ps := model.PaymentStatus(*f.PaymentStatus)
		if !ps.Valid() {
			return nil, apperr.Validationf("invalid payment_status %q", *f.PaymentStatus)
		}
		out = append(out, SetPaymentStatus{PaymentStatus: ps})
	}
	if f.TotalAmountCents.set {
		u, err := decodeAmount(f.TotalAmountCents.raw)
		if err != nil {
			return nil, err
		}
		out = append(out, u)
	}
	if len(out) == 0 {
		return nil, apperr.Validation("no fields to update")
	}
	return out, nil
}

func decodeAmount(raw json.RawMessage) (SetTotalAmount, error) {
	if bytes.Equal(bytes.TrimSpace(raw), []byte("null")) {
		return SetTotalAmount{}, nil
	}
	var cents int64
	if err := json.Unmarshal(raw, &cents); err != nil {
		return SetTotalAmount{}, apperr.Validation("total_amount_cents must be an integer")
	}
	if cents < 0 {
		return SetTotalAmount{}, apperr.Validation("total_amount_cents must not be negative")
	}
	return SetTotalAmount{Cents: &cents}, nil
}

// Update applies field edits as-is. A status edit skips transition rules, so it is
// logged at warn level and still recorded as an event.
func (s *Service) Update(ctx context.Context, caller, id string, updates []Update) (model.Appointment, error) {
	if id == "" {
		return model.Appointment{}, apperr.Validation("appointment_id is required")
	}
	if len(updates) == 0 {
		return model.Appointment{}, apperr.Validation("no fields to update")
	}
	appt, err := s.store.MutateAppointment(ctx, id, func(a *model.Appointment) (*outbox.Event, error) {
		if err := access.Require(a.ProviderID, caller); err != nil {
			return nil, err
		}
		prev := a.Status
		for _, u := range updates {
			u.apply(a)
		}
		if a.Status == prev {
			return nil, nil
		}
		s.logger.Warn("appointment status set directly",
			"appointment_id", a.ID,
			"from", string(prev),
			"to", string(a.Status),
		)
		evt, err := outbox.AppointmentEvent(*a, prev, "manual update", s.now())
		return &evt, err
	})
	if err != nil {
		return model.Appointment{}, storeError(err, "appointment")
	}
	fields := make([]string, 0, len(updates))
	for _, u := range updates {
		fields = append(fields, u.Field())
	}
	s.logger.Info("appointment updated", "appointment_id", appt.ID, "fields", fmt.Sprint(fields))
	return appt, nil
}
