// Package lifecycle owns appointment state: booking, provider actions and the
// customer notifications that follow them.
package lifecycle

import (
	"context"
	"errors"
	"log/slog"
	"net/mail"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/md-rashed-zaman/apptdesk/libs/apperr"
	"github.com/md-rashed-zaman/apptdesk/services/booking-service/internal/access"
	"github.com/md-rashed-zaman/apptdesk/services/booking-service/internal/availability"
	"github.com/md-rashed-zaman/apptdesk/services/booking-service/internal/model"
	"github.com/md-rashed-zaman/apptdesk/services/booking-service/internal/notify"
	"github.com/md-rashed-zaman/apptdesk/services/booking-service/internal/outbox"
	"github.com/md-rashed-zaman/apptdesk/services/booking-service/internal/payments"
	"github.com/md-rashed-zaman/apptdesk/services/booking-service/internal/storage"
)

type Store interface {
	CreateBooking(ctx context.Context, nb storage.NewBooking) (storage.Booking, error)
	GetAppointment(ctx context.Context, id string) (model.Appointment, error)
	MutateAppointment(ctx context.Context, id string, fn storage.Mutation) (model.Appointment, error)
	ApplyEvent(ctx context.Context, evt storage.InboundEvent, id string, fn storage.Mutation) (model.Appointment, error)
	DeleteAppointment(ctx context.Context, id string, check func(model.Appointment) error) error
	ListAppointments(ctx context.Context, f storage.AppointmentFilter) ([]model.Appointment, error)
	GetCustomer(ctx context.Context, id string) (model.Customer, error)
	GetProvider(ctx context.Context, id string) (model.Provider, error)
	HasAppointmentWithCustomer(ctx context.Context, providerID, customerID string) (bool, error)
}

type Providers interface {
	ProviderBySlug(ctx context.Context, slug string) (model.Provider, error)
}

type Notifier interface {
	Dispatch(ctx context.Context, n notify.Notification) notify.Result
}

type Config struct {
	// Hours are the bookable times of day.
	Hours availability.Hours
	Fees  payments.FeePolicy
}

type Service struct {
	store     Store
	providers Providers
	notifier  Notifier
	payments  payments.Gateway
	cfg       Config
	logger    *slog.Logger
	now       func() time.Time
}

// NewService wires the lifecycle. gateway may be nil when payments are not configured.
func NewService(store Store, providers Providers, notifier Notifier, gateway payments.Gateway, cfg Config, logger *slog.Logger, now func() time.Time) *Service {
	if len(cfg.Hours) == 0 {
		cfg.Hours = availability.DefaultHours()
	}
	if now == nil {
		now = time.Now
	}
	return &Service{
		store:     store,
		providers: providers,
		notifier:  notifier,
		payments:  gateway,
		cfg:       cfg,
		logger:    logger,
		now:       now,
	}
}

// Outcome is a committed change plus the result of telling the customer about it.
// Notification is nil for actions that do not notify.
type Outcome struct {
	Appointment  model.Appointment
	Notification *notify.Result
}

type CustomerInput struct {
	Name    string `json:"name"`
	Phone   string `json:"phone"`
	Email   string `json:"email"`
	Address string `json:"address"`
	Notes   string `json:"notes"`
}

type BookingRequest struct {
	ProviderID    string        `json:"provider_id"`
	ScheduledDate string        `json:"scheduled_date"`
	ScheduledTime string        `json:"scheduled_time"`
	ServiceType   string        `json:"service_type"`
	Notes         string        `json:"notes"`
	Customer      CustomerInput `json:"customer"`
}

type Booked struct {
	Appointment model.Appointment
	Customer    model.Customer
	Replayed    bool
}

func (r *BookingRequest) normalize() {
	for _, f := range []*string{
		&r.ProviderID, &r.ScheduledDate, &r.ScheduledTime, &r.ServiceType,
		&r.Customer.Name, &r.Customer.Phone, &r.Customer.Email,
	} {
		*f = strings.TrimSpace(*f)
	}
}

func (s *Service) validateBooking(r BookingRequest) error {
	switch {
	case r.ProviderID == "":
		return apperr.Validation("provider_id is required")
	case r.Customer.Name == "":
		return apperr.Validation("customer name is required")
	case r.Customer.Phone == "":
		return apperr.Validation("customer phone is required")
	}
	if r.Customer.Email != "" {
		if _, err := mail.ParseAddress(r.Customer.Email); err != nil {
			return apperr.Validation("customer email is invalid")
		}
	}
	if _, ok := availability.ParseDate(r.ScheduledDate); !ok {
		return apperr.Validation("scheduled_date must be YYYY-MM-DD")
	}
	if r.ScheduledDate < s.now().Format(availability.DateLayout) {
		return apperr.Validation("scheduled_date is in the past")
	}
	if !availability.ValidTime(r.ScheduledTime) {
		return apperr.Validation("scheduled_time must be HH:MM")
	}
	if !s.cfg.Hours.Contains(r.ScheduledTime) {
		return apperr.Validation("scheduled_time is outside business hours")
	}
	return nil
}

// Create books a slot for a customer as a pending appointment. Retrying with the same
// idempotency key returns the original booking.
func (s *Service) Create(ctx context.Context, req BookingRequest, idempotencyKey string) (Booked, error) {
	req.normalize()
	if err := s.validateBooking(req); err != nil {
		return Booked{}, err
	}
	provider, err := s.providers.ProviderBySlug(ctx, req.ProviderID)
	switch {
	case errors.Is(err, availability.ErrProviderNotFound):
		return Booked{}, apperr.NotFound("provider not found")
	case err != nil:
		return Booked{}, apperr.Dependency("provider lookup failed", err)
	case !provider.IsActive:
		return Booked{}, apperr.NotFound("provider not found")
	}

	booking, err := s.store.CreateBooking(ctx, storage.NewBooking{
		Appointment: model.Appointment{
			ID:            uuid.NewString(),
			ProviderID:    provider.ID,
			ScheduledDate: req.ScheduledDate,
			ScheduledTime: req.ScheduledTime,
			ServiceType:   req.ServiceType,
			Status:        model.StatusPending,
			PaymentStatus: model.PaymentPending,
			Notes:         req.Notes,
		},
		Customer: model.Customer{
			ID:      uuid.NewString(),
			Name:    req.Customer.Name,
			Phone:   req.Customer.Phone,
			Email:   req.Customer.Email,
			Address: req.Customer.Address,
			Notes:   req.Customer.Notes,
		},
		IdempotencyKey: strings.TrimSpace(idempotencyKey),
		Event: func(a model.Appointment) (outbox.Event, error) {
			return outbox.AppointmentEvent(a, "", "", s.now())
		},
	})
	if err != nil {
		return Booked{}, storeError(err, "appointment")
	}
	if !booking.Replayed {
		s.logger.Info("appointment booked",
			"appointment_id", booking.Appointment.ID,
			"provider_id", provider.ID,
			"date", booking.Appointment.ScheduledDate,
			"time", booking.Appointment.ScheduledTime,
		)
	}
	return Booked(booking), nil
}

func (s *Service) Confirm(ctx context.Context, caller, id string) (Outcome, error) {
	return s.apply(ctx, caller, id, ActionConfirm, "")
}

func (s *Service) Cancel(ctx context.Context, caller, id, reason string) (Outcome, error) {
	return s.apply(ctx, caller, id, ActionCancel, reason)
}

// Reschedule tells the customer their slot has to move. The appointment itself is
// left unchanged.
func (s *Service) Reschedule(ctx context.Context, caller, id, reason string) (Outcome, error) {
	return s.apply(ctx, caller, id, ActionReschedule, reason)
}

func (s *Service) SendReminder(ctx context.Context, caller, id string) (Outcome, error) {
	return s.apply(ctx, caller, id, ActionRemind, "")
}

func (s *Service) Start(ctx context.Context, caller, id string) (Outcome, error) {
	return s.apply(ctx, caller, id, ActionStart, "")
}

func (s *Service) Complete(ctx context.Context, caller, id string) (Outcome, error) {
	return s.apply(ctx, caller, id, ActionComplete, "")
}

func (s *Service) MarkNoShow(ctx context.Context, caller, id string) (Outcome, error) {
	return s.apply(ctx, caller, id, ActionNoShow, "")
}

// Apply runs a provider action by name.
func (s *Service) Apply(ctx context.Context, caller, id string, action Action, reason string) (Outcome, error) {
	return s.apply(ctx, caller, id, action, reason)
}

func (s *Service) apply(ctx context.Context, caller, id string, action Action, reason string) (Outcome, error) {
	reason = strings.TrimSpace(reason)
	if id == "" {
		return Outcome{}, apperr.Validation("appointment_id is required")
	}
	if (action == ActionCancel || action == ActionReschedule) && reason == "" {
		return Outcome{}, apperr.Validation("reason is required")
	}

	var appt model.Appointment
	var err error
	if action == ActionReschedule {
		appt, err = s.store.GetAppointment(ctx, id)
		if err == nil {
			err = access.Require(appt.ProviderID, caller)
		}
		if err == nil {
			_, err = Transition(appt.Status, action)
		}
	} else {
		appt, err = s.store.MutateAppointment(ctx, id, func(a *model.Appointment) (*outbox.Event, error) {
			if err := access.Require(a.ProviderID, caller); err != nil {
				return nil, err
			}
			next, err := Transition(a.Status, action)
			if err != nil {
				return nil, err
			}
			now := s.now()
			if action == ActionRemind {
				a.ReminderSentAt = &now
				return nil, nil
			}
			prev := a.Status
			a.Status = next
			if action == ActionCancel {
				a.CancelReason = reason
			}
			evt, err := outbox.AppointmentEvent(*a, prev, reason, now)
			return &evt, err
		})
	}
	if err != nil {
		return Outcome{}, storeError(err, "appointment")
	}
	s.logger.Info("appointment action applied", "appointment_id", appt.ID, "action", string(action), "status", string(appt.Status))

	out := Outcome{Appointment: appt}
	if kind, ok := notification(action); ok {
		res := s.notifyCustomer(ctx, appt, kind, reason)
		out.Notification = &res
	}
	return out, nil
}

// notifyCustomer runs after the write has committed, so it outlives a cancelled
// request and its failures only show up in the result.
func (s *Service) notifyCustomer(ctx context.Context, appt model.Appointment, kind notify.Kind, reason string) notify.Result {
	ctx = context.WithoutCancel(ctx)
	customer, err := s.store.GetCustomer(ctx, appt.CustomerID)
	if err != nil {
		s.logger.Error("notification skipped: customer lookup failed", "appointment_id", appt.ID, "err", err)
		return notify.Result{SMS: notify.ChannelResult{Error: "customer not available"}}
	}
	provider, err := s.store.GetProvider(ctx, appt.ProviderID)
	if err != nil {
		s.logger.Warn("provider lookup failed for notification", "appointment_id", appt.ID, "err", err)
	}
	return s.notifier.Dispatch(ctx, notify.Notification{
		AppointmentID: appt.ID,
		ProviderID:    appt.ProviderID,
		Kind:          kind,
		Contact:       notify.Contact{Name: customer.Name, Phone: customer.Phone, Email: customer.Email},
		Details: notify.Details{
			CustomerName: customer.Name,
			BusinessName: provider.BusinessName,
			Date:         appt.ScheduledDate,
			Time:         appt.ScheduledTime,
			Service:      appt.ServiceType,
			Reason:       reason,
		},
	})
}

func (s *Service) Get(ctx context.Context, caller, id string) (model.Appointment, error) {
	if id == "" {
		return model.Appointment{}, apperr.Validation("appointment_id is required")
	}
	appt, err := s.store.GetAppointment(ctx, id)
	if err != nil {
		return model.Appointment{}, storeError(err, "appointment")
	}
	if err := access.Require(appt.ProviderID, caller); err != nil {
		return model.Appointment{}, err
	}
	return appt, nil
}

type ListFilter struct {
	From   string
	To     string
	Status string
	Limit  int
}

// List returns the caller's own appointments.
func (s *Service) List(ctx context.Context, caller string, f ListFilter) ([]model.Appointment, error) {
	if caller == "" {
		return nil, apperr.Forbidden("access denied")
	}
	for _, d := range []string{f.From, f.To} {
		if _, ok := availability.ParseDate(d); d != "" && !ok {
			return nil, apperr.Validationf("invalid date %q", d)
		}
	}
	status := model.AppointmentStatus(f.Status)
	if status != "" && !status.Valid() {
		return nil, apperr.Validationf("invalid status %q", f.Status)
	}
	if f.Limit < 0 {
		return nil, apperr.Validation("limit must not be negative")
	}
	appts, err := s.store.ListAppointments(ctx, storage.AppointmentFilter{
		ProviderID: caller,
		From:       f.From,
		To:         f.To,
		Status:     status,
		Limit:      f.Limit,
	})
	if err != nil {
		return nil, storeError(err, "appointment")
	}
	return appts, nil
}

// GetCustomer reveals a customer only to providers the customer has booked with.
func (s *Service) GetCustomer(ctx context.Context, caller, customerID string) (model.Customer, error) {
	if customerID == "" {
		return model.Customer{}, apperr.Validation("customer_id is required")
	}
	customer, err := s.store.GetCustomer(ctx, customerID)
	if err != nil {
		return model.Customer{}, storeError(err, "customer")
	}
	ok, err := s.store.HasAppointmentWithCustomer(ctx, caller, customerID)
	if err != nil {
		return model.Customer{}, storeError(err, "customer")
	}
	if !ok {
		return model.Customer{}, apperr.Forbidden("access denied")
	}
	return customer, nil
}

// Delete removes a cancelled appointment. Any other status is permanent history.
func (s *Service) Delete(ctx context.Context, caller, id string) error {
	if id == "" {
		return apperr.Validation("appointment_id is required")
	}
	err := s.store.DeleteAppointment(ctx, id, func(a model.Appointment) error {
		if err := access.Require(a.ProviderID, caller); err != nil {
			return err
		}
		if a.Status != model.StatusCancelled {
			return apperr.Conflict("only cancelled appointments can be deleted")
		}
		return nil
	})
	if err != nil {
		return storeError(err, "appointment")
	}
	s.logger.Info("appointment deleted", "appointment_id", id)
	return nil
}

// storeError turns storage failures into service errors. Errors that already carry a
// kind pass through.
func storeError(err error, what string) error {
	var appErr *apperr.Error
	switch {
	case errors.As(err, &appErr):
		return err
	case errors.Is(err, storage.ErrNotFound):
		return apperr.NotFound(what + " not found")
	case errors.Is(err, storage.ErrSlotTaken):
		return apperr.Conflict("slot is no longer available")
	default:
		return apperr.Dependency("storage unavailable", err)
	}
}
