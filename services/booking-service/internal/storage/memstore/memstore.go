// Package memstore is an in-process implementation of the booking store, used for
// STORAGE_DRIVER=memory and by service tests. A single mutex serialises every write,
// which gives it the same slot uniqueness guarantee as the Postgres index.
package memstore

import (
	"cmp"
	"context"
	"slices"
	"sync"
	"time"

	"github.com/md-rashed-zaman/apptdesk/services/booking-service/internal/availability"
	"github.com/md-rashed-zaman/apptdesk/services/booking-service/internal/inbox"
	"github.com/md-rashed-zaman/apptdesk/services/booking-service/internal/model"
	"github.com/md-rashed-zaman/apptdesk/services/booking-service/internal/outbox"
	"github.com/md-rashed-zaman/apptdesk/services/booking-service/internal/storage"
)

type idemKey struct {
	providerID string
	key        string
}

type Store struct {
	policy storage.Policy
	now    func() time.Time

	mu            sync.Mutex
	providers     map[string]model.Provider
	customers     map[string]model.Customer
	appointments  map[string]model.Appointment
	idempotency   map[idemKey]string
	events        []outbox.Event
	notifications []storage.NotificationRecord
	inbox         *inbox.Memory
}

func New(policy storage.Policy) *Store {
	return &Store{
		policy:       policy,
		now:          time.Now,
		providers:    map[string]model.Provider{},
		customers:    map[string]model.Customer{},
		appointments: map[string]model.Appointment{},
		idempotency:  map[idemKey]string{},
		inbox:        inbox.NewMemory(),
	}
}

func (s *Store) UpsertProvider(_ context.Context, p model.Provider) (model.Provider, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, existing := range s.providers {
		if existing.Slug == p.Slug {
			existing.BusinessName = p.BusinessName
			existing.IsActive = p.IsActive
			s.providers[id] = existing
			return existing, nil
		}
	}
	if p.CreatedAt.IsZero() {
		p.CreatedAt = s.now()
	}
	s.providers[p.ID] = p
	return p, nil
}

func (s *Store) ProviderBySlug(_ context.Context, slug string) (model.Provider, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, p := range s.providers {
		if p.Slug == slug {
			return p, nil
		}
	}
	return model.Provider{}, availability.ErrProviderNotFound
}

func (s *Store) GetProvider(_ context.Context, id string) (model.Provider, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.providers[id]
	if !ok {
		return model.Provider{}, storage.ErrNotFound
	}
	return p, nil
}

func (s *Store) GetCustomer(_ context.Context, id string) (model.Customer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.customers[id]
	if !ok {
		return model.Customer{}, storage.ErrNotFound
	}
	return c, nil
}

func (s *Store) CreateBooking(_ context.Context, nb storage.NewBooking) (storage.Booking, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := idemKey{providerID: nb.Appointment.ProviderID, key: nb.IdempotencyKey}
	if nb.IdempotencyKey != "" {
		if id, ok := s.idempotency[key]; ok {
			appt := s.appointments[id]
			return storage.Booking{Appointment: appt, Customer: s.customers[appt.CustomerID], Replayed: true}, nil
		}
	}
	if s.occupiedLocked(nb.Appointment.ProviderID, nb.Appointment.Slot(), "") {
		return storage.Booking{}, storage.ErrSlotTaken
	}

	cust := s.findCustomerLocked(nb.Customer.Phone)
	if cust.ID == "" {
		cust = nb.Customer
		cust.CreatedAt = s.now()
	} else if cust.Email == "" && nb.Customer.Email != "" {
		cust.Email = nb.Customer.Email
	}

	appt := nb.Appointment
	appt.CustomerID = cust.ID
	appt.CreatedAt = s.now()
	appt.UpdatedAt = appt.CreatedAt

	var evt outbox.Event
	if nb.Event != nil {
		var err error
		if evt, err = nb.Event(appt); err != nil {
			return storage.Booking{}, err
		}
	}

	s.customers[cust.ID] = cust
	s.appointments[appt.ID] = appt
	if nb.IdempotencyKey != "" {
		s.idempotency[key] = appt.ID
	}
	if nb.Event != nil {
		s.events = append(s.events, evt)
	}
	return storage.Booking{Appointment: appt, Customer: cust}, nil
}

func (s *Store) findCustomerLocked(phone string) model.Customer {
	var found model.Customer
	for _, c := range s.customers {
		if c.Phone == phone && (found.ID == "" || c.CreatedAt.Before(found.CreatedAt)) {
			found = c
		}
	}
	return found
}

// occupiedLocked reports whether another appointment than exceptID holds the slot.
func (s *Store) occupiedLocked(providerID string, slot model.Slot, exceptID string) bool {
	for id, a := range s.appointments {
		if id == exceptID || a.ProviderID != providerID || a.Slot() != slot {
			continue
		}
		if a.Status != model.StatusCancelled || s.policy.CancelledOccupies {
			return true
		}
	}
	return false
}

func (s *Store) GetAppointment(_ context.Context, id string) (model.Appointment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.appointments[id]
	if !ok {
		return model.Appointment{}, storage.ErrNotFound
	}
	return a, nil
}

func (s *Store) MutateAppointment(_ context.Context, id string, fn storage.Mutation) (model.Appointment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.mutateLocked(id, fn)
}

// ApplyEvent mutates the appointment once per event id. The event is marked only after
// the mutation succeeds.
func (s *Store) ApplyEvent(_ context.Context, evt storage.InboundEvent, id string, fn storage.Mutation) (model.Appointment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.inbox.Seen(evt.ID) {
		return model.Appointment{}, storage.ErrDuplicateEvent
	}
	appt, err := s.mutateLocked(id, fn)
	if err != nil {
		return model.Appointment{}, err
	}
	s.inbox.Mark(evt.ID, evt.Type)
	return appt, nil
}

func (s *Store) mutateLocked(id string, fn storage.Mutation) (model.Appointment, error) {
	current, ok := s.appointments[id]
	if !ok {
		return model.Appointment{}, storage.ErrNotFound
	}
	next := current
	evt, err := fn(&next)
	if err != nil {
		return model.Appointment{}, err
	}
	// Only live rows are covered by the uniqueness rule.
	if current.Status == model.StatusCancelled && next.Status != model.StatusCancelled {
		for oid, a := range s.appointments {
			if oid != id && a.ProviderID == next.ProviderID && a.Slot() == next.Slot() && a.Status != model.StatusCancelled {
				return model.Appointment{}, storage.ErrSlotTaken
			}
		}
	}
	next.ID, next.ProviderID, next.CustomerID = current.ID, current.ProviderID, current.CustomerID
	next.ScheduledDate, next.ScheduledTime, next.CreatedAt = current.ScheduledDate, current.ScheduledTime, current.CreatedAt
	next.UpdatedAt = s.now()
	s.appointments[id] = next
	if evt != nil {
		s.events = append(s.events, *evt)
	}
	return next, nil
}

func (s *Store) DeleteAppointment(_ context.Context, id string, check func(model.Appointment) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.appointments[id]
	if !ok {
		return storage.ErrNotFound
	}
	if err := check(a); err != nil {
		return err
	}
	delete(s.appointments, id)
	for k, v := range s.idempotency {
		if v == id {
			delete(s.idempotency, k)
		}
	}
	return nil
}

func (s *Store) ListAppointments(_ context.Context, f storage.AppointmentFilter) ([]model.Appointment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	limit := f.Limit
	if limit <= 0 {
		limit = 50
	}
	limit = min(limit, 200)

	out := []model.Appointment{}
	for _, a := range s.appointments {
		if a.ProviderID != f.ProviderID {
			continue
		}
		if (f.From != "" && a.ScheduledDate < f.From) || (f.To != "" && a.ScheduledDate > f.To) {
			continue
		}
		if f.Status != "" && a.Status != f.Status {
			continue
		}
		out = append(out, a)
	}
	slices.SortFunc(out, func(a, b model.Appointment) int {
		return cmp.Or(cmp.Compare(a.ScheduledDate, b.ScheduledDate), cmp.Compare(a.ScheduledTime, b.ScheduledTime), cmp.Compare(a.ID, b.ID))
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *Store) BookedSlots(_ context.Context, providerID, startDate, endDate string) ([]model.Slot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	seen := map[model.Slot]struct{}{}
	var out []model.Slot
	for _, a := range s.appointments {
		if a.ProviderID != providerID || a.ScheduledDate < startDate || a.ScheduledDate > endDate {
			continue
		}
		if a.Status == model.StatusCancelled && !s.policy.CancelledOccupies {
			continue
		}
		if _, dup := seen[a.Slot()]; dup {
			continue
		}
		seen[a.Slot()] = struct{}{}
		out = append(out, a.Slot())
	}
	slices.SortFunc(out, func(a, b model.Slot) int {
		return cmp.Or(cmp.Compare(a.Date, b.Date), cmp.Compare(a.Time, b.Time))
	})
	return out, nil
}

func (s *Store) ClaimDueReminders(_ context.Context, date string, limit int) ([]model.Appointment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var due []model.Appointment
	for _, a := range s.appointments {
		if a.Status == model.StatusConfirmed && a.ReminderSentAt == nil && a.ScheduledDate == date {
			due = append(due, a)
		}
	}
	slices.SortFunc(due, func(a, b model.Appointment) int { return cmp.Compare(a.ScheduledTime, b.ScheduledTime) })
	if limit > 0 && len(due) > limit {
		due = due[:limit]
	}
	now := s.now()
	for i := range due {
		due[i].ReminderSentAt = &now
		due[i].UpdatedAt = now
		s.appointments[due[i].ID] = due[i]
	}
	return due, nil
}

func (s *Store) HasAppointmentWithCustomer(_ context.Context, providerID, customerID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, a := range s.appointments {
		if a.ProviderID == providerID && a.CustomerID == customerID {
			return true, nil
		}
	}
	return false, nil
}

func (s *Store) RecordNotification(_ context.Context, n storage.NotificationRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.notifications = append(s.notifications, n)
	return nil
}

// Events returns a copy of the outbox events written so far.
func (s *Store) Events() []outbox.Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.events)
}

// Notifications returns a copy of the notification log.
func (s *Store) Notifications() []storage.NotificationRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.notifications)
}
