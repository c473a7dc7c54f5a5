// Package storage is the Postgres-backed booking ledger and record store.
package storage

import (
	"context"
	"errors"
	"time"

	"github.com/doug-martin/goqu/v9"
	_ "github.com/doug-martin/goqu/v9/dialect/postgres"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/md-rashed-zaman/apptdesk/libs/db"
	"github.com/md-rashed-zaman/apptdesk/services/booking-service/internal/inbox"
	"github.com/md-rashed-zaman/apptdesk/services/booking-service/internal/model"
	"github.com/md-rashed-zaman/apptdesk/services/booking-service/internal/outbox"
)

var (
	ErrNotFound  = errors.New("not found")
	ErrSlotTaken = errors.New("slot already booked")
	// ErrDuplicateEvent is returned by ApplyEvent for an event that was already applied.
	ErrDuplicateEvent = errors.New("event already applied")
)

// InboundEvent identifies an externally delivered event for de-duplication.
type InboundEvent struct {
	ID   string
	Type string
}

// Policy controls what counts as an occupied slot.
type Policy struct {
	// CancelledOccupies keeps a cancelled appointment's slot closed for new bookings.
	CancelledOccupies bool
}

// Mutation edits a locked appointment in place. Returning an error aborts the write;
// a non-nil event is appended to the outbox in the same transaction.
type Mutation func(appt *model.Appointment) (*outbox.Event, error)

// NewBooking is a pending appointment plus the customer it is for. The customer is
// matched by phone and only created when no existing record matches.
type NewBooking struct {
	Appointment    model.Appointment
	Customer       model.Customer
	IdempotencyKey string
	Event          func(model.Appointment) (outbox.Event, error)
}

type Booking struct {
	Appointment model.Appointment
	Customer    model.Customer
	// Replayed is set when the idempotency key had already produced this booking.
	Replayed bool
}

type AppointmentFilter struct {
	ProviderID string
	From       string
	To         string
	Status     model.AppointmentStatus
	Limit      int
}

type NotificationRecord struct {
	AppointmentID string
	ProviderID    string
	Channel       string
	Kind          string
	Recipient     string
	Sent          bool
	MessageID     string
	Error         string
}

type Store struct {
	pool    *db.Pool
	outbox  *outbox.Repository
	inbox   *inbox.Repository
	policy  Policy
	dialect goqu.DialectWrapper
}

func New(pool *db.Pool, outboxRepo *outbox.Repository, inboxRepo *inbox.Repository, policy Policy) *Store {
	return &Store{
		pool:    pool,
		outbox:  outboxRepo,
		inbox:   inboxRepo,
		policy:  policy,
		dialect: goqu.Dialect("postgres"),
	}
}

// IsConflict reports a unique-constraint violation.
func IsConflict(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

func IsNotFound(err error) bool {
	return errors.Is(err, pgx.ErrNoRows) || errors.Is(err, ErrNotFound)
}

// validID filters out ids that cannot be a UUID so lookups report not found
// instead of a cast error.
func validID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}

func (s *Store) withTx(ctx context.Context, fn func(pgx.Tx) error) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if err := fn(tx); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

type rowScanner interface {
	Scan(dest ...any) error
}

const appointmentColumns = `
	id::text, provider_id::text, customer_id::text,
	to_char(scheduled_date, 'YYYY-MM-DD'), to_char(scheduled_time, 'HH24:MI'),
	service_type, status, payment_status, notes, total_amount_cents, payment_intent_id,
	cancel_reason, reminder_sent_at, created_at, updated_at`

func scanAppointment(row rowScanner) (model.Appointment, error) {
	var (
		a              model.Appointment
		status, paid   string
		reminderSentAt *time.Time
	)
	err := row.Scan(
		&a.ID, &a.ProviderID, &a.CustomerID,
		&a.ScheduledDate, &a.ScheduledTime,
		&a.ServiceType, &status, &paid, &a.Notes, &a.TotalAmountCents, &a.PaymentIntentID,
		&a.CancelReason, &reminderSentAt, &a.CreatedAt, &a.UpdatedAt,
	)
	if err != nil {
		return model.Appointment{}, err
	}
	a.Status = model.AppointmentStatus(status)
	a.PaymentStatus = model.PaymentStatus(paid)
	a.ReminderSentAt = reminderSentAt
	return a, nil
}

func collectAppointments(rows pgx.Rows) ([]model.Appointment, error) {
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (model.Appointment, error) {
		return scanAppointment(row)
	})
}
