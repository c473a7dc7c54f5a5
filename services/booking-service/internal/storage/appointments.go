package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/doug-martin/goqu/v9"
	"github.com/jackc/pgx/v5"
	"github.com/md-rashed-zaman/apptdesk/services/booking-service/internal/model"
)

const (
	defaultListLimit = 50
	maxListLimit     = 200
)

// CreateBooking records a pending appointment. A concurrent or existing booking of the
// same provider slot fails with ErrSlotTaken.
func (s *Store) CreateBooking(ctx context.Context, nb NewBooking) (Booking, error) {
	var out Booking
	err := s.withTx(ctx, func(tx pgx.Tx) error {
		if nb.IdempotencyKey != "" {
			prior, err := s.lockIdempotencyKey(ctx, tx, nb.Appointment.ProviderID, nb.IdempotencyKey)
			if err != nil {
				return fmt.Errorf("lock idempotency key: %w", err)
			}
			if prior != "" {
				appt, err := scanAppointment(tx.QueryRow(ctx, `SELECT `+appointmentColumns+` FROM appointments WHERE id = $1`, prior))
				if err != nil {
					return err
				}
				cust, err := s.getCustomer(ctx, tx, appt.CustomerID)
				if err != nil {
					return err
				}
				out = Booking{Appointment: appt, Customer: cust, Replayed: true}
				return nil
			}
		}

		cust, err := s.findOrCreateCustomer(ctx, tx, nb.Customer)
		if err != nil {
			return fmt.Errorf("customer: %w", err)
		}
		appt := nb.Appointment
		appt.CustomerID = cust.ID

		appt, err = s.insertAppointment(ctx, tx, appt)
		if err != nil {
			return err
		}

		if nb.IdempotencyKey != "" {
			if _, err := tx.Exec(ctx, `
				UPDATE booking_idempotency_keys
				SET appointment_id = $3
				WHERE provider_id = $1 AND idempotency_key = $2
			`, appt.ProviderID, nb.IdempotencyKey, appt.ID); err != nil {
				return fmt.Errorf("finalize idempotency key: %w", err)
			}
		}
		if nb.Event != nil {
			evt, err := nb.Event(appt)
			if err != nil {
				return err
			}
			if err := s.outbox.Insert(ctx, tx, evt); err != nil {
				return fmt.Errorf("outbox insert: %w", err)
			}
		}
		out = Booking{Appointment: appt, Customer: cust}
		return nil
	})
	if err != nil {
		return Booking{}, err
	}
	return out, nil
}

func (s *Store) insertAppointment(ctx context.Context, tx pgx.Tx, a model.Appointment) (model.Appointment, error) {
	// With CancelledOccupies the insert is conditional on the slot never having been
	// used; the partial unique index still guards live bookings either way.
	occupiedClause := `AND status <> 'cancelled'`
	if s.policy.CancelledOccupies {
		occupiedClause = ``
	}
	row := tx.QueryRow(ctx, `
		INSERT INTO appointments
			(id, provider_id, customer_id, scheduled_date, scheduled_time, service_type,
			 status, payment_status, notes, total_amount_cents)
		SELECT $1::uuid, $2::uuid, $3::uuid, $4::text::date, $5::text::time, $6::text, $7::text, $8::text, $9::text, $10::bigint
		WHERE NOT EXISTS (
			SELECT 1 FROM appointments
			WHERE provider_id = $2::uuid
				AND scheduled_date = $4::text::date
				AND scheduled_time = $5::text::time
				`+occupiedClause+`
		)
		RETURNING `+appointmentColumns,
		a.ID, a.ProviderID, a.CustomerID, a.ScheduledDate, a.ScheduledTime, a.ServiceType,
		string(a.Status), string(a.PaymentStatus), a.Notes, a.TotalAmountCents,
	)
	created, err := scanAppointment(row)
	switch {
	case errors.Is(err, pgx.ErrNoRows), IsConflict(err):
		return model.Appointment{}, ErrSlotTaken
	case err != nil:
		return model.Appointment{}, fmt.Errorf("insert appointment: %w", err)
	}
	return created, nil
}

// lockIdempotencyKey claims (providerID, key) for this transaction and returns the
// appointment id a previous request stored under it, if any.
func (s *Store) lockIdempotencyKey(ctx context.Context, tx pgx.Tx, providerID, key string) (string, error) {
	if _, err := tx.Exec(ctx, `
		INSERT INTO booking_idempotency_keys (provider_id, idempotency_key)
		VALUES ($1, $2)
		ON CONFLICT (provider_id, idempotency_key) DO NOTHING
	`, providerID, key); err != nil {
		return "", err
	}
	var appointmentID string
	err := tx.QueryRow(ctx, `
		SELECT COALESCE(appointment_id::text, '')
		FROM booking_idempotency_keys
		WHERE provider_id = $1 AND idempotency_key = $2
		FOR UPDATE
	`, providerID, key).Scan(&appointmentID)
	return appointmentID, err
}

func (s *Store) GetAppointment(ctx context.Context, id string) (model.Appointment, error) {
	if !validID(id) {
		return model.Appointment{}, ErrNotFound
	}
	appt, err := scanAppointment(s.pool.QueryRow(ctx, `SELECT `+appointmentColumns+` FROM appointments WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return model.Appointment{}, ErrNotFound
	}
	return appt, err
}

// MutateAppointment locks the row, applies fn and persists the result.
func (s *Store) MutateAppointment(ctx context.Context, id string, fn Mutation) (model.Appointment, error) {
	if !validID(id) {
		return model.Appointment{}, ErrNotFound
	}
	var out model.Appointment
	err := s.withTx(ctx, func(tx pgx.Tx) error {
		var err error
		out, err = s.mutate(ctx, tx, id, fn)
		return err
	})
	if err != nil {
		return model.Appointment{}, err
	}
	return out, nil
}

// ApplyEvent records evt in the inbox and mutates the appointment in one transaction.
// A failed mutation rolls the inbox row back, so a redelivery is applied again.
func (s *Store) ApplyEvent(ctx context.Context, evt InboundEvent, id string, fn Mutation) (model.Appointment, error) {
	if !validID(id) {
		return model.Appointment{}, ErrNotFound
	}
	var out model.Appointment
	err := s.withTx(ctx, func(tx pgx.Tx) error {
		fresh, err := s.inbox.Record(ctx, tx, evt.ID, evt.Type)
		if err != nil {
			return fmt.Errorf("inbox insert: %w", err)
		}
		if !fresh {
			return ErrDuplicateEvent
		}
		out, err = s.mutate(ctx, tx, id, fn)
		return err
	})
	if err != nil {
		return model.Appointment{}, err
	}
	return out, nil
}

func (s *Store) mutate(ctx context.Context, tx pgx.Tx, id string, fn Mutation) (model.Appointment, error) {
	appt, err := scanAppointment(tx.QueryRow(ctx, `SELECT `+appointmentColumns+` FROM appointments WHERE id = $1 FOR UPDATE`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return model.Appointment{}, ErrNotFound
	}
	if err != nil {
		return model.Appointment{}, err
	}

	evt, err := fn(&appt)
	if err != nil {
		return model.Appointment{}, err
	}

	out, err := scanAppointment(tx.QueryRow(ctx, `
		UPDATE appointments
		SET status = $2,
			payment_status = $3,
			service_type = $4,
			notes = $5,
			total_amount_cents = $6,
			payment_intent_id = $7,
			cancel_reason = $8,
			reminder_sent_at = $9,
			updated_at = now()
		WHERE id = $1
		RETURNING `+appointmentColumns,
		appt.ID, string(appt.Status), string(appt.PaymentStatus), appt.ServiceType, appt.Notes,
		appt.TotalAmountCents, appt.PaymentIntentID, appt.CancelReason, appt.ReminderSentAt,
	))
	if IsConflict(err) {
		return model.Appointment{}, ErrSlotTaken
	}
	if err != nil {
		return model.Appointment{}, fmt.Errorf("update appointment: %w", err)
	}

	if evt != nil {
		if err := s.outbox.Insert(ctx, tx, *evt); err != nil {
			return model.Appointment{}, fmt.Errorf("outbox insert: %w", err)
		}
	}
	return out, nil
}

// DeleteAppointment removes the row once check accepts the locked current state.
func (s *Store) DeleteAppointment(ctx context.Context, id string, check func(model.Appointment) error) error {
	if !validID(id) {
		return ErrNotFound
	}
	return s.withTx(ctx, func(tx pgx.Tx) error {
		appt, err := scanAppointment(tx.QueryRow(ctx, `SELECT `+appointmentColumns+` FROM appointments WHERE id = $1 FOR UPDATE`, id))
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrNotFound
		}
		if err != nil {
			return err
		}
		if err := check(appt); err != nil {
			return err
		}
		if _, err := tx.Exec(ctx, `DELETE FROM booking_idempotency_keys WHERE appointment_id = $1`, id); err != nil {
			return err
		}
		_, err = tx.Exec(ctx, `DELETE FROM appointments WHERE id = $1`, id)
		return err
	})
}

// ListAppointments returns a provider's appointments ordered by slot.
func (s *Store) ListAppointments(ctx context.Context, f AppointmentFilter) ([]model.Appointment, error) {
	if !validID(f.ProviderID) {
		return []model.Appointment{}, nil
	}
	limit := f.Limit
	if limit <= 0 {
		limit = defaultListLimit
	}
	if limit > maxListLimit {
		limit = maxListLimit
	}

	ds := s.dialect.From("appointments").Prepared(true).
		Select(goqu.L(appointmentColumns)).
		Where(goqu.C("provider_id").Eq(goqu.Cast(goqu.V(f.ProviderID), "UUID"))).
		Order(goqu.C("scheduled_date").Asc(), goqu.C("scheduled_time").Asc()).
		Limit(uint(limit))
	if f.From != "" {
		ds = ds.Where(goqu.C("scheduled_date").Gte(asDate(f.From)))
	}
	if f.To != "" {
		ds = ds.Where(goqu.C("scheduled_date").Lte(asDate(f.To)))
	}
	if f.Status != "" {
		ds = ds.Where(goqu.C("status").Eq(string(f.Status)))
	}

	query, args, err := ds.ToSQL()
	if err != nil {
		return nil, fmt.Errorf("build list query: %w", err)
	}
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	appts, err := collectAppointments(rows)
	if err != nil {
		return nil, err
	}
	if appts == nil {
		appts = []model.Appointment{}
	}
	return appts, nil
}

func asDate(s string) goqu.Expression {
	return goqu.Cast(goqu.Cast(goqu.V(s), "TEXT"), "DATE")
}

// BookedSlots implements the ledger read: occupied (date, time) pairs in [startDate, endDate].
func (s *Store) BookedSlots(ctx context.Context, providerID, startDate, endDate string) ([]model.Slot, error) {
	if !validID(providerID) {
		return nil, nil
	}
	occupiedClause := `AND status <> 'cancelled'`
	if s.policy.CancelledOccupies {
		occupiedClause = ``
	}
	rows, err := s.pool.Query(ctx, `
		SELECT DISTINCT to_char(scheduled_date, 'YYYY-MM-DD'), to_char(scheduled_time, 'HH24:MI')
		FROM appointments
		WHERE provider_id = $1
			AND scheduled_date BETWEEN $2::text::date AND $3::text::date
			`+occupiedClause+`
		ORDER BY 1, 2
	`, providerID, startDate, endDate)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (model.Slot, error) {
		var slot model.Slot
		err := row.Scan(&slot.Date, &slot.Time)
		return slot, err
	})
}

// ClaimDueReminders stamps reminder_sent_at on up to limit confirmed appointments
// scheduled on date that have not been reminded, and returns them. Rows claimed by a
// concurrent sweeper are skipped.
func (s *Store) ClaimDueReminders(ctx context.Context, date string, limit int) ([]model.Appointment, error) {
	rows, err := s.pool.Query(ctx, `
		UPDATE appointments
		SET reminder_sent_at = now(), updated_at = now()
		WHERE id IN (
			SELECT id FROM appointments
			WHERE status = 'confirmed'
				AND reminder_sent_at IS NULL
				AND scheduled_date = $1::text::date
			ORDER BY scheduled_time
			LIMIT $2
			FOR UPDATE SKIP LOCKED
		)
		RETURNING `+appointmentColumns, date, limit)
	if err != nil {
		return nil, err
	}
	return collectAppointments(rows)
}

// HasAppointmentWithCustomer reports whether the provider has ever booked the customer.
func (s *Store) HasAppointmentWithCustomer(ctx context.Context, providerID, customerID string) (bool, error) {
	if !validID(providerID) || !validID(customerID) {
		return false, nil
	}
	var ok bool
	err := s.pool.QueryRow(ctx, `
		SELECT EXISTS (SELECT 1 FROM appointments WHERE provider_id = $1 AND customer_id = $2)
	`, providerID, customerID).Scan(&ok)
	return ok, err
}
