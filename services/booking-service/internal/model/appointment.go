package model

import "time"

type AppointmentStatus string

const (
	StatusPending    AppointmentStatus = "pending"
	StatusConfirmed  AppointmentStatus = "confirmed"
	StatusInProgress AppointmentStatus = "in_progress"
	StatusCompleted  AppointmentStatus = "completed"
	StatusCancelled  AppointmentStatus = "cancelled"
	StatusNoShow     AppointmentStatus = "no_show"
)

func (s AppointmentStatus) Valid() bool {
	switch s {
	case StatusPending, StatusConfirmed, StatusInProgress, StatusCompleted, StatusCancelled, StatusNoShow:
		return true
	}
	return false
}

// Terminal reports whether no lifecycle action may leave s.
func (s AppointmentStatus) Terminal() bool {
	return s == StatusCompleted || s == StatusCancelled || s == StatusNoShow
}

type PaymentStatus string

const (
	PaymentPending PaymentStatus = "pending"
	PaymentPaid    PaymentStatus = "paid"
	PaymentFailed  PaymentStatus = "failed"
)

func (p PaymentStatus) Valid() bool {
	return p == PaymentPending || p == PaymentPaid || p == PaymentFailed
}

// Appointment dates are "2006-01-02" and times "15:04", both opaque local values.
type Appointment struct {
	ID               string            `json:"id"`
	ProviderID       string            `json:"provider_id"`
	CustomerID       string            `json:"customer_id"`
	ScheduledDate    string            `json:"scheduled_date"`
	ScheduledTime    string            `json:"scheduled_time"`
	ServiceType      string            `json:"service_type"`
	Status           AppointmentStatus `json:"status"`
	PaymentStatus    PaymentStatus     `json:"payment_status"`
	Notes            string            `json:"notes"`
	TotalAmountCents *int64            `json:"total_amount_cents"`
	PaymentIntentID  string            `json:"payment_intent_id,omitempty"`
	CancelReason     string            `json:"cancel_reason,omitempty"`
	ReminderSentAt   *time.Time        `json:"reminder_sent_at,omitempty"`
	CreatedAt        time.Time         `json:"created_at"`
	UpdatedAt        time.Time         `json:"updated_at"`
}

func (a Appointment) Slot() Slot {
	return Slot{Date: a.ScheduledDate, Time: a.ScheduledTime}
}
