package outbox

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/md-rashed-zaman/apptdesk/services/booking-service/internal/model"
)

const AggregateAppointment = "appointment"

// Event is the domain event envelope written to the outbox table in the same
// transaction as the change it describes. The Kafka topic name equals EventType.
type Event struct {
	AggregateType string
	AggregateID   string
	EventType     string
	Payload       []byte
}

// AppointmentEventType is "appointment.<status>.v1".
func AppointmentEventType(status model.AppointmentStatus) string {
	return fmt.Sprintf("appointment.%s.v1", status)
}

type appointmentPayload struct {
	AppointmentID string                  `json:"appointment_id"`
	ProviderID    string                  `json:"provider_id"`
	CustomerID    string                  `json:"customer_id"`
	ScheduledDate string                  `json:"scheduled_date"`
	ScheduledTime string                  `json:"scheduled_time"`
	Status        model.AppointmentStatus `json:"status"`
	PreviousState model.AppointmentStatus `json:"previous_status,omitempty"`
	PaymentStatus model.PaymentStatus     `json:"payment_status"`
	Reason        string                  `json:"reason,omitempty"`
	OccurredAt    string                  `json:"occurred_at"`
}

// AppointmentEvent describes appt having moved from prev to its current status.
func AppointmentEvent(appt model.Appointment, prev model.AppointmentStatus, reason string, at time.Time) (Event, error) {
	payload, err := json.Marshal(appointmentPayload{
		AppointmentID: appt.ID,
		ProviderID:    appt.ProviderID,
		CustomerID:    appt.CustomerID,
		ScheduledDate: appt.ScheduledDate,
		ScheduledTime: appt.ScheduledTime,
		Status:        appt.Status,
		PreviousState: prev,
		PaymentStatus: appt.PaymentStatus,
		Reason:        reason,
		OccurredAt:    at.UTC().Format(time.RFC3339),
	})
	if err != nil {
		return Event{}, err
	}
	return Event{
		AggregateType: AggregateAppointment,
		AggregateID:   appt.ID,
		EventType:     AppointmentEventType(appt.Status),
		Payload:       payload,
	}, nil
}
