package notify

import (
	"fmt"
	"strings"
	"time"
)

type Kind string

const (
	KindConfirmation Kind = "confirmation"
	KindCancellation Kind = "cancellation"
	KindReschedule   Kind = "reschedule"
	KindReminder     Kind = "reminder"
)

// Details is what a message needs to describe an appointment.
type Details struct {
	CustomerName string
	BusinessName string
	Date         string // 2006-01-02
	Time         string // 15:04
	Service      string
	Reason       string
}

// FormatDate renders "2025-01-20" as "Monday, January 20, 2025"; unparseable input is returned as is.
func FormatDate(date string) string {
	d, err := time.Parse("2006-01-02", date)
	if err != nil {
		return date
	}
	return d.Format("Monday, January 2, 2006")
}

// FormatTime renders "14:00" as "2:00 PM"; unparseable input is returned as is.
func FormatTime(hhmm string) string {
	t, err := time.Parse("15:04", hhmm)
	if err != nil {
		return hhmm
	}
	return t.Format("3:04 PM")
}

func greeting(d Details) string {
	if name := strings.TrimSpace(d.CustomerName); name != "" {
		return "Hi " + name + ", "
	}
	return "Hi, "
}

func serviceLabel(d Details) string {
	if s := strings.TrimSpace(d.Service); s != "" {
		return s + " appointment"
	}
	return "appointment"
}

// SMSBody renders the text message for a transition.
func SMSBody(kind Kind, d Details) string {
	when := FormatDate(d.Date) + " at " + FormatTime(d.Time)
	switch kind {
	case KindConfirmation:
		return fmt.Sprintf("%syour %s with %s is confirmed for %s.", greeting(d), serviceLabel(d), d.BusinessName, when)
	case KindCancellation:
		return fmt.Sprintf("%syour %s with %s on %s has been cancelled. Reason: %s", greeting(d), serviceLabel(d), d.BusinessName, when, d.Reason)
	case KindReschedule:
		return fmt.Sprintf("%s%s needs to reschedule your %s on %s. Reason: %s. Please contact us to choose a new time.", greeting(d), d.BusinessName, serviceLabel(d), when, d.Reason)
	case KindReminder:
		return fmt.Sprintf("Reminder: your %s with %s is on %s.", serviceLabel(d), d.BusinessName, when)
	default:
		return fmt.Sprintf("%sthere is an update to your %s with %s on %s.", greeting(d), serviceLabel(d), d.BusinessName, when)
	}
}

// ConfirmationEmail renders the subject and body sent alongside a confirmation SMS.
func ConfirmationEmail(d Details) (string, string) {
	subject := "Appointment confirmed - " + d.BusinessName
	var b strings.Builder
	b.WriteString(greeting(d) + "\n\n")
	fmt.Fprintf(&b, "Your %s with %s is confirmed.\n\n", serviceLabel(d), d.BusinessName)
	fmt.Fprintf(&b, "Date: %s\nTime: %s\n", FormatDate(d.Date), FormatTime(d.Time))
	if s := strings.TrimSpace(d.Service); s != "" {
		fmt.Fprintf(&b, "Service: %s\n", s)
	}
	b.WriteString("\nWe look forward to seeing you.\n")
	return subject, b.String()
}
