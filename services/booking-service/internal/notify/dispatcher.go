// Package notify tells customers about appointment transitions. Dispatch never fails:
// every channel's outcome is reported in the Result.
package notify

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/md-rashed-zaman/apptdesk/services/booking-service/internal/notify/email"
	"github.com/md-rashed-zaman/apptdesk/services/booking-service/internal/notify/sms"
	"github.com/md-rashed-zaman/apptdesk/services/booking-service/internal/storage"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const ErrNoPhone = "phone number not available"

type ChannelResult struct {
	Sent      bool   `json:"sent"`
	MessageID string `json:"message_id,omitempty"`
	Error     string `json:"error,omitempty"`
}

type Result struct {
	SMS   ChannelResult  `json:"sms"`
	Email *ChannelResult `json:"email,omitempty"`
}

type Contact struct {
	Name  string
	Phone string
	Email string
}

type Notification struct {
	AppointmentID string
	ProviderID    string
	Kind          Kind
	Contact       Contact
	Details       Details
}

// Recorder keeps a log of dispatch outcomes.
type Recorder interface {
	RecordNotification(ctx context.Context, rec storage.NotificationRecord) error
}

type Dispatcher struct {
	sms      sms.Sender
	email    email.Sender
	recorder Recorder
	timeout  time.Duration
	logger   *slog.Logger
	tracer   trace.Tracer
}

// NewDispatcher wires the channels. email and recorder may be nil.
func NewDispatcher(smsSender sms.Sender, emailSender email.Sender, recorder Recorder, timeout time.Duration, logger *slog.Logger) *Dispatcher {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Dispatcher{
		sms:      smsSender,
		email:    emailSender,
		recorder: recorder,
		timeout:  timeout,
		logger:   logger,
		tracer:   otel.Tracer("notify"),
	}
}

func (d *Dispatcher) Dispatch(ctx context.Context, n Notification) Result {
	ctx, span := d.tracer.Start(ctx, "notify.dispatch", trace.WithAttributes(
		attribute.String("notification.kind", string(n.Kind)),
		attribute.String("appointment.id", n.AppointmentID),
	))
	defer span.End()

	if n.Details.CustomerName == "" {
		n.Details.CustomerName = n.Contact.Name
	}

	var res Result
	res.SMS = d.sendSMS(ctx, n)
	d.record(ctx, n, "sms", n.Contact.Phone, res.SMS)
	if !res.SMS.Sent {
		span.SetStatus(codes.Error, res.SMS.Error)
	}

	if n.Kind == KindConfirmation && d.email != nil && strings.TrimSpace(n.Contact.Email) != "" {
		er := d.sendEmail(ctx, n)
		res.Email = &er
		d.record(ctx, n, "email", n.Contact.Email, er)
	}
	return res
}

func (d *Dispatcher) sendSMS(ctx context.Context, n Notification) ChannelResult {
	phone := strings.TrimSpace(n.Contact.Phone)
	if phone == "" {
		return ChannelResult{Error: ErrNoPhone}
	}
	if d.sms == nil {
		return ChannelResult{Error: "sms gateway not configured"}
	}

	ctx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()
	id, err := d.sms.Send(ctx, phone, SMSBody(n.Kind, n.Details))
	if err != nil {
		d.logger.Warn("sms dispatch failed",
			"appointment_id", n.AppointmentID,
			"kind", n.Kind,
			"provider", d.sms.ProviderID(),
			"err", err,
		)
		return ChannelResult{Error: err.Error()}
	}
	return ChannelResult{Sent: true, MessageID: id}
}

func (d *Dispatcher) sendEmail(ctx context.Context, n Notification) ChannelResult {
	ctx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()
	subject, body := ConfirmationEmail(n.Details)
	if err := d.email.Send(ctx, n.Contact.Email, subject, body); err != nil {
		d.logger.Warn("email dispatch failed", "appointment_id", n.AppointmentID, "err", err)
		return ChannelResult{Error: err.Error()}
	}
	return ChannelResult{Sent: true}
}

func (d *Dispatcher) record(ctx context.Context, n Notification, channel, recipient string, r ChannelResult) {
	if d.recorder == nil {
		return
	}
	err := d.recorder.RecordNotification(ctx, storage.NotificationRecord{
		AppointmentID: n.AppointmentID,
		ProviderID:    n.ProviderID,
		Channel:       channel,
		Kind:          string(n.Kind),
		Recipient:     recipient,
		Sent:          r.Sent,
		MessageID:     r.MessageID,
		Error:         r.Error,
	})
	if err != nil {
		d.logger.Warn("notification log write failed", "appointment_id", n.AppointmentID, "err", err)
	}
}
