// Package consumer applies payment events from Kafka to appointments.
package consumer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/md-rashed-zaman/apptdesk/libs/apperr"
	"github.com/md-rashed-zaman/apptdesk/libs/kafkax"
	"github.com/md-rashed-zaman/apptdesk/services/booking-service/internal/model"
	"github.com/md-rashed-zaman/apptdesk/services/booking-service/internal/payments"
	"github.com/md-rashed-zaman/apptdesk/services/booking-service/internal/storage"
	"github.com/segmentio/kafka-go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const PaymentIntentTopic = "billing.payment_intent.updated.v1"

type Reader interface {
	ReadMessage(ctx context.Context) (kafka.Message, error)
	Close() error
}

// PaymentApplier applies an intent at most once per event; a repeat returns
// storage.ErrDuplicateEvent.
type PaymentApplier interface {
	ApplyPaymentIntent(ctx context.Context, event storage.InboundEvent, intent payments.Intent) (model.Appointment, error)
}

type Consumer struct {
	reader   Reader
	payments PaymentApplier
	logger   *slog.Logger
	tracer   trace.Tracer
}

func New(reader Reader, applier PaymentApplier, logger *slog.Logger) *Consumer {
	return &Consumer{
		reader:   reader,
		payments: applier,
		logger:   logger,
		tracer:   otel.Tracer("kafka"),
	}
}

type paymentEvent struct {
	PaymentIntentID string `json:"payment_intent_id"`
	Status          string `json:"status"`
	AmountCents     int64  `json:"amount_cents"`
	Currency        string `json:"currency"`
	AppointmentID   string `json:"appointment_id"`
}

// Run reads until ctx is done.
func (c *Consumer) Run(ctx context.Context) {
	defer c.reader.Close()

	for {
		msg, err := c.reader.ReadMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			c.logger.Error("kafka read error", "err", err)
			select {
			case <-ctx.Done():
				return
			case <-time.After(time.Second):
			}
			continue
		}
		c.handle(ctx, msg)
	}
}

func (c *Consumer) handle(ctx context.Context, msg kafka.Message) {
	ctx, span := c.tracer.Start(kafkax.ExtractTraceContext(ctx, msg), "kafka.consume",
		trace.WithAttributes(
			attribute.String("messaging.system", "kafka"),
			attribute.String("messaging.destination", msg.Topic),
		),
	)
	defer span.End()

	meta := kafkax.ExtractEventMeta(msg)
	if meta.EventID == "" {
		meta.EventID = fmt.Sprintf("%s/%d/%d", msg.Topic, msg.Partition, msg.Offset)
	}

	var evt paymentEvent
	if err := json.Unmarshal(msg.Value, &evt); err != nil || evt.PaymentIntentID == "" {
		c.logger.Error("invalid payment event", "err", err, "event_id", meta.EventID, "topic", msg.Topic)
		return
	}
	event := storage.InboundEvent{ID: meta.EventID, Type: meta.EventType}
	appt, err := c.payments.ApplyPaymentIntent(ctx, event, payments.Intent{
		ID:            evt.PaymentIntentID,
		Status:        evt.Status,
		AmountCents:   evt.AmountCents,
		Currency:      evt.Currency,
		AppointmentID: evt.AppointmentID,
	})
	if errors.Is(err, storage.ErrDuplicateEvent) {
		c.logger.Info("duplicate event ignored", "event_id", meta.EventID, "event_type", meta.EventType)
		return
	}
	if err != nil {
		level := slog.LevelError
		if k := apperr.KindOf(err); k == apperr.KindNotFound || k == apperr.KindValidation {
			level = slog.LevelWarn
		}
		c.logger.Log(ctx, level, "payment event not applied", "err", err, "event_id", meta.EventID, "payment_intent_id", evt.PaymentIntentID)
		span.RecordError(err)
		span.SetStatus(codes.Error, "payment event not applied")
		return
	}
	c.logger.Info("payment event applied", "event_id", meta.EventID, "appointment_id", appt.ID, "payment_status", string(appt.PaymentStatus))
}
