// Package reminders sends day-ahead reminders for confirmed appointments.
package reminders

import (
	"context"
	"log/slog"
	"time"

	"github.com/md-rashed-zaman/apptdesk/services/booking-service/internal/availability"
	"github.com/md-rashed-zaman/apptdesk/services/booking-service/internal/lifecycle"
	"github.com/md-rashed-zaman/apptdesk/services/booking-service/internal/model"
)

// Claimer marks due appointments as reminded and returns them. An appointment is
// returned by at most one claim.
type Claimer interface {
	ClaimDueReminders(ctx context.Context, date string, limit int) ([]model.Appointment, error)
}

type Sender interface {
	SendReminder(ctx context.Context, caller, id string) (lifecycle.Outcome, error)
}

type Worker struct {
	claimer   Claimer
	sender    Sender
	logger    *slog.Logger
	interval  time.Duration
	leadDays  int
	batchSize int
	now       func() time.Time
}

type WorkerConfig struct {
	Interval  time.Duration
	LeadDays  int
	BatchSize int
}

func NewWorker(claimer Claimer, sender Sender, logger *slog.Logger, cfg WorkerConfig, now func() time.Time) *Worker {
	if cfg.Interval <= 0 {
		cfg.Interval = 15 * time.Minute
	}
	if cfg.LeadDays <= 0 {
		cfg.LeadDays = 1
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 50
	}
	if now == nil {
		now = time.Now
	}
	return &Worker{
		claimer:   claimer,
		sender:    sender,
		logger:    logger,
		interval:  cfg.Interval,
		leadDays:  cfg.LeadDays,
		batchSize: cfg.BatchSize,
		now:       now,
	}
}

func (w *Worker) Run(ctx context.Context) {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		if _, err := w.processBatch(ctx); err != nil {
			w.logger.Error("reminder batch failed", "err", err)
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// processBatch claims and reminds until nothing is due, returning how many were sent.
func (w *Worker) processBatch(ctx context.Context) (int, error) {
	date := w.now().AddDate(0, 0, w.leadDays).Format(availability.DateLayout)
	sent := 0
	for ctx.Err() == nil {
		due, err := w.claimer.ClaimDueReminders(ctx, date, w.batchSize)
		if err != nil {
			return sent, err
		}
		for _, appt := range due {
			out, err := w.sender.SendReminder(ctx, appt.ProviderID, appt.ID)
			if err != nil {
				w.logger.Warn("reminder not sent", "appointment_id", appt.ID, "err", err)
				continue
			}
			if out.Notification != nil && !out.Notification.SMS.Sent {
				w.logger.Warn("reminder sms failed", "appointment_id", appt.ID, "error", out.Notification.SMS.Error)
				continue
			}
			sent++
		}
		if len(due) < w.batchSize {
			break
		}
	}
	if sent > 0 {
		w.logger.Info("reminders sent", "date", date, "count", sent)
	}
	return sent, nil
}
