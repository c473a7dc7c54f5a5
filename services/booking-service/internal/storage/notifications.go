package storage

import "context"

// RecordNotification appends one channel's dispatch outcome to the notification log.
func (s *Store) RecordNotification(ctx context.Context, n NotificationRecord) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO notifications (appointment_id, provider_id, channel, kind, recipient, sent, message_id, error)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, n.AppointmentID, n.ProviderID, n.Channel, n.Kind, n.Recipient, n.Sent, n.MessageID, n.Error)
	return err
}
