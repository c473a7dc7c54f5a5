// Package inbox remembers which incoming events were already applied. Recording runs
// inside the transaction that applies the event, so a failed apply leaves no trace and
// the sender's redelivery is processed again.
package inbox

import (
	"context"
	"sync"

	"github.com/jackc/pgx/v5"
)

type Repository struct{}

func NewRepository() *Repository {
	return &Repository{}
}

// Record stores eventID in tx and reports whether it was new.
func (r *Repository) Record(ctx context.Context, tx pgx.Tx, eventID string, eventType string) (bool, error) {
	tag, err := tx.Exec(ctx, `
		INSERT INTO inbox_events (event_id, event_type)
		VALUES ($1, $2)
		ON CONFLICT (event_id) DO NOTHING
	`, eventID, eventType)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

// Memory is the in-process inbox. Callers check Seen, apply, then Mark once the apply
// has succeeded.
type Memory struct {
	mu   sync.Mutex
	seen map[string]string
}

func NewMemory() *Memory {
	return &Memory{seen: map[string]string{}}
}

func (m *Memory) Seen(eventID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.seen[eventID]
	return ok
}

func (m *Memory) Mark(eventID string, eventType string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.seen[eventID] = eventType
}
