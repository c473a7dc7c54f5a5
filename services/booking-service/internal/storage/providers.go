package storage

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/md-rashed-zaman/apptdesk/services/booking-service/internal/availability"
	"github.com/md-rashed-zaman/apptdesk/services/booking-service/internal/model"
)

const providerColumns = `id::text, slug, business_name, is_active, created_at`

func scanProvider(row rowScanner) (model.Provider, error) {
	var p model.Provider
	err := row.Scan(&p.ID, &p.Slug, &p.BusinessName, &p.IsActive, &p.CreatedAt)
	return p, err
}

func (s *Store) ProviderBySlug(ctx context.Context, slug string) (model.Provider, error) {
	p, err := scanProvider(s.pool.QueryRow(ctx, `SELECT `+providerColumns+` FROM providers WHERE slug = $1`, slug))
	if errors.Is(err, pgx.ErrNoRows) {
		return model.Provider{}, availability.ErrProviderNotFound
	}
	return p, err
}

func (s *Store) GetProvider(ctx context.Context, id string) (model.Provider, error) {
	if !validID(id) {
		return model.Provider{}, ErrNotFound
	}
	p, err := scanProvider(s.pool.QueryRow(ctx, `SELECT `+providerColumns+` FROM providers WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return model.Provider{}, ErrNotFound
	}
	return p, err
}

// UpsertProvider registers a provider by slug, keeping its id if it already exists.
func (s *Store) UpsertProvider(ctx context.Context, p model.Provider) (model.Provider, error) {
	return scanProvider(s.pool.QueryRow(ctx, `
		INSERT INTO providers (id, slug, business_name, is_active)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (slug) DO UPDATE
		SET business_name = EXCLUDED.business_name,
			is_active = EXCLUDED.is_active
		RETURNING `+providerColumns,
		p.ID, p.Slug, p.BusinessName, p.IsActive,
	))
}
