// Package directory resolves providers by slug or id, caching slug lookups in Redis.
package directory

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/md-rashed-zaman/apptdesk/libs/apperr"
	"github.com/md-rashed-zaman/apptdesk/services/booking-service/internal/availability"
	"github.com/md-rashed-zaman/apptdesk/services/booking-service/internal/model"
	"github.com/md-rashed-zaman/apptdesk/services/booking-service/internal/storage"
	"github.com/redis/go-redis/v9"
)

type Source interface {
	ProviderBySlug(ctx context.Context, slug string) (model.Provider, error)
	GetProvider(ctx context.Context, id string) (model.Provider, error)
}

type Directory struct {
	src    Source
	rdb    *redis.Client
	ttl    time.Duration
	logger *slog.Logger
}

// New returns a directory over src. A nil rdb disables caching.
func New(src Source, rdb *redis.Client, ttl time.Duration, logger *slog.Logger) *Directory {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &Directory{src: src, rdb: rdb, ttl: ttl, logger: logger}
}

func cacheKey(slug string) string {
	return "apptdesk:provider:slug:" + slug
}

// ProviderBySlug serves from Redis when possible. Redis failures fall back to the
// store; only a confirmed miss in the store is reported as not found.
func (d *Directory) ProviderBySlug(ctx context.Context, slug string) (model.Provider, error) {
	if d.rdb != nil {
		raw, err := d.rdb.Get(ctx, cacheKey(slug)).Bytes()
		switch {
		case err == nil:
			var p model.Provider
			if jsonErr := json.Unmarshal(raw, &p); jsonErr == nil {
				return p, nil
			}
		case !errors.Is(err, redis.Nil):
			d.logger.Warn("provider cache read failed", "slug", slug, "err", err)
		}
	}

	p, err := d.src.ProviderBySlug(ctx, slug)
	if err != nil {
		return model.Provider{}, err
	}
	if d.rdb != nil {
		if raw, err := json.Marshal(p); err == nil {
			if err := d.rdb.Set(ctx, cacheKey(slug), raw, d.ttl).Err(); err != nil {
				d.logger.Warn("provider cache write failed", "slug", slug, "err", err)
			}
		}
	}
	return p, nil
}

// Invalidate drops the cached entry for slug.
func (d *Directory) Invalidate(ctx context.Context, slug string) error {
	if d.rdb == nil {
		return nil
	}
	return d.rdb.Del(ctx, cacheKey(slug)).Err()
}

// ResolveProviderID maps a provider reference (internal id or slug) to the internal id.
func (d *Directory) ResolveProviderID(ctx context.Context, ref string) (string, error) {
	if _, err := uuid.Parse(ref); err == nil {
		p, err := d.src.GetProvider(ctx, ref)
		if err == nil {
			return p.ID, nil
		}
		if !errors.Is(err, storage.ErrNotFound) {
			return "", apperr.Dependency("provider lookup failed", err)
		}
	}
	p, err := d.ProviderBySlug(ctx, ref)
	switch {
	case errors.Is(err, availability.ErrProviderNotFound):
		return "", apperr.NotFound("provider not found")
	case err != nil:
		return "", apperr.Dependency("provider lookup failed", err)
	}
	return p.ID, nil
}
