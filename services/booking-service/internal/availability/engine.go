package availability

import (
	"cmp"
	"context"
	"errors"
	"slices"
	"time"

	"github.com/md-rashed-zaman/apptdesk/libs/apperr"
	"github.com/md-rashed-zaman/apptdesk/services/booking-service/internal/model"
)

// ErrProviderNotFound is returned by a ProviderDirectory for an unknown slug.
var ErrProviderNotFound = errors.New("provider not found")

type ProviderDirectory interface {
	ProviderBySlug(ctx context.Context, slug string) (model.Provider, error)
}

// Ledger reports occupied slots for a provider (internal id) between two dates inclusive.
type Ledger interface {
	BookedSlots(ctx context.Context, providerID, startDate, endDate string) ([]model.Slot, error)
}

type Config struct {
	Hours       Hours
	DefaultDays int // range length when no end date is given
	MaxDays     int // longest range served in one call
}

type Engine struct {
	providers ProviderDirectory
	ledger    Ledger
	cfg       Config
	now       func() time.Time
}

type Result struct {
	ProviderID   string              `json:"provider_id"`
	BusinessName string              `json:"business_name"`
	StartDate    string              `json:"start_date"`
	EndDate      string              `json:"end_date"`
	SlotsByDate  map[string][]string `json:"slots_by_date"`
	BookedSlots  []model.Slot        `json:"booked_slots"`
}

func NewEngine(providers ProviderDirectory, ledger Ledger, cfg Config, now func() time.Time) *Engine {
	if len(cfg.Hours) == 0 {
		cfg.Hours = DefaultHours()
	}
	if cfg.DefaultDays <= 0 {
		cfg.DefaultDays = 7
	}
	if cfg.MaxDays <= 0 {
		cfg.MaxDays = 31
	}
	if now == nil {
		now = time.Now
	}
	return &Engine{providers: providers, ledger: ledger, cfg: cfg, now: now}
}

// Availability returns the open times per date for the provider with the given slug.
// Missing or malformed dates fall back to today and today+DefaultDays.
func (e *Engine) Availability(ctx context.Context, slug, startDate, endDate string) (Result, error) {
	if slug == "" {
		return Result{}, apperr.Validation("provider_id is required")
	}
	provider, err := e.providers.ProviderBySlug(ctx, slug)
	if err != nil {
		if errors.Is(err, ErrProviderNotFound) {
			return Result{}, apperr.NotFound("provider not found")
		}
		return Result{}, apperr.Dependency("provider lookup failed", err)
	}
	if !provider.IsActive {
		return Result{}, apperr.NotFound("provider not found")
	}

	start, end := e.resolveRange(startDate, endDate)
	res := Result{
		ProviderID:   provider.Slug,
		BusinessName: provider.BusinessName,
		StartDate:    start.Format(DateLayout),
		EndDate:      end.Format(DateLayout),
		SlotsByDate:  map[string][]string{},
		BookedSlots:  []model.Slot{},
	}
	if end.Before(start) {
		return res, nil
	}

	booked, err := e.ledger.BookedSlots(ctx, provider.ID, res.StartDate, res.EndDate)
	if err != nil {
		return Result{}, apperr.Dependency("booking ledger unavailable", err)
	}
	taken := make(map[model.Slot]struct{}, len(booked))
	for _, s := range booked {
		taken[s] = struct{}{}
	}

	for slot := range Calendar(start, end, e.cfg.Hours) {
		open, ok := res.SlotsByDate[slot.Date]
		if !ok {
			open = []string{}
		}
		if _, isTaken := taken[slot]; isTaken {
			res.BookedSlots = append(res.BookedSlots, slot)
		} else {
			open = append(open, slot.Time)
		}
		res.SlotsByDate[slot.Date] = open
	}

	// Bookings outside business hours still occupy the ledger; report them too.
	for _, s := range booked {
		if !e.cfg.Hours.Contains(s.Time) {
			res.BookedSlots = append(res.BookedSlots, s)
		}
	}
	slices.SortFunc(res.BookedSlots, func(a, b model.Slot) int {
		return cmp.Or(cmp.Compare(a.Date, b.Date), cmp.Compare(a.Time, b.Time))
	})
	return res, nil
}

func (e *Engine) resolveRange(startDate, endDate string) (time.Time, time.Time) {
	start, ok := ParseDate(startDate)
	if !ok {
		start = truncateDay(e.now())
	}
	end, ok := ParseDate(endDate)
	if !ok {
		end = start.AddDate(0, 0, e.cfg.DefaultDays)
	}
	if limit := start.AddDate(0, 0, e.cfg.MaxDays-1); end.After(limit) {
		end = limit
	}
	return start, end
}
