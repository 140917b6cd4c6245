package guide

import (
	"context"
	"sort"
	"strings"
	"time"

	"getmyguide/internal/domain/shared/daterange"
	"getmyguide/internal/domain/shared/errs"
)

var (
	ErrGuideNotFound    = errs.Sentinel(errs.KindNotFound, "guide: not found")
	ErrDatesUnavailable = errs.Sentinel(errs.KindConflict, "guide: requested dates are unavailable")
	ErrIDRequired       = errs.Sentinel(errs.KindValidation, "guide: id is required")
	ErrNameRequired     = errs.Sentinel(errs.KindValidation, "guide: name is required")
)

type ID string

type Guide struct {
	ID               ID
	Name             string
	Email            string
	ServiceLocations []string
	Languages        []string
	CreatedAt        time.Time
	UpdatedAt        time.Time

	// UnavailableDates holds every day claimed by an active booking,
	// sorted ascending without duplicates.
	UnavailableDates []time.Time
}

// Repository is the availability ledger plus guide profile lookup.
// Reserve must check and claim in one indivisible step.
type Repository interface {
	ByID(ctx context.Context, id ID) (*Guide, error)
	// Save persists profile fields. The claimed date set is owned by
	// Reserve and Release and is never written through Save.
	Save(ctx context.Context, g *Guide) error
	IsAvailable(ctx context.Context, id ID, r daterange.DateRange) (bool, error)
	Reserve(ctx context.Context, id ID, r daterange.DateRange) error
	Release(ctx context.Context, id ID, r daterange.DateRange) error
}

type CreateParams struct {
	ID               ID
	Name             string
	Email            string
	ServiceLocations []string
	Languages        []string
	CreatedAt        time.Time
}

func NewGuide(params CreateParams) (*Guide, error) {
	id := ID(strings.TrimSpace(string(params.ID)))
	if id == "" {
		return nil, ErrIDRequired
	}
	name := strings.TrimSpace(params.Name)
	if name == "" {
		return nil, ErrNameRequired
	}
	now := params.CreatedAt
	if now.IsZero() {
		now = time.Now()
	}
	now = now.UTC()
	return &Guide{
		ID:               id,
		Name:             name,
		Email:            strings.ToLower(strings.TrimSpace(params.Email)),
		ServiceLocations: normalizeSet(params.ServiceLocations),
		Languages:        normalizeSet(params.Languages),
		CreatedAt:        now,
		UpdatedAt:        now,
	}, nil
}

// IsAvailable reports whether no day of r is already claimed.
func (g *Guide) IsAvailable(r daterange.DateRange) bool {
	for _, d := range r.Days() {
		if g.claimed(d) {
			return false
		}
	}
	return true
}

// Claim adds every day of r or nothing at all.
func (g *Guide) Claim(r daterange.DateRange) error {
	if !g.IsAvailable(r) {
		return ErrDatesUnavailable
	}
	g.UnavailableDates = append(g.UnavailableDates, r.Days()...)
	sortDays(g.UnavailableDates)
	return nil
}

// Release drops every day of r. Days that are not claimed are ignored.
func (g *Guide) Release(r daterange.DateRange) {
	kept := g.UnavailableDates[:0]
	for _, d := range g.UnavailableDates {
		if !r.ContainsDay(d) {
			kept = append(kept, d)
		}
	}
	g.UnavailableDates = kept
}

// ClaimedWithin lists claimed days inside window.
func (g *Guide) ClaimedWithin(window daterange.DateRange) []time.Time {
	var out []time.Time
	for _, d := range g.UnavailableDates {
		if window.ContainsDay(d) {
			out = append(out, d)
		}
	}
	return out
}

func (g *Guide) Clone() *Guide {
	if g == nil {
		return nil
	}
	cp := *g
	cp.ServiceLocations = append([]string(nil), g.ServiceLocations...)
	cp.Languages = append([]string(nil), g.Languages...)
	cp.UnavailableDates = append([]time.Time(nil), g.UnavailableDates...)
	return &cp
}

func (g *Guide) claimed(day time.Time) bool {
	i := sort.Search(len(g.UnavailableDates), func(i int) bool {
		return !g.UnavailableDates[i].Before(day)
	})
	return i < len(g.UnavailableDates) && g.UnavailableDates[i].Equal(day)
}

func sortDays(days []time.Time) {
	sort.Slice(days, func(i, j int) bool { return days[i].Before(days[j]) })
}

func normalizeSet(values []string) []string {
	seen := make(map[string]struct{}, len(values))
	out := make([]string, 0, len(values))
	for _, v := range values {
		v = strings.TrimSpace(v)
		if v == "" {
			continue
		}
		key := strings.ToLower(v)
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, v)
	}
	return out
}
