package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	domainbooking "getmyguide/internal/domain/booking"
	domainguide "getmyguide/internal/domain/guide"
	"getmyguide/internal/domain/shared/daterange"
)

// GuideRepository keeps guide profiles and their claimed days in memory.
// Reserve and Release for one guide are serialised by a per-guide lock, so
// a check and its claim can never interleave with another claim.
type GuideRepository struct {
	mu    sync.RWMutex
	items map[domainguide.ID]*domainguide.Guide
	locks keyedMutex
}

func NewGuideRepository() *GuideRepository {
	return &GuideRepository{items: make(map[domainguide.ID]*domainguide.Guide)}
}

func (r *GuideRepository) ByID(ctx context.Context, id domainguide.ID) (*domainguide.Guide, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	g, ok := r.items[id]
	if !ok {
		return nil, domainguide.ErrGuideNotFound
	}
	return g.Clone(), nil
}

// Save upserts profile fields and leaves stored claims untouched.
func (r *GuideRepository) Save(ctx context.Context, g *domainguide.Guide) error {
	unlock := r.locks.Lock(string(g.ID))
	defer unlock()
	r.mu.Lock()
	defer r.mu.Unlock()
	next := g.Clone()
	if current, ok := r.items[g.ID]; ok {
		next.UnavailableDates = current.UnavailableDates
		next.CreatedAt = current.CreatedAt
	} else {
		next.UnavailableDates = nil
	}
	r.items[g.ID] = next
	return nil
}

func (r *GuideRepository) IsAvailable(ctx context.Context, id domainguide.ID, dr daterange.DateRange) (bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	g, ok := r.items[id]
	if !ok {
		return false, domainguide.ErrGuideNotFound
	}
	return g.IsAvailable(dr), nil
}

func (r *GuideRepository) Reserve(ctx context.Context, id domainguide.ID, dr daterange.DateRange) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	unlock := r.locks.Lock(string(id))
	defer unlock()
	return r.mutate(id, func(g *domainguide.Guide) error {
		return g.Claim(dr)
	})
}

func (r *GuideRepository) Release(ctx context.Context, id domainguide.ID, dr daterange.DateRange) error {
	unlock := r.locks.Lock(string(id))
	defer unlock()
	return r.mutate(id, func(g *domainguide.Guide) error {
		g.Release(dr)
		return nil
	})
}

// mutate applies fn to a copy and swaps it in only when fn succeeds.
func (r *GuideRepository) mutate(id domainguide.ID, fn func(g *domainguide.Guide) error) error {
	r.mu.RLock()
	current, ok := r.items[id]
	r.mu.RUnlock()
	if !ok {
		return domainguide.ErrGuideNotFound
	}
	next := current.Clone()
	if err := fn(next); err != nil {
		return err
	}
	next.UpdatedAt = time.Now().UTC()
	r.mu.Lock()
	r.items[id] = next
	r.mu.Unlock()
	return nil
}

// BookingRepository stores booking snapshots in memory.
type BookingRepository struct {
	mu       sync.RWMutex
	items    map[domainbooking.ID]*domainbooking.Booking
	orders   map[string]domainbooking.ID
}

func NewBookingRepository() *BookingRepository {
	return &BookingRepository{
		items:    make(map[domainbooking.ID]*domainbooking.Booking),
		orders:   make(map[string]domainbooking.ID),
	}
}

func (r *BookingRepository) ByID(ctx context.Context, id domainbooking.ID) (*domainbooking.Booking, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	b, ok := r.items[id]
	if !ok {
		return nil, domainbooking.ErrBookingNotFound
	}
	return b.Clone(), nil
}

func (r *BookingRepository) Save(ctx context.Context, b *domainbooking.Booking) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	current, exists := r.items[b.ID]
	switch {
	case !exists && b.Version != 0:
		return domainbooking.ErrConcurrentUpdate
	case exists && current.Version != b.Version:
		return domainbooking.ErrConcurrentUpdate
	}
	orders := b.PaymentOrders()
	for _, order := range orders {
		if owner, used := r.orders[order]; used && owner != b.ID {
			return domainbooking.ErrPaymentAlreadyUsed
		}
	}
	for _, order := range orders {
		r.orders[order] = b.ID
	}
	b.Version++
	r.items[b.ID] = b.Clone()
	return nil
}

func (r *BookingRepository) Delete(ctx context.Context, id domainbooking.ID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	b, ok := r.items[id]
	if !ok {
		return domainbooking.ErrBookingNotFound
	}
	delete(r.items, id)
	for _, order := range b.PaymentOrders() {
		delete(r.orders, order)
	}
	return nil
}

func (r *BookingRepository) List(ctx context.Context, filter domainbooking.ListFilter) ([]*domainbooking.Booking, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*domainbooking.Booking, 0)
	for _, b := range r.items {
		if filter.UserID != "" && b.UserID != filter.UserID {
			continue
		}
		if filter.GuideID != "" && b.GuideID != filter.GuideID {
			continue
		}
		if filter.Status != "" && b.Status != filter.Status {
			continue
		}
		out = append(out, b.Clone())
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

func (r *BookingRepository) DueReminders(ctx context.Context, day time.Time) ([]*domainbooking.Booking, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*domainbooking.Booking, 0)
	for _, b := range r.items {
		if b.ReminderDue(day) {
			out = append(out, b.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// keyedMutex hands out one mutex per key and drops it once unused.
type keyedMutex struct {
	mu    sync.Mutex
	locks map[string]*refMutex
}

type refMutex struct {
	sync.Mutex
	refs int
}

func (k *keyedMutex) Lock(key string) (unlock func()) {
	k.mu.Lock()
	if k.locks == nil {
		k.locks = make(map[string]*refMutex)
	}
	m, ok := k.locks[key]
	if !ok {
		m = &refMutex{}
		k.locks[key] = m
	}
	m.refs++
	k.mu.Unlock()

	m.Lock()
	return func() {
		m.Unlock()
		k.mu.Lock()
		m.refs--
		if m.refs == 0 {
			delete(k.locks, key)
		}
		k.mu.Unlock()
	}
}

var _ domainguide.Repository = (*GuideRepository)(nil)
var _ domainbooking.Repository = (*BookingRepository)(nil)
