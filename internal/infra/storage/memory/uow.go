package memory

import (
	"context"
	"errors"

	"getmyguide/internal/app/uow"
	domainbooking "getmyguide/internal/domain/booking"
	domainguide "getmyguide/internal/domain/guide"
)

// Factory wires in-memory repositories into a unit-of-work boundary.
type Factory struct {
	GuidesRepo   domainguide.Repository
	BookingsRepo domainbooking.Repository
}

// ErrFactoryMisconfigured indicates missing repositories.
var ErrFactoryMisconfigured = errors.New("memory: unit of work factory misconfigured")

// Begin hands out a unit whose writes apply immediately. Rollback cannot
// undo them, so callers compensate through saga steps.
func (f Factory) Begin(ctx context.Context, opts uow.TxOptions) (uow.UnitOfWork, error) {
	if f.GuidesRepo == nil || f.BookingsRepo == nil {
		return nil, ErrFactoryMisconfigured
	}
	return &Unit{guides: f.GuidesRepo, bookings: f.BookingsRepo}, nil
}

type Unit struct {
	guides   domainguide.Repository
	bookings domainbooking.Repository
}

func (u *Unit) Guides() domainguide.Repository     { return u.guides }
func (u *Unit) Bookings() domainbooking.Repository { return u.bookings }
func (u *Unit) Atomic() bool                       { return false }
func (u *Unit) Commit(ctx context.Context) error   { return nil }
func (u *Unit) Rollback(ctx context.Context) error { return nil }

var _ uow.UoWFactory = Factory{}
