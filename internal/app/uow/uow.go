package uow

import (
	"context"
	"errors"

	"getmyguide/internal/domain/booking"
	"getmyguide/internal/domain/guide"
)

// ErrRetryable marks failures caused by contention inside a unit that are
// safe to retry from the start of the unit.
var ErrRetryable = errors.New("uow: transient failure, retry unit")

// UnitOfWork groups guide ledger and booking writes.
type UnitOfWork interface {
	Guides() guide.Repository
	Bookings() booking.Repository

	// Atomic reports whether Rollback discards every write made through the
	// unit. Non-atomic units apply writes immediately and callers must
	// compensate on failure.
	Atomic() bool

	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
}

type UoWFactory interface {
	Begin(ctx context.Context, opts TxOptions) (UnitOfWork, error)
}

type TxOptions struct {
	ReadOnly bool
}
