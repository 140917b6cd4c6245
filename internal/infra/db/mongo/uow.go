package mongo

import (
	"context"
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"

	"getmyguide/internal/app/uow"
	"getmyguide/internal/domain/booking"
	"getmyguide/internal/domain/guide"
)

// Factory wires Mongo transactions into the generic UnitOfWork interface.
type Factory struct {
	DB *mongo.Database

	GuidesRepo   guide.Repository
	BookingsRepo booking.Repository
}

var ErrUnitOfWorkNotConfigured = errors.New("mongo: unit of work factory missing database")

// Begin starts a session. Read-write units also start a transaction;
// read-only units read from the primary through the session only.
func (f Factory) Begin(ctx context.Context, opts uow.TxOptions) (uow.UnitOfWork, error) {
	if f.DB == nil {
		return nil, ErrUnitOfWorkNotConfigured
	}
	session, err := f.DB.Client().StartSession()
	if err != nil {
		return nil, err
	}
	unit := &Unit{session: session, guides: f.GuidesRepo, bookings: f.BookingsRepo, readOnly: opts.ReadOnly}
	if opts.ReadOnly {
		return unit, nil
	}
	txnOpts := options.Transaction().
		SetReadConcern(f.DB.ReadConcern()).
		SetWriteConcern(f.DB.WriteConcern()).
		SetReadPreference(readpref.Primary())
	if err := session.StartTransaction(txnOpts); err != nil {
		session.EndSession(ctx)
		return nil, err
	}
	return unit, nil
}

type Unit struct {
	session  mongo.Session
	readOnly bool

	guides   guide.Repository
	bookings booking.Repository
}

func (u *Unit) Guides() guide.Repository {
	return u.guides
}

func (u *Unit) Bookings() booking.Repository {
	return u.bookings
}

// Atomic is true: every write made through the unit is discarded on Rollback.
func (u *Unit) Atomic() bool {
	return true
}

func (u *Unit) Commit(ctx context.Context) error {
	defer u.session.EndSession(ctx)
	if u.readOnly {
		return nil
	}
	if err := u.session.CommitTransaction(ctx); err != nil {
		return classify("commit", err)
	}
	return nil
}

func (u *Unit) Rollback(ctx context.Context) error {
	defer u.session.EndSession(ctx)
	if u.readOnly {
		return nil
	}
	return u.session.AbortTransaction(ctx)
}

// InjectContext ensures Mongo session is available in context for downstream repos.
func (u *Unit) InjectContext(ctx context.Context) context.Context {
	return mongo.NewSessionContext(ctx, u.session)
}

// writeConflictCode is returned when two transactions touch the same document.
const writeConflictCode = 112

// classify maps transient transaction failures to uow.ErrRetryable and
// leaves everything else untouched.
func classify(op string, err error) error {
	if err == nil {
		return nil
	}
	if isTransient(err) {
		return fmt.Errorf("mongo: %s: %w: %w", op, uow.ErrRetryable, err)
	}
	return err
}

func isTransient(err error) bool {
	var labeled mongo.LabeledError
	if errors.As(err, &labeled) {
		if labeled.HasErrorLabel("TransientTransactionError") || labeled.HasErrorLabel("UnknownTransactionCommitResult") {
			return true
		}
	}
	var server mongo.ServerError
	if errors.As(err, &server) && server.HasErrorCode(writeConflictCode) {
		return true
	}
	return false
}
