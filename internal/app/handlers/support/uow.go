package support

import (
	"context"
	"errors"

	"getmyguide/internal/app/uow"
)

// MaxUnitAttempts bounds how often RunInUnit restarts a unit after a
// retryable failure.
const MaxUnitAttempts = 3

// ErrCommitFailed wraps errors returned by Commit so callers can tell a
// failed commit from a failed step.
var ErrCommitFailed = errors.New("support: commit failed")

func BeginReadOnlyUnit(ctx context.Context, factory uow.UoWFactory) (uow.UnitOfWork, context.Context, func(), error) {
	unit, ok := uow.FromContext(ctx)
	if ok {
		return unit, ctx, nil, nil
	}
	if factory == nil {
		return nil, ctx, nil, uow.ErrUnitOfWorkMissing
	}
	newUnit, err := factory.Begin(ctx, uow.TxOptions{ReadOnly: true})
	if err != nil {
		return nil, ctx, nil, err
	}
	execCtx := uow.Bind(ctx, newUnit)
	cleanup := func() {
		_ = newUnit.Rollback(execCtx)
	}
	return newUnit, execCtx, cleanup, nil
}

// RunInUnit executes fn inside a fresh unit and commits it. When fn or the
// commit fails with uow.ErrRetryable the unit is rolled back and fn runs
// again, up to MaxUnitAttempts times. A unit already present in ctx is
// reused without commit or retry.
func RunInUnit(ctx context.Context, factory uow.UoWFactory, fn func(ctx context.Context, unit uow.UnitOfWork) error) error {
	if unit, ok := uow.FromContext(ctx); ok {
		return fn(ctx, unit)
	}
	if factory == nil {
		return uow.ErrUnitOfWorkMissing
	}
	var err error
	for attempt := 0; attempt < MaxUnitAttempts; attempt++ {
		err = runOnce(ctx, factory, fn)
		if err == nil || !errors.Is(err, uow.ErrRetryable) {
			return err
		}
	}
	return err
}

func runOnce(ctx context.Context, factory uow.UoWFactory, fn func(ctx context.Context, unit uow.UnitOfWork) error) error {
	unit, err := factory.Begin(ctx, uow.TxOptions{})
	if err != nil {
		return err
	}
	execCtx := uow.Bind(ctx, unit)
	committed := false
	defer func() {
		if !committed {
			_ = unit.Rollback(execCtx)
		}
	}()
	if err := fn(execCtx, unit); err != nil {
		return err
	}
	if err := unit.Commit(execCtx); err != nil {
		committed = true
		return errors.Join(ErrCommitFailed, err)
	}
	committed = true
	return nil
}
