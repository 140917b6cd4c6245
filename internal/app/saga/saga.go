// Package saga runs ordered steps that span more than one aggregate and
// undoes completed steps in reverse when a later one fails.
package saga

import (
	"context"
	"errors"
	"fmt"

	"getmyguide/internal/domain/shared/errs"
)

type Step struct {
	Name string
	Do   func(ctx context.Context) error
	// Undo reverts Do. Nil means the step has nothing to revert.
	Undo func(ctx context.Context) error
}

type Saga struct {
	Name  string
	Steps []Step

	// SkipCompensation leaves reverting to the caller, for sagas running
	// inside a unit that rolls back atomically.
	SkipCompensation bool
}

// CompensationError reports a failed step whose undo chain also failed.
// The system is then partially committed.
type CompensationError struct {
	Saga       string
	FailedStep string
	Cause      error
	Undo       map[string]error
}

func (e *CompensationError) Error() string {
	return fmt.Sprintf("saga %s: step %s failed (%v) and %d compensation(s) failed", e.Saga, e.FailedStep, e.Cause, len(e.Undo))
}

func (e *CompensationError) Unwrap() error {
	return e.Cause
}

// Run executes every step in order. On failure it undoes the completed
// steps newest first and returns the step error. If any undo fails the
// result is a consistency error wrapping *CompensationError.
func (s Saga) Run(ctx context.Context) error {
	done := make([]Step, 0, len(s.Steps))
	for _, step := range s.Steps {
		if err := step.Do(ctx); err != nil {
			stepErr := fmt.Errorf("%s: %w", step.Name, err)
			if s.SkipCompensation {
				return stepErr
			}
			if undoErrs := compensate(ctx, done); len(undoErrs) > 0 {
				return errs.E(errs.KindConsistency, "saga."+s.Name, &CompensationError{
					Saga:       s.Name,
					FailedStep: step.Name,
					Cause:      err,
					Undo:       undoErrs,
				})
			}
			return stepErr
		}
		done = append(done, step)
	}
	return nil
}

func compensate(ctx context.Context, done []Step) map[string]error {
	failures := map[string]error{}
	for i := len(done) - 1; i >= 0; i-- {
		step := done[i]
		if step.Undo == nil {
			continue
		}
		if err := step.Undo(context.WithoutCancel(ctx)); err != nil {
			failures[step.Name] = err
		}
	}
	if len(failures) == 0 {
		return nil
	}
	return failures
}

// AsCompensationError extracts the compensation report from err.
func AsCompensationError(err error) (*CompensationError, bool) {
	var ce *CompensationError
	if errors.As(err, &ce) {
		return ce, true
	}
	return nil, false
}
