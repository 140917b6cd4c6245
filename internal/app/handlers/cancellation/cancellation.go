// Package cancellation coordinates the transitions that touch a booking and
// one or two guide ledgers: cancel with refund, guide withdrawal and
// substitute assignment.
package cancellation

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"getmyguide/internal/app/commands"
	"getmyguide/internal/app/dto"
	handlersupport "getmyguide/internal/app/handlers/support"
	"getmyguide/internal/app/outbox"
	"getmyguide/internal/app/policies"
	"getmyguide/internal/app/saga"
	"getmyguide/internal/app/uow"
	domainbooking "getmyguide/internal/domain/booking"
	"getmyguide/internal/domain/guide"
	"getmyguide/internal/domain/shared/errs"
	"getmyguide/internal/domain/user"
)

const (
	cancelBookingKey    = "booking.cancel"
	assignSubstituteKey = "booking.assign_substitute"
)

var (
	ErrNotOwner    = errs.Sentinel(errs.KindAuthorization, "cancellation: only the owner, the assigned guide or an admin may cancel")
	ErrNothingPaid = errs.Sentinel(errs.KindConflict, "cancellation: booking has no captured payment to refund")
)

type CancelBookingCommand struct {
	Actor     user.Actor
	BookingID string `validate:"required"`
	Reason    string `validate:"max=500"`
}

var anyRole = []user.Role{user.RoleTourist, user.RoleGuide, user.RoleAdmin}

func (CancelBookingCommand) Key() string                 { return cancelBookingKey }
func (c CancelBookingCommand) Principal() user.Actor     { return c.Actor }
func (c CancelBookingCommand) AllowedRoles() []user.Role { return anyRole }
func (c CancelBookingCommand) ManagesUnit() bool         { return true }

// Coordinator applies cancellations. Refunds run before any local write;
// a local write failing after money moved is reported as a consistency
// error and raised to operators.
type Coordinator struct {
	UoWFactory  uow.UoWFactory
	Payments    policies.PaymentsPort
	Outbox      outbox.Outbox
	Encoder     outbox.EventEncoder
	Alerts      policies.AlertSink
	Logger      *slog.Logger
	Now         func() time.Time
	RefundSpeed policies.RefundSpeed
}

func (c *Coordinator) Handle(ctx context.Context, cmd CancelBookingCommand) (*dto.Booking, error) {
	b, err := c.load(ctx, cmd.BookingID)
	if err != nil {
		return nil, err
	}
	by := user.Cancellation{ActorID: cmd.Actor.ID, Role: cmd.Actor.Role, Reason: strings.TrimSpace(cmd.Reason)}
	switch {
	case cmd.Actor.Is(user.RoleGuide):
		if !b.IsAssignedGuide(cmd.Actor) {
			return nil, ErrNotOwner
		}
		return c.cancelByGuide(ctx, b, by)
	case cmd.Actor.Is(user.RoleAdmin), b.IsOwner(cmd.Actor):
		return c.cancelByUserOrAdmin(ctx, b, by)
	default:
		return nil, ErrNotOwner
	}
}

func (c *Coordinator) cancelByUserOrAdmin(ctx context.Context, b *domainbooking.Booking, by user.Cancellation) (*dto.Booking, error) {
	const op = "booking.cancel"
	if b.Status != domainbooking.StatusUpcoming {
		return nil, domainbooking.ErrInvalidState
	}
	plan := b.RefundPlan()
	if len(plan) == 0 {
		return nil, ErrNothingPaid
	}

	refundIDs := make([]string, 0, len(plan))
	for i, item := range plan {
		refund, err := c.Payments.Refund(ctx, policies.RefundRequest{
			PaymentID: item.PaymentID,
			Amount:    item.Amount,
			Speed:     c.speed(),
			Notes:     map[string]string{"booking_id": string(b.ID), "reason": by.Reason},
		})
		if err != nil {
			if i == 0 {
				return nil, err
			}
			return nil, handlersupport.Inconsistent(ctx, c.Alerts, c.Logger, op, string(b.ID), err, map[string]string{
				"refund_ids":     strings.Join(refundIDs, ","),
				"failed_payment": item.PaymentID,
			})
		}
		refundIDs = append(refundIDs, refund.ID)
	}

	var updated *domainbooking.Booking
	err := handlersupport.RunInUnit(ctx, c.UoWFactory, func(ctx context.Context, unit uow.UnitOfWork) error {
		current, err := unit.Bookings().ByID(ctx, b.ID)
		if err != nil {
			return err
		}
		if err := current.Cancel(by, refundIDs, handlersupport.Clock(c.Now)); err != nil {
			return err
		}
		updated = current
		return saga.Saga{
			Name:             "cancel_booking",
			SkipCompensation: unit.Atomic(),
			Steps: []saga.Step{
				releaseStep(unit, current.GuideID, current),
				saveStep(unit, c.Outbox, c.Encoder, current),
			},
		}.Run(ctx)
	})
	if err != nil {
		return nil, handlersupport.Inconsistent(ctx, c.Alerts, c.Logger, op, string(b.ID), err, map[string]string{
			"refund_ids": strings.Join(refundIDs, ","),
			"guide_id":   string(b.GuideID),
			"range":      b.Range.String(),
		})
	}
	c.log(ctx, "booking cancelled", updated, "refund_ids", refundIDs)
	out := dto.MapBooking(updated)
	return &out, nil
}

func (c *Coordinator) cancelByGuide(ctx context.Context, b *domainbooking.Booking, by user.Cancellation) (*dto.Booking, error) {
	if b.Status != domainbooking.StatusUpcoming {
		return nil, domainbooking.ErrInvalidState
	}
	var updated *domainbooking.Booking
	err := handlersupport.RunInUnit(ctx, c.UoWFactory, func(ctx context.Context, unit uow.UnitOfWork) error {
		current, err := unit.Bookings().ByID(ctx, b.ID)
		if err != nil {
			return err
		}
		withdrawn := current.GuideID
		if err := current.WithdrawGuide(by, handlersupport.Clock(c.Now)); err != nil {
			return err
		}
		updated = current
		return saga.Saga{
			Name:             "guide_withdraw",
			SkipCompensation: unit.Atomic(),
			Steps: []saga.Step{
				releaseStep(unit, withdrawn, current),
				saveStep(unit, c.Outbox, c.Encoder, current),
			},
		}.Run(ctx)
	})
	if err != nil {
		return nil, handlersupport.ReportIfInconsistent(ctx, c.Alerts, c.Logger, "booking.guide_withdraw", string(b.ID), err)
	}
	c.log(ctx, "guide withdrew from booking", updated)
	out := dto.MapBooking(updated)
	return &out, nil
}

func (c *Coordinator) load(ctx context.Context, id string) (*domainbooking.Booking, error) {
	unit, execCtx, cleanup, err := handlersupport.BeginReadOnlyUnit(ctx, c.UoWFactory)
	if err != nil {
		return nil, err
	}
	if cleanup != nil {
		defer cleanup()
	}
	return unit.Bookings().ByID(execCtx, domainbooking.ID(id))
}

func (c *Coordinator) speed() policies.RefundSpeed {
	if c.RefundSpeed == "" {
		return policies.RefundNormal
	}
	return c.RefundSpeed
}

func (c *Coordinator) log(ctx context.Context, msg string, b *domainbooking.Booking, attrs ...any) {
	if c.Logger == nil {
		return
	}
	attrs = append([]any{"booking_id", b.ID, "guide_id", b.GuideID, "status", b.Status}, attrs...)
	c.Logger.InfoContext(ctx, msg, attrs...)
}

func releaseStep(unit uow.UnitOfWork, id guide.ID, b *domainbooking.Booking) saga.Step {
	return saga.Step{
		Name: "release_dates",
		Do: func(ctx context.Context) error {
			return unit.Guides().Release(ctx, id, b.Range)
		},
		Undo: func(ctx context.Context) error {
			return unit.Guides().Reserve(ctx, id, b.Range)
		},
	}
}

func reserveStep(unit uow.UnitOfWork, id guide.ID, b *domainbooking.Booking) saga.Step {
	return saga.Step{
		Name: "reserve_dates",
		Do: func(ctx context.Context) error {
			return unit.Guides().Reserve(ctx, id, b.Range)
		},
		Undo: func(ctx context.Context) error {
			return unit.Guides().Release(ctx, id, b.Range)
		},
	}
}

func saveStep(unit uow.UnitOfWork, box outbox.Outbox, enc outbox.EventEncoder, b *domainbooking.Booking) saga.Step {
	return saga.Step{
		Name: "save_booking",
		Do: func(ctx context.Context) error {
			if err := unit.Bookings().Save(ctx, b); err != nil {
				return err
			}
			return outbox.RecordPending(ctx, box, enc, b)
		},
	}
}

var _ commands.Handler[CancelBookingCommand, *dto.Booking] = (*Coordinator)(nil)
