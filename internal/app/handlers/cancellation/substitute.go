package cancellation

import (
	"context"
	"log/slog"
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
	"getmyguide/internal/domain/user"
)

type AssignSubstituteCommand struct {
	Actor      user.Actor
	BookingID  string `validate:"required"`
	NewGuideID string `validate:"required"`
}

func (AssignSubstituteCommand) Key() string                 { return assignSubstituteKey }
func (c AssignSubstituteCommand) Principal() user.Actor     { return c.Actor }
func (c AssignSubstituteCommand) AllowedRoles() []user.Role { return []user.Role{user.RoleAdmin} }
func (c AssignSubstituteCommand) ManagesUnit() bool         { return true }

// AssignSubstituteHandler hands a booking to another guide. The previous
// guide's claim, if any, is released and the new guide's range is claimed
// in the same unit.
type AssignSubstituteHandler struct {
	UoWFactory uow.UoWFactory
	Outbox     outbox.Outbox
	Encoder    outbox.EventEncoder
	Alerts     policies.AlertSink
	Logger     *slog.Logger
	Now        func() time.Time
}

func (h *AssignSubstituteHandler) Handle(ctx context.Context, cmd AssignSubstituteCommand) (*dto.Booking, error) {
	next := guide.ID(cmd.NewGuideID)
	var updated *domainbooking.Booking
	err := handlersupport.RunInUnit(ctx, h.UoWFactory, func(ctx context.Context, unit uow.UnitOfWork) error {
		b, err := unit.Bookings().ByID(ctx, domainbooking.ID(cmd.BookingID))
		if err != nil {
			return err
		}
		if b.Status != domainbooking.StatusUpcoming && b.Status != domainbooking.StatusAwaitingSubstitute {
			return domainbooking.ErrInvalidState
		}
		if b.GuideID == next {
			return domainbooking.ErrSameGuide
		}
		free, err := unit.Guides().IsAvailable(ctx, next, b.Range)
		if err != nil {
			return err
		}
		if !free {
			return guide.ErrDatesUnavailable
		}

		previous := b.GuideID
		held := b.HoldsClaim()
		if err := b.AssignSubstitute(next, handlersupport.Clock(h.Now)); err != nil {
			return err
		}
		var steps []saga.Step
		if held {
			steps = append(steps, releaseStep(unit, previous, b))
		}
		steps = append(steps, reserveStep(unit, next, b), saveStep(unit, h.Outbox, h.Encoder, b))
		updated = b
		return saga.Saga{Name: "assign_substitute", SkipCompensation: unit.Atomic(), Steps: steps}.Run(ctx)
	})
	if err != nil {
		return nil, handlersupport.ReportIfInconsistent(ctx, h.Alerts, h.Logger, "booking.assign_substitute", cmd.BookingID, err)
	}
	if h.Logger != nil {
		h.Logger.InfoContext(ctx, "substitute guide assigned", "booking_id", updated.ID, "guide_id", updated.GuideID, "original_guide_id", updated.OriginalGuideID)
	}
	out := dto.MapBooking(updated)
	return &out, nil
}

var _ commands.Handler[AssignSubstituteCommand, *dto.Booking] = (*AssignSubstituteHandler)(nil)
