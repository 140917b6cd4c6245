package booking

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
	"getmyguide/internal/domain/user"
)

type MarkCompletedCommand struct {
	Actor     user.Actor
	BookingID string `validate:"required"`
}

func (MarkCompletedCommand) Key() string             { return markCompletedKey }
func (c MarkCompletedCommand) Principal() user.Actor { return c.Actor }
func (c MarkCompletedCommand) AllowedRoles() []user.Role {
	return []user.Role{user.RoleGuide, user.RoleAdmin}
}

// MarkCompletedHandler closes an Upcoming booking. It runs inside the
// transaction opened by the command pipeline when there is one.
type MarkCompletedHandler struct {
	UoWFactory uow.UoWFactory
	Outbox     outbox.Outbox
	Encoder    outbox.EventEncoder
	Now        func() time.Time
}

func (h *MarkCompletedHandler) Handle(ctx context.Context, cmd MarkCompletedCommand) (*dto.Booking, error) {
	var out dto.Booking
	err := handlersupport.RunInUnit(ctx, h.UoWFactory, func(ctx context.Context, unit uow.UnitOfWork) error {
		b, err := unit.Bookings().ByID(ctx, domainbooking.ID(cmd.BookingID))
		if err != nil {
			return err
		}
		if !cmd.Actor.Is(user.RoleAdmin) && !b.IsAssignedGuide(cmd.Actor) {
			return ErrNotAllowed
		}
		if err := b.MarkCompleted(handlersupport.Clock(h.Now)); err != nil {
			return err
		}
		if err := unit.Bookings().Save(ctx, b); err != nil {
			return err
		}
		out = dto.MapBooking(b)
		return outbox.RecordPending(ctx, h.Outbox, encoderOr(h.Encoder), b)
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

type DeleteBookingCommand struct {
	Actor     user.Actor
	BookingID string `validate:"required"`
}

func (DeleteBookingCommand) Key() string                 { return deleteBookingKey }
func (c DeleteBookingCommand) Principal() user.Actor     { return c.Actor }
func (c DeleteBookingCommand) AllowedRoles() []user.Role { return adminOnly }
func (c DeleteBookingCommand) ManagesUnit() bool         { return true }

type DeleteBookingResult struct {
	BookingID      string `json:"booking_id"`
	ReleasedDates  bool   `json:"released_dates"`
	PreviousStatus string `json:"previous_status"`
}

// DeleteBookingHandler removes a booking for good, giving back any ledger
// claim it still holds.
type DeleteBookingHandler struct {
	UoWFactory uow.UoWFactory
	Outbox     outbox.Outbox
	Encoder    outbox.EventEncoder
	Alerts     policies.AlertSink
	Logger     *slog.Logger
	Now        func() time.Time
}

func (h *DeleteBookingHandler) Handle(ctx context.Context, cmd DeleteBookingCommand) (*DeleteBookingResult, error) {
	var result DeleteBookingResult
	err := handlersupport.RunInUnit(ctx, h.UoWFactory, func(ctx context.Context, unit uow.UnitOfWork) error {
		b, err := unit.Bookings().ByID(ctx, domainbooking.ID(cmd.BookingID))
		if err != nil {
			return err
		}
		holds := b.HoldsClaim()
		result = DeleteBookingResult{BookingID: string(b.ID), ReleasedDates: holds, PreviousStatus: string(b.Status)}
		b.MarkDeleted(cmd.Actor, handlersupport.Clock(h.Now))

		steps := []saga.Step{}
		if holds {
			steps = append(steps, saga.Step{
				Name: "release_dates",
				Do: func(ctx context.Context) error {
					return unit.Guides().Release(ctx, b.GuideID, b.Range)
				},
				Undo: func(ctx context.Context) error {
					return unit.Guides().Reserve(ctx, b.GuideID, b.Range)
				},
			})
		}
		steps = append(steps, saga.Step{
			Name: "delete_booking",
			Do: func(ctx context.Context) error {
				if err := unit.Bookings().Delete(ctx, b.ID); err != nil {
					return err
				}
				return outbox.RecordPending(ctx, h.Outbox, encoderOr(h.Encoder), b)
			},
		})
		return saga.Saga{Name: "delete_booking", SkipCompensation: unit.Atomic(), Steps: steps}.Run(ctx)
	})
	if err != nil {
		return nil, handlersupport.ReportIfInconsistent(ctx, h.Alerts, h.Logger, "booking.delete", cmd.BookingID, err)
	}
	if h.Logger != nil {
		h.Logger.InfoContext(ctx, "booking deleted", "booking_id", result.BookingID, "actor_id", cmd.Actor.ID, "released_dates", result.ReleasedDates)
	}
	return &result, nil
}

var _ commands.Handler[MarkCompletedCommand, *dto.Booking] = (*MarkCompletedHandler)(nil)
var _ commands.Handler[DeleteBookingCommand, *DeleteBookingResult] = (*DeleteBookingHandler)(nil)
