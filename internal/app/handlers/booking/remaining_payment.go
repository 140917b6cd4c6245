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
	"getmyguide/internal/app/uow"
	domainbooking "getmyguide/internal/domain/booking"
	"getmyguide/internal/domain/user"
)

type CreateRemainingOrderCommand struct {
	Actor     user.Actor
	BookingID string `validate:"required"`
}

func (CreateRemainingOrderCommand) Key() string                 { return createRemainingOrderKey }
func (c CreateRemainingOrderCommand) Principal() user.Actor     { return c.Actor }
func (c CreateRemainingOrderCommand) AllowedRoles() []user.Role { return touristOnly }
func (c CreateRemainingOrderCommand) ManagesUnit() bool         { return true }

// CreateRemainingOrderHandler opens the gateway order for the stored
// remaining amount and attaches it to the booking.
type CreateRemainingOrderHandler struct {
	UoWFactory uow.UoWFactory
	Payments   policies.PaymentsPort
	KeyID      string
	Now        func() time.Time
}

func (h *CreateRemainingOrderHandler) Handle(ctx context.Context, cmd CreateRemainingOrderCommand) (*dto.OrderHandle, error) {
	b, err := loadOwned(ctx, h.UoWFactory, cmd.BookingID, cmd.Actor)
	if err != nil {
		return nil, err
	}
	if !b.AwaitingBalance() {
		return nil, domainbooking.ErrInvalidState
	}
	receipt := newReceipt()
	order, err := h.Payments.CreateOrder(ctx, policies.OrderRequest{
		Amount:  b.Split.Remaining,
		Receipt: receipt,
		Notes: map[string]string{
			notePurpose: purposeRemaining,
			noteBooking: string(b.ID),
		},
	})
	if err != nil {
		return nil, err
	}
	err = handlersupport.RunInUnit(ctx, h.UoWFactory, func(ctx context.Context, unit uow.UnitOfWork) error {
		current, err := unit.Bookings().ByID(ctx, b.ID)
		if err != nil {
			return err
		}
		if err := current.AttachRemainingOrder(order.ID, handlersupport.Clock(h.Now)); err != nil {
			return err
		}
		return unit.Bookings().Save(ctx, current)
	})
	if err != nil {
		return nil, err
	}
	return &dto.OrderHandle{
		OrderID:   order.ID,
		Amount:    dto.MapMoney(b.Split.Remaining),
		Receipt:   receipt,
		Split:     dto.MapSplit(b.Split),
		KeyID:     h.KeyID,
		Purpose:   purposeRemaining,
		BookingID: string(b.ID),
	}, nil
}

type ConfirmRemainingPaymentCommand struct {
	Actor     user.Actor
	BookingID string `validate:"required"`
	OrderID   string `validate:"required"`
	PaymentID string `validate:"required"`
	Signature string `validate:"required"`
}

func (ConfirmRemainingPaymentCommand) Key() string                 { return confirmRemainingKey }
func (c ConfirmRemainingPaymentCommand) Principal() user.Actor     { return c.Actor }
func (c ConfirmRemainingPaymentCommand) AllowedRoles() []user.Role { return touristOnly }
func (c ConfirmRemainingPaymentCommand) ManagesUnit() bool         { return true }

// ConfirmRemainingPaymentHandler records a verified balance payment.
type ConfirmRemainingPaymentHandler struct {
	UoWFactory uow.UoWFactory
	Payments   policies.PaymentsPort
	Outbox     outbox.Outbox
	Encoder    outbox.EventEncoder
	Logger     *slog.Logger
	Now        func() time.Time
}

func (h *ConfirmRemainingPaymentHandler) Handle(ctx context.Context, cmd ConfirmRemainingPaymentCommand) (*dto.Booking, error) {
	b, err := loadOwned(ctx, h.UoWFactory, cmd.BookingID, cmd.Actor)
	if err != nil {
		return nil, err
	}
	if !b.AwaitingBalance() {
		return nil, domainbooking.ErrInvalidState
	}
	if b.Remaining.OrderID == "" || b.Remaining.OrderID != cmd.OrderID {
		return nil, domainbooking.ErrOrderMismatch
	}
	valid, err := h.Payments.VerifySignature(cmd.OrderID, cmd.PaymentID, cmd.Signature)
	if err != nil {
		return nil, err
	}
	if !valid {
		return nil, ErrSignatureMismatch
	}
	order, err := h.Payments.FetchOrder(ctx, cmd.OrderID)
	if err != nil {
		return nil, err
	}
	if order.Notes[notePurpose] != purposeRemaining || order.Notes[noteBooking] != string(b.ID) {
		return nil, domainbooking.ErrOrderMismatch
	}
	if order.Amount != b.Split.Remaining {
		return nil, ErrAmountMismatch
	}

	var updated *domainbooking.Booking
	err = handlersupport.RunInUnit(ctx, h.UoWFactory, func(ctx context.Context, unit uow.UnitOfWork) error {
		current, err := unit.Bookings().ByID(ctx, b.ID)
		if err != nil {
			return err
		}
		ref := domainbooking.PaymentRef{OrderID: cmd.OrderID, PaymentID: cmd.PaymentID, Signature: cmd.Signature}
		if err := current.ConfirmRemaining(ref, handlersupport.Clock(h.Now)); err != nil {
			return err
		}
		if err := unit.Bookings().Save(ctx, current); err != nil {
			return err
		}
		updated = current
		return outbox.RecordPending(ctx, h.Outbox, encoderOr(h.Encoder), current)
	})
	if err != nil {
		return nil, err
	}
	if h.Logger != nil {
		h.Logger.InfoContext(ctx, "booking fully paid", "booking_id", updated.ID)
	}
	out := dto.MapBooking(updated)
	return &out, nil
}

func loadOwned(ctx context.Context, factory uow.UoWFactory, id string, actor user.Actor) (*domainbooking.Booking, error) {
	unit, execCtx, cleanup, err := handlersupport.BeginReadOnlyUnit(ctx, factory)
	if err != nil {
		return nil, err
	}
	if cleanup != nil {
		defer cleanup()
	}
	b, err := unit.Bookings().ByID(execCtx, domainbooking.ID(id))
	if err != nil {
		return nil, err
	}
	if !b.IsOwner(actor) {
		return nil, ErrNotOwner
	}
	return b, nil
}

var _ commands.Handler[CreateRemainingOrderCommand, *dto.OrderHandle] = (*CreateRemainingOrderHandler)(nil)
var _ commands.Handler[ConfirmRemainingPaymentCommand, *dto.Booking] = (*ConfirmRemainingPaymentHandler)(nil)
