package booking

import (
	"context"
	"log/slog"
	"strconv"
	"time"

	"github.com/google/uuid"

	"getmyguide/internal/app/commands"
	"getmyguide/internal/app/dto"
	handlersupport "getmyguide/internal/app/handlers/support"
	"getmyguide/internal/app/middleware"
	"getmyguide/internal/app/outbox"
	"getmyguide/internal/app/policies"
	"getmyguide/internal/app/saga"
	"getmyguide/internal/app/uow"
	domainbooking "getmyguide/internal/domain/booking"
	"getmyguide/internal/domain/guide"
	"getmyguide/internal/domain/pricing"
	"getmyguide/internal/domain/shared/daterange"
	"getmyguide/internal/domain/shared/errs"
	"getmyguide/internal/domain/shared/money"
	"getmyguide/internal/domain/user"
)

type ConfirmBookingCommand struct {
	Actor           user.Actor
	UserEmail       string `validate:"omitempty,email"`
	OrderID         string `validate:"required"`
	PaymentID       string `validate:"required"`
	Signature       string `validate:"required"`
	GuideID         string `validate:"required"`
	StartDate       string `validate:"required"`
	EndDate         string `validate:"required"`
	TotalPrice      int64  `validate:"gt=0"`
	Currency        string `validate:"omitempty,len=3"`
	Location        string `validate:"max=200"`
	Travelers       int    `validate:"gte=0,lte=50"`
	IdempotencyKeyV string
}

func (ConfirmBookingCommand) Key() string                 { return confirmBookingKey }
func (c ConfirmBookingCommand) Principal() user.Actor     { return c.Actor }
func (c ConfirmBookingCommand) AllowedRoles() []user.Role { return touristOnly }
func (c ConfirmBookingCommand) ManagesUnit() bool         { return true }
func (c ConfirmBookingCommand) IdempotencyKey() string    { return c.IdempotencyKeyV }
func (c ConfirmBookingCommand) ResultPrototype() any      { return &dto.Booking{} }

// ConfirmBookingHandler turns a verified advance payment into an Upcoming
// booking. The ledger claim and the booking insert commit together; a
// conflicting claim fails the whole confirmation.
type ConfirmBookingHandler struct {
	UoWFactory uow.UoWFactory
	Payments   policies.PaymentsPort
	Outbox     outbox.Outbox
	Encoder    outbox.EventEncoder
	Alerts     policies.AlertSink
	Logger     *slog.Logger
	Now        func() time.Time
	NewID      func() string
}

func (h *ConfirmBookingHandler) Handle(ctx context.Context, cmd ConfirmBookingCommand) (*dto.Booking, error) {
	const op = "booking.confirm"
	dr, err := daterange.Parse(cmd.StartDate, cmd.EndDate)
	if err != nil {
		return nil, err
	}
	total, err := amountOf(cmd.TotalPrice, cmd.Currency)
	if err != nil {
		return nil, err
	}
	split, err := pricing.SplitTotal(total)
	if err != nil {
		return nil, err
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
	if err := checkAdvanceOrder(order, cmd.Actor, total); err != nil {
		return nil, err
	}
	if order.Amount != split.Advance {
		return nil, ErrAmountMismatch
	}

	travelers := cmd.Travelers
	if travelers == 0 {
		travelers = 1
	}
	now := handlersupport.Clock(h.Now)
	b, err := domainbooking.NewBooking(domainbooking.CreateParams{
		ID:        domainbooking.ID(h.newID()),
		GuideID:   guide.ID(cmd.GuideID),
		UserID:    cmd.Actor.ID,
		UserEmail: cmd.UserEmail,
		Range:     dr,
		Split:     split,
		Location:  cmd.Location,
		Travelers: travelers,
		CreatedAt: now,
	})
	if err != nil {
		return nil, err
	}
	ref := domainbooking.PaymentRef{OrderID: cmd.OrderID, PaymentID: cmd.PaymentID, Signature: cmd.Signature}
	if err := b.ConfirmAdvance(ref, now); err != nil {
		return nil, err
	}
	evs := b.PullEvents()

	err = handlersupport.RunInUnit(ctx, h.UoWFactory, func(ctx context.Context, unit uow.UnitOfWork) error {
		// a retried unit inserts from scratch
		b.Version = 0
		return saga.Saga{
			Name:             "confirm_booking",
			SkipCompensation: unit.Atomic(),
			Steps: []saga.Step{
				{
					Name: "reserve_dates",
					Do: func(ctx context.Context) error {
						return unit.Guides().Reserve(ctx, b.GuideID, b.Range)
					},
					Undo: func(ctx context.Context) error {
						return unit.Guides().Release(ctx, b.GuideID, b.Range)
					},
				},
				{
					Name: "save_booking",
					Do: func(ctx context.Context) error {
						if err := unit.Bookings().Save(ctx, b); err != nil {
							return err
						}
						return outbox.RecordDomainEvents(ctx, h.Outbox, encoderOr(h.Encoder), evs)
					},
				},
			},
		}.Run(ctx)
	})
	if err != nil {
		if errs.Is(err, errs.KindConsistency) {
			return nil, handlersupport.Inconsistent(ctx, h.Alerts, h.Logger, op, string(b.ID), err, map[string]string{
				"guide_id":   string(b.GuideID),
				"order_id":   cmd.OrderID,
				"payment_id": cmd.PaymentID,
				"range":      b.Range.String(),
			})
		}
		return nil, err
	}
	if h.Logger != nil {
		h.Logger.InfoContext(ctx, "booking confirmed", "booking_id", b.ID, "guide_id", b.GuideID, "range", b.Range.String())
	}
	out := dto.MapBooking(b)
	return &out, nil
}

// checkAdvanceOrder rejects orders opened for another phase or another
// tourist, and totals other than the one the order was quoted for.
func checkAdvanceOrder(order policies.Order, actor user.Actor, total money.Money) error {
	if order.Notes[notePurpose] != purposeAdvance || order.Notes[noteUser] != string(actor.ID) {
		return domainbooking.ErrOrderMismatch
	}
	if order.Notes[noteTotal] != strconv.FormatInt(total.Amount, 10) {
		return ErrAmountMismatch
	}
	return nil
}

func (h *ConfirmBookingHandler) newID() string {
	if h.NewID != nil {
		return h.NewID()
	}
	return uuid.NewString()
}

var _ commands.Handler[ConfirmBookingCommand, *dto.Booking] = (*ConfirmBookingHandler)(nil)
var _ middleware.IdempotentCommand = ConfirmBookingCommand{}
