package booking

import (
	"context"
	"strings"
	"time"

	"getmyguide/internal/domain/guide"
	"getmyguide/internal/domain/pricing"
	"getmyguide/internal/domain/shared/daterange"
	"getmyguide/internal/domain/shared/errs"
	"getmyguide/internal/domain/shared/events"
	"getmyguide/internal/domain/shared/money"
	"getmyguide/internal/domain/user"
)

var (
	ErrInvalidState        = errs.Sentinel(errs.KindConflict, "booking: invalid state transition")
	ErrBookingNotFound     = errs.Sentinel(errs.KindNotFound, "booking: not found")
	ErrConcurrentUpdate    = errs.Sentinel(errs.KindConflict, "booking: concurrent update")
	ErrSameGuide           = errs.Sentinel(errs.KindConflict, "booking: substitute must differ from the current guide")
	ErrPaymentRefRequired  = errs.Sentinel(errs.KindValidation, "booking: order id and payment id are required")
	ErrOrderMismatch       = errs.Sentinel(errs.KindPaymentVerification, "booking: payment does not belong to the booking's order")
	ErrInvalidTravelers    = errs.Sentinel(errs.KindValidation, "booking: travelers count must be positive")
	ErrUserRequired        = errs.Sentinel(errs.KindValidation, "booking: user id is required")
	ErrGuideRequired       = errs.Sentinel(errs.KindValidation, "booking: guide id is required")
	ErrReminderAlreadySent = errs.Sentinel(errs.KindConflict, "booking: reminder already sent")
	ErrPaymentAlreadyUsed  = errs.Sentinel(errs.KindConflict, "booking: payment already confirmed another booking")
)

type ID string

// PaymentRef is the gateway evidence of one captured payment.
type PaymentRef struct {
	OrderID   string
	PaymentID string
	Signature string
}

func (p PaymentRef) Complete() bool {
	return strings.TrimSpace(p.OrderID) != "" && strings.TrimSpace(p.PaymentID) != ""
}

type Booking struct {
	ID              ID
	GuideID         guide.ID
	OriginalGuideID guide.ID
	UserID          user.ID
	UserEmail       string
	Range           daterange.DateRange
	Split           pricing.Split
	Status          Status
	PaymentStatus   PaymentStatus
	ReminderSent    bool
	CancelledBy     *user.Cancellation
	Advance         PaymentRef
	Remaining       PaymentRef
	RefundIDs       []string
	Location        string
	Travelers       int
	CreatedAt       time.Time
	UpdatedAt       time.Time
	Version         int64
	events.EventRecorder
}

// ListFilter narrows List. Empty fields match everything.
type ListFilter struct {
	UserID  user.ID
	GuideID guide.ID
	Status  Status
}

type Repository interface {
	ByID(ctx context.Context, id ID) (*Booking, error)
	// Save inserts or updates b. Updates succeed only when the stored
	// version equals b.Version, which is then incremented. Inserting a
	// booking whose advance order is already used fails with
	// ErrPaymentAlreadyUsed.
	Save(ctx context.Context, b *Booking) error
	Delete(ctx context.Context, id ID) error
	List(ctx context.Context, filter ListFilter) ([]*Booking, error)
	// DueReminders returns upcoming, advance-paid bookings starting on day
	// that have not been reminded yet.
	DueReminders(ctx context.Context, day time.Time) ([]*Booking, error)
}

type CreateParams struct {
	ID        ID
	GuideID   guide.ID
	UserID    user.ID
	UserEmail string
	Range     daterange.DateRange
	Split     pricing.Split
	Location  string
	Travelers int
	CreatedAt time.Time
}

// NewBooking starts a booking in PaymentPending.
func NewBooking(params CreateParams) (*Booking, error) {
	if strings.TrimSpace(string(params.UserID)) == "" {
		return nil, ErrUserRequired
	}
	if strings.TrimSpace(string(params.GuideID)) == "" {
		return nil, ErrGuideRequired
	}
	if err := params.Range.Validate(); err != nil {
		return nil, err
	}
	if err := params.Split.Validate(); err != nil {
		return nil, err
	}
	if params.Travelers <= 0 {
		return nil, ErrInvalidTravelers
	}
	now := params.CreatedAt.UTC()
	return &Booking{
		ID:        params.ID,
		GuideID:   params.GuideID,
		UserID:    params.UserID,
		UserEmail: strings.ToLower(strings.TrimSpace(params.UserEmail)),
		Range:     params.Range,
		Split:     params.Split,
		Status:    StatusPaymentPending,
		Location:  strings.TrimSpace(params.Location),
		Travelers: params.Travelers,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

// ConfirmAdvance records the verified advance payment and makes the booking Upcoming.
func (b *Booking) ConfirmAdvance(ref PaymentRef, now time.Time) error {
	if !ref.Complete() {
		return ErrPaymentRefRequired
	}
	if b.Status != StatusPaymentPending {
		return ErrInvalidState
	}
	b.Advance = ref
	b.Status = StatusUpcoming
	b.PaymentStatus = PaymentAdvancePaid
	b.touch(now)
	b.Record(BookingConfirmed{
		BookingID: b.ID,
		GuideID:   b.GuideID,
		UserID:    b.UserID,
		UserEmail: b.UserEmail,
		Range:     b.Range,
		Advance:   b.Split.Advance,
		Remaining: b.Split.Remaining,
		At:        b.UpdatedAt,
	})
	return nil
}

// AttachRemainingOrder stores the gateway order created for the balance.
func (b *Booking) AttachRemainingOrder(orderID string, now time.Time) error {
	if !b.awaitingBalance() {
		return ErrInvalidState
	}
	if strings.TrimSpace(orderID) == "" {
		return ErrPaymentRefRequired
	}
	if orderID == b.Advance.OrderID {
		return ErrOrderMismatch
	}
	b.Remaining = PaymentRef{OrderID: orderID}
	b.touch(now)
	return nil
}

// ConfirmRemaining records the verified balance payment. The payment must be
// for the order attached by AttachRemainingOrder.
func (b *Booking) ConfirmRemaining(ref PaymentRef, now time.Time) error {
	if !ref.Complete() {
		return ErrPaymentRefRequired
	}
	if !b.awaitingBalance() {
		return ErrInvalidState
	}
	if b.Remaining.OrderID == "" || b.Remaining.OrderID != ref.OrderID {
		return ErrOrderMismatch
	}
	b.Remaining = ref
	b.PaymentStatus = PaymentFullyPaid
	b.touch(now)
	b.Record(BookingFullyPaid{BookingID: b.ID, UserID: b.UserID, Amount: b.Split.Remaining, At: b.UpdatedAt})
	return nil
}

// PaymentOrders lists the gateway orders the booking has claimed.
func (b *Booking) PaymentOrders() []string {
	var out []string
	for _, id := range []string{b.Advance.OrderID, b.Remaining.OrderID} {
		if id != "" {
			out = append(out, id)
		}
	}
	return out
}

func (b *Booking) MarkCompleted(now time.Time) error {
	if b.Status != StatusUpcoming {
		return ErrInvalidState
	}
	b.Status = StatusCompleted
	b.touch(now)
	b.Record(BookingCompleted{BookingID: b.ID, GuideID: b.GuideID, At: b.UpdatedAt})
	return nil
}

// Cancel closes an upcoming booking whose payments have been refunded.
func (b *Booking) Cancel(by user.Cancellation, refundIDs []string, now time.Time) error {
	if !b.Status.CanTransitionTo(StatusCancelled) || !b.PaymentStatus.CanTransitionTo(PaymentRefunded) {
		return ErrInvalidState
	}
	refunded := b.RefundableAmount()
	by.At = now.UTC()
	b.Status = StatusCancelled
	b.PaymentStatus = PaymentRefunded
	b.CancelledBy = &by
	b.RefundIDs = append(b.RefundIDs, refundIDs...)
	b.touch(now)
	b.Record(BookingCancelled{
		BookingID:   b.ID,
		GuideID:     b.GuideID,
		UserID:      b.UserID,
		UserEmail:   b.UserEmail,
		Range:       b.Range,
		CancelledBy: by.Role,
		Reason:      by.Reason,
		Refunded:    refunded,
		At:          b.UpdatedAt,
	})
	return nil
}

// WithdrawGuide parks the booking until an admin assigns a substitute.
// Payments are left untouched.
func (b *Booking) WithdrawGuide(by user.Cancellation, now time.Time) error {
	if b.Status != StatusUpcoming {
		return ErrInvalidState
	}
	by.At = now.UTC()
	b.Status = StatusAwaitingSubstitute
	b.CancelledBy = &by
	b.touch(now)
	b.Record(GuideWithdrew{
		BookingID: b.ID,
		GuideID:   b.GuideID,
		UserID:    b.UserID,
		UserEmail: b.UserEmail,
		Range:     b.Range,
		Reason:    by.Reason,
		At:        b.UpdatedAt,
	})
	return nil
}

// AssignSubstitute moves the booking to next. The first guide ever
// replaced is kept in OriginalGuideID.
func (b *Booking) AssignSubstitute(next guide.ID, now time.Time) error {
	if b.Status != StatusUpcoming && b.Status != StatusAwaitingSubstitute {
		return ErrInvalidState
	}
	if next == "" {
		return ErrGuideRequired
	}
	if next == b.GuideID {
		return ErrSameGuide
	}
	previous := b.GuideID
	if b.OriginalGuideID == "" {
		b.OriginalGuideID = previous
	}
	b.GuideID = next
	b.Status = StatusUpcoming
	b.touch(now)
	b.Record(SubstituteAssigned{
		BookingID:     b.ID,
		PreviousGuide: previous,
		GuideID:       next,
		OriginalGuide: b.OriginalGuideID,
		UserID:        b.UserID,
		UserEmail:     b.UserEmail,
		Range:         b.Range,
		At:            b.UpdatedAt,
	})
	return nil
}

func (b *Booking) MarkReminderSent(now time.Time) error {
	if !b.awaitingBalance() {
		return ErrInvalidState
	}
	if b.ReminderSent {
		return ErrReminderAlreadySent
	}
	b.ReminderSent = true
	b.touch(now)
	b.Record(PaymentReminderSent{BookingID: b.ID, UserID: b.UserID, At: b.UpdatedAt})
	return nil
}

// MarkDeleted records the administrative removal of the booking.
func (b *Booking) MarkDeleted(actor user.Actor, now time.Time) {
	b.Record(BookingDeleted{BookingID: b.ID, GuideID: b.GuideID, ActorID: actor.ID, Status: b.Status, At: now.UTC()})
}

// HoldsClaim reports whether the booking's dates are claimed on its guide's ledger.
func (b *Booking) HoldsClaim() bool {
	return b.Status == StatusUpcoming
}

// AmountDue is the balance still owed by the tourist.
func (b *Booking) AmountDue() money.Money {
	if b.awaitingBalance() {
		return b.Split.Remaining
	}
	return money.Money{Amount: 0, Currency: b.Split.Total.Currency}
}

// RefundItem is one captured payment to give back.
type RefundItem struct {
	PaymentID string
	Amount    money.Money
}

// RefundPlan lists the captured payments a cancellation must refund.
func (b *Booking) RefundPlan() []RefundItem {
	var plan []RefundItem
	switch b.PaymentStatus {
	case PaymentAdvancePaid:
		plan = append(plan, RefundItem{PaymentID: b.Advance.PaymentID, Amount: b.Split.Advance})
	case PaymentFullyPaid:
		plan = append(plan,
			RefundItem{PaymentID: b.Advance.PaymentID, Amount: b.Split.Advance},
			RefundItem{PaymentID: b.Remaining.PaymentID, Amount: b.Split.Remaining},
		)
	}
	return plan
}

// RefundableAmount is the sum of RefundPlan.
func (b *Booking) RefundableAmount() money.Money {
	total := money.Money{Amount: 0, Currency: b.Split.Total.Currency}
	for _, item := range b.RefundPlan() {
		total.Amount += item.Amount.Amount
	}
	return total
}

func (b *Booking) IsOwner(actor user.Actor) bool {
	return actor.Role == user.RoleTourist && actor.ID == b.UserID
}

func (b *Booking) IsAssignedGuide(actor user.Actor) bool {
	return actor.Role == user.RoleGuide && string(actor.ID) == string(b.GuideID)
}

// VisibleTo applies role-scoped read access.
func (b *Booking) VisibleTo(actor user.Actor) bool {
	switch actor.Role {
	case user.RoleAdmin:
		return true
	case user.RoleTourist:
		return b.IsOwner(actor)
	case user.RoleGuide:
		return b.IsAssignedGuide(actor)
	default:
		return false
	}
}

// ReminderDue reports whether a balance reminder should go out for day.
func (b *Booking) ReminderDue(day time.Time) bool {
	return b.awaitingBalance() && !b.ReminderSent && b.Range.Start.Equal(daterange.Day(day))
}

func (b *Booking) Clone() *Booking {
	if b == nil {
		return nil
	}
	cp := *b
	cp.EventRecorder = events.EventRecorder{}
	if b.CancelledBy != nil {
		c := *b.CancelledBy
		cp.CancelledBy = &c
	}
	cp.RefundIDs = append([]string(nil), b.RefundIDs...)
	return &cp
}

// AwaitingBalance reports whether the remaining payment can be collected.
func (b *Booking) AwaitingBalance() bool {
	return b.awaitingBalance()
}

func (b *Booking) awaitingBalance() bool {
	return b.Status == StatusUpcoming && b.PaymentStatus == PaymentAdvancePaid
}

func (b *Booking) touch(now time.Time) {
	b.UpdatedAt = now.UTC()
}
