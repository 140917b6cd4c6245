// Package booking holds the booking lifecycle commands and queries: order
// creation, payment confirmation, completion, administrative delete and
// role-scoped reads.
package booking

import (
	"strings"

	"github.com/google/uuid"

	"getmyguide/internal/app/outbox"
	"getmyguide/internal/domain/shared/errs"
	"getmyguide/internal/domain/shared/money"
	"getmyguide/internal/domain/user"
)

const (
	createAdvanceOrderKey   = "booking.order.advance"
	confirmBookingKey       = "booking.confirm"
	createRemainingOrderKey = "booking.order.remaining"
	confirmRemainingKey     = "booking.confirm_remaining"
	markCompletedKey        = "booking.complete"
	deleteBookingKey        = "booking.delete"
	listBookingsKey         = "booking.list"
	getBookingKey           = "booking.get"

	defaultCurrency = "INR"
)

// Gateway order notes binding an order to the phase it pays for.
const (
	notePurpose = "purpose"
	noteUser    = "user_id"
	noteBooking = "booking_id"
	noteTotal   = "total"

	purposeAdvance   = "advance"
	purposeRemaining = "remaining"
)

var (
	ErrSignatureMismatch = errs.Sentinel(errs.KindPaymentVerification, "booking: payment signature mismatch")
	ErrAmountMismatch    = errs.Sentinel(errs.KindPaymentVerification, "booking: paid order amount does not match the expected amount")
	ErrNotOwner          = errs.Sentinel(errs.KindAuthorization, "booking: only the booking owner may do this")
	ErrNotVisible        = errs.Sentinel(errs.KindAuthorization, "booking: not visible to this actor")
	ErrNotAllowed        = errs.Sentinel(errs.KindAuthorization, "booking: only an admin or the assigned guide may do this")
)

var (
	touristOnly = []user.Role{user.RoleTourist}
	adminOnly   = []user.Role{user.RoleAdmin}
	anyRole     = []user.Role{user.RoleTourist, user.RoleGuide, user.RoleAdmin}
)

func newReceipt() string {
	return "rcpt_" + strings.ReplaceAll(uuid.NewString(), "-", "")[:24]
}

func amountOf(total int64, currency string) (money.Money, error) {
	if strings.TrimSpace(currency) == "" {
		currency = defaultCurrency
	}
	return money.New(total, currency)
}

func encoderOr(enc outbox.EventEncoder) outbox.EventEncoder {
	if enc != nil {
		return enc
	}
	return outbox.JSONEventEncoder{}
}
