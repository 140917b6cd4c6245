// Package notifications turns booking events into transactional email for
// tourists and guides. Delivery is best-effort and never affects booking
// state.
package notifications

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	handlersupport "getmyguide/internal/app/handlers/support"
	"getmyguide/internal/app/outbox"
	"getmyguide/internal/app/policies"
	"getmyguide/internal/app/uow"
	domainbooking "getmyguide/internal/domain/booking"
	"getmyguide/internal/domain/guide"
	"getmyguide/internal/domain/shared/daterange"
	"getmyguide/internal/domain/shared/money"
)

type Handler struct {
	UoWFactory uow.UoWFactory
	Notifier   policies.Notifier
	Logger     *slog.Logger
}

// HandleRecord adapts Handle to outbox records.
func (h *Handler) HandleRecord(ctx context.Context, rec outbox.EventRecord) error {
	return h.Handle(ctx, rec.Name, rec.Payload)
}

// Handle decodes one event and sends the matching messages. Events with
// no mail attached are ignored. Only malformed payloads are returned as
// errors; delivery failures are logged.
func (h *Handler) Handle(ctx context.Context, name string, payload []byte) error {
	msgs, err := h.compose(ctx, name, payload)
	if err != nil {
		return err
	}
	for _, msg := range msgs {
		if msg.To == "" {
			continue
		}
		if err := h.Notifier.Send(ctx, msg); err != nil {
			h.logger().WarnContext(ctx, "notification delivery failed", "event", name, "subject", msg.Subject, "error", err)
			continue
		}
		h.logger().DebugContext(ctx, "notification sent", "event", name, "subject", msg.Subject)
	}
	return nil
}

type mail struct {
	BookingID   domainbooking.ID
	GuideName   string
	Range       daterange.DateRange
	Advance     money.Money
	Remaining   money.Money
	Amount      money.Money
	AmountDue   money.Money
	Refunded    money.Money
	CancelledBy string
}

func (h *Handler) compose(ctx context.Context, name string, payload []byte) ([]policies.Message, error) {
	switch name {
	case domainbooking.EventConfirmed:
		var ev domainbooking.BookingConfirmed
		if err := decode(name, payload, &ev); err != nil {
			return nil, err
		}
		g := h.guide(ctx, ev.GuideID)
		data := mail{BookingID: ev.BookingID, GuideName: g.Name, Range: ev.Range, Advance: ev.Advance, Remaining: ev.Remaining}
		return h.messages(
			h.message(ev.UserEmail, "Your booking is confirmed", "confirmed", data),
			h.message(g.Email, "New booking", "guide_assigned", data),
		)
	case domainbooking.EventFullyPaid:
		var ev domainbooking.BookingFullyPaid
		if err := decode(name, payload, &ev); err != nil {
			return nil, err
		}
		email := h.bookingEmail(ctx, ev.BookingID)
		return h.messages(h.message(email, "Payment received", "fully_paid", mail{BookingID: ev.BookingID, Amount: ev.Amount}))
	case domainbooking.EventCancelled:
		var ev domainbooking.BookingCancelled
		if err := decode(name, payload, &ev); err != nil {
			return nil, err
		}
		g := h.guide(ctx, ev.GuideID)
		data := mail{BookingID: ev.BookingID, Range: ev.Range, Refunded: ev.Refunded, CancelledBy: string(ev.CancelledBy)}
		return h.messages(
			h.message(ev.UserEmail, "Your booking was cancelled", "cancelled", data),
			h.message(g.Email, "Booking cancelled", "guide_released", data),
		)
	case domainbooking.EventGuideWithdrew:
		var ev domainbooking.GuideWithdrew
		if err := decode(name, payload, &ev); err != nil {
			return nil, err
		}
		return h.messages(h.message(ev.UserEmail, "Your guide is unavailable", "withdrew", mail{BookingID: ev.BookingID, Range: ev.Range}))
	case domainbooking.EventSubstituteAssigned:
		var ev domainbooking.SubstituteAssigned
		if err := decode(name, payload, &ev); err != nil {
			return nil, err
		}
		g := h.guide(ctx, ev.GuideID)
		data := mail{BookingID: ev.BookingID, GuideName: g.Name, Range: ev.Range}
		return h.messages(
			h.message(ev.UserEmail, "You have a new guide", "substitute", data),
			h.message(g.Email, "New booking", "guide_assigned", data),
		)
	case domainbooking.EventCompleted:
		var ev domainbooking.BookingCompleted
		if err := decode(name, payload, &ev); err != nil {
			return nil, err
		}
		email := h.bookingEmail(ctx, ev.BookingID)
		return h.messages(h.message(email, "Thanks for touring with us", "completed", mail{BookingID: ev.BookingID}))
	default:
		return nil, nil
	}
}

// ReminderMessage is the balance reminder for b, sent by the reminder job.
func ReminderMessage(b *domainbooking.Booking, guideName string) (policies.Message, error) {
	body, err := render("reminder", mail{BookingID: b.ID, GuideName: guideName, Range: b.Range, AmountDue: b.AmountDue()})
	if err != nil {
		return policies.Message{}, err
	}
	return policies.Message{To: b.UserEmail, Subject: "Balance due for your tour tomorrow", HTMLBody: body}, nil
}

type draft struct {
	msg policies.Message
	err error
}

func (h *Handler) message(to, subject, tmpl string, data mail) draft {
	body, err := render(tmpl, data)
	return draft{msg: policies.Message{To: to, Subject: subject, HTMLBody: body}, err: err}
}

func (h *Handler) messages(drafts ...draft) ([]policies.Message, error) {
	out := make([]policies.Message, 0, len(drafts))
	var errList []error
	for _, d := range drafts {
		if d.err != nil {
			errList = append(errList, d.err)
			continue
		}
		out = append(out, d.msg)
	}
	return out, errors.Join(errList...)
}

// guide returns the guide's profile or an empty one when it cannot be read.
func (h *Handler) guide(ctx context.Context, id guide.ID) guide.Guide {
	unit, execCtx, cleanup, err := handlersupport.BeginReadOnlyUnit(ctx, h.UoWFactory)
	if err != nil {
		h.logger().WarnContext(ctx, "guide lookup failed", "guide_id", id, "error", err)
		return guide.Guide{ID: id}
	}
	if cleanup != nil {
		defer cleanup()
	}
	g, err := unit.Guides().ByID(execCtx, id)
	if err != nil {
		h.logger().WarnContext(ctx, "guide lookup failed", "guide_id", id, "error", err)
		return guide.Guide{ID: id}
	}
	return *g
}

func (h *Handler) bookingEmail(ctx context.Context, id domainbooking.ID) string {
	unit, execCtx, cleanup, err := handlersupport.BeginReadOnlyUnit(ctx, h.UoWFactory)
	if err != nil {
		return ""
	}
	if cleanup != nil {
		defer cleanup()
	}
	b, err := unit.Bookings().ByID(execCtx, id)
	if err != nil {
		h.logger().WarnContext(ctx, "booking lookup failed", "booking_id", id, "error", err)
		return ""
	}
	return b.UserEmail
}

func (h *Handler) logger() *slog.Logger {
	if h.Logger != nil {
		return h.Logger
	}
	return slog.Default()
}

func decode(name string, payload []byte, out any) error {
	if err := json.Unmarshal(payload, out); err != nil {
		return fmt.Errorf("notifications: decode %s: %w", name, err)
	}
	return nil
}
