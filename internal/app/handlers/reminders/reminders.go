// Package reminders sends the balance reminder for tours starting tomorrow.
package reminders

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"getmyguide/internal/app/handlers/notifications"
	handlersupport "getmyguide/internal/app/handlers/support"
	"getmyguide/internal/app/outbox"
	"getmyguide/internal/app/policies"
	"getmyguide/internal/app/schedule"
	"getmyguide/internal/app/uow"
	domainbooking "getmyguide/internal/domain/booking"
	"getmyguide/internal/domain/guide"
	"getmyguide/internal/domain/shared/daterange"
)

// Report summarises one run.
type Report struct {
	Day     string `json:"day"`
	Due     int    `json:"due"`
	Sent    int    `json:"sent"`
	Failed  int    `json:"failed"`
	Skipped int    `json:"skipped"`
}

type Handler struct {
	UoWFactory uow.UoWFactory
	Notifier   policies.Notifier
	Outbox     outbox.Outbox
	Encoder    outbox.EventEncoder
	Logger     *slog.Logger
}

// Run reminds every booking starting the day after now that still owes its
// balance. A failed delivery leaves the booking unflagged for the next run
// and does not stop the others.
func (h *Handler) Run(ctx context.Context, now time.Time) (Report, error) {
	day := daterange.Day(now).AddDate(0, 0, 1)
	report := Report{Day: day.Format(daterange.DayLayout)}

	due, err := h.due(ctx, day)
	if err != nil {
		return report, err
	}
	report.Due = len(due)
	for _, item := range due {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		b := item.booking
		switch sent, err := h.remind(ctx, b, item.guideName, now); {
		case err != nil:
			report.Failed++
			h.logger().WarnContext(ctx, "payment reminder failed", "booking_id", b.ID, "error", err)
		case !sent:
			report.Skipped++
		default:
			report.Sent++
		}
	}
	h.logger().InfoContext(ctx, "payment reminders processed",
		"day", report.Day, "due", report.Due, "sent", report.Sent, "failed", report.Failed, "skipped", report.Skipped)
	if err := h.flush(ctx); err != nil {
		h.logger().ErrorContext(ctx, "reminder outbox flush failed", "error", err)
	}
	return report, nil
}

// Job adapts Run to the scheduler.
func (h *Handler) Job() schedule.Job {
	return func(ctx context.Context, now time.Time) error {
		_, err := h.Run(ctx, now)
		return err
	}
}

type dueItem struct {
	booking   *domainbooking.Booking
	guideName string
}

func (h *Handler) due(ctx context.Context, day time.Time) ([]dueItem, error) {
	unit, execCtx, cleanup, err := handlersupport.BeginReadOnlyUnit(ctx, h.UoWFactory)
	if err != nil {
		return nil, err
	}
	if cleanup != nil {
		defer cleanup()
	}
	bookings, err := unit.Bookings().DueReminders(execCtx, day)
	if err != nil {
		return nil, err
	}
	names := make(map[guide.ID]string)
	items := make([]dueItem, 0, len(bookings))
	for _, b := range bookings {
		name, ok := names[b.GuideID]
		if !ok {
			if g, err := unit.Guides().ByID(execCtx, b.GuideID); err == nil {
				name = g.Name
			}
			names[b.GuideID] = name
		}
		items = append(items, dueItem{booking: b, guideName: name})
	}
	return items, nil
}

func (h *Handler) remind(ctx context.Context, b *domainbooking.Booking, guideName string, now time.Time) (bool, error) {
	if b.UserEmail == "" {
		h.logger().WarnContext(ctx, "payment reminder skipped, no email on booking", "booking_id", b.ID)
		return false, nil
	}
	msg, err := notifications.ReminderMessage(b, guideName)
	if err != nil {
		return false, err
	}
	if err := h.Notifier.Send(ctx, msg); err != nil {
		return false, err
	}

	err = handlersupport.RunInUnit(ctx, h.UoWFactory, func(ctx context.Context, unit uow.UnitOfWork) error {
		current, err := unit.Bookings().ByID(ctx, b.ID)
		if err != nil {
			return err
		}
		if err := current.MarkReminderSent(now); err != nil {
			return err
		}
		if err := unit.Bookings().Save(ctx, current); err != nil {
			return err
		}
		return outbox.RecordPending(ctx, h.Outbox, h.Encoder, current)
	})
	if errors.Is(err, domainbooking.ErrReminderAlreadySent) {
		return false, nil
	}
	if err != nil {
		h.logger().ErrorContext(ctx, "reminder delivered but flag not stored", "booking_id", b.ID, "error", err)
		return false, err
	}
	return true, nil
}

func (h *Handler) flush(ctx context.Context) error {
	if h.Outbox == nil {
		return nil
	}
	return h.Outbox.Flush(ctx)
}

func (h *Handler) logger() *slog.Logger {
	if h.Logger != nil {
		return h.Logger
	}
	return slog.Default()
}
