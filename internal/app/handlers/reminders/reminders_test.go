package reminders_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"getmyguide/internal/app/handlers/reminders"
	"getmyguide/internal/app/policies"
	domainbooking "getmyguide/internal/domain/booking"
	domainguide "getmyguide/internal/domain/guide"
	"getmyguide/internal/domain/pricing"
	"getmyguide/internal/domain/shared/daterange"
	"getmyguide/internal/domain/shared/money"
	"getmyguide/internal/infra/storage/memory"
)

var now = time.Date(2026, 11, 9, 6, 30, 0, 0, time.UTC)

type fixture struct {
	bookings *memory.BookingRepository
	mailbox  *memory.Mailbox
	box      *memory.Outbox
	handler  *reminders.Handler
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	guides := memory.NewGuideRepository()
	g, err := domainguide.NewGuide(domainguide.CreateParams{ID: "g1", Name: "Meera"})
	require.NoError(t, err)
	require.NoError(t, guides.Save(context.Background(), g))

	f := &fixture{bookings: memory.NewBookingRepository(), mailbox: memory.NewMailbox(), box: memory.NewOutbox(nil)}
	f.handler = &reminders.Handler{
		UoWFactory: memory.Factory{GuidesRepo: guides, BookingsRepo: f.bookings},
		Notifier:   f.mailbox,
		Outbox:     f.box,
	}
	return f
}

func (f *fixture) seed(t *testing.T, id, email, start string, fullyPaid bool) {
	t.Helper()
	r, err := daterange.Parse(start, start)
	require.NoError(t, err)
	split, err := pricing.SplitTotal(money.Must(10000, "INR"))
	require.NoError(t, err)
	b, err := domainbooking.NewBooking(domainbooking.CreateParams{
		ID: domainbooking.ID(id), GuideID: "g1", UserID: "u1", UserEmail: email,
		Range: r, Split: split, Travelers: 1, CreatedAt: now,
	})
	require.NoError(t, err)
	require.NoError(t, b.ConfirmAdvance(domainbooking.PaymentRef{OrderID: "order_" + id, PaymentID: "pay_" + id}, now))
	if fullyPaid {
		require.NoError(t, b.AttachRemainingOrder("order_rem_"+id, now))
		require.NoError(t, b.ConfirmRemaining(domainbooking.PaymentRef{OrderID: "order_rem_" + id, PaymentID: "pay_rem_" + id}, now))
	}
	b.PullEvents()
	require.NoError(t, f.bookings.Save(context.Background(), b))
}

func TestRunRemindsOnlyTomorrowsUnpaidBookings(t *testing.T) {
	f := newFixture(t)
	f.seed(t, "b1", "a@example.com", "2026-11-10", false)
	f.seed(t, "b2", "b@example.com", "2026-11-11", false)
	f.seed(t, "b3", "c@example.com", "2026-11-10", true)

	report, err := f.handler.Run(context.Background(), now)
	require.NoError(t, err)
	assert.Equal(t, reminders.Report{Day: "2026-11-10", Due: 1, Sent: 1}, report)

	sent := f.mailbox.Sent()
	require.Len(t, sent, 1)
	assert.Equal(t, "a@example.com", sent[0].To)
	assert.Contains(t, sent[0].HTMLBody, "INR 80.00")
	assert.Contains(t, sent[0].HTMLBody, "Meera")
	assert.Contains(t, f.box.Names(), domainbooking.EventReminderSent)
}

func TestRunIsIdempotentOnceFlagged(t *testing.T) {
	f := newFixture(t)
	f.seed(t, "b1", "a@example.com", "2026-11-10", false)

	for i := 0; i < 3; i++ {
		_, err := f.handler.Run(context.Background(), now.Add(time.Duration(i)*time.Hour))
		require.NoError(t, err)
	}
	assert.Len(t, f.mailbox.Sent(), 1)

	b, err := f.bookings.ByID(context.Background(), "b1")
	require.NoError(t, err)
	assert.True(t, b.ReminderSent)
}

func TestRunIsolatesDeliveryFailures(t *testing.T) {
	f := newFixture(t)
	f.seed(t, "b1", "broken@example.com", "2026-11-10", false)
	f.seed(t, "b2", "ok@example.com", "2026-11-10", false)
	f.mailbox.Fail = func(msg policies.Message) error {
		if msg.To == "broken@example.com" {
			return errors.New("mailbox unavailable")
		}
		return nil
	}

	report, err := f.handler.Run(context.Background(), now)
	require.NoError(t, err)
	assert.Equal(t, 2, report.Due)
	assert.Equal(t, 1, report.Sent)
	assert.Equal(t, 1, report.Failed)

	failed, err := f.bookings.ByID(context.Background(), "b1")
	require.NoError(t, err)
	assert.False(t, failed.ReminderSent)

	// the next run retries only the failed one
	f.mailbox.Fail = nil
	report, err = f.handler.Run(context.Background(), now.Add(time.Hour))
	require.NoError(t, err)
	assert.Equal(t, reminders.Report{Day: "2026-11-10", Due: 1, Sent: 1}, report)
}

func TestRunSkipsBookingsWithoutEmail(t *testing.T) {
	f := newFixture(t)
	f.seed(t, "b1", "", "2026-11-10", false)

	report, err := f.handler.Run(context.Background(), now)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Skipped)
	assert.Empty(t, f.mailbox.Sent())
}

func TestJobAdaptsRun(t *testing.T) {
	f := newFixture(t)
	f.seed(t, "b1", "a@example.com", "2026-11-10", false)
	require.NoError(t, f.handler.Job()(context.Background(), now))
	assert.Len(t, f.mailbox.Sent(), 1)
}
