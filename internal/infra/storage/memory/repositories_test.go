package memory

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"getmyguide/internal/app/middleware"
	domainbooking "getmyguide/internal/domain/booking"
	domainguide "getmyguide/internal/domain/guide"
	"getmyguide/internal/domain/pricing"
	"getmyguide/internal/domain/shared/daterange"
	"getmyguide/internal/domain/shared/errs"
	"getmyguide/internal/domain/shared/money"
)

func seedGuide(t *testing.T, repo *GuideRepository, id string) {
	t.Helper()
	g, err := domainguide.NewGuide(domainguide.CreateParams{ID: domainguide.ID(id), Name: "Asha", Email: "asha@example.com"})
	require.NoError(t, err)
	require.NoError(t, repo.Save(context.Background(), g))
}

func mustRange(t *testing.T, start, end string) daterange.DateRange {
	t.Helper()
	r, err := daterange.Parse(start, end)
	require.NoError(t, err)
	return r
}

func TestGuideReserveIsAllOrNothing(t *testing.T) {
	ctx := context.Background()
	repo := NewGuideRepository()
	seedGuide(t, repo, "g1")

	require.NoError(t, repo.Reserve(ctx, "g1", mustRange(t, "2026-03-10", "2026-03-12")))
	err := repo.Reserve(ctx, "g1", mustRange(t, "2026-03-12", "2026-03-14"))
	assert.ErrorIs(t, err, domainguide.ErrDatesUnavailable)

	g, err := repo.ByID(ctx, "g1")
	require.NoError(t, err)
	assert.Len(t, g.UnavailableDates, 3)

	ok, err := repo.IsAvailable(ctx, "g1", mustRange(t, "2026-03-13", "2026-03-14"))
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestGuideReleaseIgnoresUnclaimedDays(t *testing.T) {
	ctx := context.Background()
	repo := NewGuideRepository()
	seedGuide(t, repo, "g1")
	require.NoError(t, repo.Reserve(ctx, "g1", mustRange(t, "2026-03-10", "2026-03-11")))

	require.NoError(t, repo.Release(ctx, "g1", mustRange(t, "2026-03-11", "2026-03-20")))
	g, err := repo.ByID(ctx, "g1")
	require.NoError(t, err)
	require.Len(t, g.UnavailableDates, 1)
	assert.Equal(t, "2026-03-10", g.UnavailableDates[0].Format(daterange.DayLayout))
}

func TestGuideSaveKeepsClaims(t *testing.T) {
	ctx := context.Background()
	repo := NewGuideRepository()
	seedGuide(t, repo, "g1")
	require.NoError(t, repo.Reserve(ctx, "g1", mustRange(t, "2026-03-10", "2026-03-10")))

	g, err := domainguide.NewGuide(domainguide.CreateParams{ID: "g1", Name: "Asha R"})
	require.NoError(t, err)
	require.NoError(t, repo.Save(ctx, g))

	stored, err := repo.ByID(ctx, "g1")
	require.NoError(t, err)
	assert.Equal(t, "Asha R", stored.Name)
	assert.Len(t, stored.UnavailableDates, 1)
}

func TestGuideUnknownReturnsNotFound(t *testing.T) {
	repo := NewGuideRepository()
	err := repo.Reserve(context.Background(), "missing", mustRange(t, "2026-03-10", "2026-03-10"))
	assert.Equal(t, errs.KindNotFound, errs.KindOf(err))
}

func TestConcurrentOverlappingReservesHaveOneWinner(t *testing.T) {
	ctx := context.Background()
	repo := NewGuideRepository()
	seedGuide(t, repo, "g1")

	ranges := []daterange.DateRange{
		mustRange(t, "2026-05-01", "2026-05-05"),
		mustRange(t, "2026-05-03", "2026-05-07"),
		mustRange(t, "2026-05-05", "2026-05-05"),
		mustRange(t, "2026-04-28", "2026-05-01"),
	}
	const rounds = 8
	var wins atomic.Int32
	var wg sync.WaitGroup
	start := make(chan struct{})
	for i := 0; i < rounds; i++ {
		for _, r := range ranges {
			wg.Add(1)
			go func(r daterange.DateRange) {
				defer wg.Done()
				<-start
				if err := repo.Reserve(ctx, "g1", r); err == nil {
					wins.Add(1)
				}
			}(r)
		}
	}
	close(start)
	wg.Wait()

	g, err := repo.ByID(ctx, "g1")
	require.NoError(t, err)
	seen := map[time.Time]int{}
	for _, d := range g.UnavailableDates {
		seen[d]++
	}
	for d, n := range seen {
		assert.Equalf(t, 1, n, "day %s claimed %d times", d.Format(daterange.DayLayout), n)
	}
	// no three of the ranges are pairwise disjoint
	assert.GreaterOrEqual(t, wins.Load(), int32(1))
	assert.LessOrEqual(t, wins.Load(), int32(2))
}

func newBooking(t *testing.T, id, order string) *domainbooking.Booking {
	t.Helper()
	split, err := pricing.SplitTotal(money.Must(10000, "INR"))
	require.NoError(t, err)
	b, err := domainbooking.NewBooking(domainbooking.CreateParams{
		ID:        domainbooking.ID(id),
		GuideID:   "g1",
		UserID:    "u1",
		Range:     mustRange(t, "2026-05-01", "2026-05-02"),
		Split:     split,
		Travelers: 1,
		CreatedAt: time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC),
	})
	require.NoError(t, err)
	require.NoError(t, b.ConfirmAdvance(domainbooking.PaymentRef{OrderID: order, PaymentID: "pay_" + id, Signature: "sig"}, time.Now()))
	b.PullEvents()
	return b
}

func TestBookingSaveChecksVersion(t *testing.T) {
	ctx := context.Background()
	repo := NewBookingRepository()
	b := newBooking(t, "b1", "order_1")
	require.NoError(t, repo.Save(ctx, b))
	assert.Equal(t, int64(1), b.Version)

	stale, err := repo.ByID(ctx, "b1")
	require.NoError(t, err)
	require.NoError(t, repo.Save(ctx, b))

	err = repo.Save(ctx, stale)
	assert.ErrorIs(t, err, domainbooking.ErrConcurrentUpdate)
}

func TestBookingSaveRejectsReusedAdvanceOrder(t *testing.T) {
	ctx := context.Background()
	repo := NewBookingRepository()
	require.NoError(t, repo.Save(ctx, newBooking(t, "b1", "order_1")))

	err := repo.Save(ctx, newBooking(t, "b2", "order_1"))
	assert.ErrorIs(t, err, domainbooking.ErrPaymentAlreadyUsed)
	_, err = repo.ByID(ctx, "b2")
	assert.ErrorIs(t, err, domainbooking.ErrBookingNotFound)
}

func TestBookingSaveRejectsOrderClaimedByAnotherPhase(t *testing.T) {
	ctx := context.Background()
	repo := NewBookingRepository()
	now := time.Now()
	b1 := newBooking(t, "b1", "order_1")
	require.NoError(t, b1.AttachRemainingOrder("order_rem", now))
	require.NoError(t, b1.ConfirmRemaining(domainbooking.PaymentRef{OrderID: "order_rem", PaymentID: "pay_rem", Signature: "sig"}, now))
	require.NoError(t, repo.Save(ctx, b1))

	err := repo.Save(ctx, newBooking(t, "b2", "order_rem"))
	assert.ErrorIs(t, err, domainbooking.ErrPaymentAlreadyUsed)

	b3 := newBooking(t, "b3", "order_3")
	require.NoError(t, repo.Save(ctx, b3))
	require.NoError(t, b3.AttachRemainingOrder("order_1", now))
	assert.ErrorIs(t, repo.Save(ctx, b3), domainbooking.ErrPaymentAlreadyUsed)

	require.NoError(t, repo.Delete(ctx, "b1"))
	assert.NoError(t, repo.Save(ctx, newBooking(t, "b4", "order_rem")))
}

func TestBookingListAndDueReminders(t *testing.T) {
	ctx := context.Background()
	repo := NewBookingRepository()
	require.NoError(t, repo.Save(ctx, newBooking(t, "b1", "order_1")))
	other := newBooking(t, "b2", "order_2")
	other.UserID = "u2"
	require.NoError(t, repo.Save(ctx, other))

	mine, err := repo.List(ctx, domainbooking.ListFilter{UserID: "u1"})
	require.NoError(t, err)
	require.Len(t, mine, 1)
	assert.Equal(t, domainbooking.ID("b1"), mine[0].ID)

	due, err := repo.DueReminders(ctx, time.Date(2026, 5, 1, 7, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.Len(t, due, 2)

	require.NoError(t, repo.Delete(ctx, "b1"))
	assert.ErrorIs(t, repo.Delete(ctx, "b1"), domainbooking.ErrBookingNotFound)
}

func TestIdempotencyStoreExpiresRecords(t *testing.T) {
	store := NewIdempotencyStore(time.Minute)
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	store.now = func() time.Time { return now }
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, middleware.IdempotencyRecord{Key: "k", OccurredAt: now}))
	_, found, err := store.Get(ctx, "k")
	require.NoError(t, err)
	assert.True(t, found)

	now = now.Add(2 * time.Minute)
	_, found, err = store.Get(ctx, "k")
	require.NoError(t, err)
	assert.False(t, found)
}

func TestLockerExcludesSecondHolder(t *testing.T) {
	ctx := context.Background()
	l := NewLocker()
	release, ok, err := l.Acquire(ctx, "schedule:reminders", time.Minute)
	require.NoError(t, err)
	require.True(t, ok)

	_, ok, err = l.Acquire(ctx, "schedule:reminders", time.Minute)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, release(ctx))
	_, ok, err = l.Acquire(ctx, "schedule:reminders", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)
}
