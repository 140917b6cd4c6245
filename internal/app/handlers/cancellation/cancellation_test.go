package cancellation_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"getmyguide/internal/app/handlers/cancellation"
	"getmyguide/internal/app/policies"
	domainbooking "getmyguide/internal/domain/booking"
	domainguide "getmyguide/internal/domain/guide"
	"getmyguide/internal/domain/pricing"
	"getmyguide/internal/domain/shared/daterange"
	"getmyguide/internal/domain/shared/errs"
	"getmyguide/internal/domain/shared/money"
	"getmyguide/internal/domain/user"
	"getmyguide/internal/infra/storage/memory"
)

var (
	tourist  = user.Actor{ID: "u1", Role: user.RoleTourist}
	stranger = user.Actor{ID: "u9", Role: user.RoleTourist}
	guideG1  = user.Actor{ID: "g1", Role: user.RoleGuide}
	guideG2  = user.Actor{ID: "g2", Role: user.RoleGuide}
	admin    = user.Actor{ID: "a1", Role: user.RoleAdmin}
)

// flakyBookings fails Save while failSave is set.
type flakyBookings struct {
	*memory.BookingRepository
	failSave error
}

func (f *flakyBookings) Save(ctx context.Context, b *domainbooking.Booking) error {
	if f.failSave != nil {
		return f.failSave
	}
	return f.BookingRepository.Save(ctx, b)
}

type fixture struct {
	guides   *memory.GuideRepository
	bookings *flakyBookings
	factory  memory.Factory
	gateway  *memory.SandboxGateway
	box      *memory.Outbox
	alerts   *memory.AlertRecorder
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		guides:   memory.NewGuideRepository(),
		bookings: &flakyBookings{BookingRepository: memory.NewBookingRepository()},
		gateway:  memory.NewSandboxGateway("secret"),
		box:      memory.NewOutbox(nil),
		alerts:   &memory.AlertRecorder{},
	}
	f.factory = memory.Factory{GuidesRepo: f.guides, BookingsRepo: f.bookings}
	for _, id := range []string{"g1", "g2", "g3"} {
		g, err := domainguide.NewGuide(domainguide.CreateParams{ID: domainguide.ID(id), Name: "Guide " + id})
		require.NoError(t, err)
		require.NoError(t, f.guides.Save(context.Background(), g))
	}
	return f
}

func (f *fixture) coordinator() *cancellation.Coordinator {
	return &cancellation.Coordinator{
		UoWFactory: f.factory,
		Payments:   f.gateway,
		Outbox:     f.box,
		Alerts:     f.alerts,
	}
}

func (f *fixture) substitutes() *cancellation.AssignSubstituteHandler {
	return &cancellation.AssignSubstituteHandler{UoWFactory: f.factory, Outbox: f.box, Alerts: f.alerts}
}

func mustRange(t *testing.T, start, end string) daterange.DateRange {
	t.Helper()
	r, err := daterange.Parse(start, end)
	require.NoError(t, err)
	return r
}

// seed stores an upcoming booking on g1 and claims its dates.
func (f *fixture) seed(t *testing.T, id string, fullyPaid bool) *domainbooking.Booking {
	t.Helper()
	ctx := context.Background()
	split, err := pricing.SplitTotal(money.Must(10000, "INR"))
	require.NoError(t, err)
	b, err := domainbooking.NewBooking(domainbooking.CreateParams{
		ID:        domainbooking.ID(id),
		GuideID:   "g1",
		UserID:    tourist.ID,
		Range:     mustRange(t, "2026-11-10", "2026-11-12"),
		Split:     split,
		Travelers: 2,
		CreatedAt: time.Now(),
	})
	require.NoError(t, err)
	require.NoError(t, b.ConfirmAdvance(domainbooking.PaymentRef{OrderID: "order_" + id, PaymentID: "pay_adv_" + id, Signature: "s"}, time.Now()))
	if fullyPaid {
		require.NoError(t, b.AttachRemainingOrder("order_rem_"+id, time.Now()))
		require.NoError(t, b.ConfirmRemaining(domainbooking.PaymentRef{OrderID: "order_rem_" + id, PaymentID: "pay_rem_" + id, Signature: "s"}, time.Now()))
	}
	b.PullEvents()
	require.NoError(t, f.guides.Reserve(ctx, b.GuideID, b.Range))
	require.NoError(t, f.bookings.Save(ctx, b))
	return b
}

func (f *fixture) available(t *testing.T, guideID string, r daterange.DateRange) bool {
	t.Helper()
	ok, err := f.guides.IsAvailable(context.Background(), domainguide.ID(guideID), r)
	require.NoError(t, err)
	return ok
}

func (f *fixture) stored(t *testing.T, id domainbooking.ID) *domainbooking.Booking {
	t.Helper()
	b, err := f.bookings.ByID(context.Background(), id)
	require.NoError(t, err)
	return b
}

func TestUserCancelRefundsAndReleases(t *testing.T) {
	f := newFixture(t)
	b := f.seed(t, "b1", false)

	out, err := f.coordinator().Handle(context.Background(), cancellation.CancelBookingCommand{Actor: tourist, BookingID: "b1", Reason: "plans changed"})
	require.NoError(t, err)
	assert.Equal(t, string(domainbooking.StatusCancelled), out.Status)
	assert.Equal(t, string(domainbooking.PaymentRefunded), out.PaymentStatus)
	require.NotNil(t, out.CancelledBy)
	assert.Equal(t, "tourist", out.CancelledBy.Role)
	assert.Len(t, out.RefundIDs, 1)

	refunds := f.gateway.Refunds()
	require.Len(t, refunds, 1)
	assert.Equal(t, "pay_adv_b1", refunds[0].PaymentID)
	assert.Equal(t, int64(2000), refunds[0].Amount.Amount)
	assert.Equal(t, policies.RefundNormal, refunds[0].Speed)
	assert.True(t, f.available(t, "g1", b.Range))
	assert.Contains(t, f.box.Names(), domainbooking.EventCancelled)
}

func TestAdminCancelRefundsBothPayments(t *testing.T) {
	f := newFixture(t)
	f.seed(t, "b1", true)

	out, err := f.coordinator().Handle(context.Background(), cancellation.CancelBookingCommand{Actor: admin, BookingID: "b1"})
	require.NoError(t, err)
	assert.Equal(t, "admin", out.CancelledBy.Role)

	refunds := f.gateway.Refunds()
	require.Len(t, refunds, 2)
	assert.Equal(t, int64(2000), refunds[0].Amount.Amount)
	assert.Equal(t, int64(8000), refunds[1].Amount.Amount)
}

func TestGatewayFailureLeavesStateUntouched(t *testing.T) {
	f := newFixture(t)
	b := f.seed(t, "b1", false)
	f.gateway.FailRefund = func(int, policies.RefundRequest) error { return errors.New("upstream timeout") }

	_, err := f.coordinator().Handle(context.Background(), cancellation.CancelBookingCommand{Actor: tourist, BookingID: "b1"})
	assert.Equal(t, errs.KindGateway, errs.KindOf(err))

	stored := f.stored(t, "b1")
	assert.Equal(t, domainbooking.StatusUpcoming, stored.Status)
	assert.Equal(t, domainbooking.PaymentAdvancePaid, stored.PaymentStatus)
	assert.False(t, f.available(t, "g1", b.Range))
	assert.Empty(t, f.alerts.Alerts())
}

func TestSecondRefundFailureIsInconsistent(t *testing.T) {
	f := newFixture(t)
	f.seed(t, "b1", true)
	f.gateway.FailRefund = func(n int, _ policies.RefundRequest) error {
		if n == 1 {
			return errors.New("refund rejected")
		}
		return nil
	}

	_, err := f.coordinator().Handle(context.Background(), cancellation.CancelBookingCommand{Actor: tourist, BookingID: "b1"})
	assert.Equal(t, errs.KindConsistency, errs.KindOf(err))
	alerts := f.alerts.Alerts()
	require.Len(t, alerts, 1)
	assert.Equal(t, "b1", alerts[0].BookingID)
	assert.Equal(t, "rfnd_000001", alerts[0].Details["refund_ids"])
}

func TestSaveFailureAfterRefundRaisesConsistencyAlert(t *testing.T) {
	f := newFixture(t)
	b := f.seed(t, "b1", false)
	f.bookings.failSave = errors.New("disk full")

	_, err := f.coordinator().Handle(context.Background(), cancellation.CancelBookingCommand{Actor: tourist, BookingID: "b1"})
	require.Error(t, err)
	assert.Equal(t, errs.KindConsistency, errs.KindOf(err))
	assert.ErrorIs(t, err, errs.ErrConsistency)

	assert.Len(t, f.gateway.Refunds(), 1)
	alerts := f.alerts.Alerts()
	require.Len(t, alerts, 1)
	assert.Equal(t, policies.SeverityCritical, alerts[0].Severity)
	assert.Equal(t, "booking.cancel", alerts[0].Operation)

	// the ledger release was compensated, so the claim still matches the
	// stored booking
	assert.Equal(t, domainbooking.StatusUpcoming, f.stored(t, "b1").Status)
	assert.False(t, f.available(t, "g1", b.Range))
}

func TestGuideCancelParksBookingWithoutRefund(t *testing.T) {
	f := newFixture(t)
	b := f.seed(t, "b1", false)

	out, err := f.coordinator().Handle(context.Background(), cancellation.CancelBookingCommand{Actor: guideG1, BookingID: "b1", Reason: "ill"})
	require.NoError(t, err)
	assert.Equal(t, string(domainbooking.StatusAwaitingSubstitute), out.Status)
	assert.Equal(t, string(domainbooking.PaymentAdvancePaid), out.PaymentStatus)
	assert.Equal(t, "guide", out.CancelledBy.Role)
	assert.Empty(t, f.gateway.Refunds())
	assert.True(t, f.available(t, "g1", b.Range))
	assert.Contains(t, f.box.Names(), domainbooking.EventGuideWithdrew)
}

func TestCancelAuthorization(t *testing.T) {
	f := newFixture(t)
	f.seed(t, "b1", false)

	_, err := f.coordinator().Handle(context.Background(), cancellation.CancelBookingCommand{Actor: stranger, BookingID: "b1"})
	assert.ErrorIs(t, err, cancellation.ErrNotOwner)
	_, err = f.coordinator().Handle(context.Background(), cancellation.CancelBookingCommand{Actor: guideG2, BookingID: "b1"})
	assert.ErrorIs(t, err, cancellation.ErrNotOwner)
	_, err = f.coordinator().Handle(context.Background(), cancellation.CancelBookingCommand{Actor: tourist, BookingID: "missing"})
	assert.Equal(t, errs.KindNotFound, errs.KindOf(err))
}

func TestCancelTerminalBookingIsRejected(t *testing.T) {
	f := newFixture(t)
	f.seed(t, "b1", false)
	_, err := f.coordinator().Handle(context.Background(), cancellation.CancelBookingCommand{Actor: tourist, BookingID: "b1"})
	require.NoError(t, err)
	before := f.stored(t, "b1")

	_, err = f.coordinator().Handle(context.Background(), cancellation.CancelBookingCommand{Actor: tourist, BookingID: "b1"})
	assert.ErrorIs(t, err, domainbooking.ErrInvalidState)
	assert.Len(t, f.gateway.Refunds(), 1)
	assert.Equal(t, before.Version, f.stored(t, "b1").Version)
}

func TestSubstituteAfterWithdrawalKeepsOriginalGuide(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	b := f.seed(t, "b1", false)
	_, err := f.coordinator().Handle(ctx, cancellation.CancelBookingCommand{Actor: guideG1, BookingID: "b1"})
	require.NoError(t, err)

	out, err := f.substitutes().Handle(ctx, cancellation.AssignSubstituteCommand{Actor: admin, BookingID: "b1", NewGuideID: "g2"})
	require.NoError(t, err)
	assert.Equal(t, string(domainbooking.StatusUpcoming), out.Status)
	assert.Equal(t, "g2", out.GuideID)
	assert.Equal(t, "g1", out.OriginalGuideID)
	assert.False(t, f.available(t, "g2", b.Range))
	assert.True(t, f.available(t, "g1", b.Range))

	out, err = f.substitutes().Handle(ctx, cancellation.AssignSubstituteCommand{Actor: admin, BookingID: "b1", NewGuideID: "g3"})
	require.NoError(t, err)
	assert.Equal(t, "g1", out.OriginalGuideID)
	assert.True(t, f.available(t, "g2", b.Range))
	assert.False(t, f.available(t, "g3", b.Range))
}

func TestSubstituteRejectsBusyOrSameGuide(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	b := f.seed(t, "b1", false)
	require.NoError(t, f.guides.Reserve(ctx, "g2", mustRange(t, "2026-11-12", "2026-11-12")))

	_, err := f.substitutes().Handle(ctx, cancellation.AssignSubstituteCommand{Actor: admin, BookingID: "b1", NewGuideID: "g2"})
	assert.ErrorIs(t, err, domainguide.ErrDatesUnavailable)
	assert.Equal(t, "g1", string(f.stored(t, "b1").GuideID))
	assert.False(t, f.available(t, "g1", b.Range))

	_, err = f.substitutes().Handle(ctx, cancellation.AssignSubstituteCommand{Actor: admin, BookingID: "b1", NewGuideID: "g1"})
	assert.ErrorIs(t, err, domainbooking.ErrSameGuide)

	_, err = f.substitutes().Handle(ctx, cancellation.AssignSubstituteCommand{Actor: admin, BookingID: "b1", NewGuideID: "nobody"})
	assert.Equal(t, errs.KindNotFound, errs.KindOf(err))
}
