package availability_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"getmyguide/internal/app/handlers/availability"
	domainguide "getmyguide/internal/domain/guide"
	"getmyguide/internal/domain/shared/daterange"
	"getmyguide/internal/domain/shared/errs"
	"getmyguide/internal/infra/storage/memory"
)

func newFactory(t *testing.T) memory.Factory {
	t.Helper()
	ctx := context.Background()
	repo := memory.NewGuideRepository()
	g, err := domainguide.NewGuide(domainguide.CreateParams{ID: "g1", Name: "Ravi"})
	require.NoError(t, err)
	require.NoError(t, repo.Save(ctx, g))
	for _, rng := range [][2]string{{"2026-11-10", "2026-11-11"}, {"2027-03-01", "2027-03-01"}} {
		r, err := daterange.Parse(rng[0], rng[1])
		require.NoError(t, err)
		require.NoError(t, repo.Reserve(ctx, "g1", r))
	}
	return memory.Factory{GuidesRepo: repo, BookingsRepo: memory.NewBookingRepository()}
}

func TestCalendarDefaultsToNinetyDayWindow(t *testing.T) {
	h := &availability.GetCalendarHandler{
		UoWFactory: newFactory(t),
		Now:        func() time.Time { return time.Date(2026, 11, 1, 15, 0, 0, 0, time.UTC) },
	}
	cal, err := h.Handle(context.Background(), availability.GetCalendarQuery{GuideID: "g1"})
	require.NoError(t, err)
	assert.Equal(t, "2026-11-01", cal.From)
	assert.Equal(t, "2027-01-30", cal.To)
	assert.Equal(t, []string{"2026-11-10", "2026-11-11"}, cal.UnavailableDates)

	cal, err = h.Handle(context.Background(), availability.GetCalendarQuery{GuideID: "g1", From: "2027-01-01", To: "2027-12-31"})
	require.NoError(t, err)
	assert.Equal(t, []string{"2027-03-01"}, cal.UnavailableDates)

	_, err = h.Handle(context.Background(), availability.GetCalendarQuery{GuideID: "g1", From: "2027-01-02", To: "2027-01-01"})
	assert.Equal(t, errs.KindValidation, errs.KindOf(err))

	_, err = h.Handle(context.Background(), availability.GetCalendarQuery{GuideID: "nobody"})
	assert.Equal(t, errs.KindNotFound, errs.KindOf(err))
}

func TestCheckAvailability(t *testing.T) {
	h := &availability.CheckAvailabilityHandler{UoWFactory: newFactory(t)}

	res, err := h.Handle(context.Background(), availability.CheckAvailabilityQuery{GuideID: "g1", StartDate: "2026-11-11", EndDate: "2026-11-13"})
	require.NoError(t, err)
	assert.False(t, res.Available)

	res, err = h.Handle(context.Background(), availability.CheckAvailabilityQuery{GuideID: "g1", StartDate: "2026-11-12", EndDate: "2026-11-13"})
	require.NoError(t, err)
	assert.True(t, res.Available)
}
