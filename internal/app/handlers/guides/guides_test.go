package guides_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"getmyguide/internal/app/handlers/guides"
	"getmyguide/internal/domain/shared/daterange"
	"getmyguide/internal/domain/shared/errs"
	"getmyguide/internal/domain/user"
	"getmyguide/internal/infra/storage/memory"
)

func TestUpsertKeepsCreatedAtAndClaims(t *testing.T) {
	ctx := context.Background()
	repo := memory.NewGuideRepository()
	factory := memory.Factory{GuidesRepo: repo, BookingsRepo: memory.NewBookingRepository()}
	first := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	clock := first
	h := &guides.UpsertGuideHandler{UoWFactory: factory, Now: func() time.Time { return clock }}
	admin := user.Actor{ID: "a1", Role: user.RoleAdmin}

	created, err := h.Handle(ctx, guides.UpsertGuideCommand{Actor: admin, GuideID: "g1", Name: "Ravi", Languages: []string{"en", "hi", "EN"}})
	require.NoError(t, err)
	assert.Equal(t, []string{"en", "hi"}, created.Languages)

	r, err := daterange.Parse("2026-02-01", "2026-02-02")
	require.NoError(t, err)
	require.NoError(t, repo.Reserve(ctx, "g1", r))

	clock = first.Add(48 * time.Hour)
	updated, err := h.Handle(ctx, guides.UpsertGuideCommand{Actor: admin, GuideID: "g1", Name: "Ravi K", ServiceLocations: []string{"Jaipur"}})
	require.NoError(t, err)
	assert.Equal(t, first, updated.CreatedAt)
	assert.Equal(t, clock, updated.UpdatedAt)

	free, err := repo.IsAvailable(ctx, "g1", r)
	require.NoError(t, err)
	assert.False(t, free)

	got, err := (&guides.GetGuideHandler{UoWFactory: factory}).Handle(ctx, guides.GetGuideQuery{GuideID: "g1"})
	require.NoError(t, err)
	assert.Equal(t, "Ravi K", got.Name)
	assert.Equal(t, []string{"Jaipur"}, got.ServiceLocations)

	_, err = h.Handle(ctx, guides.UpsertGuideCommand{Actor: admin, GuideID: "g2"})
	assert.Equal(t, errs.KindValidation, errs.KindOf(err))
}
