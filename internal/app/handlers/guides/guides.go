// Package guides manages guide profiles. Claimed dates are never written
// here; they belong to the booking flows.
package guides

import (
	"context"
	"errors"
	"time"

	"getmyguide/internal/app/commands"
	handlersupport "getmyguide/internal/app/handlers/support"
	"getmyguide/internal/app/queries"
	"getmyguide/internal/app/uow"
	"getmyguide/internal/domain/guide"
	"getmyguide/internal/domain/user"
)

const (
	upsertGuideKey = "guide.upsert"
	getGuideKey    = "guide.get"
)

type Profile struct {
	ID               string    `json:"id"`
	Name             string    `json:"name"`
	Email            string    `json:"email,omitempty"`
	ServiceLocations []string  `json:"service_locations"`
	Languages        []string  `json:"languages"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
}

func mapProfile(g *guide.Guide) Profile {
	return Profile{
		ID:               string(g.ID),
		Name:             g.Name,
		Email:            g.Email,
		ServiceLocations: append([]string{}, g.ServiceLocations...),
		Languages:        append([]string{}, g.Languages...),
		CreatedAt:        g.CreatedAt,
		UpdatedAt:        g.UpdatedAt,
	}
}

type UpsertGuideCommand struct {
	Actor            user.Actor
	GuideID          string   `validate:"required,max=64"`
	Name             string   `validate:"required,max=120"`
	Email            string   `validate:"omitempty,email"`
	ServiceLocations []string `validate:"dive,max=120"`
	Languages        []string `validate:"dive,max=40"`
}

func (UpsertGuideCommand) Key() string                 { return upsertGuideKey }
func (c UpsertGuideCommand) Principal() user.Actor     { return c.Actor }
func (c UpsertGuideCommand) AllowedRoles() []user.Role { return []user.Role{user.RoleAdmin} }

type UpsertGuideHandler struct {
	UoWFactory uow.UoWFactory
	Now        func() time.Time
}

func (h *UpsertGuideHandler) Handle(ctx context.Context, cmd UpsertGuideCommand) (*Profile, error) {
	now := handlersupport.Clock(h.Now)
	g, err := guide.NewGuide(guide.CreateParams{
		ID:               guide.ID(cmd.GuideID),
		Name:             cmd.Name,
		Email:            cmd.Email,
		ServiceLocations: cmd.ServiceLocations,
		Languages:        cmd.Languages,
		CreatedAt:        now,
	})
	if err != nil {
		return nil, err
	}
	var out Profile
	err = handlersupport.RunInUnit(ctx, h.UoWFactory, func(ctx context.Context, unit uow.UnitOfWork) error {
		existing, err := unit.Guides().ByID(ctx, g.ID)
		switch {
		case err == nil:
			g.CreatedAt = existing.CreatedAt
		case !errors.Is(err, guide.ErrGuideNotFound):
			return err
		}
		if err := unit.Guides().Save(ctx, g); err != nil {
			return err
		}
		out = mapProfile(g)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

type GetGuideQuery struct {
	GuideID string
}

func (GetGuideQuery) Key() string { return getGuideKey }

type GetGuideHandler struct {
	UoWFactory uow.UoWFactory
}

func (h *GetGuideHandler) Handle(ctx context.Context, q GetGuideQuery) (*Profile, error) {
	unit, execCtx, cleanup, err := handlersupport.BeginReadOnlyUnit(ctx, h.UoWFactory)
	if err != nil {
		return nil, err
	}
	if cleanup != nil {
		defer cleanup()
	}
	g, err := unit.Guides().ByID(execCtx, guide.ID(q.GuideID))
	if err != nil {
		return nil, err
	}
	out := mapProfile(g)
	return &out, nil
}

var _ commands.Handler[UpsertGuideCommand, *Profile] = (*UpsertGuideHandler)(nil)
var _ queries.Handler[GetGuideQuery, *Profile] = (*GetGuideHandler)(nil)
