package middleware

import (
	"context"
	"slices"

	"getmyguide/internal/domain/shared/errs"
	"getmyguide/internal/domain/user"
)

type Authorizer interface {
	Authorize(ctx context.Context, message any) error
}

// RoleRestricted is implemented by messages that only some roles may send.
// Ownership rules live in the handlers, which have the aggregate loaded.
type RoleRestricted interface {
	Principal() user.Actor
	AllowedRoles() []user.Role
}

// RoleAuthorizer rejects restricted messages whose principal lacks an allowed role.
type RoleAuthorizer struct{}

func (RoleAuthorizer) Authorize(_ context.Context, message any) error {
	restricted, ok := message.(RoleRestricted)
	if !ok {
		return nil
	}
	actor := restricted.Principal()
	if actor.ID == "" || !actor.Role.Valid() {
		return errs.Errorf(errs.KindAuthorization, "authorize", "authenticated principal required")
	}
	if !slices.Contains(restricted.AllowedRoles(), actor.Role) {
		return errs.Errorf(errs.KindAuthorization, "authorize", "role %s may not perform this action", actor.Role)
	}
	return nil
}

func Authorization(a Authorizer) CommandMiddleware {
	if a == nil {
		panic("middleware: authorizer required")
	}
	return guardCommands(a.Authorize)
}

func QueryAuthorization(a Authorizer) QueryMiddleware {
	if a == nil {
		panic("middleware: authorizer required")
	}
	return guardQueries(a.Authorize)
}
