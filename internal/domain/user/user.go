package user

import (
	"strings"
	"time"

	"getmyguide/internal/domain/shared/errs"
)

var (
	ErrInvalidRole = errs.Sentinel(errs.KindValidation, "user: invalid role")
	ErrIDRequired  = errs.Sentinel(errs.KindValidation, "user: id is required")
)

type ID string

// Role is the closed set of actors that may act on a booking.
type Role string

const (
	RoleTourist Role = "tourist"
	RoleGuide   Role = "guide"
	RoleAdmin   Role = "admin"
)

var roles = map[Role]struct{}{
	RoleTourist: {},
	RoleGuide:   {},
	RoleAdmin:   {},
}

// ParseRole accepts the canonical lower-case role names.
func ParseRole(value string) (Role, error) {
	role := Role(strings.ToLower(strings.TrimSpace(value)))
	if _, ok := roles[role]; !ok {
		return "", ErrInvalidRole
	}
	return role, nil
}

func (r Role) Valid() bool {
	_, ok := roles[r]
	return ok
}

// Actor is the authenticated principal performing an operation.
type Actor struct {
	ID   ID
	Role Role
}

func NewActor(id string, role Role) (Actor, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return Actor{}, ErrIDRequired
	}
	if !role.Valid() {
		return Actor{}, ErrInvalidRole
	}
	return Actor{ID: ID(id), Role: role}, nil
}

func (a Actor) Is(role Role) bool {
	return a.Role == role
}

// Cancellation records who cancelled or withdrew from a booking.
type Cancellation struct {
	ActorID ID
	Role    Role
	Reason  string
	At      time.Time
}
