package booking

import (
	"context"
	"sort"
	"strings"

	"getmyguide/internal/app/dto"
	handlersupport "getmyguide/internal/app/handlers/support"
	"getmyguide/internal/app/queries"
	"getmyguide/internal/app/uow"
	domainbooking "getmyguide/internal/domain/booking"
	"getmyguide/internal/domain/guide"
	"getmyguide/internal/domain/shared/errs"
	"getmyguide/internal/domain/user"
)

var ErrUnknownStatus = errs.Sentinel(errs.KindValidation, "booking: unknown status filter")

// ListBookingsQuery lists what the actor may see: a tourist their own
// bookings, a guide the bookings currently assigned to them, an admin all.
type ListBookingsQuery struct {
	Actor  user.Actor
	Status string
}

func (ListBookingsQuery) Key() string                 { return listBookingsKey }
func (q ListBookingsQuery) Principal() user.Actor     { return q.Actor }
func (q ListBookingsQuery) AllowedRoles() []user.Role { return anyRole }

type ListBookingsHandler struct {
	UoWFactory uow.UoWFactory
}

func (h *ListBookingsHandler) Handle(ctx context.Context, q ListBookingsQuery) (dto.BookingCollection, error) {
	filter, err := scopedFilter(q.Actor, q.Status)
	if err != nil {
		return dto.BookingCollection{}, err
	}
	unit, execCtx, cleanup, err := handlersupport.BeginReadOnlyUnit(ctx, h.UoWFactory)
	if err != nil {
		return dto.BookingCollection{}, err
	}
	if cleanup != nil {
		defer cleanup()
	}
	items, err := unit.Bookings().List(execCtx, filter)
	if err != nil {
		return dto.BookingCollection{}, err
	}
	sort.SliceStable(items, func(i, j int) bool {
		if items[i].Range.Start.Equal(items[j].Range.Start) {
			return items[i].CreatedAt.After(items[j].CreatedAt)
		}
		return items[i].Range.Start.Before(items[j].Range.Start)
	})
	return dto.MapBookings(items), nil
}

func scopedFilter(actor user.Actor, status string) (domainbooking.ListFilter, error) {
	var filter domainbooking.ListFilter
	if s := strings.TrimSpace(status); s != "" && !strings.EqualFold(s, "all") {
		parsed, ok := domainbooking.ParseStatus(s)
		if !ok {
			return filter, ErrUnknownStatus
		}
		filter.Status = parsed
	}
	switch actor.Role {
	case user.RoleTourist:
		filter.UserID = actor.ID
	case user.RoleGuide:
		filter.GuideID = guide.ID(actor.ID)
	case user.RoleAdmin:
	default:
		return filter, ErrNotVisible
	}
	return filter, nil
}

type GetBookingQuery struct {
	Actor     user.Actor
	BookingID string
}

func (GetBookingQuery) Key() string                 { return getBookingKey }
func (q GetBookingQuery) Principal() user.Actor     { return q.Actor }
func (q GetBookingQuery) AllowedRoles() []user.Role { return anyRole }

type GetBookingHandler struct {
	UoWFactory uow.UoWFactory
}

func (h *GetBookingHandler) Handle(ctx context.Context, q GetBookingQuery) (*dto.Booking, error) {
	unit, execCtx, cleanup, err := handlersupport.BeginReadOnlyUnit(ctx, h.UoWFactory)
	if err != nil {
		return nil, err
	}
	if cleanup != nil {
		defer cleanup()
	}
	b, err := unit.Bookings().ByID(execCtx, domainbooking.ID(q.BookingID))
	if err != nil {
		return nil, err
	}
	if !b.VisibleTo(q.Actor) {
		return nil, ErrNotVisible
	}
	out := dto.MapBooking(b)
	return &out, nil
}

var _ queries.Handler[ListBookingsQuery, dto.BookingCollection] = (*ListBookingsHandler)(nil)
var _ queries.Handler[GetBookingQuery, *dto.Booking] = (*GetBookingHandler)(nil)
