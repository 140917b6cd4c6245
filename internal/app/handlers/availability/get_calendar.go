// Package availability answers guide calendar reads from the ledger.
package availability

import (
	"context"
	"strings"
	"time"

	"getmyguide/internal/app/dto"
	handlersupport "getmyguide/internal/app/handlers/support"
	"getmyguide/internal/app/queries"
	"getmyguide/internal/app/uow"
	"getmyguide/internal/domain/guide"
	"getmyguide/internal/domain/shared/daterange"
)

const (
	getCalendarKey       = "availability.calendar"
	checkAvailabilityKey = "availability.check"

	// DefaultWindowDays is the calendar span returned when no end is given.
	DefaultWindowDays = 90
)

type GetCalendarQuery struct {
	GuideID string
	From    string
	To      string
}

func (q GetCalendarQuery) Key() string { return getCalendarKey }

type GetCalendarHandler struct {
	UoWFactory uow.UoWFactory
	Now        func() time.Time
}

func (h *GetCalendarHandler) Handle(ctx context.Context, q GetCalendarQuery) (dto.GuideCalendar, error) {
	window, err := h.window(q.From, q.To)
	if err != nil {
		return dto.GuideCalendar{}, err
	}
	unit, execCtx, cleanup, err := handlersupport.BeginReadOnlyUnit(ctx, h.UoWFactory)
	if err != nil {
		return dto.GuideCalendar{}, err
	}
	if cleanup != nil {
		defer cleanup()
	}
	g, err := unit.Guides().ByID(execCtx, guide.ID(q.GuideID))
	if err != nil {
		return dto.GuideCalendar{}, err
	}
	return dto.MapGuideCalendar(g, window), nil
}

func (h *GetCalendarHandler) window(from, to string) (daterange.DateRange, error) {
	start := daterange.Day(handlersupport.Clock(h.Now))
	if strings.TrimSpace(from) != "" {
		parsed, err := daterange.ParseDay(from)
		if err != nil {
			return daterange.DateRange{}, err
		}
		start = parsed
	}
	end := start.AddDate(0, 0, DefaultWindowDays)
	if strings.TrimSpace(to) != "" {
		parsed, err := daterange.ParseDay(to)
		if err != nil {
			return daterange.DateRange{}, err
		}
		end = parsed
	}
	return daterange.New(start, end)
}

type CheckAvailabilityQuery struct {
	GuideID   string
	StartDate string
	EndDate   string
}

func (q CheckAvailabilityQuery) Key() string { return checkAvailabilityKey }

type CheckAvailabilityHandler struct {
	UoWFactory uow.UoWFactory
}

func (h *CheckAvailabilityHandler) Handle(ctx context.Context, q CheckAvailabilityQuery) (dto.Availability, error) {
	r, err := daterange.Parse(q.StartDate, q.EndDate)
	if err != nil {
		return dto.Availability{}, err
	}
	unit, execCtx, cleanup, err := handlersupport.BeginReadOnlyUnit(ctx, h.UoWFactory)
	if err != nil {
		return dto.Availability{}, err
	}
	if cleanup != nil {
		defer cleanup()
	}
	ok, err := unit.Guides().IsAvailable(execCtx, guide.ID(q.GuideID), r)
	if err != nil {
		return dto.Availability{}, err
	}
	return dto.Availability{
		GuideID:   q.GuideID,
		StartDate: r.Start.Format(daterange.DayLayout),
		EndDate:   r.End.Format(daterange.DayLayout),
		Available: ok,
	}, nil
}

var _ queries.Handler[GetCalendarQuery, dto.GuideCalendar] = (*GetCalendarHandler)(nil)
var _ queries.Handler[CheckAvailabilityQuery, dto.Availability] = (*CheckAvailabilityHandler)(nil)
