package dto

import (
	"time"

	"getmyguide/internal/domain/guide"
	"getmyguide/internal/domain/shared/daterange"
)

type GuideCalendar struct {
	GuideID          string   `json:"guide_id"`
	From             string   `json:"from"`
	To               string   `json:"to"`
	UnavailableDates []string `json:"unavailable_dates"`
}

func MapGuideCalendar(g *guide.Guide, window daterange.DateRange) GuideCalendar {
	return GuideCalendar{
		GuideID:          string(g.ID),
		From:             window.Start.Format(daterange.DayLayout),
		To:               window.End.Format(daterange.DayLayout),
		UnavailableDates: formatDays(g.ClaimedWithin(window)),
	}
}

type Availability struct {
	GuideID   string `json:"guide_id"`
	StartDate string `json:"start_date"`
	EndDate   string `json:"end_date"`
	Available bool   `json:"available"`
}

func formatDays(days []time.Time) []string {
	out := make([]string, 0, len(days))
	for _, d := range days {
		out = append(out, d.Format(daterange.DayLayout))
	}
	return out
}
