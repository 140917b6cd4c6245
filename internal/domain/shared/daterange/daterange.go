package daterange

import (
	"time"

	"getmyguide/internal/domain/shared/errs"
)

// DayLayout is the wire format of a calendar day.
const DayLayout = "2006-01-02"

// MaxSpanDays bounds how many days one range may expand to.
const MaxSpanDays = 366

var (
	ErrInvalidRange = errs.Sentinel(errs.KindValidation, "daterange: end date must not be before start date")
	ErrMissingDate  = errs.Sentinel(errs.KindValidation, "daterange: start and end dates are required")
	ErrSpanTooLong  = errs.Sentinel(errs.KindValidation, "daterange: range exceeds maximum span")
	ErrInvalidDay   = errs.Sentinel(errs.KindValidation, "daterange: day must be formatted as YYYY-MM-DD")
)

// DateRange is an inclusive interval of calendar days [Start, End].
// Both endpoints are kept at UTC midnight.
type DateRange struct {
	Start time.Time
	End   time.Time
}

// Day truncates t to its UTC calendar day.
func Day(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// ParseDay parses a YYYY-MM-DD string into a UTC day.
func ParseDay(value string) (time.Time, error) {
	t, err := time.Parse(DayLayout, value)
	if err != nil {
		return time.Time{}, ErrInvalidDay
	}
	return t, nil
}

func New(start, end time.Time) (DateRange, error) {
	dr := DateRange{Start: Day(start), End: Day(end)}
	if err := dr.Validate(); err != nil {
		return DateRange{}, err
	}
	return dr, nil
}

// Parse builds a range from two YYYY-MM-DD strings.
func Parse(start, end string) (DateRange, error) {
	if start == "" || end == "" {
		return DateRange{}, ErrMissingDate
	}
	s, err := ParseDay(start)
	if err != nil {
		return DateRange{}, err
	}
	e, err := ParseDay(end)
	if err != nil {
		return DateRange{}, err
	}
	return New(s, e)
}

func (dr DateRange) Validate() error {
	if dr.Start.IsZero() || dr.End.IsZero() {
		return ErrMissingDate
	}
	if dr.End.Before(dr.Start) {
		return ErrInvalidRange
	}
	if dr.Len() > MaxSpanDays {
		return ErrSpanTooLong
	}
	return nil
}

// Len is the number of days covered, counting both endpoints.
func (dr DateRange) Len() int {
	return int(dr.End.Sub(dr.Start).Hours()/24) + 1
}

// Days expands the range one day at a time in ascending order.
func (dr DateRange) Days() []time.Time {
	if dr.End.Before(dr.Start) {
		return nil
	}
	days := make([]time.Time, 0, dr.Len())
	for d := dr.Start; !d.After(dr.End); d = d.AddDate(0, 0, 1) {
		days = append(days, d)
	}
	return days
}

func (dr DateRange) Overlaps(other DateRange) bool {
	return !dr.Start.After(other.End) && !other.Start.After(dr.End)
}

func (dr DateRange) ContainsDay(t time.Time) bool {
	d := Day(t)
	return !d.Before(dr.Start) && !d.After(dr.End)
}

func (dr DateRange) String() string {
	return dr.Start.Format(DayLayout) + ".." + dr.End.Format(DayLayout)
}
