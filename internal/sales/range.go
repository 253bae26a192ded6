package sales

import (
	"fmt"
	"time"

	"emporio-pos/internal/apperr"
)

const dateLayout = "2006-01-02"

var ErrInvalidRange = apperr.New(apperr.ErrValidation, "invalid_date_range", "invalid date range")

// Range is the half-open interval [From, To).
type Range struct {
	From time.Time
	To   time.Time
}

// DayRange covers every instant of the start day through the end of the end
// day, in the location of each argument.
func DayRange(start, end time.Time) Range {
	y, m, d := start.Date()
	from := time.Date(y, m, d, 0, 0, 0, 0, start.Location())
	y, m, d = end.Date()
	to := time.Date(y, m, d+1, 0, 0, 0, 0, end.Location())
	return Range{From: from, To: to}
}

// ParseDayRange reads YYYY-MM-DD dates as calendar days in loc.
func ParseDayRange(startDate, endDate string, loc *time.Location) (Range, error) {
	if startDate == "" || endDate == "" {
		return Range{}, fmt.Errorf("%w: startDate and endDate are required", ErrInvalidRange)
	}
	start, err := time.ParseInLocation(dateLayout, startDate, loc)
	if err != nil {
		return Range{}, fmt.Errorf("%w: startDate must be YYYY-MM-DD", ErrInvalidRange)
	}
	end, err := time.ParseInLocation(dateLayout, endDate, loc)
	if err != nil {
		return Range{}, fmt.Errorf("%w: endDate must be YYYY-MM-DD", ErrInvalidRange)
	}
	if end.Before(start) {
		return Range{}, fmt.Errorf("%w: endDate is before startDate", ErrInvalidRange)
	}
	return DayRange(start, end), nil
}

// Location is the zone the range's calendar days were taken in.
func (r Range) Location() *time.Location {
	return r.From.Location()
}
