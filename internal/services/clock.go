package services

import (
	"time"

	"nva-backoffice/internal/utils"
)

// Clock fixes the business time zone and the source of "now" for every
// month window and date default.
type Clock struct {
	Loc *time.Location
	Now func() time.Time
}

func NewClock(loc *time.Location) Clock {
	if loc == nil {
		loc = time.UTC
	}
	return Clock{Loc: loc, Now: time.Now}
}

func (c Clock) now() time.Time {
	if c.Now == nil {
		return time.Now().In(c.location())
	}
	return c.Now().In(c.location())
}

func (c Clock) location() *time.Location {
	if c.Loc == nil {
		return time.UTC
	}
	return c.Loc
}

// Month parses raw, defaulting to the current month.
func (c Clock) Month(raw string) (utils.Month, error) {
	m, err := utils.ParseMonthOrCurrent(raw, c.now(), c.location())
	if err != nil {
		return utils.Month{}, invalid("month", err.Error())
	}
	return m, nil
}

func (c Clock) Today() time.Time {
	y, m, d := c.now().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, c.location())
}

// Date parses a YYYY-MM-DD value, reporting errors against field.
func (c Clock) Date(field, raw string) (time.Time, error) {
	t, err := utils.ParseDate(raw, c.location())
	if err != nil {
		return time.Time{}, invalid(field, "must be formatted as YYYY-MM-DD")
	}
	return t, nil
}
