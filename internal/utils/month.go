package utils

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// DateLayout is the wire format of calendar dates.
const DateLayout = "2006-01-02"

var ErrInvalidMonth = errors.New("month must be formatted as YYYY-MM")

// Month identifies a calendar month independent of any time zone.
type Month struct {
	Year  int
	Month time.Month
}

// ParseMonth parses a "YYYY-MM" string.
func ParseMonth(s string) (Month, error) {
	parts := strings.Split(strings.TrimSpace(s), "-")
	if len(parts) != 2 || len(parts[0]) != 4 || len(parts[1]) != 2 {
		return Month{}, ErrInvalidMonth
	}

	year, err := strconv.Atoi(parts[0])
	if err != nil {
		return Month{}, ErrInvalidMonth
	}
	month, err := strconv.Atoi(parts[1])
	if err != nil {
		return Month{}, ErrInvalidMonth
	}
	if month < 1 || month > 12 {
		return Month{}, fmt.Errorf("%w: month %d out of range", ErrInvalidMonth, month)
	}

	return Month{Year: year, Month: time.Month(month)}, nil
}

// ParseMonthOrCurrent returns the current month in loc when s is empty.
func ParseMonthOrCurrent(s string, now time.Time, loc *time.Location) (Month, error) {
	if strings.TrimSpace(s) == "" {
		return MonthOf(now, loc), nil
	}
	return ParseMonth(s)
}

func MonthOf(t time.Time, loc *time.Location) Month {
	t = t.In(loc)
	return Month{Year: t.Year(), Month: t.Month()}
}

// Start is midnight of the first day of the month in loc.
func (m Month) Start(loc *time.Location) time.Time {
	return time.Date(m.Year, m.Month, 1, 0, 0, 0, 0, loc)
}

// End is the exclusive upper bound: midnight of the first day of the next month.
func (m Month) End(loc *time.Location) time.Time {
	return m.Start(loc).AddDate(0, 1, 0)
}

func (m Month) Next() Month {
	t := time.Date(m.Year, m.Month+1, 1, 0, 0, 0, 0, time.UTC)
	return Month{Year: t.Year(), Month: t.Month()}
}

func (m Month) Prev() Month {
	t := time.Date(m.Year, m.Month-1, 1, 0, 0, 0, 0, time.UTC)
	return Month{Year: t.Year(), Month: t.Month()}
}

func (m Month) Before(o Month) bool {
	if m.Year != o.Year {
		return m.Year < o.Year
	}
	return m.Month < o.Month
}

func (m Month) String() string {
	return fmt.Sprintf("%04d-%02d", m.Year, int(m.Month))
}

// FileSuffix renders the month as YYYY_MM for download names.
func (m Month) FileSuffix() string {
	return fmt.Sprintf("%04d_%02d", m.Year, int(m.Month))
}

// ParseDate parses a YYYY-MM-DD date at midnight in loc.
func ParseDate(s string, loc *time.Location) (time.Time, error) {
	t, err := time.ParseInLocation(DateLayout, strings.TrimSpace(s), loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("date must be formatted as YYYY-MM-DD: %w", err)
	}
	return t, nil
}
