package core

import (
	"encoding/json"
	"fmt"
	"time"
)

// DateLayout is the wire and file format of a Date.
const DateLayout = "2006-01-02"

// Date is a calendar day with no zone attached. Windows over local days are
// built from Dates and a *time.Location.
type Date struct {
	Year  int
	Month time.Month
	Day   int
}

// NewDate normalizes overflowing components the way time.Date does.
func NewDate(year int, month time.Month, day int) Date {
	return DateOf(time.Date(year, month, day, 0, 0, 0, 0, time.UTC))
}

// DateOf returns the calendar day of t in t's own location.
func DateOf(t time.Time) Date {
	y, m, d := t.Date()
	return Date{Year: y, Month: m, Day: d}
}

// LocalDate returns the calendar day of instant t as seen in loc.
func LocalDate(t time.Time, loc *time.Location) Date {
	return DateOf(t.In(loc))
}

// ParseDate parses YYYY-MM-DD.
func ParseDate(s string) (Date, error) {
	t, err := time.Parse(DateLayout, s)
	if err != nil {
		return Date{}, fmt.Errorf("invalid date %q: %w", s, err)
	}
	return DateOf(t), nil
}

// AddDays moves the date by n calendar days.
func (d Date) AddDays(n int) Date {
	return NewDate(d.Year, d.Month, d.Day+n)
}

// DaysSince counts calendar days from other to d (negative when d is earlier).
func (d Date) DaysSince(other Date) int {
	a := time.Date(d.Year, d.Month, d.Day, 0, 0, 0, 0, time.UTC)
	b := time.Date(other.Year, other.Month, other.Day, 0, 0, 0, 0, time.UTC)
	return int(a.Sub(b).Hours() / 24)
}

// Start is local midnight of d in loc.
func (d Date) Start(loc *time.Location) time.Time {
	return time.Date(d.Year, d.Month, d.Day, 0, 0, 0, 0, loc)
}

// End is the last representable microsecond of d in loc.
func (d Date) End(loc *time.Location) time.Time {
	return time.Date(d.Year, d.Month, d.Day, 23, 59, 59, 999999000, loc)
}

func (d Date) Before(other Date) bool { return d.DaysSince(other) < 0 }
func (d Date) After(other Date) bool  { return d.DaysSince(other) > 0 }
func (d Date) IsZero() bool           { return d == Date{} }

func (d Date) String() string {
	return fmt.Sprintf("%04d-%02d-%02d", d.Year, d.Month, d.Day)
}

func (d Date) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.String())
}

func (d *Date) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	parsed, err := ParseDate(s)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}
