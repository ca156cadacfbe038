package tabular

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// TimeLayout is how timestamps are written.
const TimeLayout = "2006-01-02 15:04:05.999999-07:00"

var timeLayouts = []string{
	TimeLayout,
	"2006-01-02 15:04:05-07:00",
	time.RFC3339Nano,
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
}

// FormatTime writes t in UTC; the zero time is an empty cell.
func FormatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(TimeLayout)
}

// FormatTimePtr writes an optional timestamp, keeping its offset.
func FormatTimePtr(t *time.Time) string {
	if t == nil || t.IsZero() {
		return ""
	}
	return t.Format(TimeLayout)
}

// ParseTime reads any accepted layout. Layouts without an offset are UTC.
func ParseTime(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, nil
	}
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized timestamp %q", s)
}

// ParseTimePtr is ParseTime for optional cells.
func ParseTimePtr(s string) (*time.Time, error) {
	t, err := ParseTime(s)
	if err != nil || t.IsZero() {
		return nil, err
	}
	return &t, nil
}

// FormatBool writes True or False.
func FormatBool(b bool) string {
	if b {
		return "True"
	}
	return "False"
}

// ParseBool accepts strconv spellings; an empty cell is false.
func ParseBool(s string) (bool, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return false, nil
	}
	return strconv.ParseBool(s)
}

// FormatFloatPtr writes an optional number.
func FormatFloatPtr(f *float64) string {
	if f == nil {
		return ""
	}
	return strconv.FormatFloat(*f, 'f', -1, 64)
}

// ParseFloatPtr reads an optional number.
func ParseFloatPtr(s string) (*float64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil, err
	}
	return &f, nil
}

// ParseInt reads a whole number; empty cells and floats like "3.0"
// written by spreadsheet tools are accepted.
func ParseInt(s string, emptyAs int) (int, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return emptyAs, nil
	}
	if n, err := strconv.Atoi(s); err == nil {
		return n, nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || f != float64(int(f)) {
		return 0, fmt.Errorf("not a whole number: %q", s)
	}
	return int(f), nil
}
