// Package compliance measures how much of a schema's expected activity a
// participant completed: dense per-day counts over the schema window, bonus
// days, and possible versus completed totals.
package compliance

import (
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"studykit/domain/core"
	"studykit/domain/study"
)

// ErrWindowMismatch is returned by ComputeStats when the daily counts were
// not built from the schema's start day.
var ErrWindowMismatch = errors.New("daily counts do not start on the schema start date")

// Schema is one compliance period definition.
type Schema struct {
	Name           string `json:"name"`
	RateID         string `json:"rate_id"`
	PossiblePerDay int    `json:"num_possible_per_day"`
	NumDays        int    `json:"num_days"`
	BonusRateID    string `json:"bonus_rate_id,omitempty"`
	BonusThreshold int    `json:"bonus_threshold"`
	Type           string `json:"schema_type,omitempty"`
}

// HasBonus reports whether the schema pays a bonus rate.
func (s Schema) HasBonus() bool {
	return s.BonusRateID != ""
}

// DailyCount is the number of matching sessions on one local day.
type DailyCount struct {
	Date  core.Date `json:"date"`
	Count int       `json:"count"`
}

// Window is a run of numDays local calendar days starting at Start.
type Window struct {
	Start core.Date
	Days  int
	Loc   *time.Location
}

// NewWindow builds a window; a nil location means UTC.
func NewWindow(start core.Date, days int, loc *time.Location) Window {
	if loc == nil {
		loc = time.UTC
	}
	return Window{Start: start, Days: days, Loc: loc}
}

// Last is the final day of the window.
func (w Window) Last() core.Date {
	return w.Start.AddDays(w.Days - 1)
}

// Contains reports whether instant t falls between local midnight of the
// first day and the last microsecond of the last day.
func (w Window) Contains(t time.Time) bool {
	if w.Days <= 0 {
		return false
	}
	return !t.Before(w.Start.Start(w.Loc)) && !t.After(w.Last().End(w.Loc))
}

// MatchesReason reports whether surveyName contains reason, ignoring case.
// An empty reason matches everything.
func MatchesReason(surveyName, reason string) bool {
	return strings.Contains(strings.ToLower(surveyName), strings.ToLower(reason))
}

// DailyCounts returns exactly numDays rows, one per local day from start,
// counting sessions inside the window whose survey name contains
// reasonFilter (case-insensitive, empty means no filter). Days without
// sessions count 0.
func DailyCounts(sessions []study.Session, start core.Date, numDays int, loc *time.Location, reasonFilter string) []DailyCount {
	w := NewWindow(start, numDays, loc)
	if numDays <= 0 {
		return []DailyCount{}
	}

	rows := make([]DailyCount, numDays)
	for i := range rows {
		rows[i] = DailyCount{Date: start.AddDays(i)}
	}
	for _, s := range sessions {
		if !w.Contains(s.StartedAt) {
			continue
		}
		if reasonFilter != "" && !MatchesReason(s.SurveyName, reasonFilter) {
			continue
		}
		day := core.LocalDate(s.StartedAt, w.Loc).DaysSince(start)
		if day >= 0 && day < numDays {
			rows[day].Count++
		}
	}
	return rows
}

// BonusDays counts days meeting threshold. A threshold of 0 or less
// disables bonus tracking.
func BonusDays(counts []DailyCount, threshold int) int {
	if threshold <= 0 {
		return 0
	}
	n := 0
	for _, c := range counts {
		if c.Count >= threshold {
			n++
		}
	}
	return n
}

// Stats is the possible versus completed activity up to now.
type Stats struct {
	DaysElapsed int `json:"days_elapsed"`
	Possible    int `json:"possible"`
	Completed   int `json:"completed"`
}

// PercentComplete is Completed/Possible as a percentage rounded to one
// decimal, or 0 when nothing was possible yet.
func (s Stats) PercentComplete() float64 {
	if s.Possible <= 0 {
		return 0
	}
	return math.Round(float64(s.Completed)/float64(s.Possible)*1000) / 10
}

// DaysElapsed is how many schema days have started by now in loc, counting
// today, clamped to [0, numDays].
func DaysElapsed(start core.Date, numDays int, loc *time.Location, now time.Time) int {
	if loc == nil {
		loc = time.UTC
	}
	elapsed := core.LocalDate(now, loc).DaysSince(start) + 1
	if elapsed > numDays {
		elapsed = numDays
	}
	if elapsed < 0 {
		elapsed = 0
	}
	return elapsed
}

// ComputeStats sums the first DaysElapsed rows of counts, which must come
// from DailyCounts over the same start date.
func ComputeStats(start core.Date, loc *time.Location, schema Schema, counts []DailyCount, now time.Time) (Stats, error) {
	if len(counts) > 0 && counts[0].Date != start {
		return Stats{}, fmt.Errorf("%w: counts start %s, schema %q starts %s", ErrWindowMismatch, counts[0].Date, schema.Name, start)
	}

	elapsed := DaysElapsed(start, schema.NumDays, loc, now)
	stats := Stats{
		DaysElapsed: elapsed,
		Possible:    elapsed * schema.PossiblePerDay,
	}
	for i := 0; i < elapsed && i < len(counts); i++ {
		stats.Completed += counts[i].Count
	}
	return stats, nil
}

// HasSessionsAfterEnd reports whether any session started after the last
// microsecond of a numDays window from start.
func HasSessionsAfterEnd(sessions []study.Session, start core.Date, numDays int, loc *time.Location) bool {
	w := NewWindow(start, numDays, loc)
	end := w.Last().End(w.Loc)
	for _, s := range sessions {
		if s.StartedAt.After(end) {
			return true
		}
	}
	return false
}

// HasSessionsBeforeStart reports whether any session started before local
// midnight of start.
func HasSessionsBeforeStart(sessions []study.Session, start core.Date, loc *time.Location) bool {
	w := NewWindow(start, 1, loc)
	begin := w.Start.Start(w.Loc)
	for _, s := range sessions {
		if s.StartedAt.Before(begin) {
			return true
		}
	}
	return false
}
