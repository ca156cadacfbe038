// Package timeline counts tagged sessions per local day and tag.
package timeline

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"studykit/domain/core"
	"studykit/domain/rules"
)

// Range selects how far back the timeline reaches.
type Range string

const (
	RangeWeek  Range = "week"
	RangeMonth Range = "month"
	RangeAll   Range = "all"
)

// ParseRange accepts week, month or all; empty means all.
func ParseRange(s string) (Range, error) {
	switch r := Range(strings.ToLower(strings.TrimSpace(s))); r {
	case RangeWeek, RangeMonth, RangeAll:
		return r, nil
	case "":
		return RangeAll, nil
	default:
		return "", fmt.Errorf("unknown range %q (want week, month or all)", s)
	}
}

// Cutoff returns the earliest included instant, or false for no cutoff.
func (r Range) Cutoff(now time.Time) (time.Time, bool) {
	switch r {
	case RangeWeek:
		return now.AddDate(0, 0, -7), true
	case RangeMonth:
		return now.AddDate(0, 0, -30), true
	default:
		return time.Time{}, false
	}
}

// Entry is one (session, tag) pair.
type Entry struct {
	SessionID     string    `json:"session_id"`
	ParticipantID string    `json:"within_study_id"`
	SurveyName    string    `json:"survey_name"`
	Tag           string    `json:"tag"`
	LocalTime     time.Time `json:"local_time"`
	Day           core.Date `json:"day"`
}

// Explode turns each tagged session into one entry per tag. Untagged
// sessions produce nothing.
func Explode(tagged []rules.TaggedSession, loc *time.Location) []Entry {
	if loc == nil {
		loc = time.UTC
	}
	var entries []Entry
	for _, ts := range tagged {
		local := ts.StartedAt.In(loc)
		for _, tag := range ts.Tags {
			if tag == "" {
				continue
			}
			entries = append(entries, Entry{
				SessionID:     ts.ID,
				ParticipantID: ts.ParticipantID,
				SurveyName:    ts.SurveyName,
				Tag:           tag,
				LocalTime:     local,
				Day:           core.DateOf(local),
			})
		}
	}
	return entries
}

// AllTags lists the distinct tags present in entries, sorted.
func AllTags(entries []Entry) []string {
	seen := make(map[string]struct{})
	var tags []string
	for _, e := range entries {
		if _, ok := seen[e.Tag]; ok {
			continue
		}
		seen[e.Tag] = struct{}{}
		tags = append(tags, e.Tag)
	}
	sort.Strings(tags)
	return tags
}

// Options filter the timeline. Tags are titles; an empty list keeps every
// tag. Participant is a case-insensitive substring.
type Options struct {
	Range       Range
	Participant string
	Tags        []string
	Now         time.Time
}

// Filter applies opts to entries, keeping their order.
func Filter(entries []Entry, opts Options) []Entry {
	cutoff, hasCutoff := opts.Range.Cutoff(opts.Now)
	wanted := make(map[string]bool, len(opts.Tags))
	for _, t := range opts.Tags {
		wanted[t] = true
	}
	pattern := strings.ToLower(opts.Participant)

	var out []Entry
	for _, e := range entries {
		if hasCutoff && e.LocalTime.Before(cutoff) {
			continue
		}
		if len(wanted) > 0 && !wanted[e.Tag] {
			continue
		}
		if pattern != "" && !strings.Contains(strings.ToLower(e.ParticipantID), pattern) {
			continue
		}
		out = append(out, e)
	}
	return out
}

// Point is the number of sessions carrying Tag on Day.
type Point struct {
	Day   core.Date `json:"day"`
	Tag   string    `json:"tag"`
	Count int       `json:"count"`
	Color string    `json:"color,omitempty"`
}

// Count groups entries by day and tag, ordered by day then tag. Colors
// come from the tag table, keyed by title.
func Count(entries []Entry, tags []rules.Tag) []Point {
	colors := make(map[string]string, len(tags))
	for _, t := range tags {
		colors[t.Title] = t.Color
	}

	type key struct {
		day core.Date
		tag string
	}
	index := make(map[key]int)
	var points []Point
	for _, e := range entries {
		k := key{e.Day, e.Tag}
		if i, ok := index[k]; ok {
			points[i].Count++
			continue
		}
		index[k] = len(points)
		points = append(points, Point{Day: e.Day, Tag: e.Tag, Count: 1, Color: colors[e.Tag]})
	}

	sort.Slice(points, func(i, j int) bool {
		if points[i].Day != points[j].Day {
			return points[i].Day.Before(points[j].Day)
		}
		return points[i].Tag < points[j].Tag
	})
	return points
}
