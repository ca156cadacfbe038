package app

import (
	"context"
	"io"
	"time"

	"studykit/domain/core"
	"studykit/domain/rules"
	"studykit/domain/timeline"
	"studykit/internal"
	"studykit/internal/errors"
	"studykit/ports"
)

// TimelineService counts tagged sessions per day and tag
type TimelineService struct {
	store    ports.StudyStore
	rules    ports.RuleSource
	settings ports.SettingsSource
	exporter ports.ReportExporter
	location *time.Location
	now      func() time.Time
	logger   *internal.Logger
}

// TimelineRequest filters a timeline. Nil Tags selects the study's
// default tags; an empty non-nil slice selects every tag.
type TimelineRequest struct {
	Study       core.StudyName
	Range       string
	Participant string
	Tags        []string
	Timezone    string
}

// TimelineResult is the counted timeline plus what the filters offered
type TimelineResult struct {
	Study     core.StudyName   `json:"study"`
	Range     timeline.Range   `json:"range"`
	Timezone  string           `json:"timezone"`
	Available []string         `json:"available_tags"`
	Selected  []string         `json:"selected_tags"`
	Points    []timeline.Point `json:"points"`
	Entries   int              `json:"entries"`
}

// NewTimelineService creates a timeline service; loc is the default display timezone
func NewTimelineService(store ports.StudyStore, source ports.RuleSource, settings ports.SettingsSource,
	exporter ports.ReportExporter, loc *time.Location) *TimelineService {
	if loc == nil {
		loc = time.UTC
	}
	return &TimelineService{
		store:    store,
		rules:    source,
		settings: settings,
		exporter: exporter,
		location: loc,
		now:      time.Now,
		logger:   serviceLogger("timeline"),
	}
}

// Timeline loads tagged sessions and counts them per local day and tag
func (s *TimelineService) Timeline(ctx context.Context, req TimelineRequest) (*TimelineResult, error) {
	rng, err := timeline.ParseRange(req.Range)
	if err != nil {
		return nil, errors.InvalidInput(err.Error())
	}
	loc, err := resolveLocation(req.Timezone, s.location)
	if err != nil {
		return nil, err
	}

	tagged, err := s.store.LoadTagged(ctx, req.Study)
	if err != nil {
		return nil, err
	}

	tags, err := s.rules.LoadTags(ctx, req.Study)
	if err != nil {
		if !errors.HasCode(err, errors.CodeNotFound) {
			return nil, err
		}
		s.logger.Debug("%s: no tag table, timeline has no colors", req.Study)
		tags = []rules.Tag{}
	}

	entries := timeline.Explode(tagged, loc)
	result := &TimelineResult{
		Study:     req.Study,
		Range:     rng,
		Timezone:  loc.String(),
		Available: timeline.AllTags(entries),
		Selected:  req.Tags,
	}
	if result.Selected == nil {
		result.Selected = s.defaultTags(ctx, req.Study)
	}

	filtered := timeline.Filter(entries, timeline.Options{
		Range:       rng,
		Participant: req.Participant,
		Tags:        result.Selected,
		Now:         s.now().In(loc),
	})
	result.Entries = len(filtered)
	result.Points = timeline.Count(filtered, tags)
	if result.Points == nil {
		result.Points = []timeline.Point{}
	}
	return result, nil
}

// Export writes the timeline counts as a workbook
func (s *TimelineService) Export(ctx context.Context, req TimelineRequest, w io.Writer) (*TimelineResult, error) {
	result, err := s.Timeline(ctx, req)
	if err != nil {
		return nil, err
	}
	if err := s.exporter.ExportTimeline(w, result.Points); err != nil {
		return nil, errors.Wrap(err, "export timeline")
	}
	return result, nil
}

func (s *TimelineService) defaultTags(ctx context.Context, name core.StudyName) []string {
	st, err := s.settings.StudySettings(ctx, name)
	if err != nil {
		s.logger.Debug("%s: no default tags (%v)", name, err)
		return []string{}
	}
	if st.DefaultTags == nil {
		return []string{}
	}
	return st.DefaultTags
}
