package app

import (
	"context"
	stderrors "errors"
	"sort"
	"time"

	"studykit/domain/core"
	"studykit/domain/rules"
	"studykit/internal"
	"studykit/internal/errors"
	"studykit/ports"
)

// TaggingService runs a study's rule tables over its downloaded sessions
type TaggingService struct {
	store  ports.StudyStore
	rules  ports.RuleSource
	logger *internal.Logger
}

// TagCount is the number of sessions carrying one tag
type TagCount struct {
	Tag   string `json:"tag"`
	Count int    `json:"count"`
}

// TaggingResult summarizes one tagging pass
type TaggingResult struct {
	RunID     core.RunID     `json:"run_id"`
	Study     core.StudyName `json:"study"`
	Sessions  int            `json:"sessions"`
	Tagged    int            `json:"tagged"`
	Counts    []TagCount     `json:"counts"`
	Warnings  []string       `json:"warnings,omitempty"`
	RuntimeMs int64          `json:"runtime_ms"`
}

// NewTaggingService creates a tagging service
func NewTaggingService(store ports.StudyStore, source ports.RuleSource) *TaggingService {
	return &TaggingService{
		store:  store,
		rules:  source,
		logger: serviceLogger("tagging"),
	}
}

// Tag compiles the rule tables, tags every session and saves tagged_sessions.csv
func (s *TaggingService) Tag(ctx context.Context, name core.StudyName) (*TaggingResult, error) {
	start := time.Now()
	result := &TaggingResult{RunID: core.NewRunID(), Study: name}

	cfg, err := s.rules.LoadRules(ctx, name)
	if err != nil {
		return nil, err
	}
	rs, err := rules.Compile(cfg)
	if err != nil {
		if stderrors.Is(err, rules.ErrUnknownTag) || stderrors.Is(err, rules.ErrDuplicateTag) {
			return nil, errors.WithCode(errors.CodeConfigInvalid, err)
		}
		return nil, err
	}
	for _, w := range rs.Warnings {
		s.logger.Warn("%s %s: %s", result.RunID, name, w)
	}
	result.Warnings = rs.Warnings

	data, err := s.store.LoadStudy(ctx, name)
	if err != nil {
		return nil, err
	}

	tagged := rs.Run(data.Sessions, data.Responses)
	if err := s.store.SaveTagged(ctx, name, tagged); err != nil {
		return nil, errors.Wrapf(err, "save tagged sessions for %s", name)
	}

	result.Sessions = len(tagged)
	for _, t := range tagged {
		if len(t.Tags) > 0 {
			result.Tagged++
		}
	}
	result.Counts = sortedCounts(rules.CountTags(tagged))
	result.RuntimeMs = time.Since(start).Milliseconds()
	s.logger.Info("%s %s: tagged %d of %d sessions with %d workflows in %dms",
		result.RunID, name, result.Tagged, result.Sessions, len(rs.Workflows), result.RuntimeMs)
	return result, nil
}

// sortedCounts orders tag counts by count descending, then title.
func sortedCounts(counts map[string]int) []TagCount {
	out := make([]TagCount, 0, len(counts))
	for tag, n := range counts {
		out = append(out, TagCount{Tag: tag, Count: n})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Tag < out[j].Tag
	})
	return out
}
