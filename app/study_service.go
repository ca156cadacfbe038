package app

import (
	"context"
	"sort"

	"studykit/domain/core"
	"studykit/internal/errors"
	"studykit/ports"
)

// StudySummary is one entry of the study picker
type StudySummary struct {
	Name       core.StudyName `json:"name"`
	Configured bool           `json:"configured"`
	Downloaded bool           `json:"downloaded"`
}

// StudyService lists studies known to settings.csv or present under data/
type StudyService struct {
	store    ports.StudyStore
	settings ports.SettingsSource
}

// NewStudyService creates a study service
func NewStudyService(store ports.StudyStore, settings ports.SettingsSource) *StudyService {
	return &StudyService{store: store, settings: settings}
}

// List merges configured and downloaded studies, sorted by name
func (s *StudyService) List(ctx context.Context) ([]StudySummary, error) {
	byName := make(map[core.StudyName]*StudySummary)
	entry := func(name core.StudyName) *StudySummary {
		if e, ok := byName[name]; ok {
			return e
		}
		e := &StudySummary{Name: name}
		byName[name] = e
		return e
	}

	configured, err := s.settings.ListSettings(ctx)
	if err != nil && !errors.HasCode(err, errors.CodeNotFound) {
		return nil, err
	}
	for _, st := range configured {
		if st.IsExample() || st.StudyName == "" {
			continue
		}
		entry(core.StudyName(st.StudyName)).Configured = true
	}

	downloaded, err := s.store.ListStudies(ctx)
	if err != nil {
		return nil, err
	}
	for _, name := range downloaded {
		entry(name).Downloaded = true
	}

	out := make([]StudySummary, 0, len(byName))
	for _, e := range byName {
		out = append(out, *e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}
