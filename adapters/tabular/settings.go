package tabular

import (
	"context"
	"fmt"

	"studykit/domain/core"
	"studykit/domain/study"
	"studykit/internal/errors"
)

// SettingsFile reads settings.csv.
type SettingsFile struct {
	path string
}

// NewSettingsFile creates a reader for the settings table at path.
func NewSettingsFile(path string) *SettingsFile {
	return &SettingsFile{path: path}
}

// ListSettings returns every row.
func (s *SettingsFile) ListSettings(ctx context.Context) ([]study.Settings, error) {
	t, err := ReadTable(s.path)
	if err != nil {
		return nil, err
	}
	if err := t.Require("study_name", "mw_workspace_id", "mw_study_id"); err != nil {
		return nil, err
	}
	settings := make([]study.Settings, 0, len(t.Rows))
	for _, row := range t.Rows {
		settings = append(settings, study.Settings{
			StudyName:   row.Get("study_name"),
			WorkspaceID: row.Get("mw_workspace_id"),
			StudyID:     row.Get("mw_study_id"),
			DefaultTags: study.ParseDefaultTags(row.Get("default_tags")),
		})
	}
	return settings, nil
}

// StudySettings returns the row for one study. Rows still carrying the
// example study id are rejected.
func (s *SettingsFile) StudySettings(ctx context.Context, name core.StudyName) (study.Settings, error) {
	all, err := s.ListSettings(ctx)
	if err != nil {
		return study.Settings{}, err
	}
	for _, st := range all {
		if st.StudyName != name.String() {
			continue
		}
		if st.IsExample() {
			return study.Settings{}, errors.ConfigInvalid(fmt.Sprintf(
				"study %s still uses the example MetricWire study id; update %s", name, s.path))
		}
		return st, nil
	}
	return study.Settings{}, errors.NotFound(fmt.Sprintf("study %s in %s", name, s.path))
}
