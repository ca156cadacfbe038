package study

import "strings"

// ExampleStudyID is the placeholder id shipped in the sample settings file.
const ExampleStudyID = "621920605978cd435ce7cf72"

// Settings is one row of settings.csv.
type Settings struct {
	StudyName   string   `json:"study_name"`
	WorkspaceID string   `json:"mw_workspace_id"`
	StudyID     string   `json:"mw_study_id"`
	DefaultTags []string `json:"default_tags"`
}

// IsExample reports whether the row still carries the placeholder study id.
func (s Settings) IsExample() bool {
	return strings.TrimSpace(s.StudyID) == ExampleStudyID
}

// ParseDefaultTags splits a "|"-separated default_tags cell.
func ParseDefaultTags(cell string) []string {
	var tags []string
	for _, t := range strings.Split(cell, "|") {
		if t = strings.TrimSpace(t); t != "" {
			tags = append(tags, t)
		}
	}
	return tags
}
