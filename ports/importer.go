package ports

import (
	"context"

	"studykit/domain/study"
)

// ProgressFunc reports finished surveys out of the total.
type ProgressFunc func(done, total int)

// ImportRequest identifies one study on the survey platform.
type ImportRequest struct {
	WorkspaceID    string
	StudyID        string
	QuestionFilter []string
	// ClientID and ClientSecret override the configured credentials
	ClientID     string
	ClientSecret string
	// RawDumpDir, when set, receives the raw JSON payloads
	RawDumpDir string
}

// SurveyImporter downloads a study snapshot from the survey platform
type SurveyImporter interface {
	Import(ctx context.Context, req ImportRequest, progress ProgressFunc) (*study.Data, error)
}
