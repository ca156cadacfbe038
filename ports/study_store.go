package ports

import (
	"context"

	"studykit/domain/core"
	"studykit/domain/rules"
	"studykit/domain/study"
)

// StudyStore defines storage for downloaded and tagged study data
type StudyStore interface {
	// ListStudies returns the studies that have a data directory
	ListStudies(ctx context.Context) ([]core.StudyName, error)

	// Downloaded snapshot: questions, sessions and responses
	LoadStudy(ctx context.Context, name core.StudyName) (*study.Data, error)
	SaveStudy(ctx context.Context, name core.StudyName, data *study.Data) error
	LoadSessions(ctx context.Context, name core.StudyName) ([]study.Session, error)
	SaveSessions(ctx context.Context, name core.StudyName, sessions []study.Session) error

	// Tagging output
	LoadTagged(ctx context.Context, name core.StudyName) ([]rules.TaggedSession, error)
	SaveTagged(ctx context.Context, name core.StudyName, tagged []rules.TaggedSession) error
}
