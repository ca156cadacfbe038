package ports

import (
	"context"

	"studykit/domain/compliance"
	"studykit/domain/core"
	"studykit/domain/payment"
	"studykit/domain/rules"
	"studykit/domain/study"
)

// RuleSource loads the tagging tables of a study
type RuleSource interface {
	LoadRules(ctx context.Context, name core.StudyName) (rules.Config, error)
	LoadTags(ctx context.Context, name core.StudyName) ([]rules.Tag, error)
}

// PaymentSource loads rate and schema tables. An empty file name selects
// the newest-sorting candidate.
type PaymentSource interface {
	ListRateFiles(ctx context.Context, name core.StudyName) ([]string, error)
	ListSchemaFiles(ctx context.Context, name core.StudyName) ([]string, error)
	LoadRates(ctx context.Context, name core.StudyName, file string) ([]payment.Rate, error)
	LoadSchemas(ctx context.Context, name core.StudyName, file string) ([]compliance.Schema, error)
}

// DownloadConfigSource loads the alias map and question filter used by
// imports. An empty file name selects the newest-sorting candidate.
type DownloadConfigSource interface {
	LoadAliases(ctx context.Context, name core.StudyName, file string) (map[string]string, error)
	LoadQuestionFilter(ctx context.Context, name core.StudyName, file string) ([]string, error)
}

// SettingsSource reads settings.csv
type SettingsSource interface {
	ListSettings(ctx context.Context) ([]study.Settings, error)
	StudySettings(ctx context.Context, name core.StudyName) (study.Settings, error)
}
