package app

import (
	"context"
	"io"

	"studykit/domain/compliance"
	"studykit/domain/core"
	"studykit/domain/payment"
	"studykit/domain/rules"
	"studykit/domain/study"
	"studykit/domain/timeline"
	"studykit/ports"

	"github.com/stretchr/testify/mock"
)

type MockStudyStore struct {
	mock.Mock
}

func (m *MockStudyStore) ListStudies(ctx context.Context) ([]core.StudyName, error) {
	args := m.Called(ctx)
	names, _ := args.Get(0).([]core.StudyName)
	return names, args.Error(1)
}

func (m *MockStudyStore) LoadStudy(ctx context.Context, name core.StudyName) (*study.Data, error) {
	args := m.Called(ctx, name)
	data, _ := args.Get(0).(*study.Data)
	return data, args.Error(1)
}

func (m *MockStudyStore) SaveStudy(ctx context.Context, name core.StudyName, data *study.Data) error {
	return m.Called(ctx, name, data).Error(0)
}

func (m *MockStudyStore) LoadSessions(ctx context.Context, name core.StudyName) ([]study.Session, error) {
	args := m.Called(ctx, name)
	sessions, _ := args.Get(0).([]study.Session)
	return sessions, args.Error(1)
}

func (m *MockStudyStore) SaveSessions(ctx context.Context, name core.StudyName, sessions []study.Session) error {
	return m.Called(ctx, name, sessions).Error(0)
}

func (m *MockStudyStore) LoadTagged(ctx context.Context, name core.StudyName) ([]rules.TaggedSession, error) {
	args := m.Called(ctx, name)
	tagged, _ := args.Get(0).([]rules.TaggedSession)
	return tagged, args.Error(1)
}

func (m *MockStudyStore) SaveTagged(ctx context.Context, name core.StudyName, tagged []rules.TaggedSession) error {
	return m.Called(ctx, name, tagged).Error(0)
}

type MockRuleSource struct {
	mock.Mock
}

func (m *MockRuleSource) LoadRules(ctx context.Context, name core.StudyName) (rules.Config, error) {
	args := m.Called(ctx, name)
	cfg, _ := args.Get(0).(rules.Config)
	return cfg, args.Error(1)
}

func (m *MockRuleSource) LoadTags(ctx context.Context, name core.StudyName) ([]rules.Tag, error) {
	args := m.Called(ctx, name)
	tags, _ := args.Get(0).([]rules.Tag)
	return tags, args.Error(1)
}

type MockPaymentSource struct {
	mock.Mock
}

func (m *MockPaymentSource) ListRateFiles(ctx context.Context, name core.StudyName) ([]string, error) {
	args := m.Called(ctx, name)
	files, _ := args.Get(0).([]string)
	return files, args.Error(1)
}

func (m *MockPaymentSource) ListSchemaFiles(ctx context.Context, name core.StudyName) ([]string, error) {
	args := m.Called(ctx, name)
	files, _ := args.Get(0).([]string)
	return files, args.Error(1)
}

func (m *MockPaymentSource) LoadRates(ctx context.Context, name core.StudyName, file string) ([]payment.Rate, error) {
	args := m.Called(ctx, name, file)
	rates, _ := args.Get(0).([]payment.Rate)
	return rates, args.Error(1)
}

func (m *MockPaymentSource) LoadSchemas(ctx context.Context, name core.StudyName, file string) ([]compliance.Schema, error) {
	args := m.Called(ctx, name, file)
	schemas, _ := args.Get(0).([]compliance.Schema)
	return schemas, args.Error(1)
}

type MockDownloadConfig struct {
	mock.Mock
}

func (m *MockDownloadConfig) LoadAliases(ctx context.Context, name core.StudyName, file string) (map[string]string, error) {
	args := m.Called(ctx, name, file)
	aliases, _ := args.Get(0).(map[string]string)
	return aliases, args.Error(1)
}

func (m *MockDownloadConfig) LoadQuestionFilter(ctx context.Context, name core.StudyName, file string) ([]string, error) {
	args := m.Called(ctx, name, file)
	filter, _ := args.Get(0).([]string)
	return filter, args.Error(1)
}

type MockSettings struct {
	mock.Mock
}

func (m *MockSettings) ListSettings(ctx context.Context) ([]study.Settings, error) {
	args := m.Called(ctx)
	settings, _ := args.Get(0).([]study.Settings)
	return settings, args.Error(1)
}

func (m *MockSettings) StudySettings(ctx context.Context, name core.StudyName) (study.Settings, error) {
	args := m.Called(ctx, name)
	settings, _ := args.Get(0).(study.Settings)
	return settings, args.Error(1)
}

type MockImporter struct {
	mock.Mock
}

func (m *MockImporter) Import(ctx context.Context, req ports.ImportRequest, progress ports.ProgressFunc) (*study.Data, error) {
	args := m.Called(ctx, req)
	if progress != nil {
		progress(1, 1)
	}
	data, _ := args.Get(0).(*study.Data)
	return data, args.Error(1)
}

type MockExporter struct {
	mock.Mock
}

func (m *MockExporter) ExportPaymentReport(w io.Writer, report *payment.Report) error {
	return m.Called(w, report).Error(0)
}

func (m *MockExporter) ExportTimeline(w io.Writer, points []timeline.Point) error {
	return m.Called(w, points).Error(0)
}
