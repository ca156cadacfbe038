package app

import (
	"bytes"
	"context"
	"testing"
	"time"

	"studykit/domain/compliance"
	"studykit/domain/core"
	"studykit/domain/payment"
	"studykit/domain/rules"
	"studykit/domain/study"
	"studykit/domain/timeline"
	"studykit/internal/errors"
	"studykit/internal/testkit"
	"studykit/ports"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

const pilot = core.StudyName("pilot")

func TestImportServiceAppliesAliasesAndSaves(t *testing.T) {
	ctx := context.Background()
	importer := new(MockImporter)
	store := new(MockStudyStore)
	downloads := new(MockDownloadConfig)
	settings := new(MockSettings)

	data := testkit.RiskStudy()
	settings.On("StudySettings", ctx, pilot).Return(study.Settings{StudyName: "pilot", WorkspaceID: "ws1", StudyID: "st1"}, nil)
	downloads.On("LoadQuestionFilter", ctx, pilot, "").Return([]string{"intent", "urge"}, nil)
	downloads.On("LoadAliases", ctx, pilot, "").Return(map[string]string{"mw-abc": "ppt-2002"}, nil)
	importer.On("Import", ctx, mock.MatchedBy(func(req ports.ImportRequest) bool {
		return req.WorkspaceID == "ws1" && req.StudyID == "st1" &&
			len(req.QuestionFilter) == 2 && req.ClientID == "id" &&
			req.RawDumpDir == "data/pilot/raw_json"
	})).Return(data, nil)
	store.On("SaveStudy", ctx, pilot, mock.MatchedBy(func(d *study.Data) bool {
		for _, s := range d.Sessions {
			if s.ParticipantID != "ppt-2002" {
				return false
			}
		}
		return len(d.Sessions) == 5
	})).Return(nil)

	svc := NewImportService(importer, store, downloads, settings, "data", false)
	var completed core.StudyName
	svc.OnComplete = func(name core.StudyName) { completed = name }

	var progressCalls int
	result, err := svc.Download(ctx, DownloadRequest{Study: pilot, ClientID: "id", ClientSecret: "secret", DumpJSON: true},
		func(done, total int) { progressCalls++ })
	require.NoError(t, err)

	assert.Equal(t, 5, result.Sessions)
	assert.Equal(t, 10, result.Responses)
	assert.Equal(t, 2, result.Questions)
	assert.Equal(t, 5, result.AliasesMatched)
	assert.Empty(t, result.Warnings)
	assert.Equal(t, pilot, completed)
	assert.Equal(t, 1, progressCalls)
	store.AssertExpectations(t)
	importer.AssertExpectations(t)
}

func TestImportServiceWarnsOnMissingDownloadConfig(t *testing.T) {
	ctx := context.Background()
	importer := new(MockImporter)
	store := new(MockStudyStore)
	downloads := new(MockDownloadConfig)
	settings := new(MockSettings)

	data := testkit.RiskStudy()
	settings.On("StudySettings", ctx, pilot).Return(study.Settings{WorkspaceID: "ws1", StudyID: "st1"}, nil)
	downloads.On("LoadQuestionFilter", ctx, pilot, "").Return(nil, errors.NotFound("question filter"))
	downloads.On("LoadAliases", ctx, pilot, "").Return(nil, errors.NotFound("alias map"))
	importer.On("Import", ctx, mock.MatchedBy(func(req ports.ImportRequest) bool {
		return len(req.QuestionFilter) == 0 && req.RawDumpDir == ""
	})).Return(data, nil)
	store.On("SaveStudy", ctx, pilot, data).Return(nil)

	svc := NewImportService(importer, store, downloads, settings, "data", false)
	result, err := svc.Download(ctx, DownloadRequest{Study: pilot}, nil)
	require.NoError(t, err)
	assert.Len(t, result.Warnings, 2)
	assert.Zero(t, result.AliasesMatched)
	assert.Equal(t, "ppt-1001", data.Sessions[0].ParticipantID, "sessions keep their ids when no alias map exists")
}

func TestImportServiceStopsOnSettingsError(t *testing.T) {
	ctx := context.Background()
	importer := new(MockImporter)
	settings := new(MockSettings)
	settings.On("StudySettings", ctx, pilot).Return(study.Settings{}, errors.ConfigInvalid("example study id"))

	svc := NewImportService(importer, new(MockStudyStore), new(MockDownloadConfig), settings, "data", false)
	_, err := svc.Download(ctx, DownloadRequest{Study: pilot}, nil)
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, errors.CodeConfigInvalid))
	importer.AssertNotCalled(t, "Import", mock.Anything, mock.Anything)
}

func highUrgeRules() rules.Config {
	return rules.Config{
		Workflows:  []rules.Workflow{{ID: "wf1", Type: rules.WorkflowTagSession, Logic: rules.Or, TagID: "tag_high"}},
		Groups:     []rules.Group{{ID: "g1", WorkflowID: "wf1", Logic: rules.And}},
		Conditions: []rules.Condition{{ID: "c1", GroupID: "g1", Operator: rules.OpGreaterEqual, RawOperator: ">=", Value: "5"}},
		Links:      []rules.QuestionLink{{ConditionID: "c1", QuestionName: "urge"}},
		Tags:       []rules.Tag{{ID: "tag_high", Title: "High urge", Color: "#ff0000"}},
	}
}

func TestTaggingServiceTagsAndSaves(t *testing.T) {
	ctx := context.Background()
	store := new(MockStudyStore)
	source := new(MockRuleSource)

	source.On("LoadRules", ctx, pilot).Return(highUrgeRules(), nil)
	store.On("LoadStudy", ctx, pilot).Return(testkit.RiskStudy(), nil)
	store.On("SaveTagged", ctx, pilot, mock.AnythingOfType("[]rules.TaggedSession")).Return(nil)

	result, err := NewTaggingService(store, source).Tag(ctx, pilot)
	require.NoError(t, err)

	assert.NotEmpty(t, result.RunID)
	assert.Equal(t, 5, result.Sessions)
	assert.Equal(t, 2, result.Tagged)
	assert.Equal(t, []TagCount{{Tag: "High urge", Count: 2}}, result.Counts)

	saved := store.Calls[1].Arguments.Get(2).([]rules.TaggedSession)
	require.Len(t, saved, 5)
	assert.Equal(t, []string{"High urge"}, saved[1].Tags)
	assert.Empty(t, saved[0].Tags)
}

func TestTaggingServiceRejectsDuplicateTags(t *testing.T) {
	ctx := context.Background()
	store := new(MockStudyStore)
	source := new(MockRuleSource)

	cfg := highUrgeRules()
	cfg.Tags = append(cfg.Tags, rules.Tag{ID: "tag_high", Title: "again"})
	source.On("LoadRules", ctx, pilot).Return(cfg, nil)

	_, err := NewTaggingService(store, source).Tag(ctx, pilot)
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, errors.CodeConfigInvalid))
	store.AssertNotCalled(t, "LoadStudy", mock.Anything, mock.Anything)
}

func TestSortedCounts(t *testing.T) {
	got := sortedCounts(map[string]int{"b": 2, "a": 2, "c": 5})
	assert.Equal(t, []TagCount{{"c", 5}, {"a", 2}, {"b", 2}}, got)
}

func paymentFixture() (*MockStudyStore, *MockPaymentSource) {
	sessions := testkit.RiskStudy().Sessions
	sessions = append(sessions, study.Session{
		ID: "other", ParticipantID: "ppt-1002", SurveyName: "Completed an EMA survey",
		StartedAt: time.Date(2025, time.May, 1, 9, 0, 0, 0, time.UTC),
	})
	store := new(MockStudyStore)
	store.On("LoadSessions", mock.Anything, pilot).Return(sessions, nil)

	source := new(MockPaymentSource)
	source.On("LoadRates", mock.Anything, pilot, "").Return([]payment.Rate{{ID: "1", Reason: "ema survey", Amount: 200}}, nil)
	source.On("LoadSchemas", mock.Anything, pilot, "").Return([]compliance.Schema{{Name: "ema", RateID: "1", PossiblePerDay: 1, NumDays: 5}}, nil)
	return store, source
}

func TestPaymentServiceReport(t *testing.T) {
	store, source := paymentFixture()
	svc := NewPaymentService(store, source, new(MockExporter), time.UTC)
	svc.now = func() time.Time { return time.Date(2025, time.May, 10, 0, 0, 0, 0, time.UTC) }

	report, err := svc.Report(context.Background(), PaymentRequest{
		Study:       pilot,
		Participant: "1001",
		Start:       core.NewDate(2025, time.May, 1),
	})
	require.NoError(t, err)

	assert.Equal(t, "ppt-1001", report.Participant)
	assert.Equal(t, 5, report.Sessions)
	require.Len(t, report.Schemas, 1)
	assert.Equal(t, 5, report.Schemas[0].Stats.Completed)
	assert.Equal(t, payment.Cents(1000), report.Compensation.GrandTotal)
	assert.Empty(t, report.Warnings)
}

func TestPaymentServiceParticipantMatching(t *testing.T) {
	store, source := paymentFixture()
	svc := NewPaymentService(store, source, new(MockExporter), time.UTC)
	ctx := context.Background()
	start := core.NewDate(2025, time.May, 1)

	_, err := svc.Report(ctx, PaymentRequest{Study: pilot, Participant: "PPT", Start: start})
	assert.True(t, errors.HasCode(err, errors.CodeInvalidInput), "ambiguous match: %v", err)

	_, err = svc.Report(ctx, PaymentRequest{Study: pilot, Participant: "9999", Start: start})
	assert.True(t, errors.HasCode(err, errors.CodeNotFound), "no match: %v", err)

	_, err = svc.Report(ctx, PaymentRequest{Study: pilot, Participant: "1001"})
	assert.True(t, errors.HasCode(err, errors.CodeInvalidInput), "missing start: %v", err)

	_, err = svc.Report(ctx, PaymentRequest{Study: pilot, Participant: "1001", Start: start, Timezone: "Mars/Olympus"})
	assert.True(t, errors.HasCode(err, errors.CodeInvalidInput), "bad timezone: %v", err)

	ids, err := svc.Participants(ctx, pilot)
	require.NoError(t, err)
	assert.Equal(t, []string{"ppt-1001", "ppt-1002"}, ids)
}

func TestPaymentServiceExport(t *testing.T) {
	store, source := paymentFixture()
	exporter := new(MockExporter)
	var buf bytes.Buffer
	exporter.On("ExportPaymentReport", &buf, mock.AnythingOfType("*payment.Report")).Return(nil)

	svc := NewPaymentService(store, source, exporter, time.UTC)
	_, err := svc.Export(context.Background(), PaymentRequest{Study: pilot, Participant: "ppt-1001", Start: core.NewDate(2025, time.May, 1)}, &buf)
	require.NoError(t, err)
	exporter.AssertExpectations(t)
}

func taggedFixture() []rules.TaggedSession {
	day := func(d int) time.Time { return time.Date(2025, time.May, d, 12, 0, 0, 0, time.UTC) }
	return []rules.TaggedSession{
		{Session: study.Session{ID: "s1", ParticipantID: "ppt-1001", StartedAt: day(1)}, Tags: []string{"High", "Low"}},
		{Session: study.Session{ID: "s2", ParticipantID: "ppt-1002", StartedAt: day(2)}, Tags: []string{"High"}},
		{Session: study.Session{ID: "s3", ParticipantID: "ppt-1002", StartedAt: day(2)}},
	}
}

func newTimelineFixture(t *testing.T, tagsErr error) *TimelineService {
	t.Helper()
	store := new(MockStudyStore)
	store.On("LoadTagged", mock.Anything, pilot).Return(taggedFixture(), nil)
	source := new(MockRuleSource)
	if tagsErr != nil {
		source.On("LoadTags", mock.Anything, pilot).Return(nil, tagsErr)
	} else {
		source.On("LoadTags", mock.Anything, pilot).Return([]rules.Tag{{ID: "1", Title: "High", Color: "red"}}, nil)
	}
	settings := new(MockSettings)
	settings.On("StudySettings", mock.Anything, pilot).Return(study.Settings{DefaultTags: []string{"High"}}, nil)

	svc := NewTimelineService(store, source, settings, new(MockExporter), time.UTC)
	svc.now = func() time.Time { return time.Date(2025, time.May, 3, 0, 0, 0, 0, time.UTC) }
	return svc
}

func TestTimelineServiceUsesDefaultTags(t *testing.T) {
	svc := newTimelineFixture(t, nil)
	result, err := svc.Timeline(context.Background(), TimelineRequest{Study: pilot})
	require.NoError(t, err)

	assert.Equal(t, timeline.RangeAll, result.Range)
	assert.Equal(t, []string{"High"}, result.Selected)
	assert.Equal(t, []string{"High", "Low"}, result.Available)
	require.Len(t, result.Points, 2)
	assert.Equal(t, "2025-05-01", result.Points[0].Day.String())
	assert.Equal(t, "red", result.Points[0].Color)
}

func TestTimelineServiceFilters(t *testing.T) {
	svc := newTimelineFixture(t, errors.NotFound("tags.csv"))
	ctx := context.Background()

	all, err := svc.Timeline(ctx, TimelineRequest{Study: pilot, Tags: []string{}})
	require.NoError(t, err)
	assert.Len(t, all.Points, 3)
	assert.Empty(t, all.Points[0].Color)

	one, err := svc.Timeline(ctx, TimelineRequest{Study: pilot, Tags: []string{}, Participant: "1002"})
	require.NoError(t, err)
	require.Len(t, one.Points, 1)
	assert.Equal(t, "2025-05-02", one.Points[0].Day.String())

	_, err = svc.Timeline(ctx, TimelineRequest{Study: pilot, Range: "decade"})
	assert.True(t, errors.HasCode(err, errors.CodeInvalidInput))
}

func TestStudyServiceMergesSources(t *testing.T) {
	store := new(MockStudyStore)
	settings := new(MockSettings)
	settings.On("ListSettings", mock.Anything).Return([]study.Settings{
		{StudyName: "pilot", StudyID: "abc"},
		{StudyName: "example", StudyID: study.ExampleStudyID},
		{StudyName: "main", StudyID: "def"},
	}, nil)
	store.On("ListStudies", mock.Anything).Return([]core.StudyName{"pilot", "legacy"}, nil)

	got, err := NewStudyService(store, settings).List(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []StudySummary{
		{Name: "legacy", Downloaded: true},
		{Name: "main", Configured: true},
		{Name: "pilot", Configured: true, Downloaded: true},
	}, got)
}
