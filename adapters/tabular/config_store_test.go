package tabular

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"studykit/domain/payment"
	"studykit/domain/rules"
	"studykit/internal/errors"
	"studykit/internal/testkit"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newConfigStore(t *testing.T) (*ConfigStore, string) {
	t.Helper()
	root := t.TempDir()
	require.NoError(t, testkit.WriteStudyConfig(root, "pilot"))
	return NewConfigStore(root), root
}

func TestLoadRulesTagsRiskStudy(t *testing.T) {
	store, _ := newConfigStore(t)
	cfg, err := store.LoadRules(context.Background(), "pilot")
	require.NoError(t, err)

	assert.Len(t, cfg.Workflows, 3)
	assert.Len(t, cfg.Conditions, 10)
	assert.Equal(t, rules.Or, cfg.Workflows[1].Logic)
	assert.Equal(t, "Some risk", cfg.Workflows[1].Name)

	rs, err := rules.Compile(cfg)
	require.NoError(t, err)
	data := testkit.RiskStudy()
	tagged := rs.Run(data.Sessions, data.Responses)

	want := []string{"No risk", "Some risk", "Some risk", "High risk", "High risk"}
	for i, ts := range tagged {
		assert.Equal(t, want[i], ts.SessionTags(), ts.ID)
	}
}

func TestLoadRulesErrors(t *testing.T) {
	store, root := newConfigStore(t)
	ctx := context.Background()
	dir := filepath.Join(root, TaggingDir, "pilot")

	require.NoError(t, os.WriteFile(filepath.Join(dir, "workflows.csv"),
		[]byte("id,workflow_type,logical_operator,tag_id\nwf,1,XOR,tag_no\n"), 0o644))
	_, err := store.LoadRules(ctx, "pilot")
	assert.Equal(t, errors.CodeConfigInvalid, errors.GetCode(err))

	require.NoError(t, os.Remove(filepath.Join(dir, "workflows.csv")))
	_, err = store.LoadRules(ctx, "pilot")
	assert.Equal(t, errors.CodeNotFound, errors.GetCode(err))

	_, err = store.LoadRules(ctx, "other")
	assert.Equal(t, errors.CodeNotFound, errors.GetCode(err))
}

func TestLoadRulesKeepsUnknownOperators(t *testing.T) {
	store, root := newConfigStore(t)
	dir := filepath.Join(root, TaggingDir, "pilot")
	require.NoError(t, os.WriteFile(filepath.Join(dir, "conditions.csv"),
		[]byte("id,group_id,operator,value,skip_behavior\ncond1,grp_no,~=,0,1\n"), 0o644))

	cfg, err := store.LoadRules(context.Background(), "pilot")
	require.NoError(t, err)
	require.Len(t, cfg.Conditions, 1)
	assert.Equal(t, rules.OpInvalid, cfg.Conditions[0].Operator)
	assert.Equal(t, "~=", cfg.Conditions[0].RawOperator)
	assert.True(t, cfg.Conditions[0].SkipAsTrue)
}

func TestPaymentTables(t *testing.T) {
	store, root := newConfigStore(t)
	ctx := context.Background()

	rates, err := store.LoadRates(ctx, "pilot", "")
	require.NoError(t, err)
	require.Len(t, rates, 3)
	assert.Equal(t, payment.Cents(200), rates[0].Amount)
	assert.Equal(t, payment.Cents(100000), rates[1].Amount)

	schemas, err := store.LoadSchemas(ctx, "pilot", "")
	require.NoError(t, err)
	require.Len(t, schemas, 1)
	assert.Equal(t, 5, schemas[0].NumDays)
	assert.Equal(t, "3", schemas[0].BonusRateID)

	dir := filepath.Join(root, PaymentsDir, "pilot")
	require.NoError(t, os.WriteFile(filepath.Join(dir, "schema_v2.csv"),
		[]byte("name,rate_id,num_possible_per_day,num_days,bonus_threshold\nWeekly,1,1,7,\n"), 0o644))
	files, err := store.ListSchemaFiles(ctx, "pilot")
	require.NoError(t, err)
	assert.Equal(t, []string{"schema_v1.csv", "schema_v2.csv"}, files)

	latest, err := store.LoadSchemas(ctx, "pilot", "")
	require.NoError(t, err)
	assert.Equal(t, "Weekly", latest[0].Name, "newest-sorting file is the default")
	assert.Equal(t, 0, latest[0].BonusThreshold, "empty threshold reads as 0")

	_, err = store.LoadSchemas(ctx, "pilot", "../../settings.csv")
	assert.Equal(t, errors.CodeNotFound, errors.GetCode(err))
}

func TestRatesRejectBadAmounts(t *testing.T) {
	store, root := newConfigStore(t)
	dir := filepath.Join(root, PaymentsDir, "pilot")
	require.NoError(t, os.WriteFile(filepath.Join(dir, "rates_v2.csv"),
		[]byte("id,rate,reason\n1,two dollars,EMA\n"), 0o644))

	_, err := store.LoadRates(context.Background(), "pilot", "rates_v2.csv")
	assert.Equal(t, errors.CodeConfigInvalid, errors.GetCode(err))
}

func TestDownloadTables(t *testing.T) {
	store, _ := newConfigStore(t)
	ctx := context.Background()

	aliases, err := store.LoadAliases(ctx, "pilot", "")
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"mw-abc": "ppt-1001", "mw-def": "ppt-1002"}, aliases)

	filter, err := store.LoadQuestionFilter(ctx, "pilot", "")
	require.NoError(t, err)
	assert.Equal(t, []string{"intent", "urge"}, filter)

	_, err = store.LoadAliases(ctx, "other", "")
	assert.Equal(t, errors.CodeNotFound, errors.GetCode(err))
}

func TestSettingsFile(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, testkit.WriteStudyConfig(root, "pilot"))
	settings := NewSettingsFile(filepath.Join(root, "settings.csv"))
	ctx := context.Background()

	pilot, err := settings.StudySettings(ctx, "pilot")
	require.NoError(t, err)
	assert.Equal(t, "ws-1", pilot.WorkspaceID)
	assert.Equal(t, []string{"High risk", "Some risk"}, pilot.DefaultTags)

	_, err = settings.StudySettings(ctx, "example")
	assert.Equal(t, errors.CodeConfigInvalid, errors.GetCode(err))

	_, err = settings.StudySettings(ctx, "missing")
	assert.Equal(t, errors.CodeNotFound, errors.GetCode(err))
}
