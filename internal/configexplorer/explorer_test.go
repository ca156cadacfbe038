package configexplorer

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"studykit/adapters/tabular"
	"studykit/internal/errors"
	"studykit/internal/testkit"
)

func TestIdentifyOrder(t *testing.T) {
	tests := []struct {
		headers []string
		want    string
	}{
		{[]string{"metricwire_alias", "within_study_id"}, "alias_config"},
		{[]string{"question_labels"}, "question_filter_config"},
		{[]string{"id", "rate", "reason"}, "rate_config"},
		{[]string{"name", "rate_id", "num_possible_per_day", "num_days", "bonus_threshold", "bonus_rate_id", "schema_type"}, "schema_config"},
		{[]string{"id", "title", "color", "explanation"}, "tag_config"},
		{[]string{"id", "name", "workflow_type", "logical_operator", "tag_id"}, "workflow_config"},
		{[]string{"id", "group_id", "operator", "value", "skip_behavior"}, "condition_config"},
		{[]string{"id", "workflow_id", "name", "logical_operator"}, "group_config"},
		{[]string{"condition_id", "question_name"}, "cond_question_config"},
	}
	for _, tt := range tests {
		tpl, ok := Identify(tt.headers)
		require.True(t, ok, "headers %v", tt.headers)
		assert.Equal(t, tt.want, tpl.Key, "headers %v", tt.headers)
	}

	_, ok := Identify([]string{"foo", "bar"})
	assert.False(t, ok)
}

func TestExplainBuildsExampleAndHTML(t *testing.T) {
	got := Explain([]string{"id", "group_id", "operator", "value"},
		tabular.Row{"id": "c1", "group_id": "g1", "operator": ">=", "value": "5"})
	require.True(t, got.Recognized)
	assert.Equal(t, "condition_config", got.Type)
	assert.Equal(t, "Condition **c1** belongs to Group g1 and checks if a response is `>= 5`.", got.Example)
	assert.Contains(t, got.HTML, "<h4")
	assert.Contains(t, got.HTML, "<strong>c1</strong>")
	assert.Contains(t, got.HTML, "<code>&gt;= 5</code>")

	empty := Explain([]string{"id", "rate", "reason"}, nil)
	assert.Equal(t, "N/A", empty.Example)

	unknown := Explain([]string{"x"}, tabular.Row{"x": "1"})
	assert.False(t, unknown.Recognized)
	assert.Contains(t, unknown.Markdown, "Unrecognized")
}

func TestExplainDropsUnsafeLinks(t *testing.T) {
	got := Explain([]string{"id", "group_id", "operator", "value"},
		tabular.Row{"id": "c1", "group_id": "[x](javascript:alert(1))", "operator": "==", "value": "<script>1</script>"})
	require.True(t, got.Recognized)
	assert.NotContains(t, got.HTML, `href="javascript`)
	assert.NotContains(t, got.HTML, "<script>")
}

func TestSchemaExampleBonus(t *testing.T) {
	headers := []string{"name", "rate_id", "num_days", "schema_type", "bonus_rate_id", "bonus_threshold"}
	with := Explain(headers, tabular.Row{"name": "ema", "rate_id": "1", "num_days": "14", "bonus_rate_id": "2", "bonus_threshold": "3.0"})
	assert.Contains(t, with.Example, "threshold of **3** activities")

	without := Explain(headers, tabular.Row{"name": "ema", "rate_id": "1", "num_days": "14"})
	assert.Contains(t, without.Example, "has no associated bonus")
}

func TestWorkflowExampleUsesLogic(t *testing.T) {
	headers := []string{"id", "workflow_type", "logical_operator", "tag_id"}
	or := Explain(headers, tabular.Row{"id": "wf1", "workflow_type": "1", "logical_operator": "or", "tag_id": "t1"})
	assert.Contains(t, or.Example, "when any of its condition groups")
	and := Explain(headers, tabular.Row{"id": "wf1", "workflow_type": "1", "logical_operator": "AND", "tag_id": "t1"})
	assert.Contains(t, and.Example, "when all of its condition groups")
}

func TestSaveListDescribe(t *testing.T) {
	root := t.TempDir()
	ex := New(tabular.NewConfigStore(root))

	body := []byte(testkit.RiskTaggingConfig["conditions.csv"])
	saved, err := ex.Save("Tagging", "pilot", "conditions.csv", body)
	require.NoError(t, err)
	assert.False(t, saved.Overwrote)
	assert.Equal(t, filepath.Join(root, "tagging", "pilot", "conditions.csv"), saved.Path)
	assert.Equal(t, "condition_config", saved.Explanation.Type)

	again, err := ex.Save("tagging", "pilot", "conditions.csv", body)
	require.NoError(t, err)
	assert.True(t, again.Overwrote)

	_, err = ex.Save("payments", "pilot", "rates_v1.csv", []byte("id,rate,reason\n1,$2.00,ema\n"))
	require.NoError(t, err)

	files, err := ex.List("pilot")
	require.NoError(t, err)
	require.Len(t, files, 2)
	assert.Equal(t, "tagging", files[0].Workflow)
	assert.Equal(t, "payments", files[1].Workflow)
	assert.Positive(t, files[1].Size)

	d, err := ex.Describe("payments", "pilot", "rates_v1.csv")
	require.NoError(t, err)
	assert.Equal(t, "rate_config", d.Explanation.Type)
	assert.Len(t, d.Preview, 1)

	raw, err := ex.Read("payments", "pilot", "rates_v1.csv")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(raw), "id,rate,reason"))
}

func TestSaveRejectsTraversal(t *testing.T) {
	root := t.TempDir()
	ex := New(tabular.NewConfigStore(root))
	body := []byte("id,rate,reason\n1,$2.00,ema\n")

	for _, name := range []string{"../escape.csv", "..", "sub/dir.csv", `..\x.csv`, ".hidden.csv", "notes.txt", ""} {
		_, err := ex.Save("payments", "pilot", name, body)
		assert.True(t, errors.HasCode(err, errors.CodeInvalidInput), "name %q: %v", name, err)
	}
	_, err := ex.Save("payments", "../other", "rates.csv", body)
	assert.True(t, errors.HasCode(err, errors.CodeInvalidInput))
	_, err = ex.Save("reports", "pilot", "rates.csv", body)
	assert.True(t, errors.HasCode(err, errors.CodeInvalidInput))

	_, err = ex.Describe("payments", "pilot", "../../etc/passwd")
	assert.True(t, errors.HasCode(err, errors.CodeNotFound))

	entries, err := os.ReadDir(root)
	require.NoError(t, err)
	assert.Empty(t, entries, "nothing may be written for rejected uploads")
}
