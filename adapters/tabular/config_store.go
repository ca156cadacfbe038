package tabular

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"studykit/domain/compliance"
	"studykit/domain/core"
	"studykit/domain/payment"
	"studykit/domain/rules"
	"studykit/internal/errors"
)

// Workflow directories under the config root.
const (
	DownloadDir = "download"
	TaggingDir  = "tagging"
	PaymentsDir = "payments"
)

// ConfigStore reads the per-study configuration tables under
// config/{download,tagging,payments}/<study>/.
type ConfigStore struct {
	root string
}

// NewConfigStore creates a config store rooted at configRoot.
func NewConfigStore(configRoot string) *ConfigStore {
	return &ConfigStore{root: configRoot}
}

// Dir returns config/<workflow>/<study>.
func (c *ConfigStore) Dir(workflow string, name core.StudyName) string {
	return filepath.Join(c.root, workflow, name.String())
}

// ListFiles returns the table files (csv or xlsx) in a workflow directory,
// sorted by name.
func (c *ConfigStore) ListFiles(workflow string, name core.StudyName) ([]string, error) {
	entries, err := os.ReadDir(c.Dir(workflow, name))
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to list %s config: %w", workflow, err)
	}
	var files []string
	for _, e := range entries {
		if e.IsDir() || strings.HasPrefix(e.Name(), ".") {
			continue
		}
		ext := strings.ToLower(filepath.Ext(e.Name()))
		if ext == ".csv" || ext == ".xlsx" {
			files = append(files, e.Name())
		}
	}
	sort.Strings(files)
	return files, nil
}

// filesMatching keeps files whose lower-cased name satisfies match. With
// fallback set, no match returns every file.
func filesMatching(files []string, fallback bool, match func(string) bool) []string {
	var out []string
	for _, f := range files {
		if match(strings.ToLower(f)) {
			out = append(out, f)
		}
	}
	if len(out) == 0 && fallback {
		return files
	}
	return out
}

// pick returns file if it is a candidate, or the newest-sorting candidate
// when file is empty.
func pick(candidates []string, file, what string) (string, error) {
	if len(candidates) == 0 {
		return "", errors.NotFound(what + " config")
	}
	if file == "" {
		return candidates[len(candidates)-1], nil
	}
	for _, c := range candidates {
		if c == file {
			return c, nil
		}
	}
	return "", errors.NotFound(fmt.Sprintf("%s config %q", what, file))
}

// ---- tagging ----

var (
	workflowsTable  = "workflows"
	groupsTable     = "condition_groups"
	conditionsTable = "conditions"
	linksTable      = "condition_questions"
	tagsTable       = "tags"
)

// findTable resolves <base>.csv, then <base>.xlsx.
func (c *ConfigStore) findTable(workflow string, name core.StudyName, base string) (*Table, error) {
	dir := c.Dir(workflow, name)
	for _, ext := range []string{".csv", ".xlsx"} {
		path := filepath.Join(dir, base+ext)
		if _, err := os.Stat(path); err == nil {
			return ReadTable(path)
		}
	}
	return nil, errors.NotFound(fmt.Sprintf("%s table for study %s", base, name))
}

// LoadRules reads the five tagging tables.
func (c *ConfigStore) LoadRules(ctx context.Context, name core.StudyName) (rules.Config, error) {
	var cfg rules.Config

	t, err := c.findTable(TaggingDir, name, workflowsTable)
	if err != nil {
		return cfg, err
	}
	if err := t.Require("id", "workflow_type", "logical_operator", "tag_id"); err != nil {
		return cfg, err
	}
	for i, row := range t.Rows {
		logic, err := rules.ParseLogicalOperator(row.Get("logical_operator"))
		if err != nil {
			return cfg, rowError(t, i, err)
		}
		cfg.Workflows = append(cfg.Workflows, rules.Workflow{
			ID:    row.Get("id"),
			Name:  row.Get("name"),
			Type:  row.Get("workflow_type"),
			Logic: logic,
			TagID: row.Get("tag_id"),
		})
	}

	if t, err = c.findTable(TaggingDir, name, groupsTable); err != nil {
		return cfg, err
	}
	if err := t.Require("id", "workflow_id", "logical_operator"); err != nil {
		return cfg, err
	}
	for i, row := range t.Rows {
		logic, err := rules.ParseLogicalOperator(row.Get("logical_operator"))
		if err != nil {
			return cfg, rowError(t, i, err)
		}
		cfg.Groups = append(cfg.Groups, rules.Group{
			ID:         row.Get("id"),
			WorkflowID: row.Get("workflow_id"),
			Name:       row.Get("name"),
			Logic:      logic,
		})
	}

	if t, err = c.findTable(TaggingDir, name, conditionsTable); err != nil {
		return cfg, err
	}
	if err := t.Require("id", "group_id", "operator", "value", "skip_behavior"); err != nil {
		return cfg, err
	}
	for _, row := range t.Rows {
		raw := row.Get("operator")
		// unknown operators are kept and reported as compile warnings
		op, _ := rules.ParseOperator(raw)
		cfg.Conditions = append(cfg.Conditions, rules.Condition{
			ID:          row.Get("id"),
			GroupID:     row.Get("group_id"),
			Operator:    op,
			RawOperator: raw,
			Value:       row.Raw("value"),
			SkipAsTrue:  row.Get("skip_behavior") == rules.SkipAsTrue,
		})
	}

	if t, err = c.findTable(TaggingDir, name, linksTable); err != nil {
		return cfg, err
	}
	if err := t.Require("condition_id", "question_name"); err != nil {
		return cfg, err
	}
	for _, row := range t.Rows {
		cfg.Links = append(cfg.Links, rules.QuestionLink{
			ConditionID:  row.Get("condition_id"),
			QuestionName: row.Get("question_name"),
		})
	}

	if cfg.Tags, err = c.LoadTags(ctx, name); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// LoadTags reads tags.csv.
func (c *ConfigStore) LoadTags(ctx context.Context, name core.StudyName) ([]rules.Tag, error) {
	t, err := c.findTable(TaggingDir, name, tagsTable)
	if err != nil {
		return nil, err
	}
	if err := t.Require("id", "title", "color"); err != nil {
		return nil, err
	}
	tags := make([]rules.Tag, 0, len(t.Rows))
	for _, row := range t.Rows {
		tags = append(tags, rules.Tag{
			ID:          row.Get("id"),
			Title:       row.Get("title"),
			Color:       row.Get("color"),
			Explanation: row.Get("explanation"),
		})
	}
	return tags, nil
}

func rowError(t *Table, i int, err error) error {
	return errors.Wrapf(errors.ConfigInvalid(err.Error()), "%s row %d", t.Name, i+2)
}

// ---- payments ----

func prefixed(prefix string) func(string) bool {
	return func(name string) bool { return strings.HasPrefix(name, prefix) }
}

// ListRateFiles returns rates*.csv / rates*.xlsx.
func (c *ConfigStore) ListRateFiles(ctx context.Context, name core.StudyName) ([]string, error) {
	files, err := c.ListFiles(PaymentsDir, name)
	if err != nil {
		return nil, err
	}
	return filesMatching(files, false, prefixed("rates")), nil
}

// ListSchemaFiles returns schema*.csv / schema*.xlsx.
func (c *ConfigStore) ListSchemaFiles(ctx context.Context, name core.StudyName) ([]string, error) {
	files, err := c.ListFiles(PaymentsDir, name)
	if err != nil {
		return nil, err
	}
	return filesMatching(files, false, prefixed("schema")), nil
}

// LoadRates reads a rate table. Amounts such as "$1,250.00" are accepted.
func (c *ConfigStore) LoadRates(ctx context.Context, name core.StudyName, file string) ([]payment.Rate, error) {
	files, err := c.ListRateFiles(ctx, name)
	if err != nil {
		return nil, err
	}
	if file, err = pick(files, file, "rate"); err != nil {
		return nil, err
	}
	t, err := ReadTable(filepath.Join(c.Dir(PaymentsDir, name), file))
	if err != nil {
		return nil, err
	}
	if err := t.Require("id", "rate", "reason"); err != nil {
		return nil, err
	}
	rates := make([]payment.Rate, 0, len(t.Rows))
	for i, row := range t.Rows {
		amount, err := payment.ParseAmount(row.Get("rate"))
		if err != nil {
			return nil, rowError(t, i, err)
		}
		rates = append(rates, payment.Rate{
			ID:     row.Get("id"),
			Reason: row.Get("reason"),
			Amount: amount,
		})
	}
	return rates, nil
}

// LoadSchemas reads a schema table. An empty bonus_threshold is 0.
func (c *ConfigStore) LoadSchemas(ctx context.Context, name core.StudyName, file string) ([]compliance.Schema, error) {
	files, err := c.ListSchemaFiles(ctx, name)
	if err != nil {
		return nil, err
	}
	if file, err = pick(files, file, "schema"); err != nil {
		return nil, err
	}
	t, err := ReadTable(filepath.Join(c.Dir(PaymentsDir, name), file))
	if err != nil {
		return nil, err
	}
	if err := t.Require("name", "rate_id", "num_possible_per_day", "num_days", "bonus_threshold"); err != nil {
		return nil, err
	}
	schemas := make([]compliance.Schema, 0, len(t.Rows))
	for i, row := range t.Rows {
		perDay, err := ParseInt(row.Get("num_possible_per_day"), 0)
		if err != nil {
			return nil, rowError(t, i, fmt.Errorf("num_possible_per_day: %w", err))
		}
		days, err := ParseInt(row.Get("num_days"), 0)
		if err != nil {
			return nil, rowError(t, i, fmt.Errorf("num_days: %w", err))
		}
		threshold, err := ParseInt(row.Get("bonus_threshold"), 0)
		if err != nil {
			return nil, rowError(t, i, fmt.Errorf("bonus_threshold: %w", err))
		}
		if perDay < 0 || days < 0 {
			return nil, rowError(t, i, fmt.Errorf("negative day counts"))
		}
		schemas = append(schemas, compliance.Schema{
			Name:           row.Get("name"),
			RateID:         row.Get("rate_id"),
			PossiblePerDay: perDay,
			NumDays:        days,
			BonusRateID:    row.Get("bonus_rate_id"),
			BonusThreshold: threshold,
			Type:           row.Get("schema_type"),
		})
	}
	return schemas, nil
}

// ---- download ----

func containing(word string) func(string) bool {
	return func(name string) bool { return strings.Contains(name, word) }
}

// LoadAliases reads an alias table (metricwire_alias -> within_study_id).
// Files with "alias" in their name are candidates.
func (c *ConfigStore) LoadAliases(ctx context.Context, name core.StudyName, file string) (map[string]string, error) {
	files, err := c.ListFiles(DownloadDir, name)
	if err != nil {
		return nil, err
	}
	if file, err = pick(filesMatching(files, true, containing("alias")), file, "alias"); err != nil {
		return nil, err
	}
	t, err := ReadTable(filepath.Join(c.Dir(DownloadDir, name), file))
	if err != nil {
		return nil, err
	}
	if err := t.Require("metricwire_alias", "within_study_id"); err != nil {
		return nil, err
	}
	aliases := make(map[string]string, len(t.Rows))
	for _, row := range t.Rows {
		if alias := row.Get("metricwire_alias"); alias != "" {
			aliases[alias] = row.Get("within_study_id")
		}
	}
	return aliases, nil
}

// LoadQuestionFilter reads the first column of a question filter table.
// Files with "question" in their name are candidates.
func (c *ConfigStore) LoadQuestionFilter(ctx context.Context, name core.StudyName, file string) ([]string, error) {
	files, err := c.ListFiles(DownloadDir, name)
	if err != nil {
		return nil, err
	}
	if file, err = pick(filesMatching(files, true, containing("question")), file, "question filter"); err != nil {
		return nil, err
	}
	t, err := ReadTable(filepath.Join(c.Dir(DownloadDir, name), file))
	if err != nil {
		return nil, err
	}
	if len(t.Headers) == 0 {
		return nil, errors.ConfigInvalid(t.Name + " has no columns")
	}
	seen := make(map[string]bool)
	var labels []string
	for _, v := range t.Column(t.Headers[0]) {
		if v != "" && !seen[v] {
			seen[v] = true
			labels = append(labels, v)
		}
	}
	return labels, nil
}
