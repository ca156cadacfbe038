package configexplorer

import (
	"fmt"
	"strings"

	"studykit/adapters/tabular"
)

// Template describes one kind of config table. A table is of this kind
// when its headers include every column in Columns.
type Template struct {
	Key         string   `json:"key"`
	Name        string   `json:"name"`
	Explanation string   `json:"explanation"`
	Columns     []string `json:"columns"`

	example func(row tabular.Row) string
}

func anyOrAll(logic string) string {
	if strings.EqualFold(strings.TrimSpace(logic), "OR") {
		return "any"
	}
	return "all"
}

// Templates are checked in this order; the first match wins.
var Templates = []Template{
	{
		Key:         "alias_config",
		Name:        "an alias mapping",
		Columns:     []string{"within_study_id", "metricwire_alias"},
		Explanation: "This file maps MetricWire IDs (aliases) to a study's preferred participant ID after download.",
		example: func(row tabular.Row) string {
			return fmt.Sprintf("Any sessions that come in with the MetricWire alias `%s` will be assigned to the participant ID `%s`.",
				row.Get("metricwire_alias"), row.Get("within_study_id"))
		},
	},
	{
		Key:         "question_filter_config",
		Name:        "a list of question labels",
		Columns:     []string{"question_labels"},
		Explanation: "Question filter list. Each row is a MetricWire `variableName` to keep when downloading.",
		example: func(row tabular.Row) string {
			return fmt.Sprintf("Only responses to the question labelled `%s` (and any other labels in the file) will be saved.",
				row.Get("question_labels"))
		},
	},
	{
		Key:         "rate_config",
		Name:        "a payment table",
		Columns:     []string{"id", "rate", "reason"},
		Explanation: "The payment (rates) table maps activity to a compensation amount and reason.",
		example: func(row tabular.Row) string {
			return fmt.Sprintf("MetricWire activity with the reason **%q** in the survey name will be associated with rate-ID **%s** which pays **%s**.",
				row.Get("reason"), row.Get("id"), row.Get("rate"))
		},
	},
	{
		Key:         "schema_config",
		Name:        "a list of engagement schemas",
		Columns:     []string{"name", "rate_id", "num_days", "schema_type"},
		Explanation: "An engagement schema defines how much activity of a given type is expected for compliance and whether it is eligible for a bonus once a threshold is crossed.",
		example: func(row tabular.Row) string {
			text := fmt.Sprintf("The schema **%s** spans **%s days** and uses base-rate ID **%s**. ",
				row.Get("name"), row.Get("num_days"), row.Get("rate_id"))
			if row.Get("bonus_rate_id") == "" {
				return text + "It has no associated bonus."
			}
			threshold, err := tabular.ParseInt(row.Get("bonus_threshold"), 0)
			if err != nil {
				return text + "It has an associated bonus."
			}
			return text + fmt.Sprintf("It has an associated bonus with a threshold of **%d** activities.", threshold)
		},
	},
	{
		Key:         "tag_config",
		Name:        "a list of tags",
		Columns:     []string{"title", "color", "explanation"},
		Explanation: "Tag definitions (label, color, explanation) control how tagged sessions are visualized.",
		example: func(row tabular.Row) string {
			return fmt.Sprintf("Sessions given the tag %q will be displayed with color `%s`.", row.Get("title"), row.Get("color"))
		},
	},
	{
		Key:         "workflow_config",
		Name:        "a list of workflows",
		Columns:     []string{"workflow_type", "tag_id"},
		Explanation: "A top level list of defined workflows. Each row links logical condition groups to a tag.",
		example: func(row tabular.Row) string {
			return fmt.Sprintf("Workflow **%s** applies tag-ID **%s** when %s of its condition groups evaluate to *True*.",
				row.Get("id"), row.Get("tag_id"), anyOrAll(row.Get("logical_operator")))
		},
	},
	{
		Key:     "condition_config",
		Name:    "a list of conditions",
		Columns: []string{"group_id", "operator", "value"},
		Explanation: "Individual logical conditions that are grouped and evaluated in workflows. " +
			"Skips can either be treated as `True` (skip behavior = 1) or `False` (skip behavior = 0).",
		example: func(row tabular.Row) string {
			return fmt.Sprintf("Condition **%s** belongs to Group %s and checks if a response is `%s %s`.",
				row.Get("id"), row.Get("group_id"), row.Get("operator"), row.Get("value"))
		},
	},
	{
		Key:         "group_config",
		Name:        "a list of condition groups",
		Columns:     []string{"workflow_id", "logical_operator", "name"},
		Explanation: "These are the logical groups of conditions that are evaluated together.",
		example: func(row tabular.Row) string {
			return fmt.Sprintf("Group **%s** belongs to Workflow %s and evaluates to true if %s conditions that point to it are True.",
				row.Get("id"), row.Get("workflow_id"), anyOrAll(row.Get("logical_operator")))
		},
	},
	{
		Key:         "cond_question_config",
		Name:        "a mapping of conditions to questions",
		Columns:     []string{"condition_id", "question_name"},
		Explanation: "This shows which questions a condition checks against.",
		example: func(row tabular.Row) string {
			return fmt.Sprintf("Condition **%s** uses question `%s`.", row.Get("condition_id"), row.Get("question_name"))
		},
	},
}

// Identify returns the first template whose columns are all in headers.
func Identify(headers []string) (Template, bool) {
	have := make(map[string]bool, len(headers))
	for _, h := range headers {
		have[strings.TrimSpace(h)] = true
	}
	for _, tpl := range Templates {
		matched := true
		for _, c := range tpl.Columns {
			if !have[c] {
				matched = false
				break
			}
		}
		if matched {
			return tpl, true
		}
	}
	return Template{}, false
}
