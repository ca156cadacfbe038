package rules

import (
	"errors"
	"fmt"
	"strings"
)

// ErrUnknownTag is returned when a tagging workflow points at a tag id
// missing from the tag table.
var ErrUnknownTag = errors.New("workflow references unknown tag")

// ErrDuplicateTag is returned when two tag rows share an id.
var ErrDuplicateTag = errors.New("duplicate tag id")

// Workflow is one row of workflows.csv.
type Workflow struct {
	ID    string
	Name  string
	Type  string
	Logic LogicalOperator
	TagID string
}

// TagsSessions reports whether the workflow is in scope for session tagging.
func (w Workflow) TagsSessions() bool {
	return strings.TrimSpace(w.Type) == WorkflowTagSession
}

// Group is one row of condition_groups.csv.
type Group struct {
	ID         string
	WorkflowID string
	Name       string
	Logic      LogicalOperator
}

// Condition is one row of conditions.csv. RawOperator keeps the text the
// operator was parsed from.
type Condition struct {
	ID          string
	GroupID     string
	Operator    Operator
	RawOperator string
	Value       string
	SkipAsTrue  bool
}

// QuestionLink is one row of condition_questions.csv.
type QuestionLink struct {
	ConditionID  string
	QuestionName string
}

// Tag is one row of tags.csv.
type Tag struct {
	ID          string
	Title       string
	Color       string
	Explanation string
}

// Config is the full set of rule tables for one study, in file order.
type Config struct {
	Workflows  []Workflow
	Groups     []Group
	Conditions []Condition
	Links      []QuestionLink
	Tags       []Tag
}

// CompiledCondition is a condition with its question set resolved.
type CompiledCondition struct {
	Condition
	Questions []string
}

// CompiledGroup is a group with its conditions in file order.
type CompiledGroup struct {
	Group
	Conditions []CompiledCondition
}

// CompiledWorkflow is a tagging workflow with its groups and tag title.
type CompiledWorkflow struct {
	Workflow
	Tag    Tag
	Groups []CompiledGroup
}

// RuleSet is the evaluation tree for one study. It is built once and is
// safe for concurrent reads.
type RuleSet struct {
	Workflows []CompiledWorkflow
	Tags      []Tag
	// Warnings lists problems that do not stop evaluation, such as
	// unknown operators or rows pointing at missing parents.
	Warnings []string
}

// Compile indexes the tables (workflow -> groups, group -> conditions,
// condition -> questions) and keeps only session-tagging workflows.
func Compile(cfg Config) (*RuleSet, error) {
	rs := &RuleSet{Tags: cfg.Tags}

	tags := make(map[string]Tag, len(cfg.Tags))
	for _, tag := range cfg.Tags {
		if _, dup := tags[tag.ID]; dup {
			return nil, fmt.Errorf("%w: %q", ErrDuplicateTag, tag.ID)
		}
		tags[tag.ID] = tag
	}

	questionsByCondition := make(map[string][]string)
	seenLink := make(map[QuestionLink]bool)
	for _, link := range cfg.Links {
		if seenLink[link] {
			continue
		}
		seenLink[link] = true
		questionsByCondition[link.ConditionID] = append(questionsByCondition[link.ConditionID], link.QuestionName)
	}

	conditionsByGroup := make(map[string][]CompiledCondition)
	knownConditions := make(map[string]bool, len(cfg.Conditions))
	for _, cond := range cfg.Conditions {
		knownConditions[cond.ID] = true
		compiled := CompiledCondition{Condition: cond, Questions: questionsByCondition[cond.ID]}
		if cond.Operator == OpInvalid {
			rs.warnf("condition %s: unknown operator %q never matches", cond.ID, cond.RawOperator)
		}
		if len(compiled.Questions) == 0 && cond.Operator != OpEmpty {
			rs.warnf("condition %s: no questions linked, it can never match", cond.ID)
		}
		conditionsByGroup[cond.GroupID] = append(conditionsByGroup[cond.GroupID], compiled)
	}
	for _, link := range cfg.Links {
		if !knownConditions[link.ConditionID] {
			rs.warnf("condition_questions: unknown condition %s", link.ConditionID)
		}
	}

	groupsByWorkflow := make(map[string][]CompiledGroup)
	knownGroups := make(map[string]bool, len(cfg.Groups))
	for _, group := range cfg.Groups {
		knownGroups[group.ID] = true
		groupsByWorkflow[group.WorkflowID] = append(groupsByWorkflow[group.WorkflowID], CompiledGroup{
			Group:      group,
			Conditions: conditionsByGroup[group.ID],
		})
	}
	for _, cond := range cfg.Conditions {
		if !knownGroups[cond.GroupID] {
			rs.warnf("condition %s: unknown group %s", cond.ID, cond.GroupID)
		}
	}

	knownWorkflows := make(map[string]bool, len(cfg.Workflows))
	for _, wf := range cfg.Workflows {
		knownWorkflows[wf.ID] = true
		if !wf.TagsSessions() {
			continue
		}
		tag, ok := tags[wf.TagID]
		if !ok {
			return nil, fmt.Errorf("%w: workflow %s -> tag %q", ErrUnknownTag, wf.ID, wf.TagID)
		}
		groups := groupsByWorkflow[wf.ID]
		if len(groups) == 0 {
			rs.warnf("workflow %s: no condition groups, it never fires", wf.ID)
		}
		rs.Workflows = append(rs.Workflows, CompiledWorkflow{Workflow: wf, Tag: tag, Groups: groups})
	}
	for _, group := range cfg.Groups {
		if !knownWorkflows[group.WorkflowID] {
			rs.warnf("group %s: unknown workflow %s", group.ID, group.WorkflowID)
		}
	}

	return rs, nil
}

func (rs *RuleSet) warnf(format string, args ...interface{}) {
	rs.Warnings = append(rs.Warnings, fmt.Sprintf(format, args...))
}

// TagByTitle finds a tag by its display title.
func (rs *RuleSet) TagByTitle(title string) (Tag, bool) {
	for _, tag := range rs.Tags {
		if tag.Title == title {
			return tag, true
		}
	}
	return Tag{}, false
}
