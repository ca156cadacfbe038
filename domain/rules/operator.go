package rules

import (
	"fmt"
	"strings"
)

// Operator is the comparison a condition applies to each response.
type Operator int

const (
	// OpInvalid is held by conditions whose operator text was not
	// recognised. It never matches.
	OpInvalid Operator = iota
	OpEqual
	OpNotEqual
	OpLess
	OpLessEqual
	OpGreater
	OpGreaterEqual
	OpContains
	OpNotContains
	OpEmpty
	OpNotEmpty
	OpBetween
)

var operatorNames = [...]string{
	OpInvalid:      "invalid",
	OpEqual:        "==",
	OpNotEqual:     "!=",
	OpLess:         "<",
	OpLessEqual:    "<=",
	OpGreater:      ">",
	OpGreaterEqual: ">=",
	OpContains:     "contains",
	OpNotContains:  "not_contains",
	OpEmpty:        "empty",
	OpNotEmpty:     "not_empty",
	OpBetween:      "between",
}

// ParseOperator maps the configuration spelling of an operator.
func ParseOperator(s string) (Operator, error) {
	name := strings.TrimSpace(s)
	for op := OpEqual; op <= OpBetween; op++ {
		if operatorNames[op] == name {
			return op, nil
		}
	}
	return OpInvalid, fmt.Errorf("unknown operator %q", s)
}

func (o Operator) String() string {
	if o < OpInvalid || o > OpBetween {
		return fmt.Sprintf("Operator(%d)", int(o))
	}
	return operatorNames[o]
}

// LogicalOperator combines child results of a group or workflow.
type LogicalOperator int

const (
	And LogicalOperator = iota
	Or
)

// ParseLogicalOperator accepts AND / OR in any case.
func ParseLogicalOperator(s string) (LogicalOperator, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "AND":
		return And, nil
	case "OR":
		return Or, nil
	}
	return And, fmt.Errorf("unknown logical operator %q", s)
}

func (l LogicalOperator) String() string {
	if l == Or {
		return "OR"
	}
	return "AND"
}

// Combine folds results with l. AND over nothing is true, OR over nothing is false.
func (l LogicalOperator) Combine(results []bool) bool {
	if l == Or {
		for _, r := range results {
			if r {
				return true
			}
		}
		return false
	}
	for _, r := range results {
		if !r {
			return false
		}
	}
	return true
}

// WorkflowTagSession is the workflow_type value of workflows that tag
// sessions. Other types are left for future workflow kinds and skipped.
const WorkflowTagSession = "1"

// SkipAsTrue is the skip_behavior value that makes a skipped response
// satisfy its condition.
const SkipAsTrue = "1"
