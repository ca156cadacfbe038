package rules

import (
	"studykit/domain/study"
)

// EvaluateCondition applies cond to one session's responses to the named
// questions. Any response satisfying the operator makes the condition true.
// Skipped responses count as true only when the condition says so; not-seen
// responses never count. Failed comparisons are non-matches.
func EvaluateCondition(cond Condition, questions []string, responses study.SessionResponses) bool {
	answered := false
	for _, name := range questions {
		for _, r := range responses[name] {
			answered = true
			if r.Skipped {
				if cond.SkipAsTrue {
					return true
				}
				continue
			}
			if r.NotSeen {
				continue
			}
			value := contentOperand(r.Content)
			var target operand
			if cond.Operator != OpBetween {
				target = targetOperand(cond.Value, value)
			}
			if ok, err := apply(cond.Operator, value, target, cond.Value); err == nil && ok {
				return true
			}
		}
	}
	// nothing recorded for any linked question
	return !answered && cond.Operator == OpEmpty
}

// Evaluate applies the condition to one session's responses.
func (c CompiledCondition) Evaluate(responses study.SessionResponses) bool {
	return EvaluateCondition(c.Condition, c.Questions, responses)
}

// Evaluate combines the group's conditions with its logical operator.
func (g CompiledGroup) Evaluate(responses study.SessionResponses) bool {
	results := make([]bool, len(g.Conditions))
	for i, cond := range g.Conditions {
		results[i] = cond.Evaluate(responses)
	}
	return g.Logic.Combine(results)
}

// Evaluate combines the workflow's groups with its logical operator. A
// workflow without groups never fires.
func (w CompiledWorkflow) Evaluate(responses study.SessionResponses) bool {
	if len(w.Groups) == 0 {
		return false
	}
	results := make([]bool, len(w.Groups))
	for i, group := range w.Groups {
		results[i] = group.Evaluate(responses)
	}
	return w.Logic.Combine(results)
}
