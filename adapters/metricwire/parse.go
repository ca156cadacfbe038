package metricwire

import (
	"fmt"
	"strings"
	"time"

	"studykit/domain/study"

	"github.com/tidwall/gjson"
)

// Response markers MetricWire puts in place of an answer.
const (
	markerSkipped          = "SKIPPED"
	markerNoAnswer         = "NO_ANSWER"
	markerConditionSkipped = "CONDITION_SKIPPED"
	markerDynamicSkipped   = "DYNAMIC_CONDITION_SKIPPED"
)

const answerTimeLayout = "02/01/2006 15:04:05 -07:00"

// flattenQuestions walks a survey's question tree depth first, recording
// each sub-question's parent id.
func flattenQuestions(questions gjson.Result, survey Survey, parentID string) []study.Question {
	var out []study.Question
	questions.ForEach(func(_, q gjson.Result) bool {
		id := q.Get("id").String()
		out = append(out, study.Question{
			SurveyID:         survey.ID,
			SurveyName:       survey.DisplayName(),
			ID:               id,
			Name:             q.Get("variableName").String(),
			Text:             q.Get("question").String(),
			Type:             q.Get("type").String(),
			ParentQuestionID: parentID,
		})
		if sub := q.Get("questions"); sub.IsArray() && len(sub.Array()) > 0 {
			out = append(out, flattenQuestions(sub, survey, id)...)
		}
		return true
	})
	return out
}

// indexQuestions maps question id to question, keeping the first of any
// repeated id.
func indexQuestions(questions []study.Question) map[string]study.Question {
	index := make(map[string]study.Question, len(questions))
	for _, q := range questions {
		if _, dup := index[q.ID]; !dup {
			index[q.ID] = q
		}
	}
	return index
}

// parseSession reads the session fields of one submission.
func parseSession(sub gjson.Result, survey Survey) study.Session {
	return study.Session{
		ID:          sub.Get("responseId").String(),
		SurveyID:    survey.ID,
		SurveyName:  survey.DisplayName(),
		Alias:       sub.Get("userId").String(),
		TriggerType: sub.Get("trigger.type").String(),
		StartedAt:   time.UnixMilli(sub.Get("timestamp.created").Int()).UTC(),
		EndedAt:     time.UnixMilli(sub.Get("timestamp.updated").Int()).UTC(),
	}
}

// parseResponses reads the answers of one submission for questions in
// known whose name is in wanted.
func parseResponses(sub gjson.Result, known map[string]study.Question, wanted map[string]bool) ([]study.Response, error) {
	sessionID := sub.Get("responseId").String()
	tz := sub.Get("timeZoneReadable").String()

	var (
		out      []study.Response
		firstErr error
	)
	sub.Get("questionValues").ForEach(func(qid, answer gjson.Result) bool {
		q, ok := known[qid.String()]
		if !ok || !wanted[q.Name] {
			return true
		}
		content := answerContent(answer.Get("response"))
		r := study.Response{
			SessionID:    sessionID,
			QuestionID:   qid.String(),
			QuestionName: q.Name,
			QuestionText: q.Text,
			Content:      content,
			Skipped:      content == markerSkipped || content == markerNoAnswer,
			NotSeen:      content == markerConditionSkipped || content == markerDynamicSkipped,
		}
		if ts := answer.Get("timestamp"); ts.Exists() {
			opened, err := parseAnswerTime(ts.Get("created.date").String(), ts.Get("created.time").String(), tz)
			if err != nil && firstErr == nil {
				firstErr = fmt.Errorf("session %s question %s: %w", sessionID, qid.String(), err)
			}
			responded, err := parseAnswerTime(ts.Get("updated.date").String(), ts.Get("updated.time").String(), tz)
			if err != nil && firstErr == nil {
				firstErr = fmt.Errorf("session %s question %s: %w", sessionID, qid.String(), err)
			}
			r.OpenedAt, r.RespondedAt = opened, responded
			if opened != nil && responded != nil {
				d := responded.Sub(*opened).Seconds()
				r.DurationSeconds = &d
			}
		}
		out = append(out, r)
		return true
	})
	return out, firstErr
}

// answerContent keeps strings as they are and other JSON values as text.
func answerContent(v gjson.Result) string {
	switch v.Type {
	case gjson.Null:
		return ""
	case gjson.String:
		return v.String()
	case gjson.JSON:
		return v.Raw
	default:
		return v.String()
	}
}

// parseAnswerTime reads "dd/mm/YYYY" and "HH:MM:SS" in an offset such as
// "-5:00". A missing date is no timestamp.
func parseAnswerTime(date, clock, tz string) (*time.Time, error) {
	if date == "" || clock == "" {
		return nil, nil
	}
	t, err := time.Parse(answerTimeLayout, date+" "+clock+" "+normalizeOffset(tz))
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// normalizeOffset pads "-5:00" to "-05:00"; an empty offset is UTC.
func normalizeOffset(tz string) string {
	tz = strings.TrimSpace(tz)
	if tz == "" {
		return "+00:00"
	}
	sign := tz[:1]
	rest := tz[1:]
	if sign != "+" && sign != "-" {
		sign, rest = "+", tz
	}
	if len(rest) < 5 {
		rest = strings.Repeat("0", 5-len(rest)) + rest
	}
	return sign + rest
}
