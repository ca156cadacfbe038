// Package study holds the imported survey records: sessions, the responses
// given in them, and the question catalogue. Records are plain data; the
// indices here are built once and read many times by the rule engine and the
// compliance calculator.
package study

import (
	"sort"
	"strings"
	"time"
)

// Session is one survey-taking instance by a participant.
type Session struct {
	ID            string    `json:"session_id"`
	SurveyID      string    `json:"survey_id"`
	SurveyName    string    `json:"survey_name"`
	Alias         string    `json:"mw_participant_alias"`
	ParticipantID string    `json:"within_study_id"`
	TriggerType   string    `json:"trigger_type"`
	StartedAt     time.Time `json:"started_at_utc"`
	EndedAt       time.Time `json:"ended_at_utc"`
}

// Response is one answer, skip marker or not-seen marker for one question.
// An empty Content is a null answer.
type Response struct {
	SessionID       string     `json:"session_id"`
	QuestionID      string     `json:"question_id"`
	QuestionName    string     `json:"question_name"`
	QuestionText    string     `json:"question_text"`
	Content         string     `json:"content"`
	Skipped         bool       `json:"skipped"`
	NotSeen         bool       `json:"not_seen"`
	OpenedAt        *time.Time `json:"opened_at,omitempty"`
	RespondedAt     *time.Time `json:"responded_at,omitempty"`
	DurationSeconds *float64   `json:"duration_seconds,omitempty"`
}

// Question is one entry of a survey's (flattened) question tree.
type Question struct {
	SurveyID         string `json:"survey_id"`
	SurveyName       string `json:"survey_name"`
	ID               string `json:"question_id"`
	Name             string `json:"question_name"`
	Text             string `json:"text"`
	Type             string `json:"type"`
	ParentQuestionID string `json:"parent_question_id"`
}

// Data is the full imported snapshot of one study.
type Data struct {
	Questions []Question
	Sessions  []Session
	Responses []Response
}

// ResponseIndex groups responses by session and, within a session, by
// question name. Row order is kept inside each bucket.
type ResponseIndex struct {
	bySession map[string]SessionResponses
}

// SessionResponses are one session's responses keyed by question name.
type SessionResponses map[string][]Response

// Len is the number of responses in the session.
func (s SessionResponses) Len() int {
	n := 0
	for _, rs := range s {
		n += len(rs)
	}
	return n
}

// IndexResponses builds the per-session index in a single pass.
func IndexResponses(responses []Response) *ResponseIndex {
	idx := &ResponseIndex{bySession: make(map[string]SessionResponses)}
	for _, r := range responses {
		bucket, ok := idx.bySession[r.SessionID]
		if !ok {
			bucket = make(SessionResponses)
			idx.bySession[r.SessionID] = bucket
		}
		bucket[r.QuestionName] = append(bucket[r.QuestionName], r)
	}
	return idx
}

// ForSession returns the responses recorded in sessionID only. The result is
// nil for a session without responses.
func (idx *ResponseIndex) ForSession(sessionID string) SessionResponses {
	if idx == nil {
		return nil
	}
	return idx.bySession[sessionID]
}

// ParticipantIDs returns the sorted unique non-empty participant IDs.
func ParticipantIDs(sessions []Session) []string {
	seen := make(map[string]struct{})
	for _, s := range sessions {
		if s.ParticipantID == "" {
			continue
		}
		seen[s.ParticipantID] = struct{}{}
	}
	ids := make([]string, 0, len(seen))
	for id := range seen {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// MatchParticipants returns the participant IDs containing pattern,
// case-insensitively. An empty pattern matches every ID.
func MatchParticipants(ids []string, pattern string) []string {
	needle := strings.ToLower(strings.TrimSpace(pattern))
	var out []string
	for _, id := range ids {
		if strings.Contains(strings.ToLower(id), needle) {
			out = append(out, id)
		}
	}
	return out
}

// ForParticipant returns the sessions whose participant ID equals id.
func ForParticipant(sessions []Session, id string) []Session {
	var out []Session
	for _, s := range sessions {
		if s.ParticipantID == id {
			out = append(out, s)
		}
	}
	return out
}

// ApplyAliases sets ParticipantID from the alias map. Sessions whose alias
// is not in the map end up with an empty ParticipantID. It returns the
// number of sessions that were matched.
func ApplyAliases(sessions []Session, aliases map[string]string) int {
	matched := 0
	for i := range sessions {
		id, ok := aliases[sessions[i].Alias]
		sessions[i].ParticipantID = id
		if ok {
			matched++
		}
	}
	return matched
}
