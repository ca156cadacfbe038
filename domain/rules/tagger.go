package rules

import (
	"strings"

	"studykit/domain/study"
)

// TagSeparator joins tag titles in the session_tags column.
const TagSeparator = ";"

// TaggedSession is a session with the titles of every workflow that fired
// for it, in workflow order.
type TaggedSession struct {
	study.Session
	Tags []string `json:"tags"`
}

// SessionTags is the persisted form of Tags.
func (t TaggedSession) SessionTags() string {
	return strings.Join(t.Tags, TagSeparator)
}

// SplitTags parses a session_tags value, dropping empty entries.
func SplitTags(s string) []string {
	var tags []string
	for _, tag := range strings.Split(s, TagSeparator) {
		if tag = strings.TrimSpace(tag); tag != "" {
			tags = append(tags, tag)
		}
	}
	return tags
}

// TagSession returns the tag titles for one session's responses.
func (rs *RuleSet) TagSession(responses study.SessionResponses) []string {
	tags := []string{}
	for _, wf := range rs.Workflows {
		if wf.Evaluate(responses) {
			tags = append(tags, wf.Tag.Title)
		}
	}
	return tags
}

// Run tags every session against its own responses only. Rows sharing a
// session id get the same tag list. The output has one entry per input
// session, in input order, and is identical across runs over the same input.
func (rs *RuleSet) Run(sessions []study.Session, responses []study.Response) []TaggedSession {
	idx := study.IndexResponses(responses)
	bySession := make(map[string][]string, len(sessions))

	out := make([]TaggedSession, len(sessions))
	for i, s := range sessions {
		tags, done := bySession[s.ID]
		if !done {
			tags = rs.TagSession(idx.ForSession(s.ID))
			bySession[s.ID] = tags
		}
		out[i] = TaggedSession{Session: s, Tags: append(make([]string, 0, len(tags)), tags...)}
	}
	return out
}

// CountTags tallies how many sessions carry each tag title.
func CountTags(tagged []TaggedSession) map[string]int {
	counts := make(map[string]int)
	for _, t := range tagged {
		for _, title := range t.Tags {
			counts[title]++
		}
	}
	return counts
}
