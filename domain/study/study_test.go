package study

import (
	"reflect"
	"testing"
)

func TestIndexResponsesKeepsSessionsApart(t *testing.T) {
	idx := IndexResponses([]Response{
		{SessionID: "s1", QuestionName: "intent", Content: "0"},
		{SessionID: "s2", QuestionName: "intent", Content: "8"},
		{SessionID: "s1", QuestionName: "urge", Content: "1"},
		{SessionID: "s1", QuestionName: "intent", Content: "3"},
	})

	s1 := idx.ForSession("s1")
	if s1.Len() != 3 {
		t.Fatalf("expected 3 responses for s1, got %d", s1.Len())
	}
	if got := s1["intent"]; len(got) != 2 || got[0].Content != "0" || got[1].Content != "3" {
		t.Errorf("intent bucket lost row order: %+v", got)
	}
	if got := idx.ForSession("s2")["urge"]; got != nil {
		t.Errorf("s2 should not see s1's urge response, got %+v", got)
	}
	if idx.ForSession("missing") != nil {
		t.Error("expected nil for an unknown session")
	}
}

func TestParticipantHelpers(t *testing.T) {
	sessions := []Session{
		{ID: "a", ParticipantID: "ppt-1002"},
		{ID: "b", ParticipantID: "ppt-1001"},
		{ID: "c", ParticipantID: ""},
		{ID: "d", ParticipantID: "ppt-1002"},
		{ID: "e", ParticipantID: "ppt-2001"},
	}

	ids := ParticipantIDs(sessions)
	if !reflect.DeepEqual(ids, []string{"ppt-1001", "ppt-1002", "ppt-2001"}) {
		t.Errorf("unexpected participant IDs %v", ids)
	}
	if got := MatchParticipants(ids, "PPT-100"); !reflect.DeepEqual(got, []string{"ppt-1001", "ppt-1002"}) {
		t.Errorf("unexpected matches %v", got)
	}
	if got := ForParticipant(sessions, "ppt-1002"); len(got) != 2 || got[0].ID != "a" || got[1].ID != "d" {
		t.Errorf("unexpected participant sessions %+v", got)
	}
}

func TestApplyAliases(t *testing.T) {
	sessions := []Session{{Alias: "mw-a"}, {Alias: "mw-b"}, {Alias: "mw-c", ParticipantID: "stale"}}
	matched := ApplyAliases(sessions, map[string]string{"mw-a": "ppt-1", "mw-b": "ppt-2"})

	if matched != 2 {
		t.Errorf("expected 2 matches, got %d", matched)
	}
	if sessions[0].ParticipantID != "ppt-1" || sessions[1].ParticipantID != "ppt-2" {
		t.Errorf("aliases not applied: %+v", sessions)
	}
	if sessions[2].ParticipantID != "" {
		t.Errorf("unmatched alias should clear participant ID, got %q", sessions[2].ParticipantID)
	}
}
