package tabular

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"studykit/domain/core"
	"studykit/domain/rules"
	"studykit/domain/study"
	"studykit/internal/errors"
)

// File names inside data/<study>/.
const (
	QuestionsFile = "questions.csv"
	SessionsFile  = "sessions.csv"
	ResponsesFile = "responses.csv"
	TaggedFile    = "tagged_sessions.csv"
)

var (
	questionColumns = []string{"survey_id", "survey_name", "question_id", "question_name", "text", "type", "parent_question_id"}
	sessionColumns  = []string{"survey_id", "survey_name", "session_id", "mw_participant_alias", "within_study_id", "trigger_type", "started_at_utc", "ended_at_utc"}
	responseColumns = []string{"session_id", "question_id", "question_name", "question_text", "content", "skipped", "not_seen", "opened_at", "responded_at", "duration_seconds"}
	taggedColumns   = append(append([]string(nil), sessionColumns...), "session_tags")
)

// Store keeps study data as CSV files under a data root.
type Store struct {
	root string
}

// NewStore creates a store rooted at dataRoot.
func NewStore(dataRoot string) *Store {
	return &Store{root: dataRoot}
}

// Root returns the data root.
func (s *Store) Root() string { return s.root }

// StudyDir returns data/<study>.
func (s *Store) StudyDir(name core.StudyName) string {
	return filepath.Join(s.root, name.String())
}

// ListStudies returns every study directory, skipping hidden ones such as
// .internal.
func (s *Store) ListStudies(ctx context.Context) ([]core.StudyName, error) {
	entries, err := os.ReadDir(s.root)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to list %s: %w", s.root, err)
	}
	var names []core.StudyName
	for _, e := range entries {
		if !e.IsDir() || strings.HasPrefix(e.Name(), ".") {
			continue
		}
		if name, err := core.ParseStudyName(e.Name()); err == nil {
			names = append(names, name)
		}
	}
	sort.Slice(names, func(i, j int) bool { return names[i] < names[j] })
	return names, nil
}

// LoadStudy reads questions, sessions and responses. A missing questions
// file is an empty catalogue.
func (s *Store) LoadStudy(ctx context.Context, name core.StudyName) (*study.Data, error) {
	sessions, err := s.LoadSessions(ctx, name)
	if err != nil {
		return nil, err
	}
	responses, err := s.loadResponses(name)
	if err != nil {
		return nil, err
	}
	questions, err := s.loadQuestions(name)
	if err != nil {
		return nil, err
	}
	return &study.Data{Questions: questions, Sessions: sessions, Responses: responses}, nil
}

// SaveStudy writes all three snapshot files.
func (s *Store) SaveStudy(ctx context.Context, name core.StudyName, data *study.Data) error {
	if err := s.saveQuestions(name, data.Questions); err != nil {
		return err
	}
	if err := s.SaveSessions(ctx, name, data.Sessions); err != nil {
		return err
	}
	if err := s.saveResponses(name, data.Responses); err != nil {
		return err
	}
	log.Printf("[Store] saved %s: %d questions, %d sessions, %d responses",
		name, len(data.Questions), len(data.Sessions), len(data.Responses))
	return nil
}

// LoadSessions reads sessions.csv.
func (s *Store) LoadSessions(ctx context.Context, name core.StudyName) ([]study.Session, error) {
	t, err := ReadTable(filepath.Join(s.StudyDir(name), SessionsFile))
	if err != nil {
		return nil, err
	}
	if err := t.Require("session_id", "survey_name", "started_at_utc"); err != nil {
		return nil, err
	}
	sessions := make([]study.Session, 0, len(t.Rows))
	for i, row := range t.Rows {
		sess, err := sessionFromRow(row)
		if err != nil {
			return nil, errors.Wrapf(errors.ConfigInvalid(err.Error()), "%s row %d", t.Name, i+2)
		}
		sessions = append(sessions, sess)
	}
	return sessions, nil
}

// SaveSessions rewrites sessions.csv.
func (s *Store) SaveSessions(ctx context.Context, name core.StudyName, sessions []study.Session) error {
	rows := make([][]string, 0, len(sessions))
	for _, sess := range sessions {
		rows = append(rows, sessionRow(sess))
	}
	return WriteCSV(filepath.Join(s.StudyDir(name), SessionsFile), sessionColumns, rows)
}

// LoadTagged reads tagged_sessions.csv.
func (s *Store) LoadTagged(ctx context.Context, name core.StudyName) ([]rules.TaggedSession, error) {
	t, err := ReadTable(filepath.Join(s.StudyDir(name), TaggedFile))
	if err != nil {
		return nil, err
	}
	if err := t.Require("session_id", "started_at_utc", "session_tags"); err != nil {
		return nil, err
	}
	tagged := make([]rules.TaggedSession, 0, len(t.Rows))
	for i, row := range t.Rows {
		sess, err := sessionFromRow(row)
		if err != nil {
			return nil, errors.Wrapf(errors.ConfigInvalid(err.Error()), "%s row %d", t.Name, i+2)
		}
		tags := rules.SplitTags(row.Get("session_tags"))
		if tags == nil {
			tags = []string{}
		}
		tagged = append(tagged, rules.TaggedSession{Session: sess, Tags: tags})
	}
	return tagged, nil
}

// SaveTagged writes tagged_sessions.csv.
func (s *Store) SaveTagged(ctx context.Context, name core.StudyName, tagged []rules.TaggedSession) error {
	rows := make([][]string, 0, len(tagged))
	for _, ts := range tagged {
		rows = append(rows, append(sessionRow(ts.Session), ts.SessionTags()))
	}
	return WriteCSV(filepath.Join(s.StudyDir(name), TaggedFile), taggedColumns, rows)
}

func (s *Store) loadResponses(name core.StudyName) ([]study.Response, error) {
	t, err := ReadTable(filepath.Join(s.StudyDir(name), ResponsesFile))
	if err != nil {
		return nil, err
	}
	if err := t.Require("session_id", "question_name", "content", "skipped", "not_seen"); err != nil {
		return nil, err
	}
	responses := make([]study.Response, 0, len(t.Rows))
	for i, row := range t.Rows {
		r, err := responseFromRow(row)
		if err != nil {
			return nil, errors.Wrapf(errors.ConfigInvalid(err.Error()), "%s row %d", t.Name, i+2)
		}
		responses = append(responses, r)
	}
	return responses, nil
}

func (s *Store) saveResponses(name core.StudyName, responses []study.Response) error {
	rows := make([][]string, 0, len(responses))
	for _, r := range responses {
		rows = append(rows, []string{
			r.SessionID, r.QuestionID, r.QuestionName, r.QuestionText, r.Content,
			FormatBool(r.Skipped), FormatBool(r.NotSeen),
			FormatTimePtr(r.OpenedAt), FormatTimePtr(r.RespondedAt),
			FormatFloatPtr(r.DurationSeconds),
		})
	}
	return WriteCSV(filepath.Join(s.StudyDir(name), ResponsesFile), responseColumns, rows)
}

func (s *Store) loadQuestions(name core.StudyName) ([]study.Question, error) {
	t, err := ReadTable(filepath.Join(s.StudyDir(name), QuestionsFile))
	if errors.HasCode(err, errors.CodeNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	questions := make([]study.Question, 0, len(t.Rows))
	for _, row := range t.Rows {
		questions = append(questions, study.Question{
			SurveyID:         row.Get("survey_id"),
			SurveyName:       row.Get("survey_name"),
			ID:               row.Get("question_id"),
			Name:             row.Get("question_name"),
			Text:             row.Get("text"),
			Type:             row.Get("type"),
			ParentQuestionID: row.Get("parent_question_id"),
		})
	}
	return questions, nil
}

func (s *Store) saveQuestions(name core.StudyName, questions []study.Question) error {
	rows := make([][]string, 0, len(questions))
	for _, q := range questions {
		rows = append(rows, []string{q.SurveyID, q.SurveyName, q.ID, q.Name, q.Text, q.Type, q.ParentQuestionID})
	}
	return WriteCSV(filepath.Join(s.StudyDir(name), QuestionsFile), questionColumns, rows)
}

func sessionRow(s study.Session) []string {
	return []string{
		s.SurveyID, s.SurveyName, s.ID, s.Alias, s.ParticipantID, s.TriggerType,
		FormatTime(s.StartedAt), FormatTime(s.EndedAt),
	}
}

func sessionFromRow(row Row) (study.Session, error) {
	started, err := ParseTime(row.Get("started_at_utc"))
	if err != nil {
		return study.Session{}, fmt.Errorf("started_at_utc: %w", err)
	}
	ended, err := ParseTime(row.Get("ended_at_utc"))
	if err != nil {
		return study.Session{}, fmt.Errorf("ended_at_utc: %w", err)
	}
	return study.Session{
		ID:            row.Get("session_id"),
		SurveyID:      row.Get("survey_id"),
		SurveyName:    row.Get("survey_name"),
		Alias:         row.Get("mw_participant_alias"),
		ParticipantID: row.Get("within_study_id"),
		TriggerType:   row.Get("trigger_type"),
		StartedAt:     started,
		EndedAt:       ended,
	}, nil
}

func responseFromRow(row Row) (study.Response, error) {
	skipped, err := ParseBool(row.Get("skipped"))
	if err != nil {
		return study.Response{}, fmt.Errorf("skipped: %w", err)
	}
	notSeen, err := ParseBool(row.Get("not_seen"))
	if err != nil {
		return study.Response{}, fmt.Errorf("not_seen: %w", err)
	}
	opened, err := ParseTimePtr(row.Get("opened_at"))
	if err != nil {
		return study.Response{}, fmt.Errorf("opened_at: %w", err)
	}
	responded, err := ParseTimePtr(row.Get("responded_at"))
	if err != nil {
		return study.Response{}, fmt.Errorf("responded_at: %w", err)
	}
	duration, err := ParseFloatPtr(row.Get("duration_seconds"))
	if err != nil {
		return study.Response{}, fmt.Errorf("duration_seconds: %w", err)
	}
	return study.Response{
		SessionID:       row.Get("session_id"),
		QuestionID:      row.Get("question_id"),
		QuestionName:    row.Get("question_name"),
		QuestionText:    row.Get("question_text"),
		Content:         row.Raw("content"),
		Skipped:         skipped,
		NotSeen:         notSeen,
		OpenedAt:        opened,
		RespondedAt:     responded,
		DurationSeconds: duration,
	}, nil
}
