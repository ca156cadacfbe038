package metricwire

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sync"
	"time"

	"studykit/domain/core"
	"studykit/domain/study"
	"studykit/internal/errors"
	"studykit/ports"

	"github.com/tidwall/gjson"
	"golang.org/x/sync/errgroup"
)

// Importer downloads study snapshots from MetricWire
type Importer struct {
	config *Config
}

// NewImporter creates an importer with default credentials from cfg
func NewImporter(cfg *Config) *Importer {
	return &Importer{config: cfg}
}

// Import fetches every survey of the study. Credentials in req take
// precedence over the configured ones.
func (im *Importer) Import(ctx context.Context, req ports.ImportRequest, progress ports.ProgressFunc) (*study.Data, error) {
	cfg := im.config
	if req.ClientID != "" || req.ClientSecret != "" {
		cfg = cfg.WithCredentials(req.ClientID, req.ClientSecret)
	}
	if err := cfg.Validate(); err != nil {
		return nil, errors.WithCode(errors.CodeConfigInvalid, err)
	}
	if req.WorkspaceID == "" || req.StudyID == "" {
		return nil, errors.ConfigInvalid("workspace id and study id are required")
	}
	return NewImportSession(NewClient(cfg), cfg, req, progress).Run(ctx)
}

// ImportSession owns the state of one import run
type ImportSession struct {
	ID       core.ImportID
	client   *Client
	config   *Config
	request  ports.ImportRequest
	progress ports.ProgressFunc
	wanted   map[string]bool

	mu   sync.Mutex
	done int
}

// surveyResult is what one survey contributes to the snapshot
type surveyResult struct {
	questions []study.Question
	sessions  []study.Session
	responses []study.Response
}

// NewImportSession prepares one run
func NewImportSession(client *Client, cfg *Config, req ports.ImportRequest, progress ports.ProgressFunc) *ImportSession {
	wanted := make(map[string]bool, len(req.QuestionFilter))
	for _, q := range req.QuestionFilter {
		if q != "" {
			wanted[q] = true
		}
	}
	return &ImportSession{
		ID:       core.NewImportID(),
		client:   client,
		config:   cfg,
		request:  req,
		progress: progress,
		wanted:   wanted,
	}
}

// Run downloads every survey, at most config.Concurrency at a time, and
// merges the results in survey order.
func (s *ImportSession) Run(ctx context.Context) (*study.Data, error) {
	start := time.Now()
	log.Printf("[MetricWire] import %s: study %s/%s", s.ID, s.request.WorkspaceID, s.request.StudyID)

	raw, surveys, err := s.client.Study(ctx, s.request.WorkspaceID, s.request.StudyID)
	if err != nil {
		return nil, err
	}
	s.dump("study.json", raw)
	s.report(0, len(surveys))

	results := make([]surveyResult, len(surveys))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.config.Concurrency)
	for i, survey := range surveys {
		i, survey := i, survey
		g.Go(func() error {
			r, err := s.fetchSurvey(gctx, survey)
			if err != nil {
				return fmt.Errorf("survey %s: %w", survey.ID, err)
			}
			results[i] = r
			s.advance(len(surveys))
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	data := &study.Data{}
	for _, r := range results {
		data.Questions = append(data.Questions, r.questions...)
		data.Sessions = append(data.Sessions, r.sessions...)
		data.Responses = append(data.Responses, r.responses...)
	}
	log.Printf("[MetricWire] import %s: %d surveys, %d sessions, %d responses in %s",
		s.ID, len(surveys), len(data.Sessions), len(data.Responses), time.Since(start).Round(time.Millisecond))
	return data, nil
}

func (s *ImportSession) fetchSurvey(ctx context.Context, survey Survey) (surveyResult, error) {
	var r surveyResult
	ws, st := s.request.WorkspaceID, s.request.StudyID

	details, err := s.client.SurveyDetails(ctx, ws, st, survey.ID)
	if err != nil {
		return r, err
	}
	s.dump(fmt.Sprintf("survey_details_%s.json", survey.ID), details)

	// questions are only kept when responses are being collected
	questions := flattenQuestions(gjson.GetBytes(details, "questions"), survey, "")
	var known map[string]study.Question
	if len(s.wanted) > 0 {
		r.questions = questions
		known = indexQuestions(questions)
	}

	count, err := s.client.SubmissionCount(ctx, ws, st, survey.ID)
	if err != nil {
		return r, err
	}
	pages := count/s.config.PageSize + 1
	for page := 0; page < pages; page++ {
		body, err := s.client.Submissions(ctx, ws, st, survey.ID, page)
		if err != nil {
			return r, err
		}
		s.dump(fmt.Sprintf("survey_sessions_%s_%d.json", survey.ID, page), body)

		gjson.GetBytes(body, "submissions").ForEach(func(_, sub gjson.Result) bool {
			r.sessions = append(r.sessions, parseSession(sub, survey))
			if len(s.wanted) == 0 {
				return true
			}
			responses, err := parseResponses(sub, known, s.wanted)
			if err != nil {
				log.Printf("[MetricWire] import %s: %v", s.ID, err)
			}
			r.responses = append(r.responses, responses...)
			return true
		})
	}
	return r, nil
}

// advance reports progress under the lock so callbacks see increasing
// counts.
func (s *ImportSession) advance(total int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.done++
	s.report(s.done, total)
}

func (s *ImportSession) report(done, total int) {
	if s.progress != nil {
		s.progress(done, total)
	}
}

// dump writes a raw payload when a dump directory was requested. Failures
// are logged and do not stop the import.
func (s *ImportSession) dump(name string, body []byte) {
	dir := s.request.RawDumpDir
	if dir == "" {
		return
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		log.Printf("[MetricWire] raw dump: %v", err)
		return
	}
	if err := os.WriteFile(filepath.Join(dir, name), body, 0o644); err != nil {
		log.Printf("[MetricWire] raw dump: %v", err)
	}
}
