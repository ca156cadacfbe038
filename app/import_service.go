package app

import (
	"context"
	"path/filepath"
	"time"

	"studykit/domain/core"
	"studykit/domain/study"
	"studykit/internal"
	"studykit/internal/errors"
	"studykit/ports"
)

// ImportService downloads a study and stores it with participant ids
// resolved through the alias map
type ImportService struct {
	importer  ports.SurveyImporter
	store     ports.StudyStore
	downloads ports.DownloadConfigSource
	settings  ports.SettingsSource
	dataRoot  string
	dumpJSON  bool
	logger    *internal.Logger

	// OnComplete, when set, runs after a snapshot has been saved
	OnComplete func(name core.StudyName)
}

// DownloadRequest defines one download
type DownloadRequest struct {
	Study        core.StudyName
	ClientID     string
	ClientSecret string
	AliasFile    string // empty selects the newest alias table
	QuestionFile string // empty selects the newest question filter
	DumpJSON     bool
}

// DownloadResult summarizes a finished download
type DownloadResult struct {
	Study          core.StudyName `json:"study"`
	Questions      int            `json:"questions"`
	Sessions       int            `json:"sessions"`
	Responses      int            `json:"responses"`
	AliasesMatched int            `json:"aliases_matched"`
	Warnings       []string       `json:"warnings,omitempty"`
	RuntimeMs      int64          `json:"runtime_ms"`
}

// NewImportService creates an import service; dataRoot holds raw JSON dumps
func NewImportService(importer ports.SurveyImporter, store ports.StudyStore, downloads ports.DownloadConfigSource,
	settings ports.SettingsSource, dataRoot string, dumpJSON bool) *ImportService {
	return &ImportService{
		importer:  importer,
		store:     store,
		downloads: downloads,
		settings:  settings,
		dataRoot:  dataRoot,
		dumpJSON:  dumpJSON,
		logger:    serviceLogger("import"),
	}
}

// Download imports the study named in req and saves the snapshot
func (s *ImportService) Download(ctx context.Context, req DownloadRequest, progress ports.ProgressFunc) (*DownloadResult, error) {
	start := time.Now()
	result := &DownloadResult{Study: req.Study}

	st, err := s.settings.StudySettings(ctx, req.Study)
	if err != nil {
		return nil, err
	}

	filter, err := s.downloads.LoadQuestionFilter(ctx, req.Study, req.QuestionFile)
	switch {
	case errors.HasCode(err, errors.CodeNotFound):
		result.Warnings = append(result.Warnings, "no question filter found; only sessions are saved")
	case err != nil:
		return nil, err
	}

	importReq := ports.ImportRequest{
		WorkspaceID:    st.WorkspaceID,
		StudyID:        st.StudyID,
		QuestionFilter: filter,
		ClientID:       req.ClientID,
		ClientSecret:   req.ClientSecret,
	}
	if req.DumpJSON || s.dumpJSON {
		importReq.RawDumpDir = filepath.Join(s.dataRoot, req.Study.String(), "raw_json")
	}

	s.logger.Info("downloading %s (%d filtered questions)", req.Study, len(filter))
	data, err := s.importer.Import(ctx, importReq, progress)
	if err != nil {
		return nil, errors.Wrapf(err, "download %s", req.Study)
	}

	aliases, err := s.downloads.LoadAliases(ctx, req.Study, req.AliasFile)
	switch {
	case errors.HasCode(err, errors.CodeNotFound):
		result.Warnings = append(result.Warnings, "no alias map found; within_study_id is left empty")
	case err != nil:
		return nil, err
	default:
		result.AliasesMatched = study.ApplyAliases(data.Sessions, aliases)
		if unmatched := len(data.Sessions) - result.AliasesMatched; unmatched > 0 {
			s.logger.Warn("%s: %d sessions have no alias entry", req.Study, unmatched)
		}
	}

	if err := s.store.SaveStudy(ctx, req.Study, data); err != nil {
		return nil, errors.Wrapf(err, "save %s", req.Study)
	}
	if s.OnComplete != nil {
		s.OnComplete(req.Study)
	}

	result.Questions = len(data.Questions)
	result.Sessions = len(data.Sessions)
	result.Responses = len(data.Responses)
	result.RuntimeMs = time.Since(start).Milliseconds()
	s.logger.Info("downloaded %s: %d sessions, %d responses in %dms", req.Study, result.Sessions, result.Responses, result.RuntimeMs)
	return result, nil
}
