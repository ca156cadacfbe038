package app

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"studykit/domain/core"
	"studykit/domain/payment"
	"studykit/domain/study"
	"studykit/internal"
	"studykit/internal/errors"
	"studykit/ports"
)

// PaymentService builds participant compliance and payment reports
type PaymentService struct {
	store    ports.StudyStore
	payments ports.PaymentSource
	exporter ports.ReportExporter
	location *time.Location
	now      func() time.Time
	logger   *internal.Logger
}

// PaymentRequest selects the participant and the tables a report uses
type PaymentRequest struct {
	Study core.StudyName `json:"-"`
	// Participant is a case-insensitive substring of exactly one participant id
	Participant string         `json:"participant"`
	RateFile    string         `json:"rate_file,omitempty"`
	SchemaFile  string         `json:"schema_file,omitempty"`
	Start       core.Date      `json:"start"`
	Timezone    string         `json:"timezone,omitempty"`
	Manual      map[string]int `json:"manual,omitempty"`
}

// PaymentFiles lists the selectable rate and schema tables
type PaymentFiles struct {
	Rates   []string `json:"rates"`
	Schemas []string `json:"schemas"`
}

// NewPaymentService creates a payment service; loc is the default report timezone
func NewPaymentService(store ports.StudyStore, payments ports.PaymentSource, exporter ports.ReportExporter, loc *time.Location) *PaymentService {
	if loc == nil {
		loc = time.UTC
	}
	return &PaymentService{
		store:    store,
		payments: payments,
		exporter: exporter,
		location: loc,
		now:      time.Now,
		logger:   serviceLogger("payment"),
	}
}

// Participants returns the sorted participant ids of a study
func (s *PaymentService) Participants(ctx context.Context, name core.StudyName) ([]string, error) {
	sessions, err := s.store.LoadSessions(ctx, name)
	if err != nil {
		return nil, err
	}
	return study.ParticipantIDs(sessions), nil
}

// Files lists the rate and schema tables available for a study
func (s *PaymentService) Files(ctx context.Context, name core.StudyName) (*PaymentFiles, error) {
	rates, err := s.payments.ListRateFiles(ctx, name)
	if err != nil {
		return nil, err
	}
	schemas, err := s.payments.ListSchemaFiles(ctx, name)
	if err != nil {
		return nil, err
	}
	return &PaymentFiles{Rates: rates, Schemas: schemas}, nil
}

// Report computes the compliance and compensation report for one participant
func (s *PaymentService) Report(ctx context.Context, req PaymentRequest) (*payment.Report, error) {
	if req.Start.IsZero() {
		return nil, errors.InvalidInput("compliance start date is required")
	}
	loc, err := resolveLocation(req.Timezone, s.location)
	if err != nil {
		return nil, err
	}

	sessions, err := s.store.LoadSessions(ctx, req.Study)
	if err != nil {
		return nil, err
	}
	participant, err := matchParticipant(study.ParticipantIDs(sessions), req.Participant)
	if err != nil {
		return nil, err
	}

	rates, err := s.payments.LoadRates(ctx, req.Study, req.RateFile)
	if err != nil {
		return nil, err
	}
	schemas, err := s.payments.LoadSchemas(ctx, req.Study, req.SchemaFile)
	if err != nil {
		return nil, err
	}

	report, err := payment.BuildReport(payment.ReportInput{
		Participant: participant,
		Sessions:    study.ForParticipant(sessions, participant),
		Rates:       rates,
		Schemas:     schemas,
		Start:       req.Start,
		Location:    loc,
		Manual:      req.Manual,
		Now:         s.now(),
	})
	if err != nil {
		return nil, errors.WithCode(errors.CodeInvalidInput, err)
	}
	for _, w := range report.Warnings {
		s.logger.Warn("%s/%s: %s", req.Study, participant, w)
	}
	s.logger.Info("%s/%s: %d schemas, grand total %s", req.Study, participant, len(report.Schemas), report.Compensation.GrandTotal)
	return report, nil
}

// Export builds the report and writes it as a workbook
func (s *PaymentService) Export(ctx context.Context, req PaymentRequest, w io.Writer) (*payment.Report, error) {
	report, err := s.Report(ctx, req)
	if err != nil {
		return nil, err
	}
	if err := s.exporter.ExportPaymentReport(w, report); err != nil {
		return nil, errors.Wrap(err, "export payment report")
	}
	return report, nil
}

// matchParticipant resolves pattern to exactly one id.
func matchParticipant(ids []string, pattern string) (string, error) {
	if strings.TrimSpace(pattern) == "" {
		return "", errors.InvalidInput("participant is required")
	}
	matches := study.MatchParticipants(ids, pattern)
	switch len(matches) {
	case 0:
		return "", errors.NotFound(fmt.Sprintf("participant matching %q", pattern))
	case 1:
		return matches[0], nil
	default:
		for _, m := range matches {
			if strings.EqualFold(m, strings.TrimSpace(pattern)) {
				return m, nil
			}
		}
		return "", errors.InvalidInput(fmt.Sprintf("%q matches %d participants: %s", pattern, len(matches), strings.Join(matches, ", ")))
	}
}
