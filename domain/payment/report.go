package payment

import (
	"fmt"
	"time"

	"studykit/domain/compliance"
	"studykit/domain/core"
	"studykit/domain/study"
)

// SchemaReport is the compliance picture for one schema.
type SchemaReport struct {
	Schema          compliance.Schema       `json:"schema"`
	Reason          string                  `json:"reason"`
	Start           core.Date               `json:"start"`
	End             core.Date               `json:"end"`
	Counts          []compliance.DailyCount `json:"daily_counts"`
	BonusDays       int                     `json:"bonus_days"`
	Stats           compliance.Stats        `json:"stats"`
	PercentComplete float64                 `json:"percent_complete"`
	Summary         compliance.Summary      `json:"summary"`
}

// Report is everything computed for one participant.
type Report struct {
	Participant  string         `json:"participant"`
	Timezone     string         `json:"timezone"`
	Start        core.Date      `json:"start"`
	GeneratedAt  time.Time      `json:"generated_at"`
	Sessions     int            `json:"sessions"`
	Schemas      []SchemaReport `json:"schemas"`
	Compensation Summary        `json:"compensation"`
	Warnings     []string       `json:"warnings,omitempty"`
}

// ReportInput collects what BuildReport needs. Sessions must already be
// narrowed to the participant.
type ReportInput struct {
	Participant string
	Sessions    []study.Session
	Rates       []Rate
	Schemas     []compliance.Schema
	Start       core.Date
	Location    *time.Location
	Manual      map[string]int
	Now         time.Time
}

// BuildReport computes per-schema compliance and the compensation table.
// Bonus days are reported but not paid automatically; they go through
// manual counts.
func BuildReport(in ReportInput) (*Report, error) {
	loc := in.Location
	if loc == nil {
		loc = time.UTC
	}
	report := &Report{
		Participant: in.Participant,
		Timezone:    loc.String(),
		Start:       in.Start,
		GeneratedAt: in.Now,
		Sessions:    len(in.Sessions),
		Schemas:     make([]SchemaReport, 0, len(in.Schemas)),
	}

	if compliance.HasSessionsBeforeStart(in.Sessions, in.Start, loc) {
		report.Warnings = append(report.Warnings,
			fmt.Sprintf("participant has sessions before compliance start date %s", in.Start))
	}
	maxDays := 0
	for _, s := range in.Schemas {
		if s.NumDays > maxDays {
			maxDays = s.NumDays
		}
	}
	if maxDays > 0 && compliance.HasSessionsAfterEnd(in.Sessions, in.Start, maxDays, loc) {
		report.Warnings = append(report.Warnings,
			"participant has sessions beyond the max duration of defined schemas")
	}

	for _, schema := range in.Schemas {
		reason := RateReason(in.Rates, schema.RateID)
		counts := compliance.DailyCounts(in.Sessions, in.Start, schema.NumDays, loc, reason)
		stats, err := compliance.ComputeStats(in.Start, loc, schema, counts, in.Now)
		if err != nil {
			return nil, fmt.Errorf("schema %s: %w", schema.Name, err)
		}
		summary, err := compliance.Summarize(counts)
		if err != nil {
			return nil, fmt.Errorf("schema %s: %w", schema.Name, err)
		}
		end := in.Start
		if schema.NumDays > 0 {
			end = in.Start.AddDays(schema.NumDays - 1)
		}
		report.Schemas = append(report.Schemas, SchemaReport{
			Schema:          schema,
			Reason:          reason,
			Start:           in.Start,
			End:             end,
			Counts:          counts,
			BonusDays:       compliance.BonusDays(counts, schema.BonusThreshold),
			Stats:           stats,
			PercentComplete: stats.PercentComplete(),
			Summary:         summary,
		})
	}

	compensation, err := Totals(in.Rates, AutoCounts(in.Sessions, in.Rates), in.Manual)
	if err != nil {
		return nil, err
	}
	report.Compensation = compensation
	return report, nil
}
