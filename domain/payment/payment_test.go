package payment

import (
	"encoding/json"
	"testing"
	"time"

	"studykit/domain/compliance"
	"studykit/domain/core"
	"studykit/domain/study"
)

func emaSessions(n int) []study.Session {
	var sessions []study.Session
	for i := 0; i < n; i++ {
		sessions = append(sessions, study.Session{
			SurveyName: "Completed an EMA survey",
			StartedAt:  time.Date(2025, time.May, 1+i, 12, 0, 0, 0, time.UTC),
		})
	}
	return sessions
}

func TestPaymentTotal(t *testing.T) {
	rates := []Rate{{ID: "1", Reason: "ema survey", Amount: 200}}
	auto := AutoCounts(emaSessions(5), rates)
	if auto["ema survey"] != 5 {
		t.Fatalf("expected 5 auto-detected sessions, got %d", auto["ema survey"])
	}

	summary, err := Totals(rates, auto, nil)
	if err != nil {
		t.Fatalf("Totals: %v", err)
	}
	if summary.Items[0].Subtotal != 1000 {
		t.Errorf("expected $10.00 subtotal, got %s", summary.Items[0].Subtotal)
	}
	if summary.GrandTotal != 1000 {
		t.Errorf("expected $10.00 grand total, got %s", summary.GrandTotal)
	}
}

func TestTotalsWithManualCounts(t *testing.T) {
	rates := []Rate{
		{ID: "1", Reason: "ema", Amount: 200},
		{ID: "2", Reason: "interview", Amount: 2500},
		{ID: "3", Reason: "", Amount: 500},
	}
	auto := AutoCounts(emaSessions(3), rates)
	summary, err := Totals(rates, auto, map[string]int{"2": 1, "3": 2})
	if err != nil {
		t.Fatalf("Totals: %v", err)
	}
	if summary.AutoTotal != 600 {
		t.Errorf("expected $6.00 auto total, got %s", summary.AutoTotal)
	}
	if summary.ManualTotal != 3500 {
		t.Errorf("expected $35.00 manual total, got %s", summary.ManualTotal)
	}
	if summary.GrandTotal != 4100 {
		t.Errorf("expected $41.00 grand total, got %s", summary.GrandTotal)
	}
	if summary.Items[2].AutoCount != 0 {
		t.Errorf("an empty reason should never auto-count, got %d", summary.Items[2].AutoCount)
	}

	if _, err := Totals(rates, auto, map[string]int{"1": -1}); err == nil {
		t.Error("expected negative manual counts to be rejected")
	}
}

func TestAutoCountsOverlap(t *testing.T) {
	sessions := []study.Session{
		{SurveyName: "EMA Survey - Morning"},
		{SurveyName: "ema survey - evening"},
		{SurveyName: "Weekly check-in"},
	}
	rates := []Rate{
		{ID: "1", Reason: "EMA"},
		{ID: "2", Reason: "morning"},
		{ID: "3", Reason: "daily diary"},
	}
	counts := AutoCounts(sessions, rates)
	if counts["EMA"] != 2 || counts["morning"] != 1 || counts["daily diary"] != 0 {
		t.Errorf("unexpected counts %v", counts)
	}
	if _, ok := counts["daily diary"]; !ok {
		t.Error("every reason should have a key")
	}
	if got := AutoCounts(nil, rates); got["EMA"] != 0 {
		t.Errorf("no sessions should give zero counts, got %v", got)
	}
}

func TestRateLookups(t *testing.T) {
	rates := []Rate{{ID: "1", Reason: "ema", Amount: 200}}
	if RateReason(rates, "1") != "ema" || RateAmount(rates, "1") != 200 {
		t.Error("expected rate 1 to resolve")
	}
	if RateReason(rates, "9") != "" || RateAmount(rates, "9") != 0 {
		t.Error("unknown rate should resolve to zero values")
	}
	if _, ok := FindRate(rates, ""); ok {
		t.Error("empty id should never match")
	}
}

func TestParseAmount(t *testing.T) {
	tests := map[string]Cents{
		"$10.00":    1000,
		"1,250":     125000,
		" $0.5 ":    50,
		"2.5":       250,
		"$1,234.56": 123456,
	}
	for in, want := range tests {
		got, err := ParseAmount(in)
		if err != nil {
			t.Errorf("ParseAmount(%q): %v", in, err)
			continue
		}
		if got != want {
			t.Errorf("ParseAmount(%q) = %d, want %d", in, got, want)
		}
	}
	for _, bad := range []string{"", "$", "ten dollars", "NaN"} {
		if _, err := ParseAmount(bad); err == nil {
			t.Errorf("expected an error for %q", bad)
		}
	}
}

func TestCentsString(t *testing.T) {
	tests := map[Cents]string{
		0:         "$0.00",
		5:         "$0.05",
		1000:      "$10.00",
		123456:    "$1,234.56",
		-250:      "-$2.50",
		100000000: "$1,000,000.00",
	}
	for in, want := range tests {
		if got := in.String(); got != want {
			t.Errorf("Cents(%d).String() = %q, want %q", int64(in), got, want)
		}
	}
}

func TestSummaryJSONUsesFormattedAmounts(t *testing.T) {
	raw, err := json.Marshal(LineItem{RateID: "1", Amount: 200, Subtotal: 1000})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	want := `{"rate_id":"1","reason":"","amount":"$2.00","auto_count":0,"manual_count":0,"subtotal":"$10.00"}`
	if string(raw) != want {
		t.Errorf("unexpected JSON %s", raw)
	}
}

func TestBuildReport(t *testing.T) {
	rates := []Rate{
		{ID: "1", Reason: "ema survey", Amount: 200},
		{ID: "2", Reason: "bonus", Amount: 500},
	}
	schemas := []compliance.Schema{
		{Name: "daily ema", RateID: "1", PossiblePerDay: 1, NumDays: 3, BonusRateID: "2", BonusThreshold: 1},
	}
	sessions := emaSessions(5)
	report, err := BuildReport(ReportInput{
		Participant: "ppt-1001",
		Sessions:    sessions[1:],
		Rates:       rates,
		Schemas:     schemas,
		Start:       core.NewDate(2025, time.May, 2),
		Location:    time.UTC,
		Manual:      map[string]int{"2": 1},
		Now:         time.Date(2025, time.May, 10, 0, 0, 0, 0, time.UTC),
	})
	if err != nil {
		t.Fatalf("BuildReport: %v", err)
	}

	if len(report.Schemas) != 1 {
		t.Fatalf("expected one schema report, got %d", len(report.Schemas))
	}
	sr := report.Schemas[0]
	if sr.Reason != "ema survey" || sr.End.String() != "2025-05-04" {
		t.Errorf("unexpected schema header %+v", sr)
	}
	if sr.Stats.Possible != 3 || sr.Stats.Completed != 3 || sr.PercentComplete != 100 {
		t.Errorf("unexpected stats %+v (%v%%)", sr.Stats, sr.PercentComplete)
	}
	if sr.BonusDays != 3 {
		t.Errorf("expected 3 bonus days, got %d", sr.BonusDays)
	}
	if len(report.Warnings) != 1 {
		t.Errorf("expected a warning for the May 5 session, got %v", report.Warnings)
	}
	if report.Compensation.GrandTotal != 1300 {
		t.Errorf("expected $13.00 (4 x $2 + 1 x $5), got %s", report.Compensation.GrandTotal)
	}
}
