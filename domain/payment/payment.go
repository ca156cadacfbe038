// Package payment turns detected activity into compensation: each rate
// pays its amount for every session whose survey name mentions the rate's
// reason, plus manually entered occurrences.
package payment

import (
	"fmt"
	"strings"

	"studykit/domain/study"
)

// Rate is one row of a rates table.
type Rate struct {
	ID     string `json:"id"`
	Reason string `json:"reason"`
	Amount Cents  `json:"amount"`
}

// FindRate returns the rate with the given id.
func FindRate(rates []Rate, id string) (Rate, bool) {
	if id == "" {
		return Rate{}, false
	}
	for _, r := range rates {
		if r.ID == id {
			return r, true
		}
	}
	return Rate{}, false
}

// RateReason returns the reason of rate id, or "" if there is none.
func RateReason(rates []Rate, id string) string {
	r, _ := FindRate(rates, id)
	return r.Reason
}

// RateAmount returns the amount of rate id, or 0 if there is none.
func RateAmount(rates []Rate, id string) Cents {
	r, _ := FindRate(rates, id)
	return r.Amount
}

// AutoCounts counts, per rate reason, the sessions whose survey name
// contains the reason (case-insensitive). Every reason gets a key. Rates
// with an empty reason count nothing. A session mentioning several reasons
// counts once for each.
func AutoCounts(sessions []study.Session, rates []Rate) map[string]int {
	names := make([]string, len(sessions))
	for i, s := range sessions {
		names[i] = strings.ToLower(s.SurveyName)
	}

	counts := make(map[string]int, len(rates))
	for _, r := range rates {
		if _, done := counts[r.Reason]; done {
			continue
		}
		counts[r.Reason] = 0
		if r.Reason == "" {
			continue
		}
		needle := strings.ToLower(r.Reason)
		for _, name := range names {
			if strings.Contains(name, needle) {
				counts[r.Reason]++
			}
		}
	}
	return counts
}

// LineItem is one row of the compensation table.
type LineItem struct {
	RateID      string `json:"rate_id"`
	Reason      string `json:"reason"`
	Amount      Cents  `json:"amount"`
	AutoCount   int    `json:"auto_count"`
	ManualCount int    `json:"manual_count"`
	Subtotal    Cents  `json:"subtotal"`
}

// Summary is the compensation table with its totals.
type Summary struct {
	Items       []LineItem `json:"items"`
	AutoTotal   Cents      `json:"auto_total"`
	ManualTotal Cents      `json:"manual_total"`
	GrandTotal  Cents      `json:"grand_total"`
}

// Totals prices every rate: subtotal = amount * (auto + manual). Auto
// counts are keyed by reason, manual counts by rate id; missing keys are 0.
func Totals(rates []Rate, auto map[string]int, manual map[string]int) (Summary, error) {
	summary := Summary{Items: make([]LineItem, 0, len(rates))}
	for _, r := range rates {
		m := manual[r.ID]
		if m < 0 {
			return Summary{}, fmt.Errorf("manual count for rate %s is negative (%d)", r.ID, m)
		}
		a := auto[r.Reason]
		item := LineItem{
			RateID:      r.ID,
			Reason:      r.Reason,
			Amount:      r.Amount,
			AutoCount:   a,
			ManualCount: m,
			Subtotal:    r.Amount.Times(a + m),
		}
		summary.Items = append(summary.Items, item)
		summary.AutoTotal += r.Amount.Times(a)
		summary.ManualTotal += r.Amount.Times(m)
	}
	summary.GrandTotal = summary.AutoTotal + summary.ManualTotal
	return summary, nil
}
