package compliance

import (
	"github.com/montanaflynn/stats"
	"gonum.org/v1/gonum/stat"
)

// Summary describes the shape of a participant's daily activity.
type Summary struct {
	Days       int     `json:"days"`
	ActiveDays int     `json:"active_days"`
	Total      int     `json:"total"`
	Mean       float64 `json:"mean"`
	Median     float64 `json:"median"`
	StdDev     float64 `json:"std_dev"`
	Max        float64 `json:"max"`
	// Trend is the least-squares slope of count against day index, in
	// sessions per day. Negative values mean engagement is falling off.
	Trend float64 `json:"trend"`
}

// Summarize computes descriptive statistics over counts. An empty input
// yields a zero Summary.
func Summarize(counts []DailyCount) (Summary, error) {
	summary := Summary{Days: len(counts)}
	if len(counts) == 0 {
		return summary, nil
	}

	data := make(stats.Float64Data, len(counts))
	days := make([]float64, len(counts))
	for i, c := range counts {
		data[i] = float64(c.Count)
		days[i] = float64(i)
		summary.Total += c.Count
		if c.Count > 0 {
			summary.ActiveDays++
		}
	}

	var err error
	if summary.Mean, err = stats.Mean(data); err != nil {
		return summary, err
	}
	if summary.Median, err = stats.Median(data); err != nil {
		return summary, err
	}
	if summary.StdDev, err = stats.StandardDeviation(data); err != nil {
		return summary, err
	}
	if summary.Max, err = stats.Max(data); err != nil {
		return summary, err
	}

	if len(counts) >= 2 {
		_, summary.Trend = stat.LinearRegression(days, data, nil, false)
	}
	return summary, nil
}
