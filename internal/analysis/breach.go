package analysis

import (
	"github.com/montanaflynn/stats"

	"github.com/rewired-gh/oracleconf/internal/models"
)

// DetectBreaches returns every observation whose confidence is strictly above thresholdBps,
// keeping original order and positions.
func DetectBreaches(series models.ReturnSeries, thresholdBps float64) []models.BreachEvent {
	breaches := make([]models.BreachEvent, 0)
	for i, o := range series {
		if o.Confidence > thresholdBps {
			breaches = append(breaches, models.BreachEvent{
				Position:   i,
				Time:       o.Time,
				Confidence: o.Confidence,
				Price:      o.Price,
			})
		}
	}
	return breaches
}

// BreachPositions extracts the series positions of breaches.
func BreachPositions(breaches []models.BreachEvent) []int {
	out := make([]int, len(breaches))
	for i, b := range breaches {
		out[i] = b.Position
	}
	return out
}

// BreachSummary describes a breach scan for reporting.
type BreachSummary struct {
	Threshold float64
	Total     int
	Count     int
	// Rate is a percentage of Total.
	Rate float64

	HasStats       bool
	MeanConfidence float64
	MaxConfidence  float64
	MinConfidence  float64
}

// SummarizeBreaches computes the count, rate and confidence statistics of a breach scan
// over a series of total observations. An empty breach set has no statistics.
func SummarizeBreaches(thresholdBps float64, total int, breaches []models.BreachEvent) BreachSummary {
	summary := BreachSummary{
		Threshold: thresholdBps,
		Total:     total,
		Count:     len(breaches),
	}
	if total > 0 {
		summary.Rate = float64(len(breaches)) / float64(total) * PercentageBase
	}
	if len(breaches) == 0 {
		return summary
	}

	data := make(stats.Float64Data, len(breaches))
	for i, b := range breaches {
		data[i] = b.Confidence
	}
	mean, err := data.Mean()
	if err != nil {
		return summary
	}
	maxConf, err := data.Max()
	if err != nil {
		return summary
	}
	minConf, err := data.Min()
	if err != nil {
		return summary
	}

	summary.HasStats = true
	summary.MeanConfidence = mean
	summary.MaxConfidence = maxConf
	summary.MinConfidence = minConf
	return summary
}
