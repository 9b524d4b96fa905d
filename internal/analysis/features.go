package analysis

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/rewired-gh/oracleconf/internal/models"
)

// ExtractFeatures summarizes the lookback returns strictly before each breach position.
//
// The window for a breach at p is [p-lookback, p-1]; the breach's own return is excluded.
// Breaches with insufficient history or a missing return in the window produce no record.
func ExtractFeatures(series models.ReturnSeries, positions []int, lookback int) ([]models.BreachFeatureRecord, error) {
	if lookback < 1 {
		return nil, fmt.Errorf("%w: got %d", models.ErrInvalidLookback, lookback)
	}

	records := make([]models.BreachFeatureRecord, 0, len(positions))
	window := make([]float64, lookback)
	abs := make([]float64, lookback)

	for _, p := range positions {
		if p < 0 || p >= len(series) {
			return nil, fmt.Errorf("%w: breach position %d outside series of length %d", models.ErrMalformedSeries, p, len(series))
		}
		if p < lookback {
			continue
		}
		if !fillWindow(window, series[p-lookback:p]) {
			continue
		}

		for i, r := range window {
			abs[i] = math.Abs(r)
		}
		mean, std := stat.PopMeanStdDev(window, nil)

		obs := series[p]
		records = append(records, models.BreachFeatureRecord{
			BreachPosition:     p,
			BreachTime:         obs.Time,
			ConfidenceAtBreach: obs.Confidence,
			PriceAtBreach:      obs.Price,
			MeanReturn:         mean,
			Volatility:         std,
			CumulativeReturn:   floats.Sum(window),
			MaxReturn:          floats.Max(window),
			MinReturn:          floats.Min(window),
			AbsMeanReturn:      stat.Mean(abs, nil),
		})
	}

	return records, nil
}

func fillWindow(dst []float64, src models.ReturnSeries) bool {
	for i, o := range src {
		if o.Missing() {
			return false
		}
		dst[i] = o.ReturnPct
	}
	return true
}
