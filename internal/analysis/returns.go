// Package analysis detects confidence breaches and relates them to the price returns
// that preceded them.
package analysis

import (
	"fmt"
	"math"

	"github.com/rewired-gh/oracleconf/internal/models"
)

// PercentageBase converts a fractional change into percent.
const PercentageBase = 100.0

// ComputeReturns augments every observation with its percentage price change against the
// previous position. The first position carries no return.
func ComputeReturns(series models.Series) (models.ReturnSeries, error) {
	if len(series) == 0 {
		return nil, models.ErrEmptySeries
	}

	out := make(models.ReturnSeries, len(series))
	for i, o := range series {
		if math.IsNaN(o.Price) || math.IsInf(o.Price, 0) {
			return nil, fmt.Errorf("%w: non-finite price at position %d", models.ErrMalformedSeries, i)
		}
		out[i] = models.ReturnObservation{Observation: o}
		if i == 0 {
			continue
		}
		prev := series[i-1].Price
		if prev == 0 {
			return nil, fmt.Errorf("%w: zero price at position %d", models.ErrMalformedSeries, i-1)
		}
		out[i].ReturnPct = (o.Price - prev) / prev * PercentageBase
		out[i].HasReturn = true
	}
	return out, nil
}
