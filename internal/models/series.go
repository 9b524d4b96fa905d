// Package models defines the core domain entities: observations, series, breaches and
// breach features.
package models

import (
	"errors"
	"fmt"
	"math"
)

var (
	ErrEmptySeries       = errors.New("series must not be empty")
	ErrMalformedSeries   = errors.New("malformed series")
	ErrUnsupportedMethod = errors.New("unsupported correlation method")
	ErrInvalidSampling   = errors.New("invalid sampling parameters")
	ErrInvalidLookback   = errors.New("lookback must be at least 1")
)

// Observation is a single oracle publication, already normalized by the loader.
// Confidence is expressed in basis points.
type Observation struct {
	Time       int64   `json:"time"`
	Price      float64 `json:"price"`
	Confidence float64 `json:"confidence"`
}

// Series is an ordered run of observations. Position, not time, is the unit of windowing.
type Series []Observation

// Validate checks the series invariants: non-empty, non-decreasing time, finite price,
// finite non-negative confidence.
func (s Series) Validate() error {
	if len(s) == 0 {
		return ErrEmptySeries
	}
	for i, o := range s {
		if i > 0 && o.Time < s[i-1].Time {
			return fmt.Errorf("%w: time decreases at position %d (%d < %d)", ErrMalformedSeries, i, o.Time, s[i-1].Time)
		}
		if math.IsNaN(o.Price) || math.IsInf(o.Price, 0) {
			return fmt.Errorf("%w: non-finite price at position %d", ErrMalformedSeries, i)
		}
		if math.IsNaN(o.Confidence) || math.IsInf(o.Confidence, 0) {
			return fmt.Errorf("%w: non-finite confidence at position %d", ErrMalformedSeries, i)
		}
		if o.Confidence < 0 {
			return fmt.Errorf("%w: negative confidence at position %d", ErrMalformedSeries, i)
		}
	}
	return nil
}

// Confidences returns a fresh slice of the confidence column.
func (s Series) Confidences() []float64 {
	out := make([]float64, len(s))
	for i, o := range s {
		out[i] = o.Confidence
	}
	return out
}

// ReturnObservation is an Observation augmented with the percentage price return
// against the previous position. The first position of a series has no return.
type ReturnObservation struct {
	Observation
	ReturnPct float64 `json:"return_pct"`
	HasReturn bool    `json:"has_return"`
}

// Missing reports whether the return is absent or NaN.
func (r ReturnObservation) Missing() bool {
	return !r.HasReturn || math.IsNaN(r.ReturnPct)
}

type ReturnSeries []ReturnObservation
