// Package pipeline runs one analysis over a normalized series: the variance-guided reduction
// for charting and the breach / feature / correlation path.
package pipeline

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"

	"github.com/rewired-gh/oracleconf/internal/analysis"
	"github.com/rewired-gh/oracleconf/internal/logger"
	"github.com/rewired-gh/oracleconf/internal/models"
	"github.com/rewired-gh/oracleconf/internal/sampling"
)

type Config struct {
	ThresholdBps float64
	Lookback     int
	Method       string
	TargetSize   int
	WindowSize   int
}

func DefaultConfig() Config {
	return Config{
		ThresholdBps: 300,
		Lookback:     10,
		Method:       string(analysis.Pearson),
		TargetSize:   10000,
		WindowSize:   100,
	}
}

// Result holds everything one run produced. Nothing here is persisted.
type Result struct {
	RunID        string
	Method       analysis.Method
	Input        int
	Sampled      models.Series
	Sampling     sampling.Summary
	Breaches     []models.BreachEvent
	Summary      analysis.BreachSummary
	Records      []models.BreachFeatureRecord
	Correlations models.CorrelationResult
	Duration     time.Duration
}

type Pipeline struct {
	config Config
	method analysis.Method
}

// New checks the configuration up front so a bad method or lookback fails before any work.
func New(config Config) (*Pipeline, error) {
	method, err := analysis.ParseMethod(config.Method)
	if err != nil {
		return nil, err
	}
	if config.Lookback < 1 {
		return nil, fmt.Errorf("%w: got %d", models.ErrInvalidLookback, config.Lookback)
	}
	if config.WindowSize < 1 || config.TargetSize < config.WindowSize {
		return nil, fmt.Errorf("%w: target size %d, window size %d",
			models.ErrInvalidSampling, config.TargetSize, config.WindowSize)
	}
	return &Pipeline{config: config, method: method}, nil
}

// Run processes series start to finish. ctx is checked between stages.
func (p *Pipeline) Run(ctx context.Context, series models.Series) (*Result, error) {
	startTime := time.Now()
	if err := series.Validate(); err != nil {
		return nil, err
	}

	result := &Result{
		RunID:  uuid.New().String(),
		Method: p.method,
		Input:  len(series),
	}
	logger.Info("Starting analysis run %s on %d observations", result.RunID, len(series))

	sampled, summary, err := sampling.DownsampleWithSummary(series, p.config.TargetSize, p.config.WindowSize)
	if err != nil {
		return nil, fmt.Errorf("failed to downsample: %w", err)
	}
	result.Sampled = sampled
	result.Sampling = summary
	logger.Info("Downsized data from %d to %d records (%.2f%%)",
		summary.InputSize, summary.OutputSize, summary.RetainedPct)

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	returns, err := analysis.ComputeReturns(series)
	if err != nil {
		return nil, fmt.Errorf("failed to compute returns: %w", err)
	}

	result.Breaches = analysis.DetectBreaches(returns, p.config.ThresholdBps)
	result.Summary = analysis.SummarizeBreaches(p.config.ThresholdBps, len(returns), result.Breaches)
	logBreachSummary(result.Summary)

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	positions := analysis.BreachPositions(result.Breaches)
	result.Records, err = analysis.ExtractFeatures(returns, positions, p.config.Lookback)
	if err != nil {
		return nil, fmt.Errorf("failed to extract features: %w", err)
	}
	logger.Info("Extracted features for %d of %d breaches (lookback %d)",
		len(result.Records), len(result.Breaches), p.config.Lookback)

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	result.Correlations, err = analysis.Correlate(result.Records, p.method)
	if err != nil {
		return nil, fmt.Errorf("failed to correlate: %w", err)
	}
	logCorrelations(p.method, len(result.Records), result.Correlations)

	result.Duration = time.Since(startTime)
	logger.Info("Analysis run %s completed in %v", result.RunID, result.Duration)
	return result, nil
}

func logBreachSummary(s analysis.BreachSummary) {
	logger.Info("Breach analysis (threshold: %.1f bps): %d of %d observations (%.2f%%)",
		s.Threshold, s.Count, s.Total, s.Rate)
	if !s.HasStats {
		logger.Info("No breaches found")
		return
	}
	logger.Info("Breach confidence: mean %.2f, max %.2f, min %.2f bps",
		s.MeanConfidence, s.MaxConfidence, s.MinConfidence)
}

func logCorrelations(method analysis.Method, records int, result models.CorrelationResult) {
	if len(result) == 0 {
		logger.Warn("Insufficient data for correlation analysis (%d records)", records)
		return
	}
	logger.Info("Correlation analysis (%s, %d records):", method, records)
	for _, name := range models.FeatureNames {
		fc, ok := result[name]
		if !ok {
			continue
		}
		if math.IsNaN(fc.Coefficient) {
			logger.Info("  %-18s undefined (constant column)", name)
			continue
		}
		logger.Info("  %-18s %+.4f (%s %s)", name, fc.Coefficient, fc.Strength, fc.Direction)
	}
}
