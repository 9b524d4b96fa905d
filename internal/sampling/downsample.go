// Package sampling reduces a confidence series to the windows around its most volatile
// stretches, so rare high-variance intervals survive the reduction.
package sampling

import (
	"fmt"
	"sort"

	"github.com/rewired-gh/oracleconf/internal/models"
)

// resyncRatio is the drop in m2 from a single removal that forces a rebuild.
const resyncRatio = 1e-6

// RollingVariance computes a centered sample variance (ddof=1) for every position.
//
// The window for position i covers [i-w/2, i+(w-1)/2]. Positions whose window does not fit
// inside the series get 0. When the series is shorter than one window, every position gets
// the variance of the whole series.
func RollingVariance(values []float64, windowSize int) []float64 {
	n := len(values)
	out := make([]float64, n)
	if n == 0 || windowSize <= 1 {
		return out
	}

	if n < windowSize {
		var acc windowWelford
		for _, v := range values {
			acc.add(v)
		}
		variance := acc.sampleVariance()
		for i := range out {
			out[i] = variance
		}
		return out
	}

	left := windowSize / 2
	right := (windowSize - 1) / 2

	var acc windowWelford
	// run counts identical trailing values so fully constant windows report exactly 0
	run := 0
	push := func(j int) {
		if j > 0 && values[j] == values[j-1] {
			run++
		} else {
			run = 1
		}
		acc.add(values[j])
	}
	variance := func() float64 {
		if run >= windowSize {
			return 0
		}
		return acc.sampleVariance()
	}

	for j := 0; j < windowSize; j++ {
		push(j)
	}
	out[left] = variance()

	steps := 0
	for i := left + 1; i+right < n; i++ {
		before := acc.m2
		acc.remove(values[i-left-1])
		cancelled := acc.m2 < before*resyncRatio
		push(i + right)

		// removing a dominant value leaves m2 as the difference of two large numbers;
		// resync then, and once per window to bound drift
		steps++
		if cancelled || steps >= windowSize {
			acc.reset(values[i-left : i+right+1])
			steps = 0
		}
		out[i] = variance()
	}

	return out
}

func validate(series models.Series, targetSize, windowSize int) error {
	if len(series) == 0 {
		return models.ErrEmptySeries
	}
	if windowSize < 1 {
		return fmt.Errorf("%w: window size %d must be at least 1", models.ErrInvalidSampling, windowSize)
	}
	if targetSize < windowSize {
		return fmt.Errorf("%w: target size %d must be at least window size %d", models.ErrInvalidSampling, targetSize, windowSize)
	}
	return nil
}

// SelectPositions returns the sorted, deduplicated positions kept by the variance-guided
// reduction of series.
func SelectPositions(series models.Series, targetSize, windowSize int) ([]int, error) {
	if err := validate(series, targetSize, windowSize); err != nil {
		return nil, err
	}

	n := len(series)
	variances := RollingVariance(series.Confidences(), windowSize)

	numWindows := targetSize / windowSize
	chunkSize := n / numWindows
	half := windowSize / 2

	selected := make(map[int]struct{})
	for i := 0; i < numWindows; i++ {
		start := i * chunkSize
		if start >= n {
			break
		}
		end := start + chunkSize
		if i == numWindows-1 || end > n {
			end = n
		}
		if end <= start {
			continue
		}

		maxIdx := start
		for j := start + 1; j < end; j++ {
			if variances[j] > variances[maxIdx] {
				maxIdx = j
			}
		}

		winStart := maxIdx - half
		winEnd := winStart + windowSize
		if winStart < 0 {
			winStart = 0
		}
		if winEnd > n {
			winEnd = n
		}
		for j := winStart; j < winEnd; j++ {
			selected[j] = struct{}{}
		}
	}

	positions := make([]int, 0, len(selected))
	for p := range selected {
		positions = append(positions, p)
	}
	sort.Ints(positions)
	return positions, nil
}

// Downsample returns a new series holding only the positions chosen by SelectPositions,
// in their original order.
func Downsample(series models.Series, targetSize, windowSize int) (models.Series, error) {
	positions, err := SelectPositions(series, targetSize, windowSize)
	if err != nil {
		return nil, err
	}
	out := make(models.Series, len(positions))
	for i, p := range positions {
		out[i] = series[p]
	}
	return out, nil
}

// Summary describes how much of a series a reduction kept.
type Summary struct {
	InputSize  int
	OutputSize int
	Chunks     int
	// RetainedPct is OutputSize as a percentage of InputSize.
	RetainedPct float64
}

// DownsampleWithSummary is Downsample plus a retention summary for logging.
func DownsampleWithSummary(series models.Series, targetSize, windowSize int) (models.Series, Summary, error) {
	out, err := Downsample(series, targetSize, windowSize)
	if err != nil {
		return nil, Summary{}, err
	}
	summary := Summary{
		InputSize:   len(series),
		OutputSize:  len(out),
		Chunks:      targetSize / windowSize,
		RetainedPct: float64(len(out)) / float64(len(series)) * 100,
	}
	return out, summary, nil
}
