package analysis

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"gonum.org/v1/gonum/stat"

	"github.com/rewired-gh/oracleconf/internal/models"
)

// Method selects the correlation formula.
type Method string

const (
	Pearson  Method = "pearson"
	Spearman Method = "spearman"
	Kendall  Method = "kendall"
)

const (
	StrengthStrong   = "Strong"
	StrengthModerate = "Moderate"
	StrengthWeak     = "Weak"
	StrengthVeryWeak = "Very weak"

	DirectionPositive = "positive"
	DirectionNegative = "negative"
)

// ParseMethod validates a correlation method name.
func ParseMethod(name string) (Method, error) {
	switch m := Method(strings.ToLower(strings.TrimSpace(name))); m {
	case Pearson, Spearman, Kendall:
		return m, nil
	default:
		return "", fmt.Errorf("%w: %q (expected pearson, spearman or kendall)", models.ErrUnsupportedMethod, name)
	}
}

// Correlate relates confidence at breach with each lookback feature.
// Fewer than two records yield an empty result.
func Correlate(records []models.BreachFeatureRecord, method Method) (models.CorrelationResult, error) {
	method, err := ParseMethod(string(method))
	if err != nil {
		return nil, err
	}

	result := make(models.CorrelationResult)
	if len(records) < 2 {
		return result, nil
	}

	confidence := make([]float64, len(records))
	for i, r := range records {
		confidence[i] = r.ConfidenceAtBreach
	}

	feature := make([]float64, len(records))
	for _, name := range models.FeatureNames {
		for i, r := range records {
			feature[i], _ = r.Feature(name)
		}
		coef := Coefficient(confidence, feature, method)
		strength, direction := Interpret(coef)
		result[name] = models.FeatureCorrelation{
			Coefficient: coef,
			Strength:    strength,
			Direction:   direction,
		}
	}
	return result, nil
}

// Coefficient computes the correlation of x and y. A constant column yields NaN.
func Coefficient(x, y []float64, method Method) float64 {
	switch method {
	case Spearman:
		return stat.Correlation(averageRanks(x), averageRanks(y), nil)
	case Kendall:
		return kendallTauB(x, y)
	default:
		return stat.Correlation(x, y, nil)
	}
}

// Interpret labels the strength and direction of a coefficient.
// Direction is positive only for coefficients strictly above zero.
func Interpret(coef float64) (string, string) {
	a := math.Abs(coef)

	var strength string
	switch {
	case a >= 0.7:
		strength = StrengthStrong
	case a >= 0.4:
		strength = StrengthModerate
	case a >= 0.2:
		strength = StrengthWeak
	default:
		strength = StrengthVeryWeak
	}

	direction := DirectionNegative
	if coef > 0 {
		direction = DirectionPositive
	}
	return strength, direction
}

// averageRanks assigns 1-based ranks, ties share the mean of their rank span.
func averageRanks(data []float64) []float64 {
	n := len(data)
	idx := make([]int, n)
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(a, b int) bool {
		return data[idx[a]] < data[idx[b]]
	})

	ranks := make([]float64, n)
	for i := 0; i < n; {
		j := i + 1
		for j < n && data[idx[j]] == data[idx[i]] {
			j++
		}
		avg := float64(i+j+1) / 2
		for k := i; k < j; k++ {
			ranks[idx[k]] = avg
		}
		i = j
	}
	return ranks
}

// kendallTauB is Kendall's tau with the tau-b tie correction.
// Pairs tied in both columns count toward neither correction term.
func kendallTauB(x, y []float64) float64 {
	var concordant, discordant, tiesX, tiesY float64
	for i := 0; i < len(x); i++ {
		for j := i + 1; j < len(x); j++ {
			dx := sign(x[i] - x[j])
			dy := sign(y[i] - y[j])
			switch {
			case dx == 0 && dy == 0:
			case dx == 0:
				tiesX++
			case dy == 0:
				tiesY++
			case dx == dy:
				concordant++
			default:
				discordant++
			}
		}
	}

	denom := math.Sqrt((concordant + discordant + tiesX) * (concordant + discordant + tiesY))
	if denom == 0 {
		return math.NaN()
	}
	return (concordant - discordant) / denom
}

func sign(v float64) int {
	switch {
	case v > 0:
		return 1
	case v < 0:
		return -1
	default:
		return 0
	}
}
