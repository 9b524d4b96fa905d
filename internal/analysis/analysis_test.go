package analysis

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rewired-gh/oracleconf/internal/models"
)

func pricesToSeries(prices []float64) models.Series {
	s := make(models.Series, len(prices))
	for i, p := range prices {
		s[i] = models.Observation{Time: int64(1000 + i), Price: p, Confidence: 50}
	}
	return s
}

func returnSeries(returns []float64) models.ReturnSeries {
	s := make(models.ReturnSeries, len(returns))
	for i, r := range returns {
		s[i] = models.ReturnObservation{
			Observation: models.Observation{Time: int64(1000 + i), Price: 100, Confidence: 50},
			ReturnPct:   r,
			HasReturn:   i > 0,
		}
	}
	return s
}

func TestComputeReturns(t *testing.T) {
	got, err := ComputeReturns(pricesToSeries([]float64{100, 110, 99}))
	require.NoError(t, err)
	require.Len(t, got, 3)

	assert.False(t, got[0].HasReturn)
	assert.True(t, got[0].Missing())
	assert.InDelta(t, 10.0, got[1].ReturnPct, 1e-9)
	assert.InDelta(t, -10.0, got[2].ReturnPct, 1e-9)
	for i, o := range got {
		assert.Equal(t, int64(1000+i), o.Time, "order must be preserved")
	}
}

func TestComputeReturns_Errors(t *testing.T) {
	tests := []struct {
		name    string
		series  models.Series
		wantErr error
	}{
		{name: "empty", series: models.Series{}, wantErr: models.ErrEmptySeries},
		{name: "zero previous price", series: pricesToSeries([]float64{100, 0, 5}), wantErr: models.ErrMalformedSeries},
		{name: "NaN price", series: pricesToSeries([]float64{100, math.NaN()}), wantErr: models.ErrMalformedSeries},
		{name: "infinite price", series: pricesToSeries([]float64{math.Inf(1), 100}), wantErr: models.ErrMalformedSeries},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ComputeReturns(tt.series)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestComputeReturns_ZeroLastPriceIsAllowed(t *testing.T) {
	got, err := ComputeReturns(pricesToSeries([]float64{100, 0}))
	require.NoError(t, err)
	assert.InDelta(t, -100.0, got[1].ReturnPct, 1e-9)
}

func TestDetectBreaches_StrictThreshold(t *testing.T) {
	series := models.ReturnSeries{
		{Observation: models.Observation{Time: 1, Price: 10, Confidence: 299.9}},
		{Observation: models.Observation{Time: 2, Price: 11, Confidence: 300}},
		{Observation: models.Observation{Time: 3, Price: 12, Confidence: 300.0001}},
		{Observation: models.Observation{Time: 4, Price: 13, Confidence: 100}},
		{Observation: models.Observation{Time: 5, Price: 14, Confidence: 450}},
	}

	breaches := DetectBreaches(series, 300)
	require.Len(t, breaches, 2)
	assert.Equal(t, models.BreachEvent{Position: 2, Time: 3, Confidence: 300.0001, Price: 12}, breaches[0])
	assert.Equal(t, models.BreachEvent{Position: 4, Time: 5, Confidence: 450, Price: 14}, breaches[1])
	assert.Equal(t, []int{2, 4}, BreachPositions(breaches))
}

func TestDetectBreaches_None(t *testing.T) {
	breaches := DetectBreaches(returnSeries([]float64{0, 1, 2}), 300)
	assert.NotNil(t, breaches)
	assert.Empty(t, breaches)

	summary := SummarizeBreaches(300, 3, breaches)
	assert.False(t, summary.HasStats)
	assert.Equal(t, 0, summary.Count)
	assert.Zero(t, summary.Rate)
}

func TestSummarizeBreaches(t *testing.T) {
	breaches := []models.BreachEvent{
		{Position: 1, Confidence: 400},
		{Position: 5, Confidence: 600},
	}
	summary := SummarizeBreaches(300, 8, breaches)

	assert.True(t, summary.HasStats)
	assert.Equal(t, 2, summary.Count)
	assert.Equal(t, 8, summary.Total)
	assert.InDelta(t, 25.0, summary.Rate, 1e-9)
	assert.InDelta(t, 500.0, summary.MeanConfidence, 1e-9)
	assert.Equal(t, 600.0, summary.MaxConfidence)
	assert.Equal(t, 400.0, summary.MinConfidence)
}

func TestExtractFeatures_SkipRules(t *testing.T) {
	returns := []float64{0, 1, -2, 3, 0.5, -1, 2, 4, -3, 1, 0.25, -0.75}
	series := returnSeries(returns)
	series[9].ReturnPct = math.NaN()

	tests := []struct {
		name     string
		position int
		want     int
	}{
		{name: "insufficient history", position: 2, want: 0},
		{name: "window reaches first position", position: 3, want: 0},
		{name: "clean window", position: 4, want: 1},
		{name: "NaN inside window", position: 11, want: 0},
		{name: "NaN at breach itself is outside window", position: 9, want: 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ExtractFeatures(series, []int{tt.position}, 3)
			require.NoError(t, err)
			assert.Len(t, got, tt.want)
		})
	}
}

func TestExtractFeatures_Statistics(t *testing.T) {
	returns := []float64{0, 1, -2, 3, 0.5, -1, 9}
	series := returnSeries(returns)
	series[6].Confidence = 777
	series[6].Price = 123
	series[6].Time = 4242

	got, err := ExtractFeatures(series, []int{6}, 4)
	require.NoError(t, err)
	require.Len(t, got, 1)

	window := []float64{-2, 3, 0.5, -1}
	var sum, absSum float64
	for _, r := range window {
		sum += r
		absSum += math.Abs(r)
	}
	mean := sum / 4
	var sq float64
	for _, r := range window {
		sq += (r - mean) * (r - mean)
	}

	rec := got[0]
	assert.Equal(t, 6, rec.BreachPosition)
	assert.Equal(t, int64(4242), rec.BreachTime)
	assert.Equal(t, 777.0, rec.ConfidenceAtBreach)
	assert.Equal(t, 123.0, rec.PriceAtBreach)
	assert.InDelta(t, mean, rec.MeanReturn, 1e-12)
	assert.InDelta(t, math.Sqrt(sq/4), rec.Volatility, 1e-12)
	assert.InDelta(t, sum, rec.CumulativeReturn, 1e-12)
	assert.Equal(t, 3.0, rec.MaxReturn)
	assert.Equal(t, -2.0, rec.MinReturn)
	assert.InDelta(t, absSum/4, rec.AbsMeanReturn, 1e-12)
}

func TestExtractFeatures_KeepsBreachOrder(t *testing.T) {
	series := returnSeries([]float64{0, 1, 2, 3, 4, 5, 6, 7})

	got, err := ExtractFeatures(series, []int{1, 7, 5, 3}, 2)
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, 7, got[0].BreachPosition)
	assert.Equal(t, 5, got[1].BreachPosition)
	assert.Equal(t, 3, got[2].BreachPosition)
}

func TestExtractFeatures_InvalidInput(t *testing.T) {
	series := returnSeries([]float64{0, 1, 2})

	_, err := ExtractFeatures(series, []int{2}, 0)
	assert.ErrorIs(t, err, models.ErrInvalidLookback)

	_, err = ExtractFeatures(series, []int{3}, 1)
	assert.ErrorIs(t, err, models.ErrMalformedSeries)
}

func TestParseMethod(t *testing.T) {
	for _, name := range []string{"pearson", "Spearman", " kendall "} {
		_, err := ParseMethod(name)
		assert.NoErrorf(t, err, "ParseMethod(%q)", name)
	}
	_, err := ParseMethod("cosine")
	assert.ErrorIs(t, err, models.ErrUnsupportedMethod)
}

func TestCorrelate_DegenerateInputs(t *testing.T) {
	one := []models.BreachFeatureRecord{{ConfidenceAtBreach: 400, MeanReturn: 1}}
	for _, method := range []Method{Pearson, Spearman, Kendall} {
		got, err := Correlate(nil, method)
		require.NoError(t, err)
		assert.NotNil(t, got)
		assert.Empty(t, got)

		got, err = Correlate(one, method)
		require.NoError(t, err)
		assert.Empty(t, got)
	}
}

func TestCorrelate_UnsupportedMethod(t *testing.T) {
	_, err := Correlate(nil, Method("cosine"))
	assert.ErrorIs(t, err, models.ErrUnsupportedMethod)
}

func TestCorrelate_AllFeatures(t *testing.T) {
	records := make([]models.BreachFeatureRecord, 5)
	for i := range records {
		v := float64(i + 1)
		records[i] = models.BreachFeatureRecord{
			ConfidenceAtBreach: 300 + 10*v,
			MeanReturn:         v,
			Volatility:         v * v,
			CumulativeReturn:   -v,
			MaxReturn:          v,
			MinReturn:          -v * v * v,
			AbsMeanReturn:      2,
		}
	}

	for _, method := range []Method{Pearson, Spearman, Kendall} {
		got, err := Correlate(records, method)
		require.NoError(t, err)
		require.Len(t, got, len(models.FeatureNames))

		assert.InDelta(t, 1.0, got[models.FeatureMeanReturn].Coefficient, 1e-9)
		assert.Equal(t, StrengthStrong, got[models.FeatureMeanReturn].Strength)
		assert.Equal(t, DirectionPositive, got[models.FeatureMeanReturn].Direction)

		assert.InDelta(t, -1.0, got[models.FeatureCumulativeReturn].Coefficient, 1e-9)
		assert.Equal(t, DirectionNegative, got[models.FeatureCumulativeReturn].Direction)

		assert.True(t, math.IsNaN(got[models.FeatureAbsMeanReturn].Coefficient))
		assert.Equal(t, StrengthVeryWeak, got[models.FeatureAbsMeanReturn].Strength)
		assert.Equal(t, DirectionNegative, got[models.FeatureAbsMeanReturn].Direction)
	}

	rank, err := Correlate(records, Spearman)
	require.NoError(t, err)
	assert.InDelta(t, 1.0, rank[models.FeatureVolatility].Coefficient, 1e-9)
	assert.InDelta(t, -1.0, rank[models.FeatureMinReturn].Coefficient, 1e-9)

	linear, err := Correlate(records, Pearson)
	require.NoError(t, err)
	assert.Less(t, linear[models.FeatureVolatility].Coefficient, 1.0)
}

func TestCorrelate_MethodNameIsCaseInsensitive(t *testing.T) {
	meanReturns := []float64{1, 2, 100, 101}
	records := make([]models.BreachFeatureRecord, len(meanReturns))
	for i, r := range meanReturns {
		records[i] = models.BreachFeatureRecord{ConfidenceAtBreach: float64(i + 1), MeanReturn: r}
	}

	linear, err := Correlate(records, Pearson)
	require.NoError(t, err)
	require.Less(t, linear[models.FeatureMeanReturn].Coefficient, 0.95)

	tests := []struct {
		name Method
		want Method
	}{
		{"Spearman", Spearman},
		{"SPEARMAN", Spearman},
		{"KENDALL", Kendall},
		{" Kendall ", Kendall},
		{"Pearson", Pearson},
	}
	for _, tt := range tests {
		t.Run(string(tt.name), func(t *testing.T) {
			want, err := Correlate(records, tt.want)
			require.NoError(t, err)
			got, err := Correlate(records, tt.name)
			require.NoError(t, err)
			assert.Equal(t, want[models.FeatureMeanReturn], got[models.FeatureMeanReturn])
		})
	}

	rank, err := Correlate(records, "Spearman")
	require.NoError(t, err)
	assert.InDelta(t, 1.0, rank[models.FeatureMeanReturn].Coefficient, 1e-12)
}

func TestCoefficient_Kendall(t *testing.T) {
	assert.InDelta(t, 0.2, Coefficient([]float64{1, 2, 3, 4, 5}, []float64{3, 4, 1, 2, 5}, Kendall), 1e-12)
	assert.InDelta(t, 0.8, Coefficient([]float64{1, 2, 2, 3}, []float64{1, 2, 3, 3}, Kendall), 1e-12)
	assert.True(t, math.IsNaN(Coefficient([]float64{1, 1, 1}, []float64{1, 2, 3}, Kendall)))
}

func TestAverageRanks(t *testing.T) {
	assert.Equal(t, []float64{1, 2.5, 2.5, 4}, averageRanks([]float64{1, 2, 2, 3}))
	assert.Equal(t, []float64{3, 1, 2}, averageRanks([]float64{9, -1, 0}))
}

func TestInterpret(t *testing.T) {
	tests := []struct {
		coef          float64
		wantStrength  string
		wantDirection string
	}{
		{0.75, StrengthStrong, DirectionPositive},
		{-0.5, StrengthModerate, DirectionNegative},
		{0.1, StrengthVeryWeak, DirectionPositive},
		{0.0, StrengthVeryWeak, DirectionNegative},
		{0.7, StrengthStrong, DirectionPositive},
		{-0.4, StrengthModerate, DirectionNegative},
		{0.2, StrengthWeak, DirectionPositive},
		{-0.39, StrengthWeak, DirectionNegative},
		{0.19, StrengthVeryWeak, DirectionPositive},
	}
	for _, tt := range tests {
		strength, direction := Interpret(tt.coef)
		assert.Equalf(t, tt.wantStrength, strength, "strength of %v", tt.coef)
		assert.Equalf(t, tt.wantDirection, direction, "direction of %v", tt.coef)
	}
}
