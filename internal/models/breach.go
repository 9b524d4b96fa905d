package models

// BreachEvent is an observation whose confidence exceeded the configured threshold.
// Position refers to the original series, it is never renumbered.
type BreachEvent struct {
	Position   int
	Time       int64
	Confidence float64
	Price      float64
}

const (
	FeatureMeanReturn       = "meanReturn"
	FeatureVolatility       = "volatility"
	FeatureCumulativeReturn = "cumulativeReturn"
	FeatureMaxReturn        = "maxReturn"
	FeatureMinReturn        = "minReturn"
	FeatureAbsMeanReturn    = "absMeanReturn"
)

// FeatureNames lists the lookback features in reporting order.
var FeatureNames = []string{
	FeatureMeanReturn,
	FeatureVolatility,
	FeatureCumulativeReturn,
	FeatureMaxReturn,
	FeatureMinReturn,
	FeatureAbsMeanReturn,
}

// BreachFeatureRecord describes the returns leading up to a single breach.
type BreachFeatureRecord struct {
	BreachPosition     int     `json:"breachIndex"`
	BreachTime         int64   `json:"breachTime"`
	ConfidenceAtBreach float64 `json:"confidenceAtBreach"`
	PriceAtBreach      float64 `json:"priceAtBreach"`
	MeanReturn         float64 `json:"meanReturn"`
	Volatility         float64 `json:"volatility"`
	CumulativeReturn   float64 `json:"cumulativeReturn"`
	MaxReturn          float64 `json:"maxReturn"`
	MinReturn          float64 `json:"minReturn"`
	AbsMeanReturn      float64 `json:"absMeanReturn"`
}

// Feature returns the named feature column value.
func (r BreachFeatureRecord) Feature(name string) (float64, bool) {
	switch name {
	case FeatureMeanReturn:
		return r.MeanReturn, true
	case FeatureVolatility:
		return r.Volatility, true
	case FeatureCumulativeReturn:
		return r.CumulativeReturn, true
	case FeatureMaxReturn:
		return r.MaxReturn, true
	case FeatureMinReturn:
		return r.MinReturn, true
	case FeatureAbsMeanReturn:
		return r.AbsMeanReturn, true
	default:
		return 0, false
	}
}

// FeatureCorrelation is the association between breach confidence and one feature.
type FeatureCorrelation struct {
	Coefficient float64 `json:"coefficient"`
	Strength    string  `json:"strength"`
	Direction   string  `json:"direction"`
}

// CorrelationResult maps feature name to its correlation with confidence at breach.
type CorrelationResult map[string]FeatureCorrelation
