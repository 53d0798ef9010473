package fusion

// Factor keys of the fusion weight map. The first five mirror the analyzer
// factors; the pressure keys weight the volume adapter's order-flow split.
const (
	WeightTechnical    = "technical"
	WeightVolume       = "volume"
	WeightPattern      = "pattern"
	WeightWave         = "wave"
	WeightSentiment    = "sentiment"
	WeightBuyPressure  = "buy_pressure"
	WeightSellPressure = "sell_pressure"
)

// DefaultWeights returns the default per-factor multipliers. The defaults
// already sum to 1.0 but are still renormalized before every combine call.
func DefaultWeights() map[string]float64 {
	return map[string]float64{
		WeightTechnical:    0.30,
		WeightVolume:       0.15,
		WeightPattern:      0.20,
		WeightWave:         0.15,
		WeightSentiment:    0.10,
		WeightBuyPressure:  0.05,
		WeightSellPressure: 0.05,
	}
}

// NormalizeWeights merges partial overrides over the defaults and scales the
// result to sum to 1.0. Unknown keys are dropped, negative overrides are
// ignored, and a zero total leaves the merged map unscaled. Idempotent:
// normalizing an already-normalized map returns the same values.
func NormalizeWeights(overrides map[string]float64) map[string]float64 {
	merged := DefaultWeights()
	for key, value := range overrides {
		if _, known := merged[key]; !known {
			continue
		}
		if value < 0 {
			continue
		}
		merged[key] = value
	}

	sum := 0.0
	for _, w := range merged {
		sum += w
	}
	if sum <= 0 {
		return merged
	}

	for key := range merged {
		merged[key] /= sum
	}
	return merged
}
