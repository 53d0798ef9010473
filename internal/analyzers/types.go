package analyzers

import (
	"errors"
	"fmt"
)

// Factor names, also the keys of the fusion weight map
const (
	FactorTechnical = "technical"
	FactorVolume    = "volume"
	FactorPattern   = "pattern"
	FactorWave      = "wave"
	FactorSentiment = "sentiment"
)

// Direction labels
const (
	DirectionBullish  = "BULLISH"
	DirectionBearish  = "BEARISH"
	DirectionSideways = "SIDEWAYS"
	DirectionNeutral  = "NEUTRAL"
)

// AnalyzerResult is one domain's normalized opinion: a 0-100 sub-score plus
// descriptive fields. Results are created fresh per evaluation and never
// mutated afterwards.
type AnalyzerResult struct {
	Factor    string  `json:"factor"`
	Score     float64 `json:"score"`     // 0-100
	Direction string  `json:"direction"` // BULLISH, BEARISH, SIDEWAYS, NEUTRAL
	Summary   string  `json:"summary"`

	// Volume adapter only: fraction of traded volume on each side, 0-1
	BuyPressure  float64 `json:"buy_pressure,omitempty"`
	SellPressure float64 `json:"sell_pressure,omitempty"`

	// Technical adapter only: 0-100 volatility regime score
	Volatility float64 `json:"volatility,omitempty"`

	// Pattern / wave adapters only
	Pattern   string `json:"pattern,omitempty"`
	WavePhase string `json:"wave_phase,omitempty"`
}

// ErrInsufficientData is returned when a candle series is shorter than the
// adapter's configured minimum
var ErrInsufficientData = errors.New("insufficient data")

func insufficientData(factor string, need, got int) error {
	return fmt.Errorf("%s analyzer: %w: need %d candles, got %d", factor, ErrInsufficientData, need, got)
}

// Neutral returns the midpoint result an adapter falls back to when its
// sub-signals are inconclusive, and the substitute used for disabled
// adapters so fusion weighting stays well-defined.
func Neutral(factor string) AnalyzerResult {
	direction := DirectionSideways
	if factor == FactorSentiment {
		direction = DirectionNeutral
	}
	r := AnalyzerResult{
		Factor:    factor,
		Score:     50,
		Direction: direction,
		Summary:   "no decisive signal",
	}
	if factor == FactorVolume {
		r.BuyPressure = 0.5
		r.SellPressure = 0.5
	}
	return r
}

// directionForScore maps a 0-100 score onto the standard direction band:
// the 40-60 middle is always sideways.
func directionForScore(score float64) string {
	switch {
	case score >= 60:
		return DirectionBullish
	case score <= 40:
		return DirectionBearish
	default:
		return DirectionSideways
	}
}

func clampScore(score float64) float64 {
	if score < 0 {
		return 0
	}
	if score > 100 {
		return 100
	}
	return score
}
