package analyzers

import (
	"fmt"

	"ultra-signal-engine/internal/market"
	"ultra-signal-engine/internal/patterns"
)

// EvaluatePattern turns the best detected chart pattern into a sub-score.
// The geometric scanning itself is the detector's job; this adapter only
// maps its label, class and confidence onto the 0-100 scale.
func EvaluatePattern(symbol, timeframe string, candles []market.Candle, detector *patterns.Detector, minCandles int) (AnalyzerResult, error) {
	if minCandles <= 0 {
		minCandles = 30
	}
	if len(candles) < minCandles {
		return AnalyzerResult{}, insufficientData(FactorPattern, minCandles, len(candles))
	}

	best := detector.Best(symbol, timeframe, candles)
	if best == nil {
		return Neutral(FactorPattern), nil
	}

	// Confidence scales the distance from neutral; a perfect-confidence
	// pattern moves the score 40 points off midline
	offset := best.Confidence * 40
	if best.Direction == "bearish" {
		offset = -offset
	}

	// Reversal patterns against the recent drift carry a little less weight
	// than continuations confirming it
	if best.Class == patterns.ClassReversal {
		offset *= 0.85
	}

	score := clampScore(50 + offset)

	return AnalyzerResult{
		Factor:    FactorPattern,
		Score:     score,
		Direction: directionForScore(score),
		Summary:   fmt.Sprintf("%s detected at %.0f%% confidence", best.Type, best.Confidence*100),
		Pattern:   string(best.Type),
	}, nil
}
