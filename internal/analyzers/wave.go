package analyzers

import (
	"fmt"

	"ultra-signal-engine/internal/market"
	"ultra-signal-engine/internal/patterns"
)

// EvaluateWave maps the detected Elliott-wave structure onto a sub-score.
// The corrective-phase sign comes from the detector's measured wave-C
// geometry, so identical series always score identically.
func EvaluateWave(candles []market.Candle, detector *patterns.WaveDetector, minCandles int) (AnalyzerResult, error) {
	if minCandles <= 0 {
		minCandles = 30
	}
	if len(candles) < minCandles {
		return AnalyzerResult{}, insufficientData(FactorWave, minCandles, len(candles))
	}

	wave := detector.Detect(candles)
	if wave.Phase == patterns.WaveUndefined {
		return Neutral(FactorWave), nil
	}

	// Impulses are the stronger read and move the score further off
	// midline than corrections
	span := 25.0
	if wave.Phase == patterns.WaveImpulse {
		span = 35.0
	}

	offset := wave.Confidence * span
	if wave.Direction == "bearish" {
		offset = -offset
	}

	score := clampScore(50 + offset)

	return AnalyzerResult{
		Factor:    FactorWave,
		Score:     score,
		Direction: directionForScore(score),
		Summary:   fmt.Sprintf("%s (%s) at %.0f%% confidence", wave.Label, wave.Phase, wave.Confidence*100),
		WavePhase: string(wave.Phase),
	}, nil
}
