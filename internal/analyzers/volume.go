package analyzers

import (
	"fmt"

	"ultra-signal-engine/internal/market"
)

// EvaluateVolume scores order-flow evidence from raw candles: which side the
// traded volume leans toward, and whether participation is expanding or
// drying up. Pure function of its inputs.
func EvaluateVolume(candles []market.Candle, minCandles, lookback int) (AnalyzerResult, error) {
	if minCandles <= 0 {
		minCandles = 30
	}
	if lookback <= 0 {
		lookback = 20
	}
	if len(candles) < minCandles {
		return AnalyzerResult{}, insufficientData(FactorVolume, minCandles, len(candles))
	}
	if err := market.ValidateSeries(candles); err != nil {
		return AnalyzerResult{}, fmt.Errorf("volume analyzer: %w", err)
	}

	if lookback > len(candles) {
		lookback = len(candles)
	}
	window := candles[len(candles)-lookback:]

	// Volume attribution: bullish candles count as buying, bearish as
	// selling, dojis split evenly
	var buyVol, sellVol float64
	for _, c := range window {
		switch {
		case c.Close > c.Open:
			buyVol += c.Volume
		case c.Close < c.Open:
			sellVol += c.Volume
		default:
			buyVol += c.Volume / 2
			sellVol += c.Volume / 2
		}
	}

	total := buyVol + sellVol
	buyPressure, sellPressure := 0.5, 0.5
	if total > 0 {
		buyPressure = buyVol / total
		sellPressure = sellVol / total
	}

	// Participation trend: recent half of the window vs the earlier half
	half := lookback / 2
	earlierAvg := avgVolume(window[:half])
	recentAvg := avgVolume(window[half:])

	score := 50 + (buyPressure-0.5)*80

	trendNote := "steady participation"
	if earlierAvg > 0 {
		ratio := recentAvg / earlierAvg
		if ratio >= 1.3 {
			// Expanding volume confirms whichever side is leading
			if buyPressure > 0.5 {
				score += 8
			} else if buyPressure < 0.5 {
				score -= 8
			}
			trendNote = fmt.Sprintf("volume expanding %.0f%%", (ratio-1)*100)
		} else if ratio <= 0.7 {
			// Drying volume weakens the lean
			score = 50 + (score-50)*0.6
			trendNote = "volume drying up"
		}
	}

	score = clampScore(score)

	return AnalyzerResult{
		Factor:       FactorVolume,
		Score:        score,
		Direction:    directionForScore(score),
		Summary:      fmt.Sprintf("buy pressure %.0f%%, %s", buyPressure*100, trendNote),
		BuyPressure:  buyPressure,
		SellPressure: sellPressure,
	}, nil
}

func avgVolume(candles []market.Candle) float64 {
	if len(candles) == 0 {
		return 0
	}
	sum := 0.0
	for _, c := range candles {
		sum += c.Volume
	}
	return sum / float64(len(candles))
}
