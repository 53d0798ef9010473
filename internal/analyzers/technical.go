package analyzers

import (
	"fmt"
	"strings"

	"ultra-signal-engine/internal/market"
)

// EvaluateTechnical scores the indicator snapshot into a 0-100 technical
// sub-score. The snapshot is precomputed by the indicator engine; no
// indicator math happens here. Identical snapshots always score identically.
func EvaluateTechnical(snap *market.IndicatorSnapshot) AnalyzerResult {
	if snap == nil {
		return Neutral(FactorTechnical)
	}

	score := 50.0
	var notes []string

	// Trend structure: price vs EMAs, EMA ordering
	if snap.EMA20 > 0 && snap.EMA50 > 0 {
		if snap.MarketPrice > snap.EMA20 && snap.MarketPrice > snap.EMA50 {
			score += 10
			notes = append(notes, "price above EMA20/EMA50")
		} else if snap.MarketPrice < snap.EMA20 && snap.MarketPrice < snap.EMA50 {
			score -= 10
			notes = append(notes, "price below EMA20/EMA50")
		}
		if snap.EMA20 > snap.EMA50 {
			score += 5
		} else if snap.EMA20 < snap.EMA50 {
			score -= 5
		}
	}

	// Momentum: MACD histogram sign
	if snap.MACDHist > 0 {
		score += 8
		notes = append(notes, "MACD histogram positive")
	} else if snap.MACDHist < 0 {
		score -= 8
		notes = append(notes, "MACD histogram negative")
	}

	// RSI: extremes lean contrarian, the middle band follows momentum
	switch {
	case snap.RSI >= 70:
		score -= 6
		notes = append(notes, fmt.Sprintf("RSI overbought at %.1f", snap.RSI))
	case snap.RSI <= 30:
		score += 6
		notes = append(notes, fmt.Sprintf("RSI oversold at %.1f", snap.RSI))
	case snap.RSI > 50:
		score += 4
	case snap.RSI < 50:
		score -= 4
	}

	// Stochastic extremes
	if snap.StochK >= 80 && snap.StochD >= 80 {
		score -= 4
	} else if snap.StochK <= 20 && snap.StochD <= 20 {
		score += 4
	}

	// Bollinger position: closes outside the bands lean mean-reversion
	if snap.BBUpper > 0 {
		if snap.MarketPrice > snap.BBUpper {
			score -= 3
		} else if snap.MarketPrice < snap.BBLower {
			score += 3
		}
	}

	// ADX scales the directional lean: a strong trend amplifies whichever
	// side the other indicators chose, a flat market pulls toward 50
	if snap.ADX >= 25 {
		score = 50 + (score-50)*1.2
		notes = append(notes, fmt.Sprintf("trending market, ADX %.1f", snap.ADX))
	} else if snap.ADX > 0 && snap.ADX < 15 {
		score = 50 + (score-50)*0.7
	}

	score = clampScore(score)

	summary := "no decisive signal"
	if len(notes) > 0 {
		summary = strings.Join(notes, "; ")
	}

	return AnalyzerResult{
		Factor:     FactorTechnical,
		Score:      score,
		Direction:  directionForScore(score),
		Summary:    summary,
		Volatility: snap.Volatility,
	}
}
