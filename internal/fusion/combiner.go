package fusion

import (
	"fmt"
	"math"

	"ultra-signal-engine/internal/analyzers"
)

// Bias values
const (
	BiasBuy  = "BUY"
	BiasSell = "SELL"
	BiasWait = "WAIT"
)

// Risk levels
const (
	RiskLow     = "LOW"
	RiskMedium  = "MEDIUM"
	RiskHigh    = "HIGH"
	RiskExtreme = "EXTREME"
)

// Inputs holds the five analyzer opinions feeding one combine call
type Inputs struct {
	Technical analyzers.AnalyzerResult
	Volume    analyzers.AnalyzerResult
	Pattern   analyzers.AnalyzerResult
	Wave      analyzers.AnalyzerResult
	Sentiment analyzers.AnalyzerResult
}

// Result is the fused opinion: one score, a directional bias, a confidence
// estimate, a risk classification and the auditable reasoning trail. Derived
// purely from the inputs and weights; no hidden state.
type Result struct {
	CombinedScore   float64            `json:"combined_score"` // 0-100
	Bias            string             `json:"bias"`           // BUY, SELL, WAIT
	Confidence      float64            `json:"confidence"`     // 0-1
	RiskLevel       string             `json:"risk_level"`
	Reasoning       []string           `json:"reasoning"`
	WeightBreakdown map[string]float64 `json:"weight_breakdown"`
	SubScores       map[string]float64 `json:"sub_scores"`
}

// Combine fuses the five analyzer results under the given weight overrides.
// Weights are renormalized on every call, never assumed pre-normalized.
func Combine(in Inputs, weightOverrides map[string]float64) Result {
	weights := NormalizeWeights(weightOverrides)

	score := in.Technical.Score*weights[WeightTechnical] +
		in.Volume.Score*weights[WeightVolume] +
		in.Pattern.Score*weights[WeightPattern] +
		in.Wave.Score*weights[WeightWave] +
		in.Sentiment.Score*weights[WeightSentiment] +
		in.Volume.BuyPressure*100*weights[WeightBuyPressure] +
		(1-in.Volume.SellPressure)*100*weights[WeightSellPressure]

	score = clamp(score, 0, 100)
	bias := biasFor(score)

	return Result{
		CombinedScore:   score,
		Bias:            bias,
		Confidence:      confidence(in, score),
		RiskLevel:       riskLevel(in, score),
		Reasoning:       reasoning(in, score, bias),
		WeightBreakdown: weights,
		SubScores: map[string]float64{
			analyzers.FactorTechnical: in.Technical.Score,
			analyzers.FactorVolume:    in.Volume.Score,
			analyzers.FactorPattern:   in.Pattern.Score,
			analyzers.FactorWave:      in.Wave.Score,
			analyzers.FactorSentiment: in.Sentiment.Score,
		},
	}
}

// biasFor is a pure step function of the combined score. The 40-60 band is
// the deliberate no-trade zone.
func biasFor(score float64) string {
	switch {
	case score >= 60:
		return BiasBuy
	case score <= 40:
		return BiasSell
	default:
		return BiasWait
	}
}

// confidence blends analyzer agreement with score decisiveness. Agreement
// among independent analyzers and a non-neutral combined score both raise
// confidence; either alone is insufficient.
func confidence(in Inputs, score float64) float64 {
	subScores := []float64{in.Technical.Score, in.Volume.Score, in.Pattern.Score, in.Wave.Score, in.Sentiment.Score}

	mean := 0.0
	for _, s := range subScores {
		mean += s
	}
	mean /= float64(len(subScores))

	variance := 0.0
	for _, s := range subScores {
		diff := s - mean
		variance += diff * diff
	}
	stdDev := math.Sqrt(variance / float64(len(subScores)))

	consistency := math.Max(0, 1-stdDev/50)
	distance := math.Abs(score-50) / 50

	return clamp(0.6*consistency+0.4*distance, 0, 1)
}

// riskLevel sums four graded risk contributors
func riskLevel(in Inputs, score float64) string {
	total := 0.0

	// Volatility regime from the technical snapshot
	if in.Technical.Volatility > 70 {
		total += 1
	} else if in.Technical.Volatility > 50 {
		total += 0.5
	}

	// Thin volume undermines any read
	if in.Volume.Score < 40 {
		total += 1
	} else if in.Volume.Score < 60 {
		total += 0.5
	}

	// Sentiment extremes precede squeezes
	if in.Sentiment.Score > 80 || in.Sentiment.Score < 20 {
		total += 0.5
	}

	// A weak combined score is itself a risk
	if score < 40 {
		total += 1
	} else if score < 60 {
		total += 0.5
	}

	switch {
	case total >= 3:
		return RiskExtreme
	case total >= 2:
		return RiskHigh
	case total >= 1:
		return RiskMedium
	default:
		return RiskLow
	}
}

// reasoning builds the ordered observation trail from fixed thresholds.
// The order never varies; the final line always explains the bias.
func reasoning(in Inputs, score float64, bias string) []string {
	var lines []string

	if in.Technical.Score >= 70 {
		lines = append(lines, fmt.Sprintf("strong technical alignment (score %.0f)", in.Technical.Score))
	} else if in.Technical.Score <= 30 {
		lines = append(lines, fmt.Sprintf("technical picture firmly bearish (score %.0f)", in.Technical.Score))
	}

	if in.Volume.BuyPressure >= 0.65 {
		lines = append(lines, fmt.Sprintf("buyers control %.0f%% of traded volume", in.Volume.BuyPressure*100))
	} else if in.Volume.SellPressure >= 0.65 {
		lines = append(lines, fmt.Sprintf("sellers control %.0f%% of traded volume", in.Volume.SellPressure*100))
	}
	if in.Volume.Score < 40 {
		lines = append(lines, "volume support is thin")
	}

	if in.Pattern.Pattern != "" && (in.Pattern.Score >= 65 || in.Pattern.Score <= 35) {
		lines = append(lines, fmt.Sprintf("chart pattern %s (score %.0f)", in.Pattern.Pattern, in.Pattern.Score))
	}

	if in.Wave.WavePhase != "" && (in.Wave.Score >= 65 || in.Wave.Score <= 35) {
		lines = append(lines, fmt.Sprintf("wave structure %s (score %.0f)", in.Wave.WavePhase, in.Wave.Score))
	}

	if in.Sentiment.Score >= 70 {
		lines = append(lines, fmt.Sprintf("sentiment greedy at %.0f", in.Sentiment.Score))
	} else if in.Sentiment.Score <= 30 {
		lines = append(lines, fmt.Sprintf("sentiment fearful at %.0f", in.Sentiment.Score))
	}

	if in.Technical.Volatility > 70 {
		lines = append(lines, fmt.Sprintf("volatility elevated at %.0f", in.Technical.Volatility))
	}

	if len(lines) == 0 {
		lines = append(lines, "mixed evidence across all factors")
	}

	switch bias {
	case BiasBuy:
		lines = append(lines, fmt.Sprintf("combined score %.1f clears the 60 buy threshold", score))
	case BiasSell:
		lines = append(lines, fmt.Sprintf("combined score %.1f is at or below the 40 sell threshold", score))
	default:
		lines = append(lines, fmt.Sprintf("combined score %.1f sits in the 40-60 no-trade band", score))
	}

	return lines
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
