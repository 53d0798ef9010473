package fusion

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ultra-signal-engine/internal/analyzers"
)

func resultWithScore(factor string, score float64) analyzers.AnalyzerResult {
	r := analyzers.Neutral(factor)
	r.Score = score
	return r
}

func inputsAllAt(score float64) Inputs {
	return Inputs{
		Technical: resultWithScore(analyzers.FactorTechnical, score),
		Volume:    resultWithScore(analyzers.FactorVolume, score),
		Pattern:   resultWithScore(analyzers.FactorPattern, score),
		Wave:      resultWithScore(analyzers.FactorWave, score),
		Sentiment: resultWithScore(analyzers.FactorSentiment, score),
	}
}

func TestNormalizeWeightsDefaultsSumToOne(t *testing.T) {
	weights := NormalizeWeights(nil)

	sum := 0.0
	for _, w := range weights {
		sum += w
	}
	assert.InDelta(t, 1.0, sum, 1e-9)
	assert.Len(t, weights, 7)
}

func TestNormalizeWeightsPartialOverride(t *testing.T) {
	weights := NormalizeWeights(map[string]float64{
		WeightTechnical: 0.5,
		WeightPattern:   0.1,
	})

	sum := 0.0
	for key, w := range weights {
		assert.GreaterOrEqual(t, w, 0.0, "weight %s must be non-negative", key)
		sum += w
	}
	assert.InDelta(t, 1.0, sum, 1e-9)
	// Technical was raised relative to pattern before normalization
	assert.Greater(t, weights[WeightTechnical], weights[WeightPattern])
}

func TestNormalizeWeightsIdempotent(t *testing.T) {
	first := NormalizeWeights(map[string]float64{WeightVolume: 0.4})
	second := NormalizeWeights(first)

	for key := range first {
		assert.InDelta(t, first[key], second[key], 1e-9, "weight %s changed on renormalization", key)
	}
}

func TestNormalizeWeightsIgnoresBadInput(t *testing.T) {
	weights := NormalizeWeights(map[string]float64{
		"unknown_factor": 5.0,
		WeightWave:       -1.0,
	})

	_, hasUnknown := weights["unknown_factor"]
	assert.False(t, hasUnknown)

	sum := 0.0
	for _, w := range weights {
		assert.GreaterOrEqual(t, w, 0.0)
		sum += w
	}
	assert.InDelta(t, 1.0, sum, 1e-9)
}

func TestBiasStepFunctionBoundaries(t *testing.T) {
	cases := []struct {
		score float64
		want  string
	}{
		{39.9, BiasSell},
		{40.0, BiasSell},
		{40.1, BiasWait},
		{59.9, BiasWait},
		{60.0, BiasBuy},
		{60.1, BiasBuy},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, biasFor(tc.score), "score %.1f", tc.score)
	}
}

func TestCombineScoreAlwaysInRange(t *testing.T) {
	for _, score := range []float64{0, 25, 50, 75, 100} {
		result := Combine(inputsAllAt(score), nil)
		assert.GreaterOrEqual(t, result.CombinedScore, 0.0)
		assert.LessOrEqual(t, result.CombinedScore, 100.0)
		assert.GreaterOrEqual(t, result.Confidence, 0.0)
		assert.LessOrEqual(t, result.Confidence, 1.0)
	}
}

func TestCombineAllAnalyzersAgreeBullish(t *testing.T) {
	result := Combine(inputsAllAt(80), nil)

	// Five sub-scores at 80 with neutral pressures land in the high 70s
	assert.InDelta(t, 77.0, result.CombinedScore, 3.0)
	assert.Equal(t, BiasBuy, result.Bias)

	// Identical sub-scores mean zero std-dev: the consistency term is 1
	// and confidence is dominated by it
	assert.Greater(t, result.Confidence, 0.75)
}

func TestCombineNeutralInputsWait(t *testing.T) {
	result := Combine(inputsAllAt(50), nil)

	assert.InDelta(t, 50.0, result.CombinedScore, 0.001)
	assert.Equal(t, BiasWait, result.Bias)
}

func TestCombinePressureTerms(t *testing.T) {
	in := inputsAllAt(50)
	in.Volume.BuyPressure = 1.0
	in.Volume.SellPressure = 0.0

	result := Combine(in, nil)

	// buy_pressure contributes 100*0.05, sell term (1-0)*100*0.05 on top of
	// the 45 from the five sub-scores at 50
	assert.InDelta(t, 55.0, result.CombinedScore, 0.001)
}

func TestRiskLevelGrading(t *testing.T) {
	low := inputsAllAt(80)
	assert.Equal(t, RiskLow, Combine(low, nil).RiskLevel)

	// Thin volume alone: one full contributor
	medium := inputsAllAt(80)
	medium.Volume.Score = 35
	assert.Equal(t, RiskMedium, Combine(medium, nil).RiskLevel)

	// High volatility + thin volume
	high := inputsAllAt(80)
	high.Volume.Score = 35
	high.Technical.Volatility = 75
	assert.Equal(t, RiskHigh, Combine(high, nil).RiskLevel)

	// Everything risky at once: weak score, no volume, volatile, euphoric
	extreme := inputsAllAt(30)
	extreme.Volume.Score = 30
	extreme.Technical.Volatility = 80
	extreme.Sentiment.Score = 90
	assert.Equal(t, RiskExtreme, Combine(extreme, nil).RiskLevel)
}

func TestReasoningTrailDeterministicAndTerminated(t *testing.T) {
	in := inputsAllAt(80)
	in.Volume.BuyPressure = 0.7
	in.Volume.SellPressure = 0.3

	first := Combine(in, nil)
	second := Combine(in, nil)

	require.Equal(t, first.Reasoning, second.Reasoning)
	require.NotEmpty(t, first.Reasoning)
	assert.Contains(t, first.Reasoning[len(first.Reasoning)-1], "buy threshold")
}

func TestReasoningFallbackLine(t *testing.T) {
	result := Combine(inputsAllAt(50), nil)

	require.Len(t, result.Reasoning, 2)
	assert.Equal(t, "mixed evidence across all factors", result.Reasoning[0])
	assert.Contains(t, result.Reasoning[1], "no-trade band")
}

func TestConfidenceConsistencyTerm(t *testing.T) {
	// Wildly disagreeing analyzers: stdDev near 40, consistency near 0
	in := Inputs{
		Technical: resultWithScore(analyzers.FactorTechnical, 100),
		Volume:    resultWithScore(analyzers.FactorVolume, 0),
		Pattern:   resultWithScore(analyzers.FactorPattern, 100),
		Wave:      resultWithScore(analyzers.FactorWave, 0),
		Sentiment: resultWithScore(analyzers.FactorSentiment, 50),
	}
	disagreement := Combine(in, nil)
	agreement := Combine(inputsAllAt(80), nil)

	assert.Less(t, disagreement.Confidence, agreement.Confidence)
	assert.False(t, math.IsNaN(disagreement.Confidence))
}
