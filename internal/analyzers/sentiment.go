package analyzers

import "fmt"

// SentimentInput carries the market-intelligence readings the sentiment
// adapter scores. The time-varying source is this explicit parameter, never
// internal state; absent readings arrive as the zero value with the Has*
// flag unset.
type SentimentInput struct {
	FearGreed    float64 // 0-100, 0 = extreme fear
	HasFearGreed bool

	FundingRate    float64 // 8h funding as a fraction, e.g. 0.0001 = 0.01%
	HasFundingRate bool

	SocialScore    float64 // 0-100
	HasSocialScore bool
}

// EvaluateSentiment scores crowd positioning. Missing readings degrade to
// the neutral midpoint rather than failing the pipeline.
func EvaluateSentiment(in SentimentInput) AnalyzerResult {
	if !in.HasFearGreed && !in.HasFundingRate && !in.HasSocialScore {
		return Neutral(FactorSentiment)
	}

	// Fear-greed is the anchor; social sentiment blends in when present
	base := 50.0
	switch {
	case in.HasFearGreed && in.HasSocialScore:
		base = in.FearGreed*0.7 + in.SocialScore*0.3
	case in.HasFearGreed:
		base = in.FearGreed
	case in.HasSocialScore:
		base = in.SocialScore
	}

	score := base
	summary := fmt.Sprintf("sentiment index %.0f", base)

	// Funding leans contrarian: heavily positive funding means crowded
	// longs paying shorts, heavily negative the reverse
	if in.HasFundingRate {
		switch {
		case in.FundingRate >= 0.0005:
			score -= 8
			summary += ", crowded longs by funding"
		case in.FundingRate >= 0.0002:
			score -= 4
		case in.FundingRate <= -0.0005:
			score += 8
			summary += ", crowded shorts by funding"
		case in.FundingRate <= -0.0002:
			score += 4
		}
	}

	score = clampScore(score)

	direction := DirectionNeutral
	if score >= 60 {
		direction = DirectionBullish
	} else if score <= 40 {
		direction = DirectionBearish
	}

	return AnalyzerResult{
		Factor:    FactorSentiment,
		Score:     score,
		Direction: direction,
		Summary:   summary,
	}
}
