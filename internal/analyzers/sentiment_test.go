package analyzers

import "testing"

func TestEvaluateSentimentNoReadings(t *testing.T) {
	result := EvaluateSentiment(SentimentInput{})

	if result.Score != 50 {
		t.Errorf("expected neutral score 50, got %.1f", result.Score)
	}
	if result.Direction != DirectionNeutral {
		t.Errorf("expected %s, got %s", DirectionNeutral, result.Direction)
	}
}

func TestEvaluateSentimentGreedScoresBullish(t *testing.T) {
	result := EvaluateSentiment(SentimentInput{FearGreed: 78, HasFearGreed: true})

	if result.Score != 78 {
		t.Errorf("expected fear-greed passed through, got %.1f", result.Score)
	}
	if result.Direction != DirectionBullish {
		t.Errorf("expected %s, got %s", DirectionBullish, result.Direction)
	}
}

func TestEvaluateSentimentFearScoresBearish(t *testing.T) {
	result := EvaluateSentiment(SentimentInput{FearGreed: 15, HasFearGreed: true})

	if result.Direction != DirectionBearish {
		t.Errorf("expected %s, got %s", DirectionBearish, result.Direction)
	}
}

func TestEvaluateSentimentSocialBlend(t *testing.T) {
	result := EvaluateSentiment(SentimentInput{
		FearGreed:      60,
		HasFearGreed:   true,
		SocialScore:    80,
		HasSocialScore: true,
	})

	// 60*0.7 + 80*0.3 = 66
	if result.Score != 66 {
		t.Errorf("expected blended score 66, got %.1f", result.Score)
	}
}

func TestEvaluateSentimentCrowdedFundingLeansContrarian(t *testing.T) {
	base := EvaluateSentiment(SentimentInput{FearGreed: 70, HasFearGreed: true})
	crowded := EvaluateSentiment(SentimentInput{
		FearGreed:      70,
		HasFearGreed:   true,
		FundingRate:    0.0008,
		HasFundingRate: true,
	})

	if crowded.Score != base.Score-8 {
		t.Errorf("expected crowded longs to subtract 8, got %.1f vs %.1f", crowded.Score, base.Score)
	}

	shorts := EvaluateSentiment(SentimentInput{
		FearGreed:      30,
		HasFearGreed:   true,
		FundingRate:    -0.0008,
		HasFundingRate: true,
	})
	if shorts.Score != 38 {
		t.Errorf("expected crowded shorts to add 8, got %.1f", shorts.Score)
	}
}

func TestEvaluateSentimentScoreInRange(t *testing.T) {
	inputs := []SentimentInput{
		{FearGreed: 100, HasFearGreed: true, FundingRate: -0.001, HasFundingRate: true},
		{FearGreed: 0, HasFearGreed: true, FundingRate: 0.001, HasFundingRate: true},
		{SocialScore: 100, HasSocialScore: true},
	}
	for _, in := range inputs {
		result := EvaluateSentiment(in)
		if result.Score < 0 || result.Score > 100 {
			t.Errorf("score out of range for %+v: %.1f", in, result.Score)
		}
	}
}
