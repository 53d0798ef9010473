package patterns

import (
	"testing"

	"ultra-signal-engine/internal/market"
)

// swingCandles marks each path point with a narrow candle centered on it,
// so a turning point strictly dominates its neighbors on both sides
func swingCandles(prices []float64) []market.Candle {
	candles := make([]market.Candle, len(prices))
	for i, p := range prices {
		candles[i] = market.Candle{
			OpenTime:  int64(i) * 60_000,
			Open:      p,
			High:      p + 0.1,
			Low:       p - 0.1,
			Close:     p,
			Volume:    1000,
			CloseTime: int64(i+1)*60_000 - 1,
		}
	}
	return candles
}

func TestDetectBullishImpulse(t *testing.T) {
	detector := NewWaveDetector(3)

	// Five-wave advance: 100→110, back to 106, 106→120, back to 116,
	// 116→126, with a leading dip and trailing fade so every turn pivots
	prices := []float64{
		104, 103, 102, 101, 100,
		101.5, 103, 104.5, 106, 107.5, 109, 110,
		109, 108, 107, 106,
		107.5, 109, 110.5, 112, 113.5, 115, 116.5, 118, 119.25, 120,
		119, 118, 117, 116,
		117.25, 118.5, 119.75, 121, 122.25, 123.5, 124.75, 126,
		125, 124, 123, 122,
	}

	wave := detector.Detect(swingCandles(prices))

	if wave.Phase != WaveImpulse {
		t.Fatalf("expected impulse, got %+v", wave)
	}
	if wave.Direction != "bullish" {
		t.Errorf("expected bullish direction, got %q", wave.Direction)
	}
	// Wave 3 (14 points) dominates waves 1 and 5 (10 each)
	if wave.Confidence != 0.8 {
		t.Errorf("expected dominant-wave-3 confidence 0.8, got %v", wave.Confidence)
	}
}

func TestDetectDeepABCCorrection(t *testing.T) {
	detector := NewWaveDetector(3)

	// A: 110→100, B retraces half to 105, C extends to 98
	prices := []float64{
		100, 102, 104, 106, 108, 110,
		108.5, 107, 105.5, 104, 102.5, 101, 100,
		101.25, 102.5, 103.75, 105,
		103.5, 102, 100.5, 99, 98,
		99, 100, 101,
	}

	wave := detector.Detect(swingCandles(prices))

	if wave.Phase != WaveCorrective {
		t.Fatalf("expected corrective, got %+v", wave)
	}
	// C runs 1.4x B's retracement: the correction is still in force
	if wave.Direction != "bearish" {
		t.Errorf("expected bearish direction, got %q", wave.Direction)
	}
	if wave.CExtension < 1.3 || wave.CExtension > 1.45 {
		t.Errorf("expected c extension near 1.4, got %v", wave.CExtension)
	}
}

func TestDetectShallowCorrectionFlipsDirection(t *testing.T) {
	detector := NewWaveDetector(3)

	// Same A and B, but C stalls at 103: 0.4x of B, under the 0.618 line
	prices := []float64{
		100, 102, 104, 106, 108, 110,
		108.5, 107, 105.5, 104, 102.5, 101, 100,
		101.25, 102.5, 103.75, 105,
		104.5, 104, 103.5, 103,
		104, 105, 106,
	}

	wave := detector.Detect(swingCandles(prices))

	if wave.Phase != WaveCorrective {
		t.Fatalf("expected corrective, got %+v", wave)
	}
	if wave.Direction != "bullish" {
		t.Errorf("expected exhaustion read to flip bullish, got %q", wave.Direction)
	}
}

func TestDetectUndefinedOnFlatSeries(t *testing.T) {
	detector := NewWaveDetector(3)

	prices := make([]float64, 30)
	for i := range prices {
		prices[i] = 100
	}

	wave := detector.Detect(swingCandles(prices))
	if wave.Phase != WaveUndefined {
		t.Errorf("expected undefined phase, got %+v", wave)
	}
	if wave.Direction != "neutral" {
		t.Errorf("expected neutral direction, got %q", wave.Direction)
	}
}

func TestDetectShortSeriesUndefined(t *testing.T) {
	detector := NewWaveDetector(3)
	wave := detector.Detect(swingCandles([]float64{100, 101, 102}))
	if wave.Phase != WaveUndefined {
		t.Errorf("expected undefined phase, got %+v", wave)
	}
}
