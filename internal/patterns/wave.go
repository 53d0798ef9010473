package patterns

import (
	"math"

	"ultra-signal-engine/internal/market"
)

// WavePhase labels the detected Elliott-wave structure
type WavePhase string

const (
	WaveImpulse    WavePhase = "impulse"
	WaveCorrective WavePhase = "corrective"
	WaveUndefined  WavePhase = "undefined"
)

// DetectedWave represents the best-match wave structure for a series
type DetectedWave struct {
	Phase      WavePhase `json:"phase"`
	Label      string    `json:"label"`      // e.g. "wave_3", "abc_correction"
	Direction  string    `json:"direction"`  // "bullish", "bearish", "neutral"
	Confidence float64   `json:"confidence"` // 0.0 to 1.0
	// CExtension is the wave-C move relative to wave B's retracement.
	// Populated for corrective structures only.
	CExtension float64 `json:"c_extension,omitempty"`
}

type swing struct {
	index int
	price float64
	high  bool
}

// WaveDetector classifies swing structure into impulse or corrective phases
type WaveDetector struct {
	pivotSpan int // candles on each side a pivot must dominate
}

// NewWaveDetector creates a wave detector
func NewWaveDetector(pivotSpan int) *WaveDetector {
	if pivotSpan <= 0 {
		pivotSpan = 3
	}
	return &WaveDetector{pivotSpan: pivotSpan}
}

// Detect returns the best-match wave structure for the series. Identical
// input always yields an identical result.
func (w *WaveDetector) Detect(candles []market.Candle) DetectedWave {
	swings := w.findSwings(candles)
	if len(swings) < 4 {
		return DetectedWave{Phase: WaveUndefined, Label: "no_structure", Direction: "neutral", Confidence: 0}
	}

	// Try the five-swing impulse first; it dominates a three-swing
	// correction when both could be read from the same pivots.
	if wave, ok := w.classifyImpulse(swings); ok {
		return wave
	}
	if wave, ok := w.classifyCorrection(swings); ok {
		return wave
	}

	return DetectedWave{Phase: WaveUndefined, Label: "no_structure", Direction: "neutral", Confidence: 0.2}
}

// findSwings extracts alternating pivot highs and lows
func (w *WaveDetector) findSwings(candles []market.Candle) []swing {
	var swings []swing

	for i := w.pivotSpan; i < len(candles)-w.pivotSpan; i++ {
		isHigh, isLow := true, true
		for j := i - w.pivotSpan; j <= i+w.pivotSpan; j++ {
			if j == i {
				continue
			}
			if candles[j].High >= candles[i].High {
				isHigh = false
			}
			if candles[j].Low <= candles[i].Low {
				isLow = false
			}
		}

		if isHigh {
			swings = appendSwing(swings, swing{index: i, price: candles[i].High, high: true})
		} else if isLow {
			swings = appendSwing(swings, swing{index: i, price: candles[i].Low, high: false})
		}
	}

	return swings
}

// appendSwing keeps the swing list alternating, retaining the more extreme
// of two consecutive same-side pivots
func appendSwing(swings []swing, s swing) []swing {
	if len(swings) == 0 {
		return append(swings, s)
	}
	last := swings[len(swings)-1]
	if last.high != s.high {
		return append(swings, s)
	}
	if (s.high && s.price > last.price) || (!s.high && s.price < last.price) {
		swings[len(swings)-1] = s
	}
	return swings
}

// classifyImpulse checks the last six swings for a five-wave impulse:
// three directional legs with wave 3 not the shortest and wave 4 not
// overlapping wave 1 territory.
func (w *WaveDetector) classifyImpulse(swings []swing) (DetectedWave, bool) {
	if len(swings) < 6 {
		return DetectedWave{}, false
	}
	s := swings[len(swings)-6:]

	up := !s[0].high // starting from a low means an upward impulse
	legs := make([]float64, 5)
	for i := 0; i < 5; i++ {
		legs[i] = s[i+1].price - s[i].price
		if up != (legs[i] > 0) == (i%2 == 0) {
			// directional legs (0, 2, 4) must follow the trend,
			// corrective legs (1, 3) must oppose it
			return DetectedWave{}, false
		}
	}

	w1, w3, w5 := math.Abs(legs[0]), math.Abs(legs[2]), math.Abs(legs[4])
	if w3 < w1 && w3 < w5 {
		return DetectedWave{}, false // wave 3 may never be the shortest
	}
	// wave 4 must not close into wave 1's range
	if up && s[4].price < s[1].price {
		return DetectedWave{}, false
	}
	if !up && s[4].price > s[1].price {
		return DetectedWave{}, false
	}

	direction := "bullish"
	if !up {
		direction = "bearish"
	}

	// A dominant wave 3 is the textbook shape
	conf := 0.6
	if w3 > w1 && w3 > w5 {
		conf = 0.8
	}

	return DetectedWave{
		Phase:      WaveImpulse,
		Label:      "wave_5_sequence",
		Direction:  direction,
		Confidence: conf,
	}, true
}

// classifyCorrection checks the last four swings for an ABC correction.
// The directional read is derived from how deep wave C runs relative to
// wave B's retracement: a C leg extending beyond 61.8% of B signals
// continuation of the corrective direction, a shallow C signals exhaustion
// against it. Measured geometry decides the sign; nothing here is sampled.
func (w *WaveDetector) classifyCorrection(swings []swing) (DetectedWave, bool) {
	if len(swings) < 4 {
		return DetectedWave{}, false
	}
	s := swings[len(swings)-4:]

	legA := s[1].price - s[0].price
	legB := s[2].price - s[1].price
	legC := s[3].price - s[2].price

	// A and C move together, B retraces
	if (legA > 0) != (legC > 0) || (legA > 0) == (legB > 0) {
		return DetectedWave{}, false
	}
	if math.Abs(legA) == 0 || math.Abs(legB) == 0 {
		return DetectedWave{}, false
	}

	// B should retrace between 23.6% and 90% of A
	retrace := math.Abs(legB) / math.Abs(legA)
	if retrace < 0.236 || retrace > 0.9 {
		return DetectedWave{}, false
	}

	cExtension := math.Abs(legC) / math.Abs(legB)

	direction := "bearish"
	if legA > 0 {
		direction = "bullish"
	}
	if cExtension < 0.618 {
		// Shallow C: the correction is running out, lean the other way
		if direction == "bullish" {
			direction = "bearish"
		} else {
			direction = "bullish"
		}
	}

	conf := 0.5 + math.Min(math.Abs(cExtension-0.618)*0.3, 0.3)

	return DetectedWave{
		Phase:      WaveCorrective,
		Label:      "abc_correction",
		Direction:  direction,
		Confidence: conf,
		CExtension: cExtension,
	}, true
}
