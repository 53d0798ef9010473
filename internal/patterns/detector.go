package patterns

import (
	"math"
	"time"

	"ultra-signal-engine/internal/market"
)

// PatternType represents different chart patterns
type PatternType string

const (
	BullishFlag        PatternType = "bullish_flag"
	BearishFlag        PatternType = "bearish_flag"
	AscendingTriangle  PatternType = "ascending_triangle"
	DescendingTriangle PatternType = "descending_triangle"
	DoubleTop          PatternType = "double_top"
	DoubleBottom       PatternType = "double_bottom"
	BullishEngulfing   PatternType = "bullish_engulfing"
	BearishEngulfing   PatternType = "bearish_engulfing"
)

// PatternClass distinguishes continuation from reversal patterns
type PatternClass string

const (
	ClassContinuation PatternClass = "continuation"
	ClassReversal     PatternClass = "reversal"
)

// DetectedPattern represents a detected chart pattern
type DetectedPattern struct {
	Type        PatternType  `json:"type"`
	Class       PatternClass `json:"class"`
	Symbol      string       `json:"symbol"`
	Timeframe   string       `json:"timeframe"`
	DetectedAt  time.Time    `json:"detected_at"`
	CandleIndex int          `json:"candle_index"`
	Confidence  float64      `json:"confidence"` // 0.0 to 1.0
	Direction   string       `json:"direction"`  // "bullish" or "bearish"
}

// Detector scans candle series for chart patterns
type Detector struct {
	minBodySize float64 // Minimum candle body size (% of price)
}

// NewDetector creates a new pattern detector
func NewDetector(minBodySize float64) *Detector {
	if minBodySize <= 0 {
		minBodySize = 0.5
	}
	return &Detector{minBodySize: minBodySize}
}

// Detect scans for all supported patterns and returns them ordered by
// candle index. Later (more recent) patterns carry more weight for scoring.
func (d *Detector) Detect(symbol, timeframe string, candles []market.Candle) []DetectedPattern {
	var found []DetectedPattern

	if len(candles) < 20 {
		return found
	}

	if p, ok := d.flag(candles); ok {
		p.Symbol, p.Timeframe = symbol, timeframe
		found = append(found, p)
	}
	if p, ok := d.triangle(candles); ok {
		p.Symbol, p.Timeframe = symbol, timeframe
		found = append(found, p)
	}
	if p, ok := d.doubleExtreme(candles); ok {
		p.Symbol, p.Timeframe = symbol, timeframe
		found = append(found, p)
	}
	if p, ok := d.engulfing(candles); ok {
		p.Symbol, p.Timeframe = symbol, timeframe
		found = append(found, p)
	}

	return found
}

// Best returns the highest-confidence pattern among those detected in the
// final window of the series, or nil when none qualifies.
func (d *Detector) Best(symbol, timeframe string, candles []market.Candle) *DetectedPattern {
	detected := d.Detect(symbol, timeframe, candles)

	var best *DetectedPattern
	for i := range detected {
		p := &detected[i]
		if p.CandleIndex < len(candles)-10 {
			continue
		}
		if best == nil || p.Confidence > best.Confidence {
			best = p
		}
	}
	return best
}

// flag looks for a strong directional pole followed by a shallow
// counter-slope consolidation over the last 15 candles.
func (d *Detector) flag(candles []market.Candle) (DetectedPattern, bool) {
	n := len(candles)
	pole := candles[n-15 : n-5]
	cons := candles[n-5:]

	poleMove := (pole[len(pole)-1].Close - pole[0].Open) / pole[0].Open * 100
	consMove := (cons[len(cons)-1].Close - cons[0].Open) / cons[0].Open * 100

	// Pole must be decisive, consolidation shallow and counter-directional
	if math.Abs(poleMove) < 2 || math.Abs(consMove) > math.Abs(poleMove)*0.4 {
		return DetectedPattern{}, false
	}

	if poleMove > 0 && consMove <= 0 {
		return DetectedPattern{
			Type:        BullishFlag,
			Class:       ClassContinuation,
			DetectedAt:  closeTime(candles[n-1]),
			CandleIndex: n - 1,
			Confidence:  flagConfidence(poleMove, consMove),
			Direction:   "bullish",
		}, true
	}
	if poleMove < 0 && consMove >= 0 {
		return DetectedPattern{
			Type:        BearishFlag,
			Class:       ClassContinuation,
			DetectedAt:  closeTime(candles[n-1]),
			CandleIndex: n - 1,
			Confidence:  flagConfidence(-poleMove, -consMove),
			Direction:   "bearish",
		}, true
	}

	return DetectedPattern{}, false
}

func flagConfidence(poleMove, consMove float64) float64 {
	// Stronger pole and tighter consolidation raise confidence
	conf := 0.5 + math.Min(poleMove/20, 0.25) + math.Max(0, 0.15-math.Abs(consMove)/10)
	return math.Min(conf, 0.95)
}

// triangle looks for a flat boundary on one side with a converging
// boundary on the other over the last 15 candles.
func (d *Detector) triangle(candles []market.Candle) (DetectedPattern, bool) {
	n := len(candles)
	window := candles[n-15:]

	highSlope := slope(market.Highs(window))
	lowSlope := slope(market.Lows(window))
	price := window[len(window)-1].Close
	flatBand := price * 0.001

	// Ascending: flat highs, rising lows
	if math.Abs(highSlope) < flatBand && lowSlope > flatBand {
		return DetectedPattern{
			Type:        AscendingTriangle,
			Class:       ClassContinuation,
			DetectedAt:  closeTime(window[len(window)-1]),
			CandleIndex: n - 1,
			Confidence:  triangleConfidence(lowSlope, price),
			Direction:   "bullish",
		}, true
	}
	// Descending: flat lows, falling highs
	if math.Abs(lowSlope) < flatBand && highSlope < -flatBand {
		return DetectedPattern{
			Type:        DescendingTriangle,
			Class:       ClassContinuation,
			DetectedAt:  closeTime(window[len(window)-1]),
			CandleIndex: n - 1,
			Confidence:  triangleConfidence(-highSlope, price),
			Direction:   "bearish",
		}, true
	}

	return DetectedPattern{}, false
}

func triangleConfidence(convergeSlope, price float64) float64 {
	conf := 0.55 + math.Min(convergeSlope/price*500, 0.3)
	return math.Min(conf, 0.9)
}

// doubleExtreme looks for two matching highs (double top) or lows (double
// bottom) separated by a meaningful pullback.
func (d *Detector) doubleExtreme(candles []market.Candle) (DetectedPattern, bool) {
	n := len(candles)
	window := candles[n-20:]

	highIdx1, highIdx2 := twoExtremes(market.Highs(window), true)
	if highIdx1 >= 0 && highIdx2 >= 0 {
		h1, h2 := window[highIdx1].High, window[highIdx2].High
		if math.Abs(h1-h2)/h1 < 0.005 && pullbackBetween(window, highIdx1, highIdx2, h1, true) {
			return DetectedPattern{
				Type:        DoubleTop,
				Class:       ClassReversal,
				DetectedAt:  closeTime(window[len(window)-1]),
				CandleIndex: n - 1,
				Confidence:  0.7,
				Direction:   "bearish",
			}, true
		}
	}

	lowIdx1, lowIdx2 := twoExtremes(market.Lows(window), false)
	if lowIdx1 >= 0 && lowIdx2 >= 0 {
		l1, l2 := window[lowIdx1].Low, window[lowIdx2].Low
		if math.Abs(l1-l2)/l1 < 0.005 && pullbackBetween(window, lowIdx1, lowIdx2, l1, false) {
			return DetectedPattern{
				Type:        DoubleBottom,
				Class:       ClassReversal,
				DetectedAt:  closeTime(window[len(window)-1]),
				CandleIndex: n - 1,
				Confidence:  0.7,
				Direction:   "bullish",
			}, true
		}
	}

	return DetectedPattern{}, false
}

// engulfing checks the last two candles for an engulfing reversal
func (d *Detector) engulfing(candles []market.Candle) (DetectedPattern, bool) {
	n := len(candles)
	prev, cur := candles[n-2], candles[n-1]

	prevBody := math.Abs(prev.Close - prev.Open)
	curBody := math.Abs(cur.Close - cur.Open)
	if cur.Close == 0 || curBody/cur.Close*100 < d.minBodySize {
		return DetectedPattern{}, false
	}

	// Bullish: bearish candle fully engulfed by a bullish one
	if prev.Close < prev.Open && cur.Close > cur.Open &&
		cur.Open <= prev.Close && cur.Close >= prev.Open {
		return DetectedPattern{
			Type:        BullishEngulfing,
			Class:       ClassReversal,
			DetectedAt:  closeTime(cur),
			CandleIndex: n - 1,
			Confidence:  engulfConfidence(curBody, prevBody),
			Direction:   "bullish",
		}, true
	}
	if prev.Close > prev.Open && cur.Close < cur.Open &&
		cur.Open >= prev.Close && cur.Close <= prev.Open {
		return DetectedPattern{
			Type:        BearishEngulfing,
			Class:       ClassReversal,
			DetectedAt:  closeTime(cur),
			CandleIndex: n - 1,
			Confidence:  engulfConfidence(curBody, prevBody),
			Direction:   "bearish",
		}, true
	}

	return DetectedPattern{}, false
}

func engulfConfidence(curBody, prevBody float64) float64 {
	if prevBody == 0 {
		return 0.6
	}
	return math.Min(0.55+curBody/prevBody*0.1, 0.85)
}

// ---- helpers ----

func closeTime(c market.Candle) time.Time {
	return time.Unix(c.CloseTime/1000, 0)
}

// slope returns the least-squares slope per candle of the series
func slope(values []float64) float64 {
	n := float64(len(values))
	if n < 2 {
		return 0
	}
	var sumX, sumY, sumXY, sumXX float64
	for i, v := range values {
		x := float64(i)
		sumX += x
		sumY += v
		sumXY += x * v
		sumXX += x * x
	}
	denom := n*sumXX - sumX*sumX
	if denom == 0 {
		return 0
	}
	return (n*sumXY - sumX*sumY) / denom
}

// twoExtremes returns the indexes of the two most extreme values that are
// at least 5 candles apart, earliest first. Returns -1, -1 when the series
// is too flat to rank.
func twoExtremes(values []float64, findMax bool) (int, int) {
	best, second := -1, -1
	for i, v := range values {
		if best < 0 || better(v, values[best], findMax) {
			best = i
		}
	}
	for i, v := range values {
		if i == best || absInt(i-best) < 5 {
			continue
		}
		if second < 0 || better(v, values[second], findMax) {
			second = i
		}
	}
	if best < 0 || second < 0 {
		return -1, -1
	}
	if best < second {
		return best, second
	}
	return second, best
}

func better(a, b float64, findMax bool) bool {
	if findMax {
		return a > b
	}
	return a < b
}

// pullbackBetween verifies price pulled back at least 1% from the extreme
// between the two touches
func pullbackBetween(candles []market.Candle, i, j int, extreme float64, top bool) bool {
	for k := i + 1; k < j; k++ {
		if top && (extreme-candles[k].Low)/extreme > 0.01 {
			return true
		}
		if !top && (candles[k].High-extreme)/extreme > 0.01 {
			return true
		}
	}
	return false
}

func absInt(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
