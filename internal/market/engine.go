package market

import (
	"fmt"
	"math"

	"github.com/cinar/indicator/v2/helper"
	"github.com/cinar/indicator/v2/momentum"
	"github.com/cinar/indicator/v2/trend"
	"github.com/cinar/indicator/v2/volatility"
	"github.com/cinar/indicator/v2/volume"
)

// IndicatorSnapshot holds the precomputed indicator primitives for one
// (symbol, timeframe) series. Analyzer adapters consume this snapshot and
// never recompute indicator math themselves.
type IndicatorSnapshot struct {
	Symbol    string `json:"symbol"`
	Timeframe string `json:"timeframe"`

	MarketPrice float64 `json:"market_price"`

	RSI        float64 `json:"rsi"`
	MACD       float64 `json:"macd"`
	MACDSignal float64 `json:"macd_signal"`
	MACDHist   float64 `json:"macd_hist"`
	ADX        float64 `json:"adx"`
	ATR        float64 `json:"atr"`
	ATRPercent float64 `json:"atr_percent"`

	StochK float64 `json:"stoch_k"`
	StochD float64 `json:"stoch_d"`

	BBUpper    float64 `json:"bb_upper"`
	BBMiddle   float64 `json:"bb_middle"`
	BBLower    float64 `json:"bb_lower"`
	BBWidthPct float64 `json:"bb_width_pct"`

	EMA20 float64 `json:"ema_20"`
	EMA50 float64 `json:"ema_50"`
	VWAP  float64 `json:"vwap"`

	OBVSlope float64 `json:"obv_slope"`

	// Volatility is a 0-100 regime score derived from ATR percent
	Volatility float64 `json:"volatility"`
}

// EngineConfig holds indicator engine tunables
type EngineConfig struct {
	RSIPeriod   int
	ATRPeriod   int
	StochPeriod int
	BBPeriod    int
	ADXPeriod   int
}

// DefaultEngineConfig returns the standard indicator periods
func DefaultEngineConfig() EngineConfig {
	return EngineConfig{
		RSIPeriod:   14,
		ATRPeriod:   14,
		StochPeriod: 14,
		BBPeriod:    20,
		ADXPeriod:   14,
	}
}

// Engine computes indicator snapshots from candle series
type Engine struct {
	cfg EngineConfig
}

// NewEngine creates a new indicator engine
func NewEngine(cfg EngineConfig) *Engine {
	if cfg.RSIPeriod == 0 {
		cfg = DefaultEngineConfig()
	}
	return &Engine{cfg: cfg}
}

// Snapshot computes an IndicatorSnapshot for the series. The series is
// validated first; a malformed candle fails the whole snapshot.
func (e *Engine) Snapshot(symbol, timeframe string, candles []Candle) (*IndicatorSnapshot, error) {
	if err := ValidateSeries(candles); err != nil {
		return nil, fmt.Errorf("indicator snapshot %s/%s: %w", symbol, timeframe, err)
	}
	if len(candles) < 50 {
		return nil, fmt.Errorf("indicator snapshot %s/%s: need at least 50 candles, got %d", symbol, timeframe, len(candles))
	}

	closes := Closes(candles)
	highs := Highs(candles)
	lows := Lows(candles)
	volumes := Volumes(candles)
	price := closes[len(closes)-1]

	snap := &IndicatorSnapshot{
		Symbol:      symbol,
		Timeframe:   timeframe,
		MarketPrice: price,
	}

	snap.RSI = lastValue(computeRSI(closes, e.cfg.RSIPeriod), 50)
	snap.EMA20 = lastValue(computeEMA(closes, 20), price)
	snap.EMA50 = lastValue(computeEMA(closes, 50), price)

	macdLine, macdSignal := computeMACD(closes)
	snap.MACD = lastValue(macdLine, 0)
	snap.MACDSignal = lastValue(macdSignal, 0)
	snap.MACDHist = snap.MACD - snap.MACDSignal

	snap.ATR = lastValue(computeATR(highs, lows, closes), 0)
	if price > 0 {
		snap.ATRPercent = snap.ATR / price * 100
	}

	snap.StochK, snap.StochD = stochastic(candles, e.cfg.StochPeriod, 3)
	snap.BBUpper, snap.BBMiddle, snap.BBLower = bollingerBands(closes, e.cfg.BBPeriod, 2.0)
	if snap.BBMiddle > 0 {
		snap.BBWidthPct = (snap.BBUpper - snap.BBLower) / snap.BBMiddle * 100
	}

	snap.ADX = adx(candles, e.cfg.ADXPeriod)
	snap.VWAP = vwap(candles)
	snap.OBVSlope = obvSlope(closes, volumes, 10)

	// ATR at 4% of price maps to the top of the volatility scale
	snap.Volatility = clamp(snap.ATRPercent*25, 0, 100)

	return snap, nil
}

// ---- library-backed primitives ----

func computeRSI(closes []float64, period int) []float64 {
	rsi := momentum.NewRsiWithPeriod[float64](period)
	return helper.ChanToSlice(rsi.Compute(helper.SliceToChan(closes)))
}

func computeEMA(closes []float64, period int) []float64 {
	ema := trend.NewEmaWithPeriod[float64](period)
	return helper.ChanToSlice(ema.Compute(helper.SliceToChan(closes)))
}

func computeMACD(closes []float64) ([]float64, []float64) {
	macd := trend.NewMacdWithPeriod[float64](12, 26, 9)
	line, signal := macd.Compute(helper.SliceToChan(closes))

	// Both outputs feed from one duplicated stream; draining them one
	// after the other blocks the upstream sends once the duplicate's
	// buffer fills, so the line side drains on its own goroutine.
	var lineValues []float64
	done := make(chan struct{})
	go func() {
		lineValues = helper.ChanToSlice(line)
		close(done)
	}()
	signalValues := helper.ChanToSlice(signal)
	<-done

	return lineValues, signalValues
}

func computeATR(highs, lows, closes []float64) []float64 {
	atr := volatility.NewAtr[float64]()
	return helper.ChanToSlice(atr.Compute(
		helper.SliceToChan(highs),
		helper.SliceToChan(lows),
		helper.SliceToChan(closes),
	))
}

func obvSlope(closes, volumes []float64, lookback int) float64 {
	obv := volume.NewObv[float64]()
	values := helper.ChanToSlice(obv.Compute(
		helper.SliceToChan(closes),
		helper.SliceToChan(volumes),
	))
	if len(values) < lookback+1 {
		return 0
	}
	first := values[len(values)-lookback-1]
	last := values[len(values)-1]
	if math.Abs(first) < 1e-9 {
		return 0
	}
	return (last - first) / math.Abs(first)
}

// ---- primitives the library does not cover ----

func stochastic(candles []Candle, kPeriod, dPeriod int) (float64, float64) {
	if len(candles) < kPeriod+dPeriod {
		return 50, 50
	}

	kValue := func(end int) float64 {
		start := end - kPeriod
		highest := candles[start].High
		lowest := candles[start].Low
		for i := start; i < end; i++ {
			if candles[i].High > highest {
				highest = candles[i].High
			}
			if candles[i].Low < lowest {
				lowest = candles[i].Low
			}
		}
		if highest == lowest {
			return 50
		}
		return (candles[end-1].Close - lowest) / (highest - lowest) * 100
	}

	k := kValue(len(candles))

	// %D is the SMA of the last dPeriod %K values
	dSum := 0.0
	for i := 0; i < dPeriod; i++ {
		dSum += kValue(len(candles) - i)
	}

	return k, dSum / float64(dPeriod)
}

func bollingerBands(closes []float64, period int, mult float64) (upper, middle, lower float64) {
	if len(closes) < period {
		return 0, 0, 0
	}

	start := len(closes) - period
	sum := 0.0
	for i := start; i < len(closes); i++ {
		sum += closes[i]
	}
	middle = sum / float64(period)

	variance := 0.0
	for i := start; i < len(closes); i++ {
		diff := closes[i] - middle
		variance += diff * diff
	}
	stdDev := math.Sqrt(variance / float64(period))

	return middle + stdDev*mult, middle, middle - stdDev*mult
}

// adx implements Wilder's smoothed directional index
func adx(candles []Candle, period int) float64 {
	if len(candles) < period*2+1 {
		return 0
	}

	var trSum, plusDMSum, minusDMSum float64
	dxValues := make([]float64, 0, len(candles)-period)

	for i := 1; i < len(candles); i++ {
		high := candles[i].High
		low := candles[i].Low
		prevHigh := candles[i-1].High
		prevLow := candles[i-1].Low
		prevClose := candles[i-1].Close

		tr := math.Max(high-low, math.Max(math.Abs(high-prevClose), math.Abs(low-prevClose)))

		upMove := high - prevHigh
		downMove := prevLow - low
		plusDM, minusDM := 0.0, 0.0
		if upMove > downMove && upMove > 0 {
			plusDM = upMove
		}
		if downMove > upMove && downMove > 0 {
			minusDM = downMove
		}

		if i <= period {
			trSum += tr
			plusDMSum += plusDM
			minusDMSum += minusDM
			if i < period {
				continue
			}
		} else {
			trSum = trSum - trSum/float64(period) + tr
			plusDMSum = plusDMSum - plusDMSum/float64(period) + plusDM
			minusDMSum = minusDMSum - minusDMSum/float64(period) + minusDM
		}

		if trSum == 0 {
			dxValues = append(dxValues, 0)
			continue
		}
		plusDI := plusDMSum / trSum * 100
		minusDI := minusDMSum / trSum * 100
		if plusDI+minusDI == 0 {
			dxValues = append(dxValues, 0)
			continue
		}
		dxValues = append(dxValues, math.Abs(plusDI-minusDI)/(plusDI+minusDI)*100)
	}

	if len(dxValues) < period {
		return 0
	}

	adxVal := 0.0
	for _, dx := range dxValues[:period] {
		adxVal += dx
	}
	adxVal /= float64(period)
	for _, dx := range dxValues[period:] {
		adxVal = (adxVal*float64(period-1) + dx) / float64(period)
	}

	return adxVal
}

func vwap(candles []Candle) float64 {
	var pvSum, vSum float64
	for _, c := range candles {
		typical := (c.High + c.Low + c.Close) / 3
		pvSum += typical * c.Volume
		vSum += c.Volume
	}
	if vSum == 0 {
		return 0
	}
	return pvSum / vSum
}

func lastValue(values []float64, fallback float64) float64 {
	if len(values) == 0 {
		return fallback
	}
	return values[len(values)-1]
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
