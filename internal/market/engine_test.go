package market

import (
	"errors"
	"math"
	"testing"
	"time"
)

func trendCandles(n int, step float64) []Candle {
	candles := make([]Candle, n)
	price := 100.0
	for i := range candles {
		open := price
		price += step
		high := math.Max(open, price) + 0.2
		low := math.Min(open, price) - 0.2
		candles[i] = Candle{
			OpenTime:  int64(i) * 60_000,
			Open:      open,
			High:      high,
			Low:       low,
			Close:     price,
			Volume:    1000 + float64(i%5)*100,
			CloseTime: int64(i+1)*60_000 - 1,
		}
	}
	return candles
}

func TestSnapshotOnUptrend(t *testing.T) {
	engine := NewEngine(DefaultEngineConfig())
	candles := trendCandles(60, 0.5)

	snap, err := engine.Snapshot("BTCUSDT", "5m", candles)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if snap.Symbol != "BTCUSDT" || snap.Timeframe != "5m" {
		t.Errorf("symbol/timeframe not stamped: %+v", snap)
	}
	if snap.MarketPrice != candles[len(candles)-1].Close {
		t.Errorf("market price %.4f != last close %.4f", snap.MarketPrice, candles[len(candles)-1].Close)
	}
	if snap.RSI <= 50 {
		t.Errorf("expected elevated RSI on a steady uptrend, got %.2f", snap.RSI)
	}
	if snap.EMA20 <= snap.EMA50 {
		t.Errorf("expected EMA20 %.4f above EMA50 %.4f on an uptrend", snap.EMA20, snap.EMA50)
	}
	if snap.ATR <= 0 {
		t.Errorf("expected positive ATR, got %.4f", snap.ATR)
	}
	if snap.StochK < 0 || snap.StochK > 100 || snap.StochD < 0 || snap.StochD > 100 {
		t.Errorf("stochastic out of range: k=%.2f d=%.2f", snap.StochK, snap.StochD)
	}
	if !(snap.BBUpper > snap.BBMiddle && snap.BBMiddle > snap.BBLower) {
		t.Errorf("bollinger bands out of order: %.4f / %.4f / %.4f", snap.BBUpper, snap.BBMiddle, snap.BBLower)
	}
	// VWAP lags price on a steady climb but stays inside the traded range
	if snap.VWAP < candles[0].Low || snap.VWAP > candles[len(candles)-1].High {
		t.Errorf("vwap %.4f outside traded range", snap.VWAP)
	}
	if snap.Volatility < 0 || snap.Volatility > 100 {
		t.Errorf("volatility score out of range: %.2f", snap.Volatility)
	}
}

func TestComputeMACDDrainsBothOutputs(t *testing.T) {
	closes := Closes(trendCandles(60, 0.5))

	var line, signal []float64
	done := make(chan struct{})
	go func() {
		line, signal = computeMACD(closes)
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("computeMACD did not return")
	}

	if len(line) == 0 || len(signal) == 0 {
		t.Fatalf("expected values on both outputs, got %d line / %d signal", len(line), len(signal))
	}
	if last := line[len(line)-1]; last <= 0 {
		t.Errorf("expected positive MACD line on an uptrend, got %.4f", last)
	}
}

func TestSnapshotRejectsShortSeries(t *testing.T) {
	engine := NewEngine(DefaultEngineConfig())

	if _, err := engine.Snapshot("BTCUSDT", "5m", trendCandles(30, 0.5)); err == nil {
		t.Error("expected error below the 50-candle minimum")
	}
}

func TestSnapshotRejectsMalformedCandle(t *testing.T) {
	engine := NewEngine(DefaultEngineConfig())
	candles := trendCandles(60, 0.5)
	candles[10].High = candles[10].Low - 1

	if _, err := engine.Snapshot("BTCUSDT", "5m", candles); err == nil {
		t.Error("expected validation error for high below low")
	}
}

func TestSnapshotRejectsEmptySeries(t *testing.T) {
	engine := NewEngine(DefaultEngineConfig())

	_, err := engine.Snapshot("BTCUSDT", "5m", nil)
	if !errors.Is(err, ErrEmptySeries) {
		t.Errorf("expected ErrEmptySeries, got %v", err)
	}
}

func TestStochasticFlatSeries(t *testing.T) {
	k, d := stochastic(trendCandles(40, 0), 14, 3)
	// Flat candles still carry a 0.4 high-low spread from the wick padding,
	// so %K sits at the midpoint of that band
	if k < 40 || k > 60 {
		t.Errorf("expected near-midline %%K on a flat series, got %.2f", k)
	}
	if d < 40 || d > 60 {
		t.Errorf("expected near-midline %%D on a flat series, got %.2f", d)
	}
}

func TestVWAPZeroVolume(t *testing.T) {
	candles := trendCandles(10, 0.5)
	for i := range candles {
		candles[i].Volume = 0
	}
	if got := vwap(candles); got != 0 {
		t.Errorf("expected 0 vwap with no volume, got %.4f", got)
	}
}

func TestADXStrongTrend(t *testing.T) {
	got := adx(trendCandles(80, 0.5), 14)
	if got < 25 {
		t.Errorf("expected ADX above 25 on a persistent trend, got %.2f", got)
	}
	if got > 100 {
		t.Errorf("ADX out of range: %.2f", got)
	}
}
