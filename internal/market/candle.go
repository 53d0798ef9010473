package market

import (
	"errors"
	"fmt"
)

// Candle represents one OHLCV observation
type Candle struct {
	OpenTime  int64   `json:"open_time"`
	Open      float64 `json:"open"`
	High      float64 `json:"high"`
	Low       float64 `json:"low"`
	Close     float64 `json:"close"`
	Volume    float64 `json:"volume"`
	CloseTime int64   `json:"close_time"`
}

// ErrEmptySeries is returned when a candle series has no observations
var ErrEmptySeries = errors.New("empty candle series")

// ValidateSeries checks a candle series for malformed observations.
// A corrupted candle invalidates every score computed downstream, so this
// fails fast before any indicator math runs.
func ValidateSeries(candles []Candle) error {
	if len(candles) == 0 {
		return ErrEmptySeries
	}

	for i, c := range candles {
		if c.High < c.Low {
			return fmt.Errorf("malformed candle at index %d: high %.8f < low %.8f", i, c.High, c.Low)
		}
		if c.Open <= 0 || c.Close <= 0 || c.High <= 0 || c.Low <= 0 {
			return fmt.Errorf("malformed candle at index %d: non-positive price", i)
		}
		if c.Close > c.High || c.Close < c.Low {
			return fmt.Errorf("malformed candle at index %d: close %.8f outside [%.8f, %.8f]", i, c.Close, c.Low, c.High)
		}
		if c.Volume < 0 {
			return fmt.Errorf("malformed candle at index %d: negative volume", i)
		}
	}

	return nil
}

// Closes extracts the close series
func Closes(candles []Candle) []float64 {
	out := make([]float64, len(candles))
	for i, c := range candles {
		out[i] = c.Close
	}
	return out
}

// Highs extracts the high series
func Highs(candles []Candle) []float64 {
	out := make([]float64, len(candles))
	for i, c := range candles {
		out[i] = c.High
	}
	return out
}

// Lows extracts the low series
func Lows(candles []Candle) []float64 {
	out := make([]float64, len(candles))
	for i, c := range candles {
		out[i] = c.Low
	}
	return out
}

// Volumes extracts the volume series
func Volumes(candles []Candle) []float64 {
	out := make([]float64, len(candles))
	for i, c := range candles {
		out[i] = c.Volume
	}
	return out
}
