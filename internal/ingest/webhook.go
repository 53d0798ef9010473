package ingest

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"ultra-signal-engine/internal/arbiter"
)

// WebhookPayload is the TradingView-style alert body accepted over HTTP
type WebhookPayload struct {
	Symbol     string  `json:"symbol"`
	Timeframe  string  `json:"timeframe"`
	Side       string  `json:"side"` // buy/sell/long/short, any case
	Confidence float64 `json:"confidence"`
	Entry      float64 `json:"entry"`
	StopLoss   float64 `json:"stop_loss"`
	TakeProfit float64 `json:"take_profit"`
	Strategy   string  `json:"strategy"`
}

// ParseWebhook validates and normalizes an alert body into a raw source
func ParseWebhook(body []byte, now time.Time) (arbiter.WebhookSignal, error) {
	var payload WebhookPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		return arbiter.WebhookSignal{}, fmt.Errorf("parse webhook payload: %w", err)
	}

	symbol := strings.ToUpper(strings.TrimSpace(payload.Symbol))
	if symbol == "" {
		return arbiter.WebhookSignal{}, fmt.Errorf("webhook payload missing symbol")
	}
	timeframe := strings.ToLower(strings.TrimSpace(payload.Timeframe))
	if timeframe == "" {
		return arbiter.WebhookSignal{}, fmt.Errorf("webhook payload missing timeframe")
	}

	side, err := normalizeSide(payload.Side)
	if err != nil {
		return arbiter.WebhookSignal{}, err
	}

	if payload.Confidence < 0 || payload.Confidence > 100 {
		return arbiter.WebhookSignal{}, fmt.Errorf("webhook confidence %.1f outside [0,100]", payload.Confidence)
	}

	return arbiter.WebhookSignal{
		Symbol:     symbol,
		Timeframe:  timeframe,
		Side:       side,
		Confidence: payload.Confidence,
		Entry:      payload.Entry,
		StopLoss:   payload.StopLoss,
		TakeProfit: payload.TakeProfit,
		Strategy:   payload.Strategy,
		ReceivedAt: now,
	}, nil
}

// ManualPayload is an operator-entered trade idea
type ManualPayload struct {
	Symbol     string  `json:"symbol"`
	Timeframe  string  `json:"timeframe"`
	Side       string  `json:"side"`
	Confidence float64 `json:"confidence"`
	Entry      float64 `json:"entry"`
	StopLoss   float64 `json:"stop_loss"`
	TakeProfit float64 `json:"take_profit"`
	Note       string  `json:"note"`
	Author     string  `json:"author"`
}

// ParseManual validates and normalizes a manual entry
func ParseManual(body []byte, now time.Time) (arbiter.ManualSignal, error) {
	var payload ManualPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		return arbiter.ManualSignal{}, fmt.Errorf("parse manual payload: %w", err)
	}

	symbol := strings.ToUpper(strings.TrimSpace(payload.Symbol))
	if symbol == "" {
		return arbiter.ManualSignal{}, fmt.Errorf("manual payload missing symbol")
	}
	timeframe := strings.ToLower(strings.TrimSpace(payload.Timeframe))
	if timeframe == "" {
		return arbiter.ManualSignal{}, fmt.Errorf("manual payload missing timeframe")
	}

	side, err := normalizeSide(payload.Side)
	if err != nil {
		return arbiter.ManualSignal{}, err
	}
	if payload.Confidence < 0 || payload.Confidence > 100 {
		return arbiter.ManualSignal{}, fmt.Errorf("manual confidence %.1f outside [0,100]", payload.Confidence)
	}

	return arbiter.ManualSignal{
		Symbol:     symbol,
		Timeframe:  timeframe,
		Side:       side,
		Confidence: payload.Confidence,
		Entry:      payload.Entry,
		StopLoss:   payload.StopLoss,
		TakeProfit: payload.TakeProfit,
		Note:       payload.Note,
		Author:     payload.Author,
		EnteredAt:  now,
	}, nil
}

// LegacyFromScore adapts the previous-generation engine's 0-100 score into
// a raw source. Scores inside the 40-60 band carry no directional signal
// and produce nothing.
func LegacyFromScore(symbol, timeframe string, score float64, engineVersion string, now time.Time) (arbiter.LegacySignal, bool) {
	var side string
	switch {
	case score >= 60:
		side = arbiter.SideBuy
	case score <= 40:
		side = arbiter.SideSell
	default:
		return arbiter.LegacySignal{}, false
	}

	// SELL strength grows as the score falls; re-express it on the same
	// 0-100 confidence scale as BUY
	confidence := score
	if side == arbiter.SideSell {
		confidence = 100 - score
	}

	return arbiter.LegacySignal{
		Symbol:        strings.ToUpper(symbol),
		Timeframe:     strings.ToLower(timeframe),
		Side:          side,
		Score:         confidence,
		EngineVersion: engineVersion,
		ScoredAt:      now,
	}, true
}

func normalizeSide(raw string) (string, error) {
	switch strings.ToUpper(strings.TrimSpace(raw)) {
	case "BUY", "LONG":
		return arbiter.SideBuy, nil
	case "SELL", "SHORT":
		return arbiter.SideSell, nil
	default:
		return "", fmt.Errorf("unknown side %q", raw)
	}
}
