package arbiter

import (
	"time"
)

// Source types recognized by arbitration
const (
	SourceAIAnalyzer = "AI_ANALYZER"
	SourceWebhook    = "EXTERNAL_WEBHOOK"
	SourceLegacy     = "LEGACY_ENGINE"
	SourceManual     = "MANUAL"
)

// Signal sides
const (
	SideBuy  = "BUY"
	SideSell = "SELL"
	SideWait = "WAIT"
)

// SourceVote is one raw source's directional opinion. HasConfidence is
// unset when the source did not state one; arbitration substitutes a
// default rather than treating zero as a real reading.
type SourceVote struct {
	Side          string
	Confidence    float64 // 0-100
	HasConfidence bool
}

// PriceTriplet is a complete entry/stop/target set
type PriceTriplet struct {
	Entry      float64 `json:"entry"`
	StopLoss   float64 `json:"stop_loss"`
	TakeProfit float64 `json:"take_profit"`
}

// RawSource is a raw external trade signal. Each concrete source type
// carries only the fields it can actually populate, so arbitration can
// rely on the contract instead of probing optional bags.
type RawSource interface {
	Type() string
	Vote() SourceVote
	// Prices returns the source's price triplet and whether it is complete
	Prices() (PriceTriplet, bool)
	GeneratedAt() time.Time
}

// WebhookSignal is a TradingView-style alert received over HTTP
type WebhookSignal struct {
	Symbol     string    `json:"symbol"`
	Timeframe  string    `json:"timeframe"`
	Side       string    `json:"side"`
	Confidence float64   `json:"confidence"` // 0 means not stated
	Entry      float64   `json:"entry"`
	StopLoss   float64   `json:"stop_loss"`
	TakeProfit float64   `json:"take_profit"`
	Strategy   string    `json:"strategy"`
	ReceivedAt time.Time `json:"received_at"`
}

func (s WebhookSignal) Type() string { return SourceWebhook }

func (s WebhookSignal) Vote() SourceVote {
	return SourceVote{Side: s.Side, Confidence: s.Confidence, HasConfidence: s.Confidence > 0}
}

func (s WebhookSignal) Prices() (PriceTriplet, bool) {
	t := PriceTriplet{Entry: s.Entry, StopLoss: s.StopLoss, TakeProfit: s.TakeProfit}
	return t, s.Entry > 0 && s.StopLoss > 0 && s.TakeProfit > 0
}

func (s WebhookSignal) GeneratedAt() time.Time { return s.ReceivedAt }

// LegacySignal comes from the previous-generation scoring engine. It
// reports a score but never price levels.
type LegacySignal struct {
	Symbol        string    `json:"symbol"`
	Timeframe     string    `json:"timeframe"`
	Side          string    `json:"side"`
	Score         float64   `json:"score"` // 0-100
	EngineVersion string    `json:"engine_version"`
	ScoredAt      time.Time `json:"scored_at"`
}

func (s LegacySignal) Type() string { return SourceLegacy }

func (s LegacySignal) Vote() SourceVote {
	return SourceVote{Side: s.Side, Confidence: s.Score, HasConfidence: s.Score > 0}
}

func (s LegacySignal) Prices() (PriceTriplet, bool) { return PriceTriplet{}, false }

func (s LegacySignal) GeneratedAt() time.Time { return s.ScoredAt }

// ManualSignal is an operator-entered trade idea
type ManualSignal struct {
	Symbol     string    `json:"symbol"`
	Timeframe  string    `json:"timeframe"`
	Side       string    `json:"side"`
	Confidence float64   `json:"confidence"`
	Entry      float64   `json:"entry"`
	StopLoss   float64   `json:"stop_loss"`
	TakeProfit float64   `json:"take_profit"`
	Note       string    `json:"note"`
	Author     string    `json:"author"`
	EnteredAt  time.Time `json:"entered_at"`
}

func (s ManualSignal) Type() string { return SourceManual }

func (s ManualSignal) Vote() SourceVote {
	return SourceVote{Side: s.Side, Confidence: s.Confidence, HasConfidence: s.Confidence > 0}
}

func (s ManualSignal) Prices() (PriceTriplet, bool) {
	t := PriceTriplet{Entry: s.Entry, StopLoss: s.StopLoss, TakeProfit: s.TakeProfit}
	return t, s.Entry > 0 && s.StopLoss > 0 && s.TakeProfit > 0
}

func (s ManualSignal) GeneratedAt() time.Time { return s.EnteredAt }

// UltraSignal is the final arbitrated decision for one (symbol, timeframe).
// Created once per arbitration run and never mutated; a later run produces
// a new signal with a new id.
type UltraSignal struct {
	ID              string             `json:"id"`
	Symbol          string             `json:"symbol"`
	Timeframe       string             `json:"timeframe"`
	Side            string             `json:"side"`             // BUY, SELL, WAIT
	FinalConfidence float64            `json:"final_confidence"` // 0-100
	RiskLevel       string             `json:"risk_level"`
	Entry           float64            `json:"entry,omitempty"`
	StopLoss        float64            `json:"stop_loss,omitempty"`
	TakeProfit      float64            `json:"take_profit,omitempty"`
	RRRatio         float64            `json:"rr_ratio,omitempty"`
	DominanceRatio  float64            `json:"dominance_ratio"`
	SourcesUsed     []string           `json:"sources_used"`
	SubScores       map[string]float64 `json:"sub_scores,omitempty"`
	Reasoning       []string           `json:"reasoning,omitempty"`
	CreatedAt       time.Time          `json:"created_at"`
}

// Actionable reports whether the signal calls for a trade
func (s *UltraSignal) Actionable() bool {
	return s.Side == SideBuy || s.Side == SideSell
}
