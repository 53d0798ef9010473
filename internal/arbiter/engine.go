package arbiter

import (
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"

	"ultra-signal-engine/internal/analyzers"
	"ultra-signal-engine/internal/fusion"
	"ultra-signal-engine/internal/market"
)

// ErrNoSources is returned when arbitration has neither an AI fusion result
// nor any raw source to work with
var ErrNoSources = errors.New("no sources available")

// ATR multipliers for the derived price triplet
const (
	atrRiskMultiplier   = 1.4
	atrRewardMultiplier = 2.2
)

// defaultSourceConfidence substitutes for a source that states no confidence
const defaultSourceConfidence = 60.0

// Config holds arbitration tunables. A zero value is usable: every field
// falls back to its default at evaluation time.
type Config struct {
	Sensitivity            string  // "low", "default", "high"
	MinConfidenceForAction float64 // 0-100
	DominanceThreshold     float64 // 0-1
	BiasMode               string  // "none", "breakout", "reversal"

	// SourceWeights are the per-source-type vote weights used in dominance
	// voting; FactorWeights weight the AI sub-factors in the confidence
	// estimate. Partial maps are merged over defaults.
	SourceWeights map[string]float64
	FactorWeights map[string]float64
}

// DefaultConfig returns the default arbitration configuration
func DefaultConfig() Config {
	return Config{
		Sensitivity:            "default",
		MinConfidenceForAction: 55,
		DominanceThreshold:     0.60,
		BiasMode:               "none",
	}
}

func defaultSourceWeights() map[string]float64 {
	return map[string]float64{
		SourceAIAnalyzer: 1.0,
		SourceWebhook:    1.0,
		SourceLegacy:     0.8,
		SourceManual:     1.2,
	}
}

func defaultFactorWeights() map[string]float64 {
	return map[string]float64{
		analyzers.FactorTechnical: 0.30,
		analyzers.FactorVolume:    0.15,
		analyzers.FactorPattern:   0.20,
		analyzers.FactorWave:      0.15,
		analyzers.FactorSentiment: 0.10,
	}
}

// Input carries everything one arbitration run needs. The engine itself is
// stateless: two calls with equal inputs produce equal decisions (ids and
// timestamps aside).
type Input struct {
	Symbol    string
	Timeframe string

	// AI is the fusion result, treated as one source among the raw ones.
	// May be nil when only raw sources exist.
	AI *fusion.Result

	// Snapshot supplies the reference price and ATR for derived price
	// levels. May be nil.
	Snapshot *market.IndicatorSnapshot

	Sources []RawSource

	// RiskProfileOverride is an asset-level risk classification from the
	// market-intelligence collaborator, empty when absent
	RiskProfileOverride string

	Now time.Time
}

// contribution is one (label, weight, score) tuple in the confidence
// estimate
type contribution struct {
	label  string
	weight float64
	score  float64
}

// Arbitrate reconciles the AI fusion result with the raw external sources
// into one final signal for the (symbol, timeframe).
func Arbitrate(in Input, cfg Config) (*UltraSignal, error) {
	if in.AI == nil && len(in.Sources) == 0 {
		return nil, fmt.Errorf("arbitrate %s/%s: %w", in.Symbol, in.Timeframe, ErrNoSources)
	}

	cfg = withDefaults(cfg)

	confidence := weightedConfidence(in, cfg)
	side, dominance := arbitrateSide(in, cfg, confidence)
	side = applyBiasMode(side, in.AI, cfg.BiasMode)

	prices, priceSource := resolvePrices(in, side)
	rr := riskReward(side, prices)

	now := in.Now
	if now.IsZero() {
		now = time.Now()
	}

	signal := &UltraSignal{
		ID:              uuid.New().String(),
		Symbol:          in.Symbol,
		Timeframe:       in.Timeframe,
		Side:            side,
		FinalConfidence: confidence,
		RiskLevel:       finalRiskLevel(in.AI, in.RiskProfileOverride, confidence),
		Entry:           prices.Entry,
		StopLoss:        prices.StopLoss,
		TakeProfit:      prices.TakeProfit,
		RRRatio:         rr,
		DominanceRatio:  dominance,
		SourcesUsed:     sourcesUsed(in),
		CreatedAt:       now,
	}

	if in.AI != nil {
		signal.SubScores = in.AI.SubScores
		signal.Reasoning = append(signal.Reasoning, in.AI.Reasoning...)
	}
	signal.Reasoning = append(signal.Reasoning, arbitrationLine(side, dominance, confidence, priceSource))

	return signal, nil
}

func withDefaults(cfg Config) Config {
	def := DefaultConfig()
	if cfg.Sensitivity == "" {
		cfg.Sensitivity = def.Sensitivity
	}
	if cfg.MinConfidenceForAction == 0 {
		cfg.MinConfidenceForAction = def.MinConfidenceForAction
	}
	if cfg.DominanceThreshold == 0 {
		cfg.DominanceThreshold = def.DominanceThreshold
	}
	if cfg.BiasMode == "" {
		cfg.BiasMode = def.BiasMode
	}

	sources := defaultSourceWeights()
	for k, v := range cfg.SourceWeights {
		if v >= 0 {
			sources[k] = v
		}
	}
	cfg.SourceWeights = sources

	factors := defaultFactorWeights()
	for k, v := range cfg.FactorWeights {
		if v >= 0 {
			factors[k] = v
		}
	}
	cfg.FactorWeights = factors

	return cfg
}

// weightedConfidence renormalizes a confidence estimate over every tuple
// actually present; omission renormalizes automatically. Neutral 50 when
// nothing contributes.
func weightedConfidence(in Input, cfg Config) float64 {
	var contributions []contribution

	if in.AI != nil {
		for _, factor := range []string{
			analyzers.FactorTechnical,
			analyzers.FactorVolume,
			analyzers.FactorPattern,
			analyzers.FactorWave,
			analyzers.FactorSentiment,
		} {
			score, ok := in.AI.SubScores[factor]
			if !ok {
				continue
			}
			contributions = append(contributions, contribution{
				label:  factor,
				weight: cfg.FactorWeights[factor],
				score:  score,
			})
		}
	}

	// One aggregated tuple per external source type present, scored by the
	// mean confidence of that type
	type agg struct {
		sum   float64
		count int
	}
	byType := make(map[string]*agg)
	for _, src := range in.Sources {
		vote := src.Vote()
		conf := defaultSourceConfidence
		if vote.HasConfidence {
			conf = vote.Confidence
		}
		a := byType[src.Type()]
		if a == nil {
			a = &agg{}
			byType[src.Type()] = a
		}
		a.sum += conf
		a.count++
	}
	for _, sourceType := range []string{SourceWebhook, SourceLegacy, SourceManual} {
		a, present := byType[sourceType]
		if !present {
			continue
		}
		contributions = append(contributions, contribution{
			label:  sourceType,
			weight: cfg.SourceWeights[sourceType],
			score:  a.sum / float64(a.count),
		})
	}

	var weightSum, scoreSum float64
	for _, c := range contributions {
		weightSum += c.weight
		scoreSum += c.weight * c.score
	}

	confidence := 50.0
	if weightSum > 0 {
		confidence = scoreSum / weightSum
	}

	confidence *= sensitivityConfidenceMultiplier(cfg.Sensitivity)
	return clamp(confidence, 0, 100)
}

func sensitivityConfidenceMultiplier(sensitivity string) float64 {
	switch sensitivity {
	case "high":
		return 1.08
	case "low":
		return 0.92
	default:
		return 1.0
	}
}

func sensitivityThresholdMultiplier(sensitivity string) float64 {
	switch sensitivity {
	case "high":
		return 0.85
	case "low":
		return 1.1
	default:
		return 1.0
	}
}

// arbitrateSide runs dominance voting over every source's declared side.
// The AI fusion result votes like any other source when its bias is
// directional.
func arbitrateSide(in Input, cfg Config, weightedConf float64) (string, float64) {
	var buyVotes, sellVotes float64

	accumulate := func(sourceType, side string, confidence float64) {
		vote := cfg.SourceWeights[sourceType] * (confidence / 100)
		switch side {
		case SideBuy:
			buyVotes += vote
		case SideSell:
			sellVotes += vote
		}
	}

	if in.AI != nil && in.AI.Bias != fusion.BiasWait {
		accumulate(SourceAIAnalyzer, in.AI.Bias, in.AI.Confidence*100)
	}
	for _, src := range in.Sources {
		vote := src.Vote()
		conf := defaultSourceConfidence
		if vote.HasConfidence {
			conf = vote.Confidence
		}
		accumulate(src.Type(), vote.Side, conf)
	}

	total := buyVotes + sellVotes
	if total == 0 {
		return SideWait, 0
	}

	side := SideBuy
	winning := buyVotes
	if sellVotes > buyVotes {
		side = SideSell
		winning = sellVotes
	}
	dominance := winning / total

	threshold := cfg.DominanceThreshold * sensitivityThresholdMultiplier(cfg.Sensitivity)
	if dominance < threshold || weightedConf < cfg.MinConfidenceForAction {
		return SideWait, dominance
	}
	return side, dominance
}

// applyBiasMode applies at most one of the two optional overrides.
// Breakout promotes a WAIT to the AI bias; reversal replaces a directional
// result that disagrees with the AI bias.
func applyBiasMode(side string, ai *fusion.Result, mode string) string {
	if ai == nil || ai.Bias == fusion.BiasWait {
		return side
	}
	switch mode {
	case "breakout":
		if side == SideWait {
			return ai.Bias
		}
	case "reversal":
		if side != SideWait && side != ai.Bias {
			return ai.Bias
		}
	}
	return side
}

// resolvePrices picks price levels by fixed priority: the best raw triplet,
// an ATR-derived triplet, a bare market entry, or nothing.
func resolvePrices(in Input, side string) (PriceTriplet, string) {
	// 1. Highest-confidence raw source with a complete triplet
	bestConf := -1.0
	var best PriceTriplet
	for _, src := range in.Sources {
		triplet, complete := src.Prices()
		if !complete {
			continue
		}
		vote := src.Vote()
		conf := defaultSourceConfidence
		if vote.HasConfidence {
			conf = vote.Confidence
		}
		if conf > bestConf {
			bestConf = conf
			best = triplet
		}
	}
	if bestConf >= 0 {
		return best, "raw source levels"
	}

	ref := referencePrice(in.Snapshot)

	// 2. ATR-derived triplet signed by side
	if in.Snapshot != nil && in.Snapshot.ATR > 0 && ref > 0 && side != SideWait {
		risk := atrRiskMultiplier * in.Snapshot.ATR
		reward := atrRewardMultiplier * in.Snapshot.ATR
		if side == SideBuy {
			return PriceTriplet{Entry: ref, StopLoss: ref - risk, TakeProfit: ref + reward}, "ATR-derived levels"
		}
		return PriceTriplet{Entry: ref, StopLoss: ref + risk, TakeProfit: ref - reward}, "ATR-derived levels"
	}

	// 3. Market entry with no stop or target
	if ref > 0 {
		return PriceTriplet{Entry: ref}, "market entry only"
	}

	// 4. No price information anywhere
	return PriceTriplet{}, "no price levels"
}

// referencePrice falls through market price, VWAP, EMA20, EMA50
func referencePrice(snap *market.IndicatorSnapshot) float64 {
	if snap == nil {
		return 0
	}
	for _, p := range []float64{snap.MarketPrice, snap.VWAP, snap.EMA20, snap.EMA50} {
		if p > 0 {
			return p
		}
	}
	return 0
}

// riskReward computes the reward-to-risk ratio rounded to 2 decimals.
// Zero when the side is WAIT or the risk leg is not positive.
func riskReward(side string, p PriceTriplet) float64 {
	if side == SideWait || p.Entry == 0 || p.StopLoss == 0 || p.TakeProfit == 0 {
		return 0
	}

	var risk, reward float64
	switch side {
	case SideBuy:
		risk = p.Entry - p.StopLoss
		reward = p.TakeProfit - p.Entry
	case SideSell:
		risk = p.StopLoss - p.Entry
		reward = p.Entry - p.TakeProfit
	}
	if risk <= 0 {
		return 0
	}
	return math.Round(reward/risk*100) / 100
}

// finalRiskLevel prefers the AI risk level; an asset-level override is
// adjusted by confidence rather than taken verbatim.
func finalRiskLevel(ai *fusion.Result, override string, confidence float64) string {
	level := fusion.RiskMedium
	if ai != nil {
		level = ai.RiskLevel
	}
	if override == "" {
		return level
	}

	adjusted := override
	if confidence >= 80 {
		adjusted = downgradeRisk(adjusted)
	} else if confidence < 40 {
		adjusted = upgradeRisk(adjusted)
	}
	return adjusted
}

var riskOrder = []string{fusion.RiskLow, fusion.RiskMedium, fusion.RiskHigh, fusion.RiskExtreme}

func riskRank(level string) int {
	for i, l := range riskOrder {
		if l == level {
			return i
		}
	}
	return 1
}

func downgradeRisk(level string) string {
	rank := riskRank(level)
	if rank == 0 {
		return level
	}
	return riskOrder[rank-1]
}

func upgradeRisk(level string) string {
	rank := riskRank(level)
	if rank == len(riskOrder)-1 {
		return level
	}
	return riskOrder[rank+1]
}

func sourcesUsed(in Input) []string {
	var used []string
	if in.AI != nil {
		used = append(used, SourceAIAnalyzer)
	}
	seen := make(map[string]bool)
	for _, src := range in.Sources {
		if seen[src.Type()] {
			continue
		}
		seen[src.Type()] = true
		used = append(used, src.Type())
	}
	return used
}

func arbitrationLine(side string, dominance, confidence float64, priceSource string) string {
	if side == SideWait {
		return fmt.Sprintf("arbitration: WAIT (dominance %.2f, confidence %.1f)", dominance, confidence)
	}
	return fmt.Sprintf("arbitration: %s at %.1f confidence, dominance %.2f, %s", side, confidence, dominance, priceSource)
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
