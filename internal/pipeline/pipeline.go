// Package pipeline orchestrates one analysis run: indicator snapshot,
// analyzer fan-out, fusion, arbitration against the raw-source book,
// lifecycle registration, and the delivery channels. The decision itself is
// computed before any delivery runs; a failing channel is reported, never
// propagated into the signal.
package pipeline

import (
	"context"
	"sync"
	"time"

	"ultra-signal-engine/config"
	"ultra-signal-engine/internal/analyzers"
	"ultra-signal-engine/internal/arbiter"
	"ultra-signal-engine/internal/database"
	"ultra-signal-engine/internal/events"
	"ultra-signal-engine/internal/fusion"
	"ultra-signal-engine/internal/ingest"
	"ultra-signal-engine/internal/intel"
	"ultra-signal-engine/internal/lifecycle"
	"ultra-signal-engine/internal/logging"
	"ultra-signal-engine/internal/market"
	"ultra-signal-engine/internal/notification"
	"ultra-signal-engine/internal/patterns"
)

// Delivery channel names used in the report
const (
	ChannelBuffer       = "buffer"
	ChannelBroadcast    = "broadcast"
	ChannelHistory      = "history"
	ChannelNotification = "notification"
)

// DeliveryReport records the per-channel outcome of the fire-and-forget
// deliveries. A channel appears in exactly one of the three lists.
type DeliveryReport struct {
	Succeeded []string          `json:"succeeded"`
	Failed    map[string]string `json:"failed,omitempty"`
	Skipped   []string          `json:"skipped,omitempty"`
}

func (r *DeliveryReport) ok(channel string) {
	r.Succeeded = append(r.Succeeded, channel)
}

func (r *DeliveryReport) fail(channel string, err error) {
	if r.Failed == nil {
		r.Failed = make(map[string]string)
	}
	r.Failed[channel] = err.Error()
}

func (r *DeliveryReport) skip(channel string) {
	r.Skipped = append(r.Skipped, channel)
}

// Outcome is the result of one pipeline run
type Outcome struct {
	Signal   *arbiter.UltraSignal `json:"signal"`
	Fusion   *fusion.Result       `json:"fusion"`
	Decision lifecycle.Decision   `json:"decision"`
	Expiry   time.Time            `json:"expiry"`
	Delivery DeliveryReport       `json:"delivery"`
}

// Deps are the collaborators a pipeline needs. Repo and Notifier may be
// nil; their channels are then skipped.
type Deps struct {
	Engine   *market.Engine
	Patterns *patterns.Detector
	Waves    *patterns.WaveDetector
	Intel    *intel.Provider
	Book     *ingest.Book
	Buffer   *lifecycle.Buffer
	Changes  *lifecycle.ChangeDetector
	Bus      *events.Bus
	Repo     *database.Repository
	Notifier *notification.Manager
}

// Pipeline runs the full analyze-fuse-arbitrate-lifecycle sequence
type Pipeline struct {
	cfg  *config.Config
	deps Deps
	log  *logging.Logger
}

// New creates a pipeline and wires signal expiry to the broadcast and
// notification channels
func New(cfg *config.Config, deps Deps) *Pipeline {
	p := &Pipeline{
		cfg:  cfg,
		deps: deps,
		log:  logging.WithComponent("pipeline"),
	}

	deps.Buffer.OnEvict(func(signal *arbiter.UltraSignal) {
		deps.Bus.PublishSignalExpired(signal)
		if deps.Notifier != nil {
			if err := deps.Notifier.SendExpiry(signal); err != nil {
				p.log.Warn("Expiry notification failed", "signal_id", signal.ID, "error", err)
			}
		}
	})

	return p
}

// Run executes one pipeline pass for the candle series. The returned
// Outcome always carries the computed signal when err is nil; delivery
// failures live in the report, not in err.
func (p *Pipeline) Run(ctx context.Context, symbol, timeframe string, candles []market.Candle, now time.Time) (*Outcome, error) {
	snap, err := p.deps.Engine.Snapshot(symbol, timeframe, candles)
	if err != nil {
		return nil, err
	}

	inputs, err := p.evaluateAdapters(ctx, symbol, timeframe, candles, snap)
	if err != nil {
		return nil, err
	}

	fused := fusion.Combine(inputs, p.cfg.FusionConfig.Weights)

	signal, err := arbiter.Arbitrate(arbiter.Input{
		Symbol:              symbol,
		Timeframe:           timeframe,
		AI:                  &fused,
		Snapshot:            snap,
		Sources:             p.deps.Book.Sources(symbol, timeframe, now),
		RiskProfileOverride: p.riskProfile(ctx, symbol),
		Now:                 now,
	}, p.arbiterConfig())
	if err != nil {
		return nil, err
	}

	decision := p.deps.Changes.Evaluate(signal)

	outcome := &Outcome{
		Signal:   signal,
		Fusion:   &fused,
		Decision: decision,
	}
	p.deliver(ctx, outcome)

	p.log.Info("Pipeline run complete",
		"symbol", symbol, "timeframe", timeframe,
		"side", signal.Side, "confidence", signal.FinalConfidence,
		"change_reason", decision.Reason, "persisted", decision.Persist)
	return outcome, nil
}

// evaluateAdapters fans the five analyzers out, joins them all, and fails
// if any required one failed. A disabled adapter substitutes its neutral
// result so fusion weighting stays well-defined.
func (p *Pipeline) evaluateAdapters(ctx context.Context, symbol, timeframe string, candles []market.Candle, snap *market.IndicatorSnapshot) (fusion.Inputs, error) {
	cfg := p.cfg.AnalyzerConfig

	var inputs fusion.Inputs
	var volumeErr, patternErr, waveErr error

	var wg sync.WaitGroup
	run := func(fn func()) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			fn()
		}()
	}

	if cfg.DisableTechnical {
		inputs.Technical = analyzers.Neutral(analyzers.FactorTechnical)
	} else {
		run(func() { inputs.Technical = analyzers.EvaluateTechnical(snap) })
	}

	if cfg.DisableVolume {
		inputs.Volume = analyzers.Neutral(analyzers.FactorVolume)
	} else {
		run(func() { inputs.Volume, volumeErr = analyzers.EvaluateVolume(candles, cfg.MinCandles, cfg.VolumeLookback) })
	}

	if cfg.DisablePattern {
		inputs.Pattern = analyzers.Neutral(analyzers.FactorPattern)
	} else {
		run(func() {
			inputs.Pattern, patternErr = analyzers.EvaluatePattern(symbol, timeframe, candles, p.deps.Patterns, cfg.MinCandles)
		})
	}

	if cfg.DisableWave {
		inputs.Wave = analyzers.Neutral(analyzers.FactorWave)
	} else {
		run(func() { inputs.Wave, waveErr = analyzers.EvaluateWave(candles, p.deps.Waves, cfg.MinCandles) })
	}

	if cfg.DisableSentiment {
		inputs.Sentiment = analyzers.Neutral(analyzers.FactorSentiment)
	} else {
		run(func() { inputs.Sentiment = analyzers.EvaluateSentiment(p.sentimentInput(ctx, symbol)) })
	}

	wg.Wait()

	for _, err := range []error{volumeErr, patternErr, waveErr} {
		if err != nil {
			return fusion.Inputs{}, err
		}
	}
	return inputs, nil
}

// sentimentInput maps the market-intelligence readings onto the sentiment
// adapter's input. Every missing reading stays absent and degrades to
// neutral inside the adapter.
func (p *Pipeline) sentimentInput(ctx context.Context, symbol string) analyzers.SentimentInput {
	var in analyzers.SentimentInput
	if p.deps.Intel == nil {
		return in
	}

	if reading, ok := p.deps.Intel.FearGreed(ctx); ok {
		in.FearGreed = reading.Value
		in.HasFearGreed = true
	}
	if reading, ok := p.deps.Intel.Funding(ctx, symbol); ok {
		in.FundingRate = reading.Rate
		in.HasFundingRate = true
	}
	if score, ok := p.deps.Intel.SocialScore(ctx, symbol); ok {
		in.SocialScore = score
		in.HasSocialScore = true
	}
	return in
}

func (p *Pipeline) riskProfile(ctx context.Context, symbol string) string {
	if p.deps.Intel == nil {
		return ""
	}
	return p.deps.Intel.RiskProfile(ctx, symbol)
}

func (p *Pipeline) arbiterConfig() arbiter.Config {
	c := p.cfg.ArbitrationConfig
	return arbiter.Config{
		Sensitivity:            c.Sensitivity,
		MinConfidenceForAction: c.MinConfidenceForAction,
		DominanceThreshold:     c.DominanceThreshold,
		BiasMode:               c.BiasMode,
		SourceWeights:          c.SourceWeights,
		FactorWeights:          c.FactorWeights,
	}
}

// deliver runs the delivery channels for an already-computed outcome.
// Each channel fails independently; the signal is never unwound.
func (p *Pipeline) deliver(ctx context.Context, outcome *Outcome) {
	signal := outcome.Signal
	report := &outcome.Delivery

	outcome.Expiry = p.deps.Buffer.Add(signal, signal.CreatedAt)
	report.ok(ChannelBuffer)

	p.deps.Bus.PublishSignalGenerated(signal)
	if outcome.Decision.Persist {
		p.deps.Bus.PublishSignalPersisted(signal, outcome.Decision.Reason)
	}
	report.ok(ChannelBroadcast)

	switch {
	case p.deps.Repo == nil || !outcome.Decision.Persist:
		report.skip(ChannelHistory)
	default:
		if err := p.deps.Repo.InsertSignalHistory(ctx, signal, outcome.Decision.Reason); err != nil {
			p.log.Warn("History write failed", "signal_id", signal.ID, "error", err)
			report.fail(ChannelHistory, err)
		} else {
			report.ok(ChannelHistory)
		}
	}

	switch {
	case p.deps.Notifier == nil || !outcome.Decision.Persist || !signal.Actionable():
		report.skip(ChannelNotification)
	default:
		if err := p.deps.Notifier.SendSignal(signal, outcome.Decision.Reason); err != nil {
			p.log.Warn("Notification delivery failed", "signal_id", signal.ID, "error", err)
			report.fail(ChannelNotification, err)
		} else {
			report.ok(ChannelNotification)
		}
	}
}
