package pipeline

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ultra-signal-engine/config"
	"ultra-signal-engine/internal/arbiter"
	"ultra-signal-engine/internal/events"
	"ultra-signal-engine/internal/ingest"
	"ultra-signal-engine/internal/lifecycle"
	"ultra-signal-engine/internal/market"
	"ultra-signal-engine/internal/patterns"
)

func testConfig() *config.Config {
	return &config.Config{
		AnalyzerConfig: config.AnalyzerConfig{
			MinCandles:     30,
			VolumeLookback: 20,
		},
		ArbitrationConfig: config.ArbitrationConfig{
			Sensitivity:            "default",
			MinConfidenceForAction: 55,
			DominanceThreshold:     0.60,
			BiasMode:               "none",
		},
		LifecycleConfig: config.LifecycleConfig{
			ConfidenceThreshold: 5,
			PriceThresholdPct:   0.2,
		},
	}
}

func testDeps() Deps {
	return Deps{
		Engine:   market.NewEngine(market.DefaultEngineConfig()),
		Patterns: patterns.NewDetector(0),
		Waves:    patterns.NewWaveDetector(0),
		Book:     ingest.NewBook(30 * time.Minute),
		Buffer:   lifecycle.NewBuffer(zerolog.Nop()),
		Changes:  lifecycle.NewChangeDetector(5, 0.2),
		Bus:      events.NewBus(),
	}
}

// trendingCandles builds a steadily rising series long enough for the
// indicator engine and every adapter
func trendingCandles(n int) []market.Candle {
	candles := make([]market.Candle, n)
	price := 100.0
	for i := range candles {
		open := price
		price += 0.5
		candles[i] = market.Candle{
			OpenTime:  int64(i) * 60_000,
			Open:      open,
			High:      price + 0.2,
			Low:       open - 0.2,
			Close:     price,
			Volume:    1000 + float64(i%7)*50,
			CloseTime: int64(i+1)*60_000 - 1,
		}
	}
	return candles
}

func TestRunProducesSignalAndRegistersBuffer(t *testing.T) {
	deps := testDeps()
	p := New(testConfig(), deps)
	now := time.Unix(1700000000, 0)

	outcome, err := p.Run(context.Background(), "BTCUSDT", "5m", trendingCandles(60), now)
	require.NoError(t, err)
	require.NotNil(t, outcome.Signal)

	assert.Equal(t, "BTCUSDT", outcome.Signal.Symbol)
	assert.Equal(t, "5m", outcome.Signal.Timeframe)
	assert.Equal(t, lifecycle.ReasonFirstSignal, outcome.Decision.Reason)
	assert.True(t, outcome.Decision.Persist)

	// Signal must be live in the buffer with its timeframe TTL
	_, found := deps.Buffer.Get(outcome.Signal.ID)
	assert.True(t, found)
	assert.Equal(t, now.Add(20*time.Minute), outcome.Expiry)

	assert.Contains(t, outcome.Delivery.Succeeded, ChannelBuffer)
	assert.Contains(t, outcome.Delivery.Succeeded, ChannelBroadcast)
	// No repo and no notifier wired
	assert.Contains(t, outcome.Delivery.Skipped, ChannelHistory)
	assert.Contains(t, outcome.Delivery.Skipped, ChannelNotification)
	assert.Empty(t, outcome.Delivery.Failed)
}

func TestRunSecondPassDetectsNoMeaningfulChange(t *testing.T) {
	deps := testDeps()
	p := New(testConfig(), deps)
	now := time.Unix(1700000000, 0)
	candles := trendingCandles(60)

	first, err := p.Run(context.Background(), "BTCUSDT", "5m", candles, now)
	require.NoError(t, err)

	second, err := p.Run(context.Background(), "BTCUSDT", "5m", candles, now.Add(time.Minute))
	require.NoError(t, err)

	assert.Equal(t, first.Signal.Side, second.Signal.Side)
	assert.Equal(t, lifecycle.ReasonNoMeaningfulChange, second.Decision.Reason)
	assert.False(t, second.Decision.Persist)
	assert.Contains(t, second.Delivery.Skipped, ChannelNotification)
}

func TestRunConsumesBookSources(t *testing.T) {
	deps := testDeps()
	p := New(testConfig(), deps)
	now := time.Unix(1700000000, 0)

	deps.Book.Add("BTCUSDT", "5m", arbiter.WebhookSignal{
		Symbol: "BTCUSDT", Timeframe: "5m", Side: arbiter.SideBuy,
		Confidence: 85, Strategy: "breakout", ReceivedAt: now.Add(-time.Minute),
	})

	outcome, err := p.Run(context.Background(), "BTCUSDT", "5m", trendingCandles(60), now)
	require.NoError(t, err)

	assert.Contains(t, outcome.Signal.SourcesUsed, arbiter.SourceWebhook)
	assert.Contains(t, outcome.Signal.SourcesUsed, arbiter.SourceAIAnalyzer)
}

func TestRunDisabledAdaptersStayNeutral(t *testing.T) {
	cfg := testConfig()
	cfg.AnalyzerConfig.DisablePattern = true
	cfg.AnalyzerConfig.DisableWave = true
	cfg.AnalyzerConfig.DisableSentiment = true

	p := New(cfg, testDeps())
	outcome, err := p.Run(context.Background(), "ETHUSDT", "1h", trendingCandles(60), time.Unix(1700000000, 0))
	require.NoError(t, err)

	fused := outcome.Fusion
	assert.InDelta(t, 50, fused.SubScores["pattern"], 0.001)
	assert.InDelta(t, 50, fused.SubScores["wave"], 0.001)
	assert.InDelta(t, 50, fused.SubScores["sentiment"], 0.001)
}

func TestRunRejectsShortSeries(t *testing.T) {
	p := New(testConfig(), testDeps())
	_, err := p.Run(context.Background(), "BTCUSDT", "5m", trendingCandles(10), time.Unix(1700000000, 0))
	require.Error(t, err)
}
