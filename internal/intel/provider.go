// Package intel is the market-intelligence collaborator: fear-greed index,
// funding rates, optional social sentiment and per-asset risk-profile
// overrides. Every reading degrades to its neutral default when the
// upstream is unreachable; nothing here ever fails the pipeline.
package intel

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"ultra-signal-engine/config"
	"ultra-signal-engine/internal/cache"
	"ultra-signal-engine/internal/logging"
)

const (
	keyFearGreed   = "intel:fear_greed"
	keyFundingFmt  = "intel:funding:%s"
	keySocialFmt   = "intel:social:%s"
	keyRiskProfile = "intel:risk_profile:%s"
)

// FearGreedReading is the cached fear-greed observation
type FearGreedReading struct {
	Value     float64   `json:"value"` // 0-100
	Label     string    `json:"label"`
	FetchedAt time.Time `json:"fetched_at"`
}

// FundingReading is the cached per-symbol funding observation
type FundingReading struct {
	Symbol    string    `json:"symbol"`
	Rate      float64   `json:"rate"` // fraction per funding interval
	FetchedAt time.Time `json:"fetched_at"`
}

// fearGreedResponse matches the alternative.me payload
type fearGreedResponse struct {
	Data []struct {
		Value               string `json:"value"`
		ValueClassification string `json:"value_classification"`
	} `json:"data"`
}

// premiumIndexResponse matches the futures premium-index payload
type premiumIndexResponse struct {
	Symbol          string `json:"symbol"`
	LastFundingRate string `json:"lastFundingRate"`
}

// Provider fetches and caches market-intelligence readings. Freshness
// lives entirely in the injected cache store; the provider itself holds
// no mutable state.
type Provider struct {
	cfg        config.IntelConfig
	store      cache.Store
	httpClient *http.Client
	log        *logging.Logger
}

// NewProvider creates a provider backed by the given cache store
func NewProvider(cfg config.IntelConfig, store cache.Store) *Provider {
	timeout := cfg.RequestTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Provider{
		cfg:        cfg,
		store:      store,
		httpClient: &http.Client{Timeout: timeout},
		log:        logging.WithComponent("intel"),
	}
}

// FearGreed returns the current fear-greed index. Cache first, then a
// live fetch; ok is false when neither produced a reading.
func (p *Provider) FearGreed(ctx context.Context) (FearGreedReading, bool) {
	var reading FearGreedReading
	if err := p.store.Get(ctx, keyFearGreed, &reading); err == nil {
		return reading, true
	}

	reading, err := p.fetchFearGreed(ctx)
	if err != nil {
		p.log.Warn("fear-greed fetch failed, degrading to neutral", "error", err)
		return FearGreedReading{}, false
	}

	if err := p.store.Set(ctx, keyFearGreed, reading, p.cacheTTL()); err != nil {
		p.log.Debug("fear-greed cache write failed", "error", err)
	}
	return reading, true
}

// Funding returns the last funding rate for the symbol, ok false when
// unavailable
func (p *Provider) Funding(ctx context.Context, symbol string) (FundingReading, bool) {
	key := fmt.Sprintf(keyFundingFmt, symbol)

	var reading FundingReading
	if err := p.store.Get(ctx, key, &reading); err == nil {
		return reading, true
	}

	reading, err := p.fetchFunding(ctx, symbol)
	if err != nil {
		p.log.Warn("funding fetch failed, degrading", "symbol", symbol, "error", err)
		return FundingReading{}, false
	}

	if err := p.store.Set(ctx, key, reading, p.cacheTTL()); err != nil {
		p.log.Debug("funding cache write failed", "error", err)
	}
	return reading, true
}

// SocialScore returns an externally supplied 0-100 social sentiment score
// for the symbol. There is no fetcher: the score arrives through
// SetSocialScore and is absent otherwise.
func (p *Provider) SocialScore(ctx context.Context, symbol string) (float64, bool) {
	var score float64
	if err := p.store.Get(ctx, fmt.Sprintf(keySocialFmt, symbol), &score); err != nil {
		return 0, false
	}
	return score, true
}

// SetSocialScore stores a social sentiment score for the symbol
func (p *Provider) SetSocialScore(ctx context.Context, symbol string, score float64) error {
	if score < 0 || score > 100 {
		return fmt.Errorf("social score %.1f outside [0,100]", score)
	}
	return p.store.Set(ctx, fmt.Sprintf(keySocialFmt, symbol), score, p.cacheTTL())
}

// RiskProfile returns the per-asset risk-level override, empty when none
// is set
func (p *Provider) RiskProfile(ctx context.Context, symbol string) string {
	var level string
	if err := p.store.Get(ctx, fmt.Sprintf(keyRiskProfile, symbol), &level); err != nil {
		return ""
	}
	return level
}

// SetRiskProfile stores a per-asset risk-level override. An empty level
// clears it.
func (p *Provider) SetRiskProfile(ctx context.Context, symbol, level string) error {
	key := fmt.Sprintf(keyRiskProfile, symbol)
	if level == "" {
		return p.store.Delete(ctx, key)
	}
	switch level {
	case "LOW", "MEDIUM", "HIGH", "EXTREME":
		return p.store.Set(ctx, key, level, 0)
	default:
		return fmt.Errorf("unknown risk level %q", level)
	}
}

// Run refreshes the fear-greed reading on the configured interval until
// the context ends
func (p *Provider) Run(ctx context.Context) {
	if !p.cfg.Enabled {
		return
	}
	interval := p.cfg.RefreshInterval
	if interval <= 0 {
		interval = 15 * time.Minute
	}

	p.refresh(ctx)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.refresh(ctx)
		}
	}
}

func (p *Provider) refresh(ctx context.Context) {
	reading, err := p.fetchFearGreed(ctx)
	if err != nil {
		p.log.Warn("fear-greed refresh failed", "error", err)
		return
	}
	if err := p.store.Set(ctx, keyFearGreed, reading, p.cacheTTL()); err != nil {
		p.log.Debug("fear-greed cache write failed", "error", err)
	}
	p.log.Debug("fear-greed refreshed", "value", reading.Value, "label", reading.Label)
}

func (p *Provider) fetchFearGreed(ctx context.Context) (FearGreedReading, error) {
	url := p.cfg.FearGreedURL
	if url == "" {
		return FearGreedReading{}, errors.New("fear-greed url not configured")
	}

	body, err := p.getBody(ctx, url)
	if err != nil {
		return FearGreedReading{}, err
	}

	var parsed fearGreedResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return FearGreedReading{}, fmt.Errorf("parse fear-greed response: %w", err)
	}
	if len(parsed.Data) == 0 {
		return FearGreedReading{}, errors.New("fear-greed response has no data")
	}

	value, err := strconv.ParseFloat(parsed.Data[0].Value, 64)
	if err != nil {
		return FearGreedReading{}, fmt.Errorf("parse fear-greed value %q: %w", parsed.Data[0].Value, err)
	}

	return FearGreedReading{
		Value:     value,
		Label:     parsed.Data[0].ValueClassification,
		FetchedAt: time.Now(),
	}, nil
}

func (p *Provider) fetchFunding(ctx context.Context, symbol string) (FundingReading, error) {
	if p.cfg.FundingURL == "" {
		return FundingReading{}, errors.New("funding url not configured")
	}

	body, err := p.getBody(ctx, p.cfg.FundingURL+"?symbol="+symbol)
	if err != nil {
		return FundingReading{}, err
	}

	var parsed premiumIndexResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return FundingReading{}, fmt.Errorf("parse premium index response: %w", err)
	}

	rate, err := strconv.ParseFloat(parsed.LastFundingRate, 64)
	if err != nil {
		return FundingReading{}, fmt.Errorf("parse funding rate %q: %w", parsed.LastFundingRate, err)
	}

	return FundingReading{
		Symbol:    symbol,
		Rate:      rate,
		FetchedAt: time.Now(),
	}, nil
}

func (p *Provider) getBody(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch %s: unexpected status %d", url, resp.StatusCode)
	}
	return io.ReadAll(resp.Body)
}

func (p *Provider) cacheTTL() time.Duration {
	if p.cfg.CacheTTL > 0 {
		return p.cfg.CacheTTL
	}
	return 10 * time.Minute
}
