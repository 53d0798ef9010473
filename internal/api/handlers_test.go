package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"ultra-signal-engine/config"
	"ultra-signal-engine/internal/events"
	"ultra-signal-engine/internal/ingest"
	"ultra-signal-engine/internal/lifecycle"
	"ultra-signal-engine/internal/market"
	"ultra-signal-engine/internal/patterns"
	"ultra-signal-engine/internal/pipeline"
)

func newTestServer(t *testing.T, webhookEnabled bool) (*Server, pipeline.Deps) {
	t.Helper()

	deps := pipeline.Deps{
		Engine:   market.NewEngine(market.DefaultEngineConfig()),
		Patterns: patterns.NewDetector(0),
		Waves:    patterns.NewWaveDetector(0),
		Book:     ingest.NewBook(30 * time.Minute),
		Buffer:   lifecycle.NewBuffer(zerolog.Nop()),
		Changes:  lifecycle.NewChangeDetector(5, 0.2),
		Bus:      events.NewBus(),
	}

	cfg := &config.Config{
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
	}

	pipe := pipeline.New(cfg, deps)
	server := NewServer(config.ServerConfig{
		Host:         "127.0.0.1",
		ReadTimeout:  5,
		WriteTimeout: 5,
	}, webhookEnabled, Deps{
		Pipeline: pipe,
		Book:     deps.Book,
		Buffer:   deps.Buffer,
		Bus:      deps.Bus,
	})
	return server, deps
}

func doRequest(server *Server, method, path string, body []byte) *httptest.ResponseRecorder {
	var reader *bytes.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	server.Router().ServeHTTP(w, req)
	return w
}

func testCandlesJSON(n int) []byte {
	type candle struct {
		OpenTime  int64   `json:"open_time"`
		Open      float64 `json:"open"`
		High      float64 `json:"high"`
		Low       float64 `json:"low"`
		Close     float64 `json:"close"`
		Volume    float64 `json:"volume"`
		CloseTime int64   `json:"close_time"`
	}
	candles := make([]candle, n)
	price := 100.0
	for i := range candles {
		open := price
		price += 0.5
		candles[i] = candle{
			OpenTime:  int64(i) * 60_000,
			Open:      open,
			High:      price + 0.2,
			Low:       open - 0.2,
			Close:     price,
			Volume:    1000,
			CloseTime: int64(i+1)*60_000 - 1,
		}
	}
	payload := map[string]interface{}{
		"symbol":    "btcusdt",
		"timeframe": "5M",
		"candles":   candles,
	}
	data, _ := json.Marshal(payload)
	return data
}

func TestHandleIngestWebhook(t *testing.T) {
	server, deps := newTestServer(t, true)

	body := []byte(`{"symbol":"btcusdt","timeframe":"5m","side":"long","confidence":80}`)
	w := doRequest(server, http.MethodPost, "/api/v1/signals/webhook", body)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}

	if got := len(deps.Book.Sources("BTCUSDT", "5m", time.Now())); got != 1 {
		t.Errorf("expected 1 booked source, got %d", got)
	}
}

func TestHandleIngestWebhookRejectsBadPayload(t *testing.T) {
	server, _ := newTestServer(t, true)

	w := doRequest(server, http.MethodPost, "/api/v1/signals/webhook", []byte(`{"side":"hold"}`))
	if w.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", w.Code)
	}
}

func TestHandleIngestWebhookDisabled(t *testing.T) {
	server, _ := newTestServer(t, false)

	body := []byte(`{"symbol":"BTCUSDT","timeframe":"5m","side":"buy"}`)
	w := doRequest(server, http.MethodPost, "/api/v1/signals/webhook", body)
	if w.Code != http.StatusForbidden {
		t.Errorf("expected 403, got %d", w.Code)
	}
}

func TestHandleAnalyzeAndLiveSignalFlow(t *testing.T) {
	server, _ := newTestServer(t, true)

	w := doRequest(server, http.MethodPost, "/api/v1/analyze", testCandlesJSON(60))
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}

	var resp struct {
		Data struct {
			Signal struct {
				ID        string `json:"id"`
				Symbol    string `json:"symbol"`
				Timeframe string `json:"timeframe"`
			} `json:"signal"`
		} `json:"data"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp.Data.Signal.Symbol != "BTCUSDT" || resp.Data.Signal.Timeframe != "5m" {
		t.Errorf("symbol/timeframe not normalized: %+v", resp.Data.Signal)
	}

	// Signal must be retrievable from the live buffer
	w = doRequest(server, http.MethodGet, "/api/v1/signals/"+resp.Data.Signal.ID, nil)
	if w.Code != http.StatusOK {
		t.Errorf("expected live signal lookup 200, got %d", w.Code)
	}

	w = doRequest(server, http.MethodGet, "/api/v1/signals?symbol=BTCUSDT", nil)
	if w.Code != http.StatusOK {
		t.Errorf("expected list 200, got %d", w.Code)
	}

	// Remove it, then lookups miss
	w = doRequest(server, http.MethodDelete, "/api/v1/signals/"+resp.Data.Signal.ID, nil)
	if w.Code != http.StatusOK {
		t.Errorf("expected remove 200, got %d", w.Code)
	}
	w = doRequest(server, http.MethodGet, fmt.Sprintf("/api/v1/signals/%s", resp.Data.Signal.ID), nil)
	if w.Code != http.StatusNotFound {
		t.Errorf("expected 404 after removal, got %d", w.Code)
	}
}

func TestHandleAnalyzeRejectsShortSeries(t *testing.T) {
	server, _ := newTestServer(t, true)

	payload := map[string]interface{}{
		"symbol":    "BTCUSDT",
		"timeframe": "5m",
		"candles": []map[string]float64{
			{"open": 100, "high": 101, "low": 99, "close": 100.5, "volume": 10},
		},
	}
	data, _ := json.Marshal(payload)

	w := doRequest(server, http.MethodPost, "/api/v1/analyze", data)
	if w.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for short series, got %d", w.Code)
	}
}

func TestHandleHealthWithoutDatabase(t *testing.T) {
	server, _ := newTestServer(t, true)

	w := doRequest(server, http.MethodGet, "/health", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if !bytes.Contains(w.Body.Bytes(), []byte(`"status":"healthy"`)) {
		t.Errorf("unexpected health body %s", w.Body.String())
	}
}

func TestHandleHistoryDisabled(t *testing.T) {
	server, _ := newTestServer(t, true)

	w := doRequest(server, http.MethodGet, "/api/v1/history", nil)
	if w.Code != http.StatusServiceUnavailable {
		t.Errorf("expected 503 without a database, got %d", w.Code)
	}
}

func TestHandleBufferStats(t *testing.T) {
	server, _ := newTestServer(t, true)

	doRequest(server, http.MethodPost, "/api/v1/analyze", testCandlesJSON(60))

	w := doRequest(server, http.MethodGet, "/api/v1/signals/stats", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if !bytes.Contains(w.Body.Bytes(), []byte(`"total":1`)) {
		t.Errorf("expected one live signal in stats, got %s", w.Body.String())
	}
}
