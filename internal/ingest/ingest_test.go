package ingest

import (
	"testing"
	"time"

	"ultra-signal-engine/internal/arbiter"
)

func TestParseWebhookNormalizes(t *testing.T) {
	now := time.Unix(1700000000, 0)
	body := []byte(`{"symbol":"btcusdt","timeframe":"5M","side":"long","confidence":72,"entry":100,"stop_loss":98,"take_profit":104,"strategy":"breakout-v2"}`)

	signal, err := ParseWebhook(body, now)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if signal.Symbol != "BTCUSDT" {
		t.Errorf("symbol not upcased: %q", signal.Symbol)
	}
	if signal.Timeframe != "5m" {
		t.Errorf("timeframe not lowercased: %q", signal.Timeframe)
	}
	if signal.Side != arbiter.SideBuy {
		t.Errorf("long not normalized to BUY: %q", signal.Side)
	}
	if signal.ReceivedAt != now {
		t.Errorf("unexpected receive time %v", signal.ReceivedAt)
	}

	triplet, complete := signal.Prices()
	if !complete {
		t.Error("expected complete price triplet")
	}
	if triplet.Entry != 100 || triplet.StopLoss != 98 || triplet.TakeProfit != 104 {
		t.Errorf("unexpected triplet %+v", triplet)
	}
}

func TestParseWebhookRejectsBadInput(t *testing.T) {
	now := time.Unix(1700000000, 0)
	cases := []string{
		`not json`,
		`{"timeframe":"5m","side":"buy"}`,
		`{"symbol":"BTCUSDT","side":"buy"}`,
		`{"symbol":"BTCUSDT","timeframe":"5m","side":"hold"}`,
		`{"symbol":"BTCUSDT","timeframe":"5m","side":"buy","confidence":140}`,
	}
	for _, body := range cases {
		if _, err := ParseWebhook([]byte(body), now); err == nil {
			t.Errorf("expected error for %s", body)
		}
	}
}

func TestParseManualShortSide(t *testing.T) {
	now := time.Unix(1700000000, 0)
	body := []byte(`{"symbol":"ETHUSDT","timeframe":"1h","side":"short","confidence":65,"note":"resistance rejection","author":"ops"}`)

	signal, err := ParseManual(body, now)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if signal.Side != arbiter.SideSell {
		t.Errorf("short not normalized to SELL: %q", signal.Side)
	}
	if _, complete := signal.Prices(); complete {
		t.Error("expected incomplete triplet when no prices given")
	}
}

func TestLegacyFromScore(t *testing.T) {
	now := time.Unix(1700000000, 0)

	buy, ok := LegacyFromScore("btcusdt", "1H", 75, "v1", now)
	if !ok {
		t.Fatal("expected a signal for score 75")
	}
	if buy.Side != arbiter.SideBuy || buy.Score != 75 {
		t.Errorf("unexpected buy signal %+v", buy)
	}

	sell, ok := LegacyFromScore("BTCUSDT", "1h", 25, "v1", now)
	if !ok {
		t.Fatal("expected a signal for score 25")
	}
	if sell.Side != arbiter.SideSell || sell.Score != 75 {
		t.Errorf("unexpected sell signal %+v", sell)
	}

	if _, ok := LegacyFromScore("BTCUSDT", "1h", 50, "v1", now); ok {
		t.Error("no-trade band score should produce nothing")
	}
}

func TestBookPrunesStaleSources(t *testing.T) {
	book := NewBook(30 * time.Minute)
	now := time.Unix(1700000000, 0)

	book.Add("BTCUSDT", "5m", arbiter.WebhookSignal{
		Symbol: "BTCUSDT", Timeframe: "5m", Side: arbiter.SideBuy,
		Confidence: 70, ReceivedAt: now.Add(-40 * time.Minute),
	})
	book.Add("BTCUSDT", "5m", arbiter.WebhookSignal{
		Symbol: "BTCUSDT", Timeframe: "5m", Side: arbiter.SideBuy,
		Confidence: 80, ReceivedAt: now.Add(-5 * time.Minute),
	})

	fresh := book.Sources("BTCUSDT", "5m", now)
	if len(fresh) != 1 {
		t.Fatalf("expected 1 fresh source, got %d", len(fresh))
	}
	if fresh[0].Vote().Confidence != 80 {
		t.Errorf("wrong source survived: %+v", fresh[0])
	}
	if book.Len() != 1 {
		t.Errorf("expected stale source pruned from the book, got %d", book.Len())
	}
}

func TestBookKeysIndependent(t *testing.T) {
	book := NewBook(30 * time.Minute)
	now := time.Unix(1700000000, 0)

	book.Add("BTCUSDT", "5m", arbiter.WebhookSignal{Side: arbiter.SideBuy, ReceivedAt: now})
	book.Add("BTCUSDT", "1h", arbiter.WebhookSignal{Side: arbiter.SideSell, ReceivedAt: now})

	if len(book.Sources("BTCUSDT", "5m", now)) != 1 {
		t.Error("expected one source for 5m")
	}

	book.Clear("BTCUSDT", "5m")
	if len(book.Sources("BTCUSDT", "5m", now)) != 0 {
		t.Error("expected 5m cleared")
	}
	if len(book.Sources("BTCUSDT", "1h", now)) != 1 {
		t.Error("expected 1h untouched")
	}
}
