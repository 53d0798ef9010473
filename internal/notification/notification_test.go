package notification

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"ultra-signal-engine/config"
	"ultra-signal-engine/internal/arbiter"
)

type fakeNotifier struct {
	name    string
	enabled bool
	sent    []*Notification
	fail    bool
}

func (f *fakeNotifier) Send(n *Notification) error {
	f.sent = append(f.sent, n)
	if f.fail {
		return errors.New("delivery failed")
	}
	return nil
}

func (f *fakeNotifier) Name() string    { return f.name }
func (f *fakeNotifier) IsEnabled() bool { return f.enabled }

func testUltraSignal() *arbiter.UltraSignal {
	return &arbiter.UltraSignal{
		ID:              "sig-1",
		Symbol:          "BTCUSDT",
		Timeframe:       "5m",
		Side:            arbiter.SideBuy,
		FinalConfidence: 74.5,
		RiskLevel:       "MEDIUM",
		Entry:           100,
		StopLoss:        98,
		TakeProfit:      104,
		RRRatio:         2.0,
		DominanceRatio:  0.81,
		SourcesUsed:     []string{"ai", "webhook"},
		Reasoning:       []string{"strong technical alignment"},
		CreatedAt:       time.Unix(1700000000, 0),
	}
}

func TestManagerFansOutToEnabledProviders(t *testing.T) {
	active := &fakeNotifier{name: "active", enabled: true}
	idle := &fakeNotifier{name: "idle", enabled: false}

	m := NewManager(config.NotificationConfig{Enabled: true})
	m.AddNotifier(active)
	m.AddNotifier(idle)

	if err := m.SendSignal(testUltraSignal(), "first_signal"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(active.sent) != 1 {
		t.Errorf("expected 1 delivery to active provider, got %d", len(active.sent))
	}
	if len(idle.sent) != 0 {
		t.Errorf("disabled provider should receive nothing, got %d", len(idle.sent))
	}

	n := active.sent[0]
	if n.Type != NotifySignal || n.Symbol != "BTCUSDT" || n.Side != arbiter.SideBuy {
		t.Errorf("unexpected notification %+v", n)
	}
	if !strings.Contains(n.Message, "Entry: 100.0000") {
		t.Errorf("expected price block in message, got %q", n.Message)
	}
	if n.Extra["change_reason"] != "first_signal" {
		t.Errorf("expected change reason in extras, got %v", n.Extra)
	}
}

func TestManagerDisabledSendsNothing(t *testing.T) {
	provider := &fakeNotifier{name: "p", enabled: true}
	m := NewManager(config.NotificationConfig{Enabled: false})
	m.AddNotifier(provider)

	if err := m.SendSignal(testUltraSignal(), "first_signal"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(provider.sent) != 0 {
		t.Errorf("disabled manager should not deliver, got %d", len(provider.sent))
	}
}

func TestManagerReportsProviderFailure(t *testing.T) {
	failing := &fakeNotifier{name: "bad", enabled: true, fail: true}
	working := &fakeNotifier{name: "good", enabled: true}

	m := NewManager(config.NotificationConfig{Enabled: true})
	m.AddNotifier(failing)
	m.AddNotifier(working)

	if err := m.SendError("pipeline", "analyzer fan-out failed"); err == nil {
		t.Error("expected error from failing provider")
	}
	if len(working.sent) != 1 {
		t.Errorf("failure in one provider must not block the next, got %d", len(working.sent))
	}
}

func TestDiscordNotifierPostsEmbed(t *testing.T) {
	var received map[string]interface{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		json.Unmarshal(body, &received)
		w.WriteHeader(http.StatusNoContent)
	}))
	defer server.Close()

	d := NewDiscordNotifier(config.DiscordConfig{Enabled: true, WebhookURL: server.URL})
	err := d.Send(&Notification{
		Type:      NotifySignal,
		Title:     "Signal: BTCUSDT 5m",
		Message:   "BUY",
		Symbol:    "BTCUSDT",
		Side:      arbiter.SideBuy,
		Timestamp: time.Unix(1700000000, 0),
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	embeds, ok := received["embeds"].([]interface{})
	if !ok || len(embeds) != 1 {
		t.Fatalf("expected one embed, got %v", received)
	}
	embed := embeds[0].(map[string]interface{})
	if embed["title"] != "Signal: BTCUSDT 5m" {
		t.Errorf("unexpected embed title %v", embed["title"])
	}
}

func TestTelegramNotifierDisabledWithoutCredentials(t *testing.T) {
	n := NewTelegramNotifier(config.TelegramConfig{Enabled: true})
	if n.IsEnabled() {
		t.Error("notifier without token and chat id must stay disabled")
	}
}
