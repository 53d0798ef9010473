package notification

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"ultra-signal-engine/config"
	"ultra-signal-engine/internal/arbiter"
	"ultra-signal-engine/internal/logging"
)

// NotificationType represents the type of notification
type NotificationType string

const (
	NotifySignal NotificationType = "signal"
	NotifyExpiry NotificationType = "expiry"
	NotifyError  NotificationType = "error"
	NotifyInfo   NotificationType = "info"
)

// Notification represents a notification message
type Notification struct {
	Type       NotificationType
	Title      string
	Message    string
	Symbol     string
	Side       string
	Confidence float64
	Timestamp  time.Time
	Extra      map[string]interface{}
}

// Notifier interface for different notification providers
type Notifier interface {
	Send(notification *Notification) error
	Name() string
	IsEnabled() bool
}

// Manager fans a notification out to every enabled provider. Delivery is
// fire-and-forget from the pipeline's point of view; a failing provider
// never blocks signal generation.
type Manager struct {
	notifiers []Notifier
	enabled   bool
	log       *logging.Logger
}

// NewManager creates a notification manager from config, wiring up the
// providers that are enabled
func NewManager(cfg config.NotificationConfig) *Manager {
	m := &Manager{
		notifiers: make([]Notifier, 0),
		enabled:   cfg.Enabled,
		log:       logging.WithComponent("notification"),
	}
	if cfg.Telegram.Enabled {
		m.AddNotifier(NewTelegramNotifier(cfg.Telegram))
	}
	if cfg.Discord.Enabled {
		m.AddNotifier(NewDiscordNotifier(cfg.Discord))
	}
	return m
}

// AddNotifier adds a notification provider
func (m *Manager) AddNotifier(n Notifier) {
	m.notifiers = append(m.notifiers, n)
}

// Send sends a notification to all enabled providers
func (m *Manager) Send(notification *Notification) error {
	if !m.enabled {
		return nil
	}

	var lastErr error
	for _, n := range m.notifiers {
		if n.IsEnabled() {
			if err := n.Send(notification); err != nil {
				m.log.Warn("Notification delivery failed", "provider", n.Name(), "error", err)
				lastErr = err
			}
		}
	}
	return lastErr
}

// SendSignal sends a fused signal notification
func (m *Manager) SendSignal(signal *arbiter.UltraSignal, changeReason string) error {
	emoji := "🟢"
	if signal.Side == arbiter.SideSell {
		emoji = "🔴"
	} else if signal.Side == arbiter.SideWait {
		emoji = "⚪"
	}

	var body strings.Builder
	fmt.Fprintf(&body, "%s %s %s | confidence %.1f | risk %s",
		signal.Side, signal.Symbol, signal.Timeframe, signal.FinalConfidence, signal.RiskLevel)
	if signal.Entry > 0 {
		fmt.Fprintf(&body, "\nEntry: %.4f | SL: %.4f | TP: %.4f | RR: %.2f",
			signal.Entry, signal.StopLoss, signal.TakeProfit, signal.RRRatio)
	}
	if len(signal.Reasoning) > 0 {
		fmt.Fprintf(&body, "\n%s", strings.Join(signal.Reasoning, "\n"))
	}

	return m.Send(&Notification{
		Type:       NotifySignal,
		Title:      fmt.Sprintf("%s Signal: %s %s", emoji, signal.Symbol, signal.Timeframe),
		Message:    body.String(),
		Symbol:     signal.Symbol,
		Side:       signal.Side,
		Confidence: signal.FinalConfidence,
		Timestamp:  signal.CreatedAt,
		Extra: map[string]interface{}{
			"change_reason":   changeReason,
			"dominance_ratio": signal.DominanceRatio,
			"sources_used":    signal.SourcesUsed,
		},
	})
}

// SendExpiry sends a signal expiry notification
func (m *Manager) SendExpiry(signal *arbiter.UltraSignal) error {
	return m.Send(&Notification{
		Type:       NotifyExpiry,
		Title:      fmt.Sprintf("⏱ Signal Expired: %s %s", signal.Symbol, signal.Timeframe),
		Message:    fmt.Sprintf("%s %s signal (confidence %.1f) aged out of the live buffer", signal.Side, signal.Symbol, signal.FinalConfidence),
		Symbol:     signal.Symbol,
		Side:       signal.Side,
		Confidence: signal.FinalConfidence,
		Timestamp:  time.Now(),
	})
}

// SendError sends an error notification
func (m *Manager) SendError(title, message string) error {
	return m.Send(&Notification{
		Type:      NotifyError,
		Title:     fmt.Sprintf("⚠️ %s", title),
		Message:   message,
		Timestamp: time.Now(),
	})
}

// =============================================================================
// TELEGRAM NOTIFIER
// =============================================================================

// TelegramNotifier sends notifications via Telegram
type TelegramNotifier struct {
	botToken string
	chatID   string
	enabled  bool
	apiBase  string
	client   *http.Client
}

// NewTelegramNotifier creates a new Telegram notifier
func NewTelegramNotifier(cfg config.TelegramConfig) *TelegramNotifier {
	return &TelegramNotifier{
		botToken: cfg.BotToken,
		chatID:   cfg.ChatID,
		enabled:  cfg.Enabled && cfg.BotToken != "" && cfg.ChatID != "",
		apiBase:  "https://api.telegram.org",
		client:   &http.Client{Timeout: 10 * time.Second},
	}
}

func (t *TelegramNotifier) Name() string {
	return "telegram"
}

func (t *TelegramNotifier) IsEnabled() bool {
	return t.enabled
}

func (t *TelegramNotifier) Send(notification *Notification) error {
	if !t.enabled {
		return nil
	}

	message := fmt.Sprintf("*%s*\n\n%s", notification.Title, notification.Message)

	payload := map[string]interface{}{
		"chat_id":    t.chatID,
		"text":       message,
		"parse_mode": "Markdown",
	}

	jsonData, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal telegram payload: %w", err)
	}

	url := fmt.Sprintf("%s/bot%s/sendMessage", t.apiBase, t.botToken)
	resp, err := t.client.Post(url, "application/json", bytes.NewBuffer(jsonData))
	if err != nil {
		return fmt.Errorf("failed to send telegram message: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("telegram API returned status %d", resp.StatusCode)
	}

	return nil
}

// =============================================================================
// DISCORD NOTIFIER
// =============================================================================

// DiscordNotifier sends notifications via Discord webhook
type DiscordNotifier struct {
	webhookURL string
	enabled    bool
	client     *http.Client
}

// NewDiscordNotifier creates a new Discord notifier
func NewDiscordNotifier(cfg config.DiscordConfig) *DiscordNotifier {
	return &DiscordNotifier{
		webhookURL: cfg.WebhookURL,
		enabled:    cfg.Enabled && cfg.WebhookURL != "",
		client:     &http.Client{Timeout: 10 * time.Second},
	}
}

func (d *DiscordNotifier) Name() string {
	return "discord"
}

func (d *DiscordNotifier) IsEnabled() bool {
	return d.enabled
}

func (d *DiscordNotifier) Send(notification *Notification) error {
	if !d.enabled {
		return nil
	}

	color := 0x00FF00 // Green
	switch {
	case notification.Type == NotifyError:
		color = 0xFF0000 // Red
	case notification.Side == arbiter.SideSell:
		color = 0xFF4500 // Orange-red
	case notification.Type == NotifyExpiry:
		color = 0x808080 // Gray
	}

	embed := map[string]interface{}{
		"title":       notification.Title,
		"description": notification.Message,
		"color":       color,
		"timestamp":   notification.Timestamp.Format(time.RFC3339),
	}

	if notification.Symbol != "" {
		fields := []map[string]interface{}{
			{"name": "Symbol", "value": notification.Symbol, "inline": true},
		}
		if notification.Side != "" {
			fields = append(fields, map[string]interface{}{
				"name": "Side", "value": notification.Side, "inline": true,
			})
		}
		if notification.Confidence > 0 {
			fields = append(fields, map[string]interface{}{
				"name": "Confidence", "value": fmt.Sprintf("%.1f", notification.Confidence), "inline": true,
			})
		}
		embed["fields"] = fields
	}

	payload := map[string]interface{}{
		"embeds": []map[string]interface{}{embed},
	}

	jsonData, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal discord payload: %w", err)
	}

	resp, err := d.client.Post(d.webhookURL, "application/json", bytes.NewBuffer(jsonData))
	if err != nil {
		return fmt.Errorf("failed to send discord message: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusNoContent {
		return fmt.Errorf("discord API returned status %d", resp.StatusCode)
	}

	return nil
}
