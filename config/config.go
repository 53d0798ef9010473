package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"time"
)

type Config struct {
	ServerConfig       ServerConfig       `json:"server"`
	LoggingConfig      LoggingConfig      `json:"logging"`
	DatabaseConfig     DatabaseConfig     `json:"database"`
	RedisConfig        RedisConfig        `json:"redis"`
	FusionConfig       FusionConfig       `json:"fusion"`
	ArbitrationConfig  ArbitrationConfig  `json:"arbitration"`
	LifecycleConfig    LifecycleConfig    `json:"lifecycle"`
	AnalyzerConfig     AnalyzerConfig     `json:"analyzers"`
	IntelConfig        IntelConfig        `json:"intel"`
	IngestConfig       IngestConfig       `json:"ingest"`
	NotificationConfig NotificationConfig `json:"notification"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Port            int    `json:"port"`
	Host            string `json:"host"`
	AllowedOrigins  string `json:"allowed_origins"`
	ReadTimeout     int    `json:"read_timeout"`     // Seconds
	WriteTimeout    int    `json:"write_timeout"`    // Seconds
	ShutdownTimeout int    `json:"shutdown_timeout"` // Seconds
}

type LoggingConfig struct {
	Level      string `json:"level"`       // DEBUG, INFO, WARN, ERROR
	Output     string `json:"output"`      // stdout, stderr, or file path
	JSONFormat bool   `json:"json_format"` // Output as JSON
}

// DatabaseConfig holds PostgreSQL configuration for signal history
type DatabaseConfig struct {
	Enabled  bool   `json:"enabled"`
	Host     string `json:"host"`
	Port     int    `json:"port"`
	User     string `json:"user"`
	Password string `json:"password"`
	Database string `json:"database"`
	SSLMode  string `json:"ssl_mode"`
}

// RedisConfig holds Redis configuration for the intel snapshot cache
type RedisConfig struct {
	Enabled  bool   `json:"enabled"`
	Address  string `json:"address"`
	Password string `json:"password"`
	DB       int    `json:"db"`
	PoolSize int    `json:"pool_size"`
}

// FusionConfig holds AI fusion combiner configuration.
// Weights are partial overrides merged over defaults and renormalized
// before every combine call.
type FusionConfig struct {
	Weights map[string]float64 `json:"weights"` // technical, volume, pattern, wave, sentiment, buy_pressure, sell_pressure
}

// ArbitrationConfig holds signal arbitration configuration
type ArbitrationConfig struct {
	Sensitivity            string             `json:"sensitivity"`               // "low", "default", "high"
	MinConfidenceForAction float64            `json:"min_confidence_for_action"` // 0-100
	DominanceThreshold     float64            `json:"dominance_threshold"`       // 0-1
	BiasMode               string             `json:"bias_mode"`                 // "none", "breakout", "reversal"
	SourceWeights          map[string]float64 `json:"source_weights"`            // per raw-source-type vote weights
	FactorWeights          map[string]float64 `json:"factor_weights"`            // per AI sub-factor contribution weights
}

// LifecycleConfig holds live buffer and change-detection configuration
type LifecycleConfig struct {
	ConfidenceThreshold float64 `json:"confidence_threshold"` // points of confidence delta that count as a change
	PriceThresholdPct   float64 `json:"price_threshold_pct"`  // % entry move that counts as a change
	SweepInterval       int     `json:"sweep_interval"`       // Seconds between eviction sweeps
}

// AnalyzerConfig holds per-adapter tunables
type AnalyzerConfig struct {
	MinCandles        int  `json:"min_candles"`        // Minimum series length for evaluation
	RSIPeriod         int  `json:"rsi_period"`
	ATRPeriod         int  `json:"atr_period"`
	VolumeLookback    int  `json:"volume_lookback"`
	DisableTechnical  bool `json:"disable_technical"`
	DisableVolume     bool `json:"disable_volume"`
	DisablePattern    bool `json:"disable_pattern"`
	DisableWave       bool `json:"disable_wave"`
	DisableSentiment  bool `json:"disable_sentiment"`
}

// IntelConfig holds market-intelligence collaborator configuration
type IntelConfig struct {
	Enabled         bool          `json:"enabled"`
	FearGreedURL    string        `json:"fear_greed_url"`
	FundingURL      string        `json:"funding_url"`
	RefreshInterval time.Duration `json:"refresh_interval"`
	CacheTTL        time.Duration `json:"cache_ttl"`
	RequestTimeout  time.Duration `json:"request_timeout"`
}

// IngestConfig holds raw signal intake configuration
type IngestConfig struct {
	WebhookEnabled bool          `json:"webhook_enabled"`
	MaxSignalAge   time.Duration `json:"max_signal_age"` // raw sources older than this are pruned
}

type NotificationConfig struct {
	Enabled  bool           `json:"enabled"`
	Telegram TelegramConfig `json:"telegram"`
	Discord  DiscordConfig  `json:"discord"`
}

type TelegramConfig struct {
	Enabled  bool   `json:"enabled"`
	BotToken string `json:"bot_token"`
	ChatID   string `json:"chat_id"`
}

type DiscordConfig struct {
	Enabled    bool   `json:"enabled"`
	WebhookURL string `json:"webhook_url"`
}

func Load() (*Config, error) {
	// First try to load base config from file
	cfg, err := loadFromFile("config.json")
	if err != nil {
		// If no config file, start with empty config
		cfg = &Config{}
	}

	// Apply environment variable overrides (these take precedence)
	applyEnvOverrides(cfg)

	return cfg, nil
}

// applyEnvOverrides applies environment variable overrides to the config
func applyEnvOverrides(cfg *Config) {
	// Server config
	cfg.ServerConfig.Port = getEnvIntOrDefault("WEB_PORT", 8080)
	cfg.ServerConfig.Host = getEnvOrDefault("WEB_HOST", "0.0.0.0")
	cfg.ServerConfig.AllowedOrigins = getEnvOrDefault("SERVER_ALLOWED_ORIGINS", "*")
	cfg.ServerConfig.ReadTimeout = getEnvIntOrDefault("SERVER_READ_TIMEOUT", 30)
	cfg.ServerConfig.WriteTimeout = getEnvIntOrDefault("SERVER_WRITE_TIMEOUT", 30)
	cfg.ServerConfig.ShutdownTimeout = getEnvIntOrDefault("SERVER_SHUTDOWN_TIMEOUT", 10)

	// Logging config
	cfg.LoggingConfig.Level = getEnvOrDefault("LOG_LEVEL", "INFO")
	cfg.LoggingConfig.Output = getEnvOrDefault("LOG_OUTPUT", "stdout")
	cfg.LoggingConfig.JSONFormat = getEnvOrDefault("LOG_JSON", "true") == "true"

	// Database config
	cfg.DatabaseConfig.Enabled = getEnvOrDefault("DB_ENABLED", "false") == "true"
	cfg.DatabaseConfig.Host = getEnvOrDefault("DB_HOST", "localhost")
	cfg.DatabaseConfig.Port = getEnvIntOrDefault("DB_PORT", 5432)
	cfg.DatabaseConfig.User = getEnvOrDefault("DB_USER", "postgres")
	cfg.DatabaseConfig.Password = getEnvOrDefault("DB_PASSWORD", cfg.DatabaseConfig.Password)
	cfg.DatabaseConfig.Database = getEnvOrDefault("DB_NAME", "ultra_signals")
	cfg.DatabaseConfig.SSLMode = getEnvOrDefault("DB_SSL_MODE", "disable")

	// Redis config
	cfg.RedisConfig.Enabled = getEnvOrDefault("REDIS_ENABLED", "false") == "true"
	cfg.RedisConfig.Address = getEnvOrDefault("REDIS_ADDRESS", "localhost:6379")
	cfg.RedisConfig.Password = getEnvOrDefault("REDIS_PASSWORD", cfg.RedisConfig.Password)
	cfg.RedisConfig.DB = getEnvIntOrDefault("REDIS_DB", 0)
	cfg.RedisConfig.PoolSize = getEnvIntOrDefault("REDIS_POOL_SIZE", 10)

	// Arbitration config
	cfg.ArbitrationConfig.Sensitivity = getEnvOrDefault("ARBITRATION_SENSITIVITY", nonEmpty(cfg.ArbitrationConfig.Sensitivity, "default"))
	cfg.ArbitrationConfig.MinConfidenceForAction = getEnvFloatOrDefault("ARBITRATION_MIN_CONFIDENCE", defaultFloat(cfg.ArbitrationConfig.MinConfidenceForAction, 55))
	cfg.ArbitrationConfig.DominanceThreshold = getEnvFloatOrDefault("ARBITRATION_DOMINANCE_THRESHOLD", defaultFloat(cfg.ArbitrationConfig.DominanceThreshold, 0.60))
	cfg.ArbitrationConfig.BiasMode = getEnvOrDefault("ARBITRATION_BIAS_MODE", nonEmpty(cfg.ArbitrationConfig.BiasMode, "none"))

	// Lifecycle config
	cfg.LifecycleConfig.ConfidenceThreshold = getEnvFloatOrDefault("LIFECYCLE_CONFIDENCE_THRESHOLD", defaultFloat(cfg.LifecycleConfig.ConfidenceThreshold, 5))
	cfg.LifecycleConfig.PriceThresholdPct = getEnvFloatOrDefault("LIFECYCLE_PRICE_THRESHOLD_PCT", defaultFloat(cfg.LifecycleConfig.PriceThresholdPct, 0.2))
	cfg.LifecycleConfig.SweepInterval = getEnvIntOrDefault("LIFECYCLE_SWEEP_INTERVAL", 5)

	// Analyzer config
	cfg.AnalyzerConfig.MinCandles = getEnvIntOrDefault("ANALYZER_MIN_CANDLES", defaultInt(cfg.AnalyzerConfig.MinCandles, 30))
	cfg.AnalyzerConfig.RSIPeriod = getEnvIntOrDefault("ANALYZER_RSI_PERIOD", defaultInt(cfg.AnalyzerConfig.RSIPeriod, 14))
	cfg.AnalyzerConfig.ATRPeriod = getEnvIntOrDefault("ANALYZER_ATR_PERIOD", defaultInt(cfg.AnalyzerConfig.ATRPeriod, 14))
	cfg.AnalyzerConfig.VolumeLookback = getEnvIntOrDefault("ANALYZER_VOLUME_LOOKBACK", defaultInt(cfg.AnalyzerConfig.VolumeLookback, 20))

	// Intel config
	cfg.IntelConfig.Enabled = getEnvOrDefault("INTEL_ENABLED", "true") == "true"
	cfg.IntelConfig.FearGreedURL = getEnvOrDefault("INTEL_FEAR_GREED_URL", nonEmpty(cfg.IntelConfig.FearGreedURL, "https://api.alternative.me/fng/?limit=1"))
	cfg.IntelConfig.FundingURL = getEnvOrDefault("INTEL_FUNDING_URL", nonEmpty(cfg.IntelConfig.FundingURL, "https://fapi.binance.com/fapi/v1/premiumIndex"))
	cfg.IntelConfig.RefreshInterval = getEnvDurationOrDefault("INTEL_REFRESH_INTERVAL", 15*time.Minute)
	cfg.IntelConfig.CacheTTL = getEnvDurationOrDefault("INTEL_CACHE_TTL", 10*time.Minute)
	cfg.IntelConfig.RequestTimeout = getEnvDurationOrDefault("INTEL_REQUEST_TIMEOUT", 10*time.Second)

	// Ingest config
	cfg.IngestConfig.WebhookEnabled = getEnvOrDefault("INGEST_WEBHOOK_ENABLED", "true") == "true"
	cfg.IngestConfig.MaxSignalAge = getEnvDurationOrDefault("INGEST_MAX_SIGNAL_AGE", 30*time.Minute)

	// Notification config
	cfg.NotificationConfig.Enabled = getEnvOrDefault("NOTIFICATIONS_ENABLED", "false") == "true"
	cfg.NotificationConfig.Telegram.Enabled = getEnvOrDefault("TELEGRAM_ENABLED", "false") == "true"
	cfg.NotificationConfig.Telegram.BotToken = getEnvOrDefault("TELEGRAM_BOT_TOKEN", cfg.NotificationConfig.Telegram.BotToken)
	cfg.NotificationConfig.Telegram.ChatID = getEnvOrDefault("TELEGRAM_CHAT_ID", cfg.NotificationConfig.Telegram.ChatID)
	cfg.NotificationConfig.Discord.Enabled = getEnvOrDefault("DISCORD_ENABLED", "false") == "true"
	cfg.NotificationConfig.Discord.WebhookURL = getEnvOrDefault("DISCORD_WEBHOOK_URL", cfg.NotificationConfig.Discord.WebhookURL)
}

func loadFromFile(filename string) (*Config, error) {
	file, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}

	var config Config
	if err := json.Unmarshal(file, &config); err != nil {
		return nil, fmt.Errorf("error parsing config file: %w", err)
	}

	return &config, nil
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvIntOrDefault(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvFloatOrDefault(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatVal, err := strconv.ParseFloat(value, 64); err == nil {
			return floatVal
		}
	}
	return defaultValue
}

func getEnvDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

func nonEmpty(value, fallback string) string {
	if value != "" {
		return value
	}
	return fallback
}

func defaultFloat(value, fallback float64) float64 {
	if value != 0 {
		return value
	}
	return fallback
}

func defaultInt(value, fallback int) int {
	if value != 0 {
		return value
	}
	return fallback
}

// GenerateSampleConfig creates a sample configuration file
func GenerateSampleConfig(filename string) error {
	config := Config{
		ServerConfig: ServerConfig{
			Port:            8080,
			Host:            "0.0.0.0",
			AllowedOrigins:  "*",
			ReadTimeout:     30,
			WriteTimeout:    30,
			ShutdownTimeout: 10,
		},
		LoggingConfig: LoggingConfig{
			Level:      "INFO",
			Output:     "stdout",
			JSONFormat: true,
		},
		FusionConfig: FusionConfig{
			Weights: map[string]float64{
				"technical": 0.25,
				"volume":    0.15,
				"pattern":   0.20,
				"wave":      0.15,
				"sentiment": 0.10,
			},
		},
		ArbitrationConfig: ArbitrationConfig{
			Sensitivity:            "default",
			MinConfidenceForAction: 55,
			DominanceThreshold:     0.60,
			BiasMode:               "none",
		},
		LifecycleConfig: LifecycleConfig{
			ConfidenceThreshold: 5,
			PriceThresholdPct:   0.2,
			SweepInterval:       5,
		},
	}

	data, err := json.MarshalIndent(config, "", "  ")
	if err != nil {
		return err
	}

	return os.WriteFile(filename, data, 0644)
}
