package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"
)

// Config carries everything the process needs: broker endpoint and secrets,
// loop parameters, risk limits, persistence and serving options.
type Config struct {
	App    AppConfig    `toml:"app"`
	Kabus  KabusConfig  `toml:"kabus"`
	Trade  TradeConfig  `toml:"trade"`
	Notify NotifyConfig `toml:"notify"`
}

type AppConfig struct {
	ListenAddr string `toml:"listen_addr"`
	DBPath     string `toml:"db_path"`
	LogPath    string `toml:"log_path"`
	LogLevel   string `toml:"log_level"`
	LogBuffer  int    `toml:"log_buffer"`
}

type KabusConfig struct {
	BaseURL       string `toml:"base_url"`
	APIPassword   string `toml:"api_password"`
	OrderPassword string `toml:"order_password"`
}

type TradeConfig struct {
	Symbol           string  `toml:"symbol"`
	Exchange         int     `toml:"exchange"`
	Quantity         int     `toml:"quantity"`
	SleepInterval    float64 `toml:"sleep_interval"`
	ForceCloseTime   string  `toml:"force_close_time"`
	MaxDailyLossPct  float64 `toml:"max_daily_loss"`
	StopLossPct      float64 `toml:"stop_loss_pct"`
	SnapshotInterval float64 `toml:"snapshot_interval"`
}

type NotifyConfig struct {
	Enabled          bool   `toml:"enabled"`
	TelegramBotToken string `toml:"telegram_bot_token"`
	TelegramChatID   string `toml:"telegram_chat_id"`
}

// Load reads the optional yaml file at path, then overlays TS_* environment
// variables (a backend/.env file is honored first, matching how the service
// has always been deployed). Missing file is not an error; env alone is a
// valid configuration.
func Load(path string) (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetConfigType("yaml")
	if strings.TrimSpace(path) != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			if _, statErr := os.Stat(path); statErr == nil {
				return nil, fmt.Errorf("reading config file failed (%s): %w", path, err)
			}
		}
	}
	bindEnv(v)

	var cfg Config
	if err := v.Unmarshal(&cfg, func(dc *mapstructure.DecoderConfig) {
		dc.TagName = "toml"
		dc.WeaklyTypedInput = true
	}); err != nil {
		return nil, fmt.Errorf("parsing config failed: %w", err)
	}
	cfg.applyDefaults()
	if err := validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func bindEnv(v *viper.Viper) {
	pairs := map[string]string{
		"app.listen_addr":           "TS_LISTEN_ADDR",
		"app.db_path":               "TS_DB_PATH",
		"app.log_path":              "TS_LOG_PATH",
		"app.log_level":             "TS_LOG_LEVEL",
		"kabus.base_url":            "TS_API_BASE_URL",
		"kabus.api_password":        "TS_API_PASSWORD",
		"kabus.order_password":      "TS_ORDER_PASSWORD",
		"trade.symbol":              "TS_SYMBOL",
		"trade.exchange":            "TS_EXCHANGE",
		"trade.quantity":            "TS_QUANTITY",
		"trade.sleep_interval":      "TS_SLEEP_INTERVAL",
		"trade.force_close_time":    "TS_FORCE_CLOSE_TIME",
		"trade.max_daily_loss":      "TS_MAX_DAILY_LOSS",
		"trade.stop_loss_pct":       "TS_STOP_LOSS_PCT",
		"notify.enabled":            "TS_NOTIFY_ENABLED",
		"notify.telegram_bot_token": "TS_TELEGRAM_BOT_TOKEN",
		"notify.telegram_chat_id":   "TS_TELEGRAM_CHAT_ID",
	}
	for key, env := range pairs {
		_ = v.BindEnv(key, env)
	}
}

func (c *Config) applyDefaults() {
	if strings.TrimSpace(c.App.ListenAddr) == "" {
		c.App.ListenAddr = ":8000"
	}
	if strings.TrimSpace(c.App.DBPath) == "" {
		c.App.DBPath = "data/trades.db"
	}
	if strings.TrimSpace(c.App.LogLevel) == "" {
		c.App.LogLevel = "info"
	}
	if c.App.LogBuffer <= 0 {
		c.App.LogBuffer = 1000
	}
	if strings.TrimSpace(c.Kabus.BaseURL) == "" {
		c.Kabus.BaseURL = "http://localhost:18080/kabusapi"
	}
	if strings.TrimSpace(c.Trade.Symbol) == "" {
		c.Trade.Symbol = "1579"
	}
	if c.Trade.Exchange == 0 {
		c.Trade.Exchange = 1
	}
	if c.Trade.Quantity <= 0 {
		c.Trade.Quantity = 100
	}
	if c.Trade.SleepInterval <= 0 {
		c.Trade.SleepInterval = 0.3
	}
	if strings.TrimSpace(c.Trade.ForceCloseTime) == "" {
		c.Trade.ForceCloseTime = "14:55"
	}
	if c.Trade.MaxDailyLossPct == 0 {
		c.Trade.MaxDailyLossPct = 1.0
	}
	if c.Trade.StopLossPct <= 0 {
		c.Trade.StopLossPct = 0.5
	}
	if c.Trade.SnapshotInterval <= 0 {
		c.Trade.SnapshotInterval = 30
	}
}

func validate(c *Config) error {
	if strings.TrimSpace(c.App.DBPath) == "" {
		return fmt.Errorf("app.db_path cannot be empty")
	}
	if c.Trade.SleepInterval <= 0 {
		return fmt.Errorf("trade.sleep_interval must be positive")
	}
	if ct := strings.TrimSpace(c.Trade.ForceCloseTime); ct != "" {
		if _, _, err := ParseHHMM(ct); err != nil {
			return fmt.Errorf("trade.force_close_time: %w", err)
		}
	}
	return nil
}

// ParseHHMM validates a wall-clock "HH:MM" string.
func ParseHHMM(s string) (hour, minute int, err error) {
	parts := strings.SplitN(strings.TrimSpace(s), ":", 2)
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("invalid time %q, want HH:MM", s)
	}
	hour, err = strconv.Atoi(strings.TrimSpace(parts[0]))
	if err != nil {
		return 0, 0, fmt.Errorf("invalid time %q, want HH:MM", s)
	}
	minute, err = strconv.Atoi(strings.TrimSpace(parts[1]))
	if err != nil {
		return 0, 0, fmt.Errorf("invalid time %q, want HH:MM", s)
	}
	if hour < 0 || hour > 23 || minute < 0 || minute > 59 {
		return 0, 0, fmt.Errorf("invalid time %q, out of range", s)
	}
	return hour, minute, nil
}
