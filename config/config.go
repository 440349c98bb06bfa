// Package config loads the streamer configuration: an optional YAML file
// followed by environment variable overrides.
package config

import (
	"errors"
	"fmt"
	"log"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
	"gopkg.in/yaml.v3"

	"tickerwatch/internal/model"
	"tickerwatch/internal/signal"
)

// Default stream endpoints. Toggling between them is exposed by the API.
const (
	DefaultStreamURL = "wss://streamer.finance.yahoo.com/"
	VersionedURL     = "wss://streamer.finance.yahoo.com/?version=2"
)

// History provider names.
const (
	ProviderYahoo  = "yahoo"
	ProviderAlpaca = "alpaca"
	ProviderNone   = "none"
)

// Config holds all application configuration.
type Config struct {
	LogLevel string `yaml:"log_level"`

	Stream struct {
		URL            string        `yaml:"url"`
		Symbols        []string      `yaml:"symbols"`
		ReconnectDelay time.Duration `yaml:"reconnect_delay"`
		DialTimeout    time.Duration `yaml:"dial_timeout"`
		FrameLog       int           `yaml:"frame_log"`
		ChannelBuffer  int           `yaml:"channel_buffer"`
	} `yaml:"stream"`

	Redis struct {
		Addr     string        `yaml:"addr"` // empty disables the snapshot store
		Password string        `yaml:"password"`
		DB       int           `yaml:"db"`
		TTL      time.Duration `yaml:"ttl"`
	} `yaml:"redis"`

	History struct {
		Provider     string        `yaml:"provider"`
		Days         int           `yaml:"days"`
		Timeout      time.Duration `yaml:"timeout"`
		YahooBaseURL string        `yaml:"yahoo_base_url"`
	} `yaml:"history"`

	Alpaca struct {
		APIKey    string `yaml:"api_key"`
		APISecret string `yaml:"api_secret"`
	} `yaml:"alpaca"`

	Notify struct {
		WebhookURL string `yaml:"webhook_url"`
		Telegram   struct {
			BotToken string `yaml:"bot_token"`
			ChatID   string `yaml:"chat_id"`
		} `yaml:"telegram"`
	} `yaml:"notify"`

	Schedule struct {
		AnalysisCron string `yaml:"analysis_cron"` // empty disables the scheduler
	} `yaml:"schedule"`

	Criteria model.AlertCriteria `yaml:"criteria"`

	MetricsAddr string `yaml:"metrics_addr"`
	APIAddr     string `yaml:"api_addr"`
}

// Default returns the configuration used when nothing is overridden.
func Default() *Config {
	cfg := &Config{LogLevel: "info"}
	cfg.Stream.URL = DefaultStreamURL
	cfg.Stream.Symbols = []string{"AAPL", "MSFT", "GOOGL", "AMZN", "TSLA"}
	cfg.Stream.ReconnectDelay = 5 * time.Second
	cfg.Stream.DialTimeout = 10 * time.Second
	cfg.Stream.FrameLog = 100
	cfg.Stream.ChannelBuffer = 256
	cfg.Redis.TTL = 30 * time.Minute
	cfg.History.Provider = ProviderYahoo
	cfg.History.Days = 60
	cfg.History.Timeout = 10 * time.Second
	cfg.History.YahooBaseURL = "https://query1.finance.yahoo.com"
	cfg.Schedule.AnalysisCron = "0 */15 * * * *"
	cfg.Criteria = signal.DefaultCriteria()
	cfg.MetricsAddr = ":9090"
	cfg.APIAddr = ":8080"
	return cfg
}

// Load reads config from a YAML file over the defaults, then applies
// environment variable overrides. A missing file is not an error.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil && !os.IsNotExist(err) {
			return nil, fmt.Errorf("read config: %w", err)
		}
		if len(data) > 0 {
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("parse config: %w", err)
			}
		}
	}

	cfg.applyEnv()
	return cfg, nil
}

func (c *Config) applyEnv() {
	c.LogLevel = getEnv("LOG_LEVEL", c.LogLevel)

	c.Stream.URL = getEnv("STREAM_URL", c.Stream.URL)
	if v := os.Getenv("STREAM_SYMBOLS"); v != "" {
		c.Stream.Symbols = ParseSymbols(v)
	}
	c.Stream.ReconnectDelay = getDuration("RECONNECT_DELAY", c.Stream.ReconnectDelay)

	c.Redis.Addr = getEnv("REDIS_ADDR", c.Redis.Addr)
	c.Redis.Password = getEnv("REDIS_PASSWORD", c.Redis.Password)

	c.History.Provider = getEnv("HISTORY_PROVIDER", c.History.Provider)
	c.History.YahooBaseURL = getEnv("YAHOO_BASE_URL", c.History.YahooBaseURL)
	if v := os.Getenv("HISTORY_DAYS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.History.Days = n
		} else {
			log.Printf("[config] skipping invalid HISTORY_DAYS value: %q", v)
		}
	}

	c.Alpaca.APIKey = getEnv("APCA_API_KEY_ID", c.Alpaca.APIKey)
	c.Alpaca.APISecret = getEnv("APCA_API_SECRET_KEY", c.Alpaca.APISecret)

	c.Notify.WebhookURL = getEnv("WEBHOOK_URL", c.Notify.WebhookURL)
	c.Notify.Telegram.BotToken = getEnv("TELEGRAM_BOT_TOKEN", c.Notify.Telegram.BotToken)
	c.Notify.Telegram.ChatID = getEnv("TELEGRAM_CHAT_ID", c.Notify.Telegram.ChatID)

	c.Schedule.AnalysisCron = getEnv("ANALYSIS_CRON", c.Schedule.AnalysisCron)

	c.MetricsAddr = getEnv("METRICS_ADDR", c.MetricsAddr)
	c.APIAddr = getEnv("API_ADDR", c.APIAddr)
}

// Validate checks that the configuration is usable and reports every problem
// found.
func (c *Config) Validate() error {
	var errs []error

	if c.Stream.URL != "" {
		u, err := url.Parse(c.Stream.URL)
		if err != nil || (u.Scheme != "ws" && u.Scheme != "wss") {
			errs = append(errs, fmt.Errorf("stream.url must be a ws:// or wss:// URL, got %q", c.Stream.URL))
		}
	}
	if c.Stream.ReconnectDelay <= 0 {
		errs = append(errs, errors.New("stream.reconnect_delay must be positive"))
	}
	if c.Stream.FrameLog <= 0 {
		errs = append(errs, errors.New("stream.frame_log must be positive"))
	}

	switch c.History.Provider {
	case ProviderYahoo, ProviderNone:
	case ProviderAlpaca:
		if c.Alpaca.APIKey == "" || c.Alpaca.APISecret == "" {
			errs = append(errs, errors.New("alpaca.api_key and alpaca.api_secret are required for the alpaca provider"))
		}
	default:
		errs = append(errs, fmt.Errorf("history.provider must be yahoo, alpaca or none, got %q", c.History.Provider))
	}
	if c.History.Days <= 0 {
		errs = append(errs, errors.New("history.days must be positive"))
	}

	if (c.Notify.Telegram.BotToken == "") != (c.Notify.Telegram.ChatID == "") {
		errs = append(errs, errors.New("notify.telegram needs both bot_token and chat_id"))
	}

	if c.Schedule.AnalysisCron != "" {
		if _, err := CronParser.Parse(c.Schedule.AnalysisCron); err != nil {
			errs = append(errs, fmt.Errorf("schedule.analysis_cron: %w", err))
		}
	}

	return errors.Join(errs...)
}

// CronParser parses the six-field (seconds first) cron expressions used by
// the scheduler.
var CronParser = cron.NewParser(
	cron.Second | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor,
)

// ParseSymbols splits a comma-separated list, trimming and upper-casing each
// symbol and dropping empties.
func ParseSymbols(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.ToUpper(strings.TrimSpace(p))
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

func getEnv(key, fallback string) string {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	return v
}

func getDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		log.Printf("[config] skipping invalid %s value: %q", key, v)
		return fallback
	}
	return d
}
