package config

import (
	"bytes"
	"fmt"
	"io"
	"net/url"
	"os"
	"strings"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Symbol   string         `yaml:"symbol"`
	BaseURL  string         `yaml:"base_url"`
	Grid     GridConfig     `yaml:"grid"`
	State    StateConfig    `yaml:"state"`
	HTTP     HTTPConfig     `yaml:"http"`
	Metrics  MetricsConfig  `yaml:"metrics"`
	Telegram TelegramConfig `yaml:"telegram"`
}

type GridConfig struct {
	Size            Decimal `yaml:"size"`
	USDPositionSize Decimal `yaml:"usd_position_size"`
	PollIntervalSec int64   `yaml:"poll_interval_sec"`
	WindowUSD       Decimal `yaml:"window_usd"`
}

type StateConfig struct {
	Dir string `yaml:"dir"`
}

type HTTPConfig struct {
	TimeoutSec     int64 `yaml:"timeout_sec"`
	RetryAttempts  int   `yaml:"retry_attempts"`
	RetryBackoffMs int64 `yaml:"retry_backoff_ms"`
}

type MetricsConfig struct {
	Addr string `yaml:"addr"`
}

type TelegramConfig struct {
	Enabled    bool   `yaml:"enabled"`
	BotToken   string `yaml:"bot_token"`
	ChatID     string `yaml:"chat_id"`
	APIBaseURL string `yaml:"api_base_url"`
	TimeoutSec int64  `yaml:"timeout_sec"`
}

// Load reads an optional YAML config file. An empty path yields the defaults.
// Secrets never live in the file; see LoadCredentials.
func Load(path string) (Config, error) {
	var cfg Config
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, err
		}
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		if err := dec.Decode(&cfg); err != nil {
			return Config{}, err
		}
		if err := dec.Decode(&struct{}{}); err != io.EOF {
			if err == nil {
				return Config{}, fmt.Errorf("config must contain a single YAML document")
			}
			return Config{}, err
		}
	}
	cfg.normalize()
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) normalize() {
	c.Symbol = strings.ToUpper(strings.TrimSpace(c.Symbol))
	c.BaseURL = strings.TrimRight(strings.TrimSpace(c.BaseURL), "/")
	c.State.Dir = strings.TrimSpace(c.State.Dir)
	c.Metrics.Addr = strings.TrimSpace(c.Metrics.Addr)
	c.Telegram.BotToken = strings.TrimSpace(c.Telegram.BotToken)
	c.Telegram.ChatID = strings.TrimSpace(c.Telegram.ChatID)
	c.Telegram.APIBaseURL = strings.TrimSpace(c.Telegram.APIBaseURL)
}

func (c *Config) applyDefaults() {
	if c.Symbol == "" {
		c.Symbol = "BTC-USD"
	}
	if c.BaseURL == "" {
		c.BaseURL = "https://trading.robinhood.com"
	}
	if c.Grid.WindowUSD.Cmp(decimal.Zero) == 0 {
		c.Grid.WindowUSD = Decimal{decimal.NewFromInt(1500)}
	}
	if c.Grid.PollIntervalSec == 0 {
		c.Grid.PollIntervalSec = 60
	}
	if c.State.Dir == "" {
		c.State.Dir = "state"
	}
	if c.HTTP.TimeoutSec == 0 {
		c.HTTP.TimeoutSec = 10
	}
	if c.HTTP.RetryAttempts == 0 {
		c.HTTP.RetryAttempts = 3
	}
	if c.HTTP.RetryBackoffMs == 0 {
		c.HTTP.RetryBackoffMs = 500
	}
	if c.Telegram.APIBaseURL == "" {
		c.Telegram.APIBaseURL = "https://api.telegram.org"
	}
	if c.Telegram.TimeoutSec == 0 {
		c.Telegram.TimeoutSec = 10
	}
}

func (c Config) Validate() error {
	if c.Symbol == "" {
		return fmt.Errorf("symbol is required")
	}
	if !isValidSymbol(c.Symbol) {
		return fmt.Errorf("symbol must look like BTC-USD")
	}
	if err := validateURL(c.BaseURL, "http", "https"); err != nil {
		return fmt.Errorf("base_url %v", err)
	}
	if c.Grid.WindowUSD.Cmp(decimal.Zero) <= 0 {
		return fmt.Errorf("grid window_usd must be > 0")
	}
	if c.Grid.PollIntervalSec < 1 {
		return fmt.Errorf("grid poll_interval_sec must be >= 1")
	}
	if c.HTTP.TimeoutSec < 1 || c.HTTP.TimeoutSec > 120 {
		return fmt.Errorf("http timeout_sec must be between 1 and 120")
	}
	if c.HTTP.RetryAttempts < 1 || c.HTTP.RetryAttempts > 10 {
		return fmt.Errorf("http retry_attempts must be between 1 and 10")
	}
	if c.HTTP.RetryBackoffMs < 1 || c.HTTP.RetryBackoffMs > 60000 {
		return fmt.Errorf("http retry_backoff_ms must be between 1 and 60000")
	}
	if c.Telegram.Enabled {
		if c.Telegram.BotToken == "" {
			return fmt.Errorf("telegram bot_token is required when telegram enabled")
		}
		if c.Telegram.ChatID == "" {
			return fmt.Errorf("telegram chat_id is required when telegram enabled")
		}
		if c.Telegram.TimeoutSec < 1 || c.Telegram.TimeoutSec > 120 {
			return fmt.Errorf("telegram timeout_sec must be between 1 and 120")
		}
		if err := validateURL(c.Telegram.APIBaseURL, "http", "https"); err != nil {
			return fmt.Errorf("telegram api_base_url %v", err)
		}
	}
	return nil
}

// ValidateGridParams checks the knobs the grid daemon requires. They usually
// come from flags, so they are validated separately from the file.
func (c Config) ValidateGridParams() error {
	if c.Grid.Size.Cmp(decimal.Zero) <= 0 {
		return fmt.Errorf("grid size must be > 0")
	}
	if c.Grid.USDPositionSize.Cmp(decimal.Zero) <= 0 {
		return fmt.Errorf("usd_position_size must be > 0")
	}
	if c.Grid.Size.Cmp(c.Grid.WindowUSD.Decimal) > 0 {
		return fmt.Errorf("grid size must not exceed window_usd")
	}
	return nil
}

func isValidSymbol(v string) bool {
	parts := strings.Split(v, "-")
	if len(parts) != 2 {
		return false
	}
	for _, part := range parts {
		if len(part) < 2 || len(part) > 10 {
			return false
		}
		for _, r := range part {
			if (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') {
				continue
			}
			return false
		}
	}
	return true
}

func validateURL(raw string, schemes ...string) error {
	parsed, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("must be a valid URL: %w", err)
	}
	if parsed.Scheme == "" || parsed.Host == "" {
		return fmt.Errorf("must include scheme and host")
	}
	for _, s := range schemes {
		if parsed.Scheme == s {
			return nil
		}
	}
	return fmt.Errorf("scheme must be %s", strings.Join(schemes, " or "))
}
