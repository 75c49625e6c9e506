// Package config exposes strongly typed application configuration structs loaded from YAML.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// App captures process-wide runtime settings such as name, environment, metrics, and logging levels.
type App struct {
	Name        string
	Env         string
	MetricsAddr string `yaml:"metrics_addr"`
	LogLevel    string `yaml:"log_level"`
}

// Bridge holds the socket endpoint and timing knobs shared by both sides of the link.
type Bridge struct {
	Host             string
	Port             int
	DialTimeoutMs    int `yaml:"dial_timeout_ms"`
	RequestTimeoutMs int `yaml:"request_timeout_ms"`
	HeartbeatSecs    int `yaml:"heartbeat_secs"`
	PollIntervalMs   int `yaml:"poll_interval_ms"`
}

// Producer tunes the signal queue and the server-side heartbeat watchdog.
type Producer struct {
	MaxQueueSize         int `yaml:"max_queue_size"`
	MaxHistorySize       int `yaml:"max_history_size"`
	HeartbeatTimeoutSecs int `yaml:"heartbeat_timeout_secs"`
}

// Feed selects the market data provider and the symbols to subscribe.
type Feed struct {
	Provider string
	Symbols  []string
}

// StrategyParams groups tunable knobs for a strategy implementation.
type StrategyParams struct {
	Threshold    float64 `yaml:"threshold"`
	WindowSecs   int     `yaml:"window_secs"`
	MinVolumeUSD float64 `yaml:"min_volume_usd"`
}

// Strategy specifies which strategy is active along with the parameter bundle.
type Strategy struct {
	Mode   string
	Params StrategyParams
}

// Risk encodes guard-rails for how much size the producer may request.
type Risk struct {
	MinConfidence       float64 `yaml:"min_confidence"`
	MaxRiskPerTrade     float64 `yaml:"max_risk_per_trade"`
	StopLossPips        float64 `yaml:"stop_loss_pips"`
	TakeProfitPips      float64 `yaml:"take_profit_pips"`
	PipSize             float64 `yaml:"pip_size"`
	MaxLotSize          float64 `yaml:"max_lot_size"`
	MaxNotionalPerTrade float64 `yaml:"max_notional_per_trade"`
	AccountBalance      float64 `yaml:"account_balance"`
}

// Broker captures terminal-side account settings.
type Broker struct {
	Name            string
	Currency        string
	StartingBalance float64 `yaml:"starting_balance"`
	JournalPath     string  `yaml:"journal_path"`
}

// Config collects every configuration leaf for easy marshaling from YAML.
type Config struct {
	App      App      `yaml:"app"`
	Bridge   Bridge   `yaml:"bridge"`
	Producer Producer `yaml:"producer"`
	Feed     Feed     `yaml:"feed"`
	Strategy Strategy `yaml:"strategy"`
	Risk     Risk     `yaml:"risk"`
	Broker   Broker   `yaml:"broker"`
}

// Load reads a YAML file from disk and hydrates a Config struct.
func Load(path string) (*Config, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open config: %w", err)
	}
	defer file.Close()

	var config Config
	if err := yaml.NewDecoder(file).Decode(&config); err != nil {
		return nil, fmt.Errorf("decode yaml: %w", err)
	}
	return &config, nil
}

// Save persists a Config struct to disk as YAML.
func Save(path string, cfg *Config) error {
	if cfg == nil {
		return fmt.Errorf("nil config")
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal yaml: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}
