// Package config loads and validates the run configuration from YAML or
// JSON files.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config represents the complete run configuration.
type Config struct {
	Account AccountConfig `json:"account" yaml:"account"`
	Env     EnvConfig     `json:"env" yaml:"env"`
	Data    DataConfig    `json:"data" yaml:"data"`
	Run     RunConfig     `json:"run" yaml:"run"`
	Journal JournalConfig `json:"journal" yaml:"journal"`
	Log     LogConfig     `json:"log" yaml:"log"`
}

// AccountConfig contains account initialization parameters.
type AccountConfig struct {
	Unit         string  `json:"unit" yaml:"unit"`
	Balance      float64 `json:"balance" yaml:"balance"`
	Leverage     float64 `json:"leverage" yaml:"leverage"`
	StopOutLevel float64 `json:"stop_out_level" yaml:"stop_out_level"`
	Hedge        bool    `json:"hedge" yaml:"hedge"`
}

// EnvConfig contains episode parameters.
type EnvConfig struct {
	Symbols          []string `json:"symbols" yaml:"symbols"`
	WindowSize       int      `json:"window_size" yaml:"window_size"`
	HoldThreshold    float64  `json:"hold_threshold" yaml:"hold_threshold"`
	CloseThreshold   float64  `json:"close_threshold" yaml:"close_threshold"`
	Fee              float64  `json:"fee" yaml:"fee"`
	FeeKind          string   `json:"fee_kind" yaml:"fee_kind"` // "fixed" or "floating"
	StopLoss         *float64 `json:"stop_loss,omitempty" yaml:"stop_loss,omitempty"`
	TakeProfit       *float64 `json:"take_profit,omitempty" yaml:"take_profit,omitempty"`
	SLTPKind         string   `json:"sltp_kind,omitempty" yaml:"sltp_kind,omitempty"` // "pip" or "percent"
	TrailingDistance *float64 `json:"trailing_distance,omitempty" yaml:"trailing_distance,omitempty"`
	SymbolMaxOrders  int      `json:"symbol_max_orders" yaml:"symbol_max_orders"`

	ActionMode           string `json:"action_mode" yaml:"action_mode"` // "continuous", "discrete" or "structured"
	DiscreteActionsCount int    `json:"discrete_actions_count" yaml:"discrete_actions_count"`

	ObservationMode      string `json:"observation_mode" yaml:"observation_mode"` // "structured" or "flattened"
	NormalizeObservation bool   `json:"normalize_observation" yaml:"normalize_observation"`
	OrderDetailCount     int    `json:"order_detail_count" yaml:"order_detail_count"`
	VolumeBasis          string `json:"volume_basis" yaml:"volume_basis"` // "balance" or "free_margin"
}

// DataConfig names the price files per symbol.
type DataConfig struct {
	Dir     string         `json:"dir" yaml:"dir"`
	Symbols []SymbolConfig `json:"symbols" yaml:"symbols"`
}

// SymbolConfig binds one symbol to its data file and feature pipeline.
type SymbolConfig struct {
	Name           string `json:"name" yaml:"name"`
	File           string `json:"file" yaml:"file"`
	CurrencyMargin string `json:"currency_margin" yaml:"currency_margin"`
	CurrencyProfit string `json:"currency_profit" yaml:"currency_profit"`

	// Indicators are pipeline specs like "ema:20", "atr:14", "logret".
	Indicators []string `json:"indicators,omitempty" yaml:"indicators,omitempty"`
}

// RunConfig drives the episode loop.
type RunConfig struct {
	Episodes int    `json:"episodes" yaml:"episodes"`
	Policy   string `json:"policy" yaml:"policy"` // "random" or "noop"
	Seed     int64  `json:"seed" yaml:"seed"`
}

// JournalConfig contains journaling parameters.
type JournalConfig struct {
	Type       string `json:"type" yaml:"type"` // "csv", "sqlite" or "none"
	OrdersFile string `json:"orders_file,omitempty" yaml:"orders_file,omitempty"`
	EquityFile string `json:"equity_file,omitempty" yaml:"equity_file,omitempty"`
	DBPath     string `json:"db_path,omitempty" yaml:"db_path,omitempty"`
}

// LogConfig controls the zerolog output.
type LogConfig struct {
	Level  string `json:"level" yaml:"level"`
	Pretty bool   `json:"pretty" yaml:"pretty"`
}

// LoadFromFile loads configuration from a file (YAML or JSON).
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	cfg := &Config{}

	// Try YAML first, fall back to JSON
	err = yaml.Unmarshal(data, cfg)
	if err != nil {
		err = json.Unmarshal(data, cfg)
		if err != nil {
			return nil, fmt.Errorf("parse config (tried YAML and JSON): %w", err)
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

// SaveToFile saves configuration to a file (format chosen by extension).
func (c *Config) SaveToFile(path string) error {
	var data []byte
	var err error

	if strings.HasSuffix(path, ".yaml") || strings.HasSuffix(path, ".yml") {
		data, err = yaml.Marshal(c)
	} else {
		data, err = json.MarshalIndent(c, "", "  ")
	}

	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("write config file: %w", err)
	}

	return nil
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if c.Account.Unit == "" {
		return fmt.Errorf("account.unit is required")
	}
	if c.Account.Balance <= 0 {
		return fmt.Errorf("account.balance must be positive")
	}
	if c.Account.Leverage <= 0 {
		return fmt.Errorf("account.leverage must be positive")
	}
	if c.Account.StopOutLevel < 0 {
		return fmt.Errorf("account.stop_out_level must not be negative")
	}

	if len(c.Env.Symbols) == 0 {
		return fmt.Errorf("env.symbols is required")
	}
	if c.Env.WindowSize < 1 {
		return fmt.Errorf("env.window_size must be positive")
	}
	if c.Env.HoldThreshold < 0 || c.Env.HoldThreshold > 1 {
		return fmt.Errorf("env.hold_threshold must be between 0 and 1")
	}
	switch c.Env.FeeKind {
	case "fixed", "floating":
	default:
		return fmt.Errorf("env.fee_kind must be 'fixed' or 'floating'")
	}
	if c.Env.StopLoss != nil || c.Env.TakeProfit != nil {
		if c.Env.SLTPKind != "pip" && c.Env.SLTPKind != "percent" {
			return fmt.Errorf("env.sltp_kind must be 'pip' or 'percent' when stops are set")
		}
	}
	switch c.Env.ActionMode {
	case "continuous", "structured":
	case "discrete":
		if c.Env.DiscreteActionsCount%2 == 0 {
			return fmt.Errorf("env.discrete_actions_count must be odd")
		}
		if len(c.Env.Symbols) != 1 {
			return fmt.Errorf("discrete action mode requires exactly one symbol")
		}
		if c.Account.Hedge {
			return fmt.Errorf("discrete action mode requires hedge off")
		}
	default:
		return fmt.Errorf("env.action_mode must be 'continuous', 'discrete' or 'structured'")
	}
	switch c.Env.ObservationMode {
	case "structured", "flattened":
	default:
		return fmt.Errorf("env.observation_mode must be 'structured' or 'flattened'")
	}
	if c.Env.OrderDetailCount != 0 && c.Env.OrderDetailCount != 2 && c.Env.OrderDetailCount != 3 {
		return fmt.Errorf("env.order_detail_count must be 2 or 3")
	}
	switch c.Env.VolumeBasis {
	case "", "balance", "free_margin":
	default:
		return fmt.Errorf("env.volume_basis must be 'balance' or 'free_margin'")
	}

	if len(c.Data.Symbols) == 0 {
		return fmt.Errorf("data.symbols is required")
	}
	byName := map[string]bool{}
	for _, s := range c.Data.Symbols {
		if s.Name == "" || s.File == "" {
			return fmt.Errorf("data symbols require name and file")
		}
		byName[s.Name] = true
	}
	for _, name := range c.Env.Symbols {
		if !byName[name] {
			return fmt.Errorf("env symbol %s has no data entry", name)
		}
	}

	if c.Run.Episodes < 1 {
		return fmt.Errorf("run.episodes must be positive")
	}
	switch c.Run.Policy {
	case "random", "noop":
	default:
		return fmt.Errorf("run.policy must be 'random' or 'noop'")
	}

	switch c.Journal.Type {
	case "none":
	case "csv":
		if c.Journal.OrdersFile == "" || c.Journal.EquityFile == "" {
			return fmt.Errorf("journal orders_file and equity_file required for CSV type")
		}
	case "sqlite":
		if c.Journal.DBPath == "" {
			return fmt.Errorf("journal db_path required for SQLite type")
		}
	default:
		return fmt.Errorf("journal.type must be 'csv', 'sqlite' or 'none'")
	}

	return nil
}

// Default returns a configuration with sensible defaults.
func Default() *Config {
	return &Config{
		Account: AccountConfig{
			Unit:         "USD",
			Balance:      10000,
			Leverage:     100,
			StopOutLevel: 0.2,
			Hedge:        true,
		},
		Env: EnvConfig{
			Symbols:              []string{"EURUSD"},
			WindowSize:           10,
			HoldThreshold:        0.5,
			CloseThreshold:       0.5,
			Fee:                  0.0005,
			FeeKind:              "fixed",
			SymbolMaxOrders:      1,
			ActionMode:           "continuous",
			DiscreteActionsCount: 3,
			ObservationMode:      "structured",
			NormalizeObservation: true,
			OrderDetailCount:     2,
			VolumeBasis:          "balance",
		},
		Data: DataConfig{
			Dir: "./data",
			Symbols: []SymbolConfig{
				{
					Name:           "EURUSD",
					File:           "EURUSD.csv",
					CurrencyMargin: "EUR",
					CurrencyProfit: "USD",
					Indicators:     []string{"logret", "ema:20", "atr:14"},
				},
			},
		},
		Run: RunConfig{
			Episodes: 1,
			Policy:   "random",
			Seed:     1,
		},
		Journal: JournalConfig{
			Type:       "csv",
			OrdersFile: "./orders.csv",
			EquityFile: "./equity.csv",
		},
		Log: LogConfig{
			Level:  "info",
			Pretty: true,
		},
	}
}
