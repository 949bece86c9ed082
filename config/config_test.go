package config

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDefaultIsValid(t *testing.T) {
	t.Parallel()

	assert.NoError(t, Default().Validate())
}

func TestSaveLoadRoundTrip(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	for _, name := range []string{"run.yaml", "run.json"} {
		path := filepath.Join(dir, name)
		cfg := Default()
		cfg.Account.Balance = 50_000
		cfg.Env.WindowSize = 24
		sl := 0.05
		cfg.Env.StopLoss = &sl
		cfg.Env.SLTPKind = "percent"

		assert.NoError(t, cfg.SaveToFile(path), name)

		got, err := LoadFromFile(path)
		assert.NoError(t, err, name)
		assert.Equal(t, 50_000.0, got.Account.Balance, name)
		assert.Equal(t, 24, got.Env.WindowSize, name)
		if assert.NotNil(t, got.Env.StopLoss, name) {
			assert.Equal(t, 0.05, *got.Env.StopLoss, name)
		}
	}
}

func TestLoadMissingFile(t *testing.T) {
	t.Parallel()

	_, err := LoadFromFile(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestValidateRejectsBadConfigs(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"missing unit", func(c *Config) { c.Account.Unit = "" }},
		{"zero balance", func(c *Config) { c.Account.Balance = 0 }},
		{"negative leverage", func(c *Config) { c.Account.Leverage = -1 }},
		{"no symbols", func(c *Config) { c.Env.Symbols = nil }},
		{"zero window", func(c *Config) { c.Env.WindowSize = 0 }},
		{"bad hold threshold", func(c *Config) { c.Env.HoldThreshold = 2 }},
		{"bad fee kind", func(c *Config) { c.Env.FeeKind = "percent" }},
		{"stop without kind", func(c *Config) { sl := 5.0; c.Env.StopLoss = &sl; c.Env.SLTPKind = "" }},
		{"bad action mode", func(c *Config) { c.Env.ActionMode = "tabular" }},
		{"even discrete count", func(c *Config) {
			c.Env.ActionMode = "discrete"
			c.Env.DiscreteActionsCount = 4
			c.Account.Hedge = false
		}},
		{"discrete multi symbol", func(c *Config) {
			c.Env.ActionMode = "discrete"
			c.Env.Symbols = []string{"EURUSD", "GBPUSD"}
			c.Account.Hedge = false
		}},
		{"discrete with hedge", func(c *Config) { c.Env.ActionMode = "discrete" }},
		{"bad observation mode", func(c *Config) { c.Env.ObservationMode = "tensor" }},
		{"bad order detail count", func(c *Config) { c.Env.OrderDetailCount = 4 }},
		{"bad volume basis", func(c *Config) { c.Env.VolumeBasis = "equity" }},
		{"symbol without data", func(c *Config) { c.Env.Symbols = []string{"USDJPY"} }},
		{"data entry without file", func(c *Config) { c.Data.Symbols[0].File = "" }},
		{"zero episodes", func(c *Config) { c.Run.Episodes = 0 }},
		{"bad policy", func(c *Config) { c.Run.Policy = "greedy" }},
		{"csv journal without paths", func(c *Config) { c.Journal.OrdersFile = "" }},
		{"sqlite journal without path", func(c *Config) { c.Journal.Type = "sqlite" }},
		{"bad journal type", func(c *Config) { c.Journal.Type = "parquet" }},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			cfg := Default()
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestValidateJournalNone(t *testing.T) {
	t.Parallel()

	cfg := Default()
	cfg.Journal = JournalConfig{Type: "none"}
	assert.NoError(t, cfg.Validate())
}
