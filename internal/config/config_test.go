package config

import (
	"os"
	"path/filepath"
	"testing"
)

// ── Load / Defaults ──

func TestLoadReturnsDefaults(t *testing.T) {
	envVars := []string{
		"STOCKSIM_DATA_CSV_DIR", "STOCKSIM_BACKTEST_INITIAL_CAPITAL",
		"STOCKSIM_BACKTEST_SLIPPAGE_BPS", "STOCKSIM_OUTPUT_FORMAT",
	}
	for _, e := range envVars {
		os.Unsetenv(e)
	}

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}

	if cfg.Data.CSVDir != "./data" {
		t.Errorf("Data.CSVDir: got %q, want %q", cfg.Data.CSVDir, "./data")
	}
	if cfg.Data.FetchTimeoutSec != 10 {
		t.Errorf("Data.FetchTimeoutSec: got %d, want 10", cfg.Data.FetchTimeoutSec)
	}
	if cfg.Data.ProbeIntervalSec != 60 {
		t.Errorf("Data.ProbeIntervalSec: got %d, want 60", cfg.Data.ProbeIntervalSec)
	}

	if cfg.Backtest.InitialCapital != 100000 {
		t.Errorf("Backtest.InitialCapital: got %f, want 100000", cfg.Backtest.InitialCapital)
	}
	if cfg.Backtest.SlippageBps != 5 {
		t.Errorf("Backtest.SlippageBps: got %f, want 5", cfg.Backtest.SlippageBps)
	}
	if cfg.Backtest.Adjust != "qfq" {
		t.Errorf("Backtest.Adjust: got %q, want %q", cfg.Backtest.Adjust, "qfq")
	}
	if cfg.Backtest.Combiner != "AND" {
		t.Errorf("Backtest.Combiner: got %q, want %q", cfg.Backtest.Combiner, "AND")
	}

	// Risk limits are disabled unless configured.
	if cfg.Risk.MaxPositionPct != 0 || cfg.Risk.StopLossPct != 0 {
		t.Errorf("Risk limits should default to disabled, got %+v", cfg.Risk)
	}

	if cfg.Output.Format != "text" {
		t.Errorf("Output.Format: got %q, want %q", cfg.Output.Format, "text")
	}
}

// ── LoadFromFile ──

func TestLoadFromFile(t *testing.T) {
	tmpDir := t.TempDir()
	cfgPath := filepath.Join(tmpDir, "test_config.yaml")
	content := []byte(`
data:
  csv_dir: "/srv/bars"
  fetch_timeout_sec: 5
backtest:
  initial_capital: 250000
  slippage_bps: 10
  adjust: "raw"
risk:
  max_position_pct: 0.3
  stop_loss_pct: 0.1
output:
  format: "json"
`)
	if err := os.WriteFile(cfgPath, content, 0644); err != nil {
		t.Fatalf("write temp config: %v", err)
	}

	cfg, err := LoadFromFile(cfgPath)
	if err != nil {
		t.Fatalf("LoadFromFile() error: %v", err)
	}
	if cfg.Data.CSVDir != "/srv/bars" {
		t.Errorf("Data.CSVDir: got %q, want %q", cfg.Data.CSVDir, "/srv/bars")
	}
	if cfg.Data.FetchTimeoutSec != 5 {
		t.Errorf("Data.FetchTimeoutSec: got %d, want 5", cfg.Data.FetchTimeoutSec)
	}
	if cfg.Backtest.InitialCapital != 250000 {
		t.Errorf("Backtest.InitialCapital: got %f, want 250000", cfg.Backtest.InitialCapital)
	}
	if cfg.Backtest.SlippageBps != 10 {
		t.Errorf("Backtest.SlippageBps: got %f, want 10", cfg.Backtest.SlippageBps)
	}
	if cfg.Backtest.Adjust != "raw" {
		t.Errorf("Backtest.Adjust: got %q, want %q", cfg.Backtest.Adjust, "raw")
	}
	if cfg.Risk.MaxPositionPct != 0.3 {
		t.Errorf("Risk.MaxPositionPct: got %f, want 0.3", cfg.Risk.MaxPositionPct)
	}
	if cfg.Risk.StopLossPct != 0.1 {
		t.Errorf("Risk.StopLossPct: got %f, want 0.1", cfg.Risk.StopLossPct)
	}
	if cfg.Output.Format != "json" {
		t.Errorf("Output.Format: got %q, want %q", cfg.Output.Format, "json")
	}
	// Untouched sections keep their defaults.
	if cfg.Backtest.Combiner != "AND" {
		t.Errorf("Backtest.Combiner: got %q, want default AND", cfg.Backtest.Combiner)
	}
}

func TestLoadFromFileNotFound(t *testing.T) {
	_, err := LoadFromFile("/nonexistent/path/config.yaml")
	if err == nil {
		t.Error("LoadFromFile() with nonexistent path should return error")
	}
}

// ── homeDir ──

func TestHomeDirReturnsNonEmpty(t *testing.T) {
	h := homeDir()
	if h == "" {
		t.Error("homeDir() should not return empty string")
	}
}
