// Package config handles application configuration for stocksim.
// It supports YAML config files with environment variable overrides.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

// Config represents the complete application configuration.
type Config struct {
	Data     DataConfig     `mapstructure:"data"     yaml:"data"`
	Backtest BacktestConfig `mapstructure:"backtest" yaml:"backtest"`
	Risk     RiskConfig     `mapstructure:"risk"     yaml:"risk"`
	Output   OutputConfig   `mapstructure:"output"   yaml:"output"`
}

// DataConfig holds data-adapter settings.
type DataConfig struct {
	CSVDir           string `mapstructure:"csv_dir"            yaml:"csv_dir"`
	FetchTimeoutSec  int    `mapstructure:"fetch_timeout_sec"  yaml:"fetch_timeout_sec"`
	ProbeIntervalSec int    `mapstructure:"probe_interval_sec" yaml:"probe_interval_sec"`
}

// BacktestConfig holds run defaults applied when flags are absent.
type BacktestConfig struct {
	InitialCapital float64 `mapstructure:"initial_capital" yaml:"initial_capital"`
	SlippageBps    float64 `mapstructure:"slippage_bps"    yaml:"slippage_bps"`
	Adjust         string  `mapstructure:"adjust"          yaml:"adjust"` // "raw", "qfq", "hfq"
	Combiner       string  `mapstructure:"combiner"        yaml:"combiner"`
	RiskFreeRate   float64 `mapstructure:"risk_free_rate"  yaml:"risk_free_rate"`
}

// RiskConfig holds default risk limits. Zero disables a check.
type RiskConfig struct {
	MaxPositionPct   float64 `mapstructure:"max_position_pct"   yaml:"max_position_pct"`
	MaxTotalExposure float64 `mapstructure:"max_total_exposure" yaml:"max_total_exposure"`
	StopLossPct      float64 `mapstructure:"stop_loss_pct"      yaml:"stop_loss_pct"`
	StopProfitPct    float64 `mapstructure:"stop_profit_pct"    yaml:"stop_profit_pct"`
	MaxDrawdownPct   float64 `mapstructure:"max_drawdown_pct"   yaml:"max_drawdown_pct"`
}

// OutputConfig holds result presentation settings.
type OutputConfig struct {
	Format string `mapstructure:"format" yaml:"format"` // "text" or "json"
}

// Load reads the configuration from file and environment variables.
// Config file search order:
//  1. ./config/config.yaml (project root)
//  2. ~/.stocksim/config.yaml (home directory)
//  3. /etc/stocksim/config.yaml (system)
//
// Environment variables override config file values.
// Format: STOCKSIM_<SECTION>_<KEY>, e.g., STOCKSIM_DATA_CSV_DIR
func Load() (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath("./config")
	v.AddConfigPath(filepath.Join(homeDir(), ".stocksim"))
	v.AddConfigPath("/etc/stocksim")

	v.SetEnvPrefix("STOCKSIM")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Read config file (not required to exist)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}
	return &cfg, nil
}

// LoadFromFile reads configuration from a specific file path.
func LoadFromFile(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetConfigFile(path)
	v.SetEnvPrefix("STOCKSIM")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("error reading config file %s: %w", path, err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}
	return &cfg, nil
}

// setDefaults sets sensible defaults for all config values.
func setDefaults(v *viper.Viper) {
	v.SetDefault("data.csv_dir", "./data")
	v.SetDefault("data.fetch_timeout_sec", 10)
	v.SetDefault("data.probe_interval_sec", 60)

	v.SetDefault("backtest.initial_capital", 100000)
	v.SetDefault("backtest.slippage_bps", 5)
	v.SetDefault("backtest.adjust", "qfq")
	v.SetDefault("backtest.combiner", "AND")
	v.SetDefault("backtest.risk_free_rate", 0.02)

	v.SetDefault("output.format", "text")
}

// homeDir returns the user's home directory.
func homeDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return home
}
