// Package config loads and persists Kimera SWM configuration.
// Config lives at .kimera/config.yaml under the workspace root; environment
// variables prefixed KIMERA_ override individual fields.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all Kimera SWM configuration.
type Config struct {
	// Core settings
	Name    string `yaml:"name"`
	Version string `yaml:"version"`

	// HTTP API server
	Server ServerConfig `yaml:"server"`

	// Vault storage
	Vault VaultConfig `yaml:"vault"`

	// Entropy monitoring
	Entropy EntropyConfig `yaml:"entropy"`

	// Contradiction engine
	Contradiction ContradictionConfig `yaml:"contradiction"`

	// Cognitive field dynamics
	Field FieldConfig `yaml:"field"`

	// Trading simulation
	Trading TradingConfig `yaml:"trading"`

	// Logging
	Logging LoggingConfig `yaml:"logging"`
}

// ServerConfig configures the HTTP API.
type ServerConfig struct {
	Addr            string `yaml:"addr"`
	ReadTimeout     string `yaml:"read_timeout"`
	WriteTimeout    string `yaml:"write_timeout"`
	ShutdownTimeout string `yaml:"shutdown_timeout"`
}

// VaultConfig configures the SQLite vault and optional Postgres target.
type VaultConfig struct {
	DatabasePath string `yaml:"database_path"`
	// PostgresURL is only used by the migrate command.
	PostgresURL string `yaml:"postgres_url"`
	// BalanceByWeight selects weight-based instead of count-based scar placement.
	BalanceByWeight bool `yaml:"balance_by_weight"`
	MigrationBatch  int  `yaml:"migration_batch"`
}

// EntropyConfig configures the entropy monitor.
type EntropyConfig struct {
	EstimationMethod string  `yaml:"estimation_method"` // mle, miller_madow, chao_shen
	HistorySize      int     `yaml:"history_size"`
	BaseThreshold    float64 `yaml:"base_threshold"`
}

// ContradictionConfig configures tension detection.
type ContradictionConfig struct {
	TensionThreshold float64 `yaml:"tension_threshold"`
	SearchLimit      int     `yaml:"search_limit"`
	ScanBatchSize    int     `yaml:"scan_batch_size"`
	ScanWorkers      int     `yaml:"scan_workers"`
}

// FieldConfig configures the cognitive field engine.
type FieldConfig struct {
	Dimension       int     `yaml:"dimension"`
	BatchSize       int     `yaml:"batch_size"`
	EnergyThreshold float64 `yaml:"energy_threshold"`
}

// TradingConfig configures the trading simulation.
type TradingConfig struct {
	StartingCapital float64  `yaml:"starting_capital"`
	RiskPerTrade    float64  `yaml:"risk_per_trade"`
	MaxPositionSize float64  `yaml:"max_position_size"`
	StopLoss        float64  `yaml:"stop_loss"`
	TakeProfit      float64  `yaml:"take_profit"`
	Watchlist       []string `yaml:"watchlist"`
}

// LoggingConfig configures the category file logger.
type LoggingConfig struct {
	DebugMode  bool            `yaml:"debug_mode"`
	Categories map[string]bool `yaml:"categories,omitempty"`
	Level      string          `yaml:"level"`
	JSONFormat bool            `yaml:"json_format"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Name:    "kimera-swm",
		Version: "0.9.0",

		Server: ServerConfig{
			Addr:            ":8001",
			ReadTimeout:     "30s",
			WriteTimeout:    "60s",
			ShutdownTimeout: "10s",
		},

		Vault: VaultConfig{
			DatabasePath:   "data/kimera_swm.db",
			MigrationBatch: 500,
		},

		Entropy: EntropyConfig{
			EstimationMethod: "chao_shen",
			HistorySize:      1000,
			BaseThreshold:    0.05,
		},

		Contradiction: ContradictionConfig{
			TensionThreshold: 0.3,
			SearchLimit:      5,
			ScanBatchSize:    50,
			ScanWorkers:      4,
		},

		Field: FieldConfig{
			Dimension:       512,
			BatchSize:       100,
			EnergyThreshold: 0.1,
		},

		Trading: TradingConfig{
			StartingCapital: 1.0,
			RiskPerTrade:    0.05,
			MaxPositionSize: 0.30,
			StopLoss:        0.02,
			TakeProfit:      0.06,
			Watchlist: []string{
				"BTC-USD", "ETH-USD", "SOL-USD", "BNB-USD", "ADA-USD",
				"DOT-USD", "AVAX-USD", "MATIC-USD", "LINK-USD", "UNI-USD",
			},
		},

		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// Path returns the config file path for a workspace.
func Path(workspace string) string {
	return filepath.Join(workspace, ".kimera", "config.yaml")
}

// Load reads config from .kimera/config.yaml under the workspace,
// falling back to defaults when the file does not exist. Environment
// overrides are applied last.
func Load(workspace string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(Path(workspace))
	if err != nil {
		if os.IsNotExist(err) {
			applyEnvOverrides(cfg)
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read config: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	applyEnvOverrides(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Save writes the config to .kimera/config.yaml under the workspace.
func Save(workspace string, cfg *Config) error {
	path := Path(workspace)
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	return os.WriteFile(path, data, 0644)
}

// Validate checks basic config sanity.
func (c *Config) Validate() error {
	switch c.Entropy.EstimationMethod {
	case "mle", "miller_madow", "chao_shen":
	default:
		return fmt.Errorf("unknown entropy estimation method %q", c.Entropy.EstimationMethod)
	}
	if c.Contradiction.TensionThreshold < 0 || c.Contradiction.TensionThreshold > 1 {
		return fmt.Errorf("tension_threshold must be in [0,1], got %v", c.Contradiction.TensionThreshold)
	}
	if c.Field.Dimension <= 0 {
		return fmt.Errorf("field dimension must be positive, got %d", c.Field.Dimension)
	}
	return nil
}

// Duration parses a duration field, returning fallback on empty/invalid input.
func Duration(s string, fallback time.Duration) time.Duration {
	if s == "" {
		return fallback
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return fallback
	}
	return d
}

// applyEnvOverrides maps KIMERA_* environment variables onto config fields.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("KIMERA_SERVER_ADDR"); v != "" {
		cfg.Server.Addr = v
	}
	if v := os.Getenv("KIMERA_DATABASE_PATH"); v != "" {
		cfg.Vault.DatabasePath = v
	}
	if v := os.Getenv("DATABASE_URL"); v != "" {
		cfg.Vault.PostgresURL = v
	}
	if v := os.Getenv("KIMERA_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("KIMERA_DEBUG"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.Logging.DebugMode = b
		}
	}
	if v := os.Getenv("KIMERA_TENSION_THRESHOLD"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.Contradiction.TensionThreshold = f
		}
	}
}
