// Package config loads and validates the brokerage configuration.
package config

import (
	"encoding/json"
	"os"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/invopop/jsonschema"
	"gopkg.in/yaml.v3"

	"github.com/rxtech-lab/argo-brokerage/pkg/errors"
)

// Config is the complete brokerage configuration.
type Config struct {
	// BaseCurrency is the single ledger currency; all executor inputs are
	// pre-converted into it.
	BaseCurrency string `yaml:"base_currency" json:"base_currency" validate:"required,len=3"`
	// Timezone defines calendar-day boundaries for interest accrual and
	// the daily job schedule.
	Timezone string `yaml:"timezone" json:"timezone" validate:"required"`
	// SellFeeRate is the proportional fee charged on sale proceeds.
	SellFeeRate float64 `yaml:"sell_fee_rate" json:"sell_fee_rate" validate:"gte=0,lt=1"`
	// DailyInterestRate is applied per calendar day to borrowed credit.
	DailyInterestRate float64 `yaml:"daily_interest_rate" json:"daily_interest_rate" validate:"gte=0,lt=1"`
	// LiquidationFeeRate is the fee assumed when sizing forced sells.
	LiquidationFeeRate float64 `yaml:"liquidation_fee_rate" json:"liquidation_fee_rate" validate:"gte=0,lt=1"`
	// DefaultCreditLimit is assigned to accounts created without one.
	DefaultCreditLimit int64 `yaml:"default_credit_limit" json:"default_credit_limit" validate:"gte=0"`
	// LiquidationLookback bounds the LIFO scan over recent buy transactions.
	LiquidationLookback int `yaml:"liquidation_lookback" json:"liquidation_lookback" validate:"gt=0"`
	// AtomicMaxRetries bounds transparent retries on write conflicts.
	AtomicMaxRetries int `yaml:"atomic_max_retries" json:"atomic_max_retries" validate:"gt=0"`
	// MatcherInterval is the limit-order matching cadence, e.g. "30s".
	MatcherInterval string `yaml:"matcher_interval" json:"matcher_interval" validate:"required"`

	Database DatabaseConfig `yaml:"database" json:"database"`
	Server   ServerConfig   `yaml:"server" json:"server"`
}

// DatabaseConfig configures the DuckDB-backed repository.
type DatabaseConfig struct {
	// Path is the database file; empty means in-memory.
	Path string `yaml:"path" json:"path"`
}

// ServerConfig configures the HTTP API.
type ServerConfig struct {
	Addr string `yaml:"addr" json:"addr"`
}

// DefaultConfig returns the configuration the original deployment ran with.
func DefaultConfig() Config {
	return Config{
		BaseCurrency:        "KRW",
		Timezone:            "Asia/Seoul",
		SellFeeRate:         0.0005,
		DailyInterestRate:   0.001,
		LiquidationFeeRate:  0.001,
		DefaultCreditLimit:  500_000_000,
		LiquidationLookback: 50,
		AtomicMaxRetries:    5,
		MatcherInterval:     "30s",
		Database:            DatabaseConfig{Path: ""},
		Server:              ServerConfig{Addr: ":8080"},
	}
}

// Load reads and validates a YAML config file. Fields omitted in the
// file keep their defaults.
func Load(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, errors.Wrap(errors.ErrCodeInvalidConfiguration, "failed to read config file", err)
	}

	return Parse(data)
}

// Parse parses and validates YAML config bytes over the defaults.
func Parse(data []byte) (Config, error) {
	cfg := DefaultConfig()

	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, errors.Wrap(errors.ErrCodeInvalidConfiguration, "failed to parse config", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

// Validate checks the configuration invariants.
func (c *Config) Validate() error {
	validate := validator.New()
	if err := validate.Struct(c); err != nil {
		return errors.Wrap(errors.ErrCodeInvalidConfiguration, "invalid configuration", err)
	}

	if _, err := c.Location(); err != nil {
		return errors.Wrap(errors.ErrCodeInvalidConfiguration, "invalid timezone", err)
	}

	if _, err := c.Interval(); err != nil {
		return errors.Wrap(errors.ErrCodeInvalidConfiguration, "invalid matcher interval", err)
	}

	return nil
}

// Location resolves the configured timezone.
func (c *Config) Location() (*time.Location, error) {
	return time.LoadLocation(c.Timezone)
}

// Interval parses the matcher cadence.
func (c *Config) Interval() (time.Duration, error) {
	return time.ParseDuration(c.MatcherInterval)
}

// Schema returns the JSON schema describing the config file format.
func Schema() (string, error) {
	schema := jsonschema.Reflect(&Config{})

	jsonSchemaBytes, err := json.Marshal(schema)
	if err != nil {
		return "", err
	}

	return string(jsonSchemaBytes), nil
}
