// Package config loads the paywall runtime settings from a YAML file. The
// zero config is usable: symmetric in-memory keys, default validity windows
// and an empty article catalog.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// EnvConfigPath names the environment variable overriding the config path.
const EnvConfigPath = "PAYWALL_CONFIG"

// TokenMode selects the token generator family.
type TokenMode string

const (
	TokenModeSymmetric  TokenMode = "symmetric"
	TokenModeAsymmetric TokenMode = "asymmetric"
)

// Duration is a time.Duration that unmarshals from YAML strings like "30m".
type Duration time.Duration

func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	parsed, err := time.ParseDuration(value.Value)
	if err != nil {
		return fmt.Errorf("config: invalid duration %q: %w", value.Value, err)
	}
	*d = Duration(parsed)
	return nil
}

// Std returns the wrapped time.Duration.
func (d Duration) Std() time.Duration { return time.Duration(d) }

// Article is one catalog entry priced in satoshis per unit.
type Article struct {
	UnitPriceSats int64  `yaml:"unitPriceSats"`
	Description   string `yaml:"description"`
}

// Config is the full paywall runtime configuration.
type Config struct {
	// TokenMode selects symmetric or asymmetric token crypto.
	TokenMode TokenMode `yaml:"tokenMode"`

	// InvoiceTokenValidity bounds invoice tokens without an invoice expire
	// date.
	InvoiceTokenValidity Duration `yaml:"invoiceTokenValidity"`

	// SettlementTokenValidity bounds settlement tokens without a
	// settlement expire date.
	SettlementTokenValidity Duration `yaml:"settlementTokenValidity"`

	// SettlementDuration is how long settlements stay valid relative to
	// the settlement date. Zero keeps the payment handler default.
	SettlementDuration Duration `yaml:"settlementDuration"`

	// OrderValidity bounds how long unpaid orders stay claimable.
	OrderValidity Duration `yaml:"orderValidity"`

	// Articles is the priced article catalog.
	Articles map[string]Article `yaml:"articles"`
}

// Default returns the usable zero configuration.
func Default() *Config {
	return &Config{
		TokenMode:               TokenModeSymmetric,
		InvoiceTokenValidity:    Duration(time.Hour),
		SettlementTokenValidity: Duration(24 * time.Hour),
		Articles:                make(map[string]Article),
	}
}

// Load reads the YAML file at path over the defaults. When path is empty the
// EnvConfigPath variable is consulted; with neither set the defaults are
// returned as is.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		path = os.Getenv(EnvConfigPath)
	}
	if path == "" {
		return cfg, nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: failed to read %s: %w", path, err)
	}
	if err := yaml.Unmarshal(raw, cfg); err != nil {
		return nil, fmt.Errorf("config: failed to parse %s: %w", path, err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	switch c.TokenMode {
	case TokenModeSymmetric, TokenModeAsymmetric:
	default:
		return fmt.Errorf("config: unknown token mode %q", c.TokenMode)
	}
	for id, article := range c.Articles {
		if article.UnitPriceSats <= 0 {
			return fmt.Errorf("config: article %q has non-positive unit price", id)
		}
	}
	return nil
}
