// Package config loads BeanCounter's process configuration, grounded
// on original_source/src/config.rs's {service, database, metrics}
// shape and reimplemented against spf13/viper + spf13/cobra instead of
// a lazy_static toml::from_str load, per SPEC_FULL.md §10.2.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/umpyre/beancounter/internal/processor/stripe"
	"github.com/umpyre/beancounter/internal/store"
)

// Service holds the RPC server's own bind/TLS settings, mirroring
// original_source/src/config.rs's Service struct.
type Service struct {
	BindAddress string `mapstructure:"bind_address"`
	CACertPath  string `mapstructure:"ca_cert_path"`
	TLSCertPath string `mapstructure:"tls_cert_path"`
	TLSKeyPath  string `mapstructure:"tls_key_path"`
}

// Metrics holds the Prometheus exporter's bind address, kept on a
// separate address from the RPC service per spec.md §6.
type Metrics struct {
	BindAddress string `mapstructure:"bind_address"`
}

// Sweep holds the cron binary's expiry age and automatic-payout
// lookback window, both overridable for testing.
type Sweep struct {
	ExpiryAge               time.Duration `mapstructure:"expiry_age"`
	AutomaticPayoutLookback time.Duration `mapstructure:"automatic_payout_lookback"`
}

// Databases holds the reader/writer connection-pool configs, mirroring
// original_source/src/config.rs's Databases{reader, writer}.
type Databases struct {
	Reader store.Config `mapstructure:"reader"`
	Writer store.Config `mapstructure:"writer"`
}

// Config is BeanCounter's complete process configuration.
type Config struct {
	Service   Service       `mapstructure:"service"`
	Database  Databases     `mapstructure:"database"`
	Metrics   Metrics       `mapstructure:"metrics"`
	Sweep     Sweep         `mapstructure:"sweep"`
	Processor stripe.Config `mapstructure:"processor"`
}

// EnvPrefix is the prefix viper applies to environment-variable
// overrides, e.g. BEANCOUNTER_SERVICE_BIND_ADDRESS.
const EnvPrefix = "BEANCOUNTER"

// New returns a Config populated with defaults, to be overridden by
// Load.
func New() *Config {
	return &Config{
		Service: Service{BindAddress: "0.0.0.0:7221"},
		Metrics: Metrics{BindAddress: "0.0.0.0:9221"},
		Sweep: Sweep{
			ExpiryAge:               30 * 24 * time.Hour,
			AutomaticPayoutLookback: 24 * time.Hour,
		},
	}
}

// Load reads configuration from configPath (if non-empty) and
// environment variables prefixed with BEANCOUNTER_, falling back to
// the defaults in New.
func Load(configPath string) (*Config, error) {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	cfg := New()
	bind(v, cfg)

	if configPath != "" {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("config: failed to read %s: %w", configPath, err)
		}
	}

	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("config: failed to unmarshal: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// bind seeds viper's defaults from cfg so environment-only overrides
// (no config file) still produce a usable Config.
func bind(v *viper.Viper, cfg *Config) {
	v.SetDefault("service.bind_address", cfg.Service.BindAddress)
	v.SetDefault("metrics.bind_address", cfg.Metrics.BindAddress)
	v.SetDefault("sweep.expiry_age", cfg.Sweep.ExpiryAge)
	v.SetDefault("sweep.automatic_payout_lookback", cfg.Sweep.AutomaticPayoutLookback)
	v.SetDefault("database.reader.max_open_conns", 10)
	v.SetDefault("database.writer.max_open_conns", 10)
}

// Validate checks that the configuration is internally consistent,
// mirroring the teacher's Validate()-per-config-struct idiom.
func (c *Config) Validate() error {
	if c.Service.BindAddress == "" {
		return fmt.Errorf("config: service.bind_address must not be empty")
	}
	if c.Processor.SecretKey == "" {
		return fmt.Errorf("config: processor.secret_key must not be empty")
	}
	if err := c.Database.Reader.Validate(); err != nil {
		return fmt.Errorf("config: database.reader: %w", err)
	}
	if err := c.Database.Writer.Validate(); err != nil {
		return fmt.Errorf("config: database.writer: %w", err)
	}
	return nil
}
