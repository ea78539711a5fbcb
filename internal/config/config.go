// Package config loads the proxy's configuration surface from environment
// variables (optionally via a .env file) and an optional YAML config file,
// the same viper+godotenv precedence the teacher's internal/config uses.
package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// JWTKey is one (kid, secret) entry from jwt_signer_keys.
type JWTKey struct {
	Kid    string `mapstructure:"kid"`
	Secret string `mapstructure:"secret"`
}

// Config is the configuration surface the core consumes, per SPEC_FULL §1.
type Config struct {
	BindAddress string
	LogLevel    string

	JWTSignerKeys []JWTKey
	DefaultKid    string
	JWTExpirySecs int

	AdminKeys     []string
	AdminKeysFile string

	SequencerURL      string
	WithdrawProofsURL string

	ChainID int64

	// GasIsFree toggles whether eth_gasPrice / eth_maxPriorityFeePerGas
	// short-circuit to 0 without an upstream call. See SPEC_FULL §3.
	GasIsFree bool

	UpstreamRatePerSec float64
	UpstreamBurst      int
}

// Load reads configuration the way the teacher's Load() does: an optional
// .env file, then an optional YAML config file, then environment variable
// overrides, then defaults, then validation of the fields the core cannot
// run without.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("error loading .env file: %w", err)
	}

	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("./config")

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	viper.AutomaticEnv()

	viper.SetDefault("BIND_ADDRESS", "0.0.0.0:8545")
	viper.SetDefault("LOG_LEVEL", "info")
	viper.SetDefault("JWT_EXPIRY_SECS", 3600)
	viper.SetDefault("GAS_IS_FREE", true)
	viper.SetDefault("UPSTREAM_RATE_PER_SEC", 50.0)
	viper.SetDefault("UPSTREAM_BURST", 100)

	cfg := &Config{
		BindAddress:        viper.GetString("BIND_ADDRESS"),
		LogLevel:           viper.GetString("LOG_LEVEL"),
		DefaultKid:         viper.GetString("DEFAULT_KID"),
		JWTExpirySecs:      viper.GetInt("JWT_EXPIRY_SECS"),
		AdminKeysFile:      viper.GetString("ADMIN_KEYS_FILE"),
		SequencerURL:       viper.GetString("SEQUENCER_URL"),
		WithdrawProofsURL:  viper.GetString("WITHDRAW_PROOFS_URL"),
		ChainID:            viper.GetInt64("CHAIN_ID"),
		GasIsFree:          viper.GetBool("GAS_IS_FREE"),
		UpstreamRatePerSec: viper.GetFloat64("UPSTREAM_RATE_PER_SEC"),
		UpstreamBurst:      viper.GetInt("UPSTREAM_BURST"),
	}

	if err := viper.UnmarshalKey("jwt_signer_keys", &cfg.JWTSignerKeys); err != nil {
		return nil, fmt.Errorf("parsing jwt_signer_keys: %w", err)
	}
	if raw := viper.GetString("ADMIN_KEYS"); raw != "" {
		for _, k := range strings.Split(raw, ",") {
			if k = strings.TrimSpace(k); k != "" {
				cfg.AdminKeys = append(cfg.AdminKeys, k)
			}
		}
	} else if err := viper.UnmarshalKey("admin_keys", &cfg.AdminKeys); err != nil {
		return nil, fmt.Errorf("parsing admin_keys: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if c.SequencerURL == "" {
		return fmt.Errorf("SEQUENCER_URL is required")
	}
	if c.WithdrawProofsURL == "" {
		return fmt.Errorf("WITHDRAW_PROOFS_URL is required")
	}
	if len(c.JWTSignerKeys) == 0 {
		return fmt.Errorf("jwt_signer_keys is required")
	}
	if c.DefaultKid == "" {
		return fmt.Errorf("DEFAULT_KID is required")
	}
	found := false
	for _, k := range c.JWTSignerKeys {
		if k.Kid == c.DefaultKid {
			found = true
			break
		}
	}
	if !found {
		return fmt.Errorf("DEFAULT_KID %q not present among jwt_signer_keys", c.DefaultKid)
	}
	return nil
}
