package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// Config holds configuration values loaded from flags, env, or config file.
type Config struct {
	RPCURL        string
	PrivateKey    string
	ChainID       uint64
	PGDSN         string
	StateFile     string
	LightningURL  string
	PayBaseline   string
	QuoteDelay    time.Duration
	OracleBaseURL string
	LogLevel      string
}

// Load merges config file, environment variables, and flags into Config.
func Load(cfgFile string, flags *pflag.FlagSet) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("RANGESWAP")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	v.SetDefault("chain-id", uint64(11155111))
	v.SetDefault("state-file", "./data/state.json")
	v.SetDefault("pay-baseline", "0.00")
	v.SetDefault("quote-delay", 500*time.Millisecond)
	v.SetDefault("log-level", "info")

	if flags != nil {
		if err := v.BindPFlags(flags); err != nil {
			return Config{}, fmt.Errorf("bind flags: %w", err)
		}
	}

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	} else {
		v.SetConfigName("config")
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
				return Config{}, fmt.Errorf("read config: %w", err)
			}
		}
	}

	cfg := Config{
		RPCURL:        v.GetString("rpc"),
		PrivateKey:    v.GetString("private-key"),
		ChainID:       v.GetUint64("chain-id"),
		PGDSN:         v.GetString("pg-dsn"),
		StateFile:     v.GetString("state-file"),
		LightningURL:  v.GetString("lightning-url"),
		PayBaseline:   v.GetString("pay-baseline"),
		QuoteDelay:    v.GetDuration("quote-delay"),
		OracleBaseURL: v.GetString("oracle-url"),
		LogLevel:      v.GetString("log-level"),
	}

	if cfg.RPCURL == "" {
		return Config{}, fmt.Errorf("rpc url is required")
	}

	return cfg, nil
}
