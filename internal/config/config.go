// Package config loads server settings from the environment, with an
// optional .env file in the working directory.
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/atmx/bond-market/internal/address"
	"github.com/atmx/bond-market/internal/settlement"
	"github.com/atmx/bond-market/internal/wallet"
)

// Config holds everything cmd/server needs to start.
type Config struct {
	Port        string
	DatabaseURL string
	RedisURL    string
	CacheTTL    time.Duration

	ProgramID address.ID

	AdminSecretKey   string
	AdminKeypairPath string

	BootstrapQuoteMint bool
	QuoteMintDecimals  uint8
}

// Load reads .env if present and then the process environment. Environment
// variables win over .env entries.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("config: read .env: %w", err)
	}
	return fromViper(newViper())
}

func newViper() *viper.Viper {
	v := viper.New()
	v.AutomaticEnv()
	v.SetDefault("PORT", "8080")
	v.SetDefault("CACHE_TTL", 30*time.Second)
	v.SetDefault("GENESIS_QUOTE_MINT_DECIMALS", 6)
	v.SetDefault("BOOTSTRAP_QUOTE_MINT", false)
	return v
}

func fromViper(v *viper.Viper) (*Config, error) {
	cfg := &Config{
		Port:               v.GetString("PORT"),
		DatabaseURL:        v.GetString("DATABASE_URL"),
		RedisURL:           v.GetString("REDIS_URL"),
		CacheTTL:           v.GetDuration("CACHE_TTL"),
		AdminSecretKey:     v.GetString("ADMIN_SECRET_KEY"),
		AdminKeypairPath:   v.GetString("ADMIN_KEYPAIR_PATH"),
		BootstrapQuoteMint: v.GetBool("BOOTSTRAP_QUOTE_MINT"),
		ProgramID:          settlement.DefaultProgramID,
	}

	decimals := v.GetInt("GENESIS_QUOTE_MINT_DECIMALS")
	if decimals < 0 || decimals > 18 {
		return nil, fmt.Errorf("config: GENESIS_QUOTE_MINT_DECIMALS %d out of range", decimals)
	}
	cfg.QuoteMintDecimals = uint8(decimals)

	if cfg.CacheTTL <= 0 {
		return nil, fmt.Errorf("config: CACHE_TTL must be positive")
	}

	if s := v.GetString("PROGRAM_ID"); s != "" {
		id, err := address.Parse(s)
		if err != nil {
			return nil, fmt.Errorf("config: PROGRAM_ID: %w", err)
		}
		cfg.ProgramID = id
	}
	return cfg, nil
}

// AdminKeypair resolves the admin identity: ADMIN_SECRET_KEY first, then
// ADMIN_KEYPAIR_PATH. With neither set it generates a throwaway key and
// reports ephemeral=true.
func (c *Config) AdminKeypair() (kp *wallet.Keypair, ephemeral bool, err error) {
	switch {
	case c.AdminSecretKey != "":
		kp, err = wallet.ParseSecretKeyJSON(c.AdminSecretKey)
		if err != nil {
			return nil, false, fmt.Errorf("config: ADMIN_SECRET_KEY: %w", err)
		}
		return kp, false, nil
	case c.AdminKeypairPath != "":
		kp, err = wallet.LoadFile(c.AdminKeypairPath)
		if err != nil {
			return nil, false, fmt.Errorf("config: ADMIN_KEYPAIR_PATH: %w", err)
		}
		return kp, false, nil
	default:
		kp, err = wallet.Generate()
		return kp, true, err
	}
}
