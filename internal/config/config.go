package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// Config holds all configuration for the application.
type Config struct {
	Binance  Binance  `mapstructure:"binance"`
	Recon    Recon    `mapstructure:"recon"`
	Logger   Logger   `mapstructure:"logger"`
	Database Database `mapstructure:"database"`
}

// Binance holds the configuration for the Binance API.
type Binance struct {
	ApiKey         string  `mapstructure:"apiKey"`
	SecretKey      string  `mapstructure:"secretKey"`
	Testnet        bool    `mapstructure:"testnet"`
	RateLimit      float64 `mapstructure:"rate_limit"`
	RateLimitBurst int     `mapstructure:"rate_limit_burst"`
}

// Database holds the configuration for the database.
type Database struct {
	DSN string `mapstructure:"dsn"`
}

// Recon holds the configuration for the position reconstruction engine.
type Recon struct {
	// Exchange is the identifier stamped on persisted records and used in
	// deduplication identity keys.
	Exchange string `mapstructure:"exchange"`
	// Symbols lists the exchange-reported symbols whose fills are fetched.
	Symbols []string `mapstructure:"symbols"`
	// QuoteAssets lists the quote-asset suffixes recognized when splitting
	// an exchange symbol into base and quote, e.g. ["USDT", "USDC"].
	QuoteAssets []string `mapstructure:"quote_assets"`
	// DustThreshold is the quantity below which floating-point residue is
	// treated as zero.
	DustThreshold float64 `mapstructure:"dust_threshold"`
	// FundingGraceMs widens the [open, close] window when attributing
	// funding income to a position, to absorb settlement timing skew.
	FundingGraceMs int64 `mapstructure:"funding_grace_ms"`
	// FundingGraceMsOverrides maps an exchange identifier to a grace window
	// that replaces FundingGraceMs for that exchange.
	FundingGraceMsOverrides map[string]int64 `mapstructure:"funding_grace_ms_overrides"`
	// WindowDays is how far back the connector fetches fills and funding.
	WindowDays int `mapstructure:"window_days"`
	// Workers bounds the number of symbols matched concurrently.
	Workers int `mapstructure:"workers"`
}

// Logger holds the configuration for the logger.
type Logger struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// FundingGraceFor returns the funding grace window for an exchange,
// falling back to the global default when no override is configured.
func (r *Recon) FundingGraceFor(exchange string) int64 {
	if ms, ok := r.FundingGraceMsOverrides[exchange]; ok {
		return ms
	}
	return r.FundingGraceMs
}

// Validate checks the configuration the reconstruction engine cannot run
// without. An invalid engine config is the only fatal condition in the
// pipeline; everything downstream is skip-and-continue.
func (c *Config) Validate() error {
	if len(c.Recon.QuoteAssets) == 0 {
		return fmt.Errorf("config: recon.quote_assets must list at least one recognized quote asset")
	}
	if c.Recon.DustThreshold <= 0 {
		return fmt.Errorf("config: recon.dust_threshold must be positive, got %g", c.Recon.DustThreshold)
	}
	if c.Recon.Workers <= 0 {
		return fmt.Errorf("config: recon.workers must be positive, got %d", c.Recon.Workers)
	}
	return nil
}

// LoadConfig reads configuration from file or environment variables.
func LoadConfig(path string) (config Config, err error) {
	viper.AddConfigPath(path)
	viper.SetConfigName("config") // name of config file (without extension)
	viper.SetConfigType("yml")    // or yaml, json

	// Allow environment variables to override config file
	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// Set default values
	viper.SetDefault("binance.rate_limit", 20)      // requests per second
	viper.SetDefault("binance.rate_limit_burst", 5) // burst size
	viper.SetDefault("recon.exchange", "binance")
	viper.SetDefault("recon.dust_threshold", 1e-12)
	viper.SetDefault("recon.funding_grace_ms", 0)
	viper.SetDefault("recon.window_days", 30)
	viper.SetDefault("recon.workers", 4)

	err = viper.ReadInConfig()
	if err != nil {
		return
	}

	err = viper.Unmarshal(&config)
	if err != nil {
		return
	}

	err = config.Validate()
	return
}
