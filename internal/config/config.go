package config

import (
	"time"

	"github.com/spf13/viper"
)

// Config stores all configuration for the application.
type Config struct {
	ServerPort  string `mapstructure:"SERVER_PORT"`
	PostgresURL string `mapstructure:"POSTGRES_URL"`
	RedisAddr   string `mapstructure:"REDIS_ADDR"`

	DoHEndpoint    string `mapstructure:"DOH_ENDPOINT"`
	FetchTimeout   int    `mapstructure:"FETCH_TIMEOUT"`   // seconds, main page fetch
	BulkWorkers    int    `mapstructure:"BULK_WORKERS"`    // bulk re-scan concurrency
	RescanCooldown int    `mapstructure:"RESCAN_COOLDOWN"` // hours before a domain is re-scanned
}

// Load reads configuration from file or environment variables.
func Load() (*Config, error) {
	viper.SetConfigFile(".env")
	viper.SetConfigType("env")
	viper.AutomaticEnv()

	// Attempt to read the .env file, but don't fail if it's not present.
	// This allows configuration purely through environment variables in production.
	_ = viper.ReadInConfig()

	viper.SetDefault("SERVER_PORT", "8080")
	viper.SetDefault("REDIS_ADDR", "localhost:6379")
	viper.SetDefault("DOH_ENDPOINT", "https://cloudflare-dns.com/dns-query")
	viper.SetDefault("FETCH_TIMEOUT", 30)
	viper.SetDefault("BULK_WORKERS", 3)
	viper.SetDefault("RESCAN_COOLDOWN", 24)

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// RescanTTL is the recent-scan cache TTL derived from the cooldown.
func (c *Config) RescanTTL() time.Duration {
	return time.Duration(c.RescanCooldown) * time.Hour
}
