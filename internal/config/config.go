package config

import (
	"strings"

	"github.com/spf13/viper"
)

// Config holds all configuration for the application.
type Config struct {
	Quote    Quote    `mapstructure:"quote"`
	Ledger   Ledger   `mapstructure:"ledger"`
	Logger   Logger   `mapstructure:"logger"`
	Server   Server   `mapstructure:"server"`
	Database Database `mapstructure:"database"`
}

// Quote holds the configuration for the stock quote API.
type Quote struct {
	BaseURL        string  `mapstructure:"base_url"`
	ApiKey         string  `mapstructure:"api_key"`
	RateLimit      float64 `mapstructure:"rate_limit"`
	RateLimitBurst int     `mapstructure:"rate_limit_burst"`
	// TimeoutSeconds bounds a single price lookup.
	TimeoutSeconds int `mapstructure:"timeout"`
}

// Ledger holds the configuration for the trading ledger.
type Ledger struct {
	MinimumDeposit string   `mapstructure:"minimum_deposit"`
	OpeningBalance string   `mapstructure:"opening_balance"`
	SeedUsers      []string `mapstructure:"seed_users"`
}

// Server holds the configuration for the API server.
type Server struct {
	Port int `mapstructure:"port"`
}

// Database holds the configuration for the database.
type Database struct {
	DSN string `mapstructure:"dsn"`
}

// Logger holds the configuration for the logger.
type Logger struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
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
	viper.SetDefault("quote.base_url", "https://api.tiingo.com")
	viper.SetDefault("quote.rate_limit", 20) // requests per second
	viper.SetDefault("quote.rate_limit_burst", 5)
	viper.SetDefault("quote.timeout", 5)
	viper.SetDefault("ledger.minimum_deposit", "1.00")
	viper.SetDefault("ledger.opening_balance", "10000.00")
	viper.SetDefault("server.port", 8080)
	viper.SetDefault("database.dsn", "broker.db")

	err = viper.ReadInConfig()
	if err != nil {
		return
	}

	err = viper.Unmarshal(&config)
	return
}
