// Package config loads service configuration from a yaml file with
// environment overrides.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config is the main application configuration struct.
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	Loans    LoansConfig    `mapstructure:"loans"`
	Savings  SavingsConfig  `mapstructure:"savings"`
	Logging  LoggingConfig  `mapstructure:"logging"`
}

type ServerConfig struct {
	Address string `mapstructure:"address"`
}

type DatabaseConfig struct {
	Path string `mapstructure:"path"`
}

type LoansConfig struct {
	// AnnualInterestRate is the product APR applied to new applications,
	// e.g. "0.15" for 15%.
	AnnualInterestRate string `mapstructure:"annual_interest_rate"`
	MaxTermMonths      int    `mapstructure:"max_term_months"`
}

type SavingsConfig struct {
	RegularAnnualRate      string        `mapstructure:"regular_annual_rate"`
	FixedDepositAnnualRate string        `mapstructure:"fixed_deposit_annual_rate"`
	AccrualInterval        time.Duration `mapstructure:"accrual_interval"`
}

type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// Load reads config.yaml (if present), merges environment variables and
// applies defaults. Env keys are uppercased with dots replaced by
// underscores, e.g. SERVER_ADDRESS.
func Load() (*Config, error) {
	_ = godotenv.Load()

	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath("./configs")
	viper.AddConfigPath(".")

	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	viper.AutomaticEnv()

	applyDefaults()

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config: %w", err)
		}
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	return &cfg, nil
}

func applyDefaults() {
	viper.SetDefault("server.address", ":8080")
	viper.SetDefault("database.path", "sacco.db")
	viper.SetDefault("loans.annual_interest_rate", "0.15")
	viper.SetDefault("loans.max_term_months", 60)
	viper.SetDefault("savings.regular_annual_rate", "0.05")
	viper.SetDefault("savings.fixed_deposit_annual_rate", "0.08")
	viper.SetDefault("savings.accrual_interval", 24*time.Hour)
	viper.SetDefault("logging.level", "info")
	viper.SetDefault("logging.format", "json")
}
