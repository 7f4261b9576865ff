package config

import (
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"
)

type Config struct {
	AppName string `mapstructure:"APP_NAME"`
	Port    string `mapstructure:"PORT"`

	// Optional Postgres DSN. Empty means in-memory inventory and ledger.
	DatabaseURL string `mapstructure:"DATABASE_URL"`

	CORSOrigins string `mapstructure:"CORS_ORIGINS"`
	DataDir     string `mapstructure:"DATA_DIR"`

	// Balance lookup configuration.
	BalanceAPIEndpoints  string        `mapstructure:"BALANCE_API_ENDPOINTS"`
	BalanceAPITimeout    time.Duration `mapstructure:"BALANCE_API_TIMEOUT"`
	PollInterval         time.Duration `mapstructure:"POLL_INTERVAL"`
	AmountTolerance      float64       `mapstructure:"AMOUNT_TOLERANCE"`
	MinConfirmations     int           `mapstructure:"MIN_CONFIRMATIONS"`
	MaxTransientFailures int           `mapstructure:"MAX_TRANSIENT_FAILURES"`

	// Order and delivery configuration.
	OrderTTL           time.Duration `mapstructure:"ORDER_TTL"`
	RequiredImageCount int           `mapstructure:"REQUIRED_IMAGE_COUNT"`

	// Admin panel configuration.
	AdminPasswordHash     string        `mapstructure:"ADMIN_PASSWORD_HASH"`
	AdminSessionTTL       time.Duration `mapstructure:"ADMIN_SESSION_TTL"`
	AdminMaxLoginAttempts int           `mapstructure:"ADMIN_MAX_LOGIN_ATTEMPTS"`
	AdminLoginLockout     time.Duration `mapstructure:"ADMIN_LOGIN_LOCKOUT"`

	// Catalog reference data, comma separated.
	Locations    string `mapstructure:"LOCATIONS"`
	ProductTiers string `mapstructure:"PRODUCT_TIERS"`
}

// LoadConfig reads app.env from path if present, then environment
// variables, falling back to defaults for everything else.
func LoadConfig(path string) (config Config, err error) {
	viper.AddConfigPath(path)
	viper.SetConfigName("app")
	viper.SetConfigType("env")

	viper.AutomaticEnv()

	viper.SetDefault("APP_NAME", "storefront-api")
	viper.SetDefault("PORT", "8080")
	viper.SetDefault("DATABASE_URL", "")
	viper.SetDefault("CORS_ORIGINS", "http://localhost:5173,http://127.0.0.1:5173")
	viper.SetDefault("DATA_DIR", "./data")

	viper.SetDefault("BALANCE_API_ENDPOINTS", strings.Join([]string{
		"https://insight.dashevo.org/insight-api/addr",
		"https://explorer.dash.org/insight-api/addr",
		"https://api.blockcypher.com/v1/dash/main/addrs",
	}, ","))
	viper.SetDefault("BALANCE_API_TIMEOUT", "10s")
	viper.SetDefault("POLL_INTERVAL", "10s")
	viper.SetDefault("AMOUNT_TOLERANCE", 0.001)
	viper.SetDefault("MIN_CONFIRMATIONS", 1)
	viper.SetDefault("MAX_TRANSIENT_FAILURES", 3)

	viper.SetDefault("ORDER_TTL", "15m")
	viper.SetDefault("REQUIRED_IMAGE_COUNT", 1)

	viper.SetDefault("ADMIN_PASSWORD_HASH", "")
	viper.SetDefault("ADMIN_SESSION_TTL", "30m")
	viper.SetDefault("ADMIN_MAX_LOGIN_ATTEMPTS", 5)
	viper.SetDefault("ADMIN_LOGIN_LOCKOUT", "5m")

	viper.SetDefault("LOCATIONS", "Kentron,Komitas,Ajapnyak,Masiv,Nor Norq")
	viper.SetDefault("PRODUCT_TIERS", "0.5G=26,1.0G=35")

	if err = viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			log.Info().Msg("No config file found, using environment variables and defaults.")
			err = nil
		} else {
			log.Error().Err(err).Msg("Error reading config file")
			return
		}
	}

	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	err = viper.Unmarshal(&config)
	return
}

// SplitCSV splits a comma separated config value, dropping empty parts.
func SplitCSV(input string) []string {
	if input == "" {
		return nil
	}
	parts := strings.Split(input, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		out = append(out, part)
	}
	return out
}
