package config

import (
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	Port     string `toml:"port" envconfig:"PORT"`
	Env      string `toml:"env" envconfig:"ENV"`
	LogLevel string `toml:"log_level" envconfig:"LOG_LEVEL"`

	DBDriver string `toml:"db_driver" envconfig:"DB_DRIVER"`
	DBURL    string `toml:"db_url" envconfig:"DB_URL"`

	JWTSecret       string        `toml:"jwt_secret" envconfig:"JWT_SECRET"`
	AccessTokenTTL  time.Duration `toml:"access_token_ttl" envconfig:"ACCESS_TOKEN_TTL"`
	RefreshTokenTTL time.Duration `toml:"refresh_token_ttl" envconfig:"REFRESH_TOKEN_TTL"`

	OAuthTokenEndpoint string `toml:"oauth_token_endpoint" envconfig:"OAUTH_TOKEN_ENDPOINT"`
	OAuthUserEndpoint  string `toml:"oauth_user_endpoint" envconfig:"OAUTH_USER_ENDPOINT"`
	OAuthClientID      string `toml:"oauth_client_id" envconfig:"OAUTH_CLIENT_ID"`
	OAuthClientSecret  string `toml:"oauth_client_secret" envconfig:"OAUTH_CLIENT_SECRET"`

	CORSOrigins []string `toml:"cors_origins" envconfig:"CORS_ORIGINS"`

	AMQPURL      string `toml:"amqp_url" envconfig:"AMQP_URL"`
	AMQPExchange string `toml:"amqp_exchange" envconfig:"AMQP_EXCHANGE"`

	OTLPEndpoint string `toml:"otlp_endpoint" envconfig:"OTEL_EXPORTER_OTLP_ENDPOINT"`

	TwilioAccountSID  string `toml:"twilio_account_sid" envconfig:"TWILIO_ACCOUNT_SID"`
	TwilioAuthToken   string `toml:"twilio_auth_token" envconfig:"TWILIO_AUTH_TOKEN"`
	TwilioPhoneNumber string `toml:"twilio_phone_number" envconfig:"TWILIO_PHONE_NUMBER"`

	SweepSchedule    string `toml:"sweep_schedule" envconfig:"SWEEP_SCHEDULE"`
	GreetingSchedule string `toml:"greeting_schedule" envconfig:"GREETING_SCHEDULE"`
}

// Load starts from DefaultConfig, then applies .env, the optional TOML file
// at path and the process environment. Environment variables win.
func Load(path string) (Config, error) {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found")
	}

	cfg := DefaultConfig()
	if path != "" {
		if _, err := toml.DecodeFile(path, &cfg); err != nil {
			return cfg, fmt.Errorf("read config %s: %w", path, err)
		}
	}
	if err := envconfig.Process("", &cfg); err != nil {
		return cfg, fmt.Errorf("read environment: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// DefaultConfig holds the values used when neither the file nor the
// environment sets a field.
func DefaultConfig() Config {
	return Config{
		Port:             "8080",
		Env:              "development",
		LogLevel:         "info",
		DBDriver:         "postgres",
		AccessTokenTTL:   time.Hour,
		RefreshTokenTTL:  720 * time.Hour,
		CORSOrigins:      []string{"http://localhost:3000"},
		AMQPExchange:     "bookings",
		SweepSchedule:    "5 0 * * *",
		GreetingSchedule: "0 9 * * *",
	}
}

func (c Config) Validate() error {
	if c.JWTSecret == "" {
		return fmt.Errorf("JWT_SECRET not set")
	}
	switch c.DBDriver {
	case "postgres", "sqlite":
	default:
		return fmt.Errorf("unsupported DB_DRIVER %q", c.DBDriver)
	}
	if c.DBURL == "" {
		return fmt.Errorf("DB_URL not set")
	}
	return nil
}

func (c Config) Production() bool {
	return strings.EqualFold(c.Env, "production")
}

// TokenEndpoint is where the login proxy sends password and refresh grants.
// Without an explicit endpoint the built-in issuer of this process is used.
func (c Config) TokenEndpoint() string {
	if c.OAuthTokenEndpoint != "" {
		return c.OAuthTokenEndpoint
	}
	return "http://127.0.0.1:" + c.Port + "/oauth/token"
}

func (c Config) TwilioEnabled() bool {
	return c.TwilioAccountSID != "" && c.TwilioAuthToken != "" && c.TwilioPhoneNumber != ""
}
