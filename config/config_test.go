package config

import (
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
	"time"
)

func writeFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "roombooking.toml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoad_FileThenEnvironment(t *testing.T) {
	path := writeFile(t, `
port = "9000"
db_driver = "sqlite"
db_url = "file:bookings.db"
jwt_secret = "from-file"
access_token_ttl = "30m"
cors_origins = ["https://app.example.com"]
`)
	t.Setenv("JWT_SECRET", "from-env")
	t.Setenv("SWEEP_SCHEDULE", "0 1 * * *")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Port != "9000" {
		t.Errorf("Port = %q, want 9000", cfg.Port)
	}
	if cfg.JWTSecret != "from-env" {
		t.Errorf("JWTSecret = %q, want from-env", cfg.JWTSecret)
	}
	if cfg.AccessTokenTTL != 30*time.Minute {
		t.Errorf("AccessTokenTTL = %v, want 30m", cfg.AccessTokenTTL)
	}
	if cfg.RefreshTokenTTL != 720*time.Hour {
		t.Errorf("RefreshTokenTTL = %v, want the default 720h", cfg.RefreshTokenTTL)
	}
	if !reflect.DeepEqual(cfg.CORSOrigins, []string{"https://app.example.com"}) {
		t.Errorf("CORSOrigins = %v", cfg.CORSOrigins)
	}
	if cfg.SweepSchedule != "0 1 * * *" {
		t.Errorf("SweepSchedule = %q, want 0 1 * * *", cfg.SweepSchedule)
	}
	if cfg.GreetingSchedule != "0 9 * * *" {
		t.Errorf("GreetingSchedule = %q, want default", cfg.GreetingSchedule)
	}
}

func TestLoad_EnvironmentOnly(t *testing.T) {
	t.Setenv("JWT_SECRET", "s")
	t.Setenv("DB_URL", "postgres://localhost/bookings")
	t.Setenv("CORS_ORIGINS", "https://a.example.com,https://b.example.com")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.DBDriver != "postgres" || cfg.Port != "8080" {
		t.Errorf("defaults = %s/%s, want postgres/8080", cfg.DBDriver, cfg.Port)
	}
	if len(cfg.CORSOrigins) != 2 {
		t.Errorf("CORSOrigins = %v, want 2 entries", cfg.CORSOrigins)
	}
}

func TestValidate(t *testing.T) {
	base := DefaultConfig()
	base.JWTSecret = "s"
	base.DBURL = "x"

	tests := []struct {
		name string
		edit func(*Config)
		want string
	}{
		{"valid", func(*Config) {}, ""},
		{"missing secret", func(c *Config) { c.JWTSecret = "" }, "JWT_SECRET"},
		{"missing url", func(c *Config) { c.DBURL = "" }, "DB_URL"},
		{"bad driver", func(c *Config) { c.DBDriver = "mysql" }, "DB_DRIVER"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := base
			tt.edit(&cfg)
			err := cfg.Validate()
			if tt.want == "" {
				if err != nil {
					t.Errorf("Validate() = %v, want nil", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Errorf("Validate() = %v, want mention of %s", err, tt.want)
			}
		})
	}
}

func TestTokenEndpoint(t *testing.T) {
	cfg := DefaultConfig()
	if got := cfg.TokenEndpoint(); got != "http://127.0.0.1:8080/oauth/token" {
		t.Errorf("TokenEndpoint() = %q", got)
	}
	cfg.OAuthTokenEndpoint = "https://id.example.com/oauth/token"
	if got := cfg.TokenEndpoint(); got != cfg.OAuthTokenEndpoint {
		t.Errorf("TokenEndpoint() = %q, want the configured endpoint", got)
	}
}

func TestTwilioEnabled(t *testing.T) {
	cfg := DefaultConfig()
	if cfg.TwilioEnabled() {
		t.Error("TwilioEnabled() = true without credentials")
	}
	cfg.TwilioAccountSID, cfg.TwilioAuthToken, cfg.TwilioPhoneNumber = "AC1", "tok", "+15550000000"
	if !cfg.TwilioEnabled() {
		t.Error("TwilioEnabled() = false with credentials")
	}
}
