package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfig_Defaults(t *testing.T) {
	t.Setenv("ENV", "test")
	cfg := LoadConfig()

	assert.Equal(t, 4000, cfg.ServerPort)
	assert.Equal(t, time.Hour, cfg.JWT.TTL)
	assert.Equal(t, "MC", cfg.UserCodePrefix)
	assert.False(t, cfg.RegisterIssuesToken)
	assert.Equal(t, uint32(64*1024), cfg.Argon2.MemoryKB)
	assert.Equal(t, "local", cfg.Storage.Backend)
	assert.Equal(t, "account-events", cfg.MQ.Channel)
	assert.Equal(t, []string{"http://localhost:5173"}, cfg.CORSAllowedOrigins)
}

func TestLoadConfig_Overrides(t *testing.T) {
	t.Setenv("ENV", "test")
	t.Setenv("JWT_SECRET", "  s3cret ")
	t.Setenv("JWT_EXPIRATION_TIME", "30m")
	t.Setenv("REGISTER_ISSUE_TOKEN", "true")
	t.Setenv("CORS_ALLOWED_ORIGINS", "https://a.example, ,https://b.example")
	t.Setenv("EMAIL_USER", "noreply@mouldconnect.test")
	t.Setenv("DB_USE_SSL", "not-a-bool")

	cfg := LoadConfig()

	assert.Equal(t, "s3cret", cfg.JWT.Secret)
	assert.Equal(t, 30*time.Minute, cfg.JWT.TTL)
	assert.True(t, cfg.RegisterIssuesToken)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.CORSAllowedOrigins)
	assert.Equal(t, "noreply@mouldconnect.test", cfg.Mail.From)
	assert.False(t, cfg.Database.UseSSL)
}

func TestLoadConfig_TokenTTLFormats(t *testing.T) {
	cases := map[string]time.Duration{
		"1h":      time.Hour,
		"90m":     90 * time.Minute,
		"3600":    time.Hour,
		"45s":     45 * time.Second,
		"7d":      7 * 24 * time.Hour,
		"2 days":  48 * time.Hour,
		"1w":      7 * 24 * time.Hour,
		"1.5h":    90 * time.Minute,
		"12 Hrs":  12 * time.Hour,
		"500ms":   500 * time.Millisecond,
		" 10m ":   10 * time.Minute,
		"1y":      8766 * time.Hour,
		"1h30m0s": 90 * time.Minute,
	}
	for raw, want := range cases {
		t.Run(raw, func(t *testing.T) {
			t.Setenv("ENV", "test")
			t.Setenv("JWT_EXPIRATION_TIME", raw)
			assert.Equal(t, want, LoadConfig().JWT.TTL)
		})
	}
}

func TestLoadConfig_InvalidTokenTTLFailsValidation(t *testing.T) {
	for _, raw := range []string{"soon", "7x", "d", "-5", "0"} {
		t.Run(raw, func(t *testing.T) {
			t.Setenv("ENV", "test")
			t.Setenv("JWT_SECRET", "s")
			t.Setenv("JWT_EXPIRATION_TIME", raw)
			t.Setenv("NOTIFIER_BACKEND", "log")
			t.Setenv("STORAGE_BACKEND", "local")
			t.Setenv("MQ_BACKEND", "")

			cfg := LoadConfig()
			assert.LessOrEqual(t, cfg.JWT.TTL, time.Duration(0))
			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), "JWT_EXPIRATION_TIME")
		})
	}
}

func TestValidate(t *testing.T) {
	valid := Config{
		JWT:     JWTConfig{Secret: "s", TTL: time.Hour},
		Mail:    MailConfig{Backend: "log"},
		Storage: StorageConfig{Backend: "local"},
	}
	require.NoError(t, valid.Validate())

	cases := map[string]func(c *Config){
		"JWT_SECRET":          func(c *Config) { c.JWT.Secret = "" },
		"JWT_EXPIRATION_TIME": func(c *Config) { c.JWT.TTL = 0 },
		"NOTIFIER_BACKEND":    func(c *Config) { c.Mail.Backend = "sms" },
		"STORAGE_BACKEND":     func(c *Config) { c.Storage.Backend = "s3" },
		"MQ_BACKEND":          func(c *Config) { c.MQ.Backend = "kafka" },
	}
	for want, mutate := range cases {
		t.Run(want, func(t *testing.T) {
			c := valid
			mutate(&c)
			err := c.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), want)
		})
	}
}
