package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfig_Defaults(t *testing.T) {
	t.Setenv("DB_DRIVER", "")
	t.Setenv("MRN_PREFIX", "")

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, "mysql", cfg.Database.Driver)
	assert.Equal(t, "BCH", cfg.Hospital.MRNPrefix)
	assert.Equal(t, 5, cfg.Security.LockoutThreshold)
	assert.Equal(t, 15*time.Minute, cfg.JWT.AccessTokenExpiry)
}

func TestLoadConfig_Overrides(t *testing.T) {
	t.Setenv("DB_DRIVER", "postgres")
	t.Setenv("DB_PORT", "5432")
	t.Setenv("ALLOWED_ORIGINS", "https://a.example, https://b.example,")
	t.Setenv("LOCKOUT_THRESHOLD", "3")
	t.Setenv("ACCESS_TOKEN_EXPIRY", "5m")

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.CORS.AllowedOrigins)
	assert.Equal(t, 3, cfg.Security.LockoutThreshold)
	assert.Equal(t, 5*time.Minute, cfg.JWT.AccessTokenExpiry)
	assert.Contains(t, cfg.Database.DSN(), "port=5432")
}

func TestLoadConfig_Invalid(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
	}{
		{"unknown driver", map[string]string{"DB_DRIVER": "oracle"}},
		{"prefix with dash", map[string]string{"MRN_PREFIX": "B-CH"}},
		{"weak secret in release", map[string]string{"GIN_MODE": "release", "JWT_ACCESS_SECRET": "short"}},
		{"zero lockout", map[string]string{"LOCKOUT_THRESHOLD": "0"}},
		{"zero sweep interval", map[string]string{"SESSION_SWEEP_INTERVAL": "0s"}},
		{"negative sweep interval", map[string]string{"SESSION_SWEEP_INTERVAL": "-1m"}},
		{"zero login rate", map[string]string{"LOGIN_RATE_PER_MINUTE": "0"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			_, err := LoadConfig()
			assert.Error(t, err)
		})
	}
}

func TestHospitalConfig_Location(t *testing.T) {
	assert.Equal(t, time.UTC, HospitalConfig{Timezone: "Not/AZone"}.Location())
	assert.Equal(t, "UTC", HospitalConfig{Timezone: "UTC"}.Location().String())
}
