package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("ENVIRONMENT", "development")
	t.Setenv("CORS_ALLOW_ORIGINS", "")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Server.Port)
	assert.Equal(t, 24, cfg.Gateway.TokenTTLHours)
	assert.Equal(t, "limey", cfg.NATS.SubjectPrefix)
	assert.Equal(t, []string{"http://localhost:5173"}, cfg.Server.AllowOrigins)
}

func TestLoadSliceEnv(t *testing.T) {
	t.Setenv("CORS_ALLOW_ORIGINS", "https://limey.tt, https://www.limey.tt,")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, []string{"https://limey.tt", "https://www.limey.tt"}, cfg.Server.AllowOrigins)
}

func TestValidateProduction(t *testing.T) {
	cfg := &Config{
		Environment: "production",
		Supabase:    SupabaseConfig{JWTSecret: "your-secret-key-change-in-production"},
	}
	assert.Error(t, cfg.Validate())

	cfg.Supabase.JWTSecret = "real-secret"
	assert.ErrorContains(t, cfg.Validate(), "database password")

	cfg.Database.Password = "pw"
	assert.ErrorContains(t, cfg.Validate(), "ADS_ADMIN_USER_ID")

	cfg.Ads.AdminUserID = "0b1f6c9e-2a4d-4a1e-9d0f-9a2b7c3d4e5f"
	assert.NoError(t, cfg.Validate())
}

func TestDSN(t *testing.T) {
	d := DatabaseConfig{Host: "db", Port: "5432", User: "u", Password: "p", Database: "limey", SSLMode: "require"}
	assert.Equal(t, "host=db port=5432 user=u password=p dbname=limey sslmode=require TimeZone=UTC", d.DSN())

	d.Password = ""
	assert.NotContains(t, d.DSN(), "password=")

	d.URL = "postgres://u:p@db:6543/postgres"
	assert.Equal(t, "postgres://u:p@db:6543/postgres", d.DSN())
}
