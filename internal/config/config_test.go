package config

import (
	"log/slog"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var managedKeys = []string{
	"PORT", "DATABASE_URL", "APP_ENV", "LOG_LEVEL",
	"JWT_SECRET", "JWT_REFRESH_SECRET", "BCRYPT_COST",
	"GOOGLE_CLIENT_ID", "GOOGLE_CLIENT_SECRET", "GOOGLE_CALLBACK_URL",
	"FRONTEND_URL", "ALLOWED_ORIGINS", "COOKIE_SECURE", "COOKIE_SAMESITE",
	"THROTTLE_TTL", "THROTTLE_LIMIT", "RUN_MIGRATIONS",
}

func setEnv(t *testing.T, env map[string]string) {
	t.Helper()
	for _, k := range managedKeys {
		t.Setenv(k, "")
	}
	t.Setenv("JWT_SECRET", "access-secret")
	t.Setenv("JWT_REFRESH_SECRET", "refresh-secret")
	for k, v := range env {
		t.Setenv(k, v)
	}
}

func TestLoad_Defaults(t *testing.T) {
	setEnv(t, nil)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Port)
	assert.Equal(t, EnvDevelopment, cfg.Env)
	assert.False(t, cfg.IsProduction())
	assert.Equal(t, slog.LevelInfo, cfg.LogLevel)
	assert.Equal(t, 10, cfg.BcryptCost)
	assert.Equal(t, "http://localhost:3000", cfg.FrontendURL)
	assert.Equal(t, []string{"http://localhost:3000"}, cfg.AllowedOrigins)
	assert.True(t, cfg.CookieSecure)
	assert.Equal(t, http.SameSiteNoneMode, cfg.CookieSameSite)
	assert.Equal(t, time.Minute, cfg.ThrottleTTL)
	assert.Equal(t, 10, cfg.ThrottleLimit)
	assert.True(t, cfg.RunMigrations)
	assert.False(t, cfg.GoogleEnabled())
}

func TestLoad_Production(t *testing.T) {
	setEnv(t, map[string]string{
		"APP_ENV":         "production",
		"LOG_LEVEL":       "warn",
		"FRONTEND_URL":    "https://recipes.example.com/",
		"ALLOWED_ORIGINS": "https://recipes.example.com, https://admin.example.com/",
		"RUN_MIGRATIONS":  "false",
	})

	cfg, err := Load()
	require.NoError(t, err)

	assert.True(t, cfg.IsProduction())
	assert.Equal(t, slog.LevelWarn, cfg.LogLevel)
	assert.Equal(t, "https://recipes.example.com", cfg.FrontendURL)
	assert.Equal(t, []string{"https://recipes.example.com", "https://admin.example.com"}, cfg.AllowedOrigins)
	assert.Equal(t, http.SameSiteLaxMode, cfg.CookieSameSite)
	assert.False(t, cfg.RunMigrations)
}

func TestLoad_Google(t *testing.T) {
	setEnv(t, map[string]string{
		"GOOGLE_CLIENT_ID":     "id",
		"GOOGLE_CLIENT_SECRET": "secret",
		"GOOGLE_CALLBACK_URL":  "http://localhost:8080/auth/google/callback",
	})

	cfg, err := Load()
	require.NoError(t, err)
	assert.True(t, cfg.GoogleEnabled())
}

func TestLoad_Invalid(t *testing.T) {
	testCases := []struct {
		name string
		env  map[string]string
	}{
		{"missing access secret", map[string]string{"JWT_SECRET": ""}},
		{"missing refresh secret", map[string]string{"JWT_REFRESH_SECRET": ""}},
		{"shared secret", map[string]string{"JWT_REFRESH_SECRET": "access-secret"}},
		{"bad port", map[string]string{"PORT": "eighty"}},
		{"bad env", map[string]string{"APP_ENV": "staging"}},
		{"bad log level", map[string]string{"LOG_LEVEL": "loud"}},
		{"bad same site", map[string]string{"COOKIE_SAMESITE": "sideways"}},
		{"insecure none cookie", map[string]string{"COOKIE_SECURE": "false"}},
		{"zero throttle", map[string]string{"THROTTLE_LIMIT": "0"}},
		{"partial google", map[string]string{"GOOGLE_CLIENT_ID": "id"}},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			setEnv(t, tc.env)
			_, err := Load()
			assert.Error(t, err)
		})
	}
}

func TestLoad_InsecureCookieWithLax(t *testing.T) {
	setEnv(t, map[string]string{"COOKIE_SECURE": "false", "COOKIE_SAMESITE": "lax"})

	cfg, err := Load()
	require.NoError(t, err)
	assert.False(t, cfg.CookieSecure)
	assert.Equal(t, http.SameSiteLaxMode, cfg.CookieSameSite)
}
