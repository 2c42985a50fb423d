package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromEnvDefaults(t *testing.T) {
	t.Setenv("API_BASE_URL", "")
	t.Setenv("OFFLINE_MODE", "")
	t.Setenv("MIRROR_BACKEND", "")

	cfg := FromEnv()
	assert.Equal(t, "http://localhost:8000", cfg.APIBaseURL)
	assert.False(t, cfg.OfflineMode)
	assert.Equal(t, "sqlite", cfg.MirrorBackend)
	assert.Equal(t, "rural_learning_", cfg.MirrorPrefix)
	assert.Equal(t, 10*time.Second, cfg.HTTPTimeout)
	assert.Equal(t, []string{"*"}, cfg.CORSOrigins)
	assert.Equal(t, 30*time.Second, cfg.StateReloadInterval)
	require.NoError(t, cfg.Validate())
}

func TestFromEnvOverrides(t *testing.T) {
	t.Setenv("API_BASE_URL", "http://backend:9000/")
	t.Setenv("OFFLINE_MODE", "1")
	t.Setenv("HTTP_TIMEOUT", "250ms")
	t.Setenv("RATE_LIMIT_PER_MIN", "7")
	t.Setenv("MIRROR_POLICY", "append")
	t.Setenv("CORS_ORIGINS", "https://a.example, ,https://b.example")

	cfg := FromEnv()
	assert.Equal(t, "http://backend:9000", cfg.APIBaseURL)
	assert.True(t, cfg.OfflineMode)
	assert.Equal(t, 250*time.Millisecond, cfg.HTTPTimeout)
	assert.Equal(t, 7, cfg.RateLimitPerMin)
	assert.Equal(t, "append", cfg.MirrorPolicy)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.CORSOrigins)
}

func TestInvalidValuesFallBack(t *testing.T) {
	t.Setenv("HTTP_TIMEOUT", "soon")
	t.Setenv("OFFLINE_MODE", "maybe")
	t.Setenv("RATE_LIMIT_PER_MIN", "lots")

	cfg := FromEnv()
	assert.Equal(t, 10*time.Second, cfg.HTTPTimeout)
	assert.False(t, cfg.OfflineMode)
	assert.Equal(t, 120, cfg.RateLimitPerMin)
	require.Len(t, cfg.Warnings, 3)
	assert.Contains(t, cfg.Warnings[0], "OFFLINE_MODE")
	assert.Contains(t, cfg.Warnings[1], "HTTP_TIMEOUT")
	assert.Contains(t, cfg.Warnings[2], "RATE_LIMIT_PER_MIN")
}

func TestBuildTimeOfflineOverride(t *testing.T) {
	old := forceOffline
	forceOffline = "true"
	defer func() { forceOffline = old }()

	t.Setenv("OFFLINE_MODE", "false")
	assert.True(t, FromEnv().OfflineMode)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*App)
		wantErr bool
	}{
		{name: "defaults", mutate: func(*App) {}},
		{name: "bad backend", mutate: func(c *App) { c.MirrorBackend = "floppy" }, wantErr: true},
		{name: "bad policy", mutate: func(c *App) { c.MirrorPolicy = "merge" }, wantErr: true},
		{name: "bad queue", mutate: func(c *App) { c.QueueBackend = "kafka" }, wantErr: true},
		{name: "no base url online", mutate: func(c *App) { c.APIBaseURL = "" }, wantErr: true},
		{name: "no base url offline", mutate: func(c *App) { c.APIBaseURL = ""; c.OfflineMode = true }},
		{name: "redis queue with memory mirror", mutate: func(c *App) { c.QueueBackend = "redis"; c.MirrorBackend = "memory" }, wantErr: true},
		{name: "redis queue with sqlite mirror", mutate: func(c *App) { c.QueueBackend = "redis"; c.MirrorBackend = "sqlite" }},
		{name: "redis queue without reload interval", mutate: func(c *App) { c.QueueBackend = "redis"; c.MirrorBackend = "sqlite"; c.StateReloadInterval = 0 }, wantErr: true},
		{name: "dev key in production", mutate: func(c *App) { c.Env = "production"; c.JWTSigningKey = DevSigningKey }, wantErr: true},
		{name: "real key in production", mutate: func(c *App) { c.Env = "production"; c.JWTSigningKey = "s3cret" }},
		{name: "dev key in dev", mutate: func(c *App) { c.Env = "dev"; c.JWTSigningKey = DevSigningKey }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("API_BASE_URL", "")
			cfg := FromEnv()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
