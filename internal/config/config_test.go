package config

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadRequiresSecrets(t *testing.T) {
	t.Setenv("JWT_SECRET", "")
	t.Setenv("AI_GATEWAY_API_KEY", "key")
	_, err := Load()
	assert.ErrorContains(t, err, "JWT_SECRET")

	t.Setenv("JWT_SECRET", "secret")
	t.Setenv("AI_GATEWAY_API_KEY", "")
	_, err = Load()
	assert.ErrorContains(t, err, "AI_GATEWAY_API_KEY")
}

func TestLoadDefaultsAndOverrides(t *testing.T) {
	t.Setenv("JWT_SECRET", "secret")
	t.Setenv("AI_GATEWAY_API_KEY", "key")
	t.Setenv("MINIMUM_BALANCE_SOL", "0.05")
	t.Setenv("CONFIRM_TIMEOUT", "45s")
	t.Setenv("MAX_IMAGE_BYTES", "not-a-number")
	t.Setenv("CORS_ALLOWED_ORIGINS", "https://a.example, https://b.example")

	cfg, err := Load()
	require.NoError(t, err)

	assert.True(t, cfg.Workflow.MinimumBalanceSOL.Equal(decimal.RequireFromString("0.05")))
	assert.Equal(t, 45*time.Second, cfg.Workflow.ConfirmTimeout)
	assert.Equal(t, int64(10<<20), cfg.Workflow.MaxImageBytes)
	assert.Equal(t, int64(50<<20), cfg.Workflow.MaxVideoBytes)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.Server.AllowedOrigins)
	assert.Equal(t, "token-images", cfg.Storage.Bucket)
	assert.Contains(t, cfg.GetDSN(), "dbname=")
}
