package app

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfigDefaults(t *testing.T) {
	t.Setenv("SESSION_SECRET", "s")
	t.Setenv("CSRF_SECRET", "c")

	cfg, err := LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, ":8080", cfg.AppAddr)
	assert.Equal(t, 2025, cfg.BudgetYear)
	assert.Equal(t, "FIN&CORP", cfg.SuperCostCenter)
	assert.Equal(t, time.Minute, cfg.AuthRecheck)
	assert.Equal(t, 30*time.Minute, cfg.UploadPreviewTTL)
	assert.False(t, cfg.IsProduction())
}

func TestLoadConfigRequiresSecrets(t *testing.T) {
	t.Setenv("SESSION_SECRET", "")
	t.Setenv("CSRF_SECRET", "c")

	_, err := LoadConfig()
	assert.Error(t, err)
}

func TestLoadConfigRejectsYearOutOfRange(t *testing.T) {
	t.Setenv("SESSION_SECRET", "s")
	t.Setenv("CSRF_SECRET", "c")
	t.Setenv("BUDGET_YEAR", "1999")

	_, err := LoadConfig()
	assert.EqualError(t, err, "budget year out of range")
}

func TestIsProduction(t *testing.T) {
	assert.True(t, (&Config{AppEnv: "production"}).IsProduction())
	assert.False(t, (*Config)(nil).IsProduction())
}
