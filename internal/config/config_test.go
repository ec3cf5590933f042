package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoad_Defaults(t *testing.T) {
	for _, k := range []string{"PORT", "PROGRESS_BACKEND", "TEST_SIZE", "TEST_SLOTS", "REDIS_TTL", "PASS_PERCENT"} {
		t.Setenv(k, "")
	}

	cfg := Load()
	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, "postgres", cfg.ProgressBackend)
	assert.Equal(t, 50, cfg.TestSize)
	assert.Equal(t, 4, cfg.TestSlots)
	assert.Equal(t, 10*time.Minute, cfg.RedisTTL)
	assert.Equal(t, 80, cfg.PassPercent)
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("PROGRESS_BACKEND", "sqlite")
	t.Setenv("TEST_SLOTS", "12")
	t.Setenv("FREE_TEST_SLOTS", "not-a-number")
	t.Setenv("REDIS_TTL", "90s")
	t.Setenv("DB_NAME", "dmv_test")

	cfg := Load()
	assert.Equal(t, "sqlite", cfg.ProgressBackend)
	assert.Equal(t, 12, cfg.TestSlots)
	assert.Equal(t, 3, cfg.FreeTestSlots)
	assert.Equal(t, 90*time.Second, cfg.RedisTTL)
	assert.Equal(t, "dmv_test", cfg.DB.Name)
}
