package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoad_Defaults(t *testing.T) {
	cfg := Load()

	assert.Equal(t, "http", cfg.Engine.Kind)
	assert.Equal(t, "config.json", cfg.Board.ConfigPath)
	assert.Equal(t, 5*time.Minute, cfg.Refresh.Interval)
	assert.Equal(t, int64(10<<20), cfg.Engine.MaxBodyBytes)
	assert.Equal(t, 3*time.Second, cfg.Engine.EscalationDelay)
	assert.False(t, cfg.Auth.Enabled)
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("SCRAPEDECK_ENGINE", "browser")
	t.Setenv("SCRAPEDECK_CONFIG", "boards/news.yaml")
	t.Setenv("SCRAPEDECK_REFRESH_INTERVAL", "90s")
	t.Setenv("SCRAPEDECK_API_KEYS", " a, ,b ")
	t.Setenv("SCRAPEDECK_PORT", "not-a-number")
	t.Setenv("SCRAPEDECK_ESCALATION_DELAY", "500ms")

	cfg := Load()

	assert.Equal(t, "browser", cfg.Engine.Kind)
	assert.Equal(t, "boards/news.yaml", cfg.Board.ConfigPath)
	assert.Equal(t, 90*time.Second, cfg.Refresh.Interval)
	assert.Equal(t, []string{"a", "b"}, cfg.Auth.APIKeys)
	assert.Equal(t, 500*time.Millisecond, cfg.Engine.EscalationDelay)
	assert.Equal(t, 8080, cfg.Server.Port, "unparseable values fall back to the default")
}
