package app

import (
	"bytes"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/text/language"
)

func TestLoadConfigDefaults(t *testing.T) {
	t.Setenv("PG_DSN", "postgres://u:p@db:5432/fabtrack")
	t.Setenv("LOG_LEVEL", "debug")

	cfg, err := LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, ":8080", cfg.AppAddr)
	assert.Equal(t, 5*time.Minute, cfg.CatalogCacheTTL)
	assert.Equal(t, 120, cfg.RateLimitPerMinute)
	assert.False(t, cfg.MigrateOnStart)
	assert.Equal(t, slog.LevelDebug, cfg.LogLevel)
	assert.Equal(t, language.AmericanEnglish, cfg.ReportTag())
	assert.False(t, cfg.IsProduction())
}

func TestConfigValidate(t *testing.T) {
	base := Config{PGDSN: "postgres://x", RateLimitPerMinute: 10, ReportLanguage: "es-CL"}
	require.NoError(t, base.Validate())
	assert.Equal(t, "es-CL", base.ReportTag().String())

	noDSN := base
	noDSN.PGDSN = ""
	assert.Error(t, noDSN.Validate())

	badRate := base
	badRate.RateLimitPerMinute = 0
	assert.Error(t, badRate.Validate())

	badLang := base
	badLang.ReportLanguage = "not a tag!"
	assert.Error(t, badLang.Validate())
}

func TestLoggerFormat(t *testing.T) {
	var buf bytes.Buffer
	newLogger(&buf, &Config{LogFormat: "json"}).Info("hello")
	assert.True(t, strings.HasPrefix(buf.String(), "{"))

	buf.Reset()
	newLogger(&buf, &Config{LogFormat: "pretty", LogLevel: slog.LevelWarn}).Info("hidden")
	assert.Empty(t, buf.String())
}
