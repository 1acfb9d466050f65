package bootstrap

import (
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/target/gatekeeper/config"
)

func TestParseLevel(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, parseLevel("debug"))
	assert.Equal(t, slog.LevelWarn, parseLevel(" WARN "))
	assert.Equal(t, slog.LevelInfo, parseLevel(""))
	assert.Equal(t, slog.LevelInfo, parseLevel("verbose"))
}

func TestLoadConfig(t *testing.T) {
	t.Chdir(t.TempDir())

	t.Setenv("AUTH_SIGNING_KEY", "")
	cfg, err := LoadConfig()
	require.NoError(t, err)
	require.ErrorIs(t, cfg.Validate(), config.ErrSigningKeyTooShort)

	t.Setenv("AUTH_SIGNING_KEY", strings.Repeat("x", 48))
	t.Setenv("RATE_LIMIT_CAPACITY", "0")
	cfg, err = LoadConfig()
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())
	assert.Equal(t, 1, cfg.RateLimit.Capacity, "sanitized")
}
