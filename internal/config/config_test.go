package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, ":8080", cfg.Addr)
	require.Equal(t, "http://127.0.0.1:3001", cfg.APIBase)
	require.Equal(t, "data/lovebox.db", cfg.CachePath)
	require.Equal(t, time.Second, cfg.CachePoll)
	require.Empty(t, cfg.BootstrapToken)
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("LOVEBOX_ADDR", ":9999")
	t.Setenv("LOVEBOX_TOKEN", "tok-from-env")
	t.Setenv("LOVEBOX_CACHE_POLL", "250ms")

	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, ":9999", cfg.Addr)
	require.Equal(t, "tok-from-env", cfg.BootstrapToken)
	require.Equal(t, 250*time.Millisecond, cfg.CachePoll)
}
