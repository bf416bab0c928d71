package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	Reset()
	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, 10240, cfg.EventBufferCapacity)
	require.Equal(t, 4096, cfg.ClientBufferCapacity)
	require.Equal(t, time.Second, cfg.PublishInterval)
	require.Equal(t, time.Hour, cfg.Retention)
	require.Equal(t, "127.0.0.1:6669", cfg.ServerAddr)
	require.Empty(t, cfg.RecordingPath)
}

func TestLoadEnvOverride(t *testing.T) {
	Reset()
	t.Setenv("CONSOLE_SERVER_ADDR", "0.0.0.0:9000")
	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, "0.0.0.0:9000", cfg.ServerAddr)
}
