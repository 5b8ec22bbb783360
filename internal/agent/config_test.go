package agent

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLoadConfigDefaults(t *testing.T) {
	for _, key := range []string{
		"NVLOCKD_DEBUG", "NVLOCKD_OVERSUBSCRIBE", "NVLOCKD_POD_NAME",
		"NVLOCKD_ORCHESTRATED", "NVLOCKD_MEMORY_RESERVE_BYTES", "NVLOCKD_SOCKET_DIR",
	} {
		t.Setenv(key, "")
	}

	cfg := LoadConfig()
	require.False(t, cfg.Debug)
	require.False(t, cfg.Oversubscribe)
	require.Equal(t, "none", cfg.PodName)
	require.Equal(t, "none", cfg.PodNamespace)
	require.Equal(t, uint64(defaultMemoryReserveBytes), cfg.MemoryReserveBytes)
	require.Equal(t, "/var/run/nvlockd", cfg.SocketDir)
}

func TestLoadConfigOverrides(t *testing.T) {
	t.Setenv("NVLOCKD_DEBUG", "true")
	t.Setenv("NVLOCKD_OVERSUBSCRIBE", "on")
	t.Setenv("NVLOCKD_POD_NAME", "inference-7")
	t.Setenv("NVLOCKD_MEMORY_RESERVE_BYTES", "1048576")

	cfg := LoadConfig()
	require.True(t, cfg.Debug)
	require.True(t, cfg.Oversubscribe)
	require.Equal(t, "inference-7", cfg.PodName)
	require.Equal(t, uint64(1048576), cfg.MemoryReserveBytes)
}
