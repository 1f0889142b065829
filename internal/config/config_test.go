package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestUpgradeCost(t *testing.T) {
	cfg := Default()

	cost, ok := cfg.UpgradeCost("arrow", 2)
	require.True(t, ok)
	require.Equal(t, 75, cost) // round(50 * 1.5)

	cost, ok = cfg.UpgradeCost("arrow", 3)
	require.True(t, ok)
	require.Equal(t, 113, cost) // round(50 * 2.25)

	_, ok = cfg.UpgradeCost("arrow", 4)
	require.False(t, ok)
	_, ok = cfg.UpgradeCost("ballista", 2)
	require.False(t, ok)
}

func TestSellRefundTracksInvestedGold(t *testing.T) {
	cfg := Default()

	// level 2 arrow: 50 base + 75 upgrade = 125 invested
	require.Equal(t, 125, cfg.InvestedGold("arrow", 2))
	require.Equal(t, 88, cfg.SellRefund("arrow", 2)) // round(125 * 0.7)

	// level 1 tower refunds a share of the base cost only
	require.Equal(t, 50, cfg.InvestedGold("arrow", 1))
	require.Equal(t, 35, cfg.SellRefund("arrow", 1))

	require.Equal(t, 0, cfg.InvestedGold("ballista", 2))
}

func TestFromEnvOverrides(t *testing.T) {
	t.Setenv("TD_ADDR", ":9999")
	t.Setenv("TD_MAX_ROOMS", "8")
	t.Setenv("TD_START_GOLD", "500")
	t.Setenv("TD_RESOURCE_MODE", "individual")
	t.Setenv("TD_SELL_REFUND_PCT", "0.5")
	t.Setenv("TD_SPAWN_INTERVAL_MS", "250")

	cfg, err := FromEnv()
	require.NoError(t, err)
	require.Equal(t, ":9999", cfg.Addr)
	require.Equal(t, 8, cfg.MaxRooms)
	require.Equal(t, 500, cfg.StartGold)
	require.False(t, cfg.SharedResources)
	require.Equal(t, 0.5, cfg.SellRefundPercent)
	require.Equal(t, 250*time.Millisecond, cfg.SpawnInterval)
}

func TestFromEnvRejectsBadValues(t *testing.T) {
	t.Setenv("TD_MAX_ROOMS", "zero")
	_, err := FromEnv()
	require.Error(t, err)
}

func TestFromEnvDefaults(t *testing.T) {
	cfg, err := FromEnv()
	require.NoError(t, err)
	require.Equal(t, Default().MaxPlayersPerRoom, cfg.MaxPlayersPerRoom)
	require.True(t, cfg.SharedResources)
}
