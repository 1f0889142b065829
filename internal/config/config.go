package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config holds every tunable the server reads at startup. It is built once
// from the environment and passed by value into the components that need it;
// nothing mutates it after construction.
type Config struct {
	Addr    string
	LogFile string

	MaxRooms          int
	MaxPlayersPerRoom int

	// Economy. Gold and lives are pooled per room: the per-player values
	// below are multiplied by the player count at game start.
	StartGold       int
	StartLives      int
	SharedResources bool // "shared" vs "individual"; both pool today

	TowerCosts        map[string]int
	UpgradeMultiplier map[int]float64 // keyed by target level
	SellRefundPercent float64

	ResearchCosts map[string]int

	// Wave pacing.
	SpawnInterval      time.Duration
	MoveInterval       time.Duration
	PathLength         int
	EnemyBaseHealth    int
	EnemyHealthPerWave int
	EnemyReward        int
	EnemyXP            int
	WaveBonusBase      int
	WaveBonusPerWave   int
}

func Default() Config {
	return Config{
		Addr:              ":8080",
		LogFile:           "towerdef.log",
		MaxRooms:          64,
		MaxPlayersPerRoom: 4,
		StartGold:         200,
		StartLives:        20,
		SharedResources:   true,
		TowerCosts: map[string]int{
			"arrow":  50,
			"cannon": 75,
			"frost":  60,
			"sniper": 100,
		},
		UpgradeMultiplier: map[int]float64{2: 1.5, 3: 2.25},
		SellRefundPercent: 0.7,
		ResearchCosts: map[string]int{
			"piercing":  150,
			"slowing":   200,
			"splash":    250,
			"longshot":  300,
			"alchemy":   400,
			"fortitude": 350,
		},
		SpawnInterval:      time.Second,
		MoveInterval:       500 * time.Millisecond,
		PathLength:         20,
		EnemyBaseHealth:    40,
		EnemyHealthPerWave: 15,
		EnemyReward:        10,
		EnemyXP:            15,
		WaveBonusBase:      25,
		WaveBonusPerWave:   10,
	}
}

// FromEnv layers TD_* environment variables over the defaults.
func FromEnv() (Config, error) {
	cfg := Default()

	if v := os.Getenv("TD_ADDR"); v != "" {
		cfg.Addr = v
	}
	if v := os.Getenv("TD_LOG_FILE"); v != "" {
		cfg.LogFile = v
	}

	var err error
	if cfg.MaxRooms, err = intEnv("TD_MAX_ROOMS", cfg.MaxRooms); err != nil {
		return cfg, err
	}
	if cfg.MaxPlayersPerRoom, err = intEnv("TD_MAX_PLAYERS", cfg.MaxPlayersPerRoom); err != nil {
		return cfg, err
	}
	if cfg.StartGold, err = intEnv("TD_START_GOLD", cfg.StartGold); err != nil {
		return cfg, err
	}
	if cfg.StartLives, err = intEnv("TD_START_LIVES", cfg.StartLives); err != nil {
		return cfg, err
	}
	if cfg.PathLength, err = intEnv("TD_PATH_LENGTH", cfg.PathLength); err != nil {
		return cfg, err
	}
	if v := os.Getenv("TD_RESOURCE_MODE"); v != "" {
		cfg.SharedResources = v != "individual"
	}
	if v := os.Getenv("TD_SELL_REFUND_PCT"); v != "" {
		pct, perr := strconv.ParseFloat(v, 64)
		if perr != nil || pct < 0 || pct > 1 {
			return cfg, fmt.Errorf("config: bad TD_SELL_REFUND_PCT %q", v)
		}
		cfg.SellRefundPercent = pct
	}
	if v := os.Getenv("TD_SPAWN_INTERVAL_MS"); v != "" {
		ms, perr := strconv.Atoi(v)
		if perr != nil || ms <= 0 {
			return cfg, fmt.Errorf("config: bad TD_SPAWN_INTERVAL_MS %q", v)
		}
		cfg.SpawnInterval = time.Duration(ms) * time.Millisecond
	}
	if v := os.Getenv("TD_MOVE_INTERVAL_MS"); v != "" {
		ms, perr := strconv.Atoi(v)
		if perr != nil || ms <= 0 {
			return cfg, fmt.Errorf("config: bad TD_MOVE_INTERVAL_MS %q", v)
		}
		cfg.MoveInterval = time.Duration(ms) * time.Millisecond
	}

	return cfg, nil
}

func intEnv(key string, def int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return def, fmt.Errorf("config: bad %s %q", key, v)
	}
	return n, nil
}

// TowerCost returns the base cost for a tower type, or false for an unknown type.
func (c Config) TowerCost(towerType string) (int, bool) {
	cost, ok := c.TowerCosts[towerType]
	return cost, ok
}

// UpgradeCost is the gold price to bring a tower to targetLevel.
func (c Config) UpgradeCost(towerType string, targetLevel int) (int, bool) {
	base, ok := c.TowerCosts[towerType]
	if !ok {
		return 0, false
	}
	mult, ok := c.UpgradeMultiplier[targetLevel]
	if !ok {
		return 0, false
	}
	return round(float64(base) * mult), true
}

// InvestedGold is the total spent on a tower of the given type at the given
// level: base cost plus every upgrade paid to reach it. Sell refunds are a
// percentage of this value.
func (c Config) InvestedGold(towerType string, level int) int {
	base, ok := c.TowerCosts[towerType]
	if !ok {
		return 0
	}
	total := base
	for lvl := 2; lvl <= level; lvl++ {
		if mult, ok := c.UpgradeMultiplier[lvl]; ok {
			total += round(float64(base) * mult)
		}
	}
	return total
}

func (c Config) SellRefund(towerType string, level int) int {
	return round(float64(c.InvestedGold(towerType, level)) * c.SellRefundPercent)
}

func round(f float64) int {
	return int(f + 0.5)
}
