package game

import (
	"errors"
	"sort"

	"towerdef/internal/protocol"
)

var (
	ErrInsufficientGold = errors.New("insufficient gold")
	ErrTowerNotFound    = errors.New("tower not found")
	ErrMaxLevel         = errors.New("tower already at max level")
	ErrEnemyNotFound    = errors.New("enemy not found")
	ErrAlreadyUnlocked  = errors.New("research already unlocked")
)

const MaxTowerLevel = 3

// XPThreshold is the xp needed to clear the given level.
func XPThreshold(level int) int { return level * 100 }

type Tower struct {
	ID      int
	Type    string
	X, Y    float64
	Level   int
	OwnerID string
}

type Enemy struct {
	ID        int
	Type      string
	Health    int
	MaxHealth int
	X, Y      float64
	PathIndex int
	Wave      int
}

// State is the authoritative per-room game state. Gold and lives are pooled
// across the whole room. Every mutation goes through a method on State and
// the owning room actor calls those methods from a single goroutine, so a
// check-then-deduct is never split across an asynchronous boundary.
type State struct {
	gold       int
	lives      int
	wave       int
	waveActive bool

	towers  map[int]*Tower
	enemies map[int]*Enemy

	playerLevel int
	xp          int
	research    map[string]bool

	nextTowerID int
	nextEnemyID int
}

// New builds the state for a freshly started game. Starting gold and lives
// are per-player values scaled by the player count; both resource modes draw
// from the same pool.
func New(startGold, startLives, playerCount int) *State {
	return &State{
		gold:        startGold * playerCount,
		lives:       startLives * playerCount,
		towers:      make(map[int]*Tower),
		enemies:     make(map[int]*Enemy),
		playerLevel: 1,
		research:    make(map[string]bool),
	}
}

func (s *State) Gold() int        { return s.gold }
func (s *State) Lives() int       { return s.lives }
func (s *State) Wave() int        { return s.wave }
func (s *State) WaveActive() bool { return s.waveActive }
func (s *State) PlayerLevel() int { return s.playerLevel }
func (s *State) XP() int          { return s.xp }
func (s *State) TowerCount() int  { return len(s.towers) }
func (s *State) EnemyCount() int  { return len(s.enemies) }

func (s *State) Tower(id int) (*Tower, bool) {
	t, ok := s.towers[id]
	return t, ok
}

func (s *State) Enemy(id int) (*Enemy, bool) {
	e, ok := s.enemies[id]
	return e, ok
}

// PlaceTower is a single synchronous check-then-deduct: if the pooled gold
// covers the cost, the tower is stored and the cost subtracted in one step.
func (s *State) PlaceTower(towerType string, x, y float64, ownerID string, cost int) (*Tower, error) {
	if s.gold < cost {
		return nil, ErrInsufficientGold
	}
	s.nextTowerID++
	t := &Tower{
		ID:      s.nextTowerID,
		Type:    towerType,
		X:       x,
		Y:       y,
		Level:   1,
		OwnerID: ownerID,
	}
	s.towers[t.ID] = t
	s.gold -= cost
	return t, nil
}

// UpgradeTower raises a tower one level. Missing tower, max level and short
// gold are each reported explicitly; none of them mutates anything.
func (s *State) UpgradeTower(id, cost int) (*Tower, error) {
	t, ok := s.towers[id]
	if !ok {
		return nil, ErrTowerNotFound
	}
	if t.Level >= MaxTowerLevel {
		return nil, ErrMaxLevel
	}
	if s.gold < cost {
		return nil, ErrInsufficientGold
	}
	t.Level++
	s.gold -= cost
	return t, nil
}

// SellTower removes the tower and credits the given refund. The refund is
// computed by the caller from the tower's invested value and is never
// negative.
func (s *State) SellTower(id, refund int) error {
	if _, ok := s.towers[id]; !ok {
		return ErrTowerNotFound
	}
	delete(s.towers, id)
	s.gold += refund
	return nil
}

func (s *State) UnlockResearch(researchType string, cost int) error {
	if s.research[researchType] {
		return ErrAlreadyUnlocked
	}
	if s.gold < cost {
		return ErrInsufficientGold
	}
	s.research[researchType] = true
	s.gold -= cost
	return nil
}

func (s *State) ResearchUnlocked(researchType string) bool {
	return s.research[researchType]
}

// BeginWave advances the wave counter and marks it active. Returns the new
// wave number.
func (s *State) BeginWave() int {
	s.wave++
	s.waveActive = true
	return s.wave
}

// EndWave credits the completion bonus and clears the active flag.
func (s *State) EndWave(bonus int) {
	s.waveActive = false
	s.gold += bonus
}

func (s *State) SpawnEnemy(enemyType string, health int, x, y float64) *Enemy {
	s.nextEnemyID++
	e := &Enemy{
		ID:        s.nextEnemyID,
		Type:      enemyType,
		Health:    health,
		MaxHealth: health,
		X:         x,
		Y:         y,
		Wave:      s.wave,
	}
	s.enemies[e.ID] = e
	return e
}

// KillReward carries what a lethal hit earned.
type KillReward struct {
	Gold      int
	XP        int
	NewLevel  int // 0 when no level-up happened
	LevelUps  int
	PrevLevel int
}

// DamageEnemy applies damage; if the enemy dies it is removed and the given
// gold/xp rewards are credited. Returns (reward, true) on a kill.
func (s *State) DamageEnemy(id, amount, goldReward, xpReward int) (KillReward, bool, error) {
	e, ok := s.enemies[id]
	if !ok {
		return KillReward{}, false, ErrEnemyNotFound
	}
	e.Health -= amount
	if e.Health > 0 {
		return KillReward{}, false, nil
	}
	delete(s.enemies, id)
	s.gold += goldReward

	reward := KillReward{Gold: goldReward, XP: xpReward, PrevLevel: s.playerLevel}
	s.xp += xpReward
	// One large grant can clear several thresholds; loop until it no longer does.
	for s.xp >= XPThreshold(s.playerLevel) {
		s.xp -= XPThreshold(s.playerLevel)
		s.playerLevel++
		reward.LevelUps++
	}
	if reward.LevelUps > 0 {
		reward.NewLevel = s.playerLevel
	}
	return reward, true, nil
}

// AdvanceEnemy bumps the enemy one path step. Returns the new index.
func (s *State) AdvanceEnemy(id int) (int, error) {
	e, ok := s.enemies[id]
	if !ok {
		return 0, ErrEnemyNotFound
	}
	e.PathIndex++
	return e.PathIndex, nil
}

// EnemyReachedEnd removes the enemy and costs the room one life (floor 0).
// Returns the remaining lives.
func (s *State) EnemyReachedEnd(id int) (int, error) {
	if _, ok := s.enemies[id]; !ok {
		return s.lives, ErrEnemyNotFound
	}
	delete(s.enemies, id)
	if s.lives > 0 {
		s.lives--
	}
	return s.lives, nil
}

// EnemyIDs returns the live enemy ids in ascending order.
func (s *State) EnemyIDs() []int {
	ids := make([]int, 0, len(s.enemies))
	for id := range s.enemies {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	return ids
}

// Snapshot flattens the internal maps into the plain wire form. It is
// broadcast whole after every mutating command: full-state resync is cheap
// at this scale and keeps client logic simple.
func (s *State) Snapshot() protocol.GameSnapshot {
	snap := protocol.GameSnapshot{
		Gold:        s.gold,
		Lives:       s.lives,
		Wave:        s.wave,
		WaveActive:  s.waveActive,
		PlayerLevel: s.playerLevel,
		XP:          s.xp,
		Towers:      make([]protocol.TowerState, 0, len(s.towers)),
		Enemies:     make([]protocol.EnemyState, 0, len(s.enemies)),
		Research:    make([]string, 0, len(s.research)),
	}
	for _, t := range s.towers {
		snap.Towers = append(snap.Towers, protocol.TowerState{
			ID: t.ID, Type: t.Type, X: t.X, Y: t.Y, Level: t.Level, OwnerID: t.OwnerID,
		})
	}
	for _, e := range s.enemies {
		snap.Enemies = append(snap.Enemies, protocol.EnemyState{
			ID: e.ID, Type: e.Type, Health: e.Health, MaxHealth: e.MaxHealth,
			X: e.X, Y: e.Y, PathIndex: e.PathIndex, Wave: e.Wave,
		})
	}
	for r := range s.research {
		snap.Research = append(snap.Research, r)
	}
	sort.Slice(snap.Towers, func(i, j int) bool { return snap.Towers[i].ID < snap.Towers[j].ID })
	sort.Slice(snap.Enemies, func(i, j int) bool { return snap.Enemies[i].ID < snap.Enemies[j].ID })
	sort.Strings(snap.Research)
	return snap
}

func WireEnemy(e *Enemy) protocol.EnemyState {
	return protocol.EnemyState{
		ID: e.ID, Type: e.Type, Health: e.Health, MaxHealth: e.MaxHealth,
		X: e.X, Y: e.Y, PathIndex: e.PathIndex, Wave: e.Wave,
	}
}

func WireTower(t *Tower) protocol.TowerState {
	return protocol.TowerState{
		ID: t.ID, Type: t.Type, X: t.X, Y: t.Y, Level: t.Level, OwnerID: t.OwnerID,
	}
}
