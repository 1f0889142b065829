package protocol

import "encoding/json"

// Envelope is the frame every message travels in, both directions.
type Envelope struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}

func Encode(typ string, v any) ([]byte, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return json.Marshal(Envelope{Type: typ, Data: data})
}

// ================= C -> S =================

const (
	CmdCreateRoom     = "create-room"
	CmdJoinRoom       = "join-room"
	CmdLeaveRoom      = "leave-room"
	CmdSetReady       = "set-ready"
	CmdStartGame      = "start-game"
	CmdPlaceTower     = "place-tower"
	CmdUpgradeTower   = "upgrade-tower"
	CmdSellTower      = "sell-tower"
	CmdStartWave      = "start-wave"
	CmdDamageEnemy    = "damage-enemy"
	CmdUnlockResearch = "unlock-research"
)

type CreateRoom struct {
	Name string `json:"name"`
}

type JoinRoom struct {
	Code string `json:"code"`
	Name string `json:"name"`
}

type LeaveRoom struct{}

type SetReady struct {
	Ready bool `json:"ready"`
}

type StartGame struct{}

type PlaceTower struct {
	Type string  `json:"type"`
	X    float64 `json:"x"`
	Y    float64 `json:"y"`
}

type UpgradeTower struct {
	TowerID int `json:"towerId"`
}

type SellTower struct {
	TowerID int `json:"towerId"`
}

type StartWave struct{}

type DamageEnemy struct {
	EnemyID int `json:"enemyId"`
	Amount  int `json:"amount"`
}

type UnlockResearch struct {
	Type string `json:"type"`
}

// ================= S -> C =================

const (
	EvtJoined           = "joined"
	EvtPlayerJoined     = "player-joined"
	EvtPlayerLeft       = "player-left"
	EvtPlayerReady      = "player-ready"
	EvtRoomError        = "room-error"
	EvtStarted          = "started"
	EvtStateUpdate      = "state-update"
	EvtTowerPlaced      = "tower-placed"
	EvtTowerUpgraded    = "tower-upgraded"
	EvtTowerSold        = "tower-sold"
	EvtEnemySpawned     = "enemy-spawned"
	EvtEnemyDied        = "enemy-died"
	EvtWaveStarted      = "wave-started"
	EvtWaveCompleted    = "wave-completed"
	EvtLevelUp          = "level-up"
	EvtResearchUnlocked = "research-unlocked"
	EvtGameOver         = "over"
)

// PlayerInfo is the roster entry clients render in the lobby.
type PlayerInfo struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Color string `json:"color"`
	Ready bool   `json:"ready"`
	Host  bool   `json:"host"`
}

// Joined acknowledges a successful create-room or join-room for the joiner.
type Joined struct {
	Code   string       `json:"code"`
	Roster []PlayerInfo `json:"roster"`
	IsHost bool         `json:"isHost"`
}

type PlayerJoined struct {
	Player PlayerInfo `json:"player"`
}

type PlayerLeft struct {
	PlayerID string `json:"playerId"`
}

type PlayerReady struct {
	PlayerID string `json:"playerId"`
	Name     string `json:"name"`
	IsReady  bool   `json:"isReady"`
}

type RoomError struct {
	Message string `json:"message"`
}

type Started struct{}

type TowerState struct {
	ID      int     `json:"id"`
	Type    string  `json:"type"`
	X       float64 `json:"x"`
	Y       float64 `json:"y"`
	Level   int     `json:"level"`
	OwnerID string  `json:"ownerId"`
}

type EnemyState struct {
	ID        int     `json:"id"`
	Type      string  `json:"type"`
	Health    int     `json:"health"`
	MaxHealth int     `json:"maxHealth"`
	X         float64 `json:"x"`
	Y         float64 `json:"y"`
	PathIndex int     `json:"pathIndex"`
	Wave      int     `json:"wave"`
}

// GameSnapshot is the full resync payload broadcast after every mutation.
type GameSnapshot struct {
	Gold        int          `json:"gold"`
	Lives       int          `json:"lives"`
	Wave        int          `json:"wave"`
	WaveActive  bool         `json:"waveActive"`
	Towers      []TowerState `json:"towers"`
	Enemies     []EnemyState `json:"enemies"`
	PlayerLevel int          `json:"playerLevel"`
	XP          int          `json:"xp"`
	Research    []string     `json:"research"`
}

type StateUpdate struct {
	State GameSnapshot `json:"state"`
}

type TowerPlaced struct {
	Tower TowerState `json:"tower"`
}

type TowerUpgraded struct {
	TowerID int `json:"towerId"`
	Level   int `json:"level"`
}

type TowerSold struct {
	TowerID int `json:"towerId"`
	Refund  int `json:"refund"`
}

type EnemySpawned struct {
	Enemy EnemyState `json:"enemy"`
}

type EnemyDied struct {
	EnemyID int `json:"enemyId"`
	Gold    int `json:"gold"`
	XP      int `json:"xp"`
}

type WaveStarted struct {
	Wave int `json:"wave"`
}

type WaveCompleted struct {
	Wave  int `json:"wave"`
	Bonus int `json:"bonus"`
}

type LevelUp struct {
	Level int `json:"level"`
}

type ResearchUnlocked struct {
	Type string `json:"type"`
}

type GameOver struct {
	Won bool `json:"won"`
}
