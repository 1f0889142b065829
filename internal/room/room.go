package room

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"towerdef/internal/config"
	"towerdef/internal/game"
	"towerdef/internal/protocol"
)

var (
	ErrRoomStarted     = errors.New("game already started")
	ErrRoomFull        = errors.New("room is full")
	ErrNotHost         = errors.New("only the host can start the game")
	ErrNotAllReady     = errors.New("not all players are ready")
	ErrGameNotStarted  = errors.New("game has not started")
	ErrWaveInProgress  = errors.New("a wave is already active")
	ErrGameOver        = errors.New("game is over")
	ErrUnknownTower    = errors.New("unknown tower type")
	ErrUnknownResearch = errors.New("unknown research type")
)

// Msg is the closed set of messages a room actor accepts on its inbox.
type Msg interface{ isRoomMsg() }

type Join struct {
	Name   string
	Outbox chan []byte
	Reply  chan JoinResult
}

type JoinResult struct {
	Self   protocol.PlayerInfo
	Roster []protocol.PlayerInfo
	Err    error
}

type Leave struct{ PlayerID string }

type SetReady struct {
	PlayerID string
	Ready    bool
}

type StartGame struct{ PlayerID string }

type PlaceTower struct {
	PlayerID string
	Cmd      protocol.PlaceTower
}

type UpgradeTower struct {
	PlayerID string
	Cmd      protocol.UpgradeTower
}

type SellTower struct {
	PlayerID string
	Cmd      protocol.SellTower
}

type StartWave struct{ PlayerID string }

type DamageEnemy struct {
	PlayerID string
	Cmd      protocol.DamageEnemy
}

type UnlockResearch struct {
	PlayerID string
	Cmd      protocol.UnlockResearch
}

type Shutdown struct{}

// GetView reflects internal state without data races; used by tests.
type GetView struct{ Reply chan View }

type View struct {
	Code       string
	Roster     []protocol.PlayerInfo
	HostID     string
	Started    bool
	GameOver   bool
	Gold       int
	Lives      int
	Wave       int
	WaveActive bool
	TowerCount int
	EnemyCount int
}

func (Join) isRoomMsg()           {}
func (Leave) isRoomMsg()          {}
func (SetReady) isRoomMsg()       {}
func (StartGame) isRoomMsg()      {}
func (PlaceTower) isRoomMsg()     {}
func (UpgradeTower) isRoomMsg()   {}
func (SellTower) isRoomMsg()      {}
func (StartWave) isRoomMsg()      {}
func (DamageEnemy) isRoomMsg()    {}
func (UnlockResearch) isRoomMsg() {}
func (Shutdown) isRoomMsg()       {}
func (GetView) isRoomMsg()        {}

// internal scheduler ticks; gen guards against stale timer fires
type spawnTick struct{ gen int }
type moveTick struct{ gen int }

func (spawnTick) isRoomMsg() {}
func (moveTick) isRoomMsg()  {}

// Room is one lobby/game session. A single goroutine owns the roster and the
// game state, so command arrival order on the inbox is the serialization
// order and every validate-mutate-broadcast span runs atomically.
type Room struct {
	code string
	cfg  config.Config
	log  *zap.SugaredLogger

	inbox     chan Msg
	players   map[string]*Session
	joinOrder []string
	hostID    string
	started   bool
	gameOver  bool
	createdAt time.Time

	st *game.State

	timerGen int
	toSpawn  int

	newID   func() string
	onEmpty func(code string)

	ctx    context.Context
	cancel context.CancelFunc
}

// New starts a room actor. newID supplies server-assigned player ids;
// onEmpty is called (from the room goroutine) when the last player leaves.
func New(parent context.Context, code string, cfg config.Config, log *zap.SugaredLogger, newID func() string, onEmpty func(code string)) *Room {
	ctx, cancel := context.WithCancel(parent)
	r := &Room{
		code:      code,
		cfg:       cfg,
		log:       log,
		inbox:     make(chan Msg, 64),
		players:   make(map[string]*Session),
		createdAt: time.Now(),
		newID:     newID,
		onEmpty:   onEmpty,
		ctx:       ctx,
		cancel:    cancel,
	}
	go r.loop()
	return r
}

func (r *Room) Inbox() chan<- Msg { return r.inbox }
func (r *Room) Code() string      { return r.code }

func (r *Room) loop() {
	for {
		select {
		case <-r.ctx.Done():
			return
		case m := <-r.inbox:
			switch msg := m.(type) {
			case Join:
				msg.Reply <- r.handleJoin(msg)
			case Leave:
				if r.handleLeave(msg.PlayerID) {
					return
				}
			case SetReady:
				r.handleSetReady(msg)
			case StartGame:
				r.handleStartGame(msg.PlayerID)
			case PlaceTower:
				r.handlePlaceTower(msg)
			case UpgradeTower:
				r.handleUpgradeTower(msg)
			case SellTower:
				r.handleSellTower(msg)
			case StartWave:
				r.handleStartWave(msg.PlayerID)
			case DamageEnemy:
				r.handleDamageEnemy(msg)
			case UnlockResearch:
				r.handleUnlockResearch(msg)
			case spawnTick:
				r.handleSpawnTick(msg.gen)
			case moveTick:
				r.handleMoveTick(msg.gen)
			case GetView:
				msg.Reply <- r.view()
			case Shutdown:
				r.cancel()
				return
			}
		}
	}
}

// ---- roster ----

func (r *Room) handleJoin(msg Join) JoinResult {
	if r.started {
		return JoinResult{Err: ErrRoomStarted}
	}
	if len(r.players) >= r.cfg.MaxPlayersPerRoom {
		return JoinResult{Err: ErrRoomFull}
	}

	s := &Session{
		ID:       r.newID(),
		Name:     msg.Name,
		Color:    colorPalette[len(r.joinOrder)%len(colorPalette)],
		JoinedAt: time.Now(),
		Outbox:   msg.Outbox,
	}
	if len(r.players) == 0 {
		s.Host = true
		r.hostID = s.ID
	}
	r.players[s.ID] = s
	r.joinOrder = append(r.joinOrder, s.ID)

	r.broadcastExcept(s.ID, protocol.EvtPlayerJoined, protocol.PlayerJoined{Player: s.Info()})
	r.log.Infow("player joined", "room", r.code, "player", s.ID, "name", s.Name, "players", len(r.players))

	// ack straight into the joiner's outbox so it always precedes any
	// broadcast caused by later commands
	roster := r.roster()
	if payload, err := protocol.Encode(protocol.EvtJoined, protocol.Joined{
		Code:   r.code,
		Roster: roster,
		IsHost: s.Host,
	}); err == nil {
		r.enqueue(s, payload)
	}

	return JoinResult{Self: s.Info(), Roster: roster}
}

// handleLeave removes the player; returns true when the room emptied and the
// actor should stop.
func (r *Room) handleLeave(playerID string) bool {
	s, ok := r.players[playerID]
	if !ok {
		return false
	}
	delete(r.players, playerID)
	for i, id := range r.joinOrder {
		if id == playerID {
			r.joinOrder = append(r.joinOrder[:i], r.joinOrder[i+1:]...)
			break
		}
	}
	r.log.Infow("player left", "room", r.code, "player", playerID, "players", len(r.players))

	if len(r.players) == 0 {
		r.cancel()
		if r.onEmpty != nil {
			r.onEmpty(r.code)
		}
		return true
	}

	if s.Host {
		// earliest remaining member inherits the host seat
		next := r.players[r.joinOrder[0]]
		next.Host = true
		r.hostID = next.ID
		r.log.Infow("host reassigned", "room", r.code, "host", next.ID)
	}

	r.broadcast(protocol.EvtPlayerLeft, protocol.PlayerLeft{PlayerID: playerID})
	if r.started {
		r.broadcastSnapshot()
	}
	return false
}

func (r *Room) handleSetReady(msg SetReady) {
	s, ok := r.players[msg.PlayerID]
	if !ok {
		return
	}
	s.Ready = msg.Ready
	r.broadcast(protocol.EvtPlayerReady, protocol.PlayerReady{
		PlayerID: s.ID,
		Name:     s.Name,
		IsReady:  s.Ready,
	})
}

func (r *Room) handleStartGame(playerID string) {
	if playerID != r.hostID {
		r.sendError(playerID, ErrNotHost)
		return
	}
	if r.started {
		r.sendError(playerID, ErrRoomStarted)
		return
	}
	// the host is implicitly ready
	for id, s := range r.players {
		if id != r.hostID && !s.Ready {
			r.sendError(playerID, ErrNotAllReady)
			return
		}
	}

	r.started = true
	r.st = game.New(r.cfg.StartGold, r.cfg.StartLives, len(r.players))
	r.log.Infow("game started", "room", r.code, "players", len(r.players),
		"gold", r.st.Gold(), "lives", r.st.Lives())

	r.broadcast(protocol.EvtStarted, protocol.Started{})
	r.broadcastSnapshot()
}

// ---- economy commands ----

func (r *Room) handlePlaceTower(msg PlaceTower) {
	if !r.requireGame(msg.PlayerID) {
		return
	}
	cost, ok := r.cfg.TowerCost(msg.Cmd.Type)
	if !ok {
		r.sendError(msg.PlayerID, ErrUnknownTower)
		return
	}
	t, err := r.st.PlaceTower(msg.Cmd.Type, msg.Cmd.X, msg.Cmd.Y, msg.PlayerID, cost)
	if err != nil {
		r.sendError(msg.PlayerID, err)
		return
	}
	r.broadcast(protocol.EvtTowerPlaced, protocol.TowerPlaced{Tower: game.WireTower(t)})
	r.broadcastSnapshot()
}

func (r *Room) handleUpgradeTower(msg UpgradeTower) {
	if !r.requireGame(msg.PlayerID) {
		return
	}
	t, ok := r.st.Tower(msg.Cmd.TowerID)
	if !ok {
		r.sendError(msg.PlayerID, game.ErrTowerNotFound)
		return
	}
	cost, ok := r.cfg.UpgradeCost(t.Type, t.Level+1)
	if !ok {
		r.sendError(msg.PlayerID, game.ErrMaxLevel)
		return
	}
	t, err := r.st.UpgradeTower(msg.Cmd.TowerID, cost)
	if err != nil {
		r.sendError(msg.PlayerID, err)
		return
	}
	r.broadcast(protocol.EvtTowerUpgraded, protocol.TowerUpgraded{TowerID: t.ID, Level: t.Level})
	r.broadcastSnapshot()
}

func (r *Room) handleSellTower(msg SellTower) {
	if !r.requireGame(msg.PlayerID) {
		return
	}
	t, ok := r.st.Tower(msg.Cmd.TowerID)
	if !ok {
		r.sendError(msg.PlayerID, game.ErrTowerNotFound)
		return
	}
	refund := r.cfg.SellRefund(t.Type, t.Level)
	if err := r.st.SellTower(t.ID, refund); err != nil {
		r.sendError(msg.PlayerID, err)
		return
	}
	r.broadcast(protocol.EvtTowerSold, protocol.TowerSold{TowerID: t.ID, Refund: refund})
	r.broadcastSnapshot()
}

func (r *Room) handleDamageEnemy(msg DamageEnemy) {
	if !r.requireGame(msg.PlayerID) {
		return
	}
	if msg.Cmd.Amount <= 0 {
		return
	}
	reward, killed, err := r.st.DamageEnemy(msg.Cmd.EnemyID, msg.Cmd.Amount, r.cfg.EnemyReward, r.cfg.EnemyXP)
	if err != nil {
		r.sendError(msg.PlayerID, err)
		return
	}
	if killed {
		r.broadcast(protocol.EvtEnemyDied, protocol.EnemyDied{
			EnemyID: msg.Cmd.EnemyID,
			Gold:    reward.Gold,
			XP:      reward.XP,
		})
		if reward.NewLevel > 0 {
			r.broadcast(protocol.EvtLevelUp, protocol.LevelUp{Level: reward.NewLevel})
		}
		r.maybeCompleteWave()
	}
	r.broadcastSnapshot()
}

func (r *Room) handleUnlockResearch(msg UnlockResearch) {
	if !r.requireGame(msg.PlayerID) {
		return
	}
	cost, ok := r.cfg.ResearchCosts[msg.Cmd.Type]
	if !ok {
		r.sendError(msg.PlayerID, ErrUnknownResearch)
		return
	}
	if err := r.st.UnlockResearch(msg.Cmd.Type, cost); err != nil {
		r.sendError(msg.PlayerID, err)
		return
	}
	r.broadcast(protocol.EvtResearchUnlocked, protocol.ResearchUnlocked{Type: msg.Cmd.Type})
	r.broadcastSnapshot()
}

// ---- wave scheduler ----

func (r *Room) handleStartWave(playerID string) {
	if !r.requireGame(playerID) {
		return
	}
	if r.gameOver {
		r.sendError(playerID, ErrGameOver)
		return
	}
	if r.st.WaveActive() {
		r.sendError(playerID, ErrWaveInProgress)
		return
	}

	wave := r.st.BeginWave()
	r.toSpawn = 5 + 2*wave
	r.timerGen++
	gen := r.timerGen

	r.log.Infow("wave started", "room", r.code, "wave", wave, "enemies", r.toSpawn)
	r.broadcast(protocol.EvtWaveStarted, protocol.WaveStarted{Wave: wave})
	r.broadcastSnapshot()

	r.after(r.cfg.SpawnInterval, spawnTick{gen: gen})
	r.after(r.cfg.MoveInterval, moveTick{gen: gen})
}

func (r *Room) handleSpawnTick(gen int) {
	if gen != r.timerGen || !r.st.WaveActive() || r.toSpawn <= 0 {
		return
	}
	wave := r.st.Wave()
	enemyType := "grunt"
	health := r.cfg.EnemyBaseHealth + r.cfg.EnemyHealthPerWave*(wave-1)
	switch {
	case r.toSpawn == 1:
		enemyType = "brute"
		health *= 2
	case r.toSpawn%4 == 0:
		enemyType = "runner"
	}

	e := r.st.SpawnEnemy(enemyType, health, 0, 0)
	r.toSpawn--
	r.broadcast(protocol.EvtEnemySpawned, protocol.EnemySpawned{Enemy: game.WireEnemy(e)})
	r.broadcastSnapshot()

	if r.toSpawn > 0 {
		r.after(r.cfg.SpawnInterval, spawnTick{gen: gen})
	}
}

func (r *Room) handleMoveTick(gen int) {
	if gen != r.timerGen || !r.st.WaveActive() {
		return
	}
	for _, id := range r.st.EnemyIDs() {
		idx, err := r.st.AdvanceEnemy(id)
		if err != nil {
			continue
		}
		if idx < r.cfg.PathLength {
			continue
		}
		lives, _ := r.st.EnemyReachedEnd(id)
		if lives == 0 {
			r.endGame(false)
			r.broadcastSnapshot()
			return
		}
	}
	r.maybeCompleteWave()
	r.broadcastSnapshot()

	if r.st.WaveActive() {
		r.after(r.cfg.MoveInterval, moveTick{gen: gen})
	}
}

func (r *Room) maybeCompleteWave() {
	if !r.st.WaveActive() || r.toSpawn > 0 || r.st.EnemyCount() > 0 {
		return
	}
	wave := r.st.Wave()
	bonus := r.cfg.WaveBonusBase + r.cfg.WaveBonusPerWave*wave
	r.st.EndWave(bonus)
	r.timerGen++
	r.log.Infow("wave completed", "room", r.code, "wave", wave, "bonus", bonus)
	r.broadcast(protocol.EvtWaveCompleted, protocol.WaveCompleted{Wave: wave, Bonus: bonus})
}

func (r *Room) endGame(won bool) {
	r.gameOver = true
	r.st.EndWave(0)
	r.timerGen++
	r.log.Infow("game over", "room", r.code, "won", won)
	r.broadcast(protocol.EvtGameOver, protocol.GameOver{Won: won})
}

// after posts a message back into the inbox once d elapses. The send is
// abandoned if the room shuts down first; the generation counter on the
// tick messages drops any fire that outlives its wave.
func (r *Room) after(d time.Duration, m Msg) {
	time.AfterFunc(d, func() {
		select {
		case r.inbox <- m:
		case <-r.ctx.Done():
		}
	})
}

// ---- plumbing ----

func (r *Room) requireGame(playerID string) bool {
	if _, ok := r.players[playerID]; !ok {
		return false
	}
	if !r.started || r.st == nil {
		r.sendError(playerID, ErrGameNotStarted)
		return false
	}
	return true
}

func (r *Room) roster() []protocol.PlayerInfo {
	out := make([]protocol.PlayerInfo, 0, len(r.joinOrder))
	for _, id := range r.joinOrder {
		if s, ok := r.players[id]; ok {
			out = append(out, s.Info())
		}
	}
	return out
}

func (r *Room) view() View {
	v := View{
		Code:     r.code,
		Roster:   r.roster(),
		HostID:   r.hostID,
		Started:  r.started,
		GameOver: r.gameOver,
	}
	if r.st != nil {
		v.Gold = r.st.Gold()
		v.Lives = r.st.Lives()
		v.Wave = r.st.Wave()
		v.WaveActive = r.st.WaveActive()
		v.TowerCount = r.st.TowerCount()
		v.EnemyCount = r.st.EnemyCount()
	}
	return v
}

func (r *Room) broadcast(typ string, v any) {
	payload, err := protocol.Encode(typ, v)
	if err != nil {
		r.log.Errorw("encode broadcast", "room", r.code, "type", typ, "err", err)
		return
	}
	for _, s := range r.players {
		r.enqueue(s, payload)
	}
}

func (r *Room) broadcastExcept(playerID, typ string, v any) {
	payload, err := protocol.Encode(typ, v)
	if err != nil {
		r.log.Errorw("encode broadcast", "room", r.code, "type", typ, "err", err)
		return
	}
	for id, s := range r.players {
		if id == playerID {
			continue
		}
		r.enqueue(s, payload)
	}
}

func (r *Room) broadcastSnapshot() {
	r.broadcast(protocol.EvtStateUpdate, protocol.StateUpdate{State: r.st.Snapshot()})
}

func (r *Room) sendError(playerID string, err error) {
	s, ok := r.players[playerID]
	if !ok {
		return
	}
	payload, encErr := protocol.Encode(protocol.EvtRoomError, protocol.RoomError{Message: err.Error()})
	if encErr != nil {
		return
	}
	r.enqueue(s, payload)
}

// enqueue never blocks the room loop; a full outbox drops the message and
// the next snapshot broadcast resynchronizes that client.
func (r *Room) enqueue(s *Session, payload []byte) {
	select {
	case s.Outbox <- payload:
	default:
		r.log.Warnw("outbox full, dropping message", "room", r.code, "player", s.ID)
	}
}
