package netclient

import (
	"encoding/json"

	"towerdef/internal/protocol"
)

// The sync modules below are stateless fan-out: each subscribes to its slice
// of inbound events and forwards typed payloads to scene-supplied callbacks.
// None of them holds authoritative data. Nil callbacks are skipped.

type sub struct {
	event string
	id    int
}

func subscribe[T any](bus *Bus, event string, fn func(T)) sub {
	id := bus.Subscribe(event, func(data json.RawMessage) {
		if fn == nil {
			return
		}
		var v T
		if err := json.Unmarshal(data, &v); err != nil {
			return
		}
		fn(v)
	})
	return sub{event: event, id: id}
}

func detach(bus *Bus, subs []sub) {
	for _, s := range subs {
		bus.Unsubscribe(s.event, s.id)
	}
}

// StateSync delivers full snapshot resyncs.
type StateSync struct {
	OnState func(protocol.GameSnapshot)

	subs []sub
}

func (m *StateSync) Attach(bus *Bus) {
	m.subs = []sub{
		subscribe(bus, protocol.EvtStateUpdate, func(u protocol.StateUpdate) {
			if m.OnState != nil {
				m.OnState(u.State)
			}
		}),
	}
}

func (m *StateSync) Detach(bus *Bus) { detach(bus, m.subs); m.subs = nil }

// TowerSync delivers tower domain events.
type TowerSync struct {
	OnPlaced   func(protocol.TowerState)
	OnUpgraded func(towerID, level int)
	OnSold     func(towerID, refund int)

	subs []sub
}

func (m *TowerSync) Attach(bus *Bus) {
	m.subs = []sub{
		subscribe(bus, protocol.EvtTowerPlaced, func(e protocol.TowerPlaced) {
			if m.OnPlaced != nil {
				m.OnPlaced(e.Tower)
			}
		}),
		subscribe(bus, protocol.EvtTowerUpgraded, func(e protocol.TowerUpgraded) {
			if m.OnUpgraded != nil {
				m.OnUpgraded(e.TowerID, e.Level)
			}
		}),
		subscribe(bus, protocol.EvtTowerSold, func(e protocol.TowerSold) {
			if m.OnSold != nil {
				m.OnSold(e.TowerID, e.Refund)
			}
		}),
	}
}

func (m *TowerSync) Detach(bus *Bus) { detach(bus, m.subs); m.subs = nil }

// EnemySync delivers enemy domain events.
type EnemySync struct {
	OnSpawned func(protocol.EnemyState)
	OnDied    func(enemyID, gold, xp int)

	subs []sub
}

func (m *EnemySync) Attach(bus *Bus) {
	m.subs = []sub{
		subscribe(bus, protocol.EvtEnemySpawned, func(e protocol.EnemySpawned) {
			if m.OnSpawned != nil {
				m.OnSpawned(e.Enemy)
			}
		}),
		subscribe(bus, protocol.EvtEnemyDied, func(e protocol.EnemyDied) {
			if m.OnDied != nil {
				m.OnDied(e.EnemyID, e.Gold, e.XP)
			}
		}),
	}
}

func (m *EnemySync) Detach(bus *Bus) { detach(bus, m.subs); m.subs = nil }

// WaveSync delivers wave progress, level-ups and game over.
type WaveSync struct {
	OnStarted   func(wave int)
	OnCompleted func(wave, bonus int)
	OnLevelUp   func(level int)
	OnGameOver  func(won bool)

	subs []sub
}

func (m *WaveSync) Attach(bus *Bus) {
	m.subs = []sub{
		subscribe(bus, protocol.EvtWaveStarted, func(e protocol.WaveStarted) {
			if m.OnStarted != nil {
				m.OnStarted(e.Wave)
			}
		}),
		subscribe(bus, protocol.EvtWaveCompleted, func(e protocol.WaveCompleted) {
			if m.OnCompleted != nil {
				m.OnCompleted(e.Wave, e.Bonus)
			}
		}),
		subscribe(bus, protocol.EvtLevelUp, func(e protocol.LevelUp) {
			if m.OnLevelUp != nil {
				m.OnLevelUp(e.Level)
			}
		}),
		subscribe(bus, protocol.EvtGameOver, func(e protocol.GameOver) {
			if m.OnGameOver != nil {
				m.OnGameOver(e.Won)
			}
		}),
	}
}

func (m *WaveSync) Detach(bus *Bus) { detach(bus, m.subs); m.subs = nil }
