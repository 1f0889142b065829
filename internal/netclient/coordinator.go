package netclient

import "towerdef/internal/protocol"

// Coordinator composes the four sync modules behind one facade and exposes
// the outbound game operations to the consuming scene. It can only be built
// while the transport is connected and inside a room, so single-player mode
// never pays for any of this.
type Coordinator struct {
	t *Transport

	state *StateSync
	tower *TowerSync
	enemy *EnemySync
	wave  *WaveSync
}

func NewCoordinator(t *Transport, state *StateSync, tower *TowerSync, enemy *EnemySync, wave *WaveSync) (*Coordinator, error) {
	if !t.Connected() {
		return nil, ErrNotConnected
	}
	if t.RoomCode() == "" {
		return nil, ErrNotInRoom
	}

	c := &Coordinator{t: t, state: state, tower: tower, enemy: enemy, wave: wave}
	bus := t.Bus()
	if c.state != nil {
		c.state.Attach(bus)
	}
	if c.tower != nil {
		c.tower.Attach(bus)
	}
	if c.enemy != nil {
		c.enemy.Attach(bus)
	}
	if c.wave != nil {
		c.wave.Attach(bus)
	}
	return c, nil
}

// Close detaches every module from the bus; the transport stays up.
func (c *Coordinator) Close() {
	bus := c.t.Bus()
	if c.state != nil {
		c.state.Detach(bus)
	}
	if c.tower != nil {
		c.tower.Detach(bus)
	}
	if c.enemy != nil {
		c.enemy.Detach(bus)
	}
	if c.wave != nil {
		c.wave.Detach(bus)
	}
}

func (c *Coordinator) PlaceTower(towerType string, x, y float64) error {
	return c.t.Send(protocol.CmdPlaceTower, protocol.PlaceTower{Type: towerType, X: x, Y: y})
}

func (c *Coordinator) UpgradeTower(towerID int) error {
	return c.t.Send(protocol.CmdUpgradeTower, protocol.UpgradeTower{TowerID: towerID})
}

func (c *Coordinator) SellTower(towerID int) error {
	return c.t.Send(protocol.CmdSellTower, protocol.SellTower{TowerID: towerID})
}

func (c *Coordinator) StartWave() error {
	return c.t.Send(protocol.CmdStartWave, protocol.StartWave{})
}

func (c *Coordinator) ReportEnemyDamage(enemyID, amount int) error {
	return c.t.Send(protocol.CmdDamageEnemy, protocol.DamageEnemy{EnemyID: enemyID, Amount: amount})
}

func (c *Coordinator) UnlockResearch(researchType string) error {
	return c.t.Send(protocol.CmdUnlockResearch, protocol.UnlockResearch{Type: researchType})
}
