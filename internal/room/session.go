package room

import (
	"time"

	"towerdef/internal/protocol"
)

// colorPalette is the fixed set of lobby colors, handed out by join order.
var colorPalette = []string{
	"#e6194b", // red
	"#3cb44b", // green
	"#4363d8", // blue
	"#f58231", // orange
	"#911eb4", // purple
	"#46f0f0", // cyan
	"#f032e6", // magenta
	"#bcf60c", // lime
}

// Session is the per-connection identity inside a room. The id is
// server-assigned at join; clients never supply their own.
type Session struct {
	ID       string
	Name     string
	Color    string
	Ready    bool
	Host     bool
	JoinedAt time.Time

	// Outbox carries encoded envelopes to the connection's write pump.
	Outbox chan []byte
}

func (s *Session) Info() protocol.PlayerInfo {
	return protocol.PlayerInfo{
		ID:    s.ID,
		Name:  s.Name,
		Color: s.Color,
		Ready: s.Ready,
		Host:  s.Host,
	}
}
