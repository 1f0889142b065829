package ws

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/coder/websocket"
	"go.uber.org/zap"

	"towerdef/internal/protocol"
	"towerdef/internal/registry"
	"towerdef/internal/room"
)

var (
	errRoomNotFound  = errors.New("room not found")
	errAlreadyInRoom = errors.New("already in a room")
	errNotInRoom     = errors.New("not in a room")
	errBadPayload    = errors.New("bad command payload")
	errUnknownType   = errors.New("unknown command type")
)

const (
	replyTimeout = 3 * time.Second
	writeTimeout = 3 * time.Second
	outboxSize   = 32
)

// conn tracks one player's connection-scoped state: which room actor it is
// attached to and under which server-assigned identity.
type conn struct {
	ws       *websocket.Conn
	outbox   chan []byte
	reg      *registry.Registry
	log      *zap.SugaredLogger
	room     *room.Room
	playerID string
}

// Handler bridges websocket connections to the registry and room actors.
// Each connection gets a writer goroutine draining its outbox; the reader
// loop below translates envelopes into room messages.
func Handler(reg *registry.Registry, log *zap.SugaredLogger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sock, err := websocket.Accept(w, r, nil)
		if err != nil {
			return
		}
		defer sock.Close(websocket.StatusNormalClosure, "bye")

		reg.ConnOpened()
		defer reg.ConnClosed()

		c := &conn{
			ws:     sock,
			outbox: make(chan []byte, outboxSize),
			reg:    reg,
			log:    log,
		}

		writeCtx, writeCancel := context.WithCancel(r.Context())
		defer writeCancel()
		go c.writePump(writeCtx)

		// whatever ends the read loop, the room must see the departure
		defer c.leaveRoom()

		for {
			_, data, err := sock.Read(r.Context())
			if err != nil {
				return
			}

			var env protocol.Envelope
			if err := json.Unmarshal(data, &env); err != nil {
				c.sendError(errBadPayload)
				continue
			}
			reg.CommandHandled()
			if err := c.dispatch(env); err != nil {
				c.sendError(err)
			}
		}
	}
}

func (c *conn) writePump(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case payload := <-c.outbox:
			wctx, cancel := context.WithTimeout(ctx, writeTimeout)
			err := c.ws.Write(wctx, websocket.MessageText, payload)
			cancel()
			if err != nil {
				return
			}
		}
	}
}

func (c *conn) dispatch(env protocol.Envelope) error {
	switch env.Type {
	case protocol.CmdCreateRoom:
		var cmd protocol.CreateRoom
		if err := json.Unmarshal(env.Data, &cmd); err != nil {
			return errBadPayload
		}
		return c.createRoom(cmd.Name)

	case protocol.CmdJoinRoom:
		var cmd protocol.JoinRoom
		if err := json.Unmarshal(env.Data, &cmd); err != nil {
			return errBadPayload
		}
		return c.joinRoom(cmd.Code, cmd.Name)

	case protocol.CmdLeaveRoom:
		if c.room == nil {
			return errNotInRoom
		}
		c.leaveRoom()
		return nil

	case protocol.CmdSetReady:
		var cmd protocol.SetReady
		if err := json.Unmarshal(env.Data, &cmd); err != nil {
			return errBadPayload
		}
		return c.toRoom(room.SetReady{PlayerID: c.playerID, Ready: cmd.Ready})

	case protocol.CmdStartGame:
		return c.toRoom(room.StartGame{PlayerID: c.playerID})

	case protocol.CmdPlaceTower:
		var cmd protocol.PlaceTower
		if err := json.Unmarshal(env.Data, &cmd); err != nil {
			return errBadPayload
		}
		return c.toRoom(room.PlaceTower{PlayerID: c.playerID, Cmd: cmd})

	case protocol.CmdUpgradeTower:
		var cmd protocol.UpgradeTower
		if err := json.Unmarshal(env.Data, &cmd); err != nil {
			return errBadPayload
		}
		return c.toRoom(room.UpgradeTower{PlayerID: c.playerID, Cmd: cmd})

	case protocol.CmdSellTower:
		var cmd protocol.SellTower
		if err := json.Unmarshal(env.Data, &cmd); err != nil {
			return errBadPayload
		}
		return c.toRoom(room.SellTower{PlayerID: c.playerID, Cmd: cmd})

	case protocol.CmdStartWave:
		return c.toRoom(room.StartWave{PlayerID: c.playerID})

	case protocol.CmdDamageEnemy:
		var cmd protocol.DamageEnemy
		if err := json.Unmarshal(env.Data, &cmd); err != nil {
			return errBadPayload
		}
		return c.toRoom(room.DamageEnemy{PlayerID: c.playerID, Cmd: cmd})

	case protocol.CmdUnlockResearch:
		var cmd protocol.UnlockResearch
		if err := json.Unmarshal(env.Data, &cmd); err != nil {
			return errBadPayload
		}
		return c.toRoom(room.UnlockResearch{PlayerID: c.playerID, Cmd: cmd})

	default:
		return errUnknownType
	}
}

func (c *conn) createRoom(name string) error {
	if c.room != nil {
		return errAlreadyInRoom
	}
	reply := make(chan registry.CreateResult, 1)
	c.reg.Inbox() <- registry.CreateRoom{Reply: reply}

	var res registry.CreateResult
	select {
	case res = <-reply:
	case <-time.After(replyTimeout):
		return errRoomNotFound
	}
	if res.Err != nil {
		return res.Err
	}
	return c.attach(res.Room, name)
}

func (c *conn) joinRoom(code, name string) error {
	if c.room != nil {
		return errAlreadyInRoom
	}
	reply := make(chan *room.Room, 1)
	c.reg.Inbox() <- registry.GetRoom{Code: code, Reply: reply}

	var rm *room.Room
	select {
	case rm = <-reply:
	case <-time.After(replyTimeout):
		return errRoomNotFound
	}
	if rm == nil {
		return errRoomNotFound
	}
	return c.attach(rm, name)
}

// attach joins the room actor under a fresh server-assigned identity. The
// joined ack is written by the room itself so it always precedes any
// broadcast the room emits afterwards.
func (c *conn) attach(rm *room.Room, name string) error {
	reply := make(chan room.JoinResult, 1)
	rm.Inbox() <- room.Join{Name: name, Outbox: c.outbox, Reply: reply}

	var res room.JoinResult
	select {
	case res = <-reply:
	case <-time.After(replyTimeout):
		return errRoomNotFound
	}
	if res.Err != nil {
		return res.Err
	}
	c.room = rm
	c.playerID = res.Self.ID
	c.log.Infow("attached", "room", rm.Code(), "player", c.playerID)
	return nil
}

func (c *conn) leaveRoom() {
	if c.room == nil {
		return
	}
	c.room.Inbox() <- room.Leave{PlayerID: c.playerID}
	c.room = nil
	c.playerID = ""
}

func (c *conn) toRoom(m room.Msg) error {
	if c.room == nil {
		return errNotInRoom
	}
	c.room.Inbox() <- m
	return nil
}

func (c *conn) sendError(err error) {
	payload, encErr := protocol.Encode(protocol.EvtRoomError, protocol.RoomError{Message: err.Error()})
	if encErr != nil {
		return
	}
	select {
	case c.outbox <- payload:
	default:
	}
}
