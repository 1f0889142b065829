package netclient

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/coder/websocket"
	"go.uber.org/zap"

	"towerdef/internal/protocol"
)

var (
	ErrNotConnected = errors.New("not connected")
	ErrDisconnected = errors.New("connection lost")
	ErrNotInRoom    = errors.New("not in a room")
)

// Synthetic bus events the transport publishes alongside the wire events.
const (
	EvtConnected    = "connected"
	EvtDisconnected = "disconnected"
)

const (
	defaultMaxRetries  = 5
	defaultBaseBackoff = 500 * time.Millisecond
	maxBackoff         = 8 * time.Second
	sendTimeout        = 3 * time.Second
)

// Transport wraps one persistent websocket connection. Reconnection is
// automatic and bounded; commands issued while disconnected are dropped with
// ErrNotConnected, never queued for replay.
type Transport struct {
	bus *Bus
	log *zap.SugaredLogger

	maxRetries  int
	baseBackoff time.Duration

	mu        sync.Mutex
	conn      *websocket.Conn
	url       string
	connected bool
	roomCode  string
	isHost    bool
	closed    bool
}

func NewTransport(log *zap.SugaredLogger) *Transport {
	return &Transport{
		bus:         NewBus(),
		log:         log,
		maxRetries:  defaultMaxRetries,
		baseBackoff: defaultBaseBackoff,
	}
}

func (t *Transport) Bus() *Bus { return t.bus }

func (t *Transport) Connected() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.connected
}

func (t *Transport) RoomCode() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.roomCode
}

func (t *Transport) IsHost() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.isHost
}

// Connect dials the server and returns once the handshake succeeds or fails.
// On success a reader goroutine starts publishing inbound events on the bus.
func (t *Transport) Connect(ctx context.Context, url string) error {
	conn, _, err := websocket.Dial(ctx, url, nil)
	if err != nil {
		return err
	}

	t.mu.Lock()
	t.conn = conn
	t.url = url
	t.connected = true
	t.closed = false
	t.mu.Unlock()

	go t.readLoop(conn)
	t.bus.Publish(EvtConnected, nil)
	return nil
}

// Close tears the connection down for good; no reconnect follows.
func (t *Transport) Close() error {
	t.mu.Lock()
	t.closed = true
	conn := t.conn
	t.conn = nil
	t.mu.Unlock()

	if conn != nil {
		return conn.Close(websocket.StatusNormalClosure, "bye")
	}
	return nil
}

func (t *Transport) readLoop(conn *websocket.Conn) {
	for {
		_, data, err := conn.Read(context.Background())
		if err != nil {
			t.onDisconnect()
			return
		}
		var env protocol.Envelope
		if err := json.Unmarshal(data, &env); err != nil {
			continue
		}
		t.trackSession(env)
		t.bus.Publish(env.Type, env.Data)
	}
}

// trackSession mirrors the few session facts the transport itself owns.
// Membership truth always comes from the server's joined payload, never from
// anything cached across a disconnect.
func (t *Transport) trackSession(env protocol.Envelope) {
	switch env.Type {
	case protocol.EvtJoined:
		var j protocol.Joined
		if err := json.Unmarshal(env.Data, &j); err != nil {
			return
		}
		t.mu.Lock()
		t.roomCode = j.Code
		t.isHost = j.IsHost
		t.mu.Unlock()
	}
}

// onDisconnect resets all session-local fields together, so no caller ever
// observes a connected flag without its matching room state.
func (t *Transport) onDisconnect() {
	t.mu.Lock()
	t.conn = nil
	t.connected = false
	t.roomCode = ""
	t.isHost = false
	closed := t.closed
	url := t.url
	t.mu.Unlock()

	t.bus.Publish(EvtDisconnected, nil)
	if !closed {
		go t.reconnect(url)
	}
}

// reconnect retries with capped exponential backoff up to the attempt
// budget, then gives up and stays disconnected.
func (t *Transport) reconnect(url string) {
	backoff := t.baseBackoff
	for attempt := 1; attempt <= t.maxRetries; attempt++ {
		time.Sleep(backoff)
		if backoff *= 2; backoff > maxBackoff {
			backoff = maxBackoff
		}

		t.mu.Lock()
		if t.closed {
			t.mu.Unlock()
			return
		}
		t.mu.Unlock()

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		conn, _, err := websocket.Dial(ctx, url, nil)
		cancel()
		if err != nil {
			t.log.Warnw("reconnect failed", "attempt", attempt, "err", err)
			continue
		}

		t.mu.Lock()
		t.conn = conn
		t.connected = true
		t.mu.Unlock()

		go t.readLoop(conn)
		t.bus.Publish(EvtConnected, nil)
		t.log.Infow("reconnected", "attempt", attempt)
		return
	}
	t.log.Warnw("reconnect attempts exhausted", "attempts", t.maxRetries)
}

// Send emits one command envelope. Disconnected sends fail immediately;
// there is no outbound replay buffer.
func (t *Transport) Send(typ string, v any) error {
	t.mu.Lock()
	conn := t.conn
	connected := t.connected
	t.mu.Unlock()

	if !connected || conn == nil {
		return ErrNotConnected
	}

	payload, err := protocol.Encode(typ, v)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(context.Background(), sendTimeout)
	defer cancel()
	return conn.Write(ctx, websocket.MessageText, payload)
}

// roomRequest sends a room command and waits for the matching joined ack or
// room-error. Per-connection ordered delivery and one outstanding request at
// a time make type-matching sufficient; the protocol has no sequence numbers.
func (t *Transport) roomRequest(ctx context.Context, cmdType string, cmd any) (protocol.Joined, error) {
	joinedCh := make(chan protocol.Joined, 1)
	errCh := make(chan error, 1)
	downCh := make(chan struct{}, 1)

	joinedID := t.bus.Subscribe(protocol.EvtJoined, func(data json.RawMessage) {
		var j protocol.Joined
		if err := json.Unmarshal(data, &j); err != nil {
			return
		}
		select {
		case joinedCh <- j:
		default:
		}
	})
	defer t.bus.Unsubscribe(protocol.EvtJoined, joinedID)

	errID := t.bus.Subscribe(protocol.EvtRoomError, func(data json.RawMessage) {
		var re protocol.RoomError
		if err := json.Unmarshal(data, &re); err != nil {
			return
		}
		select {
		case errCh <- errors.New(re.Message):
		default:
		}
	})
	defer t.bus.Unsubscribe(protocol.EvtRoomError, errID)

	downID := t.bus.Subscribe(EvtDisconnected, func(json.RawMessage) {
		select {
		case downCh <- struct{}{}:
		default:
		}
	})
	defer t.bus.Unsubscribe(EvtDisconnected, downID)

	if err := t.Send(cmdType, cmd); err != nil {
		return protocol.Joined{}, err
	}

	select {
	case j := <-joinedCh:
		return j, nil
	case err := <-errCh:
		return protocol.Joined{}, err
	case <-downCh:
		return protocol.Joined{}, ErrDisconnected
	case <-ctx.Done():
		return protocol.Joined{}, ctx.Err()
	}
}

func (t *Transport) CreateRoom(ctx context.Context, name string) (protocol.Joined, error) {
	return t.roomRequest(ctx, protocol.CmdCreateRoom, protocol.CreateRoom{Name: name})
}

func (t *Transport) JoinRoom(ctx context.Context, code, name string) (protocol.Joined, error) {
	return t.roomRequest(ctx, protocol.CmdJoinRoom, protocol.JoinRoom{Code: code, Name: name})
}

func (t *Transport) LeaveRoom() error {
	err := t.Send(protocol.CmdLeaveRoom, protocol.LeaveRoom{})
	if err == nil {
		t.mu.Lock()
		t.roomCode = ""
		t.isHost = false
		t.mu.Unlock()
	}
	return err
}

func (t *Transport) SetReady(ready bool) error {
	return t.Send(protocol.CmdSetReady, protocol.SetReady{Ready: ready})
}

func (t *Transport) StartGame() error {
	return t.Send(protocol.CmdStartGame, protocol.StartGame{})
}
