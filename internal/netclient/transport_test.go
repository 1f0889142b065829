package netclient

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/coder/websocket"

	"towerdef/internal/logging"
	"towerdef/internal/protocol"
)

// wsServer runs handle for every websocket the test server accepts and
// returns the ws:// url to dial.
func wsServer(t *testing.T, handle func(ctx context.Context, c *websocket.Conn)) string {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		c, err := websocket.Accept(w, r, nil)
		if err != nil {
			return
		}
		handle(r.Context(), c)
	}))
	t.Cleanup(srv.Close)
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

func newTestTransport(t *testing.T) *Transport {
	t.Helper()
	tr := NewTransport(logging.NewNop())
	tr.maxRetries = 3
	tr.baseBackoff = 10 * time.Millisecond
	t.Cleanup(func() { tr.Close() })
	return tr
}

// watch funnels every publish of one bus event into a channel.
func watch(bus *Bus, event string) <-chan json.RawMessage {
	ch := make(chan json.RawMessage, 8)
	bus.Subscribe(event, func(d json.RawMessage) {
		select {
		case ch <- d:
		default:
		}
	})
	return ch
}

func awaitSignal(t *testing.T, ch <-chan json.RawMessage, what string) json.RawMessage {
	t.Helper()
	select {
	case d := <-ch:
		return d
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out waiting for %s", what)
		return nil // unreachable
	}
}

func serverSend(t *testing.T, c *websocket.Conn, typ string, v any) {
	t.Helper()
	payload, err := protocol.Encode(typ, v)
	if err != nil {
		t.Errorf("encode %s: %v", typ, err)
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := c.Write(ctx, websocket.MessageText, payload); err != nil {
		t.Logf("server write %s: %v", typ, err)
	}
}

func TestTransport_ConnectPublishesConnected(t *testing.T) {
	url := wsServer(t, func(ctx context.Context, c *websocket.Conn) {
		c.Read(ctx) // hold the connection until the client hangs up
	})

	tr := newTestTransport(t)
	connectedCh := watch(tr.Bus(), EvtConnected)

	if err := tr.Connect(context.Background(), url); err != nil {
		t.Fatalf("connect: %v", err)
	}
	awaitSignal(t, connectedCh, EvtConnected)
	if !tr.Connected() {
		t.Fatalf("Connected() false after dial")
	}
}

func TestTransport_ServerEventsReachBus(t *testing.T) {
	url := wsServer(t, func(ctx context.Context, c *websocket.Conn) {
		serverSend(t, c, protocol.EvtWaveStarted, protocol.WaveStarted{Wave: 3})
		c.Read(ctx)
	})

	tr := newTestTransport(t)
	waveCh := watch(tr.Bus(), protocol.EvtWaveStarted)
	if err := tr.Connect(context.Background(), url); err != nil {
		t.Fatalf("connect: %v", err)
	}

	data := awaitSignal(t, waveCh, protocol.EvtWaveStarted)
	var ws protocol.WaveStarted
	if err := json.Unmarshal(data, &ws); err != nil || ws.Wave != 3 {
		t.Fatalf("wave-started payload: %s err=%v", data, err)
	}
}

func TestTransport_DisconnectResetsSessionTogether(t *testing.T) {
	url := wsServer(t, func(ctx context.Context, c *websocket.Conn) {
		serverSend(t, c, protocol.EvtJoined, protocol.Joined{Code: "bear-lamp", IsHost: true})
		time.Sleep(50 * time.Millisecond)
		c.Close(websocket.StatusNormalClosure, "done")
	})

	tr := newTestTransport(t)
	tr.maxRetries = 0 // no reconnect noise in this test
	joinedCh := watch(tr.Bus(), protocol.EvtJoined)
	downCh := watch(tr.Bus(), EvtDisconnected)

	if err := tr.Connect(context.Background(), url); err != nil {
		t.Fatalf("connect: %v", err)
	}
	awaitSignal(t, joinedCh, protocol.EvtJoined)
	if tr.RoomCode() != "bear-lamp" || !tr.IsHost() {
		t.Fatalf("session not tracked: code=%q host=%v", tr.RoomCode(), tr.IsHost())
	}

	awaitSignal(t, downCh, EvtDisconnected)
	if tr.Connected() || tr.RoomCode() != "" || tr.IsHost() {
		t.Fatalf("session fields not reset together: connected=%v code=%q host=%v",
			tr.Connected(), tr.RoomCode(), tr.IsHost())
	}
}

func TestTransport_ReconnectsWithinBudget(t *testing.T) {
	var conns int32
	url := wsServer(t, func(ctx context.Context, c *websocket.Conn) {
		if atomic.AddInt32(&conns, 1) == 1 {
			c.Close(websocket.StatusNormalClosure, "drop")
			return
		}
		c.Read(ctx)
	})

	tr := newTestTransport(t)
	connectedCh := watch(tr.Bus(), EvtConnected)
	downCh := watch(tr.Bus(), EvtDisconnected)

	if err := tr.Connect(context.Background(), url); err != nil {
		t.Fatalf("connect: %v", err)
	}
	awaitSignal(t, connectedCh, "first connect")
	awaitSignal(t, downCh, EvtDisconnected)
	awaitSignal(t, connectedCh, "reconnect")

	if !tr.Connected() {
		t.Fatalf("Connected() false after reconnect")
	}
	if got := atomic.LoadInt32(&conns); got != 2 {
		t.Fatalf("server saw %d connections, want 2", got)
	}
}

func TestTransport_SendWhileDisconnectedFails(t *testing.T) {
	tr := newTestTransport(t)
	if err := tr.StartGame(); err != ErrNotConnected {
		t.Fatalf("expected ErrNotConnected, got %v", err)
	}
}

func TestTransport_CreateRoomWaitsForJoinedAck(t *testing.T) {
	url := wsServer(t, func(ctx context.Context, c *websocket.Conn) {
		_, data, err := c.Read(ctx)
		if err != nil {
			return
		}
		var env protocol.Envelope
		if err := json.Unmarshal(data, &env); err != nil || env.Type != protocol.CmdCreateRoom {
			t.Errorf("unexpected first command: %s", data)
			return
		}
		serverSend(t, c, protocol.EvtJoined, protocol.Joined{
			Code:   "frog-dune",
			IsHost: true,
			Roster: []protocol.PlayerInfo{{ID: "p1", Name: "ada", Host: true}},
		})
		c.Read(ctx)
	})

	tr := newTestTransport(t)
	if err := tr.Connect(context.Background(), url); err != nil {
		t.Fatalf("connect: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	ack, err := tr.CreateRoom(ctx, "ada")
	if err != nil {
		t.Fatalf("create room: %v", err)
	}
	if ack.Code != "frog-dune" || !ack.IsHost || len(ack.Roster) != 1 {
		t.Fatalf("joined ack wrong: %+v", ack)
	}
	if tr.RoomCode() != "frog-dune" || !tr.IsHost() {
		t.Fatalf("session not tracked after ack: code=%q host=%v", tr.RoomCode(), tr.IsHost())
	}
}

func TestTransport_JoinRoomErrorSurfacesMessage(t *testing.T) {
	url := wsServer(t, func(ctx context.Context, c *websocket.Conn) {
		if _, _, err := c.Read(ctx); err != nil {
			return
		}
		serverSend(t, c, protocol.EvtRoomError, protocol.RoomError{Message: "room not found"})
		c.Read(ctx)
	})

	tr := newTestTransport(t)
	if err := tr.Connect(context.Background(), url); err != nil {
		t.Fatalf("connect: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	_, err := tr.JoinRoom(ctx, "no-such", "bob")
	if err == nil || err.Error() != "room not found" {
		t.Fatalf("expected room not found, got %v", err)
	}
	if tr.RoomCode() != "" {
		t.Fatalf("failed join must not record a room code")
	}
}

func TestTransport_CloseSuppressesReconnect(t *testing.T) {
	var conns int32
	url := wsServer(t, func(ctx context.Context, c *websocket.Conn) {
		atomic.AddInt32(&conns, 1)
		c.Read(ctx)
	})

	tr := newTestTransport(t)
	downCh := watch(tr.Bus(), EvtDisconnected)
	if err := tr.Connect(context.Background(), url); err != nil {
		t.Fatalf("connect: %v", err)
	}
	tr.Close()
	awaitSignal(t, downCh, EvtDisconnected)

	// give a would-be reconnect a chance to fire
	time.Sleep(100 * time.Millisecond)
	if got := atomic.LoadInt32(&conns); got != 1 {
		t.Fatalf("reconnect ran after Close: %d connections", got)
	}
	if tr.Connected() {
		t.Fatalf("Connected() true after Close")
	}
}
