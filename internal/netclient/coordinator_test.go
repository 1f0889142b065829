package netclient

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/coder/websocket"

	"towerdef/internal/protocol"
)

func TestNewCoordinator_RequiresConnection(t *testing.T) {
	tr := newTestTransport(t)
	if _, err := NewCoordinator(tr, nil, nil, nil, nil); err != ErrNotConnected {
		t.Fatalf("expected ErrNotConnected, got %v", err)
	}
}

func TestNewCoordinator_RequiresRoomMembership(t *testing.T) {
	url := wsServer(t, func(ctx context.Context, c *websocket.Conn) {
		c.Read(ctx)
	})
	tr := newTestTransport(t)
	if err := tr.Connect(context.Background(), url); err != nil {
		t.Fatalf("connect: %v", err)
	}
	if _, err := NewCoordinator(tr, nil, nil, nil, nil); err != ErrNotInRoom {
		t.Fatalf("expected ErrNotInRoom, got %v", err)
	}
}

func TestCoordinator_AttachesModulesAndSendsCommands(t *testing.T) {
	inbound := make(chan protocol.Envelope, 8)
	url := wsServer(t, func(ctx context.Context, c *websocket.Conn) {
		serverSend(t, c, protocol.EvtJoined, protocol.Joined{Code: "bear-lamp", IsHost: true})
		for {
			_, data, err := c.Read(ctx)
			if err != nil {
				return
			}
			var env protocol.Envelope
			if json.Unmarshal(data, &env) == nil {
				inbound <- env
			}
			if env.Type == protocol.CmdStartWave {
				serverSend(t, c, protocol.EvtWaveStarted, protocol.WaveStarted{Wave: 1})
			}
		}
	})

	tr := newTestTransport(t)
	joinedCh := watch(tr.Bus(), protocol.EvtJoined)
	if err := tr.Connect(context.Background(), url); err != nil {
		t.Fatalf("connect: %v", err)
	}
	awaitSignal(t, joinedCh, protocol.EvtJoined)

	waveCh := make(chan int, 1)
	coord, err := NewCoordinator(tr, nil, nil, nil, &WaveSync{
		OnStarted: func(wave int) { waveCh <- wave },
	})
	if err != nil {
		t.Fatalf("coordinator: %v", err)
	}

	if err := coord.StartWave(); err != nil {
		t.Fatalf("start wave: %v", err)
	}
	select {
	case env := <-inbound:
		if env.Type != protocol.CmdStartWave {
			t.Fatalf("server received %q, want %q", env.Type, protocol.CmdStartWave)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("server never received the command")
	}
	select {
	case wave := <-waveCh:
		if wave != 1 {
			t.Fatalf("wave callback got %d", wave)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("wave module never fired")
	}

	// detached modules stay quiet; the transport itself keeps working
	coord.Close()
	if err := coord.StartWave(); err != nil {
		t.Fatalf("send after Close: %v", err)
	}
	select {
	case <-waveCh:
		t.Fatalf("detached module received an event")
	case <-time.After(100 * time.Millisecond):
	}
}
