package registry

import (
	"context"
	"errors"
	"math/rand"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"towerdef/internal/config"
	"towerdef/internal/room"
)

var ErrServerFull = errors.New("server room limit reached")

// Msg is the closed set of messages the registry actor accepts.
type Msg interface{ isRegistryMsg() }

type CreateRoom struct {
	Reply chan CreateResult
}

type CreateResult struct {
	Code string
	Room *room.Room
	Err  error
}

type GetRoom struct {
	Code  string
	Reply chan *room.Room
}

type RemoveRoom struct{ Code string }

type Shutdown struct{}

type GetStats struct{ Reply chan Stats }

type Stats struct {
	OpenRooms    int   `json:"openRooms"`
	RoomsCreated int64 `json:"roomsCreated"`
	Connections  int64 `json:"connections"`
	Commands     int64 `json:"commands"`
}

func (CreateRoom) isRegistryMsg() {}
func (GetRoom) isRegistryMsg()    {}
func (RemoveRoom) isRegistryMsg() {}
func (Shutdown) isRegistryMsg()   {}
func (GetStats) isRegistryMsg()   {}

// Registry is the one object that maps room codes to live room actors. It is
// constructed once at startup and injected wherever rooms are resolved, so
// nothing else can reach for a hidden global rooms map.
type Registry struct {
	inbox chan Msg
	rooms map[string]*room.Room
	cfg   config.Config
	log   *zap.SugaredLogger
	rng   *rand.Rand

	roomsCreated atomic.Int64
	connections  atomic.Int64
	commands     atomic.Int64

	ctx    context.Context
	cancel context.CancelFunc
}

func New(parent context.Context, cfg config.Config, log *zap.SugaredLogger) *Registry {
	ctx, cancel := context.WithCancel(parent)
	r := &Registry{
		inbox:  make(chan Msg, 64),
		rooms:  make(map[string]*room.Room),
		cfg:    cfg,
		log:    log,
		rng:    rand.New(rand.NewSource(time.Now().UnixNano())),
		ctx:    ctx,
		cancel: cancel,
	}
	go r.loop()
	return r
}

func (r *Registry) Inbox() chan<- Msg { return r.inbox }

// Connection/command counters are bumped straight from the ws goroutines.
func (r *Registry) ConnOpened()     { r.connections.Add(1) }
func (r *Registry) ConnClosed()     { r.connections.Add(-1) }
func (r *Registry) CommandHandled() { r.commands.Add(1) }

func (r *Registry) loop() {
	for {
		select {
		case <-r.ctx.Done():
			return
		case m := <-r.inbox:
			switch msg := m.(type) {
			case CreateRoom:
				msg.Reply <- r.create()
			case GetRoom:
				msg.Reply <- r.rooms[msg.Code]
			case RemoveRoom:
				if _, ok := r.rooms[msg.Code]; ok {
					delete(r.rooms, msg.Code)
					r.log.Infow("room removed", "room", msg.Code, "open", len(r.rooms))
				}
			case GetStats:
				msg.Reply <- Stats{
					OpenRooms:    len(r.rooms),
					RoomsCreated: r.roomsCreated.Load(),
					Connections:  r.connections.Load(),
					Commands:     r.commands.Load(),
				}
			case Shutdown:
				for _, rm := range r.rooms {
					rm.Inbox() <- room.Shutdown{}
				}
				clear(r.rooms)
				r.cancel()
				return
			}
		}
	}
}

func (r *Registry) create() CreateResult {
	if len(r.rooms) >= r.cfg.MaxRooms {
		return CreateResult{Err: ErrServerFull}
	}

	code := generateCode(r.rng)
	for _, taken := r.rooms[code]; taken; _, taken = r.rooms[code] {
		code = generateCode(r.rng)
	}

	rm := room.New(r.ctx, code, r.cfg, r.log, uuid.NewString, func(emptied string) {
		r.inbox <- RemoveRoom{Code: emptied}
	})
	r.rooms[code] = rm
	r.roomsCreated.Add(1)
	r.log.Infow("room created", "room", code, "open", len(r.rooms))
	return CreateResult{Code: code, Room: rm}
}
