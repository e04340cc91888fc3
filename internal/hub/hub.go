package hub

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/DoyleJ11/checkers-match-backend/internal/engine"
	"github.com/DoyleJ11/checkers-match-backend/internal/room"
)

var (
	ErrNoCodeAvailable = errors.New("no room code available")
	ErrHubClosed       = errors.New("hub closed")
)

// maxCodeAttempts bounds the collision retry loop in Create.
const maxCodeAttempts = 64

type Config struct {
	// Rooms is the template for every room. OnClose is owned by the hub.
	Rooms        room.Config
	GenerateCode func() (string, error)
	Logger       *zap.Logger
}

type HubMsg interface{ isHubMsg() }

type CreateRoom struct {
	Creator engine.Player
	Reply   chan createResult
}

type GetRoom struct {
	Code  string
	Reply chan *room.Room
}

// RemoveRoom drops code only while it still maps to Room, so a late removal
// never evicts a newer room that reused the code.
type RemoveRoom struct {
	Code  string
	Room  *room.Room
	Reply chan struct{}
}

type CountRooms struct {
	Reply chan int
}

type ShutdownHub struct {
	Reply chan struct{}
}

func (CreateRoom) isHubMsg()  {}
func (GetRoom) isHubMsg()     {}
func (RemoveRoom) isHubMsg()  {}
func (CountRooms) isHubMsg()  {}
func (ShutdownHub) isHubMsg() {}

type createResult struct {
	code string
	room *room.Room
	err  error
}

type Hub struct {
	inbox   chan HubMsg
	rooms   map[string]*room.Room
	roomCfg room.Config
	gen     func() (string, error)
	log     *zap.Logger
	ctx     context.Context
	cancel  context.CancelFunc
}

func NewHub(parent context.Context, cfg Config) *Hub {
	if cfg.GenerateCode == nil {
		cfg.GenerateCode = GenerateCode
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}

	ctx, cancel := context.WithCancel(parent)
	h := &Hub{
		inbox:   make(chan HubMsg, 64),
		rooms:   make(map[string]*room.Room),
		roomCfg: cfg.Rooms,
		gen:     cfg.GenerateCode,
		log:     cfg.Logger,
		ctx:     ctx,
		cancel:  cancel,
	}
	h.roomCfg.Logger = cfg.Logger.Named("room")
	h.roomCfg.OnClose = h.forget

	go h.loop()
	return h
}

// The hub loop never blocks on a room: creating a room only starts its
// goroutine, and rooms are stopped through their contexts.
func (h *Hub) loop() {
	for {
		select {
		case <-h.ctx.Done():
			return

		case m := <-h.inbox:
			switch msg := m.(type) {
			case CreateRoom:
				msg.Reply <- h.create(msg.Creator)

			case GetRoom:
				msg.Reply <- h.rooms[msg.Code] // May be nil

			case RemoveRoom:
				if cur, ok := h.rooms[msg.Code]; ok && (msg.Room == nil || cur == msg.Room) {
					delete(h.rooms, msg.Code)
					h.log.Debug("room_removed", zap.String("code", msg.Code), zap.Int("rooms", len(h.rooms)))
				}
				if msg.Reply != nil {
					msg.Reply <- struct{}{}
				}

			case CountRooms:
				msg.Reply <- len(h.rooms)

			case ShutdownHub:
				h.log.Info("hub_shutdown", zap.Int("rooms", len(h.rooms)))
				clear(h.rooms)
				h.cancel() // rooms run on child contexts and stop their timers
				msg.Reply <- struct{}{}
				return
			}
		}
	}
}

func (h *Hub) create(creator engine.Player) createResult {
	for attempt := 0; attempt < maxCodeAttempts; attempt++ {
		code, err := h.gen()
		if err != nil {
			return createResult{err: fmt.Errorf("generate code: %w", err)}
		}
		if _, taken := h.rooms[code]; taken {
			h.log.Debug("code_collision", zap.String("code", code), zap.Int("attempt", attempt))
			continue
		}

		r, err := room.New(h.ctx, code, creator, h.roomCfg)
		if err != nil {
			return createResult{err: err}
		}
		h.rooms[code] = r
		h.log.Info("room_created", zap.String("code", code), zap.String("conn_id", creator.ConnID), zap.Int("rooms", len(h.rooms)))
		return createResult{code: code, room: r}
	}
	return createResult{err: ErrNoCodeAvailable}
}

// forget is the rooms' OnClose hook. It runs on the closing room's loop and
// returns once the code is gone from the map.
func (h *Hub) forget(code string, r *room.Room) {
	reply := make(chan struct{}, 1)
	select {
	case h.inbox <- RemoveRoom{Code: code, Room: r, Reply: reply}:
	case <-h.ctx.Done():
		return
	}
	select {
	case <-reply:
	case <-h.ctx.Done():
	}
}

// Create registers a new room seating creator as white.
func (h *Hub) Create(ctx context.Context, creator engine.Player) (string, *room.Room, error) {
	reply := make(chan createResult, 1)
	if err := h.post(ctx, CreateRoom{Creator: creator, Reply: reply}); err != nil {
		return "", nil, err
	}
	res, err := wait(ctx, h, reply)
	if err != nil {
		return "", nil, err
	}
	return res.code, res.room, res.err
}

// Get returns the live room for code, or nil.
func (h *Hub) Get(ctx context.Context, code string) (*room.Room, error) {
	reply := make(chan *room.Room, 1)
	if err := h.post(ctx, GetRoom{Code: code, Reply: reply}); err != nil {
		return nil, err
	}
	return wait(ctx, h, reply)
}

// Remove destroys the room silently and drops its code. Removing an unknown
// code is a no-op.
func (h *Hub) Remove(ctx context.Context, code string) error {
	r, err := h.Get(ctx, code)
	if err != nil || r == nil {
		return err
	}
	if err := r.Close(ctx); err != nil {
		return err
	}
	reply := make(chan struct{}, 1)
	if err := h.post(ctx, RemoveRoom{Code: code, Room: r, Reply: reply}); err != nil {
		return err
	}
	_, err = wait(ctx, h, reply)
	return err
}

func (h *Hub) Count(ctx context.Context) (int, error) {
	reply := make(chan int, 1)
	if err := h.post(ctx, CountRooms{Reply: reply}); err != nil {
		return 0, err
	}
	return wait(ctx, h, reply)
}

// Shutdown stops the hub and every room it owns. Safe to call twice.
func (h *Hub) Shutdown(ctx context.Context) error {
	reply := make(chan struct{}, 1)
	if err := h.post(ctx, ShutdownHub{Reply: reply}); err != nil {
		if errors.Is(err, ErrHubClosed) {
			return nil
		}
		return err
	}
	_, err := wait(ctx, h, reply)
	if errors.Is(err, ErrHubClosed) {
		return nil
	}
	return err
}

func (h *Hub) post(ctx context.Context, m HubMsg) error {
	if h.ctx.Err() != nil {
		return ErrHubClosed
	}
	select {
	case h.inbox <- m:
		return nil
	case <-h.ctx.Done():
		return ErrHubClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

func wait[T any](ctx context.Context, h *Hub, reply <-chan T) (T, error) {
	var zero T
	select {
	case v := <-reply:
		return v, nil
	case <-h.ctx.Done():
		select {
		case v := <-reply:
			return v, nil
		default:
			return zero, ErrHubClosed
		}
	case <-ctx.Done():
		return zero, ctx.Err()
	}
}
