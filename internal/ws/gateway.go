package ws

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"

	"github.com/DoyleJ11/checkers-match-backend/internal/engine"
	"github.com/DoyleJ11/checkers-match-backend/internal/hub"
	"github.com/DoyleJ11/checkers-match-backend/internal/room"
	"github.com/DoyleJ11/checkers-match-backend/internal/types"
	wire "github.com/DoyleJ11/checkers-match-backend/pkg/types"
)

// Messages surfaced to clients as error_message.
const (
	msgRoomNotFound  = "room not found"
	msgRoomFull      = "room is full"
	msgAlreadyInRoom = "already in room"
	msgCreateFailed  = "could not create room"
)

// Gateway resolves inbound events to the hub or the sender's room and
// delivers outbound events through Connections.
type Gateway struct {
	hub   *hub.Hub
	conns *Connections
	clock clockwork.Clock
	log   *zap.Logger
}

func NewGateway(h *hub.Hub, conns *Connections, clock clockwork.Clock, log *zap.Logger) *Gateway {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Gateway{hub: h, conns: conns, clock: clock, log: log}
}

func (g *Gateway) Connections() *Connections { return g.conns }

func (g *Gateway) SendTo(connID, eventType string, payload any) {
	g.conns.SendTo(connID, eventType, payload)
}

// BroadcastToRoom sends to every member of code except excluding. An unknown
// code is a no-op. Rooms relay their own events on their loop; this is for
// callers outside a room.
func (g *Gateway) BroadcastToRoom(ctx context.Context, code, eventType string, payload any, excluding string) error {
	r, err := g.hub.Get(ctx, code)
	if err != nil || r == nil {
		return err
	}
	v, err := r.View(ctx)
	if errors.Is(err, room.ErrRoomNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	for _, p := range v.State.Players {
		if p.ConnID == excluding {
			continue
		}
		g.conns.SendTo(p.ConnID, eventType, payload)
	}
	return nil
}

// EchoServerTime answers a clock probe. It touches no room state.
func (g *Gateway) EchoServerTime(clientTimestamp int64) wire.TimeSync {
	return wire.TimeSync{ServerTime: g.clock.Now().UnixMilli(), ClientTimestamp: clientTimestamp}
}

// Dispatch handles one inbound event from connID. Malformed and unknown
// events are dropped.
func (g *Gateway) Dispatch(ctx context.Context, connID string, msg types.ClientMessage) {
	log := g.log.With(zap.String("conn_id", connID), zap.String("type", msg.Type))

	switch msg.Type {
	case wire.EventCreateGame:
		var in wire.CreateGame
		if !decode(log, msg.Data, &in) {
			return
		}
		g.createGame(ctx, log, connID, in)

	case wire.EventJoinGame:
		var in wire.JoinGame
		if !decode(log, msg.Data, &in) {
			return
		}
		g.joinGame(ctx, log, connID, in)

	case wire.EventMove:
		var in wire.Move
		if !decode(log, msg.Data, &in) {
			return
		}
		r := g.lookup(ctx, connID, in.Code)
		if r == nil {
			return
		}
		if err := r.Move(ctx, connID, in.MovePayload); err != nil {
			log.Debug("move_rejected", zap.String("code", r.Code()), zap.Error(err))
		}

	case wire.EventRequestSync:
		var in wire.RoomRef
		if !decode(log, msg.Data, &in) {
			return
		}
		r := g.lookup(ctx, connID, in.Code)
		if r == nil {
			return
		}
		res, err := r.Sync(ctx)
		if err != nil || !res.Started {
			return
		}
		g.SendTo(connID, wire.EventSyncTimer, wire.TurnState{
			CurrentTurn:   string(res.CurrentTurn),
			TurnStartedAt: res.TurnStartedAt,
			ServerTime:    res.ServerTime,
		})

	case wire.EventTimeout:
		var in wire.RoomRef
		if !decode(log, msg.Data, &in) {
			return
		}
		if r := g.lookup(ctx, connID, in.Code); r != nil {
			if err := r.ReportTimeout(ctx, connID); err != nil {
				log.Debug("timeout_report_ignored", zap.Error(err))
			}
		}

	case wire.EventPlayerLeft:
		var in wire.RoomRef
		if !decode(log, msg.Data, &in) {
			return
		}
		if r := g.lookup(ctx, connID, in.Code); r != nil {
			if err := r.Leave(ctx, connID); err != nil {
				log.Debug("leave_ignored", zap.Error(err))
			}
		}

	case wire.EventGameOver:
		var in wire.GameOver
		if !decode(log, msg.Data, &in) {
			return
		}
		winner, ok := engine.ParseWinner(in.WinnerRole)
		if !ok {
			log.Debug("bad_winner", zap.String("winner", in.WinnerRole))
			return
		}
		if r := g.lookup(ctx, connID, in.Code); r != nil {
			if err := r.GameOver(ctx, connID, winner); err != nil {
				log.Debug("game_over_ignored", zap.Error(err))
			}
		}

	case wire.EventTimeSync:
		ts, ok := parseClientTimestamp(msg.Data)
		if !ok {
			log.Debug("bad_time_sync")
			return
		}
		g.SendTo(connID, wire.EventTimeSync, g.EchoServerTime(ts))

	default:
		log.Debug("unknown_event")
	}
}

func (g *Gateway) createGame(ctx context.Context, log *zap.Logger, connID string, in wire.CreateGame) {
	g.leaveCurrent(ctx, connID)

	code, _, err := g.hub.Create(ctx, engine.Player{ConnID: connID, Name: in.DisplayName, Avatar: in.AvatarRef})
	if err != nil {
		log.Error("create_failed", zap.Error(err))
		g.SendTo(connID, wire.EventErrorMessage, msgCreateFailed)
		return
	}
	g.SendTo(connID, wire.EventGameCreated, wire.GameCreated{Code: code, Role: string(engine.RoleWhite)})
}

func (g *Gateway) joinGame(ctx context.Context, log *zap.Logger, connID string, in wire.JoinGame) {
	r, err := g.hub.Get(ctx, in.Code)
	if err != nil {
		log.Warn("hub_unavailable", zap.Error(err))
		return
	}
	if r == nil {
		g.SendTo(connID, wire.EventErrorMessage, msgRoomNotFound)
		return
	}
	if cur, ok := g.conns.SeatOf(connID); ok {
		if cur == in.Code {
			g.SendTo(connID, wire.EventErrorMessage, msgAlreadyInRoom)
			return
		}
		g.leaveCurrent(ctx, connID)
	}

	_, err = r.Join(ctx, engine.Player{ConnID: connID, Name: in.DisplayName, Avatar: in.AvatarRef})
	switch {
	case err == nil:
		log.Debug("joined", zap.String("code", in.Code))
	case errors.Is(err, engine.ErrRoomFull):
		g.SendTo(connID, wire.EventErrorMessage, msgRoomFull)
	case errors.Is(err, engine.ErrAlreadySeated):
		g.SendTo(connID, wire.EventErrorMessage, msgAlreadyInRoom)
	case errors.Is(err, room.ErrRoomNotFound):
		g.SendTo(connID, wire.EventErrorMessage, msgRoomNotFound)
	default:
		log.Warn("join_failed", zap.String("code", in.Code), zap.Error(err))
	}
}

// Disconnect forgets connID and runs disconnect cleanup for its room.
func (g *Gateway) Disconnect(ctx context.Context, connID string) {
	code := g.conns.Unregister(connID)
	if code == "" {
		return
	}
	r, err := g.hub.Get(ctx, code)
	if err != nil || r == nil {
		return
	}
	if err := r.Disconnect(ctx, connID); err != nil && !errors.Is(err, room.ErrRoomNotFound) {
		g.log.Debug("disconnect_ignored", zap.String("conn_id", connID), zap.String("code", code), zap.Error(err))
	}
}

// leaveCurrent keeps membership at zero or one: a seated connection leaves
// its room before creating or joining another.
func (g *Gateway) leaveCurrent(ctx context.Context, connID string) {
	code, ok := g.conns.SeatOf(connID)
	if !ok {
		return
	}
	if r, err := g.hub.Get(ctx, code); err == nil && r != nil {
		_ = r.Leave(ctx, connID)
	}
	g.conns.Detach(connID, code)
}

// lookup resolves the room an event addresses. Events without a code fall
// back to the sender's seat.
func (g *Gateway) lookup(ctx context.Context, connID, code string) *room.Room {
	if code == "" {
		code, _ = g.conns.SeatOf(connID)
	}
	if code == "" {
		return nil
	}
	r, err := g.hub.Get(ctx, code)
	if err != nil {
		g.log.Warn("hub_unavailable", zap.Error(err))
		return nil
	}
	return r
}

func decode(log *zap.Logger, data json.RawMessage, v any) bool {
	if len(data) == 0 {
		log.Debug("missing_payload")
		return false
	}
	if err := json.Unmarshal(data, v); err != nil {
		log.Debug("malformed_payload", zap.Error(err))
		return false
	}
	return true
}

// parseClientTimestamp accepts either a bare number or {"clientTimestamp": n}.
func parseClientTimestamp(data json.RawMessage) (int64, bool) {
	var n float64
	if err := json.Unmarshal(data, &n); err == nil {
		return int64(n), true
	}
	var obj struct {
		ClientTimestamp *float64 `json:"clientTimestamp"`
	}
	if err := json.Unmarshal(data, &obj); err != nil || obj.ClientTimestamp == nil {
		return 0, false
	}
	return int64(*obj.ClientTimestamp), true
}
