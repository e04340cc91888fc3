package room

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"

	"github.com/DoyleJ11/checkers-match-backend/internal/engine"
	wire "github.com/DoyleJ11/checkers-match-backend/pkg/types"
)

// ErrRoomNotFound is returned by every operation once the room has been
// destroyed.
var ErrRoomNotFound = errors.New("room not found")

const DefaultTurnLimit = 60 * time.Second

// Outbox delivers outbound events to connections. Implementations must not
// block: they are called from the room loop.
type Outbox interface {
	SendTo(connID, eventType string, payload any)
	// Attach and Detach keep the transport's seat index in step with the
	// room. Both run on the room loop.
	Attach(connID, code string)
	Detach(connID, code string)
}

type Config struct {
	TurnLimit time.Duration
	Clock     clockwork.Clock
	Outbox    Outbox
	Logger    *zap.Logger
	// OnClose runs synchronously on the room loop after the turn timer has
	// been stopped. The registry uses it to drop the code.
	OnClose func(code string, r *Room)
}

type Msg interface{ isRoomMsg() }

type Join struct {
	Player engine.Player
	Reply  chan JoinResult
}

func (Join) isRoomMsg() {}

type Move struct {
	ConnID  string
	Payload json.RawMessage
	Reply   chan error
}

func (Move) isRoomMsg() {}

type RequestSync struct {
	Reply chan SyncResult
}

func (RequestSync) isRoomMsg() {}

type ReportTimeout struct {
	ConnID string
	Reply  chan error
}

func (ReportTimeout) isRoomMsg() {}

type Leave struct {
	ConnID string
	Reply  chan error
}

func (Leave) isRoomMsg() {}

type Disconnect struct {
	ConnID string
	Reply  chan error
}

func (Disconnect) isRoomMsg() {}

type GameOver struct {
	ConnID string
	Winner engine.Winner
	Reply  chan error
}

func (GameOver) isRoomMsg() {}

type GetState struct {
	Reply chan View
}

func (GetState) isRoomMsg() {}

// Shutdown destroys the room without notifying anyone.
type Shutdown struct {
	Reply chan error
}

func (Shutdown) isRoomMsg() {}

type timerFired struct{ gen uint64 }

func (timerFired) isRoomMsg() {}

type StartInfo struct {
	Opponent      engine.Player
	Role          engine.Role
	TurnStartedAt int64
	ServerTime    int64
}

type JoinResult struct {
	Start StartInfo
	Err   error
}

type SyncResult struct {
	CurrentTurn   engine.Role
	TurnStartedAt int64
	ServerTime    int64
	Started       bool
}

type View struct {
	Code       string
	State      engine.State
	TimerArmed bool
	TimerGen   uint64
}

type Room struct {
	code  string
	inbox chan Msg
	state engine.State

	clock     clockwork.Clock
	turnLimit time.Duration
	timer     clockwork.Timer
	timerGen  uint64

	out     Outbox
	onClose func(code string, r *Room)
	log     *zap.Logger
	closed  bool

	ctx    context.Context
	cancel context.CancelFunc
}

// New seats creator as white and starts the room loop.
func New(parent context.Context, code string, creator engine.Player, cfg Config) (*Room, error) {
	_, state, err := engine.Apply(engine.NewEmptyState(), engine.Command{
		Type:   engine.CmdCreate,
		ConnID: creator.ConnID,
		Name:   creator.Name,
		Avatar: creator.Avatar,
	})
	if err != nil {
		return nil, err
	}

	if cfg.Clock == nil {
		cfg.Clock = clockwork.NewRealClock()
	}
	if cfg.TurnLimit <= 0 {
		cfg.TurnLimit = DefaultTurnLimit
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}

	ctx, cancel := context.WithCancel(parent)
	r := &Room{
		code:      code,
		inbox:     make(chan Msg, 64),
		state:     state,
		clock:     cfg.Clock,
		turnLimit: cfg.TurnLimit,
		out:       cfg.Outbox,
		onClose:   cfg.OnClose,
		log:       cfg.Logger.With(zap.String("code", code)),
		ctx:       ctx,
		cancel:    cancel,
	}

	if r.out != nil {
		r.out.Attach(creator.ConnID, code)
	}

	go r.loop()
	return r, nil
}

func (r *Room) Code() string { return r.code }

// Done is closed once the room has been destroyed or its parent cancelled.
func (r *Room) Done() <-chan struct{} { return r.ctx.Done() }

func (r *Room) loop() {
	for {
		select {
		case <-r.ctx.Done():
			r.stopTimer()
			return

		case m := <-r.inbox:
			if r.ctx.Err() != nil {
				r.stopTimer()
				return
			}
			r.handle(m)
			if r.closed {
				r.cancel()
				return
			}
		}
	}
}

func (r *Room) handle(m Msg) {
	switch msg := m.(type) {
	case Join:
		msg.Reply <- r.join(msg.Player)

	case Move:
		msg.Reply <- r.move(msg.ConnID, msg.Payload)

	case RequestSync:
		msg.Reply <- r.syncState()

	case ReportTimeout:
		msg.Reply <- r.apply(engine.Command{Type: engine.CmdReportTimeout, ConnID: msg.ConnID})

	case Leave:
		msg.Reply <- r.apply(engine.Command{Type: engine.CmdLeave, ConnID: msg.ConnID})

	case Disconnect:
		msg.Reply <- r.apply(engine.Command{Type: engine.CmdDisconnect, ConnID: msg.ConnID})

	case GameOver:
		msg.Reply <- r.apply(engine.Command{Type: engine.CmdGameOver, ConnID: msg.ConnID, Winner: msg.Winner})

	case GetState:
		// copy out for readers outside the loop
		msg.Reply <- View{
			Code:       r.code,
			State:      r.state,
			TimerArmed: r.timer != nil,
			TimerGen:   r.timerGen,
		}

	case Shutdown:
		r.destroy("shutdown")
		msg.Reply <- nil

	case timerFired:
		if msg.gen != r.timerGen || r.timer == nil {
			r.log.Debug("stale_timer_fire", zap.Uint64("gen", msg.gen), zap.Uint64("current_gen", r.timerGen))
			return
		}
		r.timer = nil
		if err := r.apply(engine.Command{Type: engine.CmdTurnExpired}); err != nil {
			r.log.Warn("turn_expiry_rejected", zap.Error(err))
		}
	}
}

func (r *Room) join(p engine.Player) JoinResult {
	err := r.apply(engine.Command{
		Type:   engine.CmdJoin,
		ConnID: p.ConnID,
		Name:   p.Name,
		Avatar: p.Avatar,
	})
	if err != nil {
		return JoinResult{Err: err}
	}

	self, _ := engine.FindPlayer(r.state, p.ConnID)
	opp, _ := engine.Opponent(r.state, p.ConnID)
	return JoinResult{Start: StartInfo{
		Opponent:      opp,
		Role:          self.Role,
		TurnStartedAt: r.state.TurnStartedAt,
		ServerTime:    r.state.TurnStartedAt,
	}}
}

func (r *Room) move(connID string, payload json.RawMessage) error {
	err := r.apply(engine.Command{Type: engine.CmdMove, ConnID: connID, Payload: payload})
	if errors.Is(err, engine.ErrWrongTurn) {
		// Stale or racing client: restate the authoritative turn.
		r.log.Debug("stale_move", zap.String("conn_id", connID), zap.String("current_turn", string(r.state.CurrentTurn)))
		r.send(connID, wire.EventSyncState, r.turnState())
	}
	return err
}

// apply runs one engine command and performs its side effects. It is the
// only place room state changes.
func (r *Room) apply(cmd engine.Command) error {
	cmd.Now = r.now()
	events, next, err := engine.Apply(r.state, cmd)
	if err != nil {
		return err
	}
	prev := r.state
	r.state = next
	r.dispatchWith(prev, events)
	return nil
}

// dispatchWith maps engine events to timer operations and outbound messages.
// prev is the state before the command, needed to detach departed players.
func (r *Room) dispatchWith(prev engine.State, events []engine.Event) {
	for _, e := range events {
		switch e.Type {
		case engine.EvtPlayerSeated:
			if r.out != nil {
				r.out.Attach(e.ConnID, r.code)
			}
			r.log.Info("player_seated", zap.String("conn_id", e.ConnID), zap.String("role", string(e.Role)))

		case engine.EvtGameStarted:
			r.announceStart()

		case engine.EvtTimerStarted:
			r.armTimer()

		case engine.EvtTurnAdvanced:
			r.log.Debug("turn_advanced", zap.String("current_turn", string(e.Role)), zap.Int64("turn_started_at", r.state.TurnStartedAt))

		case engine.EvtMoveRelayed:
			ts := r.turnState()
			r.broadcast(wire.EventOpponentMove, wire.OpponentMove{
				MovePayload:   e.Payload,
				TurnStartedAt: ts.TurnStartedAt,
				CurrentTurn:   ts.CurrentTurn,
				ServerTime:    ts.ServerTime,
			}, e.ConnID)
			r.send(e.ConnID, wire.EventMoveConfirmed, ts)

		case engine.EvtTurnExpired:
			r.log.Info("turn_expired", zap.String("conn_id", e.ConnID), zap.String("role", string(e.Role)))
			r.send(e.ConnID, wire.EventTimeoutLoss, nil)
			r.broadcast(wire.EventOpponentTimeout, nil, e.ConnID)

		case engine.EvtTimeoutReported:
			r.log.Info("timeout_reported", zap.String("conn_id", e.ConnID), zap.String("role", string(e.Role)))
			r.broadcast(wire.EventOpponentTimeout, nil, e.ConnID)

		case engine.EvtPlayerLeft:
			r.log.Info("player_left", zap.String("conn_id", e.ConnID))
			r.broadcast(wire.EventOpponentLeft, nil, e.ConnID)

		case engine.EvtPlayerDisconnected:
			r.log.Info("player_disconnected", zap.String("conn_id", e.ConnID))
			r.broadcast(wire.EventOpponentDisconnected, nil, e.ConnID)

		case engine.EvtGameFinished:
			r.log.Info("game_finished", zap.String("winner", string(e.Winner)), zap.String("reported_by", e.ConnID))
			r.broadcast(wire.EventGameFinished, wire.GameFinished{WinnerRole: string(e.Winner)}, "")

		case engine.EvtSessionEnded:
			r.detachAll(prev)
			r.destroy(string(events[0].Type))
		}
	}
}

func (r *Room) announceStart() {
	now := r.now()
	for _, p := range r.state.Players {
		opp, _ := engine.Opponent(r.state, p.ConnID)
		r.send(p.ConnID, wire.EventStartGame, wire.StartGame{
			Opponent:      wire.Opponent{DisplayName: opp.Name, AvatarRef: opp.Avatar},
			Role:          string(p.Role),
			TurnStartedAt: r.state.TurnStartedAt,
			ServerTime:    now,
		})
	}
	r.log.Info("game_started", zap.Int64("turn_started_at", r.state.TurnStartedAt))
}

// destroy is the single terminal transition. It is idempotent: the timer is
// stopped (bumping the generation so in-flight fires become no-ops) before
// the registry drops the code.
func (r *Room) destroy(reason string) {
	if r.closed {
		return
	}
	r.stopTimer()
	r.closed = true
	if r.onClose != nil {
		r.onClose(r.code, r)
	}
	r.log.Info("room_destroyed", zap.String("reason", reason), zap.Int("moves", r.state.Moves))
}

func (r *Room) detachAll(prev engine.State) {
	if r.out == nil {
		return
	}
	for _, p := range prev.Players {
		r.out.Detach(p.ConnID, r.code)
	}
}

func (r *Room) syncState() SyncResult {
	if r.state.Status != engine.StatusPlaying {
		return SyncResult{}
	}
	res := SyncResult{
		CurrentTurn:   r.state.CurrentTurn,
		TurnStartedAt: r.state.TurnStartedAt,
		ServerTime:    r.now(),
		Started:       true,
	}
	r.log.Debug("sync_requested",
		zap.String("current_turn", string(res.CurrentTurn)),
		zap.Duration("remaining", Remaining(r.turnLimit, res.TurnStartedAt, res.ServerTime)))
	return res
}

func (r *Room) turnState() wire.TurnState {
	return wire.TurnState{
		CurrentTurn:   string(r.state.CurrentTurn),
		TurnStartedAt: r.state.TurnStartedAt,
		ServerTime:    r.now(),
	}
}

func (r *Room) send(connID, eventType string, payload any) {
	if r.out == nil {
		return
	}
	r.out.SendTo(connID, eventType, payload)
}

// broadcast sends to every seated player except the excluded connection.
func (r *Room) broadcast(eventType string, payload any, excluding string) {
	for _, p := range r.state.Players {
		if p.ConnID == excluding {
			continue
		}
		r.send(p.ConnID, eventType, payload)
	}
}

func (r *Room) now() int64 { return r.clock.Now().UnixMilli() }
