package engine

import (
	"encoding/json"
	"errors"
)

var ErrRoomFull = errors.New("room is full")
var ErrAlreadySeated = errors.New("already seated in this room")
var ErrNotMember = errors.New("not a member of this room")
var ErrNotStarted = errors.New("game has not started")
var ErrWrongTurn = errors.New("not your turn")
var ErrInvalidWinner = errors.New("invalid winner")
var ErrUnsupportedCommand = errors.New("unsupported command")

type Status string

const (
	StatusWaiting Status = "waiting"
	StatusPlaying Status = "playing"
)

type Player struct {
	ConnID string
	Name   string
	Avatar string
	Role   Role
}

// State is the per-room session state. A destroyed room has no state at all:
// it is simply absent from the registry.
type State struct {
	Status        Status
	Players       []Player
	CurrentTurn   Role  // empty unless playing
	TurnStartedAt int64 // unix ms, 0 until the game starts
	Moves         int
}

type CommandType string

const (
	CmdCreate        CommandType = "Create"
	CmdJoin          CommandType = "Join"
	CmdMove          CommandType = "Move"
	CmdTurnExpired   CommandType = "TurnExpired"
	CmdReportTimeout CommandType = "ReportTimeout"
	CmdLeave         CommandType = "Leave"
	CmdDisconnect    CommandType = "Disconnect"
	CmdGameOver      CommandType = "GameOver"
)

/*
	CmdCreate        -> EvtPlayerSeated
	CmdJoin          -> EvtPlayerSeated -> EvtGameStarted -> EvtTimerStarted
	CmdMove          -> EvtTurnAdvanced -> EvtTimerStarted -> EvtMoveRelayed
	CmdTurnExpired   -> EvtTurnExpired -> EvtSessionEnded
	CmdReportTimeout -> EvtTimeoutReported -> EvtSessionEnded
	CmdLeave         -> EvtPlayerLeft -> EvtSessionEnded
	CmdDisconnect    -> EvtPlayerDisconnected -> EvtSessionEnded
	CmdGameOver      -> EvtGameFinished -> EvtSessionEnded
*/

type Command struct {
	Type    CommandType
	ConnID  string
	Name    string
	Avatar  string
	Payload json.RawMessage
	Winner  Winner
	Now     int64 // unix ms
}

type EventType string

const (
	EvtPlayerSeated       EventType = "PlayerSeated"
	EvtGameStarted        EventType = "GameStarted"
	EvtTimerStarted       EventType = "TimerStarted"
	EvtTurnAdvanced       EventType = "TurnAdvanced"
	EvtMoveRelayed        EventType = "MoveRelayed"
	EvtTurnExpired        EventType = "TurnExpired"
	EvtTimeoutReported    EventType = "TimeoutReported"
	EvtPlayerLeft         EventType = "PlayerLeft"
	EvtPlayerDisconnected EventType = "PlayerDisconnected"
	EvtGameFinished       EventType = "GameFinished"
	EvtSessionEnded       EventType = "SessionEnded"
)

type Event struct {
	Type    EventType
	ConnID  string // player the event is about
	Role    Role
	Winner  Winner
	Payload json.RawMessage
}

func Apply(s State, cmd Command) ([]Event, State, error) {
	newState := s
	newState.Players = clonePlayers(s.Players)

	switch cmd.Type {
	case CmdCreate, CmdJoin:
		if _, ok := FindPlayer(s, cmd.ConnID); ok {
			return nil, s, ErrAlreadySeated
		}
		if len(s.Players) >= len(SeatOrder) {
			return nil, s, ErrRoomFull
		}

		role := SeatOrder[len(s.Players)]
		newState.Players = append(newState.Players, Player{
			ConnID: cmd.ConnID,
			Name:   cmd.Name,
			Avatar: cmd.Avatar,
			Role:   role,
		})
		events := []Event{{Type: EvtPlayerSeated, ConnID: cmd.ConnID, Role: role}}

		if len(newState.Players) < len(SeatOrder) {
			newState.Status = StatusWaiting
			return events, newState, nil
		}

		// Second seat filled: white moves first.
		newState.Status = StatusPlaying
		newState.CurrentTurn = RoleWhite
		newState.TurnStartedAt = cmd.Now
		events = append(events,
			Event{Type: EvtGameStarted, Role: RoleWhite},
			Event{Type: EvtTimerStarted, Role: RoleWhite},
		)
		return events, newState, nil

	case CmdMove:
		p, ok := FindPlayer(s, cmd.ConnID)
		if !ok {
			return nil, s, ErrNotMember
		}
		if s.Status != StatusPlaying {
			return nil, s, ErrNotStarted
		}
		if p.Role != s.CurrentTurn {
			return nil, s, ErrWrongTurn
		}

		newState.CurrentTurn = s.CurrentTurn.Other()
		newState.TurnStartedAt = nextTurnStart(s.TurnStartedAt, cmd.Now)
		newState.Moves++
		return []Event{
			{Type: EvtTurnAdvanced, Role: newState.CurrentTurn},
			{Type: EvtTimerStarted, Role: newState.CurrentTurn},
			{Type: EvtMoveRelayed, ConnID: p.ConnID, Role: p.Role, Payload: cmd.Payload},
		}, newState, nil

	case CmdTurnExpired:
		if s.Status != StatusPlaying {
			return nil, s, ErrNotStarted
		}
		loser, ok := playerByRole(s, s.CurrentTurn)
		if !ok {
			return nil, s, ErrNotMember
		}
		return []Event{
			{Type: EvtTurnExpired, ConnID: loser.ConnID, Role: loser.Role},
			{Type: EvtSessionEnded},
		}, newState, nil

	case CmdReportTimeout:
		p, ok := FindPlayer(s, cmd.ConnID)
		if !ok {
			return nil, s, ErrNotMember
		}
		if s.Status != StatusPlaying {
			return nil, s, ErrNotStarted
		}
		return []Event{
			{Type: EvtTimeoutReported, ConnID: p.ConnID, Role: p.Role},
			{Type: EvtSessionEnded},
		}, newState, nil

	case CmdLeave, CmdDisconnect:
		p, ok := FindPlayer(s, cmd.ConnID)
		if !ok {
			return nil, s, ErrNotMember
		}
		newState.Players = removePlayer(newState.Players, cmd.ConnID)

		evt := EvtPlayerLeft
		if cmd.Type == CmdDisconnect {
			evt = EvtPlayerDisconnected
		}
		return []Event{
			{Type: evt, ConnID: p.ConnID, Role: p.Role},
			{Type: EvtSessionEnded},
		}, newState, nil

	case CmdGameOver:
		if _, ok := FindPlayer(s, cmd.ConnID); !ok {
			return nil, s, ErrNotMember
		}
		if _, ok := ParseWinner(string(cmd.Winner)); !ok {
			return nil, s, ErrInvalidWinner
		}
		return []Event{
			{Type: EvtGameFinished, ConnID: cmd.ConnID, Winner: cmd.Winner},
			{Type: EvtSessionEnded},
		}, newState, nil

	default:
		return nil, s, ErrUnsupportedCommand
	}
}

// nextTurnStart keeps turn stamps strictly increasing even when two moves land
// in the same millisecond.
func nextTurnStart(prev, now int64) int64 {
	if now <= prev {
		return prev + 1
	}
	return now
}
