package engine

import (
	"encoding/json"
	"errors"
	"testing"
)

func seated(t *testing.T, now int64) State {
	t.Helper()
	s := NewEmptyState()
	_, s, err := Apply(s, Command{Type: CmdCreate, ConnID: "a", Name: "Alice"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	_, s, err = Apply(s, Command{Type: CmdJoin, ConnID: "b", Name: "Bob", Now: now})
	if err != nil {
		t.Fatalf("join: %v", err)
	}
	return s
}

func TestCreateSeatsWhiteAndWaits(t *testing.T) {
	events, s, err := Apply(NewEmptyState(), Command{Type: CmdCreate, ConnID: "a", Name: "Alice", Avatar: "a.png"})
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if s.Status != StatusWaiting {
		t.Fatalf("status: got %v, want waiting", s.Status)
	}
	if len(s.Players) != 1 || s.Players[0].Role != RoleWhite {
		t.Fatalf("players: got %+v", s.Players)
	}
	if s.CurrentTurn != "" || s.TurnStartedAt != 0 {
		t.Fatalf("turn must be undefined while waiting, got %q/%d", s.CurrentTurn, s.TurnStartedAt)
	}
	if ContainsEvent(events, EvtTimerStarted) {
		t.Fatalf("no timer before the game starts")
	}
}

func TestJoinStartsGame(t *testing.T) {
	_, s, _ := Apply(NewEmptyState(), Command{Type: CmdCreate, ConnID: "a"})
	events, s, err := Apply(s, Command{Type: CmdJoin, ConnID: "b", Now: 1000})
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if s.Status != StatusPlaying || len(s.Players) != 2 {
		t.Fatalf("got status=%v players=%d", s.Status, len(s.Players))
	}
	if s.Players[1].Role != RoleBlack || s.CurrentTurn != RoleWhite || s.TurnStartedAt != 1000 {
		t.Fatalf("unexpected state %+v", s)
	}
	for _, want := range []EventType{EvtPlayerSeated, EvtGameStarted, EvtTimerStarted} {
		if !ContainsEvent(events, want) {
			t.Fatalf("expected %s in %+v", want, events)
		}
	}
}

func TestJoinRejected(t *testing.T) {
	cases := []struct {
		name    string
		setup   func(t *testing.T) State
		connID  string
		wantErr error
	}{
		{
			name:    "third player",
			setup:   func(t *testing.T) State { return seated(t, 1) },
			connID:  "c",
			wantErr: ErrRoomFull,
		},
		{
			name: "creator joins own room",
			setup: func(t *testing.T) State {
				_, s, _ := Apply(NewEmptyState(), Command{Type: CmdCreate, ConnID: "a"})
				return s
			},
			connID:  "a",
			wantErr: ErrAlreadySeated,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			s := tc.setup(t)
			_, next, err := Apply(s, Command{Type: CmdJoin, ConnID: tc.connID})
			if !errors.Is(err, tc.wantErr) {
				t.Fatalf("want %v, got %v", tc.wantErr, err)
			}
			if len(next.Players) != len(s.Players) {
				t.Fatalf("rejected join must not change players")
			}
		})
	}
}

func TestMoveOutOfTurnDoesNotMutate(t *testing.T) {
	s := seated(t, 1000)
	_, next, err := Apply(s, Command{Type: CmdMove, ConnID: "b", Now: 2000})
	if !errors.Is(err, ErrWrongTurn) {
		t.Fatalf("want ErrWrongTurn, got %v", err)
	}
	if next.CurrentTurn != RoleWhite || next.TurnStartedAt != 1000 {
		t.Fatalf("state mutated: %+v", next)
	}
}

func TestMoveByStranger(t *testing.T) {
	s := seated(t, 1000)
	_, _, err := Apply(s, Command{Type: CmdMove, ConnID: "zzz", Now: 2000})
	if !errors.Is(err, ErrNotMember) {
		t.Fatalf("want ErrNotMember, got %v", err)
	}
}

func TestMoveBeforeStart(t *testing.T) {
	_, s, _ := Apply(NewEmptyState(), Command{Type: CmdCreate, ConnID: "a"})
	_, _, err := Apply(s, Command{Type: CmdMove, ConnID: "a", Now: 2000})
	if !errors.Is(err, ErrNotStarted) {
		t.Fatalf("want ErrNotStarted, got %v", err)
	}
}

func TestAlternatingMovesFlipTurn(t *testing.T) {
	for n := 0; n <= 7; n++ {
		s := seated(t, 1000)
		movers := []string{"a", "b"}
		for i := 0; i < n; i++ {
			events, next, err := Apply(s, Command{Type: CmdMove, ConnID: movers[i%2], Now: int64(2000 + i)})
			if err != nil {
				t.Fatalf("n=%d move %d: %v", n, i, err)
			}
			if !ContainsEvent(events, EvtTimerStarted) || !ContainsEvent(events, EvtMoveRelayed) {
				t.Fatalf("move must re-arm timer and relay, got %+v", events)
			}
			s = next
		}
		want := RoleWhite
		if n%2 == 1 {
			want = RoleBlack
		}
		if s.CurrentTurn != want {
			t.Fatalf("after %d moves: got %v, want %v", n, s.CurrentTurn, want)
		}
		if s.Moves != n {
			t.Fatalf("moves: got %d, want %d", s.Moves, n)
		}
	}
}

func TestMoveRelaysOpaquePayload(t *testing.T) {
	s := seated(t, 1000)
	payload := json.RawMessage(`{"from":[2,1],"to":[3,2],"whatever":true}`)
	events, _, err := Apply(s, Command{Type: CmdMove, ConnID: "a", Payload: payload, Now: 1500})
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	for _, e := range events {
		if e.Type == EvtMoveRelayed {
			if string(e.Payload) != string(payload) || e.ConnID != "a" {
				t.Fatalf("relay event %+v", e)
			}
			return
		}
	}
	t.Fatalf("no relay event")
}

func TestTurnStartStrictlyIncreasing(t *testing.T) {
	s := seated(t, 5000)
	_, s, _ = Apply(s, Command{Type: CmdMove, ConnID: "a", Now: 5000})
	if s.TurnStartedAt != 5001 {
		t.Fatalf("same-ms move must still advance stamp, got %d", s.TurnStartedAt)
	}
	_, s, _ = Apply(s, Command{Type: CmdMove, ConnID: "b", Now: 4000})
	if s.TurnStartedAt != 5002 {
		t.Fatalf("stamp went backwards: %d", s.TurnStartedAt)
	}
}

func TestTurnExpiredNamesCurrentPlayer(t *testing.T) {
	s := seated(t, 1000)
	_, s, _ = Apply(s, Command{Type: CmdMove, ConnID: "a", Now: 2000})

	events, _, err := Apply(s, Command{Type: CmdTurnExpired})
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if events[0].Type != EvtTurnExpired || events[0].ConnID != "b" || events[0].Role != RoleBlack {
		t.Fatalf("expected black to time out, got %+v", events[0])
	}
	if !ContainsEvent(events, EvtSessionEnded) {
		t.Fatalf("expiry must end the session")
	}
}

func TestTerminalCommands(t *testing.T) {
	cases := []struct {
		name        string
		cmd         Command
		wantEvt     EventType
		wantPlayers int
	}{
		{"leave", Command{Type: CmdLeave, ConnID: "a"}, EvtPlayerLeft, 1},
		{"disconnect", Command{Type: CmdDisconnect, ConnID: "b"}, EvtPlayerDisconnected, 1},
		{"report timeout", Command{Type: CmdReportTimeout, ConnID: "b"}, EvtTimeoutReported, 2},
		{"game over", Command{Type: CmdGameOver, ConnID: "a", Winner: WinnerBlack}, EvtGameFinished, 2},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			s := seated(t, 1000)
			events, next, err := Apply(s, tc.cmd)
			if err != nil {
				t.Fatalf("unexpected err: %v", err)
			}
			if !ContainsEvent(events, tc.wantEvt) || !ContainsEvent(events, EvtSessionEnded) {
				t.Fatalf("events %+v", events)
			}
			if len(next.Players) != tc.wantPlayers {
				t.Fatalf("players: got %d, want %d", len(next.Players), tc.wantPlayers)
			}
			if len(s.Players) != 2 {
				t.Fatalf("input state was mutated")
			}
		})
	}
}

func TestGameOverRejectsBadWinner(t *testing.T) {
	s := seated(t, 1000)
	_, _, err := Apply(s, Command{Type: CmdGameOver, ConnID: "a", Winner: "purple"})
	if !errors.Is(err, ErrInvalidWinner) {
		t.Fatalf("want ErrInvalidWinner, got %v", err)
	}
}

func TestRoleOther(t *testing.T) {
	if RoleWhite.Other() != RoleBlack || RoleBlack.Other() != RoleWhite {
		t.Fatalf("roles must alternate")
	}
	if Role("").Other() != "" {
		t.Fatalf("unknown role has no opposite")
	}
}
