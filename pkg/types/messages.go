package types

import "encoding/json"

// Client -> Server
//   create_game   {displayName, avatarRef}
//   join_game     {code, displayName, avatarRef}
//   move          {code, movePayload}
//   request_sync  {code}
//   timeout       {code}
//   player_left   {code}
//   game_over     {code, winnerRole}
//   time_sync     clientTimestamp | {clientTimestamp}
//
// Server -> Client
//   game_created          {code, role}
//   start_game            {opponent, role, turnStartedAt, serverTime}
//   error_message         string
//   opponent_move         {movePayload, turnStartedAt, currentTurn, serverTime}
//   move_confirmed        {turnStartedAt, currentTurn, serverTime}
//   sync_state            {currentTurn, turnStartedAt, serverTime} (wrong-turn correction)
//   sync_timer            {currentTurn, turnStartedAt, serverTime} (reply to request_sync)
//   opponent_timeout, timeout_loss, opponent_left, opponent_disconnected (no payload)
//   game_finished         {winnerRole}
//   time_sync             {serverTime, clientTimestamp}

const (
	EventCreateGame  = "create_game"
	EventJoinGame    = "join_game"
	EventMove        = "move"
	EventRequestSync = "request_sync"
	EventTimeout     = "timeout"
	EventPlayerLeft  = "player_left"
	EventGameOver    = "game_over"
	EventTimeSync    = "time_sync"

	EventGameCreated          = "game_created"
	EventStartGame            = "start_game"
	EventErrorMessage         = "error_message"
	EventOpponentMove         = "opponent_move"
	EventMoveConfirmed        = "move_confirmed"
	EventSyncState            = "sync_state"
	EventSyncTimer            = "sync_timer"
	EventOpponentTimeout      = "opponent_timeout"
	EventTimeoutLoss          = "timeout_loss"
	EventOpponentLeft         = "opponent_left"
	EventGameFinished         = "game_finished"
	EventOpponentDisconnected = "opponent_disconnected"
)

type CreateGame struct {
	DisplayName string `json:"displayName"`
	AvatarRef   string `json:"avatarRef"`
}

type GameCreated struct {
	Code string `json:"code"`
	Role string `json:"role"`
}

type JoinGame struct {
	Code        string `json:"code"`
	DisplayName string `json:"displayName"`
	AvatarRef   string `json:"avatarRef"`
}

type Opponent struct {
	DisplayName string `json:"displayName"`
	AvatarRef   string `json:"avatarRef"`
}

type StartGame struct {
	Opponent      Opponent `json:"opponent"`
	Role          string   `json:"role"`
	TurnStartedAt int64    `json:"turnStartedAt"`
	ServerTime    int64    `json:"serverTime"`
}

type Move struct {
	Code        string          `json:"code"`
	MovePayload json.RawMessage `json:"movePayload"`
}

type OpponentMove struct {
	MovePayload   json.RawMessage `json:"movePayload"`
	TurnStartedAt int64           `json:"turnStartedAt"`
	CurrentTurn   string          `json:"currentTurn"`
	ServerTime    int64           `json:"serverTime"`
}

// TurnState is the payload of move_confirmed, sync_state and sync_timer.
type TurnState struct {
	CurrentTurn   string `json:"currentTurn"`
	TurnStartedAt int64  `json:"turnStartedAt"`
	ServerTime    int64  `json:"serverTime"`
}

// RoomRef addresses a room for request_sync, timeout and player_left.
type RoomRef struct {
	Code string `json:"code"`
}

type GameOver struct {
	Code       string `json:"code"`
	WinnerRole string `json:"winnerRole"`
}

type GameFinished struct {
	WinnerRole string `json:"winnerRole"`
}

type TimeSync struct {
	ServerTime      int64 `json:"serverTime"`
	ClientTimestamp int64 `json:"clientTimestamp"`
}
