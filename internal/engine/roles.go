package engine

import "strings"

type Role string

const (
	RoleWhite Role = "white"
	RoleBlack Role = "black"
)

// SeatOrder assigns roles by join order.
var SeatOrder = []Role{RoleWhite, RoleBlack}

func (r Role) Other() Role {
	switch r {
	case RoleWhite:
		return RoleBlack
	case RoleBlack:
		return RoleWhite
	default:
		return ""
	}
}

// Winner is the outcome reported by game_over. Draw is accepted because the
// rules engine lives on the clients.
type Winner string

const (
	WinnerWhite Winner = "white"
	WinnerBlack Winner = "black"
	WinnerDraw  Winner = "draw"
)

func ParseWinner(s string) (Winner, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "white":
		return WinnerWhite, true
	case "black":
		return WinnerBlack, true
	case "draw":
		return WinnerDraw, true
	default:
		return "", false
	}
}
