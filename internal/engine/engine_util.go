package engine

import "slices"

func NewEmptyState() State {
	return State{
		Status:  StatusWaiting,
		Players: []Player{},
	}
}

func ContainsEvent(events []Event, eventType EventType) bool {
	for _, event := range events {
		if event.Type == eventType {
			return true
		}
	}
	return false
}

func FindPlayer(s State, connID string) (Player, bool) {
	for _, p := range s.Players {
		if p.ConnID == connID {
			return p, true
		}
	}
	return Player{}, false
}

// Opponent returns the other seated player, if any.
func Opponent(s State, connID string) (Player, bool) {
	for _, p := range s.Players {
		if p.ConnID != connID {
			return p, true
		}
	}
	return Player{}, false
}

func playerByRole(s State, role Role) (Player, bool) {
	for _, p := range s.Players {
		if p.Role == role {
			return p, true
		}
	}
	return Player{}, false
}

func clonePlayers(players []Player) []Player {
	if players == nil {
		return []Player{}
	}
	return slices.Clone(players)
}

func removePlayer(players []Player, connID string) []Player {
	return slices.DeleteFunc(players, func(p Player) bool { return p.ConnID == connID })
}
