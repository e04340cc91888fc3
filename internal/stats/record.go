package stats

import (
	"errors"
	"slices"
	"strings"
)

var ErrUnknownCategory = errors.New("unknown stat category")

const (
	SaperTotal      = "saper_total"
	SaperWins       = "saper_wins"
	SaperBest6      = "saper_best_6"
	SaperBest8      = "saper_best_8"
	SaperBest10     = "saper_best_10"
	SaperBest15     = "saper_best_15"
	CheckersTotal   = "checkers_total"
	CheckersWinsPvE = "checkers_wins_pve"
	BBTotalGames    = "bb_total_games"
	BBBestScore     = "bb_best_score"
	SudokuWins      = "sudoku_wins"
	TowerBest       = "tower_best"
	TowerCombo      = "tower_combo"
)

// Categories is the allow-list of stat columns. Only these names ever reach
// SQL.
var Categories = []string{
	SaperTotal, SaperWins, SaperBest6, SaperBest8, SaperBest10, SaperBest15,
	CheckersTotal, CheckersWinsPvE,
	BBTotalGames, BBBestScore,
	SudokuWins,
	TowerBest, TowerCombo,
}

func ValidCategory(category string) bool { return slices.Contains(Categories, category) }

// LowerIsBetter reports whether a category ranks ascending. Minesweeper best
// times are the only such categories.
func LowerIsBetter(category string) bool {
	return strings.Contains(category, "saper") && strings.Contains(category, "best")
}

// IsRecord reports whether score beats the stored value. An empty slot is
// always beaten.
func IsRecord(category string, stored *float64, score float64) bool {
	if stored == nil {
		return true
	}
	if LowerIsBetter(category) {
		return score < *stored
	}
	return score > *stored
}
