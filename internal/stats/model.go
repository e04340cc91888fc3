package stats

import "time"

// User is one row of the users table, keyed by the messenger user id.
type User struct {
	TelegramID int64  `gorm:"column:telegram_id;primaryKey;autoIncrement:false" json:"telegram_id"`
	Username   string `gorm:"column:username" json:"username"`
	PhotoURL   string `gorm:"column:photo_url" json:"photo_url"`

	SaperTotal      *float64 `gorm:"column:saper_total" json:"saper_total"`
	SaperWins       *float64 `gorm:"column:saper_wins" json:"saper_wins"`
	SaperBest6      *float64 `gorm:"column:saper_best_6" json:"saper_best_6"`
	SaperBest8      *float64 `gorm:"column:saper_best_8" json:"saper_best_8"`
	SaperBest10     *float64 `gorm:"column:saper_best_10" json:"saper_best_10"`
	SaperBest15     *float64 `gorm:"column:saper_best_15" json:"saper_best_15"`
	CheckersTotal   *float64 `gorm:"column:checkers_total" json:"checkers_total"`
	CheckersWinsPvE *float64 `gorm:"column:checkers_wins_pve" json:"checkers_wins_pve"`
	BBTotalGames    *float64 `gorm:"column:bb_total_games" json:"bb_total_games"`
	BBBestScore     *float64 `gorm:"column:bb_best_score" json:"bb_best_score"`
	SudokuWins      *float64 `gorm:"column:sudoku_wins" json:"sudoku_wins"`
	TowerBest       *float64 `gorm:"column:tower_best" json:"tower_best"`
	TowerCombo      *float64 `gorm:"column:tower_combo" json:"tower_combo"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (User) TableName() string { return "users" }

// slot returns the field backing category, or nil for unknown categories.
func (u *User) slot(category string) **float64 {
	switch category {
	case SaperTotal:
		return &u.SaperTotal
	case SaperWins:
		return &u.SaperWins
	case SaperBest6:
		return &u.SaperBest6
	case SaperBest8:
		return &u.SaperBest8
	case SaperBest10:
		return &u.SaperBest10
	case SaperBest15:
		return &u.SaperBest15
	case CheckersTotal:
		return &u.CheckersTotal
	case CheckersWinsPvE:
		return &u.CheckersWinsPvE
	case BBTotalGames:
		return &u.BBTotalGames
	case BBBestScore:
		return &u.BBBestScore
	case SudokuWins:
		return &u.SudokuWins
	case TowerBest:
		return &u.TowerBest
	case TowerCombo:
		return &u.TowerCombo
	}
	return nil
}

// Score returns the stored value for category; nil when empty or unknown.
func (u *User) Score(category string) *float64 {
	if p := u.slot(category); p != nil {
		return *p
	}
	return nil
}

func (u *User) SetScore(category string, v float64) {
	if p := u.slot(category); p != nil {
		*p = &v
	}
}

// StatInput is one reported result.
type StatInput struct {
	UserID   int64
	Username string
	PhotoURL string
	Category string
	Score    float64
}

// Entry is one leaderboard row.
type Entry struct {
	UserID   int64   `gorm:"column:telegram_id" json:"user_id"`
	Username string  `gorm:"column:username" json:"username"`
	PhotoURL string  `gorm:"column:photo_url" json:"photo_url"`
	Score    float64 `gorm:"column:score" json:"score"`
}
