package stats

import "context"

// Store persists per-user game statistics. The match server core never
// calls it; only the HTTP stats routes do.
type Store interface {
	// Profile returns nil, nil for an unknown user.
	Profile(ctx context.Context, userID int64) (*User, error)
	// SaveStat refreshes the user's name and photo and writes the score
	// when it is a record. It reports whether it was.
	SaveStat(ctx context.Context, in StatInput) (bool, error)
	// Leaderboard returns users with a value in category, best first. An
	// unknown category yields an empty list.
	Leaderboard(ctx context.Context, category string, limit int) ([]Entry, error)
}
