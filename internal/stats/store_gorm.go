package stats

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"
)

const DefaultLeaderboardLimit = 50

type GormStore struct {
	db  *gorm.DB
	log *zap.Logger
}

// Open connects to postgres and migrates the users table.
func Open(dsn string, log *zap.Logger) (*GormStore, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	if err := db.AutoMigrate(&User{}); err != nil {
		return nil, fmt.Errorf("migrate users: %w", err)
	}
	return NewGormStore(db, log), nil
}

func NewGormStore(db *gorm.DB, log *zap.Logger) *GormStore {
	if log == nil {
		log = zap.NewNop()
	}
	return &GormStore{db: db, log: log}
}

func (s *GormStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func (s *GormStore) Profile(ctx context.Context, userID int64) (*User, error) {
	var u User
	err := s.db.WithContext(ctx).Where("telegram_id = ?", userID).Take(&u).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load profile %d: %w", userID, err)
	}
	return &u, nil
}

func (s *GormStore) SaveStat(ctx context.Context, in StatInput) (bool, error) {
	if !ValidCategory(in.Category) {
		return false, ErrUnknownCategory
	}

	cur, err := s.Profile(ctx, in.UserID)
	if err != nil {
		return false, err
	}
	if cur == nil {
		u := User{TelegramID: in.UserID, Username: in.Username, PhotoURL: in.PhotoURL}
		u.SetScore(in.Category, in.Score)
		err := s.db.WithContext(ctx).Create(&u).Error
		if err == nil {
			return true, nil
		}
		if !isUniqueViolation(err) {
			return false, fmt.Errorf("insert user %d: %w", in.UserID, err)
		}
		// Lost an insert race; the row exists now.
		s.log.Debug("stat_insert_race", zap.Int64("user_id", in.UserID))
		if cur, err = s.Profile(ctx, in.UserID); err != nil {
			return false, err
		}
		if cur == nil {
			return false, fmt.Errorf("user %d vanished after insert conflict", in.UserID)
		}
	}

	record := IsRecord(in.Category, cur.Score(in.Category), in.Score)
	updates := map[string]any{
		"username":  in.Username,
		"photo_url": in.PhotoURL,
	}
	if record {
		updates[in.Category] = in.Score
	}
	err = s.db.WithContext(ctx).Model(&User{}).Where("telegram_id = ?", in.UserID).Updates(updates).Error
	if err != nil {
		return false, fmt.Errorf("update user %d: %w", in.UserID, err)
	}
	return record, nil
}

func (s *GormStore) Leaderboard(ctx context.Context, category string, limit int) ([]Entry, error) {
	if !ValidCategory(category) {
		return []Entry{}, nil
	}
	if limit <= 0 {
		limit = DefaultLeaderboardLimit
	}

	rows := make([]Entry, 0, limit)
	col := clause.Column{Name: category}
	err := s.db.WithContext(ctx).
		Model(&User{}).
		Select("telegram_id, username, photo_url, ? AS score", col).
		Where("? IS NOT NULL", col).
		Order(clause.OrderByColumn{Column: col, Desc: !LowerIsBetter(category)}).
		Limit(limit).
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("leaderboard %s: %w", category, err)
	}
	return rows, nil
}

// isUniqueViolation matches both the translated gorm error and the raw
// postgres code.
func isUniqueViolation(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
