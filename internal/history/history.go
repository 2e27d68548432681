// Package history keeps a local record of finished games.
package history

import (
	"errors"
	"fmt"
	"time"

	"github.com/glebarez/sqlite"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/dcrodman/noughts/internal/core"
	"github.com/dcrodman/noughts/internal/protocol"
)

// ErrDisabled is returned by Open when no history engine is configured.
var ErrDisabled = errors.New("game history is disabled")

// Result is the outcome of one game as seen by the local player.
type Result struct {
	ID         uint64 `gorm:"primaryKey"`
	Player     string `gorm:"index; not null"`
	Opponent   string
	Mark       string `gorm:"size:1"`
	Won        bool
	FinishedAt time.Time `gorm:"index"`
}

// Store persists Results.
type Store struct {
	db *gorm.DB
}

// Open connects to the database described by the history section of cfg.
func Open(cfg *core.Config) (*Store, error) {
	var dialector gorm.Dialector
	switch cfg.History.Engine {
	case "":
		return nil, ErrDisabled
	case "sqlite":
		dialector = sqlite.Open(cfg.History.Filename)
	case "postgres":
		dialector = postgres.Open(cfg.DatabaseURL())
	default:
		return nil, fmt.Errorf("unsupported history engine %q", cfg.History.Engine)
	}

	// By default only log errors but enable full SQL query prints-to-console with debug mode
	log := logger.Default.LogMode(logger.Error)
	if cfg.Debugging.Enabled {
		log = logger.Default.LogMode(logger.Info)
	}

	db, err := gorm.Open(dialector, &gorm.Config{Logger: log})
	if err != nil {
		return nil, fmt.Errorf("error connecting to database: %s", err)
	}
	return NewStore(db)
}

// NewStore wraps an open database, migrating the schema if needed.
func NewStore(db *gorm.DB) (*Store, error) {
	if err := db.AutoMigrate(&Result{}); err != nil {
		return nil, fmt.Errorf("error auto migrating db: %s", err)
	}
	return &Store{db: db}, nil
}

// RecordResult persists the outcome of a game that just ended.
func (s *Store) RecordResult(player, opponent string, mark protocol.Mark, won bool) error {
	return s.db.Create(&Result{
		Player:     player,
		Opponent:   opponent,
		Mark:       mark.String(),
		Won:        won,
		FinishedAt: time.Now().UTC(),
	}).Error
}

// Results returns up to limit of player's most recent games, newest first.
func (s *Store) Results(player string, limit int) ([]Result, error) {
	var results []Result
	err := s.db.Where("player = ?", player).
		Order("finished_at desc").
		Order("id desc").
		Limit(limit).
		Find(&results).Error
	return results, err
}

// Tally counts player's wins and losses.
func (s *Store) Tally(player string) (wins, losses int64, err error) {
	if err = s.db.Model(&Result{}).Where("player = ? AND won = ?", player, true).Count(&wins).Error; err != nil {
		return 0, 0, err
	}
	if err = s.db.Model(&Result{}).Where("player = ? AND won = ?", player, false).Count(&losses).Error; err != nil {
		return 0, 0, err
	}
	return wins, losses, nil
}

func (s *Store) Close() error {
	database, err := s.db.DB()
	if err != nil {
		return fmt.Errorf("error while getting current connection: %w", err)
	}
	if err := database.Close(); err != nil {
		return fmt.Errorf("error while closing database connection: %w", err)
	}
	return nil
}
