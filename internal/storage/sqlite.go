package storage

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/walked/fretflow/pkg/utils"
)

const DefaultDBFile = "fretflow.sqlite3"

var errClientNil = errors.New("storage client is nil")

// Client persists practice sessions and their attempts.
type Client struct {
	DB *gorm.DB
	db *sql.DB
}

// Session is one sitting with the trainer.
type Session struct {
	ID         string `gorm:"primaryKey;type:varchar(36)"`
	Difficulty string `gorm:"index:idx_difficulty"`
	Strings    string // comma-separated string names, e.g. "E,A"
	CreatedAt  time.Time
}

// Attempt is one confirmed challenge within a session.
type Attempt struct {
	ID           uint   `gorm:"primaryKey;autoIncrement"`
	SessionID    string `gorm:"type:varchar(36);index:idx_session"`
	Note         string
	GuitarString string
	Fret         int
	ElapsedMs    int64
	CreatedAt    time.Time
}

// SessionSummary aggregates a session's attempts for reporting.
type SessionSummary struct {
	Session
	Attempts     int
	AvgElapsedMs float64
}

// Open connects to the database named by FRETFLOW_DB_PATH, or the default
// file in the working directory.
func Open() (*Client, error) {
	dbPath := os.Getenv("FRETFLOW_DB_PATH")
	if dbPath == "" {
		dbPath = DefaultDBFile
	}
	return OpenPath(dbPath)
}

// OpenPath connects to the given sqlite file, creating it and running
// migrations as needed.
func OpenPath(dbPath string) (*Client, error) {
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("creating db dir: %w", err)
		}
	}

	gormConfig := &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	}

	db, err := gorm.Open(sqlite.Open(dbPath+"?_foreign_keys=on"), gormConfig)
	if err != nil {
		return nil, fmt.Errorf("opening sqlite db: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("getting sql.DB from gorm: %w", err)
	}

	sqlDB.SetMaxOpenConns(25)
	sqlDB.SetMaxIdleConns(5)
	sqlDB.SetConnMaxLifetime(time.Hour)

	if err := db.AutoMigrate(&Session{}, &Attempt{}); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("auto migrate: %w", err)
	}

	return &Client{DB: db, db: sqlDB}, nil
}

func (c *Client) Close() error {
	if c == nil || c.db == nil {
		return nil
	}
	return c.db.Close()
}

// CreateSession registers a new practice session and returns its id.
func (c *Client) CreateSession(difficulty string, strings []string) (string, error) {
	if c == nil || c.DB == nil {
		return "", errClientNil
	}
	s := Session{
		ID:         utils.GenerateUUID(),
		Difficulty: difficulty,
		Strings:    joinStrings(strings),
	}
	if err := c.DB.Create(&s).Error; err != nil {
		return "", fmt.Errorf("creating session: %w", err)
	}
	return s.ID, nil
}

// RecordAttempt stores one confirmed challenge.
func (c *Client) RecordAttempt(sessionID, note, guitarString string, fret int, elapsed time.Duration) error {
	if c == nil || c.DB == nil {
		return errClientNil
	}
	a := Attempt{
		SessionID:    sessionID,
		Note:         note,
		GuitarString: guitarString,
		Fret:         fret,
		ElapsedMs:    elapsed.Milliseconds(),
	}
	if err := c.DB.Create(&a).Error; err != nil {
		return fmt.Errorf("recording attempt: %w", err)
	}
	return nil
}

// SessionStats returns the attempt count and mean time for one session.
func (c *Client) SessionStats(sessionID string) (count int, avg time.Duration, err error) {
	if c == nil || c.DB == nil {
		return 0, 0, errClientNil
	}
	var row struct {
		Count int
		AvgMs float64
	}
	err = c.DB.Model(&Attempt{}).
		Select("COUNT(*) as count, COALESCE(AVG(elapsed_ms), 0) as avg_ms").
		Where("session_id = ?", sessionID).
		Scan(&row).Error
	if err != nil {
		return 0, 0, fmt.Errorf("querying session stats: %w", err)
	}
	return row.Count, time.Duration(row.AvgMs * float64(time.Millisecond)), nil
}

// RecentSessions lists up to limit sessions, newest first, with aggregates.
func (c *Client) RecentSessions(limit int) ([]SessionSummary, error) {
	if c == nil || c.DB == nil {
		return nil, errClientNil
	}
	if limit <= 0 {
		limit = 10
	}

	var sessions []Session
	if err := c.DB.Order("created_at DESC").Limit(limit).Find(&sessions).Error; err != nil {
		return nil, fmt.Errorf("listing sessions: %w", err)
	}

	summaries := make([]SessionSummary, 0, len(sessions))
	for _, s := range sessions {
		count, avg, err := c.SessionStats(s.ID)
		if err != nil {
			return nil, err
		}
		summaries = append(summaries, SessionSummary{
			Session:      s,
			Attempts:     count,
			AvgElapsedMs: float64(avg.Milliseconds()),
		})
	}
	return summaries, nil
}

// DeleteSession removes a session and its attempts.
func (c *Client) DeleteSession(sessionID string) error {
	if c == nil || c.DB == nil {
		return errClientNil
	}
	return c.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("session_id = ?", sessionID).Delete(&Attempt{}).Error; err != nil {
			return fmt.Errorf("deleting attempts: %w", err)
		}
		if err := tx.Delete(&Session{ID: sessionID}).Error; err != nil {
			return fmt.Errorf("deleting session: %w", err)
		}
		return nil
	})
}

func joinStrings(names []string) string {
	return strings.Join(names, ",")
}
