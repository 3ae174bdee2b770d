package history

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/varkai/chatflow/types"
)

// snapshotRow is the sqlite row holding one thread's transcript snapshot.
type snapshotRow struct {
	ThreadID  string `gorm:"primaryKey;column:thread_id"`
	Payload   []byte `gorm:"column:payload"`
	UpdatedAt time.Time
}

func (snapshotRow) TableName() string { return "transcript_snapshots" }

// SQLiteStore persists snapshots in a local sqlite database. Suitable for
// desktop and CLI sessions that should survive restarts.
type SQLiteStore struct {
	db *gorm.DB
}

// NewSQLiteStore opens (and migrates) the snapshot database at path.
// Use ":memory:" for an ephemeral database.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{})
	if err != nil {
		return nil, fmt.Errorf("open snapshot db: %w", err)
	}
	if err := db.AutoMigrate(&snapshotRow{}); err != nil {
		return nil, fmt.Errorf("migrate snapshot db: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) Save(ctx context.Context, threadID string, msgs []types.ChatMessage) error {
	payload, err := json.Marshal(msgs)
	if err != nil {
		return fmt.Errorf("encode snapshot: %w", err)
	}
	row := snapshotRow{ThreadID: threadID, Payload: payload, UpdatedAt: time.Now()}
	return s.db.WithContext(ctx).
		Clauses(clause.OnConflict{UpdateAll: true}).
		Create(&row).Error
}

func (s *SQLiteStore) Load(ctx context.Context, threadID string) ([]types.ChatMessage, error) {
	var row snapshotRow
	err := s.db.WithContext(ctx).First(&row, "thread_id = ?", threadID).Error
	if err == gorm.ErrRecordNotFound {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	var msgs []types.ChatMessage
	if err := json.Unmarshal(row.Payload, &msgs); err != nil {
		return nil, fmt.Errorf("decode snapshot: %w", err)
	}
	return msgs, nil
}

func (s *SQLiteStore) Delete(ctx context.Context, threadID string) error {
	return s.db.WithContext(ctx).Delete(&snapshotRow{}, "thread_id = ?", threadID).Error
}

func (s *SQLiteStore) Threads(ctx context.Context) ([]string, error) {
	var ids []string
	err := s.db.WithContext(ctx).
		Model(&snapshotRow{}).
		Order("updated_at DESC").
		Pluck("thread_id", &ids).Error
	return ids, err
}

func (s *SQLiteStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
