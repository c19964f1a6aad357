package storage

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	log "github.com/sirupsen/logrus"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"
)

// SlotRecord is one key/value row of the slots table.
type SlotRecord struct {
	Key       string `gorm:"column:slot_key;primaryKey;size:128"`
	Value     string `gorm:"type:text;not null"`
	UpdatedAt time.Time
}

// TableName pins the table name.
func (SlotRecord) TableName() string {
	return "slots"
}

// SQLiteSlot keeps the collection in a SQLite key/value table.
type SQLiteSlot struct {
	db  *gorm.DB
	key string
}

// OpenSQLite opens (creating if needed) the database at dbPath and migrates
// the slots table.
func OpenSQLite(dbPath string, debug bool) (*gorm.DB, error) {
	dbDir := filepath.Dir(dbPath)
	if _, err := os.Stat(dbDir); os.IsNotExist(err) {
		log.Printf("📁 Database directory %s does not exist, creating it...", dbDir)
		if err := os.MkdirAll(dbDir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory %s: %w", dbDir, err)
		}
	}

	level := logger.Warn
	if debug {
		level = logger.Info
	}
	gormLogger := logger.New(
		log.StandardLogger(),
		logger.Config{
			SlowThreshold:             time.Second,
			LogLevel:                  level,
			IgnoreRecordNotFoundError: true,
			Colorful:                  false,
		},
	)

	db, err := gorm.Open(sqlite.Open(dbPath), &gorm.Config{Logger: gormLogger})
	if err != nil {
		return nil, fmt.Errorf("failed to open database %s: %w", dbPath, err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}
	// SQLite allows one writer at a time.
	sqlDB.SetMaxOpenConns(1)
	sqlDB.SetConnMaxLifetime(time.Hour)

	if err := db.AutoMigrate(&SlotRecord{}); err != nil {
		return nil, fmt.Errorf("failed to migrate slots table: %w", err)
	}

	log.Printf("✅ Connected to SQLite database: %s", dbPath)
	return db, nil
}

// NewSQLiteSlot binds key to an open database.
func NewSQLiteSlot(db *gorm.DB, key string) *SQLiteSlot {
	return &SQLiteSlot{db: db, key: key}
}

// Load reads the value stored under the slot key.
func (s *SQLiteSlot) Load(ctx context.Context) ([]byte, error) {
	var rec SlotRecord
	err := s.db.WithContext(ctx).Where("slot_key = ?", s.key).First(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return []byte(rec.Value), nil
}

// Save upserts the value stored under the slot key.
func (s *SQLiteSlot) Save(ctx context.Context, data []byte) error {
	rec := SlotRecord{Key: s.key, Value: string(data), UpdatedAt: time.Now()}
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "slot_key"}},
		DoUpdates: clause.AssignmentColumns([]string{"value", "updated_at"}),
	}).Create(&rec).Error
}

// CloseSQLite closes the underlying connection pool.
func CloseSQLite(db *gorm.DB) {
	if db == nil {
		return
	}
	sqlDB, err := db.DB()
	if err != nil {
		log.Printf("⚠️  Error getting sql.DB for closing: %v", err)
		return
	}
	if err := sqlDB.Close(); err != nil {
		log.Printf("⚠️  Error closing database: %v", err)
		return
	}
	log.Println("🔒 Database connection closed")
}
