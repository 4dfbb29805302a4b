// Package store provides best-effort key/value persistence for the cache
// and change queue. It uses the pure-Go SQLite driver via GORM.
//
// Persistence here is an optimization, not a correctness requirement: every
// operation swallows serialization and IO errors, so a full disk or a
// corrupt database degrades the engine to memory-only for the session.
package store

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	gormlogger "gorm.io/gorm/logger"

	"github.com/asteroid-belt/skillsync/internal/log"
)

// Well-known keys.
const (
	KeyCacheMeta      = "cache:meta"
	KeyPendingChanges = "sync:pending"
)

// CacheKey returns the store key holding a collection snapshot.
func CacheKey(collection string) string {
	return "cache:" + collection
}

// entry is the single KV table backing the store.
type entry struct {
	Key       string `gorm:"primaryKey;size:128"`
	Value     string `gorm:"type:text"`
	UpdatedAt time.Time
}

// TableName specifies the table name for GORM.
func (entry) TableName() string {
	return "kv_entries"
}

// Config holds store configuration options.
type Config struct {
	Path  string
	Debug bool
}

// DefaultConfig returns sensible defaults.
func DefaultConfig(path string) Config {
	return Config{Path: path}
}

// Store is a best-effort JSON key/value store. A Store with a nil database
// (see Memory) keeps the same contract but persists nothing.
type Store struct {
	db   *gorm.DB
	path string
}

// Open opens (or creates) the backing database and runs migrations.
func Open(cfg Config) (*Store, error) {
	dir := filepath.Dir(cfg.Path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create store directory: %w", err)
	}

	logLevel := gormlogger.Silent
	if cfg.Debug {
		logLevel = gormlogger.Info
	}

	// DELETE journal mode: WAL has visibility issues with the pure-Go driver.
	dsn := fmt.Sprintf("%s?_pragma=journal_mode(DELETE)&_pragma=busy_timeout(5000)", cfg.Path)
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:                 gormlogger.Default.LogMode(logLevel),
		SkipDefaultTransaction: true,
	})
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("get sql.DB: %w", err)
	}
	sqlDB.SetMaxIdleConns(1)
	sqlDB.SetMaxOpenConns(1)
	sqlDB.SetConnMaxLifetime(time.Hour)

	if err := db.AutoMigrate(&entry{}); err != nil {
		return nil, fmt.Errorf("migrate store: %w", err)
	}

	return &Store{db: db, path: cfg.Path}, nil
}

// Memory returns a store that persists nothing. Used when the backing
// database cannot be opened.
func Memory() *Store {
	return &Store{}
}

// Load reads a key into dest, returning false when the key is absent, the
// stored value does not decode into dest, or the store is unavailable.
// Callers must treat a false result as a cold cache, never as an error.
func (s *Store) Load(key string, dest any) bool {
	if s == nil || s.db == nil {
		return false
	}

	var e entry
	if err := s.db.First(&e, "key = ?", key).Error; err != nil {
		if err != gorm.ErrRecordNotFound {
			log.Errorf("store: load %s: %v", key, err)
		}
		return false
	}

	if err := json.Unmarshal([]byte(e.Value), dest); err != nil {
		// A previously stored shape the caller no longer understands.
		log.Errorf("store: decode %s: %v", key, err)
		return false
	}
	return true
}

// Save writes a key. Failures are swallowed: a failed save must never
// propagate to the caller.
func (s *Store) Save(key string, value any) {
	if s == nil || s.db == nil {
		return
	}

	data, err := json.Marshal(value)
	if err != nil {
		log.Errorf("store: encode %s: %v", key, err)
		return
	}

	e := entry{Key: key, Value: string(data)}
	err = s.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "key"}},
		DoUpdates: clause.AssignmentColumns([]string{"value", "updated_at"}),
	}).Create(&e).Error
	if err != nil {
		log.Errorf("store: save %s: %v", key, err)
	}
}

// Delete removes a key. Failures are swallowed.
func (s *Store) Delete(key string) {
	if s == nil || s.db == nil {
		return
	}
	if err := s.db.Delete(&entry{}, "key = ?", key).Error; err != nil {
		log.Errorf("store: delete %s: %v", key, err)
	}
}

// Path returns the database file path, or empty for a memory-only store.
func (s *Store) Path() string {
	return s.path
}

// SizeBytes returns the size of the backing file, if any.
func (s *Store) SizeBytes() int64 {
	if s == nil || s.path == "" {
		return 0
	}
	info, err := os.Stat(s.path)
	if err != nil {
		return 0
	}
	return info.Size()
}

// Close closes the backing database.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
