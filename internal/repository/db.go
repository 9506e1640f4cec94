package repository

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/timmy/sermonkb/internal/config"
	"github.com/timmy/sermonkb/internal/domain"
	applog "github.com/timmy/sermonkb/internal/logger"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// InitDB initializes the database connection based on configuration, runs
// migrations, and sets up the driver-specific full-text structures.
func InitDB(cfg *config.DatabaseConfig) (*gorm.DB, error) {
	gormConfig := &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	}

	var db *gorm.DB
	var err error

	applog.Info("Initializing database with driver %q", cfg.Driver)

	switch cfg.Driver {
	case "postgres":
		db, err = initPostgres(cfg, gormConfig)
	case "sqlite":
		db, err = initSQLite(cfg, gormConfig)
	default:
		applog.Warn("Unknown database driver %q, defaulting to SQLite", cfg.Driver)
		db, err = initSQLite(cfg, gormConfig)
	}

	if err != nil {
		return nil, err
	}

	// Configure connection pool
	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get sql.DB instance: %w", err)
	}

	sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	sqlDB.SetConnMaxLifetime(cfg.ConnMaxLifetime)

	if cfg.AutoMigrate {
		if err := db.AutoMigrate(
			&domain.Video{},
			&domain.Chunk{},
			&domain.ChunkEmbedding{},
		); err != nil {
			return nil, fmt.Errorf("failed to migrate database: %w", err)
		}
		if err := setupFullText(db); err != nil {
			return nil, fmt.Errorf("failed to set up full-text search: %w", err)
		}
	}

	return db, nil
}

// initPostgres initializes a PostgreSQL database connection using the unified DSN
func initPostgres(cfg *config.DatabaseConfig, gormConfig *gorm.Config) (*gorm.DB, error) {
	dsn := cfg.DSN()
	// PreferSimpleProtocol supports transaction poolers, which are
	// incompatible with implicit prepared statements
	db, err := gorm.Open(postgres.New(postgres.Config{
		DSN:                  dsn,
		PreferSimpleProtocol: true,
	}), gormConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to PostgreSQL: %w", err)
	}
	return db, nil
}

// initSQLite initializes a SQLite database connection
func initSQLite(cfg *config.DatabaseConfig, gormConfig *gorm.Config) (*gorm.DB, error) {
	// Ensure the directory exists
	if cfg.Path != "" {
		dir := filepath.Dir(cfg.Path)
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	dsn := cfg.DSN()
	db, err := gorm.Open(sqlite.Open(dsn), gormConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to SQLite: %w", err)
	}

	// WAL keeps readers working while the ingest CLI writes
	db.Exec("PRAGMA journal_mode=WAL")
	db.Exec("PRAGMA foreign_keys=ON")

	return db, nil
}

// setupFullText creates the dialect-specific full-text structures over the
// videos table: an FTS5 shadow table kept in sync by triggers on SQLite, a
// GIN-indexed tsvector expression on PostgreSQL.
func setupFullText(db *gorm.DB) error {
	switch db.Dialector.Name() {
	case "sqlite":
		stmts := []string{
			`CREATE VIRTUAL TABLE IF NOT EXISTS videos_fts USING fts5(video_id, title, transcript)`,
			`CREATE TRIGGER IF NOT EXISTS videos_fts_ai AFTER INSERT ON videos BEGIN
				INSERT INTO videos_fts(video_id, title, transcript)
				VALUES (new.video_id, new.title, new.transcript);
			END`,
			`CREATE TRIGGER IF NOT EXISTS videos_fts_ad AFTER DELETE ON videos BEGIN
				DELETE FROM videos_fts WHERE video_id = old.video_id;
			END`,
			`CREATE TRIGGER IF NOT EXISTS videos_fts_au AFTER UPDATE ON videos BEGIN
				DELETE FROM videos_fts WHERE video_id = old.video_id;
				INSERT INTO videos_fts(video_id, title, transcript)
				VALUES (new.video_id, new.title, new.transcript);
			END`,
		}
		for _, stmt := range stmts {
			if err := db.Exec(stmt).Error; err != nil {
				return err
			}
		}
	case "postgres":
		stmts := []string{
			`CREATE INDEX IF NOT EXISTS idx_videos_fulltext ON videos
				USING GIN (to_tsvector('english', coalesce(title, '') || ' ' || coalesce(transcript, '')))`,
		}
		for _, stmt := range stmts {
			if err := db.Exec(stmt).Error; err != nil {
				return err
			}
		}
	}
	return nil
}
