package database

import (
	"database/sql"
	"fmt"

	"pos-system/internal/config"
	"pos-system/internal/logger"

	_ "github.com/lib/pq"
)

// DB wraps sql.DB to attach health checks and safe close semantics.
type DB struct {
	*sql.DB
}

// Connect opens a Postgres connection and verifies it with a ping.
func Connect(cfg *config.DatabaseConfig, log *logger.Logger) (*DB, error) {
	dsn := fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		cfg.Host, cfg.Port, cfg.User, cfg.Password, cfg.DBName, cfg.SSLMode)

	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	log.Info("Successfully connected to database")

	return &DB{DB: db}, nil
}

// Health pings the database.
func (d *DB) Health() error {
	if d == nil || d.DB == nil {
		return fmt.Errorf("database is not initialized")
	}
	return d.Ping()
}

// Close closes the underlying connection pool.
func (d *DB) Close() error {
	if d == nil || d.DB == nil {
		return nil
	}
	return d.DB.Close()
}
