package db

import (
	"fmt"
	"strings"

	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/whisprlink/relay/internal/config"
	"github.com/whisprlink/relay/internal/models"
)

// Open connects to the configured backend and migrates the directory schema.
// The handle is returned to the caller and injected where needed; there is
// no package-level connection.
func Open(cfg config.DatabaseConfig) (*gorm.DB, error) {
	var (
		conn *gorm.DB
		err  error
	)
	gcfg := &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	}

	switch cfg.Type {
	case "postgres":
		conn, err = gorm.Open(postgres.Open(cfg.DSN), gcfg)
	default:
		conn, err = gorm.Open(sqlite.Open(sqliteDSN(cfg.DSN)), gcfg)
	}
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", cfg.Type, err)
	}

	if cfg.Type == "sqlite" {
		// SQLite works best with a single writer; cap the pool accordingly.
		sqlDB, err := conn.DB()
		if err != nil {
			return nil, err
		}
		sqlDB.SetMaxOpenConns(1)
		sqlDB.SetMaxIdleConns(1)
		sqlDB.SetConnMaxLifetime(0)
	}

	if err := conn.AutoMigrate(&models.User{}); err != nil {
		return nil, fmt.Errorf("auto-migrate: %w", err)
	}

	return conn, nil
}

// Close releases the underlying connection pool.
func Close(conn *gorm.DB) error {
	sqlDB, err := conn.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func sqliteDSN(path string) string {
	if strings.Contains(path, "?") {
		return path
	}
	return path + "?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on"
}
