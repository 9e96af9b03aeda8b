package database

import (
	"fmt"
	"log/slog"
	"time"

	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	// registers the "postgres" database/sql driver used by the gorm dialector below
	_ "github.com/lib/pq"
)

type Options struct {
	Driver string // mysql|postgres|sqlite
	DSN    string
}

// Open connects with the configured dialector. Errors are translated so that
// callers can match gorm.ErrDuplicatedKey regardless of driver.
func Open(opts Options) (*gorm.DB, error) {
	var dial gorm.Dialector
	switch opts.Driver {
	case "mysql", "":
		dial = mysql.Open(opts.DSN)
	case "postgres":
		dial = postgres.New(postgres.Config{DriverName: "postgres", DSN: opts.DSN})
	case "sqlite":
		dial = sqlite.Open(opts.DSN)
	default:
		return nil, fmt.Errorf("unknown database driver: %s", opts.Driver)
	}

	db, err := gorm.Open(dial, &gorm.Config{
		TranslateError: true,
		Logger:         logger.Default.LogMode(logger.Warn),
		NowFunc:        func() time.Time { return time.Now().UTC() },
	})
	if err != nil {
		return nil, fmt.Errorf("connect %s: %w", opts.Driver, err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	if opts.Driver == "sqlite" {
		// one writer; shared-cache memory databases lock otherwise
		sqlDB.SetMaxOpenConns(1)
	} else {
		sqlDB.SetMaxOpenConns(25)
		sqlDB.SetMaxIdleConns(10)
		sqlDB.SetConnMaxLifetime(30 * time.Minute)
	}
	return db, nil
}

// Migrate creates or updates tables for the given models.
func Migrate(db *gorm.DB, l *slog.Logger, models ...any) error {
	if err := db.AutoMigrate(models...); err != nil {
		return fmt.Errorf("auto-migrate: %w", err)
	}
	l.Info("schema migrated", "tables", len(models))
	return nil
}
