package database

import (
	"database/sql"
	"fmt"
	"io"
	"log"
	"os"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"bookletku/internal/database/models"
)

func NewConnection(dsn string, debug bool) (*gorm.DB, error) {
	if dsn == "" {
		return nil, fmt.Errorf("DSN is required")
	}
	return Open(postgres.Open(dsn), debug)
}

// Open connects through any gorm dialector; tests pass sqlite here.
func Open(dialector gorm.Dialector, debug bool) (*gorm.DB, error) {
	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: newLogger(os.Stdout, debug),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get sql.DB: %w", err)
	}
	if err := tune(sqlDB); err != nil {
		return nil, err
	}

	return db, nil
}

// newLogger prints slow queries and errors, plus every statement in debug
// mode. Lookups that find nothing are expected and stay quiet.
func newLogger(w io.Writer, debug bool) logger.Interface {
	level := logger.Warn
	if debug {
		level = logger.Info
	}
	return logger.New(log.New(w, "\r\n", log.LstdFlags), logger.Config{
		SlowThreshold:             time.Second,
		LogLevel:                  level,
		IgnoreRecordNotFoundError: true,
		Colorful:                  false,
	})
}

// tune sets the pool limits and checks the connection, closing the pool
// when the check fails.
func tune(sqlDB *sql.DB) error {
	sqlDB.SetMaxOpenConns(20)
	sqlDB.SetMaxIdleConns(5)
	sqlDB.SetConnMaxLifetime(time.Hour)

	if err := sqlDB.Ping(); err != nil {
		sqlDB.Close()
		return fmt.Errorf("failed to ping DB: %w", err)
	}
	return nil
}

func Migrate(db *gorm.DB) error {
	tables := []interface{}{
		&models.MenuItem{},
		&models.Store{},
		&models.Order{},
		&models.UserAccount{},
		&models.UserProfile{},
	}
	for _, t := range tables {
		if err := db.AutoMigrate(t); err != nil {
			return fmt.Errorf("migrate %T: %w", t, err)
		}
	}
	log.Println("database: schema migrated")
	return nil
}
