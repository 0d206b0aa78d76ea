package database

import (
	"bytes"
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"bookletku/internal/database/models"
)

var errRefused = errors.New("connection refused")

type refusingDriver struct{}

func (refusingDriver) Open(name string) (driver.Conn, error) { return nil, errRefused }

type refusingConnector struct{}

func (refusingConnector) Connect(ctx context.Context) (driver.Conn, error) { return nil, errRefused }

func (refusingConnector) Driver() driver.Driver { return refusingDriver{} }

func TestTuneClosesPoolWhenPingFails(t *testing.T) {
	sqlDB := sql.OpenDB(refusingConnector{})

	if err := tune(sqlDB); !errors.Is(err, errRefused) {
		t.Fatalf("tune err = %v, want %v", err, errRefused)
	}
	if err := sqlDB.Ping(); err == nil || !strings.Contains(err.Error(), "closed") {
		t.Errorf("ping after failed tune = %v, want closed pool", err)
	}
}

func TestLoggerSkipsRecordNotFound(t *testing.T) {
	var buf bytes.Buffer
	db, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "log.db")), &gorm.Config{
		Logger: newLogger(&buf, false),
	})
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if err := Migrate(db); err != nil {
		t.Fatalf("Migrate: %v", err)
	}
	buf.Reset()

	var item models.MenuItem
	if err := db.First(&item, "id = ?", "missing").Error; !errors.Is(err, gorm.ErrRecordNotFound) {
		t.Fatalf("First err = %v", err)
	}
	if buf.Len() != 0 {
		t.Errorf("missing row logged: %s", buf.String())
	}

	db.Exec("SELECT * FROM no_such_table")
	if !strings.Contains(buf.String(), "no_such_table") {
		t.Errorf("failed statement not logged: %q", buf.String())
	}
}
