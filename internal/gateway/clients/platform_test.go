package clients

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"gorm.io/driver/sqlite"

	"bookletku/internal/database"
)

func newClients(t *testing.T) (*PlatformClients, *miniredis.Miniredis) {
	t.Helper()
	db, err := database.Open(sqlite.Open(filepath.Join(t.TempDir(), "store.db")), false)
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	mr := miniredis.RunT(t)
	return &PlatformClients{DB: db, Redis: redis.NewClient(&redis.Options{Addr: mr.Addr()})}, mr
}

func TestChecksReportEachConnection(t *testing.T) {
	c, mr := newClients(t)
	defer c.Close()
	ctx := context.Background()

	checks := c.Checks()
	if len(checks) != 2 {
		t.Fatalf("checks = %d, want database and redis only", len(checks))
	}
	for name, check := range checks {
		if err := check(ctx); err != nil {
			t.Errorf("%s: %v", name, err)
		}
	}

	mr.Close()
	if err := checks["redis"](ctx); err == nil {
		t.Error("redis check passed after the server stopped")
	}
}

func TestBrokerCheckWhenConfiguredButDown(t *testing.T) {
	c, _ := newClients(t)
	defer c.Close()
	c.brokerWanted = true

	check, ok := c.Checks()["broker"]
	if !ok {
		t.Fatal("no broker check")
	}
	if err := check(context.Background()); !errors.Is(err, ErrBrokerUnavailable) {
		t.Errorf("err = %v, want ErrBrokerUnavailable", err)
	}
}
