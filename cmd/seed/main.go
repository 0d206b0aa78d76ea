package main

import (
	"context"
	"flag"
	"log"
	"time"

	"github.com/shopspring/decimal"

	"bookletku/config"
	"bookletku/internal/backend"
	"bookletku/internal/catalog"
	"bookletku/internal/database"
	"bookletku/internal/gateway"
	"bookletku/internal/platform"
	"bookletku/internal/session"
)

var sampleMenu = []catalog.Draft{
	{Name: "Nasi Goreng Spesial", Price: decimal.NewFromInt(25000), Category: "food", Badge: catalog.BadgeBestseller},
	{Name: "Mie Ayam", Price: decimal.NewFromInt(18000), Category: "food"},
	{Name: "Es Teh Manis", Price: decimal.NewFromInt(5000), Category: "drink"},
	{Name: "Pisang Goreng", Price: decimal.NewFromInt(10000), Category: "snack", Badge: catalog.BadgeNew},
}

func main() {
	withSample := flag.Bool("sample", false, "add a sample menu when the store has no items")
	flag.Parse()

	cfg := config.LoadConfig()
	if cfg.Auth.JWTSecret == "" {
		log.Fatal("JWT_SECRET is required")
	}
	if cfg.Admin.Password == "" {
		log.Fatal("ADMIN_PASSWORD is required")
	}

	db, err := database.NewConnection(cfg.DB.DSN, cfg.DB.Debug)
	if err != nil {
		log.Fatalf("Failed to connect to db: %v", err)
	}
	if err := database.Migrate(db); err != nil {
		log.Fatalf("Failed to migrate store database: %v", err)
	}

	redisClient, err := config.NewRedisClient(cfg.Redis)
	if err != nil {
		log.Fatalf("Failed to connect to redis: %v", err)
	}
	defer redisClient.Close()

	store := backend.New(db, redisClient, backend.Options{
		JWTSecret:     []byte(cfg.Auth.JWTSecret),
		StorageDir:    cfg.Storage.Dir,
		PublicBaseURL: cfg.Storage.PublicBaseURL,
		Bucket:        cfg.Storage.Bucket,
	})

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	if err := store.EnsureStore(ctx, platform.StoreRow{ID: cfg.Store.ID, Name: cfg.Store.Name}); err != nil {
		log.Fatalf("Failed to seed store: %v", err)
	}
	log.Printf("Store %s (%s) ready", cfg.Store.Name, cfg.Store.ID)

	adminID, err := store.EnsureAdmin(ctx, cfg.Admin.Email, cfg.Admin.Password, cfg.Admin.Name)
	if err != nil {
		log.Fatalf("Failed to seed admin: %v", err)
	}
	log.Printf("Admin %s (%s) ready", cfg.Admin.Email, adminID)

	if *withSample {
		if err := seedSampleMenu(ctx, cfg, store); err != nil {
			log.Fatalf("Failed to seed sample menu: %v", err)
		}
	}
}

// seedSampleMenu signs in as the admin and adds the sample items through the
// gateway, the same path the admin UI uses.
func seedSampleMenu(ctx context.Context, cfg config.Config, store *backend.Backend) error {
	sessions := session.NewManager(store, store)
	if _, err := sessions.SignIn(ctx, cfg.Admin.Email, cfg.Admin.Password); err != nil {
		return err
	}
	defer sessions.SignOut(context.Background())

	gw, err := gateway.Open(ctx, gateway.Deps{
		Tables:   store,
		Storage:  store,
		Feed:     store,
		Sessions: sessions,
	}, gateway.Config{StoreID: cfg.Store.ID})
	if err != nil {
		return err
	}
	defer gw.Close()

	if n := len(gw.Snapshot().Items); n > 0 {
		log.Printf("Menu already has %d items, skipping sample", n)
		return nil
	}
	for _, draft := range sampleMenu {
		item, err := gw.AddItem(ctx, draft)
		if err != nil {
			return err
		}
		log.Printf("Added %s at position %d", item.Name, item.Order)
	}
	return nil
}
