package config

import (
	"reflect"
	"testing"
	"time"
)

func TestLoadConfigDefaults(t *testing.T) {
	cfg := LoadConfig()

	if cfg.HTTP.Port != "8080" || cfg.GRPC.Port != "50051" {
		t.Errorf("ports = %s/%s", cfg.HTTP.Port, cfg.GRPC.Port)
	}
	if cfg.Store.ID != DEFAULT_STORE_ID {
		t.Errorf("store id = %s", cfg.Store.ID)
	}
	if cfg.Gateway.ReorderSettle != 0 || cfg.Gateway.RequestTimeout != 10*time.Second {
		t.Errorf("gateway = %+v", cfg.Gateway)
	}
	if cfg.RateLimit.Rate != "60-M" || cfg.AMQP.URL != "" {
		t.Errorf("rate = %q, amqp = %q", cfg.RateLimit.Rate, cfg.AMQP.URL)
	}
}

func TestLoadConfigFromEnv(t *testing.T) {
	t.Setenv("CORS_ALLOWED_ORIGINS", "https://warung.id, ,https://admin.warung.id")
	t.Setenv("JWT_ACCESS_TTL", "5m")
	t.Setenv("GATEWAY_REORDER_SETTLE", "nonsense")
	t.Setenv("DATABASE_DEBUG", "true")
	t.Setenv("REDIS_DB", "2")

	cfg := LoadConfig()

	want := []string{"https://warung.id", "https://admin.warung.id"}
	if !reflect.DeepEqual(cfg.HTTP.AllowedOrigins, want) {
		t.Errorf("origins = %v, want %v", cfg.HTTP.AllowedOrigins, want)
	}
	if cfg.Auth.AccessTTL != 5*time.Minute {
		t.Errorf("access ttl = %s", cfg.Auth.AccessTTL)
	}
	if cfg.Gateway.ReorderSettle != 0 {
		t.Errorf("invalid duration not ignored: %s", cfg.Gateway.ReorderSettle)
	}
	if !cfg.DB.Debug || cfg.Redis.DB != 2 {
		t.Errorf("db debug = %v, redis db = %d", cfg.DB.Debug, cfg.Redis.DB)
	}
}
