package clients

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/go-redis/redis/v8"
	"gorm.io/gorm"

	"bookletku/config"
	"bookletku/internal/broker"
	"bookletku/internal/database"
	"bookletku/internal/gateway/health"
)

var ErrBrokerUnavailable = errors.New("broker connection lost")

// PlatformClients holds the connections behind the store backend. Broker is
// nil when order events are disabled or RabbitMQ could not be reached.
type PlatformClients struct {
	DB     *gorm.DB
	Redis  *redis.Client
	Broker *broker.RabbitMQ

	brokerWanted bool
}

// NewPlatformClientsWithFallback connects the database and Redis, which are
// required, and RabbitMQ, which is not.
func NewPlatformClientsWithFallback(cfg config.Config) (*PlatformClients, error) {
	db, err := database.NewConnection(cfg.DB.DSN, cfg.DB.Debug)
	if err != nil {
		return nil, fmt.Errorf("database connection failed: %w", err)
	}

	rdb, err := config.NewRedisClient(cfg.Redis)
	if err != nil {
		closeDB(db)
		return nil, fmt.Errorf("redis connection failed: %w", err)
	}

	clients := &PlatformClients{DB: db, Redis: rdb, brokerWanted: cfg.AMQP.URL != ""}
	if clients.brokerWanted {
		mq, err := broker.Connect(cfg.AMQP.URL)
		if err != nil {
			log.Printf("Warning: order events disabled, RabbitMQ unavailable: %v", err)
		} else {
			clients.Broker = mq
		}
	}

	log.Println("✅ Connected to platform services")
	return clients, nil
}

func (c *PlatformClients) Close() {
	if c.Broker != nil {
		c.Broker.Close()
	}
	if c.Redis != nil {
		c.Redis.Close()
	}
	if c.DB != nil {
		closeDB(c.DB)
	}
}

// Checks returns a check per connection. The broker is only checked when
// order events are configured.
func (c *PlatformClients) Checks() map[string]health.Check {
	checks := map[string]health.Check{
		"database": c.pingDatabase,
		"redis": func(ctx context.Context) error {
			return c.Redis.Ping(ctx).Err()
		},
	}
	if c.brokerWanted {
		checks["broker"] = func(ctx context.Context) error {
			if c.Broker == nil || !c.Broker.Healthy() {
				return ErrBrokerUnavailable
			}
			return nil
		}
	}
	return checks
}

func (c *PlatformClients) pingDatabase(ctx context.Context) error {
	sqlDB, err := c.DB.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

func closeDB(db *gorm.DB) {
	if sqlDB, err := db.DB(); err == nil {
		sqlDB.Close()
	}
}
