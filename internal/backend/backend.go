// Package backend is the platform the storefront runs on: menu and store
// tables in postgres via gorm, a redis list cache, a redis pub/sub change
// feed, password auth with refreshable sessions and public object storage.
package backend

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/go-redis/redis/v8"
	"gorm.io/gorm"

	"bookletku/internal/platform"
	"bookletku/internal/utils"
)

const (
	MENU_CACHE_PREFIX    = "menu:items:"
	MENU_VERSION_PREFIX  = "menu:version:"
	REFRESH_TOKEN_PREFIX = "auth:refresh:"
	FEED_CHANNEL_PREFIX  = "realtime:"
	CACHE_TTL_SHORT      = 5 * time.Minute
	ACCESS_TTL_DEFAULT   = 15 * time.Minute
	REFRESH_TTL_DEFAULT  = 7 * 24 * time.Hour
)

// OrderPublisher forwards placed orders to a message broker.
type OrderPublisher interface {
	PublishOrder(ctx context.Context, routingKey string, body []byte) error
}

type Options struct {
	JWTSecret  []byte
	AccessTTL  time.Duration
	RefreshTTL time.Duration

	StorageDir    string
	PublicBaseURL string
	Bucket        string

	Orders OrderPublisher
}

type Backend struct {
	db    *gorm.DB
	redis *redis.Client
	opts  Options
}

var (
	_ platform.Tables      = (*Backend)(nil)
	_ platform.RankBatcher = (*Backend)(nil)
	_ platform.Auth        = (*Backend)(nil)
	_ platform.Storage     = (*Backend)(nil)
	_ platform.Feed        = (*Backend)(nil)
)

func New(db *gorm.DB, redisClient *redis.Client, opts Options) *Backend {
	if opts.AccessTTL <= 0 {
		opts.AccessTTL = ACCESS_TTL_DEFAULT
	}
	if opts.RefreshTTL <= 0 {
		opts.RefreshTTL = REFRESH_TTL_DEFAULT
	}
	if opts.Bucket == "" {
		opts.Bucket = "bookletku"
	}
	return &Backend{db: db, redis: redisClient, opts: opts}
}

// --- Authorization ---

// caller returns the verified claims of the token in ctx, or nil for a guest.
func (b *Backend) caller(ctx context.Context) (*utils.Claims, error) {
	token := platform.AccessToken(ctx)
	if token == "" {
		return nil, nil
	}
	claims, err := utils.ParseToken(b.opts.JWTSecret, token)
	if errors.Is(err, utils.ErrTokenExpired) {
		return nil, platform.ErrTokenExpired
	}
	if err != nil {
		return nil, platform.ErrInvalidToken
	}
	return claims, nil
}

func (b *Backend) requireUser(ctx context.Context) (*utils.Claims, error) {
	claims, err := b.caller(ctx)
	if err != nil {
		return nil, err
	}
	if claims == nil {
		return nil, platform.ErrForbidden
	}
	return claims, nil
}

func (b *Backend) requireAdmin(ctx context.Context) (*utils.Claims, error) {
	claims, err := b.requireUser(ctx)
	if err != nil {
		return nil, err
	}
	if claims.Role != platform.RoleAdmin {
		return nil, platform.ErrForbidden
	}
	return claims, nil
}

// requireSelf lets a user act on their own rows and an admin on anyone's.
func (b *Backend) requireSelf(ctx context.Context, userID string) (*utils.Claims, error) {
	claims, err := b.requireUser(ctx)
	if err != nil {
		return nil, err
	}
	if claims.UserID != userID && claims.Role != platform.RoleAdmin {
		return nil, platform.ErrForbidden
	}
	return claims, nil
}

// --- Cache & change feed ---

func menuCacheKey(storeID string) string {
	return MENU_CACHE_PREFIX + storeID
}

func menuVersionKey(storeID string) string {
	return MENU_VERSION_PREFIX + storeID
}

// InvalidateMenuCache bumps the store's menu version before dropping the
// cached list, so a list read that started earlier cannot be cached.
func (b *Backend) InvalidateMenuCache(ctx context.Context, storeIDs ...string) {
	for _, id := range storeIDs {
		_, err := b.redis.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Incr(ctx, menuVersionKey(id))
			pipe.Del(ctx, menuCacheKey(id))
			return nil
		})
		if err != nil {
			log.Printf("backend: cache invalidation for store %s failed: %v", id, err)
		}
	}
}

func (b *Backend) publishChange(ctx context.Context, table string, typ platform.ChangeType, recordID string) {
	event := platform.ChangeEvent{Table: table, Type: typ, RecordID: recordID, At: time.Now().UTC()}
	eventJSON, err := json.Marshal(event)
	if err != nil {
		log.Printf("backend: marshal change event: %v", err)
		return
	}
	if err := b.redis.Publish(ctx, FEED_CHANNEL_PREFIX+table, eventJSON).Err(); err != nil {
		log.Printf("backend: publish %s change: %v", table, err)
	}
}

func dbError(op string, err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return fmt.Errorf("%s: %w", op, platform.ErrNotFound)
	}
	return fmt.Errorf("%s: %w", op, err)
}
