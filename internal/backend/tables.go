package backend

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"bookletku/internal/database/models"
	"bookletku/internal/platform"
)

// --- Helpers ---

func strPtr(s string) *string {
	return &s
}

func itemToRow(m models.MenuItem) platform.ItemRow {
	return platform.ItemRow{
		ID:          m.ID,
		StoreID:     m.StoreID,
		Name:        m.Name,
		Price:       m.Price,
		Description: m.Description,
		Category:    m.Category,
		Photo:       m.Photo,
		Views:       m.Views,
		Badge:       m.Badge,
		SortOrder:   m.SortOrder,
		CreatedAt:   m.CreatedAt,
		UpdatedAt:   m.UpdatedAt,
	}
}

func storeToRow(s models.Store) platform.StoreRow {
	return platform.StoreRow{
		ID:             s.ID,
		Name:           s.Name,
		StoreLocation:  s.StoreLocation,
		OperatingHours: s.OperatingHours,
		WhatsappNumber: s.WhatsappNumber,
		UpdatedAt:      s.UpdatedAt,
	}
}

func fieldColumns(f platform.ItemFields) map[string]interface{} {
	return map[string]interface{}{
		"name":        f.Name,
		"price":       f.Price,
		"description": f.Description,
		"category":    f.Category,
		"photo":       f.Photo,
		"badge":       f.Badge,
	}
}

// --- Menu items ---

var errStaleMenu = errors.New("menu changed during read")

func (b *Backend) ListItems(ctx context.Context, storeID string) ([]platform.ItemRow, error) {
	if _, err := b.caller(ctx); err != nil {
		return nil, err
	}

	cacheKey := menuCacheKey(storeID)
	val, err := b.redis.Get(ctx, cacheKey).Result()
	if err == nil {
		var cached []platform.ItemRow
		if err := json.Unmarshal([]byte(val), &cached); err == nil {
			return cached, nil
		}
	} else if err != redis.Nil {
		log.Printf("backend: redis error on GET %s: %v, falling back to DB", cacheKey, err)
	}

	versionKey := menuVersionKey(storeID)
	version, verr := b.redis.Get(ctx, versionKey).Result()
	if verr == redis.Nil {
		verr = nil
	}

	var items []models.MenuItem
	err = b.db.WithContext(ctx).
		Where("store_id = ?", storeID).
		Order("sort_order ASC").
		Order("created_at ASC").
		Find(&items).Error
	if err != nil {
		return nil, dbError("list items", err)
	}

	rows := make([]platform.ItemRow, len(items))
	for i, item := range items {
		rows[i] = itemToRow(item)
	}

	if verr == nil {
		b.cacheMenu(ctx, storeID, version, rows)
	}
	return rows, nil
}

// cacheMenu stores rows only while the store's menu version still matches
// the one read before the query.
func (b *Backend) cacheMenu(ctx context.Context, storeID, version string, rows []platform.ItemRow) {
	jsonData, err := json.Marshal(rows)
	if err != nil {
		return
	}
	cacheKey, versionKey := menuCacheKey(storeID), menuVersionKey(storeID)
	err = b.redis.Watch(ctx, func(tx *redis.Tx) error {
		current, err := tx.Get(ctx, versionKey).Result()
		if err != nil && err != redis.Nil {
			return err
		}
		if current != version {
			return errStaleMenu
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, cacheKey, jsonData, CACHE_TTL_SHORT)
			return nil
		})
		return err
	}, versionKey)
	if err != nil && err != errStaleMenu && err != redis.TxFailedErr {
		log.Printf("backend: failed to set cache for key %s: %v", cacheKey, err)
	}
}

func (b *Backend) InsertItem(ctx context.Context, storeID string, f platform.ItemFields, rank int) (platform.ItemRow, error) {
	if _, err := b.requireAdmin(ctx); err != nil {
		return platform.ItemRow{}, err
	}

	views := int64(0)
	item := models.MenuItem{
		ID:          uuid.NewString(),
		StoreID:     storeID,
		Name:        f.Name,
		Price:       f.Price,
		Description: strPtr(f.Description),
		Category:    strPtr(f.Category),
		Photo:       strPtr(f.Photo),
		Badge:       strPtr(f.Badge),
		Views:       &views,
		SortOrder:   &rank,
	}
	if err := b.db.WithContext(ctx).Create(&item).Error; err != nil {
		return platform.ItemRow{}, dbError("insert item", err)
	}

	b.InvalidateMenuCache(ctx, storeID)
	b.publishChange(ctx, platform.TableMenuItems, platform.ChangeInsert, item.ID)
	return itemToRow(item), nil
}

// updateItemColumns applies cols to one item and announces the change.
func (b *Backend) updateItemColumns(ctx context.Context, op, id string, cols map[string]interface{}) error {
	var item models.MenuItem
	if err := b.db.WithContext(ctx).Select("id", "store_id").First(&item, "id = ?", id).Error; err != nil {
		return dbError(op, err)
	}

	if err := b.db.WithContext(ctx).Model(&models.MenuItem{}).Where("id = ?", id).Updates(cols).Error; err != nil {
		return dbError(op, err)
	}

	b.InvalidateMenuCache(ctx, item.StoreID)
	b.publishChange(ctx, platform.TableMenuItems, platform.ChangeUpdate, id)
	return nil
}

func (b *Backend) UpdateItem(ctx context.Context, id string, f platform.ItemFields) error {
	if _, err := b.requireAdmin(ctx); err != nil {
		return err
	}
	return b.updateItemColumns(ctx, "update item", id, fieldColumns(f))
}

func (b *Backend) UpdateItemRank(ctx context.Context, id string, rank int) error {
	if _, err := b.requireAdmin(ctx); err != nil {
		return err
	}
	return b.updateItemColumns(ctx, "update item rank", id, map[string]interface{}{"sort_order": rank})
}

// UpdateItemRanks writes every rank in one transaction; a missing item rolls
// the whole batch back.
func (b *Backend) UpdateItemRanks(ctx context.Context, ranks []platform.RankUpdate) error {
	if _, err := b.requireAdmin(ctx); err != nil {
		return err
	}

	stores := make(map[string]bool)
	err := b.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, r := range ranks {
			var item models.MenuItem
			if err := tx.Select("id", "store_id").First(&item, "id = ?", r.ID).Error; err != nil {
				return err
			}
			if err := tx.Model(&models.MenuItem{}).Where("id = ?", r.ID).Update("sort_order", r.Rank).Error; err != nil {
				return err
			}
			stores[item.StoreID] = true
		}
		return nil
	})
	if err != nil {
		return dbError("update item ranks", err)
	}

	for storeID := range stores {
		b.InvalidateMenuCache(ctx, storeID)
	}
	b.publishChange(ctx, platform.TableMenuItems, platform.ChangeUpdate, "")
	return nil
}

// IncrementViews is open to guests; customers count views.
func (b *Backend) IncrementViews(ctx context.Context, id string) error {
	if _, err := b.caller(ctx); err != nil {
		return err
	}
	return b.updateItemColumns(ctx, "increment views", id, map[string]interface{}{
		"views": gorm.Expr("COALESCE(views, 0) + 1"),
	})
}

func (b *Backend) DeleteItem(ctx context.Context, id string) error {
	if _, err := b.requireAdmin(ctx); err != nil {
		return err
	}

	var item models.MenuItem
	if err := b.db.WithContext(ctx).First(&item, "id = ?", id).Error; err != nil {
		return dbError("delete item", err)
	}
	if err := b.db.WithContext(ctx).Delete(&models.MenuItem{}, "id = ?", id).Error; err != nil {
		return dbError("delete item", err)
	}

	b.InvalidateMenuCache(ctx, item.StoreID)
	b.publishChange(ctx, platform.TableMenuItems, platform.ChangeDelete, id)
	return nil
}

// --- Stores ---

func (b *Backend) GetStore(ctx context.Context, id string) (platform.StoreRow, error) {
	if _, err := b.caller(ctx); err != nil {
		return platform.StoreRow{}, err
	}
	var store models.Store
	if err := b.db.WithContext(ctx).First(&store, "id = ?", id).Error; err != nil {
		return platform.StoreRow{}, dbError("get store", err)
	}
	return storeToRow(store), nil
}

func (b *Backend) UpsertStore(ctx context.Context, row platform.StoreRow) error {
	if _, err := b.requireAdmin(ctx); err != nil {
		return err
	}
	return b.upsertStore(ctx, row)
}

func (b *Backend) upsertStore(ctx context.Context, row platform.StoreRow) error {
	store := models.Store{
		ID:             row.ID,
		Name:           row.Name,
		StoreLocation:  row.StoreLocation,
		OperatingHours: row.OperatingHours,
		WhatsappNumber: row.WhatsappNumber,
	}
	err := b.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{"name", "store_location", "operating_hours", "whatsapp_number", "updated_at"}),
	}).Create(&store).Error
	if err != nil {
		return dbError("upsert store", err)
	}

	b.publishChange(ctx, platform.TableStores, platform.ChangeUpdate, row.ID)
	return nil
}

// --- Orders ---

type OrderEvent struct {
	EventType string           `json:"event_type"`
	Order     platform.OrderRow `json:"order"`
	Timestamp time.Time        `json:"timestamp"`
}

// InsertOrder is open to guests. The placed order is also forwarded to the
// broker when one is configured; a broker failure does not fail the insert.
func (b *Backend) InsertOrder(ctx context.Context, row platform.OrderRow) (platform.OrderRow, error) {
	if _, err := b.caller(ctx); err != nil {
		return platform.OrderRow{}, err
	}

	lines := make(models.OrderLines, len(row.Lines))
	for i, l := range row.Lines {
		lines[i] = models.OrderLine{ItemID: l.ItemID, Name: l.Name, Price: l.Price, Quantity: l.Quantity, Note: l.Note}
	}
	order := models.Order{
		ID:           uuid.NewString(),
		StoreID:      row.StoreID,
		CustomerName: row.CustomerName,
		OrderType:    row.OrderType,
		Note:         row.Note,
		Lines:        lines,
		Total:        row.Total,
	}
	if err := b.db.WithContext(ctx).Create(&order).Error; err != nil {
		return platform.OrderRow{}, dbError("insert order", err)
	}

	row.ID = order.ID
	row.CreatedAt = order.CreatedAt
	b.publishChange(ctx, platform.TableOrders, platform.ChangeInsert, order.ID)

	if b.opts.Orders != nil {
		if err := b.publishOrderEvent(ctx, OrderEvent{EventType: "placed", Order: row, Timestamp: time.Now()}); err != nil {
			log.Printf("backend: order %s not forwarded: %v", order.ID, err)
		}
	}
	return row, nil
}

func (b *Backend) publishOrderEvent(ctx context.Context, event OrderEvent) error {
	eventJSON, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}
	routingKey := fmt.Sprintf("orders.%s.%s", event.Order.StoreID, event.EventType)
	return b.opts.Orders.PublishOrder(ctx, routingKey, eventJSON)
}

// --- Profiles ---

func profileToRow(p models.UserProfile) platform.ProfileRow {
	return platform.ProfileRow{ID: p.ID, Email: p.Email, Name: p.Name, Role: p.Role, AvatarURL: p.AvatarURL}
}

func (b *Backend) GetProfile(ctx context.Context, userID string) (platform.ProfileRow, error) {
	if _, err := b.requireSelf(ctx, userID); err != nil {
		return platform.ProfileRow{}, err
	}
	var profile models.UserProfile
	if err := b.db.WithContext(ctx).First(&profile, "id = ?", userID).Error; err != nil {
		return platform.ProfileRow{}, dbError("get profile", err)
	}
	return profileToRow(profile), nil
}

// UpsertProfile writes a profile row. Only an admin may grant the admin role.
func (b *Backend) UpsertProfile(ctx context.Context, row platform.ProfileRow) error {
	claims, err := b.requireSelf(ctx, row.ID)
	if err != nil {
		return err
	}
	if row.Role == "" {
		row.Role = platform.RoleUser
	}
	if row.Role == platform.RoleAdmin && claims.Role != platform.RoleAdmin {
		return platform.ErrForbidden
	}
	return b.upsertProfile(ctx, row)
}

func (b *Backend) upsertProfile(ctx context.Context, row platform.ProfileRow) error {
	profile := models.UserProfile{ID: row.ID, Email: row.Email, Name: row.Name, Role: row.Role, AvatarURL: row.AvatarURL}
	err := b.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{"email", "name", "role", "updated_at"}),
	}).Create(&profile).Error
	if err != nil {
		return dbError("upsert profile", err)
	}
	return nil
}

func (b *Backend) UpdateProfileAvatar(ctx context.Context, userID, url string) error {
	if _, err := b.requireSelf(ctx, userID); err != nil {
		return err
	}
	res := b.db.WithContext(ctx).Model(&models.UserProfile{}).Where("id = ?", userID).Update("avatar_url", url)
	if res.Error != nil {
		return dbError("update avatar", res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("update avatar: %w", platform.ErrNotFound)
	}
	return nil
}
