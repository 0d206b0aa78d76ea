// Package platform describes the backend platform the store gateway talks to:
// table reads and writes, blob storage, password auth with refreshable
// sessions, and a per-table change feed.
package platform

import (
	"context"
	"io"
	"time"

	"github.com/shopspring/decimal"
)

const (
	TableMenuItems = "menu_items"
	TableStores    = "stores"
	TableOrders    = "orders"
	TableProfiles  = "user_profiles"
)

const (
	RoleAdmin = "admin"
	RoleUser  = "user"
)

// ItemRow is a menu_items row as the platform returns it. Nullable columns
// are pointers so callers can apply their own defaults.
type ItemRow struct {
	ID          string          `json:"id"`
	StoreID     string          `json:"store_id"`
	Name        string          `json:"name"`
	Price       decimal.Decimal `json:"price"`
	Description *string         `json:"description"`
	Category    *string         `json:"category"`
	Photo       *string         `json:"photo"`
	Views       *int64          `json:"views"`
	Badge       *string         `json:"badge"`
	SortOrder   *int            `json:"sort_order"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
}

// ItemFields is the writable column set of a menu item, excluding rank and views.
type ItemFields struct {
	Name        string
	Price       decimal.Decimal
	Description string
	Category    string
	Photo       string
	Badge       string
}

type RankUpdate struct {
	ID   string
	Rank int
}

type StoreRow struct {
	ID             string    `json:"id"`
	Name           string    `json:"name"`
	StoreLocation  *string   `json:"store_location"`
	OperatingHours *string   `json:"operating_hours"`
	WhatsappNumber *string   `json:"whatsapp_number"`
	UpdatedAt      time.Time `json:"updated_at"`
}

type OrderLineRow struct {
	ItemID   string          `json:"item_id"`
	Name     string          `json:"name"`
	Price    decimal.Decimal `json:"price"`
	Quantity int             `json:"quantity"`
	Note     string          `json:"note,omitempty"`
}

type OrderRow struct {
	ID           string          `json:"id"`
	StoreID      string          `json:"store_id"`
	CustomerName string          `json:"customer_name"`
	OrderType    string          `json:"order_type"`
	Note         string          `json:"note"`
	Lines        []OrderLineRow  `json:"lines"`
	Total        decimal.Decimal `json:"total"`
	CreatedAt    time.Time       `json:"created_at"`
}

type ProfileRow struct {
	ID        string `json:"id"`
	Email     string `json:"email"`
	Name      string `json:"name"`
	Role      string `json:"role"`
	AvatarURL string `json:"avatar_url"`
}

type User struct {
	ID    string `json:"id"`
	Email string `json:"email"`
	Name  string `json:"name"`
}

type Session struct {
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token"`
	ExpiresAt    time.Time `json:"expires_at"`
	User         User      `json:"user"`
}

type ChangeType string

const (
	ChangeInsert ChangeType = "INSERT"
	ChangeUpdate ChangeType = "UPDATE"
	ChangeDelete ChangeType = "DELETE"
)

// ChangeEvent only promises that something changed in Table.
type ChangeEvent struct {
	Table    string     `json:"table"`
	Type     ChangeType `json:"type"`
	RecordID string     `json:"record_id"`
	At       time.Time  `json:"at"`
}

// Tables is the row-level API. The caller's access token, if any, travels
// in the context (see WithAccessToken).
type Tables interface {
	ListItems(ctx context.Context, storeID string) ([]ItemRow, error)
	InsertItem(ctx context.Context, storeID string, fields ItemFields, rank int) (ItemRow, error)
	UpdateItem(ctx context.Context, id string, fields ItemFields) error
	UpdateItemRank(ctx context.Context, id string, rank int) error
	IncrementViews(ctx context.Context, id string) error
	DeleteItem(ctx context.Context, id string) error

	GetStore(ctx context.Context, id string) (StoreRow, error)
	UpsertStore(ctx context.Context, row StoreRow) error

	InsertOrder(ctx context.Context, row OrderRow) (OrderRow, error)

	GetProfile(ctx context.Context, userID string) (ProfileRow, error)
	UpsertProfile(ctx context.Context, row ProfileRow) error
	UpdateProfileAvatar(ctx context.Context, userID, url string) error
}

// RankBatcher is implemented by platforms that can write many ranks atomically.
type RankBatcher interface {
	UpdateItemRanks(ctx context.Context, ranks []RankUpdate) error
}

type Storage interface {
	Upload(ctx context.Context, name, contentType string, body io.Reader, upsert bool) error
	PublicURL(name string) string
}

type Auth interface {
	SignUp(ctx context.Context, email, password, name string) (Session, error)
	SignIn(ctx context.Context, email, password string) (Session, error)
	SignOut(ctx context.Context, refreshToken string) error
	Refresh(ctx context.Context, refreshToken string) (Session, error)
}

type Subscription interface {
	Events() <-chan ChangeEvent
	Close() error
}

type Feed interface {
	Subscribe(ctx context.Context, tables ...string) (Subscription, error)
}
