package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

type MenuItem struct {
	ID          string          `gorm:"primaryKey;type:varchar(36)"`
	StoreID     string          `gorm:"index;type:varchar(36);not null"`
	Name        string          `gorm:"not null"`
	Price       decimal.Decimal `gorm:"type:numeric(14,2);not null"`
	Description *string         `gorm:"type:text"`
	Category    *string
	Photo       *string `gorm:"type:text"`
	Views       *int64  `gorm:"default:0"`
	Badge       *string
	SortOrder   *int `gorm:"index"`
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

func (MenuItem) TableName() string { return "menu_items" }

type Store struct {
	ID             string `gorm:"primaryKey;type:varchar(36)"`
	Name           string `gorm:"not null"`
	StoreLocation  *string
	OperatingHours *string
	WhatsappNumber *string
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

func (Store) TableName() string { return "stores" }

type OrderLine struct {
	ItemID   string          `json:"item_id"`
	Name     string          `json:"name"`
	Price    decimal.Decimal `json:"price"`
	Quantity int             `json:"quantity"`
	Note     string          `json:"note,omitempty"`
}

// OrderLines is stored as a JSON text column.
type OrderLines []OrderLine

func (l *OrderLines) Scan(value interface{}) error {
	if value == nil {
		*l = OrderLines{}
		return nil
	}

	var bytes []byte
	switch v := value.(type) {
	case []byte:
		bytes = v
	case string:
		bytes = []byte(v)
	default:
		return fmt.Errorf("failed to scan OrderLines: %v", value)
	}

	return json.Unmarshal(bytes, l)
}

func (l OrderLines) Value() (driver.Value, error) {
	if l == nil {
		return "[]", nil
	}
	b, err := json.Marshal(l)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

type Order struct {
	ID           string          `gorm:"primaryKey;type:varchar(36)"`
	StoreID      string          `gorm:"index;type:varchar(36);not null"`
	CustomerName string
	OrderType    string
	Note         string          `gorm:"type:text"`
	Lines        OrderLines      `gorm:"type:text;not null"`
	Total        decimal.Decimal `gorm:"type:numeric(14,2);not null"`
	CreatedAt    time.Time
}

func (Order) TableName() string { return "orders" }
