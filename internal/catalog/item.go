// Package catalog holds the storefront's menu vocabulary: items, drafts,
// categories, badges, store settings and orders.
package catalog

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

type MenuItem struct {
	ID          string          `json:"id"`
	Name        string          `json:"name"`
	Price       decimal.Decimal `json:"price"`
	Description string          `json:"description"`
	Category    string          `json:"category"`
	Photo       string          `json:"photo"`
	Views       int64           `json:"views"`
	Badge       Badge           `json:"badge"`
	Order       int             `json:"order"`
}

// DisplayBadge is the badge a customer sees for the item.
func (m MenuItem) DisplayBadge() Badge {
	return EffectiveBadge(m.Badge, m.Views)
}

// Draft is the admin-editable part of a menu item.
type Draft struct {
	Name        string          `json:"name"`
	Price       decimal.Decimal `json:"price"`
	Description string          `json:"description"`
	Category    string          `json:"category"`
	Photo       string          `json:"photo"`
	Badge       Badge           `json:"badge"`
}

type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Message)
}

func invalid(field, message string) error {
	return &ValidationError{Field: field, Message: message}
}

// Normalize trims text fields and fills the default category.
func (d Draft) Normalize() Draft {
	d.Name = strings.TrimSpace(d.Name)
	d.Description = strings.TrimSpace(d.Description)
	d.Category = strings.TrimSpace(d.Category)
	d.Photo = strings.TrimSpace(d.Photo)
	d.Badge = Badge(strings.TrimSpace(string(d.Badge)))
	if d.Category == "" {
		d.Category = DefaultCategory
	}
	return d
}

func (d Draft) Validate() error {
	if strings.TrimSpace(d.Name) == "" {
		return invalid("name", "name is required")
	}
	if !d.Price.IsPositive() {
		return invalid("price", "price must be greater than 0")
	}
	if !d.Badge.Valid() {
		return invalid("badge", fmt.Sprintf("unknown badge %q", d.Badge))
	}
	return nil
}
