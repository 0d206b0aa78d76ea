package catalog

import (
	"errors"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func TestCustomCategories(t *testing.T) {
	items := []MenuItem{
		{Category: "food"},
		{Category: "drink"},
		{Category: "vegan"},
		{Category: "vegan"},
		{Category: "seasonal"},
	}

	got := CustomCategories(items)
	want := []string{"vegan", "seasonal"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("CustomCategories = %v, want %v", got, want)
	}

	got = CustomCategories([]MenuItem{{Category: "food"}, {Category: "drink"}, {Category: "vegan"}})
	if !reflect.DeepEqual(got, []string{"vegan"}) {
		t.Fatalf("CustomCategories = %v, want [vegan]", got)
	}

	if got := CustomCategories(nil); len(got) != 0 {
		t.Fatalf("CustomCategories(nil) = %v, want empty", got)
	}
}

func TestCategoriesKeepsDefaultsFirst(t *testing.T) {
	got := Categories([]MenuItem{{Category: "vegan"}})
	want := []string{"food", "drink", "snack", "dessert", "other", "vegan"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("Categories = %v, want %v", got, want)
	}
}

func TestDraftValidate(t *testing.T) {
	tests := []struct {
		name  string
		draft Draft
		field string
	}{
		{"ok", Draft{Name: "Nasi Goreng", Price: decimal.NewFromInt(20000)}, ""},
		{"blank name", Draft{Name: "   ", Price: decimal.NewFromInt(1)}, "name"},
		{"zero price", Draft{Name: "Es Teh", Price: decimal.Zero}, "price"},
		{"negative price", Draft{Name: "Es Teh", Price: decimal.NewFromInt(-5)}, "price"},
		{"bad badge", Draft{Name: "Es Teh", Price: decimal.NewFromInt(5000), Badge: "hot"}, "badge"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.draft.Validate()
			if tt.field == "" {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			var verr *ValidationError
			if !errors.As(err, &verr) {
				t.Fatalf("expected ValidationError, got %v", err)
			}
			if verr.Field != tt.field {
				t.Fatalf("field = %q, want %q", verr.Field, tt.field)
			}
		})
	}
}

func TestDraftNormalize(t *testing.T) {
	d := Draft{Name: "  Sate  ", Category: "  ", Photo: " x.png "}.Normalize()
	if d.Name != "Sate" || d.Category != DefaultCategory || d.Photo != "x.png" {
		t.Fatalf("unexpected normalized draft: %+v", d)
	}
}

func TestEffectiveBadge(t *testing.T) {
	tests := []struct {
		manual Badge
		views  int64
		want   Badge
	}{
		{BadgeNone, 0, BadgeNone},
		{BadgeNone, 80, BadgeNone},
		{BadgeNone, 81, BadgePopular},
		{BadgeNone, 150, BadgePopular},
		{BadgeNone, 151, BadgeTrending},
		{BadgeNew, 500, BadgeNew},
	}
	for _, tt := range tests {
		if got := EffectiveBadge(tt.manual, tt.views); got != tt.want {
			t.Errorf("EffectiveBadge(%q, %d) = %q, want %q", tt.manual, tt.views, got, tt.want)
		}
	}
}

func TestSettingsNormalizeAndValidate(t *testing.T) {
	s := StoreSettings{
		StoreName:      " Warung Bu Sri ",
		WhatsappNumber: "+62 812-3456-7890",
		OperatingHours: "08:00-21:30",
	}.Normalize()

	if s.WhatsappNumber != "6281234567890" {
		t.Fatalf("WhatsappNumber = %q", s.WhatsappNumber)
	}
	if s.OperatingHours != "08:00 - 21:30" {
		t.Fatalf("OperatingHours = %q", s.OperatingHours)
	}
	if err := s.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}

	bad := StoreSettings{StoreName: "x", OperatingHours: "8 to 9"}
	if err := bad.Validate(); err == nil {
		t.Fatal("expected hours validation error")
	}
	if err := (StoreSettings{}).Validate(); err == nil {
		t.Fatal("expected store name validation error")
	}
}

func TestParseHours(t *testing.T) {
	open, close, err := ParseHours("07:30 - 22:00")
	if err != nil || open != "07:30" || close != "22:00" {
		t.Fatalf("ParseHours = %q %q %v", open, close, err)
	}
	if _, _, err := ParseHours("25:00 - 22:00"); err == nil {
		t.Fatal("expected error for 25:00")
	}
}

func TestFormatRupiah(t *testing.T) {
	tests := map[string]string{
		"0":        "0",
		"500":      "500",
		"20000":    "20.000",
		"1234567":  "1.234.567",
		"12500.5":  "12.500,5",
		"-1000000": "-1.000.000",
	}
	for in, want := range tests {
		if got := FormatRupiah(decimal.RequireFromString(in)); got != want {
			t.Errorf("FormatRupiah(%s) = %q, want %q", in, got, want)
		}
	}
}

func TestOrderMessageAndLink(t *testing.T) {
	lines := []CartLine{
		{ItemID: "a", Name: "Nasi Goreng", Price: decimal.NewFromInt(20000), Quantity: 2, Note: "pedas"},
		{ItemID: "b", Name: "Es Teh", Price: decimal.NewFromInt(5000), Quantity: 1},
	}

	msg := OrderMessage("Warung", "dine-in", lines)
	want := strings.Join([]string{
		"*Order from Warung*",
		"Type: dine-in",
		"",
		"1. Nasi Goreng x2 - Rp 20.000",
		"   note: pedas",
		"2. Es Teh x1 - Rp 5.000",
		"",
		"TOTAL: Rp 45.000",
	}, "\n")
	if msg != want {
		t.Fatalf("message mismatch:\n%s\nwant:\n%s", msg, want)
	}

	link, err := WhatsAppLink("+62 812", "a b&c")
	if err != nil {
		t.Fatal(err)
	}
	if link != "https://wa.me/62812?text=a%20b%26c" {
		t.Fatalf("link = %q", link)
	}

	if _, err := WhatsAppLink("", "x"); !errors.Is(err, ErrWhatsAppNotSet) {
		t.Fatalf("expected ErrWhatsAppNotSet, got %v", err)
	}
}

func TestValidateCartAndDistinctIDs(t *testing.T) {
	if err := ValidateCart(nil); err == nil {
		t.Fatal("expected empty cart error")
	}
	if err := ValidateCart([]CartLine{{ItemID: "a", Quantity: 0}}); err == nil {
		t.Fatal("expected quantity error")
	}

	lines := []CartLine{{ItemID: "a", Quantity: 1}, {ItemID: "b", Quantity: 1}, {ItemID: "a", Quantity: 3}}
	if got := DistinctItemIDs(lines); !reflect.DeepEqual(got, []string{"a", "b"}) {
		t.Fatalf("DistinctItemIDs = %v", got)
	}
}

func TestUploadObjectNames(t *testing.T) {
	now := time.UnixMilli(1700000000123)

	photo := Upload{FileName: "Nasi.JPG", Data: []byte{1}}
	if got := PhotoObjectName(photo, now); got != "menu-1700000000123.jpg" {
		t.Fatalf("PhotoObjectName = %q", got)
	}

	avatar := Upload{FileName: "blob", ContentType: "image/png", Data: []byte{1}}
	if got := AvatarObjectName(avatar, "u1", now); got != "avatars/u1-1700000000123.png" {
		t.Fatalf("AvatarObjectName = %q", got)
	}

	if err := (Upload{}).Validate(); err == nil {
		t.Fatal("expected empty upload error")
	}
}
