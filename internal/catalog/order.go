package catalog

import (
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/shopspring/decimal"
)

var ErrWhatsAppNotSet = errors.New("whatsapp number not set")

type OrderMeta struct {
	CustomerName string `json:"customerName"`
	OrderType    string `json:"orderType"`
	Note         string `json:"note"`
}

type CartLine struct {
	ItemID   string          `json:"itemId"`
	Name     string          `json:"name"`
	Price    decimal.Decimal `json:"price"`
	Quantity int             `json:"quantity"`
	Note     string          `json:"note"`
}

type OrderReceipt struct {
	OrderID     string          `json:"orderId,omitempty"`
	Total       decimal.Decimal `json:"total"`
	WhatsAppURL string          `json:"whatsappUrl"`
}

func (l CartLine) Subtotal() decimal.Decimal {
	return l.Price.Mul(decimal.NewFromInt(int64(l.Quantity)))
}

func CartTotal(lines []CartLine) decimal.Decimal {
	total := decimal.Zero
	for _, l := range lines {
		total = total.Add(l.Subtotal())
	}
	return total
}

func ValidateCart(lines []CartLine) error {
	if len(lines) == 0 {
		return invalid("cart", "cart is empty")
	}
	for i, l := range lines {
		if l.ItemID == "" {
			return invalid("cart", fmt.Sprintf("line %d has no item", i+1))
		}
		if l.Quantity <= 0 {
			return invalid("cart", fmt.Sprintf("line %d quantity must be greater than 0", i+1))
		}
		if l.Price.IsNegative() {
			return invalid("cart", fmt.Sprintf("line %d has a negative price", i+1))
		}
	}
	return nil
}

// DistinctItemIDs keeps the first occurrence of every item id.
func DistinctItemIDs(lines []CartLine) []string {
	seen := make(map[string]bool, len(lines))
	ids := make([]string, 0, len(lines))
	for _, l := range lines {
		if seen[l.ItemID] {
			continue
		}
		seen[l.ItemID] = true
		ids = append(ids, l.ItemID)
	}
	return ids
}

// FormatRupiah groups thousands with dots and uses a comma for decimals.
func FormatRupiah(d decimal.Decimal) string {
	s := d.Round(2).String()
	sign := ""
	if strings.HasPrefix(s, "-") {
		sign, s = "-", s[1:]
	}
	intPart, frac, _ := strings.Cut(s, ".")

	var b strings.Builder
	for i, r := range intPart {
		if i > 0 && (len(intPart)-i)%3 == 0 {
			b.WriteByte('.')
		}
		b.WriteRune(r)
	}
	if frac != "" {
		b.WriteByte(',')
		b.WriteString(frac)
	}
	return sign + b.String()
}

// OrderMessage renders the chat message sent to the store.
func OrderMessage(storeName, orderType string, lines []CartLine) string {
	if storeName == "" {
		storeName = "Store"
	}
	if orderType == "" {
		orderType = "unknown"
	}

	out := []string{
		fmt.Sprintf("*Order from %s*", storeName),
		fmt.Sprintf("Type: %s", orderType),
		"",
	}
	for i, l := range lines {
		out = append(out, fmt.Sprintf("%d. %s x%d - Rp %s", i+1, l.Name, l.Quantity, FormatRupiah(l.Price)))
		if l.Note != "" {
			out = append(out, "   note: "+l.Note)
		}
	}
	out = append(out, "", "TOTAL: Rp "+FormatRupiah(CartTotal(lines)))
	return strings.Join(out, "\n")
}

// WhatsAppLink builds a wa.me link that opens a chat with message prefilled.
func WhatsAppLink(phone, message string) (string, error) {
	digits := DigitsOnly(phone)
	if digits == "" {
		return "", ErrWhatsAppNotSet
	}
	text := strings.ReplaceAll(url.QueryEscape(message), "+", "%20")
	return "https://wa.me/" + digits + "?text=" + text, nil
}
