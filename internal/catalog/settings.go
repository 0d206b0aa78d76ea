package catalog

import (
	"fmt"
	"strings"
	"time"
	"unicode"
)

type StoreSettings struct {
	StoreName      string `json:"storeName"`
	StoreLocation  string `json:"storeLocation"`
	WhatsappNumber string `json:"whatsappNumber"`
	OperatingHours string `json:"operatingHours"`
}

const hoursLayout = "15:04"

// DigitsOnly strips everything but 0-9, so "+62 812-3456" becomes "628123456".
func DigitsOnly(s string) string {
	var b strings.Builder
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// FormatHours renders the stored "HH:MM - HH:MM" form.
func FormatHours(open, close string) string {
	return fmt.Sprintf("%s - %s", strings.TrimSpace(open), strings.TrimSpace(close))
}

// ParseHours splits an "HH:MM - HH:MM" string and checks both clock values.
func ParseHours(s string) (open, close string, err error) {
	parts := strings.Split(s, "-")
	if len(parts) != 2 {
		return "", "", invalid("operatingHours", "expected HH:MM - HH:MM")
	}
	open = strings.TrimFunc(parts[0], unicode.IsSpace)
	close = strings.TrimFunc(parts[1], unicode.IsSpace)
	if _, err := time.Parse(hoursLayout, open); err != nil {
		return "", "", invalid("operatingHours", fmt.Sprintf("bad opening time %q", open))
	}
	if _, err := time.Parse(hoursLayout, close); err != nil {
		return "", "", invalid("operatingHours", fmt.Sprintf("bad closing time %q", close))
	}
	return open, close, nil
}

func (s StoreSettings) Normalize() StoreSettings {
	s.StoreName = strings.TrimSpace(s.StoreName)
	s.StoreLocation = strings.TrimSpace(s.StoreLocation)
	s.WhatsappNumber = DigitsOnly(s.WhatsappNumber)
	s.OperatingHours = strings.TrimSpace(s.OperatingHours)
	if open, close, err := ParseHours(s.OperatingHours); err == nil {
		s.OperatingHours = FormatHours(open, close)
	}
	return s
}

func (s StoreSettings) Validate() error {
	if strings.TrimSpace(s.StoreName) == "" {
		return invalid("storeName", "store name is required")
	}
	if s.WhatsappNumber != DigitsOnly(s.WhatsappNumber) {
		return invalid("whatsappNumber", "digits only")
	}
	if s.OperatingHours != "" {
		if _, _, err := ParseHours(s.OperatingHours); err != nil {
			return err
		}
	}
	return nil
}
