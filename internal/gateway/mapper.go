package gateway

import (
	"bookletku/internal/catalog"
	"bookletku/internal/platform"
)

func strOr(p *string, fallback string) string {
	if p == nil || *p == "" {
		return fallback
	}
	return *p
}

func strPtr(s string) *string {
	return &s
}

func itemFromRow(row platform.ItemRow) catalog.MenuItem {
	item := catalog.MenuItem{
		ID:          row.ID,
		Name:        row.Name,
		Price:       row.Price,
		Description: strOr(row.Description, ""),
		Category:    strOr(row.Category, catalog.DefaultCategory),
		Photo:       strOr(row.Photo, ""),
		Badge:       catalog.Badge(strOr(row.Badge, "")),
	}
	if row.Views != nil {
		item.Views = *row.Views
	}
	if row.SortOrder != nil {
		item.Order = *row.SortOrder
	}
	return item
}

func itemsFromRows(rows []platform.ItemRow) []catalog.MenuItem {
	items := make([]catalog.MenuItem, len(rows))
	for i, row := range rows {
		items[i] = itemFromRow(row)
	}
	return items
}

func fieldsFromDraft(d catalog.Draft) platform.ItemFields {
	return platform.ItemFields{
		Name:        d.Name,
		Price:       d.Price,
		Description: d.Description,
		Category:    d.Category,
		Photo:       d.Photo,
		Badge:       string(d.Badge),
	}
}

func settingsFromRow(row platform.StoreRow) catalog.StoreSettings {
	return catalog.StoreSettings{
		StoreName:      row.Name,
		StoreLocation:  strOr(row.StoreLocation, ""),
		OperatingHours: strOr(row.OperatingHours, ""),
		WhatsappNumber: strOr(row.WhatsappNumber, ""),
	}
}

func rowFromSettings(storeID string, s catalog.StoreSettings) platform.StoreRow {
	return platform.StoreRow{
		ID:             storeID,
		Name:           s.StoreName,
		StoreLocation:  strPtr(s.StoreLocation),
		OperatingHours: strPtr(s.OperatingHours),
		WhatsappNumber: strPtr(s.WhatsappNumber),
	}
}

func orderRow(storeID string, meta catalog.OrderMeta, lines []catalog.CartLine) platform.OrderRow {
	rows := make([]platform.OrderLineRow, len(lines))
	for i, l := range lines {
		rows[i] = platform.OrderLineRow{
			ItemID:   l.ItemID,
			Name:     l.Name,
			Price:    l.Price,
			Quantity: l.Quantity,
			Note:     l.Note,
		}
	}
	return platform.OrderRow{
		StoreID:      storeID,
		CustomerName: meta.CustomerName,
		OrderType:    meta.OrderType,
		Note:         meta.Note,
		Lines:        rows,
		Total:        catalog.CartTotal(lines),
	}
}
