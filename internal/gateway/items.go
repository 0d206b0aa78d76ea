package gateway

import (
	"context"
	"fmt"
	"log"
	"strings"

	"bookletku/internal/catalog"
	"bookletku/internal/platform"
)

// FetchItems reloads the item mirror and returns what it now holds. While a
// reorder is in flight the fetch is skipped and the optimistic order is
// returned untouched. Read failures are logged and yield an empty slice.
func (g *Gateway) FetchItems(ctx context.Context) []catalog.MenuItem {
	g.mu.Lock()
	if g.inflight > 0 {
		g.missedFetch = true
		items := g.state.clone().Items
		g.mu.Unlock()
		log.Println("gateway: reorder in flight, items fetch skipped")
		return items
	}
	startGen := g.reorderGen
	g.mu.Unlock()

	var rows []platform.ItemRow
	err := g.withAuthRetry(ctx, true, func(ctx context.Context) error {
		var err error
		rows, err = g.deps.Tables.ListItems(ctx, g.cfg.StoreID)
		return err
	})
	if err != nil {
		log.Printf("gateway: fetch items: %v", err)
		return []catalog.MenuItem{}
	}
	items := itemsFromRows(rows)

	g.mu.Lock()
	if g.inflight > 0 || g.reorderGen != startGen {
		g.missedFetch = g.missedFetch || g.inflight > 0
		current := g.state.clone().Items
		g.mu.Unlock()
		log.Println("gateway: discarding items fetched before a reorder")
		return current
	}
	snap := g.dispatchLocked(itemsLoaded{items: items})
	g.mu.Unlock()
	g.publish(snap)

	return snap.Items
}

// AddItem validates the draft, appends it at the end of the ranking and
// reloads the mirror.
func (g *Gateway) AddItem(ctx context.Context, draft catalog.Draft) (catalog.MenuItem, error) {
	draft = draft.Normalize()
	if err := draft.Validate(); err != nil {
		return catalog.MenuItem{}, err
	}

	g.mu.RLock()
	rank := len(g.state.Items)
	g.mu.RUnlock()

	var row platform.ItemRow
	err := g.withAuthRetry(ctx, false, func(ctx context.Context) error {
		var err error
		row, err = g.deps.Tables.InsertItem(ctx, g.cfg.StoreID, fieldsFromDraft(draft), rank)
		return err
	})
	if err != nil {
		log.Printf("gateway: add item %q: %v", draft.Name, err)
		return catalog.MenuItem{}, fmt.Errorf("add item: %w", err)
	}

	g.FetchItems(ctx)
	return itemFromRow(row), nil
}

// UpdateItem rewrites an item's editable fields; its rank is left alone.
func (g *Gateway) UpdateItem(ctx context.Context, id string, draft catalog.Draft) error {
	if strings.TrimSpace(id) == "" {
		return &catalog.ValidationError{Field: "id", Message: "id is required"}
	}
	draft = draft.Normalize()
	if err := draft.Validate(); err != nil {
		return err
	}

	err := g.withAuthRetry(ctx, false, func(ctx context.Context) error {
		return g.deps.Tables.UpdateItem(ctx, id, fieldsFromDraft(draft))
	})
	if err != nil {
		log.Printf("gateway: update item %s: %v", id, err)
		return fmt.Errorf("update item: %w", err)
	}

	g.FetchItems(ctx)
	return nil
}

func (g *Gateway) DeleteItem(ctx context.Context, id string) error {
	if strings.TrimSpace(id) == "" {
		return &catalog.ValidationError{Field: "id", Message: "id is required"}
	}

	err := g.withAuthRetry(ctx, false, func(ctx context.Context) error {
		return g.deps.Tables.DeleteItem(ctx, id)
	})
	if err != nil {
		log.Printf("gateway: delete item %s: %v", id, err)
		return fmt.Errorf("delete item: %w", err)
	}

	g.FetchItems(ctx)
	return nil
}

// RecordView counts one customer detail view. Guests may call it.
func (g *Gateway) RecordView(ctx context.Context, id string) error {
	err := g.withAuthRetry(ctx, true, func(ctx context.Context) error {
		return g.deps.Tables.IncrementViews(ctx, id)
	})
	if err != nil {
		return fmt.Errorf("record view: %w", err)
	}
	return nil
}
