package gateway

import (
	"context"
	"errors"
	"fmt"
	"log"

	"bookletku/internal/catalog"
	"bookletku/internal/platform"
)

// FetchSettings reloads the settings mirror. On failure the previous mirror
// is kept.
func (g *Gateway) FetchSettings(ctx context.Context) {
	var row platform.StoreRow
	err := g.withAuthRetry(ctx, true, func(ctx context.Context) error {
		var err error
		row, err = g.deps.Tables.GetStore(ctx, g.cfg.StoreID)
		return err
	})
	if errors.Is(err, platform.ErrNotFound) {
		log.Printf("gateway: store %s has no settings row yet", g.cfg.StoreID)
		return
	}
	if err != nil {
		log.Printf("gateway: fetch settings: %v", err)
		return
	}
	g.dispatch(settingsLoaded{settings: settingsFromRow(row)})
}

// SetSettings validates and stores the settings, then replaces the mirror
// without waiting for the change feed.
func (g *Gateway) SetSettings(ctx context.Context, s catalog.StoreSettings) error {
	s = s.Normalize()
	if err := s.Validate(); err != nil {
		return err
	}

	err := g.withAuthRetry(ctx, false, func(ctx context.Context) error {
		return g.deps.Tables.UpsertStore(ctx, rowFromSettings(g.cfg.StoreID, s))
	})
	if err != nil {
		log.Printf("gateway: save settings: %v", err)
		return fmt.Errorf("save settings: %w", err)
	}

	g.dispatch(settingsLoaded{settings: s})
	return nil
}
