package gateway

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"bookletku/internal/catalog"
	"bookletku/internal/platform"
)

// ReorderItems applies the new order to the mirror at once, then persists
// every rank. Fetches are held off until the writes finish and the settle
// delay passes, so a stale read cannot undo the optimistic order. Failed
// writes are logged and followed by a reconciling fetch; nothing is rolled
// back. A write the platform refuses (expired session, missing role) ends the
// window at once, reconciles and is returned to the caller.
func (g *Gateway) ReorderItems(ctx context.Context, ordered []catalog.MenuItem) error {
	g.mu.Lock()
	if !isPermutation(g.state.Items, ordered) {
		g.mu.Unlock()
		return ErrNotPermutation
	}

	next := make([]catalog.MenuItem, len(ordered))
	for i, item := range ordered {
		item.Order = i
		next[i] = item
	}
	g.reorderGen++
	gen := g.reorderGen
	g.inflight++
	snap := g.dispatchLocked(reorderApplied{items: next})
	g.mu.Unlock()
	g.publish(snap)

	err := g.persistRanks(ctx, gen, next)
	if refused(err) {
		g.finishReorder(true)
		return fmt.Errorf("reorder items: %w", err)
	}

	failed := err != nil
	if g.cfg.ReorderSettle > 0 {
		time.AfterFunc(g.cfg.ReorderSettle, func() { g.finishReorder(failed) })
	} else {
		g.finishReorder(failed)
	}
	return nil
}

// refused reports whether a rank write was rejected by the platform rather
// than lost in transit. Retrying or waiting cannot make it succeed.
func refused(err error) bool {
	return errors.Is(err, ErrAuthExpired) ||
		platform.IsAuthError(err) ||
		errors.Is(err, platform.ErrForbidden) ||
		errors.Is(err, ErrClosed)
}

func isPermutation(current, ordered []catalog.MenuItem) bool {
	if len(current) != len(ordered) {
		return false
	}
	want := make(map[string]int, len(current))
	for _, item := range current {
		want[item.ID]++
	}
	for _, item := range ordered {
		if want[item.ID] == 0 {
			return false
		}
		want[item.ID]--
	}
	return true
}

func (g *Gateway) superseded(gen uint64) bool {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.reorderGen != gen
}

// persistRanks writes ranks for one reorder generation and stops at the
// first failed write. A generation overtaken before it got the write lock
// leaves the store to the newer one.
func (g *Gateway) persistRanks(ctx context.Context, gen uint64, items []catalog.MenuItem) error {
	g.writeMu.Lock()
	defer g.writeMu.Unlock()

	if g.superseded(gen) {
		log.Printf("gateway: reorder %d superseded before writing", gen)
		return nil
	}

	if batcher, ok := g.deps.Tables.(platform.RankBatcher); ok {
		ranks := make([]platform.RankUpdate, len(items))
		for i, item := range items {
			ranks[i] = platform.RankUpdate{ID: item.ID, Rank: item.Order}
		}
		err := g.withAuthRetry(ctx, false, func(ctx context.Context) error {
			return batcher.UpdateItemRanks(ctx, ranks)
		})
		if err != nil {
			log.Printf("gateway: reorder %d: batch rank write: %v", gen, err)
		}
		return err
	}

	for _, item := range items {
		err := g.withAuthRetry(ctx, false, func(ctx context.Context) error {
			return g.deps.Tables.UpdateItemRank(ctx, item.ID, item.Order)
		})
		if err != nil {
			log.Printf("gateway: reorder %d: rank write for %s: %v", gen, item.ID, err)
			return err
		}
	}
	return nil
}

// finishReorder closes one reorder window. The last window to close
// reconciles with the store if a write failed or a fetch was skipped.
func (g *Gateway) finishReorder(failed bool) {
	g.mu.Lock()
	g.inflight--
	if failed {
		g.missedFetch = true
	}
	reconcile := g.inflight == 0 && g.missedFetch
	if reconcile {
		g.missedFetch = false
	}
	g.mu.Unlock()

	if !reconcile || g.closed() {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), g.cfg.FetchTimeout)
	defer cancel()
	g.FetchItems(ctx)
}
