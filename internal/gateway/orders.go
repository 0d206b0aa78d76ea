package gateway

import (
	"context"
	"log"

	"golang.org/x/sync/errgroup"

	"bookletku/internal/catalog"
	"bookletku/internal/platform"
)

// SubmitOrder records the order, bumps the view counter of every distinct
// item in the cart and returns the WhatsApp link that sends the order to the
// store. Neither the order insert nor the view counts can fail the order.
func (g *Gateway) SubmitOrder(ctx context.Context, meta catalog.OrderMeta, lines []catalog.CartLine) (catalog.OrderReceipt, error) {
	if err := catalog.ValidateCart(lines); err != nil {
		return catalog.OrderReceipt{}, err
	}

	settings := g.Snapshot().Settings
	link, err := catalog.WhatsAppLink(settings.WhatsappNumber, catalog.OrderMessage(settings.StoreName, meta.OrderType, lines))
	if err != nil {
		return catalog.OrderReceipt{}, err
	}

	receipt := catalog.OrderReceipt{
		Total:       catalog.CartTotal(lines),
		WhatsAppURL: link,
	}

	var saved platform.OrderRow
	err = g.withAuthRetry(ctx, true, func(ctx context.Context) error {
		var err error
		saved, err = g.deps.Tables.InsertOrder(ctx, orderRow(g.cfg.StoreID, meta, lines))
		return err
	})
	if err != nil {
		log.Printf("gateway: record order: %v", err)
	} else {
		receipt.OrderID = saved.ID
	}

	var eg errgroup.Group
	for _, id := range catalog.DistinctItemIDs(lines) {
		id := id
		eg.Go(func() error {
			if err := g.RecordView(ctx, id); err != nil {
				log.Printf("gateway: count view for %s: %v", id, err)
			}
			return nil
		})
	}
	_ = eg.Wait()

	return receipt, nil
}
