package pipeline

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/sells-group/ordersync/internal/extract"
	"github.com/sells-group/ordersync/internal/model"
	"github.com/sells-group/ordersync/internal/parser"
	"github.com/sells-group/ordersync/internal/store"
)

// processOrder handles order confirmations. A confirmation is the first
// sighting of an order, so every item becomes a new row; no matching runs.
func (p *Processor) processOrder(ctx context.Context, msg *model.Message, body string) (Stats, error) {
	raw, err := p.llm.ExtractJSON(ctx, extract.BuildEmail(p.prompts.Order, msg.Subject, body))
	if err != nil {
		return Stats{}, eris.Wrap(err, "pipeline: order extraction")
	}
	if raw == nil {
		return Stats{Skipped: 1}, nil
	}

	ext := model.OrderExtractionFromRow(raw)
	rec := &Reconciler{
		Store:           p.store,
		Table:           store.TableOrderDetails,
		InsertUnmatched: true,
		// A blank sku rather than NULL keeps later equality matches to it
		// meaningful.
		Defaults: model.Row{"item_sku": ""},
	}

	stats := Stats{}
	for _, item := range ext.Items {
		if !item.Has("item_desc") {
			stats.Skipped++
			continue
		}
		row := ext.OrderInfo.Merge(item)
		row["user_email"] = msg.UserEmail
		row["user_id"] = msg.UserID

		// Store the normalized base description and backfill color and size
		// so later shipping and returns emails have columns to narrow on.
		base, color, size := parser.ParseItemDetails(row.String("item_desc"))
		if base != "" {
			row["item_desc"] = base
		}
		if !row.Has("item_color") && color != "" {
			row["item_color"] = color
		}
		if !row.Has("item_size") && size != "" {
			row["item_size"] = size
		}
		if err := rec.Apply(ctx, row, nil); err != nil {
			return stats, err
		}
	}
	stats.add(rec.Flush(ctx))
	return stats, nil
}
