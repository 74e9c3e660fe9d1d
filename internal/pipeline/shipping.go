package pipeline

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/sells-group/ordersync/internal/extract"
	"github.com/sells-group/ordersync/internal/model"
	"github.com/sells-group/ordersync/internal/store"
)

// shippingMatch is the cascade for shipment confirmations and order updates:
// first pin the exact item, then fall back to the order and let the model
// pick the line.
var shippingMatch = MatchConfig{
	Table: store.TableOrderDetails,
	Tiers: []Tier{
		{
			{Key: "user_id", Column: "user_id", Op: store.OpEq},
			{Key: "order_id", Column: "order_id", Op: store.OpContains},
			{Key: "item_desc", Column: "item_desc", Op: store.OpContains},
		},
		{
			{Key: "user_id", Column: "user_id", Op: store.OpEq},
			{Key: "order_id", Column: "order_id", Op: store.OpContains},
		},
	},
	Semantic: SemanticPlain,
	DescKey:  "item_desc",
	ColorKey: "item_color",
	SizeKey:  "item_size",
}

// shippingImmutable are the identity fields a shipping email may not rewrite
// on an existing order row.
var shippingImmutable = []string{
	"entry_id", "order_id", "user_id", "user_email", "item_desc", "item_sku",
}

// processShipping handles shipping confirmations and retailer order updates.
// Items that resolve to a stored order row get their shipment fields written
// onto it; items that resolve to nothing are dropped, since an order row for
// them never existed.
func (p *Processor) processShipping(ctx context.Context, msg *model.Message, body string) (Stats, error) {
	raw, err := p.llm.ExtractJSON(ctx, extract.BuildEmail(p.prompts.Shipping, msg.Subject, body))
	if err != nil {
		return Stats{}, eris.Wrap(err, "pipeline: shipping extraction")
	}
	if raw == nil {
		return Stats{Skipped: 1}, nil
	}

	ext := model.OrderExtractionFromRow(raw)
	rec := &Reconciler{
		Store:           p.store,
		Table:           store.TableOrderDetails,
		Immutable:       shippingImmutable,
		PredicateFields: []string{"entry_id"},
	}

	stats := Stats{}
	for _, item := range ext.Items {
		if !item.Has("item_desc") {
			stats.Skipped++
			continue
		}
		row := ext.OrderInfo.Merge(item)
		row["user_id"] = msg.UserID

		matched, err := p.matcher.Resolve(ctx, shippingMatch, row)
		if err != nil {
			return stats, eris.Wrap(err, "pipeline: shipping match")
		}
		if err := rec.Apply(ctx, row, matched); err != nil {
			return stats, err
		}
	}
	stats.add(rec.Flush(ctx))
	return stats, nil
}
