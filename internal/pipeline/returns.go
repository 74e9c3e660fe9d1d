package pipeline

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/sells-group/ordersync/internal/extract"
	"github.com/sells-group/ordersync/internal/model"
	"github.com/sells-group/ordersync/internal/store"
)

// returnsMatch is the cascade shared by the three returns paths. Return and
// order ids use containment because retailers quote them with prefixes and
// dashes the extraction does not always reproduce.
var returnsMatch = MatchConfig{
	Table: store.TableReturnsRefunds,
	Tiers: []Tier{
		{
			{Key: "return_id", Column: "return_id", Op: store.OpContains},
			{Key: "order_id", Column: "order_id", Op: store.OpContains},
		},
		{
			{Key: "return_id", Column: "return_id", Op: store.OpContains},
		},
		{
			{Key: "order_id", Column: "order_id", Op: store.OpContains},
		},
	},
	Semantic: SemanticReturns,
	DescKey:  "return_item_desc",
	ColorKey: "return_item_color",
	SizeKey:  "return_item_size",
}

var returnsImmutable = []string{
	"entry_id", "return_id", "order_id", "return_item_desc",
}

// processReturns handles refunds, return confirmations, and return updates.
// The three differ only in their extraction prompt; matching and
// reconciliation are identical, and items that resolve to no stored return
// are inserted so a later email in the thread has something to amend.
func (p *Processor) processReturns(ctx context.Context, msg *model.Message, body string, template string) (Stats, error) {
	raw, err := p.llm.ExtractJSON(ctx, extract.BuildEmail(template, msg.Subject, body))
	if err != nil {
		return Stats{}, eris.Wrap(err, "pipeline: returns extraction")
	}
	if raw == nil {
		return Stats{Skipped: 1}, nil
	}

	ext := model.ReturnExtractionFromRow(raw)
	rec := &Reconciler{
		Store:           p.store,
		Table:           store.TableReturnsRefunds,
		Immutable: returnsImmutable,
		// entry_id alone is precise; the identity fields ride along so a
		// predicate still holds if rows were merged underneath us.
		PredicateFields: []string{
			"entry_id", "return_id", "order_id", "return_item_desc",
			"return_item_sku", "return_item_size", "return_item_color",
		},
		InsertUnmatched: true,
		// Blank ids rather than NULLs keep the containment cascade from
		// skipping freshly inserted rows.
		Defaults: model.Row{"return_id": "", "order_id": "", "user_email": ""},
	}

	stats := Stats{}
	items := ext.Items
	if len(items) == 0 && len(ext.ReturnInfo) > 0 {
		// Refund notices often carry no item list; reconcile the
		// return-level fields on their own.
		items = []model.Row{{}}
	}
	for _, item := range items {
		row := ext.ReturnInfo.Merge(item)
		if !row.Has("user_email") {
			row["user_email"] = msg.UserEmail
		}
		if !row.Has("return_id") && !row.Has("order_id") && !row.Has("return_item_desc") {
			stats.Skipped++
			continue
		}

		matched, err := p.matcher.Resolve(ctx, returnsMatch, row)
		if err != nil {
			return stats, eris.Wrap(err, "pipeline: returns match")
		}
		if err := rec.Apply(ctx, row, matched); err != nil {
			return stats, err
		}
	}
	stats.add(rec.Flush(ctx))
	return stats, nil
}
