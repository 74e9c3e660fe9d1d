package pipeline

import (
	"context"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/ordersync/internal/extract"
	"github.com/sells-group/ordersync/internal/model"
	"github.com/sells-group/ordersync/internal/store"
)

// shippingUpdateImmutable are the fields a carrier progress email may not
// rewrite. These emails describe a whole shipment, so per-item identity must
// stay untouched.
var shippingUpdateImmutable = []string{
	"entry_id", "order_id", "user_id", "user_email", "item_desc", "item_sku",
}

// dateFields of the shipping progress schema get truncated to a bare date:
// carriers embed delivery windows and timezones the stored schema does not
// keep.
var dateFields = []string{"expected_deliv_date", "actual_deliv_date"}

// processShippingUpdate handles carrier progress emails ("out for delivery",
// "delivered"). These have no item list and may cover several rows of one
// shipment, so matching bypasses the item cascade: the first equality tier
// that touches any rows updates all of them in one statement.
func (p *Processor) processShippingUpdate(ctx context.Context, msg *model.Message, body string) (Stats, error) {
	raw, err := p.llm.ExtractJSON(ctx, extract.BuildEmail(p.prompts.ShippingUpdate, msg.Subject, body))
	if err != nil {
		return Stats{}, eris.Wrap(err, "pipeline: shipping update extraction")
	}
	if raw == nil {
		return Stats{Skipped: 1}, nil
	}

	row := cleanShippingUpdate(raw.Project(model.ShippingUpdateFields))
	row["user_id"] = msg.UserID

	// Without a user and a tracking number there is no safe shipment
	// predicate.
	if msg.UserID == "" || !row.Has("tracking_num") {
		zap.L().Debug("shipping update lacks identifying fields",
			zap.Int64("message_id", msg.ID))
		return Stats{Skipped: 1}, nil
	}

	// No single matched row exists here, so identity fields are always
	// stripped rather than backfilled.
	payload := updatePayload(row, shippingUpdateImmutable, nil)
	if len(payload) == 0 {
		return Stats{Skipped: 1}, nil
	}

	var tiers [][]store.Filter
	if row.Has("order_id") {
		tiers = append(tiers, []store.Filter{
			store.Eq("user_id", msg.UserID),
			store.Eq("order_id", row.String("order_id")),
			store.Eq("tracking_num", row.String("tracking_num")),
		})
	}
	tiers = append(tiers, []store.Filter{
		store.Eq("user_id", msg.UserID),
		store.Eq("tracking_num", row.String("tracking_num")),
	})

	for _, predicate := range tiers {
		n, err := p.store.UpdateRows(ctx, store.TableOrderDetails, predicate, payload)
		if err != nil {
			zap.L().Error("shipping update write failed", zap.Error(err))
			return Stats{Errors: 1}, nil
		}
		if n > 0 {
			return Stats{Updated: n}, nil
		}
	}
	return Stats{Skipped: 1}, nil
}

// cleanShippingUpdate drops literal "null" strings some models emit instead
// of JSON nulls and truncates datetime values to their date part.
func cleanShippingUpdate(row model.Row) model.Row {
	out := row.Clone()
	for k, v := range out {
		if s, ok := v.(string); ok && strings.EqualFold(strings.TrimSpace(s), "null") {
			out[k] = nil
		}
	}
	for _, f := range dateFields {
		if s := out.String(f); len(s) > 10 {
			out[f] = s[:10]
		}
	}
	return out
}
