package pipeline

import (
	"context"

	"go.uber.org/zap"

	"github.com/sells-group/ordersync/internal/model"
	"github.com/sells-group/ordersync/internal/store"
)

// Stats counts reconciliation outcomes for one message.
type Stats struct {
	Updated  int64
	Inserted int
	Skipped  int
	Errors   int
}

func (s *Stats) add(o Stats) {
	s.Updated += o.Updated
	s.Inserted += o.Inserted
	s.Skipped += o.Skipped
	s.Errors += o.Errors
}

// Reconciler applies resolved items to a table: matched items become
// predicated updates, unmatched items are queued and inserted in one batch
// at Flush. Store failures are logged and counted but never abort the
// remaining items of a message.
type Reconciler struct {
	Store store.Store
	Table string

	// Immutable fields are dropped from update payloads when the matched row
	// already carries them: they identify the row and must survive later,
	// sparser emails. A matched row missing one still gets it backfilled.
	Immutable []string

	// PredicateFields are read from the matched row to form the update
	// predicate. Fields the row has no value for are left out.
	PredicateFields []string

	// InsertUnmatched queues items that matched nothing. Nodes that only
	// ever amend existing rows leave it false.
	InsertUnmatched bool

	// Defaults fill keys missing from queued inserts.
	Defaults model.Row

	pending []model.Row
	stats   Stats
}

// Apply reconciles one item against its matched row (nil for no match).
func (r *Reconciler) Apply(ctx context.Context, item, matched model.Row) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	if matched == nil {
		if !r.InsertUnmatched {
			r.stats.Skipped++
			return nil
		}
		r.pending = append(r.pending, r.withDefaults(item))
		return nil
	}

	payload := updatePayload(item, r.Immutable, matched)
	if len(payload) == 0 {
		r.stats.Skipped++
		return nil
	}

	predicate := r.predicate(matched)
	if len(predicate) == 0 {
		// An unconstrained update would touch the whole table.
		zap.L().Warn("matched row has no usable predicate fields",
			zap.String("table", r.Table))
		r.stats.Skipped++
		return nil
	}

	n, err := r.Store.UpdateRows(ctx, r.Table, predicate, payload)
	if err != nil {
		zap.L().Error("update failed",
			zap.String("table", r.Table),
			zap.Error(err))
		r.stats.Errors++
		return nil
	}
	r.stats.Updated += n
	return nil
}

// Flush inserts all queued unmatched items in one batch and returns the
// accumulated stats. The reconciler is reusable after Flush.
func (r *Reconciler) Flush(ctx context.Context) Stats {
	if len(r.pending) > 0 {
		if err := r.Store.InsertRows(ctx, r.Table, r.pending); err != nil {
			zap.L().Error("insert failed",
				zap.String("table", r.Table),
				zap.Int("rows", len(r.pending)),
				zap.Error(err))
			r.stats.Errors++
		} else {
			r.stats.Inserted += len(r.pending)
		}
	}

	out := r.stats
	r.pending = nil
	r.stats = Stats{}
	return out
}

func (r *Reconciler) withDefaults(item model.Row) model.Row {
	row := item.Clone()
	for k, v := range r.Defaults {
		if !row.Has(k) {
			row[k] = v
		}
	}
	return row
}

func (r *Reconciler) predicate(matched model.Row) []store.Filter {
	var filters []store.Filter
	for _, f := range r.PredicateFields {
		if matched.Has(f) {
			filters = append(filters, store.Eq(f, matched.String(f)))
		}
	}
	return filters
}

// updatePayload strips empty values from an item so an update never erases
// known data with extraction gaps, and strips immutable fields the matched
// row already holds a value for. A nil matched row strips every immutable
// field.
func updatePayload(item model.Row, immutable []string, matched model.Row) model.Row {
	payload := item.Clone()
	for _, f := range immutable {
		if matched == nil || matched.Has(f) {
			delete(payload, f)
		}
	}
	for k := range payload {
		if !payload.Has(k) {
			delete(payload, k)
		}
	}
	return payload
}
