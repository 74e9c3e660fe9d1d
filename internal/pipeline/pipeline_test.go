package pipeline

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/ordersync/internal/extract"
	"github.com/sells-group/ordersync/internal/model"
	"github.com/sells-group/ordersync/internal/store"
)

func newProcessor(st *fakeStore, llm *fakeLLM) *Processor {
	return New(st, llm, extract.DefaultPrompts(), nil)
}

func TestProcessOrderInsertsItems(t *testing.T) {
	st := &fakeStore{}
	llm := &fakeLLM{extractResult: model.Row{
		"order_info": map[string]any{"order_id": "o-1", "retailer": "Shop", "order_total": "39.98"},
		"items": []any{
			map[string]any{"item_desc": "Blue Hoodie", "item_price": "19.99"},
			map[string]any{"item_price": "19.99"},
		},
	}}
	p := newProcessor(st, llm)

	msg := &model.Message{
		ID: 1, Category: "retailer order confirmation",
		UserEmail: "a@b.test", UserID: "u-1",
	}
	stats, err := p.Process(context.Background(), msg)
	require.NoError(t, err)

	assert.Equal(t, 1, stats.Inserted)
	assert.Equal(t, 1, stats.Skipped, "item without a description is dropped")
	assert.Empty(t, st.selects, "confirmations never match")
	require.Len(t, st.inserts, 1)
	assert.Equal(t, store.TableOrderDetails, st.inserts[0].table)

	row := st.inserts[0].rows[0]
	assert.Equal(t, "o-1", row.String("order_id"))
	assert.Equal(t, "Blue Hoodie", row.String("item_desc"))
	assert.Equal(t, "a@b.test", row.String("user_email"))
	assert.Equal(t, "u-1", row.String("user_id"))
	assert.Equal(t, "", row["item_sku"], "missing sku defaults to blank, not NULL")
}

func TestProcessOrderNormalizesDescription(t *testing.T) {
	st := &fakeStore{}
	llm := &fakeLLM{extractResult: model.Row{
		"order_info": map[string]any{"order_id": "o-1"},
		"items": []any{map[string]any{
			"item_desc": "Men's Slim Jeans. Blue, 32",
		}},
	}}
	p := newProcessor(st, llm)

	_, err := p.Process(context.Background(), &model.Message{
		ID: 1, Category: "retailer order confirmation", UserID: "u-1",
	})
	require.NoError(t, err)

	require.Len(t, st.inserts, 1)
	row := st.inserts[0].rows[0]
	assert.Equal(t, "Men's Slim Jeans", row.String("item_desc"),
		"stored description is the parsed base, not the raw string")
	assert.Equal(t, "Blue", row.String("item_color"))
	assert.Equal(t, "32", row.String("item_size"))
}

func TestProcessOrderNoDataSkips(t *testing.T) {
	st := &fakeStore{}
	p := newProcessor(st, &fakeLLM{extractResult: nil})

	stats, err := p.Process(context.Background(), &model.Message{
		ID: 1, Category: "retailer order confirmation",
	})
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Skipped)
	assert.Empty(t, st.inserts)
}

func TestProcessShippingUpdatesMatchedRow(t *testing.T) {
	st := &fakeStore{
		updateN: 1,
		selectFn: func(selectCall) ([]model.Row, error) {
			return []model.Row{{
				"entry_id": "e-1", "order_id": "o-1", "user_id": "u-1",
				"item_desc": "Blue Hoodie",
			}}, nil
		},
	}
	llm := &fakeLLM{extractResult: model.Row{
		"order_info": map[string]any{"order_id": "o-1"},
		"items": []any{map[string]any{
			"item_desc": "Blue Hoodie", "tracking_num": "1Z999",
			"status": "Shipped", "carrier": "UPS",
		}},
	}}
	p := newProcessor(st, llm)

	stats, err := p.Process(context.Background(), &model.Message{
		ID: 2, Category: "retailer shipping confirmation", UserID: "u-1",
	})
	require.NoError(t, err)

	assert.Equal(t, int64(1), stats.Updated)
	require.Len(t, st.updates, 1)
	u := st.updates[0]
	assert.Equal(t, store.TableOrderDetails, u.table)
	assert.Equal(t, "e-1", st.predicateFor("entry_id"))
	assert.Equal(t, "1Z999", u.payload.String("tracking_num"))
	assert.NotContains(t, u.payload, "order_id")
	assert.NotContains(t, u.payload, "item_desc")
	assert.NotContains(t, u.payload, "user_id")
	assert.Empty(t, st.inserts, "unmatched shipping items never insert")
}

func TestProcessShippingUnmatchedDropsItem(t *testing.T) {
	st := &fakeStore{}
	llm := &fakeLLM{extractResult: model.Row{
		"order_info": map[string]any{"order_id": "o-1"},
		"items":      []any{map[string]any{"item_desc": "Blue Hoodie"}},
	}}
	p := newProcessor(st, llm)

	stats, err := p.Process(context.Background(), &model.Message{
		ID: 2, Category: "retailer order update", UserID: "u-1",
	})
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Skipped)
	assert.Empty(t, st.updates)
	assert.Empty(t, st.inserts)
}

func TestProcessShippingUpdateWritesWholeShipment(t *testing.T) {
	st := &fakeStore{updateN: 3}
	llm := &fakeLLM{extractResult: model.Row{
		"tracking_num":        "1Z999",
		"status":              "Out for Delivery",
		"carrier":             "null",
		"expected_deliv_date": "2026-08-30T17:00:00Z",
		"order_id":            "o-1",
	}}
	p := newProcessor(st, llm)

	stats, err := p.Process(context.Background(), &model.Message{
		ID: 3, Category: "shipping update", UserID: "u-1",
	})
	require.NoError(t, err)

	assert.Equal(t, int64(3), stats.Updated)
	require.Len(t, st.updates, 1)
	u := st.updates[0]
	require.Len(t, u.predicate, 3)
	assert.Equal(t, store.Eq("user_id", "u-1"), u.predicate[0])
	assert.Equal(t, store.Eq("order_id", "o-1"), u.predicate[1])
	assert.Equal(t, store.Eq("tracking_num", "1Z999"), u.predicate[2])
	assert.Equal(t, "2026-08-30", u.payload.String("expected_deliv_date"))
	assert.NotContains(t, u.payload, "carrier", "literal null strings are dropped")
	assert.NotContains(t, u.payload, "order_id")
}

func TestProcessShippingUpdateFallsBackToTrackingTier(t *testing.T) {
	st := &fakeStore{updateN: 0}
	llm := &fakeLLM{extractResult: model.Row{
		"tracking_num": "1Z999", "order_id": "o-1", "status": "Delivered",
	}}
	p := newProcessor(st, llm)

	stats, err := p.Process(context.Background(), &model.Message{
		ID: 3, Category: "shipping update", UserID: "u-1",
	})
	require.NoError(t, err)

	assert.Equal(t, 1, stats.Skipped)
	require.Len(t, st.updates, 2)
	// Tight tier first, then the shipment-wide fallback without order_id.
	require.Len(t, st.updates[0].predicate, 3)
	require.Len(t, st.updates[1].predicate, 2)
	assert.Equal(t, store.Eq("tracking_num", "1Z999"), st.updates[1].predicate[1])
}

func TestProcessShippingUpdateNeedsTracking(t *testing.T) {
	st := &fakeStore{}
	llm := &fakeLLM{extractResult: model.Row{"status": "Delivered"}}
	p := newProcessor(st, llm)

	stats, err := p.Process(context.Background(), &model.Message{
		ID: 3, Category: "shipping update", UserID: "u-1",
	})
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Skipped)
	assert.Empty(t, st.updates)
}

func TestProcessReturnsInsertsUnmatched(t *testing.T) {
	st := &fakeStore{}
	llm := &fakeLLM{extractResult: model.Row{
		"return_info": map[string]any{"return_id": "RMA-1", "order_id": "o-2"},
		"items":       []any{map[string]any{"return_item_desc": "Jacket"}},
	}}
	p := newProcessor(st, llm)

	msg := &model.Message{ID: 4, Category: "return confirmation", UserEmail: "a@b.test"}
	stats, err := p.Process(context.Background(), msg)
	require.NoError(t, err)

	assert.Equal(t, 1, stats.Inserted)
	require.Len(t, st.inserts, 1)
	assert.Equal(t, store.TableReturnsRefunds, st.inserts[0].table)
	row := st.inserts[0].rows[0]
	assert.Equal(t, "RMA-1", row.String("return_id"))
	assert.Equal(t, "Jacket", row.String("return_item_desc"))
	assert.Equal(t, "a@b.test", row.String("user_email"))
}

func TestProcessReturnsUpdatePreservesIdentity(t *testing.T) {
	st := &fakeStore{
		updateN: 1,
		selectFn: func(selectCall) ([]model.Row, error) {
			return []model.Row{{
				"entry_id": "r-1", "return_id": "RMA-1", "order_id": "o-2",
				"return_item_desc": "Jacket",
			}}, nil
		},
	}
	llm := &fakeLLM{extractResult: model.Row{
		"return_info": map[string]any{
			"return_id": "RMA-1", "order_id": "o-2", "status": "Approved",
		},
		"items": []any{map[string]any{"return_item_desc": "Jacket"}},
	}}
	p := newProcessor(st, llm)

	stats, err := p.Process(context.Background(), &model.Message{
		ID: 5, Category: "return update", UserEmail: "a@b.test",
	})
	require.NoError(t, err)

	assert.Equal(t, int64(1), stats.Updated)
	require.Len(t, st.updates, 1)
	u := st.updates[0]
	assert.Equal(t, "r-1", st.predicateFor("entry_id"))
	assert.Equal(t, "Approved", u.payload.String("status"))
	assert.NotContains(t, u.payload, "return_id")
	assert.NotContains(t, u.payload, "order_id")
	assert.NotContains(t, u.payload, "return_item_desc")
	assert.Empty(t, st.inserts)
}

func TestProcessRefundWithoutItems(t *testing.T) {
	st := &fakeStore{}
	llm := &fakeLLM{extractResult: model.Row{
		"return_info": map[string]any{
			"order_id": "o-2", "refund_amt": "19.99", "refund_status": "Issued",
		},
	}}
	p := newProcessor(st, llm)

	stats, err := p.Process(context.Background(), &model.Message{
		ID: 6, Category: "refund", UserEmail: "a@b.test",
	})
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Inserted)
	require.Len(t, st.inserts, 1)
	assert.Equal(t, "19.99", st.inserts[0].rows[0].String("refund_amt"))
}

func TestProcessSkipCategory(t *testing.T) {
	st := &fakeStore{}
	llm := &fakeLLM{}
	p := newProcessor(st, llm)

	stats, err := p.Process(context.Background(), &model.Message{ID: 7, Category: "promos"})
	require.NoError(t, err)
	assert.Zero(t, stats)
	assert.Empty(t, llm.extractCalls)
	assert.Empty(t, st.selects)
	assert.Empty(t, st.updates)
}

func TestProcessPersistsFreshCategory(t *testing.T) {
	st := &fakeStore{}
	llm := &fakeLLM{completeReply: "promos"}
	p := newProcessor(st, llm)

	_, err := p.Process(context.Background(), &model.Message{ID: 8})
	require.NoError(t, err)

	require.Len(t, st.updates, 1)
	assert.Equal(t, store.TableMessages, st.updates[0].table)
	assert.Equal(t, "promos", st.updates[0].payload.String("category"))
}

func TestProcessExtractionFailure(t *testing.T) {
	st := &fakeStore{}
	llm := &fakeLLM{extractErr: errors.New("overloaded")}
	p := newProcessor(st, llm)

	_, err := p.Process(context.Background(), &model.Message{
		ID: 9, Category: "retailer order confirmation",
	})
	assert.Error(t, err)
}
