// Package store provides the persistence layer: generic filtered reads,
// predicated updates, and batched inserts over the pipeline's three tables,
// backed by Postgres or SQLite.
package store

import (
	"context"
	"sort"

	"github.com/sells-group/ordersync/internal/model"
)

// Table names used by the pipeline.
const (
	TableMessages       = "email_extracts"
	TableOrderDetails   = "order_details"
	TableReturnsRefunds = "returns_refunds"
)

// Op selects the comparison applied by a Filter.
type Op int

const (
	// OpEq matches the stored value exactly.
	OpEq Op = iota
	// OpContains matches when the stored value contains the filter value as
	// a case-insensitive substring. Used by candidate retrieval to absorb
	// extraction noise.
	OpContains
)

// Filter is one predicate term of a select or update.
type Filter struct {
	Field string
	Op    Op
	Value any
}

// Eq builds an equality filter.
func Eq(field string, value any) Filter {
	return Filter{Field: field, Op: OpEq, Value: value}
}

// Contains builds a case-insensitive substring filter.
func Contains(field string, value any) Filter {
	return Filter{Field: field, Op: OpContains, Value: value}
}

// Store is the persistence interface for the reconciliation pipeline. Write
// calls may fail; callers treat a failure as "no rows affected", log it, and
// continue (no write here is load-bearing for process health).
type Store interface {
	// SelectRows returns all rows of table matching every filter, in a
	// stable order.
	SelectRows(ctx context.Context, table string, filters []Filter) ([]model.Row, error)

	// UpdateRows applies payload to all rows matching the predicate and
	// returns the number of rows affected.
	UpdateRows(ctx context.Context, table string, predicate []Filter, payload model.Row) (int64, error)

	// InsertRows inserts the given rows in one batched statement. Rows may
	// carry different key sets; missing columns are written as NULL.
	InsertRows(ctx context.Context, table string, rows []model.Row) error

	// InsertMessage ingests one inbound message and returns its assigned id.
	InsertMessage(ctx context.Context, msg *model.Message) (int64, error)

	// GetMessage fetches one inbound message by id.
	GetMessage(ctx context.Context, id int64) (*model.Message, error)

	// RecentMessages returns the newest messages, most recent first.
	RecentMessages(ctx context.Context, limit int) ([]model.Message, error)

	// Migrate creates the schema if missing.
	Migrate(ctx context.Context) error

	Close() error
}

// columnUnion collects the sorted union of keys across rows, so a batched
// insert can cover heterogeneous payloads with a deterministic column list.
func columnUnion(rows []model.Row) []string {
	var cols []string
	seen := make(map[string]bool)
	for _, r := range rows {
		for k := range r {
			if !seen[k] {
				seen[k] = true
				cols = append(cols, k)
			}
		}
	}
	sort.Strings(cols)
	return cols
}
