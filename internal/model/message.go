// Package model defines the shared data types for the email reconciliation
// pipeline: inbound messages, the category taxonomy, and the generic row
// value object used for extracted payloads and store candidates.
package model

// Message is an inbound email record as persisted by ingestion. The pipeline
// consumes a Message exactly once and never mutates it.
type Message struct {
	ID        int64  `json:"id"`
	From      string `json:"from_email"`
	Subject   string `json:"subject"`
	Body      string `json:"msg"`
	UserEmail string `json:"user_email"`
	UserID    string `json:"user_id"`
	Category  string `json:"category,omitempty"`
}

// Category labels a message with one entry from the fixed taxonomy.
type Category string

// The fixed category taxonomy. The classifier prompt enumerates exactly these
// labels; anything else a model returns is routed as a terminal no-op.
const (
	CategoryPromos               Category = "promos"
	CategoryGoodsReceipt         Category = "goods receipt"
	CategoryOrderConfirmation    Category = "retailer order confirmation"
	CategoryShippingConfirmation Category = "retailer shipping confirmation"
	CategoryServicesReceipt      Category = "services receipt"
	CategoryShippingUpdate       Category = "shipping update"
	CategoryOrderUpdate          Category = "retailer order update"
	CategoryReturnConfirmation   Category = "return confirmation"
	CategoryReturnUpdate         Category = "return update"
	CategoryRefund               Category = "refund"
	CategoryUnknown              Category = "unknown"
)

// Categories lists every known taxonomy entry.
var Categories = []Category{
	CategoryPromos,
	CategoryGoodsReceipt,
	CategoryOrderConfirmation,
	CategoryShippingConfirmation,
	CategoryServicesReceipt,
	CategoryShippingUpdate,
	CategoryOrderUpdate,
	CategoryReturnConfirmation,
	CategoryReturnUpdate,
	CategoryRefund,
	CategoryUnknown,
}

// Known reports whether c is part of the fixed taxonomy.
func (c Category) Known() bool {
	for _, k := range Categories {
		if c == k {
			return true
		}
	}
	return false
}
