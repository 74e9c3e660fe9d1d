package model

// Field whitelists for each extraction schema. The extraction prompts promise
// these exact keys; projecting onto them at the adapter boundary guarantees
// the store only ever sees known columns.

// OrderInfoFields are the order-level fields of an order/shipping extraction.
var OrderInfoFields = []string{
	"retailer", "order_id", "order_date", "order_total", "tax_total",
	"shipping_total", "discount_total", "shipping_address", "zip_code",
	"archive_flag",
}

// OrderItemFields are the per-item fields of an order/shipping extraction.
var OrderItemFields = []string{
	"item_desc", "item_price", "item_sku", "item_qty", "item_color",
	"item_size", "item_discount", "image_name", "item_tax", "item_shipping",
	"shipping_method", "tracking_num", "expected_deliv_date", "status",
	"carrier", "actual_deliv_date",
}

// ShippingUpdateFields are the order-level fields of a shipping progress
// extraction (no items array in that schema).
var ShippingUpdateFields = []string{
	"order_id", "shipping_method", "tracking_num", "expected_deliv_date",
	"actual_deliv_date", "status", "carrier", "shipping_address", "zip_code",
}

// ReturnInfoFields are the return-level fields shared by the refund,
// return-confirmation, and return-update schemas.
var ReturnInfoFields = []string{
	"created_at", "retailer", "return_id", "return_method",
	"return_tracking_num", "return_carrier", "return_confirmation",
	"return_dropoff_deadline", "return_deadline", "exp_refund_amt",
	"refund_method", "refund_status", "exp_refund_date", "act_refund_date",
	"refund_amt", "order_id", "qr_label", "user_email", "status",
}

// ReturnItemFields are the per-item fields of the returns schemas.
var ReturnItemFields = []string{
	"return_item_desc", "return_item_sku", "return_item_qty",
	"return_item_size", "return_item_color", "return_reason",
	"return_condition", "item_amt", "ship_amt", "taxes_amt", "other_amt",
}

// ReturnRowFields is the full column set of a returns_refunds row built from
// merged return-level and item-level data.
var ReturnRowFields = appendFields(ReturnInfoFields, ReturnItemFields)

func appendFields(sets ...[]string) []string {
	var out []string
	seen := make(map[string]bool)
	for _, set := range sets {
		for _, f := range set {
			if !seen[f] {
				seen[f] = true
				out = append(out, f)
			}
		}
	}
	return out
}
