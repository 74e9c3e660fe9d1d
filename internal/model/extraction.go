package model

// OrderExtraction is the parsed reply of an order or shipping-confirmation
// extraction prompt.
type OrderExtraction struct {
	OrderInfo Row   `json:"order_info"`
	Items     []Row `json:"items"`
}

// ReturnExtraction is the parsed reply of a refund, return-confirmation, or
// return-update extraction prompt.
type ReturnExtraction struct {
	ReturnInfo Row   `json:"return_info"`
	Items      []Row `json:"items"`
}

// OrderExtractionFromRow splits a raw extraction object into order info and
// items, projected onto the order schema. Missing sections come back empty,
// never nil maps, so callers can merge without nil checks.
func OrderExtractionFromRow(raw Row) OrderExtraction {
	out := OrderExtraction{OrderInfo: Row{}}
	if info, ok := raw["order_info"].(map[string]any); ok {
		out.OrderInfo = Row(info).Project(OrderInfoFields)
	}
	out.Items = itemRows(raw, OrderItemFields)
	return out
}

// ReturnExtractionFromRow splits a raw extraction object into return info and
// items, projected onto the returns schema.
func ReturnExtractionFromRow(raw Row) ReturnExtraction {
	out := ReturnExtraction{ReturnInfo: Row{}}
	if info, ok := raw["return_info"].(map[string]any); ok {
		out.ReturnInfo = Row(info).Project(ReturnInfoFields)
	}
	out.Items = itemRows(raw, ReturnItemFields)
	return out
}

func itemRows(raw Row, fields []string) []Row {
	items, ok := raw["items"].([]any)
	if !ok {
		return nil
	}
	var out []Row
	for _, it := range items {
		m, ok := it.(map[string]any)
		if !ok {
			continue
		}
		out = append(out, Row(m).Project(fields))
	}
	return out
}
