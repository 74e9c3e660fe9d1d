// Package pipeline implements the message flow: classification, category
// routing, structured extraction, and store reconciliation.
package pipeline

import "strings"

// Action is the routing outcome for a classified message.
type Action int

const (
	// ActionSkip terminates processing with no extraction. Promos,
	// receipts, and anything unrecognized land here.
	ActionSkip Action = iota
	ActionOrder
	ActionRefund
	ActionShipping
	ActionShippingUpdate
	ActionReturnUpdate
	ActionReturnConfirmation
)

func (a Action) String() string {
	switch a {
	case ActionOrder:
		return "order"
	case ActionRefund:
		return "refund"
	case ActionShipping:
		return "shipping"
	case ActionShippingUpdate:
		return "shipping_update"
	case ActionReturnUpdate:
		return "return_update"
	case ActionReturnConfirmation:
		return "return_confirmation"
	default:
		return "skip"
	}
}

// Route maps a category label to its processing action. Matching is by
// substring so labels with retailer prefixes or trailing noise still route.
// The checks run in a fixed priority order; notably "return update" is
// tested before "return confirmation" so that labels naming both resolve to
// the update path, and "order update" rides the shipping path because those
// emails carry shipment-shaped payloads.
func Route(category string) Action {
	c := strings.ToLower(strings.TrimSpace(category))
	switch {
	case strings.Contains(c, "order confirmation"):
		return ActionOrder
	case strings.Contains(c, "refund"):
		return ActionRefund
	case strings.Contains(c, "shipping confirmation"), strings.Contains(c, "order update"):
		return ActionShipping
	case strings.Contains(c, "shipping update"):
		return ActionShippingUpdate
	case strings.Contains(c, "return update"):
		return ActionReturnUpdate
	case strings.Contains(c, "return confirmation"):
		return ActionReturnConfirmation
	default:
		return ActionSkip
	}
}
