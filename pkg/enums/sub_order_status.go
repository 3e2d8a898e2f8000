package enums

import "fmt"

// SubOrderStatus tracks fulfillment of one seller's portion of an order.
type SubOrderStatus string

const (
	SubOrderStatusPlaced    SubOrderStatus = "placed"
	SubOrderStatusDelivered SubOrderStatus = "delivered"
	SubOrderStatusCancelled SubOrderStatus = "cancelled"
)

var validSubOrderStatuses = []SubOrderStatus{
	SubOrderStatusPlaced,
	SubOrderStatusDelivered,
	SubOrderStatusCancelled,
}

// String implements fmt.Stringer.
func (s SubOrderStatus) String() string {
	return string(s)
}

// IsValid reports whether the value is a known SubOrderStatus.
func (s SubOrderStatus) IsValid() bool {
	for _, candidate := range validSubOrderStatuses {
		if candidate == s {
			return true
		}
	}
	return false
}

// ParseSubOrderStatus converts raw input into a SubOrderStatus.
func ParseSubOrderStatus(value string) (SubOrderStatus, error) {
	for _, candidate := range validSubOrderStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid sub order status %q", value)
}
