package enums

import "fmt"

// CheckoutFlow distinguishes a cart checkout from a single item buy-now.
type CheckoutFlow string

const (
	CheckoutFlowCart   CheckoutFlow = "cart"
	CheckoutFlowBuyNow CheckoutFlow = "buy_now"
)

var validCheckoutFlows = []CheckoutFlow{
	CheckoutFlowCart,
	CheckoutFlowBuyNow,
}

// String implements fmt.Stringer.
func (f CheckoutFlow) String() string {
	return string(f)
}

// IsValid reports whether the value is a known CheckoutFlow.
func (f CheckoutFlow) IsValid() bool {
	for _, candidate := range validCheckoutFlows {
		if candidate == f {
			return true
		}
	}
	return false
}

// ParseCheckoutFlow converts raw input into a CheckoutFlow.
func ParseCheckoutFlow(value string) (CheckoutFlow, error) {
	for _, candidate := range validCheckoutFlows {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid checkout flow %q", value)
}
