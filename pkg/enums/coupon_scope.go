package enums

import "fmt"

// CouponScope limits which checkout flow a coupon may be redeemed in.
type CouponScope string

const (
	CouponScopeAny    CouponScope = "any"
	CouponScopeCart   CouponScope = "cart"
	CouponScopeBuyNow CouponScope = "buy_now"
)

var validCouponScopes = []CouponScope{
	CouponScopeAny,
	CouponScopeCart,
	CouponScopeBuyNow,
}

// String implements fmt.Stringer.
func (s CouponScope) String() string {
	return string(s)
}

// IsValid reports whether the value is a known CouponScope.
func (s CouponScope) IsValid() bool {
	for _, candidate := range validCouponScopes {
		if candidate == s {
			return true
		}
	}
	return false
}

// ParseCouponScope converts raw input into a CouponScope.
func ParseCouponScope(value string) (CouponScope, error) {
	for _, candidate := range validCouponScopes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid coupon scope %q", value)
}
