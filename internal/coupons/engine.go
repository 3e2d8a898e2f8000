package coupons

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/angelmondragon/settlement-engine/pkg/db/models"
	"github.com/angelmondragon/settlement-engine/pkg/enums"
	pkgerrors "github.com/angelmondragon/settlement-engine/pkg/errors"
	"github.com/angelmondragon/settlement-engine/pkg/money"
)

// ErrCouponNotApplicable is the sentinel behind every rejected coupon.
var ErrCouponNotApplicable = errors.New("coupon not applicable")

// Discount is what a coupon grants before the order clamps it to its subtotal.
type Discount struct {
	Code   string             `json:"code,omitempty"`
	Type   enums.DiscountType `json:"type,omitempty"`
	Amount decimal.Decimal    `json:"amount"`
}

// None is the zero discount of an order without a coupon.
func None() Discount {
	return Discount{Amount: money.Zero}
}

type Engine struct {
	repo Repository
}

func NewEngine(repo Repository) *Engine {
	return &Engine{repo: repo}
}

// Apply validates code against the order and returns the granted discount.
// An empty code yields a zero discount.
func (e *Engine) Apply(ctx context.Context, code string, subtotal decimal.Decimal, flow enums.CheckoutFlow, now time.Time) (Discount, error) {
	code = NormalizeCode(code)
	if code == "" {
		return None(), nil
	}
	if e == nil || e.repo == nil {
		return None(), notApplicable(code, "coupons are unavailable")
	}

	coupon, err := e.repo.FindByCode(ctx, code)
	if err != nil {
		if pkgerrors.IsCode(err, pkgerrors.CodeNotFound) {
			return None(), notApplicable(code, "coupon does not exist")
		}
		return None(), err
	}
	amount, err := Evaluate(*coupon, subtotal, flow, now)
	if err != nil {
		return None(), err
	}
	return Discount{Code: coupon.Code, Type: coupon.DiscountType, Amount: amount}, nil
}

// Evaluate applies the coupon rules to a subtotal.
func Evaluate(c models.Coupon, subtotal decimal.Decimal, flow enums.CheckoutFlow, now time.Time) (decimal.Decimal, error) {
	code := c.Code
	switch {
	case !c.Active:
		return money.Zero, notApplicable(code, "coupon is inactive")
	case c.StartsAt != nil && now.Before(*c.StartsAt):
		return money.Zero, notApplicable(code, "coupon is not active yet")
	case c.ExpiresAt != nil && !now.Before(*c.ExpiresAt):
		return money.Zero, notApplicable(code, "coupon has expired")
	case !scopeAllows(c.Scope, flow):
		return money.Zero, notApplicable(code, "coupon is not valid for this checkout")
	case subtotal.LessThan(c.MinOrderAmount):
		return money.Zero, notApplicable(code, "order is below the coupon minimum").
			WithDetails(map[string]any{"code": code, "min_order_amount": c.MinOrderAmount.StringFixed(money.Scale)})
	}

	var amount decimal.Decimal
	switch c.DiscountType {
	case enums.DiscountTypePercentage:
		amount = money.Percent(subtotal, c.Value)
		if c.MaxDiscount.Valid && amount.GreaterThan(c.MaxDiscount.Decimal) {
			amount = c.MaxDiscount.Decimal
		}
	case enums.DiscountTypeFixed:
		amount = c.Value
	default:
		return money.Zero, notApplicable(code, "coupon rule is not supported")
	}
	return money.NonNegative(amount), nil
}

// NormalizeCode upper-cases and trims a coupon code.
func NormalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

func scopeAllows(scope enums.CouponScope, flow enums.CheckoutFlow) bool {
	switch scope {
	case "", enums.CouponScopeAny:
		return true
	case enums.CouponScopeCart:
		return flow == enums.CheckoutFlowCart
	case enums.CouponScopeBuyNow:
		return flow == enums.CheckoutFlowBuyNow
	default:
		return false
	}
}

func notApplicable(code, reason string) *pkgerrors.Error {
	return pkgerrors.Wrap(pkgerrors.CodeValidation, ErrCouponNotApplicable, reason).
		WithDetails(map[string]any{"code": code, "reason": reason})
}
