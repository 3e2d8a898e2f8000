package totals

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/settlement-engine/internal/coupons"
	"github.com/angelmondragon/settlement-engine/internal/shipping"
	"github.com/angelmondragon/settlement-engine/pkg/enums"
	"github.com/angelmondragon/settlement-engine/pkg/money"
)

type couponApplier interface {
	Apply(ctx context.Context, code string, subtotal decimal.Decimal, flow enums.CheckoutFlow, now time.Time) (coupons.Discount, error)
}

type shippingResolver interface {
	Resolve(ctx context.Context, in shipping.Input) shipping.Quote
}

// GroupRequest is one seller's lines plus what the shipping quote needs.
type GroupRequest struct {
	SellerID      uuid.UUID
	SellerState   string
	PickupPincode string
	Items         []LineItem
}

type Request struct {
	Groups        []GroupRequest
	CouponCode    string
	Flow          enums.CheckoutFlow
	PaymentMethod enums.PaymentMethod
	BuyerState    string
	DropPincode   string
	// FixedShipping overrides the estimate for every seller group.
	FixedShipping *decimal.Decimal
}

// Calculator resolves coupon and shipping then computes totals.
type Calculator struct {
	coupons  couponApplier
	shipping shippingResolver
	rate     decimal.Decimal
	now      func() time.Time
}

func NewCalculator(couponEngine couponApplier, resolver shippingResolver, rate decimal.Decimal) *Calculator {
	return &Calculator{
		coupons:  couponEngine,
		shipping: resolver,
		rate:     rate,
		now:      time.Now,
	}
}

// Rate is the GST percentage applied by the calculator.
func (c *Calculator) Rate() decimal.Decimal {
	return c.rate
}

// Calculate returns ErrCouponNotApplicable (wrapped) when the coupon is rejected so
// callers keep their previous totals.
func (c *Calculator) Calculate(ctx context.Context, req Request) (Totals, error) {
	groups := make([]GroupInput, len(req.Groups))
	for i, g := range req.Groups {
		groups[i] = GroupInput{SellerID: g.SellerID, SellerState: g.SellerState, Items: g.Items}
	}
	if err := validate(groups); err != nil {
		return Totals{}, err
	}

	subtotal := money.Zero
	for _, g := range groups {
		for _, item := range g.Items {
			subtotal = subtotal.Add(item.LineTotal())
		}
	}

	discount := coupons.None()
	if c.coupons != nil {
		var err error
		discount, err = c.coupons.Apply(ctx, req.CouponCode, subtotal, req.Flow, c.now())
		if err != nil {
			return Totals{}, err
		}
	}

	for i, g := range req.Groups {
		groups[i].Shipping = c.quote(ctx, req, g)
	}

	return Compute(Input{
		Groups:     groups,
		Discount:   discount.Amount,
		CouponCode: discount.Code,
		BuyerState: req.BuyerState,
		Rate:       c.rate,
	})
}

func (c *Calculator) quote(ctx context.Context, req Request, g GroupRequest) shipping.Quote {
	if req.FixedShipping != nil {
		return shipping.FixedQuote(*req.FixedShipping)
	}
	if c.shipping == nil {
		return shipping.PendingQuote()
	}
	items := make([]shipping.Item, len(g.Items))
	for i, item := range g.Items {
		items[i] = shipping.Item{Quantity: item.Quantity, Dimensions: item.Dimensions}
	}
	return c.shipping.Resolve(ctx, shipping.Input{
		PickupPincode: g.PickupPincode,
		DropPincode:   req.DropPincode,
		Items:         items,
		PaymentMethod: req.PaymentMethod,
	})
}
