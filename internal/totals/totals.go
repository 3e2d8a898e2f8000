// Package totals derives the monetary breakdown of an order. Compute is pure;
// Calculator resolves the coupon and shipping collaborators first.
package totals

import (
	"errors"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/settlement-engine/internal/shipping"
	"github.com/angelmondragon/settlement-engine/internal/tax"
	pkgerrors "github.com/angelmondragon/settlement-engine/pkg/errors"
	"github.com/angelmondragon/settlement-engine/pkg/money"
	"github.com/angelmondragon/settlement-engine/pkg/types"
)

// ErrEmptyOrder rejects orders without valid lines.
var ErrEmptyOrder = errors.New("order has no valid items")

// LineItem is one priced product line.
type LineItem struct {
	ProductID  uuid.UUID        `json:"product_id"`
	Name       string           `json:"name"`
	Quantity   int              `json:"quantity"`
	UnitPrice  decimal.Decimal  `json:"unit_price"`
	Dimensions types.Dimensions `json:"dimensions"`
}

// LineTotal is unit price times quantity at full precision.
func (l LineItem) LineTotal() decimal.Decimal {
	return l.UnitPrice.Mul(decimal.NewFromInt(int64(l.Quantity)))
}

// GroupInput is the part of an order shipped and taxed by one seller.
type GroupInput struct {
	SellerID    uuid.UUID
	SellerState string
	Items       []LineItem
	Shipping    shipping.Quote
}

type Input struct {
	Groups     []GroupInput
	Discount   decimal.Decimal
	CouponCode string
	BuyerState string
	Rate       decimal.Decimal
}

// GroupTotals is one seller's rollup. Amounts are at currency scale.
type GroupTotals struct {
	SellerID        uuid.UUID             `json:"seller_id"`
	SellerState     string                `json:"seller_state"`
	Items           []LineItem            `json:"items"`
	Subtotal        decimal.Decimal       `json:"subtotal"`
	Discount        decimal.Decimal       `json:"discount"`
	ShippingCost    decimal.Decimal       `json:"shipping_cost"`
	ShippingPending bool                  `json:"shipping_pending"`
	DeliveryWindow  *types.DeliveryWindow `json:"delivery_window,omitempty"`
	TaxableAmount   decimal.Decimal       `json:"taxable_amount"`
	GST             tax.Breakdown         `json:"gst"`
	TotalAmount     decimal.Decimal       `json:"total_amount"`
}

// Totals is the authoritative order breakdown. Order-level amounts are the sums
// of the group amounts.
type Totals struct {
	Subtotal        decimal.Decimal `json:"subtotal"`
	Discount        decimal.Decimal `json:"discount"`
	CouponCode      string          `json:"coupon_code,omitempty"`
	ShippingCost    decimal.Decimal `json:"shipping_cost"`
	ShippingPending bool            `json:"shipping_pending"`
	TaxableAmount   decimal.Decimal `json:"taxable_amount"`
	GST             tax.Breakdown   `json:"gst"`
	TotalAmount     decimal.Decimal `json:"total_amount"`
	Groups          []GroupTotals   `json:"groups"`
}

// Reconciles reports whether the order and every group satisfy
// total = taxable + gst + shipping with a balanced GST split.
func (t Totals) Reconciles() bool {
	if !t.TaxableAmount.Add(t.GST.Total).Add(t.ShippingCost).Equal(t.TotalAmount) {
		return false
	}
	for _, g := range t.Groups {
		if !g.TaxableAmount.Add(g.GST.Total).Add(g.ShippingCost).Equal(g.TotalAmount) || !g.GST.Balanced() {
			return false
		}
	}
	return true
}

// Compute builds the breakdown. The discount is clamped to the subtotal and spread
// over the groups pro rata; the last group absorbs the rounding remainder.
func Compute(in Input) (Totals, error) {
	if err := validate(in.Groups); err != nil {
		return Totals{}, err
	}
	rate := in.Rate

	subtotals := make([]decimal.Decimal, len(in.Groups))
	orderSubtotal := money.Zero
	for i, g := range in.Groups {
		sum := money.Zero
		for _, item := range g.Items {
			sum = sum.Add(item.LineTotal())
		}
		subtotals[i] = money.Round(sum)
		orderSubtotal = orderSubtotal.Add(subtotals[i])
	}

	discount := money.Round(money.Clamp(in.Discount, money.Zero, orderSubtotal))
	shares := allocate(discount, subtotals, orderSubtotal)

	out := Totals{
		CouponCode: in.CouponCode,
		Groups:     make([]GroupTotals, 0, len(in.Groups)),
	}
	if discount.IsZero() {
		out.CouponCode = ""
	}
	parts := make([]tax.Breakdown, 0, len(in.Groups))
	for i, g := range in.Groups {
		taxable := money.NonNegative(subtotals[i].Sub(shares[i]))
		gst := tax.Compute(taxable, in.BuyerState, g.SellerState, rate)
		ship := money.Round(money.NonNegative(g.Shipping.Cost))
		if g.Shipping.Pending {
			ship = money.Zero
		}

		out.Groups = append(out.Groups, GroupTotals{
			SellerID:        g.SellerID,
			SellerState:     g.SellerState,
			Items:           append([]LineItem(nil), g.Items...),
			Subtotal:        subtotals[i],
			Discount:        shares[i],
			ShippingCost:    ship,
			ShippingPending: g.Shipping.Pending,
			DeliveryWindow:  g.Shipping.Window,
			TaxableAmount:   gst.Taxable,
			GST:             gst,
			TotalAmount:     gst.Taxable.Add(gst.Total).Add(ship),
		})
		parts = append(parts, gst)
	}

	out.Subtotal = money.Zero
	out.Discount = money.Zero
	out.ShippingCost = money.Zero
	out.TaxableAmount = money.Zero
	out.TotalAmount = money.Zero
	for _, g := range out.Groups {
		out.Subtotal = out.Subtotal.Add(g.Subtotal)
		out.Discount = out.Discount.Add(g.Discount)
		out.ShippingCost = out.ShippingCost.Add(g.ShippingCost)
		out.TaxableAmount = out.TaxableAmount.Add(g.TaxableAmount)
		out.TotalAmount = out.TotalAmount.Add(g.TotalAmount)
		out.ShippingPending = out.ShippingPending || g.ShippingPending
	}
	out.GST = tax.Combine(parts...)
	return out, nil
}

func validate(groups []GroupInput) error {
	count := 0
	for _, g := range groups {
		for _, item := range g.Items {
			if item.Quantity <= 0 || item.UnitPrice.IsNegative() {
				return pkgerrors.Wrap(pkgerrors.CodeValidation, ErrEmptyOrder, "order contains an invalid item").
					WithDetails(map[string]any{"product_id": item.ProductID.String()})
			}
			count++
		}
		if len(g.Items) == 0 {
			return pkgerrors.Wrap(pkgerrors.CodeValidation, ErrEmptyOrder, "seller group has no items")
		}
	}
	if count == 0 {
		return pkgerrors.Wrap(pkgerrors.CodeValidation, ErrEmptyOrder, "order has no items")
	}
	return nil
}

// allocate splits discount across subtotals in proportion. Each share is bounded by
// its own subtotal.
func allocate(discount decimal.Decimal, subtotals []decimal.Decimal, total decimal.Decimal) []decimal.Decimal {
	shares := make([]decimal.Decimal, len(subtotals))
	for i := range shares {
		shares[i] = money.Zero
	}
	if discount.IsZero() || total.IsZero() {
		return shares
	}

	remaining := discount
	last := len(subtotals) - 1
	for i, sub := range subtotals {
		var share decimal.Decimal
		if i == last {
			share = remaining
		} else {
			share = money.Round(discount.Mul(sub).Div(total))
		}
		share = money.Clamp(share, money.Zero, sub)
		if share.GreaterThan(remaining) {
			share = remaining
		}
		shares[i] = share
		remaining = remaining.Sub(share)
	}
	return shares
}
