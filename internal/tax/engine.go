package tax

import (
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/settlement-engine/pkg/enums"
	"github.com/angelmondragon/settlement-engine/pkg/money"
	"github.com/angelmondragon/settlement-engine/pkg/types"
)

// DefaultRate is the GST percentage applied when none is configured.
var DefaultRate = decimal.NewFromInt(18)

var two = decimal.NewFromInt(2)

// Breakdown is the GST split of one taxable base. All amounts are at currency scale.
type Breakdown struct {
	Mode    enums.GSTMode   `json:"mode"`
	Rate    decimal.Decimal `json:"rate"`
	Taxable decimal.Decimal `json:"taxable"`
	CGST    decimal.Decimal `json:"cgst"`
	SGST    decimal.Decimal `json:"sgst"`
	IGST    decimal.Decimal `json:"igst"`
	Total   decimal.Decimal `json:"total"`
}

// ModeFor picks intra-state (CGST+SGST) when both states normalize to the same value.
// An unknown state on either side is treated as inter-state.
func ModeFor(buyerState, sellerState string) enums.GSTMode {
	buyer := types.NormalizeState(buyerState)
	seller := types.NormalizeState(sellerState)
	if buyer != "" && buyer == seller {
		return enums.GSTModeCGSTSGST
	}
	return enums.GSTModeIGST
}

// Compute splits GST on taxable. The rounding remainder of an intra-state split lands on CGST,
// so a total of one paisa is all CGST and SGST stays zero.
func Compute(taxable decimal.Decimal, buyerState, sellerState string, rate decimal.Decimal) Breakdown {
	taxable = money.Round(money.NonNegative(taxable))
	rate = money.NonNegative(rate)
	total := money.Round(money.Percent(taxable, rate))

	b := Breakdown{
		Mode:    ModeFor(buyerState, sellerState),
		Rate:    rate,
		Taxable: taxable,
		CGST:    money.Zero,
		SGST:    money.Zero,
		IGST:    money.Zero,
		Total:   total,
	}
	if b.Mode == enums.GSTModeIGST {
		b.IGST = total
		return b
	}
	b.SGST = total.Div(two).Truncate(money.Scale)
	b.CGST = total.Sub(b.SGST)
	return b
}

// Combine rolls per-seller breakdowns into an order-level one. The mode becomes
// mixed when the parts disagree.
func Combine(parts ...Breakdown) Breakdown {
	out := Breakdown{
		CGST:    money.Zero,
		SGST:    money.Zero,
		IGST:    money.Zero,
		Total:   money.Zero,
		Taxable: money.Zero,
		Rate:    money.Zero,
	}
	for i, p := range parts {
		if i == 0 {
			out.Mode = p.Mode
			out.Rate = p.Rate
		} else if out.Mode != p.Mode {
			out.Mode = enums.GSTModeMixed
		}
		out.Taxable = out.Taxable.Add(p.Taxable)
		out.CGST = out.CGST.Add(p.CGST)
		out.SGST = out.SGST.Add(p.SGST)
		out.IGST = out.IGST.Add(p.IGST)
		out.Total = out.Total.Add(p.Total)
	}
	if out.Mode == "" {
		out.Mode = enums.GSTModeIGST
	}
	return out
}

// Balanced reports whether the components sum to the total and only the components
// of the breakdown's mode are non-zero.
func (b Breakdown) Balanced() bool {
	if !b.CGST.Add(b.SGST).Add(b.IGST).Equal(b.Total) {
		return false
	}
	switch b.Mode {
	case enums.GSTModeCGSTSGST:
		return b.IGST.IsZero()
	case enums.GSTModeIGST:
		return b.CGST.IsZero() && b.SGST.IsZero()
	default:
		return true
	}
}
