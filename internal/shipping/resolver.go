package shipping

import (
	"context"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/angelmondragon/settlement-engine/pkg/enums"
	"github.com/angelmondragon/settlement-engine/pkg/logger"
	"github.com/angelmondragon/settlement-engine/pkg/money"
	"github.com/angelmondragon/settlement-engine/pkg/shipestimate"
	"github.com/angelmondragon/settlement-engine/pkg/types"
)

// Estimator is the courier quote collaborator.
type Estimator interface {
	Estimate(ctx context.Context, pickup, drop string, parcel shipestimate.Parcel, payment shipestimate.PaymentType) (*shipestimate.Estimate, error)
}

// Item is one line's contribution to the parcel.
type Item struct {
	Quantity   int
	Dimensions types.Dimensions
}

type Input struct {
	PickupPincode string
	DropPincode   string
	Items         []Item
	PaymentMethod enums.PaymentMethod
	// Fixed bypasses the estimator, e.g. for free shipping.
	Fixed *decimal.Decimal
}

// Quote is the resolved shipping cost. Pending means no estimate was available and
// Cost is zero until one arrives.
type Quote struct {
	Cost    decimal.Decimal       `json:"cost"`
	PreTax  decimal.Decimal       `json:"pre_tax"`
	Tax     decimal.Decimal       `json:"tax"`
	Pending bool                  `json:"pending"`
	Courier string                `json:"courier,omitempty"`
	Window  *types.DeliveryWindow `json:"window,omitempty"`
}

// PendingQuote is the degraded zero-cost quote.
func PendingQuote() Quote {
	return Quote{Cost: money.Zero, PreTax: money.Zero, Tax: money.Zero, Pending: true}
}

// FixedQuote wraps a server-decided shipping cost.
func FixedQuote(cost decimal.Decimal) Quote {
	cost = money.Round(money.NonNegative(cost))
	return Quote{Cost: cost, PreTax: cost, Tax: money.Zero}
}

type Resolver struct {
	estimator     Estimator
	defaultPickup string
	logg          *logger.Logger
}

// NewResolver builds the resolver. A nil estimator makes every quote pending.
func NewResolver(estimator Estimator, defaultPickup string, logg *logger.Logger) *Resolver {
	if logg == nil {
		logg = logger.Nop()
	}
	return &Resolver{
		estimator:     estimator,
		defaultPickup: strings.TrimSpace(defaultPickup),
		logg:          logg,
	}
}

// Resolve never fails: estimator errors or missing inputs degrade to a pending quote.
func (r *Resolver) Resolve(ctx context.Context, in Input) Quote {
	if in.Fixed != nil {
		return FixedQuote(*in.Fixed)
	}
	if r == nil || r.estimator == nil {
		return PendingQuote()
	}

	pickup := strings.TrimSpace(in.PickupPincode)
	if pickup == "" {
		pickup = r.defaultPickup
	}
	drop := strings.TrimSpace(in.DropPincode)
	if pickup == "" || drop == "" {
		r.logg.Warn(ctx, "shipping estimate skipped: pincode missing")
		return PendingQuote()
	}

	payment := shipestimate.PaymentPrepaid
	if in.PaymentMethod == enums.PaymentMethodCOD {
		payment = shipestimate.PaymentCOD
	}

	est, err := r.estimator.Estimate(ctx, pickup, drop, BuildParcel(in.Items), payment)
	if err != nil || est == nil {
		logCtx := r.logg.WithFields(ctx, map[string]any{"pickup": pickup, "drop": drop})
		if err != nil {
			logCtx = r.logg.WithField(logCtx, "error", err.Error())
		}
		r.logg.Warn(logCtx, "shipping estimate unavailable, quote pending")
		return PendingQuote()
	}

	window := est.TAT
	return Quote{
		Cost:    money.Round(money.NonNegative(est.Total)),
		PreTax:  money.Round(money.NonNegative(est.PreTax)),
		Tax:     money.Round(money.NonNegative(est.Tax)),
		Courier: est.Courier,
		Window:  &window,
	}
}

// BuildParcel stacks units: weight is summed, length and breadth take the largest
// unit, heights add up.
func BuildParcel(items []Item) shipestimate.Parcel {
	parcel := shipestimate.Parcel{
		WeightKg:  money.Zero,
		LengthCm:  money.Zero,
		BreadthCm: money.Zero,
		HeightCm:  money.Zero,
	}
	for _, item := range items {
		if item.Quantity <= 0 {
			continue
		}
		qty := decimal.NewFromInt(int64(item.Quantity))
		dim := item.Dimensions
		parcel.WeightKg = parcel.WeightKg.Add(dim.WeightKg.Mul(qty))
		parcel.LengthCm = decimal.Max(parcel.LengthCm, dim.LengthCm)
		parcel.BreadthCm = decimal.Max(parcel.BreadthCm, dim.BreadthCm)
		parcel.HeightCm = parcel.HeightCm.Add(dim.HeightCm.Mul(qty))
	}
	return parcel
}
