package shipping

import (
	"context"
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/settlement-engine/pkg/enums"
	"github.com/angelmondragon/settlement-engine/pkg/shipestimate"
	"github.com/angelmondragon/settlement-engine/pkg/types"
)

type stubEstimator struct {
	estimateFn func(ctx context.Context, pickup, drop string, parcel shipestimate.Parcel, payment shipestimate.PaymentType) (*shipestimate.Estimate, error)
	calls      int
}

func (s *stubEstimator) Estimate(ctx context.Context, pickup, drop string, parcel shipestimate.Parcel, payment shipestimate.PaymentType) (*shipestimate.Estimate, error) {
	s.calls++
	return s.estimateFn(ctx, pickup, drop, parcel, payment)
}

func d(v string) decimal.Decimal {
	return decimal.RequireFromString(v)
}

func TestResolveUsesEstimate(t *testing.T) {
	est := &stubEstimator{estimateFn: func(_ context.Context, pickup, drop string, parcel shipestimate.Parcel, payment shipestimate.PaymentType) (*shipestimate.Estimate, error) {
		assert.Equal(t, "560001", pickup)
		assert.Equal(t, "110001", drop)
		assert.Equal(t, shipestimate.PaymentCOD, payment)
		assert.True(t, parcel.WeightKg.Equal(d("1.5")))
		return &shipestimate.Estimate{Courier: "Slow", PreTax: d("42.37"), Tax: d("7.63"), Total: d("50"), TAT: types.DeliveryWindow{MinDays: 3, MaxDays: 5}}, nil
	}}
	r := NewResolver(est, "560001", nil)

	q := r.Resolve(context.Background(), Input{
		DropPincode:   "110001",
		PaymentMethod: enums.PaymentMethodCOD,
		Items:         []Item{{Quantity: 3, Dimensions: types.Dimensions{WeightKg: d("0.5")}}},
	})

	assert.False(t, q.Pending)
	assert.True(t, q.Cost.Equal(d("50")))
	require.NotNil(t, q.Window)
	assert.Equal(t, 5, q.Window.MaxDays)
}

func TestResolveDegradesOnEstimatorFailure(t *testing.T) {
	est := &stubEstimator{estimateFn: func(context.Context, string, string, shipestimate.Parcel, shipestimate.PaymentType) (*shipestimate.Estimate, error) {
		return nil, errors.New("courier api down")
	}}
	q := NewResolver(est, "560001", nil).Resolve(context.Background(), Input{DropPincode: "110001"})

	assert.True(t, q.Pending)
	assert.True(t, q.Cost.IsZero())
}

func TestResolveMissingPincodeSkipsEstimator(t *testing.T) {
	est := &stubEstimator{}
	q := NewResolver(est, "", nil).Resolve(context.Background(), Input{DropPincode: "110001"})

	assert.True(t, q.Pending)
	assert.Zero(t, est.calls)
}

func TestResolveFixedBypassesEstimator(t *testing.T) {
	est := &stubEstimator{}
	free := decimal.Zero
	q := NewResolver(est, "560001", nil).Resolve(context.Background(), Input{DropPincode: "110001", Fixed: &free})

	assert.False(t, q.Pending)
	assert.True(t, q.Cost.IsZero())
	assert.Zero(t, est.calls)
}

func TestResolveWithoutEstimatorIsPending(t *testing.T) {
	q := NewResolver(nil, "560001", nil).Resolve(context.Background(), Input{DropPincode: "110001"})
	assert.True(t, q.Pending)
}

func TestBuildParcelStacksUnits(t *testing.T) {
	parcel := BuildParcel([]Item{
		{Quantity: 2, Dimensions: types.Dimensions{WeightKg: d("0.4"), LengthCm: d("20"), BreadthCm: d("10"), HeightCm: d("5")}},
		{Quantity: 1, Dimensions: types.Dimensions{WeightKg: d("1"), LengthCm: d("15"), BreadthCm: d("12"), HeightCm: d("8")}},
		{Quantity: 0, Dimensions: types.Dimensions{WeightKg: d("100")}},
	})

	assert.True(t, parcel.WeightKg.Equal(d("1.8")))
	assert.True(t, parcel.LengthCm.Equal(d("20")))
	assert.True(t, parcel.BreadthCm.Equal(d("12")))
	assert.True(t, parcel.HeightCm.Equal(d("18")))
}
