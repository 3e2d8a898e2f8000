package shipestimate

import (
	"context"
	"io"
	"net/http"
	"strings"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/settlement-engine/pkg/config"
	pkgerrors "github.com/angelmondragon/settlement-engine/pkg/errors"
)

type roundTripFunc func(*http.Request) (*http.Response, error)

func (f roundTripFunc) RoundTrip(req *http.Request) (*http.Response, error) {
	return f(req)
}

func newTestClient(t *testing.T, fn roundTripFunc) *Client {
	t.Helper()
	client, err := NewClient(config.ShippingConfig{BaseURL: "https://couriers.test/v1/", APIToken: "tok"}, WithHTTPClient(&http.Client{Transport: fn}))
	require.NoError(t, err)
	return client
}

func TestEstimatePicksCheapestCourier(t *testing.T) {
	client := newTestClient(t, func(req *http.Request) (*http.Response, error) {
		assert.Equal(t, "/v1/courier/serviceability", req.URL.Path)
		assert.Equal(t, "560001", req.URL.Query().Get("pickup_postcode"))
		assert.Equal(t, "110001", req.URL.Query().Get("delivery_postcode"))
		assert.Equal(t, "1", req.URL.Query().Get("cod"))
		assert.Equal(t, "1.5", req.URL.Query().Get("weight"))
		assert.Equal(t, "Bearer tok", req.Header.Get("Authorization"))
		body := `{"data":{"available_courier_companies":[
			{"courier_name":"Slow","freight_charge":"80","tax":"14.40","rate":"94.40","etd_min_days":5,"etd_max_days":8},
			{"courier_name":"Fast","freight_charge":"120","tax":"21.60","rate":"141.60","etd_min_days":1,"etd_max_days":2}
		]}}`
		return &http.Response{StatusCode: http.StatusOK, Body: io.NopCloser(strings.NewReader(body)), Header: make(http.Header)}, nil
	})

	est, err := client.Estimate(context.Background(), "560001", "110001", Parcel{WeightKg: decimal.RequireFromString("1.5")}, PaymentCOD)
	require.NoError(t, err)
	assert.Equal(t, "Slow", est.Courier)
	assert.True(t, est.Total.Equal(decimal.RequireFromString("94.40")))
	assert.Equal(t, 5, est.TAT.MinDays)
	assert.Equal(t, 8, est.TAT.MaxDays)
}

func TestEstimateWithoutCouriersIsDependencyError(t *testing.T) {
	client := newTestClient(t, func(*http.Request) (*http.Response, error) {
		return &http.Response{StatusCode: http.StatusOK, Body: io.NopCloser(strings.NewReader(`{"data":{}}`)), Header: make(http.Header)}, nil
	})
	_, err := client.Estimate(context.Background(), "560001", "110001", Parcel{}, PaymentPrepaid)
	require.Error(t, err)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeDependency))
}

func TestEstimateRequiresPincodes(t *testing.T) {
	client := newTestClient(t, nil)
	_, err := client.Estimate(context.Background(), "", "110001", Parcel{}, PaymentPrepaid)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
}
