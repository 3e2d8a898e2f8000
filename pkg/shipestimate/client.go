package shipestimate

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/angelmondragon/settlement-engine/pkg/config"
	pkgerrors "github.com/angelmondragon/settlement-engine/pkg/errors"
	"github.com/angelmondragon/settlement-engine/pkg/types"
)

const (
	defaultTimeout              = 5 * time.Second
	responseBodyReadLimit int64 = 1024
)

var errBaseURLRequired = errors.New("shipping estimator base url is required")

// PaymentType tells the courier whether cash will be collected on delivery.
type PaymentType string

const (
	PaymentPrepaid PaymentType = "prepaid"
	PaymentCOD     PaymentType = "cod"
)

// Parcel is the consolidated shipment for one seller.
type Parcel struct {
	WeightKg  decimal.Decimal
	LengthCm  decimal.Decimal
	BreadthCm decimal.Decimal
	HeightCm  decimal.Decimal
}

// Estimate is the cheapest courier quote for a parcel.
type Estimate struct {
	Courier string
	PreTax  decimal.Decimal
	Tax     decimal.Decimal
	Total   decimal.Decimal
	TAT     types.DeliveryWindow
}

// Client queries the courier aggregator's serviceability endpoint.
type Client struct {
	httpClient *http.Client
	baseURL    string
	token      string
}

type Option func(*Client)

func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.httpClient = client
		}
	}
}

func NewClient(cfg config.ShippingConfig, opts ...Option) (*Client, error) {
	baseURL := strings.TrimSpace(cfg.BaseURL)
	if baseURL == "" {
		return nil, errBaseURLRequired
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	client := &Client{
		httpClient: &http.Client{Timeout: timeout},
		baseURL:    strings.TrimRight(baseURL, "/"),
		token:      strings.TrimSpace(cfg.APIToken),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(client)
		}
	}
	return client, nil
}

type courierQuote struct {
	Name    string          `json:"courier_name"`
	PreTax  decimal.Decimal `json:"freight_charge"`
	Tax     decimal.Decimal `json:"tax"`
	Total   decimal.Decimal `json:"rate"`
	MinDays int             `json:"etd_min_days"`
	MaxDays int             `json:"etd_max_days"`
}

// Estimate returns the cheapest available courier between two pincodes.
func (c *Client) Estimate(ctx context.Context, pickup, drop string, parcel Parcel, payment PaymentType) (*Estimate, error) {
	if c == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "shipping estimator not configured")
	}
	pickup = strings.TrimSpace(pickup)
	drop = strings.TrimSpace(drop)
	if pickup == "" || drop == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "pickup and delivery pincodes are required")
	}

	q := url.Values{}
	q.Set("pickup_postcode", pickup)
	q.Set("delivery_postcode", drop)
	q.Set("weight", parcel.WeightKg.String())
	q.Set("length", parcel.LengthCm.String())
	q.Set("breadth", parcel.BreadthCm.String())
	q.Set("height", parcel.HeightCm.String())
	if payment == PaymentCOD {
		q.Set("cod", "1")
	} else {
		q.Set("cod", "0")
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/courier/serviceability?"+q.Encode(), nil)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "build serviceability request")
	}
	if c.token != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "execute serviceability request")
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, responseBodyReadLimit))
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, fmt.Errorf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(msg))), "serviceability request failed")
	}

	var apiResp struct {
		Data struct {
			Couriers []courierQuote `json:"available_courier_companies"`
		} `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&apiResp); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "decode serviceability response")
	}

	best, ok := cheapest(apiResp.Data.Couriers)
	if !ok {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "no courier serves this route")
	}
	total := best.Total
	if total.IsZero() {
		total = best.PreTax.Add(best.Tax)
	}
	return &Estimate{
		Courier: best.Name,
		PreTax:  best.PreTax,
		Tax:     best.Tax,
		Total:   total,
		TAT:     types.DeliveryWindow{MinDays: best.MinDays, MaxDays: best.MaxDays},
	}, nil
}

func cheapest(quotes []courierQuote) (courierQuote, bool) {
	var best courierQuote
	found := false
	for _, q := range quotes {
		if q.Total.IsNegative() {
			continue
		}
		if !found || q.Total.LessThan(best.Total) {
			best = q
			found = true
		}
	}
	return best, found
}
