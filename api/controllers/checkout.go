package controllers

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/angelmondragon/settlement-engine/api/responses"
	"github.com/angelmondragon/settlement-engine/api/validators"
	"github.com/angelmondragon/settlement-engine/internal/checkout"
	"github.com/angelmondragon/settlement-engine/internal/payments"
	"github.com/angelmondragon/settlement-engine/pkg/enums"
	pkgerrors "github.com/angelmondragon/settlement-engine/pkg/errors"
	"github.com/angelmondragon/settlement-engine/pkg/logger"
	"github.com/angelmondragon/settlement-engine/pkg/types"
)

type checkoutItemRequest struct {
	ProductID uuid.UUID `json:"product_id" validate:"required"`
	Quantity  int       `json:"quantity" validate:"required,min=1,max=1000"`
}

type addressRequest struct {
	Name       string  `json:"name" validate:"required,max=120"`
	Line1      string  `json:"line1" validate:"required,max=200"`
	Line2      *string `json:"line2,omitempty" validate:"omitempty,max=200"`
	City       string  `json:"city" validate:"required,max=100"`
	State      string  `json:"state" validate:"required,max=100"`
	PostalCode string  `json:"postal_code" validate:"required,max=12"`
	Country    string  `json:"country" validate:"omitempty,len=2"`
	Phone      string  `json:"phone,omitempty" validate:"omitempty,max=20"`
}

func (a addressRequest) snapshot() types.Address {
	country := a.Country
	if country == "" {
		country = "IN"
	}
	return types.Address{
		Name:       validators.SanitizeString(a.Name, 120),
		Line1:      validators.SanitizeString(a.Line1, 200),
		Line2:      a.Line2,
		City:       validators.SanitizeString(a.City, 100),
		State:      validators.SanitizeString(a.State, 100),
		PostalCode: validators.SanitizeString(a.PostalCode, 12),
		Country:    country,
		Phone:      validators.SanitizeString(a.Phone, 20),
	}
}

type billingRequest struct {
	GSTInvoice   bool            `json:"gst_invoice"`
	GSTIN        string          `json:"gstin,omitempty"`
	BusinessName string          `json:"business_name,omitempty"`
	Address      *addressRequest `json:"address,omitempty"`
}

type checkoutRequest struct {
	Items   []checkoutItemRequest `json:"items" validate:"required,min=1,dive"`
	Contact struct {
		Name   string `json:"name" validate:"required,max=120"`
		Email  string `json:"email" validate:"required,email"`
		Mobile string `json:"mobile" validate:"required,max=20"`
	} `json:"contact"`
	ShippingAddress addressRequest  `json:"shipping_address"`
	Billing         *billingRequest `json:"billing,omitempty"`
	Flow            string          `json:"flow" validate:"required,oneof=cart buy_now"`
	PaymentMethod   string          `json:"payment_method" validate:"required,oneof=online cod"`
	CouponCode      string          `json:"coupon_code,omitempty" validate:"omitempty,max=40"`
}

func (c checkoutRequest) quoteInput(buyerID uuid.UUID) (checkout.QuoteInput, error) {
	flow, err := enums.ParseCheckoutFlow(c.Flow)
	if err != nil {
		return checkout.QuoteInput{}, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid checkout flow")
	}
	method, err := enums.ParsePaymentMethod(c.PaymentMethod)
	if err != nil {
		return checkout.QuoteInput{}, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid payment method")
	}
	input := checkout.QuoteInput{
		BuyerID: buyerID,
		Items:   make([]checkout.ItemInput, len(c.Items)),
		Contact: types.ContactSnapshot{
			Name:   validators.SanitizeString(c.Contact.Name, 120),
			Email:  validators.SanitizeString(c.Contact.Email, 254),
			Mobile: validators.SanitizeString(c.Contact.Mobile, 20),
		},
		ShippingAddress: c.ShippingAddress.snapshot(),
		Flow:            flow,
		PaymentMethod:   method,
		CouponCode:      validators.SanitizeCode(c.CouponCode, 40),
	}
	for i, item := range c.Items {
		input.Items[i] = checkout.ItemInput{ProductID: item.ProductID, Quantity: item.Quantity}
	}
	if c.Billing != nil {
		billing := &types.BillingSnapshot{
			GSTInvoice:   c.Billing.GSTInvoice,
			GSTIN:        validators.SanitizeCode(c.Billing.GSTIN, 15),
			BusinessName: validators.SanitizeString(c.Billing.BusinessName, 200),
			Address:      input.ShippingAddress,
		}
		if c.Billing.Address != nil {
			billing.Address = c.Billing.Address.snapshot()
		}
		input.Billing = billing
	}
	return input, nil
}

func decodeCheckout(r *http.Request) (checkout.QuoteInput, error) {
	buyerID, err := userIDFromRequest(r)
	if err != nil {
		return checkout.QuoteInput{}, err
	}
	var payload checkoutRequest
	if err := validators.DecodeJSONBody(r, &payload); err != nil {
		return checkout.QuoteInput{}, err
	}
	return payload.quoteInput(buyerID)
}

// CheckoutQuote prices the submitted items without committing anything.
func CheckoutQuote(svc checkout.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		input, err := decodeCheckout(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		session, err := svc.Quote(r.Context(), input)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, session)
	}
}

type beginPaymentResponse struct {
	AttemptID      uuid.UUID `json:"attempt_id"`
	GatewayOrderID string    `json:"gateway_order_id"`
	KeyID          string    `json:"key_id"`
	AmountMinor    int64     `json:"amount_minor"`
	Currency       string    `json:"currency"`
	Totals         any       `json:"totals"`
}

// CheckoutPlaceOrder re-prices the checkout and either opens an online payment
// or commits a cash on delivery order.
func CheckoutPlaceOrder(checkoutSvc checkout.Service, paymentSvc payments.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		input, err := decodeCheckout(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		session, err := checkoutSvc.Quote(r.Context(), input)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		if session.PaymentMethod == enums.PaymentMethodCOD {
			result, err := paymentSvc.PlaceCOD(r.Context(), *session)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, err)
				return
			}
			responses.WriteSuccessWithWarnings(w, http.StatusCreated, captureResponse{Order: newOrderResponse(result.Order)}, warningMessages(result.Warnings))
			return
		}

		begun, err := paymentSvc.Begin(r.Context(), *session)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, beginPaymentResponse{
			AttemptID:      begun.AttemptID,
			GatewayOrderID: begun.GatewayOrderID,
			KeyID:          begun.KeyID,
			AmountMinor:    begun.AmountMinor,
			Currency:       begun.Currency,
			Totals:         begun.Totals,
		})
	}
}
