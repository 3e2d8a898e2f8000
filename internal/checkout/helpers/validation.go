package helpers

import (
	"net/mail"
	"regexp"
	"strings"

	"github.com/angelmondragon/settlement-engine/pkg/enums"
	pkgerrors "github.com/angelmondragon/settlement-engine/pkg/errors"
	"github.com/angelmondragon/settlement-engine/pkg/types"
)

// GSTINLength is the fixed length of an Indian GST identification number.
const GSTINLength = 15

var (
	pincodePattern = regexp.MustCompile(`^[1-9][0-9]{5}$`)
	gstinPattern   = regexp.MustCompile(`^[0-9]{2}[A-Z0-9]{13}$`)
)

// ValidateContact requires a name, a parseable email and a mobile number.
func ValidateContact(c types.ContactSnapshot) error {
	missing := []string{}
	if strings.TrimSpace(c.Name) == "" {
		missing = append(missing, "name")
	}
	if strings.TrimSpace(c.Mobile) == "" {
		missing = append(missing, "mobile")
	}
	if strings.TrimSpace(c.Email) == "" {
		missing = append(missing, "email")
	} else if _, err := mail.ParseAddress(c.Email); err != nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "contact email is invalid")
	}
	if len(missing) > 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "contact details are incomplete").
			WithDetails(map[string]any{"missing": missing})
	}
	return nil
}

// ValidateDeliveryAddress requires the fields shipping and place-of-supply depend on.
func ValidateDeliveryAddress(a types.Address) error {
	missing := []string{}
	if strings.TrimSpace(a.Line1) == "" {
		missing = append(missing, "line1")
	}
	if strings.TrimSpace(a.City) == "" {
		missing = append(missing, "city")
	}
	if a.NormalizedState() == "" {
		missing = append(missing, "state")
	}
	if strings.TrimSpace(a.PostalCode) == "" {
		missing = append(missing, "postal_code")
	}
	if len(missing) > 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "delivery address is incomplete").
			WithDetails(map[string]any{"missing": missing})
	}
	if !pincodePattern.MatchString(strings.TrimSpace(a.PostalCode)) {
		return pkgerrors.New(pkgerrors.CodeValidation, "delivery postal code is invalid")
	}
	return nil
}

// ValidateBilling enforces the GST invoice fields when a tax invoice is requested.
func ValidateBilling(b *types.BillingSnapshot) error {
	if b == nil || !b.GSTInvoice {
		return nil
	}
	gstin := strings.ToUpper(strings.TrimSpace(b.GSTIN))
	if len(gstin) != GSTINLength || !gstinPattern.MatchString(gstin) {
		return pkgerrors.New(pkgerrors.CodeValidation, "gstin must be 15 characters").
			WithDetails(map[string]any{"field": "gstin"})
	}
	if strings.TrimSpace(b.BusinessName) == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "business name is required for a GST invoice").
			WithDetails(map[string]any{"field": "business_name"})
	}
	return nil
}

// ValidateFlow checks the flow and payment method and the buy-now single-line rule.
func ValidateFlow(flow enums.CheckoutFlow, method enums.PaymentMethod, lines int) error {
	if !flow.IsValid() {
		return pkgerrors.New(pkgerrors.CodeValidation, "checkout flow is invalid")
	}
	if !method.IsValid() {
		return pkgerrors.New(pkgerrors.CodeValidation, "payment method is invalid")
	}
	if lines == 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "cart contains no items")
	}
	if flow == enums.CheckoutFlowBuyNow && lines != 1 {
		return pkgerrors.New(pkgerrors.CodeValidation, "buy now accepts exactly one item")
	}
	return nil
}
