package payments

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/multierr"

	"github.com/angelmondragon/settlement-engine/internal/checkout"
	"github.com/angelmondragon/settlement-engine/pkg/db/models"
	"github.com/angelmondragon/settlement-engine/pkg/enums"
	"github.com/angelmondragon/settlement-engine/pkg/invoicing"
	"github.com/angelmondragon/settlement-engine/pkg/money"
)

const (
	stepCartClear    = "cart_clear"
	stepInvoice      = "invoice"
	stepConfirmation = "confirmation"
)

type stepError struct {
	step string
	err  error
}

func (e *stepError) Error() string { return fmt.Sprintf("%s: %v", e.step, e.err) }
func (e *stepError) Unwrap() error { return e.err }

// afterCommit runs the best-effort follow ups of a committed order. Failures never
// touch the order; each one is logged and returned as a warning.
func (s *service) afterCommit(ctx context.Context, order *models.Order, session checkout.Session) []Warning {
	var errs error

	if session.Flow == enums.CheckoutFlowCart && s.cart != nil {
		if err := s.cart.Clear(ctx, order.BuyerID); err != nil {
			errs = multierr.Append(errs, &stepError{step: stepCartClear, err: err})
		}
	}

	var artifact *invoicing.Artifact
	if s.invoices != nil {
		rendered, err := s.invoices.Render(ctx, buildInvoice(order, session, s.now().UTC()))
		if err != nil {
			errs = multierr.Append(errs, &stepError{step: stepInvoice, err: err})
		} else {
			artifact = rendered
		}
	}

	if s.notifier != nil {
		if err := s.notifier.OrderConfirmation(ctx, order, artifact); err != nil {
			errs = multierr.Append(errs, &stepError{step: stepConfirmation, err: err})
		}
	}

	failures := multierr.Errors(errs)
	if len(failures) == 0 {
		return nil
	}
	warnings := make([]Warning, 0, len(failures))
	for _, failure := range failures {
		step := "unknown"
		if se, ok := failure.(*stepError); ok {
			step = se.step
		}
		s.metrics.IncWarning(step)
		s.logg.Error(s.logg.WithField(ctx, "side_effect", step), "post-commit side effect failed", failure)
		warnings = append(warnings, Warning{Step: step, Message: failure.Error()})
	}
	return warnings
}

func buildInvoice(order *models.Order, session checkout.Session, issuedAt time.Time) invoicing.Invoice {
	invoice := invoicing.Invoice{
		OrderNumber: order.OrderNumber,
		IssuedAt:    issuedAt,
		BuyerName:   order.Contact.Name,
		BuyerEmail:  order.Contact.Email,
		Subtotal:    order.Subtotal.StringFixed(money.Scale),
		Discount:    order.Discount.StringFixed(money.Scale),
		Shipping:    order.ShippingCost.StringFixed(money.Scale),
		GSTMode:     string(order.GSTMode),
		CGST:        order.CGST.StringFixed(money.Scale),
		SGST:        order.SGST.StringFixed(money.Scale),
		IGST:        order.IGST.StringFixed(money.Scale),
		Total:       order.TotalAmount.StringFixed(money.Scale),
		Currency:    order.Currency,
	}
	if b := order.Billing; b != nil && b.GSTInvoice {
		invoice.GSTIN = b.GSTIN
		invoice.BusinessName = b.BusinessName
	}
	for _, group := range session.Groups {
		for _, item := range group.Items {
			invoice.Lines = append(invoice.Lines, invoicing.InvoiceLine{
				Description: item.Name,
				Seller:      group.Seller.Name,
				Quantity:    item.Quantity,
				UnitPrice:   money.Round(item.UnitPrice).StringFixed(money.Scale),
				LineTotal:   money.Round(item.LineTotal()).StringFixed(money.Scale),
			})
		}
	}
	return invoice
}
