package orders

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/settlement-engine/internal/checkout"
	"github.com/angelmondragon/settlement-engine/internal/totals"
	"github.com/angelmondragon/settlement-engine/pkg/db/models"
	"github.com/angelmondragon/settlement-engine/pkg/enums"
	pkgerrors "github.com/angelmondragon/settlement-engine/pkg/errors"
	"github.com/angelmondragon/settlement-engine/pkg/money"
)

const defaultCurrency = "INR"

// NewOrderNumber returns a human readable reference such as ORD-20260910-3FA9C1.
func NewOrderNumber(now time.Time) string {
	buf := make([]byte, 3)
	if _, err := rand.Read(buf); err != nil {
		copy(buf, uuid.New().NodeID())
	}
	return fmt.Sprintf("ORD-%s-%s", now.UTC().Format("20060102"), strings.ToUpper(hex.EncodeToString(buf)))
}

// Build maps a priced session onto the order graph. Amounts come from the session
// totals only; nothing is recomputed here.
func Build(session checkout.Session, input PlaceInput, now time.Time) (*models.Order, []models.SubOrder, error) {
	t := session.Totals
	if len(t.Groups) == 0 || len(t.Groups) != len(session.Groups) {
		return nil, nil, pkgerrors.New(pkgerrors.CodeIntegrity, "session totals do not match seller groups")
	}

	currency := input.Currency
	if currency == "" {
		currency = defaultCurrency
	}
	order := &models.Order{
		ID:               uuid.New(),
		OrderNumber:      NewOrderNumber(now),
		BuyerID:          session.BuyerID,
		Contact:          session.Contact,
		ShippingAddress:  session.ShippingAddress,
		Billing:          session.Billing,
		Flow:             session.Flow,
		PaymentMethod:    session.PaymentMethod,
		PaymentStatus:    input.PaymentStatus,
		Status:           enums.OrderStatusConfirmed,
		Currency:         currency,
		Subtotal:         t.Subtotal,
		Discount:         t.Discount,
		ShippingCost:     t.ShippingCost,
		TaxableAmount:    t.TaxableAmount,
		GSTMode:          t.GST.Mode,
		GSTRate:          t.GST.Rate,
		CGST:             t.GST.CGST,
		SGST:             t.GST.SGST,
		IGST:             t.GST.IGST,
		GSTTotal:         t.GST.Total,
		TotalAmount:      t.TotalAmount,
		ShippingPending:  t.ShippingPending,
		PaymentAttemptID: input.AttemptID,
		GatewayOrderID:   input.GatewayOrderID,
		GatewayPaymentID: input.GatewayPaymentID,
	}
	if t.CouponCode != "" {
		code := t.CouponCode
		order.CouponCode = &code
	}
	if input.PaymentStatus == enums.PaymentStatusPaid {
		paidAt := now
		order.PaidAt = &paidAt
	}

	subs := make([]models.SubOrder, 0, len(t.Groups))
	for _, group := range t.Groups {
		seller, ok := session.SellerByID(group.SellerID)
		if !ok {
			return nil, nil, pkgerrors.New(pkgerrors.CodeIntegrity, "session totals reference an unknown seller").
				WithDetails(map[string]any{"seller_id": group.SellerID.String()})
		}
		sub := models.SubOrder{
			ID:              uuid.New(),
			OrderID:         order.ID,
			SellerID:        seller.ID,
			SellerName:      seller.Name,
			SellerEmail:     seller.Email,
			SellerTier:      seller.Tier,
			SellerState:     seller.State,
			Status:          enums.SubOrderStatusPlaced,
			Subtotal:        group.Subtotal,
			Discount:        group.Discount,
			ShippingCost:    group.ShippingCost,
			TaxableAmount:   group.TaxableAmount,
			GSTMode:         group.GST.Mode,
			CGST:            group.GST.CGST,
			SGST:            group.GST.SGST,
			IGST:            group.GST.IGST,
			GSTTotal:        group.GST.Total,
			TotalAmount:     group.TotalAmount,
			ShippingPending: group.ShippingPending,
		}
		if w := group.DeliveryWindow; w != nil {
			minDays, maxDays := w.MinDays, w.MaxDays
			sub.DeliveryMinDays = &minDays
			sub.DeliveryMaxDays = &maxDays
		}
		sub.Items = lineItems(order.ID, sub.ID, seller.ID, group.Items)
		subs = append(subs, sub)
	}
	return order, subs, nil
}

func lineItems(orderID, subOrderID, sellerID uuid.UUID, items []totals.LineItem) []models.OrderLineItem {
	out := make([]models.OrderLineItem, 0, len(items))
	for _, item := range items {
		out = append(out, models.OrderLineItem{
			OrderID:    orderID,
			SubOrderID: subOrderID,
			ProductID:  item.ProductID,
			SellerID:   sellerID,
			Name:       item.Name,
			Quantity:   item.Quantity,
			UnitPrice:  money.Round(item.UnitPrice),
			LineTotal:  money.Round(item.LineTotal()),
			Dimensions: item.Dimensions,
		})
	}
	return out
}
