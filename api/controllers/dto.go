package controllers

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/settlement-engine/internal/payments"
	"github.com/angelmondragon/settlement-engine/pkg/db/models"
	"github.com/angelmondragon/settlement-engine/pkg/enums"
)

type orderResponse struct {
	ID            uuid.UUID           `json:"id"`
	OrderNumber   string              `json:"order_number"`
	Status        enums.OrderStatus   `json:"status"`
	PaymentMethod enums.PaymentMethod `json:"payment_method"`
	PaymentStatus enums.PaymentStatus `json:"payment_status"`
	Currency      string              `json:"currency"`
	Subtotal      decimal.Decimal     `json:"subtotal"`
	Discount      decimal.Decimal     `json:"discount"`
	ShippingCost  decimal.Decimal     `json:"shipping_cost"`
	TaxableAmount decimal.Decimal     `json:"taxable_amount"`
	GSTMode       enums.GSTMode       `json:"gst_mode"`
	CGST          decimal.Decimal     `json:"cgst"`
	SGST          decimal.Decimal     `json:"sgst"`
	IGST          decimal.Decimal     `json:"igst"`
	TotalAmount   decimal.Decimal     `json:"total_amount"`
	PaidAt        *time.Time          `json:"paid_at,omitempty"`
	SubOrders     []subOrderResponse  `json:"sub_orders"`
	CreatedAt     time.Time           `json:"created_at"`
}

type subOrderResponse struct {
	ID          uuid.UUID            `json:"id"`
	SellerID    uuid.UUID            `json:"seller_id"`
	SellerName  string               `json:"seller_name"`
	Status      enums.SubOrderStatus `json:"status"`
	GSTMode     enums.GSTMode        `json:"gst_mode"`
	TotalAmount decimal.Decimal      `json:"total_amount"`
	Items       []lineItemResponse   `json:"items"`
}

type lineItemResponse struct {
	ProductID uuid.UUID       `json:"product_id"`
	Name      string          `json:"name"`
	Quantity  int             `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unit_price"`
	LineTotal decimal.Decimal `json:"line_total"`
}

func newOrderResponse(order *models.Order) orderResponse {
	resp := orderResponse{
		ID:            order.ID,
		OrderNumber:   order.OrderNumber,
		Status:        order.Status,
		PaymentMethod: order.PaymentMethod,
		PaymentStatus: order.PaymentStatus,
		Currency:      order.Currency,
		Subtotal:      order.Subtotal,
		Discount:      order.Discount,
		ShippingCost:  order.ShippingCost,
		TaxableAmount: order.TaxableAmount,
		GSTMode:       order.GSTMode,
		CGST:          order.CGST,
		SGST:          order.SGST,
		IGST:          order.IGST,
		TotalAmount:   order.TotalAmount,
		PaidAt:        order.PaidAt,
		SubOrders:     make([]subOrderResponse, 0, len(order.SubOrders)),
		CreatedAt:     order.CreatedAt,
	}
	for _, sub := range order.SubOrders {
		items := make([]lineItemResponse, 0, len(sub.Items))
		for _, item := range sub.Items {
			items = append(items, lineItemResponse{
				ProductID: item.ProductID,
				Name:      item.Name,
				Quantity:  item.Quantity,
				UnitPrice: item.UnitPrice,
				LineTotal: item.LineTotal,
			})
		}
		resp.SubOrders = append(resp.SubOrders, subOrderResponse{
			ID:          sub.ID,
			SellerID:    sub.SellerID,
			SellerName:  sub.SellerName,
			Status:      sub.Status,
			GSTMode:     sub.GSTMode,
			TotalAmount: sub.TotalAmount,
			Items:       items,
		})
	}
	return resp
}

type captureResponse struct {
	Order    orderResponse `json:"order"`
	Replayed bool          `json:"replayed,omitempty"`
}

func warningMessages(warnings []payments.Warning) []string {
	if len(warnings) == 0 {
		return nil
	}
	out := make([]string, len(warnings))
	for i, w := range warnings {
		out[i] = w.Step + ": " + w.Message
	}
	return out
}

type escrowResponse struct {
	ID                  uuid.UUID           `json:"id"`
	OrderID             uuid.UUID           `json:"order_id"`
	SubOrderID          uuid.UUID           `json:"sub_order_id"`
	OrderNumber         string              `json:"order_number"`
	SellerID            uuid.UUID           `json:"seller_id"`
	SellerName          string              `json:"seller_name"`
	PaymentMethod       enums.PaymentMethod `json:"payment_method"`
	Status              enums.EscrowStatus  `json:"status"`
	TotalAmount         decimal.Decimal     `json:"total_amount"`
	CommissionRate      decimal.Decimal     `json:"commission_rate"`
	CommissionAmount    decimal.Decimal     `json:"commission_amount"`
	SellerAmount        decimal.Decimal     `json:"seller_amount"`
	EscrowActivatedAt   time.Time           `json:"escrow_activated_at"`
	PaymentCollectedAt  *time.Time          `json:"payment_collected_at,omitempty"`
	ApprovalRequestedAt *time.Time          `json:"approval_requested_at,omitempty"`
	ReleasedAt          *time.Time          `json:"released_at,omitempty"`
	RefundedAt          *time.Time          `json:"refunded_at,omitempty"`
	CancelledAt         *time.Time          `json:"cancelled_at,omitempty"`
	DisputedAt          *time.Time          `json:"disputed_at,omitempty"`
	PayoutMethod        *enums.PayoutMethod `json:"payout_method,omitempty"`
	PayoutTransactionID *string             `json:"payout_transaction_id,omitempty"`
	AdminNote           *string             `json:"admin_note,omitempty"`
	DisputeReason       *string             `json:"dispute_reason,omitempty"`
	RefundReason        *string             `json:"refund_reason,omitempty"`
	Version             int                 `json:"version"`
	CreatedAt           time.Time           `json:"created_at"`
}

func newEscrowResponse(rec *models.EscrowRecord) escrowResponse {
	return escrowResponse{
		ID:                  rec.ID,
		OrderID:             rec.OrderID,
		SubOrderID:          rec.SubOrderID,
		OrderNumber:         rec.OrderNumber,
		SellerID:            rec.SellerID,
		SellerName:          rec.SellerName,
		PaymentMethod:       rec.PaymentMethod,
		Status:              rec.Status,
		TotalAmount:         rec.TotalAmount,
		CommissionRate:      rec.CommissionRate,
		CommissionAmount:    rec.CommissionAmount,
		SellerAmount:        rec.SellerAmount,
		EscrowActivatedAt:   rec.EscrowActivatedAt,
		PaymentCollectedAt:  rec.PaymentCollectedAt,
		ApprovalRequestedAt: rec.ApprovalRequestedAt,
		ReleasedAt:          rec.ReleasedAt,
		RefundedAt:          rec.RefundedAt,
		CancelledAt:         rec.CancelledAt,
		DisputedAt:          rec.DisputedAt,
		PayoutMethod:        rec.PayoutMethod,
		PayoutTransactionID: rec.PayoutTransactionID,
		AdminNote:           rec.AdminNote,
		DisputeReason:       rec.DisputeReason,
		RefundReason:        rec.RefundReason,
		Version:             rec.Version,
		CreatedAt:           rec.CreatedAt,
	}
}
