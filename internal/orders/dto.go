package orders

import (
	"github.com/google/uuid"

	"github.com/angelmondragon/settlement-engine/internal/checkout"
	"github.com/angelmondragon/settlement-engine/pkg/db/models"
	"github.com/angelmondragon/settlement-engine/pkg/enums"
)

// PlaceInput carries the payment facts an order is committed with.
type PlaceInput struct {
	Session          checkout.Session
	PaymentStatus    enums.PaymentStatus
	Currency         string
	AttemptID        *uuid.UUID
	GatewayOrderID   *string
	GatewayPaymentID *string
}

// Placement is the committed order graph.
type Placement struct {
	Order     *models.Order
	SubOrders []models.SubOrder
	Escrow    []models.EscrowRecord
}

// SignalResult reports what an external fulfillment or payment signal changed.
type SignalResult struct {
	OrderID           uuid.UUID           `json:"order_id"`
	OrderStatus       enums.OrderStatus   `json:"order_status"`
	PaymentStatus     enums.PaymentStatus `json:"payment_status"`
	ApprovalRequested []uuid.UUID         `json:"approval_requested,omitempty"`
	Cancelled         []uuid.UUID         `json:"cancelled,omitempty"`
	Skipped           []uuid.UUID         `json:"skipped,omitempty"`
}
