package payloads

import (
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/settlement-engine/pkg/enums"
)

// OrderCreatedEvent announces a committed order and its seller split.
type OrderCreatedEvent struct {
	OrderID       uuid.UUID           `json:"order_id"`
	OrderNumber   string              `json:"order_number"`
	BuyerID       uuid.UUID           `json:"buyer_id"`
	PaymentMethod enums.PaymentMethod `json:"payment_method"`
	PaymentStatus enums.PaymentStatus `json:"payment_status"`
	TotalAmount   string              `json:"total_amount"`
	SubOrderIDs   []uuid.UUID         `json:"sub_order_ids"`
	EscrowIDs     []uuid.UUID         `json:"escrow_ids"`
}

// OrderCancelledEvent is emitted when every cancellable escrow of an order was cancelled.
type OrderCancelledEvent struct {
	OrderID     uuid.UUID `json:"order_id"`
	BuyerID     uuid.UUID `json:"buyer_id"`
	CancelledAt time.Time `json:"cancelled_at"`
	Reason      string    `json:"reason,omitempty"`
}

// CODPaymentCollectedEvent marks cash collected on delivery.
type CODPaymentCollectedEvent struct {
	OrderID     uuid.UUID `json:"order_id"`
	Amount      string    `json:"amount"`
	CollectedAt time.Time `json:"collected_at"`
}

// OrderConfirmationRequestedEvent asks the notification pipeline to mail the buyer.
type OrderConfirmationRequestedEvent struct {
	OrderID        uuid.UUID `json:"order_id"`
	OrderNumber    string    `json:"order_number"`
	BuyerID        uuid.UUID `json:"buyer_id"`
	Email          string    `json:"email"`
	Name           string    `json:"name"`
	TotalAmount    string    `json:"total_amount"`
	AttachmentName string    `json:"attachment_name,omitempty"`
	AttachmentType string    `json:"attachment_type,omitempty"`
	Attachment     []byte    `json:"attachment,omitempty"`
}

// EscrowTransitionedEvent reports a settlement state change of one escrow record.
type EscrowTransitionedEvent struct {
	EscrowID            uuid.UUID          `json:"escrow_id"`
	OrderID             uuid.UUID          `json:"order_id"`
	SubOrderID          uuid.UUID          `json:"sub_order_id"`
	SellerID            uuid.UUID          `json:"seller_id"`
	From                enums.EscrowStatus `json:"from"`
	To                  enums.EscrowStatus `json:"to"`
	Event               string             `json:"event"`
	SellerAmount        string             `json:"seller_amount"`
	PayoutTransactionID *string            `json:"payout_transaction_id,omitempty"`
	OccurredAt          time.Time          `json:"occurred_at"`
}
