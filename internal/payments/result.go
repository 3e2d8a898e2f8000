package payments

import (
	"github.com/google/uuid"

	"github.com/angelmondragon/settlement-engine/internal/totals"
	"github.com/angelmondragon/settlement-engine/pkg/db/models"
)

// GatewayResult is the outcome the buyer's payment widget reports back. It is one
// of Verified, Failed or Cancelled.
type GatewayResult interface {
	isGatewayResult()
}

// Verified claims a successful payment. It only commits an order once the
// signature checks out against the gateway order.
type Verified struct {
	BuyerID          uuid.UUID
	GatewayOrderID   string
	GatewayPaymentID string
	Signature        string
}

// Failed reports a payment the gateway declined.
type Failed struct {
	BuyerID          uuid.UUID
	AttemptID        uuid.UUID
	GatewayPaymentID string
	Reason           string
}

// Cancelled reports a buyer who closed the payment widget.
type Cancelled struct {
	BuyerID   uuid.UUID
	AttemptID uuid.UUID
	Reason    string
}

func (Verified) isGatewayResult()  {}
func (Failed) isGatewayResult()    {}
func (Cancelled) isGatewayResult() {}

// BeginResult is what the client needs to open the gateway widget.
type BeginResult struct {
	AttemptID      uuid.UUID     `json:"attempt_id"`
	GatewayOrderID string        `json:"gateway_order_id"`
	KeyID          string        `json:"key_id"`
	AmountMinor    int64         `json:"amount"`
	Currency       string        `json:"currency"`
	Totals         totals.Totals `json:"totals"`
}

// Warning is a post-commit side effect that did not complete.
type Warning struct {
	Step    string `json:"step"`
	Message string `json:"message"`
}

// CaptureResult is a committed order. Replayed is set when the order already
// existed and no side effects ran.
type CaptureResult struct {
	Order    *models.Order `json:"order"`
	Warnings []Warning     `json:"warnings,omitempty"`
	Replayed bool          `json:"replayed"`
}
