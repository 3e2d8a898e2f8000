package escrow

import (
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/settlement-engine/pkg/enums"
	pkgerrors "github.com/angelmondragon/settlement-engine/pkg/errors"
	"github.com/angelmondragon/settlement-engine/pkg/pagination"
)

// Actor is who applied a transition. Nil ID means a system signal.
type Actor struct {
	ID   *uuid.UUID
	Role enums.Role
}

// ReleaseInput is the administrator's payout confirmation.
type ReleaseInput struct {
	TransactionID string
	PaymentMethod enums.PayoutMethod
	Note          string
}

func (r ReleaseInput) validate() error {
	if strings.TrimSpace(r.TransactionID) == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "transaction id is required to release a payout").
			WithDetails(map[string]any{"field": "transaction_id"})
	}
	if !r.PaymentMethod.IsValid() {
		return pkgerrors.New(pkgerrors.CodeValidation, "payout payment method is required").
			WithDetails(map[string]any{"field": "payment_method"})
	}
	return nil
}

// Resolution is how an administrator settles a dispute.
type Resolution string

const (
	ResolutionSeller Resolution = "seller"
	ResolutionBuyer  Resolution = "buyer"
)

// Filter narrows the escrow listing. Zero values are ignored.
type Filter struct {
	Status   enums.EscrowStatus
	SellerID *uuid.UUID
	OrderID  *uuid.UUID
	From     *time.Time
	To       *time.Time
	Search   string
	pagination.Params
}
