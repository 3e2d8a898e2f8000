package checkout

import (
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"github.com/angelmondragon/settlement-engine/internal/totals"
	"github.com/angelmondragon/settlement-engine/pkg/enums"
	"github.com/angelmondragon/settlement-engine/pkg/types"
)

// Seller is the seller identity captured when the session was priced.
type Seller struct {
	ID            uuid.UUID `json:"id"`
	Name          string    `json:"name"`
	Email         string    `json:"email"`
	Tier          string    `json:"tier,omitempty"`
	State         string    `json:"state"`
	PickupPincode string    `json:"pickup_pincode,omitempty"`
}

// SellerGroup holds one seller's priced lines.
type SellerGroup struct {
	Seller Seller            `json:"seller"`
	Items  []totals.LineItem `json:"items"`
}

// Session is the serializable checkout state passed from quote to capture. It is
// frozen onto the payment attempt so the order is built from exactly what was charged.
type Session struct {
	BuyerID         uuid.UUID              `json:"buyer_id"`
	Contact         types.ContactSnapshot  `json:"contact"`
	ShippingAddress types.Address          `json:"shipping_address"`
	Billing         *types.BillingSnapshot `json:"billing,omitempty"`
	Flow            enums.CheckoutFlow     `json:"flow"`
	PaymentMethod   enums.PaymentMethod    `json:"payment_method"`
	CouponCode      string                 `json:"coupon_code,omitempty"`
	Groups          []SellerGroup          `json:"groups"`
	Totals          totals.Totals          `json:"totals"`
}

// TotalsRequest is the calculator input for the session.
func (s Session) TotalsRequest() totals.Request {
	groups := make([]totals.GroupRequest, len(s.Groups))
	for i, g := range s.Groups {
		groups[i] = totals.GroupRequest{
			SellerID:      g.Seller.ID,
			SellerState:   g.Seller.State,
			PickupPincode: g.Seller.PickupPincode,
			Items:         g.Items,
		}
	}
	return totals.Request{
		Groups:        groups,
		CouponCode:    s.CouponCode,
		Flow:          s.Flow,
		PaymentMethod: s.PaymentMethod,
		BuyerState:    s.ShippingAddress.State,
		DropPincode:   s.ShippingAddress.PostalCode,
	}
}

// SellerByID returns the seller snapshot of a group.
func (s Session) SellerByID(id uuid.UUID) (Seller, bool) {
	for _, g := range s.Groups {
		if g.Seller.ID == id {
			return g.Seller, true
		}
	}
	return Seller{}, false
}

// ProductIDs lists every product in the session.
func (s Session) ProductIDs() []uuid.UUID {
	ids := []uuid.UUID{}
	for _, g := range s.Groups {
		for _, item := range g.Items {
			ids = append(ids, item.ProductID)
		}
	}
	return ids
}

func (s Session) Marshal() (json.RawMessage, error) {
	raw, err := json.Marshal(s)
	if err != nil {
		return nil, fmt.Errorf("marshal checkout session: %w", err)
	}
	return raw, nil
}

func UnmarshalSession(raw []byte) (Session, error) {
	var s Session
	if err := json.Unmarshal(raw, &s); err != nil {
		return Session{}, fmt.Errorf("unmarshal checkout session: %w", err)
	}
	return s, nil
}
