package escrow

import (
	"fmt"
	"strings"
	"time"

	"github.com/angelmondragon/settlement-engine/pkg/config"
	"github.com/angelmondragon/settlement-engine/pkg/db/models"
	"github.com/angelmondragon/settlement-engine/pkg/enums"
)

const (
	TriggerFulfillment = "fulfillment"
	TriggerHoldPeriod  = "hold_period"
)

// ApprovalTrigger decides when a record held in escrow moves to admin approval.
type ApprovalTrigger interface {
	Name() string
	// OnDelivery reports whether a delivery confirmation requests approval.
	OnDelivery() bool
	// Due reports whether the sweeper should request approval for rec.
	Due(rec models.EscrowRecord, now time.Time) bool
}

// FulfillmentTrigger requests approval when delivery is confirmed.
type FulfillmentTrigger struct{}

func (FulfillmentTrigger) Name() string                            { return TriggerFulfillment }
func (FulfillmentTrigger) OnDelivery() bool                        { return true }
func (FulfillmentTrigger) Due(models.EscrowRecord, time.Time) bool { return false }

// HoldPeriodTrigger requests approval once a record has been held for Hold.
type HoldPeriodTrigger struct {
	Hold time.Duration
}

func (HoldPeriodTrigger) Name() string     { return TriggerHoldPeriod }
func (HoldPeriodTrigger) OnDelivery() bool { return false }

func (h HoldPeriodTrigger) Due(rec models.EscrowRecord, now time.Time) bool {
	if rec.Status != enums.EscrowStatusEscrow || !PaymentSettled(rec) {
		return false
	}
	return !now.Before(rec.EscrowActivatedAt.Add(h.Hold))
}

// PaymentSettled reports whether money for the record is in hand. Cash on delivery
// records wait for the collection signal.
func PaymentSettled(rec models.EscrowRecord) bool {
	return rec.PaymentMethod != enums.PaymentMethodCOD || rec.PaymentCollectedAt != nil
}

// NewApprovalTrigger builds the configured trigger.
func NewApprovalTrigger(cfg config.EscrowConfig) (ApprovalTrigger, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.ApprovalTrigger)) {
	case "", TriggerFulfillment:
		return FulfillmentTrigger{}, nil
	case TriggerHoldPeriod:
		if cfg.HoldPeriod <= 0 {
			return nil, fmt.Errorf("hold period must be positive")
		}
		return HoldPeriodTrigger{Hold: cfg.HoldPeriod}, nil
	default:
		return nil, fmt.Errorf("unknown approval trigger %q", cfg.ApprovalTrigger)
	}
}
