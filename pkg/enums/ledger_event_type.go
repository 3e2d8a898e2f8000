package enums

import "fmt"

// LedgerEventType maps to the ledger_event_type_enum enum in Postgres.
type LedgerEventType string

const (
	LedgerEventEscrowHeld        LedgerEventType = "escrow_held"
	LedgerEventCommissionAccrued LedgerEventType = "commission_accrued"
	LedgerEventPayoutReleased    LedgerEventType = "payout_released"
	LedgerEventEscrowRefunded    LedgerEventType = "escrow_refunded"
	LedgerEventEscrowCancelled   LedgerEventType = "escrow_cancelled"
)

var validLedgerEventTypes = []LedgerEventType{
	LedgerEventEscrowHeld,
	LedgerEventCommissionAccrued,
	LedgerEventPayoutReleased,
	LedgerEventEscrowRefunded,
	LedgerEventEscrowCancelled,
}

// String implements fmt.Stringer.
func (t LedgerEventType) String() string {
	return string(t)
}

// IsValid reports whether the value is a known LedgerEventType.
func (t LedgerEventType) IsValid() bool {
	for _, candidate := range validLedgerEventTypes {
		if candidate == t {
			return true
		}
	}
	return false
}

// ParseLedgerEventType converts raw input into a LedgerEventType.
func ParseLedgerEventType(value string) (LedgerEventType, error) {
	for _, candidate := range validLedgerEventTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid ledger event type %q", value)
}
