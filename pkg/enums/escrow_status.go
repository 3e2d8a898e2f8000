package enums

import "fmt"

// EscrowStatus maps to escrow_status_enum in Postgres.
type EscrowStatus string

const (
	EscrowStatusEscrow        EscrowStatus = "escrow"
	EscrowStatusAdminApproval EscrowStatus = "admin_approval"
	EscrowStatusReleased      EscrowStatus = "released"
	EscrowStatusRefunded      EscrowStatus = "refunded"
	EscrowStatusCancelled     EscrowStatus = "cancelled"
	EscrowStatusDisputed      EscrowStatus = "disputed"
)

var validEscrowStatuses = []EscrowStatus{
	EscrowStatusEscrow,
	EscrowStatusAdminApproval,
	EscrowStatusReleased,
	EscrowStatusRefunded,
	EscrowStatusCancelled,
	EscrowStatusDisputed,
}

// String implements fmt.Stringer.
func (s EscrowStatus) String() string {
	return string(s)
}

// IsValid reports whether the value is a known EscrowStatus.
func (s EscrowStatus) IsValid() bool {
	for _, candidate := range validEscrowStatuses {
		if candidate == s {
			return true
		}
	}
	return false
}

// ParseEscrowStatus converts raw input into a EscrowStatus.
func ParseEscrowStatus(value string) (EscrowStatus, error) {
	for _, candidate := range validEscrowStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid escrow status %q", value)
}

// IsTerminal reports whether no further transition may leave this status.
func (s EscrowStatus) IsTerminal() bool {
	switch s {
	case EscrowStatusReleased, EscrowStatusRefunded, EscrowStatusCancelled:
		return true
	default:
		return false
	}
}
