package enums

import "fmt"

// PaymentAttemptStatus maps to payment_attempt_status_enum in Postgres.
type PaymentAttemptStatus string

const (
	PaymentAttemptInitiated           PaymentAttemptStatus = "initiated"
	PaymentAttemptGatewayOrderCreated PaymentAttemptStatus = "gateway_order_created"
	PaymentAttemptAwaitingUserAction  PaymentAttemptStatus = "awaiting_user_action"
	PaymentAttemptVerified            PaymentAttemptStatus = "verified"
	PaymentAttemptFailed              PaymentAttemptStatus = "failed"
	PaymentAttemptCancelled           PaymentAttemptStatus = "cancelled"
	PaymentAttemptCommitted           PaymentAttemptStatus = "committed"
)

var validPaymentAttemptStatuses = []PaymentAttemptStatus{
	PaymentAttemptInitiated,
	PaymentAttemptGatewayOrderCreated,
	PaymentAttemptAwaitingUserAction,
	PaymentAttemptVerified,
	PaymentAttemptFailed,
	PaymentAttemptCancelled,
	PaymentAttemptCommitted,
}

// String implements fmt.Stringer.
func (s PaymentAttemptStatus) String() string {
	return string(s)
}

// IsValid reports whether the value is a known PaymentAttemptStatus.
func (s PaymentAttemptStatus) IsValid() bool {
	for _, candidate := range validPaymentAttemptStatuses {
		if candidate == s {
			return true
		}
	}
	return false
}

// ParsePaymentAttemptStatus converts raw input into a PaymentAttemptStatus.
func ParsePaymentAttemptStatus(value string) (PaymentAttemptStatus, error) {
	for _, candidate := range validPaymentAttemptStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid payment attempt status %q", value)
}

// IsFinal reports whether the attempt can no longer change.
func (s PaymentAttemptStatus) IsFinal() bool {
	switch s {
	case PaymentAttemptVerified, PaymentAttemptFailed, PaymentAttemptCancelled, PaymentAttemptCommitted:
		return true
	default:
		return false
	}
}
