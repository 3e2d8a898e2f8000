package enums

import "fmt"

// OutboxAggregateType maps to the aggregate_type enum in Postgres.
type OutboxAggregateType string

const (
	AggregateOrder        OutboxAggregateType = "order"
	AggregateEscrowRecord OutboxAggregateType = "escrow_record"
)

var validAggregateTypes = []OutboxAggregateType{
	AggregateOrder,
	AggregateEscrowRecord,
}

// IsValid reports whether the value matches the canonical aggregate_type enum.
func (a OutboxAggregateType) IsValid() bool {
	for _, candidate := range validAggregateTypes {
		if candidate == a {
			return true
		}
	}
	return false
}

// OutboxEventType maps to the event_type enum in Postgres.
type OutboxEventType string

const (
	EventOrderCreated               OutboxEventType = "order_created"
	EventOrderCancelled             OutboxEventType = "order_cancelled"
	EventCODPaymentCollected        OutboxEventType = "cod_payment_collected"
	EventOrderConfirmationRequested OutboxEventType = "order_confirmation_requested"
	EventEscrowTransitioned         OutboxEventType = "escrow_transitioned"
)

var validOutboxEventTypes = []OutboxEventType{
	EventOrderCreated,
	EventOrderCancelled,
	EventCODPaymentCollected,
	EventOrderConfirmationRequested,
	EventEscrowTransitioned,
}

// IsValid reports whether the value matches the canonical event_type enum.
func (e OutboxEventType) IsValid() bool {
	for _, candidate := range validOutboxEventTypes {
		if candidate == e {
			return true
		}
	}
	return false
}

// ParseOutboxEventType converts raw input into OutboxEventType.
func ParseOutboxEventType(value string) (OutboxEventType, error) {
	for _, candidate := range validOutboxEventTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid event type %q", value)
}

// OutboxDLQErrorReason explains why an outbox row stopped retrying.
type OutboxDLQErrorReason string

const (
	OutboxDLQReasonMaxAttempts  OutboxDLQErrorReason = "max_attempts"
	OutboxDLQReasonNonRetryable OutboxDLQErrorReason = "non_retryable"
)
