package main

import (
	"github.com/angelmondragon/settlement-engine/pkg/db/models"
	"github.com/angelmondragon/settlement-engine/pkg/enums"
)

const (
	minEscrowAttempts       = 30
	maxConfirmationAttempts = 5
)

// deliveryPolicy decides how hard the relay tries before dead-lettering a row.
type deliveryPolicy struct {
	// attempts is the publish ceiling; reaching it dead-letters the row.
	attempts int
	// sequenced rows block later rows of the same aggregate in a batch after a failure.
	sequenced bool
}

// policyBook maps event types to delivery policies.
type policyBook struct {
	byType   map[enums.OutboxEventType]deliveryPolicy
	fallback deliveryPolicy
}

// newPolicyBook derives per-event policies from the configured attempt budget.
// Escrow transitions feed payout reconciliation, so they get the longest runway
// and strict per-record ordering. Order lifecycle events stay ordered per order.
// Confirmation requests only drive buyer notifications and give up early.
func newPolicyBook(base int) policyBook {
	if base <= 0 {
		base = defaultMaxAttempts
	}
	escrowAttempts := base * 3
	if escrowAttempts < minEscrowAttempts {
		escrowAttempts = minEscrowAttempts
	}
	confirmationAttempts := base
	if confirmationAttempts > maxConfirmationAttempts {
		confirmationAttempts = maxConfirmationAttempts
	}

	orderStream := deliveryPolicy{attempts: base, sequenced: true}
	return policyBook{
		byType: map[enums.OutboxEventType]deliveryPolicy{
			enums.EventEscrowTransitioned:         {attempts: escrowAttempts, sequenced: true},
			enums.EventOrderCreated:               orderStream,
			enums.EventOrderCancelled:             orderStream,
			enums.EventCODPaymentCollected:        orderStream,
			enums.EventOrderConfirmationRequested: {attempts: confirmationAttempts},
		},
		fallback: deliveryPolicy{attempts: base},
	}
}

func (b policyBook) forEvent(eventType enums.OutboxEventType) deliveryPolicy {
	if p, ok := b.byType[eventType]; ok {
		return p
	}
	return b.fallback
}

// ceiling is the largest attempt budget; rows below it stay eligible for fetch.
func (b policyBook) ceiling() int {
	max := b.fallback.attempts
	for _, p := range b.byType {
		if p.attempts > max {
			max = p.attempts
		}
	}
	return max
}

// streamKey identifies the ordered stream a row belongs to. Rows of the same
// aggregate share a Pub/Sub ordering key and a hold slot in the batch.
func streamKey(row models.OutboxEvent) string {
	switch row.AggregateType {
	case enums.AggregateEscrowRecord, enums.AggregateOrder:
		return string(row.AggregateType) + ":" + row.AggregateID.String()
	default:
		return ""
	}
}
