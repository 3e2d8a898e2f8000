package escrow

import (
	"fmt"

	"github.com/angelmondragon/settlement-engine/pkg/enums"
)

// Event is an action applied to an escrow record.
type Event string

const (
	EventRequestApproval  Event = "request_approval"
	EventRelease          Event = "release"
	EventRefund           Event = "refund"
	EventDispute          Event = "dispute"
	EventResolveForSeller Event = "resolve_for_seller"
	EventResolveForBuyer  Event = "resolve_for_buyer"
	EventCancel           Event = "cancel"
)

type transition struct {
	from []enums.EscrowStatus
	to   enums.EscrowStatus
}

// transitions is the complete set of legal moves. Anything absent is rejected.
var transitions = map[Event]transition{
	EventRequestApproval: {
		from: []enums.EscrowStatus{enums.EscrowStatusEscrow},
		to:   enums.EscrowStatusAdminApproval,
	},
	EventRelease: {
		from: []enums.EscrowStatus{enums.EscrowStatusAdminApproval},
		to:   enums.EscrowStatusReleased,
	},
	EventRefund: {
		from: []enums.EscrowStatus{enums.EscrowStatusEscrow, enums.EscrowStatusAdminApproval},
		to:   enums.EscrowStatusRefunded,
	},
	EventDispute: {
		from: []enums.EscrowStatus{enums.EscrowStatusEscrow, enums.EscrowStatusAdminApproval},
		to:   enums.EscrowStatusDisputed,
	},
	EventResolveForSeller: {
		from: []enums.EscrowStatus{enums.EscrowStatusDisputed},
		to:   enums.EscrowStatusAdminApproval,
	},
	EventResolveForBuyer: {
		from: []enums.EscrowStatus{enums.EscrowStatusDisputed},
		to:   enums.EscrowStatusRefunded,
	},
	EventCancel: {
		from: []enums.EscrowStatus{enums.EscrowStatusEscrow},
		to:   enums.EscrowStatusCancelled,
	},
}

// InvalidTransitionError reports an event that is not allowed from the current status.
type InvalidTransitionError struct {
	From  enums.EscrowStatus
	Event Event
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("action no longer available: cannot %s from %s", e.Event, e.From)
}

// IsValid reports whether the event is known.
func (e Event) IsValid() bool {
	_, ok := transitions[e]
	return ok
}

// Next returns the status reached by applying event to from.
func Next(from enums.EscrowStatus, event Event) (enums.EscrowStatus, error) {
	t, ok := transitions[event]
	if !ok || from.IsTerminal() {
		return "", &InvalidTransitionError{From: from, Event: event}
	}
	for _, allowed := range t.from {
		if allowed == from {
			return t.to, nil
		}
	}
	return "", &InvalidTransitionError{From: from, Event: event}
}

// Allowed lists the events that may be applied from status, in a stable order.
func Allowed(from enums.EscrowStatus) []Event {
	order := []Event{
		EventRequestApproval,
		EventRelease,
		EventRefund,
		EventDispute,
		EventResolveForSeller,
		EventResolveForBuyer,
		EventCancel,
	}
	out := []Event{}
	for _, event := range order {
		if _, err := Next(from, event); err == nil {
			out = append(out, event)
		}
	}
	return out
}
