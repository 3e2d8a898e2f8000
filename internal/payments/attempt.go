package payments

import (
	"github.com/angelmondragon/settlement-engine/pkg/enums"
	pkgerrors "github.com/angelmondragon/settlement-engine/pkg/errors"
)

// attemptTransitions lists the statuses each attempt status may move to.
var attemptTransitions = map[enums.PaymentAttemptStatus][]enums.PaymentAttemptStatus{
	enums.PaymentAttemptInitiated: {
		enums.PaymentAttemptGatewayOrderCreated,
		enums.PaymentAttemptCommitted,
		enums.PaymentAttemptFailed,
	},
	enums.PaymentAttemptGatewayOrderCreated: {
		enums.PaymentAttemptAwaitingUserAction,
		enums.PaymentAttemptFailed,
	},
	enums.PaymentAttemptAwaitingUserAction: {
		enums.PaymentAttemptVerified,
		enums.PaymentAttemptFailed,
		enums.PaymentAttemptCancelled,
	},
}

// CanTransition reports whether an attempt may move from one status to another.
func CanTransition(from, to enums.PaymentAttemptStatus) bool {
	for _, candidate := range attemptTransitions[from] {
		if candidate == to {
			return true
		}
	}
	return false
}

func checkTransition(from, to enums.PaymentAttemptStatus) error {
	if CanTransition(from, to) {
		return nil
	}
	return pkgerrors.New(pkgerrors.CodeInternal, "invalid payment attempt transition").
		WithDetails(map[string]any{"from": from, "to": to})
}
