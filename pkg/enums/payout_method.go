package enums

import "fmt"

// PayoutMethod is the outbound instrument used to release a seller share.
type PayoutMethod string

const (
	PayoutMethodBankTransfer PayoutMethod = "bank_transfer"
	PayoutMethodUPI          PayoutMethod = "upi"
	PayoutMethodCheque       PayoutMethod = "cheque"
	PayoutMethodOther        PayoutMethod = "other"
)

var validPayoutMethods = []PayoutMethod{
	PayoutMethodBankTransfer,
	PayoutMethodUPI,
	PayoutMethodCheque,
	PayoutMethodOther,
}

// String implements fmt.Stringer.
func (p PayoutMethod) String() string {
	return string(p)
}

// IsValid reports whether the value is a known PayoutMethod.
func (p PayoutMethod) IsValid() bool {
	for _, candidate := range validPayoutMethods {
		if candidate == p {
			return true
		}
	}
	return false
}

// ParsePayoutMethod converts raw input into a PayoutMethod.
func ParsePayoutMethod(value string) (PayoutMethod, error) {
	for _, candidate := range validPayoutMethods {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid payout method %q", value)
}
