package escrow

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/angelmondragon/settlement-engine/pkg/config"
	"github.com/angelmondragon/settlement-engine/pkg/money"
)

// CommissionPolicy picks the platform commission percentage for a seller.
type CommissionPolicy interface {
	Rate(sellerTier string) decimal.Decimal
}

// FlatCommission charges every seller the same rate.
type FlatCommission struct {
	Percent decimal.Decimal
}

func (f FlatCommission) Rate(string) decimal.Decimal {
	return f.Percent
}

// TierCommission looks the rate up by seller tier and falls back to Default.
type TierCommission struct {
	Rates   map[string]decimal.Decimal
	Default decimal.Decimal
}

func (t TierCommission) Rate(sellerTier string) decimal.Decimal {
	if rate, ok := t.Rates[strings.ToLower(strings.TrimSpace(sellerTier))]; ok {
		return rate
	}
	return t.Default
}

// NewCommissionPolicy builds the configured policy.
func NewCommissionPolicy(cfg config.CommissionConfig) (CommissionPolicy, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.Policy)) {
	case "", config.CommissionPolicyFlat:
		return FlatCommission{Percent: cfg.DefaultRate}, nil
	case config.CommissionPolicySellerTier:
		rates := make(map[string]decimal.Decimal, len(cfg.TierRates))
		for tier, rate := range cfg.TierRates {
			rates[strings.ToLower(strings.TrimSpace(tier))] = decimal.NewFromFloat(rate)
		}
		return TierCommission{Rates: rates, Default: cfg.DefaultRate}, nil
	default:
		return nil, fmt.Errorf("unknown commission policy %q", cfg.Policy)
	}
}

// Split divides total into commission and seller share. The shares always add back to total.
func Split(total, rate decimal.Decimal) (commission, seller decimal.Decimal) {
	total = money.Round(total)
	commission = money.Round(money.Clamp(money.Percent(total, rate), money.Zero, total))
	return commission, total.Sub(commission)
}
