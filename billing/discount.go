/*
discount.go - Tiered discount evaluation

PURPOSE:
  Maps an aggregate performance amount onto an event's discount tier list.
  Tiers are stored as raw JSON on the event:

    [{"minAmount":0,"maxAmount":5000,"percentage":5}, ...]

DEGRADATION CONTRACT:
  Tier data is operator-maintained and may be absent or malformed. This
  evaluator NEVER fails: nil/empty/non-array/unparseable input yields a zero
  discount and a warn-level log line. Callers must not treat a zero discount
  as an error.

MATCHING:
  Tiers are scanned in declaration order; the first tier whose inclusive
  [minAmount, maxAmount] range contains the amount wins, even when ranges
  overlap. No match (including amounts below every minimum) means zero.

Discounts only ever apply to the PERFORMANCE category.
*/
package billing

import (
	"encoding/json"

	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
)

// DiscountTier is one inclusive amount range mapped to a percentage.
type DiscountTier struct {
	MinAmount  decimal.Decimal `json:"minAmount"`
	MaxAmount  decimal.Decimal `json:"maxAmount"`
	Percentage decimal.Decimal `json:"percentage"`
}

// Discount is the evaluated result: the absolute amount and the percentage
// of the matching tier.
type Discount struct {
	Amount  decimal.Decimal
	Percent decimal.Decimal
}

// ZeroDiscount is the no-op discount.
func ZeroDiscount() Discount {
	return Discount{Amount: decimal.Zero, Percent: decimal.Zero}
}

// IsZero reports whether the discount changes nothing.
func (d Discount) IsZero() bool { return d.Amount.IsZero() }

// CalculateDiscount evaluates the tier list against an aggregate amount.
// It never returns an error; malformed input degrades to a zero discount.
func CalculateDiscount(amount decimal.Decimal, tiersJSON string) Discount {
	if tiersJSON == "" {
		return ZeroDiscount()
	}

	var tiers []DiscountTier
	if err := json.Unmarshal([]byte(tiersJSON), &tiers); err != nil {
		log.Warn().Err(err).Msg("malformed discount tiers, applying no discount")
		return ZeroDiscount()
	}

	for _, tier := range tiers {
		if amount.GreaterThanOrEqual(tier.MinAmount) && amount.LessThanOrEqual(tier.MaxAmount) {
			return Discount{
				Amount:  amount.Mul(tier.Percentage).Div(decimal.NewFromInt(100)),
				Percent: tier.Percentage,
			}
		}
	}

	return ZeroDiscount()
}
