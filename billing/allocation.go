/*
allocation.go - Proportional fund distribution with exact rounding

PURPOSE:
  Splits a target monetary amount across weighted buckets so that the shares
  sum EXACTLY to the target. Used twice per payment:

    1. Across registrations: the group discount is distributed proportionally
       to each registration's share of the pre-discount performance total.
    2. Within a registration, across instruments: cash and card shares are
       computed by rounding, and TRANSFER - the last instrument in the fixed
       order cash, card, transfer - absorbs the rounding remainder.

  The remainder-to-last-bucket rule is the load-bearing rounding policy of
  the whole ledger: because transfer is derived as final - cash - card, the
  three instrument amounts of a registration always sum exactly to its final
  allocated amount, and no currency is lost or created.

ROUNDING:
  Instrument shares round to whole currency units, half away from zero, and
  are capped at the amount still unassigned so no share ever goes negative.
*/
package billing

import "github.com/shopspring/decimal"

// InstrumentShares is the allocated per-instrument amounts for one component
// of one registration.
type InstrumentShares struct {
	Cash     decimal.Decimal
	Card     decimal.Decimal
	Transfer decimal.Decimal
}

// Total returns cash + card + transfer. By construction of
// SplitAcrossInstruments this equals the component's final amount exactly.
func (s InstrumentShares) Total() decimal.Decimal {
	return s.Cash.Add(s.Card).Add(s.Transfer)
}

// Get returns the share of a single instrument.
func (s InstrumentShares) Get(i Instrument) decimal.Decimal {
	switch i {
	case InstrumentCash:
		return s.Cash
	case InstrumentCard:
		return s.Card
	case InstrumentTransfer:
		return s.Transfer
	}
	return decimal.Zero
}

// SplitAcrossInstruments distributes final across the declared instrument
// totals of the whole operation, proportionally to final/operationTotal.
//
// Cash and card are rounded to whole currency units and capped at the amount
// still unassigned; transfer is derived as the remainder so the shares are
// non-negative and sum exactly to final. A zero operationTotal yields
// all-zero shares.
func SplitAcrossInstruments(final decimal.Decimal, declared InstrumentTotals, operationTotal decimal.Decimal) InstrumentShares {
	if operationTotal.IsZero() || final.IsZero() {
		return InstrumentShares{Cash: decimal.Zero, Card: decimal.Zero, Transfer: decimal.Zero}
	}

	proportion := final.Div(operationTotal)
	cash := declared.Cash.Mul(proportion).Round(0)
	// Rounding up can push a share past the component amount; cap so the
	// derived transfer never goes negative.
	if cash.GreaterThan(final) {
		cash = final
	}
	card := declared.Card.Mul(proportion).Round(0)
	if remaining := final.Sub(cash); card.GreaterThan(remaining) {
		card = remaining
	}
	transfer := final.Sub(cash).Sub(card)

	return InstrumentShares{Cash: cash, Card: card, Transfer: transfer}
}

// ProportionalShare returns total * part / whole, the share of a pot owed to
// one weight of a weight vector. A zero whole yields zero.
func ProportionalShare(total, part, whole decimal.Decimal) decimal.Decimal {
	if whole.IsZero() {
		return decimal.Zero
	}
	return total.Mul(part).Div(whole)
}
