/*
entries.go - Accounting entry construction

PURPOSE:
  Builds the ledger rows representing a payment operation: at most one entry
  per (instrument, category) pair per registration, zero-amount combinations
  omitted rather than persisted as zero rows.

GROUPING:
  Every entry created by one multi-registration payment call shares one
  paymentGroupId generated fresh for the call; a single-registration payment
  carries none. Manual, operator-entered entries are never grouped - each
  positive instrument amount becomes an independent event-scoped row.

DISCOUNT CARRYING:
  PERFORMANCE entries of a discounted operation carry their proportional
  share of the registration's discount (discount * amount / final) plus the
  effective percentage; DIPLOMAS_MEDALS entries always carry zero discount,
  preserving the invariant original = amount + discountAmount for every live
  PERFORMANCE row.
*/
package billing

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// NewPaymentGroupID generates the correlation key shared by the entries of
// one multi-registration payment call.
func NewPaymentGroupID() string {
	return uuid.NewString()
}

// buildRegistrationEntries creates the entries of one category component of
// one registration. discount is the registration's discount on this
// component (only ever non-zero for PERFORMANCE); final is the component's
// post-discount amount the shares were computed for.
func buildRegistrationEntries(reg Registration, category Category, shares InstrumentShares,
	final, discount decimal.Decimal, groupID, groupName *string) []AccountingEntry {

	var percent decimal.Decimal
	if discount.IsPositive() {
		// Percentage relative to the pre-discount original of this component.
		percent = discount.Div(final.Add(discount)).Mul(decimal.NewFromInt(100))
	}

	regID := reg.ID
	collectiveID := reg.CollectiveID

	var entries []AccountingEntry
	for _, instrument := range InstrumentOrder {
		amount := shares.Get(instrument)
		if !amount.IsPositive() {
			continue
		}

		entryDiscount := decimal.Zero
		entryPercent := decimal.Zero
		if category == CategoryPerformance && discount.IsPositive() && final.IsPositive() {
			entryDiscount = discount.Mul(amount).Div(final)
			entryPercent = percent
		}

		entries = append(entries, AccountingEntry{
			RegistrationID:   &regID,
			CollectiveID:     &collectiveID,
			Amount:           amount,
			DiscountAmount:   entryDiscount,
			DiscountPercent:  entryPercent,
			Instrument:       instrument,
			Category:         category,
			PaymentGroupID:   groupID,
			PaymentGroupName: groupName,
		})
	}
	return entries
}

// BuildManualEntries creates independent, ungrouped entries for an
// operator-entered lump sum: one per positive instrument amount, scoped to
// the event, with no registration and no discount.
func BuildManualEntries(eventID int64, category Category, amounts InstrumentTotals, description string) []AccountingEntry {
	var entries []AccountingEntry
	for _, instrument := range InstrumentOrder {
		amount := amounts.Get(instrument)
		if !amount.IsPositive() {
			continue
		}
		evID := eventID
		entries = append(entries, AccountingEntry{
			EventID:         &evID,
			Amount:          amount,
			DiscountAmount:  decimal.Zero,
			DiscountPercent: decimal.Zero,
			Instrument:      instrument,
			Category:        category,
			Description:     description,
		})
	}
	return entries
}
