package billing

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func TestBuildRegistrationEntries_SkipsZeroShares(t *testing.T) {
	reg := Registration{ID: 7, CollectiveID: 3}
	shares := InstrumentShares{Cash: d("100"), Card: decimal.Zero, Transfer: d("50")}

	entries := buildRegistrationEntries(reg, CategoryPerformance, shares, d("150"), decimal.Zero, nil, nil)

	require.Len(t, entries, 2, "zero card share must not produce a row")
	assert.Equal(t, InstrumentCash, entries[0].Instrument)
	assert.Equal(t, InstrumentTransfer, entries[1].Instrument)
	require.NotNil(t, entries[0].RegistrationID)
	assert.Equal(t, int64(7), *entries[0].RegistrationID)
	require.NotNil(t, entries[0].CollectiveID)
	assert.Equal(t, int64(3), *entries[0].CollectiveID)
}

func TestBuildRegistrationEntries_DiscountDistribution(t *testing.T) {
	// GIVEN: A 150 final amount paid 100 cash / 50 transfer, with 50 discount
	// THEN: Each entry carries discount * amount / final and the percentage
	//       relative to the 200 pre-discount original

	reg := Registration{ID: 7, CollectiveID: 3}
	shares := InstrumentShares{Cash: d("100"), Transfer: d("50")}
	discount := d("50")
	final := d("150")

	entries := buildRegistrationEntries(reg, CategoryPerformance, shares, final, discount, nil, nil)
	require.Len(t, entries, 2)

	wantCashDiscount := discount.Mul(d("100")).Div(final)
	assert.True(t, entries[0].DiscountAmount.Equal(wantCashDiscount), "got %s", entries[0].DiscountAmount)
	assert.True(t, entries[0].DiscountPercent.Equal(d("25")), "50 of 200 original, got %s", entries[0].DiscountPercent)

	// The per-entry discounts sum back to the registration's discount.
	total := entries[0].DiscountAmount.Add(entries[1].DiscountAmount)
	assert.True(t, total.Equal(discount), "got %s", total)

	// original = amount + discountAmount reconstructs the pre-discount split
	original := entries[0].OriginalAmount().Add(entries[1].OriginalAmount())
	assert.True(t, original.Equal(d("200")), "got %s", original)
}

func TestBuildRegistrationEntries_DiplomasNeverDiscounted(t *testing.T) {
	reg := Registration{ID: 7, CollectiveID: 3}
	shares := InstrumentShares{Cash: d("300")}

	entries := buildRegistrationEntries(reg, CategoryDiplomasMedals, shares, d("300"), d("30"), nil, nil)

	require.Len(t, entries, 1)
	assert.True(t, entries[0].DiscountAmount.IsZero())
	assert.True(t, entries[0].DiscountPercent.IsZero())
}

func TestBuildRegistrationEntries_GroupPropagation(t *testing.T) {
	reg := Registration{ID: 7, CollectiveID: 3}
	groupID := NewPaymentGroupID()
	groupName := "Studio Aurora"
	shares := InstrumentShares{Cash: d("100")}

	entries := buildRegistrationEntries(reg, CategoryPerformance, shares, d("100"), decimal.Zero, &groupID, &groupName)

	require.Len(t, entries, 1)
	require.NotNil(t, entries[0].PaymentGroupID)
	assert.Equal(t, groupID, *entries[0].PaymentGroupID)
	require.NotNil(t, entries[0].PaymentGroupName)
	assert.Equal(t, groupName, *entries[0].PaymentGroupName)
}

func TestBuildManualEntries(t *testing.T) {
	amounts := InstrumentTotals{Cash: d("250"), Transfer: d("100")}

	entries := BuildManualEntries(42, CategoryPerformance, amounts, "door sales")

	require.Len(t, entries, 2)
	for _, e := range entries {
		assert.Nil(t, e.RegistrationID, "manual entries are event-scoped")
		assert.Nil(t, e.PaymentGroupID, "manual entries are never grouped")
		require.NotNil(t, e.EventID)
		assert.Equal(t, int64(42), *e.EventID)
		assert.Equal(t, "door sales", e.Description)
	}
}

func TestNewPaymentGroupID_Unique(t *testing.T) {
	assert.NotEqual(t, NewPaymentGroupID(), NewPaymentGroupID())
}
