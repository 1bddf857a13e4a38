package billing_test

import (
	"context"
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quickstep/payment-engine/billing"
	"github.com/quickstep/payment-engine/store/sqlite"
)

// =============================================================================
// TEST SETUP
// =============================================================================

func newTestService(t *testing.T) (*billing.Service, *sqlite.Store) {
	store, err := sqlite.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	return billing.NewService(store), store
}

// seedEvent creates an event with 150/100 diploma/medal prices and the given
// tier JSON, plus a 500-per-participant pricing row for nomination 1.
func seedEvent(t *testing.T, store *sqlite.Store, tiers string) int64 {
	t.Helper()
	ctx := context.Background()

	diploma, medal := amount("150"), amount("100")
	eventID, err := store.CreateEvent(ctx, billing.Event{
		Name:            "Spring Cup",
		PricePerDiploma: &diploma,
		PricePerMedal:   &medal,
		DiscountTiers:   tiers,
	})
	require.NoError(t, err)

	require.NoError(t, store.SetEventPricing(ctx, billing.EventPricing{
		EventID:             eventID,
		NominationID:        1,
		PricePerParticipant: amount("500"),
	}))
	return eventID
}

func seedRegistration(t *testing.T, store *sqlite.Store, eventID int64, participants, diplomas, medals int) int64 {
	t.Helper()
	id, err := store.CreateRegistration(context.Background(), billing.Registration{
		EventID:           eventID,
		NominationID:      1,
		CollectiveID:      10,
		ParticipantsCount: participants,
		DiplomasCount:     diplomas,
		MedalsCount:       medals,
	})
	require.NoError(t, err)
	return id
}

func cash(s string) billing.InstrumentTotals {
	return billing.InstrumentTotals{Cash: decimal.RequireFromString(s)}
}

// =============================================================================
// PAYMENT CREATION
// =============================================================================

func TestCreatePayment_SingleRegistration_FullyPaid(t *testing.T) {
	// GIVEN: One registration owing 500 performance + 400 diplomas/medals
	// WHEN: Paying 900 in cash
	// THEN: Registration is PAID, entries per category, no payment group

	svc, store := newTestService(t)
	ctx := context.Background()
	eventID := seedEvent(t, store, "")
	regID := seedRegistration(t, store, eventID, 1, 2, 1)

	result, err := svc.CreatePayment(ctx, billing.PaymentRequest{
		RegistrationIDs:         []int64{regID},
		Instruments:             cash("900"),
		PayingPerformance:       true,
		PayingDiplomasAndMedals: true,
	})
	require.NoError(t, err)

	assert.True(t, result.TotalToPay.Equal(amount("900")), "got %s", result.TotalToPay)
	assert.True(t, result.Discount.IsZero())
	assert.Nil(t, result.PaymentGroupID, "single-registration payments are not grouped")

	require.Len(t, result.Reconciled, 1)
	assert.Equal(t, billing.StatusPaid, result.Reconciled[0].Status)
	assert.True(t, result.Reconciled[0].PaidAmount.Equal(amount("900")))

	entries, err := store.ListEntriesByRegistration(ctx, regID)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, billing.CategoryPerformance, entries[0].Category)
	assert.True(t, entries[0].Amount.Equal(amount("500")), "got %s", entries[0].Amount)
	assert.Equal(t, billing.CategoryDiplomasMedals, entries[1].Category)
	assert.True(t, entries[1].Amount.Equal(amount("400")), "got %s", entries[1].Amount)
	for _, e := range entries {
		assert.Equal(t, billing.InstrumentCash, e.Instrument)
		assert.Nil(t, e.PaymentGroupID)
	}
}

func TestCreatePayment_GroupDiscount_TwoRegistrations(t *testing.T) {
	// GIVEN: Two registrations owing 10000 performance each (diplomas left
	//        unpaid), with a 10% tier covering [10000, 30999]
	// WHEN: Paying the discounted 18000 in cash
	// THEN: Both end PERFORMANCE_PAID, live entries sum to 18000, grouped

	svc, store := newTestService(t)
	ctx := context.Background()
	eventID := seedEvent(t, store, `[{"minAmount": 10000, "maxAmount": 30999, "percentage": 10}]`)
	regA := seedRegistration(t, store, eventID, 20, 2, 0)
	regB := seedRegistration(t, store, eventID, 20, 2, 0)

	result, err := svc.CreatePayment(ctx, billing.PaymentRequest{
		RegistrationIDs:   []int64{regA, regB},
		Instruments:       cash("18000"),
		PayingPerformance: true,
		ApplyDiscount:     true,
	})
	require.NoError(t, err)

	assert.True(t, result.Discount.Equal(amount("2000")), "got %s", result.Discount)
	assert.True(t, result.TotalToPay.Equal(amount("18000")))
	require.NotNil(t, result.PaymentGroupID)

	sum := decimal.Zero
	for _, regID := range []int64{regA, regB} {
		entries, err := store.ListEntriesByRegistration(ctx, regID)
		require.NoError(t, err)
		require.Len(t, entries, 1)
		e := entries[0]
		assert.Equal(t, billing.CategoryPerformance, e.Category)
		assert.Equal(t, billing.InstrumentCash, e.Instrument)
		assert.True(t, e.DiscountAmount.Equal(amount("1000")), "got %s", e.DiscountAmount)
		assert.True(t, e.DiscountPercent.Equal(amount("10")), "got %s", e.DiscountPercent)
		require.NotNil(t, e.PaymentGroupID)
		assert.Equal(t, *result.PaymentGroupID, *e.PaymentGroupID)
		sum = sum.Add(e.Amount)

		reg, err := store.GetRegistration(ctx, regID)
		require.NoError(t, err)
		assert.Equal(t, billing.StatusPerformancePaid, reg.PaymentStatus)
	}
	assert.True(t, sum.Equal(amount("18000")), "live amounts must sum to the paid total, got %s", sum)
}

func TestCreatePayment_AmountMismatch_NothingPersisted(t *testing.T) {
	// GIVEN: A registration owing 900
	// WHEN: Declaring only 100
	// THEN: AmountMismatchError with both totals; the ledger stays empty

	svc, store := newTestService(t)
	ctx := context.Background()
	eventID := seedEvent(t, store, "")
	regID := seedRegistration(t, store, eventID, 1, 2, 1)

	_, err := svc.CreatePayment(ctx, billing.PaymentRequest{
		RegistrationIDs:         []int64{regID},
		Instruments:             cash("100"),
		PayingPerformance:       true,
		PayingDiplomasAndMedals: true,
	})

	var mismatch *billing.AmountMismatchError
	require.ErrorAs(t, err, &mismatch)
	assert.True(t, mismatch.TotalPaid.Equal(amount("100")))
	assert.True(t, mismatch.TotalRequired.Equal(amount("900")))
	assert.True(t, mismatch.Difference().Equal(amount("-800")))
	assert.True(t, billing.IsValidation(err))

	entries, err := store.ListEntriesByRegistration(ctx, regID)
	require.NoError(t, err)
	assert.Empty(t, entries, "failed validation must not persist entries")

	reg, err := store.GetRegistration(ctx, regID)
	require.NoError(t, err)
	assert.Equal(t, billing.StatusUnpaid, reg.PaymentStatus)
}

func TestCreatePayment_MissingPricing_Rejected(t *testing.T) {
	// A performance payment without a pricing row is a hard failure, never
	// silently priced at zero.
	svc, store := newTestService(t)
	ctx := context.Background()

	eventID, err := store.CreateEvent(ctx, billing.Event{Name: "No prices"})
	require.NoError(t, err)
	regID := seedRegistration(t, store, eventID, 2, 0, 0)

	_, err = svc.CreatePayment(ctx, billing.PaymentRequest{
		RegistrationIDs:   []int64{regID},
		Instruments:       cash("1000"),
		PayingPerformance: true,
	})

	var missing *billing.MissingPricingError
	require.ErrorAs(t, err, &missing)
	assert.Equal(t, regID, missing.RegistrationID)
	assert.True(t, billing.IsValidation(err))
}

func TestCreatePayment_UnknownRegistration(t *testing.T) {
	svc, store := newTestService(t)
	eventID := seedEvent(t, store, "")
	regID := seedRegistration(t, store, eventID, 1, 0, 0)

	_, err := svc.CreatePayment(context.Background(), billing.PaymentRequest{
		RegistrationIDs:   []int64{regID, 9999},
		Instruments:       cash("1000"),
		PayingPerformance: true,
	})

	assert.ErrorIs(t, err, billing.ErrRegistrationNotFound)
	assert.True(t, billing.IsNotFound(err))
}

func TestCreatePayment_NegativeInstrumentAmount(t *testing.T) {
	svc, store := newTestService(t)
	eventID := seedEvent(t, store, "")
	regID := seedRegistration(t, store, eventID, 1, 0, 0)

	_, err := svc.CreatePayment(context.Background(), billing.PaymentRequest{
		RegistrationIDs:   []int64{regID},
		Instruments:       billing.InstrumentTotals{Cash: amount("-500")},
		PayingPerformance: true,
	})

	assert.ErrorIs(t, err, billing.ErrNegativeAmount)
}

func TestCreatePayment_CustomPriceAndCountUpdate(t *testing.T) {
	// GIVEN: A payment carrying updated counts and a custom performance price
	// THEN: Counts are persisted, the custom price replaces the computed one,
	//       and the later status derivation uses the stored counts

	svc, store := newTestService(t)
	ctx := context.Background()
	eventID := seedEvent(t, store, "")
	regID := seedRegistration(t, store, eventID, 1, 1, 0)

	three := 3
	custom := amount("777")
	result, err := svc.CreatePayment(ctx, billing.PaymentRequest{
		RegistrationIDs:   []int64{regID},
		Instruments:       cash("777"),
		PayingPerformance: true,
		Overrides: map[int64]billing.RegistrationOverride{
			regID: {
				Counts:                 billing.RegistrationCounts{ParticipantsCount: &three},
				CustomPerformancePrice: &custom,
			},
		},
	})
	require.NoError(t, err)
	assert.True(t, result.TotalToPay.Equal(amount("777")))

	reg, err := store.GetRegistration(ctx, regID)
	require.NoError(t, err)
	assert.Equal(t, 3, reg.ParticipantsCount, "count update must be persisted")
	// 777 paid vs 3 * 500 = 1500 now required, diploma unpaid: nothing satisfied.
	assert.Equal(t, billing.StatusUnpaid, reg.PaymentStatus)
	assert.True(t, reg.PaidAmount.Equal(amount("777")))
}

func TestCreatePayment_ComponentToggles(t *testing.T) {
	// Diplomas toggled off: only performance and medals are charged.
	svc, store := newTestService(t)
	ctx := context.Background()
	eventID := seedEvent(t, store, "")
	regID := seedRegistration(t, store, eventID, 1, 2, 1)

	off := false
	result, err := svc.CreatePayment(ctx, billing.PaymentRequest{
		RegistrationIDs:         []int64{regID},
		Instruments:             cash("600"),
		PayingPerformance:       true,
		PayingDiplomasAndMedals: true,
		Components: map[int64]billing.PaymentComponents{
			regID: {PayDiplomas: &off},
		},
	})
	require.NoError(t, err)

	// 500 performance + 100 medals, diplomas excluded.
	assert.True(t, result.TotalToPay.Equal(amount("600")), "got %s", result.TotalToPay)
}

func TestCreatePayment_FractionalDiscount_SharesStayNonNegative(t *testing.T) {
	// GIVEN: Two registrations owing 5 performance each under a 5% tier
	// WHEN: Paying the discounted 9.50 as 9 cash + 0.50 transfer
	// THEN: Every entry amount is positive and the ledger sums to 9.50,
	//       even though each cash share rounds past its 4.75 component

	svc, store := newTestService(t)
	ctx := context.Background()
	eventID := seedEvent(t, store, `[{"minAmount": 0, "maxAmount": 100000, "percentage": 5}]`)
	regA := seedRegistration(t, store, eventID, 1, 0, 0)
	regB := seedRegistration(t, store, eventID, 1, 0, 0)

	price := amount("5")
	result, err := svc.CreatePayment(ctx, billing.PaymentRequest{
		RegistrationIDs:   []int64{regA, regB},
		Instruments:       billing.InstrumentTotals{Cash: amount("9"), Transfer: amount("0.50")},
		PayingPerformance: true,
		ApplyDiscount:     true,
		Overrides: map[int64]billing.RegistrationOverride{
			regA: {CustomPerformancePrice: &price},
			regB: {CustomPerformancePrice: &price},
		},
	})
	require.NoError(t, err)
	assert.True(t, result.Discount.Equal(amount("0.5")), "got %s", result.Discount)

	sum := decimal.Zero
	for _, regID := range []int64{regA, regB} {
		entries, err := store.ListEntriesByRegistration(ctx, regID)
		require.NoError(t, err)
		require.NotEmpty(t, entries)
		for _, e := range entries {
			assert.True(t, e.Amount.IsPositive(), "entry amounts are never negative, got %s", e.Amount)
			sum = sum.Add(e.Amount)
		}
	}
	assert.True(t, sum.Equal(amount("9.5")), "ledger must record exactly what was paid, got %s", sum)
}

func TestCreatePayment_ToleranceBoundaryAccepted(t *testing.T) {
	// GIVEN: A registration owing exactly 500 performance
	// WHEN: Paying 499.99 - off by exactly the tolerance
	// THEN: The payment is accepted; a 0.02 difference is still rejected

	svc, store := newTestService(t)
	ctx := context.Background()
	eventID := seedEvent(t, store, "")
	regID := seedRegistration(t, store, eventID, 1, 0, 0)

	result, err := svc.CreatePayment(ctx, billing.PaymentRequest{
		RegistrationIDs:   []int64{regID},
		Instruments:       cash("499.99"),
		PayingPerformance: true,
	})
	require.NoError(t, err)
	assert.True(t, result.TotalPaid.Equal(amount("499.99")))

	other := seedRegistration(t, store, eventID, 1, 0, 0)
	_, err = svc.CreatePayment(ctx, billing.PaymentRequest{
		RegistrationIDs:   []int64{other},
		Instruments:       cash("500.02"),
		PayingPerformance: true,
	})
	var mismatch *billing.AmountMismatchError
	require.ErrorAs(t, err, &mismatch)
}

func TestCreatePayment_DuplicateRegistrationIDs(t *testing.T) {
	// GIVEN: A request naming the same registration twice
	// WHEN: Paying its 900 requirement once
	// THEN: The duplicate collapses to a single-registration payment

	svc, store := newTestService(t)
	ctx := context.Background()
	eventID := seedEvent(t, store, "")
	regID := seedRegistration(t, store, eventID, 1, 2, 1)

	result, err := svc.CreatePayment(ctx, billing.PaymentRequest{
		RegistrationIDs:         []int64{regID, regID},
		Instruments:             cash("900"),
		PayingPerformance:       true,
		PayingDiplomasAndMedals: true,
	})
	require.NoError(t, err)
	assert.Nil(t, result.PaymentGroupID, "a collapsed duplicate is not a group")
	assert.Len(t, result.Event.RegistrationIDs, 1)
	require.Len(t, result.Reconciled, 1)
	assert.Equal(t, billing.StatusPaid, result.Reconciled[0].Status)

	entries, err := store.ListEntriesByRegistration(ctx, regID)
	require.NoError(t, err)
	assert.Len(t, entries, 2, "the requirement must be charged once")
}

func TestPayDiplomas_Only(t *testing.T) {
	// GIVEN: A registration owing 500 performance and 400 diplomas/medals
	// WHEN: Paying only the diplomas/medals part
	// THEN: Status becomes DIPLOMAS_PAID

	svc, store := newTestService(t)
	ctx := context.Background()
	eventID := seedEvent(t, store, "")
	regID := seedRegistration(t, store, eventID, 1, 2, 1)

	result, err := svc.PayDiplomas(ctx, []int64{regID}, cash("400"))
	require.NoError(t, err)

	assert.True(t, result.TotalToPay.Equal(amount("400")))
	require.Len(t, result.Reconciled, 1)
	assert.Equal(t, billing.StatusDiplomasPaid, result.Reconciled[0].Status)

	entries, err := store.ListEntriesByRegistration(ctx, regID)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, billing.CategoryDiplomasMedals, entries[0].Category)
}

// =============================================================================
// RECONCILIATION
// =============================================================================

func TestReconcile_Idempotent(t *testing.T) {
	svc, store := newTestService(t)
	ctx := context.Background()
	eventID := seedEvent(t, store, "")
	regID := seedRegistration(t, store, eventID, 1, 2, 1)

	_, err := svc.CreatePayment(ctx, billing.PaymentRequest{
		RegistrationIDs:         []int64{regID},
		Instruments:             cash("900"),
		PayingPerformance:       true,
		PayingDiplomasAndMedals: true,
	})
	require.NoError(t, err)

	first, err := billing.ReconcileRegistration(ctx, store, regID)
	require.NoError(t, err)
	second, err := billing.ReconcileRegistration(ctx, store, regID)
	require.NoError(t, err)

	assert.Equal(t, first.Status, second.Status)
	assert.True(t, first.PaidAmount.Equal(second.PaidAmount))
}

func TestReconcile_MissingRegistration_NoError(t *testing.T) {
	_, store := newTestService(t)

	result, err := billing.ReconcileRegistration(context.Background(), store, 42)

	assert.NoError(t, err)
	assert.Nil(t, result)
}

func TestReconcile_CountChangeDowngradesStatus(t *testing.T) {
	// GIVEN: A registration with its performance part fully paid
	// WHEN: Counts grow afterwards and the status is re-derived
	// THEN: The registration drops back to UNPAID

	svc, store := newTestService(t)
	ctx := context.Background()
	eventID := seedEvent(t, store, "")
	regID := seedRegistration(t, store, eventID, 1, 1, 0)

	_, err := svc.CreatePayment(ctx, billing.PaymentRequest{
		RegistrationIDs:   []int64{regID},
		Instruments:       cash("500"),
		PayingPerformance: true,
	})
	require.NoError(t, err)

	five := 5
	require.NoError(t, store.UpdateRegistrationCounts(ctx, regID, billing.RegistrationCounts{
		ParticipantsCount: &five,
	}))

	result, err := billing.ReconcileRegistration(ctx, store, regID)
	require.NoError(t, err)
	assert.Equal(t, billing.StatusUnpaid, result.Status)
	assert.False(t, result.PerformancePaid)
}

// =============================================================================
// ENTRY MUTATIONS
// =============================================================================

func TestDeleteRestoreEntry_RoundTrip(t *testing.T) {
	// GIVEN: A PAID registration with separate performance and diplomas rows
	// WHEN: Soft-deleting the performance row, then restoring it
	// THEN: Status drops to DIPLOMAS_PAID and returns to PAID

	svc, store := newTestService(t)
	ctx := context.Background()
	eventID := seedEvent(t, store, "")
	regID := seedRegistration(t, store, eventID, 1, 2, 1)

	_, err := svc.CreatePayment(ctx, billing.PaymentRequest{
		RegistrationIDs:         []int64{regID},
		Instruments:             cash("900"),
		PayingPerformance:       true,
		PayingDiplomasAndMedals: true,
	})
	require.NoError(t, err)

	entries, err := store.ListEntriesByRegistration(ctx, regID)
	require.NoError(t, err)
	perfEntry := entries[0]
	require.Equal(t, billing.CategoryPerformance, perfEntry.Category)

	deleted, err := svc.DeleteEntry(ctx, perfEntry.ID)
	require.NoError(t, err)
	assert.NotNil(t, deleted.Entry.DeletedAt)
	require.NotNil(t, deleted.Reconciled)
	assert.Equal(t, billing.StatusDiplomasPaid, deleted.Reconciled.Status)
	assert.True(t, deleted.Reconciled.PaidAmount.Equal(amount("400")))

	restored, err := svc.RestoreEntry(ctx, perfEntry.ID)
	require.NoError(t, err)
	assert.Nil(t, restored.Entry.DeletedAt)
	require.NotNil(t, restored.Reconciled)
	assert.Equal(t, billing.StatusPaid, restored.Reconciled.Status)
	assert.True(t, restored.Reconciled.PaidAmount.Equal(amount("900")))
}

func TestDeleteEntry_Unknown(t *testing.T) {
	svc, _ := newTestService(t)

	_, err := svc.DeleteEntry(context.Background(), 4242)

	assert.ErrorIs(t, err, billing.ErrEntryNotFound)
}

func TestUpdateEntry_DiscountPercentRecomputesFromOriginal(t *testing.T) {
	// GIVEN: A live 500 PERFORMANCE entry without discount
	// WHEN: Setting discountPercent to 10
	// THEN: amount becomes 450, discountAmount 50, original stays 500 and the
	//       registration stays PAID (the discount covers the difference)

	svc, store := newTestService(t)
	ctx := context.Background()
	eventID := seedEvent(t, store, "")
	regID := seedRegistration(t, store, eventID, 1, 0, 0)

	_, err := svc.CreatePayment(ctx, billing.PaymentRequest{
		RegistrationIDs:   []int64{regID},
		Instruments:       cash("500"),
		PayingPerformance: true,
	})
	require.NoError(t, err)

	entries, err := store.ListEntriesByRegistration(ctx, regID)
	require.NoError(t, err)
	require.Len(t, entries, 1)

	ten := amount("10")
	result, err := svc.UpdateEntry(ctx, entries[0].ID, billing.EntryUpdate{DiscountPercent: &ten})
	require.NoError(t, err)

	assert.True(t, result.Entry.Amount.Equal(amount("450")), "got %s", result.Entry.Amount)
	assert.True(t, result.Entry.DiscountAmount.Equal(amount("50")), "got %s", result.Entry.DiscountAmount)
	assert.True(t, result.Entry.OriginalAmount().Equal(amount("500")))
	require.NotNil(t, result.Reconciled)
	assert.Equal(t, billing.StatusPaid, result.Reconciled.Status)
}

func TestUpdateEntry_CategorySwitchClearsDiscount(t *testing.T) {
	svc, store := newTestService(t)
	ctx := context.Background()
	eventID := seedEvent(t, store, `[{"minAmount": 0, "maxAmount": 10000, "percentage": 10}]`)
	regA := seedRegistration(t, store, eventID, 1, 0, 0)
	regB := seedRegistration(t, store, eventID, 1, 0, 0)

	_, err := svc.CreatePayment(ctx, billing.PaymentRequest{
		RegistrationIDs:   []int64{regA, regB},
		Instruments:       cash("900"),
		PayingPerformance: true,
		ApplyDiscount:     true,
	})
	require.NoError(t, err)

	entries, err := store.ListEntriesByRegistration(ctx, regA)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	require.True(t, entries[0].DiscountAmount.IsPositive())

	category := billing.CategoryDiplomasMedals
	result, err := svc.UpdateEntry(ctx, entries[0].ID, billing.EntryUpdate{Category: &category})
	require.NoError(t, err)

	assert.Equal(t, billing.CategoryDiplomasMedals, result.Entry.Category)
	assert.True(t, result.Entry.DiscountAmount.IsZero(), "diplomas/medals never carry discount")
	assert.True(t, result.Entry.DiscountPercent.IsZero())
	assert.True(t, result.Entry.Amount.Equal(amount("500")), "amount restored to original, got %s", result.Entry.Amount)
}

// =============================================================================
// MANUAL ENTRIES AND LEDGER VIEW
// =============================================================================

func TestCreateManualEntries(t *testing.T) {
	svc, store := newTestService(t)
	ctx := context.Background()
	eventID := seedEvent(t, store, "")

	entries, staleKeys, err := svc.CreateManualEntries(ctx, eventID, billing.CategoryPerformance,
		billing.InstrumentTotals{Cash: amount("250"), Transfer: amount("100")}, "door sales")
	require.NoError(t, err)

	require.Len(t, entries, 2)
	assert.Equal(t, []string{billing.StatisticsCacheKey(eventID)}, staleKeys)
	for _, e := range entries {
		assert.Nil(t, e.RegistrationID)
		assert.Nil(t, e.PaymentGroupID)
		assert.NotZero(t, e.ID, "inserted entries get ids")
	}
}

func TestCreateManualEntries_ZeroTotal(t *testing.T) {
	svc, store := newTestService(t)
	eventID := seedEvent(t, store, "")

	_, _, err := svc.CreateManualEntries(context.Background(), eventID,
		billing.CategoryPerformance, billing.InstrumentTotals{}, "")

	assert.ErrorIs(t, err, billing.ErrNoPayableAmount)
}

func TestCreateManualEntries_UnknownEvent(t *testing.T) {
	svc, _ := newTestService(t)

	_, _, err := svc.CreateManualEntries(context.Background(), 77,
		billing.CategoryPerformance, cash("100"), "")

	assert.ErrorIs(t, err, billing.ErrEventNotFound)
}

func TestListEventLedger_GroupsAndSummary(t *testing.T) {
	// GIVEN: A grouped two-registration payment plus a manual entry
	// THEN: Payment entries fold into one group, the manual entry stays
	//       ungrouped, and the summary totals cover both

	svc, store := newTestService(t)
	ctx := context.Background()
	eventID := seedEvent(t, store, "")
	regA := seedRegistration(t, store, eventID, 1, 0, 0)
	regB := seedRegistration(t, store, eventID, 1, 0, 0)

	_, err := svc.CreatePayment(ctx, billing.PaymentRequest{
		RegistrationIDs:   []int64{regA, regB},
		Instruments:       cash("1000"),
		PayingPerformance: true,
		PaymentGroupName:  "Studio Aurora",
	})
	require.NoError(t, err)

	_, _, err = svc.CreateManualEntries(ctx, eventID, billing.CategoryPerformance,
		billing.InstrumentTotals{Transfer: amount("300")}, "sponsor")
	require.NoError(t, err)

	ledger, err := svc.ListEventLedger(ctx, eventID, billing.EntryFilter{})
	require.NoError(t, err)

	require.Len(t, ledger.Groups, 1)
	group := ledger.Groups[0]
	require.NotNil(t, group.Name)
	assert.Equal(t, "Studio Aurora", *group.Name)
	assert.Len(t, group.Entries, 2)
	assert.True(t, group.Total.Equal(amount("1000")), "got %s", group.Total)

	require.Len(t, ledger.Ungrouped, 1)
	assert.Equal(t, billing.InstrumentTransfer, ledger.Ungrouped[0].Instrument)

	assert.True(t, ledger.Summary.Cash.Equal(amount("1000")))
	assert.True(t, ledger.Summary.Transfer.Equal(amount("300")))
	assert.True(t, ledger.Summary.Total.Equal(amount("1300")), "got %s", ledger.Summary.Total)
	assert.Equal(t, 3, ledger.Total)
}

func TestListEventLedger_DeletedFilter(t *testing.T) {
	svc, store := newTestService(t)
	ctx := context.Background()
	eventID := seedEvent(t, store, "")

	entries, _, err := svc.CreateManualEntries(ctx, eventID, billing.CategoryPerformance,
		cash("100"), "")
	require.NoError(t, err)
	_, err = svc.DeleteEntry(ctx, entries[0].ID)
	require.NoError(t, err)

	live, err := svc.ListEventLedger(ctx, eventID, billing.EntryFilter{})
	require.NoError(t, err)
	assert.Empty(t, live.Ungrouped)
	assert.Equal(t, 0, live.Total)

	deleted, err := svc.ListEventLedger(ctx, eventID, billing.EntryFilter{DeletedOnly: true})
	require.NoError(t, err)
	require.Len(t, deleted.Ungrouped, 1)
	assert.NotNil(t, deleted.Ungrouped[0].DeletedAt)
	assert.True(t, deleted.Summary.Total.IsZero(), "deleted rows never count toward totals")
}

// =============================================================================
// GROUP OPERATIONS
// =============================================================================

func payGroup(t *testing.T, svc *billing.Service, store *sqlite.Store) (string, []int64, int64) {
	t.Helper()
	ctx := context.Background()
	eventID := seedEvent(t, store, `[{"minAmount": 10000, "maxAmount": 30999, "percentage": 10}]`)
	regA := seedRegistration(t, store, eventID, 20, 2, 0)
	regB := seedRegistration(t, store, eventID, 20, 2, 0)

	result, err := svc.CreatePayment(ctx, billing.PaymentRequest{
		RegistrationIDs:   []int64{regA, regB},
		Instruments:       cash("18000"),
		PayingPerformance: true,
		ApplyDiscount:     true,
	})
	require.NoError(t, err)
	require.NotNil(t, result.PaymentGroupID)
	return *result.PaymentGroupID, []int64{regA, regB}, eventID
}

func TestRewriteGroupDiscount_ToZero_RestoresOriginals(t *testing.T) {
	// GIVEN: A group paid with a 10% discount (2 x 10000 original, 18000 live)
	// WHEN: Rewriting the group discount to 0%
	// THEN: Every entry returns to its pre-discount original and both
	//       registrations stay PERFORMANCE_PAID

	svc, store := newTestService(t)
	ctx := context.Background()
	groupID, regIDs, _ := payGroup(t, svc, store)

	result, err := svc.RewriteGroupDiscount(ctx, groupID, decimal.Zero)
	require.NoError(t, err)

	assert.True(t, result.OriginalAmount.Equal(amount("20000")), "got %s", result.OriginalAmount)
	assert.True(t, result.FinalAmount.Equal(amount("20000")), "got %s", result.FinalAmount)
	assert.True(t, result.DiscountAmount.IsZero())
	assert.Equal(t, 2, result.AffectedEntries)

	for _, regID := range regIDs {
		entries, err := store.ListEntriesByRegistration(ctx, regID)
		require.NoError(t, err)
		require.Len(t, entries, 1)
		assert.True(t, entries[0].Amount.Equal(amount("10000")), "got %s", entries[0].Amount)
		assert.True(t, entries[0].DiscountAmount.IsZero())

		reg, err := store.GetRegistration(ctx, regID)
		require.NoError(t, err)
		assert.Equal(t, billing.StatusPerformancePaid, reg.PaymentStatus)
	}
}

func TestRewriteGroupDiscount_NewPercentage(t *testing.T) {
	svc, store := newTestService(t)
	ctx := context.Background()
	groupID, _, _ := payGroup(t, svc, store)

	result, err := svc.RewriteGroupDiscount(ctx, groupID, amount("20"))
	require.NoError(t, err)

	assert.True(t, result.OriginalAmount.Equal(amount("20000")))
	assert.True(t, result.DiscountAmount.Equal(amount("4000")), "got %s", result.DiscountAmount)
	assert.True(t, result.FinalAmount.Equal(amount("16000")), "got %s", result.FinalAmount)
}

func TestRewriteGroupDiscount_Validation(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	_, err := svc.RewriteGroupDiscount(ctx, "no-such-group", amount("10"))
	assert.ErrorIs(t, err, billing.ErrGroupNotFound)

	_, err = svc.RewriteGroupDiscount(ctx, "whatever", amount("101"))
	assert.ErrorIs(t, err, billing.ErrInvalidDiscount)
}

func TestRenameGroup(t *testing.T) {
	svc, store := newTestService(t)
	ctx := context.Background()
	groupID, regIDs, _ := payGroup(t, svc, store)

	require.NoError(t, svc.RenameGroup(ctx, groupID, "Winter Gala"))

	entries, err := store.ListEntriesByRegistration(ctx, regIDs[0])
	require.NoError(t, err)
	require.Len(t, entries, 1)
	require.NotNil(t, entries[0].PaymentGroupName)
	assert.Equal(t, "Winter Gala", *entries[0].PaymentGroupName)

	err = svc.RenameGroup(ctx, "no-such-group", "x")
	assert.ErrorIs(t, err, billing.ErrGroupNotFound)
}

// =============================================================================
// ERROR TAXONOMY
// =============================================================================

func TestErrorHelpers(t *testing.T) {
	mismatch := &billing.AmountMismatchError{TotalPaid: amount("1"), TotalRequired: amount("2")}
	assert.True(t, billing.IsValidation(mismatch))
	assert.True(t, errors.Is(mismatch, billing.ErrAmountMismatch))
	assert.False(t, billing.IsNotFound(mismatch))

	missing := &billing.MissingPricingError{EventID: 1, NominationID: 2, RegistrationID: 3}
	assert.True(t, billing.IsValidation(missing))
	assert.Contains(t, missing.Error(), "nomination 2")

	assert.True(t, billing.IsNotFound(billing.ErrEntryNotFound))
	assert.False(t, billing.IsValidation(billing.ErrEntryNotFound))
}
