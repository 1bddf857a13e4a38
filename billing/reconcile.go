/*
reconcile.go - Payment status derivation

PURPOSE:
  Recomputes a registration's derived payment fields from scratch: sums its
  live ledger entries per category, recomputes the required amounts from the
  registration's CURRENT counts and CURRENT pricing (both may have changed
  since the original payment), and derives the status:

    both categories satisfied        -> PAID
    only performance satisfied       -> PERFORMANCE_PAID
    only diplomas/medals satisfied   -> DIPLOMAS_PAID
    neither                          -> UNPAID

  "Satisfied" means |covered - required| < 0.01 currency units, where a
  PERFORMANCE entry covers its pre-discount original (amount +
  discountAmount): a legitimately discounted payment fully satisfies the
  requirement. paidAmount records the money actually received.

INVOCATION CONTRACT:
  Must run after entry creation, entry edit, soft delete, restore and group
  discount rewrite. It is idempotent and safe with zero entries (UNPAID,
  paidAmount 0). On failure the registration's prior status is left
  untouched; the error is surfaced for retry.
*/
package billing

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"
)

// ReconcileResult reports the derived payment state that was persisted.
type ReconcileResult struct {
	RegistrationID     int64
	Status             PaymentStatus
	PerformancePaid    bool
	DiplomasMedalsPaid bool
	PaidAmount         decimal.Decimal
}

// ReconcileRegistration recomputes and persists the payment status of one
// registration. A registration that no longer exists is not an error: there
// is nothing to reconcile.
func ReconcileRegistration(ctx context.Context, store Store, registrationID int64) (*ReconcileResult, error) {
	reg, err := store.GetRegistration(ctx, registrationID)
	if err != nil {
		return nil, fmt.Errorf("load registration %d: %w", registrationID, err)
	}
	if reg == nil {
		return nil, nil
	}

	entries, err := store.ListEntriesByRegistration(ctx, registrationID)
	if err != nil {
		return nil, fmt.Errorf("load entries for registration %d: %w", registrationID, err)
	}

	// A discounted PERFORMANCE entry covers its pre-discount original
	// (amount + discountAmount) of the requirement; the money actually
	// received is tracked separately for paidAmount.
	performanceCovered := decimal.Zero
	diplomasMedalsCovered := decimal.Zero
	received := decimal.Zero
	for _, e := range entries {
		switch e.Category {
		case CategoryPerformance:
			performanceCovered = performanceCovered.Add(e.OriginalAmount())
		case CategoryDiplomasMedals:
			diplomasMedalsCovered = diplomasMedalsCovered.Add(e.Amount)
		}
		received = received.Add(e.Amount)
	}

	performanceRequired := decimal.Zero
	pricing, err := store.GetEventPricing(ctx, reg.EventID, reg.NominationID)
	if err != nil {
		return nil, fmt.Errorf("load pricing for registration %d: %w", registrationID, err)
	}
	if pricing != nil {
		performanceRequired = PerformancePrice(*pricing, reg.ParticipantsCount, reg.FederationParticipantsCount)
	}

	diplomasMedalsRequired := decimal.Zero
	event, err := store.GetEvent(ctx, reg.EventID)
	if err != nil {
		return nil, fmt.Errorf("load event for registration %d: %w", registrationID, err)
	}
	if event != nil {
		diplomasMedalsRequired = DiplomasMedalsPrice(*event, reg.DiplomasCount, reg.MedalsCount)
	}

	performanceSatisfied := AmountsEqual(performanceCovered, performanceRequired)
	diplomasMedalsSatisfied := AmountsEqual(diplomasMedalsCovered, diplomasMedalsRequired)

	status := StatusUnpaid
	switch {
	case performanceSatisfied && diplomasMedalsSatisfied:
		status = StatusPaid
	case performanceSatisfied:
		status = StatusPerformancePaid
	case diplomasMedalsSatisfied:
		status = StatusDiplomasPaid
	}

	paidAmount := received
	if err := store.UpdateRegistrationPayment(ctx, registrationID, status,
		performanceSatisfied, diplomasMedalsSatisfied, paidAmount); err != nil {
		return nil, fmt.Errorf("persist status for registration %d: %w", registrationID, err)
	}

	return &ReconcileResult{
		RegistrationID:     registrationID,
		Status:             status,
		PerformancePaid:    performanceSatisfied,
		DiplomasMedalsPaid: diplomasMedalsSatisfied,
		PaidAmount:         paidAmount,
	}, nil
}
