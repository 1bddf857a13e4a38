/*
payment.go - Payment creation orchestration

PURPOSE:
  Implements the multi-registration payment flow end to end, inside one
  store transaction:

    1. Load every referenced registration (any missing one aborts with a
       not-found error).
    2. Persist count updates supplied with the request, then compute each
       registration's required amounts from current pricing.
    3. Evaluate the tiered discount against the aggregate PERFORMANCE total
       when requested.
    4. Validate the declared instrument totals against the discounted
       requirement (0.01 tolerance) BEFORE anything is persisted.
    5. Distribute the discount across registrations proportionally to their
       share of the pre-discount performance total, split every component
       across instruments with the remainder-to-transfer rule, and write the
       resulting entries (grouped when more than one registration).
    6. Reconcile every affected registration's payment status.

  Totals are threaded through an explicit plan/accumulator value; there is
  no ambient per-request state.

  The caller receives, besides the monetary summary, the stale statistics
  cache keys and a notification event to emit after commit.

SEE ALSO:
  - allocation.go: the splitting rules used in step 5
  - entries.go:    entry construction and grouping
  - reconcile.go:  step 6
*/
package billing

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"
)

// Service exposes the payment and accounting operations of the core.
type Service struct {
	store TxStore
}

// NewService creates a Service on top of a transactional store.
func NewService(store TxStore) *Service {
	return &Service{store: store}
}

// PaymentRequest is the input of one payment-creation call.
type PaymentRequest struct {
	RegistrationIDs         []int64
	Instruments             InstrumentTotals
	PayingPerformance       bool
	PayingDiplomasAndMedals bool
	ApplyDiscount           bool
	PaymentGroupName        string

	// Optional per-registration input keyed by registration id.
	Overrides  map[int64]RegistrationOverride
	Components map[int64]PaymentComponents
}

// PaymentResult is the outcome of a successful payment-creation call.
type PaymentResult struct {
	TotalPaid      decimal.Decimal
	TotalToPay     decimal.Decimal
	Discount       decimal.Decimal
	PaymentGroupID *string

	Reconciled     []ReconcileResult
	StaleCacheKeys []string
	Event          PaymentEvent
}

// registrationPlan accumulates the per-registration amounts of one payment.
type registrationPlan struct {
	reg            Registration
	performance    decimal.Decimal // pre-discount performance requirement
	diplomasMedals decimal.Decimal
	discount       decimal.Decimal // this registration's share of the group discount
}

// finalPerformance is the post-discount performance amount.
func (p registrationPlan) finalPerformance() decimal.Decimal {
	return p.performance.Sub(p.discount)
}

// CreatePayment runs the whole payment flow. On validation failure nothing
// is persisted.
func (s *Service) CreatePayment(ctx context.Context, req PaymentRequest) (*PaymentResult, error) {
	if len(req.RegistrationIDs) == 0 {
		return nil, fmt.Errorf("%w: no registrations supplied", ErrRegistrationNotFound)
	}
	if req.Instruments.Cash.IsNegative() || req.Instruments.Card.IsNegative() || req.Instruments.Transfer.IsNegative() {
		return nil, fmt.Errorf("%w: %s cash, %s card, %s transfer",
			ErrNegativeAmount, req.Instruments.Cash, req.Instruments.Card, req.Instruments.Transfer)
	}

	var result *PaymentResult
	err := s.store.WithTx(ctx, func(tx Store) error {
		var err error
		result, err = createPayment(ctx, tx, req)
		return err
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// PayDiplomas is the diplomas/medals-only payment flow: same allocation and
// grouping rules, no performance component and never a discount.
func (s *Service) PayDiplomas(ctx context.Context, registrationIDs []int64, instruments InstrumentTotals) (*PaymentResult, error) {
	return s.CreatePayment(ctx, PaymentRequest{
		RegistrationIDs:         registrationIDs,
		Instruments:             instruments,
		PayingDiplomasAndMedals: true,
	})
}

func createPayment(ctx context.Context, tx Store, req PaymentRequest) (*PaymentResult, error) {
	ids := uniqueIDs(req.RegistrationIDs)
	regs, err := tx.ListRegistrations(ctx, ids)
	if err != nil {
		return nil, err
	}
	if len(regs) != len(ids) {
		return nil, fmt.Errorf("%w: %d of %d registrations missing",
			ErrRegistrationNotFound, len(ids)-len(regs), len(ids))
	}

	events := map[int64]*Event{}
	eventFor := func(id int64) (*Event, error) {
		if ev, ok := events[id]; ok {
			return ev, nil
		}
		ev, err := tx.GetEvent(ctx, id)
		if err != nil {
			return nil, err
		}
		if ev == nil {
			return nil, fmt.Errorf("%w: event %d", ErrEventNotFound, id)
		}
		events[id] = ev
		return ev, nil
	}

	// Phase 1: persist supplied count updates, then price every registration.
	plans := make([]registrationPlan, 0, len(regs))
	totalPerformance := decimal.Zero
	totalDiplomasMedals := decimal.Zero

	for _, reg := range regs {
		override, hasOverride := req.Overrides[reg.ID]
		if hasOverride {
			if err := tx.UpdateRegistrationCounts(ctx, reg.ID, override.Counts); err != nil {
				return nil, err
			}
			applyCounts(&reg, override.Counts)
		}
		components := req.Components[reg.ID]

		plan := registrationPlan{reg: reg, performance: decimal.Zero, diplomasMedals: decimal.Zero, discount: decimal.Zero}

		if req.PayingPerformance && components.performance() {
			if hasOverride && override.CustomPerformancePrice != nil {
				plan.performance = *override.CustomPerformancePrice
			} else {
				pricing, err := tx.GetEventPricing(ctx, reg.EventID, reg.NominationID)
				if err != nil {
					return nil, err
				}
				if pricing == nil {
					return nil, &MissingPricingError{
						EventID:        reg.EventID,
						NominationID:   reg.NominationID,
						RegistrationID: reg.ID,
					}
				}
				plan.performance = PerformancePrice(*pricing, reg.ParticipantsCount, reg.FederationParticipantsCount)
			}
		}

		if req.PayingDiplomasAndMedals {
			ev, err := eventFor(reg.EventID)
			if err != nil {
				return nil, err
			}
			if components.diplomas() {
				plan.diplomasMedals = plan.diplomasMedals.Add(DiplomasPrice(*ev, reg.DiplomasCount))
			}
			if components.medals() {
				plan.diplomasMedals = plan.diplomasMedals.Add(MedalsPrice(*ev, reg.MedalsCount))
			}
		}

		totalPerformance = totalPerformance.Add(plan.performance)
		totalDiplomasMedals = totalDiplomasMedals.Add(plan.diplomasMedals)
		plans = append(plans, plan)
	}

	// Phase 2: group discount against the aggregate performance total. The
	// tier list of the first registration's event governs the whole call.
	discount := ZeroDiscount()
	if req.ApplyDiscount && req.PayingPerformance {
		ev, err := eventFor(regs[0].EventID)
		if err != nil {
			return nil, err
		}
		discount = CalculateDiscount(totalPerformance, ev.DiscountTiers)
	}

	totalRequired := totalPerformance.Sub(discount.Amount).Add(totalDiplomasMedals)
	totalPaid := req.Instruments.Total()

	// Phase 3: validate before anything monetary is written. The boundary is
	// inclusive: a declared total off by exactly the tolerance still passes.
	if totalPaid.Sub(totalRequired).Abs().GreaterThan(Tolerance) {
		return nil, &AmountMismatchError{TotalPaid: totalPaid, TotalRequired: totalRequired}
	}

	var groupID, groupName *string
	if len(plans) > 1 {
		id := NewPaymentGroupID()
		groupID = &id
	}
	if req.PaymentGroupName != "" {
		name := req.PaymentGroupName
		groupName = &name
	}

	// Phase 4: allocate and persist. Discount shares are proportional to
	// each registration's slice of the pre-discount performance total.
	result := &PaymentResult{
		TotalPaid:      totalPaid,
		TotalToPay:     totalRequired,
		Discount:       discount.Amount,
		PaymentGroupID: groupID,
	}
	staleEvents := map[int64]bool{}

	for i := range plans {
		plan := &plans[i]
		plan.discount = ProportionalShare(discount.Amount, plan.performance, totalPerformance)

		if req.PayingPerformance && plan.finalPerformance().IsPositive() {
			shares := SplitAcrossInstruments(plan.finalPerformance(), req.Instruments, totalRequired)
			entries := buildRegistrationEntries(plan.reg, CategoryPerformance, shares,
				plan.finalPerformance(), plan.discount, groupID, groupName)
			for j := range entries {
				if err := tx.InsertEntry(ctx, &entries[j]); err != nil {
					return nil, err
				}
			}
		}

		if req.PayingDiplomasAndMedals && plan.diplomasMedals.IsPositive() {
			shares := SplitAcrossInstruments(plan.diplomasMedals, req.Instruments, totalRequired)
			entries := buildRegistrationEntries(plan.reg, CategoryDiplomasMedals, shares,
				plan.diplomasMedals, decimal.Zero, groupID, groupName)
			for j := range entries {
				if err := tx.InsertEntry(ctx, &entries[j]); err != nil {
					return nil, err
				}
			}
		}

		reconciled, err := ReconcileRegistration(ctx, tx, plan.reg.ID)
		if err != nil {
			return nil, err
		}
		if reconciled != nil {
			result.Reconciled = append(result.Reconciled, *reconciled)
		}
		staleEvents[plan.reg.EventID] = true
	}

	for eventID := range staleEvents {
		result.StaleCacheKeys = append(result.StaleCacheKeys, StatisticsCacheKey(eventID))
	}
	result.Event = PaymentEvent{
		RegistrationIDs:  ids,
		TotalAmount:      totalPaid,
		DiscountAmount:   discount.Amount,
		PaymentGroupName: req.PaymentGroupName,
	}
	return result, nil
}

// uniqueIDs drops repeated ids, keeping first-seen order.
func uniqueIDs(ids []int64) []int64 {
	seen := make(map[int64]bool, len(ids))
	out := make([]int64, 0, len(ids))
	for _, id := range ids {
		if seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	return out
}

func applyCounts(reg *Registration, counts RegistrationCounts) {
	if counts.ParticipantsCount != nil {
		reg.ParticipantsCount = *counts.ParticipantsCount
	}
	if counts.FederationParticipantsCount != nil {
		reg.FederationParticipantsCount = *counts.FederationParticipantsCount
	}
	if counts.DiplomasCount != nil {
		reg.DiplomasCount = *counts.DiplomasCount
	}
	if counts.MedalsCount != nil {
		reg.MedalsCount = *counts.MedalsCount
	}
}
