/*
groups.go - Payment group operations and event ledger views

PURPOSE:
  Operations spanning a whole payment group plus the event-scoped ledger
  listing the API serves:

  - ListEventLedger: all entries of an event, registration-linked entries
    folded into their payment groups, manual and ungrouped ones listed flat,
    with per-instrument summary totals.
  - RenameGroup: sets the display name on every entry of a group.
  - RewriteGroupDiscount: re-applies a discount percentage across every live
    PERFORMANCE entry of a group, recomputing each entry from its fixed
    pre-discount original, then re-derives the status of every touched
    registration.

REWRITE INVARIANT:
  For every rewritten entry the original amount (amount + discountAmount) is
  unchanged; only the split between the two changes. Rewriting to 0% restores
  every original exactly.
*/
package billing

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"
)

// EntryGroup is one payment group in an event ledger view.
type EntryGroup struct {
	ID      string
	Name    *string
	Entries []AccountingEntry
	Total   decimal.Decimal
}

// LedgerSummary carries per-instrument totals over the live entries of a
// ledger view.
type LedgerSummary struct {
	Cash          decimal.Decimal
	Card          decimal.Decimal
	Transfer      decimal.Decimal
	Total         decimal.Decimal
	DiscountTotal decimal.Decimal
}

// EventLedger is the grouped view of an event's accounting entries.
type EventLedger struct {
	Groups    []EntryGroup
	Ungrouped []AccountingEntry
	Summary   LedgerSummary
	Total     int // row count before pagination
}

// GroupDiscountResult reports a group discount rewrite.
type GroupDiscountResult struct {
	DiscountPercent decimal.Decimal
	DiscountAmount  decimal.Decimal
	OriginalAmount  decimal.Decimal
	FinalAmount     decimal.Decimal
	AffectedEntries int

	Reconciled     []ReconcileResult
	StaleCacheKeys []string
}

// ListEventLedger returns an event's entries with registration-linked ones
// folded into their payment groups. Grouping only ever applies to entries
// created by a multi-registration payment: manual entries and
// single-registration payments stay in the flat list.
func (s *Service) ListEventLedger(ctx context.Context, eventID int64, filter EntryFilter) (*EventLedger, error) {
	entries, total, err := s.store.ListEntriesByEvent(ctx, eventID, filter)
	if err != nil {
		return nil, err
	}

	ledger := &EventLedger{Total: total}
	groupIndex := map[string]int{}

	for _, e := range entries {
		if e.RegistrationID != nil && e.PaymentGroupID != nil {
			idx, ok := groupIndex[*e.PaymentGroupID]
			if !ok {
				idx = len(ledger.Groups)
				groupIndex[*e.PaymentGroupID] = idx
				ledger.Groups = append(ledger.Groups, EntryGroup{
					ID:   *e.PaymentGroupID,
					Name: e.PaymentGroupName,
				})
			}
			g := &ledger.Groups[idx]
			g.Entries = append(g.Entries, e)
			if !e.Deleted() {
				g.Total = g.Total.Add(e.Amount)
			}
		} else {
			ledger.Ungrouped = append(ledger.Ungrouped, e)
		}

		if e.Deleted() {
			continue
		}
		switch e.Instrument {
		case InstrumentCash:
			ledger.Summary.Cash = ledger.Summary.Cash.Add(e.Amount)
		case InstrumentCard:
			ledger.Summary.Card = ledger.Summary.Card.Add(e.Amount)
		case InstrumentTransfer:
			ledger.Summary.Transfer = ledger.Summary.Transfer.Add(e.Amount)
		}
		ledger.Summary.Total = ledger.Summary.Total.Add(e.Amount)
		ledger.Summary.DiscountTotal = ledger.Summary.DiscountTotal.Add(e.DiscountAmount)
	}
	return ledger, nil
}

// RenameGroup sets the display name on every entry of a payment group.
func (s *Service) RenameGroup(ctx context.Context, groupID, name string) error {
	return s.store.WithTx(ctx, func(tx Store) error {
		affected, err := tx.RenameGroup(ctx, groupID, name)
		if err != nil {
			return err
		}
		if affected == 0 {
			return fmt.Errorf("%w: group %s", ErrGroupNotFound, groupID)
		}
		return nil
	})
}

// RewriteGroupDiscount re-applies percent across every live PERFORMANCE entry
// of a payment group and re-derives the status of every touched registration.
func (s *Service) RewriteGroupDiscount(ctx context.Context, groupID string, percent decimal.Decimal) (*GroupDiscountResult, error) {
	if percent.IsNegative() || percent.GreaterThan(decimal.NewFromInt(100)) {
		return nil, fmt.Errorf("%w: %s", ErrInvalidDiscount, percent)
	}

	var result *GroupDiscountResult
	err := s.store.WithTx(ctx, func(tx Store) error {
		entries, err := tx.ListGroupEntries(ctx, groupID, CategoryPerformance)
		if err != nil {
			return err
		}
		if len(entries) == 0 {
			return fmt.Errorf("%w: group %s has no live performance entries", ErrGroupNotFound, groupID)
		}

		result = &GroupDiscountResult{DiscountPercent: percent}

		touched := map[int64]bool{}
		order := []int64{}
		for i := range entries {
			e := &entries[i]
			original := e.OriginalAmount()
			e.DiscountPercent = percent
			e.DiscountAmount = original.Mul(percent).Div(decimal.NewFromInt(100))
			e.Amount = original.Sub(e.DiscountAmount)

			if err := tx.UpdateEntry(ctx, e); err != nil {
				return err
			}

			result.OriginalAmount = result.OriginalAmount.Add(original)
			result.DiscountAmount = result.DiscountAmount.Add(e.DiscountAmount)
			result.FinalAmount = result.FinalAmount.Add(e.Amount)
			result.AffectedEntries++

			if e.RegistrationID != nil && !touched[*e.RegistrationID] {
				touched[*e.RegistrationID] = true
				order = append(order, *e.RegistrationID)
			}
		}

		staleEvents := map[int64]bool{}
		for _, regID := range order {
			reconciled, err := ReconcileRegistration(ctx, tx, regID)
			if err != nil {
				return err
			}
			if reconciled != nil {
				result.Reconciled = append(result.Reconciled, *reconciled)
			}
			reg, err := tx.GetRegistration(ctx, regID)
			if err != nil {
				return err
			}
			if reg != nil && !staleEvents[reg.EventID] {
				staleEvents[reg.EventID] = true
				result.StaleCacheKeys = append(result.StaleCacheKeys, StatisticsCacheKey(reg.EventID))
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}
