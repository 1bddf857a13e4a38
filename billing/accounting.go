/*
accounting.go - Ledger entry maintenance

PURPOSE:
  Operator-facing mutations of individual ledger entries: manual lump-sum
  entries scoped to an event, field edits, soft delete and restore. Every
  mutation that touches a registration-linked entry re-derives that
  registration's payment status inside the same transaction, so the status
  can never drift from the live ledger.

EDIT SEMANTICS:
  The pre-discount original of an entry is amount + discountAmount and is
  treated as fixed by edits to the discount: setting a new discountPercent
  recomputes both amount and discountAmount from the original. Switching an
  entry's category to DIPLOMAS_MEDALS clears its discount entirely, restoring
  amount to the original (diplomas and medals are never discounted).

SEE ALSO:
  - groups.go:    group-level operations (rename, discount rewrite)
  - reconcile.go: the status derivation run after each mutation
*/
package billing

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"
)

// EntryUpdate carries the editable fields of an entry. Nil fields are left
// untouched.
type EntryUpdate struct {
	Amount           *decimal.Decimal
	DiscountPercent  *decimal.Decimal
	Instrument       *Instrument
	Category         *Category
	Description      *string
	PaymentGroupName *string
}

// EntryMutationResult is the outcome of a single-entry mutation.
type EntryMutationResult struct {
	Entry          AccountingEntry
	Reconciled     *ReconcileResult
	StaleCacheKeys []string
}

// CreateManualEntries records an operator-entered lump sum against an event:
// one ungrouped entry per positive instrument amount. Manual entries carry no
// registration, so no status reconciliation runs.
func (s *Service) CreateManualEntries(ctx context.Context, eventID int64, category Category,
	amounts InstrumentTotals, description string) ([]AccountingEntry, []string, error) {

	entries := BuildManualEntries(eventID, category, amounts, description)
	if len(entries) == 0 {
		return nil, nil, fmt.Errorf("%w: all instrument amounts are zero", ErrNoPayableAmount)
	}

	err := s.store.WithTx(ctx, func(tx Store) error {
		ev, err := tx.GetEvent(ctx, eventID)
		if err != nil {
			return err
		}
		if ev == nil {
			return fmt.Errorf("%w: event %d", ErrEventNotFound, eventID)
		}
		for i := range entries {
			if err := tx.InsertEntry(ctx, &entries[i]); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, nil, err
	}
	return entries, []string{StatisticsCacheKey(eventID)}, nil
}

// UpdateEntry edits one ledger entry and re-derives the owning registration's
// status. The entry may be soft-deleted; edits to deleted entries do not
// affect the derived status (deleted entries are invisible to it) but are
// persisted so a later restore brings back the edited values.
func (s *Service) UpdateEntry(ctx context.Context, entryID int64, update EntryUpdate) (*EntryMutationResult, error) {
	var result *EntryMutationResult
	err := s.store.WithTx(ctx, func(tx Store) error {
		entry, err := tx.GetEntry(ctx, entryID)
		if err != nil {
			return err
		}
		if entry == nil {
			return fmt.Errorf("%w: entry %d", ErrEntryNotFound, entryID)
		}

		applyEntryUpdate(entry, update)

		if err := tx.UpdateEntry(ctx, entry); err != nil {
			return err
		}

		result = &EntryMutationResult{Entry: *entry}
		return finishEntryMutation(ctx, tx, entry, result)
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// DeleteEntry soft-deletes one entry and re-derives the owning registration's
// status without the entry's amount.
func (s *Service) DeleteEntry(ctx context.Context, entryID int64) (*EntryMutationResult, error) {
	return s.setEntryDeleted(ctx, entryID, true)
}

// RestoreEntry brings a soft-deleted entry back and re-derives the owning
// registration's status with the entry's amount counted again.
func (s *Service) RestoreEntry(ctx context.Context, entryID int64) (*EntryMutationResult, error) {
	return s.setEntryDeleted(ctx, entryID, false)
}

func (s *Service) setEntryDeleted(ctx context.Context, entryID int64, deleted bool) (*EntryMutationResult, error) {
	var result *EntryMutationResult
	err := s.store.WithTx(ctx, func(tx Store) error {
		entry, err := tx.GetEntry(ctx, entryID)
		if err != nil {
			return err
		}
		if entry == nil {
			return fmt.Errorf("%w: entry %d", ErrEntryNotFound, entryID)
		}

		if deleted {
			err = tx.SoftDeleteEntry(ctx, entryID)
		} else {
			err = tx.RestoreEntry(ctx, entryID)
		}
		if err != nil {
			return err
		}

		// Re-read so the returned entry reflects the new deletion stamp.
		entry, err = tx.GetEntry(ctx, entryID)
		if err != nil {
			return err
		}

		result = &EntryMutationResult{Entry: *entry}
		return finishEntryMutation(ctx, tx, entry, result)
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// applyEntryUpdate folds the provided fields into the entry, keeping the
// original = amount + discountAmount invariant intact.
func applyEntryUpdate(entry *AccountingEntry, update EntryUpdate) {
	if update.Amount != nil {
		entry.Amount = *update.Amount
	}
	if update.DiscountPercent != nil {
		original := entry.OriginalAmount()
		entry.DiscountPercent = *update.DiscountPercent
		entry.DiscountAmount = original.Mul(*update.DiscountPercent).Div(decimal.NewFromInt(100))
		entry.Amount = original.Sub(entry.DiscountAmount)
	}
	if update.Instrument != nil {
		entry.Instrument = *update.Instrument
	}
	if update.Category != nil {
		if *update.Category == CategoryDiplomasMedals && entry.Category == CategoryPerformance {
			// Diplomas and medals are never discounted.
			entry.Amount = entry.OriginalAmount()
			entry.DiscountAmount = decimal.Zero
			entry.DiscountPercent = decimal.Zero
		}
		entry.Category = *update.Category
	}
	if update.Description != nil {
		entry.Description = *update.Description
	}
	if update.PaymentGroupName != nil {
		entry.PaymentGroupName = update.PaymentGroupName
	}
}

// finishEntryMutation runs the post-mutation reconciliation and collects the
// stale statistics key of the event the entry belongs to.
func finishEntryMutation(ctx context.Context, tx Store, entry *AccountingEntry, result *EntryMutationResult) error {
	var eventID *int64

	if entry.RegistrationID != nil {
		reconciled, err := ReconcileRegistration(ctx, tx, *entry.RegistrationID)
		if err != nil {
			return err
		}
		result.Reconciled = reconciled

		reg, err := tx.GetRegistration(ctx, *entry.RegistrationID)
		if err != nil {
			return err
		}
		if reg != nil {
			eventID = &reg.EventID
		}
	}
	if eventID == nil {
		eventID = entry.EventID
	}
	if eventID != nil {
		result.StaleCacheKeys = append(result.StaleCacheKeys, StatisticsCacheKey(*eventID))
	}
	return nil
}
