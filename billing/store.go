/*
store.go - Persistence interface for the billing core

PURPOSE:
  Defines the interface between the reconciliation logic and the database.
  Different implementations can use SQLite, PostgreSQL, or in-memory storage.

SOFT-DELETE CONTRACT:
  Accounting entries are never destroyed. SoftDeleteEntry stamps deleted_at;
  RestoreEntry clears it. Both are idempotent single-row operations. Every
  read method that says "live" excludes soft-deleted rows.

TRANSACTION BOUNDARY:
  A payment-creation call validates the declared instrument totals against
  the computed requirement and creates its entries inside one WithTx scope,
  so the requirement cannot change between validation and persistence and
  two concurrent payments against the same registration serialize.

IMPLEMENTATIONS:
  - store/sqlite/sqlite.go: production SQLite

SEE ALSO:
  - payment.go: orchestration built on this interface
  - reconcile.go: status derivation reading live entries
*/
package billing

import (
	"context"

	"github.com/shopspring/decimal"
)

// EntryFilter narrows event-scoped entry listings.
type EntryFilter struct {
	IncludeDeleted bool
	DeletedOnly    bool
	Offset         int
	Limit          int
}

// Store handles persistence of registrations, pricing and accounting entries.
type Store interface {
	// GetRegistration returns a registration, or nil if it does not exist.
	GetRegistration(ctx context.Context, id int64) (*Registration, error)

	// ListRegistrations returns the registrations with the given ids, in the
	// order found. Missing ids are simply absent from the result.
	ListRegistrations(ctx context.Context, ids []int64) ([]Registration, error)

	// ListRegistrationsByEvent returns all registrations of an event.
	ListRegistrationsByEvent(ctx context.Context, eventID int64) ([]Registration, error)

	// UpdateRegistrationCounts persists updated participant/diploma/medal
	// counts. Nil fields of counts leave the stored value untouched.
	UpdateRegistrationCounts(ctx context.Context, id int64, counts RegistrationCounts) error

	// UpdateRegistrationPayment persists the derived payment fields.
	UpdateRegistrationPayment(ctx context.Context, id int64, status PaymentStatus,
		performancePaid, diplomasMedalsPaid bool, paidAmount decimal.Decimal) error

	// GetEvent returns an event, or nil if it does not exist.
	GetEvent(ctx context.Context, id int64) (*Event, error)

	// GetEventPricing returns the performance price row for an
	// (event, nomination) pair, or nil if none exists.
	GetEventPricing(ctx context.Context, eventID, nominationID int64) (*EventPricing, error)

	// InsertEntry persists a new accounting entry and assigns its ID.
	InsertEntry(ctx context.Context, e *AccountingEntry) error

	// GetEntry returns an entry (deleted or not), or nil if it does not exist.
	GetEntry(ctx context.Context, id int64) (*AccountingEntry, error)

	// UpdateEntry rewrites the mutable fields of an existing entry: amount,
	// discount fields, instrument, category, description, group name.
	UpdateEntry(ctx context.Context, e *AccountingEntry) error

	// SoftDeleteEntry stamps deleted_at. Idempotent.
	SoftDeleteEntry(ctx context.Context, id int64) error

	// RestoreEntry clears deleted_at. Idempotent.
	RestoreEntry(ctx context.Context, id int64) error

	// ListEntriesByRegistration returns a registration's live entries.
	ListEntriesByRegistration(ctx context.Context, registrationID int64) ([]AccountingEntry, error)

	// ListGroupEntries returns the live entries of a payment group in the
	// given category.
	ListGroupEntries(ctx context.Context, groupID string, category Category) ([]AccountingEntry, error)

	// RenameGroup sets the group name on every entry of a payment group and
	// returns the number of affected rows.
	RenameGroup(ctx context.Context, groupID, name string) (int64, error)

	// ListEntriesByEvent returns entries belonging to an event, both those
	// linked to the event's registrations and manual event-scoped ones,
	// newest first, plus the total row count before pagination.
	ListEntriesByEvent(ctx context.Context, eventID int64, f EntryFilter) ([]AccountingEntry, int, error)
}

// TxStore wraps Store with transaction support.
type TxStore interface {
	Store

	// WithTx executes fn within a transaction. If fn returns an error the
	// transaction is rolled back, otherwise it is committed.
	WithTx(ctx context.Context, fn func(Store) error) error
}
