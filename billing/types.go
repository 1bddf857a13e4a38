/*
Package billing implements the payment allocation and accounting
reconciliation core for competition registrations.

PURPOSE:
  Given a set of registrations, a requested discount and a split of incoming
  funds across payment instruments, this package computes how much is owed,
  applies tiered discounts, distributes the paid funds proportionally across
  registrations and instruments down to the individual accounting entry, and
  keeps each registration's derived payment status consistent with the sum of
  its live ledger entries.

KEY CONCEPTS IN THIS FILE (types.go):
  - Instrument:       How money arrived (cash, card, bank transfer)
  - Category:         What the money pays for (performance vs diplomas/medals)
  - Registration:     One performance entry with participant/diploma counts
  - AccountingEntry:  The atomic unit of money in the ledger (soft-deletable)
  - InstrumentTotals: The caller-declared split of an incoming payment

DESIGN PRINCIPLES:
  1. Precision: decimal.Decimal for all money, never float64
  2. Soft delete: entries are marked deleted, never destroyed
  3. Derived state: a registration's payment status is always recomputable
     from its live entries plus current pricing (see reconcile.go)

SEE ALSO:
  - pricing.go:    Required-amount computation
  - discount.go:   Tier evaluation
  - allocation.go: Proportional splitting with exact rounding
  - reconcile.go:  Status derivation
*/
package billing

import (
	"strconv"
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// MONEY
// =============================================================================

// Tolerance is the maximum difference, in currency units, at which two
// amounts are still considered equal for payment validation and status
// derivation.
var Tolerance = decimal.RequireFromString("0.01")

// AmountsEqual reports whether two amounts differ by less than Tolerance.
func AmountsEqual(a, b decimal.Decimal) bool {
	return a.Sub(b).Abs().LessThan(Tolerance)
}

// =============================================================================
// ENUMS
// =============================================================================

// Instrument identifies how money was received.
type Instrument string

const (
	InstrumentCash     Instrument = "CASH"
	InstrumentCard     Instrument = "CARD"
	InstrumentTransfer Instrument = "TRANSFER"
)

// InstrumentOrder is the fixed allocation order. The last instrument absorbs
// the rounding remainder (see allocation.go).
var InstrumentOrder = []Instrument{InstrumentCash, InstrumentCard, InstrumentTransfer}

// Category identifies what a ledger entry pays for.
type Category string

const (
	CategoryPerformance    Category = "PERFORMANCE"
	CategoryDiplomasMedals Category = "DIPLOMAS_MEDALS"
)

// PaymentStatus is the derived payment state of a registration.
type PaymentStatus string

const (
	StatusUnpaid          PaymentStatus = "UNPAID"
	StatusPerformancePaid PaymentStatus = "PERFORMANCE_PAID"
	StatusDiplomasPaid    PaymentStatus = "DIPLOMAS_PAID"
	StatusPaid            PaymentStatus = "PAID"
)

// =============================================================================
// DOMAIN RECORDS
// =============================================================================

// Registration is one performance entry in a competition.
//
// PaymentStatus, PerformancePaid, DiplomasMedalsPaid and PaidAmount are
// derived fields owned by the reconciler; everything else is input state.
type Registration struct {
	ID           int64
	EventID      int64
	NominationID int64
	CollectiveID int64

	ParticipantsCount           int
	FederationParticipantsCount int
	DiplomasCount               int
	MedalsCount                 int

	PaymentStatus      PaymentStatus
	PerformancePaid    bool
	DiplomasMedalsPaid bool
	PaidAmount         decimal.Decimal
}

// Event carries the per-event pricing that is not nomination-specific:
// diploma/medal unit prices and the discount tier list (raw JSON as stored).
type Event struct {
	ID              int64
	Name            string
	PricePerDiploma *decimal.Decimal
	PricePerMedal   *decimal.Decimal
	DiscountTiers   string
}

// EventPricing is the per (event, nomination) performance price row.
// PricePerFederationParticipant falls back to PricePerParticipant when unset.
type EventPricing struct {
	EventID                       int64
	NominationID                  int64
	PricePerParticipant           decimal.Decimal
	PricePerFederationParticipant *decimal.Decimal
}

// AccountingEntry is the atomic unit of money.
//
// RegistrationID is nil for manual, operator-entered entries; those are
// scoped to an event directly and never participate in payment grouping.
// Invariant for any live PERFORMANCE entry: the pre-discount original amount
// is Amount + DiscountAmount.
type AccountingEntry struct {
	ID             int64
	RegistrationID *int64
	CollectiveID   *int64
	EventID        *int64

	Amount          decimal.Decimal
	DiscountAmount  decimal.Decimal
	DiscountPercent decimal.Decimal

	Instrument Instrument
	Category   Category

	PaymentGroupID   *string
	PaymentGroupName *string
	Description      string

	CreatedAt time.Time
	DeletedAt *time.Time
}

// Deleted reports whether the entry is soft-deleted.
func (e *AccountingEntry) Deleted() bool { return e.DeletedAt != nil }

// OriginalAmount reconstructs the pre-discount amount of the entry.
func (e *AccountingEntry) OriginalAmount() decimal.Decimal {
	return e.Amount.Add(e.DiscountAmount)
}

// =============================================================================
// PAYMENT INPUT
// =============================================================================

// InstrumentTotals is the caller-declared split of an incoming payment
// across instruments, for the whole operation.
type InstrumentTotals struct {
	Cash     decimal.Decimal
	Card     decimal.Decimal
	Transfer decimal.Decimal
}

// Total returns the sum over all instruments.
func (t InstrumentTotals) Total() decimal.Decimal {
	return t.Cash.Add(t.Card).Add(t.Transfer)
}

// Get returns the declared total for a single instrument.
func (t InstrumentTotals) Get(i Instrument) decimal.Decimal {
	switch i {
	case InstrumentCash:
		return t.Cash
	case InstrumentCard:
		return t.Card
	case InstrumentTransfer:
		return t.Transfer
	}
	return decimal.Zero
}

// RegistrationCounts carries updated counts supplied together with a payment.
// Nil fields leave the stored value untouched.
type RegistrationCounts struct {
	ParticipantsCount           *int
	FederationParticipantsCount *int
	DiplomasCount               *int
	MedalsCount                 *int
}

// RegistrationOverride is per-registration payment input: updated counts and
// an optional fixed performance price replacing the computed one.
type RegistrationOverride struct {
	Counts                 RegistrationCounts
	CustomPerformancePrice *decimal.Decimal
}

// PaymentComponents toggles individual price components of one registration
// within a payment. Nil means "included".
type PaymentComponents struct {
	PayPerformance *bool
	PayDiplomas    *bool
	PayMedals      *bool
}

func (c PaymentComponents) performance() bool { return c.PayPerformance == nil || *c.PayPerformance }
func (c PaymentComponents) diplomas() bool    { return c.PayDiplomas == nil || *c.PayDiplomas }
func (c PaymentComponents) medals() bool      { return c.PayMedals == nil || *c.PayMedals }

// =============================================================================
// NOTIFICATION EVENT
// =============================================================================

// PaymentEvent describes a successful payment-creation call. It is emitted to
// notifiers after the transaction commits; a notifier failing must never roll
// back the payment.
type PaymentEvent struct {
	RegistrationIDs  []int64
	TotalAmount      decimal.Decimal
	DiscountAmount   decimal.Decimal
	PaymentGroupName string
}

// StatisticsCacheKey names the per-event statistics cache key that becomes
// stale when an operation changes the event's derived totals.
func StatisticsCacheKey(eventID int64) string {
	return "statistics:" + strconv.FormatInt(eventID, 10)
}
