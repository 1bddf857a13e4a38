/*
errors.go - Centralized error types for the billing core

PURPOSE:
  All error types in one place. The HTTP layer maps these onto status codes
  in a single switch, so every failure the core can produce is enumerated
  here.

ERROR CATEGORIES:
  1. Validation errors - the caller can self-correct (amount mismatch,
     missing pricing row); never retried automatically.
  2. Not-found errors - unknown registration, entry or payment group.
  3. Persistence errors - store failures; the whole operation fails
     atomically.

Malformed discount-tier input is deliberately NOT an error: it degrades to
"no discount" and is only logged (see discount.go).

USAGE:
  if billing.IsValidation(err) { ... 400 ... }
  var mismatch *billing.AmountMismatchError
  if errors.As(err, &mismatch) { ... mismatch payload ... }
*/
package billing

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrAmountMismatch is returned when the declared instrument totals do
	// not match the computed requirement within Tolerance.
	ErrAmountMismatch = errors.New("payment amount mismatch")

	// ErrMissingPricing is returned when a performance payment references a
	// (event, nomination) pair that has no pricing row. This is a hard
	// validation failure, never silently zeroed.
	ErrMissingPricing = errors.New("missing event pricing row")

	// ErrNoPayableAmount is returned when a payment or manual entry request
	// resolves to a zero total.
	ErrNoPayableAmount = errors.New("nothing to pay")

	// ErrNegativeAmount is returned when a declared instrument amount is
	// negative.
	ErrNegativeAmount = errors.New("negative instrument amount")

	// ErrInvalidDiscount is returned when a requested discount percentage is
	// outside [0, 100].
	ErrInvalidDiscount = errors.New("discount percent out of range")

	// ErrRegistrationNotFound is returned when a referenced registration
	// does not exist.
	ErrRegistrationNotFound = errors.New("registration not found")

	// ErrEntryNotFound is returned when a referenced accounting entry does
	// not exist.
	ErrEntryNotFound = errors.New("accounting entry not found")

	// ErrGroupNotFound is returned when a payment group has no live entries
	// to operate on.
	ErrGroupNotFound = errors.New("payment group not found")

	// ErrEventNotFound is returned when a referenced event does not exist.
	ErrEventNotFound = errors.New("event not found")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// AmountMismatchError reports the difference between what the caller
// declared and what the registrations require, so the caller can
// self-correct.
type AmountMismatchError struct {
	TotalPaid     decimal.Decimal
	TotalRequired decimal.Decimal
}

func (e *AmountMismatchError) Error() string {
	return fmt.Sprintf("payment amount mismatch: paid %s, required %s",
		e.TotalPaid, e.TotalRequired)
}

func (e *AmountMismatchError) Unwrap() error { return ErrAmountMismatch }

// Difference returns paid minus required.
func (e *AmountMismatchError) Difference() decimal.Decimal {
	return e.TotalPaid.Sub(e.TotalRequired)
}

// MissingPricingError identifies the pricing row a performance payment
// needed but could not find.
type MissingPricingError struct {
	EventID        int64
	NominationID   int64
	RegistrationID int64
}

func (e *MissingPricingError) Error() string {
	return fmt.Sprintf("no pricing for event %d nomination %d (registration %d)",
		e.EventID, e.NominationID, e.RegistrationID)
}

func (e *MissingPricingError) Unwrap() error { return ErrMissingPricing }

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsValidation returns true if the error is caused by invalid caller input.
func IsValidation(err error) bool {
	return errors.Is(err, ErrAmountMismatch) ||
		errors.Is(err, ErrMissingPricing) ||
		errors.Is(err, ErrNoPayableAmount) ||
		errors.Is(err, ErrNegativeAmount) ||
		errors.Is(err, ErrInvalidDiscount)
}

// IsNotFound returns true if the error indicates a missing resource.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrRegistrationNotFound) ||
		errors.Is(err, ErrEntryNotFound) ||
		errors.Is(err, ErrGroupNotFound) ||
		errors.Is(err, ErrEventNotFound)
}
