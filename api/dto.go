/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures for API communication. These types decouple
  the internal domain model from the external API contract.

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients

MONEY:
  Monetary fields are decimal.Decimal, serialized as quoted decimal strings.
  Clients may send quoted or bare numbers; both unmarshal exactly.

SEE ALSO:
  - handlers.go: Uses these types
*/
package api

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/quickstep/payment-engine/billing"
)

// =============================================================================
// REQUEST TYPES
// =============================================================================

// RegistrationInputDTO is per-registration payment input: updated counts,
// a custom performance price and component toggles. Nil fields keep stored
// values / defaults.
type RegistrationInputDTO struct {
	ID                          int64            `json:"id"`
	ParticipantsCount           *int             `json:"participantsCount,omitempty"`
	FederationParticipantsCount *int             `json:"federationParticipantsCount,omitempty"`
	DiplomasCount               *int             `json:"diplomasCount,omitempty"`
	MedalsCount                 *int             `json:"medalsCount,omitempty"`
	CustomPerformancePrice      *decimal.Decimal `json:"customPerformancePrice,omitempty"`
	PayPerformance              *bool            `json:"payPerformance,omitempty"`
	PayDiplomas                 *bool            `json:"payDiplomas,omitempty"`
	PayMedals                   *bool            `json:"payMedals,omitempty"`
}

// CreatePaymentRequest is the body of POST /api/payments.
type CreatePaymentRequest struct {
	RegistrationIDs []int64         `json:"registrationIds"`
	CashAmount      decimal.Decimal `json:"cashAmount"`
	CardAmount      decimal.Decimal `json:"cardAmount"`
	TransferAmount  decimal.Decimal `json:"transferAmount"`

	PayingPerformance bool   `json:"payingPerformance"`
	PayingDiplomas    bool   `json:"payingDiplomas"`
	ApplyDiscount     bool   `json:"applyDiscount"`
	PaymentGroupName  string `json:"paymentGroupName,omitempty"`

	Registrations []RegistrationInputDTO `json:"registrations,omitempty"`
}

// PayDiplomasRequest is the body of POST /api/diplomas/pay.
type PayDiplomasRequest struct {
	RegistrationIDs []int64         `json:"registrationIds"`
	CashAmount      decimal.Decimal `json:"cashAmount"`
	CardAmount      decimal.Decimal `json:"cardAmount"`
	TransferAmount  decimal.Decimal `json:"transferAmount"`
}

// CreateManualEntryRequest is the body of POST /api/accounting.
type CreateManualEntryRequest struct {
	EventID        int64           `json:"eventId"`
	Category       string          `json:"category"`
	CashAmount     decimal.Decimal `json:"cashAmount"`
	CardAmount     decimal.Decimal `json:"cardAmount"`
	TransferAmount decimal.Decimal `json:"transferAmount"`
	Description    string          `json:"description,omitempty"`
}

// UpdateEntryRequest is the body of PUT /api/accounting/{id}.
type UpdateEntryRequest struct {
	Amount           *decimal.Decimal `json:"amount,omitempty"`
	DiscountPercent  *decimal.Decimal `json:"discountPercent,omitempty"`
	Instrument       *string          `json:"instrument,omitempty"`
	Category         *string          `json:"category,omitempty"`
	Description      *string          `json:"description,omitempty"`
	PaymentGroupName *string          `json:"paymentGroupName,omitempty"`
}

// RenameGroupRequest is the body of PUT /api/accounting/groups/{groupId}/name.
type RenameGroupRequest struct {
	Name string `json:"name"`
}

// GroupDiscountRequest is the body of PUT /api/accounting/groups/{groupId}/discount.
type GroupDiscountRequest struct {
	DiscountPercent decimal.Decimal `json:"discountPercent"`
}

// =============================================================================
// RESPONSE TYPES
// =============================================================================

// EntryDTO represents an accounting entry in API responses.
type EntryDTO struct {
	ID               int64           `json:"id"`
	RegistrationID   *int64          `json:"registrationId,omitempty"`
	CollectiveID     *int64          `json:"collectiveId,omitempty"`
	EventID          *int64          `json:"eventId,omitempty"`
	Amount           decimal.Decimal `json:"amount"`
	DiscountAmount   decimal.Decimal `json:"discountAmount"`
	DiscountPercent  decimal.Decimal `json:"discountPercent"`
	Instrument       string          `json:"instrument"`
	Category         string          `json:"category"`
	PaymentGroupID   *string         `json:"paymentGroupId,omitempty"`
	PaymentGroupName *string         `json:"paymentGroupName,omitempty"`
	Description      string          `json:"description,omitempty"`
	CreatedAt        string          `json:"createdAt"`
	DeletedAt        *string         `json:"deletedAt,omitempty"`
}

// EntryGroupDTO is one payment group in the ledger view.
type EntryGroupDTO struct {
	ID      string          `json:"id"`
	Name    *string         `json:"name,omitempty"`
	Total   decimal.Decimal `json:"total"`
	Entries []EntryDTO      `json:"entries"`
}

// LedgerSummaryDTO carries per-instrument totals of the ledger view.
type LedgerSummaryDTO struct {
	CashTotal     decimal.Decimal `json:"cashTotal"`
	CardTotal     decimal.Decimal `json:"cardTotal"`
	TransferTotal decimal.Decimal `json:"transferTotal"`
	Total         decimal.Decimal `json:"total"`
	DiscountTotal decimal.Decimal `json:"discountTotal"`
}

// LedgerDTO is the response of GET /api/accounting.
type LedgerDTO struct {
	Groups    []EntryGroupDTO  `json:"groups"`
	Ungrouped []EntryDTO       `json:"ungrouped"`
	Summary   LedgerSummaryDTO `json:"summary"`
	Total     int              `json:"total"`
}

// ReconcileResultDTO reports a registration's derived payment state.
type ReconcileResultDTO struct {
	RegistrationID     int64           `json:"registrationId"`
	Status             string          `json:"status"`
	PerformancePaid    bool            `json:"performancePaid"`
	DiplomasMedalsPaid bool            `json:"diplomasMedalsPaid"`
	PaidAmount         decimal.Decimal `json:"paidAmount"`
}

// PaymentResultDTO is the response of a successful payment call.
type PaymentResultDTO struct {
	Success        bool                 `json:"success"`
	TotalPaid      decimal.Decimal      `json:"totalPaid"`
	TotalToPay     decimal.Decimal      `json:"totalToPay"`
	Discount       decimal.Decimal      `json:"discount"`
	PaymentGroupID *string              `json:"paymentGroupId,omitempty"`
	Registrations  []ReconcileResultDTO `json:"registrations"`
}

// GroupDiscountResultDTO is the response of the group discount rewrite.
type GroupDiscountResultDTO struct {
	DiscountPercent decimal.Decimal `json:"discountPercent"`
	DiscountAmount  decimal.Decimal `json:"discountAmount"`
	OriginalAmount  decimal.Decimal `json:"originalAmount"`
	FinalAmount     decimal.Decimal `json:"finalAmount"`
	AffectedEntries int             `json:"affectedEntries"`
}

// RegistrationDTO represents a registration in API responses.
type RegistrationDTO struct {
	ID                          int64           `json:"id"`
	EventID                     int64           `json:"eventId"`
	NominationID                int64           `json:"nominationId"`
	CollectiveID                int64           `json:"collectiveId"`
	ParticipantsCount           int             `json:"participantsCount"`
	FederationParticipantsCount int             `json:"federationParticipantsCount"`
	DiplomasCount               int             `json:"diplomasCount"`
	MedalsCount                 int             `json:"medalsCount"`
	PaymentStatus               string          `json:"paymentStatus"`
	PerformancePaid             bool            `json:"performancePaid"`
	DiplomasMedalsPaid          bool            `json:"diplomasMedalsPaid"`
	PaidAmount                  decimal.Decimal `json:"paidAmount"`
}

// ErrorResponse is the standard error response. Amount-mismatch failures
// additionally carry the totals so the client can self-correct.
type ErrorResponse struct {
	Error         string           `json:"error"`
	Details       any              `json:"details,omitempty"`
	TotalPaid     *decimal.Decimal `json:"totalPaid,omitempty"`
	TotalRequired *decimal.Decimal `json:"totalRequired,omitempty"`
	Difference    *decimal.Decimal `json:"difference,omitempty"`
}

// =============================================================================
// CONVERSION HELPERS
// =============================================================================

func toEntryDTO(e billing.AccountingEntry) EntryDTO {
	dto := EntryDTO{
		ID:               e.ID,
		RegistrationID:   e.RegistrationID,
		CollectiveID:     e.CollectiveID,
		EventID:          e.EventID,
		Amount:           e.Amount,
		DiscountAmount:   e.DiscountAmount,
		DiscountPercent:  e.DiscountPercent,
		Instrument:       string(e.Instrument),
		Category:         string(e.Category),
		PaymentGroupID:   e.PaymentGroupID,
		PaymentGroupName: e.PaymentGroupName,
		Description:      e.Description,
		CreatedAt:        e.CreatedAt.Format(time.RFC3339),
	}
	if e.DeletedAt != nil {
		s := e.DeletedAt.Format(time.RFC3339)
		dto.DeletedAt = &s
	}
	return dto
}

func toEntryDTOs(entries []billing.AccountingEntry) []EntryDTO {
	dtos := make([]EntryDTO, len(entries))
	for i, e := range entries {
		dtos[i] = toEntryDTO(e)
	}
	return dtos
}

func toReconcileDTOs(results []billing.ReconcileResult) []ReconcileResultDTO {
	dtos := make([]ReconcileResultDTO, len(results))
	for i, r := range results {
		dtos[i] = ReconcileResultDTO{
			RegistrationID:     r.RegistrationID,
			Status:             string(r.Status),
			PerformancePaid:    r.PerformancePaid,
			DiplomasMedalsPaid: r.DiplomasMedalsPaid,
			PaidAmount:         r.PaidAmount,
		}
	}
	return dtos
}

func toRegistrationDTO(r billing.Registration) RegistrationDTO {
	return RegistrationDTO{
		ID:                          r.ID,
		EventID:                     r.EventID,
		NominationID:                r.NominationID,
		CollectiveID:                r.CollectiveID,
		ParticipantsCount:           r.ParticipantsCount,
		FederationParticipantsCount: r.FederationParticipantsCount,
		DiplomasCount:               r.DiplomasCount,
		MedalsCount:                 r.MedalsCount,
		PaymentStatus:               string(r.PaymentStatus),
		PerformancePaid:             r.PerformancePaid,
		DiplomasMedalsPaid:          r.DiplomasMedalsPaid,
		PaidAmount:                  r.PaidAmount,
	}
}

// toPaymentInput converts the request body into the billing-layer input.
func toPaymentInput(req CreatePaymentRequest) billing.PaymentRequest {
	input := billing.PaymentRequest{
		RegistrationIDs: req.RegistrationIDs,
		Instruments: billing.InstrumentTotals{
			Cash:     req.CashAmount,
			Card:     req.CardAmount,
			Transfer: req.TransferAmount,
		},
		PayingPerformance:       req.PayingPerformance,
		PayingDiplomasAndMedals: req.PayingDiplomas,
		ApplyDiscount:           req.ApplyDiscount,
		PaymentGroupName:        req.PaymentGroupName,
	}

	for _, r := range req.Registrations {
		override := billing.RegistrationOverride{
			Counts: billing.RegistrationCounts{
				ParticipantsCount:           r.ParticipantsCount,
				FederationParticipantsCount: r.FederationParticipantsCount,
				DiplomasCount:               r.DiplomasCount,
				MedalsCount:                 r.MedalsCount,
			},
			CustomPerformancePrice: r.CustomPerformancePrice,
		}
		if override.Counts != (billing.RegistrationCounts{}) || override.CustomPerformancePrice != nil {
			if input.Overrides == nil {
				input.Overrides = make(map[int64]billing.RegistrationOverride)
			}
			input.Overrides[r.ID] = override
		}

		if r.PayPerformance != nil || r.PayDiplomas != nil || r.PayMedals != nil {
			if input.Components == nil {
				input.Components = make(map[int64]billing.PaymentComponents)
			}
			input.Components[r.ID] = billing.PaymentComponents{
				PayPerformance: r.PayPerformance,
				PayDiplomas:    r.PayDiplomas,
				PayMedals:      r.PayMedals,
			}
		}
	}
	return input
}
