/*
handlers.go - HTTP API handlers for the payment engine

PURPOSE:
  Exposes payment creation and ledger maintenance via REST. Handles HTTP
  request/response, JSON serialization, and delegates to the billing core.

ENDPOINTS:
  Payments:
    POST   /api/payments                   Create payment across registrations
    POST   /api/diplomas/pay               Diplomas/medals-only payment

  Accounting:
    GET    /api/accounting                 Event ledger (grouped + summary)
    POST   /api/accounting                 Manual lump-sum entries
    PUT    /api/accounting/{id}            Edit entry
    DELETE /api/accounting/{id}            Soft-delete entry
    POST   /api/accounting/{id}/restore    Restore soft-deleted entry
    PUT    /api/accounting/groups/{groupId}/name      Rename payment group
    PUT    /api/accounting/groups/{groupId}/discount  Rewrite group discount

  Registrations:
    GET    /api/registrations              Registrations of an event

ERROR HANDLING:
  Errors are returned as JSON with appropriate HTTP status:
  - 400: Validation errors (amount mismatch carries totals + difference)
  - 404: Unknown registration, entry, group or event
  - 500: Internal errors

POST-COMMIT SIDE EFFECTS:
  Statistics cache invalidation and payment notifications run after the
  transaction has committed; their failure never fails the request.

SEE ALSO:
  - dto.go: Request/response data structures
  - server.go: Router setup and middleware
*/
package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/quickstep/payment-engine/billing"
	"github.com/quickstep/payment-engine/cache"
	"github.com/quickstep/payment-engine/notify"
	"github.com/quickstep/payment-engine/obs"
)

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Store    billing.TxStore
	Service  *billing.Service
	Cache    *cache.Invalidator
	Notifier notify.Notifier
	Metrics  *obs.Metrics
	Logger   zerolog.Logger
}

// NewHandler creates a handler on top of a transactional store.
func NewHandler(store billing.TxStore, inv *cache.Invalidator, notifier notify.Notifier,
	metrics *obs.Metrics, logger zerolog.Logger) *Handler {
	return &Handler{
		Store:    store,
		Service:  billing.NewService(store),
		Cache:    inv,
		Notifier: notifier,
		Metrics:  metrics,
		Logger:   logger,
	}
}

// =============================================================================
// PAYMENT HANDLERS
// =============================================================================

// CreatePayment creates a payment covering one or more registrations.
// POST /api/payments
func (h *Handler) CreatePayment(w http.ResponseWriter, r *http.Request) {
	var req CreatePaymentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	result, err := h.Service.CreatePayment(r.Context(), toPaymentInput(req))
	if err != nil {
		h.writeDomainError(w, "Failed to create payment", err)
		return
	}
	h.finishPayment(r, result)

	writeJSON(w, http.StatusCreated, PaymentResultDTO{
		Success:        true,
		TotalPaid:      result.TotalPaid,
		TotalToPay:     result.TotalToPay,
		Discount:       result.Discount,
		PaymentGroupID: result.PaymentGroupID,
		Registrations:  toReconcileDTOs(result.Reconciled),
	})
}

// PayDiplomas creates a diplomas/medals-only payment.
// POST /api/diplomas/pay
func (h *Handler) PayDiplomas(w http.ResponseWriter, r *http.Request) {
	var req PayDiplomasRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	result, err := h.Service.PayDiplomas(r.Context(), req.RegistrationIDs, billing.InstrumentTotals{
		Cash:     req.CashAmount,
		Card:     req.CardAmount,
		Transfer: req.TransferAmount,
	})
	if err != nil {
		h.writeDomainError(w, "Failed to pay diplomas", err)
		return
	}
	h.finishPayment(r, result)

	writeJSON(w, http.StatusCreated, PaymentResultDTO{
		Success:        true,
		TotalPaid:      result.TotalPaid,
		TotalToPay:     result.TotalToPay,
		Discount:       result.Discount,
		PaymentGroupID: result.PaymentGroupID,
		Registrations:  toReconcileDTOs(result.Reconciled),
	})
}

// finishPayment runs the post-commit side effects of a successful payment.
func (h *Handler) finishPayment(r *http.Request, result *billing.PaymentResult) {
	h.Metrics.PaymentsCreated.Inc()
	for _, rec := range result.Reconciled {
		h.Metrics.Reconciliations.WithLabelValues(string(rec.Status)).Inc()
	}
	h.Cache.Invalidate(r.Context(), result.StaleCacheKeys)
	h.Notifier.PaymentCreated(r.Context(), result.Event)
}

// =============================================================================
// ACCOUNTING HANDLERS
// =============================================================================

// ListAccounting returns an event's ledger with grouped entries and totals.
// GET /api/accounting?eventId=1&includeDeleted=false&offset=0&limit=50
func (h *Handler) ListAccounting(w http.ResponseWriter, r *http.Request) {
	eventID, err := strconv.ParseInt(r.URL.Query().Get("eventId"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid or missing eventId", err)
		return
	}

	filter := billing.EntryFilter{
		IncludeDeleted: r.URL.Query().Get("includeDeleted") == "true",
		DeletedOnly:    r.URL.Query().Get("deletedOnly") == "true",
	}
	filter.Offset, _ = strconv.Atoi(r.URL.Query().Get("offset"))
	filter.Limit, _ = strconv.Atoi(r.URL.Query().Get("limit"))

	ledger, err := h.Service.ListEventLedger(r.Context(), eventID, filter)
	if err != nil {
		h.writeDomainError(w, "Failed to list accounting entries", err)
		return
	}

	dto := LedgerDTO{
		Ungrouped: toEntryDTOs(ledger.Ungrouped),
		Summary: LedgerSummaryDTO{
			CashTotal:     ledger.Summary.Cash,
			CardTotal:     ledger.Summary.Card,
			TransferTotal: ledger.Summary.Transfer,
			Total:         ledger.Summary.Total,
			DiscountTotal: ledger.Summary.DiscountTotal,
		},
		Total: ledger.Total,
	}
	for _, g := range ledger.Groups {
		dto.Groups = append(dto.Groups, EntryGroupDTO{
			ID:      g.ID,
			Name:    g.Name,
			Total:   g.Total,
			Entries: toEntryDTOs(g.Entries),
		})
	}
	if dto.Groups == nil {
		dto.Groups = []EntryGroupDTO{}
	}
	if dto.Ungrouped == nil {
		dto.Ungrouped = []EntryDTO{}
	}
	writeJSON(w, http.StatusOK, dto)
}

// CreateManualEntry records an operator-entered lump sum against an event.
// POST /api/accounting
func (h *Handler) CreateManualEntry(w http.ResponseWriter, r *http.Request) {
	var req CreateManualEntryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	category, ok := parseCategory(req.Category)
	if !ok {
		writeError(w, http.StatusBadRequest, "Invalid category", nil)
		return
	}

	entries, staleKeys, err := h.Service.CreateManualEntries(r.Context(), req.EventID, category,
		billing.InstrumentTotals{
			Cash:     req.CashAmount,
			Card:     req.CardAmount,
			Transfer: req.TransferAmount,
		}, req.Description)
	if err != nil {
		h.writeDomainError(w, "Failed to create entries", err)
		return
	}

	h.Metrics.EntriesWritten.Add(float64(len(entries)))
	h.Cache.Invalidate(r.Context(), staleKeys)
	writeJSON(w, http.StatusCreated, toEntryDTOs(entries))
}

// UpdateEntry edits one accounting entry.
// PUT /api/accounting/{id}
func (h *Handler) UpdateEntry(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid entry id", err)
		return
	}

	var req UpdateEntryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	update := billing.EntryUpdate{
		Amount:           req.Amount,
		DiscountPercent:  req.DiscountPercent,
		Description:      req.Description,
		PaymentGroupName: req.PaymentGroupName,
	}
	if req.Instrument != nil {
		instrument, ok := parseInstrument(*req.Instrument)
		if !ok {
			writeError(w, http.StatusBadRequest, "Invalid instrument", nil)
			return
		}
		update.Instrument = &instrument
	}
	if req.Category != nil {
		category, ok := parseCategory(*req.Category)
		if !ok {
			writeError(w, http.StatusBadRequest, "Invalid category", nil)
			return
		}
		update.Category = &category
	}

	result, err := h.Service.UpdateEntry(r.Context(), id, update)
	if err != nil {
		h.writeDomainError(w, "Failed to update entry", err)
		return
	}
	h.finishMutation(r, result)
	writeJSON(w, http.StatusOK, toEntryDTO(result.Entry))
}

// DeleteEntry soft-deletes one accounting entry.
// DELETE /api/accounting/{id}
func (h *Handler) DeleteEntry(w http.ResponseWriter, r *http.Request) {
	h.setEntryDeleted(w, r, true)
}

// RestoreEntry brings a soft-deleted entry back.
// POST /api/accounting/{id}/restore
func (h *Handler) RestoreEntry(w http.ResponseWriter, r *http.Request) {
	h.setEntryDeleted(w, r, false)
}

func (h *Handler) setEntryDeleted(w http.ResponseWriter, r *http.Request, deleted bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid entry id", err)
		return
	}

	var result *billing.EntryMutationResult
	if deleted {
		result, err = h.Service.DeleteEntry(r.Context(), id)
	} else {
		result, err = h.Service.RestoreEntry(r.Context(), id)
	}
	if err != nil {
		h.writeDomainError(w, "Failed to change entry", err)
		return
	}
	h.finishMutation(r, result)
	writeJSON(w, http.StatusOK, toEntryDTO(result.Entry))
}

func (h *Handler) finishMutation(r *http.Request, result *billing.EntryMutationResult) {
	if result.Reconciled != nil {
		h.Metrics.Reconciliations.WithLabelValues(string(result.Reconciled.Status)).Inc()
	}
	h.Cache.Invalidate(r.Context(), result.StaleCacheKeys)
}

// =============================================================================
// GROUP HANDLERS
// =============================================================================

// RenameGroup sets the display name on every entry of a payment group.
// PUT /api/accounting/groups/{groupId}/name
func (h *Handler) RenameGroup(w http.ResponseWriter, r *http.Request) {
	groupID := chi.URLParam(r, "groupId")

	var req RenameGroupRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	if err := h.Service.RenameGroup(r.Context(), groupID, req.Name); err != nil {
		h.writeDomainError(w, "Failed to rename group", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true})
}

// SetGroupDiscount rewrites the discount across a payment group.
// PUT /api/accounting/groups/{groupId}/discount
func (h *Handler) SetGroupDiscount(w http.ResponseWriter, r *http.Request) {
	groupID := chi.URLParam(r, "groupId")

	var req GroupDiscountRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	result, err := h.Service.RewriteGroupDiscount(r.Context(), groupID, req.DiscountPercent)
	if err != nil {
		h.writeDomainError(w, "Failed to apply group discount", err)
		return
	}

	for _, rec := range result.Reconciled {
		h.Metrics.Reconciliations.WithLabelValues(string(rec.Status)).Inc()
	}
	h.Cache.Invalidate(r.Context(), result.StaleCacheKeys)

	writeJSON(w, http.StatusOK, GroupDiscountResultDTO{
		DiscountPercent: result.DiscountPercent,
		DiscountAmount:  result.DiscountAmount,
		OriginalAmount:  result.OriginalAmount,
		FinalAmount:     result.FinalAmount,
		AffectedEntries: result.AffectedEntries,
	})
}

// =============================================================================
// REGISTRATION HANDLERS
// =============================================================================

// ListRegistrations returns the registrations of an event with their derived
// payment state.
// GET /api/registrations?eventId=1
func (h *Handler) ListRegistrations(w http.ResponseWriter, r *http.Request) {
	eventID, err := strconv.ParseInt(r.URL.Query().Get("eventId"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid or missing eventId", err)
		return
	}

	regs, err := h.Store.ListRegistrationsByEvent(r.Context(), eventID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list registrations", err)
		return
	}

	dtos := make([]RegistrationDTO, len(regs))
	for i, reg := range regs {
		dtos[i] = toRegistrationDTO(reg)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// =============================================================================
// HELPERS
// =============================================================================

func parseCategory(s string) (billing.Category, bool) {
	switch billing.Category(s) {
	case billing.CategoryPerformance, billing.CategoryDiplomasMedals:
		return billing.Category(s), true
	}
	return "", false
}

func parseInstrument(s string) (billing.Instrument, bool) {
	switch billing.Instrument(s) {
	case billing.InstrumentCash, billing.InstrumentCard, billing.InstrumentTransfer:
		return billing.Instrument(s), true
	}
	return "", false
}

// writeDomainError maps billing errors onto HTTP statuses. Amount mismatches
// carry the totals so the operator can correct the declared split.
func (h *Handler) writeDomainError(w http.ResponseWriter, message string, err error) {
	var mismatch *billing.AmountMismatchError
	if errors.As(err, &mismatch) {
		h.Metrics.PaymentMismatches.Inc()
		paid, required, diff := mismatch.TotalPaid, mismatch.TotalRequired, mismatch.Difference()
		writeJSON(w, http.StatusBadRequest, ErrorResponse{
			Error:         "Payment amount does not match the required total",
			TotalPaid:     &paid,
			TotalRequired: &required,
			Difference:    &diff,
		})
		return
	}

	switch {
	case billing.IsValidation(err):
		writeError(w, http.StatusBadRequest, message, err)
	case billing.IsNotFound(err):
		writeError(w, http.StatusNotFound, message, err)
	default:
		h.Logger.Error().Err(err).Msg(message)
		writeError(w, http.StatusInternalServerError, message, err)
	}
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}
