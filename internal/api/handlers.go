/**
 * @description
 * HTTP handlers for the payout service. Typed outcomes (including FAILED) are always
 * returned with HTTP 200; only malformed input, authentication, and throttling use
 * error status codes.
 */
package api

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/Deed3Labs/Protocol-Contracts-sub005/internal/domain"
)

const (
	executeRateLimitScope  = "execute"
	executeRateLimitWindow = time.Minute
	maxRequestBodyBytes    = 1 << 20
)

// PayoutService is the subset of app.Service the handlers call.
type PayoutService interface {
	EnsureRecipientEligibility(ctx context.Context, transfer domain.TransferSnapshot, method domain.PayoutMethod, recipient *domain.RecipientContext) domain.EligibilityResult
	Dispatch(ctx context.Context, req domain.DispatchRequest) domain.DispatchResponse
}

// DispatchRateLimiter throttles execute calls per transfer.
type DispatchRateLimiter interface {
	ConsumeRateLimit(ctx context.Context, scope string, subject string, limit int, window time.Duration) (count int, retryAfterSeconds int, err error)
}

// Handler holds the application service that handlers will interact with.
type Handler struct {
	service      PayoutService
	limiter      DispatchRateLimiter
	executeLimit int
}

// NewHandler creates a new Handler. A nil limiter or non-positive executeLimit
// disables execute throttling.
func NewHandler(service PayoutService, limiter DispatchRateLimiter, executeLimit int) *Handler {
	return &Handler{service: service, limiter: limiter, executeLimit: executeLimit}
}

type eligibilityRequest struct {
	Transfer  domain.TransferSnapshot  `json:"transfer"`
	Method    string                   `json:"method"`
	Recipient *domain.RecipientContext `json:"recipient"`
}

type dispatchRequest struct {
	Phase                      string                  `json:"phase"`
	Method                     string                  `json:"method"`
	Transfer                   domain.TransferSnapshot `json:"transfer"`
	TreasuryTxHash             string                  `json:"treasury_tx_hash"`
	RecipientCustomerID        string                  `json:"recipient_customer_id"`
	RecipientExternalAccountID string                  `json:"recipient_external_account_id"`
}

func (h *Handler) handleEnsureEligibility(w http.ResponseWriter, r *http.Request) {
	var req eligibilityRequest
	if !decodeJSONBody(w, r, &req) {
		return
	}

	method, ok := domain.ParsePayoutMethod(req.Method)
	if !ok {
		writeError(w, http.StatusBadRequest, "method must be DEBIT or BANK")
		return
	}
	if strings.TrimSpace(req.Transfer.ID) == "" {
		writeError(w, http.StatusBadRequest, "transfer.id is required")
		return
	}

	result := h.service.EnsureRecipientEligibility(r.Context(), req.Transfer, method, req.Recipient)
	writeJSON(w, http.StatusOK, result)
}

func (h *Handler) handleDispatch(w http.ResponseWriter, r *http.Request) {
	var req dispatchRequest
	if !decodeJSONBody(w, r, &req) {
		return
	}

	method, ok := domain.ParsePayoutMethod(req.Method)
	if !ok {
		writeError(w, http.StatusBadRequest, "method must be DEBIT or BANK")
		return
	}
	phase, ok := domain.ParseDispatchPhase(req.Phase)
	if !ok {
		writeError(w, http.StatusBadRequest, "phase must be precheck or execute")
		return
	}
	transferID := strings.TrimSpace(req.Transfer.ID)
	if transferID == "" {
		writeError(w, http.StatusBadRequest, "transfer.id is required")
		return
	}

	if phase == domain.PhaseExecute && h.limiter != nil && h.executeLimit > 0 {
		count, retryAfter, err := h.limiter.ConsumeRateLimit(r.Context(), executeRateLimitScope, transferID, h.executeLimit, executeRateLimitWindow)
		if err != nil {
			log.Printf("level=warn component=api transfer_id=%s msg=\"dispatch rate limiter unavailable; allowing request\" err=%v", transferID, err)
		} else if count > h.executeLimit {
			log.Printf("level=warn component=api transfer_id=%s count=%d limit=%d msg=\"execute dispatch throttled\"", transferID, count, h.executeLimit)
			w.Header().Set("Retry-After", strconv.Itoa(retryAfter))
			writeError(w, http.StatusTooManyRequests, "too many execute attempts for this transfer")
			return
		}
	}

	resp := h.service.Dispatch(r.Context(), domain.DispatchRequest{
		Phase:                      phase,
		Method:                     method,
		Transfer:                   req.Transfer,
		TreasuryTxHash:             strings.TrimSpace(req.TreasuryTxHash),
		RecipientCustomerID:        strings.TrimSpace(req.RecipientCustomerID),
		RecipientExternalAccountID: strings.TrimSpace(req.RecipientExternalAccountID),
	})
	writeJSON(w, http.StatusOK, resp)
}

func decodeJSONBody(w http.ResponseWriter, r *http.Request, target interface{}) bool {
	decoder := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBodyBytes))
	if err := decoder.Decode(target); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return false
	}
	return true
}

// writeJSON writes JSON responses.
func writeJSON(w http.ResponseWriter, code int, payload interface{}) {
	response, err := json.Marshal(payload)
	if err != nil {
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	w.Write(response)
}

func writeError(w http.ResponseWriter, code int, message string) {
	writeJSON(w, code, map[string]string{"error": message})
}
