/**
 * @description
 * This file defines the core domain models for the payout-dispatch service.
 * These structs represent the transfer projection handed to us by callers, the
 * persisted recipient record, and the typed outcomes returned by the eligibility
 * resolver and the dispatch orchestrator.
 *
 * @notes
 * - Amounts are carried as integer "micros" strings (1 unit = 1_000_000 micros) and are
 *   only converted to a decimal string at the moment a provider request is built.
 * - Outcomes never travel as Go errors across component boundaries; every failure path
 *   is a FailureCode/FailureReason pair on the result struct.
 */

package domain

import (
	"strings"
	"time"
)

// PayoutMethod identifies the payout rail family requested by the caller.
type PayoutMethod string

const (
	MethodDebit PayoutMethod = "DEBIT"
	MethodBank  PayoutMethod = "BANK"
)

// ParsePayoutMethod accepts any casing and reports whether the value is a known method.
func ParsePayoutMethod(raw string) (PayoutMethod, bool) {
	switch PayoutMethod(strings.ToUpper(strings.TrimSpace(raw))) {
	case MethodDebit:
		return MethodDebit, true
	case MethodBank:
		return MethodBank, true
	default:
		return "", false
	}
}

// DispatchPhase separates the side-effect free feasibility check from the payout call.
type DispatchPhase string

const (
	PhasePrecheck DispatchPhase = "precheck"
	PhaseExecute  DispatchPhase = "execute"
)

// ParseDispatchPhase accepts any casing and reports whether the value is a known phase.
func ParseDispatchPhase(raw string) (DispatchPhase, bool) {
	switch DispatchPhase(strings.ToLower(strings.TrimSpace(raw))) {
	case PhasePrecheck:
		return PhasePrecheck, true
	case PhaseExecute:
		return PhaseExecute, true
	default:
		return "", false
	}
}

// DispatchStatus is the closed set of outcomes the rest of the system acts on.
type DispatchStatus string

const (
	DispatchSuccess          DispatchStatus = "SUCCESS"
	DispatchProcessing       DispatchStatus = "PROCESSING"
	DispatchFallbackRequired DispatchStatus = "FALLBACK_REQUIRED"
	DispatchFailed           DispatchStatus = "FAILED"
)

// EligibilityStatus is the outcome of resolving a recipient against the provider.
type EligibilityStatus string

const (
	EligibilitySuccess        EligibilityStatus = "SUCCESS"
	EligibilityActionRequired EligibilityStatus = "ACTION_REQUIRED"
	EligibilityFailed         EligibilityStatus = "FAILED"
)

// RecipientStatus is the onboarding state persisted on a recipient record.
type RecipientStatus string

const (
	RecipientReady             RecipientStatus = "READY"
	RecipientPendingOnboarding RecipientStatus = "PENDING_ONBOARDING"
)

// ProviderName is reported on every dispatch response.
const ProviderName = "bridge"

// TransferSnapshot is an immutable projection of an internal "send" transfer.
// The dispatcher reads it and never writes back to it.
type TransferSnapshot struct {
	ID                 string    `json:"id"`
	ExternalTransferID string    `json:"external_transfer_id,omitempty"`
	SenderWallet       string    `json:"sender_wallet"`
	PrincipalMicros    string    `json:"principal_micros"`
	FeeMicros          string    `json:"fee_micros"`
	LockedMicros       string    `json:"locked_micros"`
	Region             string    `json:"region"`
	ChainID            int64     `json:"chain_id"`
	ExpiresAt          time.Time `json:"expires_at"`
}

// RecipientContext describes who is receiving the payout. ContactHash and HintHash are
// computed by the caller; this service never derives them.
type RecipientContext struct {
	Type        string `json:"type"` // e.g. "email", "phone", "wallet"
	Contact     string `json:"contact"`
	ContactHash string `json:"contact_hash"`
	HintHash    string `json:"hint_hash,omitempty"`
	Name        string `json:"name,omitempty"`
	Email       string `json:"email,omitempty"`
}

// RecipientRecord is the persisted onboarding state for a recipient.
// This struct maps directly to the `bridge_recipients` table.
type RecipientRecord struct {
	ContactHash           string          `json:"contact_hash"`
	HintHash              string          `json:"hint_hash"`
	Email                 string          `json:"email,omitempty"`
	CustomerID            string          `json:"customer_id,omitempty"`
	ExternalAccountID     string          `json:"external_account_id,omitempty"`
	ExternalAccountMethod PayoutMethod    `json:"external_account_method,omitempty"`
	Status                RecipientStatus `json:"status"`
	OnboardingURL         string          `json:"onboarding_url,omitempty"`
	KYCURL                string          `json:"kyc_url,omitempty"`
	TOSURL                string          `json:"tos_url,omitempty"`
	CreatedAt             time.Time       `json:"created_at"`
	UpdatedAt             time.Time       `json:"updated_at"`
}

// EligibilityResult is returned by the recipient eligibility resolver.
type EligibilityResult struct {
	Status            EligibilityStatus `json:"status"`
	CustomerID        string            `json:"customer_id,omitempty"`
	ExternalAccountID string            `json:"external_account_id,omitempty"`
	ActionURL         string            `json:"action_url,omitempty"`
	MissingFields     []string          `json:"missing_fields,omitempty"`
	FailureCode       string            `json:"failure_code,omitempty"`
	FailureReason     string            `json:"failure_reason,omitempty"`
}

// DispatchRequest is constructed per call by the caller of the orchestrator.
type DispatchRequest struct {
	Phase                      DispatchPhase    `json:"phase"`
	Method                     PayoutMethod     `json:"method"`
	Transfer                   TransferSnapshot `json:"transfer"`
	TreasuryTxHash             string           `json:"treasury_tx_hash,omitempty"`
	RecipientCustomerID        string           `json:"recipient_customer_id,omitempty"`
	RecipientExternalAccountID string           `json:"recipient_external_account_id,omitempty"`
}

// DispatchResponse is the normalized outcome of a precheck or execute call.
type DispatchResponse struct {
	Status            DispatchStatus `json:"status"`
	Provider          string         `json:"provider"`
	ProviderReference string         `json:"provider_reference,omitempty"`
	FailureCode       string         `json:"failure_code,omitempty"`
	FailureReason     string         `json:"failure_reason,omitempty"`
	FallbackMethod    PayoutMethod   `json:"fallback_method,omitempty"`
	ETA               string         `json:"eta,omitempty"`
}
