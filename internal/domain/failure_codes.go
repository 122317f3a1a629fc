package domain

import (
	"fmt"
	"strings"
)

// Failure codes are part of the service contract: callers switch on them, so they
// must stay stable once published.
const (
	CodeAPIKeyMissing             = "BRIDGE_API_KEY_MISSING"
	CodeTransferConfigMissing     = "BRIDGE_TRANSFER_CONFIG_MISSING"
	CodeDestinationConfigMissing  = "BRIDGE_DESTINATION_CONFIG_MISSING"
	CodeDebitRailUnconfigured     = "BRIDGE_DEBIT_RAIL_UNCONFIGURED"
	CodeRecipientEmailRequired    = "BRIDGE_RECIPIENT_EMAIL_REQUIRED"
	CodeExternalAccountMissing    = "BRIDGE_EXTERNAL_ACCOUNT_MISSING"
	CodeOnboardingRequired        = "BRIDGE_ONBOARDING_REQUIRED"
	CodeOnboardingLinkUnavailable = "BRIDGE_ONBOARDING_LINK_UNAVAILABLE"
	CodeRegionUnsupported         = "BRIDGE_REGION_UNSUPPORTED"
	CodeAmountInvalid             = "BRIDGE_AMOUNT_INVALID"
	CodeRequestFailed             = "BRIDGE_REQUEST_FAILED"
	CodeRecipientStoreFailed      = "BRIDGE_RECIPIENT_STORE_FAILED"
	CodeRequestInvalid            = "BRIDGE_REQUEST_INVALID"
	CodeTransferRejected          = "BRIDGE_TRANSFER_REJECTED"
)

// ExternalAccountIneligibleCode returns the method-specific ineligible code,
// e.g. BRIDGE_DEBIT_EXTERNAL_ACCOUNT_INELIGIBLE.
func ExternalAccountIneligibleCode(method PayoutMethod) string {
	return fmt.Sprintf("BRIDGE_%s_EXTERNAL_ACCOUNT_INELIGIBLE", strings.ToUpper(string(method)))
}

// HTTPStatusCode returns the transport failure code for a provider status, e.g. BRIDGE_HTTP_502.
func HTTPStatusCode(status int) string {
	if status <= 0 {
		return CodeRequestFailed
	}
	return fmt.Sprintf("BRIDGE_HTTP_%d", status)
}
