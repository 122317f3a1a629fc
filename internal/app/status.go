package app

import (
	"strings"

	"github.com/Deed3Labs/Protocol-Contracts-sub005/internal/domain"
)

var providerStatuses = map[string]domain.DispatchStatus{
	"SUCCEEDED":         domain.DispatchSuccess,
	"COMPLETED":         domain.DispatchSuccess,
	"SETTLED":           domain.DispatchSuccess,
	"PAYMENT_PROCESSED": domain.DispatchSuccess,

	"PENDING":          domain.DispatchProcessing,
	"QUEUED":           domain.DispatchProcessing,
	"IN_PROGRESS":      domain.DispatchProcessing,
	"AWAITING_FUNDS":   domain.DispatchProcessing,
	"AWAITING_PAYMENT": domain.DispatchProcessing,
	"SUBMITTED":        domain.DispatchProcessing,

	"ERROR":     domain.DispatchFailed,
	"REJECTED":  domain.DispatchFailed,
	"CANCELED":  domain.DispatchFailed,
	"CANCELLED": domain.DispatchFailed,
	"EXPIRED":   domain.DispatchFailed,
	"RETURNED":  domain.DispatchFailed,
}

// NormalizeProviderStatus maps a provider transfer state onto the internal status set.
// Unknown or empty states are PROCESSING so they can never be mistaken for settlement.
func NormalizeProviderStatus(raw string) domain.DispatchStatus {
	key := strings.ToUpper(strings.TrimSpace(raw))
	key = strings.NewReplacer("-", "_", " ", "_").Replace(key)
	if status, ok := providerStatuses[key]; ok {
		return status
	}
	return domain.DispatchProcessing
}
