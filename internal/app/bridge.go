package app

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/Deed3Labs/Protocol-Contracts-sub005/internal/domain"
	"github.com/Deed3Labs/Protocol-Contracts-sub005/pkg/bridgeclient"
)

// BridgeAPI is the subset of the provider client used by the resolver and dispatcher.
type BridgeAPI interface {
	FindKYCLinkByEmail(ctx context.Context, email string) (*bridgeclient.KYCLink, error)
	CreateKYCLink(ctx context.Context, req bridgeclient.CreateKYCLinkRequest, idempotencyKey string) (*bridgeclient.KYCLink, error)
	GetTOSLink(ctx context.Context, customerID string) (string, error)
	GetKYCLink(ctx context.Context, customerID, redirectURI string) (string, error)
	ListExternalAccounts(ctx context.Context, customerID string, limit int) ([]map[string]interface{}, error)
	CreateTransfer(ctx context.Context, path string, req bridgeclient.TransferRequest, idempotencyKey string, timeout time.Duration) (map[string]interface{}, error)
}

// providerFailure maps a provider error onto a stable failure code and reason.
func providerFailure(err error) (code string, reason string) {
	var apiErr *bridgeclient.APIError
	if errors.As(err, &apiErr) {
		return domain.HTTPStatusCode(apiErr.StatusCode), apiErr.Message
	}
	return domain.CodeRequestFailed, err.Error()
}

// firstString returns the first non-empty string value among keys.
func firstString(record map[string]interface{}, keys ...string) string {
	for _, key := range keys {
		if value, ok := record[key].(string); ok {
			if trimmed := strings.TrimSpace(value); trimmed != "" {
				return trimmed
			}
		}
	}
	return ""
}
