/**
 * @description
 * This file contains the entry point for the payout-dispatch business logic. The
 * `Service` struct wires the eligibility resolver, the two-phase dispatcher, and the
 * provider status consumer around a shared settings value, provider client, recipient
 * store, and event publisher.
 *
 * @dependencies
 * - internal/config, internal/domain, internal/store: settings, models, persistence.
 * - pkg/rabbitmq: outcome and status event publishing.
 */

package app

import (
	"context"

	"github.com/Deed3Labs/Protocol-Contracts-sub005/internal/config"
	"github.com/Deed3Labs/Protocol-Contracts-sub005/internal/domain"
	"github.com/Deed3Labs/Protocol-Contracts-sub005/internal/store"
	"github.com/Deed3Labs/Protocol-Contracts-sub005/pkg/rabbitmq"
)

// Service provides the payout-dispatch use cases.
type Service struct {
	settings       config.BridgeSettings
	eligibility    *EligibilityResolver
	dispatcher     *Dispatcher
	statusConsumer *ProviderStatusConsumer
}

// NewService creates a new payout service instance. A nil publisher degrades to a
// logging no-op.
func NewService(settings config.BridgeSettings, bridge BridgeAPI, recipients store.RecipientStore, publisher rabbitmq.Publisher, exchange string) *Service {
	if publisher == nil {
		publisher = &rabbitmq.EventProducerFallback{}
	}
	return &Service{
		settings:       settings,
		eligibility:    NewEligibilityResolver(settings, bridge, recipients),
		dispatcher:     NewDispatcher(settings, bridge, publisher, exchange),
		statusConsumer: NewProviderStatusConsumer(publisher, exchange),
	}
}

// EnsureRecipientEligibility resolves whether recipient can be paid through method.
func (s *Service) EnsureRecipientEligibility(ctx context.Context, transfer domain.TransferSnapshot, method domain.PayoutMethod, recipient *domain.RecipientContext) domain.EligibilityResult {
	return s.eligibility.Ensure(ctx, transfer, method, recipient)
}

// Dispatch runs a precheck or execute phase for a transfer.
func (s *Service) Dispatch(ctx context.Context, req domain.DispatchRequest) domain.DispatchResponse {
	return s.dispatcher.Dispatch(ctx, req)
}

// ProviderStatusConsumer returns the consumer for relayed provider transfer events.
func (s *Service) ProviderStatusConsumer() *ProviderStatusConsumer {
	return s.statusConsumer
}

// Settings returns the resolved provider settings.
func (s *Service) Settings() config.BridgeSettings {
	return s.settings
}
