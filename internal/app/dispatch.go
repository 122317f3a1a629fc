/**
 * @description
 * This file implements the two-phase payout dispatcher. The precheck phase validates
 * that a payout for the requested method can be built and never calls the provider.
 * The execute phase builds the provider payload, issues exactly one transfer call,
 * and normalizes the provider state.
 *
 * @dependencies
 * - github.com/shopspring/decimal: converts integer micros to a decimal amount string.
 * - pkg/rabbitmq: publishes dispatch outcome events after execute.
 *
 * @notes
 * - Nothing here retries. A caller that sees PROCESSING or a transport failure owns
 *   its retry policy.
 */

package app

import (
	"context"
	"fmt"
	"log"
	"strconv"
	"strings"
	"time"

	"github.com/Deed3Labs/Protocol-Contracts-sub005/internal/config"
	"github.com/Deed3Labs/Protocol-Contracts-sub005/internal/domain"
	"github.com/Deed3Labs/Protocol-Contracts-sub005/internal/metrics"
	"github.com/Deed3Labs/Protocol-Contracts-sub005/pkg/bridgeclient"
	"github.com/Deed3Labs/Protocol-Contracts-sub005/pkg/rabbitmq"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

const microsExponent = -6

// Dispatcher runs precheck and execute for a single transfer.
type Dispatcher struct {
	settings  config.BridgeSettings
	bridge    BridgeAPI
	payloads  payloadBuilder
	publisher rabbitmq.Publisher
	exchange  string

	now func() time.Time
}

// NewDispatcher creates a dispatcher. A nil publisher disables outcome events.
func NewDispatcher(settings config.BridgeSettings, bridge BridgeAPI, publisher rabbitmq.Publisher, exchange string) *Dispatcher {
	if publisher == nil {
		publisher = &rabbitmq.EventProducerFallback{}
	}
	return &Dispatcher{
		settings:  settings,
		bridge:    bridge,
		payloads:  payloadBuilder{settings: settings},
		publisher: publisher,
		exchange:  exchange,
		now:       time.Now,
	}
}

// Dispatch runs the requested phase and returns a normalized response.
func (d *Dispatcher) Dispatch(ctx context.Context, req domain.DispatchRequest) domain.DispatchResponse {
	if method, ok := domain.ParsePayoutMethod(string(req.Method)); ok {
		req.Method = method
	}
	if phase, ok := domain.ParseDispatchPhase(string(req.Phase)); ok {
		req.Phase = phase
	}

	resp := d.dispatch(ctx, req)
	resp.Provider = domain.ProviderName

	metrics.RecordDispatch(string(req.Phase), string(req.Method), string(resp.Status))
	log.Printf("level=info component=dispatcher transfer_id=%s phase=%s method=%s status=%s code=%s provider_reference=%s",
		req.Transfer.ID, req.Phase, req.Method, resp.Status, resp.FailureCode, resp.ProviderReference)

	if req.Phase == domain.PhaseExecute {
		d.publishOutcome(ctx, req, resp)
	}
	return resp
}

func (d *Dispatcher) dispatch(ctx context.Context, req domain.DispatchRequest) domain.DispatchResponse {
	if !d.settings.RegionEnabled(req.Transfer.Region) {
		return dispatchFailed(domain.CodeRegionUnsupported, fmt.Sprintf("payouts are not enabled for region %q", req.Transfer.Region))
	}
	if req.Method != domain.MethodDebit && req.Method != domain.MethodBank {
		return dispatchFailed(domain.CodeRequestInvalid, fmt.Sprintf("unsupported payout method %q", req.Method))
	}

	switch req.Phase {
	case domain.PhasePrecheck:
		return d.precheck(req)
	case domain.PhaseExecute:
		return d.execute(ctx, req)
	default:
		return dispatchFailed(domain.CodeRequestInvalid, fmt.Sprintf("unsupported dispatch phase %q", req.Phase))
	}
}

func (d *Dispatcher) precheck(req domain.DispatchRequest) domain.DispatchResponse {
	method := req.Method
	externalAccountID := strings.TrimSpace(req.RecipientExternalAccountID)

	if method == domain.MethodDebit && d.payloads.configuredRail(domain.MethodDebit) == "" {
		return fallbackToBank(domain.CodeDebitRailUnconfigured, "no debit destination rail is configured")
	}

	if d.settings.RequireOnboarding && externalAccountID == "" {
		reason := fmt.Sprintf("recipient has no %s external account on file", strings.ToLower(string(method)))
		if method == domain.MethodDebit {
			return fallbackToBank(domain.CodeExternalAccountMissing, reason)
		}
		return dispatchFailed(domain.CodeExternalAccountMissing, reason)
	}

	if d.payloads.destination(method, externalAccountID) == nil {
		reason := fmt.Sprintf("no %s destination can be built from the current configuration", strings.ToLower(string(method)))
		if method == domain.MethodDebit {
			return fallbackToBank(domain.CodeDestinationConfigMissing, reason)
		}
		return dispatchFailed(domain.CodeDestinationConfigMissing, reason)
	}

	return domain.DispatchResponse{
		Status: domain.DispatchSuccess,
		ETA:    d.settings.ETA(method),
	}
}

func (d *Dispatcher) execute(ctx context.Context, req domain.DispatchRequest) domain.DispatchResponse {
	if d.settings.APIKey == "" {
		return dispatchFailed(domain.CodeAPIKeyMissing, "bridge api key is not configured")
	}

	method := req.Method
	source := d.payloads.source()
	destination := d.payloads.destination(method, req.RecipientExternalAccountID)
	if source == nil || destination == nil {
		return dispatchFailed(domain.CodeTransferConfigMissing, "bridge transfer source or destination is not configured")
	}

	amount, err := microsToDecimal(req.Transfer.PrincipalMicros)
	if err != nil {
		return dispatchFailed(domain.CodeAmountInvalid, err.Error())
	}

	now := d.now()
	clientReference := fmt.Sprintf("%s-%s-%d", req.Transfer.ID, strings.ToLower(string(method)), now.UnixMilli())

	payload := bridgeclient.TransferRequest{
		Amount:            amount,
		OnBehalfOf:        strings.TrimSpace(req.RecipientCustomerID),
		ClientReferenceID: clientReference,
		Source:            source,
		Destination:       destination,
		Metadata:          transferMetadata(req),
	}

	result, err := d.bridge.CreateTransfer(ctx, d.settings.TransferPath, payload, clientReference, d.settings.TransferTimeout)
	if err != nil {
		code, reason := providerFailure(err)
		return dispatchFailed(code, reason)
	}

	providerState := firstString(result, "state", "status")
	resp := domain.DispatchResponse{
		Status:            NormalizeProviderStatus(providerState),
		ProviderReference: firstString(result, "provider_reference", "reference", "id", "transfer_id"),
		ETA:               d.settings.ETA(method),
	}
	if resp.ProviderReference == "" {
		resp.ProviderReference = fmt.Sprintf("bridge-%s-%d", req.Transfer.ID, now.UnixMilli())
	}
	if resp.Status == domain.DispatchFailed {
		resp.FailureCode = domain.CodeTransferRejected
		resp.FailureReason = fmt.Sprintf("payout provider reported state %q", providerState)
	}
	return resp
}

func (d *Dispatcher) publishOutcome(ctx context.Context, req domain.DispatchRequest, resp domain.DispatchResponse) {
	event := domain.DispatchOutcomeEvent{
		EventID:            uuid.NewString(),
		TransferID:         req.Transfer.ID,
		ExternalTransferID: req.Transfer.ExternalTransferID,
		Method:             req.Method,
		Status:             resp.Status,
		Provider:           resp.Provider,
		ProviderReference:  resp.ProviderReference,
		FailureCode:        resp.FailureCode,
		FailureReason:      resp.FailureReason,
		TreasuryTxHash:     req.TreasuryTxHash,
		OccurredAt:         d.now().UTC(),
	}
	routingKey := "payout.dispatch." + strings.ToLower(string(resp.Status))
	if err := d.publisher.Publish(ctx, d.exchange, routingKey, event); err != nil {
		log.Printf("level=warn component=dispatcher transfer_id=%s routing_key=%s msg=\"dispatch outcome publish failed\" err=%v", req.Transfer.ID, routingKey, err)
	}
}

func transferMetadata(req domain.DispatchRequest) map[string]string {
	metadata := map[string]string{
		"transfer_id": req.Transfer.ID,
		"method":      string(req.Method),
	}
	if req.Transfer.ExternalTransferID != "" {
		metadata["external_transfer_id"] = req.Transfer.ExternalTransferID
	}
	if req.TreasuryTxHash != "" {
		metadata["treasury_tx_hash"] = req.TreasuryTxHash
	}
	if req.Transfer.ChainID != 0 {
		metadata["chain_id"] = strconv.FormatInt(req.Transfer.ChainID, 10)
	}
	return metadata
}

// microsToDecimal converts a positive integer micros string to a decimal amount, e.g.
// "1500000" -> "1.5".
func microsToDecimal(micros string) (string, error) {
	value, err := decimal.NewFromString(strings.TrimSpace(micros))
	if err != nil {
		return "", fmt.Errorf("transfer amount %q is not a number", micros)
	}
	if !value.IsInteger() || value.Sign() <= 0 {
		return "", fmt.Errorf("transfer amount %q must be a positive integer of micros", micros)
	}
	return value.Shift(microsExponent).String(), nil
}

func dispatchFailed(code, reason string) domain.DispatchResponse {
	return domain.DispatchResponse{
		Status:        domain.DispatchFailed,
		FailureCode:   code,
		FailureReason: reason,
	}
}

func fallbackToBank(code, reason string) domain.DispatchResponse {
	return domain.DispatchResponse{
		Status:         domain.DispatchFallbackRequired,
		FallbackMethod: domain.MethodBank,
		FailureCode:    code,
		FailureReason:  reason,
	}
}
