package domain

import "time"

// DispatchOutcomeEvent is published after every execute-phase dispatch.
type DispatchOutcomeEvent struct {
	EventID            string         `json:"event_id"`
	TransferID         string         `json:"transfer_id"`
	ExternalTransferID string         `json:"external_transfer_id,omitempty"`
	Method             PayoutMethod   `json:"method"`
	Status             DispatchStatus `json:"status"`
	Provider           string         `json:"provider"`
	ProviderReference  string         `json:"provider_reference,omitempty"`
	FailureCode        string         `json:"failure_code,omitempty"`
	FailureReason      string         `json:"failure_reason,omitempty"`
	TreasuryTxHash     string         `json:"treasury_tx_hash,omitempty"`
	OccurredAt         time.Time      `json:"occurred_at"`
}

// ProviderTransferEvent is the provider webhook payload for transfer state changes,
// relayed onto the broker. Some relays flatten the transfer object onto the top level.
type ProviderTransferEvent struct {
	EventID     string                 `json:"event_id"`
	EventType   string                 `json:"event_type"`
	EventObject *ProviderTransferState `json:"event_object,omitempty"`
	ProviderTransferState
}

// ProviderTransferState is the subset of a provider transfer object this service reads.
type ProviderTransferState struct {
	ID                string `json:"id"`
	State             string `json:"state"`
	ClientReferenceID string `json:"client_reference_id"`
}

// PayoutStatusEvent is the normalized status republished for the rest of the system.
type PayoutStatusEvent struct {
	EventID           string         `json:"event_id"`
	TransferID        string         `json:"transfer_id,omitempty"`
	Provider          string         `json:"provider"`
	ProviderReference string         `json:"provider_reference"`
	ClientReferenceID string         `json:"client_reference_id,omitempty"`
	ProviderState     string         `json:"provider_state"`
	Status            DispatchStatus `json:"status"`
	OccurredAt        time.Time      `json:"occurred_at"`
}
