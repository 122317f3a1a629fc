package app

import (
	"context"
	"encoding/json"
	"log"
	"strings"
	"time"

	"github.com/Deed3Labs/Protocol-Contracts-sub005/internal/domain"
	"github.com/Deed3Labs/Protocol-Contracts-sub005/internal/metrics"
	"github.com/Deed3Labs/Protocol-Contracts-sub005/pkg/rabbitmq"
	"github.com/google/uuid"
)

// ProviderStatusConsumer turns relayed provider transfer webhooks into normalized
// payout status events.
type ProviderStatusConsumer struct {
	publisher rabbitmq.Publisher
	exchange  string
	now       func() time.Time
}

func NewProviderStatusConsumer(publisher rabbitmq.Publisher, exchange string) *ProviderStatusConsumer {
	if publisher == nil {
		publisher = &rabbitmq.EventProducerFallback{}
	}
	return &ProviderStatusConsumer{publisher: publisher, exchange: exchange, now: time.Now}
}

// HandleMessage returns true to acknowledge and false to requeue. Malformed payloads
// are acknowledged and dropped.
func (c *ProviderStatusConsumer) HandleMessage(body []byte) bool {
	var event domain.ProviderTransferEvent
	if err := json.Unmarshal(body, &event); err != nil {
		log.Printf("level=warn component=provider_status_consumer msg=\"failed to unmarshal payload; dropping\" err=%v", err)
		return true
	}

	state := event.ProviderTransferState
	if event.EventObject != nil && event.EventObject.ID != "" {
		state = *event.EventObject
	}
	if strings.TrimSpace(state.ID) == "" {
		log.Printf("level=warn component=provider_status_consumer event_id=%s msg=\"missing provider transfer id; dropping\"", event.EventID)
		return true
	}

	status := NormalizeProviderStatus(state.State)
	metrics.RecordStatusEvent(string(status))

	out := domain.PayoutStatusEvent{
		EventID:           event.EventID,
		TransferID:        transferIDFromReference(state.ClientReferenceID),
		Provider:          domain.ProviderName,
		ProviderReference: state.ID,
		ClientReferenceID: state.ClientReferenceID,
		ProviderState:     state.State,
		Status:            status,
		OccurredAt:        c.now().UTC(),
	}
	if out.EventID == "" {
		out.EventID = uuid.NewString()
	}

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	routingKey := "payout.status." + strings.ToLower(string(status))
	if err := c.publisher.Publish(ctx, c.exchange, routingKey, out); err != nil {
		log.Printf("level=error component=provider_status_consumer provider_reference=%s routing_key=%s msg=\"publish failed; requeueing\" err=%v", state.ID, routingKey, err)
		return false
	}
	return true
}

// transferIDFromReference recovers the transfer id from "<transferID>-<method>-<unixMilli>".
// Transfer ids may themselves contain dashes.
func transferIDFromReference(reference string) string {
	reference = strings.TrimSpace(reference)
	last := strings.LastIndex(reference, "-")
	if last <= 0 {
		return ""
	}
	rest := reference[:last]
	methodSep := strings.LastIndex(rest, "-")
	if methodSep <= 0 {
		return ""
	}
	if _, ok := domain.ParsePayoutMethod(rest[methodSep+1:]); !ok {
		return ""
	}
	return rest[:methodSep]
}
