package bridgeclient

import (
	"context"
	"net/http"
	"time"
)

// TransferRequest is the payload for creating a Bridge transfer.
type TransferRequest struct {
	Amount            string                 `json:"amount"`
	OnBehalfOf        string                 `json:"on_behalf_of,omitempty"`
	ClientReferenceID string                 `json:"client_reference_id"`
	Source            map[string]interface{} `json:"source"`
	Destination       map[string]interface{} `json:"destination"`
	Metadata          map[string]string      `json:"metadata,omitempty"`
}

// CreateTransfer submits a transfer. The raw response is returned because the
// status and reference fields are not uniform across transfer types. A 2xx body
// that is not a JSON object comes back as {"message": <text>} or an empty map.
func (c *Client) CreateTransfer(ctx context.Context, path string, req TransferRequest, idempotencyKey string, timeout time.Duration) (map[string]interface{}, error) {
	if path == "" {
		path = "/transfers"
	}
	body, err := c.Do(ctx, Call{
		Operation: "create_transfer",
		Method:    http.MethodPost,
		Path:      path,
		Body:      req,
		Headers:   map[string]string{"Idempotency-Key": idempotencyKey},
		Timeout:   timeout,
	})
	if err != nil {
		return nil, err
	}

	// The provider accepted the transfer; a body we cannot read must not turn that
	// into a failure.
	switch decoded := body.(type) {
	case map[string]interface{}:
		return decoded, nil
	case string:
		return map[string]interface{}{"message": decoded}, nil
	default:
		return map[string]interface{}{}, nil
	}
}
