package bridgeclient

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
)

// KYCLink is Bridge's onboarding record. Creating one also creates the customer.
type KYCLink struct {
	ID         string `json:"id"`
	CustomerID string `json:"customer_id"`
	FullName   string `json:"full_name"`
	Email      string `json:"email"`
	Type       string `json:"type"`
	KYCLink    string `json:"kyc_link"`
	TOSLink    string `json:"tos_link"`
	KYCStatus  string `json:"kyc_status"`
	TOSStatus  string `json:"tos_status"`
}

// CreateKYCLinkRequest is the payload for POST /kyc_links.
type CreateKYCLinkRequest struct {
	FullName    string `json:"full_name"`
	Email       string `json:"email"`
	Type        string `json:"type"`
	RedirectURI string `json:"redirect_uri,omitempty"`
}

type linkResponse struct {
	URL string `json:"url"`
}

// listEnvelope tolerates both {"data": [...]} and a bare array.
type listEnvelope[T any] struct {
	Items []T
}

func (l *listEnvelope[T]) UnmarshalJSON(raw []byte) error {
	trimmed := strings.TrimSpace(string(raw))
	if strings.HasPrefix(trimmed, "[") {
		return json.Unmarshal(raw, &l.Items)
	}
	var wrapped struct {
		Data []T `json:"data"`
	}
	if err := json.Unmarshal(raw, &wrapped); err != nil {
		return err
	}
	l.Items = wrapped.Data
	return nil
}

// FindKYCLinkByEmail returns the most recent onboarding record for email, or nil.
func (c *Client) FindKYCLinkByEmail(ctx context.Context, email string) (*KYCLink, error) {
	query := url.Values{}
	query.Set("email", email)
	query.Set("limit", "1")

	var resp listEnvelope[KYCLink]
	if err := c.doInto(ctx, Call{
		Operation: "find_kyc_link",
		Method:    http.MethodGet,
		Path:      "/kyc_links?" + query.Encode(),
	}, &resp); err != nil {
		return nil, err
	}
	if len(resp.Items) == 0 {
		return nil, nil
	}
	link := resp.Items[0]
	return &link, nil
}

// CreateKYCLink starts onboarding for a new individual customer.
func (c *Client) CreateKYCLink(ctx context.Context, req CreateKYCLinkRequest, idempotencyKey string) (*KYCLink, error) {
	if req.Type == "" {
		req.Type = "individual"
	}
	var link KYCLink
	if err := c.doInto(ctx, Call{
		Operation: "create_kyc_link",
		Method:    http.MethodPost,
		Path:      "/kyc_links",
		Body:      req,
		Headers:   map[string]string{"Idempotency-Key": idempotencyKey},
	}, &link); err != nil {
		return nil, err
	}
	return &link, nil
}

// GetTOSLink fetches a fresh terms-of-service acceptance URL for an existing customer.
func (c *Client) GetTOSLink(ctx context.Context, customerID string) (string, error) {
	var resp linkResponse
	if err := c.doInto(ctx, Call{
		Operation: "get_tos_link",
		Method:    http.MethodGet,
		Path:      fmt.Sprintf("/customers/%s/tos_acceptance_link", url.PathEscape(customerID)),
	}, &resp); err != nil {
		return "", err
	}
	return strings.TrimSpace(resp.URL), nil
}

// GetKYCLink fetches a fresh identity-verification URL for an existing customer.
func (c *Client) GetKYCLink(ctx context.Context, customerID, redirectURI string) (string, error) {
	path := fmt.Sprintf("/customers/%s/kyc_link", url.PathEscape(customerID))
	if redirectURI != "" {
		path += "?" + url.Values{"redirect_uri": {redirectURI}}.Encode()
	}

	var resp linkResponse
	if err := c.doInto(ctx, Call{
		Operation: "get_kyc_link",
		Method:    http.MethodGet,
		Path:      path,
	}, &resp); err != nil {
		return "", err
	}
	return strings.TrimSpace(resp.URL), nil
}

// ListExternalAccounts returns the customer's external accounts as raw records.
// Records stay untyped because rail information arrives in several shapes.
func (c *Client) ListExternalAccounts(ctx context.Context, customerID string, limit int) ([]map[string]interface{}, error) {
	path := fmt.Sprintf("/customers/%s/external_accounts", url.PathEscape(customerID))
	if limit > 0 {
		path += "?limit=" + strconv.Itoa(limit)
	}

	var resp listEnvelope[map[string]interface{}]
	if err := c.doInto(ctx, Call{
		Operation: "list_external_accounts",
		Method:    http.MethodGet,
		Path:      path,
	}, &resp); err != nil {
		return nil, err
	}
	return resp.Items, nil
}
