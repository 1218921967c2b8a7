package duffel

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/suitpax/orderchanges/config"
)

const apiVersion = "v2"

// Client is a thin wrapper over the flight-booking API. It is constructed
// explicitly and injected into the services that need it, never held as a
// package-level singleton.
type Client struct {
	baseURL string
	apiKey  string
	http    *http.Client
}

func NewClient(cfg config.DuffelConfig) *Client {
	timeout := time.Duration(cfg.TimeoutSeconds) * time.Second
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		baseURL: cfg.BaseURL,
		apiKey:  cfg.APIKey,
		http:    &http.Client{Timeout: timeout},
	}
}

func (c *Client) GetOrder(ctx context.Context, orderID string) (*Order, error) {
	var out struct {
		Data Order `json:"data"`
	}
	if err := c.do(ctx, http.MethodGet, "/air/orders/"+orderID, nil, &out); err != nil {
		return nil, err
	}
	return &out.Data, nil
}

func (c *Client) CreateChangeRequest(ctx context.Context, input CreateChangeRequestInput) (*ChangeRequest, error) {
	body := map[string]interface{}{"data": input}
	var out struct {
		Data ChangeRequest `json:"data"`
	}
	if err := c.do(ctx, http.MethodPost, "/air/order_change_requests", body, &out); err != nil {
		return nil, err
	}
	normalizeOffers(out.Data.Offers)
	return &out.Data, nil
}

func (c *Client) GetChangeRequest(ctx context.Context, changeRequestID string) (*ChangeRequest, error) {
	var out struct {
		Data ChangeRequest `json:"data"`
	}
	if err := c.do(ctx, http.MethodGet, "/air/order_change_requests/"+changeRequestID, nil, &out); err != nil {
		return nil, err
	}
	normalizeOffers(out.Data.Offers)
	return &out.Data, nil
}

// ConfirmChangeOffer turns a selected offer into a pending order change and
// confirms it in one go. Payment may be nil when the offer carries no
// additional collectible amount.
func (c *Client) ConfirmChangeOffer(ctx context.Context, offerID string, payment *Payment) (*ConfirmedChange, error) {
	create := map[string]interface{}{
		"data": map[string]string{"selected_order_change_offer": offerID},
	}
	var pending struct {
		Data ConfirmedChange `json:"data"`
	}
	if err := c.do(ctx, http.MethodPost, "/air/order_changes", create, &pending); err != nil {
		return nil, err
	}

	confirm := map[string]interface{}{"data": map[string]interface{}{}}
	if payment != nil {
		confirm = map[string]interface{}{"data": map[string]interface{}{"payment": payment}}
	}
	var out struct {
		Data ConfirmedChange `json:"data"`
	}
	path := "/air/order_changes/" + pending.Data.ID + "/actions/confirm"
	if err := c.do(ctx, http.MethodPost, path, confirm, &out); err != nil {
		return nil, err
	}
	return &out.Data, nil
}

func (c *Client) do(ctx context.Context, method, path string, body, out interface{}) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request body: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Duffel-Version", apiVersion)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return &Error{Kind: KindUnknown, Message: err.Error()}
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return &Error{Kind: KindUnknown, Message: err.Error()}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return classifyError(resp.StatusCode, data)
	}

	if out != nil {
		if err := json.Unmarshal(data, out); err != nil {
			return fmt.Errorf("decode response: %w", err)
		}
	}
	return nil
}

func normalizeOffers(offers []ChangeOffer) {
	for i := range offers {
		if offers[i].Penalty == nil {
			offers[i].Penalty = &Money{Amount: "0", Currency: "USD"}
		}
		if offers[i].Penalty.Amount == "" {
			offers[i].Penalty.Amount = "0"
		}
		if offers[i].Penalty.Currency == "" {
			offers[i].Penalty.Currency = "USD"
		}
	}
}
