// Package delivery talks to the third-party logistics API that books pickups.
package delivery

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/diagnosis/foodshare-donations/pkg/logger"
)

var ErrNotConfigured = errors.New("delivery gateway not configured")

type Booking struct {
	DeliveryID  string `json:"delivery_id"`
	TrackingURL string `json:"tracking_url"`
}

// Gateway books a delivery for a donation pickup.
type Gateway interface {
	Book(ctx context.Context, donationID, pickupAddress string) (*Booking, error)
}

type Client struct {
	baseURL string
	apiKey  string
	client  *http.Client
}

func NewClient(baseURL, apiKey string, timeout time.Duration) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		client: &http.Client{
			Timeout: timeout,
		},
	}
}

type bookRequest struct {
	Reference     string `json:"reference"`
	PickupAddress string `json:"pickup_address"`
}

func (c *Client) Book(ctx context.Context, donationID, pickupAddress string) (*Booking, error) {
	if c.baseURL == "" {
		return nil, ErrNotConfigured
	}

	body, err := json.Marshal(bookRequest{Reference: donationID, PickupAddress: pickupAddress})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal booking request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/deliveries", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}
	if requestID, ok := ctx.Value(logger.RequestIDKey).(string); ok {
		req.Header.Set("X-Request-ID", requestID)
	}
	// lets the provider dedupe retries from our callers
	req.Header.Set("Idempotency-Key", "donation-"+donationID)

	logger.DebugContext(ctx, "Booking delivery", "donation_id", donationID, "url", req.URL.String())

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("delivery request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("delivery gateway error: status=%d body=%s", resp.StatusCode, strings.TrimSpace(string(msg)))
	}

	var b Booking
	if err := json.NewDecoder(resp.Body).Decode(&b); err != nil {
		return nil, fmt.Errorf("failed to decode delivery response: %w", err)
	}
	if b.DeliveryID == "" {
		return nil, fmt.Errorf("delivery gateway returned no delivery_id")
	}
	return &b, nil
}

var _ Gateway = (*Client)(nil)
