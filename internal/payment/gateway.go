// Package payment implements the HTTP client for the external payment
// gateway.  The gateway protocol is deliberately small: issue an
// opaque token for a booking, submit the token for processing, and
// receive the final result out-of-band once the hosted checkout
// completes.
package payment

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// Config carries the gateway endpoint and credentials.
type Config struct {
	BaseURL string
	APIKey  string
	Timeout time.Duration
}

// Client is a minimal gateway client.  It holds no per-booking state;
// one client is shared by all requests.
type Client struct {
	hc  *http.Client
	cfg Config
}

// New returns a gateway client.  A zero timeout defaults to 5s.
func New(cfg Config) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Client{
		hc:  &http.Client{Timeout: timeout},
		cfg: cfg,
	}
}

// IssueToken requests an opaque payment token for the booking.
func (c *Client) IssueToken(ctx context.Context, bookingID string) (string, error) {
	var resp struct {
		Token string `json:"token"`
	}
	err := c.post(ctx, "/tokens", map[string]string{"booking_id": bookingID}, &resp)
	if err != nil {
		return "", fmt.Errorf("issue token for booking %s: %w", bookingID, err)
	}
	if resp.Token == "" {
		return "", fmt.Errorf("issue token for booking %s: empty token in response", bookingID)
	}
	return resp.Token, nil
}

// Submit sends the token for processing.  The gateway does not return
// a final result here; it returns the hosted checkout URL the payer is
// redirected to, and delivers the outcome asynchronously.
func (c *Client) Submit(ctx context.Context, token string) (string, error) {
	var resp struct {
		RedirectURL string `json:"redirect_url"`
	}
	err := c.post(ctx, "/payments", map[string]string{"token": token}, &resp)
	if err != nil {
		return "", fmt.Errorf("submit payment: %w", err)
	}
	if resp.RedirectURL == "" {
		return "", fmt.Errorf("submit payment: empty redirect url in response")
	}
	return resp.RedirectURL, nil
}

func (c *Client) post(ctx context.Context, path string, payload, out interface{}) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+path, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.cfg.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	}

	res, err := c.hc.Do(req)
	if err != nil {
		return err
	}
	defer res.Body.Close()

	data, err := io.ReadAll(io.LimitReader(res.Body, 1<<20))
	if err != nil {
		return err
	}
	if res.StatusCode >= 400 {
		// The gateway puts a human-readable message field on errors.
		var er struct {
			Message string `json:"message"`
		}
		_ = json.Unmarshal(data, &er)
		if er.Message != "" {
			return fmt.Errorf("gateway error: %s (status=%d)", er.Message, res.StatusCode)
		}
		return fmt.Errorf("gateway error (status=%d)", res.StatusCode)
	}
	return json.Unmarshal(data, out)
}
