package paypal

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/avast/retry-go"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/radlabs/rampd/internal/domain"
	"github.com/radlabs/rampd/pkg/config"
)

// Client wraps the PayPal sandbox REST API: checkout orders for the inbound
// top-up leg and payouts for the outbound cash-out leg. Both are boundary
// collaborators; nothing here touches the receipt protocol.
type Client struct {
	cfg        *config.PayPalConfig
	httpClient *http.Client
	logger     zerolog.Logger

	tokenMu    sync.Mutex
	token      string
	tokenUntil time.Time
}

func NewClient(cfg *config.PayPalConfig, logger zerolog.Logger) *Client {
	return &Client{
		cfg: cfg,
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
		logger: logger.With().Str("component", "paypal_client").Logger(),
	}
}

type orderResponse struct {
	ID     string `json:"id"`
	Status string `json:"status"`
	Links  []struct {
		Href   string `json:"href"`
		Rel    string `json:"rel"`
		Method string `json:"method"`
	} `json:"links"`
}

func (o *orderResponse) toDomain() *domain.PaymentOrder {
	order := &domain.PaymentOrder{ID: o.ID, Status: o.Status}
	for _, link := range o.Links {
		if link.Rel == "approve" {
			order.ApproveURL = link.Href
			break
		}
	}
	return order
}

type payoutResponse struct {
	BatchHeader struct {
		PayoutBatchID string `json:"payout_batch_id"`
		BatchStatus   string `json:"batch_status"`
	} `json:"batch_header"`
}

// CreateOrder starts a checkout order the user approves in the browser.
func (c *Client) CreateOrder(ctx context.Context, amount, currency, description string) (*domain.PaymentOrder, error) {
	unit := map[string]any{
		"amount": map[string]string{"currency_code": currency, "value": amount},
	}
	if description != "" {
		unit["description"] = description
	}
	payload := map[string]any{
		"intent":         "CAPTURE",
		"purchase_units": []any{unit},
		"application_context": map[string]string{
			"brand_name":          "RAD Demo",
			"shipping_preference": "NO_SHIPPING",
			"user_action":         "PAY_NOW",
		},
	}

	var order orderResponse
	if err := c.request(ctx, "POST", "/v2/checkout/orders", payload, uuid.New().String(), &order); err != nil {
		return nil, err
	}
	return order.toDomain(), nil
}

// CaptureOrder finalizes a previously approved order.
func (c *Client) CaptureOrder(ctx context.Context, orderID string) (*domain.PaymentOrder, error) {
	var order orderResponse
	path := "/v2/checkout/orders/" + orderID + "/capture"
	if err := c.request(ctx, "POST", path, nil, uuid.New().String(), &order); err != nil {
		return nil, err
	}
	return order.toDomain(), nil
}

// CreatePayout sends a single payout to a PayPal email. Processing is async;
// callers poll the batch for completion.
func (c *Client) CreatePayout(ctx context.Context, receiverEmail, amount, currency, note string) (*domain.Payout, error) {
	batchID := uuid.New().String()
	payload := map[string]any{
		"sender_batch_header": map[string]string{
			"sender_batch_id": batchID,
			"email_subject":   "You have a payout",
		},
		"items": []any{
			map[string]any{
				"recipient_type": "EMAIL",
				"receiver":       receiverEmail,
				"amount":         map[string]string{"value": amount, "currency": currency},
				"note":           note,
				"sender_item_id": uuid.New().String(),
			},
		},
	}

	var batch payoutResponse
	if err := c.request(ctx, "POST", "/v1/payments/payouts", payload, batchID, &batch); err != nil {
		return nil, err
	}
	return &domain.Payout{
		BatchID:     batch.BatchHeader.PayoutBatchID,
		BatchStatus: batch.BatchHeader.BatchStatus,
	}, nil
}

// appToken returns a cached client-credentials token, refreshing when fewer
// than two minutes of validity remain.
func (c *Client) appToken(ctx context.Context) (string, error) {
	c.tokenMu.Lock()
	defer c.tokenMu.Unlock()

	if c.token != "" && time.Now().Before(c.tokenUntil.Add(-2*time.Minute)) {
		return c.token, nil
	}

	var tokenResp struct {
		AccessToken string `json:"access_token"`
		ExpiresIn   int64  `json:"expires_in"`
	}

	err := retry.Do(
		func() error {
			req, err := http.NewRequestWithContext(ctx, "POST",
				c.cfg.BaseURL+"/v1/oauth2/token",
				bytes.NewBufferString("grant_type=client_credentials"))
			if err != nil {
				return err
			}
			req.SetBasicAuth(c.cfg.ClientID, c.cfg.ClientSecret)
			req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
			req.Header.Set("Accept", "application/json")

			resp, err := c.httpClient.Do(req)
			if err != nil {
				return err
			}
			defer resp.Body.Close()

			body, err := io.ReadAll(resp.Body)
			if err != nil {
				return err
			}
			if resp.StatusCode != http.StatusOK {
				return fmt.Errorf("paypal token error %d: %s", resp.StatusCode, truncate(body, 500))
			}
			return json.Unmarshal(body, &tokenResp)
		},
		retry.Attempts(c.cfg.MaxRetries),
		retry.Context(ctx),
		retry.DelayType(retry.BackOffDelay),
	)
	if err != nil {
		return "", err
	}

	c.token = tokenResp.AccessToken
	c.tokenUntil = time.Now().Add(time.Duration(tokenResp.ExpiresIn) * time.Second)
	return c.token, nil
}

func (c *Client) request(ctx context.Context, method, path string, payload any, idempotencyKey string, out any) error {
	token, err := c.appToken(ctx)
	if err != nil {
		return err
	}

	var body io.Reader
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("encode paypal payload: %w", err)
		}
		body = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.cfg.BaseURL+path, body)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if idempotencyKey != "" {
		req.Header.Set("PayPal-Request-Id", idempotencyKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("paypal %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	if resp.StatusCode >= 400 {
		debugID := resp.Header.Get("paypal-debug-id")
		c.logger.Error().
			Int("status_code", resp.StatusCode).
			Str("path", path).
			Str("debug_id", debugID).
			Msg("PayPal request failed")
		return fmt.Errorf("paypal %s %s failed %d: %s (debug-id %s)",
			method, path, resp.StatusCode, truncate(raw, 800), debugID)
	}

	if out != nil && len(raw) > 0 {
		return json.Unmarshal(raw, out)
	}
	return nil
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n])
}
