package payment

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/coinduel/backend/internal/config"
)

// Client handles Razorpay API integration
type Client struct {
	baseURL    string
	keyID      string
	keySecret  string
	httpClient *http.Client
}

// Default is the package-level default client
var Default *Client

// NewClient creates a new Razorpay client
func NewClient(cfg *config.Config) *Client {
	if cfg == nil || cfg.RazorpayKeyID == "" || cfg.RazorpayKeySecret == "" {
		log.Printf("[PAYMENT] Razorpay not fully configured - skipping initialization")
		return nil
	}

	return &Client{
		baseURL:    strings.TrimRight(cfg.RazorpayBaseURL, "/"),
		keyID:      cfg.RazorpayKeyID,
		keySecret:  cfg.RazorpayKeySecret,
		httpClient: &http.Client{Timeout: time.Duration(cfg.RazorpayTimeout) * time.Second},
	}
}

// SetDefault sets the package-level default client
func SetDefault(c *Client) {
	Default = c
}

// KeyID exposes the public key id for client-side checkout initialization
func (c *Client) KeyID() string {
	if c == nil {
		return ""
	}
	return c.keyID
}

// OrderRequest represents an order creation request
type OrderRequest struct {
	Amount  float64 // in rupees
	Receipt string
	Notes   map[string]string
}

// OrderResponse represents a Razorpay order
type OrderResponse struct {
	ID       string `json:"id"`
	Amount   int64  `json:"amount"` // in paise
	Currency string `json:"currency"`
	Receipt  string `json:"receipt"`
	Status   string `json:"status"`
}

// CreateOrder creates a payment order. Razorpay takes amounts in paise, so
// the rupee amount is scaled by 100 before the call.
func (c *Client) CreateOrder(ctx context.Context, req OrderRequest) (*OrderResponse, error) {
	if c == nil {
		return nil, errors.New("razorpay client not initialized")
	}

	endpoint := c.baseURL + "/v1/orders"

	payload := map[string]interface{}{
		"amount":   int64(req.Amount * 100),
		"currency": "INR",
		"receipt":  req.Receipt,
	}
	if len(req.Notes) > 0 {
		payload["notes"] = req.Notes
	}

	jsonPayload, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal payload: %w", err)
	}

	log.Printf("[PAYMENT] Creating order: amount=%.2f receipt=%s", req.Amount, req.Receipt)

	// Retry on transient errors
	var lastErr error
	for attempt := 0; attempt < 3; attempt++ {
		httpReq, err := http.NewRequestWithContext(ctx, "POST", endpoint, bytes.NewBuffer(jsonPayload))
		if err != nil {
			return nil, fmt.Errorf("failed to create request: %w", err)
		}

		auth := base64.StdEncoding.EncodeToString([]byte(c.keyID + ":" + c.keySecret))
		httpReq.Header.Set("Authorization", "Basic "+auth)
		httpReq.Header.Set("Content-Type", "application/json")
		httpReq.Header.Set("Accept", "application/json")

		resp, err := c.httpClient.Do(httpReq)
		if err != nil {
			lastErr = err
			if attempt < 2 {
				time.Sleep(time.Duration(100+attempt*200) * time.Millisecond)
				continue
			}
			return nil, fmt.Errorf("order request failed: %w", err)
		}
		defer resp.Body.Close()

		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return nil, fmt.Errorf("failed to read response: %w", err)
		}

		if resp.StatusCode == http.StatusOK || resp.StatusCode == http.StatusCreated {
			var orderResp OrderResponse
			if err := json.Unmarshal(body, &orderResp); err != nil {
				return nil, fmt.Errorf("failed to decode response: %w (body: %s)", err, string(body))
			}
			log.Printf("[PAYMENT] Order created: id=%s amount=%d status=%s", orderResp.ID, orderResp.Amount, orderResp.Status)
			return &orderResp, nil
		}

		// Retry on 5xx errors
		if resp.StatusCode >= 500 && attempt < 2 {
			lastErr = fmt.Errorf("order creation failed with status %d: %s", resp.StatusCode, string(body))
			time.Sleep(time.Duration(100+attempt*200) * time.Millisecond)
			continue
		}

		// 4xx errors - don't retry
		return nil, fmt.Errorf("order creation failed: %d - %s", resp.StatusCode, string(body))
	}

	return nil, fmt.Errorf("order creation failed after retries: %w", lastErr)
}

// VerifySignature checks the checkout callback signature:
// HMAC-SHA256(order_id + "|" + payment_id) keyed with the API secret.
// Comparison is constant-time.
func (c *Client) VerifySignature(orderID, paymentID, signature string) bool {
	if c == nil {
		return false
	}

	mac := hmac.New(sha256.New, []byte(c.keySecret))
	mac.Write([]byte(orderID + "|" + paymentID))
	expected := hex.EncodeToString(mac.Sum(nil))

	return hmac.Equal([]byte(expected), []byte(signature))
}
