package payment

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/coinduel/backend/internal/config"
)

func testClient(baseURL string) *Client {
	return NewClient(&config.Config{
		RazorpayBaseURL:   baseURL,
		RazorpayKeyID:     "rzp_test_key",
		RazorpayKeySecret: "test_secret",
		RazorpayTimeout:   5,
	})
}

func sign(secret, orderID, paymentID string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(orderID + "|" + paymentID))
	return hex.EncodeToString(mac.Sum(nil))
}

func TestVerifySignatureAcceptsValid(t *testing.T) {
	c := testClient("https://api.razorpay.com")

	sig := sign("test_secret", "order_123", "pay_456")
	if !c.VerifySignature("order_123", "pay_456", sig) {
		t.Error("valid signature rejected")
	}
}

func TestVerifySignatureRejectsTampered(t *testing.T) {
	c := testClient("https://api.razorpay.com")

	sig := sign("test_secret", "order_123", "pay_456")
	if c.VerifySignature("order_123", "pay_999", sig) {
		t.Error("signature for different payment id accepted")
	}
	if c.VerifySignature("order_123", "pay_456", sig+"00") {
		t.Error("lengthened signature accepted")
	}
	if c.VerifySignature("order_123", "pay_456", "") {
		t.Error("empty signature accepted")
	}
}

func TestVerifySignatureWrongSecret(t *testing.T) {
	c := testClient("https://api.razorpay.com")

	sig := sign("other_secret", "order_123", "pay_456")
	if c.VerifySignature("order_123", "pay_456", sig) {
		t.Error("signature keyed with wrong secret accepted")
	}
}

func TestCreateOrderScalesToPaise(t *testing.T) {
	var gotBody map[string]interface{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/orders" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if !strings.HasPrefix(r.Header.Get("Authorization"), "Basic ") {
			t.Errorf("missing basic auth header")
		}
		json.NewDecoder(r.Body).Decode(&gotBody)
		json.NewEncoder(w).Encode(OrderResponse{
			ID: "order_test1", Amount: 50000, Currency: "INR", Status: "created",
		})
	}))
	defer srv.Close()

	c := testClient(srv.URL)
	order, err := c.CreateOrder(context.Background(), OrderRequest{Amount: 500, Receipt: "dep_1"})
	if err != nil {
		t.Fatalf("CreateOrder failed: %v", err)
	}
	if order.ID != "order_test1" {
		t.Errorf("order id = %s", order.ID)
	}
	// 500 rupees must be sent as 50000 paise
	if amt, ok := gotBody["amount"].(float64); !ok || amt != 50000 {
		t.Errorf("request amount = %v, want 50000", gotBody["amount"])
	}
	if gotBody["currency"] != "INR" {
		t.Errorf("request currency = %v, want INR", gotBody["currency"])
	}
}

func TestCreateOrderRetriesServerErrors(t *testing.T) {
	attempts := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		if attempts < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		json.NewEncoder(w).Encode(OrderResponse{ID: "order_retry", Amount: 1000, Currency: "INR", Status: "created"})
	}))
	defer srv.Close()

	c := testClient(srv.URL)
	order, err := c.CreateOrder(context.Background(), OrderRequest{Amount: 10, Receipt: "dep_2"})
	if err != nil {
		t.Fatalf("CreateOrder failed after retries: %v", err)
	}
	if order.ID != "order_retry" || attempts != 3 {
		t.Errorf("expected success on third attempt, got order=%s attempts=%d", order.ID, attempts)
	}
}

func TestCreateOrderDoesNotRetryClientErrors(t *testing.T) {
	attempts := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"error":{"description":"amount too small"}}`))
	}))
	defer srv.Close()

	c := testClient(srv.URL)
	if _, err := c.CreateOrder(context.Background(), OrderRequest{Amount: 0.001, Receipt: "dep_3"}); err == nil {
		t.Fatal("expected error for 400 response")
	}
	if attempts != 1 {
		t.Errorf("client error retried %d times", attempts)
	}
}

func TestNewClientRequiresCredentials(t *testing.T) {
	if c := NewClient(&config.Config{RazorpayBaseURL: "https://api.razorpay.com"}); c != nil {
		t.Error("client created without credentials")
	}
	if c := (*Client)(nil); c.VerifySignature("a", "b", "c") {
		t.Error("nil client verified a signature")
	}
}
