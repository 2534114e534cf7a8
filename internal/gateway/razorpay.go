package gateway

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"
)

// Order is the gateway-side payment order created before the donor pays.
type Order struct {
	ID          string `json:"id"`
	AmountMinor int64  `json:"amount"`
	Currency    string `json:"currency"`
	Status      string `json:"status"`
}

// OrderMetadata is attached to the gateway order as notes. It is a fixed
// structure rather than an open map so the contract stays checkable.
type OrderMetadata struct {
	CharityID   string `json:"charity_id"`
	DonorID     string `json:"donor_id"`
	IsAnonymous string `json:"is_anonymous"`
	Message     string `json:"message,omitempty"`
	DedicatedTo string `json:"dedicated_to,omitempty"`
}

type orderRequest struct {
	Amount   int64         `json:"amount"` // minor units
	Currency string        `json:"currency"`
	Notes    OrderMetadata `json:"notes"`
}

// OrderCreator issues payment orders with the external gateway.
type OrderCreator interface {
	CreateOrder(ctx context.Context, amountMinor int64, currency string, meta OrderMetadata) (*Order, error)
}

// SignatureVerifier reports whether a claimed (order, payment) pair was
// genuinely issued by the gateway.
type SignatureVerifier interface {
	VerifySignature(orderID, paymentID, signature string) bool
}

// RazorpayClient talks to the Razorpay orders API and verifies payment
// signatures with the shared key secret.
type RazorpayClient struct {
	keyID     string
	keySecret string
	baseURL   string
	client    *http.Client
	logger    *logrus.Logger
}

func NewRazorpayClient(keyID, keySecret, baseURL string, logger *logrus.Logger) *RazorpayClient {
	if baseURL == "" {
		baseURL = "https://api.razorpay.com/v1"
	}
	return &RazorpayClient{
		keyID:     keyID,
		keySecret: keySecret,
		baseURL:   baseURL,
		client:    &http.Client{Timeout: 10 * time.Second},
		logger:    logger,
	}
}

// CreateOrder creates a gateway order for the given minor-unit amount.
func (c *RazorpayClient) CreateOrder(ctx context.Context, amountMinor int64, currency string, meta OrderMetadata) (*Order, error) {
	if c.keyID == "" || c.keySecret == "" {
		return nil, errors.New("razorpay credentials not configured")
	}

	reqBody, err := json.Marshal(orderRequest{
		Amount:   amountMinor,
		Currency: currency,
		Notes:    meta,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal order request: %w", err)
	}

	var resp *http.Response
	for retries := 3; retries > 0; retries-- {
		req, err := http.NewRequestWithContext(ctx, "POST", c.baseURL+"/orders", bytes.NewBuffer(reqBody))
		if err != nil {
			return nil, fmt.Errorf("failed to create order request: %w", err)
		}
		req.Header.Set("Content-Type", "application/json")
		req.SetBasicAuth(c.keyID, c.keySecret)

		resp, err = c.client.Do(req)
		if err == nil && resp.StatusCode == http.StatusOK {
			break
		}
		if err != nil {
			c.logger.WithField("attempt", 4-retries).Warnf("order request failed: %v", err)
			if retries == 1 {
				return nil, fmt.Errorf("order creation failed: %w", err)
			}
		} else {
			body, _ := io.ReadAll(resp.Body)
			resp.Body.Close()
			c.logger.WithFields(logrus.Fields{
				"attempt": 4 - retries,
				"status":  resp.StatusCode,
			}).Warnf("order request rejected: %s", string(body))
			if retries == 1 {
				return nil, fmt.Errorf("order creation failed with status %d: %s", resp.StatusCode, string(body))
			}
		}
		time.Sleep(time.Second * time.Duration(3-retries))
	}
	defer resp.Body.Close()

	var order Order
	if err := json.NewDecoder(resp.Body).Decode(&order); err != nil {
		return nil, fmt.Errorf("failed to decode order response: %w", err)
	}
	if order.ID == "" {
		return nil, errors.New("no order id in gateway response")
	}

	return &order, nil
}

// VerifySignature recomputes the HMAC-SHA256 of "orderID|paymentID" with the
// key secret and compares it against the supplied hex signature in constant
// time. Malformed input or a missing secret fails closed.
func (c *RazorpayClient) VerifySignature(orderID, paymentID, signature string) bool {
	if c.keySecret == "" || orderID == "" || paymentID == "" {
		return false
	}

	supplied, err := hex.DecodeString(signature)
	if err != nil {
		return false
	}

	mac := hmac.New(sha256.New, []byte(c.keySecret))
	mac.Write([]byte(orderID + "|" + paymentID))
	return hmac.Equal(mac.Sum(nil), supplied)
}
