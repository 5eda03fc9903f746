// Package provider implements the client for the payment gateway's status
// API.  The engine never trusts an inbound webhook payload: every delivery
// is re-verified by fetching the canonical transaction status from here.
package provider

import (
	"context"
	"crypto/sha512"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/adiprasetio/marketplace-payments/internal/model"
)

const timeLayout = "2006-01-02 15:04:05"

// VANumber is one virtual-account assignment on a bank-transfer charge.
type VANumber struct {
	Bank     string `json:"bank"`
	VANumber string `json:"va_number"`
}

// Action is a charge-time action such as a redirect or QR code link.
type Action struct {
	Name   string `json:"name"`
	Method string `json:"method"`
	URL    string `json:"url"`
}

// TransactionStatus is the canonical status document returned by the
// gateway.  Monetary amounts and timestamps arrive as strings on the wire;
// the helper methods parse them.
type TransactionStatus struct {
	StatusCode        string     `json:"status_code"`
	TransactionID     string     `json:"transaction_id"`
	OrderID           string     `json:"order_id"`
	GrossAmount       string     `json:"gross_amount"`
	Currency          string     `json:"currency"`
	PaymentType       string     `json:"payment_type"`
	TransactionStatus string     `json:"transaction_status"`
	TransactionTime   string     `json:"transaction_time"`
	SettlementTime    string     `json:"settlement_time"`
	ExpiryTime        string     `json:"expiry_time"`
	SignatureKey      string     `json:"signature_key"`
	VANumbers         []VANumber `json:"va_numbers"`
	Actions           []Action   `json:"actions"`
}

// Status returns the canonical provider status as the engine's closed enum.
func (ts *TransactionStatus) Status() model.ProviderStatus {
	return model.ProviderStatus(ts.TransactionStatus)
}

// Amount parses the gross amount into minor units.  The gateway formats
// amounts as "98000.00"; the fraction is always zero for the currencies in
// play, so it is dropped.
func (ts *TransactionStatus) Amount() (int64, error) {
	s := ts.GrossAmount
	if i := strings.IndexByte(s, '.'); i >= 0 {
		s = s[:i]
	}
	return strconv.ParseInt(s, 10, 64)
}

// ExpiryAt parses the charge expiry time.  Zero time when absent.
func (ts *TransactionStatus) ExpiryAt() (time.Time, error) { return parseTime(ts.ExpiryTime) }

// SettledAt parses the settlement time.  Zero time when absent.
func (ts *TransactionStatus) SettledAt() (time.Time, error) { return parseTime(ts.SettlementTime) }

func parseTime(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	return time.ParseInLocation(timeLayout, s, time.UTC)
}

// Client calls the gateway's status endpoint with basic auth.
type Client struct {
	baseURL   string
	serverKey string
	httpc     *http.Client
}

// NewClient builds a status client.  timeout bounds every call; an
// unbounded wait here would block the webhook request indefinitely.
func NewClient(baseURL, serverKey string, timeout time.Duration) *Client {
	return &Client{
		baseURL:   strings.TrimRight(baseURL, "/"),
		serverKey: serverKey,
		httpc:     &http.Client{Timeout: timeout},
	}
}

// Status fetches the canonical transaction status for an order directly
// from the gateway.
func (c *Client) Status(ctx context.Context, orderID string) (*TransactionStatus, error) {
	url := fmt.Sprintf("%s/v2/%s/status", c.baseURL, orderID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	req.SetBasicAuth(c.serverKey, "")
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpc.Do(req)
	if err != nil {
		return nil, fmt.Errorf("gateway status call: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("gateway status call: unexpected HTTP %d", resp.StatusCode)
	}
	var ts TransactionStatus
	if err := json.NewDecoder(resp.Body).Decode(&ts); err != nil {
		return nil, fmt.Errorf("decode gateway response: %w", err)
	}
	return &ts, nil
}

// VerifySignature recomputes the delivery signature
// (sha512 of order id + status code + gross amount + server key) and
// compares it with the one the gateway reported.  The engine only logs a
// mismatch today; acceptance rests on status re-verification.
func (c *Client) VerifySignature(ts *TransactionStatus) bool {
	sum := sha512.Sum512([]byte(ts.OrderID + ts.StatusCode + ts.GrossAmount + c.serverKey))
	return hex.EncodeToString(sum[:]) == ts.SignatureKey
}
