// Package razorpay adapts the Razorpay orders, payments and refunds API to
// policies.PaymentsPort.
package razorpay

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
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"getmyguide/internal/app/policies"
	"getmyguide/internal/domain/shared/errs"
	"getmyguide/internal/domain/shared/money"
)

const DefaultBaseURL = "https://api.razorpay.com"

var ErrSignatureInput = errs.Sentinel(errs.KindValidation, "razorpay: order id, payment id and signature are required")

// APIError is the error body returned by the gateway.
type APIError struct {
	Status      int
	Code        string
	Description string
}

func (e *APIError) Error() string {
	if e.Description == "" {
		return fmt.Sprintf("razorpay: status %d %s", e.Status, e.Code)
	}
	return fmt.Sprintf("razorpay: status %d %s: %s", e.Status, e.Code, e.Description)
}

type Config struct {
	BaseURL   string
	KeyID     string
	KeySecret string
	Timeout   time.Duration
}

// Client is a synchronous gateway client. It never retries; every
// failure comes back as a gateway error.
type Client struct {
	http      *http.Client
	baseURL   string
	keyID     string
	keySecret string
	logger    *slog.Logger
}

func New(cfg Config, httpClient *http.Client, logger *slog.Logger) (*Client, error) {
	if strings.TrimSpace(cfg.KeyID) == "" || strings.TrimSpace(cfg.KeySecret) == "" {
		return nil, errors.New("razorpay: key id and secret are required")
	}
	base := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if base == "" {
		base = DefaultBaseURL
	}
	if httpClient == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = 10 * time.Second
		}
		httpClient = &http.Client{Timeout: timeout}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		http:      httpClient,
		baseURL:   base,
		keyID:     cfg.KeyID,
		keySecret: cfg.KeySecret,
		logger:    logger.With("component", "razorpay"),
	}, nil
}

func (c *Client) KeyID() string { return c.keyID }

type orderPayload struct {
	Amount   int64             `json:"amount"`
	Currency string            `json:"currency"`
	Receipt  string            `json:"receipt,omitempty"`
	Notes    map[string]string `json:"notes,omitempty"`
}

type orderResponse struct {
	ID         string     `json:"id"`
	Amount     int64      `json:"amount"`
	AmountPaid int64      `json:"amount_paid"`
	Currency   string     `json:"currency"`
	Receipt    string     `json:"receipt"`
	Status     string     `json:"status"`
	Notes      orderNotes `json:"notes"`
}

// orderNotes accepts the empty array the gateway sends for an order
// created without notes.
type orderNotes map[string]string

func (n *orderNotes) UnmarshalJSON(data []byte) error {
	if trimmed := bytes.TrimSpace(data); len(trimmed) > 0 && trimmed[0] == '[' {
		*n = nil
		return nil
	}
	var m map[string]string
	if err := json.Unmarshal(data, &m); err != nil {
		return err
	}
	*n = m
	return nil
}

type refundPayload struct {
	Amount int64             `json:"amount"`
	Speed  string            `json:"speed,omitempty"`
	Notes  map[string]string `json:"notes,omitempty"`
}

type refundResponse struct {
	ID        string `json:"id"`
	PaymentID string `json:"payment_id"`
	Amount    int64  `json:"amount"`
	Currency  string `json:"currency"`
	Status    string `json:"status"`
}

type errorEnvelope struct {
	Error struct {
		Code        string `json:"code"`
		Description string `json:"description"`
	} `json:"error"`
}

func (c *Client) CreateOrder(ctx context.Context, req policies.OrderRequest) (policies.Order, error) {
	const op = "razorpay.create_order"
	if !req.Amount.IsPositive() {
		return policies.Order{}, errs.Errorf(errs.KindValidation, op, "order amount must be positive")
	}
	var resp orderResponse
	body := orderPayload{Amount: req.Amount.Amount, Currency: req.Amount.Currency, Receipt: req.Receipt, Notes: req.Notes}
	if err := c.do(ctx, op, http.MethodPost, "/v1/orders", body, &resp); err != nil {
		return policies.Order{}, err
	}
	return mapOrder(op, resp)
}

func (c *Client) FetchOrder(ctx context.Context, orderID string) (policies.Order, error) {
	const op = "razorpay.fetch_order"
	if strings.TrimSpace(orderID) == "" {
		return policies.Order{}, errs.Errorf(errs.KindValidation, op, "order id is required")
	}
	var resp orderResponse
	if err := c.do(ctx, op, http.MethodGet, "/v1/orders/"+url.PathEscape(orderID), nil, &resp); err != nil {
		return policies.Order{}, err
	}
	return mapOrder(op, resp)
}

func (c *Client) Refund(ctx context.Context, req policies.RefundRequest) (policies.Refund, error) {
	const op = "razorpay.refund"
	if strings.TrimSpace(req.PaymentID) == "" {
		return policies.Refund{}, errs.Errorf(errs.KindValidation, op, "payment id is required")
	}
	var resp refundResponse
	body := refundPayload{Amount: req.Amount.Amount, Speed: string(req.Speed), Notes: req.Notes}
	path := "/v1/payments/" + url.PathEscape(req.PaymentID) + "/refund"
	if err := c.do(ctx, op, http.MethodPost, path, body, &resp); err != nil {
		return policies.Refund{}, err
	}
	currency := resp.Currency
	if currency == "" {
		currency = req.Amount.Currency
	}
	amount, err := money.New(resp.Amount, currency)
	if err != nil {
		return policies.Refund{}, errs.E(errs.KindGateway, op, err)
	}
	c.logger.InfoContext(ctx, "refund issued", "refund_id", resp.ID, "payment_id", req.PaymentID, "amount", resp.Amount, "status", resp.Status)
	return policies.Refund{ID: resp.ID, PaymentID: resp.PaymentID, Amount: amount, Status: resp.Status}, nil
}

// VerifySignature checks the checkout signature, a hex HMAC-SHA256 of
// "orderID|paymentID" keyed with the account secret.
func (c *Client) VerifySignature(orderID, paymentID, signature string) (bool, error) {
	return Verify(c.keySecret, orderID, paymentID, signature)
}

// Sign computes the checkout signature for orderID and paymentID.
func Sign(secret, orderID, paymentID string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(orderID + "|" + paymentID))
	return hex.EncodeToString(mac.Sum(nil))
}

// Verify compares signature with Sign in constant time.
func Verify(secret, orderID, paymentID, signature string) (bool, error) {
	if strings.TrimSpace(orderID) == "" || strings.TrimSpace(paymentID) == "" || strings.TrimSpace(signature) == "" {
		return false, ErrSignatureInput
	}
	expected := Sign(secret, orderID, paymentID)
	return hmac.Equal([]byte(expected), []byte(strings.ToLower(strings.TrimSpace(signature)))), nil
}

func (c *Client) do(ctx context.Context, op, method, path string, in, out any) error {
	var reader io.Reader
	if in != nil {
		payload, err := json.Marshal(in)
		if err != nil {
			return errs.E(errs.KindInternal, op, err)
		}
		reader = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return errs.E(errs.KindInternal, op, err)
	}
	req.SetBasicAuth(c.keyID, c.keySecret)
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		c.logger.WarnContext(ctx, "gateway request failed", "operation", op, "error", err)
		return errs.E(errs.KindGateway, op, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		apiErr := &APIError{Status: resp.StatusCode}
		var envelope errorEnvelope
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		if json.Unmarshal(raw, &envelope) == nil {
			apiErr.Code = envelope.Error.Code
			apiErr.Description = envelope.Error.Description
		}
		c.logger.WarnContext(ctx, "gateway rejected request", "operation", op, "status", resp.StatusCode, "code", apiErr.Code)
		return errs.E(errs.KindGateway, op, apiErr)
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return errs.E(errs.KindGateway, op, fmt.Errorf("decode response: %w", err))
	}
	return nil
}

func mapOrder(op string, resp orderResponse) (policies.Order, error) {
	amount, err := money.New(resp.Amount, resp.Currency)
	if err != nil {
		return policies.Order{}, errs.E(errs.KindGateway, op, err)
	}
	return policies.Order{
		ID:         resp.ID,
		Amount:     amount,
		Receipt:    resp.Receipt,
		Status:     resp.Status,
		Notes:      resp.Notes,
		AmountPaid: resp.AmountPaid,
	}, nil
}

var _ policies.PaymentsPort = (*Client)(nil)
