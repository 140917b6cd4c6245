package razorpay

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"getmyguide/internal/app/policies"
	"getmyguide/internal/domain/shared/errs"
	"getmyguide/internal/domain/shared/money"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	client, err := New(Config{BaseURL: srv.URL, KeyID: "rzp_test_key", KeySecret: "secret", Timeout: time.Second}, nil, nil)
	require.NoError(t, err)
	return client
}

func TestCreateOrderSendsAmountAndAuth(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/v1/orders", r.URL.Path)
		user, pass, ok := r.BasicAuth()
		assert.True(t, ok)
		assert.Equal(t, "rzp_test_key", user)
		assert.Equal(t, "secret", pass)

		var body orderPayload
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, int64(2000), body.Amount)
		assert.Equal(t, "INR", body.Currency)
		assert.Equal(t, "rcpt_1", body.Receipt)

		_ = json.NewEncoder(w).Encode(orderResponse{ID: "order_1", Amount: body.Amount, Currency: body.Currency, Receipt: body.Receipt, Status: "created"})
	})

	order, err := client.CreateOrder(context.Background(), policies.OrderRequest{Amount: money.Must(2000, "INR"), Receipt: "rcpt_1"})
	require.NoError(t, err)
	assert.Equal(t, "order_1", order.ID)
	assert.Equal(t, money.Must(2000, "INR"), order.Amount)
	assert.Equal(t, "created", order.Status)
}

func TestFetchOrderReturnsNotes(t *testing.T) {
	bodies := map[string]string{
		"order_1": `{"id":"order_1","amount":2000,"currency":"INR","status":"paid","notes":{"purpose":"advance","user_id":"u1"}}`,
		"order_2": `{"id":"order_2","amount":2000,"currency":"INR","status":"paid","notes":[]}`,
	}
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		id := r.URL.Path[len("/v1/orders/"):]
		_, _ = w.Write([]byte(bodies[id]))
	})

	order, err := client.FetchOrder(context.Background(), "order_1")
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"purpose": "advance", "user_id": "u1"}, order.Notes)

	order, err = client.FetchOrder(context.Background(), "order_2")
	require.NoError(t, err)
	assert.Empty(t, order.Notes)
}

func TestGatewayErrorCarriesCodeAndDescription(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":{"code":"BAD_REQUEST_ERROR","description":"The amount must be atleast INR 1.00"}}`))
	})

	_, err := client.FetchOrder(context.Background(), "order_1")
	require.Error(t, err)
	assert.Equal(t, errs.KindGateway, errs.KindOf(err))
	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusBadRequest, apiErr.Status)
	assert.Equal(t, "BAD_REQUEST_ERROR", apiErr.Code)
	assert.Contains(t, apiErr.Description, "amount")
}

func TestTransportFailureIsGatewayError(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	srv.Close()
	client, err := New(Config{BaseURL: srv.URL, KeyID: "k", KeySecret: "s"}, nil, nil)
	require.NoError(t, err)

	_, err = client.Refund(context.Background(), policies.RefundRequest{PaymentID: "pay_1", Amount: money.Must(100, "INR")})
	assert.Equal(t, errs.KindGateway, errs.KindOf(err))
}

func TestRefundPostsToPayment(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/payments/pay_9/refund", r.URL.Path)
		var body refundPayload
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "normal", body.Speed)
		_ = json.NewEncoder(w).Encode(refundResponse{ID: "rfnd_1", PaymentID: "pay_9", Amount: body.Amount, Currency: "INR", Status: "processed"})
	})

	refund, err := client.Refund(context.Background(), policies.RefundRequest{PaymentID: "pay_9", Amount: money.Must(2000, "INR"), Speed: policies.RefundNormal})
	require.NoError(t, err)
	assert.Equal(t, "rfnd_1", refund.ID)
	assert.Equal(t, int64(2000), refund.Amount.Amount)
}

func TestVerifySignature(t *testing.T) {
	client, err := New(Config{KeyID: "k", KeySecret: "secret"}, nil, nil)
	require.NoError(t, err)
	sig := Sign("secret", "order_1", "pay_1")

	ok, err := client.VerifySignature("order_1", "pay_1", sig)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = client.VerifySignature("order_1", "pay_2", sig)
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = client.VerifySignature("order_1", "", sig)
	assert.ErrorIs(t, err, ErrSignatureInput)
	assert.Equal(t, errs.KindValidation, errs.KindOf(err))
}
