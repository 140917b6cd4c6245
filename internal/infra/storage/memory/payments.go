package memory

import (
	"context"
	"fmt"
	"maps"
	"sync"

	"getmyguide/internal/app/policies"
	"getmyguide/internal/domain/shared/errs"
	"getmyguide/internal/infra/payments/razorpay"
)

// SandboxGateway is an in-process payment processor. Signatures follow the
// live gateway algorithm so checkout flows can be driven end to end.
type SandboxGateway struct {
	secret string

	mu      sync.Mutex
	seq     int
	orders  map[string]policies.Order
	refunds []policies.RefundRequest

	// FailRefund, when set, is consulted before each refund with its
	// zero-based position among all refund calls.
	FailRefund func(n int, req policies.RefundRequest) error
	FailFetch  error
}

func NewSandboxGateway(secret string) *SandboxGateway {
	return &SandboxGateway{secret: secret, orders: make(map[string]policies.Order)}
}

func (g *SandboxGateway) CreateOrder(ctx context.Context, req policies.OrderRequest) (policies.Order, error) {
	if !req.Amount.IsPositive() {
		return policies.Order{}, errs.Errorf(errs.KindValidation, "sandbox.create_order", "order amount must be positive")
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	g.seq++
	order := policies.Order{
		ID:      fmt.Sprintf("order_%06d", g.seq),
		Amount:  req.Amount,
		Receipt: req.Receipt,
		Status:  "created",
		Notes:   maps.Clone(req.Notes),
	}
	g.orders[order.ID] = order
	return order, nil
}

func (g *SandboxGateway) FetchOrder(ctx context.Context, orderID string) (policies.Order, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.FailFetch != nil {
		return policies.Order{}, errs.E(errs.KindGateway, "sandbox.fetch_order", g.FailFetch)
	}
	order, ok := g.orders[orderID]
	if !ok {
		return policies.Order{}, errs.Errorf(errs.KindGateway, "sandbox.fetch_order", "order %s does not exist", orderID)
	}
	return order, nil
}

func (g *SandboxGateway) VerifySignature(orderID, paymentID, signature string) (bool, error) {
	return razorpay.Verify(g.secret, orderID, paymentID, signature)
}

func (g *SandboxGateway) Refund(ctx context.Context, req policies.RefundRequest) (policies.Refund, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	n := len(g.refunds)
	if g.FailRefund != nil {
		if err := g.FailRefund(n, req); err != nil {
			return policies.Refund{}, errs.E(errs.KindGateway, "sandbox.refund", err)
		}
	}
	g.refunds = append(g.refunds, req)
	return policies.Refund{ID: fmt.Sprintf("rfnd_%06d", n+1), PaymentID: req.PaymentID, Amount: req.Amount, Status: "processed"}, nil
}

// Pay captures orderID and returns the payment id and checkout signature
// a client would post back.
func (g *SandboxGateway) Pay(orderID string) (paymentID, signature string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.seq++
	paymentID = fmt.Sprintf("pay_%06d", g.seq)
	if order, ok := g.orders[orderID]; ok {
		order.Status = "paid"
		order.AmountPaid = order.Amount.Amount
		g.orders[orderID] = order
	}
	return paymentID, razorpay.Sign(g.secret, orderID, paymentID)
}

// Refunds returns every accepted refund request.
func (g *SandboxGateway) Refunds() []policies.RefundRequest {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]policies.RefundRequest(nil), g.refunds...)
}

var _ policies.PaymentsPort = (*SandboxGateway)(nil)
