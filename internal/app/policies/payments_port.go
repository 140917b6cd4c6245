package policies

import (
	"context"

	"getmyguide/internal/domain/shared/money"
)

type RefundSpeed string

const (
	RefundNormal  RefundSpeed = "normal"
	RefundInstant RefundSpeed = "instant"
)

type OrderRequest struct {
	Amount  money.Money
	Receipt string
	Notes   map[string]string
}

type Order struct {
	ID      string
	Amount  money.Money
	Receipt string
	Status  string
	Notes   map[string]string

	// AmountPaid is reported by FetchOrder once the order is paid.
	AmountPaid int64
}

type RefundRequest struct {
	PaymentID string
	Amount    money.Money
	Speed     RefundSpeed
	Notes     map[string]string
}

type Refund struct {
	ID        string
	PaymentID string
	Amount    money.Money
	Status    string
}

// PaymentsPort is the external payment processor. Calls are synchronous
// and never retried by the adapter. Failures are gateway errors.
type PaymentsPort interface {
	CreateOrder(ctx context.Context, req OrderRequest) (Order, error)
	FetchOrder(ctx context.Context, orderID string) (Order, error)
	// VerifySignature returns false on mismatch and an error only for
	// malformed input.
	VerifySignature(orderID, paymentID, signature string) (bool, error)
	Refund(ctx context.Context, req RefundRequest) (Refund, error)
}
