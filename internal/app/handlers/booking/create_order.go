package booking

import (
	"context"
	"strconv"

	"getmyguide/internal/app/commands"
	"getmyguide/internal/app/dto"
	"getmyguide/internal/app/policies"
	"getmyguide/internal/domain/pricing"
	"getmyguide/internal/domain/user"
)

type CreateAdvanceOrderCommand struct {
	Actor      user.Actor
	TotalPrice int64  `validate:"gt=0"`
	Currency   string `validate:"omitempty,len=3"`
}

func (CreateAdvanceOrderCommand) Key() string                 { return createAdvanceOrderKey }
func (c CreateAdvanceOrderCommand) Principal() user.Actor     { return c.Actor }
func (c CreateAdvanceOrderCommand) AllowedRoles() []user.Role { return touristOnly }
func (c CreateAdvanceOrderCommand) ManagesUnit() bool         { return true }

// CreateAdvanceOrderHandler opens a gateway order for the advance share of a
// quoted total. Nothing is reserved or persisted yet.
type CreateAdvanceOrderHandler struct {
	Payments policies.PaymentsPort
	KeyID    string
}

func (h *CreateAdvanceOrderHandler) Handle(ctx context.Context, cmd CreateAdvanceOrderCommand) (*dto.OrderHandle, error) {
	total, err := amountOf(cmd.TotalPrice, cmd.Currency)
	if err != nil {
		return nil, err
	}
	split, err := pricing.SplitTotal(total)
	if err != nil {
		return nil, err
	}
	receipt := newReceipt()
	order, err := h.Payments.CreateOrder(ctx, policies.OrderRequest{
		Amount:  split.Advance,
		Receipt: receipt,
		Notes: map[string]string{
			notePurpose: purposeAdvance,
			noteUser:    string(cmd.Actor.ID),
			noteTotal:   strconv.FormatInt(total.Amount, 10),
		},
	})
	if err != nil {
		return nil, err
	}
	return &dto.OrderHandle{
		OrderID: order.ID,
		Amount:  dto.MapMoney(split.Advance),
		Receipt: receipt,
		Split:   dto.MapSplit(split),
		KeyID:   h.KeyID,
		Purpose: purposeAdvance,
	}, nil
}

var _ commands.Handler[CreateAdvanceOrderCommand, *dto.OrderHandle] = (*CreateAdvanceOrderHandler)(nil)
