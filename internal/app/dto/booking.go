package dto

import (
	"time"

	domainbooking "getmyguide/internal/domain/booking"
	"getmyguide/internal/domain/pricing"
	"getmyguide/internal/domain/shared/daterange"
	"getmyguide/internal/domain/shared/money"
)

type MoneyDTO struct {
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
}

func MapMoney(m money.Money) MoneyDTO {
	return MoneyDTO{Amount: m.Amount, Currency: m.Currency}
}

type SplitDTO struct {
	Total     MoneyDTO `json:"total"`
	Advance   MoneyDTO `json:"advance"`
	Remaining MoneyDTO `json:"remaining"`
}

func MapSplit(s pricing.Split) SplitDTO {
	return SplitDTO{Total: MapMoney(s.Total), Advance: MapMoney(s.Advance), Remaining: MapMoney(s.Remaining)}
}

// OrderHandle is what the client needs to open the gateway checkout.
type OrderHandle struct {
	OrderID   string   `json:"order_id"`
	Amount    MoneyDTO `json:"amount"`
	Receipt   string   `json:"receipt"`
	Split     SplitDTO `json:"split"`
	KeyID     string   `json:"key_id,omitempty"`
	Purpose   string   `json:"purpose"`
	BookingID string   `json:"booking_id,omitempty"`
}

type CancellationDTO struct {
	ActorID string    `json:"actor_id"`
	Role    string    `json:"role"`
	Reason  string    `json:"reason,omitempty"`
	At      time.Time `json:"at"`
}

type Booking struct {
	ID              string           `json:"id"`
	GuideID         string           `json:"guide_id"`
	OriginalGuideID string           `json:"original_guide_id,omitempty"`
	UserID          string           `json:"user_id"`
	StartDate       string           `json:"start_date"`
	EndDate         string           `json:"end_date"`
	Days            int              `json:"days"`
	Location        string           `json:"location,omitempty"`
	Travelers       int              `json:"travelers"`
	TotalPrice      MoneyDTO         `json:"total_price"`
	AdvanceAmount   MoneyDTO         `json:"advance_amount"`
	RemainingShare  MoneyDTO         `json:"remaining_share"`
	AmountDue       MoneyDTO         `json:"amount_due"`
	Status          string           `json:"status"`
	PaymentStatus   string           `json:"payment_status"`
	ReminderSent    bool             `json:"reminder_sent"`
	CancelledBy     *CancellationDTO `json:"cancelled_by,omitempty"`
	AdvanceOrderID  string           `json:"advance_order_id,omitempty"`
	RemainingOrder  string           `json:"remaining_order_id,omitempty"`
	RefundIDs       []string         `json:"refund_ids,omitempty"`
	CreatedAt       time.Time        `json:"created_at"`
	UpdatedAt       time.Time        `json:"updated_at"`
}

type BookingCollection struct {
	Items []Booking `json:"items"`
}

func MapBooking(b *domainbooking.Booking) Booking {
	out := Booking{
		ID:              string(b.ID),
		GuideID:         string(b.GuideID),
		OriginalGuideID: string(b.OriginalGuideID),
		UserID:          string(b.UserID),
		StartDate:       b.Range.Start.Format(daterange.DayLayout),
		EndDate:         b.Range.End.Format(daterange.DayLayout),
		Days:            b.Range.Len(),
		Location:        b.Location,
		Travelers:       b.Travelers,
		TotalPrice:      MapMoney(b.Split.Total),
		AdvanceAmount:   MapMoney(b.Split.Advance),
		RemainingShare:  MapMoney(b.Split.Remaining),
		AmountDue:       MapMoney(b.AmountDue()),
		Status:          string(b.Status),
		PaymentStatus:   string(b.PaymentStatus),
		ReminderSent:    b.ReminderSent,
		AdvanceOrderID:  b.Advance.OrderID,
		RemainingOrder:  b.Remaining.OrderID,
		RefundIDs:       append([]string(nil), b.RefundIDs...),
		CreatedAt:       b.CreatedAt,
		UpdatedAt:       b.UpdatedAt,
	}
	if b.CancelledBy != nil {
		out.CancelledBy = &CancellationDTO{
			ActorID: string(b.CancelledBy.ActorID),
			Role:    string(b.CancelledBy.Role),
			Reason:  b.CancelledBy.Reason,
			At:      b.CancelledBy.At,
		}
	}
	return out
}

func MapBookings(items []*domainbooking.Booking) BookingCollection {
	out := BookingCollection{Items: make([]Booking, 0, len(items))}
	for _, b := range items {
		out.Items = append(out.Items, MapBooking(b))
	}
	return out
}
