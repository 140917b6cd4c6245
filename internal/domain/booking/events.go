package booking

import (
	"time"

	"getmyguide/internal/domain/guide"
	"getmyguide/internal/domain/shared/daterange"
	"getmyguide/internal/domain/shared/money"
	"getmyguide/internal/domain/user"
)

const (
	EventConfirmed          = "booking.confirmed"
	EventFullyPaid          = "booking.fully_paid"
	EventCompleted          = "booking.completed"
	EventCancelled          = "booking.cancelled"
	EventGuideWithdrew      = "booking.guide_withdrew"
	EventSubstituteAssigned = "booking.substitute_assigned"
	EventReminderSent       = "booking.reminder_sent"
	EventDeleted            = "booking.deleted"
)

type BookingConfirmed struct {
	BookingID ID                  `json:"booking_id"`
	GuideID   guide.ID            `json:"guide_id"`
	UserID    user.ID             `json:"user_id"`
	UserEmail string              `json:"user_email"`
	Range     daterange.DateRange `json:"range"`
	Advance   money.Money         `json:"advance"`
	Remaining money.Money         `json:"remaining"`
	At        time.Time           `json:"at"`
}

func (e BookingConfirmed) EventName() string     { return EventConfirmed }
func (e BookingConfirmed) AggregateID() string   { return string(e.BookingID) }
func (e BookingConfirmed) OccurredAt() time.Time { return e.At }

type BookingFullyPaid struct {
	BookingID ID          `json:"booking_id"`
	UserID    user.ID     `json:"user_id"`
	Amount    money.Money `json:"amount"`
	At        time.Time   `json:"at"`
}

func (e BookingFullyPaid) EventName() string     { return EventFullyPaid }
func (e BookingFullyPaid) AggregateID() string   { return string(e.BookingID) }
func (e BookingFullyPaid) OccurredAt() time.Time { return e.At }

type BookingCompleted struct {
	BookingID ID        `json:"booking_id"`
	GuideID   guide.ID  `json:"guide_id"`
	At        time.Time `json:"at"`
}

func (e BookingCompleted) EventName() string     { return EventCompleted }
func (e BookingCompleted) AggregateID() string   { return string(e.BookingID) }
func (e BookingCompleted) OccurredAt() time.Time { return e.At }

type BookingCancelled struct {
	BookingID   ID                  `json:"booking_id"`
	GuideID     guide.ID            `json:"guide_id"`
	UserID      user.ID             `json:"user_id"`
	UserEmail   string              `json:"user_email"`
	Range       daterange.DateRange `json:"range"`
	CancelledBy user.Role           `json:"cancelled_by"`
	Reason      string              `json:"reason,omitempty"`
	Refunded    money.Money         `json:"refunded"`
	At          time.Time           `json:"at"`
}

func (e BookingCancelled) EventName() string     { return EventCancelled }
func (e BookingCancelled) AggregateID() string   { return string(e.BookingID) }
func (e BookingCancelled) OccurredAt() time.Time { return e.At }

type GuideWithdrew struct {
	BookingID ID                  `json:"booking_id"`
	GuideID   guide.ID            `json:"guide_id"`
	UserID    user.ID             `json:"user_id"`
	UserEmail string              `json:"user_email"`
	Range     daterange.DateRange `json:"range"`
	Reason    string              `json:"reason,omitempty"`
	At        time.Time           `json:"at"`
}

func (e GuideWithdrew) EventName() string     { return EventGuideWithdrew }
func (e GuideWithdrew) AggregateID() string   { return string(e.BookingID) }
func (e GuideWithdrew) OccurredAt() time.Time { return e.At }

type SubstituteAssigned struct {
	BookingID     ID                  `json:"booking_id"`
	PreviousGuide guide.ID            `json:"previous_guide_id"`
	GuideID       guide.ID            `json:"guide_id"`
	OriginalGuide guide.ID            `json:"original_guide_id"`
	UserID        user.ID             `json:"user_id"`
	UserEmail     string              `json:"user_email"`
	Range         daterange.DateRange `json:"range"`
	At            time.Time           `json:"at"`
}

func (e SubstituteAssigned) EventName() string     { return EventSubstituteAssigned }
func (e SubstituteAssigned) AggregateID() string   { return string(e.BookingID) }
func (e SubstituteAssigned) OccurredAt() time.Time { return e.At }

type PaymentReminderSent struct {
	BookingID ID        `json:"booking_id"`
	UserID    user.ID   `json:"user_id"`
	At        time.Time `json:"at"`
}

func (e PaymentReminderSent) EventName() string     { return EventReminderSent }
func (e PaymentReminderSent) AggregateID() string   { return string(e.BookingID) }
func (e PaymentReminderSent) OccurredAt() time.Time { return e.At }

type BookingDeleted struct {
	BookingID ID        `json:"booking_id"`
	GuideID   guide.ID  `json:"guide_id"`
	ActorID   user.ID   `json:"actor_id"`
	Status    Status    `json:"status"`
	At        time.Time `json:"at"`
}

func (e BookingDeleted) EventName() string     { return EventDeleted }
func (e BookingDeleted) AggregateID() string   { return string(e.BookingID) }
func (e BookingDeleted) OccurredAt() time.Time { return e.At }
