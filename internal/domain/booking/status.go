package booking

// Status is the lifecycle axis of a booking.
type Status string

const (
	StatusPaymentPending     Status = "PaymentPending"
	StatusUpcoming           Status = "Upcoming"
	StatusCompleted          Status = "Completed"
	StatusCancelled          Status = "Cancelled"
	StatusAwaitingSubstitute Status = "AwaitingSubstitute"
)

var transitions = map[Status][]Status{
	StatusPaymentPending:     {StatusUpcoming},
	StatusUpcoming:           {StatusCompleted, StatusCancelled, StatusAwaitingSubstitute},
	StatusAwaitingSubstitute: {StatusUpcoming},
	StatusCompleted:          {},
	StatusCancelled:          {},
}

func ParseStatus(value string) (Status, bool) {
	s := Status(value)
	_, ok := transitions[s]
	return s, ok
}

func (s Status) CanTransitionTo(next Status) bool {
	for _, allowed := range transitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

func (s Status) IsTerminal() bool {
	return s == StatusCompleted || s == StatusCancelled
}

// PaymentStatus is the payment axis, empty until the advance is captured.
type PaymentStatus string

const (
	PaymentNone        PaymentStatus = ""
	PaymentAdvancePaid PaymentStatus = "AdvancePaid"
	PaymentFullyPaid   PaymentStatus = "FullyPaid"
	PaymentRefunded    PaymentStatus = "Refunded"
)

var paymentTransitions = map[PaymentStatus][]PaymentStatus{
	PaymentNone:        {PaymentAdvancePaid},
	PaymentAdvancePaid: {PaymentFullyPaid, PaymentRefunded},
	PaymentFullyPaid:   {PaymentRefunded},
	PaymentRefunded:    {},
}

func (p PaymentStatus) CanTransitionTo(next PaymentStatus) bool {
	for _, allowed := range paymentTransitions[p] {
		if allowed == next {
			return true
		}
	}
	return false
}
